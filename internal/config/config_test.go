package config

import (
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
)

func TestDefaults(t *testing.T) {
	c, err := Build()
	if err != nil {
		t.Fatal(err)
	}

	assert.Equal(t, 20, c.Proving().MaxCPULenLog)
	assert.Equal(t, 1, c.Proving().BatchSize)
	assert.Equal(t, RuntimeInMemory, c.Runtime().Mode)
	assert.Greater(t, c.Runtime().Workers, 0)
	assert.Equal(t, BackendHash, c.Prover().Backend)
	assert.Equal(t, StorageMemory, c.Storage().Kind)
	assert.Equal(t, logrus.InfoLevel, c.Log().Level)
	assert.Len(t, c.P2P().ListenAddrs, 2)
}

func TestOverrides(t *testing.T) {
	t.Cleanup(func() {
		viper.Set(Cfg_proving_maxCpuLenLog, 20)
		viper.Set(Cfg_prover_backend, BackendHash)
		viper.Set("verbose", false)
	})

	viper.Set(Cfg_proving_maxCpuLenLog, 33)
	_, err := Build()
	assert.Error(t, err)

	viper.Set(Cfg_proving_maxCpuLenLog, 12)
	viper.Set(Cfg_prover_backend, "plonky")
	_, err = Build()
	assert.Error(t, err)

	viper.Set(Cfg_prover_backend, BackendGroth16)
	viper.Set("verbose", true)
	c, err := Build()
	if err != nil {
		t.Fatal(err)
	}

	assert.Equal(t, 12, c.Proving().MaxCPULenLog)
	assert.Equal(t, BackendGroth16, c.Prover().Backend)
	assert.Equal(t, logrus.DebugLevel, c.Log().Level)
}
