package config

import (
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
)

var (
	defaults = map[string]interface{}{
		"verbose": false,
	}
)

func init() {
	for k, v := range defaults {
		viper.SetDefault(k, v)
	}
}

func GetConfig() (*Config, error) {
	viper.SetConfigType("yaml")
	viper.SetConfigName("chainprover")
	viper.AddConfigPath("/etc/chainprover/")
	viper.AddConfigPath("$HOME/.chainprover")
	viper.AddConfigPath(".")
	viper.SetEnvPrefix("CHAINPROVER")
	viper.AutomaticEnv()
	err := viper.ReadInConfig()
	if err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			// Config file not found; ignore error
			logrus.StandardLogger().Debug("no config found")
		} else {
			return nil, errors.Wrap(err, "reading config file")
		}
	}

	return Build()
}

// Build assembles the config from whatever viper currently holds
func Build() (*Config, error) {
	var err error
	c := &Config{}

	c.p2p, err = buildP2PConfig()
	if err != nil {
		return nil, errors.Wrap(err, "p2p config")
	}

	c.proving, err = buildProvingConfig()
	if err != nil {
		return nil, errors.Wrap(err, "proving config")
	}

	c.runtime, err = buildRuntimeConfig()
	if err != nil {
		return nil, errors.Wrap(err, "runtime config")
	}

	c.prover, err = buildProverConfig()
	if err != nil {
		return nil, errors.Wrap(err, "prover config")
	}

	c.storage, err = buildStorageConfig()
	if err != nil {
		return nil, errors.Wrap(err, "storage config")
	}

	c.rpc = buildRPCConfig()
	c.api = buildAPIConfig()

	c.log, err = buildLogConfig()
	if err != nil {
		return nil, errors.Wrap(err, "log config")
	}

	if viper.GetBool("verbose") {
		c.log.Level = logrus.DebugLevel
	}

	return c, nil
}

type Config struct {
	p2p     *P2P
	proving *Proving
	runtime *Runtime
	prover  *Prover
	storage *Storage
	rpc     *RPC
	api     *API
	log     *Log
}

func (c *Config) P2P() *P2P {
	return c.p2p
}

func (c *Config) Proving() *Proving {
	return c.proving
}

func (c *Config) Runtime() *Runtime {
	return c.runtime
}

func (c *Config) Prover() *Prover {
	return c.prover
}

func (c *Config) Storage() *Storage {
	return c.storage
}

func (c *Config) RPC() *RPC {
	return c.rpc
}

func (c *Config) API() *API {
	return c.api
}

func (c *Config) Log() *Log {
	return c.log
}
