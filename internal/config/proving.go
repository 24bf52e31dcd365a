package config

import (
	goruntime "runtime"

	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

type Proving struct {
	MaxCPULenLog      int
	BatchSize         int
	SegmentsInFlight  int
	TxnsInFlight      int
	BlocksInFlight    int
	TestOnly          bool
	SaveInputsOnError bool
	DebugDir          string
}

const (
	Cfg_proving_maxCpuLenLog      = "proving.maxCpuLenLog"
	Cfg_proving_batchSize         = "proving.batchSize"
	Cfg_proving_segmentsInFlight  = "proving.segmentsInFlight"
	Cfg_proving_txnsInFlight      = "proving.txnsInFlight"
	Cfg_proving_blocksInFlight    = "proving.blocksInFlight"
	Cfg_proving_testOnly          = "proving.testOnly"
	Cfg_proving_saveInputsOnError = "proving.saveInputsOnError"
	Cfg_proving_debugDir          = "proving.debugDir"
)

// Runtime modes
const (
	RuntimeInMemory = "in-memory"
	RuntimeP2P      = "p2p"
)

type Runtime struct {
	Mode    string
	Workers int
	Peers   []string
}

const (
	Cfg_runtime_mode    = "runtime.mode"
	Cfg_runtime_workers = "runtime.workers"
	Cfg_runtime_peers   = "runtime.peers"
)

// Prover backends
const (
	BackendHash    = "hash"
	BackendGroth16 = "groth16"
)

type Prover struct {
	Backend     string
	Persistence string
	KeyDir      string
}

const (
	Cfg_prover_backend     = "prover.backend"
	Cfg_prover_persistence = "prover.persistence"
	Cfg_prover_keyDir      = "prover.keyDir"
)

var (
	provingDefaults = map[string]interface{}{
		Cfg_proving_maxCpuLenLog:      20,
		Cfg_proving_batchSize:         1,
		Cfg_proving_segmentsInFlight:  16,
		Cfg_proving_txnsInFlight:      8,
		Cfg_proving_blocksInFlight:    2,
		Cfg_proving_testOnly:          false,
		Cfg_proving_saveInputsOnError: false,
		Cfg_proving_debugDir:          "./debug",

		Cfg_runtime_mode:    RuntimeInMemory,
		Cfg_runtime_workers: 0,
		Cfg_runtime_peers:   []string{},

		Cfg_prover_backend:     BackendHash,
		Cfg_prover_persistence: "none",
		Cfg_prover_keyDir:      "./circuits",
	}
)

func init() {
	for k, v := range provingDefaults {
		viper.SetDefault(k, v)
	}
}

func buildProvingConfig() (*Proving, error) {
	c := &Proving{
		MaxCPULenLog:      viper.GetInt(Cfg_proving_maxCpuLenLog),
		BatchSize:         viper.GetInt(Cfg_proving_batchSize),
		SegmentsInFlight:  viper.GetInt(Cfg_proving_segmentsInFlight),
		TxnsInFlight:      viper.GetInt(Cfg_proving_txnsInFlight),
		BlocksInFlight:    viper.GetInt(Cfg_proving_blocksInFlight),
		TestOnly:          viper.GetBool(Cfg_proving_testOnly),
		SaveInputsOnError: viper.GetBool(Cfg_proving_saveInputsOnError),
		DebugDir:          viper.GetString(Cfg_proving_debugDir),
	}

	if c.MaxCPULenLog < 1 || c.MaxCPULenLog > 32 {
		return nil, errors.Errorf("%s must be within 1..=32, got %d", Cfg_proving_maxCpuLenLog, c.MaxCPULenLog)
	}

	if c.BatchSize < 1 {
		return nil, errors.Errorf("%s must be positive", Cfg_proving_batchSize)
	}

	return c, nil
}

func buildRuntimeConfig() (*Runtime, error) {
	c := &Runtime{
		Mode:    viper.GetString(Cfg_runtime_mode),
		Workers: viper.GetInt(Cfg_runtime_workers),
		Peers:   viper.GetStringSlice(Cfg_runtime_peers),
	}

	if c.Workers <= 0 {
		c.Workers = goruntime.NumCPU()
	}

	switch c.Mode {
	case RuntimeInMemory, RuntimeP2P:
	default:
		return nil, errors.Errorf("unknown runtime mode %q", c.Mode)
	}

	return c, nil
}

func buildProverConfig() (*Prover, error) {
	c := &Prover{
		Backend:     viper.GetString(Cfg_prover_backend),
		Persistence: viper.GetString(Cfg_prover_persistence),
		KeyDir:      viper.GetString(Cfg_prover_keyDir),
	}

	switch c.Backend {
	case BackendHash, BackendGroth16:
	default:
		return nil, errors.Errorf("unknown prover backend %q", c.Backend)
	}

	return c, nil
}
