package config

import (
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
)

// Storage kinds
const (
	StorageMemory = "memory"
	StoragePebble = "pebble"
)

type Storage struct {
	Kind string
	Dir  string
}

const (
	Cfg_storage_kind = "storage.kind"
	Cfg_storage_dir  = "storage.dir"
)

type RPC struct {
	URL        string
	Checkpoint uint64
	Attempts   int
}

const (
	Cfg_rpc_url        = "rpc.url"
	Cfg_rpc_checkpoint = "rpc.checkpoint"
	Cfg_rpc_attempts   = "rpc.attempts"
)

type API struct {
	Listen        string
	OutputDir     string
	MetricsListen string
}

const (
	Cfg_api_listen        = "api.listen"
	Cfg_api_outputDir     = "api.outputDir"
	Cfg_api_metricsListen = "api.metricsListen"
)

type Log struct {
	Level      logrus.Level
	Format     string
	File       string
	MaxSizeMB  int
	MaxBackups int
}

const (
	Cfg_log_level      = "log.level"
	Cfg_log_format     = "log.format"
	Cfg_log_file       = "log.file"
	Cfg_log_maxSizeMB  = "log.maxSizeMB"
	Cfg_log_maxBackups = "log.maxBackups"
)

var (
	serviceDefaults = map[string]interface{}{
		Cfg_storage_kind: StorageMemory,
		Cfg_storage_dir:  "./data",

		Cfg_rpc_url:        "http://127.0.0.1:8545",
		Cfg_rpc_checkpoint: 0,
		Cfg_rpc_attempts:   3,

		Cfg_api_listen:        "127.0.0.1:8080",
		Cfg_api_outputDir:     "./proofs",
		Cfg_api_metricsListen: "",

		Cfg_log_level:      "info",
		Cfg_log_format:     "text",
		Cfg_log_file:       "",
		Cfg_log_maxSizeMB:  100,
		Cfg_log_maxBackups: 3,
	}
)

func init() {
	for k, v := range serviceDefaults {
		viper.SetDefault(k, v)
	}
}

func buildStorageConfig() (*Storage, error) {
	c := &Storage{
		Kind: viper.GetString(Cfg_storage_kind),
		Dir:  viper.GetString(Cfg_storage_dir),
	}

	switch c.Kind {
	case StorageMemory, StoragePebble:
	default:
		return nil, errors.Errorf("unknown storage kind %q", c.Kind)
	}

	return c, nil
}

func buildRPCConfig() *RPC {
	return &RPC{
		URL:        viper.GetString(Cfg_rpc_url),
		Checkpoint: viper.GetUint64(Cfg_rpc_checkpoint),
		Attempts:   viper.GetInt(Cfg_rpc_attempts),
	}
}

func buildAPIConfig() *API {
	return &API{
		Listen:        viper.GetString(Cfg_api_listen),
		OutputDir:     viper.GetString(Cfg_api_outputDir),
		MetricsListen: viper.GetString(Cfg_api_metricsListen),
	}
}

func buildLogConfig() (*Log, error) {
	lvl, err := logrus.ParseLevel(viper.GetString(Cfg_log_level))
	if err != nil {
		return nil, errors.Wrap(err, "parsing log level")
	}

	return &Log{
		Level:      lvl,
		Format:     viper.GetString(Cfg_log_format),
		File:       viper.GetString(Cfg_log_file),
		MaxSizeMB:  viper.GetInt(Cfg_log_maxSizeMB),
		MaxBackups: viper.GetInt(Cfg_log_maxBackups),
	}, nil
}
