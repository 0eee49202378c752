// Package config loads graphstore settings from YAML
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/hashicorp/go-multierror"
	"gopkg.in/yaml.v2"

	"github.com/nainya/graphstore/internal/logger"
	"github.com/nainya/graphstore/pkg/id"
	"github.com/nainya/graphstore/pkg/storage"
)

// Backend names accepted by storage.backend
const (
	BackendBolt   = "bolt"
	BackendMemory = "memory"
)

// Config is the root of the YAML file
type Config struct {
	Storage StorageConfig `yaml:"storage"`
	IDs     IDConfig      `yaml:"ids"`
	Log     LogConfig     `yaml:"log"`
	Server  ServerConfig  `yaml:"server"`
}

// StorageConfig selects and opens the backend
type StorageConfig struct {
	Key                     string        `yaml:"key"`
	Backend                 string        `yaml:"backend"`
	Path                    string        `yaml:"path"`
	CreateIfMissing         bool          `yaml:"create_if_missing"`
	ErrorIfExists           bool          `yaml:"error_if_exists"`
	CreateMissingPartitions bool          `yaml:"create_missing_partitions"`
	Timeout                 time.Duration `yaml:"timeout"`
	OpenRetries             uint64        `yaml:"open_retries"`
}

// IDConfig configures the id generator
type IDConfig struct {
	Instance     uint64        `yaml:"instance"`
	MaxClockWait time.Duration `yaml:"max_clock_wait"`
}

// LogConfig configures the logger
type LogConfig struct {
	Level  string `yaml:"level"`
	Pretty bool   `yaml:"pretty"`
	Caller bool   `yaml:"caller"`
}

// ServerConfig configures the observability and gRPC listeners
type ServerConfig struct {
	HTTPAddr      string        `yaml:"http_addr"`
	GRPCAddr      string        `yaml:"grpc_addr"`
	StatsInterval time.Duration `yaml:"stats_interval"`
	ShutdownGrace time.Duration `yaml:"shutdown_grace"`
}

// Default returns the configuration used when no file is given
func Default() Config {
	return Config{
		Storage: StorageConfig{
			Key:                     "graphstore",
			Backend:                 BackendBolt,
			Path:                    "graphstore.db",
			CreateIfMissing:         true,
			CreateMissingPartitions: true,
			Timeout:                 time.Second,
			OpenRetries:             3,
		},
		IDs: IDConfig{
			MaxClockWait: id.DefaultMaxClockWait,
		},
		Log: LogConfig{
			Level: "info",
		},
		Server: ServerConfig{
			HTTPAddr:      ":9090",
			GRPCAddr:      ":50051",
			StatsInterval: 30 * time.Second,
			ShutdownGrace: 10 * time.Second,
		},
	}
}

// Load reads path over the defaults and validates the result
func Load(path string) (Config, error) {
	cfg := Default()
	raw, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("config: read %q: %w", path, err)
	}
	if err := yaml.UnmarshalStrict(raw, &cfg); err != nil {
		return cfg, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, cfg.Validate()
}

// Validate reports every problem at once
func (c Config) Validate() error {
	var result *multierror.Error

	switch c.Storage.Backend {
	case BackendBolt:
		if c.Storage.Path == "" {
			result = multierror.Append(result, fmt.Errorf("storage.path is required for the bolt backend"))
		}
	case BackendMemory:
	default:
		result = multierror.Append(result, fmt.Errorf("storage.backend %q is not one of bolt, memory", c.Storage.Backend))
	}
	if c.Storage.Key == "" {
		result = multierror.Append(result, fmt.Errorf("storage.key is required"))
	}
	if c.Storage.Timeout < 0 {
		result = multierror.Append(result, fmt.Errorf("storage.timeout must not be negative"))
	}
	if c.IDs.Instance > id.MaxInstance {
		result = multierror.Append(result, fmt.Errorf("ids.instance %d exceeds %d", c.IDs.Instance, id.MaxInstance))
	}
	switch c.Log.Level {
	case "debug", "info", "warn", "error", "disabled":
	default:
		result = multierror.Append(result, fmt.Errorf("log.level %q is not one of debug, info, warn, error, disabled", c.Log.Level))
	}
	if c.Server.StatsInterval <= 0 {
		result = multierror.Append(result, fmt.Errorf("server.stats_interval must be positive"))
	}
	if c.Server.HTTPAddr == "" && c.Server.GRPCAddr == "" {
		result = multierror.Append(result, fmt.Errorf("server needs http_addr or grpc_addr"))
	}

	return result.ErrorOrNil()
}

// StorageOptions converts the storage section into backend options
func (c Config) StorageOptions() storage.Options {
	return storage.Options{
		Path:                    c.Storage.Path,
		CreateIfMissing:         c.Storage.CreateIfMissing,
		ErrorIfExists:           c.Storage.ErrorIfExists,
		CreateMissingPartitions: c.Storage.CreateMissingPartitions,
		Timeout:                 c.Storage.Timeout,
	}
}

// GeneratorConfig converts the ids section into generator settings
func (c Config) GeneratorConfig() id.Config {
	return id.Config{
		Instance:     c.IDs.Instance,
		MaxClockWait: c.IDs.MaxClockWait,
	}
}

// LoggerConfig converts the log section into logger settings
func (c Config) LoggerConfig() logger.Config {
	return logger.Config{
		Level:      c.Log.Level,
		Pretty:     c.Log.Pretty,
		WithCaller: c.Log.Caller,
	}
}
