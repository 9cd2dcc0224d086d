// Package config loads the engine's configuration surface from
// environment variables, a YAML file, and defaults, in that order of
// decreasing precedence. It is the one place the host process's viper/validator/
// mapstructure stack lives; every other package takes a plain Config/
// task.Config/manager.Config value.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/marmos91/chunkflow/internal/bytesize"
)

// Config is the engine's full configuration surface.
//
// Configuration sources, in order of precedence:
//  1. Environment variables (CHUNKFLOW_*)
//  2. Configuration file (YAML)
//  3. Default values (lowest priority)
type Config struct {
	// Logging controls log output behavior.
	Logging LoggingConfig `mapstructure:"logging" yaml:"logging"`

	// Metrics controls the Prometheus metrics registry.
	Metrics MetricsConfig `mapstructure:"metrics" yaml:"metrics"`

	// Resume configures the Durable Resume Store.
	Resume ResumeConfig `mapstructure:"resume" yaml:"resume"`

	// Manager configures the Upload Manager's fleet-level behavior.
	Manager ManagerConfig `mapstructure:"manager" yaml:"manager"`

	// Task configures the per-task defaults every created Upload Task
	// inherits unless overridden by its own Options.
	Task TaskConfig `mapstructure:"task" yaml:"task"`
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	// Level is the minimum log level to output.
	// Valid values: DEBUG, INFO, WARN, ERROR (case-insensitive, normalized
	// to uppercase).
	Level string `mapstructure:"level" validate:"required,oneof=DEBUG INFO WARN ERROR debug info warn error" yaml:"level"`

	// Format specifies the log output format.
	// Valid values: text, json.
	Format string `mapstructure:"format" validate:"required,oneof=text json" yaml:"format"`

	// Output specifies where logs are written.
	// Valid values: stdout, stderr, or a file path.
	Output string `mapstructure:"output" validate:"required" yaml:"output"`
}

// MetricsConfig configures the Prometheus metrics registry.
// When Enabled is false, every metrics constructor in pkg/metrics returns
// nil and collection is zero overhead.
type MetricsConfig struct {
	// Enabled controls whether metrics collection is active.
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`

	// Port is the HTTP port a host process should serve /metrics on.
	// Neither this package nor cmd/uploadctl starts that server.
	Port int `mapstructure:"port" validate:"omitempty,min=1,max=65535" yaml:"port"`
}

// ResumeConfig configures the Durable Resume Store.
type ResumeConfig struct {
	// Backend selects the store implementation.
	// Valid values: "memory", "badger".
	Backend string `mapstructure:"backend" validate:"required,oneof=memory badger" yaml:"backend"`

	// Dir is the BadgerDB data directory. Required when Backend is
	// "badger".
	Dir string `mapstructure:"dir" validate:"required_if=Backend badger" yaml:"dir,omitempty"`
}

// ManagerConfig configures the Upload Manager's fleet-level behavior.
type ManagerConfig struct {
	// MaxConcurrentTasks bounds how many tasks actively dispatch chunks at
	// once.
	MaxConcurrentTasks int `mapstructure:"max_concurrent_tasks" validate:"required,min=1" yaml:"max_concurrent_tasks"`

	// AutoResumeUnfinished controls whether ResumeTask immediately
	// resumes a rebound record whose persisted status was uploading or
	// paused (true), or returns the restored task for the host to Resume
	// itself (false). Init reconstructs a waiting-for-file placeholder
	// for every non-terminal record either way.
	AutoResumeUnfinished bool `mapstructure:"auto_resume_unfinished" yaml:"auto_resume_unfinished"`
}

// TaskConfig configures the per-task defaults.
type TaskConfig struct {
	// ChunkSize is the initial chunk size proposed to createFile.
	ChunkSize bytesize.ByteSize `mapstructure:"chunk_size" validate:"required,gt=0" yaml:"chunk_size"`

	// MinChunkSize and MaxChunkSize bound the dynamic chunk-size
	// controller's output.
	MinChunkSize bytesize.ByteSize `mapstructure:"min_chunk_size" validate:"required,gt=0" yaml:"min_chunk_size"`
	MaxChunkSize bytesize.ByteSize `mapstructure:"max_chunk_size" validate:"required,gtfield=MinChunkSize" yaml:"max_chunk_size"`

	// Concurrency bounds how many chunks of one task upload at once.
	Concurrency int `mapstructure:"concurrency" validate:"required,min=1" yaml:"concurrency"`

	// RetryCount is how many times a failed chunk upload is retried
	// before the task fails.
	RetryCount int `mapstructure:"retry_count" validate:"min=0" yaml:"retry_count"`

	// RetryDelay is the base exponential-backoff delay between retries.
	RetryDelay time.Duration `mapstructure:"retry_delay" validate:"required,gt=0" yaml:"retry_delay"`

	// TargetLatency is the per-chunk upload duration the dynamic
	// chunk-size controller aims for.
	TargetLatency time.Duration `mapstructure:"target_latency" validate:"required,gt=0" yaml:"target_latency"`

	// VerifyBatchWindow is how long the verify batcher coalesces
	// concurrent verifyHash requests before flushing.
	VerifyBatchWindow time.Duration `mapstructure:"verify_batch_window" validate:"required,gt=0" yaml:"verify_batch_window"`

	// AutoStart controls whether createTask immediately starts dispatch.
	AutoStart bool `mapstructure:"auto_start" yaml:"auto_start"`
}

// Load loads configuration from file, environment, and defaults.
//
// Configuration precedence (highest to lowest):
//  1. Environment variables (CHUNKFLOW_*)
//  2. Configuration file
//  3. Default values
//
// Environment variables override only keys viper already knows: keys set
// in the configuration file, plus task.auto_start and
// manager.auto_resume_unfinished. When no configuration file is found,
// Load returns GetDefaultConfig() without reading the environment.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	setupViper(v, configPath)

	configFileFound, err := readConfigFile(v)
	if err != nil {
		return nil, err
	}

	if !configFileFound {
		cfg := GetDefaultConfig()
		return cfg, nil
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, viper.DecodeHook(configDecodeHooks())); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}

	ApplyDefaults(&cfg)

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("config: validation failed: %w", err)
	}

	return &cfg, nil
}

// MustLoad loads configuration with a helpful error if no config file
// exists at the default location and none was explicitly given.
func MustLoad(configPath string) (*Config, error) {
	if configPath == "" {
		if !DefaultConfigExists() {
			return nil, fmt.Errorf("no configuration file found at default location: %s\n\n"+
				"Initialize one first:\n"+
				"  uploadctl init\n\n"+
				"Or specify a custom config file:\n"+
				"  uploadctl <command> --config /path/to/config.yaml",
				GetDefaultConfigPath())
		}
		configPath = GetDefaultConfigPath()
	} else if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("configuration file not found: %s", configPath)
	}

	cfg, err := Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("config: load: %w", err)
	}
	return cfg, nil
}

// SaveConfig saves cfg to path in YAML format.
func SaveConfig(cfg *Config, path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("config: create config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("config: marshal: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("config: write config file: %w", err)
	}
	return nil
}

// setupViper configures environment variable and config file resolution.
func setupViper(v *viper.Viper, configPath string) {
	v.SetEnvPrefix("CHUNKFLOW")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Boolean fields whose default is true; ApplyDefaults cannot tell an
	// unset false from an explicit one.
	v.SetDefault("task.auto_start", true)
	v.SetDefault("manager.auto_resume_unfinished", true)

	if configPath != "" {
		v.SetConfigFile(configPath)
		return
	}
	configDir := getConfigDir()
	v.AddConfigPath(configDir)
	v.SetConfigName("config")
	v.SetConfigType("yaml")
}

// readConfigFile reads the configuration file if it exists. The second
// return value reports whether a file was found.
func readConfigFile(v *viper.Viper) (bool, error) {
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return false, nil
		}
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("config: read config file: %w", err)
	}
	return true, nil
}

// configDecodeHooks combines the custom type decode hooks viper needs to
// unmarshal human-readable byte sizes and durations.
func configDecodeHooks() mapstructure.DecodeHookFunc {
	return mapstructure.ComposeDecodeHookFunc(
		byteSizeDecodeHook(),
		durationDecodeHook(),
	)
}

// byteSizeDecodeHook converts strings and numbers to bytesize.ByteSize,
// enabling config files to use human-readable sizes like "1MiB", "512KB".
func byteSizeDecodeHook() mapstructure.DecodeHookFunc {
	return func(from reflect.Type, to reflect.Type, data interface{}) (interface{}, error) {
		if to != reflect.TypeOf(bytesize.ByteSize(0)) {
			return data, nil
		}
		switch v := data.(type) {
		case string:
			return bytesize.ParseByteSize(v)
		case int:
			return bytesize.ByteSize(v), nil
		case int64:
			return bytesize.ByteSize(v), nil
		case uint64:
			return bytesize.ByteSize(v), nil
		case float64:
			return bytesize.ByteSize(v), nil
		default:
			return data, nil
		}
	}
}

// durationDecodeHook converts strings to time.Duration, enabling config
// files to use human-readable durations like "30s", "5m".
func durationDecodeHook() mapstructure.DecodeHookFunc {
	return func(from reflect.Type, to reflect.Type, data interface{}) (interface{}, error) {
		if to != reflect.TypeOf(time.Duration(0)) {
			return data, nil
		}
		switch v := data.(type) {
		case string:
			return time.ParseDuration(v)
		case int:
			return time.Duration(v), nil
		case int64:
			return time.Duration(v), nil
		case float64:
			return time.Duration(v), nil
		default:
			return data, nil
		}
	}
}

// getConfigDir returns the configuration directory: $XDG_CONFIG_HOME/
// chunkflow, falling back to ~/.config/chunkflow, or "." if the home
// directory cannot be determined.
func getConfigDir() string {
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "chunkflow")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, ".config", "chunkflow")
}

// GetDefaultConfigPath returns the default configuration file path.
func GetDefaultConfigPath() string {
	return filepath.Join(getConfigDir(), "config.yaml")
}

// DefaultConfigExists reports whether a config file exists at the default
// location.
func DefaultConfigExists() bool {
	_, err := os.Stat(GetDefaultConfigPath())
	return err == nil
}

// GetConfigDir exposes the configuration directory for the init command.
func GetConfigDir() string {
	return getConfigDir()
}
