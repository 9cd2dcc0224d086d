package config

import (
	"strings"
	"time"

	"github.com/marmos91/chunkflow/internal/bytesize"
)

// GetDefaultConfig returns a Config with every field set to its default
// value, used when no config file is found.
func GetDefaultConfig() *Config {
	cfg := &Config{}
	cfg.Manager.AutoResumeUnfinished = true
	cfg.Task.AutoStart = true
	ApplyDefaults(cfg)
	return cfg
}

// ApplyDefaults fills in any zero-valued fields with sensible defaults.
// Called after unmarshaling a partial config file. Boolean fields are left
// as they are; their true defaults come from GetDefaultConfig and from the
// viper defaults Load registers.
func ApplyDefaults(cfg *Config) {
	applyLoggingDefaults(&cfg.Logging)
	applyMetricsDefaults(&cfg.Metrics)
	applyResumeDefaults(&cfg.Resume)
	applyManagerDefaults(&cfg.Manager)
	applyTaskDefaults(&cfg.Task)
}

func applyLoggingDefaults(cfg *LoggingConfig) {
	if cfg.Level == "" {
		cfg.Level = "INFO"
	}
	cfg.Level = strings.ToUpper(cfg.Level)

	if cfg.Format == "" {
		cfg.Format = "text"
	}
	if cfg.Output == "" {
		cfg.Output = "stdout"
	}
}

func applyMetricsDefaults(cfg *MetricsConfig) {
	if cfg.Port == 0 {
		cfg.Port = 9090
	}
}

func applyResumeDefaults(cfg *ResumeConfig) {
	if cfg.Backend == "" {
		cfg.Backend = "memory"
	}
}

func applyManagerDefaults(cfg *ManagerConfig) {
	if cfg.MaxConcurrentTasks == 0 {
		cfg.MaxConcurrentTasks = 3
	}
}

func applyTaskDefaults(cfg *TaskConfig) {
	if cfg.ChunkSize == 0 {
		cfg.ChunkSize = bytesize.ByteSize(1 << 20)
	}
	if cfg.MinChunkSize == 0 {
		cfg.MinChunkSize = bytesize.ByteSize(256 << 10)
	}
	if cfg.MaxChunkSize == 0 {
		cfg.MaxChunkSize = bytesize.ByteSize(10 << 20)
	}
	if cfg.Concurrency == 0 {
		cfg.Concurrency = 3
	}
	if cfg.RetryCount == 0 {
		cfg.RetryCount = 3
	}
	if cfg.RetryDelay == 0 {
		cfg.RetryDelay = 1000 * time.Millisecond
	}
	if cfg.TargetLatency == 0 {
		cfg.TargetLatency = 3000 * time.Millisecond
	}
	if cfg.VerifyBatchWindow == 0 {
		cfg.VerifyBatchWindow = 50 * time.Millisecond
	}
}
