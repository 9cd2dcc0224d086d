package config

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/marmos91/chunkflow/pkg/manager"
	"github.com/marmos91/chunkflow/pkg/metrics"
	"github.com/marmos91/chunkflow/pkg/resume"
	"github.com/marmos91/chunkflow/pkg/task"
)

// ResumeStore constructs the Durable Resume Store selected by
// cfg.Resume.Backend, wiring in Prometheus metrics if enabled.
func (c *Config) ResumeStore() (resume.Store, error) {
	switch c.Resume.Backend {
	case "", "memory":
		return resume.NewMemoryStore(), nil
	case "badger":
		return resume.OpenBadgerStoreWithMetrics(c.Resume.Dir, metrics.NewResumeMetrics())
	default:
		return nil, fmt.Errorf("config: unknown resume backend %q", c.Resume.Backend)
	}
}

// TaskConfig converts the configuration file's task section into a
// task.Config, wiring in Prometheus metrics if enabled.
func (c *Config) TaskConfig() task.Config {
	cfg := task.DefaultConfig()
	cfg.ChunkSize = uint64(c.Task.ChunkSize)
	cfg.MinChunkSize = uint64(c.Task.MinChunkSize)
	cfg.MaxChunkSize = uint64(c.Task.MaxChunkSize)
	cfg.Concurrency = c.Task.Concurrency
	cfg.RetryCount = c.Task.RetryCount
	cfg.RetryDelay = c.Task.RetryDelay
	cfg.TargetLatency = c.Task.TargetLatency
	cfg.VerifyBatchWindow = c.Task.VerifyBatchWindow
	cfg.AutoStart = c.Task.AutoStart
	cfg.Metrics = metrics.NewTaskMetrics()
	return cfg
}

// ManagerConfig converts the configuration file's manager section into a
// manager.Config, embedding the resolved TaskConfig.
func (c *Config) ManagerConfig() manager.Config {
	return manager.Config{
		MaxConcurrentTasks:   c.Manager.MaxConcurrentTasks,
		AutoResumeUnfinished: c.Manager.AutoResumeUnfinished,
		Task:                 c.TaskConfig(),
		Metrics:              metrics.NewManagerMetrics(),
	}
}

// InitMetrics enables Prometheus metrics collection if cfg.Metrics.Enabled,
// returning the registry a host process can serve over /metrics (nil if
// disabled).
func InitMetrics(cfg *Config) *prometheus.Registry {
	if !cfg.Metrics.Enabled {
		return nil
	}
	return metrics.InitRegistry()
}
