package manager

import (
	"github.com/marmos91/chunkflow/pkg/metrics"
	"github.com/marmos91/chunkflow/pkg/task"
)

// Config is the Upload Manager's configuration surface: the task-level
// concurrency cap plus the per-task defaults every created Task inherits
// unless its own Options override them.
type Config struct {
	MaxConcurrentTasks   int
	AutoResumeUnfinished bool
	Task                 task.Config

	// Metrics receives fleet-level observability events. Nil disables
	// collection with zero overhead.
	Metrics metrics.ManagerMetrics
}

// DefaultConfig mirrors the configuration surface's default values.
func DefaultConfig() Config {
	return Config{
		MaxConcurrentTasks:   3,
		AutoResumeUnfinished: true,
		Task:                 task.DefaultConfig(),
	}
}
