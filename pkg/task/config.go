package task

import (
	"time"

	"github.com/marmos91/chunkflow/pkg/metrics"
)

// Config holds the resolved, per-task knobs used by the dispatch loop: the
// task-level defaults from the engine configuration, with any per-task
// Options applied on top.
type Config struct {
	ChunkSize         uint64
	MinChunkSize      uint64
	MaxChunkSize      uint64
	Concurrency       int
	RetryCount        int
	RetryDelay        time.Duration
	TargetLatency     time.Duration
	VerifyBatchWindow time.Duration
	AutoStart         bool

	// Metrics receives per-chunk and per-task observability events. Nil
	// disables collection with zero overhead.
	Metrics metrics.TaskMetrics
}

// DefaultConfig mirrors the configuration surface's default values.
func DefaultConfig() Config {
	return Config{
		ChunkSize:         1 << 20,
		MinChunkSize:      256 << 10,
		MaxChunkSize:      10 << 20,
		Concurrency:       3,
		RetryCount:        3,
		RetryDelay:        1000 * time.Millisecond,
		TargetLatency:     3000 * time.Millisecond,
		VerifyBatchWindow: 50 * time.Millisecond,
		AutoStart:         true,
	}
}

// Options are per-task overrides supplied at createTask time. A nil field
// keeps the engine default.
type Options struct {
	ChunkSize           *uint64
	Concurrency         *int
	RetryCount          *int
	RetryDelay          *time.Duration
	AutoStart           *bool
	FileType            string
	PrecomputedFileHash string // enables the instant-upload fast path
}

func resolveConfig(base Config, opts Options) Config {
	cfg := base
	if opts.ChunkSize != nil {
		cfg.ChunkSize = *opts.ChunkSize
	}
	if opts.Concurrency != nil {
		cfg.Concurrency = *opts.Concurrency
	}
	if opts.RetryCount != nil {
		cfg.RetryCount = *opts.RetryCount
	}
	if opts.RetryDelay != nil {
		cfg.RetryDelay = *opts.RetryDelay
	}
	if opts.AutoStart != nil {
		cfg.AutoStart = *opts.AutoStart
	}
	return cfg
}
