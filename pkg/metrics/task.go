package metrics

import "time"

// TaskMetrics provides observability for one Upload Task's dispatch loop.
//
// Implementations collect per-chunk upload/verify latency and outcome,
// whole-file digest duration, retry counts, and live concurrency
// occupancy. This interface is optional — pass nil to task.Config.Metrics
// to disable collection with zero overhead.
type TaskMetrics interface {
	// ObserveChunkUpload records one uploadChunk attempt's outcome and
	// duration, success reporting whether the attempt ultimately succeeded.
	ObserveChunkUpload(bytes int, duration time.Duration, success bool)

	// ObserveVerifyBatch records one coalesced verifyHash call's duration
	// and how many of the batched chunks the server already had.
	ObserveVerifyBatch(batchSize, existing int, duration time.Duration)

	// ObserveMerge records the terminal mergeFile call's duration and
	// outcome.
	ObserveMerge(duration time.Duration, success bool)

	// ObserveDigest records the concurrent whole-file hash computation's
	// duration.
	ObserveDigest(bytes int64, duration time.Duration)

	// RecordRetry increments the retry counter for the given error kind
	// (e.g. "transientNetwork", "tokenExpired").
	RecordRetry(kind string)

	// SetActiveChunks reports the task's Limiter's current in-flight chunk
	// count.
	SetActiveChunks(n int)

	// SetChunkSize reports the plan's current nominal chunk size, tracking
	// the dynamic chunk-size controller's output over time.
	SetChunkSize(bytes uint64)
}

// NewTaskMetrics returns a Prometheus-backed TaskMetrics, or nil if metrics
// are not enabled (InitRegistry was never called).
func NewTaskMetrics() TaskMetrics {
	if !IsEnabled() {
		return nil
	}
	return newPrometheusTaskMetrics()
}

// newPrometheusTaskMetrics is implemented in pkg/metrics/prometheus/task.go;
// this indirection avoids an import cycle between the two packages.
var newPrometheusTaskMetrics func() TaskMetrics

// RegisterTaskMetricsConstructor is called by pkg/metrics/prometheus/task.go
// during package init to install the concrete constructor.
func RegisterTaskMetricsConstructor(constructor func() TaskMetrics) {
	newPrometheusTaskMetrics = constructor
}

func ObserveChunkUpload(m TaskMetrics, bytes int, duration time.Duration, success bool) {
	if m != nil {
		m.ObserveChunkUpload(bytes, duration, success)
	}
}

func ObserveVerifyBatch(m TaskMetrics, batchSize, existing int, duration time.Duration) {
	if m != nil {
		m.ObserveVerifyBatch(batchSize, existing, duration)
	}
}

func ObserveMerge(m TaskMetrics, duration time.Duration, success bool) {
	if m != nil {
		m.ObserveMerge(duration, success)
	}
}

func ObserveDigest(m TaskMetrics, bytes int64, duration time.Duration) {
	if m != nil {
		m.ObserveDigest(bytes, duration)
	}
}

func RecordRetry(m TaskMetrics, kind string) {
	if m != nil {
		m.RecordRetry(kind)
	}
}

func SetActiveChunks(m TaskMetrics, n int) {
	if m != nil {
		m.SetActiveChunks(n)
	}
}

func SetChunkSize(m TaskMetrics, bytes uint64) {
	if m != nil {
		m.SetChunkSize(bytes)
	}
}
