package prometheus

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/marmos91/chunkflow/pkg/metrics"
)

// taskMetrics is the Prometheus implementation of metrics.TaskMetrics.
type taskMetrics struct {
	chunkUploads    *prometheus.CounterVec
	chunkDuration   *prometheus.HistogramVec
	chunkBytes      prometheus.Histogram
	verifyBatches   prometheus.Counter
	verifyExisting  prometheus.Counter
	verifyDuration  prometheus.Histogram
	mergeOperations *prometheus.CounterVec
	mergeDuration   prometheus.Histogram
	digestDuration  prometheus.Histogram
	digestBytes     prometheus.Histogram
	retries         *prometheus.CounterVec
	activeChunks    prometheus.Gauge
	chunkSize       prometheus.Gauge
}

func newTaskMetrics() metrics.TaskMetrics {
	reg := metrics.GetRegistry()

	return &taskMetrics{
		chunkUploads: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "chunkflow_task_chunk_uploads_total",
				Help: "Total number of chunk upload attempts by outcome",
			},
			[]string{"outcome"}, // "success", "failure"
		),
		chunkDuration: promauto.With(reg).NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "chunkflow_task_chunk_upload_duration_milliseconds",
				Help:    "Duration of a single uploadChunk attempt in milliseconds",
				Buckets: []float64{5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000, 10000},
			},
			[]string{"outcome"},
		),
		chunkBytes: promauto.With(reg).NewHistogram(prometheus.HistogramOpts{
			Name:    "chunkflow_task_chunk_bytes",
			Help:    "Size in bytes of uploaded chunks",
			Buckets: prometheus.ExponentialBuckets(64*1024, 2, 12),
		}),
		verifyBatches: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "chunkflow_task_verify_batches_total",
			Help: "Total number of coalesced verifyHash calls",
		}),
		verifyExisting: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "chunkflow_task_verify_existing_chunks_total",
			Help: "Total number of chunks a verifyHash batch reported as already existing server-side",
		}),
		verifyDuration: promauto.With(reg).NewHistogram(prometheus.HistogramOpts{
			Name:    "chunkflow_task_verify_duration_milliseconds",
			Help:    "Duration of a coalesced verifyHash call in milliseconds",
			Buckets: []float64{5, 10, 25, 50, 100, 250, 500, 1000},
		}),
		mergeOperations: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "chunkflow_task_merge_operations_total",
				Help: "Total number of mergeFile calls by outcome",
			},
			[]string{"outcome"},
		),
		mergeDuration: promauto.With(reg).NewHistogram(prometheus.HistogramOpts{
			Name:    "chunkflow_task_merge_duration_milliseconds",
			Help:    "Duration of the terminal mergeFile call in milliseconds",
			Buckets: []float64{10, 25, 50, 100, 250, 500, 1000, 2500, 5000},
		}),
		digestDuration: promauto.With(reg).NewHistogram(prometheus.HistogramOpts{
			Name:    "chunkflow_task_digest_duration_milliseconds",
			Help:    "Duration of the concurrent whole-file digest computation in milliseconds",
			Buckets: []float64{10, 50, 100, 500, 1000, 5000, 10000, 30000},
		}),
		digestBytes: promauto.With(reg).NewHistogram(prometheus.HistogramOpts{
			Name:    "chunkflow_task_digest_bytes",
			Help:    "Size in bytes of the file being digested",
			Buckets: prometheus.ExponentialBuckets(1<<20, 4, 10),
		}),
		retries: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "chunkflow_task_retries_total",
				Help: "Total number of chunk upload retries by error kind",
			},
			[]string{"kind"},
		),
		activeChunks: promauto.With(reg).NewGauge(prometheus.GaugeOpts{
			Name: "chunkflow_task_active_chunks",
			Help: "Current number of in-flight chunk uploads across all tasks",
		}),
		chunkSize: promauto.With(reg).NewGauge(prometheus.GaugeOpts{
			Name: "chunkflow_task_chunk_size_bytes",
			Help: "Most recently observed nominal chunk size chosen by the dynamic chunk-size controller",
		}),
	}
}

func init() {
	metrics.RegisterTaskMetricsConstructor(newTaskMetrics)
}

func (m *taskMetrics) ObserveChunkUpload(bytes int, duration time.Duration, success bool) {
	outcome := outcomeLabel(success)
	m.chunkUploads.WithLabelValues(outcome).Inc()
	m.chunkDuration.WithLabelValues(outcome).Observe(float64(duration.Milliseconds()))
	if success {
		m.chunkBytes.Observe(float64(bytes))
	}
}

func (m *taskMetrics) ObserveVerifyBatch(batchSize, existing int, duration time.Duration) {
	m.verifyBatches.Inc()
	m.verifyExisting.Add(float64(existing))
	m.verifyDuration.Observe(float64(duration.Milliseconds()))
}

func (m *taskMetrics) ObserveMerge(duration time.Duration, success bool) {
	m.mergeOperations.WithLabelValues(outcomeLabel(success)).Inc()
	m.mergeDuration.Observe(float64(duration.Milliseconds()))
}

func (m *taskMetrics) ObserveDigest(bytes int64, duration time.Duration) {
	m.digestDuration.Observe(float64(duration.Milliseconds()))
	m.digestBytes.Observe(float64(bytes))
}

func (m *taskMetrics) RecordRetry(kind string) {
	m.retries.WithLabelValues(kind).Inc()
}

func (m *taskMetrics) SetActiveChunks(n int) {
	m.activeChunks.Set(float64(n))
}

func (m *taskMetrics) SetChunkSize(bytes uint64) {
	m.chunkSize.Set(float64(bytes))
}

func outcomeLabel(success bool) string {
	if success {
		return "success"
	}
	return "failure"
}
