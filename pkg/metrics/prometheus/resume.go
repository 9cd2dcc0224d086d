package prometheus

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/marmos91/chunkflow/pkg/metrics"
)

// resumeMetrics is the Prometheus implementation of metrics.ResumeMetrics.
type resumeMetrics struct {
	operations *prometheus.CounterVec
	errors     *prometheus.CounterVec
	duration   *prometheus.HistogramVec
}

func newResumeMetrics() metrics.ResumeMetrics {
	reg := metrics.GetRegistry()

	return &resumeMetrics{
		operations: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "chunkflow_resume_store_operations_total",
				Help: "Total number of Resume Store operations by type",
			},
			[]string{"op"}, // "put", "get", "delete", "list"
		),
		errors: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "chunkflow_resume_store_errors_total",
				Help: "Total number of Resume Store operations that returned an error",
			},
			[]string{"op"},
		),
		duration: promauto.With(reg).NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "chunkflow_resume_store_duration_milliseconds",
				Help:    "Duration of Resume Store operations in milliseconds",
				Buckets: []float64{0.1, 0.5, 1, 5, 10, 25, 50, 100, 250},
			},
			[]string{"op"},
		),
	}
}

func init() {
	metrics.RegisterResumeMetricsConstructor(newResumeMetrics)
}

func (m *resumeMetrics) ObserveOp(op string, duration time.Duration, err bool) {
	m.operations.WithLabelValues(op).Inc()
	m.duration.WithLabelValues(op).Observe(float64(duration.Microseconds()) / 1000)
	if err {
		m.errors.WithLabelValues(op).Inc()
	}
}
