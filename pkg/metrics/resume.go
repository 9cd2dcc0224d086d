package metrics

import "time"

// ResumeMetrics provides observability for a Durable Resume Store's
// operations. Pass nil to disable collection with zero overhead.
type ResumeMetrics interface {
	// ObserveOp records one store operation's ("put", "get", "delete",
	// "list") duration and whether it returned an error.
	ObserveOp(op string, duration time.Duration, err bool)
}

// NewResumeMetrics returns a Prometheus-backed ResumeMetrics, or nil if
// metrics are not enabled.
func NewResumeMetrics() ResumeMetrics {
	if !IsEnabled() {
		return nil
	}
	return newPrometheusResumeMetrics()
}

var newPrometheusResumeMetrics func() ResumeMetrics

// RegisterResumeMetricsConstructor is called by
// pkg/metrics/prometheus/resume.go during package init.
func RegisterResumeMetricsConstructor(constructor func() ResumeMetrics) {
	newPrometheusResumeMetrics = constructor
}

func ObserveOp(m ResumeMetrics, op string, duration time.Duration, err bool) {
	if m != nil {
		m.ObserveOp(op, duration, err)
	}
}
