package metrics

// ManagerMetrics provides observability for the Upload Manager's fleet of
// tasks: creation rate, live status distribution, and task-level
// concurrency occupancy. Pass nil to manager.Config.Metrics to disable
// collection with zero overhead.
type ManagerMetrics interface {
	// RecordTaskCreated increments the tasks-created counter.
	RecordTaskCreated()

	// RecordTaskResumed increments the tasks-resumed-from-placeholder
	// counter.
	RecordTaskResumed()

	// SetStatusCount reports the live count of tasks currently in status.
	SetStatusCount(status string, count int)

	// SetActiveTasks reports the task-level Limiter's current in-flight
	// task count.
	SetActiveTasks(n int)
}

// NewManagerMetrics returns a Prometheus-backed ManagerMetrics, or nil if
// metrics are not enabled.
func NewManagerMetrics() ManagerMetrics {
	if !IsEnabled() {
		return nil
	}
	return newPrometheusManagerMetrics()
}

var newPrometheusManagerMetrics func() ManagerMetrics

// RegisterManagerMetricsConstructor is called by
// pkg/metrics/prometheus/manager.go during package init.
func RegisterManagerMetricsConstructor(constructor func() ManagerMetrics) {
	newPrometheusManagerMetrics = constructor
}

func RecordTaskCreated(m ManagerMetrics) {
	if m != nil {
		m.RecordTaskCreated()
	}
}

func RecordTaskResumed(m ManagerMetrics) {
	if m != nil {
		m.RecordTaskResumed()
	}
}

func SetStatusCount(m ManagerMetrics, status string, count int) {
	if m != nil {
		m.SetStatusCount(status, count)
	}
}

func SetActiveTasks(m ManagerMetrics, n int) {
	if m != nil {
		m.SetActiveTasks(n)
	}
}
