package prometheus

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/marmos91/chunkflow/pkg/metrics"
)

// managerMetrics is the Prometheus implementation of metrics.ManagerMetrics.
type managerMetrics struct {
	tasksCreated *prometheus.CounterVec
	tasksResumed prometheus.Counter
	statusCount  *prometheus.GaugeVec
	activeTasks  prometheus.Gauge
}

func newManagerMetrics() metrics.ManagerMetrics {
	reg := metrics.GetRegistry()

	return &managerMetrics{
		tasksCreated: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "chunkflow_manager_tasks_created_total",
				Help: "Total number of tasks created by the Upload Manager",
			},
			[]string{},
		),
		tasksResumed: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "chunkflow_manager_tasks_resumed_total",
			Help: "Total number of waiting-for-file placeholders rebound via resumeTask",
		}),
		statusCount: promauto.With(reg).NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "chunkflow_manager_task_status_count",
				Help: "Current number of live tasks in each status",
			},
			[]string{"status"},
		),
		activeTasks: promauto.With(reg).NewGauge(prometheus.GaugeOpts{
			Name: "chunkflow_manager_active_tasks",
			Help: "Current number of tasks actively dispatching under the task-level Limiter",
		}),
	}
}

func init() {
	metrics.RegisterManagerMetricsConstructor(newManagerMetrics)
}

func (m *managerMetrics) RecordTaskCreated() {
	m.tasksCreated.WithLabelValues().Inc()
}

func (m *managerMetrics) RecordTaskResumed() {
	m.tasksResumed.Inc()
}

func (m *managerMetrics) SetStatusCount(status string, count int) {
	m.statusCount.WithLabelValues(status).Set(float64(count))
}

func (m *managerMetrics) SetActiveTasks(n int) {
	m.activeTasks.Set(float64(n))
}
