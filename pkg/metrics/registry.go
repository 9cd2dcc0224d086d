// Package metrics provides nil-safe, Prometheus-backed observability for
// the engine's core packages (task, manager, resume) without forcing any
// of them to import Prometheus directly. Each concern's interface
// (TaskMetrics, ManagerMetrics, ResumeMetrics) lives here; its concrete
// implementation lives in pkg/metrics/prometheus and registers itself via
// RegisterXMetricsConstructor during package init, avoiding an import
// cycle between the two packages.
//
// Callers that never call InitRegistry get every NewXMetrics() constructor
// returning nil, and every free function in this package treats a nil
// receiver as a no-op: metrics collection is entirely opt-in and zero-cost
// when unused.
package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	registry *prometheus.Registry
	enabled  bool
)

// InitRegistry creates and installs a fresh Prometheus registry, enabling
// every NewXMetrics constructor in this package. Returns the registry so
// the caller can expose it over /metrics.
func InitRegistry() *prometheus.Registry {
	registry = prometheus.NewRegistry()
	enabled = true
	return registry
}

// InitRegistryWith installs reg as the registry metrics are registered
// against, enabling collection. Useful when the host process already owns
// a registry (e.g. to also collect Go runtime metrics on it).
func InitRegistryWith(reg *prometheus.Registry) {
	registry = reg
	enabled = true
}

// IsEnabled reports whether InitRegistry/InitRegistryWith has been called.
func IsEnabled() bool {
	return enabled
}

// GetRegistry returns the active registry, lazily creating one if metrics
// were enabled without an explicit Init call.
func GetRegistry() *prometheus.Registry {
	if registry == nil {
		registry = prometheus.NewRegistry()
	}
	return registry
}

// Disable turns collection back off. Intended for tests that need a clean
// slate between cases that each call InitRegistry.
func Disable() {
	enabled = false
	registry = nil
}
