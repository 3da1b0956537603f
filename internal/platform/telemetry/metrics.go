package telemetry

import (
	"context"
	"net/http"

	"github.com/phrazzld/autobuild/internal/domain"
	"github.com/phrazzld/autobuild/internal/events"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "autobuild"

var allStatuses = []domain.TaskStatus{
	domain.TaskStatusPending,
	domain.TaskStatusInProgress,
	domain.TaskStatusCompleted,
	domain.TaskStatusFailed,
}

// Metrics counts notices and tracks the task collection by status. It is
// both an events.Notifier and a bus subscriber.
type Metrics struct {
	registry *prometheus.Registry

	notices  *prometheus.CounterVec
	tasks    *prometheus.GaugeVec
	snapshot prometheus.Counter
}

// NewMetrics registers the collectors on a new registry, along with the
// Go runtime and process collectors.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		notices: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notices_total",
			Help:      "Notices emitted, labelled by kind.",
		}, []string{"kind"}),
		tasks: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "tasks",
			Help:      "Tasks in the collection, labelled by status.",
		}, []string{"status"}),
		snapshot: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "snapshots_total",
			Help:      "Collection snapshots published on the bus.",
		}),
	}
}

// Registry returns the registry the collectors are registered on.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Notify implements events.Notifier.
func (m *Metrics) Notify(_ context.Context, notice events.Notice) error {
	m.notices.WithLabelValues(string(notice.Kind)).Inc()
	return nil
}

// Observe is an events.Subscriber that records the size of the collection
// per status.
func (m *Metrics) Observe(_ context.Context, tasks []domain.Task) error {
	counts := make(map[domain.TaskStatus]int, len(allStatuses))
	for _, t := range tasks {
		counts[t.Status]++
	}
	for _, status := range allStatuses {
		m.tasks.WithLabelValues(string(status)).Set(float64(counts[status]))
	}
	m.snapshot.Inc()
	return nil
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
