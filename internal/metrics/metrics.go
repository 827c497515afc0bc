// Package metrics exposes Prometheus metrics for calendar imports.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Manager owns the import metrics and the registry they live in.
type Manager struct {
	namespace        string
	histogramBuckets []float64
	registry         *prometheus.Registry

	imports             *prometheus.CounterVec
	importDuration      prometheus.Histogram
	eventsParsed        prometheus.Counter
	eventsSkipped       prometheus.Counter
	reservationsUpdated prometheus.Counter
	keysUnresolved      prometheus.Counter
	httpRequests        *prometheus.CounterVec
}

// Option applies a configuration option to the Manager.
type Option func(*Manager)

// WithNamespace sets the namespace for all metrics.
func WithNamespace(namespace string) Option {
	return func(m *Manager) {
		if namespace != "" {
			m.namespace = namespace
		}
	}
}

// WithHistogramBuckets sets custom buckets for the import duration histogram.
func WithHistogramBuckets(buckets []float64) Option {
	return func(m *Manager) {
		if len(buckets) > 0 {
			m.histogramBuckets = buckets
		}
	}
}

// WithGoCollectors adds the Go runtime and process collectors.
func WithGoCollectors() Option {
	return func(m *Manager) {
		m.registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}
}

func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "semesterplan",
		histogramBuckets: prometheus.DefBuckets,
		registry:         prometheus.NewRegistry(),
	}
	for _, opt := range opts {
		opt(m)
	}

	m.imports = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: "import",
		Name:      "runs_total",
		Help:      "Calendar imports by outcome.",
	}, []string{"status"})
	m.importDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: "import",
		Name:      "duration_seconds",
		Help:      "Time spent parsing, reconciling and committing one import.",
		Buckets:   m.histogramBuckets,
	})
	m.eventsParsed = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: "import",
		Name:      "events_total",
		Help:      "VEVENT blocks read from uploaded calendars.",
	})
	m.eventsSkipped = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: "import",
		Name:      "events_skipped_total",
		Help:      "VEVENT blocks that contributed no appointment.",
	})
	m.reservationsUpdated = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: "import",
		Name:      "reservations_updated_total",
		Help:      "Reservations whose appointments were replaced.",
	})
	m.keysUnresolved = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: "import",
		Name:      "keys_unresolved_total",
		Help:      "Correlation keys that did not match a reservation.",
	})
	m.httpRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "HTTP requests by route and status code.",
	}, []string{"route", "code"})

	m.registry.MustRegister(
		m.imports,
		m.importDuration,
		m.eventsParsed,
		m.eventsSkipped,
		m.reservationsUpdated,
		m.keysUnresolved,
		m.httpRequests,
	)
	return m
}

func (m *Manager) ObserveImport(status string, d time.Duration) {
	m.imports.WithLabelValues(status).Inc()
	m.importDuration.Observe(d.Seconds())
}

func (m *Manager) AddEvents(parsed, skipped int) {
	m.eventsParsed.Add(float64(parsed))
	m.eventsSkipped.Add(float64(skipped))
}

func (m *Manager) AddReservations(updated, unresolved int) {
	m.reservationsUpdated.Add(float64(updated))
	m.keysUnresolved.Add(float64(unresolved))
}

func (m *Manager) ObserveHTTP(route string, code int) {
	m.httpRequests.WithLabelValues(route, strconv.Itoa(code)).Inc()
}

// Registry returns the registry backing this manager.
func (m *Manager) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Manager) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
