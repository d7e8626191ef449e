package monitoring

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics. Every recording method is safe on a
// nil receiver so components can run without instrumentation in tests.
type Metrics struct {
	registry *prometheus.Registry

	// HTTP metrics
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec

	// Script fetch/cache metrics
	ScriptFetches *prometheus.CounterVec
	FetchDuration prometheus.Histogram
	CacheLookups  *prometheus.CounterVec

	// Relay metrics
	RelayMessages   *prometheus.CounterVec
	RelayDropped    *prometheus.CounterVec
	PendingRequests prometheus.Gauge
	PendingTimeouts prometheus.Counter

	// Mod metrics
	ModExecutions *prometheus.CounterVec
	Registered    *prometheus.GaugeVec

	// Connection metrics
	Tabs          prometheus.Gauge
	WSConnections prometheus.Gauge
}

// NewMetrics creates a collector set on its own registry, so several
// instances can coexist in one process.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,

		RequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "modbridge_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		RequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "modbridge_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"method", "path"},
		),

		ScriptFetches: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "modbridge_script_fetches_total",
				Help: "Remote script fetches by result",
			},
			[]string{"result"},
		),
		FetchDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "modbridge_script_fetch_duration_seconds",
				Help:    "Remote script fetch duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
		),
		CacheLookups: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "modbridge_script_cache_lookups_total",
				Help: "Script cache lookups by the tier that answered",
			},
			[]string{"tier"},
		),

		RelayMessages: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "modbridge_relay_messages_total",
				Help: "Relay messages by channel, direction and kind",
			},
			[]string{"channel", "direction", "kind"},
		),
		RelayDropped: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "modbridge_relay_dropped_total",
				Help: "Relay messages dropped by channel and reason",
			},
			[]string{"channel", "reason"},
		),
		PendingRequests: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "modbridge_pending_requests",
				Help: "Page requests awaiting a response",
			},
		),
		PendingTimeouts: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "modbridge_pending_timeouts_total",
				Help: "Page requests evicted after their deadline",
			},
		),

		ModExecutions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "modbridge_mod_executions_total",
				Help: "Mod executions by kind and result",
			},
			[]string{"kind", "result"},
		),
		Registered: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "modbridge_registered_mods",
				Help: "Registered mods by kind",
			},
			[]string{"kind"},
		),

		Tabs: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "modbridge_tabs_attached",
				Help: "Pages attached to the coordinator",
			},
		),
		WSConnections: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "modbridge_ws_connections",
				Help: "Open bridge websocket connections",
			},
		),
	}
}

// Registry returns the registry backing m.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the Prometheus exposition format for m.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// RecordHTTPRequest records an HTTP request
func (m *Metrics) RecordHTTPRequest(method, path, status string, duration time.Duration) {
	if m == nil {
		return
	}
	m.RequestsTotal.WithLabelValues(method, path, status).Inc()
	m.RequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// RecordFetch records a remote script fetch outcome
func (m *Metrics) RecordFetch(result string, duration time.Duration) {
	if m == nil {
		return
	}
	m.ScriptFetches.WithLabelValues(result).Inc()
	m.FetchDuration.Observe(duration.Seconds())
}

// RecordCacheLookup records which cache tier answered a lookup
func (m *Metrics) RecordCacheLookup(tier string) {
	if m == nil {
		return
	}
	m.CacheLookups.WithLabelValues(tier).Inc()
}

// RecordRelayMessage records a relayed message
func (m *Metrics) RecordRelayMessage(channel, direction, kind string) {
	if m == nil {
		return
	}
	m.RelayMessages.WithLabelValues(channel, direction, kind).Inc()
}

// RecordRelayDropped records a dropped message
func (m *Metrics) RecordRelayDropped(channel, reason string) {
	if m == nil {
		return
	}
	m.RelayDropped.WithLabelValues(channel, reason).Inc()
}

// SetPending sets the number of in-flight page requests
func (m *Metrics) SetPending(n int) {
	if m == nil {
		return
	}
	m.PendingRequests.Set(float64(n))
}

// IncPendingTimeouts increments the pending timeout counter
func (m *Metrics) IncPendingTimeouts() {
	if m == nil {
		return
	}
	m.PendingTimeouts.Inc()
}

// RecordExecution records a mod execution outcome
func (m *Metrics) RecordExecution(kind, result string) {
	if m == nil {
		return
	}
	m.ModExecutions.WithLabelValues(kind, result).Inc()
}

// SetRegistered sets the number of registered mods of a kind
func (m *Metrics) SetRegistered(kind string, n int) {
	if m == nil {
		return
	}
	m.Registered.WithLabelValues(kind).Set(float64(n))
}

// SetTabs sets the number of attached tabs
func (m *Metrics) SetTabs(n int) {
	if m == nil {
		return
	}
	m.Tabs.Set(float64(n))
}

// IncWSConnections increments WebSocket connections
func (m *Metrics) IncWSConnections() {
	if m == nil {
		return
	}
	m.WSConnections.Inc()
}

// DecWSConnections decrements WebSocket connections
func (m *Metrics) DecWSConnections() {
	if m == nil {
		return
	}
	m.WSConnections.Dec()
}
