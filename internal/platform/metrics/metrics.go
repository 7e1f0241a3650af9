package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds Prometheus counters and gauges for playback sessions and the
// control API.
type Metrics struct {
	registry       *prometheus.Registry
	requestsTotal  *prometheus.CounterVec
	httpErrors     *prometheus.CounterVec
	requestSeconds *prometheus.HistogramVec
	loadsTotal     *prometheus.CounterVec
	tracksTotal    *prometheus.CounterVec
	errorsTotal    *prometheus.CounterVec
	endOfStream    prometheus.Counter
	activeSessions prometheus.Gauge
}

// New creates and registers Prometheus metrics on a private registry.
func New() *Metrics {
	registry := prometheus.NewRegistry()

	requestsTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "playback_http_requests_total",
		Help: "HTTP requests by route pattern, method and status code",
	}, []string{"route", "method", "status"})
	httpErrors := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "playback_http_errors_total",
		Help: "HTTP responses with error status (4xx or 5xx) by route pattern",
	}, []string{"route"})
	requestSeconds := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "playback_http_request_duration_seconds",
		Help:    "HTTP request latency by route pattern",
		Buckets: prometheus.DefBuckets,
	}, []string{"route"})
	loadsTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "playback_loads_total",
		Help: "Session loads by outcome (ready, failed)",
	}, []string{"outcome"})
	tracksTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "playback_tracks_total",
		Help: "Track pipeline results by kind and outcome (ready, absent, degraded)",
	}, []string{"kind", "outcome"})
	errorsTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "playback_errors_total",
		Help: "Diagnostics surfaced by the playback core by error kind",
	}, []string{"kind"})
	endOfStream := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "playback_end_of_stream_total",
		Help: "Number of sessions that signalled end of stream",
	})
	activeSessions := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "playback_active_sessions",
		Help: "Number of sessions currently registered",
	})

	registry.MustRegister(
		requestsTotal,
		httpErrors,
		requestSeconds,
		loadsTotal,
		tracksTotal,
		errorsTotal,
		endOfStream,
		activeSessions,
	)

	return &Metrics{
		registry:       registry,
		requestsTotal:  requestsTotal,
		httpErrors:     httpErrors,
		requestSeconds: requestSeconds,
		loadsTotal:     loadsTotal,
		tracksTotal:    tracksTotal,
		errorsTotal:    errorsTotal,
		endOfStream:    endOfStream,
		activeSessions: activeSessions,
	}
}

// ObserveRequest records one served request against its route pattern.
func (m *Metrics) ObserveRequest(route, method string, status int, elapsed time.Duration) {
	m.requestsTotal.WithLabelValues(route, method, strconv.Itoa(status)).Inc()
	m.requestSeconds.WithLabelValues(route).Observe(elapsed.Seconds())
	if status >= http.StatusBadRequest {
		m.httpErrors.WithLabelValues(route).Inc()
	}
}

// IncLoads counts a finished load.
func (m *Metrics) IncLoads(outcome string) {
	m.loadsTotal.WithLabelValues(outcome).Inc()
}

// IncTracks counts a track pipeline result.
func (m *Metrics) IncTracks(kind, outcome string) {
	m.tracksTotal.WithLabelValues(kind, outcome).Inc()
}

// IncErrors counts a surfaced diagnostic.
func (m *Metrics) IncErrors(kind string) {
	m.errorsTotal.WithLabelValues(kind).Inc()
}

// IncEndOfStream counts an end-of-stream signal.
func (m *Metrics) IncEndOfStream() {
	m.endOfStream.Inc()
}

// SetActiveSessions sets the active sessions gauge.
func (m *Metrics) SetActiveSessions(n int) {
	m.activeSessions.Set(float64(n))
}

// Requests returns the request counter for a route, method and status.
// Intended for tests.
func (m *Metrics) Requests(route, method string, status int) prometheus.Counter {
	return m.requestsTotal.WithLabelValues(route, method, strconv.Itoa(status))
}

// HTTPErrors returns the error response counter for a route. Intended for
// tests.
func (m *Metrics) HTTPErrors(route string) prometheus.Counter {
	return m.httpErrors.WithLabelValues(route)
}

// Loads returns the counter for a load outcome. Intended for tests.
func (m *Metrics) Loads(outcome string) prometheus.Counter {
	return m.loadsTotal.WithLabelValues(outcome)
}

// Tracks returns the counter for a track outcome. Intended for tests.
func (m *Metrics) Tracks(kind, outcome string) prometheus.Counter {
	return m.tracksTotal.WithLabelValues(kind, outcome)
}

// Errors returns the counter for an error kind. Intended for tests.
func (m *Metrics) Errors(kind string) prometheus.Counter {
	return m.errorsTotal.WithLabelValues(kind)
}

// Handler returns an http.Handler that serves Prometheus metrics.
// updateGauges is called before each scrape to refresh gauge values (e.g. active sessions).
func (m *Metrics) Handler(updateGauges func()) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if updateGauges != nil {
			updateGauges()
		}
		promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{}).ServeHTTP(w, r)
	})
}
