package observability

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// PluginRecorder receives plugin lifecycle measurements
type PluginRecorder interface {
	RecordDiscovery(ctx context.Context, duration time.Duration, plugins int)
	RecordDiagnostic(ctx context.Context, kind, severity string)
	RecordActivation(ctx context.Context, plugin, outcome string, duration time.Duration)
	RecordDeactivation(ctx context.Context, plugin, outcome string)
	// SetPluginState moves a plugin's state gauge from one state to another.
	// from is empty for the first transition.
	SetPluginState(ctx context.Context, plugin, from, to string)
}

// Activation and deactivation outcomes
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
	OutcomeTimeout = "timeout"
	OutcomeSkipped = "skipped"
)

// PluginMetrics holds the Prometheus plugin metrics
type PluginMetrics struct {
	DiscoveryDuration   prometheus.Histogram
	CatalogSize         prometheus.Gauge
	DiagnosticsTotal    *prometheus.CounterVec
	ActivationsTotal    *prometheus.CounterVec
	ActivationDuration  *prometheus.HistogramVec
	DeactivationsTotal  *prometheus.CounterVec
	PluginState         *prometheus.GaugeVec
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
}

// NewPluginMetrics creates and registers the plugin metrics
func NewPluginMetrics(registry prometheus.Registerer) *PluginMetrics {
	m := &PluginMetrics{
		DiscoveryDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "jukebox_discovery_duration_seconds",
				Help:    "Time spent resolving paths, scanning manifests and planning",
				Buckets: prometheus.DefBuckets,
			},
		),
		CatalogSize: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "jukebox_catalog_plugins",
				Help: "Number of plugins in the current catalog",
			},
		),
		DiagnosticsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "jukebox_diagnostics_total",
				Help: "Total number of diagnostics emitted",
			},
			[]string{"kind", "severity"},
		),
		ActivationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "jukebox_activations_total",
				Help: "Total number of plugin activations by outcome",
			},
			[]string{"plugin", "outcome"},
		),
		ActivationDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "jukebox_activation_duration_seconds",
				Help:    "Plugin activation duration in seconds",
				Buckets: []float64{.001, .005, .01, .05, .1, .5, 1, 5, 10, 30},
			},
			[]string{"plugin"},
		),
		DeactivationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "jukebox_deactivations_total",
				Help: "Total number of plugin deactivations by outcome",
			},
			[]string{"plugin", "outcome"},
		),
		PluginState: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "jukebox_plugin_state",
				Help: "1 for the current lifecycle state of each plugin",
			},
			[]string{"plugin", "state"},
		),
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "jukebox_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "jukebox_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
	}

	registry.MustRegister(
		m.DiscoveryDuration,
		m.CatalogSize,
		m.DiagnosticsTotal,
		m.ActivationsTotal,
		m.ActivationDuration,
		m.DeactivationsTotal,
		m.PluginState,
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
	)

	return m
}

func (m *PluginMetrics) RecordDiscovery(_ context.Context, duration time.Duration, plugins int) {
	m.DiscoveryDuration.Observe(duration.Seconds())
	m.CatalogSize.Set(float64(plugins))
}

func (m *PluginMetrics) RecordDiagnostic(_ context.Context, kind, severity string) {
	m.DiagnosticsTotal.WithLabelValues(kind, severity).Inc()
}

func (m *PluginMetrics) RecordActivation(_ context.Context, plugin, outcome string, duration time.Duration) {
	m.ActivationsTotal.WithLabelValues(plugin, outcome).Inc()
	if outcome != OutcomeSkipped {
		m.ActivationDuration.WithLabelValues(plugin).Observe(duration.Seconds())
	}
}

func (m *PluginMetrics) RecordDeactivation(_ context.Context, plugin, outcome string) {
	m.DeactivationsTotal.WithLabelValues(plugin, outcome).Inc()
}

func (m *PluginMetrics) SetPluginState(_ context.Context, plugin, from, to string) {
	if from != "" && from != to {
		m.PluginState.DeleteLabelValues(plugin, from)
	}
	m.PluginState.WithLabelValues(plugin, to).Set(1)
}

// MultiRecorder fans measurements out to several recorders
type MultiRecorder []PluginRecorder

func (r MultiRecorder) RecordDiscovery(ctx context.Context, duration time.Duration, plugins int) {
	for _, rec := range r {
		rec.RecordDiscovery(ctx, duration, plugins)
	}
}

func (r MultiRecorder) RecordDiagnostic(ctx context.Context, kind, severity string) {
	for _, rec := range r {
		rec.RecordDiagnostic(ctx, kind, severity)
	}
}

func (r MultiRecorder) RecordActivation(ctx context.Context, plugin, outcome string, duration time.Duration) {
	for _, rec := range r {
		rec.RecordActivation(ctx, plugin, outcome, duration)
	}
}

func (r MultiRecorder) RecordDeactivation(ctx context.Context, plugin, outcome string) {
	for _, rec := range r {
		rec.RecordDeactivation(ctx, plugin, outcome)
	}
}

func (r MultiRecorder) SetPluginState(ctx context.Context, plugin, from, to string) {
	for _, rec := range r {
		rec.SetPluginState(ctx, plugin, from, to)
	}
}

// NopRecorder discards all measurements
type NopRecorder struct{}

func (NopRecorder) RecordDiscovery(context.Context, time.Duration, int)              {}
func (NopRecorder) RecordDiagnostic(context.Context, string, string)                 {}
func (NopRecorder) RecordActivation(context.Context, string, string, time.Duration) {}
func (NopRecorder) RecordDeactivation(context.Context, string, string)               {}
func (NopRecorder) SetPluginState(context.Context, string, string, string)           {}

// responseWriter wraps http.ResponseWriter to capture status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// RouteFunc returns the label used for a request path. Route templates keep
// label cardinality bounded.
type RouteFunc func(r *http.Request) string

// HTTPMetricsMiddleware instruments HTTP requests with Prometheus metrics
func HTTPMetricsMiddleware(metrics *PluginMetrics, route RouteFunc) func(http.Handler) http.Handler {
	if route == nil {
		route = func(r *http.Request) string { return r.URL.Path }
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			rw := &responseWriter{
				ResponseWriter: w,
				statusCode:     http.StatusOK,
			}

			next.ServeHTTP(rw, r)

			path := route(r)
			metrics.HTTPRequestsTotal.WithLabelValues(r.Method, path, strconv.Itoa(rw.statusCode)).Inc()
			metrics.HTTPRequestDuration.WithLabelValues(r.Method, path).Observe(time.Since(start).Seconds())
		})
	}
}

// MetricsHandler serves the registry in the Prometheus exposition format
func MetricsHandler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
