package observability

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer

	logger, err := NewLogger("debug", "json", &buf)
	require.NoError(t, err)
	assert.Equal(t, logrus.DebugLevel, logger.GetLevel())

	logger.WithField("plugin", "heartbeat").Debug("activated")

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "heartbeat", entry["plugin"])
	assert.Equal(t, "activated", entry["msg"])
}

func TestNewLogger_Defaults(t *testing.T) {
	logger, err := NewLogger("", "", nil)
	require.NoError(t, err)
	assert.Equal(t, logrus.InfoLevel, logger.GetLevel())
	assert.IsType(t, &logrus.TextFormatter{}, logger.Formatter)
}

func TestNewLogger_Invalid(t *testing.T) {
	_, err := NewLogger("loud", "text", nil)
	assert.Error(t, err)

	_, err = NewLogger("info", "xml", nil)
	assert.Error(t, err)
}

func TestFromContext(t *testing.T) {
	logger := logrus.New()
	entry := logger.WithField("component", "loader")

	ctx := WithLogger(context.Background(), entry)
	assert.Equal(t, "loader", FromContext(ctx).Data["component"])

	assert.NotNil(t, FromContext(context.Background()))
}

func TestCapturePanic(t *testing.T) {
	logger := logrus.New()
	logger.SetOutput(&bytes.Buffer{})

	hook := func() (err error) {
		defer CapturePanic(&err, logger, "test hook")
		panic("boom")
	}

	err := hook()
	var pe *PanicError
	require.True(t, errors.As(err, &pe))
	assert.Equal(t, "boom", pe.Value)
	assert.NotEmpty(t, pe.Stack)
	assert.Equal(t, "panic: boom", err.Error())
}

func TestRecoverPanic(t *testing.T) {
	var buf bytes.Buffer
	logger := logrus.New()
	logger.SetOutput(&buf)

	assert.NotPanics(t, func() {
		defer RecoverPanic(logger, "worker")
		panic("oops")
	})
	assert.Contains(t, buf.String(), "PANIC recovered")

	assert.NoError(t, MustRecover(nil))
	assert.Error(t, MustRecover("x"))
}

func TestPluginMetrics(t *testing.T) {
	registry := prometheus.NewRegistry()
	m := NewPluginMetrics(registry)
	ctx := context.Background()

	m.RecordDiscovery(ctx, 20*time.Millisecond, 4)
	m.RecordDiagnostic(ctx, "CycleDetected", "error")
	m.RecordActivation(ctx, "a", OutcomeSuccess, time.Millisecond)
	m.RecordActivation(ctx, "b", OutcomeFailure, time.Millisecond)
	m.RecordDeactivation(ctx, "a", OutcomeSuccess)
	m.SetPluginState(ctx, "a", "", "Planned")
	m.SetPluginState(ctx, "a", "Planned", "Active")

	assert.Equal(t, float64(4), testutil.ToFloat64(m.CatalogSize))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.DiagnosticsTotal.WithLabelValues("CycleDetected", "error")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.ActivationsTotal.WithLabelValues("b", OutcomeFailure)))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.DeactivationsTotal.WithLabelValues("a", OutcomeSuccess)))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.PluginState.WithLabelValues("a", "Active")))
	assert.Equal(t, 1, testutil.CollectAndCount(m.PluginState))
}

type countingRecorder struct {
	NopRecorder
	activations int
}

func (c *countingRecorder) RecordActivation(context.Context, string, string, time.Duration) {
	c.activations++
}

func TestMultiRecorder(t *testing.T) {
	a, b := &countingRecorder{}, &countingRecorder{}
	var rec PluginRecorder = MultiRecorder{a, b, NopRecorder{}}

	rec.RecordActivation(context.Background(), "x", OutcomeSuccess, 0)
	assert.Equal(t, 1, a.activations)
	assert.Equal(t, 1, b.activations)
}

func TestHTTPMetricsMiddleware(t *testing.T) {
	registry := prometheus.NewRegistry()
	m := NewPluginMetrics(registry)

	handler := HTTPMetricsMiddleware(m, func(*http.Request) string { return "/plugins/{name}" })(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNotFound)
		}),
	)

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/plugins/x", nil))

	assert.Equal(t, float64(1), testutil.ToFloat64(m.HTTPRequestsTotal.WithLabelValues("GET", "/plugins/{name}", "404")))

	w := httptest.NewRecorder()
	MetricsHandler(registry).ServeHTTP(w, httptest.NewRequest("GET", "/metrics", nil))
	assert.Contains(t, w.Body.String(), "jukebox_http_requests_total")
}

func TestHealthChecker(t *testing.T) {
	checker := NewHealthChecker("1.2.3")
	router := mux.NewRouter()
	RegisterHealthRoutes(router, checker)

	checker.Register("plugins", func(context.Context) (string, string) { return StatusDegraded, "1 failed" })

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest("GET", "/health/ready", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var status HealthStatus
	require.NoError(t, json.NewDecoder(w.Body).Decode(&status))
	assert.Equal(t, StatusDegraded, status.Status)
	assert.Equal(t, "1.2.3", status.Version)
	assert.Equal(t, "1 failed", status.Dependencies["plugins"].Message)

	checker.Register("disk", func(context.Context) (string, string) { return StatusUnhealthy, "full" })
	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest("GET", "/health", nil))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest("GET", "/health/live", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestShutdownManager(t *testing.T) {
	logger := logrus.New()
	logger.SetOutput(&bytes.Buffer{})

	sm := NewShutdownManager(logger, nil, time.Second)

	var order []string
	sm.RegisterShutdownFunc("first", func(context.Context) error {
		order = append(order, "first")
		return errors.New("failed")
	})
	sm.RegisterShutdownFunc("second", func(context.Context) error {
		order = append(order, "second")
		return nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := sm.WaitForShutdown(ctx)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "first")
	assert.Equal(t, []string{"first", "second"}, order)
}

func TestInitOTel_Disabled(t *testing.T) {
	providers, err := InitOTel(context.Background(), OTelConfig{}, logrus.New())
	require.NoError(t, err)
	assert.Nil(t, providers)
	assert.NoError(t, providers.Shutdown(context.Background()))
}

func TestSampler(t *testing.T) {
	assert.Contains(t, sampler(1).Description(), "AlwaysOnSampler")
	assert.Contains(t, sampler(0).Description(), "AlwaysOffSampler")
	assert.Contains(t, sampler(0.5).Description(), "TraceIDRatioBased{0.5}")
}
