package cli

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/platinummonkey/jukebox/pkg/addons"
	"github.com/platinummonkey/jukebox/pkg/observability"
	"github.com/platinummonkey/jukebox/pkg/plugins"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newServedManager(t *testing.T) (*plugins.Manager, http.Handler) {
	t.Helper()
	logger := logrus.New()
	logger.SetOutput(io.Discard)

	registry := prometheus.NewRegistry()
	metrics := observability.NewPluginMetrics(registry)

	factories := plugins.NewRegistry()
	require.NoError(t, addons.Register(factories))
	m := plugins.NewManager(plugins.Options{
		Sources:   []plugins.PathSource{{Name: plugins.SourceBuiltin, Entries: []string{builtinDir(t)}}},
		Registry:  factories,
		ConfigDir: t.TempDir(),
		Logger:    logger,
		Recorder:  metrics,
	})
	t.Cleanup(func() { m.UnloadAll(context.Background()) })

	return m, newStatusHandler(m, metrics, registry, logger)
}

func get(h http.Handler, path string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest("GET", path, nil))
	return rec
}

func TestStatusHandler_BeforeDiscovery(t *testing.T) {
	_, h := newServedManager(t)

	rec := get(h, "/health")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	rec = get(h, "/health/live")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = get(h, "/api/v1/plugins")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}

func TestStatusHandler_Routes(t *testing.T) {
	m, h := newServedManager(t)
	_, err := m.Rescan(context.Background())
	require.NoError(t, err)

	rec := get(h, "/api/v1/plugins?state=active")
	require.Equal(t, http.StatusOK, rec.Code)
	var statuses []plugins.Status
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &statuses))
	assert.Len(t, statuses, 2)

	rec = get(h, "/api/v1/plan")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"order":["heartbeat","greeter"]`)

	rec = get(h, "/api/v1/plugins/greeter/dependencies")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = get(h, "/health")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"healthy"`)

	rec = get(h, "/metrics")
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "jukebox_activations_total")
	assert.Contains(t, body, `path="/api/v1/plugins"`)
}

func TestStatusHandler_ValidateConfigContentType(t *testing.T) {
	m, h := newServedManager(t)
	_, err := m.Discover(context.Background())
	require.NoError(t, err)

	req := httptest.NewRequest("POST", "/api/v1/plugins/heartbeat/config/validate", strings.NewReader(`interval_ms=5`))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnsupportedMediaType, rec.Code)

	req = httptest.NewRequest("POST", "/api/v1/plugins/heartbeat/config/validate", strings.NewReader(`{"interval_ms": 5}`))
	req.Header.Set("Content-Type", "application/json")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "OutOfRange")
}

func TestPluginHealth(t *testing.T) {
	isolateEnv(t)
	m, _ := newServedManager(t)
	check := pluginHealth(m)

	status, _ := check(context.Background())
	assert.Equal(t, observability.StatusUnhealthy, status)

	_, err := m.Rescan(context.Background())
	require.NoError(t, err)
	status, msg := check(context.Background())
	assert.Equal(t, observability.StatusHealthy, status)
	assert.Equal(t, "2 plugin(s) discovered", msg)
}

func TestRouteTemplate(t *testing.T) {
	req := httptest.NewRequest("GET", "/nowhere", nil)
	assert.Equal(t, "unmatched", routeTemplate(req))
}
