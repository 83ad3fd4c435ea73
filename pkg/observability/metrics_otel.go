package observability

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// OTelMetrics records plugin lifecycle measurements with OpenTelemetry instruments
type OTelMetrics struct {
	discoveryDuration  metric.Float64Histogram
	catalogSize        metric.Int64Gauge
	diagnosticsTotal   metric.Int64Counter
	activationsTotal   metric.Int64Counter
	activationDuration metric.Float64Histogram
	deactivationsTotal metric.Int64Counter
	pluginState        metric.Int64Gauge
}

// NewOTelMetrics creates instruments on the global meter provider
func NewOTelMetrics() (*OTelMetrics, error) {
	meter := otel.Meter("github.com/platinummonkey/jukebox")

	m := &OTelMetrics{}
	var err error

	m.discoveryDuration, err = meter.Float64Histogram(
		"jukebox.discovery.duration",
		metric.WithDescription("Time spent resolving paths, scanning manifests and planning"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create discovery_duration histogram: %w", err)
	}

	m.catalogSize, err = meter.Int64Gauge(
		"jukebox.catalog.plugins",
		metric.WithDescription("Number of plugins in the current catalog"),
		metric.WithUnit("{plugin}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create catalog_plugins gauge: %w", err)
	}

	m.diagnosticsTotal, err = meter.Int64Counter(
		"jukebox.diagnostics",
		metric.WithDescription("Total number of diagnostics emitted"),
		metric.WithUnit("{diagnostic}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create diagnostics counter: %w", err)
	}

	m.activationsTotal, err = meter.Int64Counter(
		"jukebox.activations",
		metric.WithDescription("Total number of plugin activations by outcome"),
		metric.WithUnit("{activation}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create activations counter: %w", err)
	}

	m.activationDuration, err = meter.Float64Histogram(
		"jukebox.activation.duration",
		metric.WithDescription("Plugin activation duration in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create activation_duration histogram: %w", err)
	}

	m.deactivationsTotal, err = meter.Int64Counter(
		"jukebox.deactivations",
		metric.WithDescription("Total number of plugin deactivations by outcome"),
		metric.WithUnit("{deactivation}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create deactivations counter: %w", err)
	}

	m.pluginState, err = meter.Int64Gauge(
		"jukebox.plugin.state",
		metric.WithDescription("1 for the current lifecycle state of each plugin"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create plugin_state gauge: %w", err)
	}

	return m, nil
}

func (m *OTelMetrics) RecordDiscovery(ctx context.Context, duration time.Duration, plugins int) {
	m.discoveryDuration.Record(ctx, duration.Seconds())
	m.catalogSize.Record(ctx, int64(plugins))
}

func (m *OTelMetrics) RecordDiagnostic(ctx context.Context, kind, severity string) {
	m.diagnosticsTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String("kind", kind),
		attribute.String("severity", severity),
	))
}

func (m *OTelMetrics) RecordActivation(ctx context.Context, plugin, outcome string, duration time.Duration) {
	attrs := metric.WithAttributes(
		attribute.String("plugin", plugin),
		attribute.String("outcome", outcome),
	)
	m.activationsTotal.Add(ctx, 1, attrs)
	if outcome != OutcomeSkipped {
		m.activationDuration.Record(ctx, duration.Seconds(), attrs)
	}
}

func (m *OTelMetrics) RecordDeactivation(ctx context.Context, plugin, outcome string) {
	m.deactivationsTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String("plugin", plugin),
		attribute.String("outcome", outcome),
	))
}

func (m *OTelMetrics) SetPluginState(ctx context.Context, plugin, from, to string) {
	if from != "" && from != to {
		m.pluginState.Record(ctx, 0, metric.WithAttributes(
			attribute.String("plugin", plugin),
			attribute.String("state", from),
		))
	}
	m.pluginState.Record(ctx, 1, metric.WithAttributes(
		attribute.String("plugin", plugin),
		attribute.String("state", to),
	))
}
