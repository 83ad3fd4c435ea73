package observability

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/platinummonkey/jukebox/pkg/contextkeys"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/trace"
)

// Log output formats
const (
	FormatText = "text"
	FormatJSON = "json"
)

// NewLogger creates a logrus logger with the given level and format.
// An empty level means info, an empty format means text.
func NewLogger(level, format string, output io.Writer) (*logrus.Logger, error) {
	if output == nil {
		output = os.Stderr
	}

	logger := logrus.New()
	logger.SetOutput(output)

	lvl, err := ParseLevel(level)
	if err != nil {
		return nil, err
	}
	logger.SetLevel(lvl)

	switch strings.ToLower(format) {
	case "", FormatText:
		logger.SetFormatter(&logrus.TextFormatter{
			FullTimestamp: true,
		})
	case FormatJSON:
		logger.SetFormatter(&logrus.JSONFormatter{})
	default:
		return nil, fmt.Errorf("unsupported log format %q (use %s or %s)", format, FormatText, FormatJSON)
	}

	return logger, nil
}

// ParseLevel parses a log level name, defaulting to info when empty
func ParseLevel(level string) (logrus.Level, error) {
	if level == "" {
		return logrus.InfoLevel, nil
	}
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		return logrus.InfoLevel, fmt.Errorf("invalid log level %q: %w", level, err)
	}
	return lvl, nil
}

// WithLogger attaches a log entry to the context
func WithLogger(ctx context.Context, entry *logrus.Entry) context.Context {
	return contextkeys.WithLogger(ctx, entry)
}

// FromContext returns the context's log entry, or one built on the standard
// logger. Trace and span IDs are attached when the context carries a
// recording span.
func FromContext(ctx context.Context) *logrus.Entry {
	entry, ok := contextkeys.GetLogger(ctx)
	if !ok {
		entry = logrus.NewEntry(logrus.StandardLogger())
	}
	return WithTraceContext(ctx, entry)
}

// WithTraceContext adds trace context to a log entry
func WithTraceContext(ctx context.Context, entry *logrus.Entry) *logrus.Entry {
	span := trace.SpanFromContext(ctx)
	if !span.IsRecording() {
		return entry
	}

	spanCtx := span.SpanContext()
	return entry.WithFields(logrus.Fields{
		"trace_id": spanCtx.TraceID().String(),
		"span_id":  spanCtx.SpanID().String(),
	})
}
