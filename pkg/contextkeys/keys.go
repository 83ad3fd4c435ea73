// Package contextkeys provides centralized context key definitions
//
// IMPORTANT: All context keys used across the application must be defined here.
// Packages that cannot import each other (httputil and observability) share
// request-scoped values through these keys.
//
// USAGE PATTERN:
//
//	import "github.com/platinummonkey/jukebox/pkg/contextkeys"
//	ctx = contextkeys.WithRequestID(ctx, id)
//	id := contextkeys.GetRequestID(ctx)
package contextkeys

import (
	"context"

	"github.com/sirupsen/logrus"
)

// Key is the type for context keys to prevent collisions
type Key string

const (
	// RequestIDKey contains request ID string (UUID)
	// Set by: httputil.RequestIDMiddleware
	// Used by: Request logging, error responses
	// Type: string
	RequestIDKey Key = "request_id"

	// LoggerKey contains a request-scoped log entry
	// Set by: httputil.LoggingMiddleware, observability.WithLogger
	// Used by: observability.FromContext in API handlers
	// Type: *logrus.Entry
	LoggerKey Key = "logger"
)

// WithRequestID adds request ID to the context
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, RequestIDKey, requestID)
}

// GetRequestID retrieves the request ID, or "" when unset
func GetRequestID(ctx context.Context) string {
	id, _ := ctx.Value(RequestIDKey).(string)
	return id
}

// WithLogger adds a log entry to the context
func WithLogger(ctx context.Context, entry *logrus.Entry) context.Context {
	return context.WithValue(ctx, LoggerKey, entry)
}

// GetLogger retrieves the log entry
func GetLogger(ctx context.Context) (*logrus.Entry, bool) {
	entry, ok := ctx.Value(LoggerKey).(*logrus.Entry)
	return entry, ok && entry != nil
}
