package async

import (
	"context"
	"time"

	"github.com/platinummonkey/jukebox/pkg/observability"
	"github.com/sirupsen/logrus"
)

// Run executes fn with:
// - Context cancellation support
// - Panic recovery
// - Timeout enforcement (none when timeout <= 0)
// - Error logging
//
// A panic is returned as an *observability.PanicError.
//
// Example:
//
//	err := async.Run(ctx, time.Minute, "scheduled rescan", log, func(ctx context.Context) error {
//	    _, err := manager.Rescan(ctx)
//	    return err
//	})
func Run(parent context.Context, timeout time.Duration, taskName string, log logrus.FieldLogger, fn func(context.Context) error) (err error) {
	if log == nil {
		log = logrus.StandardLogger()
	}
	log = log.WithField("task", taskName)

	ctx := parent
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(parent, timeout)
		defer cancel()
	}

	defer func() {
		if err != nil {
			log.WithError(err).Warn("Background task failed")
		}
	}()
	defer observability.CapturePanic(&err, log, taskName)

	return fn(ctx)
}

// SafeGo is Run in a new goroutine. Use it instead of a bare `go func()` for
// work whose failure must not crash the process.
//
// Example:
//
//	async.SafeGo(context.Background(), 30*time.Second, "late deactivate", log, plugin.Deactivate)
func SafeGo(parent context.Context, timeout time.Duration, taskName string, log logrus.FieldLogger, fn func(context.Context) error) {
	go func() {
		_ = Run(parent, timeout, taskName, log, fn)
	}()
}
