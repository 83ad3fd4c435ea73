// Package async provides panic-safe execution for background work.
//
// # Overview
//
// Run wraps a task with a deadline, recovers panics into errors and logs
// failures. SafeGo does the same on a new goroutine. Both are used where work
// outlives the caller, such as deactivating a plugin whose activation finished
// after its deadline, or periodic rediscovery.
//
// # Usage
//
//	async.SafeGo(ctx, 30*time.Second, "late deactivate", log, func(ctx context.Context) error {
//		return plugin.Deactivate(ctx)
//	})
//
//	if err := async.Run(ctx, 0, "watch flush", log, flush); err != nil {
//		// already logged
//	}
//
// # Related Packages
//
//   - pkg/observability: Panic capture
//   - pkg/plugins: Hook cleanup
package async
