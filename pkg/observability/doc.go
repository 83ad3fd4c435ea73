// Package observability provides logging, metrics, tracing and health checks.
//
// # Overview
//
// Logging uses logrus with text (full timestamps) or JSON output. Plugin
// lifecycle measurements flow through the PluginRecorder interface, which is
// implemented by Prometheus (PluginMetrics) and OpenTelemetry (OTelMetrics)
// recorders and can fan out to both with MultiRecorder.
//
// # Usage Example
//
//	logger, err := observability.NewLogger("debug", "json", os.Stderr)
//
//	registry := prometheus.NewRegistry()
//	metrics := observability.NewPluginMetrics(registry)
//	router.Handle("/metrics", observability.MetricsHandler(registry))
//
//	providers, err := observability.InitOTel(ctx, observability.OTelConfig{
//		Enabled:     true,
//		Endpoint:    "localhost:4317",
//		ServiceName: "jukebox",
//		Insecure:    true,
//		SampleRatio: 0.25,
//	}, logger)
//	defer providers.Shutdown(ctx)
//
//	checker := observability.NewHealthChecker(version)
//	checker.Register("plugins", pluginCheck)
//	observability.RegisterHealthRoutes(router, checker)
//
// # Panics
//
// CapturePanic converts a panic into a *PanicError through a deferred call,
// which is how plugin hooks are isolated from the host process.
package observability
