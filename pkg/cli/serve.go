package cli

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gorilla/mux"
	"github.com/platinummonkey/jukebox/pkg/async"
	"github.com/platinummonkey/jukebox/pkg/dependencies"
	"github.com/platinummonkey/jukebox/pkg/httputil"
	"github.com/platinummonkey/jukebox/pkg/observability"
	"github.com/platinummonkey/jukebox/pkg/plugins"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/sync/errgroup"
)

// maxRequestBytes caps request bodies on the status API
const maxRequestBytes = 1 << 20

func newServeCommand(a *app) *cobra.Command {
	var addr, schedule string
	var watch bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Load plugins and serve the status API",
		Long: `Load every plugin and keep them running behind an HTTP status API with
Prometheus metrics and health probes. Plugin files are watched for changes and
an optional cron schedule triggers periodic rediscovery. On SIGINT or SIGTERM
the server stops and all plugins are unloaded.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			flags := cmd.Flags()
			if flags.Changed("addr") {
				a.cfg.Server.Addr = addr
			}
			if flags.Changed("rescan") {
				a.cfg.Server.RescanSchedule = schedule
			}
			if flags.Changed("watch") {
				a.cfg.Server.Watch = watch
			}
			if err := a.cfg.Validate(); err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return a.serve(ctx)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (default from JUKEBOX_HTTP_ADDR)")
	cmd.Flags().StringVar(&schedule, "rescan", "", `Cron schedule for periodic rediscovery, e.g. "*/10 * * * *"`)
	cmd.Flags().BoolVar(&watch, "watch", true, "Watch plugin directories for changes")
	return cmd
}

func (a *app) serve(ctx context.Context) error {
	log := a.log
	obs := a.cfg.Observability

	providers, err := observability.InitOTel(ctx, observability.OTelConfig{
		Enabled:        obs.OTelEnabled,
		Endpoint:       obs.OTelEndpoint,
		ServiceName:    obs.OTelServiceName,
		ServiceVersion: obs.OTelServiceVersion,
		Insecure:       obs.OTelInsecure,
		SampleRatio:    obs.OTelSampleRatio,
		Attributes:     map[string]string{"jukebox.home": a.cfg.Home},
	}, log)
	if err != nil {
		return fmt.Errorf("failed to initialize OpenTelemetry: %w", err)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := observability.NewPluginMetrics(registry)

	recorder := observability.MultiRecorder{}
	if obs.MetricsEnabled {
		recorder = append(recorder, metrics)
	}
	if providers != nil {
		otelMetrics, err := observability.NewOTelMetrics()
		if err != nil {
			return err
		}
		recorder = append(recorder, otelMetrics)
	}

	m, err := a.newManager(recorder)
	if err != nil {
		return err
	}
	if _, err := m.Rescan(ctx); err != nil {
		return err
	}

	server := &http.Server{
		Addr:         a.cfg.Server.Addr,
		Handler:      newStatusHandler(m, metrics, registry, log),
		ReadTimeout:  a.cfg.Server.ReadTimeout,
		WriteTimeout: a.cfg.Server.WriteTimeout,
		IdleTimeout:  a.cfg.Server.IdleTimeout,
		BaseContext:  func(net.Listener) context.Context { return ctx },
	}

	shutdown := observability.NewShutdownManager(log, server, a.cfg.Server.ShutdownTimeout)
	shutdown.RegisterShutdownFunc("plugins", func(ctx context.Context) error {
		var errs []error
		for _, res := range m.UnloadAll(ctx) {
			if res.Err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", res.Name, res.Err))
			}
		}
		return errors.Join(errs...)
	})
	if providers != nil {
		shutdown.RegisterShutdownFunc("otel", providers.Shutdown)
	}

	var watcher *plugins.Watcher
	if a.cfg.Server.Watch {
		if watcher, err = plugins.NewWatcher(m, a.cfg.Server.WatchDebounce); err != nil {
			return err
		}
	}
	var scheduler *cron.Cron
	if spec := a.cfg.Server.RescanSchedule; spec != "" {
		scheduler = cron.New()
		if _, err := scheduler.AddFunc(spec, func() { rescan(ctx, m, log) }); err != nil {
			return fmt.Errorf("invalid rescan schedule: %w", err)
		}
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.WithField("addr", server.Addr).Info("Status server listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("status server: %w", err)
		}
		return nil
	})

	if watcher != nil {
		g.Go(func() error {
			if err := watcher.Run(gctx); err != nil && !errors.Is(err, context.Canceled) {
				return fmt.Errorf("watcher: %w", err)
			}
			return nil
		})
	}

	if scheduler != nil {
		scheduler.Start()
		g.Go(func() error {
			<-gctx.Done()
			<-scheduler.Stop().Done()
			return nil
		})
	}

	g.Go(func() error {
		return shutdown.WaitForShutdown(gctx)
	})

	return g.Wait()
}

func rescan(ctx context.Context, m *plugins.Manager, log *logrus.Logger) {
	if ctx.Err() != nil {
		return
	}
	err := async.Run(ctx, 0, "scheduled rescan", log, func(ctx context.Context) error {
		_, err := m.Rescan(ctx)
		return err
	})
	if err == nil {
		log.Debug("Scheduled rediscovery complete")
	}
}

// newStatusHandler assembles the status API: plugin and dependency routes
// under /api/v1, health probes and /metrics
func newStatusHandler(m *plugins.Manager, metrics *observability.PluginMetrics, gatherer prometheus.Gatherer, log *logrus.Logger) http.Handler {
	router := mux.NewRouter()
	router.Use(observability.HTTPMetricsMiddleware(metrics, routeTemplate))

	health := observability.NewHealthChecker(Version)
	health.Register("plugins", pluginHealth(m))
	observability.RegisterHealthRoutes(router, health)

	router.Handle("/metrics", observability.MetricsHandler(gatherer)).Methods("GET")

	api := router.PathPrefix("/api/v1").Subrouter()
	plugins.NewHandlers(m).RegisterRoutes(api)
	dependencies.NewDependencyHandlers(m).RegisterRoutes(api)

	handler := httputil.Chain(
		httputil.RequestIDMiddleware,
		httputil.RecoveryMiddleware(log),
		httputil.LoggingMiddleware(log),
		httputil.ContentTypeMiddleware,
		httputil.MaxBytesMiddleware(maxRequestBytes),
	)(router)
	return otelhttp.NewHandler(handler, "jukebox.status")
}

// routeTemplate labels metrics by route template to bound cardinality
func routeTemplate(r *http.Request) string {
	if route := mux.CurrentRoute(r); route != nil {
		if tpl, err := route.GetPathTemplate(); err == nil {
			return tpl
		}
	}
	return "unmatched"
}

// pluginHealth is unhealthy before the first discovery and degraded while any
// plugin has failed
func pluginHealth(m *plugins.Manager) observability.CheckFunc {
	return func(ctx context.Context) (string, string) {
		snap := m.Snapshot()
		if snap == nil {
			return observability.StatusUnhealthy, plugins.ErrNotDiscovered.Error()
		}
		failed := 0
		for _, st := range snap.Plugins {
			if st.State == plugins.StateFailed {
				failed++
			}
		}
		if failed > 0 {
			return observability.StatusDegraded, fmt.Sprintf("%d plugin(s) failed", failed)
		}
		return observability.StatusHealthy, fmt.Sprintf("%d plugin(s) discovered", len(snap.Plugins))
	}
}
