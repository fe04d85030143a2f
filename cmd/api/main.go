package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/noah-isme/backend-koperasi/internal/app"
	"github.com/noah-isme/backend-koperasi/internal/config"
	"github.com/noah-isme/backend-koperasi/internal/health"
	"github.com/noah-isme/backend-koperasi/internal/obs"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}
	logger := obs.NewLogger(cfg.Obs.LogFormat, cfg.Obs.LogLevel).With().
		Str("env", cfg.AppEnv).
		Str("component", "api").
		Logger()

	if err := run(cfg, logger); err != nil {
		logger.Error().Err(err).Msg("api stopped with error")
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger zerolog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var httpMetrics *obs.HTTPMetrics
	if cfg.Obs.MetricsEnabled {
		obs.MustRegisterDomainMetrics(cfg.Obs.MetricsNamespace, nil)
		httpMetrics = obs.NewHTTPMetrics(cfg.Obs.MetricsNamespace, obs.ParseBucketsCSV(cfg.Obs.MetricsBuckets), nil)
	}

	tracing := cfg.Obs.TracingEnabled
	if tracing {
		flush, err := obs.InitTracer(ctx, obs.TracingConfig{
			ServiceName:   "koperasi-api",
			Endpoint:      cfg.Obs.OTLPEndpoint,
			Exporter:      cfg.Obs.TracingExporter,
			SamplingRatio: cfg.Obs.SamplingRatio,
			Environment:   cfg.AppEnv,
		})
		if err != nil {
			// serve without traces rather than not at all
			logger.Error().Err(err).Msg("tracing disabled")
			tracing = false
		} else {
			defer func() {
				if err := flush(context.WithoutCancel(ctx)); err != nil {
					logger.Warn().Err(err).Msg("flush traces")
				}
			}()
		}
	}

	openCtx, cancelOpen := context.WithTimeout(ctx, 10*time.Second)
	deps, err := app.Open(openCtx, cfg, "koperasi-api", logger)
	cancelOpen()
	if err != nil {
		return err
	}
	defer func() {
		if err := deps.Close(); err != nil {
			logger.Warn().Err(err).Msg("close dependencies")
		}
	}()

	handler, err := newRouter(cfg, logger, deps, routerOptions{
		HTTPMetrics:    httpMetrics,
		TracingEnabled: tracing,
		Extra:          opsRoutes(cfg),
	})
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr:              cfg.HTTPAddr(),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       2 * time.Minute,
	}
	serveErr := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", srv.Addr).Str("db_driver", cfg.DBDriver).Msg("api listening")
		serveErr <- srv.ListenAndServe()
	}()

	select {
	case err := <-serveErr:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	// fail readiness first so the balancer stops routing new checkouts here
	health.SetReady(false)
	logger.Info().Dur("timeout", cfg.ShutdownTimeout).Msg("draining")
	drainCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(drainCtx); err != nil {
		return err
	}
	logger.Info().Msg("api stopped")
	return nil
}

// opsRoutes mounts /metrics and, when enabled, pprof under /debug.
func opsRoutes(cfg *config.Config) func(chi.Router) {
	return func(r chi.Router) {
		if cfg.Obs.MetricsEnabled {
			r.Handle("/metrics", promhttp.Handler())
		}
		if !cfg.Obs.PprofEnabled {
			return
		}
		r.Group(func(g chi.Router) {
			if cfg.Obs.PprofUser != "" {
				g.Use(middleware.BasicAuth("pprof", map[string]string{cfg.Obs.PprofUser: cfg.Obs.PprofPass}))
			}
			g.Mount("/debug", middleware.Profiler())
		})
	}
}
