package main

import (
	"context"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/noah-isme/backend-koperasi/internal/app"
	"github.com/noah-isme/backend-koperasi/internal/config"
	"github.com/noah-isme/backend-koperasi/internal/inventory"
	"github.com/noah-isme/backend-koperasi/internal/lock"
	"github.com/noah-isme/backend-koperasi/internal/obs"
	"github.com/noah-isme/backend-koperasi/internal/resilience"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger := obs.NewLogger(cfg.Obs.LogFormat, cfg.Obs.LogLevel).With().Str("component", "worker").Logger()
	if cfg.Obs.MetricsEnabled {
		obs.MustRegisterDomainMetrics(cfg.Obs.MetricsNamespace, nil)
		resilience.MustRegisterMetrics(cfg.Obs.MetricsNamespace, nil)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	redisClient, err := app.NewRedis(ctx, cfg.RedisURL, false, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("connect redis")
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Error().Err(err).Msg("close redis")
		}
	}()

	connOpt, err := asynq.ParseRedisURI(cfg.RedisURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("parse redis url for task queue")
	}
	srv := asynq.NewServer(connOpt, asynq.Config{
		Concurrency: cfg.WorkerConcurrency,
		Queues:      map[string]int{cfg.TaskQueue: 1},
		Logger:      taskLogger{logger},
		ErrorHandler: asynq.ErrorHandlerFunc(func(_ context.Context, task *asynq.Task, err error) {
			logger.Error().Err(err).Str("task", task.Type()).Msg("task failed")
		}),
	})

	alerts := inventory.AlertHandler{
		Locker:   lock.Locker{R: redisClient, RetryBackoff: cfg.LockRetryBackoff},
		DedupTTL: cfg.LowStockDedupTTL,
		Logger:   logger,
	}
	if cfg.LowStockWebhookURL != "" {
		alerts.Sink = newWebhookSink(cfg, logger)
	}
	mux := asynq.NewServeMux()
	mux.Handle(inventory.TaskTypeLowStock, alerts)

	if err := srv.Start(mux); err != nil {
		logger.Fatal().Err(err).Msg("start task server")
	}
	logger.Info().Str("queue", cfg.TaskQueue).Int("concurrency", cfg.WorkerConcurrency).Msg("worker starting")

	<-ctx.Done()
	srv.Shutdown()
	logger.Info().Msg("worker shutdown complete")
}

func newWebhookSink(cfg *config.Config, logger zerolog.Logger) inventory.WebhookSink {
	out := cfg.Outbound
	breaker := resilience.NewBreaker(out.BreakerMinRequests, out.BreakerFailureRatio, out.BreakerOpenFor).
		WithTarget("lowstock-webhook").
		WithLogger(logger)
	return inventory.WebhookSink{
		URL:    cfg.LowStockWebhookURL,
		Secret: cfg.LowStockWebhookSecret,
		HTTP: resilience.HTTPClient{
			Client: &http.Client{
				Timeout:   out.Timeout,
				Transport: otelhttp.NewTransport(http.DefaultTransport),
			},
			Breaker:     breaker,
			Target:      "lowstock-webhook",
			MaxAttempts: out.MaxAttempts,
			BaseBackoff: out.BackoffBase,
			Jitter:      out.BackoffJitter,
			Timeout:     out.Timeout,
			Logger:      logger,
		},
	}
}

// taskLogger routes asynq's internal logging through zerolog.
type taskLogger struct {
	l zerolog.Logger
}

func (t taskLogger) Debug(args ...any) { t.l.Debug().Msg(fmt.Sprint(args...)) }
func (t taskLogger) Info(args ...any)  { t.l.Info().Msg(fmt.Sprint(args...)) }
func (t taskLogger) Warn(args ...any)  { t.l.Warn().Msg(fmt.Sprint(args...)) }
func (t taskLogger) Error(args ...any) { t.l.Error().Msg(fmt.Sprint(args...)) }
func (t taskLogger) Fatal(args ...any) { t.l.Fatal().Msg(fmt.Sprint(args...)) }
