package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/extra/redisotel/v9"
	redis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/noah-isme/backend-koperasi/internal/catalog"
	"github.com/noah-isme/backend-koperasi/internal/config"
	"github.com/noah-isme/backend-koperasi/internal/events"
	"github.com/noah-isme/backend-koperasi/internal/inventory"
	"github.com/noah-isme/backend-koperasi/internal/order"
	"github.com/noah-isme/backend-koperasi/internal/report"
	"github.com/noah-isme/backend-koperasi/internal/settings"
	"github.com/noah-isme/backend-koperasi/internal/shipping"
	"github.com/noah-isme/backend-koperasi/internal/store/memory"
	"github.com/noah-isme/backend-koperasi/internal/store/postgres"
)

// Store is the union of every persistence contract the binaries need.
type Store interface {
	catalog.Store
	order.Store
	shipping.Store
	inventory.Store
	settings.Store
	report.Store
	events.Store
	Ping(ctx context.Context) error
	Close()
}

// Dependencies enumerates the shared infrastructure of the api and worker binaries.
type Dependencies struct {
	Store Store
	Redis *redis.Client
	Tasks *asynq.Client
}

// Open connects the store, redis and the task client described by cfg.
func Open(ctx context.Context, cfg *config.Config, applicationName string, logger zerolog.Logger) (*Dependencies, error) {
	store, err := OpenStore(ctx, cfg, applicationName, logger)
	if err != nil {
		return nil, err
	}
	rdb, err := NewRedis(ctx, cfg.RedisURL, cfg.Obs.MetricsEnabled, logger)
	if err != nil {
		store.Close()
		return nil, err
	}
	connOpt, err := asynq.ParseRedisURI(cfg.RedisURL)
	if err != nil {
		store.Close()
		_ = rdb.Close()
		return nil, fmt.Errorf("parse task redis url: %w", err)
	}
	return &Dependencies{
		Store: store,
		Redis: rdb,
		Tasks: asynq.NewClient(connOpt),
	}, nil
}

// Close releases every connection. It is safe on a partially built value.
func (d *Dependencies) Close() error {
	var errs error
	if d.Tasks != nil {
		errs = errors.Join(errs, d.Tasks.Close())
	}
	if d.Redis != nil {
		errs = errors.Join(errs, d.Redis.Close())
	}
	if d.Store != nil {
		d.Store.Close()
	}
	return errs
}

// OpenStore selects the store for cfg.DBDriver and applies migrations when asked to.
func OpenStore(ctx context.Context, cfg *config.Config, applicationName string, logger zerolog.Logger) (Store, error) {
	switch cfg.DBDriver {
	case config.DriverMemory:
		logger.Warn().Msg("using in-memory store; data is lost on restart")
		return memory.New(), nil
	case config.DriverPostgres:
		if cfg.DBAutoMigrate {
			if err := postgres.Migrate(cfg.DatabaseURL); err != nil {
				return nil, err
			}
			logger.Info().Msg("database migrations applied")
		}
		return postgres.Open(ctx, cfg.DatabaseURL, applicationName)
	default:
		return nil, fmt.Errorf("unsupported DB_DRIVER %q", cfg.DBDriver)
	}
}

// NewRedis connects an instrumented redis client and pings it.
func NewRedis(ctx context.Context, url string, metrics bool, logger zerolog.Logger) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := redisotel.InstrumentTracing(client); err != nil {
		logger.Error().Err(err).Msg("instrument redis tracing")
	}
	if metrics {
		if err := redisotel.InstrumentMetrics(client); err != nil {
			logger.Error().Err(err).Msg("instrument redis metrics")
		}
	}
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}

// PingStore implements health.Checker.
func (d *Dependencies) PingStore(ctx context.Context, timeout time.Duration) error {
	if d.Store == nil {
		return errors.New("store not configured")
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return d.Store.Ping(ctx)
}

// PingRedis implements health.Checker.
func (d *Dependencies) PingRedis(ctx context.Context, timeout time.Duration) error {
	if d.Redis == nil {
		return errors.New("redis not configured")
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return d.Redis.Ping(ctx).Err()
}
