package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/v2"
)

// Supported DB_DRIVER values.
const (
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

// Config holds application configuration loaded from the environment.
type Config struct {
	AppEnv             string
	Port               string
	DBDriver           string
	DatabaseURL        string
	DBAutoMigrate      bool
	RedisURL           string
	CORSAllowedOrigins []string
	CurrencyCode       string

	CatalogCacheTTL   time.Duration
	ReportCacheTTL    time.Duration
	ReportDefaultDays int
	IdempotencyTTL    time.Duration
	// CheckoutRateLimit uses the ulule formatted rate syntax, e.g. "20-M".
	CheckoutRateLimit string

	LockTTL           time.Duration
	LockRetryBackoff  time.Duration
	WorkerConcurrency int
	TaskQueue         string
	LowStockDedupTTL  time.Duration

	// readiness probe timeouts and the graceful shutdown window
	HealthStoreTimeout time.Duration
	HealthRedisTimeout time.Duration
	ShutdownTimeout    time.Duration

	ShippingWebhookReplayTTL time.Duration
	// ShippingWebhookSecret, when set, requires courier callbacks to carry a valid signature.
	ShippingWebhookSecret string
	MaxBodyBytes          int64
	SecurityHeaders       bool

	// LowStockWebhookURL receives low stock alerts from the worker when set.
	LowStockWebhookURL    string
	LowStockWebhookSecret string
	Outbound              OutboundConfig

	Obs ObsConfig
}

// OutboundConfig tunes retries and the circuit breaker for outgoing HTTP calls.
type OutboundConfig struct {
	Timeout             time.Duration
	MaxAttempts         int
	BackoffBase         time.Duration
	BackoffJitter       float64
	BreakerMinRequests  int
	BreakerFailureRatio float64
	BreakerOpenFor      time.Duration
}

// ObsConfig groups logging, metrics and tracing settings.
type ObsConfig struct {
	LogFormat        string
	LogLevel         string
	MetricsEnabled   bool
	MetricsNamespace string
	MetricsBuckets   string
	TracingEnabled   bool
	TracingExporter  string
	OTLPEndpoint     string
	SamplingRatio    float64
	PprofEnabled     bool
	PprofUser        string
	PprofPass        string
}

// Load reads configuration from environment variables and optional .env files.
func Load() (*Config, error) {
	_ = godotenv.Load()

	k := koanf.New(".")
	if err := k.Load(env.Provider("", ".", func(s string) string { return s }), nil); err != nil {
		return nil, fmt.Errorf("load env: %w", err)
	}

	cfg := &Config{
		AppEnv:             valueOrDefault(k.String("APP_ENV"), "development"),
		Port:               valueOrDefault(k.String("PORT"), "8080"),
		DBDriver:           strings.ToLower(valueOrDefault(k.String("DB_DRIVER"), DriverPostgres)),
		DatabaseURL:        k.String("DATABASE_URL"),
		DBAutoMigrate:      parseBool(k.String("DB_AUTO_MIGRATE")),
		RedisURL:           k.String("REDIS_URL"),
		CORSAllowedOrigins: splitAndTrim(k.String("CORS_ALLOWED_ORIGINS")),
		CurrencyCode:       strings.ToUpper(valueOrDefault(k.String("CURRENCY_CODE"), "IDR")),
		CatalogCacheTTL:    parseDuration(k.String("CATALOG_CACHE_TTL"), "60s"),
		ReportCacheTTL:     parseDuration(k.String("REPORT_CACHE_TTL"), "5m"),
		ReportDefaultDays:  parseInt(k.String("REPORT_DEFAULT_RANGE_DAYS"), 30),
		IdempotencyTTL:     parseDuration(k.String("IDEMPOTENCY_TTL"), "24h"),
		CheckoutRateLimit:  valueOrDefault(k.String("CHECKOUT_RATE_LIMIT"), "20-M"),
		LockTTL:            parseDuration(k.String("LOCK_TTL"), "10m"),
		LockRetryBackoff:   parseDuration(k.String("LOCK_RETRY_BACKOFF"), "50ms"),
		WorkerConcurrency:  parseInt(k.String("WORKER_CONCURRENCY"), 5),
		TaskQueue:          valueOrDefault(k.String("TASK_QUEUE"), "default"),
		LowStockDedupTTL:   parseDuration(k.String("LOW_STOCK_ALERT_DEDUP_TTL"), "6h"),

		HealthStoreTimeout:       millis(k.String("HEALTH_READY_DB_TIMEOUT_MS"), 500),
		HealthRedisTimeout:       millis(k.String("HEALTH_READY_REDIS_TIMEOUT_MS"), 300),
		ShutdownTimeout:          millis(k.String("SHUTDOWN_TIMEOUT_MS"), 15000),
		ShippingWebhookReplayTTL: parseDuration(k.String("SHIPPING_WEBHOOK_REPLAY_TTL"), "24h"),
		ShippingWebhookSecret:    k.String("SHIPPING_WEBHOOK_SECRET"),
		MaxBodyBytes:             int64(parseInt(k.String("HTTP_MAX_BODY_BYTES"), 1<<20)),
		SecurityHeaders:          parseBoolDefault(k.String("SECURITY_HEADERS"), true),
		LowStockWebhookURL:       strings.TrimSpace(k.String("LOW_STOCK_WEBHOOK_URL")),
		LowStockWebhookSecret:    k.String("LOW_STOCK_WEBHOOK_SECRET"),
		Outbound: OutboundConfig{
			Timeout:             parseDuration(k.String("OUTBOUND_TIMEOUT"), "3s"),
			MaxAttempts:         parseInt(k.String("OUTBOUND_MAX_ATTEMPTS"), 3),
			BackoffBase:         parseDuration(k.String("OUTBOUND_BACKOFF_BASE"), "200ms"),
			BackoffJitter:       parseFloat(k.String("OUTBOUND_BACKOFF_JITTER"), 0.2),
			BreakerMinRequests:  parseInt(k.String("CIRCUIT_MIN_REQUESTS"), 5),
			BreakerFailureRatio: parseFloat(k.String("CIRCUIT_FAILURE_RATIO"), 0.5),
			BreakerOpenFor:      parseDuration(k.String("CIRCUIT_OPEN_FOR"), "30s"),
		},
		Obs: ObsConfig{
			LogFormat:        valueOrDefault(k.String("OBS_LOG_FORMAT"), "json"),
			LogLevel:         valueOrDefault(k.String("OBS_LOG_LEVEL"), "info"),
			MetricsEnabled:   parseBoolDefault(k.String("OBS_ENABLE_PROMETHEUS"), true),
			MetricsNamespace: valueOrDefault(k.String("OBS_METRICS_NAMESPACE"), "koperasi"),
			MetricsBuckets:   k.String("OBS_METRICS_BUCKETS_MS"),
			TracingEnabled:   parseBoolDefault(k.String("OBS_ENABLE_TRACING"), false),
			TracingExporter:  valueOrDefault(k.String("OBS_TRACING_EXPORTER"), "otlp"),
			OTLPEndpoint:     k.String("OBS_OTLP_ENDPOINT"),
			SamplingRatio:    parseFloat(k.String("OBS_TRACING_SAMPLING_RATIO"), 1.0),
			PprofEnabled:     parseBool(k.String("OBS_ENABLE_PPROF")),
			PprofUser:        strings.TrimSpace(k.String("SECURE_PPROF_BASIC_AUTH_USER")),
			PprofPass:        strings.TrimSpace(k.String("SECURE_PPROF_BASIC_AUTH_PASS")),
		},
	}

	switch cfg.DBDriver {
	case DriverPostgres:
		if cfg.DatabaseURL == "" {
			return nil, errors.New("DATABASE_URL is required")
		}
	case DriverMemory:
	default:
		return nil, fmt.Errorf("unsupported DB_DRIVER %q", cfg.DBDriver)
	}
	if cfg.RedisURL == "" {
		return nil, errors.New("REDIS_URL is required")
	}
	if cfg.WorkerConcurrency <= 0 {
		return nil, errors.New("WORKER_CONCURRENCY must be positive")
	}

	return cfg, nil
}

// HTTPAddr returns the address the HTTP server should bind to.
func (c *Config) HTTPAddr() string {
	port := strings.TrimSpace(c.Port)
	if port == "" {
		port = "8080"
	}
	if strings.HasPrefix(port, ":") {
		return port
	}
	return ":" + port
}

// ReportDefaultRange is the window used when report requests omit from/to.
func (c *Config) ReportDefaultRange() time.Duration {
	return time.Duration(c.ReportDefaultDays) * 24 * time.Hour
}

func splitAndTrim(value string) []string {
	if value == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}

func valueOrDefault(value, fallback string) string {
	if strings.TrimSpace(value) != "" {
		return strings.TrimSpace(value)
	}
	return fallback
}

func parseDuration(value, fallback string) time.Duration {
	base := strings.TrimSpace(value)
	if base == "" {
		base = fallback
	}
	d, err := time.ParseDuration(base)
	if err != nil {
		d, _ = time.ParseDuration(fallback)
	}
	return d
}

func parseBool(value string) bool {
	return parseBoolDefault(value, false)
}

func parseBoolDefault(value string, fallback bool) bool {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "t", "true", "yes", "on":
		return true
	case "0", "f", "false", "no", "off":
		return false
	default:
		return fallback
	}
}

func parseInt(value string, fallback int) int {
	parsed, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return parsed
}

func parseFloat(value string, fallback float64) float64 {
	parsed, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil {
		return fallback
	}
	return parsed
}

// MustLoad behaves like Load but panics on error. Useful for tests and command entrypoints.
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}

// LoadForTests allows tests to override environment variables without touching the real environment.
func LoadForTests(env map[string]string) (*Config, error) {
	original := make(map[string]string, len(env))
	for key := range env {
		original[key] = os.Getenv(key)
		if err := setEnvVar(key, env[key]); err != nil {
			return nil, err
		}
	}
	cfg, err := Load()
	restoreErr := restoreEnv(original)
	if err != nil {
		return nil, err
	}
	return cfg, restoreErr
}

func setEnvVar(key, value string) error {
	if value == "" {
		return os.Unsetenv(key)
	}
	return os.Setenv(key, value)
}

func restoreEnv(values map[string]string) error {
	var errs []string
	for key, value := range values {
		if err := setEnvVar(key, value); err != nil {
			errs = append(errs, fmt.Sprintf("%s: %v", key, err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("restore env: %s", strings.Join(errs, "; "))
	}
	return nil
}

func millis(raw string, fallback int) time.Duration {
	return time.Duration(parseInt(raw, fallback)) * time.Millisecond
}
