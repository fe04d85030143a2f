package obs

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace"
)

func TestHTTPMetricsUseRoutePattern(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := NewHTTPMetrics("koperasi", []float64{1, 10}, reg)

	r := chi.NewRouter()
	r.Use(HTTPObs{Metrics: metrics}.Middleware)
	r.Get("/api/v1/products/{id}", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	for _, id := range []string{"p-1", "p-2"} {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/products/"+id, nil))
		require.Equal(t, http.StatusNoContent, rec.Code)
	}

	require.Equal(t, 2.0, testutil.ToFloat64(metrics.ReqTotal.WithLabelValues(http.MethodGet, "/api/v1/products/{id}", "204")))
	require.Equal(t, 0.0, testutil.ToFloat64(metrics.InFlight))
	require.Equal(t, 1, testutil.CollectAndCount(metrics.ReqDur))

	again := NewHTTPMetrics("koperasi", []float64{1, 10}, reg)
	require.Same(t, metrics.ReqTotal, again.ReqTotal)
}

func TestRequestLoggerLevels(t *testing.T) {
	var buf bytes.Buffer
	logger := newLogger(&buf, "json", "debug")

	r := chi.NewRouter()
	r.Use(RequestLogger{Logger: logger, Quiet: []string{"/health/live"}}.Middleware)
	r.Get("/health/live", func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) })
	r.Post("/api/v1/checkout", func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusConflict) })

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/health/live", nil))
	require.Empty(t, buf.String())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/checkout", nil)
	req.Header.Set("X-User-ID", "cust-1")
	req.Header.Set("X-User-Role", "customer")
	req.Header.Set("Idempotency-Key", "k-1")
	r.ServeHTTP(httptest.NewRecorder(), req)

	var line map[string]any
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &line))
	require.Equal(t, "warn", line["level"])
	require.Equal(t, "http_request", line["message"])
	require.Equal(t, "/api/v1/checkout", line["route"])
	require.Equal(t, float64(409), line["status"])
	require.Equal(t, "cust-1", line["user_id"])
	require.Equal(t, "CUSTOMER", line["role"])
	require.Equal(t, true, line["idempotent"])
}

func TestNewLoggerFallsBackToInfo(t *testing.T) {
	var buf bytes.Buffer
	logger := newLogger(&buf, "json", "loud")
	logger.Debug().Msg("hidden")
	logger.Info().Msg("shown")
	require.NotContains(t, buf.String(), "hidden")
	require.True(t, strings.Contains(buf.String(), "shown"))
}

func TestTracingMiddlewareNamesSpanByRoute(t *testing.T) {
	shutdown, err := InitTracer(context.Background(), TracingConfig{ServiceName: "koperasi-test", Exporter: "none"})
	require.NoError(t, err)
	t.Cleanup(func() { _ = shutdown(context.Background()) })

	var sawSpan bool
	r := chi.NewRouter()
	r.Use(TracingMiddleware)
	r.Get("/api/v1/orders/{id}", func(w http.ResponseWriter, req *http.Request) {
		sawSpan = trace.SpanContextFromContext(req.Context()).IsValid()
		w.WriteHeader(http.StatusOK)
	})
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/orders/ORD-1", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.True(t, sawSpan)
}

func TestInitTracerRejectsUnknownExporter(t *testing.T) {
	_, err := InitTracer(context.Background(), TracingConfig{ServiceName: "x", Exporter: "zipkin"})
	require.ErrorContains(t, err, "zipkin")
}

func TestParseBucketsCSV(t *testing.T) {
	require.Equal(t, []float64{5, 10, 250}, ParseBucketsCSV("250, 10,abc,-1,5,10"))
	require.Empty(t, ParseBucketsCSV(""))
}
