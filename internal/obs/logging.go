package obs

import (
	"io"
	"net/http"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/trace"

	"github.com/noah-isme/backend-koperasi/internal/common"
)

// NewLogger returns a zerolog logger writing JSON, or human readable lines when format
// is "console" or "text". Unknown levels fall back to info.
func NewLogger(format, level string) zerolog.Logger {
	return newLogger(os.Stdout, format, level)
}

func newLogger(w io.Writer, format, level string) zerolog.Logger {
	zerolog.TimeFieldFormat = time.RFC3339Nano
	lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "console", "text":
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}
	}
	return zerolog.New(w).Level(lvl).With().Timestamp().Logger()
}

// RequestLogger writes one http_request line per request. Server errors log at error
// level and client errors at warn. Paths in Quiet (health probes, metrics scrapes) only
// log when they fail.
type RequestLogger struct {
	Logger zerolog.Logger
	Quiet  []string
}

func (l RequestLogger) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := NewStatusRecorder(w)
		start := time.Now()
		next.ServeHTTP(rec, r)

		status := rec.Status()
		var evt *zerolog.Event
		switch {
		case status >= http.StatusInternalServerError:
			evt = l.Logger.Error()
		case status >= http.StatusBadRequest:
			evt = l.Logger.Warn()
		case l.quiet(r.URL.Path):
			return
		default:
			evt = l.Logger.Info()
		}

		evt = evt.
			Str("method", r.Method).
			Str("route", routeOf(r, r.URL.Path)).
			Str("path", r.URL.Path).
			Int("status", status).
			Float64("duration_ms", DurationMillis(time.Since(start))).
			Int64("bytes", rec.BytesWritten()).
			Str("request_id", middleware.GetReqID(r.Context())).
			Str("remote_ip", common.ClientIP(r))
		if sc := trace.SpanContextFromContext(r.Context()); sc.IsValid() {
			evt = evt.Str("trace_id", sc.TraceID().String()).Str("span_id", sc.SpanID().String())
		}
		if id := strings.TrimSpace(r.Header.Get(common.HeaderUserID)); id != "" {
			evt = evt.Str("user_id", id)
		}
		if role := strings.TrimSpace(r.Header.Get(common.HeaderUserRole)); role != "" {
			evt = evt.Str("role", strings.ToUpper(role))
		}
		if key := r.Header.Get("Idempotency-Key"); key != "" {
			evt = evt.Bool("idempotent", true)
		}
		evt.Msg("http_request")
	})
}

func (l RequestLogger) quiet(path string) bool {
	return slices.Contains(l.Quiet, path)
}
