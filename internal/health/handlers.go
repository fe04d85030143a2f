package health

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"sync/atomic"
	"time"
)

// Checker probes the storefront's backing services.
type Checker interface {
	PingStore(ctx context.Context, timeout time.Duration) error
	PingRedis(ctx context.Context, timeout time.Duration) error
}

var draining atomic.Bool

// SetReady flips readiness. The API calls SetReady(false) before draining connections.
func SetReady(v bool) { draining.Store(!v) }

// Handler serves /health/live and /health/ready.
type Handler struct {
	Checker      Checker
	StoreTimeout time.Duration
	RedisTimeout time.Duration
}

// CheckResult is one dependency line of the readiness body.
type CheckResult struct {
	Status    string `json:"status"`
	Error     string `json:"error,omitempty"`
	LatencyMs int64  `json:"latencyMs"`
}

// Report is the readiness body.
type Report struct {
	Status string                 `json:"status"`
	Checks map[string]CheckResult `json:"checks,omitempty"`
}

func (h Handler) Live(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// Ready probes store and redis concurrently. Any failure, a missing checker or a
// draining process answers 503.
func (h Handler) Ready(w http.ResponseWriter, r *http.Request) {
	switch {
	case draining.Load():
		writeReport(w, http.StatusServiceUnavailable, Report{Status: "draining"})
		return
	case h.Checker == nil:
		writeReport(w, http.StatusServiceUnavailable, Report{Status: "unconfigured"})
		return
	}

	probes := map[string]func(context.Context) error{
		"store": func(ctx context.Context) error {
			return h.Checker.PingStore(ctx, orDefault(h.StoreTimeout, 500*time.Millisecond))
		},
		"redis": func(ctx context.Context) error {
			return h.Checker.PingRedis(ctx, orDefault(h.RedisTimeout, 300*time.Millisecond))
		},
	}
	report := Report{Status: "ok", Checks: make(map[string]CheckResult, len(probes))}
	var (
		mu sync.Mutex
		wg sync.WaitGroup
	)
	for name, probe := range probes {
		wg.Add(1)
		go func() {
			defer wg.Done()
			start := time.Now()
			err := probe(r.Context())
			res := CheckResult{Status: "ok", LatencyMs: time.Since(start).Milliseconds()}
			if err != nil {
				res.Status = "down"
				res.Error = err.Error()
			}
			mu.Lock()
			report.Checks[name] = res
			mu.Unlock()
		}()
	}
	wg.Wait()

	code := http.StatusOK
	for _, res := range report.Checks {
		if res.Status != "ok" {
			report.Status = "degraded"
			code = http.StatusServiceUnavailable
		}
	}
	writeReport(w, code, report)
}

func writeReport(w http.ResponseWriter, code int, report Report) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(report)
}

func orDefault(d, fallback time.Duration) time.Duration {
	if d <= 0 {
		return fallback
	}
	return d
}
