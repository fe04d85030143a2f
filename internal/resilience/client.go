package resilience

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"
)

// HTTPClient retries failed calls with exponential backoff behind a circuit breaker.
// 5xx responses and transport errors count as failures; 4xx responses are returned as is.
type HTTPClient struct {
	Client      *http.Client
	Breaker     *Breaker
	Target      string
	MaxAttempts int
	BaseBackoff time.Duration
	Jitter      float64
	// Timeout bounds each attempt.
	Timeout time.Duration
	Logger  zerolog.Logger
}

// Do sends req, replaying its body on each attempt.
func (c HTTPClient) Do(ctx context.Context, req *http.Request) (*http.Response, error) {
	if c.Client == nil {
		return nil, errors.New("resilience: http client not configured")
	}
	var body []byte
	if req.Body != nil && req.Body != http.NoBody {
		data, err := io.ReadAll(req.Body)
		_ = req.Body.Close()
		if err != nil {
			return nil, fmt.Errorf("buffer request body: %w", err)
		}
		body = data
	}
	attempts := c.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if c.Breaker != nil && !c.Breaker.Allow(ctx) {
			recordOutbound(c.target(), "rejected")
			return nil, ErrOpenCircuit
		}
		resp, err := c.once(ctx, req, body)
		ok := err == nil && resp.StatusCode < http.StatusInternalServerError
		if c.Breaker != nil {
			c.Breaker.Report(ctx, ok)
		}
		if ok {
			recordOutbound(c.target(), "ok")
			return resp, nil
		}
		if err == nil {
			_, _ = io.Copy(io.Discard, resp.Body)
			_ = resp.Body.Close()
			err = fmt.Errorf("%s responded %s", c.target(), resp.Status)
		}
		lastErr = err
		recordOutbound(c.target(), "error")
		c.Logger.Warn().Err(err).Str("target", c.target()).Int("attempt", attempt).Msg("outbound_attempt_failed")

		if attempt == attempts {
			break
		}
		timer := time.NewTimer(Backoff(c.BaseBackoff, attempt, c.Jitter))
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
	}
	return nil, lastErr
}

// PostJSON encodes v and posts it to url with the given extra headers.
func (c HTTPClient) PostJSON(ctx context.Context, url string, v any, headers map[string]string) (*http.Response, error) {
	payload, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode payload: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	return c.Do(ctx, req)
}

func (c HTTPClient) once(ctx context.Context, req *http.Request, body []byte) (*http.Response, error) {
	attemptCtx := ctx
	if c.Timeout > 0 {
		var cancel context.CancelFunc
		attemptCtx, cancel = context.WithTimeout(ctx, c.Timeout)
		resp, err := c.Client.Do(cloneRequest(attemptCtx, req, body))
		if err != nil {
			cancel()
			return nil, err
		}
		resp.Body = cancelOnClose{ReadCloser: resp.Body, cancel: cancel}
		return resp, nil
	}
	return c.Client.Do(cloneRequest(attemptCtx, req, body))
}

func cloneRequest(ctx context.Context, req *http.Request, body []byte) *http.Request {
	clone := req.Clone(ctx)
	if body != nil {
		clone.Body = io.NopCloser(bytes.NewReader(body))
		clone.ContentLength = int64(len(body))
		clone.GetBody = func() (io.ReadCloser, error) {
			return io.NopCloser(bytes.NewReader(body)), nil
		}
	}
	return clone
}

func (c HTTPClient) target() string {
	if c.Target != "" {
		return c.Target
	}
	return "outbound"
}

// cancelOnClose releases the attempt timeout once the caller is done with the body.
type cancelOnClose struct {
	io.ReadCloser
	cancel context.CancelFunc
}

func (c cancelOnClose) Close() error {
	err := c.ReadCloser.Close()
	c.cancel()
	return err
}
