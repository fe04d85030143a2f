package common

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	redis "github.com/redis/go-redis/v9"
)

// HeaderIdempotencyKey is the request header clients set on retried writes.
const HeaderIdempotencyKey = "Idempotency-Key"

const idemPending = "pending"

// Idem rejects a second checkout or POS submission carrying the same Idempotency-Key.
//
// The first request marks the key pending and, once answered, records its status. A
// duplicate gets 409: IDEMPOTENCY_IN_PROGRESS while the first is running,
// IDEMPOTENT_REPLAY afterwards. A 5xx answer frees the key so the client can retry.
type Idem struct {
	R   redis.Cmdable
	TTL time.Duration
}

// keys are scoped per caller and route so two users can reuse the same client key
func idemKey(userID, method, path, key string) string {
	sum := sha256.Sum256([]byte(userID + "\x00" + method + "\x00" + path + "\x00" + key))
	return "koperasi:idem:" + hex.EncodeToString(sum[:])
}

func (i Idem) ttl() time.Duration {
	if i.TTL <= 0 {
		return 24 * time.Hour
	}
	return i.TTL
}

// Middleware runs a keyed write once and answers repeats with a conflict.
func (i Idem) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		clientKey := strings.TrimSpace(r.Header.Get(HeaderIdempotencyKey))
		if clientKey == "" || i.R == nil {
			next.ServeHTTP(w, r)
			return
		}
		ctx := r.Context()
		userID, _ := UserID(ctx)
		key := idemKey(userID, r.Method, r.URL.Path, clientKey)

		first, err := i.R.SetNX(ctx, key, idemPending, i.ttl()).Result()
		if err != nil {
			JSONError(w, http.StatusServiceUnavailable, "IDEMPOTENCY_UNAVAILABLE", "idempotency store unavailable", nil)
			return
		}
		if !first {
			i.rejectDuplicate(ctx, w, key)
			return
		}

		rec := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		defer func() {
			bg := context.WithoutCancel(ctx)
			if rec.status >= http.StatusInternalServerError {
				_ = i.R.Del(bg, key).Err()
				return
			}
			_ = i.R.SetArgs(bg, key, strconv.Itoa(rec.status), redis.SetArgs{KeepTTL: true}).Err()
		}()
		next.ServeHTTP(rec, r)
	})
}

func (i Idem) rejectDuplicate(ctx context.Context, w http.ResponseWriter, key string) {
	state, err := i.R.Get(ctx, key).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		JSONError(w, http.StatusServiceUnavailable, "IDEMPOTENCY_UNAVAILABLE", "idempotency store unavailable", nil)
		return
	}
	if state == idemPending {
		JSONError(w, http.StatusConflict, "IDEMPOTENCY_IN_PROGRESS", "an identical request is still being processed", nil)
		return
	}
	var details any
	if code, err := strconv.Atoi(state); err == nil {
		details = map[string]int{"originalStatus": code}
	}
	JSONError(w, http.StatusConflict, "IDEMPOTENT_REPLAY", "duplicate request", details)
}

type statusWriter struct {
	http.ResponseWriter
	status int
	wrote  bool
}

func (s *statusWriter) WriteHeader(code int) {
	if !s.wrote {
		s.status = code
		s.wrote = true
	}
	s.ResponseWriter.WriteHeader(code)
}

func (s *statusWriter) Write(b []byte) (int, error) {
	s.wrote = true
	return s.ResponseWriter.Write(b)
}

func (s *statusWriter) Unwrap() http.ResponseWriter { return s.ResponseWriter }
