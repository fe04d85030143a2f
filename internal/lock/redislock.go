// Package lock holds short Redis mutexes and dedupe claims.
package lock

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

var errNoRedis = errors.New("lock: redis client not configured")

// only the holder's token may delete the key
var unlockScript = redis.NewScript(`if redis.call("get", KEYS[1]) == ARGV[1] then
  return redis.call("del", KEYS[1])
end
return 0`)

// Locker is a Redis mutex keyed by string. Keys expire after their ttl so a crashed
// holder cannot block others forever.
type Locker struct {
	R            redis.Cmdable
	RetryBackoff time.Duration
}

// WithLock waits for key, runs fn and unlocks. It gives up when ctx ends.
func (l Locker) WithLock(ctx context.Context, key string, ttl time.Duration, fn func(context.Context) error) error {
	if l.R == nil {
		return errNoRedis
	}
	if fn == nil {
		return errors.New("lock: nil callback")
	}
	token := uuid.NewString()
	wait := time.NewTicker(l.backoff())
	defer wait.Stop()
	for {
		ok, err := l.R.SetNX(ctx, key, token, orDefault(ttl)).Result()
		if err != nil {
			return err
		}
		if ok {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-wait.C:
		}
	}
	defer func() {
		_ = unlockScript.Run(context.WithoutCancel(ctx), l.R, []string{key}, token).Err()
	}()
	return fn(ctx)
}

// Claim takes key for ttl and leaves it to expire. false means someone already holds it.
func (l Locker) Claim(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	if l.R == nil {
		return false, errNoRedis
	}
	return l.R.SetNX(ctx, key, time.Now().UTC().Format(time.RFC3339), orDefault(ttl)).Result()
}

// Release gives a claim back early.
func (l Locker) Release(ctx context.Context, key string) error {
	if l.R == nil {
		return errNoRedis
	}
	return l.R.Del(ctx, key).Err()
}

func (l Locker) backoff() time.Duration {
	if l.RetryBackoff <= 0 {
		return 50 * time.Millisecond
	}
	return l.RetryBackoff
}

func orDefault(ttl time.Duration) time.Duration {
	if ttl <= 0 {
		return 30 * time.Second
	}
	return ttl
}
