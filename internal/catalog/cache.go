package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// Cache keeps product detail in Redis. Stock changes must call Forget, since
// detail carries the live stock figure.
type Cache struct {
	rdb redis.Cmdable
	ttl time.Duration
}

// NewCache returns a product cache. With a nil client or ttl <= 0 every call is a no-op.
func NewCache(rdb redis.Cmdable, ttl time.Duration) *Cache {
	return &Cache{rdb: rdb, ttl: ttl}
}

func productKey(id string) string { return "koperasi:catalog:product:" + id }

func (c *Cache) off() bool { return c == nil || c.rdb == nil || c.ttl <= 0 }

// Product returns the cached product. ok is false on a miss.
func (c *Cache) Product(ctx context.Context, id string) (p Product, ok bool, err error) {
	if c.off() || id == "" {
		return Product{}, false, nil
	}
	raw, err := c.rdb.Get(ctx, productKey(id)).Bytes()
	switch {
	case errors.Is(err, redis.Nil):
		return Product{}, false, nil
	case err != nil:
		return Product{}, false, err
	}
	if err := json.Unmarshal(raw, &p); err != nil {
		// stale layout from an older build; treat as a miss
		_ = c.rdb.Del(ctx, productKey(id)).Err()
		return Product{}, false, nil
	}
	return p, true, nil
}

// Put stores p until the ttl runs out.
func (c *Cache) Put(ctx context.Context, p Product) error {
	if c.off() || p.ID == "" {
		return nil
	}
	raw, err := json.Marshal(p)
	if err != nil {
		return err
	}
	return c.rdb.Set(ctx, productKey(p.ID), raw, c.ttl).Err()
}

// Forget drops the given products.
func (c *Cache) Forget(ctx context.Context, ids ...string) error {
	if c.off() || len(ids) == 0 {
		return nil
	}
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = productKey(id)
	}
	return c.rdb.Del(ctx, keys...).Err()
}
