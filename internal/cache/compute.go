package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// Cache coalesces concurrent misses for the same key. Store failures are logged
// and never surface to the caller; the value is computed live instead.
type Cache struct {
	Store  Store
	Logger *zap.Logger

	group singleflight.Group
}

func New(store Store, logger *zap.Logger) *Cache {
	return &Cache{Store: store, Logger: logger}
}

// GetOrCompute returns the cached JSON value for key or runs fn and stores its result.
// A nil cache, nil store or ttl <= 0 disables caching.
func GetOrCompute[T any](ctx context.Context, c *Cache, key string, ttl time.Duration, fn func(context.Context) (T, error)) (T, error) {
	if c == nil || c.Store == nil || ttl <= 0 {
		return fn(ctx)
	}

	if raw, found, err := c.Store.Get(ctx, key); err != nil {
		c.warn("cache get failed", key, err)
	} else if found {
		var out T
		err := json.Unmarshal(raw, &out)
		if err == nil {
			return out, nil
		}
		c.warn("cache decode failed", key, err)
	}

	v, err, _ := c.group.Do(key, func() (any, error) {
		out, err := fn(ctx)
		if err != nil {
			return out, err
		}
		raw, err := json.Marshal(out)
		if err != nil {
			c.warn("cache encode failed", key, err)
			return out, nil
		}
		if err := c.Store.Set(ctx, key, raw, ttl); err != nil {
			c.warn("cache set failed", key, err)
		}
		return out, nil
	})
	if err != nil {
		var zero T
		return zero, err
	}
	out, ok := v.(T)
	if !ok {
		var zero T
		return zero, fmt.Errorf("cache: unexpected value type %T for %s", v, key)
	}
	return out, nil
}

func (c *Cache) Invalidate(ctx context.Context, key string) {
	if c == nil || c.Store == nil {
		return
	}
	if err := c.Store.Delete(ctx, key); err != nil {
		c.warn("cache delete failed", key, err)
	}
}

func (c *Cache) warn(msg, key string, err error) {
	if c.Logger == nil {
		return
	}
	c.Logger.Warn(msg, zap.String("key", key), zap.Error(err))
}
