package cache

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"time"

	"civicpulse/internal/middleware"
	"civicpulse/internal/observability"

	"github.com/redis/go-redis/v9"
)

// Cache is a nil-safe cache-aside layer over Redis. A Cache without a client
// always misses, so callers fall through to the store.
type Cache struct {
	rdb *redis.Client
}

// New wraps rdb, which may be nil.
func New(rdb *redis.Client) *Cache {
	return &Cache{rdb: rdb}
}

// Client returns the underlying client, possibly nil.
func (c *Cache) Client() *redis.Client {
	if c == nil {
		return nil
	}
	return c.rdb
}

// Enabled reports whether a Redis client is configured.
func (c *Cache) Enabled() bool {
	return c != nil && c.rdb != nil
}

// GetJSON loads key into dest. It reports false on a miss.
func (c *Cache) GetJSON(ctx context.Context, key string, dest any) (bool, error) {
	if !c.Enabled() {
		return false, nil
	}
	raw, err := c.rdb.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal(raw, dest); err != nil {
		return false, err
	}
	return true, nil
}

// SetJSON stores v under key for ttl.
func (c *Cache) SetJSON(ctx context.Context, key string, v any, ttl time.Duration) error {
	if !c.Enabled() {
		return nil
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return c.rdb.Set(ctx, key, raw, ttl).Err()
}

// Invalidate deletes keys, logging failures.
func (c *Cache) Invalidate(ctx context.Context, keys ...string) {
	if !c.Enabled() || len(keys) == 0 {
		return
	}
	if err := c.rdb.Del(ctx, keys...).Err(); err != nil {
		middleware.Logger.WarnContext(ctx, "cache invalidation failed",
			slog.Any("keys", keys), slog.String("error", err.Error()))
	}
}

// Version returns the current value of a version counter, 0 when unset or
// when Redis is unavailable.
func (c *Cache) Version(ctx context.Context, key string) int64 {
	if !c.Enabled() {
		return 0
	}
	v, err := c.rdb.Get(ctx, key).Int64()
	if err != nil {
		return 0
	}
	return v
}

// BumpVersion increments a version counter so keys built from the previous
// version are never read again.
func (c *Cache) BumpVersion(ctx context.Context, key string) {
	if !c.Enabled() {
		return
	}
	if err := c.rdb.Incr(ctx, key).Err(); err != nil {
		middleware.Logger.WarnContext(ctx, "cache version bump failed",
			slog.String("key", key), slog.String("error", err.Error()))
	}
}

// Aside returns the cached value for key or loads it with fetch and stores it
// for ttl. Cache failures degrade to a direct fetch.
func Aside[T any](ctx context.Context, c *Cache, key string, ttl time.Duration, fetch func(context.Context) (T, error)) (T, error) {
	family := keyFamily(key)

	var cached T
	found, err := c.GetJSON(ctx, key, &cached)
	switch {
	case err != nil:
		observability.CacheLookups.WithLabelValues(family, "error").Inc()
		middleware.Logger.WarnContext(ctx, "cache read failed", slog.String("key", key), slog.String("error", err.Error()))
	case found:
		observability.CacheLookups.WithLabelValues(family, "hit").Inc()
		return cached, nil
	case c.Enabled():
		observability.CacheLookups.WithLabelValues(family, "miss").Inc()
	}

	value, err := fetch(ctx)
	if err != nil {
		return value, err
	}

	if err := c.SetJSON(ctx, key, value, ttl); err != nil {
		middleware.Logger.WarnContext(ctx, "cache write failed", slog.String("key", key), slog.String("error", err.Error()))
	}
	return value, nil
}

func keyFamily(key string) string {
	family, _, _ := strings.Cut(key, ":")
	return family
}
