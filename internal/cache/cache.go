// Package cache stores computed responses in Redis, keyed by a hash of the
// request, and collapses concurrent identical computations with
// singleflight.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	pkgredis "github.com/Adithya-Monish-Kumar-K/linkrank/pkg/redis"
	"golang.org/x/sync/singleflight"
)

const keyPrefix = "linkrank:"

// Store is the byte-level backend. *pkgredis.Client satisfies it.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	FlushByPattern(ctx context.Context, pattern string) (int64, error)
}

// Cache is a typed JSON cache over a Store. A nil *Cache is valid and
// always computes.
type Cache[T any] struct {
	store  Store
	ttl    time.Duration
	group  singleflight.Group
	logger *slog.Logger
	hits   atomic.Int64
	misses atomic.Int64
	onHit  func(hit bool)
}

// New creates a cache writing entries with the given TTL. onHit, if not
// nil, is called on every lookup.
func New[T any](store Store, ttl time.Duration, onHit func(hit bool)) *Cache[T] {
	return &Cache[T]{
		store:  store,
		ttl:    ttl,
		logger: slog.Default().With("component", "response-cache"),
		onHit:  onHit,
	}
}

// Key hashes the JSON encoding of parts into a namespaced cache key.
func Key(parts ...any) (string, error) {
	raw, err := json.Marshal(parts)
	if err != nil {
		return "", fmt.Errorf("encoding cache key: %w", err)
	}
	sum := sha256.Sum256(raw)
	return fmt.Sprintf("%s%x", keyPrefix, sum[:16]), nil
}

// Get returns the cached value for key. Backend and decode errors are
// logged and reported as misses.
func (c *Cache[T]) Get(ctx context.Context, key string) (*T, bool) {
	data, err := c.store.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, pkgredis.ErrMiss) {
			c.logger.Error("cache get failed", "key", key, "error", err)
		}
		c.record(false)
		return nil, false
	}
	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		c.logger.Error("cache unmarshal failed", "key", key, "error", err)
		c.record(false)
		return nil, false
	}
	c.record(true)
	c.logger.Debug("cache hit", "key", key)
	return &v, true
}

// Set stores v under key. Failures are logged, never returned.
func (c *Cache[T]) Set(ctx context.Context, key string, v *T) {
	data, err := json.Marshal(v)
	if err != nil {
		c.logger.Error("cache marshal failed", "key", key, "error", err)
		return
	}
	if err := c.store.Set(ctx, key, data, c.ttl); err != nil {
		c.logger.Error("cache set failed", "key", key, "error", err)
	}
}

// GetOrCompute returns the cached value or computes, stores and returns a
// fresh one. Concurrent calls for the same key share one computation. The
// boolean reports whether the value came from the cache.
func (c *Cache[T]) GetOrCompute(ctx context.Context, key string, compute func() (*T, error)) (*T, bool, error) {
	if c == nil {
		v, err := compute()
		return v, false, err
	}
	if v, ok := c.Get(ctx, key); ok {
		return v, true, nil
	}
	val, err, _ := c.group.Do(key, func() (interface{}, error) {
		v, err := compute()
		if err != nil {
			return nil, err
		}
		c.Set(ctx, key, v)
		return v, nil
	})
	if err != nil {
		return nil, false, err
	}
	return val.(*T), false, nil
}

// Invalidate removes every entry written by this service.
func (c *Cache[T]) Invalidate(ctx context.Context) (int64, error) {
	deleted, err := c.store.FlushByPattern(ctx, keyPrefix+"*")
	if err != nil {
		return deleted, fmt.Errorf("invalidating cache: %w", err)
	}
	c.logger.Info("cache invalidated", "keys_deleted", deleted)
	return deleted, nil
}

// Stats returns lookup counters since start.
func (c *Cache[T]) Stats() (hits, misses int64) {
	return c.hits.Load(), c.misses.Load()
}

func (c *Cache[T]) record(hit bool) {
	if hit {
		c.hits.Add(1)
	} else {
		c.misses.Add(1)
	}
	if c.onHit != nil {
		c.onHit(hit)
	}
}
