// Package cache is the read-through layer in front of the store. Entries are
// JSON projections of store rows; they are never authoritative.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/ariefcatur/go-stock-orders/internal/metrics"
)

// loadTimeout bounds a shared load; it no longer follows any single caller.
const loadTimeout = 10 * time.Second

var (
	// ErrMiss is returned by Store.Get for absent or expired keys.
	ErrMiss = errors.New("cache: miss")
	// ErrUnavailable wraps backend failures surfaced by Invalidate.
	ErrUnavailable = errors.New("cache unavailable")
)

// Store is the key/value backend. Delete of an absent key is not an error.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
}

type Cache struct {
	store Store
	ttl   time.Duration
	log   zerolog.Logger
	group singleflight.Group
	// gens holds a *atomic.Uint64 per key, bumped by Invalidate. A load that
	// started under an older generation of its key does not write back.
	gens sync.Map
}

func (c *Cache) gen(key string) *atomic.Uint64 {
	if g, ok := c.gens.Load(key); ok {
		return g.(*atomic.Uint64)
	}
	g, _ := c.gens.LoadOrStore(key, new(atomic.Uint64))
	return g.(*atomic.Uint64)
}

func New(store Store, ttl time.Duration, log zerolog.Logger) *Cache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Cache{store: store, ttl: ttl, log: log.With().Str("component", "cache").Logger()}
}

func (c *Cache) TTL() time.Duration {
	if c == nil {
		return 0
	}
	return c.ttl
}

// GetOrPopulate returns the cached value under key, or calls load, caches its
// result for ttl (the cache default when ttl <= 0) and returns it. Load errors
// are returned as is and nothing is cached. Backend failures are logged and the
// read falls through to load.
//
// Concurrent misses on one key share a single load. It runs detached from the
// callers' contexts, so one caller giving up does not fail the others; each
// caller still stops waiting when its own ctx is done.
func GetOrPopulate[T any](ctx context.Context, c *Cache, key string, ttl time.Duration, load func(context.Context) (T, error)) (T, error) {
	if c == nil || c.store == nil {
		return load(ctx)
	}
	if v, ok := lookup[T](ctx, c, key); ok {
		return v, nil
	}

	gen := c.gen(key)
	start := gen.Load()
	ch := c.group.DoChan(key, func() (any, error) {
		lctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), loadTimeout)
		defer cancel()
		v, err := load(lctx)
		if err != nil {
			return nil, err
		}
		if gen.Load() == start {
			c.put(lctx, key, v, ttl)
		}
		return v, nil
	})

	var zero T
	select {
	case <-ctx.Done():
		return zero, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return zero, res.Err
		}
		return res.Val.(T), nil
	}
}

func lookup[T any](ctx context.Context, c *Cache, key string) (T, bool) {
	var v T
	raw, err := c.store.Get(ctx, key)
	switch {
	case errors.Is(err, ErrMiss):
		metrics.CacheRequests.WithLabelValues(metrics.CacheMiss).Inc()
		return v, false
	case err != nil:
		metrics.CacheRequests.WithLabelValues(metrics.CacheError).Inc()
		c.log.Warn().Err(err).Str("key", key).Msg("cache read failed, bypassing")
		return v, false
	}
	if err := json.Unmarshal(raw, &v); err != nil {
		metrics.CacheRequests.WithLabelValues(metrics.CacheError).Inc()
		c.log.Warn().Err(err).Str("key", key).Msg("undecodable cache entry")
		return v, false
	}
	metrics.CacheRequests.WithLabelValues(metrics.CacheHit).Inc()
	return v, true
}

func (c *Cache) put(ctx context.Context, key string, v any, ttl time.Duration) {
	if ttl <= 0 {
		ttl = c.ttl
	}
	b, err := json.Marshal(v)
	if err != nil {
		c.log.Error().Err(err).Str("key", key).Msg("encode cache entry")
		return
	}
	if err := c.store.Set(ctx, key, b, ttl); err != nil {
		metrics.CacheRequests.WithLabelValues(metrics.CacheError).Inc()
		c.log.Warn().Err(err).Str("key", key).Msg("cache write failed")
	}
}

// Invalidate deletes keys unconditionally. Absent keys are fine. A backend
// failure is logged, counted and returned wrapped in ErrUnavailable; callers
// that already committed a write must not fail on it.
func (c *Cache) Invalidate(ctx context.Context, keys ...string) error {
	if c == nil || c.store == nil || len(keys) == 0 {
		return nil
	}
	for _, k := range keys {
		c.gen(k).Add(1)
		c.group.Forget(k)
	}
	if err := c.store.Delete(ctx, keys...); err != nil {
		metrics.CacheInvalidationFailures.Inc()
		c.log.Warn().Err(err).Strs("keys", keys).Msg("cache invalidation failed, entries may be stale until TTL")
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}
