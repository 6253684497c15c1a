package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/MarcoABCardoso/ibmid-login/internal/metrics"
)

// LoadFunc produces the value for a missing key.
type LoadFunc[T any] func(ctx context.Context) (T, error)

// Cache is a typed read-through cache over a Store. Values are stored as
// JSON, so T must round-trip through encoding/json. Keys are hashed before
// they reach the Store since they may carry bearer tokens.
type Cache[T any] struct {
	name    string
	store   Store
	ttl     time.Duration
	group   singleflight.Group
	metrics *metrics.Metrics
}

type Option func(*options)

type options struct {
	metrics *metrics.Metrics
}

// WithMetrics records hits and misses under the cache's name.
func WithMetrics(m *metrics.Metrics) Option {
	return func(o *options) {
		o.metrics = m
	}
}

func New[T any](name string, store Store, ttl time.Duration, opts ...Option) *Cache[T] {
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}
	return &Cache[T]{
		name:    name,
		store:   store,
		ttl:     ttl,
		metrics: o.metrics,
	}
}

func (c *Cache[T]) Name() string {
	return c.name
}

func (c *Cache[T]) TTL() time.Duration {
	return c.ttl
}

// GetOrLoad returns the cached value for key or calls load and stores its
// result. Concurrent misses for the same key share one load, which runs
// without the first caller's cancellation; each caller stops waiting when its
// own ctx ends. Failed loads are not cached. Store failures are logged and
// treated as misses.
func (c *Cache[T]) GetOrLoad(ctx context.Context, key string, load LoadFunc[T]) (T, error) {
	storeKey := c.storeKey(key)

	if value, ok := c.lookup(ctx, storeKey); ok {
		c.metrics.ObserveCache(c.name, true)
		return value, nil
	}
	c.metrics.ObserveCache(c.name, false)

	flight := c.group.DoChan(storeKey, func() (interface{}, error) {
		flightCtx := context.WithoutCancel(ctx)
		value, err := load(flightCtx)
		if err != nil {
			return value, err
		}
		encoded, err := json.Marshal(value)
		if err != nil {
			return value, fmt.Errorf("cache %s: encode value: %w", c.name, err)
		}
		if err := c.store.Set(flightCtx, storeKey, encoded, c.ttl); err != nil {
			zerolog.Ctx(flightCtx).Warn().Err(err).Str("cache", c.name).Msg("Failed to store cache entry")
		}
		return value, nil
	})

	var zero T
	select {
	case <-ctx.Done():
		return zero, ctx.Err()
	case res := <-flight:
		if res.Err != nil {
			return zero, res.Err
		}
		return res.Val.(T), nil
	}
}

func (c *Cache[T]) lookup(ctx context.Context, storeKey string) (T, bool) {
	var value T
	encoded, ok, err := c.store.Get(ctx, storeKey)
	if err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Str("cache", c.name).Msg("Failed to read cache entry")
		return value, false
	}
	if !ok {
		return value, false
	}
	if err := json.Unmarshal(encoded, &value); err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Str("cache", c.name).Msg("Discarding undecodable cache entry")
		return value, false
	}
	return value, true
}

func (c *Cache[T]) storeKey(key string) string {
	sum := sha256.Sum256([]byte(key))
	return c.name + ":" + hex.EncodeToString(sum[:])
}
