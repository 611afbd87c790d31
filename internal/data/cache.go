package data

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"

	redis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/MKY508/momentum-lens-sub000/internal/domain/market"
)

// Cache is a byte-level cache with TTL expiry.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool)
	Set(ctx context.Context, key string, val []byte, ttl time.Duration)
}

type memoryCache struct {
	mu sync.Mutex
	m  map[string]memoryEntry
}

type memoryEntry struct {
	b   []byte
	exp time.Time
}

// NewMemoryCache returns an in-process cache.
func NewMemoryCache() Cache {
	return &memoryCache{m: make(map[string]memoryEntry)}
}

func (c *memoryCache) Get(_ context.Context, key string) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.m[key]
	if !ok || (!e.exp.IsZero() && time.Now().After(e.exp)) {
		return nil, false
	}
	return e.b, true
}

func (c *memoryCache) Set(_ context.Context, key string, val []byte, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e := memoryEntry{b: append([]byte(nil), val...)}
	if ttl > 0 {
		e.exp = time.Now().Add(ttl)
	}
	c.m[key] = e
}

type redisCache struct {
	r *redis.Client
}

// NewRedisCache returns a Redis-backed cache.
func NewRedisCache(client *redis.Client) Cache {
	return &redisCache{r: client}
}

func (c *redisCache) Get(ctx context.Context, key string) ([]byte, bool) {
	ctx, cancel := context.WithTimeout(ctx, 500*time.Millisecond)
	defer cancel()
	v, err := c.r.Get(ctx, key).Bytes()
	if err != nil {
		return nil, false
	}
	return v, true
}

func (c *redisCache) Set(ctx context.Context, key string, val []byte, ttl time.Duration) {
	ctx, cancel := context.WithTimeout(ctx, 500*time.Millisecond)
	defer cancel()
	if err := c.r.Set(ctx, key, val, ttl).Err(); err != nil {
		log.Debug().Err(err).Str("key", key).Msg("redis set failed")
	}
}

type observedCache struct {
	inner  Cache
	onHit  func()
	onMiss func()
}

// NewObservedCache wraps a cache with hit/miss callbacks for metrics. Nil
// callbacks are allowed.
func NewObservedCache(inner Cache, onHit, onMiss func()) Cache {
	return &observedCache{inner: inner, onHit: onHit, onMiss: onMiss}
}

func (c *observedCache) Get(ctx context.Context, key string) ([]byte, bool) {
	v, ok := c.inner.Get(ctx, key)
	if ok {
		if c.onHit != nil {
			c.onHit()
		}
	} else if c.onMiss != nil {
		c.onMiss()
	}
	return v, ok
}

func (c *observedCache) Set(ctx context.Context, key string, val []byte, ttl time.Duration) {
	c.inner.Set(ctx, key, val, ttl)
}

// NewAutoCache returns a Redis cache when REDIS_ADDR is set, otherwise an
// in-process cache.
func NewAutoCache() Cache {
	if addr := os.Getenv("REDIS_ADDR"); addr != "" {
		return NewRedisCache(redis.NewClient(&redis.Options{Addr: addr}))
	}
	return NewMemoryCache()
}

// CachedSource is a read-through cache in front of any BarSource. Cache hits
// decode from JSON; misses fall through to the inner source and populate the
// cache. NotFound errors are not cached.
type CachedSource struct {
	inner BarSource
	cache Cache
	ttl   time.Duration
}

// NewCachedSource wraps a BarSource with a cache.
func NewCachedSource(inner BarSource, cache Cache, ttl time.Duration) *CachedSource {
	return &CachedSource{inner: inner, cache: cache, ttl: ttl}
}

func cacheKey(symbol string, from, to time.Time) string {
	return fmt.Sprintf("bars:%s:%d:%d", symbol, from.Unix(), to.Unix())
}

// LoadBars implements BarSource.
func (s *CachedSource) LoadBars(ctx context.Context, symbol string, from, to time.Time) ([]market.PriceBar, error) {
	key := cacheKey(symbol, from, to)
	if raw, ok := s.cache.Get(ctx, key); ok {
		var bars []market.PriceBar
		if err := json.Unmarshal(raw, &bars); err == nil {
			return bars, nil
		}
		// Corrupt entry: fall through and overwrite.
		log.Warn().Str("key", key).Msg("discarding corrupt bar cache entry")
	}

	bars, err := s.inner.LoadBars(ctx, symbol, from, to)
	if err != nil {
		return nil, err
	}
	if raw, err := json.Marshal(bars); err == nil {
		s.cache.Set(ctx, key, raw, s.ttl)
	}
	return bars, nil
}
