// Package cache provides the best-effort result cache consumed by the
// resilient search façade. Cache failures are never fatal: callers treat a
// read error as a miss and a write error as a no-op.
package cache

import (
	"context"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

// Cache is the capability contract for a key-value cache with TTL.
type Cache interface {
	// Get returns the cached value and whether it was present.
	Get(ctx context.Context, key string) (any, bool, error)

	// Set stores value under key for at most ttl.
	Set(ctx context.Context, key string, value any, ttl time.Duration) error

	// Ping reports whether the cache is reachable.
	Ping(ctx context.Context) error
}

// DefaultSize is the default number of entries kept by the LRU cache.
const DefaultSize = 1024

// entry wraps a cached value with its expiry.
type entry struct {
	value     any
	expiresAt time.Time
}

// LRUCache is an in-process Cache backed by an LRU with lazy TTL expiry.
type LRUCache struct {
	inner *lru.Cache[string, entry]
	now   func() time.Time
}

// NewLRU creates an LRU cache holding up to size entries.
func NewLRU(size int) (*LRUCache, error) {
	if size <= 0 {
		size = DefaultSize
	}
	inner, err := lru.New[string, entry](size)
	if err != nil {
		return nil, err
	}
	return &LRUCache{inner: inner, now: time.Now}, nil
}

// Get returns the cached value if present and not expired.
func (c *LRUCache) Get(ctx context.Context, key string) (any, bool, error) {
	e, ok := c.inner.Get(key)
	if !ok {
		return nil, false, nil
	}
	if !e.expiresAt.IsZero() && c.now().After(e.expiresAt) {
		c.inner.Remove(key)
		return nil, false, nil
	}
	return e.value, true, nil
}

// Set stores value under key. A non-positive ttl stores without expiry.
func (c *LRUCache) Set(ctx context.Context, key string, value any, ttl time.Duration) error {
	e := entry{value: value}
	if ttl > 0 {
		e.expiresAt = c.now().Add(ttl)
	}
	c.inner.Add(key, e)
	return nil
}

// Ping always succeeds for the in-process cache.
func (c *LRUCache) Ping(ctx context.Context) error {
	return nil
}

// Len returns the number of live entries, counting expired ones until they
// are lazily evicted.
func (c *LRUCache) Len() int {
	return c.inner.Len()
}

var _ Cache = (*LRUCache)(nil)
