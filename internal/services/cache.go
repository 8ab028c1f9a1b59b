package services

import (
	"sync"
	"time"

	"github.com/openkat/scheduler/internal/apperrors"
)

// cacheEntry mirrors the teacher's CacheEntry shape (value plus creation
// time and TTL) but stores a typed value instead of interface{}.
type cacheEntry[V any] struct {
	value     V
	createdAt time.Time
	ttl       time.Duration
}

func (e cacheEntry[V]) expired(now time.Time) bool {
	return now.Sub(e.createdAt) > e.ttl
}

// ttlCache is a generic in-memory cache with per-entry TTL. Expiry is
// reported as a typed error return from Get, never as a panic or exception
//.
type ttlCache[K comparable, V any] struct {
	mu      sync.RWMutex
	entries map[K]cacheEntry[V]
	ttl     time.Duration
}

func newTTLCache[K comparable, V any](ttl time.Duration) *ttlCache[K, V] {
	return &ttlCache[K, V]{
		entries: make(map[K]cacheEntry[V]),
		ttl:     ttl,
	}
}

// Get returns the cached value for key, apperrors.ErrNotFound if it was
// never set, or apperrors.ErrExpired if its TTL has lapsed. An expired entry
// is left in place for Set to overwrite rather than being evicted eagerly.
func (c *ttlCache[K, V]) Get(key K) (V, error) {
	var zero V
	c.mu.RLock()
	defer c.mu.RUnlock()

	e, ok := c.entries[key]
	if !ok {
		return zero, apperrors.ErrNotFound
	}
	if e.expired(time.Now()) {
		return zero, apperrors.ErrExpired
	}
	return e.value, nil
}

// Set stores value under key with the cache's configured TTL.
func (c *ttlCache[K, V]) Set(key K, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = cacheEntry[V]{value: value, createdAt: time.Now(), ttl: c.ttl}
}

// Invalidate removes key unconditionally.
func (c *ttlCache[K, V]) Invalidate(key K) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
}
