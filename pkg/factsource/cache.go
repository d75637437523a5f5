package factsource

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/depgate/depgate/pkg/duration"
)

// cacheEntry holds one cached value with its expiry.
type cacheEntry[V any] struct {
	value     V
	expiresAt time.Time
}

// Cache is a TTL cache for fact source responses. Advisory records are
// shared across components (every lodash version pulls the same CVEs),
// and a long-lived server process answers repeat queries for the same
// component, so caching saves most of the API traffic.
type Cache[V any] struct {
	entries sync.Map // map[string]*cacheEntry[V]
	ttl     time.Duration
	hits    atomic.Int64
	misses  atomic.Int64

	stopEviction chan struct{}
	closeOnce    sync.Once
}

// NewCache creates a cache whose entries expire after ttl. A
// non-positive ttl uses the standard fact cache lifetime. Call Close
// when done to stop the background eviction goroutine.
func NewCache[V any](ttl time.Duration) *Cache[V] {
	if ttl <= 0 {
		ttl = duration.CacheFacts
	}
	c := &Cache[V]{
		ttl:          ttl,
		stopEviction: make(chan struct{}),
	}
	go c.evictionLoop(2 * ttl)
	return c
}

// Get returns the cached value for key if it has not expired.
func (c *Cache[V]) Get(key string) (V, bool) {
	var zero V
	v, ok := c.entries.Load(key)
	if !ok {
		c.misses.Add(1)
		return zero, false
	}
	entry := v.(*cacheEntry[V])
	if time.Now().After(entry.expiresAt) {
		c.entries.Delete(key)
		c.misses.Add(1)
		return zero, false
	}
	c.hits.Add(1)
	return entry.value, true
}

// Set stores value under key with the cache's TTL.
func (c *Cache[V]) Set(key string, value V) {
	c.entries.Store(key, &cacheEntry[V]{
		value:     value,
		expiresAt: time.Now().Add(c.ttl),
	})
}

// Delete removes key from the cache.
func (c *Cache[V]) Delete(key string) {
	c.entries.Delete(key)
}

// Len returns the number of entries, expired ones included.
func (c *Cache[V]) Len() int {
	n := 0
	c.entries.Range(func(_, _ any) bool {
		n++
		return true
	})
	return n
}

// Stats returns hit and miss counts.
func (c *Cache[V]) Stats() (hits, misses int64) {
	return c.hits.Load(), c.misses.Load()
}

// Close stops the background eviction goroutine. The cache remains
// usable, entries just stop being swept.
func (c *Cache[V]) Close() {
	c.closeOnce.Do(func() {
		close(c.stopEviction)
	})
}

// evictionLoop sweeps expired entries so a long-lived process does not
// accumulate dead advisories. Lookups already drop expired entries
// lazily; the sweep only reclaims keys nothing asks for again.
func (c *Cache[V]) evictionLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-c.stopEviction:
			return
		case <-ticker.C:
			now := time.Now()
			c.entries.Range(func(key, value any) bool {
				if entry, ok := value.(*cacheEntry[V]); ok && now.After(entry.expiresAt) {
					c.entries.Delete(key)
				}
				return true
			})
		}
	}
}
