package recovery

import (
	"sync"
	"time"
)

// valueCache is the expiring store consulted by StrategyCacheFallback.
// Entries are evicted lazily on read.
type valueCache struct {
	mu      sync.RWMutex
	entries map[string]*cacheEntry
}

type cacheEntry struct {
	value     any
	expiresAt time.Time
}

func newValueCache() *valueCache {
	return &valueCache{entries: make(map[string]*cacheEntry)}
}

// get retrieves a value. Returns (nil, false) on miss or expiry.
func (c *valueCache) get(key string) (any, bool) {
	c.mu.RLock()
	entry, ok := c.entries[key]
	c.mu.RUnlock()

	if !ok {
		return nil, false
	}

	if time.Now().After(entry.expiresAt) {
		// Expired - clean up lazily
		c.mu.Lock()
		delete(c.entries, key)
		c.mu.Unlock()
		return nil, false
	}

	return entry.value, true
}

// set stores a value with the given TTL. TTL<=0 means don't cache.
func (c *valueCache) set(key string, value any, ttl time.Duration) {
	if ttl <= 0 {
		return
	}

	c.mu.Lock()
	c.entries[key] = &cacheEntry{
		value:     value,
		expiresAt: time.Now().Add(ttl),
	}
	c.mu.Unlock()
}

// delete removes a value. Idempotent.
func (c *valueCache) delete(key string) {
	c.mu.Lock()
	delete(c.entries, key)
	c.mu.Unlock()
}

// len reports the number of entries, expired ones included.
func (c *valueCache) len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
