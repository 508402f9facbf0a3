// Package web holds the HTTP-facing infrastructure shared by the
// dashboard handlers: the response cache and the websocket hub.
package web

import (
	"sync"
	"time"
)

type cacheEntry struct {
	payload   []byte
	expiresAt time.Time
}

// ResponseCache is a TTL cache for marshaled JSON responses. Entries are
// evicted lazily on read.
type ResponseCache struct {
	mu         sync.RWMutex
	entries    map[string]cacheEntry
	defaultTTL time.Duration
	now        func() time.Time
}

// NewResponseCache creates a cache whose entries expire after defaultTTL
// unless stored with an explicit TTL.
func NewResponseCache(defaultTTL time.Duration) *ResponseCache {
	return &ResponseCache{
		entries:    make(map[string]cacheEntry),
		defaultTTL: defaultTTL,
		now:        time.Now,
	}
}

// Get returns the cached payload for key, dropping it when expired.
func (c *ResponseCache) Get(key string) ([]byte, bool) {
	c.mu.RLock()
	entry, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok {
		return nil, false
	}
	if c.now().After(entry.expiresAt) {
		c.mu.Lock()
		// Re-check under the write lock; a Set may have refreshed the entry.
		if current, stillThere := c.entries[key]; stillThere && c.now().After(current.expiresAt) {
			delete(c.entries, key)
		}
		c.mu.Unlock()
		return nil, false
	}
	return entry.payload, true
}

// Set stores payload under key with the default TTL.
func (c *ResponseCache) Set(key string, payload []byte) {
	c.SetWithTTL(key, payload, c.defaultTTL)
}

// SetWithTTL stores payload under key with an explicit TTL.
func (c *ResponseCache) SetWithTTL(key string, payload []byte, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = cacheEntry{payload: payload, expiresAt: c.now().Add(ttl)}
}
