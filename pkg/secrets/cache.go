package secrets

import (
	"sync"
	"time"
)

// CacheConfig configures the Manager's secret cache.
type CacheConfig struct {
	Enabled bool
	TTL     time.Duration
}

type cacheEntry struct {
	value     string
	expiresAt time.Time
}

// Cache is a TTL cache of resolved secrets.
type Cache struct {
	config  CacheConfig
	entries map[string]cacheEntry
	now     func() time.Time
	mu      sync.RWMutex
}

// NewCache creates a Cache.
func NewCache(config CacheConfig) *Cache {
	return &Cache{
		config:  config,
		entries: make(map[string]cacheEntry),
		now:     time.Now,
	}
}

// Get returns an unexpired cached value.
func (c *Cache) Get(key string) (string, bool) {
	if !c.config.Enabled {
		return "", false
	}

	c.mu.RLock()
	defer c.mu.RUnlock()

	e, ok := c.entries[key]
	if !ok || c.now().After(e.expiresAt) {
		return "", false
	}
	return e.value, true
}

// Set caches value for the configured TTL.
func (c *Cache) Set(key, value string) {
	if !c.config.Enabled {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = cacheEntry{value: value, expiresAt: c.now().Add(c.config.TTL)}
}

// Clear removes every entry.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]cacheEntry)
}
