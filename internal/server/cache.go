package server

import (
	"strings"
	"sync"
	"time"
)

// CacheEntry is one source file as served.
type CacheEntry struct {
	Data    []byte
	ModTime time.Time
}

// Cache holds source files read ahead of the browser asking for them, keyed
// by root-relative source path (e.g. /solutions/qr/main.ts).
type Cache struct {
	mu sync.RWMutex

	files map[string]*CacheEntry

	// Max size for LRU-like behavior (simplified for now)
	maxFiles int
}

// NewCache initializes a new cache holding at most maxFiles entries.
func NewCache(maxFiles int) *Cache {
	return &Cache{
		files:    make(map[string]*CacheEntry),
		maxFiles: maxFiles,
	}
}

// Get returns a cached file.
func (c *Cache) Get(key string) (*CacheEntry, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.files[key]
	return e, ok
}

// Set caches a file.
func (c *Cache) Set(key string, e *CacheEntry) {
	c.mu.Lock()
	defer c.mu.Unlock()

	// Simple size limiting: clear if it grows too large
	if len(c.files) >= c.maxFiles {
		c.files = make(map[string]*CacheEntry)
	}
	c.files[key] = e
}

// Invalidate removes key and, when key is a directory, everything below it.
func (c *Cache) Invalidate(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.files, key)
	dir := strings.TrimSuffix(key, "/") + "/"
	for k := range c.files {
		if strings.HasPrefix(k, dir) {
			delete(c.files, k)
		}
	}
}

// InvalidateAll clears the entire cache.
func (c *Cache) InvalidateAll() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.files = make(map[string]*CacheEntry)
}

// Len returns the number of cached files.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.files)
}
