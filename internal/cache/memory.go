package cache

import (
	"path"
	"sync"
	"time"
)

// MemoryCache is the in-process L1 tier. Values are stored as encoded
// bytes so callers never share mutable state through it.
type MemoryCache struct {
	mu    sync.RWMutex
	items map[string]cacheItem
	stop  chan struct{}
	once  sync.Once
}

type cacheItem struct {
	data       []byte
	expiration time.Time
}

func NewMemoryCache(cleanupInterval time.Duration) *MemoryCache {
	c := &MemoryCache{
		items: make(map[string]cacheItem),
		stop:  make(chan struct{}),
	}
	if cleanupInterval > 0 {
		go c.cleanup(cleanupInterval)
	}
	return c
}

func (c *MemoryCache) Set(key string, data []byte, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items[key] = cacheItem{data: data, expiration: time.Now().Add(ttl)}
}

func (c *MemoryCache) Get(key string) ([]byte, bool) {
	c.mu.RLock()
	item, ok := c.items[key]
	c.mu.RUnlock()
	if !ok {
		return nil, false
	}

	if time.Now().After(item.expiration) {
		c.Delete(key)
		return nil, false
	}
	return item.data, true
}

func (c *MemoryCache) Delete(keys ...string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, key := range keys {
		delete(c.items, key)
	}
}

// DeletePattern accepts the same glob syntax as redis KEYS/SCAN for the
// patterns used here (*, ? and character classes).
func (c *MemoryCache) DeletePattern(pattern string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for key := range c.items {
		if ok, _ := path.Match(pattern, key); ok {
			delete(c.items, key)
		}
	}
}

func (c *MemoryCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}

func (c *MemoryCache) cleanup(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-c.stop:
			return
		case now := <-ticker.C:
			c.mu.Lock()
			for key, item := range c.items {
				if now.After(item.expiration) {
					delete(c.items, key)
				}
			}
			c.mu.Unlock()
		}
	}
}

func (c *MemoryCache) Close() error {
	c.once.Do(func() { close(c.stop) })
	return nil
}
