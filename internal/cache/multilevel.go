package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"
)

// Cache is the read-through store used for per-user list responses.
type Cache interface {
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Get(ctx context.Context, key string, dest interface{}) error
	Delete(ctx context.Context, keys ...string) error
	DeletePattern(ctx context.Context, pattern string) error
	Health(ctx context.Context) error
	Stats() map[string]interface{}
	Close() error
}

// MultiLevelCache keeps a short-lived in-process copy (L1) in front of
// redis (L2). L2 is optional; when it is nil or its breaker is open the
// cache runs on L1 alone.
type MultiLevelCache struct {
	l1      *MemoryCache
	l2      *RedisCache
	l1TTL   time.Duration
	breaker *CircuitBreaker
	metrics *CacheMetrics
}

func NewMultiLevelCache(redisCache *RedisCache, l1TTL time.Duration) *MultiLevelCache {
	if l1TTL <= 0 {
		l1TTL = 30 * time.Second
	}
	return &MultiLevelCache{
		l1:      NewMemoryCache(time.Minute),
		l2:      redisCache,
		l1TTL:   l1TTL,
		breaker: NewCircuitBreaker(nil),
		metrics: NewCacheMetrics(),
	}
}

func (c *MultiLevelCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		c.metrics.RecordError()
		return fmt.Errorf("failed to marshal value: %w", err)
	}

	c.l1.Set(key, data, min(ttl, c.l1TTL))
	c.metrics.RecordSet()

	return c.withL2(func() error { return c.l2.setBytes(ctx, key, data, ttl) })
}

func (c *MultiLevelCache) Get(ctx context.Context, key string, dest interface{}) error {
	if data, found := c.l1.Get(key); found {
		c.metrics.RecordHit()
		return json.Unmarshal(data, dest)
	}

	var data []byte
	err := c.withL2(func() error {
		var err error
		data, err = c.l2.getBytes(ctx, key)
		if errors.Is(err, ErrCacheMiss) {
			return nil
		}
		return err
	})
	if err != nil || data == nil {
		c.metrics.RecordMiss()
		return ErrCacheMiss
	}

	if err := json.Unmarshal(data, dest); err != nil {
		c.metrics.RecordError()
		return fmt.Errorf("failed to unmarshal cached data: %w", err)
	}
	c.l1.Set(key, data, c.l1TTL)
	c.metrics.RecordHit()
	return nil
}

func (c *MultiLevelCache) Delete(ctx context.Context, keys ...string) error {
	c.l1.Delete(keys...)
	c.metrics.RecordDelete()
	return c.withL2(func() error { return c.l2.Delete(ctx, keys...) })
}

func (c *MultiLevelCache) DeletePattern(ctx context.Context, pattern string) error {
	c.l1.DeletePattern(pattern)
	c.metrics.RecordDelete()
	return c.withL2(func() error { return c.l2.DeletePattern(ctx, pattern) })
}

func (c *MultiLevelCache) withL2(fn func() error) error {
	if c.l2 == nil {
		return nil
	}
	err := c.breaker.Execute(fn)
	if err != nil && !errors.Is(err, ErrCircuitBreakerOpen) {
		c.metrics.RecordError()
		log.Printf("⚠️ redis cache error: %v", err)
	}
	return err
}

func (c *MultiLevelCache) Health(ctx context.Context) error {
	if c.l2 != nil {
		return c.l2.Health(ctx)
	}
	return nil
}

func (c *MultiLevelCache) Stats() map[string]interface{} {
	m := c.metrics.Snapshot()
	stats := map[string]interface{}{
		"hits":     m.Hits,
		"misses":   m.Misses,
		"errors":   m.Errors,
		"hit_rate": c.metrics.HitRate(),
		"l1_items": c.l1.Len(),
	}
	if c.l2 != nil {
		stats["l2"] = c.l2.Stats()
		stats["breaker"] = c.breaker.GetStats()
	}
	return stats
}

func (c *MultiLevelCache) Close() error {
	c.l1.Close()
	if c.l2 != nil {
		return c.l2.Close()
	}
	return nil
}
