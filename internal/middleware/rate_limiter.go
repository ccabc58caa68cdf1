package middleware

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"golang.org/x/time/rate"
)

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter is an in-process token bucket per client IP. Visitors idle
// for longer than cleanupInterval are forgotten.
func RateLimiter(r rate.Limit, b int, cleanupInterval time.Duration) gin.HandlerFunc {
	var (
		visitors  = make(map[string]*visitor)
		mu        sync.Mutex
		lastSweep = time.Now()
	)

	getVisitor := func(ip string) *rate.Limiter {
		mu.Lock()
		defer mu.Unlock()

		now := time.Now()
		if cleanupInterval > 0 && now.Sub(lastSweep) > cleanupInterval {
			for key, v := range visitors {
				if now.Sub(v.lastSeen) > cleanupInterval {
					delete(visitors, key)
				}
			}
			lastSweep = now
		}

		v, exists := visitors[ip]
		if !exists {
			v = &visitor{limiter: rate.NewLimiter(r, b)}
			visitors[ip] = v
		}
		v.lastSeen = now
		return v.limiter
	}

	return func(c *gin.Context) {
		if !getVisitor(c.ClientIP()).Allow() {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "rate limit exceeded"})
			return
		}
		c.Next()
	}
}

// DistributedRateLimiter is a sliding-window limiter shared by every
// instance through redis. When redis fails the request is let through.
type DistributedRateLimiter struct {
	redis *redis.Client
}

type RateLimit struct {
	Rate    int
	Window  time.Duration
	KeyFunc func(*gin.Context) string
}

func NewDistributedRateLimiter(redisClient *redis.Client) *DistributedRateLimiter {
	return &DistributedRateLimiter{redis: redisClient}
}

func (rl *DistributedRateLimiter) CreateMiddleware(name string, limit *RateLimit) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := fmt.Sprintf("rate_limit:%s:%s", name, limit.KeyFunc(c))

		allowed, err := rl.checkLimit(c.Request.Context(), key, limit)
		if err != nil {
			c.Header("X-RateLimit-Error", "true")
			c.Next()
			return
		}

		if !allowed {
			c.Header("X-RateLimit-Limit", strconv.Itoa(limit.Rate))
			c.Header("X-RateLimit-Window", limit.Window.String())
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error":       "Rate limit exceeded",
				"retry_after": limit.Window.Seconds(),
			})
			return
		}

		c.Next()
	}
}

func (rl *DistributedRateLimiter) checkLimit(ctx context.Context, key string, limit *RateLimit) (bool, error) {
	now := time.Now().UnixNano()
	windowStart := now - limit.Window.Nanoseconds()

	pipe := rl.redis.Pipeline()
	pipe.ZRemRangeByScore(ctx, key, "0", strconv.FormatInt(windowStart, 10))
	countCmd := pipe.ZCard(ctx, key)
	pipe.ZAdd(ctx, key, redis.Z{Score: float64(now), Member: now})
	pipe.Expire(ctx, key, limit.Window)

	if _, err := pipe.Exec(ctx); err != nil {
		return false, fmt.Errorf("failed to execute rate limit pipeline: %w", err)
	}

	return countCmd.Val() < int64(limit.Rate), nil
}

func IPKeyFunc(c *gin.Context) string {
	return c.ClientIP()
}

// UserKeyFunc keys on the authenticated user, falling back to the IP.
func UserKeyFunc(c *gin.Context) string {
	if userID, ok := UserID(c); ok {
		return fmt.Sprintf("user:%d", userID)
	}
	return c.ClientIP()
}
