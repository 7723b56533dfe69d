package middleware

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"contactus-backend/internal/delivery/http/response"
	"contactus-backend/pkg/redis"
	"contactus-backend/pkg/security"

	"github.com/gin-gonic/gin"
	goredis "github.com/redis/go-redis/v9"
)

// RateLimitConfig holds configuration for rate limiting
type RateLimitConfig struct {
	// Requests per window
	Limit int
	// Time window duration
	Window time.Duration
	// Custom key extractor (default: IP-based)
	KeyFunc func(*gin.Context) string
	// Key prefix for Redis (default: "rl:ip:")
	KeyPrefix string
	// Whether to fail closed (reject) when Redis is unavailable
	FailClosed bool
}

// Fixed window counter: INCR, with the TTL set on the first hit
// KEYS[1] = counter key
// ARGV[1] = window in seconds
// Returns: [count, ttl_remaining]
const rateLimitLuaScript = `
local count = redis.call('INCR', KEYS[1])
if count == 1 then
    redis.call('EXPIRE', KEYS[1], ARGV[1])
end
return {count, redis.call('TTL', KEYS[1])}
`

const sweepInterval = 5 * time.Minute

type windowCount struct {
	count   int
	resetAt time.Time
}

// memoryLimiter counts requests per key when Redis is not configured or fails open
type memoryLimiter struct {
	mu       sync.Mutex
	windows  map[string]*windowCount
	start    sync.Once
	stopOnce sync.Once
	stop     chan struct{}
	done     chan struct{}
}

func newMemoryLimiter() *memoryLimiter {
	return &memoryLimiter{
		windows: make(map[string]*windowCount),
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
	}
}

var fallbackLimiter = newMemoryLimiter()

// StopRateLimitCleanup stops the sweeper of the in-memory fallback. Counting
// keeps working; expired windows are then only reset on their next hit.
func StopRateLimitCleanup() {
	fallbackLimiter.Stop()
}

func (m *memoryLimiter) hit(key string, window time.Duration, now time.Time) (int, time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()

	w, ok := m.windows[key]
	if !ok || now.After(w.resetAt) {
		w = &windowCount{resetAt: now.Add(window)}
		m.windows[key] = w
	}
	w.count++
	return w.count, w.resetAt
}

// sweep drops expired windows and returns how many were removed
func (m *memoryLimiter) sweep(now time.Time) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	removed := 0
	for key, w := range m.windows {
		if now.After(w.resetAt) {
			delete(m.windows, key)
			removed++
		}
	}
	return removed
}

// runSweeper starts the background sweep once; it exits on Stop
func (m *memoryLimiter) runSweeper(interval time.Duration) {
	m.start.Do(func() {
		go func() {
			defer close(m.done)
			ticker := time.NewTicker(interval)
			defer ticker.Stop()
			for {
				select {
				case now := <-ticker.C:
					m.sweep(now)
				case <-m.stop:
					return
				}
			}
		}()
	})
}

func (m *memoryLimiter) Stop() {
	m.stopOnce.Do(func() { close(m.stop) })
}

// GlobalRateLimitConfig returns the per-IP limit applied to every route
func GlobalRateLimitConfig(limit int, window time.Duration) RateLimitConfig {
	return RateLimitConfig{
		Limit:      limit,
		Window:     window,
		KeyPrefix:  "rl:ip:",
		FailClosed: false, // Fail open by default for availability
		KeyFunc: func(c *gin.Context) string {
			return c.ClientIP()
		},
	}
}

// ContactRateLimitConfig returns the strict per-IP limit for form submissions.
// Every accepted submission sends three emails, so Redis errors fail closed.
func ContactRateLimitConfig(limit int, window time.Duration) RateLimitConfig {
	return RateLimitConfig{
		Limit:      limit,
		Window:     window,
		KeyPrefix:  "rl:contact:",
		FailClosed: true,
		KeyFunc: func(c *gin.Context) string {
			return c.ClientIP()
		},
	}
}

// RateLimitMiddleware creates a rate limiting middleware with the given config
// Uses Redis when available, falls back to in-memory when not.
// A non-positive Limit disables the middleware.
func RateLimitMiddleware(config RateLimitConfig) gin.HandlerFunc {
	if config.Limit <= 0 {
		return func(c *gin.Context) { c.Next() }
	}
	if config.KeyFunc == nil {
		config.KeyFunc = func(c *gin.Context) string { return c.ClientIP() }
	}

	fallbackLimiter.runSweeper(sweepInterval)

	return func(c *gin.Context) {
		key := config.KeyPrefix + config.KeyFunc(c)

		count, resetAt, err := countRequest(c.Request.Context(), key, config)
		if err != nil {
			logRateLimitError(c, "redis_error", err)
			response.Error(c, http.StatusServiceUnavailable, "Service temporarily unavailable. Please try again.", nil)
			c.Abort()
			return
		}

		remaining := config.Limit - count
		if remaining < 0 {
			remaining = 0
		}
		c.Header("X-RateLimit-Limit", strconv.Itoa(config.Limit))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(remaining))
		c.Header("X-RateLimit-Reset", resetAt.Format(time.RFC3339))

		if count > config.Limit {
			retryAfter := int(time.Until(resetAt).Seconds())
			if retryAfter < 1 {
				retryAfter = 1
			}
			c.Header("Retry-After", strconv.Itoa(retryAfter))
			logRateLimitTriggered(c)

			response.Error(c, http.StatusTooManyRequests, "Rate limit exceeded. Please try again later.", nil)
			c.Abort()
			return
		}

		c.Next()
	}
}

// countRequest records one hit in Redis, or in memory when Redis is absent or
// fails open. An error is returned only for fail-closed configs.
func countRequest(ctx context.Context, key string, config RateLimitConfig) (int, time.Time, error) {
	if client := redis.Client(); client != nil {
		count, resetAt, err := checkRateLimitRedis(ctx, client, key, config.Window)
		if err == nil {
			return count, resetAt, nil
		}
		if config.FailClosed {
			return 0, time.Time{}, err
		}
	}
	count, resetAt := fallbackLimiter.hit(key, config.Window, time.Now())
	return count, resetAt, nil
}

func checkRateLimitRedis(ctx context.Context, client *goredis.Client, key string, window time.Duration) (int, time.Time, error) {
	result, err := client.Eval(ctx, rateLimitLuaScript, []string{key}, int(window.Seconds())).Result()
	if err != nil {
		return 0, time.Time{}, fmt.Errorf("redis rate limit eval failed: %w", err)
	}

	arr, ok := result.([]interface{})
	if !ok || len(arr) < 2 {
		return 0, time.Time{}, fmt.Errorf("unexpected redis result format")
	}
	count, _ := arr[0].(int64)
	ttl, _ := arr[1].(int64)

	return int(count), time.Now().Add(time.Duration(ttl) * time.Second), nil
}

func logRateLimitTriggered(c *gin.Context) {
	security.DefaultLogger().LogRateLimitTriggered(
		c.Request.Context(),
		c.ClientIP(),
		c.GetHeader("User-Agent"),
		c.GetString(RequestIDKey),
		c.FullPath(),
	)
}

func logRateLimitError(c *gin.Context, errorType string, err error) {
	security.DefaultLogger().Log(c.Request.Context(), security.SecurityEvent{
		Event:       security.EventRateLimitTriggered,
		SubjectType: "system",
		IP:          c.ClientIP(),
		RequestID:   c.GetString(RequestIDKey),
		Details: map[string]interface{}{
			"error_type": errorType,
			"error":      err.Error(),
		},
	})
}
