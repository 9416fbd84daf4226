package middleware

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/rs/xid"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

// RateLimitConfig holds rate limiting configuration
type RateLimitConfig struct {
	Requests   int                         // Number of requests
	Window     time.Duration               // Time window
	KeyFunc    func(c *gin.Context) string // Function to generate rate limit key
	Message    string                      // Error message to return
	StatusCode int                         // HTTP status code to return
}

// DefaultRateLimit allows 100 requests per minute per client IP
var DefaultRateLimit = RateLimitConfig{
	Requests:   100,
	Window:     time.Minute,
	KeyFunc:    func(c *gin.Context) string { return c.ClientIP() },
	Message:    "Too many requests, please try again later",
	StatusCode: http.StatusTooManyRequests,
}

// localIdleSweep is the number of local limiters kept before idle ones are dropped
const localIdleSweep = 10000

// RateLimiter limits requests per key. With a Redis client the window is a
// sorted-set sliding window shared by every instance; without one, or when
// Redis fails, each key gets an in-process token bucket.
type RateLimiter struct {
	redis  *redis.Client
	config RateLimitConfig

	mu    sync.Mutex
	local map[string]*localLimiter
}

type localLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewRateLimiter creates a rate limiter. rdb may be nil.
func NewRateLimiter(rdb *redis.Client, config RateLimitConfig) *RateLimiter {
	if config.Requests <= 0 || config.Window <= 0 {
		config.Requests, config.Window = DefaultRateLimit.Requests, DefaultRateLimit.Window
	}
	if config.KeyFunc == nil {
		config.KeyFunc = DefaultRateLimit.KeyFunc
	}
	if config.Message == "" {
		config.Message = DefaultRateLimit.Message
	}
	if config.StatusCode == 0 {
		config.StatusCode = DefaultRateLimit.StatusCode
	}
	return &RateLimiter{
		redis:  rdb,
		config: config,
		local:  make(map[string]*localLimiter),
	}
}

// Rate limit headers set on every response that passes through the limiter
const (
	LimitHeader     = "X-RateLimit-Limit"
	RemainingHeader = "X-RateLimit-Remaining"
)

// Handler returns the gin middleware
func (rl *RateLimiter) Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		key := fmt.Sprintf("rate_limit:%s", rl.config.KeyFunc(c))

		allowed, remaining := rl.Allow(c.Request.Context(), key)
		c.Header(LimitHeader, strconv.Itoa(rl.config.Requests))
		c.Header(RemainingHeader, strconv.Itoa(remaining))

		if !allowed {
			c.Header("Retry-After", strconv.Itoa(int(rl.config.Window.Seconds())))
			c.AbortWithStatusJSON(rl.config.StatusCode, gin.H{
				"success": false,
				"error": gin.H{
					"code":    "RATE_LIMITED",
					"message": rl.config.Message,
				},
			})
			return
		}

		c.Next()
	}
}

// Allow records one request for key and reports whether it is within the
// limit, along with how many more requests the window still admits
func (rl *RateLimiter) Allow(ctx context.Context, key string) (bool, int) {
	if rl.redis != nil {
		allowed, remaining, err := rl.checkRedis(ctx, key)
		if err == nil {
			return allowed, remaining
		}
		logrus.WithError(err).WithField("key", key).Warn("Redis rate limit check failed, using local limiter")
	}
	return rl.checkLocal(key)
}

// checkRedis checks rate limiting using a Redis sliding window counter
func (rl *RateLimiter) checkRedis(ctx context.Context, key string) (bool, int, error) {
	now := time.Now()
	expired := now.Add(-rl.config.Window).UnixNano()

	// Remove expired entries
	if err := rl.redis.ZRemRangeByScore(ctx, key, "0", strconv.FormatInt(expired, 10)).Err(); err != nil {
		return false, 0, err
	}

	// Count current requests
	count, err := rl.redis.ZCard(ctx, key).Result()
	if err != nil {
		return false, 0, err
	}
	if count >= int64(rl.config.Requests) {
		return false, 0, nil
	}

	// Add current request
	err = rl.redis.ZAdd(ctx, key, &redis.Z{
		Score:  float64(now.UnixNano()),
		Member: xid.New().String(),
	}).Err()
	if err != nil {
		return false, 0, err
	}

	if err := rl.redis.Expire(ctx, key, rl.config.Window).Err(); err != nil {
		return false, 0, err
	}
	return true, rl.config.Requests - int(count) - 1, nil
}

// checkLocal checks rate limiting with a per-key token bucket that refills
// Requests tokens every Window
func (rl *RateLimiter) checkLocal(key string) (bool, int) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	if len(rl.local) >= localIdleSweep {
		for k, l := range rl.local {
			if now.Sub(l.lastSeen) > rl.config.Window {
				delete(rl.local, k)
			}
		}
	}

	l, ok := rl.local[key]
	if !ok {
		every := rl.config.Window / time.Duration(rl.config.Requests)
		l = &localLimiter{limiter: rate.NewLimiter(rate.Every(every), rl.config.Requests)}
		rl.local[key] = l
	}
	l.lastSeen = now
	allowed := l.limiter.AllowN(now, 1)

	remaining := int(l.limiter.TokensAt(now))
	if remaining < 0 {
		remaining = 0
	}
	return allowed, remaining
}
