package middleware_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trade-ledger/pkg/middleware"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func perform(router *gin.Engine, header http.Header) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	for k, values := range header {
		for _, v := range values {
			req.Header.Add(k, v)
		}
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestPerformCanonicalizesHeaders(t *testing.T) {
	router := gin.New()
	router.GET("/ping", func(c *gin.Context) {
		c.String(http.StatusOK, c.GetHeader(middleware.RequestIDHeader))
	})

	w := perform(router, http.Header{"x-request-id": {"lower-1"}})
	assert.Equal(t, "lower-1", w.Body.String())
}

func TestRequestID(t *testing.T) {
	router := gin.New()
	router.Use(middleware.RequestID())
	router.GET("/ping", func(c *gin.Context) {
		c.String(http.StatusOK, middleware.GetRequestID(c))
	})

	t.Run("generates an id", func(t *testing.T) {
		w := perform(router, nil)
		id := w.Header().Get(middleware.RequestIDHeader)
		assert.Len(t, id, 20)
		assert.Equal(t, id, w.Body.String())
	})

	t.Run("keeps a caller id", func(t *testing.T) {
		w := perform(router, http.Header{middleware.RequestIDHeader: {"abc-123"}})
		assert.Equal(t, "abc-123", w.Header().Get(middleware.RequestIDHeader))
		assert.Equal(t, "abc-123", w.Body.String())
	})
}

func TestLogger(t *testing.T) {
	logger, hook := test.NewNullLogger()

	router := gin.New()
	router.Use(middleware.RequestID(), middleware.Logger(logger))
	router.GET("/ping", func(c *gin.Context) { c.Status(http.StatusOK) })
	router.GET("/missing", func(c *gin.Context) { c.Status(http.StatusNotFound) })

	perform(router, http.Header{middleware.RequestIDHeader: {"req-1"}})
	entry := hook.LastEntry()
	require.NotNil(t, entry)
	assert.Equal(t, logrus.InfoLevel, entry.Level)
	assert.Equal(t, "req-1", entry.Data["request_id"])
	assert.Equal(t, "/ping", entry.Data["path"])
	assert.Equal(t, http.StatusOK, entry.Data["status"])

	req := httptest.NewRequest(http.MethodGet, "/missing", nil)
	router.ServeHTTP(httptest.NewRecorder(), req)
	assert.Equal(t, logrus.WarnLevel, hook.LastEntry().Level)
}

func limitedRouter(limiter *middleware.RateLimiter) *gin.Engine {
	router := gin.New()
	router.Use(limiter.Handler())
	router.GET("/ping", func(c *gin.Context) { c.Status(http.StatusOK) })
	return router
}

func TestRateLimiterLocal(t *testing.T) {
	limiter := middleware.NewRateLimiter(nil, middleware.RateLimitConfig{Requests: 2, Window: time.Minute})
	router := limitedRouter(limiter)

	w := perform(router, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "2", w.Header().Get(middleware.LimitHeader))
	assert.Equal(t, "1", w.Header().Get(middleware.RemainingHeader))

	w = perform(router, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "0", w.Header().Get(middleware.RemainingHeader))

	w = perform(router, nil)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "60", w.Header().Get("Retry-After"))
	assert.Equal(t, "2", w.Header().Get(middleware.LimitHeader))
	assert.Equal(t, "0", w.Header().Get(middleware.RemainingHeader))
	assert.JSONEq(t, `{"success":false,"error":{"code":"RATE_LIMITED","message":"Too many requests, please try again later"}}`, w.Body.String())
}

func TestRateLimiterKeysAreIndependent(t *testing.T) {
	limiter := middleware.NewRateLimiter(nil, middleware.RateLimitConfig{Requests: 1, Window: time.Minute})
	ctx := context.Background()

	allowed, _ := limiter.Allow(ctx, "rate_limit:10.0.0.1")
	assert.True(t, allowed)
	allowed, _ = limiter.Allow(ctx, "rate_limit:10.0.0.1")
	assert.False(t, allowed)
	allowed, _ = limiter.Allow(ctx, "rate_limit:10.0.0.2")
	assert.True(t, allowed)
}

func TestRateLimiterFallsBackWhenRedisIsDown(t *testing.T) {
	rdb := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1", MaxRetries: -1, DialTimeout: 100 * time.Millisecond})
	t.Cleanup(func() { _ = rdb.Close() })

	limiter := middleware.NewRateLimiter(rdb, middleware.RateLimitConfig{Requests: 1, Window: time.Minute})
	router := limitedRouter(limiter)

	assert.Equal(t, http.StatusOK, perform(router, nil).Code)
	assert.Equal(t, http.StatusTooManyRequests, perform(router, nil).Code)
}

func TestRateLimiterRedis(t *testing.T) {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		t.Skip("REDIS_ADDR not set")
	}
	ctx := context.Background()
	rdb := redis.NewClient(&redis.Options{Addr: addr})
	t.Cleanup(func() { _ = rdb.Close() })

	key := "test-" + time.Now().Format("150405.000000000")
	require.NoError(t, rdb.Del(ctx, "rate_limit:"+key).Err())
	t.Cleanup(func() { rdb.Del(ctx, "rate_limit:"+key) })

	limiter := middleware.NewRateLimiter(rdb, middleware.RateLimitConfig{
		Requests: 3,
		Window:   time.Minute,
		KeyFunc:  func(*gin.Context) string { return key },
	})
	router := limitedRouter(limiter)

	for i, want := range []string{"2", "1", "0"} {
		w := perform(router, nil)
		assert.Equal(t, http.StatusOK, w.Code, "request %d", i)
		assert.Equal(t, want, w.Header().Get(middleware.RemainingHeader), "request %d", i)
	}
	w := perform(router, nil)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "3", w.Header().Get(middleware.LimitHeader))
	assert.Equal(t, "0", w.Header().Get(middleware.RemainingHeader))

	count, err := rdb.ZCard(ctx, "rate_limit:"+key).Result()
	require.NoError(t, err)
	assert.EqualValues(t, 3, count)
}
