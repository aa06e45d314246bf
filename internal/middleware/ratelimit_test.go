package middleware

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRateLimiter(t *testing.T) {
	ctx := context.Background()

	t.Run("allows requests under limit", func(t *testing.T) {
		limiter := NewRateLimiter()

		for i := 0; i < 5; i++ {
			allowed, remaining, _ := limiter.Check(ctx, "ip:1.2.3.4", 10)
			assert.True(t, allowed)
			assert.Equal(t, 10-i-1, remaining)
		}
	})

	t.Run("blocks requests over limit", func(t *testing.T) {
		limiter := NewRateLimiter()

		for i := 0; i < 5; i++ {
			limiter.Check(ctx, "ip:1.2.3.5", 5)
		}

		allowed, remaining, _ := limiter.Check(ctx, "ip:1.2.3.5", 5)
		assert.False(t, allowed)
		assert.Equal(t, 0, remaining)
	})

	t.Run("tracks keys separately", func(t *testing.T) {
		limiter := NewRateLimiter()

		for i := 0; i < 5; i++ {
			limiter.Check(ctx, "ip:a", 5)
		}

		allowed, _, _ := limiter.Check(ctx, "ip:b", 5)
		assert.True(t, allowed)
	})

	t.Run("window slides", func(t *testing.T) {
		limiter := NewRateLimiter()
		now := time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)
		limiter.now = func() time.Time { return now }

		for i := 0; i < 3; i++ {
			limiter.Check(ctx, "ip:c", 3)
		}
		allowed, _, _ := limiter.Check(ctx, "ip:c", 3)
		assert.False(t, allowed)

		now = now.Add(windowDuration + time.Second)
		allowed, _, _ = limiter.Check(ctx, "ip:c", 3)
		assert.True(t, allowed)
	})
}

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestRateLimitMiddleware(t *testing.T) {
	t.Run("sets rate limit headers", func(t *testing.T) {
		handler := NewRateLimitMiddleware(NewRateLimiter(), 100).Handler(okHandler())

		req := httptest.NewRequest(http.MethodPost, "/api/chat", nil)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "100", rec.Header().Get("X-RateLimit-Limit"))
		assert.Equal(t, "99", rec.Header().Get("X-RateLimit-Remaining"))
		assert.NotEmpty(t, rec.Header().Get("X-RateLimit-Reset"))
	})

	t.Run("returns 429 when rate limited", func(t *testing.T) {
		handler := NewRateLimitMiddleware(NewRateLimiter(), 2).Handler(okHandler())

		for i := 0; i < 2; i++ {
			req := httptest.NewRequest(http.MethodPost, "/api/chat", nil)
			req.RemoteAddr = "10.0.0.1:5000"
			handler.ServeHTTP(httptest.NewRecorder(), req)
		}

		req := httptest.NewRequest(http.MethodPost, "/api/chat", nil)
		req.RemoteAddr = "10.0.0.1:6000"
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusTooManyRequests, rec.Code)
		assert.Contains(t, rec.Body.String(), "RATE_LIMIT_EXCEEDED")
		assert.NotEmpty(t, rec.Header().Get("Retry-After"))
	})

	t.Run("limits per ip, not per connection", func(t *testing.T) {
		handler := NewRateLimitMiddleware(NewRateLimiter(), 1).Handler(okHandler())

		first := httptest.NewRequest(http.MethodPost, "/api/chat", nil)
		first.RemoteAddr = "10.0.0.2:1111"
		handler.ServeHTTP(httptest.NewRecorder(), first)

		other := httptest.NewRequest(http.MethodPost, "/api/chat", nil)
		other.RemoteAddr = "10.0.0.3:1111"
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, other)

		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("preflight is not counted", func(t *testing.T) {
		handler := NewRateLimitMiddleware(NewRateLimiter(), 1).Handler(okHandler())

		for i := 0; i < 3; i++ {
			req := httptest.NewRequest(http.MethodOptions, "/api/chat", nil)
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)
			assert.Equal(t, http.StatusOK, rec.Code)
		}
	})

	t.Run("zero limit disables limiting", func(t *testing.T) {
		limiter := NewRateLimiter()
		handler := NewRateLimitMiddleware(limiter, 0).Handler(okHandler())

		for i := 0; i < 200; i++ {
			req := httptest.NewRequest(http.MethodPost, "/api/chat", nil)
			req.RemoteAddr = "10.0.0.9:4000"
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			require.Equal(t, http.StatusOK, rec.Code, "request %d", i)
			assert.Empty(t, rec.Header().Get("X-RateLimit-Limit"))
		}
		assert.Empty(t, limiter.store, "disabled middleware must not track clients")
	})
}

func TestClientIP(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)

	req.RemoteAddr = "192.0.2.7:4431"
	assert.Equal(t, "192.0.2.7", clientIP(req))

	req.RemoteAddr = "192.0.2.8"
	assert.Equal(t, "192.0.2.8", clientIP(req))

	req.RemoteAddr = "[2001:db8::1]:80"
	assert.Equal(t, "2001:db8::1", clientIP(req))
}

func TestRedisRateLimiter(t *testing.T) {
	opts, err := redis.ParseURL("redis://localhost:6379/15")
	require.NoError(t, err)
	client := redis.NewClient(opts)
	defer client.Close()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		t.Skip("Redis not available for testing")
	}

	prefix := fmt.Sprintf("test:%d:", time.Now().UnixNano())
	limiter := NewRedisRateLimiter(client, prefix)
	t.Cleanup(func() { client.Del(context.Background(), prefix+"ratelimit:ip:test") })

	for i := 0; i < 3; i++ {
		allowed, remaining, _ := limiter.Check(ctx, "ip:test", 3)
		assert.True(t, allowed)
		assert.Equal(t, 3-i-1, remaining)
	}

	allowed, remaining, resetAt := limiter.Check(ctx, "ip:test", 3)
	assert.False(t, allowed)
	assert.Equal(t, 0, remaining)
	assert.Greater(t, resetAt, time.Now().Unix())
}

func TestRedisRateLimiter_FailsOpen(t *testing.T) {
	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 50 * time.Millisecond,
		MaxRetries:  -1,
	})
	defer client.Close()

	allowed, _, _ := NewRedisRateLimiter(client, "x:").Check(context.Background(), "ip:a", 1)
	assert.True(t, allowed)
}
