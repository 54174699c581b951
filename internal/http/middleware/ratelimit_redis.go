package middleware

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/toprakhenaz/sword-combat/internal/logger"

	"github.com/gin-gonic/gin"
	redis "github.com/redis/go-redis/v9"
)

// RateLimiter counts requests in fixed windows shared through Redis, so
// every instance sees the same totals. Without a client, or when Redis
// errors, requests pass.
type RateLimiter struct {
	rdb *redis.Client
	now func() time.Time
}

func NewRateLimiter(rdb *redis.Client) *RateLimiter {
	return &RateLimiter{rdb: rdb, now: time.Now}
}

// window is the outcome of one counted request.
type window struct {
	count int64
	reset time.Time
}

// count adds one request to the bucket of subject for the current window.
// Buckets are aligned to the window so a key never outlives it.
func (l *RateLimiter) count(ctx context.Context, scope, subject string, size time.Duration) (window, error) {
	now := l.now()
	bucket := now.UnixNano() / int64(size)
	key := "rl:" + scope + ":" + subject + ":" + strconv.FormatInt(bucket, 36)

	var incr *redis.IntCmd
	_, err := l.rdb.TxPipelined(ctx, func(p redis.Pipeliner) error {
		incr = p.Incr(ctx, key)
		p.Expire(ctx, key, size)
		return nil
	})
	if err != nil {
		return window{}, err
	}
	return window{count: incr.Val(), reset: time.Unix(0, (bucket+1)*int64(size))}, nil
}

// limit returns middleware allowing max requests per window for the
// subject chosen by key. An empty subject is rejected as unauthorized.
func (l *RateLimiter) limit(scope string, max int, size time.Duration, key func(*gin.Context) string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if l == nil || l.rdb == nil {
			c.Next()
			return
		}
		subject := key(c)
		if subject == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}

		route := scope + ":" + c.FullPath()
		w, err := l.count(c.Request.Context(), scope, subject, size)
		if err != nil {
			logger.WithContext(c.Request.Context()).Warn("rate limiter unavailable", "scope", scope, "error", err)
			c.Next()
			return
		}

		remaining := int64(max) - w.count
		c.Header("X-RateLimit-Limit", strconv.Itoa(max))
		c.Header("X-RateLimit-Remaining", strconv.FormatInt(maxInt64(remaining, 0), 10))
		c.Header("X-RateLimit-Reset", strconv.FormatInt(w.reset.Unix(), 10))

		if remaining < 0 {
			rateLimitRejected.WithLabelValues(route).Inc()
			retry := int(w.reset.Sub(l.now()).Seconds()) + 1
			c.Header("Retry-After", strconv.Itoa(retry))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error":       "rate limit exceeded",
				"code":        "rate_limited",
				"retry_after": retry,
			})
			return
		}
		rateLimitChecked.WithLabelValues(route).Inc()
		c.Next()
	}
}

func maxInt64(a, b int64) int64 {
	if a > b {
		return a
	}
	return b
}

// ByIP limits requests per client address.
func (l *RateLimiter) ByIP(max int, size time.Duration) gin.HandlerFunc {
	return l.limit("ip", max, size, func(c *gin.Context) string { return c.ClientIP() })
}

// ByUser limits game actions per player. JWT must run first.
func (l *RateLimiter) ByUser(max int, size time.Duration) gin.HandlerFunc {
	return l.limit("user", max, size, func(c *gin.Context) string {
		id, ok := UserID(c)
		if !ok {
			return ""
		}
		return strconv.FormatInt(id, 10)
	})
}
