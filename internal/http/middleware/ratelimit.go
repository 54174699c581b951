package middleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

type clientInfo struct {
	limiter *rate.Limiter
	seen    time.Time
}

// LocalRateLimit is an in-process token bucket per client IP, used on the
// login endpoints whether or not Redis is configured.
func LocalRateLimit(maxRequests int, window time.Duration) gin.HandlerFunc {
	var (
		mu      sync.Mutex
		clients = make(map[string]*clientInfo)
		swept   = time.Now()
	)
	every := window / time.Duration(max(1, maxRequests))

	return func(c *gin.Context) {
		ip := c.ClientIP()
		now := time.Now()

		mu.Lock()
		if now.Sub(swept) > 10*window {
			for k, ci := range clients {
				if now.Sub(ci.seen) > window {
					delete(clients, k)
				}
			}
			swept = now
		}
		ci, ok := clients[ip]
		if !ok {
			ci = &clientInfo{limiter: rate.NewLimiter(rate.Every(every), maxRequests)}
			clients[ip] = ci
		}
		ci.seen = now
		allowed := ci.limiter.AllowN(now, 1)
		mu.Unlock()

		if !allowed {
			rateLimitRejected.WithLabelValues("local:" + c.FullPath()).Inc()
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "rate limit exceeded", "code": "rate_limited"})
			return
		}
		c.Next()
	}
}
