package middleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	gocache "github.com/patrickmn/go-cache"
	"golang.org/x/time/rate"
)

// limiterIdleTTL is how long an unused bucket is kept.
const limiterIdleTTL = 10 * time.Minute

// IPRateLimiter keeps one token bucket per client IP. Buckets idle for
// longer than the TTL are swept.
type IPRateLimiter struct {
	ips *gocache.Cache
	mu  sync.Mutex
	r   rate.Limit
	b   int
}

func NewIPRateLimiter(r rate.Limit, b int) *IPRateLimiter {
	return newIPRateLimiter(r, b, limiterIdleTTL)
}

func newIPRateLimiter(r rate.Limit, b int, idle time.Duration) *IPRateLimiter {
	return &IPRateLimiter{ips: gocache.New(idle, idle), r: r, b: b}
}

// Limiter returns the bucket for ip, creating it on first use. Each call
// pushes the bucket's expiry back.
func (i *IPRateLimiter) Limiter(ip string) *rate.Limiter {
	i.mu.Lock()
	defer i.mu.Unlock()
	var l *rate.Limiter
	if v, ok := i.ips.Get(ip); ok {
		l = v.(*rate.Limiter)
	} else {
		l = rate.NewLimiter(i.r, i.b)
	}
	i.ips.SetDefault(ip, l)
	return l
}

// Len reports how many buckets are held, including expired ones not yet swept.
func (i *IPRateLimiter) Len() int { return i.ips.ItemCount() }

// RateLimiter rejects requests over r per second (burst b) per client IP.
func RateLimiter(r rate.Limit, b int) gin.HandlerFunc {
	limiter := NewIPRateLimiter(r, b)
	return func(c *gin.Context) {
		if !limiter.Limiter(c.ClientIP()).Allow() {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"message":    "Too many requests, please slow down.",
				"request_id": GetRequestID(c),
			})
			return
		}
		c.Next()
	}
}
