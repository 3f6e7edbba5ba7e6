package middleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

// IPThrottle is a token bucket per client IP. It sits in front of the login
// routes, ahead of the per-identifier lockout, so one address cannot spray
// many identifiers.
type IPThrottle struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	lastSeen map[string]time.Time
	rate     rate.Limit
	burst    int
	ttl      time.Duration
	now      func() time.Time
}

func NewIPThrottle(perSecond float64, burst int, ttl time.Duration) *IPThrottle {
	return &IPThrottle{
		limiters: make(map[string]*rate.Limiter),
		lastSeen: make(map[string]time.Time),
		rate:     rate.Limit(perSecond),
		burst:    burst,
		ttl:      ttl,
		now:      time.Now,
	}
}

func (t *IPThrottle) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !t.allow(c.ClientIP()) {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "too_many_requests"})
			return
		}
		c.Next()
	}
}

func (t *IPThrottle) allow(ip string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	limiter, ok := t.limiters[ip]
	if !ok {
		limiter = rate.NewLimiter(t.rate, t.burst)
		t.limiters[ip] = limiter
		t.cleanup(now)
	}
	t.lastSeen[ip] = now
	return limiter.AllowN(now, 1)
}

func (t *IPThrottle) cleanup(now time.Time) {
	if t.ttl == 0 {
		return
	}
	cutoff := now.Add(-t.ttl)
	for ip, last := range t.lastSeen {
		if last.Before(cutoff) {
			delete(t.lastSeen, ip)
			delete(t.limiters, ip)
		}
	}
}
