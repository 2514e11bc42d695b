package middleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

// ipRateLimiter hands out one token bucket per client IP.
type ipRateLimiter struct {
	ips   map[string]*rate.Limiter
	mu    sync.Mutex
	rate  rate.Limit
	burst int
}

func (rl *ipRateLimiter) limiter(ip string) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	if limiter, exists := rl.ips[ip]; exists {
		return limiter
	}

	limiter := rate.NewLimiter(rl.rate, rl.burst)
	rl.ips[ip] = limiter
	return limiter
}

// RateLimit caps traffic per client IP with the given refill rate and burst.
func RateLimit(r rate.Limit, burst int) gin.HandlerFunc {
	rl := &ipRateLimiter{
		ips:   make(map[string]*rate.Limiter),
		rate:  r,
		burst: burst,
	}

	return func(c *gin.Context) {
		if !rl.limiter(c.ClientIP()).Allow() {
			c.JSON(http.StatusTooManyRequests, gin.H{"error": "Rate limit exceeded"})
			c.Abort()
			return
		}
		c.Next()
	}
}

// CheckoutRateLimit keeps a single buyer from hammering the vendor through
// us: one charge per second sustained, with room for a page worth of retries.
func CheckoutRateLimit() gin.HandlerFunc {
	return RateLimit(rate.Every(time.Second), 20)
}

// WebhookRateLimit admits the vendor's redelivery bursts while still bounding
// a misbehaving sender.
func WebhookRateLimit() gin.HandlerFunc {
	return RateLimit(rate.Every(100*time.Millisecond), 100)
}
