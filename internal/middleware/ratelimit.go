// Package middleware provides gin middleware for the worker API.
package middleware

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

// maxClients bounds the number of tracked IPs.
const maxClients = 100_000

// limiterMaxAge is how long an idle client's limiter is kept.
const limiterMaxAge = 10 * time.Minute

type clientLimiter struct {
	limiter    *rate.Limiter
	lastAccess time.Time
}

// RateLimiter applies a token bucket per client IP.
type RateLimiter struct {
	mu      sync.Mutex
	clients map[string]*clientLimiter
	rate    rate.Limit
	burst   int
}

// NewRateLimiter creates a RateLimiter allowing ratePerSec requests per
// second with the given burst. Idle clients are evicted until ctx is done.
func NewRateLimiter(ctx context.Context, ratePerSec float64, burst int) *RateLimiter {
	rl := &RateLimiter{
		clients: make(map[string]*clientLimiter),
		rate:    rate.Limit(ratePerSec),
		burst:   burst,
	}
	go rl.cleanupLoop(ctx)

	return rl
}

// Allow reports whether a request from ip may proceed. The second result
// is false when the client table is full.
func (rl *RateLimiter) Allow(ip string) (allowed, tracked bool) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	cl, ok := rl.clients[ip]
	if !ok {
		if len(rl.clients) >= maxClients {
			return false, false
		}
		cl = &clientLimiter{limiter: rate.NewLimiter(rl.rate, rl.burst)}
		rl.clients[ip] = cl
	}
	cl.lastAccess = time.Now()

	return cl.limiter.Allow(), true
}

func (rl *RateLimiter) cleanupLoop(ctx context.Context) {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			rl.mu.Lock()
			for ip, cl := range rl.clients {
				if now.Sub(cl.lastAccess) > limiterMaxAge {
					delete(rl.clients, ip)
				}
			}
			rl.mu.Unlock()
		}
	}
}

// Handler returns gin middleware that applies the limiter per client IP.
func (rl *RateLimiter) Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		// Proxy headers are not trusted (SetTrustedProxies(nil)), so this is
		// the socket peer.
		allowed, tracked := rl.Allow(c.ClientIP())
		switch {
		case !tracked:
			respondError(c, http.StatusTooManyRequests, "rate_limited", "too many clients")
			return
		case !allowed:
			respondError(c, http.StatusTooManyRequests, "rate_limited", "rate limit exceeded")
			return
		}

		c.Next()
	}
}
