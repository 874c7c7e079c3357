package middleware

import (
	"context"
	"net/http"
	"slices"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// Lockout policy for repeated authentication failures from one client IP.
const (
	LockoutMaxAttempts = 5
	LockoutWindow      = 15 * time.Minute
	LockoutDuration    = 5 * time.Minute
	lockoutCleanup     = 60 * time.Second
	lockoutMaxRecords  = 10000
)

type failureRecord struct {
	attempts  int
	firstFail time.Time
	lockedAt  time.Time
}

// LockoutGuard blocks client IPs that exceed the failure threshold within
// the tracking window.
type LockoutGuard struct {
	mu      sync.Mutex
	records map[string]*failureRecord
	log     *logrus.Logger
	now     func() time.Time
}

// NewLockoutGuard creates a guard whose cleanup goroutine stops with ctx.
func NewLockoutGuard(ctx context.Context, log *logrus.Logger) *LockoutGuard {
	g := &LockoutGuard{
		records: make(map[string]*failureRecord),
		log:     log,
		now:     time.Now,
	}
	go g.cleanupLoop(ctx)
	return g
}

// IsBlocked reports whether ip is currently locked out.
func (g *LockoutGuard) IsBlocked(ip string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	rec, ok := g.records[ip]
	if !ok || rec.lockedAt.IsZero() {
		return false
	}

	return g.now().Sub(rec.lockedAt) < LockoutDuration
}

// RecordFailure counts one failed attempt from ip.
func (g *LockoutGuard) RecordFailure(ip string) {
	now := g.now()

	g.mu.Lock()
	defer g.mu.Unlock()

	rec, ok := g.records[ip]
	if !ok || now.Sub(rec.firstFail) > LockoutWindow {
		g.records[ip] = &failureRecord{attempts: 1, firstFail: now}
		return
	}

	rec.attempts++
	if rec.attempts >= LockoutMaxAttempts && rec.lockedAt.IsZero() {
		rec.lockedAt = now
		g.log.WithField("client_ip", ip).Warn("client locked out after repeated auth failures")
	}
}

// Reset clears failure tracking for ip.
func (g *LockoutGuard) Reset(ip string) {
	g.mu.Lock()
	delete(g.records, ip)
	g.mu.Unlock()
}

// Middleware rejects requests from locked-out IPs before authentication.
func (g *LockoutGuard) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if g.IsBlocked(c.ClientIP()) {
			respondError(c, http.StatusTooManyRequests, "rate_limited", "too many failed authentication attempts")
			return
		}

		c.Next()
	}
}

func (g *LockoutGuard) cleanupLoop(ctx context.Context) {
	ticker := time.NewTicker(lockoutCleanup)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			g.sweep()
		}
	}
}

// sweep drops expired lockouts and stale windows, then trims the oldest
// records above the cap.
func (g *LockoutGuard) sweep() {
	now := g.now()

	g.mu.Lock()
	defer g.mu.Unlock()

	for ip, rec := range g.records {
		if !rec.lockedAt.IsZero() && now.Sub(rec.lockedAt) >= LockoutDuration {
			delete(g.records, ip)
		} else if rec.lockedAt.IsZero() && now.Sub(rec.firstFail) >= LockoutWindow {
			delete(g.records, ip)
		}
	}

	excess := len(g.records) - lockoutMaxRecords
	if excess <= 0 {
		return
	}

	ips := make([]string, 0, len(g.records))
	for ip := range g.records {
		ips = append(ips, ip)
	}
	slices.SortFunc(ips, func(a, b string) int {
		return g.records[a].firstFail.Compare(g.records[b].firstFail)
	})
	for _, ip := range ips[:excess] {
		delete(g.records, ip)
	}
}
