package middleware

import (
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

const (
	defaultLimiterIdle = 10 * time.Minute
	defaultMaxLimiters = 10000
)

type ipLimiter struct {
	limiter  *rate.Limiter
	lastSeen atomic.Int64
}

// RateLimiter holds one limiter per client IP. Limiters idle for longer than
// idle are swept when new IPs arrive, and the map never exceeds maxIPs.
type RateLimiter struct {
	ips       map[string]*ipLimiter
	mu        *sync.RWMutex
	rate      rate.Limit
	burst     int
	idle      time.Duration
	maxIPs    int
	lastSweep time.Time
	now       func() time.Time
}

func NewRateLimiter(r rate.Limit, b int) *RateLimiter {
	return &RateLimiter{
		ips:    make(map[string]*ipLimiter),
		mu:     &sync.RWMutex{},
		rate:   r,
		burst:  b,
		idle:   defaultLimiterIdle,
		maxIPs: defaultMaxLimiters,
		now:    time.Now,
	}
}

// WithEviction overrides the idle window and the map cap.
func (rl *RateLimiter) WithEviction(idle time.Duration, maxIPs int) *RateLimiter {
	if idle > 0 {
		rl.idle = idle
	}
	if maxIPs > 0 {
		rl.maxIPs = maxIPs
	}
	return rl
}

func (rl *RateLimiter) GetLimiter(ip string) *rate.Limiter {
	now := rl.now()

	rl.mu.RLock()
	entry, exists := rl.ips[ip]
	rl.mu.RUnlock()
	if exists {
		entry.lastSeen.Store(now.UnixNano())
		return entry.limiter
	}

	rl.mu.Lock()
	defer rl.mu.Unlock()
	if entry, exists := rl.ips[ip]; exists {
		entry.lastSeen.Store(now.UnixNano())
		return entry.limiter
	}
	if len(rl.ips) >= rl.maxIPs || now.Sub(rl.lastSweep) >= rl.idle {
		rl.sweep(now)
	}
	entry = &ipLimiter{limiter: rate.NewLimiter(rl.rate, rl.burst)}
	entry.lastSeen.Store(now.UnixNano())
	rl.ips[ip] = entry
	return entry.limiter
}

// Len reports how many client IPs are tracked.
func (rl *RateLimiter) Len() int {
	rl.mu.RLock()
	defer rl.mu.RUnlock()
	return len(rl.ips)
}

// sweep drops idle limiters, then the stalest ones while the map is full.
// Callers hold the write lock.
func (rl *RateLimiter) sweep(now time.Time) {
	rl.lastSweep = now
	cutoff := now.Add(-rl.idle).UnixNano()
	for ip, entry := range rl.ips {
		if entry.lastSeen.Load() < cutoff {
			delete(rl.ips, ip)
		}
	}
	for len(rl.ips) >= rl.maxIPs {
		var (
			oldestIP string
			oldest   int64
		)
		for ip, entry := range rl.ips {
			if seen := entry.lastSeen.Load(); oldestIP == "" || seen < oldest {
				oldestIP, oldest = ip, seen
			}
		}
		delete(rl.ips, oldestIP)
	}
}

// PerSecond builds a per-client-IP limiter allowing perSecond requests with an
// equal burst. A non-positive value disables limiting.
func PerSecond(perSecond int) gin.HandlerFunc {
	if perSecond <= 0 {
		return func(c *gin.Context) { c.Next() }
	}
	return RateLimit(NewRateLimiter(rate.Limit(perSecond), perSecond))
}

func RateLimit(rl *RateLimiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !rl.GetLimiter(c.ClientIP()).Allow() {
			c.JSON(http.StatusTooManyRequests, gin.H{"error": "Rate limit exceeded"})
			c.Abort()
			return
		}
		c.Next()
	}
}
