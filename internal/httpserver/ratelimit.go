package httpserver

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

// RateLimit caps credential attempts per client IP. A zero Limit disables it.
type RateLimit struct {
	Limit rate.Limit
	Burst int
}

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// visitors holds one token bucket per client IP. Buckets idle longer than
// ttl are dropped on the next lookup sweep.
type visitors struct {
	mu        sync.Mutex
	limit     RateLimit
	ttl       time.Duration
	now       func() time.Time
	seen      map[string]*visitor
	lastSweep time.Time
}

func newVisitors(limit RateLimit, ttl time.Duration) *visitors {
	return &visitors{limit: limit, ttl: ttl, now: time.Now, seen: make(map[string]*visitor)}
}

func (v *visitors) allow(ip string) bool {
	v.mu.Lock()
	defer v.mu.Unlock()

	now := v.now()
	if now.Sub(v.lastSweep) > v.ttl {
		for k, vis := range v.seen {
			if now.Sub(vis.lastSeen) > v.ttl {
				delete(v.seen, k)
			}
		}
		v.lastSweep = now
	}

	vis, ok := v.seen[ip]
	if !ok {
		vis = &visitor{limiter: rate.NewLimiter(v.limit.Limit, v.limit.Burst)}
		v.seen[ip] = vis
	}
	vis.lastSeen = now
	return vis.limiter.AllowN(now, 1)
}

func (v *visitors) len() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return len(v.seen)
}

// rateLimiter rejects requests over the per-IP budget with 429.
func rateLimiter(limit RateLimit, logger zerolog.Logger) gin.HandlerFunc {
	if limit.Limit <= 0 {
		return func(c *gin.Context) { c.Next() }
	}
	store := newVisitors(limit, 3*time.Minute)
	return func(c *gin.Context) {
		ip := c.ClientIP()
		if !store.allow(ip) {
			logger.Warn().Str("ip", ip).Str("path", c.FullPath()).Msg("rate limit exceeded")
			c.Header("Retry-After", "1")
			c.AbortWithStatusJSON(http.StatusTooManyRequests, errorPayload{
				Error: errorBody{Code: "rate_limited", Message: "too many attempts, try again shortly"},
			})
			return
		}
		c.Next()
	}
}
