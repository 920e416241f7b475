package api

import (
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/baselinegate/baselinegate/internal/auth"
	"github.com/baselinegate/baselinegate/internal/classify"
	"github.com/baselinegate/baselinegate/internal/config"
)

// staleAfter is how long an idle caller's bucket survives before the sweep
// drops it.
const staleAfter = 10 * time.Minute

// callerLimiter maintains one token bucket per caller. Authenticated requests
// are keyed by user ID, unauthenticated ones by remote address.
type callerLimiter struct {
	mu        sync.Mutex
	buckets   map[string]*bucket
	limit     rate.Limit
	burst     int
	lastSweep time.Time
	now       func() time.Time
}

type bucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

func newCallerLimiter(cfg config.RateLimitConfig) *callerLimiter {
	return &callerLimiter{
		buckets: make(map[string]*bucket),
		limit:   rate.Limit(cfg.RequestsPerSecond),
		burst:   cfg.Burst,
		now:     time.Now,
	}
}

// allow reports whether the caller may proceed, consuming one token.
func (c *callerLimiter) allow(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	if now.Sub(c.lastSweep) > staleAfter {
		c.sweep(now)
	}

	b, ok := c.buckets[key]
	if !ok {
		b = &bucket{limiter: rate.NewLimiter(c.limit, c.burst)}
		c.buckets[key] = b
	}
	b.lastSeen = now

	return b.limiter.Allow()
}

// sweep drops buckets for callers idle past the stale window. Caller holds
// the mutex.
func (c *callerLimiter) sweep(now time.Time) {
	for key, b := range c.buckets {
		if now.Sub(b.lastSeen) > staleAfter {
			delete(c.buckets, key)
		}
	}
	c.lastSweep = now
}

// withRateLimit rejects callers that exceed their token bucket with the
// rate_limit_exceeded category.
func (s *Server) withRateLimit(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		key := callerKey(r)
		if !s.limiter.allow(key) {
			s.log.WithFields(logrus.Fields{"caller": key, "path": r.URL.Path}).Warn("rate limit exceeded")
			writeClassified(w, classify.New(classify.CodeRateLimitExceeded, "request rate exceeded"))
			return
		}
		next(w, r)
	}
}

// callerKey identifies the caller for rate limiting. Runs after the auth
// middleware, so authenticated requests carry claims.
func callerKey(r *http.Request) string {
	if userID := auth.UserID(r.Context()); userID != "" {
		return userID
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
