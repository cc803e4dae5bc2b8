package middleware

import (
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"

	dErrors "veritag/pkg/domain-errors"
	"veritag/pkg/platform/httputil"
	"veritag/pkg/requestcontext"
)

// ipLimiter tracks one token bucket per client IP. Stale entries are evicted
// lazily so the map does not grow with every scanner that ever connected.
type ipLimiter struct {
	mu       sync.Mutex
	limiters map[string]*ipEntry
	ratePer  rate.Limit
	burst    int
	lastGC   time.Time
}

type ipEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

const (
	limiterIdleTTL    = 10 * time.Minute
	limiterGCInterval = time.Minute
)

func newIPLimiter(perSecond float64, burst int) *ipLimiter {
	return &ipLimiter{
		limiters: make(map[string]*ipEntry),
		ratePer:  rate.Limit(perSecond),
		burst:    burst,
		lastGC:   time.Now(),
	}
}

func (l *ipLimiter) allow(ip string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	if now.Sub(l.lastGC) > limiterGCInterval {
		for key, entry := range l.limiters {
			if now.Sub(entry.lastSeen) > limiterIdleTTL {
				delete(l.limiters, key)
			}
		}
		l.lastGC = now
	}

	entry, ok := l.limiters[ip]
	if !ok {
		entry = &ipEntry{limiter: rate.NewLimiter(l.ratePer, l.burst)}
		l.limiters[ip] = entry
	}
	entry.lastSeen = now
	return entry.limiter.Allow()
}

// ScanRateLimit throttles the anonymous scan endpoints per client IP. Run it
// after ClientMetadata so the proxy-aware IP is available.
func ScanRateLimit(perSecond float64, burst int) func(http.Handler) http.Handler {
	limiter := newIPLimiter(perSecond, burst)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip := requestcontext.ClientIP(r.Context())
			if ip == "" {
				ip = clientIPFromRequest(r)
			}
			if !limiter.allow(ip) {
				httputil.WriteError(w, dErrors.New(dErrors.CodeRateLimited, "too many scan attempts"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
