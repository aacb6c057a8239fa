package httphandler

import (
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// clientLimiter keeps one token bucket per client address. A bucket refills
// completely within the window, so buckets idle for a full window are dropped
// without changing any client's allowance.
type clientLimiter struct {
	mu        sync.Mutex
	buckets   map[string]*clientBucket
	limit     rate.Limit
	burst     int
	window    time.Duration
	now       func() time.Time
	lastSweep time.Time
}

type clientBucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// newClientLimiter allows each client perWindow requests per window, refilled
// evenly across it.
func newClientLimiter(perWindow int, window time.Duration, now func() time.Time) *clientLimiter {
	return &clientLimiter{
		buckets: make(map[string]*clientBucket),
		limit:   rate.Every(window / time.Duration(perWindow)),
		burst:   perWindow,
		window:  window,
		now:     now,
	}
}

// allow takes one token from key's bucket. When none is left it reports how
// long until the next one.
func (l *clientLimiter) allow(key string) (bool, time.Duration) {
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	if now.Sub(l.lastSweep) >= l.window {
		for k, b := range l.buckets {
			if now.Sub(b.lastSeen) >= l.window {
				delete(l.buckets, k)
			}
		}
		l.lastSweep = now
	}

	b, ok := l.buckets[key]
	if !ok {
		b = &clientBucket{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.buckets[key] = b
	}
	b.lastSeen = now

	res := b.limiter.ReserveN(now, 1)
	if !res.OK() {
		return false, l.window
	}
	if wait := res.DelayFrom(now); wait > 0 {
		res.CancelAt(now)
		return false, wait
	}
	return true, 0
}

// rateLimitMiddleware answers 429 once a client exhausts its allowance. The
// health endpoint is exempt so container health checks never starve real clients.
func rateLimitMiddleware(l *clientLimiter, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == healthPath {
			next.ServeHTTP(w, r)
			return
		}

		ok, wait := l.allow(clientAddr(r))
		if !ok {
			secs := math.Ceil(wait.Truncate(time.Millisecond).Seconds())
			w.Header().Set("Retry-After", strconv.Itoa(int(secs)))
			writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
			return
		}

		next.ServeHTTP(w, r)
	})
}
