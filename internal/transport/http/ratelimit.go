package http

import (
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Throttle applies a token-bucket limit per request source at the HTTP
// edge, in front of the per-caller sliding window inside the pipeline. It
// protects the process from a misbehaving connector, not from any
// particular chat user.
type Throttle struct {
	sources         map[string]*rate.Limiter
	mu              sync.RWMutex
	rps             rate.Limit
	burst           int
	cleanupInterval time.Duration
}

// NewThrottle creates a per-source throttle
func NewThrottle(rps float64, burst int) *Throttle {
	t := &Throttle{
		sources:         make(map[string]*rate.Limiter),
		rps:             rate.Limit(rps),
		burst:           burst,
		cleanupInterval: 10 * time.Minute,
	}

	go t.cleanup()

	return t
}

// limiter returns the token bucket for a source, creating it on first use
func (t *Throttle) limiter(source string) *rate.Limiter {
	t.mu.Lock()
	defer t.mu.Unlock()

	l, exists := t.sources[source]
	if !exists {
		l = rate.NewLimiter(t.rps, t.burst)
		t.sources[source] = l
	}

	return l
}

// cleanup periodically resets the source map so drive-by sources don't
// accumulate forever. Active sources get a fresh bucket on their next
// request.
func (t *Throttle) cleanup() {
	ticker := time.NewTicker(t.cleanupInterval)
	for range ticker.C {
		t.mu.Lock()
		t.sources = make(map[string]*rate.Limiter)
		t.mu.Unlock()
	}
}

// ThrottleMiddleware rejects requests from sources exceeding their bucket
func ThrottleMiddleware(t *Throttle) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !t.limiter(clientSource(r)).Allow() {
				respondError(w, http.StatusTooManyRequests, "rate limit exceeded")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// clientSource identifies the request source (handling proxies)
func clientSource(r *http.Request) string {
	forwarded := r.Header.Get("X-Forwarded-For")
	if forwarded != "" {
		return forwarded
	}
	return r.RemoteAddr
}
