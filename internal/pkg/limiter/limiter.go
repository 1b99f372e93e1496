/*
Package limiter provides keyed request rate limiting.

It utilizes the Token Bucket algorithm (rate.Limiter) to control the request frequency
per key (client IP for anonymous endpoints, user id for authenticated ones) and includes
a cleanup goroutine to periodically remove idle limiters, preventing memory leaks.
*/
package limiter

import (
	"context"
	"net"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"chatroom/internal/pkg/errs"
	"chatroom/internal/pkg/logx"
	"chatroom/internal/pkg/metrics"
	"chatroom/internal/pkg/resp"
)

// cleanupInterval is how often idle limiters are swept.
const cleanupInterval = 3 * time.Minute

// KeyFunc derives the rate limiting key of a request. An empty key is limited as "unknown".
type KeyFunc func(r *http.Request) string

// RateLimiter implements a concurrency-safe rate limiter keyed by an arbitrary string.
type RateLimiter struct {
	// name labels the limiter in logs and metrics.
	name string

	// mu is used to protect concurrent access to the limits map.
	mu sync.RWMutex

	// limits stores the map from key to the *rate.Limiter instance.
	limits map[string]*rate.Limiter

	// r is the rate (rate.Limit) of the limiter, defining the number of events allowed per second.
	r rate.Limit

	// b is the burst size (token bucket size) of the limiter.
	b int
}

// New creates and returns a new RateLimiter. The cleanup goroutine runs until ctx is done.
func New(ctx context.Context, name string, r rate.Limit, b int) *RateLimiter {
	l := &RateLimiter{
		name:   name,
		limits: make(map[string]*rate.Limiter),
		r:      r,
		b:      b,
	}

	go l.cleanUpLoop(ctx)

	return l
}

// GetLimiter retrieves the rate limiter corresponding to the given key.
// If the limiter for that key does not exist, a new one is created and stored in the map.
// It uses a Double-Checked Locking pattern to ensure concurrent-safe creation of new limiters.
func (l *RateLimiter) GetLimiter(key string) *rate.Limiter {
	l.mu.RLock()
	limiter, exists := l.limits[key]
	l.mu.RUnlock()

	if !exists {
		l.mu.Lock()
		limiter, exists = l.limits[key]
		if !exists {
			limiter = rate.NewLimiter(l.r, l.b)
			l.limits[key] = limiter
		}
		l.mu.Unlock()
	}

	return limiter
}

// Allow reports whether one more event for key may happen now.
func (l *RateLimiter) Allow(key string) bool {
	if key == "" {
		key = "unknown"
	}

	if l.GetLimiter(key).Allow() {
		return true
	}

	metrics.RateLimitHits.WithLabelValues(l.name).Inc()
	return false
}

func (l *RateLimiter) cleanUpLoop(ctx context.Context) {
	ticker := time.NewTicker(cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			l.cleanUp(now)
		}
	}
}

// cleanUp removes limiters whose token bucket is full, i.e. keys that have been idle
// long enough that a fresh limiter would behave identically.
func (l *RateLimiter) cleanUp(now time.Time) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	count := 0
	for key, limiter := range l.limits {
		if limiter.TokensAt(now) >= float64(limiter.Burst()) {
			delete(l.limits, key)
			count++
		}
	}

	logx.Debug("Rate limiter cleanup finished", "limiter", l.name, "removed", count, "remaining", len(l.limits))
	return count
}

// Middleware returns an HTTP middleware that performs rate limiting checks on incoming requests.
// If a request exceeds the limit, it responds with a 429 Too Many Requests error.
func (l *RateLimiter) Middleware(key KeyFunc) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !l.Allow(key(r)) {
				resp.RespondError(w, r, errs.NewError(errs.ErrRateLimitExceeded))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// ClientIP keys requests by remote address. chi's RealIP middleware should run first.
func ClientIP(r *http.Request) string {
	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		ip = r.RemoteAddr
	}

	return ip
}
