package api

import (
	"math"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const (
	limiterEntryTTL = 1 * time.Hour
	cleanupInterval = 30 * time.Minute
)

type limiterEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter gives each client a token bucket holding capacity requests
// that refills evenly over window.
type RateLimiter struct {
	mu          sync.Mutex
	limit       rate.Limit
	burst       int
	interval    time.Duration
	clients     map[string]*limiterEntry
	now         func() time.Time
	stopCleanup chan struct{}
	stopOnce    sync.Once
}

// NewRateLimiter returns a limiter and starts its cleanup goroutine. A
// non-positive capacity or window rejects every request.
func NewRateLimiter(capacity int, window time.Duration) *RateLimiter {
	rl := &RateLimiter{
		clients:     make(map[string]*limiterEntry),
		now:         time.Now,
		stopCleanup: make(chan struct{}),
	}
	if capacity > 0 && window > 0 {
		rl.interval = window / time.Duration(capacity)
		rl.limit = rate.Every(rl.interval)
		rl.burst = capacity
	} else {
		rl.interval = window
	}
	go rl.cleanupLoop()
	return rl
}

func (r *RateLimiter) cleanupLoop() {
	ticker := time.NewTicker(cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			r.cleanup()
		case <-r.stopCleanup:
			return
		}
	}
}

func (r *RateLimiter) cleanup() {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	for key, entry := range r.clients {
		if now.Sub(entry.lastSeen) > limiterEntryTTL {
			delete(r.clients, key)
		}
	}
}

// Stop ends the cleanup goroutine. Safe to call more than once.
func (r *RateLimiter) Stop() {
	r.stopOnce.Do(func() { close(r.stopCleanup) })
}

// Allow reports whether the client may make another request.
func (r *RateLimiter) Allow(client string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	entry, ok := r.clients[client]
	if !ok {
		entry = &limiterEntry{limiter: rate.NewLimiter(r.limit, r.burst)}
		r.clients[client] = entry
	}
	entry.lastSeen = now

	return entry.limiter.AllowN(now, 1)
}

// RetryAfter is the time until a rejected client earns its next request,
// rounded up to whole seconds.
func (r *RateLimiter) RetryAfter() int {
	secs := int(math.Ceil(r.interval.Seconds()))
	if secs < 1 {
		return 1
	}
	return secs
}

// RateLimitMiddleware rejects clients over their budget with 429.
func RateLimitMiddleware(limiter *RateLimiter, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ip, _, err := net.SplitHostPort(r.RemoteAddr)
		if err != nil {
			ip = r.RemoteAddr
		}

		if !limiter.Allow(ip) {
			w.Header().Set("Retry-After", strconv.Itoa(limiter.RetryAfter()))
			http.Error(w, "rate limit exceeded", http.StatusTooManyRequests)
			return
		}

		next(w, r)
	}
}
