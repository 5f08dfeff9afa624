package server

import (
	"sync"
	"time"
)

// RateLimiter is a sliding-window limiter keyed by an arbitrary string,
// here the project ID of a token request. Suitable for a single instance.
type RateLimiter struct {
	maxRequests int
	window      time.Duration

	mu      sync.Mutex
	entries map[string][]time.Time
	now     func() time.Time
}

func NewRateLimiter(maxRequests int, window time.Duration) *RateLimiter {
	return &RateLimiter{
		maxRequests: maxRequests,
		window:      window,
		entries:     make(map[string][]time.Time),
		now:         time.Now,
	}
}

// Allow records an attempt for key and reports whether it is within the
// limit. Attempts outside the window are discarded as a side effect.
func (r *RateLimiter) Allow(key string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	windowStart := now.Add(-r.window)

	kept := r.entries[key][:0]
	for _, ts := range r.entries[key] {
		if ts.After(windowStart) {
			kept = append(kept, ts)
		}
	}

	if len(kept) >= r.maxRequests {
		r.entries[key] = kept
		return false
	}

	r.entries[key] = append(kept, now)
	return true
}

// Remaining reports how many attempts key has left in the current window.
func (r *RateLimiter) Remaining(key string) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	windowStart := r.now().Add(-r.window)
	active := 0
	for _, ts := range r.entries[key] {
		if ts.After(windowStart) {
			active++
		}
	}

	if active >= r.maxRequests {
		return 0
	}
	return r.maxRequests - active
}
