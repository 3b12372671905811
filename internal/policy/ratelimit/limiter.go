// Package ratelimit throttles lease requests per user with token buckets.
package ratelimit

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Config holds rate limiter configuration.
type Config struct {
	// RequestsPerSecond is the sustained rate per key. <= 0 disables limiting.
	RequestsPerSecond float64
	// Burst is the bucket size per key; values < 1 are treated as 1.
	Burst int
}

type entry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// Limiter keeps one token bucket per key.
type Limiter struct {
	mu      sync.Mutex
	entries map[string]*entry
	limit   rate.Limit
	burst   int
	now     func() time.Time
}

// New creates a Limiter from cfg.
func New(cfg Config) *Limiter {
	limit := rate.Limit(cfg.RequestsPerSecond)
	if cfg.RequestsPerSecond <= 0 {
		limit = rate.Inf
	}
	burst := cfg.Burst
	if burst < 1 {
		burst = 1
	}
	return &Limiter{
		entries: make(map[string]*entry),
		limit:   limit,
		burst:   burst,
		now:     time.Now,
	}
}

// Enabled reports whether the limiter can ever reject a request.
func (l *Limiter) Enabled() bool {
	return l != nil && l.limit != rate.Inf
}

// Allow consumes a token for key without blocking. It returns false when the
// key's bucket is empty.
func (l *Limiter) Allow(key string) bool {
	if !l.Enabled() {
		return true
	}
	now := l.now()
	l.mu.Lock()
	e, ok := l.entries[key]
	if !ok {
		e = &entry{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.entries[key] = e
	}
	e.lastSeen = now
	l.mu.Unlock()
	return e.limiter.AllowN(now, 1)
}

// Prune drops buckets idle for longer than idle and returns how many were removed.
func (l *Limiter) Prune(idle time.Duration) int {
	if l == nil {
		return 0
	}
	cutoff := l.now().Add(-idle)
	l.mu.Lock()
	defer l.mu.Unlock()
	removed := 0
	for key, e := range l.entries {
		if e.lastSeen.Before(cutoff) {
			delete(l.entries, key)
			removed++
		}
	}
	return removed
}

// Len returns the number of tracked keys.
func (l *Limiter) Len() int {
	if l == nil {
		return 0
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}
