// Package ratelimit implements per-client request rate limiting with
// lazy-refill token buckets. Viewport queries fan out to shared public
// Overpass mirrors, so a single greedy client must not exhaust the
// service's upstream budget.
package ratelimit

import (
	"sync"
	"time"
)

// Result is the outcome of a rate limit check.
type Result struct {
	Allowed           bool
	Limit             int64
	Remaining         int64
	RetryAfterSeconds float64
}

// bucket is a token bucket with lazy refill (no background goroutine).
type bucket struct {
	tokens   float64
	max      float64
	rate     float64 // tokens per second
	lastFill time.Time
}

func newBucket(limit int64) *bucket {
	return &bucket{
		tokens:   float64(limit),
		max:      float64(limit),
		rate:     float64(limit) / 60.0, // per-minute limit -> per-second rate
		lastFill: time.Now(),
	}
}

// refill adds tokens based on elapsed time since last refill.
func (b *bucket) refill(now time.Time) {
	elapsed := now.Sub(b.lastFill).Seconds()
	if elapsed <= 0 {
		return
	}
	b.tokens = min(b.max, b.tokens+elapsed*b.rate)
	b.lastFill = now
}

// Limiter holds the request bucket for a single client.
type Limiter struct {
	mu       sync.Mutex
	bucket   *bucket // nil if unlimited
	limit    int64
	lastUsed time.Time
}

func newLimiter(rpm int64) *Limiter {
	l := &Limiter{limit: rpm, lastUsed: time.Now()}
	if rpm > 0 {
		l.bucket = newBucket(rpm)
	}
	return l
}

// Allow consumes one request token.
func (l *Limiter) Allow() Result {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := time.Now()
	l.lastUsed = now

	if l.bucket == nil {
		return Result{Allowed: true}
	}

	l.bucket.refill(now)
	if l.bucket.tokens >= 1 {
		l.bucket.tokens--
		return Result{
			Allowed:   true,
			Limit:     l.limit,
			Remaining: int64(l.bucket.tokens),
		}
	}
	return Result{
		Allowed:           false,
		Limit:             l.limit,
		Remaining:         0,
		RetryAfterSeconds: (1 - l.bucket.tokens) / l.bucket.rate,
	}
}

// Registry manages per-client Limiters. Clients are keyed by whatever the
// transport layer chooses (device ID, falling back to remote address).
type Registry struct {
	mu       sync.RWMutex
	limiters map[string]*Limiter
	rpm      int64
}

// NewRegistry creates a registry issuing rpm requests per minute per client.
// rpm <= 0 disables limiting.
func NewRegistry(rpm int64) *Registry {
	return &Registry{
		limiters: make(map[string]*Limiter),
		rpm:      rpm,
	}
}

// Allow consumes one token for the given client key.
func (r *Registry) Allow(client string) Result {
	return r.getOrCreate(client).Allow()
}

func (r *Registry) getOrCreate(client string) *Limiter {
	r.mu.RLock()
	l, ok := r.limiters[client]
	r.mu.RUnlock()
	if ok {
		return l
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if l, ok := r.limiters[client]; ok {
		return l
	}
	l = newLimiter(r.rpm)
	r.limiters[client] = l
	return l
}

// EvictStale removes limiters not used since cutoff and returns the count.
func (r *Registry) EvictStale(cutoff time.Time) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	evicted := 0
	for k, l := range r.limiters {
		l.mu.Lock()
		stale := l.lastUsed.Before(cutoff)
		l.mu.Unlock()
		if stale {
			delete(r.limiters, k)
			evicted++
		}
	}
	return evicted
}
