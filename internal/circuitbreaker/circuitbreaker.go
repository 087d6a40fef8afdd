// Package circuitbreaker implements a per-mirror circuit breaker with a
// sliding-window error rate detector. Public Overpass mirrors degrade
// independently (maintenance, load shedding); the breaker lets viewport
// queries skip a known-bad mirror instead of burning its timeout first.
package circuitbreaker

import (
	"sync"
	"time"
)

// State represents the circuit breaker state.
type State int

const (
	// StateClosed allows all requests through.
	StateClosed State = iota
	// StateOpen rejects all requests.
	StateOpen
	// StateHalfOpen allows a single probe request.
	StateHalfOpen
)

// String returns a human-readable state name.
func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half_open"
	default:
		return "unknown"
	}
}

// Config holds circuit breaker parameters.
type Config struct {
	ErrorThreshold float64       // weighted error rate to trip
	MinSamples     int           // minimum requests before breaker can open
	WindowSeconds  int           // sliding window duration in seconds
	OpenTimeout    time.Duration // time in OPEN before transitioning to HALF_OPEN
}

// DefaultConfig returns defaults tuned for slow geo queries: a viewport
// fetch takes seconds, so windows are long and sample counts low.
func DefaultConfig() Config {
	return Config{
		ErrorThreshold: 0.50,
		MinSamples:     4,
		WindowSeconds:  60,
		OpenTimeout:    30 * time.Second,
	}
}

// bucket holds error and request counts for a 1-second slot.
type bucket struct {
	errors float64 // weighted error sum
	total  int
}

// slidingWindow is a fixed-size ring buffer of 1-second buckets.
type slidingWindow struct {
	buckets  [60]bucket
	size     int   // number of active buckets (== windowSeconds)
	head     int   // index of current bucket
	headTime int64 // unix seconds of head bucket
}

func newSlidingWindow(windowSeconds int) slidingWindow {
	if windowSeconds <= 0 || windowSeconds > 60 {
		windowSeconds = 60
	}
	return slidingWindow{size: windowSeconds}
}

// advance moves the head forward to the current second, clearing stale buckets.
func (w *slidingWindow) advance(nowSec int64) {
	if w.headTime == 0 {
		w.headTime = nowSec
		return
	}
	gap := nowSec - w.headTime
	if gap <= 0 {
		return
	}
	n := min(int(gap), w.size)
	for i := range n {
		w.buckets[(w.head+1+i)%w.size] = bucket{}
	}
	w.head = (w.head + int(gap)) % w.size
	w.headTime = nowSec
}

// record adds a request with the given error weight. Weight 0 is a success.
func (w *slidingWindow) record(weight float64, now time.Time) {
	w.advance(now.Unix())
	w.buckets[w.head].total++
	w.buckets[w.head].errors += weight
}

// errorRate returns the weighted error rate and sample count across the window.
func (w *slidingWindow) errorRate(now time.Time) (rate float64, samples int) {
	w.advance(now.Unix())
	var errs float64
	var total int
	for i := range w.size {
		errs += w.buckets[i].errors
		total += w.buckets[i].total
	}
	if total == 0 {
		return 0, 0
	}
	return errs / float64(total), total
}

func (w *slidingWindow) reset() {
	for i := range w.size {
		w.buckets[i] = bucket{}
	}
	w.head = 0
	w.headTime = 0
}

// Breaker is a per-mirror circuit breaker state machine.
type Breaker struct {
	mu          sync.Mutex
	state       State
	window      slidingWindow
	openedAt    time.Time
	probing     bool // a half-open probe is in flight
	threshold   float64
	minSamples  int
	openTimeout time.Duration
}

// NewBreaker creates a breaker with the given config.
func NewBreaker(cfg Config) *Breaker {
	return &Breaker{
		state:       StateClosed,
		window:      newSlidingWindow(cfg.WindowSeconds),
		threshold:   cfg.ErrorThreshold,
		minSamples:  cfg.MinSamples,
		openTimeout: cfg.OpenTimeout,
	}
}

// State returns the current breaker state.
func (b *Breaker) State() State {
	b.mu.Lock()
	s := b.state
	b.mu.Unlock()
	return s
}

// Allow reports whether a request may proceed. In the open state it permits
// a single probe once the open timeout has elapsed.
func (b *Breaker) Allow() bool {
	now := time.Now()
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateClosed:
		return true
	case StateOpen:
		if now.Sub(b.openedAt) >= b.openTimeout {
			b.state = StateHalfOpen
			b.probing = true
			return true
		}
		return false
	case StateHalfOpen:
		if !b.probing {
			b.probing = true
			return true
		}
		return false
	}
	return false
}

// RecordSuccess records a successful request outcome.
func (b *Breaker) RecordSuccess() {
	now := time.Now()
	b.mu.Lock()
	defer b.mu.Unlock()
	b.window.record(0, now)

	if b.state == StateHalfOpen {
		b.state = StateClosed
		b.probing = false
		b.window.reset()
	}
}

// RecordError records a failed request with the given error weight.
func (b *Breaker) RecordError(weight float64) {
	now := time.Now()
	b.mu.Lock()
	defer b.mu.Unlock()
	b.window.record(weight, now)

	switch b.state {
	case StateClosed:
		rate, samples := b.window.errorRate(now)
		if samples >= b.minSamples && rate >= b.threshold {
			b.state = StateOpen
			b.openedAt = now
		}
	case StateHalfOpen:
		// Probe failed: reopen.
		b.state = StateOpen
		b.openedAt = now
		b.probing = false
	}
}
