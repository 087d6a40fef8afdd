package circuitbreaker

import "sync"

// Registry manages per-mirror Breaker instances. The mirror set is fixed at
// startup, so there is no eviction.
type Registry struct {
	mu       sync.RWMutex
	breakers map[string]*Breaker
	config   Config
}

// NewRegistry creates a circuit breaker registry with the given config.
func NewRegistry(cfg Config) *Registry {
	return &Registry{
		breakers: make(map[string]*Breaker),
		config:   cfg,
	}
}

// GetOrCreate returns the breaker for mirror, creating one if needed.
func (r *Registry) GetOrCreate(mirror string) *Breaker {
	r.mu.RLock()
	b, ok := r.breakers[mirror]
	r.mu.RUnlock()
	if ok {
		return b
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if b, ok := r.breakers[mirror]; ok {
		return b
	}
	b = NewBreaker(r.config)
	r.breakers[mirror] = b
	return b
}

// States returns a snapshot of every known mirror's breaker state.
func (r *Registry) States() map[string]State {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]State, len(r.breakers))
	for mirror, b := range r.breakers {
		out[mirror] = b.State()
	}
	return out
}
