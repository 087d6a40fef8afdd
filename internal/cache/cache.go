// Package cache implements the bounded TTL response cache for viewport
// queries. Entries are keyed by a normalized (bounds, filters) fingerprint;
// expiry is computed on read and purged on write -- there is no background
// sweeper.
package cache

import (
	"sync"
	"time"

	brewmap "github.com/brewmap/brewmap/internal"
)

// entry wraps a cached result set with its insertion time.
type entry struct {
	data     []brewmap.Location
	storedAt time.Time
}

// Stats is a point-in-time snapshot of cache occupancy.
type Stats struct {
	TotalEntries   int           `json:"total_entries"`
	ValidEntries   int           `json:"valid_entries"`
	ExpiredEntries int           `json:"expired_entries"`
	MaxSize        int           `json:"max_size"`
	TTL            time.Duration `json:"ttl"`
}

// Cache is a size-bounded, TTL-based response cache. An entry is live iff
// now - storedAt < ttl; expired entries are logically absent even while
// still stored. Safe for concurrent use.
type Cache struct {
	mu      sync.RWMutex
	entries map[string]entry
	maxSize int
	ttl     time.Duration
	now     func() time.Time // swappable clock for tests
}

// New creates a Cache holding at most maxSize live entries, each valid for ttl.
func New(maxSize int, ttl time.Duration) *Cache {
	return &Cache{
		entries: make(map[string]entry, maxSize),
		maxSize: maxSize,
		ttl:     ttl,
		now:     time.Now,
	}
}

// Get returns the cached result for key if present and unexpired.
// An expired entry is removed as a side effect and reported absent.
func (c *Cache) Get(key string) ([]brewmap.Location, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	if c.now().Sub(e.storedAt) >= c.ttl {
		delete(c.entries, key)
		return nil, false
	}
	return e.data, true
}

// Set inserts or overwrites the entry for key with a fresh timestamp, then
// enforces bounds: all expired entries are purged first; if the cache is
// still over capacity, the oldest entries by insertion time are evicted
// until it fits. Eviction runs on every Set, never on a timer.
func (c *Cache) Set(key string, data []brewmap.Location) {
	now := c.now()

	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[key] = entry{data: data, storedAt: now}

	for k, e := range c.entries {
		if now.Sub(e.storedAt) >= c.ttl {
			delete(c.entries, k)
		}
	}

	for len(c.entries) > c.maxSize {
		var oldestKey string
		var oldest time.Time
		for k, e := range c.entries {
			if oldestKey == "" || e.storedAt.Before(oldest) {
				oldestKey = k
				oldest = e.storedAt
			}
		}
		delete(c.entries, oldestKey)
	}
}

// Clear removes all entries unconditionally. Called whenever the filter set
// changes: cached results are only valid for the filters they were fetched
// under.
func (c *Cache) Clear() {
	c.mu.Lock()
	c.entries = make(map[string]entry, c.maxSize)
	c.mu.Unlock()
}

// Stats returns occupancy counters partitioned by the TTL check at the
// moment of the call. It is a pure read: expired entries are counted, not
// purged.
func (c *Cache) Stats() Stats {
	now := c.now()

	c.mu.RLock()
	defer c.mu.RUnlock()

	s := Stats{
		TotalEntries: len(c.entries),
		MaxSize:      c.maxSize,
		TTL:          c.ttl,
	}
	for _, e := range c.entries {
		if now.Sub(e.storedAt) >= c.ttl {
			s.ExpiredEntries++
		} else {
			s.ValidEntries++
		}
	}
	return s
}
