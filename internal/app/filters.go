package app

import (
	"fmt"
	"sync"

	brewmap "github.com/brewmap/brewmap/internal"
	"github.com/brewmap/brewmap/internal/cache"
)

// FilterService holds the service-wide location type filters. Replacing the
// filter set invalidates the whole response cache, since cached entries were
// collected under the old filters.
type FilterService struct {
	cache *cache.Cache

	mu      sync.RWMutex
	enabled brewmap.FilterSet
}

// NewFilterService returns a FilterService starting with the given set.
// A nil initial set enables every known type.
func NewFilterService(initial brewmap.FilterSet, c *cache.Cache) *FilterService {
	if initial == nil {
		initial = brewmap.DefaultFilters()
	}
	return &FilterService{cache: c, enabled: initial.Clone()}
}

// Current returns a copy of the active filter set.
func (s *FilterService) Current() brewmap.FilterSet {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.enabled.Clone()
}

// Replace swaps the active filter set and clears the response cache.
// Unknown type names are rejected; an empty set is allowed and means
// nothing is shown.
func (s *FilterService) Replace(fs brewmap.FilterSet) error {
	for t := range fs {
		if !knownType(t) {
			return fmt.Errorf("%w: unknown location type %q", brewmap.ErrBadRequest, t)
		}
	}

	s.mu.Lock()
	s.enabled = fs.Clone()
	s.mu.Unlock()

	s.cache.Clear()
	return nil
}

func knownType(t brewmap.LocationType) bool {
	for _, k := range brewmap.KnownTypes {
		if t == k {
			return true
		}
	}
	return false
}
