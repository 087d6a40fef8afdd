package testutil

import (
	"context"
	"sort"
	"sync"

	brewmap "github.com/brewmap/brewmap/internal"
)

// FakeStore is an in-memory implementation of storage.Store for testing.
type FakeStore struct {
	mu        sync.RWMutex
	favorites map[string]*brewmap.Favorite // id -> favorite
	queries   []brewmap.QueryRecord

	FailWith error // when set, every method returns this error
}

// NewFakeStore returns a FakeStore with empty collections.
func NewFakeStore() *FakeStore {
	return &FakeStore{favorites: make(map[string]*brewmap.Favorite)}
}

// --- FavoriteStore ---

// CreateFavorite stores a favorite, enforcing per-device location uniqueness.
func (s *FakeStore) CreateFavorite(_ context.Context, f *brewmap.Favorite) error {
	if s.FailWith != nil {
		return s.FailWith
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.favorites {
		if existing.DeviceID == f.DeviceID && existing.LocationID == f.LocationID {
			return brewmap.ErrConflict
		}
	}
	cp := *f
	s.favorites[f.ID] = &cp
	return nil
}

// ListFavorites returns a device's favorites, newest first.
func (s *FakeStore) ListFavorites(_ context.Context, deviceID string) ([]*brewmap.Favorite, error) {
	if s.FailWith != nil {
		return nil, s.FailWith
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*brewmap.Favorite, 0)
	for _, f := range s.favorites {
		if f.DeviceID == deviceID {
			cp := *f
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

// DeleteFavorite removes a device's favorite by ID.
func (s *FakeStore) DeleteFavorite(_ context.Context, deviceID, id string) error {
	if s.FailWith != nil {
		return s.FailWith
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	f, ok := s.favorites[id]
	if !ok || f.DeviceID != deviceID {
		return brewmap.ErrNotFound
	}
	delete(s.favorites, id)
	return nil
}

// --- QueryLogStore ---

// InsertQueries appends query records.
func (s *FakeStore) InsertQueries(_ context.Context, records []brewmap.QueryRecord) error {
	if s.FailWith != nil {
		return s.FailWith
	}
	s.mu.Lock()
	s.queries = append(s.queries, records...)
	s.mu.Unlock()
	return nil
}

// RecentQueries returns up to limit records, newest first.
func (s *FakeStore) RecentQueries(_ context.Context, limit int) ([]brewmap.QueryRecord, error) {
	if s.FailWith != nil {
		return nil, s.FailWith
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]brewmap.QueryRecord, len(s.queries))
	copy(out, s.queries)
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// QueryCount reports how many records were inserted.
func (s *FakeStore) QueryCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.queries)
}

// Close is a no-op.
func (s *FakeStore) Close() error { return nil }
