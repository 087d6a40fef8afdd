package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/maypok86/otter/v2"

	brewmap "github.com/brewmap/brewmap/internal"
	"github.com/brewmap/brewmap/internal/storage"
)

const (
	favoriteCacheTTL    = 30 * time.Second
	favoriteCacheMaxLen = 10_000 // device lists, not individual favorites
	favoriteNameMaxLen  = 200
)

// FavoriteService manages per-device favorite locations. Device lists are
// cached in a W-TinyLFU cache and invalidated on every write, so reads after
// a write always see fresh data.
type FavoriteService struct {
	store storage.FavoriteStore
	cache *otter.Cache[string, []*brewmap.Favorite]
}

// NewFavoriteService returns a FavoriteService backed by store.
func NewFavoriteService(store storage.FavoriteStore) (*FavoriteService, error) {
	c, err := otter.New(&otter.Options[string, []*brewmap.Favorite]{
		MaximumSize:      favoriteCacheMaxLen,
		ExpiryCalculator: otter.ExpiryWriting[string, []*brewmap.Favorite](favoriteCacheTTL),
	})
	if err != nil {
		return nil, fmt.Errorf("create favorites cache: %w", err)
	}
	return &FavoriteService{store: store, cache: c}, nil
}

// AddFavoriteRequest carries the client-supplied fields of a new favorite.
type AddFavoriteRequest struct {
	LocationID int64                `json:"location_id"`
	Name       string               `json:"name"`
	Type       brewmap.LocationType `json:"type"`
	Lat        float64              `json:"lat"`
	Lon        float64              `json:"lon"`
}

// Add stores a new favorite for deviceID. Saving the same location twice
// returns ErrConflict.
func (s *FavoriteService) Add(ctx context.Context, deviceID string, req AddFavoriteRequest) (*brewmap.Favorite, error) {
	if deviceID == "" {
		return nil, fmt.Errorf("%w: missing device id", brewmap.ErrBadRequest)
	}
	if req.LocationID == 0 {
		return nil, fmt.Errorf("%w: missing location id", brewmap.ErrBadRequest)
	}
	if req.Type != "" && !knownType(req.Type) {
		return nil, fmt.Errorf("%w: unknown location type %q", brewmap.ErrBadRequest, req.Type)
	}
	if len(req.Name) > favoriteNameMaxLen {
		return nil, fmt.Errorf("%w: name too long", brewmap.ErrBadRequest)
	}

	typ := req.Type
	if typ == "" {
		typ = brewmap.TypeCafe
	}

	fav := &brewmap.Favorite{
		ID:         uuid.Must(uuid.NewV7()).String(),
		DeviceID:   deviceID,
		LocationID: req.LocationID,
		Name:       strings.TrimSpace(req.Name),
		Type:       typ,
		Lat:        req.Lat,
		Lon:        req.Lon,
		CreatedAt:  time.Now().UTC(),
	}
	if err := s.store.CreateFavorite(ctx, fav); err != nil {
		return nil, err
	}

	s.cache.Invalidate(deviceID)
	return fav, nil
}

// List returns deviceID's favorites, newest first.
func (s *FavoriteService) List(ctx context.Context, deviceID string) ([]*brewmap.Favorite, error) {
	if deviceID == "" {
		return nil, fmt.Errorf("%w: missing device id", brewmap.ErrBadRequest)
	}

	if favs, ok := s.cache.GetIfPresent(deviceID); ok {
		return favs, nil
	}

	favs, err := s.store.ListFavorites(ctx, deviceID)
	if err != nil {
		return nil, err
	}
	s.cache.Set(deviceID, favs)
	return favs, nil
}

// Remove deletes one of deviceID's favorites by ID. Favorites belonging to
// other devices are invisible and report ErrNotFound.
func (s *FavoriteService) Remove(ctx context.Context, deviceID, id string) error {
	if deviceID == "" {
		return fmt.Errorf("%w: missing device id", brewmap.ErrBadRequest)
	}
	if err := s.store.DeleteFavorite(ctx, deviceID, id); err != nil {
		return err
	}
	s.cache.Invalidate(deviceID)
	return nil
}
