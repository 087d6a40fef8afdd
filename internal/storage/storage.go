// Package storage defines persistence interfaces for the brewmap service.
package storage

import (
	"context"

	brewmap "github.com/brewmap/brewmap/internal"
)

// FavoriteStore manages per-device favorite persistence.
type FavoriteStore interface {
	CreateFavorite(ctx context.Context, f *brewmap.Favorite) error
	ListFavorites(ctx context.Context, deviceID string) ([]*brewmap.Favorite, error)
	DeleteFavorite(ctx context.Context, deviceID, id string) error
}

// QueryLogStore manages upstream query diagnostics.
type QueryLogStore interface {
	InsertQueries(ctx context.Context, records []brewmap.QueryRecord) error
	RecentQueries(ctx context.Context, limit int) ([]brewmap.QueryRecord, error)
}

// Store combines all storage interfaces.
type Store interface {
	FavoriteStore
	QueryLogStore
	Close() error
}
