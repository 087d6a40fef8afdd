package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	brewmap "github.com/brewmap/brewmap/internal"
)

// CreateFavorite inserts a new favorite. A device favoriting the same
// location twice yields ErrConflict.
func (s *Store) CreateFavorite(ctx context.Context, f *brewmap.Favorite) error {
	_, err := s.write.ExecContext(ctx,
		`INSERT INTO favorites (id, device_id, location_id, name, type, lat, lon, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		f.ID, f.DeviceID, f.LocationID, nullStr(f.Name), string(f.Type),
		f.Lat, f.Lon, f.CreatedAt.UTC().Format(time.RFC3339),
	)
	if err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed") {
		return fmt.Errorf("favorite: %w", brewmap.ErrConflict)
	}
	return err
}

// ListFavorites returns a device's favorites, newest first.
func (s *Store) ListFavorites(ctx context.Context, deviceID string) ([]*brewmap.Favorite, error) {
	rows, err := s.read.QueryContext(ctx,
		`SELECT id, device_id, location_id, name, type, lat, lon, created_at
		 FROM favorites WHERE device_id = ? ORDER BY created_at DESC`, deviceID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var favs []*brewmap.Favorite
	for rows.Next() {
		f, err := scanFavorite(rows)
		if err != nil {
			return nil, err
		}
		favs = append(favs, f)
	}
	return favs, rows.Err()
}

// DeleteFavorite removes a favorite scoped to its owning device.
func (s *Store) DeleteFavorite(ctx context.Context, deviceID, id string) error {
	result, err := s.write.ExecContext(ctx,
		`DELETE FROM favorites WHERE device_id = ? AND id = ?`, deviceID, id)
	if err != nil {
		return err
	}
	return checkRowsAffected(result, "favorite")
}

func scanFavorite(rows *sql.Rows) (*brewmap.Favorite, error) {
	var f brewmap.Favorite
	var name sql.NullString
	var typ, createdAt string
	if err := rows.Scan(&f.ID, &f.DeviceID, &f.LocationID, &name, &typ, &f.Lat, &f.Lon, &createdAt); err != nil {
		return nil, err
	}
	f.Name = name.String
	f.Type = brewmap.LocationType(typ)
	t, err := time.Parse(time.RFC3339, createdAt)
	if err != nil {
		return nil, fmt.Errorf("parse created_at: %w", err)
	}
	f.CreatedAt = t
	return &f, nil
}

// helpers

func nullStr(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func checkRowsAffected(result sql.Result, entity string) error {
	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%s: %w", entity, brewmap.ErrNotFound)
	}
	return nil
}
