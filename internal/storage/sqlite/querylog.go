package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	brewmap "github.com/brewmap/brewmap/internal"
)

// InsertQueries batch-inserts query log records.
func (s *Store) InsertQueries(ctx context.Context, records []brewmap.QueryRecord) error {
	if len(records) == 0 {
		return nil
	}

	// Single multi-row INSERT avoids N round-trips for large batches.
	const cols = 11
	placeholders := make([]string, len(records))
	args := make([]any, 0, len(records)*cols)

	for i, r := range records {
		placeholders[i] = "(?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)"
		args = append(args,
			r.ID, r.Bounds.South, r.Bounds.West, r.Bounds.North, r.Bounds.East,
			nullStr(r.Mirror), r.ResultCount, boolToInt(r.CacheHit),
			r.LatencyMs, nullStr(r.RequestID), r.CreatedAt.UTC().Format(time.RFC3339),
		)
	}

	query := `INSERT INTO query_log
		(id, south, west, north, east, mirror, result_count, cache_hit,
		 latency_ms, request_id, created_at)
		VALUES ` + strings.Join(placeholders, ", ")

	_, err := s.write.ExecContext(ctx, query, args...)
	return err
}

// RecentQueries returns the most recent query log records, newest first.
func (s *Store) RecentQueries(ctx context.Context, limit int) ([]brewmap.QueryRecord, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.read.QueryContext(ctx,
		`SELECT id, south, west, north, east, mirror, result_count, cache_hit,
		 latency_ms, request_id, created_at
		 FROM query_log ORDER BY created_at DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []brewmap.QueryRecord
	for rows.Next() {
		var r brewmap.QueryRecord
		var mirror, requestID sql.NullString
		var cacheHit int
		var createdAt string
		if err := rows.Scan(&r.ID, &r.Bounds.South, &r.Bounds.West, &r.Bounds.North, &r.Bounds.East,
			&mirror, &r.ResultCount, &cacheHit, &r.LatencyMs, &requestID, &createdAt); err != nil {
			return nil, err
		}
		r.Mirror = mirror.String
		r.RequestID = requestID.String
		r.CacheHit = cacheHit != 0
		t, err := time.Parse(time.RFC3339, createdAt)
		if err != nil {
			return nil, fmt.Errorf("parse created_at: %w", err)
		}
		r.CreatedAt = t
		records = append(records, r)
	}
	return records, rows.Err()
}
