package worker

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	brewmap "github.com/brewmap/brewmap/internal"
	"github.com/brewmap/brewmap/internal/telemetry"
)

const (
	queryChanSize   = 1000
	queryBatchSize  = 100
	queryFlushEvery = 5 * time.Second
	queryDrainTime  = 30 * time.Second
)

// QueryStore is the persistence interface consumed by QueryRecorder.
type QueryStore interface {
	InsertQueries(ctx context.Context, records []brewmap.QueryRecord) error
}

// QueryRecorder buffers viewport query records and batch-flushes them to the
// store. Records are dropped if the channel is full (back-pressure on slow DB).
type QueryRecorder struct {
	ch      chan brewmap.QueryRecord
	store   QueryStore
	metrics *telemetry.Metrics
}

// NewQueryRecorder creates a QueryRecorder backed by store. Metrics may be nil.
func NewQueryRecorder(store QueryStore, metrics *telemetry.Metrics) *QueryRecorder {
	return &QueryRecorder{
		ch:      make(chan brewmap.QueryRecord, queryChanSize),
		store:   store,
		metrics: metrics,
	}
}

// Record enqueues a query record. It never blocks; drops on full channel.
func (q *QueryRecorder) Record(r brewmap.QueryRecord) {
	select {
	case q.ch <- r:
		if q.metrics != nil {
			q.metrics.QueryLogQueue.Set(float64(len(q.ch)))
		}
	default:
		slog.Warn("query record dropped, channel full")
	}
}

// Run processes records until ctx is cancelled, then drains remaining records.
func (q *QueryRecorder) Run(ctx context.Context) error {
	ticker := time.NewTicker(queryFlushEvery)
	defer ticker.Stop()

	buf := make([]brewmap.QueryRecord, 0, queryBatchSize)

	for {
		select {
		case r := <-q.ch:
			buf = append(buf, r)
			if len(buf) >= queryBatchSize {
				q.flush(ctx, buf)
				buf = buf[:0]
			}

		case <-ticker.C:
			if len(buf) > 0 {
				q.flush(ctx, buf)
				buf = buf[:0]
			}

		case <-ctx.Done():
			// Drain remaining records with a timeout.
			q.drain(buf)
			return nil
		}
	}
}

func (q *QueryRecorder) drain(buf []brewmap.QueryRecord) {
	ctx, cancel := context.WithTimeout(context.Background(), queryDrainTime)
	defer cancel()

	for {
		select {
		case r := <-q.ch:
			buf = append(buf, r)
			if len(buf) >= queryBatchSize {
				q.flush(ctx, buf)
				buf = buf[:0]
			}
		default:
			// Channel empty, flush remaining.
			if len(buf) > 0 {
				q.flush(ctx, buf)
			}
			return
		}
	}
}

func (q *QueryRecorder) flush(ctx context.Context, buf []brewmap.QueryRecord) {
	// Copy to avoid aliasing the caller's slice.
	batch := make([]brewmap.QueryRecord, len(buf))
	copy(batch, buf)

	now := time.Now().UTC()
	// Assign IDs and timestamps off the hot path; callers leave them empty.
	for i := range batch {
		if batch[i].ID == "" {
			batch[i].ID = uuid.Must(uuid.NewV7()).String()
		}
		if batch[i].CreatedAt.IsZero() {
			batch[i].CreatedAt = now
		}
	}

	if err := q.store.InsertQueries(ctx, batch); err != nil {
		slog.LogAttrs(ctx, slog.LevelError, "query log flush failed",
			slog.Int("count", len(batch)),
			slog.String("error", err.Error()),
		)
	}
	if q.metrics != nil {
		q.metrics.QueryLogQueue.Set(float64(len(q.ch)))
	}
}
