package worker

import (
	"context"
	"log/slog"
	"time"

	"github.com/brewmap/brewmap/internal/ratelimit"
)

const (
	janitorInterval = 5 * time.Minute
	janitorIdleAge  = 30 * time.Minute
)

// LimiterJanitor periodically evicts rate limiter buckets for clients that
// have gone quiet, keeping the per-client map bounded.
type LimiterJanitor struct {
	limiters *ratelimit.Registry
}

// NewLimiterJanitor creates a LimiterJanitor for the given registry.
func NewLimiterJanitor(limiters *ratelimit.Registry) *LimiterJanitor {
	return &LimiterJanitor{limiters: limiters}
}

// Run evicts stale limiters on an interval until ctx is cancelled.
func (w *LimiterJanitor) Run(ctx context.Context) error {
	ticker := time.NewTicker(janitorInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			n := w.limiters.EvictStale(time.Now().Add(-janitorIdleAge))
			if n > 0 {
				slog.LogAttrs(ctx, slog.LevelDebug, "evicted idle rate limiters",
					slog.Int("count", n),
				)
			}
		case <-ctx.Done():
			return nil
		}
	}
}
