package app

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	brewmap "github.com/brewmap/brewmap/internal"
	"github.com/brewmap/brewmap/internal/cache"
	"github.com/brewmap/brewmap/internal/circuitbreaker"
	"github.com/brewmap/brewmap/internal/telemetry"
)

// Transport queries a single Overpass mirror for raw map elements.
type Transport interface {
	Name() string
	Query(ctx context.Context, b brewmap.Bounds) ([]brewmap.Element, error)
}

// QueryRecorder accepts diagnostics records for completed upstream queries.
// Implementations must not block.
type QueryRecorder interface {
	Record(rec brewmap.QueryRecord)
}

const defaultFetchTimeout = 30 * time.Second

// LocationService answers viewport queries for coffee locations. Results are
// served from the response cache when possible; misses go upstream through
// the mirror list, skipping mirrors whose circuit breaker is open.
//
// Only one upstream fetch is in flight at a time. A new query cancels the
// previous fetch and bumps an internal generation counter; a fetch that
// finishes after being superseded never touches the cache and its caller
// receives ErrSuperseded.
type LocationService struct {
	transports []Transport
	cache      *cache.Cache
	filters    *FilterService
	breakers   *circuitbreaker.Registry
	metrics    *telemetry.Metrics
	recorder   QueryRecorder
	timeout    time.Duration

	mu     sync.Mutex
	gen    uint64
	cancel context.CancelFunc
}

// LocationOption customizes a LocationService.
type LocationOption func(*LocationService)

// WithMetrics attaches Prometheus metrics.
func WithMetrics(m *telemetry.Metrics) LocationOption {
	return func(s *LocationService) { s.metrics = m }
}

// WithRecorder attaches a query diagnostics recorder.
func WithRecorder(r QueryRecorder) LocationOption {
	return func(s *LocationService) { s.recorder = r }
}

// WithFetchTimeout overrides the per-fetch upstream timeout.
func WithFetchTimeout(d time.Duration) LocationOption {
	return func(s *LocationService) {
		if d > 0 {
			s.timeout = d
		}
	}
}

// NewLocationService returns a LocationService backed by the given mirrors.
func NewLocationService(transports []Transport, c *cache.Cache, filters *FilterService, breakers *circuitbreaker.Registry, opts ...LocationOption) *LocationService {
	s := &LocationService{
		transports: transports,
		cache:      c,
		filters:    filters,
		breakers:   breakers,
		timeout:    defaultFetchTimeout,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Query returns the classified locations inside b that match the active
// filters. Passing a non-nil types set overrides the service-wide filters
// for this call only.
func (s *LocationService) Query(ctx context.Context, b brewmap.Bounds, types brewmap.FilterSet) ([]brewmap.Location, error) {
	filters := types
	if filters == nil {
		filters = s.filters.Current()
	}

	key, err := cache.Key(b, filters)
	if err != nil {
		return nil, err
	}

	if locs, ok := s.cache.Get(key); ok {
		if s.metrics != nil {
			s.metrics.CacheHits.Inc()
		}
		s.record(ctx, brewmap.QueryRecord{Bounds: b, ResultCount: len(locs), CacheHit: true})
		s.countServed(locs)
		return locs, nil
	}
	if s.metrics != nil {
		s.metrics.CacheMisses.Inc()
	}

	fetchCtx, gen := s.begin(ctx)
	start := time.Now()
	elements, mirror, err := s.fetch(fetchCtx, b)
	current := s.finish(gen)
	if err != nil {
		if !current && (errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)) {
			if s.metrics != nil {
				s.metrics.FetchSuperseded.Inc()
			}
			return nil, brewmap.ErrSuperseded
		}
		return nil, err
	}

	locs := collect(elements, filters)

	// Late success: a newer query replaced this one while the response was
	// in flight. Drop it without touching the cache.
	if !current {
		if s.metrics != nil {
			s.metrics.FetchSuperseded.Inc()
		}
		return nil, brewmap.ErrSuperseded
	}

	s.cache.Set(key, locs)
	s.record(ctx, brewmap.QueryRecord{
		Bounds:      b,
		Mirror:      mirror,
		ResultCount: len(locs),
		LatencyMs:   int(time.Since(start).Milliseconds()),
	})
	s.countServed(locs)
	return locs, nil
}

// begin cancels any in-flight fetch, claims the fetch slot, and returns the
// context for the new fetch together with its generation token.
func (s *LocationService) begin(ctx context.Context) (context.Context, uint64) {
	fetchCtx, cancel := context.WithTimeout(ctx, s.timeout)

	s.mu.Lock()
	if s.cancel != nil {
		s.cancel()
	}
	s.gen++
	gen := s.gen
	s.cancel = cancel
	s.mu.Unlock()

	return fetchCtx, gen
}

// finish releases the fetch slot if gen still owns it and reports whether
// the fetch was still current when it completed.
func (s *LocationService) finish(gen uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.gen != gen {
		return false
	}
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	return true
}

// fetch tries each mirror in order until one succeeds. Mirrors with an open
// breaker are skipped; cancellation stops the failover walk immediately.
func (s *LocationService) fetch(ctx context.Context, b brewmap.Bounds) ([]brewmap.Element, string, error) {
	var lastErr error
	tried := 0
	for _, t := range s.transports {
		br := s.breakers.GetOrCreate(t.Name())
		if !br.Allow() {
			continue
		}
		tried++

		start := time.Now()
		elements, err := t.Query(ctx, b)
		if s.metrics != nil {
			s.metrics.UpstreamDuration.WithLabelValues(t.Name()).Observe(time.Since(start).Seconds())
		}
		if err == nil {
			br.RecordSuccess()
			return elements, t.Name(), nil
		}

		if weight := circuitbreaker.ClassifyError(err); weight > 0 {
			br.RecordError(weight)
			if s.metrics != nil {
				s.metrics.UpstreamErrors.WithLabelValues(t.Name()).Inc()
			}
		}
		if ctx.Err() != nil {
			return nil, "", ctx.Err()
		}
		lastErr = err
	}

	if tried == 0 {
		return nil, "", fmt.Errorf("%w: all mirrors unavailable", brewmap.ErrUpstream)
	}
	return nil, "", fmt.Errorf("%w: %v", brewmap.ErrUpstream, lastErr)
}

// collect classifies raw elements and keeps those matching the filter set.
// Elements without usable coordinates are dropped.
func collect(elements []brewmap.Element, filters brewmap.FilterSet) []brewmap.Location {
	locs := make([]brewmap.Location, 0, len(elements))
	for _, e := range elements {
		lat, lon, ok := e.Coordinates()
		if !ok {
			continue
		}
		typ := brewmap.ClassifyTags(e.Tags)
		if !filters.Enabled(typ) {
			continue
		}
		locs = append(locs, brewmap.Location{
			ID:   e.ID,
			Kind: e.Kind,
			Type: typ,
			Name: e.Tags["name"],
			Lat:  lat,
			Lon:  lon,
			Tags: e.Tags,
		})
	}
	return locs
}

func (s *LocationService) record(ctx context.Context, rec brewmap.QueryRecord) {
	if s.recorder == nil {
		return
	}
	rec.RequestID = brewmap.RequestIDFromContext(ctx)
	s.recorder.Record(rec)
}

func (s *LocationService) countServed(locs []brewmap.Location) {
	if s.metrics == nil {
		return
	}
	for _, l := range locs {
		s.metrics.LocationsServed.WithLabelValues(string(l.Type)).Inc()
	}
}
