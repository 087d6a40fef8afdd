// Package server implements the HTTP transport layer for the brewmap service.
package server

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/brewmap/brewmap/internal/app"
	"github.com/brewmap/brewmap/internal/cache"
	"github.com/brewmap/brewmap/internal/circuitbreaker"
	"github.com/brewmap/brewmap/internal/ratelimit"
	"github.com/brewmap/brewmap/internal/storage"
	"github.com/brewmap/brewmap/internal/telemetry"
)

// ReadyChecker reports whether the system is ready to serve traffic.
type ReadyChecker func(ctx context.Context) error

// Deps holds all dependencies for the HTTP server.
type Deps struct {
	Locations      *app.LocationService
	Filters        *app.FilterService
	Favorites      *app.FavoriteService
	Queries        storage.QueryLogStore    // nil = query log endpoint disabled
	Cache          *cache.Cache             // viewport response cache, for admin endpoints
	Breakers       *circuitbreaker.Registry // nil = breaker state endpoint disabled
	ReadyCheck     ReadyChecker             // nil = always ready (for tests)
	RateLimiter    *ratelimit.Registry      // nil = no rate limiting
	Metrics        *telemetry.Metrics       // nil = no metrics middleware
	MetricsHandler http.Handler             // nil = no /metrics endpoint
}

// New creates an http.Handler with all routes and middleware wired.
func New(deps Deps) http.Handler {
	s := &server{deps: deps}

	r := chi.NewRouter()

	// Global middleware
	r.Use(s.recovery)
	r.Use(s.requestID)
	r.Use(s.logging)
	if deps.Metrics != nil {
		r.Use(metricsMiddleware(deps.Metrics))
	}

	// System endpoints (no rate limiting)
	r.Get("/healthz", s.handleHealthz)
	r.Get("/readyz", s.handleReadyz)
	if deps.MetricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", deps.MetricsHandler)
	}

	// Client-facing API
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(s.rateLimit)

		r.Get("/locations", s.handleLocations)
		r.Get("/nearby", s.handleNearby)
		r.Get("/types", s.handleTypes)

		r.Get("/filters", s.handleGetFilters)
		r.Put("/filters", s.handlePutFilters)

		r.Get("/favorites", s.handleListFavorites)
		r.Post("/favorites", s.handleAddFavorite)
		r.Delete("/favorites/{id}", s.handleDeleteFavorite)

		r.Get("/cache/stats", s.handleCacheStats)
		r.Delete("/cache", s.handleCacheClear)
		r.Get("/mirrors", s.handleMirrors)
		r.Get("/queries", s.handleRecentQueries)
	})

	return r
}

type server struct {
	deps Deps
}
