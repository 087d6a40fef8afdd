package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/dnscache"

	"github.com/brewmap/brewmap/internal/app"
	"github.com/brewmap/brewmap/internal/cache"
	"github.com/brewmap/brewmap/internal/circuitbreaker"
	"github.com/brewmap/brewmap/internal/config"
	"github.com/brewmap/brewmap/internal/overpass"
	"github.com/brewmap/brewmap/internal/ratelimit"
	"github.com/brewmap/brewmap/internal/server"
	"github.com/brewmap/brewmap/internal/storage/sqlite"
	"github.com/brewmap/brewmap/internal/telemetry"
	"github.com/brewmap/brewmap/internal/worker"
)

const dnsRefreshInterval = 5 * time.Minute

func run(configPath string) error {
	// Load config
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	slog.Info("starting brewmap", "version", version, "addr", cfg.Server.Addr)

	// Open database
	store, err := sqlite.New(cfg.Database.DSN)
	if err != nil {
		return err
	}
	defer store.Close()

	ctx := context.Background()

	// Tracing
	if cfg.Telemetry.Tracing.Enabled {
		shutdown, err := telemetry.SetupTracing(ctx, cfg.Telemetry.Tracing.Endpoint, cfg.Telemetry.Tracing.SampleRate)
		if err != nil {
			return err
		}
		defer shutdown(context.Background())
	}

	// Metrics
	var (
		metrics        *telemetry.Metrics
		metricsHandler http.Handler
	)
	if cfg.Telemetry.Metrics.Enabled {
		promReg := prometheus.NewRegistry()
		metrics = telemetry.NewMetrics(promReg)
		metricsHandler = promhttp.HandlerFor(promReg, promhttp.HandlerOpts{})
	}

	// Overpass mirrors share one pooled transport with cached DNS.
	resolver := &dnscache.Resolver{}
	go refreshDNS(ctx, resolver)
	httpClient := &http.Client{Transport: overpass.NewTransport(resolver)}

	transports := make([]app.Transport, 0, len(cfg.Overpass.Mirrors))
	for _, mirror := range cfg.Overpass.Mirrors {
		transports = append(transports, overpass.New(mirrorName(mirror), mirror, cfg.Overpass.UserAgent, httpClient))
	}

	// Wire services
	viewportCache := cache.New(cfg.Cache.MaxSize, cfg.Cache.TTL)
	filters := app.NewFilterService(cfg.Filters.FilterSet(), viewportCache)
	breakers := circuitbreaker.NewRegistry(circuitbreaker.DefaultConfig())
	limiters := ratelimit.NewRegistry(cfg.RateLimits.DefaultRPM)

	recorder := worker.NewQueryRecorder(store, metrics)
	janitor := worker.NewLimiterJanitor(limiters)

	locOpts := []app.LocationOption{
		app.WithRecorder(recorder),
		app.WithFetchTimeout(cfg.Overpass.Timeout),
	}
	if metrics != nil {
		locOpts = append(locOpts, app.WithMetrics(metrics))
	}
	locations := app.NewLocationService(transports, viewportCache, filters, breakers, locOpts...)

	favorites, err := app.NewFavoriteService(store)
	if err != nil {
		return err
	}

	// Background workers
	workerCtx, stopWorkers := context.WithCancel(ctx)
	workersDone := make(chan error, 1)
	go func() {
		workersDone <- worker.NewRunner(recorder, janitor).Run(workerCtx)
	}()

	// Create HTTP server
	handler := server.New(server.Deps{
		Locations:      locations,
		Filters:        filters,
		Favorites:      favorites,
		Queries:        store,
		Cache:          viewportCache,
		Breakers:       breakers,
		ReadyCheck:     store.Ping,
		RateLimiter:    limiters,
		Metrics:        metrics,
		MetricsHandler: metricsHandler,
	})

	srv := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// Graceful shutdown
	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	slog.Info("brewmap ready", "addr", cfg.Server.Addr, "mirrors", len(transports))

	// Wait for signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)

	select {
	case sig := <-sigCh:
		slog.Info("shutting down", "signal", sig)
	case err := <-errCh:
		stopWorkers()
		return err
	}

	// Shutdown
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		stopWorkers()
		return err
	}

	// Stop workers after the server drains so in-flight requests can still
	// enqueue query records; the recorder flushes its buffer on the way out.
	stopWorkers()
	<-workersDone

	slog.Info("brewmap stopped")
	return nil
}

// mirrorName derives a stable mirror identifier from its endpoint URL.
// Breakers, metrics, and logs all key on this name.
func mirrorName(endpoint string) string {
	u, err := url.Parse(endpoint)
	if err != nil || u.Host == "" {
		return endpoint
	}
	return u.Host
}

// refreshDNS re-resolves cached DNS entries until ctx is cancelled.
func refreshDNS(ctx context.Context, resolver *dnscache.Resolver) {
	ticker := time.NewTicker(dnsRefreshInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			resolver.Refresh(true)
		case <-ctx.Done():
			return
		}
	}
}
