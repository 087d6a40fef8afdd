// Package telemetry provides observability primitives for the brewmap service.
package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds all Prometheus collectors for the service.
type Metrics struct {
	RequestsTotal    *prometheus.CounterVec
	RequestDuration  *prometheus.HistogramVec
	ActiveRequests   prometheus.Gauge
	UpstreamDuration *prometheus.HistogramVec
	UpstreamErrors   *prometheus.CounterVec
	CacheHits        prometheus.Counter
	CacheMisses      prometheus.Counter
	FetchSuperseded  prometheus.Counter
	LocationsServed  *prometheus.CounterVec
	RateLimitRejects prometheus.Counter
	QueryLogQueue    prometheus.Gauge
}

// NewMetrics creates and registers all metrics with the given registerer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		RequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "brewmap",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests.",
		}, []string{"method", "path", "status"}),

		RequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace:                       "brewmap",
			Name:                            "request_duration_seconds",
			Help:                            "HTTP request duration in seconds.",
			NativeHistogramBucketFactor:     1.1,
			NativeHistogramMaxBucketNumber:  100,
			NativeHistogramMinResetDuration: 0,
		}, []string{"method", "path"}),

		ActiveRequests: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "brewmap",
			Name:      "active_requests",
			Help:      "Number of currently active requests.",
		}),

		UpstreamDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace:                       "brewmap",
			Name:                            "upstream_duration_seconds",
			Help:                            "Overpass query duration in seconds.",
			NativeHistogramBucketFactor:     1.1,
			NativeHistogramMaxBucketNumber:  100,
			NativeHistogramMinResetDuration: 0,
		}, []string{"mirror"}),

		UpstreamErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "brewmap",
			Name:      "upstream_errors_total",
			Help:      "Total Overpass query errors.",
		}, []string{"mirror"}),

		CacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "brewmap",
			Name:      "cache_hits_total",
			Help:      "Total viewport cache hits.",
		}),

		CacheMisses: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "brewmap",
			Name:      "cache_misses_total",
			Help:      "Total viewport cache misses.",
		}),

		FetchSuperseded: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "brewmap",
			Name:      "fetch_superseded_total",
			Help:      "Total upstream fetches discarded because a newer request replaced them.",
		}),

		LocationsServed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "brewmap",
			Name:      "locations_served_total",
			Help:      "Total locations returned to clients, by type.",
		}, []string{"type"}),

		RateLimitRejects: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "brewmap",
			Name:      "ratelimit_rejects_total",
			Help:      "Total rate limit rejections.",
		}),

		QueryLogQueue: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "brewmap",
			Name:      "query_log_queue_length",
			Help:      "Current number of queued query log records.",
		}),
	}

	reg.MustRegister(
		m.RequestsTotal,
		m.RequestDuration,
		m.ActiveRequests,
		m.UpstreamDuration,
		m.UpstreamErrors,
		m.CacheHits,
		m.CacheMisses,
		m.FetchSuperseded,
		m.LocationsServed,
		m.RateLimitRejects,
		m.QueryLogQueue,
	)

	return m
}
