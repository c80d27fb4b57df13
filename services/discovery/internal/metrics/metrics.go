// Package metrics declares the Prometheus instruments of the discovery service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Outcome labels.
const (
	OutcomeOK       = "ok"
	OutcomeError    = "error"
	OutcomeMatch    = "match"
	OutcomeMiss     = "miss"
	OutcomeCacheHit = "cache_hit"
	OutcomeStale    = "stale"
	OutcomeSkipped  = "skipped"
)

var (
	// Recommendation backend
	BackendRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "discovery_backend_requests_total",
			Help: "Requests issued to the recommendation backend",
		},
		[]string{"endpoint", "outcome"},
	)

	BackendDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "discovery_backend_request_duration_seconds",
			Help:    "Recommendation backend request duration in seconds",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
		[]string{"endpoint"},
	)

	// Catalog enrichment
	Enrichments = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "discovery_enrichments_total",
			Help: "Per-item catalog enrichment results",
		},
		[]string{"outcome"}, // "match", "miss", "error", "cache_hit"
	)

	// Feeds
	FeedFetches = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "discovery_feed_fetches_total",
			Help: "Feed fetch cycles by feed kind and outcome",
		},
		[]string{"feed", "outcome"}, // "ok", "error", "stale", "skipped"
	)

	// HTTP surface
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "discovery_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"method", "route", "status_code"},
	)

	RateLimitHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "discovery_rate_limit_hits_total",
			Help: "Requests rejected by the per-IP rate limiter",
		},
	)

	ShelfCache = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "discovery_shelf_cache_total",
			Help: "Shelf response cache lookups",
		},
		[]string{"result"}, // "hit", "miss"
	)

	// Websocket sessions
	ActiveSessions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "discovery_ws_sessions_active",
			Help: "Currently connected interactive sessions",
		},
	)
)
