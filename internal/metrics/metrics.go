// Package metrics defines the Prometheus instrumentation for the rating
// engine. All collectors are registered on the default registry via promauto.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Reaction pipeline metrics
var (
	// ReactionsProcessed tracks handled reaction events by kind and outcome.
	// kind: add|remove; outcome: rated|updated|removed|duplicate|invalid_emoji|self_action|ignored|error
	ReactionsProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reactions_processed_total",
			Help: "Reaction events processed by kind and outcome",
		},
		[]string{"kind", "outcome"},
	)

	// GuardSuppressions tracks remove events suppressed by the self-action guard.
	GuardSuppressions = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "self_action_suppressions_total",
			Help: "Gateway echoes of corrective removals suppressed by the guard",
		},
	)
)

// Aggregate cache metrics
var (
	StatsCacheHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "stats_cache_hits_total",
			Help: "Aggregate cache hits",
		},
	)

	StatsCacheMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "stats_cache_misses_total",
			Help: "Aggregate cache misses (including expired entries)",
		},
	)

	StatsCacheStalePuts = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "stats_cache_stale_puts_total",
			Help: "Cache repopulations rejected because the key was invalidated mid-read",
		},
	)

	StatsCacheEvictions = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "stats_cache_evictions_total",
			Help: "Expired aggregate cache entries removed by the background sweep",
		},
	)

	StatsCacheSize = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "stats_cache_size",
			Help: "Current number of aggregate cache entries",
		},
	)
)

// Store metrics
var (
	// RatingWrites tracks rating mutations by operation (upsert|remove) and status (ok|error).
	RatingWrites = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rating_writes_total",
			Help: "Rating store mutations by operation and status",
		},
		[]string{"operation", "status"},
	)
)

// External collaborators
var (
	// OmdbLookups tracks metadata lookups by status (ok|not_found|error|breaker_open).
	OmdbLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "omdb_lookups_total",
			Help: "OMDB metadata lookups by status",
		},
		[]string{"status"},
	)

	GatewayReconnects = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "gateway_reconnects_total",
			Help: "Discord gateway reconnect attempts",
		},
	)

	DisplayRefreshFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "display_refresh_failures_total",
			Help: "Summary message refreshes that failed (non-fatal)",
		},
	)
)
