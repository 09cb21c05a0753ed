// Package metrics exposes the Prometheus collectors used across the
// pipeline. InitMetrics registers everything once; collectors are
// package-level so call sites stay terse.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	// FetchesTotal counts outbound page fetches by kind and outcome.
	FetchesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scout_fetches_total",
			Help: "Outbound page fetches by kind (store_finder/listing/marketplace) and outcome.",
		},
		[]string{"kind", "outcome"},
	)

	// FetchDuration observes end-to-end fetch latency by kind.
	FetchDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "scout_fetch_duration_seconds",
			Help:    "Fetch latency including pacing delays.",
			Buckets: prometheus.ExponentialBuckets(0.5, 2, 10),
		},
		[]string{"kind"},
	)

	// BlockDetectionsTotal counts bot-challenge detections by marker.
	BlockDetectionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scout_block_detections_total",
			Help: "Bot-challenge detections by matched marker.",
		},
		[]string{"marker"},
	)

	// ActivePages tracks currently open browser pages.
	ActivePages = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "scout_browser_active_pages",
			Help: "Browser pages currently open.",
		},
	)

	// ItemsScrapedTotal counts scraped items by retailer and deal type.
	ItemsScrapedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scout_items_scraped_total",
			Help: "Inventory items extracted by retailer and deal type.",
		},
		[]string{"retailer", "deal_type"},
	)

	// MarketplaceLookupsTotal counts price lookups by marketplace and outcome.
	MarketplaceLookupsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scout_marketplace_lookups_total",
			Help: "Marketplace price lookups by marketplace and outcome.",
		},
		[]string{"marketplace", "outcome"},
	)

	// OpportunitiesFoundTotal counts profitable opportunities emitted.
	OpportunitiesFoundTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "scout_opportunities_found_total",
			Help: "Profitable opportunities emitted by the pipeline.",
		},
	)

	// SearchDuration observes full search durations by terminal status.
	SearchDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "scout_search_duration_seconds",
			Help:    "End-to-end search duration by terminal status.",
			Buckets: prometheus.ExponentialBuckets(1, 2, 12),
		},
		[]string{"status"},
	)

	// StoreQueueDepth tracks pending store jobs in the worker pool.
	StoreQueueDepth = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "scout_store_queue_depth",
			Help: "Store-scrape jobs waiting in the worker pool.",
		},
	)

	// RateLimitWaitDuration observes time spent waiting for a token.
	RateLimitWaitDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "scout_ratelimit_wait_seconds",
			Help:    "Time spent waiting for a marketplace rate-limit token.",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 12),
		},
	)

	// RateLimitTimeoutTotal counts aborted rate-limit waits.
	RateLimitTimeoutTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "scout_ratelimit_timeout_total",
			Help: "Rate-limit waits aborted by context cancellation.",
		},
	)
)

var initOnce sync.Once

// InitMetrics registers all collectors with the default registry.
// Safe to call from multiple entry points; registration happens once.
func InitMetrics() {
	initOnce.Do(func() {
		prometheus.MustRegister(
			FetchesTotal,
			FetchDuration,
			BlockDetectionsTotal,
			ActivePages,
			ItemsScrapedTotal,
			MarketplaceLookupsTotal,
			OpportunitiesFoundTotal,
			SearchDuration,
			StoreQueueDepth,
			RateLimitWaitDuration,
			RateLimitTimeoutTotal,
		)
	})
}
