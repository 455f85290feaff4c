package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// FetchAttempts tracks upstream attempts by outcome ("ok" or error kind)
	FetchAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "newsfeed_fetch_attempts_total",
			Help: "Total number of upstream fetch attempts",
		},
		[]string{"outcome"},
	)

	// FetchRetries tracks retries by the kind of failure that caused them
	FetchRetries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "newsfeed_fetch_retries_total",
			Help: "Total number of upstream fetch retries",
		},
		[]string{"kind"},
	)

	// FetchLatency tracks upstream attempt latency
	FetchLatency = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "newsfeed_fetch_latency_seconds",
			Help:    "Upstream fetch attempt latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	// CacheResolves tracks cache resolutions by outcome (hit, miss, refreshed, stale, error)
	CacheResolves = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "newsfeed_cache_resolves_total",
			Help: "Total number of cache resolutions",
		},
		[]string{"outcome"},
	)

	// CacheStoreErrors tracks durable store failures swallowed by the cache
	CacheStoreErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "newsfeed_cache_store_errors_total",
			Help: "Total number of durable store errors",
		},
		[]string{"op"},
	)

	// FeedLoads tracks feed operations by kind (more, refresh) and result
	FeedLoads = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "newsfeed_feed_loads_total",
			Help: "Total number of feed load operations",
		},
		[]string{"op", "result"},
	)

	// FeedItems tracks the number of items held by the active feed
	FeedItems = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "newsfeed_feed_items",
			Help: "Items currently held by the active feed",
		},
		[]string{"category"},
	)
)

// StoreConnectionPoolUsage tracks the SQL store connection pool usage percentage
var StoreConnectionPoolUsage = promauto.NewGauge(
	prometheus.GaugeOpts{
		Name: "newsfeed_store_connection_pool_usage_percent",
		Help: "SQL store connection pool usage percentage",
	},
)
