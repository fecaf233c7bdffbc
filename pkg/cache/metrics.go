package cache

import (
	"github.com/Sternrassler/univ-admin-client/pkg/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// CacheHits tracks cache hits by layer (redis)
	CacheHits = promauto.With(metrics.Registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "univ_cache_hits_total",
			Help: "Total number of list page cache hits",
		},
		[]string{"layer"}, // "redis"
	)

	// CacheMisses tracks cache misses
	CacheMisses = promauto.With(metrics.Registry).NewCounter(
		prometheus.CounterOpts{
			Name: "univ_cache_misses_total",
			Help: "Total number of list page cache misses",
		},
	)

	// ConditionalRequestsSent tracks requests sent with If-None-Match/If-Modified-Since
	ConditionalRequestsSent = promauto.With(metrics.Registry).NewCounter(
		prometheus.CounterOpts{
			Name: "univ_conditional_requests_total",
			Help: "Total number of conditional requests sent",
		},
	)

	// NotModifiedResponses tracks 304 Not Modified responses
	NotModifiedResponses = promauto.With(metrics.Registry).NewCounter(
		prometheus.CounterOpts{
			Name: "univ_304_responses_total",
			Help: "Total number of 304 Not Modified responses",
		},
	)

	// Invalidations tracks entries removed after mutations, by resource
	Invalidations = promauto.With(metrics.Registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "univ_cache_invalidations_total",
			Help: "Total number of cache entries invalidated after mutations",
		},
		[]string{"resource"},
	)

	// CacheErrors tracks cache operation errors
	CacheErrors = promauto.With(metrics.Registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "univ_cache_errors_total",
			Help: "Total number of cache operation errors",
		},
		[]string{"operation"}, // "get", "set", "delete", "invalidate"
	)
)
