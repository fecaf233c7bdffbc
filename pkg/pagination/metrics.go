package pagination

import (
	"github.com/Sternrassler/univ-admin-client/pkg/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus metrics for list paging.
var (
	pagerFetchesTotal = promauto.With(metrics.Registry).NewCounterVec(prometheus.CounterOpts{
		Name: "univ_pager_fetches_total",
		Help: "Page fetches by screen and result (success, error, discarded)",
	}, []string{"screen", "result"})

	pagerFetchDuration = promauto.With(metrics.Registry).NewHistogramVec(prometheus.HistogramOpts{
		Name:    "univ_pager_fetch_duration_seconds",
		Help:    "Page fetch duration in seconds by screen",
		Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5},
	}, []string{"screen"})

	pagerResetsTotal = promauto.With(metrics.Registry).NewCounterVec(prometheus.CounterOpts{
		Name: "univ_pager_resets_total",
		Help: "Pagination resets by screen",
	}, []string{"screen"})

	batchPagesTotal = promauto.With(metrics.Registry).NewCounterVec(prometheus.CounterOpts{
		Name: "univ_batch_pages_total",
		Help: "Pages fetched by the batch fetcher by result",
	}, []string{"result"})
)
