// Package metrics owns the Prometheus registry shared by the client
// packages. Metrics are defined next to the code that records them (client,
// cache, ratelimit, pagination) via promauto.With(Registry).
package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
)

// Registry holds every univ_* metric plus the Go runtime and process
// collectors. An embedding application can gather it next to its own.
var Registry = newRegistry()

func newRegistry() *prometheus.Registry {
	r := prometheus.NewRegistry()
	r.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return r
}

// Handler serves Registry in the Prometheus text format.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{Registry: Registry})
}

// Serve exposes /metrics on addr until ctx is done.
func Serve(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler())

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	logger := log.With().Str("component", "metrics").Logger()
	errCh := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", addr).Msg("Serving metrics")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}

// Metric catalogue
//
// Requests (pkg/client):
//   - univ_requests_total{operation, status} (Counter)
//   - univ_request_duration_seconds{operation} (Histogram)
//   - univ_errors_total{class} (Counter): client, server, rate_limit, network, decode
//   - univ_forced_logouts_total (Counter): 403 responses
//   - univ_retries_total{error_class}, univ_retry_backoff_seconds{error_class},
//     univ_retry_exhausted_total{error_class}
//
// Cache (pkg/cache):
//   - univ_cache_hits_total, univ_cache_misses_total (Counter)
//   - univ_conditional_requests_total, univ_304_responses_total (Counter)
//   - univ_cache_invalidations_total{resource} (Counter)
//   - univ_cache_errors_total{operation} (Counter)
//
// Rate limiting (pkg/ratelimit):
//   - univ_rate_limit_wait_seconds (Histogram)
//   - univ_rate_limit_pauses_total (Counter)
//
// Pagination (pkg/pagination):
//   - univ_pager_fetches_total{screen, result} (Counter)
//   - univ_pager_fetch_duration_seconds{screen} (Histogram)
//   - univ_pager_resets_total{screen} (Counter)
//   - univ_batch_pages_total{result} (Counter)
//
// Example queries:
//
//	# Forced logouts per hour
//	increase(univ_forced_logouts_total[1h])
//
//	# P95 page fetch latency by screen
//	histogram_quantile(0.95, sum by (screen, le) (rate(univ_pager_fetch_duration_seconds_bucket[5m])))
//
//	# Revalidation hit rate
//	rate(univ_304_responses_total[5m]) / rate(univ_conditional_requests_total[5m])
