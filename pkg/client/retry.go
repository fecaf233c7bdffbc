package client

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/Sternrassler/univ-admin-client/pkg/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
)

// Prometheus metrics for retry operations.
var (
	univRetriesTotal = promauto.With(metrics.Registry).NewCounterVec(prometheus.CounterOpts{
		Name: "univ_retries_total",
		Help: "Total number of retry attempts by error class",
	}, []string{"error_class"})

	univRetryBackoffSeconds = promauto.With(metrics.Registry).NewHistogramVec(prometheus.HistogramOpts{
		Name:    "univ_retry_backoff_seconds",
		Help:    "Backoff duration for retries by error class",
		Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10},
	}, []string{"error_class"})

	univRetryExhaustedTotal = promauto.With(metrics.Registry).NewCounterVec(prometheus.CounterOpts{
		Name: "univ_retry_exhausted_total",
		Help: "Total number of times retry attempts were exhausted by error class",
	}, []string{"error_class"})
)

// RetryConfig holds the configuration for retry logic.
type RetryConfig struct {
	// MaxAttempts is the maximum number of attempts (including the initial request).
	MaxAttempts int

	// InitialBackoff is the initial backoff duration.
	InitialBackoff time.Duration

	// MaxBackoff is the maximum backoff duration.
	MaxBackoff time.Duration

	// BackoffMultiplier is the multiplier for exponential backoff.
	BackoffMultiplier float64
}

// DefaultRetryConfig returns the default retry configuration.
// A phone on a flaky network is the common case, so backoff starts short.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:       3,
		InitialBackoff:    500 * time.Millisecond,
		MaxBackoff:        5 * time.Second,
		BackoffMultiplier: 2.0,
	}
}

// RetryConfigForErrorClass adapts base to an error class.
// Rate limited requests wait four times longer before the next attempt.
func RetryConfigForErrorClass(base RetryConfig, errorClass ErrorClass) RetryConfig {
	cfg := base
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 1
	}
	if cfg.BackoffMultiplier < 1 {
		cfg.BackoffMultiplier = 1
	}
	if errorClass == ErrorClassRateLimit {
		cfg.InitialBackoff *= 4
		cfg.MaxBackoff *= 4
	}
	return cfg
}

// retryWithBackoff executes fn with exponential backoff until it succeeds, it
// reports a non-retriable class, or attempts run out. fn returns the class of
// its failure alongside the error.
func retryWithBackoff(ctx context.Context, base RetryConfig, logger zerolog.Logger, fn func() (ErrorClass, error)) error {
	var lastErr error
	var errorClass ErrorClass
	maxAttempts := RetryConfigForErrorClass(base, "").MaxAttempts

	var backoff time.Duration
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		errorClass, lastErr = fn()
		if lastErr == nil {
			if attempt > 1 {
				logger.Info().
					Int("attempt", attempt).
					Msg("Request succeeded after retry")
			}
			return nil
		}

		if !shouldRetry(errorClass) {
			return lastErr
		}

		if attempt >= maxAttempts {
			break
		}

		config := RetryConfigForErrorClass(base, errorClass)
		if backoff == 0 {
			backoff = config.InitialBackoff
		}

		univRetriesTotal.WithLabelValues(string(errorClass)).Inc()

		// Add jitter (±20% randomness)
		jitter := time.Duration(float64(backoff) * (0.8 + rand.Float64()*0.4))
		univRetryBackoffSeconds.WithLabelValues(string(errorClass)).Observe(jitter.Seconds())

		logger.Debug().
			Str("error_class", string(errorClass)).
			Int("attempt", attempt).
			Dur("backoff", jitter).
			Msg("Retrying request after backoff")

		select {
		case <-ctx.Done():
			logger.Warn().
				Str("error_class", string(errorClass)).
				Int("attempt", attempt).
				Msg("Context cancelled during retry backoff")
			return fmt.Errorf("%w: %v", ErrContextCancelled, ctx.Err())
		case <-time.After(jitter):
		}

		backoff = time.Duration(float64(backoff) * config.BackoffMultiplier)
		if backoff > config.MaxBackoff {
			backoff = config.MaxBackoff
		}
	}

	if maxAttempts == 1 {
		return lastErr
	}

	univRetryExhaustedTotal.WithLabelValues(string(errorClass)).Inc()
	logger.Warn().
		Str("error_class", string(errorClass)).
		Int("max_attempts", maxAttempts).
		Msg("Retry attempts exhausted")

	return fmt.Errorf("%w after %d attempts: %w", ErrRetryExhausted, maxAttempts, lastErr)
}
