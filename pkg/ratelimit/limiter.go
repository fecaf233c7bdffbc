package ratelimit

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/Sternrassler/univ-admin-client/pkg/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

// Prometheus metrics for client-side throttling.
var (
	univRateLimitWaitSeconds = promauto.With(metrics.Registry).NewHistogram(prometheus.HistogramOpts{
		Name:    "univ_rate_limit_wait_seconds",
		Help:    "Time requests spent waiting for the client-side rate limiter",
		Buckets: []float64{0.001, 0.01, 0.05, 0.1, 0.5, 1, 5},
	})

	univRateLimitPausesTotal = promauto.With(metrics.Registry).NewCounter(prometheus.CounterOpts{
		Name: "univ_rate_limit_pauses_total",
		Help: "Total number of pauses triggered by 429 responses",
	})
)

// maxPause caps how long a single Retry-After may hold requests back.
const maxPause = time.Minute

// Config configures a Limiter.
type Config struct {
	// RequestsPerSecond is the steady rate. <= 0 disables throttling.
	RequestsPerSecond float64

	// Burst is the bucket size. Values < 1 are raised to 1.
	Burst int
}

// Limiter gates outgoing requests. A nil *Limiter never blocks.
type Limiter struct {
	limiter *rate.Limiter
	logger  zerolog.Logger

	mu          sync.Mutex
	pausedUntil time.Time
}

// New creates a limiter from cfg.
func New(cfg Config, logger zerolog.Logger) *Limiter {
	limit := rate.Inf
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
	}
	burst := cfg.Burst
	if burst < 1 {
		burst = 1
	}
	return &Limiter{
		limiter: rate.NewLimiter(limit, burst),
		logger:  logger,
	}
}

// Wait blocks until a request may be sent or ctx is done.
func (l *Limiter) Wait(ctx context.Context) error {
	if l == nil {
		return nil
	}
	start := time.Now()
	defer func() {
		univRateLimitWaitSeconds.Observe(time.Since(start).Seconds())
	}()

	if pause := l.State().TimeUntilResume(); pause > 0 {
		l.logger.Debug().Dur("pause", pause).Msg("Waiting for backend rate limit pause")
		timer := time.NewTimer(pause)
		select {
		case <-ctx.Done():
			timer.Stop()
			return fmt.Errorf("rate limit pause: %w", ctx.Err())
		case <-timer.C:
		}
	}

	if err := l.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit wait: %w", err)
	}
	return nil
}

// UpdateFromResponse pauses the limiter when the backend answered 429 with a
// Retry-After header (delta seconds or HTTP date).
func (l *Limiter) UpdateFromResponse(status int, header http.Header) {
	if l == nil || status != http.StatusTooManyRequests {
		return
	}
	pause, ok := parseRetryAfter(header.Get("Retry-After"))
	if !ok {
		return
	}
	if pause > maxPause {
		pause = maxPause
	}

	until := time.Now().Add(pause)
	l.mu.Lock()
	if until.After(l.pausedUntil) {
		l.pausedUntil = until
	}
	l.mu.Unlock()

	univRateLimitPausesTotal.Inc()
	l.logger.Warn().Dur("pause", pause).Msg("Backend rate limit hit, pausing requests")
}

// State returns the current limiter state.
func (l *Limiter) State() State {
	if l == nil {
		return State{}
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	rps := float64(l.limiter.Limit())
	if l.limiter.Limit() == rate.Inf {
		rps = 0
	}
	return State{
		RequestsPerSecond: rps,
		Burst:             l.limiter.Burst(),
		PausedUntil:       l.pausedUntil,
	}
}

func parseRetryAfter(value string) (time.Duration, bool) {
	if value == "" {
		return 0, false
	}
	if secs, err := strconv.Atoi(value); err == nil {
		if secs <= 0 {
			return 0, false
		}
		return time.Duration(secs) * time.Second, true
	}
	if at, err := http.ParseTime(value); err == nil {
		d := time.Until(at)
		return d, d > 0
	}
	return 0, false
}
