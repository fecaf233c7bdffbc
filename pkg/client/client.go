// Package client provides the typed request client used by every backend
// operation: header contract, retry, rate limiting, optional caching and the
// 403 session-invalidation interceptor.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/Sternrassler/univ-admin-client/pkg/cache"
	"github.com/Sternrassler/univ-admin-client/pkg/metrics"
	"github.com/Sternrassler/univ-admin-client/pkg/ratelimit"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Prometheus metrics for request client operations.
var (
	univRequestsTotal = promauto.With(metrics.Registry).NewCounterVec(prometheus.CounterOpts{
		Name: "univ_requests_total",
		Help: "Total backend requests by operation and status",
	}, []string{"operation", "status"})

	univRequestDuration = promauto.With(metrics.Registry).NewHistogramVec(prometheus.HistogramOpts{
		Name:    "univ_request_duration_seconds",
		Help:    "Backend request duration in seconds by operation",
		Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
	}, []string{"operation"})

	univErrorsTotal = promauto.With(metrics.Registry).NewCounterVec(prometheus.CounterOpts{
		Name: "univ_errors_total",
		Help: "Total failed operations by error class",
	}, []string{"class"})

	univForcedLogoutsTotal = promauto.With(metrics.Registry).NewCounter(prometheus.CounterOpts{
		Name: "univ_forced_logouts_total",
		Help: "Total number of 403 responses that invalidated the session",
	})
)

// emptyBody is handed to decoders when the response has no usable JSON body.
var emptyBody = json.RawMessage(`{}`)

// TokenSource yields the session token sent as X-Auth-Token.
// An empty token means the request is sent anonymously.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// ForbiddenHandler is invoked once for every call answered with 403.
// token is the one the rejected request carried, empty for anonymous calls.
type ForbiddenHandler interface {
	HandleForbidden(ctx context.Context, operation, token string)
}

// ForbiddenHandlerFunc adapts a function to ForbiddenHandler.
type ForbiddenHandlerFunc func(ctx context.Context, operation, token string)

// HandleForbidden calls f.
func (f ForbiddenHandlerFunc) HandleForbidden(ctx context.Context, operation, token string) {
	f(ctx, operation, token)
}

// Request describes one backend call.
type Request struct {
	Method string
	Path   string

	// Params become the query string for GET and the JSON body otherwise.
	Params map[string]any

	// Header is applied after the standard headers.
	Header http.Header
}

// Decoder turns a response into a value. body is never nil; it is `{}` when
// the backend sent no JSON. Returning an error that is not an *APIError lets
// the client map the status through the operation's error table.
type Decoder[T any] func(status int, body json.RawMessage) (T, error)

// Config holds the client configuration.
type Config struct {
	// BaseURL is the backend root, e.g. "https://api.example.edu/v1".
	BaseURL string

	// UserAgent is sent with every request.
	UserAgent string

	// Timeout bounds a single HTTP attempt.
	Timeout time.Duration

	// Retry applies to GET requests only.
	Retry RetryConfig

	// Limiter throttles attempts. Optional.
	Limiter *ratelimit.Limiter

	// Cache enables conditional GETs. Optional.
	Cache *cache.Manager

	// CacheTTL applies to responses without an Expires header.
	CacheTTL time.Duration

	TokenSource      TokenSource
	ForbiddenHandler ForbiddenHandler
}

// DefaultConfig returns a configuration without cache or limiter.
func DefaultConfig(baseURL, userAgent string) Config {
	return Config{
		BaseURL:   baseURL,
		UserAgent: userAgent,
		Timeout:   30 * time.Second,
		Retry:     DefaultRetryConfig(),
		CacheTTL:  cache.DefaultTTL,
	}
}

// Client is the request client.
type Client struct {
	httpClient *http.Client
	baseURL    *url.URL
	config     Config
	logger     zerolog.Logger
}

// New creates a new request client.
func New(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("base url is required")
	}
	base, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if !base.IsAbs() || base.Host == "" {
		return nil, fmt.Errorf("base url must be absolute (got %q)", cfg.BaseURL)
	}
	base.Path = strings.TrimRight(base.Path, "/")

	if cfg.UserAgent == "" {
		return nil, fmt.Errorf("user-agent is required")
	}
	if cfg.Timeout <= 0 {
		return nil, fmt.Errorf("timeout must be > 0 (got %v)", cfg.Timeout)
	}
	if cfg.Retry.MaxAttempts <= 0 {
		cfg.Retry = DefaultRetryConfig()
	}

	logger := log.With().Str("component", "request-client").Logger()

	return &Client{
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		baseURL: base,
		config:  cfg,
		logger:  logger,
	}, nil
}

// Call performs req and decodes the outcome. Exactly one of the returned value
// and error is meaningful.
//
// A 403 response never reaches decode: the forbidden handler runs once and
// Call returns ErrSessionInvalidated. Every other failure is an *APIError.
func Call[T any](ctx context.Context, c *Client, op Operation, req Request, decode Decoder[T]) (T, error) {
	var zero T

	status, body, err := c.do(ctx, op, req)
	if err != nil {
		return zero, err
	}

	value, err := decode(status, body)
	if err != nil {
		apiErr := normalizeDecodeError(op, status, err)
		univErrorsTotal.WithLabelValues(string(apiErr.Class)).Inc()
		c.logger.Debug().
			Str("operation", op.Name).
			Int("status", status).
			Str("message_key", apiErr.MessageKey).
			Msg("Operation failed")
		return zero, apiErr
	}
	return value, nil
}

// normalizeDecodeError maps a decoder error to the operation's error table.
func normalizeDecodeError(op Operation, status int, err error) *APIError {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr
	}
	if status >= 200 && status < 300 {
		return NewGeneralError(op.Name, ErrorClassDecode, status, err)
	}
	apiErr = op.ErrorFor(status)
	apiErr.Err = err
	return apiErr
}

// response is the outcome of one HTTP attempt.
type response struct {
	status int
	header http.Header
	body   []byte
}

// do executes the request with limiter, retry and cache, and returns the
// status and normalized body to decode.
func (c *Client) do(ctx context.Context, op Operation, req Request) (int, json.RawMessage, error) {
	if !validMethod(req.Method) {
		return 0, nil, NewGeneralError(op.Name, ErrorClassClient, 0,
			fmt.Errorf("%w: %q", ErrUnsupportedMethod, req.Method))
	}

	startTime := time.Now()
	defer func() {
		univRequestDuration.WithLabelValues(op.Name).Observe(time.Since(startTime).Seconds())
	}()

	logger := c.logger.With().
		Str("operation", op.Name).
		Str("method", req.Method).
		Str("path", req.Path).
		Logger()

	token := c.token(ctx, logger)

	endpoint, query, payload, err := c.encode(req)
	if err != nil {
		return 0, nil, NewGeneralError(op.Name, ErrorClassNetwork, 0, err)
	}

	// Conditional request setup
	var cacheKey cache.CacheKey
	var cached *cache.CacheEntry
	useCache := c.config.Cache != nil && req.Method == http.MethodGet
	if useCache {
		cacheKey = cache.CacheKey{
			Endpoint:    req.Path,
			QueryParams: query,
			Scope:       cache.ScopeForToken(token),
		}
		cached, err = c.config.Cache.Get(ctx, cacheKey)
		if err != nil && !errors.Is(err, cache.ErrCacheMiss) {
			logger.Warn().Err(err).Msg("Cache get error")
		}
	}

	retryCfg := c.config.Retry
	if req.Method != http.MethodGet {
		retryCfg.MaxAttempts = 1
	}

	var resp *response
	retryErr := retryWithBackoff(ctx, retryCfg, logger, func() (ErrorClass, error) {
		resp = nil
		if err := c.config.Limiter.Wait(ctx); err != nil {
			return "", err
		}

		httpReq, err := http.NewRequestWithContext(ctx, req.Method, endpoint, bodyReader(payload))
		if err != nil {
			return "", fmt.Errorf("create request: %w", err)
		}
		c.setHeaders(httpReq, token, req.Header)
		if cached != nil && cache.ShouldMakeConditionalRequest(cached) {
			cache.AddConditionalHeaders(httpReq, cached)
			cache.ConditionalRequestsSent.Inc()
		}

		logger.Debug().Msg("Executing request")

		httpResp, err := c.httpClient.Do(httpReq)
		if err != nil {
			logger.Warn().Err(err).Msg("HTTP request failed")
			univRequestsTotal.WithLabelValues(op.Name, "network_error").Inc()
			return ErrorClassNetwork, err
		}
		data, err := io.ReadAll(httpResp.Body)
		httpResp.Body.Close()
		if err != nil {
			univRequestsTotal.WithLabelValues(op.Name, "network_error").Inc()
			return ErrorClassNetwork, fmt.Errorf("read body: %w", err)
		}

		c.config.Limiter.UpdateFromResponse(httpResp.StatusCode, httpResp.Header)
		univRequestsTotal.WithLabelValues(op.Name, strconv.Itoa(httpResp.StatusCode)).Inc()

		resp = &response{status: httpResp.StatusCode, header: httpResp.Header, body: data}

		class := classifyStatus(httpResp.StatusCode)
		if shouldRetry(class) {
			logger.Warn().
				Int("status", httpResp.StatusCode).
				Str("error_class", string(class)).
				Msg("Request error")
			return class, fmt.Errorf("status %d", httpResp.StatusCode)
		}
		return "", nil
	})

	// A retriable status that ran out of attempts still carries a response
	// worth decoding; anything else is a transport failure.
	if retryErr != nil && (resp == nil || errors.Is(retryErr, ErrContextCancelled)) {
		univErrorsTotal.WithLabelValues(string(ErrorClassNetwork)).Inc()
		logger.Error().Err(retryErr).Msg("Request failed")
		return 0, nil, NewGeneralError(op.Name, ErrorClassNetwork, 0, retryErr)
	}

	if resp.status == http.StatusForbidden {
		univForcedLogoutsTotal.Inc()
		logger.Warn().Msg("Session rejected by backend")
		if c.config.ForbiddenHandler != nil {
			c.config.ForbiddenHandler.HandleForbidden(ctx, op.Name, token)
		}
		return resp.status, nil, ErrSessionInvalidated
	}

	status, body := resp.status, resp.body

	switch {
	case useCache && status == http.StatusNotModified && cached != nil:
		logger.Debug().Msg("304 Not Modified - using cache")
		cache.NotModifiedResponses.Inc()
		if expiresStr := resp.header.Get("Expires"); expiresStr != "" {
			if newExpires, err := http.ParseTime(expiresStr); err == nil {
				if err := c.config.Cache.UpdateTTL(ctx, cacheKey, newExpires); err != nil {
					logger.Warn().Err(err).Msg("Failed to update cache TTL")
				}
			}
		}
		status, body = cached.StatusCode, cached.Data

	case useCache && status == http.StatusOK:
		entry := cache.ResponseToEntry(status, resp.header, body, c.config.CacheTTL)
		if err := c.config.Cache.Set(ctx, cacheKey, entry); err != nil {
			logger.Warn().Err(err).Msg("Failed to cache response")
		}

	case c.config.Cache != nil && req.Method != http.MethodGet && status >= 200 && status < 300:
		resource := cache.ResourceOf(req.Path)
		if _, err := c.config.Cache.InvalidateResource(ctx, resource); err != nil {
			logger.Warn().Err(err).Str("resource", resource).Msg("Failed to invalidate cache")
		}
	}

	return status, normalizeBody(body), nil
}

// encode builds the request URL, the query used for cache keys and the JSON
// payload for non-GET methods.
func (c *Client) encode(req Request) (string, url.Values, []byte, error) {
	u := *c.baseURL
	u.Path = c.baseURL.Path + "/" + strings.TrimLeft(req.Path, "/")

	query := url.Values{}
	var payload []byte
	if req.Method == http.MethodGet {
		for k, v := range req.Params {
			query.Set(k, fmt.Sprint(v))
		}
		// Encode sorts by key
		u.RawQuery = query.Encode()
	} else if req.Params != nil {
		data, err := json.Marshal(req.Params)
		if err != nil {
			return "", nil, nil, fmt.Errorf("encode params: %w", err)
		}
		payload = data
	}
	return u.String(), query, payload, nil
}

func (c *Client) setHeaders(req *http.Request, token string, extra http.Header) {
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("charset", "utf-8")
	req.Header.Set("User-Agent", c.config.UserAgent)
	req.Header.Set("X-Request-ID", uuid.NewString())
	if token != "" {
		req.Header.Set("X-Auth-Token", token)
	}
	for k, values := range extra {
		req.Header.Del(k)
		for _, v := range values {
			req.Header.Add(k, v)
		}
	}
}

func (c *Client) token(ctx context.Context, logger zerolog.Logger) string {
	if c.config.TokenSource == nil {
		return ""
	}
	token, err := c.config.TokenSource.Token(ctx)
	if err != nil {
		logger.Warn().Err(err).Msg("Token lookup failed, sending anonymously")
		return ""
	}
	return token
}

func bodyReader(payload []byte) io.Reader {
	if payload == nil {
		return nil
	}
	return bytes.NewReader(payload)
}

// normalizeBody returns body, or `{}` when it is empty or not valid JSON.
func normalizeBody(body []byte) json.RawMessage {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 || !json.Valid(trimmed) {
		return emptyBody
	}
	return json.RawMessage(trimmed)
}

// Close releases idle connections.
func (c *Client) Close() error {
	c.httpClient.CloseIdleConnections()
	return nil
}

// SetHTTPClient sets a custom HTTP client (for testing).
func (c *Client) SetHTTPClient(client *http.Client) {
	c.httpClient = client
}

// BaseURL returns the configured backend root.
func (c *Client) BaseURL() string {
	return c.baseURL.String()
}
