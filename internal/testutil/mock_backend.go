// Package testutil provides testing utilities for the univ admin client.
package testutil

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"time"
)

// MockResponse defines the behavior for a mock backend response.
type MockResponse struct {
	StatusCode int
	Body       string
	Headers    map[string]string
	Delay      time.Duration
}

// RecordedRequest is one request received by the mock backend.
type RecordedRequest struct {
	Method string
	Path   string
	Query  map[string]string
	Header http.Header
	Body   []byte
}

// MockBackend is a configurable mock of the university backend. Handlers
// are keyed by method and path.
type MockBackend struct {
	server   *httptest.Server
	mu       sync.RWMutex
	handlers map[string]http.HandlerFunc
	requests []RecordedRequest

	conditionalCount int
}

// NewMockBackend starts a mock backend.
func NewMockBackend() *MockBackend {
	mock := &MockBackend{
		handlers: make(map[string]http.HandlerFunc),
	}

	mock.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		query := make(map[string]string)
		for k := range r.URL.Query() {
			query[k] = r.URL.Query().Get(k)
		}

		mock.mu.Lock()
		mock.requests = append(mock.requests, RecordedRequest{
			Method: r.Method,
			Path:   r.URL.Path,
			Query:  query,
			Header: r.Header.Clone(),
			Body:   body,
		})
		if r.Header.Get("If-None-Match") != "" || r.Header.Get("If-Modified-Since") != "" {
			mock.conditionalCount++
		}
		handler, exists := mock.handlers[r.Method+" "+r.URL.Path]
		mock.mu.Unlock()

		if exists {
			handler(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{}`))
	}))

	return mock
}

// URL returns the mock server URL.
func (m *MockBackend) URL() string {
	return m.server.URL
}

// Close shuts down the mock server.
func (m *MockBackend) Close() {
	m.server.Close()
}

// Reset clears recorded requests.
func (m *MockBackend) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requests = nil
	m.conditionalCount = 0
}

// Handle sets a custom handler for method and path.
func (m *MockBackend) Handle(method, path string, handler http.HandlerFunc) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers[method+" "+path] = handler
}

// Respond configures a fixed response for method and path.
func (m *MockBackend) Respond(method, path string, resp MockResponse) {
	m.Handle(method, path, func(w http.ResponseWriter, r *http.Request) {
		if resp.Delay > 0 {
			select {
			case <-time.After(resp.Delay):
			case <-r.Context().Done():
				return
			}
		}
		for key, value := range resp.Headers {
			w.Header().Set(key, value)
		}
		w.WriteHeader(resp.StatusCode)
		if resp.Body != "" {
			w.Write([]byte(resp.Body))
		}
	})
}

// ServeList serves GET path as a paginated list: the page query parameter
// selects one of pages and its items are written under key.
func (m *MockBackend) ServeList(path, key string, pages ...[]any) {
	m.Handle(http.MethodGet, path, func(w http.ResponseWriter, r *http.Request) {
		page, err := strconv.Atoi(r.URL.Query().Get("page"))
		if err != nil || page < 1 || page > max(len(pages), 1) {
			writeJSON(w, http.StatusNotFound, map[string]any{})
			return
		}
		items := []any{}
		if page <= len(pages) && pages[page-1] != nil {
			items = pages[page-1]
		}
		writeJSON(w, http.StatusOK, map[string]any{
			key:          items,
			"page":       page,
			"totalPages": max(len(pages), 1),
		})
	})
}

// Requests returns a copy of the recorded requests.
func (m *MockBackend) Requests() []RecordedRequest {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]RecordedRequest(nil), m.requests...)
}

// RequestCount returns the number of requests made to the server.
func (m *MockBackend) RequestCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.requests)
}

// ConditionalCount returns the number of conditional requests.
func (m *MockBackend) ConditionalCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.conditionalCount
}

// LastRequest returns the most recent request, ok is false when none arrived.
func (m *MockBackend) LastRequest() (req RecordedRequest, ok bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if len(m.requests) == 0 {
		return RecordedRequest{}, false
	}
	return m.requests[len(m.requests)-1], true
}

// JSONResponse creates a response with v encoded as the body.
func JSONResponse(status int, v any) MockResponse {
	data, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return MockResponse{
		StatusCode: status,
		Body:       string(data),
		Headers:    map[string]string{"Content-Type": "application/json; charset=utf-8"},
	}
}

// ForbiddenResponse creates the 403 the backend sends for a revoked token.
func ForbiddenResponse() MockResponse {
	return JSONResponse(http.StatusForbidden, map[string]string{"error": "Forbidden"})
}

// NoContentResponse creates a 204 No Content response.
func NoContentResponse() MockResponse {
	return MockResponse{StatusCode: http.StatusNoContent}
}

// ServerErrorResponse creates a 500 Internal Server Error response.
func ServerErrorResponse() MockResponse {
	return JSONResponse(http.StatusInternalServerError, map[string]string{"error": "Internal server error"})
}

// NewConditionalHandler creates a handler that answers 304 when the request
// carries etag and data with etag otherwise.
func NewConditionalHandler(etag string, data string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.Header().Set("Expires", time.Now().Add(5*time.Minute).Format(http.TimeFormat))
		if r.Header.Get("If-None-Match") == etag {
			w.WriteHeader(http.StatusNotModified)
			return
		}
		w.Header().Set("ETag", etag)
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(data))
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
