package client

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Sternrassler/univ-admin-client/pkg/cache"
	"github.com/redis/go-redis/v9"
)

type staticToken string

func (s staticToken) Token(context.Context) (string, error) { return string(s), nil }

// setupTestRedis creates a test Redis client.
func setupTestRedis(t *testing.T) *redis.Client {
	t.Helper()

	client := redis.NewClient(&redis.Options{
		Addr: "localhost:6379",
		DB:   15,
	})

	ctx := context.Background()
	if err := client.Ping(ctx).Err(); err != nil {
		t.Skipf("Redis not available for testing: %v", err)
	}
	if err := client.FlushDB(ctx).Err(); err != nil {
		t.Fatalf("Failed to flush test DB: %v", err)
	}

	t.Cleanup(func() {
		client.FlushDB(context.Background())
		client.Close()
	})

	return client
}

func newTestClient(t *testing.T, serverURL string, mutate func(*Config)) *Client {
	t.Helper()
	cfg := DefaultConfig(serverURL, "univctl-test/1.0")
	cfg.Retry = fastRetry(3)
	if mutate != nil {
		mutate(&cfg)
	}
	c, err := New(cfg)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	t.Cleanup(func() { c.Close() })
	return c
}

var testOp = Operation{
	Name: "testOperation",
	Errors: map[int]string{
		404: "THING_NOT_FOUND",
		409: "CANNOT_DELETE_THING",
	},
}

func TestNew_Validation(t *testing.T) {
	tests := []struct {
		name     string
		config   Config
		errorMsg string
	}{
		{
			name:   "valid config",
			config: DefaultConfig("https://api.example.edu/v1", "univctl/1.0"),
		},
		{
			name:     "missing base url",
			config:   DefaultConfig("", "univctl/1.0"),
			errorMsg: "base url is required",
		},
		{
			name:     "relative base url",
			config:   DefaultConfig("/v1", "univctl/1.0"),
			errorMsg: "base url must be absolute",
		},
		{
			name:     "empty user agent",
			config:   DefaultConfig("https://api.example.edu", ""),
			errorMsg: "user-agent is required",
		},
		{
			name: "zero timeout",
			config: Config{
				BaseURL:   "https://api.example.edu",
				UserAgent: "univctl/1.0",
			},
			errorMsg: "timeout must be > 0",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := New(tt.config)
			if tt.errorMsg == "" {
				if err != nil {
					t.Fatalf("New() unexpected error = %v", err)
				}
				if c == nil {
					t.Fatal("New() returned nil client")
				}
				return
			}
			if err == nil {
				t.Fatal("New() expected error, got nil")
			}
			if !strings.Contains(err.Error(), tt.errorMsg) {
				t.Errorf("error = %q, want it to contain %q", err.Error(), tt.errorMsg)
			}
		})
	}
}

func TestCall_HeaderContract(t *testing.T) {
	var got *http.Request
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Clone(context.Background())
		w.Write([]byte(`{"ok":true}`))
	}))
	defer server.Close()

	c := newTestClient(t, server.URL+"/v1/", func(cfg *Config) {
		cfg.TokenSource = staticToken("secret-token")
	})

	req := Request{
		Method: http.MethodGet,
		Path:   "/group/list",
		Params: map[string]any{"page": 2, "cathedraId": 7},
		Header: http.Header{"X-Trace": {"abc"}},
	}
	if _, err := Call(context.Background(), c, testOp, req, DecodeJSON[map[string]bool]()); err != nil {
		t.Fatalf("Call() error = %v", err)
	}

	if got.URL.Path != "/v1/group/list" {
		t.Errorf("path = %q, want /v1/group/list", got.URL.Path)
	}
	if got.URL.RawQuery != "cathedraId=7&page=2" {
		t.Errorf("query = %q, want cathedraId=7&page=2", got.URL.RawQuery)
	}

	wantHeaders := map[string]string{
		"Accept":       "application/json",
		"Content-Type": "application/json",
		"Charset":      "utf-8",
		"User-Agent":   "univctl-test/1.0",
		"X-Auth-Token": "secret-token",
		"X-Trace":      "abc",
	}
	for k, want := range wantHeaders {
		if v := got.Header.Get(k); v != want {
			t.Errorf("header %s = %q, want %q", k, v, want)
		}
	}
	if got.Header.Get("X-Request-ID") == "" {
		t.Error("X-Request-ID header missing")
	}
}

func TestCall_NoTokenNoAuthHeader(t *testing.T) {
	var hasAuth atomic.Bool
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hasAuth.Store(r.Header.Get("X-Auth-Token") != "")
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	c := newTestClient(t, server.URL, nil)
	if _, err := Call(context.Background(), c, testOp, Request{Method: http.MethodGet, Path: "/x"}, DecodeNone()); err != nil {
		t.Fatalf("Call() error = %v", err)
	}
	if hasAuth.Load() {
		t.Error("X-Auth-Token sent without a token source")
	}
}

func TestCall_PostSendsJSONBody(t *testing.T) {
	var body map[string]any
	var method string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		method = r.Method
		data, _ := io.ReadAll(r.Body)
		json.Unmarshal(data, &body)
		if r.URL.RawQuery != "" {
			t.Errorf("unexpected query %q on POST", r.URL.RawQuery)
		}
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"id":5,"name":"Physics"}`))
	}))
	defer server.Close()

	c := newTestClient(t, server.URL, nil)
	type created struct {
		ID   int    `json:"id"`
		Name string `json:"name"`
	}
	req := Request{Method: http.MethodPost, Path: "/faculty", Params: map[string]any{"name": "Physics"}}
	got, err := Call(context.Background(), c, testOp, req, DecodeJSON[created](http.StatusCreated))
	if err != nil {
		t.Fatalf("Call() error = %v", err)
	}
	if method != http.MethodPost {
		t.Errorf("method = %s, want POST", method)
	}
	if body["name"] != "Physics" {
		t.Errorf("body = %v, want name=Physics", body)
	}
	if got.ID != 5 || got.Name != "Physics" {
		t.Errorf("Call() = %+v", got)
	}
}

func TestCall_ForbiddenInvokesHandlerOnce(t *testing.T) {
	var requests atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		w.WriteHeader(http.StatusForbidden)
		w.Write([]byte(`{"error":"expired"}`))
	}))
	defer server.Close()

	var calls atomic.Int32
	var gotOp, gotToken string
	c := newTestClient(t, server.URL, func(cfg *Config) {
		cfg.TokenSource = staticToken("tok-stale")
		cfg.ForbiddenHandler = ForbiddenHandlerFunc(func(_ context.Context, op, token string) {
			calls.Add(1)
			gotOp = op
			gotToken = token
		})
	})

	decoderCalled := false
	decode := func(int, json.RawMessage) (string, error) {
		decoderCalled = true
		return "", nil
	}

	_, err := Call(context.Background(), c, testOp, Request{Method: http.MethodGet, Path: "/faculty/list"}, decode)
	if !errors.Is(err, ErrSessionInvalidated) {
		t.Errorf("error = %v, want ErrSessionInvalidated", err)
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		t.Error("403 surfaced as *APIError")
	}
	if decoderCalled {
		t.Error("decoder invoked for 403")
	}
	if calls.Load() != 1 {
		t.Errorf("forbidden handler calls = %d, want 1", calls.Load())
	}
	if gotOp != testOp.Name {
		t.Errorf("handler operation = %q, want %q", gotOp, testOp.Name)
	}
	if gotToken != "tok-stale" {
		t.Errorf("handler token = %q, want the rejected request's token", gotToken)
	}
	if requests.Load() != 1 {
		t.Errorf("requests = %d, want 1 (403 is not retried)", requests.Load())
	}
}

func TestCall_DecodeNormalization(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		body     string
		decode   Decoder[map[string]any]
		wantKey  string
		wantCls  ErrorClass
		wantCode int
	}{
		{
			name:     "mapped business error",
			status:   http.StatusConflict,
			body:     `{"message":"has cathedras"}`,
			decode:   DecodeJSON[map[string]any](),
			wantKey:  "CANNOT_DELETE_THING",
			wantCls:  ErrorClassClient,
			wantCode: 409,
		},
		{
			name:     "unmapped business error",
			status:   http.StatusBadRequest,
			decode:   DecodeJSON[map[string]any](),
			wantKey:  GeneralErrorKey,
			wantCls:  ErrorClassClient,
			wantCode: 400,
		},
		{
			name:     "malformed success body",
			status:   http.StatusOK,
			body:     `[1,2,3]`,
			decode:   DecodeJSON[map[string]any](),
			wantKey:  GeneralErrorKey,
			wantCls:  ErrorClassDecode,
			wantCode: 200,
		},
		{
			name:   "decoder api error passes through",
			status: http.StatusOK,
			body:   `{}`,
			decode: func(int, json.RawMessage) (map[string]any, error) {
				return nil, &APIError{Code: 200, MessageKey: "CUSTOM", Class: ErrorClassClient}
			},
			wantKey:  "CUSTOM",
			wantCls:  ErrorClassClient,
			wantCode: 200,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}))
			defer server.Close()

			c := newTestClient(t, server.URL, nil)
			value, err := Call(context.Background(), c, testOp, Request{Method: http.MethodDelete, Path: "/thing/1"}, tt.decode)
			if value != nil {
				t.Errorf("value = %v, want zero value alongside error", value)
			}

			var apiErr *APIError
			if !errors.As(err, &apiErr) {
				t.Fatalf("error = %v, want *APIError", err)
			}
			if apiErr.MessageKey != tt.wantKey || apiErr.Class != tt.wantCls || apiErr.Code != tt.wantCode {
				t.Errorf("APIError = %s/%s/%d, want %s/%s/%d",
					apiErr.MessageKey, apiErr.Class, apiErr.Code, tt.wantKey, tt.wantCls, tt.wantCode)
			}
		})
	}
}

func TestCall_BodyNormalizedToEmptyObject(t *testing.T) {
	bodies := []string{"", "   ", "not json", "{broken"}

	for _, b := range bodies {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(b))
		}))

		c := newTestClient(t, server.URL, nil)
		var seen string
		decode := func(_ int, body json.RawMessage) (string, error) {
			seen = string(body)
			return "ok", nil
		}
		if _, err := Call(context.Background(), c, testOp, Request{Method: http.MethodGet, Path: "/x"}, decode); err != nil {
			t.Errorf("Call(%q) error = %v", b, err)
		}
		if seen != "{}" {
			t.Errorf("decoder body for %q = %q, want {}", b, seen)
		}
		server.Close()
	}
}

func TestCall_NetworkError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	c := newTestClient(t, url, func(cfg *Config) { cfg.Retry = fastRetry(2) })
	_, err := Call(context.Background(), c, testOp, Request{Method: http.MethodGet, Path: "/x"}, DecodeNone())

	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("error = %v, want *APIError", err)
	}
	if apiErr.Class != ErrorClassNetwork || apiErr.Code != 0 || !apiErr.IsGeneral() {
		t.Errorf("APIError = %s/%d/%s, want network/0/general", apiErr.Class, apiErr.Code, apiErr.MessageKey)
	}
}

func TestCall_RetriesGETOnServerError(t *testing.T) {
	var requests atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if requests.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte(`{"ok":true}`))
	}))
	defer server.Close()

	c := newTestClient(t, server.URL, nil)
	got, err := Call(context.Background(), c, testOp, Request{Method: http.MethodGet, Path: "/x"}, DecodeJSON[map[string]bool]())
	if err != nil {
		t.Fatalf("Call() error = %v", err)
	}
	if !got["ok"] {
		t.Errorf("Call() = %v", got)
	}
	if requests.Load() != 3 {
		t.Errorf("requests = %d, want 3", requests.Load())
	}
}

func TestCall_ServerErrorAfterRetriesUsesTable(t *testing.T) {
	var requests atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	c := newTestClient(t, server.URL, nil)
	_, err := Call(context.Background(), c, testOp, Request{Method: http.MethodGet, Path: "/x"}, DecodeNone())

	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("error = %v, want *APIError", err)
	}
	if apiErr.Code != 500 || apiErr.Class != ErrorClassServer {
		t.Errorf("APIError = %d/%s, want 500/server", apiErr.Code, apiErr.Class)
	}
	if requests.Load() != 3 {
		t.Errorf("requests = %d, want 3", requests.Load())
	}
}

func TestCall_MutationsAreNotRetried(t *testing.T) {
	var requests atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	c := newTestClient(t, server.URL, nil)
	_, err := Call(context.Background(), c, testOp, Request{Method: http.MethodPost, Path: "/faculty"}, DecodeNone(201))
	if err == nil {
		t.Fatal("Call() expected error")
	}
	if requests.Load() != 1 {
		t.Errorf("requests = %d, want 1", requests.Load())
	}
}

func TestCall_UnsupportedMethod(t *testing.T) {
	var requests atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
	}))
	defer server.Close()

	c := newTestClient(t, server.URL, nil)
	_, err := Call(context.Background(), c, testOp, Request{Method: http.MethodPatch, Path: "/x"}, DecodeNone())
	if !errors.Is(err, ErrUnsupportedMethod) {
		t.Errorf("error = %v, want ErrUnsupportedMethod", err)
	}
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("error = %T, want *APIError", err)
	}
	if apiErr.Class != ErrorClassClient || !apiErr.IsGeneral() || apiErr.Operation != testOp.Name {
		t.Errorf("APIError = %+v, want general client error for %s", apiErr, testOp.Name)
	}
	if requests.Load() != 0 {
		t.Errorf("requests = %d, want 0", requests.Load())
	}
}

func TestCall_ContextCancelled(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer server.Close()

	c := newTestClient(t, server.URL, nil)
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := Call(ctx, c, testOp, Request{Method: http.MethodGet, Path: "/slow"}, DecodeNone())
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.Class != ErrorClassNetwork {
		t.Errorf("error = %v, want network *APIError", err)
	}
}

func TestCall_ConditionalRequestUsesCache(t *testing.T) {
	redisClient := setupTestRedis(t)

	var requests, conditional atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		if r.Header.Get("If-None-Match") == `"v1"` {
			conditional.Add(1)
			w.WriteHeader(http.StatusNotModified)
			return
		}
		w.Header().Set("ETag", `"v1"`)
		w.Write([]byte(`{"name":"cached"}`))
	}))
	defer server.Close()

	c := newTestClient(t, server.URL, func(cfg *Config) {
		cfg.Cache = cache.NewManager(redisClient, time.Minute)
		cfg.TokenSource = staticToken("tok")
	})

	req := Request{Method: http.MethodGet, Path: "/faculty/list", Params: map[string]any{"page": 1}}
	for i := 0; i < 2; i++ {
		got, err := Call(context.Background(), c, testOp, req, DecodeJSON[map[string]string]())
		if err != nil {
			t.Fatalf("Call() #%d error = %v", i, err)
		}
		if got["name"] != "cached" {
			t.Errorf("Call() #%d = %v", i, got)
		}
	}
	if conditional.Load() != 1 {
		t.Errorf("conditional requests = %d, want 1", conditional.Load())
	}

	// A successful mutation drops the cached pages of the resource
	del := Request{Method: http.MethodDelete, Path: "/faculty/1"}
	if _, err := Call(context.Background(), c, testOp, del, DecodeNone()); err != nil {
		t.Fatalf("delete error = %v", err)
	}
	if _, err := Call(context.Background(), c, testOp, req, DecodeJSON[map[string]string]()); err != nil {
		t.Fatalf("Call() after delete error = %v", err)
	}
	if conditional.Load() != 1 {
		t.Errorf("conditional requests after invalidation = %d, want 1", conditional.Load())
	}
}
