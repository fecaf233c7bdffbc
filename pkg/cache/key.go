package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/url"
	"sort"
	"strings"
)

// keyPrefix namespaces every cache key in Redis.
const keyPrefix = "univ:cache"

// CacheKey identifies one cached GET response.
type CacheKey struct {
	// Endpoint is the request path (e.g., "/faculty/list")
	Endpoint string

	// QueryParams are the query parameters (e.g., {"page": "2"})
	QueryParams url.Values

	// Scope separates entries of different sessions (see ScopeForToken).
	// Empty for anonymous requests.
	Scope string
}

// String generates a deterministic cache key string.
// Format: univ:cache:endpoint:query1=val1:query2=val2:scope=abc
//
// Example:
//
//	univ:cache:faculty/list:page=2:scope=9f86d081884c7d65
func (k CacheKey) String() string {
	parts := []string{keyPrefix}

	endpoint := strings.Trim(k.Endpoint, "/")
	if endpoint != "" {
		parts = append(parts, endpoint)
	}

	if len(k.QueryParams) > 0 {
		queryKeys := make([]string, 0, len(k.QueryParams))
		for key := range k.QueryParams {
			queryKeys = append(queryKeys, key)
		}
		sort.Strings(queryKeys)

		for _, key := range queryKeys {
			parts = append(parts, fmt.Sprintf("%s=%s", key, k.QueryParams.Get(key)))
		}
	}

	if k.Scope != "" {
		parts = append(parts, "scope="+k.Scope)
	}

	return strings.Join(parts, ":")
}

// Resource returns the first path segment of the endpoint ("faculty" for
// "/faculty/list"). Mutations invalidate by resource.
func (k CacheKey) Resource() string {
	return ResourceOf(k.Endpoint)
}

// ResourceOf returns the first segment of path.
func ResourceOf(path string) string {
	trimmed := strings.Trim(path, "/")
	if i := strings.IndexByte(trimmed, '/'); i >= 0 {
		return trimmed[:i]
	}
	return trimmed
}

// ScopeForToken derives a short, non-reversible scope from a session token.
func ScopeForToken(token string) string {
	if token == "" {
		return ""
	}
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:8])
}

// resourcePatterns returns the SCAN patterns matching every key of resource.
func resourcePatterns(resource string) []string {
	base := keyPrefix + ":" + strings.Trim(resource, "/")
	return []string{base + "/*", base + ":*", base}
}
