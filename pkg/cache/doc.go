// Package cache provides an optional Redis-backed cache for list pages.
//
// List screens are re-entered constantly (every appearance resets the pager
// to page 1), so the request client can serve unchanged pages through
// conditional requests instead of re-downloading them:
//
//   - ETag / Last-Modified validators stored per page
//   - If-None-Match / If-Modified-Since on the next GET
//   - 304 Not Modified answered from the stored body
//   - entries scoped per session token (ScopeForToken)
//   - resource-wide invalidation after a successful mutation
//
// # Basic Usage
//
//	redisClient := redis.NewClient(&redis.Options{Addr: "localhost:6379"})
//	manager := cache.NewManager(redisClient, 5*time.Minute)
//
//	key := cache.CacheKey{
//		Endpoint:    "/faculty/list",
//		QueryParams: url.Values{"page": []string{"1"}},
//		Scope:       cache.ScopeForToken(token),
//	}
//
//	entry, err := manager.Get(ctx, key)
//	if errors.Is(err, cache.ErrCacheMiss) {
//		// fetch from the backend
//	}
//
// # Invalidation
//
//	// after POST /faculty succeeded
//	manager.InvalidateResource(ctx, "faculty")
//
// # Metrics
//
//   - univ_cache_hits_total{layer="redis"}
//   - univ_cache_misses_total
//   - univ_conditional_requests_total
//   - univ_304_responses_total
//   - univ_cache_invalidations_total{resource}
//   - univ_cache_errors_total{operation}
package cache
