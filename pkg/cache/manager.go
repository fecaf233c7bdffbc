package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

var (
	// ErrCacheMiss indicates the requested key was not found in cache
	ErrCacheMiss = errors.New("cache miss")

	// ErrInvalidEntry indicates the cache entry is invalid or corrupted
	ErrInvalidEntry = errors.New("invalid cache entry")
)

// scanBatch is the COUNT hint used while scanning for invalidation.
const scanBatch = 100

// Manager handles caching operations with Redis backend.
type Manager struct {
	redis      *redis.Client
	defaultTTL time.Duration
}

// NewManager creates a new cache manager with Redis backend.
// defaultTTL applies to responses without an Expires header; <= 0 selects DefaultTTL.
func NewManager(redisClient *redis.Client, defaultTTL time.Duration) *Manager {
	if redisClient == nil {
		panic("redis client cannot be nil")
	}
	if defaultTTL <= 0 {
		defaultTTL = DefaultTTL
	}
	return &Manager{
		redis:      redisClient,
		defaultTTL: defaultTTL,
	}
}

// DefaultTTL returns the TTL applied to responses without an Expires header.
func (m *Manager) DefaultTTL() time.Duration {
	return m.defaultTTL
}

// Get retrieves a cache entry by key.
// Returns ErrCacheMiss if the key doesn't exist or entry is expired.
func (m *Manager) Get(ctx context.Context, key CacheKey) (*CacheEntry, error) {
	cacheKey := key.String()

	data, err := m.redis.Get(ctx, cacheKey).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			CacheMisses.Inc()
			return nil, ErrCacheMiss
		}
		CacheErrors.WithLabelValues("get").Inc()
		return nil, fmt.Errorf("redis get: %w", err)
	}

	var entry CacheEntry
	if err := json.Unmarshal(data, &entry); err != nil {
		CacheErrors.WithLabelValues("get").Inc()
		return nil, fmt.Errorf("%w: %v", ErrInvalidEntry, err)
	}

	if entry.IsExpired() {
		_ = m.Delete(ctx, key)
		CacheMisses.Inc()
		return nil, ErrCacheMiss
	}

	CacheHits.WithLabelValues("redis").Inc()
	return &entry, nil
}

// Set stores a cache entry with TTL based on the entry's Expires field.
// Entries that are already expired are silently skipped.
func (m *Manager) Set(ctx context.Context, key CacheKey, entry *CacheEntry) error {
	if entry == nil {
		return fmt.Errorf("cache entry cannot be nil")
	}

	ttl := entry.TTL()
	if ttl <= 0 {
		return nil
	}

	data, err := json.Marshal(entry)
	if err != nil {
		CacheErrors.WithLabelValues("set").Inc()
		return fmt.Errorf("marshal cache entry: %w", err)
	}

	if err := m.redis.Set(ctx, key.String(), data, ttl).Err(); err != nil {
		CacheErrors.WithLabelValues("set").Inc()
		return fmt.Errorf("redis set: %w", err)
	}

	return nil
}

// Delete removes a cache entry.
func (m *Manager) Delete(ctx context.Context, key CacheKey) error {
	if err := m.redis.Del(ctx, key.String()).Err(); err != nil {
		CacheErrors.WithLabelValues("delete").Inc()
		return fmt.Errorf("redis del: %w", err)
	}
	return nil
}

// UpdateTTL moves the expiry of an existing entry, e.g. after a 304 carrying
// a fresh Expires header.
func (m *Manager) UpdateTTL(ctx context.Context, key CacheKey, newExpires time.Time) error {
	entry, err := m.Get(ctx, key)
	if err != nil {
		return err
	}

	entry.Expires = newExpires
	return m.Set(ctx, key, entry)
}

// InvalidateResource removes every entry cached under resource, across all
// scopes, and returns the number of keys deleted.
func (m *Manager) InvalidateResource(ctx context.Context, resource string) (int, error) {
	deleted := 0
	for _, pattern := range resourcePatterns(resource) {
		iter := m.redis.Scan(ctx, 0, pattern, scanBatch).Iterator()
		var keys []string
		for iter.Next(ctx) {
			keys = append(keys, iter.Val())
		}
		if err := iter.Err(); err != nil {
			CacheErrors.WithLabelValues("invalidate").Inc()
			return deleted, fmt.Errorf("redis scan %s: %w", pattern, err)
		}
		if len(keys) == 0 {
			continue
		}
		n, err := m.redis.Del(ctx, keys...).Result()
		if err != nil {
			CacheErrors.WithLabelValues("invalidate").Inc()
			return deleted, fmt.Errorf("redis del: %w", err)
		}
		deleted += int(n)
	}

	Invalidations.WithLabelValues(resource).Add(float64(deleted))
	return deleted, nil
}
