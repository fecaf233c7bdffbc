package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Sternrassler/univ-admin-client/pkg/models"
	"github.com/redis/go-redis/v9"
)

// DefaultRedisPrefix prefixes the session keys.
const DefaultRedisPrefix = "univ:session:"

// RedisStore keeps the session in Redis so several processes share it.
type RedisStore struct {
	redis  *redis.Client
	prefix string
	ttl    time.Duration
}

// NewRedisStore creates a store under prefix (DefaultRedisPrefix when empty).
// A positive ttl expires the session after that long without writes.
func NewRedisStore(redisClient *redis.Client, prefix string, ttl time.Duration) *RedisStore {
	if redisClient == nil {
		panic("redis client cannot be nil")
	}
	if prefix == "" {
		prefix = DefaultRedisPrefix
	}
	return &RedisStore{redis: redisClient, prefix: prefix, ttl: ttl}
}

func (s *RedisStore) tokenKey() string { return s.prefix + "token" }
func (s *RedisStore) userKey() string  { return s.prefix + "user" }

func (s *RedisStore) get(ctx context.Context, key string) ([]byte, error) {
	data, err := s.redis.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNoSession
	}
	if err != nil {
		return nil, fmt.Errorf("redis get: %w", err)
	}
	return data, nil
}

func (s *RedisStore) Token(ctx context.Context) (string, error) {
	data, err := s.get(ctx, s.tokenKey())
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func (s *RedisStore) SetToken(ctx context.Context, token string) error {
	if err := s.redis.Set(ctx, s.tokenKey(), token, s.ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

func (s *RedisStore) User(ctx context.Context) (models.User, error) {
	data, err := s.get(ctx, s.userKey())
	if err != nil {
		return nil, err
	}
	return models.ParseUser(data)
}

func (s *RedisStore) SetUser(ctx context.Context, u models.User) error {
	data, err := models.EncodeUser(u)
	if err != nil {
		return err
	}
	if err := s.redis.Set(ctx, s.userKey(), data, s.ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

func (s *RedisStore) Clear(ctx context.Context) error {
	if err := s.redis.Del(ctx, s.tokenKey(), s.userKey()).Err(); err != nil {
		return fmt.Errorf("redis del: %w", err)
	}
	return nil
}
