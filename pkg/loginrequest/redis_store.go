package loginrequest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore keeps login requests in Redis. Expiry is left to the key TTL.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisStore wraps an existing client. A non-positive ttl uses DefaultTTL.
func NewRedisStore(client *redis.Client, ttl time.Duration) *RedisStore {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &RedisStore{client: client, ttl: ttl}
}

func (s *RedisStore) Save(ctx context.Context, scope string, req LoginRequest) error {
	data, err := encode(req, time.Now())
	if err != nil {
		return err
	}
	if err := s.client.Set(ctx, Key(scope), data, s.ttl).Err(); err != nil {
		return fmt.Errorf("failed to save login request: %w", err)
	}
	return nil
}

func (s *RedisStore) Load(ctx context.Context, scope string) (*LoginRequest, error) {
	key := Key(scope)
	data, err := s.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load login request: %w", err)
	}

	rec, ok := decode(data)
	if !ok {
		slog.Warn("Discarding malformed login request", "key", key)
		if err := s.client.Del(ctx, key).Err(); err != nil {
			return nil, fmt.Errorf("failed to remove malformed login request: %w", err)
		}
		return nil, nil
	}
	return &rec.LoginRequest, nil
}

func (s *RedisStore) Clear(ctx context.Context, scope string) error {
	if err := s.client.Del(ctx, Key(scope)).Err(); err != nil {
		return fmt.Errorf("failed to clear login request: %w", err)
	}
	return nil
}
