package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/macrolens/shelfprice/internal/domain"
	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "shelfprice:cache:"

// RedisStore keeps cache entries in Redis.
// Retention bounds how long an entry survives; zero keeps it forever.
type RedisStore struct {
	client    redis.Cmdable
	retention time.Duration
}

// NewRedisStore wraps an existing client
func NewRedisStore(client redis.Cmdable, retention time.Duration) *RedisStore {
	return &RedisStore{client: client, retention: retention}
}

// NewRedisClient parses url and pings the server
func NewRedisClient(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}
	opts.ReadTimeout = 3 * time.Second
	opts.WriteTimeout = 3 * time.Second
	opts.DialTimeout = 5 * time.Second

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	return client, nil
}

// Get returns ErrCacheMiss when the key does not exist
func (s *RedisStore) Get(ctx context.Context, key string) ([]byte, error) {
	data, err := s.client.Get(ctx, redisKeyPrefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, domain.ErrCacheMiss
	}
	if err != nil {
		return nil, fmt.Errorf("redis get %s: %w", key, err)
	}
	return data, nil
}

func (s *RedisStore) Set(ctx context.Context, key string, value []byte) error {
	if err := s.client.Set(ctx, redisKeyPrefix+key, value, s.retention).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", key, err)
	}
	return nil
}
