package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dometrics/dometrics/internal/core/domain"
	"github.com/dometrics/dometrics/internal/core/ports"
	"github.com/redis/go-redis/v9"
	"github.com/vmihailenco/msgpack/v5"
)

const keyPrefix = "dometrics:valuation:"

// RedisCache stores msgpack-encoded oracle valuations under a fixed key prefix.
type RedisCache struct {
	client *redis.Client
}

var _ ports.ScoreCache = (*RedisCache)(nil)

// NewClient parses a redis:// URL and pings the server.
// Returns nil if the URL is empty (cache not configured).
func NewClient(ctx context.Context, url string) (*redis.Client, error) {
	if url == "" {
		return nil, nil
	}

	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis URL: %w", err)
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	return client, nil
}

func NewRedisCache(client *redis.Client) *RedisCache {
	return &RedisCache{client: client}
}

func (c *RedisCache) Get(ctx context.Context, key string) (*domain.ValueEstimate, error) {
	data, err := c.client.Get(ctx, keyPrefix+key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get valuation from Redis: %w", err)
	}

	value, err := decodeValue(data)
	if err != nil {
		return nil, err
	}
	return value, nil
}

func (c *RedisCache) Set(ctx context.Context, key string, value domain.ValueEstimate, ttl time.Duration) error {
	data, err := encodeValue(value)
	if err != nil {
		return err
	}

	if err := c.client.Set(ctx, keyPrefix+key, data, ttl).Err(); err != nil {
		return fmt.Errorf("failed to store valuation in Redis: %w", err)
	}
	return nil
}

func encodeValue(value domain.ValueEstimate) ([]byte, error) {
	data, err := msgpack.Marshal(&value)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal valuation: %w", err)
	}
	return data, nil
}

func decodeValue(data []byte) (*domain.ValueEstimate, error) {
	var value domain.ValueEstimate
	if err := msgpack.Unmarshal(data, &value); err != nil {
		return nil, fmt.Errorf("failed to unmarshal valuation: %w", err)
	}
	return &value, nil
}
