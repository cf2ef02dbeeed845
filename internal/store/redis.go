// © 2026 Ilya Mateyko. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// RedisKeyPrefix namespaces keys written by [Redis].
const RedisKeyPrefix = "bdaybot:"

// Redis is a Redis implementation of the [Store] interface. Keys never
// expire.
type Redis struct {
	rdb *redis.Client
}

// NewRedis connects to Redis at redisURL (e.g. "redis://localhost:6379/0").
func NewRedis(ctx context.Context, redisURL string) (*Redis, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis URL: %w", err)
	}
	rdb := redis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, err
	}
	return &Redis{rdb: rdb}, nil
}

// Get retrieves a value for a given key.
func (s *Redis) Get(ctx context.Context, key string) ([]byte, error) {
	b, err := s.rdb.Get(ctx, RedisKeyPrefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	return b, err
}

// Set stores a value for a given key.
func (s *Redis) Set(ctx context.Context, key string, value []byte) error {
	return s.rdb.Set(ctx, RedisKeyPrefix+key, value, 0).Err()
}

// Close closes the Redis connection.
func (s *Redis) Close() error {
	return s.rdb.Close()
}
