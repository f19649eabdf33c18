// Package cache provides the read-through cache for taxonomy artifacts:
// materialized trees, single taxonomy lookups and paginated list queries.
// The cache is an optimization, never a source of truth - every backend
// failure degrades to a miss on reads and is swallowed on writes.
package cache

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Store is the minimal key-value contract the coordinator needs:
// point get/set with TTL plus pattern-based multi-key invalidation.
type Store interface {
	// Get returns the cached value and true, or nil and false on miss.
	// Backend errors are reported as a miss.
	Get(ctx context.Context, key string) ([]byte, bool)

	// Set stores the value under key with the given TTL. Errors are
	// logged and swallowed.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration)

	// InvalidatePattern removes every key matching the glob pattern.
	// Errors are logged and swallowed.
	InvalidatePattern(ctx context.Context, pattern string)
}

// RedisStore implements Store on a go-redis client.
type RedisStore struct {
	client *redis.Client
	logger *zap.Logger
}

// NewRedisStore creates a Store backed by the given Redis client.
func NewRedisStore(client *redis.Client, logger *zap.Logger) *RedisStore {
	return &RedisStore{
		client: client,
		logger: logger.Named("cache"),
	}
}

var _ Store = (*RedisStore)(nil)

func (s *RedisStore) Get(ctx context.Context, key string) ([]byte, bool) {
	val, err := s.client.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return nil, false
	}
	if err != nil {
		s.logger.Warn("Cache read failed, treating as miss",
			zap.String("key", key),
			zap.Error(err))
		return nil, false
	}
	return val, true
}

func (s *RedisStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) {
	if err := s.client.Set(ctx, key, value, ttl).Err(); err != nil {
		s.logger.Warn("Cache write failed",
			zap.String("key", key),
			zap.Error(err))
	}
}

// InvalidatePattern scans for matching keys in batches and deletes them.
// SCAN is used instead of KEYS to avoid blocking the backend on large keyspaces.
func (s *RedisStore) InvalidatePattern(ctx context.Context, pattern string) {
	var cursor uint64
	for {
		keys, next, err := s.client.Scan(ctx, cursor, pattern, 100).Result()
		if err != nil {
			s.logger.Warn("Cache invalidation scan failed",
				zap.String("pattern", pattern),
				zap.Error(err))
			return
		}
		if len(keys) > 0 {
			if err := s.client.Del(ctx, keys...).Err(); err != nil {
				s.logger.Warn("Cache invalidation delete failed",
					zap.String("pattern", pattern),
					zap.Int("keys", len(keys)),
					zap.Error(err))
				return
			}
		}
		cursor = next
		if cursor == 0 {
			return
		}
	}
}
