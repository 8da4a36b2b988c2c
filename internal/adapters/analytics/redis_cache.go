package analytics

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RedisCache invalidates the per-owner analytics key in Redis when a
// classification changes.
type RedisCache struct {
	client    *redis.Client
	keyPrefix string
	logger    *zap.Logger
}

// NewRedisCache creates a new Redis analytics cache
func NewRedisCache(addr, password string, db int, keyPrefix string, logger *zap.Logger) *RedisCache {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	return &RedisCache{
		client:    client,
		keyPrefix: keyPrefix,
		logger:    logger,
	}
}

// Invalidate drops the analytics entry of an owner
func (c *RedisCache) Invalidate(ctx context.Context, owner string) error {
	key := fmt.Sprintf("%s:%s", c.keyPrefix, owner)
	if err := c.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("failed to invalidate analytics key %s: %w", key, err)
	}
	c.logger.Debug("Analytics cache invalidated", zap.String("owner", owner))
	return nil
}

// Close closes the Redis connection
func (c *RedisCache) Close() error {
	return c.client.Close()
}
