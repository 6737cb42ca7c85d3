package cache

import (
	"context"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	availableKeyPrefix = "available:"
	correlationPrefix  = "correlation:"

	correlationKeyTTL = 24 * time.Hour
)

// RedisCache keeps hot availability numbers and correlation-id guards in Redis.
// It is never authoritative; misses fall back to the read models.
type RedisCache struct {
	client *redis.Client
}

func NewRedisCache(client *redis.Client) *RedisCache {
	return &RedisCache{client: client}
}

// SetAvailable caches the available quantity for an aggregate
func (c *RedisCache) SetAvailable(ctx context.Context, aggregateID string, available int) error {
	return c.client.Set(ctx, availableKeyPrefix+aggregateID, available, 0).Err()
}

// GetAvailable returns the cached available quantity. The second return is
// false on a miss.
func (c *RedisCache) GetAvailable(ctx context.Context, aggregateID string) (int, bool, error) {
	val, err := c.client.Get(ctx, availableKeyPrefix+aggregateID).Result()
	if err == redis.Nil {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}

	available, err := strconv.Atoi(val)
	if err != nil {
		return 0, false, err
	}
	return available, true, nil
}

// Invalidate removes the cached availability for an aggregate
func (c *RedisCache) Invalidate(ctx context.Context, aggregateID string) error {
	return c.client.Del(ctx, availableKeyPrefix+aggregateID).Err()
}

// ClaimCorrelationID marks a correlation id as seen. It returns false when the
// id was already claimed within the TTL, letting callers reject duplicates.
func (c *RedisCache) ClaimCorrelationID(ctx context.Context, correlationID string) (bool, error) {
	return c.client.SetNX(ctx, correlationPrefix+correlationID, 1, correlationKeyTTL).Result()
}

// ReleaseCorrelationID drops a claim so a failed operation can be retried
// with the same correlation id.
func (c *RedisCache) ReleaseCorrelationID(ctx context.Context, correlationID string) error {
	return c.client.Del(ctx, correlationPrefix+correlationID).Err()
}
