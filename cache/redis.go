package cache

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// Redis invalidates entries in a shared redis cache. Prefix eviction is a
// SCAN sweep, so it is proportional to keyspace size; acceptable for the
// listing caches this backend maintains.
type Redis struct {
	client *redis.Client
}

func NewRedis(client *redis.Client) *Redis {
	return &Redis{client: client}
}

func (r *Redis) Invalidate(ctx context.Context, key string) error {
	if err := r.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("invalidate %s: %w", key, err)
	}
	return nil
}

func (r *Redis) InvalidatePrefix(ctx context.Context, prefix string) error {
	iter := r.client.Scan(ctx, 0, prefix+"*", 100).Iterator()

	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("scan keys with prefix %s: %w", prefix, err)
	}

	if len(keys) == 0 {
		return nil
	}
	if err := r.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("invalidate %d keys with prefix %s: %w", len(keys), prefix, err)
	}
	return nil
}
