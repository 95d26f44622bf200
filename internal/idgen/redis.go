package idgen

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/roach88/widgetd/internal/widget"
)

// DefaultRedisKey is the key holding the shared sequence.
const DefaultRedisKey = "widgetd:widget:id"

// RedisClient is the subset of *redis.Client used by Redis.
type RedisClient interface {
	Incr(ctx context.Context, key string) *redis.IntCmd
	SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.BoolCmd
}

// Redis allocates ids with INCR on a single key, so every process sharing
// the key sees one strictly increasing sequence.
type Redis struct {
	client RedisClient
	key    string
}

// NewRedis creates a generator over key. An empty key uses DefaultRedisKey.
func NewRedis(client RedisClient, key string) *Redis {
	if key == "" {
		key = DefaultRedisKey
	}
	return &Redis{client: client, key: key}
}

// Seed initializes the sequence to floor if the key does not exist yet.
// An existing sequence is left alone.
func (r *Redis) Seed(ctx context.Context, floor widget.ID) error {
	if err := r.client.SetNX(ctx, r.key, int64(floor), 0).Err(); err != nil {
		return fmt.Errorf("seed id sequence %q: %w", r.key, err)
	}
	return nil
}

// Next increments the shared sequence and returns the new value.
func (r *Redis) Next(ctx context.Context) (widget.ID, error) {
	n, err := r.client.Incr(ctx, r.key).Result()
	if err != nil {
		return 0, fmt.Errorf("increment id sequence %q: %w", r.key, err)
	}
	return widget.ID(n), nil
}
