package health

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisPinger is the slice of redis.UniversalClient the checker needs.
type RedisPinger interface {
	Ping(ctx context.Context) *redis.StatusCmd
}

// RedisChecker implements health checking for the Redis rate-limit store.
type RedisChecker struct {
	client  RedisPinger
	timeout time.Duration
}

// NewRedisChecker creates a new Redis health checker.
func NewRedisChecker(client RedisPinger) *RedisChecker {
	return &RedisChecker{client: client, timeout: DefaultTimeout}
}

// HealthCheck sends PING, bounded by the checker timeout.
func (r *RedisChecker) HealthCheck(ctx context.Context) error {
	if r == nil || r.client == nil {
		return ErrNotConfigured
	}
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	if err := r.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping: %w", err)
	}
	return nil
}
