package health

import (
	"context"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"
)

// RedisChecker checks Redis connectivity.
type RedisChecker struct {
	client redis.UniversalClient
	name   string
}

// NewRedisChecker creates a Redis health checker.
func NewRedisChecker(client redis.UniversalClient) *RedisChecker {
	return &RedisChecker{
		client: client,
		name:   "redis",
	}
}

// Name returns the name of the checker.
func (r *RedisChecker) Name() string {
	return r.name
}

// Check pings Redis and reads INFO. A failed ping is down; a server that
// answers the ping but not INFO is degraded.
func (r *RedisChecker) Check(ctx context.Context) error {
	if err := r.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping failed: %w", err)
	}

	info, err := r.client.Info(ctx).Result()
	if err != nil {
		return &DegradedError{Reason: "failed to get redis info: " + err.Error()}
	}
	if strings.TrimSpace(info) == "" {
		return &DegradedError{Reason: "empty redis info response"}
	}

	return nil
}
