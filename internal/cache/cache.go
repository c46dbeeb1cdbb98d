// Package cache signals downstream view caches (dashboard, insights) that a
// user's ledger changed. Invalidation is batched: one signal per import
// batch, not one per transaction.
package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// Invalidator busts derived views for a user after a batch commits.
type Invalidator interface {
	InvalidateUser(ctx context.Context, userID string) error
	Close() error
}

// userKeys are the derived-view cache keys kept per user.
func userKeys(userID string) []string {
	return []string{
		"dashboard:" + userID,
		"insights:" + userID,
		"accounts:" + userID,
	}
}

// RedisInvalidator deletes the user's cached views from redis.
type RedisInvalidator struct {
	client *redis.Client
	log    zerolog.Logger
}

// NewRedis connects to redis at addr and verifies the connection.
func NewRedis(addr string, log zerolog.Logger) (*RedisInvalidator, error) {
	opt, err := redis.ParseURL("redis://" + addr)
	if err != nil {
		opt = &redis.Options{Addr: addr}
	}
	client := redis.NewClient(opt)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("cache.NewRedis: ping: %w", err)
	}

	return &RedisInvalidator{client: client, log: log}, nil
}

func (r *RedisInvalidator) InvalidateUser(ctx context.Context, userID string) error {
	keys := userKeys(userID)
	if err := r.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("cache invalidate: %w", err)
	}
	r.log.Debug().Str("user_id", userID).Strs("keys", keys).Msg("Invalidated cached views")
	return nil
}

func (r *RedisInvalidator) Close() error {
	return r.client.Close()
}

// Noop satisfies Invalidator when no cache is configured.
type Noop struct{}

func (Noop) InvalidateUser(ctx context.Context, userID string) error { return nil }
func (Noop) Close() error                                            { return nil }
