package store

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "cashback:pageview:"

// RedisOptions configures the Redis store.
type RedisOptions struct {
	Address  string
	Password string
	DB       int
	TTL      time.Duration
}

// Redis keeps page views in Redis so several service replicas agree on
// what a tab has already been shown.
type Redis struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedis connects lazily to the configured server.
func NewRedis(opts RedisOptions) *Redis {
	client := redis.NewClient(&redis.Options{
		Addr:         opts.Address,
		Password:     opts.Password,
		DB:           opts.DB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     10,
		MinIdleConns: 2,
	})
	return NewRedisFromClient(client, opts.TTL)
}

// NewRedisFromClient wraps an existing client.
func NewRedisFromClient(client *redis.Client, ttl time.Duration) *Redis {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Redis{client: client, ttl: ttl}
}

// Ping checks connectivity.
func (r *Redis) Ping(ctx context.Context) error {
	if err := r.client.Ping(ctx).Err(); err != nil {
		return &Error{Op: "ping", Cause: err}
	}
	return nil
}

// MarkNotified implements PageViews with SET ... GET so the read and the
// write are one round trip.
func (r *Redis) MarkNotified(ctx context.Context, tabID, viewID string) (bool, error) {
	prev, err := r.client.SetArgs(ctx, keyPrefix+tabID, viewID, redis.SetArgs{TTL: r.ttl, Get: true}).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return false, &Error{Op: "mark", Cause: err}
	}
	return prev != viewID, nil
}

// Reset implements PageViews.
func (r *Redis) Reset(ctx context.Context, tabID string) error {
	if err := r.client.Del(ctx, keyPrefix+tabID).Err(); err != nil {
		return &Error{Op: "reset", Cause: err}
	}
	return nil
}

// Close implements PageViews.
func (r *Redis) Close() error {
	return r.client.Close()
}
