package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const defaultPrefix = "dailyagent:ratelimit:"

// Redis is a fixed-window counter shared through Redis: each key may make
// limit requests per window.
type Redis struct {
	client *redis.Client
	name   string
	limit  int
	window time.Duration
}

// NewRedis creates a limiter for the route called name, admitting perMinute
// requests per client per minute. perMinute <= 0 admits everything.
func NewRedis(client *redis.Client, name string, perMinute int) *Redis {
	return &Redis{
		client: client,
		name:   name,
		limit:  perMinute,
		window: time.Minute,
	}
}

// Dial connects to addr and verifies the connection.
func Dial(ctx context.Context, addr string) (*redis.Client, error) {
	if addr == "" {
		return nil, errors.New("redis address is required")
	}
	client := redis.NewClient(&redis.Options{Addr: addr})

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	return client, nil
}

// Allow counts the request in key's current window.
func (r *Redis) Allow(ctx context.Context, key string) (Decision, error) {
	if r.limit <= 0 {
		return unlimited, nil
	}
	k := defaultPrefix + r.name + ":" + key

	count, err := r.client.Incr(ctx, k).Result()
	if err != nil {
		return Decision{}, fmt.Errorf("rate limit incr: %w", err)
	}
	if count == 1 {
		if err := r.client.Expire(ctx, k, r.window).Err(); err != nil {
			return Decision{}, fmt.Errorf("rate limit expire: %w", err)
		}
	}

	ttl, err := r.client.PTTL(ctx, k).Result()
	if err != nil {
		return Decision{}, fmt.Errorf("rate limit ttl: %w", err)
	}
	if ttl < 0 {
		// Key without expiry; restart the window.
		if err := r.client.Expire(ctx, k, r.window).Err(); err != nil {
			return Decision{}, fmt.Errorf("rate limit expire: %w", err)
		}
		ttl = r.window
	}

	return Decision{
		Allowed:    count <= int64(r.limit),
		Limit:      r.limit,
		Remaining:  max(r.limit-int(count), 0),
		ResetAfter: ttl,
	}, nil
}
