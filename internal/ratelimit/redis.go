package ratelimit

import (
	"context"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

const defaultKeyPrefix = "ratelimit:"

// redisCounter is the subset of the go-redis client the limiter needs.
type redisCounter interface {
	Incr(ctx context.Context, key string) *goredis.IntCmd
	Expire(ctx context.Context, key string, expiration time.Duration) *goredis.BoolCmd
	TTL(ctx context.Context, key string) *goredis.DurationCmd
}

// Redis is a fixed-window limiter shared by every server process.
type Redis struct {
	rdb    redisCounter
	prefix string
	limit  int
	window time.Duration
}

// NewRedis constructs a Redis-backed limiter allowing limit requests per window.
func NewRedis(rdb *goredis.Client, prefix string, limit int, window time.Duration) *Redis {
	return NewRedisWithCounter(rdb, prefix, limit, window)
}

// NewRedisWithCounter constructs a limiter over any counter implementation.
func NewRedisWithCounter(rdb redisCounter, prefix string, limit int, window time.Duration) *Redis {
	if prefix == "" {
		prefix = defaultKeyPrefix
	}
	return &Redis{rdb: rdb, prefix: prefix, limit: limit, window: window}
}

// Allow counts one request for id. The first request of a window starts its expiry.
func (l *Redis) Allow(ctx context.Context, id string) (Decision, error) {
	key := l.prefix + id
	n, err := l.rdb.Incr(ctx, key).Result()
	if err != nil {
		return Decision{}, fmt.Errorf("rate limit incr: %w", err)
	}
	if n == 1 {
		if err := l.rdb.Expire(ctx, key, l.window).Err(); err != nil {
			return Decision{}, fmt.Errorf("rate limit expire: %w", err)
		}
	}

	d := Decision{Allowed: n <= int64(l.limit), Limit: l.limit}
	if d.Allowed {
		d.Remaining = l.limit - int(n)
		return d, nil
	}

	ttl, err := l.rdb.TTL(ctx, key).Result()
	if err != nil {
		return Decision{}, fmt.Errorf("rate limit ttl: %w", err)
	}
	if ttl < 0 {
		// The key lost its expiry (e.g. the process died between INCR and EXPIRE).
		if err := l.rdb.Expire(ctx, key, l.window).Err(); err != nil {
			return Decision{}, fmt.Errorf("rate limit expire: %w", err)
		}
		ttl = l.window
	}
	d.RetryAfter = ttl
	return d, nil
}
