package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

type RedisLimiter struct {
	Client *redis.Client
	Prefix string
	Limit  int
	Window time.Duration
}

func NewRedisLimiter(client *redis.Client, prefix string, limit int, win time.Duration) *RedisLimiter {
	return &RedisLimiter{Client: client, Prefix: prefix, Limit: limit, Window: win}
}

// CheckAndConsume uses INCR; the expiry is attached when the key has none yet.
func (l *RedisLimiter) CheckAndConsume(ctx context.Context, key string) (Decision, error) {
	if l.Limit <= 0 || l.Window <= 0 {
		return Decision{Allowed: true}, nil
	}
	rkey := l.Prefix + "ratelimit:" + key

	var incr *redis.IntCmd
	var ttl *redis.DurationCmd
	_, err := l.Client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		incr = pipe.Incr(ctx, rkey)
		ttl = pipe.PTTL(ctx, rkey)
		return nil
	})
	if err != nil {
		return Decision{}, fmt.Errorf("ratelimit %s: %w", key, err)
	}
	remaining := ttl.Val()
	if remaining < 0 {
		if err := l.Client.PExpire(ctx, rkey, l.Window).Err(); err != nil {
			return Decision{}, fmt.Errorf("ratelimit %s: %w", key, err)
		}
		remaining = l.Window
	}
	return decide(int(incr.Val()), l.Limit, remaining), nil
}
