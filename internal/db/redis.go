package db

import (
	"context"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"palpiteiros/internal/config"
)

// ConnectRedis parses redis.url, fills unset timeouts from config and pings once.
func ConnectRedis(ctx context.Context, cfg config.RedisConfig) (*redis.Client, error) {
	opt, err := redis.ParseURL(strings.TrimSpace(cfg.URL))
	if err != nil {
		return nil, err
	}
	if opt.DialTimeout == 0 {
		opt.DialTimeout = orDuration(cfg.DialTimeout, 5*time.Second)
	}
	if opt.ReadTimeout == 0 {
		opt.ReadTimeout = orDuration(cfg.ReadTimeout, 3*time.Second)
	}
	if opt.WriteTimeout == 0 {
		opt.WriteTimeout = orDuration(cfg.WriteTimeout, 3*time.Second)
	}
	if opt.MaxRetries == 0 {
		opt.MaxRetries = 2
	}
	if opt.PoolSize == 0 {
		opt.PoolSize = cfg.PoolSize
	}

	client := redis.NewClient(opt)
	pingCtx, cancel := context.WithTimeout(ctx, opt.DialTimeout)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, err
	}
	return client, nil
}

func orDuration(v, fallback time.Duration) time.Duration {
	if v <= 0 {
		return fallback
	}
	return v
}
