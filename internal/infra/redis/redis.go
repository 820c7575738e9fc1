package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sifan077/linkguard/config"
)

const defaultDialTimeout = 5 * time.Second

// Addr returns host:port with local defaults filled in.
func Addr(cfg config.RedisConfig) string {
	host := cfg.Host
	if host == "" {
		host = "localhost"
	}

	port := cfg.Port
	if port == 0 {
		port = 6379
	}
	return fmt.Sprintf("%s:%d", host, port)
}

// NewClient builds a redis client using app config and verifies connectivity via PING.
// The client only backs request throttling, so callers may continue without it.
func NewClient(ctx context.Context, cfg config.RedisConfig) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:        Addr(cfg),
		Password:    cfg.Password,
		DB:          cfg.DB,
		DialTimeout: defaultDialTimeout,
	})

	pingCtx, cancel := context.WithTimeout(ctx, defaultDialTimeout)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis: ping: %w", err)
	}

	return rdb, nil
}
