package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sifan077/linkguard/internal/app/model"
)

// RateWindowRepository counts requests per IP and endpoint inside a fixed window.
type RateWindowRepository interface {
	Hit(ctx context.Context, ip, endpoint string, window time.Duration) (model.RateWindow, error)
}

type rateWindowRepository struct {
	client    *redis.Client
	keyPrefix string
	now       func() time.Time
}

// NewRateWindowRepository returns a Redis-backed RateWindowRepository.
func NewRateWindowRepository(client *redis.Client, keyPrefix string) RateWindowRepository {
	if keyPrefix == "" {
		keyPrefix = "ratelimit"
	}
	return &rateWindowRepository{client: client, keyPrefix: keyPrefix, now: time.Now}
}

// Hit upserts the window hash and increments its counter. The expiry is set in the same
// transaction with NX, so a key that lost its TTL gets one back on the next hit.
func (r *rateWindowRepository) Hit(ctx context.Context, ip, endpoint string, window time.Duration) (model.RateWindow, error) {
	now := r.now()
	key := fmt.Sprintf("%s:%s:%s", r.keyPrefix, endpoint, ip)

	pipe := r.client.TxPipeline()
	countCmd := pipe.HIncrBy(ctx, key, "count", 1)
	pipe.HSetNX(ctx, key, "window_start", now.UnixMilli())
	pipe.HSet(ctx, key, "last_request", now.UnixMilli())
	pipe.ExpireNX(ctx, key, window)
	startCmd := pipe.HGet(ctx, key, "window_start")
	if _, err := pipe.Exec(ctx); err != nil {
		return model.RateWindow{}, err
	}

	count := countCmd.Val()
	startMillis, err := startCmd.Int64()
	if err != nil {
		return model.RateWindow{}, err
	}

	return model.RateWindow{
		IP:          ip,
		Endpoint:    endpoint,
		Count:       count,
		WindowStart: time.UnixMilli(startMillis),
		LastRequest: now,
	}, nil
}
