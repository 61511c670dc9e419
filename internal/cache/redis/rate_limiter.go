package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/burhankhanlodhy/scalper-bot/internal/domain"
)

// RateLimiter implements domain.RateLimiter with a fixed-window counter per
// key. INCR and EXPIRE NX run in a transactional pipeline so a counter can
// never be left without a TTL.
type RateLimiter struct {
	rdb *redis.Client
}

var _ domain.RateLimiter = (*RateLimiter)(nil)

// NewRateLimiter creates a RateLimiter backed by the given Client.
func NewRateLimiter(c *Client) *RateLimiter {
	return &RateLimiter{rdb: c.Underlying()}
}

func rateLimitKey(key string) string {
	return "ratelimit:" + key
}

// Allow reports whether a request for the key is within limit requests per
// window. Allowed requests are counted; rejected ones are not counted
// beyond the increment that detected the overflow.
func (rl *RateLimiter) Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	k := rateLimitKey(key)

	var incr *redis.IntCmd
	_, err := rl.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		incr = pipe.Incr(ctx, k)
		// NX: only the request that creates the counter starts the
		// window. Refreshing the TTL on every hit keeps a busy window
		// alive forever and steady traffic below the limit would still
		// get rejected.
		pipe.ExpireNX(ctx, k, window)
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("redis: rate limit allow %s: %w", key, err)
	}

	return incr.Val() <= int64(limit), nil
}
