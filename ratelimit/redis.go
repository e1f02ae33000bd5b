package ratelimit

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

var _ Limiter = (*RedisLimiter)(nil)

// RedisLimiter counts requests in Redis so that all gateway instances share
// one window per identity.
type RedisLimiter struct {
	client *redis.Client
}

func NewRedis(client *redis.Client) *RedisLimiter {
	return &RedisLimiter{client: client}
}

// Check increments the counter and compares against the tier maximum in a
// single pipelined operation. INCR is atomic on the server, so two
// concurrent callers can never both observe the same pre-increment count.
func (l *RedisLimiter) Check(ctx context.Context, tier Tier, identity string) (Result, error) {
	key := fmt.Sprintf("ratelimit:%s:%s", tier.Name, identity)

	pipe := l.client.TxPipeline()
	incr := pipe.Incr(ctx, key)
	// NX: only the request that opens the window sets the expiry, so the
	// window never slides.
	pipe.ExpireNX(ctx, key, tier.Window)
	ttl := pipe.PTTL(ctx, key)
	if _, err := pipe.Exec(ctx); err != nil {
		return Result{}, fmt.Errorf("rate limit check failed: %w", err)
	}

	count := int(incr.Val())
	if count > tier.Max {
		retryAfter := ttl.Val()
		if retryAfter < 0 {
			retryAfter = tier.Window
		}
		return Result{Allowed: false, Remaining: 0, RetryAfter: retryAfter}, nil
	}
	return Result{Allowed: true, Remaining: tier.Max - count}, nil
}
