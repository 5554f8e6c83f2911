// Pinteya E-commerce - Enterprise Admin Security Pipeline
// Copyright 2026 The Pinteya E-commerce Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/SantiagoXOR/pinteya-ecommerce-sub017

package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/SantiagoXOR/pinteya-ecommerce-sub017/internal/logging"
	"github.com/SantiagoXOR/pinteya-ecommerce-sub017/internal/metrics"
)

// slidingWindowScript applies the fixed-window counter atomically inside Redis.
// KEYS[1] = bucket key, ARGV[1] = window in ms, ARGV[2] = limit.
// Returns {allowed, count, pttl}. A denied call leaves the counter untouched.
var slidingWindowScript = redis.NewScript(`
local count = tonumber(redis.call("GET", KEYS[1]) or "0")
if count >= tonumber(ARGV[2]) then
  return {0, count, redis.call("PTTL", KEYS[1])}
end
count = redis.call("INCR", KEYS[1])
if count == 1 then
  redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
return {1, count, redis.call("PTTL", KEYS[1])}
`)

// DefaultRedisTimeout bounds one script round trip.
const DefaultRedisTimeout = 2 * time.Second

// RedisLimiter shares one budget across instances. On any Redis failure it
// enforces the limit with its local fallback instead.
type RedisLimiter struct {
	client   redis.UniversalClient
	prefix   string
	timeout  time.Duration
	fallback *SlidingWindow
}

// NewRedisLimiter creates a centralized limiter. fallback may be nil, in which
// case a private SlidingWindow is used.
func NewRedisLimiter(client redis.UniversalClient, fallback *SlidingWindow) *RedisLimiter {
	if fallback == nil {
		fallback = NewSlidingWindow()
	}
	return &RedisLimiter{
		client:   client,
		prefix:   "pinteya:rl:",
		timeout:  DefaultRedisTimeout,
		fallback: fallback,
	}
}

// Fallback returns the local limiter used when Redis is unavailable.
func (l *RedisLimiter) Fallback() *SlidingWindow {
	return l.fallback
}

// TryAcquire runs the window script for key.
func (l *RedisLimiter) TryAcquire(ctx context.Context, key string, limit int, window time.Duration) (Decision, error) {
	if limit <= 0 || window <= 0 {
		return Decision{}, ErrInvalidLimit
	}
	if l.client == nil {
		return l.fallback.TryAcquire(ctx, key, limit, window)
	}

	d, err := l.run(ctx, key, limit, window)
	if err != nil {
		metrics.RecordRateLimitBackendError("redis")
		logging.Ctx(ctx).Warn().Err(err).Str("component", "ratelimit").Msg("Redis limiter unavailable, enforcing locally")
		return l.fallback.TryAcquire(ctx, key, limit, window)
	}
	return d, nil
}

func (l *RedisLimiter) run(ctx context.Context, key string, limit int, window time.Duration) (Decision, error) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), l.timeout)
	defer cancel()

	windowMs := window.Milliseconds()
	if windowMs < 1 {
		windowMs = 1
	}
	res, err := slidingWindowScript.Run(ctx, l.client, []string{l.prefix + key}, windowMs, limit).Int64Slice()
	if err != nil {
		return Decision{}, err
	}
	if len(res) != 3 {
		return Decision{}, fmt.Errorf("unexpected script reply of length %d", len(res))
	}

	allowed, count, ttlMs := res[0] == 1, int(res[1]), res[2]
	if ttlMs < 0 {
		ttlMs = windowMs
	}
	ttl := time.Duration(ttlMs) * time.Millisecond

	d := Decision{
		Allowed:   allowed,
		Limit:     limit,
		Remaining: max(limit-count, 0),
		ResetAt:   time.Now().Add(ttl),
	}
	if !allowed {
		d.RetryAfter = ttl
	}
	return d, nil
}
