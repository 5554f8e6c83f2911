// Pinteya E-commerce - Enterprise Admin Security Pipeline
// Copyright 2026 The Pinteya E-commerce Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/SantiagoXOR/pinteya-ecommerce-sub017

/*
Package ratelimit bounds request throughput per actor, IP and route tier.

Every Limiter implements the same sliding-window counter contract:

	TryAcquire(ctx, key, limit, window) -> Decision{Allowed, RetryAfter, ...}

A bucket is reset when now - windowStart >= window. Otherwise the increment
and the comparison against limit happen atomically. A denied call does not
consume budget, so count never exceeds limit inside a window, and RetryAfter
is windowStart + window - now. The window is fixed, not rolling: it opens at
the first request after the previous window ended.

# Backends

  - SlidingWindow: in-process, sharded maps guarded by per-shard mutexes.
    Budgets are per instance.
  - RedisLimiter: the same algorithm as a Lua script so every instance shares
    one budget. If Redis is unreachable it falls back to its local
    SlidingWindow; it never degrades to allow.

# Tiers

Tiers applies three independently configured limits (auth, admin,
admin_mutation) on top of one Limiter, namespacing keys by tier.
ClassifyRequest picks the tier for a route.
*/
package ratelimit
