// Pinteya E-commerce - Enterprise Admin Security Pipeline
// Copyright 2026 The Pinteya E-commerce Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/SantiagoXOR/pinteya-ecommerce-sub017

/*
Package cache memoizes identity-to-context resolution for a short time and
provides the rolling counters used for anomaly signals.

# Versioned cache

VersionedCache[V] stores values under (userID, scope) in a bounded LRU
(hashicorp/golang-lru/v2). Every entry records the per-user version that was
current when resolution started. A read whose current version differs from
the entry's version is a miss, so a version bump invalidates every entry for
that user on every instance that shares the VersionStore:

	ver := versions.Current(user)
	entry := lru.Get(user, scope)
	entry != nil && entry.version == ver && age < ttl  -> hit
	otherwise                                         -> resolve (singleflight)

Invalidate bumps the version synchronously and then drops local entries.

# Version stores

  - LocalVersionStore: in-process counters. Invalidation is per instance.
  - RedisVersionStore: INCR/GET on a shared Redis, so an invalidation on one
    instance is visible to all of them.

If the version store cannot be read the cache is bypassed and the resolver is
called directly; it never serves an entry it cannot prove is current.

# Sliding windows

SlidingWindowStore keeps bucketed rolling counters per key. The authorization
layer uses it to count recent auth_failure and rate_limited signals.
*/
package cache
