// Pinteya E-commerce - Enterprise Admin Security Pipeline
// Copyright 2026 The Pinteya E-commerce Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/SantiagoXOR/pinteya-ecommerce-sub017

package cache

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/singleflight"

	"github.com/SantiagoXOR/pinteya-ecommerce-sub017/internal/logging"
	"github.com/SantiagoXOR/pinteya-ecommerce-sub017/internal/metrics"
)

const (
	// DefaultTTL is deliberately short; entries carry permission data.
	DefaultTTL = 10 * time.Second
	// MaxTTL caps the configurable TTL.
	MaxTTL = 5 * time.Minute
	// DefaultMaxEntries bounds the LRU.
	DefaultMaxEntries = 10000

	keySep = "\x00"
)

// ErrNoVersionStore is returned by New when versions is nil.
var ErrNoVersionStore = errors.New("version store is required")

// Config configures a VersionedCache.
type Config struct {
	TTL        time.Duration
	MaxEntries int
}

// Stats is a point-in-time snapshot of cache counters.
type Stats struct {
	Hits      uint64 `json:"hits"`
	Misses    uint64 `json:"misses"`
	Evictions uint64 `json:"evictions"`
	Entries   int    `json:"entries"`
}

type entry[V any] struct {
	value     V
	createdAt time.Time
	ttl       time.Duration
	version   uint64
}

// VersionedCache memoizes per-user values with a TTL and a version check.
// It is safe for concurrent use.
type VersionedCache[V any] struct {
	entries  *lru.Cache[string, *entry[V]]
	versions VersionStore
	ttl      time.Duration
	group    singleflight.Group
	now      func() time.Time

	hits      atomic.Uint64
	misses    atomic.Uint64
	evictions atomic.Uint64
}

// New creates a cache backed by versions.
func New[V any](versions VersionStore, cfg Config) (*VersionedCache[V], error) {
	if versions == nil {
		return nil, ErrNoVersionStore
	}
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultTTL
	}
	if cfg.TTL > MaxTTL {
		cfg.TTL = MaxTTL
	}
	if cfg.MaxEntries <= 0 {
		cfg.MaxEntries = DefaultMaxEntries
	}

	entries, err := lru.New[string, *entry[V]](cfg.MaxEntries)
	if err != nil {
		return nil, err
	}
	return &VersionedCache[V]{
		entries:  entries,
		versions: versions,
		ttl:      cfg.TTL,
		now:      time.Now,
	}, nil
}

func cacheKey(userID, scope string) string {
	return userID + keySep + scope
}

// GetOrResolve returns the cached value for (userID, scope) if it is fresh and
// its version is current. Otherwise it calls resolve, collapsing concurrent
// misses for the same user, scope and version into one call.
func (c *VersionedCache[V]) GetOrResolve(ctx context.Context, userID, scope string, resolve func(context.Context) (V, error)) (V, error) {
	ver, err := c.versions.Current(ctx, userID)
	if err != nil {
		// Without an authoritative version nothing cached can be trusted.
		logging.Ctx(ctx).Warn().Err(err).Str("component", "authcache").Msg("Version store unavailable, bypassing cache")
		c.recordMiss()
		return resolve(ctx)
	}

	key := cacheKey(userID, scope)
	if e, ok := c.entries.Get(key); ok {
		switch {
		case e.version != ver:
			c.evict(key, "version")
		case c.now().Sub(e.createdAt) >= e.ttl:
			c.evict(key, "ttl")
		default:
			c.hits.Add(1)
			metrics.RecordCacheHit()
			return e.value, nil
		}
	}
	c.recordMiss()

	v, err, _ := c.group.Do(key+keySep+strconv.FormatUint(ver, 10), func() (interface{}, error) {
		val, err := resolve(context.WithoutCancel(ctx))
		if err != nil {
			return nil, err
		}
		// An invalidation that raced this resolution bumped the version; the
		// stored entry then carries the old one and is a miss on next read.
		if evicted := c.entries.Add(key, &entry[V]{
			value:     val,
			createdAt: c.now(),
			ttl:       c.ttl,
			version:   ver,
		}); evicted {
			c.evictions.Add(1)
			metrics.RecordCacheEviction("capacity")
		}
		return val, nil
	})
	if err != nil {
		var zero V
		return zero, err
	}
	return v.(V), nil
}

// Invalidate bumps the user's version and drops local entries for the user.
// It returns only after the bump is visible to subsequent reads.
func (c *VersionedCache[V]) Invalidate(ctx context.Context, userID string) error {
	_, err := c.versions.Bump(ctx, userID)

	prefix := userID + keySep
	for _, key := range c.entries.Keys() {
		if strings.HasPrefix(key, prefix) {
			c.entries.Remove(key)
		}
	}
	metrics.RecordCacheInvalidation()
	return err
}

// Stats returns the cache counters.
func (c *VersionedCache[V]) Stats() Stats {
	return Stats{
		Hits:      c.hits.Load(),
		Misses:    c.misses.Load(),
		Evictions: c.evictions.Load(),
		Entries:   c.entries.Len(),
	}
}

// TTL returns the configured entry lifetime.
func (c *VersionedCache[V]) TTL() time.Duration {
	return c.ttl
}

// Sweep drops entries whose TTL has elapsed and returns how many were removed.
func (c *VersionedCache[V]) Sweep() int {
	now := c.now()
	removed := 0
	for _, key := range c.entries.Keys() {
		if e, ok := c.entries.Peek(key); ok && now.Sub(e.createdAt) >= e.ttl {
			c.evict(key, "ttl")
			removed++
		}
	}
	return removed
}

func (c *VersionedCache[V]) evict(key, reason string) {
	c.entries.Remove(key)
	c.evictions.Add(1)
	metrics.RecordCacheEviction(reason)
}

func (c *VersionedCache[V]) recordMiss() {
	c.misses.Add(1)
	metrics.RecordCacheMiss()
}
