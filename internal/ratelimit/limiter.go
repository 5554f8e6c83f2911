// Pinteya E-commerce - Enterprise Admin Security Pipeline
// Copyright 2026 The Pinteya E-commerce Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/SantiagoXOR/pinteya-ecommerce-sub017

package ratelimit

import (
	"context"
	"errors"
	"hash/fnv"
	"sync"
	"time"
)

// ErrInvalidLimit is returned for a non-positive limit or window.
var ErrInvalidLimit = errors.New("rate limit and window must be positive")

// Decision is the outcome of one TryAcquire call.
type Decision struct {
	Allowed   bool
	Limit     int
	Remaining int
	// RetryAfter is the time until the current window ends (denied calls only).
	RetryAfter time.Duration
	// ResetAt is when the current window ends.
	ResetAt time.Time
}

// Limiter is the sliding-window counter contract.
type Limiter interface {
	TryAcquire(ctx context.Context, key string, limit int, window time.Duration) (Decision, error)
}

const numShards = 64

// bucket is the per-key window state.
type bucket struct {
	windowStart time.Time
	count       int
	limit       int
	window      time.Duration
	lastSeen    time.Time
}

type shard struct {
	mu      sync.Mutex
	buckets map[string]*bucket
}

// SlidingWindow is the in-process Limiter. Keys hash to one of a fixed set of
// shards; all reads and writes of a bucket happen under its shard's mutex.
type SlidingWindow struct {
	shards [numShards]shard
	now    func() time.Time
}

// NewSlidingWindow creates an in-process limiter.
func NewSlidingWindow() *SlidingWindow {
	sw := &SlidingWindow{now: time.Now}
	for i := range sw.shards {
		sw.shards[i].buckets = make(map[string]*bucket)
	}
	return sw
}

func (sw *SlidingWindow) shardFor(key string) *shard {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	return &sw.shards[h.Sum32()%numShards]
}

// TryAcquire consumes one unit of budget for key if any is left.
func (sw *SlidingWindow) TryAcquire(_ context.Context, key string, limit int, window time.Duration) (Decision, error) {
	if limit <= 0 || window <= 0 {
		return Decision{}, ErrInvalidLimit
	}

	s := sw.shardFor(key)
	s.mu.Lock()
	defer s.mu.Unlock()

	now := sw.now()
	b, ok := s.buckets[key]
	if !ok {
		b = &bucket{windowStart: now}
		s.buckets[key] = b
	}
	if now.Sub(b.windowStart) >= window {
		b.windowStart = now
		b.count = 0
	}
	b.limit = limit
	b.window = window
	b.lastSeen = now

	resetAt := b.windowStart.Add(window)
	if b.count >= limit {
		return Decision{
			Allowed:    false,
			Limit:      limit,
			Remaining:  0,
			RetryAfter: resetAt.Sub(now),
			ResetAt:    resetAt,
		}, nil
	}

	b.count++
	return Decision{
		Allowed:   true,
		Limit:     limit,
		Remaining: limit - b.count,
		ResetAt:   resetAt,
	}, nil
}

// Count returns the current in-window count for key.
func (sw *SlidingWindow) Count(key string) int {
	s := sw.shardFor(key)
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.buckets[key]
	if !ok || sw.now().Sub(b.windowStart) >= b.window {
		return 0
	}
	return b.count
}

// Reset drops the bucket for key.
func (sw *SlidingWindow) Reset(key string) {
	s := sw.shardFor(key)
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.buckets, key)
}

// Sweep removes buckets idle for at least idleTTL whose window has ended and
// returns how many were removed.
func (sw *SlidingWindow) Sweep(idleTTL time.Duration) int {
	now := sw.now()
	removed := 0
	for i := range sw.shards {
		s := &sw.shards[i]
		s.mu.Lock()
		for key, b := range s.buckets {
			if now.Sub(b.lastSeen) >= idleTTL && now.Sub(b.windowStart) >= b.window {
				delete(s.buckets, key)
				removed++
			}
		}
		s.mu.Unlock()
	}
	return removed
}

// Len returns the number of live buckets.
func (sw *SlidingWindow) Len() int {
	n := 0
	for i := range sw.shards {
		s := &sw.shards[i]
		s.mu.Lock()
		n += len(s.buckets)
		s.mu.Unlock()
	}
	return n
}
