// Pinteya E-commerce - Enterprise Admin Security Pipeline
// Copyright 2026 The Pinteya E-commerce Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/SantiagoXOR/pinteya-ecommerce-sub017

package audit

import (
	"context"
	"sort"
	"sync"
)

// MemoryStore implements Store using in-memory storage.
// Suitable for development and testing. Data is lost on restart.
type MemoryStore struct {
	events []*Event
	mu     sync.RWMutex
	maxLen int
}

// NewMemoryStore creates a new in-memory audit store holding at most maxLen
// events. When full, the oldest 10% are dropped; VerifyChain still accepts
// the remaining window.
func NewMemoryStore(maxLen int) *MemoryStore {
	if maxLen <= 0 {
		maxLen = 10000
	}
	return &MemoryStore{
		events: make([]*Event, 0, 64),
		maxLen: maxLen,
	}
}

// Append implements Store.
func (s *MemoryStore) Append(ctx context.Context, events ...*Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, e := range events {
		if len(s.events) >= s.maxLen {
			removeCount := s.maxLen / 10
			if removeCount == 0 {
				removeCount = 1
			}
			s.events = append(s.events[:0:0], s.events[removeCount:]...)
		}
		s.events = append(s.events, e.Clone())
	}
	return nil
}

// Bounded reports that old events are evicted, so a verification checkpoint
// may fall out of the retained window.
func (s *MemoryStore) Bounded() bool {
	return true
}

// Query implements Store.
func (s *MemoryStore) Query(ctx context.Context, filter QueryFilter) ([]*Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	matched := s.matching(&filter)
	if filter.Descending {
		for i, j := 0, len(matched)-1; i < j; i, j = i+1, j-1 {
			matched[i], matched[j] = matched[j], matched[i]
		}
	}

	if filter.Offset > 0 {
		if filter.Offset >= len(matched) {
			return []*Event{}, nil
		}
		matched = matched[filter.Offset:]
	}
	if filter.Limit > 0 && len(matched) > filter.Limit {
		matched = matched[:filter.Limit]
	}

	results := make([]*Event, len(matched))
	for i, e := range matched {
		results[i] = e.Clone()
	}
	return results, nil
}

// Count implements Store.
func (s *MemoryStore) Count(ctx context.Context, filter QueryFilter) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return int64(len(s.matching(&filter))), nil
}

// Aggregate implements Store.
func (s *MemoryStore) Aggregate(ctx context.Context, filter QueryFilter, field AggregateField, limit int) ([]Bucket, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	counts := make(map[string]int64)
	for _, e := range s.matching(&filter) {
		key, err := field.valueOf(e)
		if err != nil {
			return nil, err
		}
		if key == "" {
			continue
		}
		counts[key]++
	}
	return topBuckets(counts, limit), nil
}

// Len returns the number of stored events.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.events)
}

// matching returns stored events passing filter in sequence order.
// The caller must hold s.mu.
func (s *MemoryStore) matching(filter *QueryFilter) []*Event {
	var out []*Event
	for _, e := range s.events {
		if filter.Matches(e) {
			out = append(out, e)
		}
	}
	return out
}

// topBuckets sorts counts by descending count then key and keeps limit.
func topBuckets(counts map[string]int64, limit int) []Bucket {
	buckets := make([]Bucket, 0, len(counts))
	for k, n := range counts {
		buckets = append(buckets, Bucket{Key: k, Count: n})
	}
	sort.Slice(buckets, func(i, j int) bool {
		if buckets[i].Count != buckets[j].Count {
			return buckets[i].Count > buckets[j].Count
		}
		return buckets[i].Key < buckets[j].Key
	})
	if limit > 0 && len(buckets) > limit {
		buckets = buckets[:limit]
	}
	return buckets
}
