// Pinteya E-commerce - Enterprise Admin Security Pipeline
// Copyright 2026 The Pinteya E-commerce Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/SantiagoXOR/pinteya-ecommerce-sub017

package cache

import (
	"sync"
	"time"
)

// SlidingWindowCounter is a bucketed rolling counter. Time is divided into
// numBuckets buckets of window/numBuckets each; Count sums the live buckets.
//
// Complexity:
//   - Increment: O(1)
//   - Count: O(k) where k = number of buckets
//   - Memory: O(k) per counter
type SlidingWindowCounter struct {
	mu         sync.Mutex
	buckets    []int64
	bucketSize time.Duration
	numBuckets int
	current    int
	lastUpdate time.Time
	now        func() time.Time
}

func newSlidingWindowCounter(window time.Duration, numBuckets int, now func() time.Time) *SlidingWindowCounter {
	if numBuckets <= 0 {
		numBuckets = 10
	}
	if window <= 0 {
		window = 5 * time.Minute
	}
	if now == nil {
		now = time.Now
	}
	bucketSize := window / time.Duration(numBuckets)
	if bucketSize <= 0 {
		bucketSize = time.Nanosecond
	}
	return &SlidingWindowCounter{
		buckets:    make([]int64, numBuckets),
		bucketSize: bucketSize,
		numBuckets: numBuckets,
		lastUpdate: now(),
		now:        now,
	}
}

// NewSlidingWindowCounter creates a counter over window split into numBuckets.
func NewSlidingWindowCounter(window time.Duration, numBuckets int) *SlidingWindowCounter {
	return newSlidingWindowCounter(window, numBuckets, nil)
}

// Increment adds delta to the current bucket and returns the new window total.
func (sw *SlidingWindowCounter) Increment(delta int64) int64 {
	sw.mu.Lock()
	defer sw.mu.Unlock()

	sw.advance()
	sw.buckets[sw.current] += delta
	return sw.sum()
}

// Count returns the sum of all live buckets.
func (sw *SlidingWindowCounter) Count() int64 {
	sw.mu.Lock()
	defer sw.mu.Unlock()

	sw.advance()
	return sw.sum()
}

// Reset clears all buckets.
func (sw *SlidingWindowCounter) Reset() {
	sw.mu.Lock()
	defer sw.mu.Unlock()

	for i := range sw.buckets {
		sw.buckets[i] = 0
	}
	sw.current = 0
	sw.lastUpdate = sw.now()
}

func (sw *SlidingWindowCounter) sum() int64 {
	var total int64
	for _, c := range sw.buckets {
		total += c
	}
	return total
}

// advance rotates expired buckets out. Must be called with lock held.
func (sw *SlidingWindowCounter) advance() {
	now := sw.now()
	elapsed := int(now.Sub(sw.lastUpdate) / sw.bucketSize)
	if elapsed <= 0 {
		return
	}

	if elapsed >= sw.numBuckets {
		for i := range sw.buckets {
			sw.buckets[i] = 0
		}
		sw.current = 0
	} else {
		for i := 0; i < elapsed; i++ {
			sw.current = (sw.current + 1) % sw.numBuckets
			sw.buckets[sw.current] = 0
		}
	}
	// Keep lastUpdate aligned to bucket boundaries so partial buckets are not lost.
	sw.lastUpdate = sw.lastUpdate.Add(time.Duration(elapsed) * sw.bucketSize)
}

// SlidingWindowStore keeps one SlidingWindowCounter per key, for per-identity
// signal counts.
//
//	store := NewSlidingWindowStore(15*time.Minute, 15, 100000)
//	store.Increment("u1")
//	n := store.Count("u1")
type SlidingWindowStore struct {
	mu         sync.RWMutex
	counters   map[string]*storeEntry
	window     time.Duration
	numBuckets int
	maxKeys    int
	now        func() time.Time
}

type storeEntry struct {
	counter  *SlidingWindowCounter
	lastSeen time.Time
}

// NewSlidingWindowStore creates a store. maxKeys bounds memory (0 = unlimited);
// at capacity the least recently incremented key is evicted.
func NewSlidingWindowStore(window time.Duration, numBuckets, maxKeys int) *SlidingWindowStore {
	return &SlidingWindowStore{
		counters:   make(map[string]*storeEntry),
		window:     window,
		numBuckets: numBuckets,
		maxKeys:    maxKeys,
		now:        time.Now,
	}
}

// SetClock replaces the time source. Intended for tests; call before use.
func (s *SlidingWindowStore) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

// Window returns the rolling window length.
func (s *SlidingWindowStore) Window() time.Duration {
	return s.window
}

// Increment adds 1 to key and returns the new window total.
func (s *SlidingWindowStore) Increment(key string) int64 {
	return s.IncrementBy(key, 1)
}

// IncrementBy adds delta to key and returns the new window total.
func (s *SlidingWindowStore) IncrementBy(key string, delta int64) int64 {
	s.mu.Lock()
	e, ok := s.counters[key]
	if !ok {
		if s.maxKeys > 0 && len(s.counters) >= s.maxKeys {
			s.evictOldest()
		}
		e = &storeEntry{counter: newSlidingWindowCounter(s.window, s.numBuckets, s.now)}
		s.counters[key] = e
	}
	e.lastSeen = s.now()
	s.mu.Unlock()

	return e.counter.Increment(delta)
}

// Count returns the window total for key.
func (s *SlidingWindowStore) Count(key string) int64 {
	s.mu.RLock()
	e, ok := s.counters[key]
	s.mu.RUnlock()

	if !ok {
		return 0
	}
	return e.counter.Count()
}

// Remove drops key.
func (s *SlidingWindowStore) Remove(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.counters, key)
}

// Len returns the number of tracked keys.
func (s *SlidingWindowStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.counters)
}

// CleanupInactive removes counters with nothing left in the window and
// returns how many were removed.
func (s *SlidingWindowStore) CleanupInactive() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for key, e := range s.counters {
		if e.counter.Count() == 0 {
			delete(s.counters, key)
			removed++
		}
	}
	return removed
}

// evictOldest removes the least recently incremented key. Must be called with lock held.
func (s *SlidingWindowStore) evictOldest() {
	var oldestKey string
	var oldest time.Time
	for key, e := range s.counters {
		if oldestKey == "" || e.lastSeen.Before(oldest) {
			oldestKey, oldest = key, e.lastSeen
		}
	}
	if oldestKey != "" {
		delete(s.counters, oldestKey)
	}
}
