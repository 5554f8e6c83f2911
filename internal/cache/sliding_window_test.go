// Pinteya E-commerce - Enterprise Admin Security Pipeline
// Copyright 2026 The Pinteya E-commerce Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/SantiagoXOR/pinteya-ecommerce-sub017

package cache

import (
	"fmt"
	"sync"
	"testing"
	"time"
)

// testClock is a manually advanced clock shared by the cache tests.
type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func TestSlidingWindowCounter_BasicOperations(t *testing.T) {
	sw := NewSlidingWindowCounter(time.Minute, 10)

	if sw.Count() != 0 {
		t.Errorf("Expected initial count 0, got %d", sw.Count())
	}
	sw.Increment(1)
	if got := sw.Increment(3); got != 4 {
		t.Errorf("Increment() total = %d, want 4", got)
	}
	sw.Reset()
	if sw.Count() != 0 {
		t.Errorf("Expected count 0 after reset, got %d", sw.Count())
	}
}

func TestSlidingWindowCounter_Expiration(t *testing.T) {
	clock := newTestClock()
	sw := newSlidingWindowCounter(10*time.Second, 10, clock.Now)

	sw.Increment(5)
	clock.Advance(6 * time.Second)
	sw.Increment(2)

	if got := sw.Count(); got != 7 {
		t.Errorf("Count() = %d, want 7", got)
	}

	// The first increment's bucket rolls out after the full window.
	clock.Advance(5 * time.Second)
	if got := sw.Count(); got != 2 {
		t.Errorf("Count() after partial expiry = %d, want 2", got)
	}

	clock.Advance(10 * time.Second)
	if got := sw.Count(); got != 0 {
		t.Errorf("Count() after full expiry = %d, want 0", got)
	}
}

func TestSlidingWindowCounter_Concurrent(t *testing.T) {
	sw := NewSlidingWindowCounter(time.Minute, 10)

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 10; j++ {
				sw.Increment(1)
			}
		}()
	}
	wg.Wait()

	if got := sw.Count(); got != 1000 {
		t.Errorf("Count() = %d, want 1000", got)
	}
}

func TestSlidingWindowStore_PerKey(t *testing.T) {
	clock := newTestClock()
	s := NewSlidingWindowStore(time.Minute, 6, 0)
	s.SetClock(clock.Now)

	s.Increment("u1")
	s.Increment("u1")
	s.IncrementBy("u2", 5)

	if s.Count("u1") != 2 || s.Count("u2") != 5 || s.Count("u3") != 0 {
		t.Errorf("counts = %d/%d/%d, want 2/5/0", s.Count("u1"), s.Count("u2"), s.Count("u3"))
	}

	s.Remove("u2")
	if s.Len() != 1 {
		t.Errorf("Len() = %d, want 1", s.Len())
	}

	clock.Advance(2 * time.Minute)
	if removed := s.CleanupInactive(); removed != 1 {
		t.Errorf("CleanupInactive() = %d, want 1", removed)
	}
}

func TestSlidingWindowStore_MaxKeysEvictsLeastRecent(t *testing.T) {
	clock := newTestClock()
	s := NewSlidingWindowStore(time.Minute, 6, 3)
	s.SetClock(clock.Now)

	for i := 0; i < 3; i++ {
		s.Increment(fmt.Sprintf("u%d", i))
		clock.Advance(time.Second)
	}
	s.Increment("u0") // refresh u0
	clock.Advance(time.Second)
	s.Increment("u3")

	if s.Len() != 3 {
		t.Fatalf("Len() = %d, want 3", s.Len())
	}
	if s.Count("u1") != 0 {
		t.Error("u1 should have been evicted as least recently used")
	}
	if s.Count("u0") != 2 {
		t.Errorf("u0 = %d, want 2", s.Count("u0"))
	}
}
