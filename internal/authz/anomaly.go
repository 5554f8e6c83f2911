// Pinteya E-commerce - Enterprise Admin Security Pipeline
// Copyright 2026 The Pinteya E-commerce Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/SantiagoXOR/pinteya-ecommerce-sub017

package authz

import (
	"time"

	"github.com/SantiagoXOR/pinteya-ecommerce-sub017/internal/cache"
)

// Signal is a security signal that feeds the security level.
type Signal string

const (
	SignalAuthFailure Signal = "auth_failure"
	SignalRateLimited Signal = "rate_limited"
)

// Thresholds for escalating the security level.
const (
	EscalateOneThreshold = 3
	EscalateTwoThreshold = 10
)

// DefaultAnomalyWindow is the rolling window for signals.
const DefaultAnomalyWindow = 15 * time.Minute

// AnomalyTracker counts recent signals per identity.
type AnomalyTracker struct {
	store *cache.SlidingWindowStore
}

// NewAnomalyTracker creates a tracker over window. maxIdentities bounds memory.
func NewAnomalyTracker(window time.Duration, maxIdentities int) *AnomalyTracker {
	if window <= 0 {
		window = DefaultAnomalyWindow
	}
	return &AnomalyTracker{store: cache.NewSlidingWindowStore(window, 15, maxIdentities)}
}

// Record counts one signal for identity (a user id, or "ip:<addr>" before the
// user is known). It reports whether this signal crossed an escalation
// threshold, which callers surface as an anomaly event.
func (t *AnomalyTracker) Record(identity string, _ Signal) (count int, crossed bool) {
	if identity == "" {
		return 0, false
	}
	n := int(t.store.Increment(identity))
	return n, n == EscalateOneThreshold || n == EscalateTwoThreshold
}

// Count returns the number of signals for identity inside the window.
func (t *AnomalyTracker) Count(identity string) int {
	if t == nil || identity == "" {
		return 0
	}
	return int(t.store.Count(identity))
}

// Cleanup drops identities with no signals left in the window.
func (t *AnomalyTracker) Cleanup() int {
	return t.store.CleanupInactive()
}

// Len returns the number of tracked identities.
func (t *AnomalyTracker) Len() int {
	return t.store.Len()
}

// SetClock replaces the time source for tests.
func (t *AnomalyTracker) SetClock(now func() time.Time) {
	t.store.SetClock(now)
}
