// Pinteya E-commerce - Enterprise Admin Security Pipeline
// Copyright 2026 The Pinteya E-commerce Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/SantiagoXOR/pinteya-ecommerce-sub017

package audit

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/SantiagoXOR/pinteya-ecommerce-sub017/internal/logging"
)

// =====================================================
// Test Helpers
// =====================================================

const testChainKey = "test-chain-key-0123456789abcdef0123"

func newTestLogger(t *testing.T, store Store, alerter Alerter, mutate func(*Config)) *Logger {
	t.Helper()
	cfg := DefaultConfig()
	cfg.FlushInterval = time.Hour
	cfg.RetryInitialInterval = time.Millisecond
	cfg.LogToStdout = false
	cfg.ChainKey = testChainKey
	if mutate != nil {
		mutate(&cfg)
	}
	l := NewLogger(store, alerter, cfg)
	t.Cleanup(func() { _ = l.Close() })
	return l
}

func flush(t *testing.T, l *Logger) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := l.Flush(ctx); err != nil {
		t.Fatalf("Flush() error = %v", err)
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met before deadline")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

// flakyStore fails Append while failing is set.
type flakyStore struct {
	*MemoryStore
	failing  atomic.Bool
	attempts atomic.Int32
}

func newFlakyStore() *flakyStore {
	return &flakyStore{MemoryStore: NewMemoryStore(0)}
}

func (s *flakyStore) Append(ctx context.Context, events ...*Event) error {
	s.attempts.Add(1)
	if s.failing.Load() {
		return errors.New("connection reset by peer")
	}
	return s.MemoryStore.Append(ctx, events...)
}

// recordingAlerter remembers escalated events.
type recordingAlerter struct {
	mu     sync.Mutex
	events []*Event
}

func (a *recordingAlerter) Alert(_ context.Context, e *Event, _ error) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.events = append(a.events, e)
	return nil
}

func (a *recordingAlerter) count() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.events)
}

// =====================================================
// Recording
// =====================================================

func TestLogger_RecordFillsDefaults(t *testing.T) {
	store := NewMemoryStore(100)
	l := newTestLogger(t, store, nil, nil)

	ctx := logging.ContextWithRequestID(context.Background(), "req-42")
	before := time.Now().Add(-time.Second)
	err := l.Record(ctx, &Event{
		Type:     EventTypePermissionDenied,
		ActorID:  "s1",
		Metadata: map[string]string{"capability": "products_write"},
	})
	if err != nil {
		t.Fatalf("Record() error = %v", err)
	}
	flush(t, l)

	events, err := store.Query(context.Background(), QueryFilter{})
	if err != nil {
		t.Fatal(err)
	}
	if len(events) != 1 {
		t.Fatalf("stored %d events, want 1", len(events))
	}
	e := events[0]
	if e.ID == "" || e.Seq != 1 || e.Hash == "" || e.PrevHash != "" {
		t.Errorf("identity fields = id %q seq %d hash %q prev %q", e.ID, e.Seq, e.Hash, e.PrevHash)
	}
	if e.Category != CategoryAuthorization || e.Severity != SeverityWarn {
		t.Errorf("defaults = %s/%s", e.Category, e.Severity)
	}
	if e.RequestID != "req-42" {
		t.Errorf("RequestID = %q, want req-42", e.RequestID)
	}
	if e.Timestamp.Before(before) || e.Timestamp.Location() != time.UTC {
		t.Errorf("Timestamp = %v", e.Timestamp)
	}
	if e.Metadata["capability"] != "products_write" {
		t.Errorf("Metadata = %v", e.Metadata)
	}
}

func TestLogger_RecordNil(t *testing.T) {
	l := newTestLogger(t, NewMemoryStore(10), nil, nil)
	if err := l.Record(context.Background(), nil); !errors.Is(err, ErrNilEvent) {
		t.Errorf("Record(nil) = %v, want ErrNilEvent", err)
	}
}

func TestLogger_RecordCopiesEvent(t *testing.T) {
	store := NewMemoryStore(10)
	l := newTestLogger(t, store, nil, nil)

	e := &Event{Type: EventTypeAuthFailure, Metadata: map[string]string{"reason": "expired"}}
	_ = l.Record(context.Background(), e)
	e.Metadata["reason"] = "tampered"
	flush(t, l)

	events, _ := store.Query(context.Background(), QueryFilter{})
	if events[0].Metadata["reason"] != "expired" {
		t.Error("Record must not retain the caller's event")
	}
	if e.ID != "" {
		t.Error("Record must not mutate the caller's event")
	}
}

func TestLogger_BatchSizeTriggersWrite(t *testing.T) {
	store := NewMemoryStore(100)
	l := newTestLogger(t, store, nil, func(c *Config) { c.BatchSize = 5 })

	for i := 0; i < 4; i++ {
		_ = l.Record(context.Background(), &Event{Type: EventTypeRLSAccess})
	}
	time.Sleep(20 * time.Millisecond)
	if store.Len() != 0 {
		t.Fatalf("partial batch written early: %d events", store.Len())
	}

	_ = l.Record(context.Background(), &Event{Type: EventTypeRLSAccess})
	waitFor(t, func() bool { return store.Len() == 5 })
}

func TestLogger_FlushIntervalTriggersWrite(t *testing.T) {
	store := NewMemoryStore(100)
	l := newTestLogger(t, store, nil, func(c *Config) { c.FlushInterval = 20 * time.Millisecond })

	_ = l.Record(context.Background(), &Event{Type: EventTypeAuthSuccess})
	waitFor(t, func() bool { return store.Len() == 1 })
}

func TestLogger_CancelledContextStillRecorded(t *testing.T) {
	store := NewMemoryStore(100)
	l := newTestLogger(t, store, nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := l.Record(ctx, &Event{Type: EventTypeRateLimited, ActorID: "u1"}); err != nil {
		t.Fatalf("Record() error = %v", err)
	}
	if err := l.Record(ctx, &Event{Type: EventTypeRLSViolationAttempt, ActorID: "u1"}); err != nil {
		t.Fatalf("Record(critical) error = %v", err)
	}
	flush(t, l)

	if n, _ := store.Count(context.Background(), QueryFilter{ActorID: "u1"}); n != 2 {
		t.Errorf("stored %d events, want 2", n)
	}
}

func TestLogger_CriticalBypassesBatch(t *testing.T) {
	store := NewMemoryStore(100)
	l := newTestLogger(t, store, nil, nil)

	_ = l.Record(context.Background(), &Event{Type: EventTypeAuthSuccess})
	if err := l.Record(context.Background(), &Event{Type: EventTypeRLSViolationAttempt}); err != nil {
		t.Fatalf("Record() error = %v", err)
	}

	// No flush: only the critical event is written.
	events, _ := store.Query(context.Background(), QueryFilter{})
	if len(events) != 1 || events[0].Type != EventTypeRLSViolationAttempt {
		t.Fatalf("stored = %+v, want only the critical event", events)
	}
	if events[0].Severity != SeverityCritical {
		t.Errorf("Severity = %s, want critical", events[0].Severity)
	}
}

func TestLogger_CriticalFailureEscalatesAndParks(t *testing.T) {
	store := newFlakyStore()
	store.failing.Store(true)
	alerter := &recordingAlerter{}
	l := newTestLogger(t, store, alerter, func(c *Config) { c.CriticalRetries = 2 })

	err := l.Record(context.Background(), &Event{Type: EventTypeRLSViolationAttempt, ActorID: "u1"})
	if !errors.Is(err, ErrDeadLettered) {
		t.Fatalf("Record() error = %v, want ErrDeadLettered", err)
	}
	if got := store.attempts.Load(); got != 3 {
		t.Errorf("attempts = %d, want 3 (first try + 2 retries)", got)
	}
	if alerter.count() != 1 {
		t.Errorf("alerts = %d, want 1", alerter.count())
	}
	if l.DeadLetterLen() != 1 {
		t.Fatalf("DeadLetterLen() = %d, want 1", l.DeadLetterLen())
	}

	// Still failing: the flush keeps it parked.
	flush(t, l)
	if l.DeadLetterLen() != 1 {
		t.Fatalf("DeadLetterLen() after failed flush = %d, want 1", l.DeadLetterLen())
	}

	store.failing.Store(false)
	flush(t, l)
	if l.DeadLetterLen() != 0 {
		t.Errorf("DeadLetterLen() after recovery = %d, want 0", l.DeadLetterLen())
	}
	if store.Len() != 1 {
		t.Errorf("stored %d events, want 1", store.Len())
	}
	if err := l.Verify(context.Background()); err != nil {
		t.Errorf("Verify() error = %v", err)
	}
}

func TestLogger_FailedBatchIsParked(t *testing.T) {
	store := newFlakyStore()
	store.failing.Store(true)
	l := newTestLogger(t, store, nil, nil)

	for i := 0; i < 3; i++ {
		_ = l.Record(context.Background(), &Event{Type: EventTypePermissionDenied})
	}
	flush(t, l)
	if l.DeadLetterLen() != 3 {
		t.Fatalf("DeadLetterLen() = %d, want 3", l.DeadLetterLen())
	}

	store.failing.Store(false)
	_ = l.Record(context.Background(), &Event{Type: EventTypeAuthSuccess})
	flush(t, l)
	if store.Len() != 4 {
		t.Errorf("stored %d events, want 4", store.Len())
	}
	if err := l.Verify(context.Background()); err != nil {
		t.Errorf("Verify() error = %v", err)
	}
}

func TestLogger_DeadLetterLimitKeepsCritical(t *testing.T) {
	store := newFlakyStore()
	store.failing.Store(true)
	l := newTestLogger(t, store, &recordingAlerter{}, func(c *Config) {
		c.DeadLetterLimit = 2
		c.CriticalRetries = 0
	})

	_ = l.Record(context.Background(), &Event{Type: EventTypeRLSViolationAttempt})
	for i := 0; i < 5; i++ {
		_ = l.Record(context.Background(), &Event{Type: EventTypeRateLimited})
	}
	flush(t, l)

	l.deadMu.Lock()
	defer l.deadMu.Unlock()
	if len(l.dead) != 2 {
		t.Fatalf("dead letters = %d, want 2", len(l.dead))
	}
	if !l.dead[0].IsCritical() {
		t.Error("critical event must survive the dead-letter limit")
	}
}

// =====================================================
// Chain verification
// =====================================================

// countingStore records every Query and the events it returned. It does not
// evict, so a gap after the verified head is a broken chain.
type countingStore struct {
	Store
	mu      sync.Mutex
	filters []QueryFilter
	scanned int
}

func (s *countingStore) Query(ctx context.Context, filter QueryFilter) ([]*Event, error) {
	events, err := s.Store.Query(ctx, filter)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.filters = append(s.filters, filter)
	s.scanned += len(events)
	return events, err
}

func (s *countingStore) reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.filters = nil
	s.scanned = 0
}

func recordN(t *testing.T, l *Logger, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		if err := l.Record(context.Background(), &Event{Type: EventTypeRateLimited}); err != nil {
			t.Fatalf("Record() error = %v", err)
		}
	}
	flush(t, l)
}

func TestLogger_VerifyIsIncremental(t *testing.T) {
	store := &countingStore{Store: NewMemoryStore(0)}
	l := newTestLogger(t, store, nil, func(c *Config) { c.VerifyPageSize = 2 })
	ctx := context.Background()

	recordN(t, l, 5)
	store.reset()
	if err := l.Verify(ctx); err != nil {
		t.Fatalf("first Verify() error = %v", err)
	}
	if store.scanned != 5 {
		t.Errorf("first tick scanned %d events, want 5", store.scanned)
	}
	for _, f := range store.filters {
		if f.Limit != 2 {
			t.Errorf("query limit = %d, want 2", f.Limit)
		}
	}

	recordN(t, l, 3)
	store.reset()
	if err := l.Verify(ctx); err != nil {
		t.Fatalf("second Verify() error = %v", err)
	}
	if store.scanned != 3 {
		t.Errorf("second tick scanned %d events, want only the 3 new ones", store.scanned)
	}
	if len(store.filters) == 0 || store.filters[0].AfterSeq != 5 {
		t.Errorf("second tick started at %+v, want AfterSeq 5", store.filters)
	}

	store.reset()
	if err := l.Verify(ctx); err != nil {
		t.Fatalf("idle Verify() error = %v", err)
	}
	if store.scanned != 0 {
		t.Errorf("idle tick scanned %d events, want 0", store.scanned)
	}
}

func TestLogger_VerifyDetectsBreaksAfterCheckpoint(t *testing.T) {
	tests := []struct {
		name   string
		inject func(head *Event) *Event
	}{
		{
			name: "gap",
			inject: func(head *Event) *Event {
				return &Event{Seq: head.Seq + 2, PrevHash: head.Hash, Type: EventTypeAuthFailure}
			},
		},
		{
			name: "foreign previous hash",
			inject: func(head *Event) *Event {
				return &Event{Seq: head.Seq + 1, PrevHash: "forged", Type: EventTypeAuthFailure}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			inner := NewMemoryStore(0)
			store := &countingStore{Store: inner}
			l := newTestLogger(t, store, nil, nil)
			ctx := context.Background()

			recordN(t, l, 3)
			if err := l.Verify(ctx); err != nil {
				t.Fatalf("Verify() error = %v", err)
			}

			tail, err := inner.Query(ctx, QueryFilter{Limit: 1, Descending: true})
			if err != nil || len(tail) != 1 {
				t.Fatalf("tail: %v", err)
			}
			if err := inner.Append(ctx, tt.inject(tail[0])); err != nil {
				t.Fatal(err)
			}

			err = l.Verify(ctx)
			if !errors.Is(err, ErrChainBroken) {
				t.Errorf("Verify() error = %v, want ErrChainBroken", err)
			}
		})
	}
}

func TestLogger_VerifyFollowsEvictingStore(t *testing.T) {
	store := NewMemoryStore(10)
	l := newTestLogger(t, store, nil, func(c *Config) { c.VerifyPageSize = 4 })
	ctx := context.Background()

	recordN(t, l, 3)
	if err := l.Verify(ctx); err != nil {
		t.Fatalf("Verify() error = %v", err)
	}
	// Enough events to evict the verified head.
	recordN(t, l, 20)
	if err := l.Verify(ctx); err != nil {
		t.Errorf("Verify() after eviction error = %v", err)
	}
}

// =====================================================
// Shutdown
// =====================================================

func TestLogger_CloseDrains(t *testing.T) {
	store := NewMemoryStore(100)
	l := NewLogger(store, nil, Config{BatchSize: 50, FlushInterval: time.Hour, ChainKey: testChainKey})

	for i := 0; i < 10; i++ {
		_ = l.Record(context.Background(), &Event{Type: EventTypeRLSAccess})
	}
	if err := l.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if store.Len() != 10 {
		t.Errorf("stored %d events after Close, want 10", store.Len())
	}

	// Recording after Close writes synchronously.
	_ = l.Record(context.Background(), &Event{Type: EventTypeAuthSuccess})
	if store.Len() != 11 {
		t.Errorf("stored %d events after late Record, want 11", store.Len())
	}
	if err := l.Close(); err != nil {
		t.Errorf("second Close() error = %v", err)
	}
}

func TestLogger_CloseReportsUnpersisted(t *testing.T) {
	store := newFlakyStore()
	store.failing.Store(true)
	l := NewLogger(store, nil, Config{FlushInterval: time.Hour, ChainKey: testChainKey})

	_ = l.Record(context.Background(), &Event{Type: EventTypeAuthFailure})
	if err := l.Close(); err == nil {
		t.Error("Close() should report events left in the dead-letter buffer")
	}
}

func TestLogger_ConcurrentRecord(t *testing.T) {
	store := NewMemoryStore(5000)
	l := NewLogger(store, nil, Config{BatchSize: 25, BufferSize: 100, FlushInterval: 10 * time.Millisecond, ChainKey: testChainKey})

	var wg sync.WaitGroup
	for g := 0; g < 50; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < 20; i++ {
				typ := EventTypeRLSAccess
				if i%10 == 0 {
					typ = EventTypeRLSViolationAttempt
				}
				_ = l.Record(context.Background(), &Event{Type: typ})
			}
		}(g)
	}
	wg.Wait()
	if err := l.Close(); err != nil {
		t.Fatal(err)
	}

	if store.Len() != 1000 {
		t.Errorf("stored %d events, want 1000", store.Len())
	}
	if err := l.Verify(context.Background()); err != nil {
		t.Errorf("Verify() error = %v", err)
	}
}

// =====================================================
// Helpers and Summary
// =====================================================

func TestLogger_LogHelpers(t *testing.T) {
	store := NewMemoryStore(100)
	l := newTestLogger(t, store, nil, nil)
	ctx := context.Background()
	src := Source{IP: "203.0.113.7"}

	_ = l.LogPermissionDenied(ctx, "s1", "support", "products_write", src)
	_ = l.LogGrantChanged(ctx, "admin-1", "u9", nil, []string{"orders_refund"}, src)
	flush(t, l)

	denied, _ := store.Query(ctx, QueryFilter{Types: []EventType{EventTypePermissionDenied}})
	if len(denied) != 1 || denied[0].Metadata["capability"] != "products_write" || denied[0].Role != "support" {
		t.Errorf("permission_denied = %+v", denied)
	}
	changed, _ := store.Query(ctx, QueryFilter{Types: []EventType{EventTypeGrantChanged}})
	if len(changed) != 1 || changed[0].Metadata["grants"] != "<unchanged>" || changed[0].Metadata["revocations"] != "orders_refund" {
		t.Errorf("grant_changed = %+v", changed)
	}
}

func TestLogger_Summary(t *testing.T) {
	store := NewMemoryStore(100)
	l := newTestLogger(t, store, nil, nil)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_ = l.Record(ctx, &Event{Type: EventTypeAuthFailure, ActorID: "mallory", Source: Source{IP: "198.51.100.1"}})
	}
	_ = l.Record(ctx, &Event{Type: EventTypeRateLimited, ActorID: "bob", Source: Source{IP: "198.51.100.2"}})
	_ = l.Record(ctx, &Event{Type: EventTypeAuthSuccess, Source: Source{IP: "198.51.100.2"}})
	_ = l.Record(ctx, &Event{Type: EventTypeAnomaly, ActorID: "mallory", Timestamp: time.Now().Add(-48 * time.Hour)})
	flush(t, l)

	s, err := l.Summary(ctx, 24*time.Hour, 1)
	if err != nil {
		t.Fatalf("Summary() error = %v", err)
	}
	if s.Total != 5 {
		t.Errorf("Total = %d, want 5", s.Total)
	}
	if s.ByType[EventTypeAuthFailure] != 3 || s.ByType[EventTypeAnomaly] != 0 {
		t.Errorf("ByType = %v", s.ByType)
	}
	if s.BySeverity[SeverityWarn] != 4 || s.BySeverity[SeverityInfo] != 1 {
		t.Errorf("BySeverity = %v", s.BySeverity)
	}
	if len(s.TopActors) != 1 || s.TopActors[0] != (Bucket{Key: "mallory", Count: 3}) {
		t.Errorf("TopActors = %v", s.TopActors)
	}
	if len(s.TopIPs) != 1 || s.TopIPs[0] != (Bucket{Key: "198.51.100.1", Count: 3}) {
		t.Errorf("TopIPs = %v", s.TopIPs)
	}
}
