// Pinteya E-commerce - Enterprise Admin Security Pipeline
// Copyright 2026 The Pinteya E-commerce Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/SantiagoXOR/pinteya-ecommerce-sub017

package cache

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

// snapshot stands in for a resolved authorization context.
type snapshot struct {
	perms []string
	gen   int64
}

func newTestCache(t *testing.T, versions VersionStore) (*VersionedCache[*snapshot], *testClock) {
	t.Helper()
	c, err := New[*snapshot](versions, Config{TTL: 10 * time.Second, MaxEntries: 100})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	clock := newTestClock()
	c.now = clock.Now
	return c, clock
}

// countingResolver returns a resolver whose generation increases per call.
func countingResolver(calls *atomic.Int64, perms ...string) func(context.Context) (*snapshot, error) {
	return func(context.Context) (*snapshot, error) {
		n := calls.Add(1)
		return &snapshot{perms: perms, gen: n}, nil
	}
}

func TestVersionedCache_HitAndTTL(t *testing.T) {
	c, clock := newTestCache(t, NewLocalVersionStore())
	ctx := context.Background()
	var calls atomic.Int64
	resolve := countingResolver(&calls, "products_read")

	if _, err := c.GetOrResolve(ctx, "u1", "authz", resolve); err != nil {
		t.Fatal(err)
	}
	got, _ := c.GetOrResolve(ctx, "u1", "authz", resolve)
	if got.gen != 1 {
		t.Errorf("second read should be a hit, gen = %d", got.gen)
	}

	clock.Advance(10 * time.Second)
	got, _ = c.GetOrResolve(ctx, "u1", "authz", resolve)
	if got.gen != 2 {
		t.Errorf("expired entry must be re-resolved, gen = %d", got.gen)
	}

	stats := c.Stats()
	if stats.Hits != 1 || stats.Misses != 2 || stats.Evictions != 1 || stats.Entries != 1 {
		t.Errorf("Stats() = %+v, want hits=1 misses=2 evictions=1 entries=1", stats)
	}
}

func TestVersionedCache_ScopesAreIndependent(t *testing.T) {
	c, _ := newTestCache(t, NewLocalVersionStore())
	ctx := context.Background()
	var calls atomic.Int64

	_, _ = c.GetOrResolve(ctx, "u1", "authz", countingResolver(&calls))
	_, _ = c.GetOrResolve(ctx, "u1", "orders", countingResolver(&calls))
	if calls.Load() != 2 {
		t.Errorf("resolver calls = %d, want 2", calls.Load())
	}
}

// TestVersionedCache_InvalidateCoherence checks that after Invalidate the next
// read never returns a value resolved before the invalidation.
func TestVersionedCache_InvalidateCoherence(t *testing.T) {
	c, _ := newTestCache(t, NewLocalVersionStore())
	ctx := context.Background()

	perms := []string{"products_read", "products_write"}
	resolve := func(context.Context) (*snapshot, error) {
		return &snapshot{perms: append([]string(nil), perms...)}, nil
	}

	before, _ := c.GetOrResolve(ctx, "u1", "authz", resolve)
	if len(before.perms) != 2 {
		t.Fatalf("perms = %v", before.perms)
	}

	perms = []string{"products_read"}
	if err := c.Invalidate(ctx, "u1"); err != nil {
		t.Fatal(err)
	}

	after, _ := c.GetOrResolve(ctx, "u1", "authz", resolve)
	if len(after.perms) != 1 {
		t.Errorf("stale permissions after Invalidate: %v", after.perms)
	}
}

// TestVersionedCache_BumpFromAnotherWriter simulates a second instance bumping
// the shared version without touching this instance's LRU.
func TestVersionedCache_BumpFromAnotherWriter(t *testing.T) {
	versions := NewLocalVersionStore()
	c, _ := newTestCache(t, versions)
	ctx := context.Background()
	var calls atomic.Int64

	_, _ = c.GetOrResolve(ctx, "u1", "authz", countingResolver(&calls))
	if _, err := versions.Bump(ctx, "u1"); err != nil {
		t.Fatal(err)
	}
	got, _ := c.GetOrResolve(ctx, "u1", "authz", countingResolver(&calls))
	if got.gen != 2 {
		t.Errorf("version mismatch must be a miss, gen = %d", got.gen)
	}
	if c.Stats().Evictions != 1 {
		t.Errorf("Evictions = %d, want 1", c.Stats().Evictions)
	}
}

func TestVersionedCache_SingleflightCollapsesMisses(t *testing.T) {
	c, _ := newTestCache(t, NewLocalVersionStore())
	ctx := context.Background()

	var calls atomic.Int64
	release := make(chan struct{})
	resolve := func(context.Context) (*snapshot, error) {
		calls.Add(1)
		<-release
		return &snapshot{}, nil
	}

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := c.GetOrResolve(ctx, "u1", "authz", resolve); err != nil {
				t.Error(err)
			}
		}()
	}
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	if got := calls.Load(); got != 1 {
		t.Errorf("resolver calls = %d, want 1", got)
	}
}

func TestVersionedCache_ResolverErrorNotCached(t *testing.T) {
	c, _ := newTestCache(t, NewLocalVersionStore())
	ctx := context.Background()
	boom := errors.New("identity provider down")

	if _, err := c.GetOrResolve(ctx, "u1", "authz", func(context.Context) (*snapshot, error) {
		return nil, boom
	}); !errors.Is(err, boom) {
		t.Fatalf("error = %v, want %v", err, boom)
	}
	if c.Stats().Entries != 0 {
		t.Error("failed resolution must not be cached")
	}
}

// failingVersions always errors.
type failingVersions struct{}

func (failingVersions) Current(context.Context, string) (uint64, error) {
	return 0, errors.New("unreachable")
}

func (failingVersions) Bump(context.Context, string) (uint64, error) {
	return 0, errors.New("unreachable")
}

func TestVersionedCache_BypassWhenVersionsUnavailable(t *testing.T) {
	c, _ := newTestCache(t, failingVersions{})
	ctx := context.Background()
	var calls atomic.Int64

	for i := 0; i < 3; i++ {
		if _, err := c.GetOrResolve(ctx, "u1", "authz", countingResolver(&calls)); err != nil {
			t.Fatal(err)
		}
	}
	if calls.Load() != 3 {
		t.Errorf("resolver calls = %d, want 3 (no caching without versions)", calls.Load())
	}
	if err := c.Invalidate(ctx, "u1"); err == nil {
		t.Error("Invalidate must surface the version store failure")
	}
}

func TestVersionedCache_CapacityEviction(t *testing.T) {
	c, err := New[int](NewLocalVersionStore(), Config{MaxEntries: 2})
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()
	for _, u := range []string{"u1", "u2", "u3"} {
		_, _ = c.GetOrResolve(ctx, u, "authz", func(context.Context) (int, error) { return 1, nil })
	}
	stats := c.Stats()
	if stats.Entries != 2 || stats.Evictions != 1 {
		t.Errorf("Stats() = %+v, want entries=2 evictions=1", stats)
	}
	if c.TTL() != DefaultTTL {
		t.Errorf("TTL() = %v, want default", c.TTL())
	}
}

func TestVersionedCache_Sweep(t *testing.T) {
	c, clock := newTestCache(t, NewLocalVersionStore())
	ctx := context.Background()
	var calls atomic.Int64

	_, _ = c.GetOrResolve(ctx, "u1", "authz", countingResolver(&calls))
	clock.Advance(5 * time.Second)
	_, _ = c.GetOrResolve(ctx, "u2", "authz", countingResolver(&calls))
	clock.Advance(5 * time.Second)

	if got := c.Sweep(); got != 1 {
		t.Errorf("Sweep() = %d, want 1", got)
	}
}

func TestRedisVersionStore(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	store := NewRedisVersionStore(client)
	ctx := context.Background()

	if v, err := store.Current(ctx, "u1"); err != nil || v != 0 {
		t.Fatalf("Current() = %d, %v; want 0, nil", v, err)
	}
	if v, err := store.Bump(ctx, "u1"); err != nil || v != 1 {
		t.Fatalf("Bump() = %d, %v; want 1, nil", v, err)
	}

	// A second instance sharing Redis observes the bump.
	other := NewRedisVersionStore(client)
	if v, _ := other.Current(ctx, "u1"); v != 1 {
		t.Errorf("other instance Current() = %d, want 1", v)
	}

	mr.Close()
	if _, err := store.Current(ctx, "u1"); err == nil {
		t.Error("expected error with Redis down")
	}
}

// =====================================================
// Session revocation
// =====================================================

func TestRevocationStores(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	stores := []struct {
		name  string
		store RevocationStore
	}{
		{"local", NewLocalRevocationStore()},
		{"redis", NewRedisRevocationStore(client)},
	}

	for _, tt := range stores {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			user := "u-" + tt.name

			if at, err := tt.store.RevokedBefore(ctx, user); err != nil || !at.IsZero() {
				t.Fatalf("RevokedBefore() = %v, %v; want zero, nil", at, err)
			}

			later := time.UnixMilli(time.Now().UnixMilli())
			earlier := later.Add(-time.Hour)
			if err := tt.store.RevokeSessions(ctx, user, later); err != nil {
				t.Fatalf("RevokeSessions: %v", err)
			}
			// An older cutoff never reopens sessions.
			if err := tt.store.RevokeSessions(ctx, user, earlier); err != nil {
				t.Fatalf("RevokeSessions: %v", err)
			}
			at, err := tt.store.RevokedBefore(ctx, user)
			if err != nil {
				t.Fatalf("RevokedBefore: %v", err)
			}
			if !at.Equal(later) {
				t.Errorf("cutoff = %v, want %v", at, later)
			}
		})
	}

	mr.Close()
	if _, err := NewRedisRevocationStore(client).RevokedBefore(context.Background(), "u-redis"); err == nil {
		t.Error("expected error with Redis down")
	}
}
