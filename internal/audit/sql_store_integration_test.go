// Pinteya E-commerce - Enterprise Admin Security Pipeline
// Copyright 2026 The Pinteya E-commerce Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/SantiagoXOR/pinteya-ecommerce-sub017

//go:build integration

package audit

import (
	"context"
	"testing"
	"time"

	_ "github.com/duckdb/duckdb-go/v2" // registers the "duckdb" driver

	"github.com/SantiagoXOR/pinteya-ecommerce-sub017/internal/testinfra"
)

// exerciseStore records a mixed stream through a Logger and checks that the
// chain and aggregates survive a round trip through the database.
func exerciseStore(t *testing.T, store *SQLStore) {
	t.Helper()
	ctx := context.Background()

	l := NewLogger(store, nil, Config{BatchSize: 4, FlushInterval: time.Hour, ChainKey: testChainKey})
	for i := 0; i < 10; i++ {
		_ = l.Record(ctx, &Event{
			Type:     EventTypePermissionDenied,
			ActorID:  "s1",
			Source:   Source{IP: "203.0.113.5", Origin: "https://admin.pinteya.com"},
			Metadata: map[string]string{"capability": "products_write"},
		})
	}
	if err := l.Record(ctx, &Event{Type: EventTypeRLSViolationAttempt, ActorID: "u1"}); err != nil {
		t.Fatalf("Record(critical) error = %v", err)
	}
	if err := l.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	n, err := store.Count(ctx, QueryFilter{})
	if err != nil || n != 11 {
		t.Fatalf("Count() = %d, %v; want 11", n, err)
	}
	if err := l.Verify(ctx); err != nil {
		t.Errorf("Verify() after round trip = %v", err)
	}

	s, err := Summarize(ctx, store, time.Now().Add(-time.Hour), time.Now().Add(time.Minute), 5)
	if err != nil {
		t.Fatalf("Summarize() error = %v", err)
	}
	if s.ByType[EventTypePermissionDenied] != 10 || s.BySeverity[SeverityCritical] != 1 {
		t.Errorf("Summary = %+v", s)
	}
	if len(s.TopIPs) != 1 || s.TopIPs[0].Count != 10 {
		t.Errorf("TopIPs = %v", s.TopIPs)
	}
}

func TestSQLStore_DuckDB(t *testing.T) {
	store, err := OpenSQLStore(context.Background(), DialectDuckDB, "")
	if err != nil {
		t.Fatalf("OpenSQLStore(duckdb) error = %v", err)
	}
	defer store.Close()
	exerciseStore(t, store)
}

func TestSQLStore_Postgres(t *testing.T) {
	testinfra.SkipIfNoDocker(t)
	ctx := context.Background()

	pg, err := testinfra.NewPostgresContainer(ctx, testinfra.WithTestLogger(t))
	if err != nil {
		t.Fatalf("NewPostgresContainer() error = %v", err)
	}
	defer testinfra.CleanupContainer(t, ctx, pg)

	store, err := OpenSQLStore(ctx, DialectPostgres, pg.DSN)
	if err != nil {
		t.Fatalf("OpenSQLStore(postgres) error = %v", err)
	}
	defer store.Close()
	exerciseStore(t, store)
}
