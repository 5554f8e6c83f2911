// Pinteya E-commerce - Enterprise Admin Security Pipeline
// Copyright 2026 The Pinteya E-commerce Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/SantiagoXOR/pinteya-ecommerce-sub017

package main

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"

	"github.com/SantiagoXOR/pinteya-ecommerce-sub017/internal/audit"
	"github.com/SantiagoXOR/pinteya-ecommerce-sub017/internal/config"
)

func TestCloserStack_ReverseOrder(t *testing.T) {
	var order []string
	var c closerStack
	c.push("first", func() error { order = append(order, "first"); return nil })
	c.push("second", func() error { order = append(order, "second"); return errors.New("already closed") })
	c.push("third", func() error { order = append(order, "third"); return nil })

	c.closeAll()

	if len(order) != 3 || order[0] != "third" || order[2] != "first" {
		t.Errorf("close order = %v, want third, second, first", order)
	}
}

func devConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := &config.Config{}
	cfg.Server.Environment = "development"
	cfg.Security.Token = config.TokenConfig{
		Issuer:        "https://auth.pinteya.test",
		Audience:      "pinteya-admin",
		HMACKeys:      []string{"k1:0123456789abcdef0123456789abcdef"},
		ClockSkew:     30 * time.Second,
		SessionCookie: "pinteya_session",
	}
	cfg.Security.Origin.CSRFSecret = "fedcba9876543210fedcba9876543210"
	cfg.Security.RateLimit = config.RateLimitConfig{
		Backend:       config.BackendLocal,
		Auth:          config.RateTier{Requests: 10, Window: 10 * time.Second},
		Admin:         config.RateTier{Requests: 100, Window: time.Minute},
		AdminMutation: config.RateTier{Requests: 10, Window: time.Minute},
		IdleTTL:       time.Minute,
	}
	cfg.Security.Cache = config.CacheConfig{TTL: time.Minute, MaxEntries: 100, VersionStore: config.BackendLocal}
	cfg.Security.AnomalyWindow = time.Minute
	cfg.Audit = config.AuditConfig{Store: "memory", BatchSize: 10, BufferSize: 100, FlushInterval: time.Second}
	return cfg
}

func TestInitDevelopmentStack(t *testing.T) {
	cfg := devConfig(t)
	ctx := context.Background()

	var closers closerStack
	defer closers.closeAll()

	auditLogger, err := initAudit(ctx, cfg, &closers)
	if err != nil {
		t.Fatalf("initAudit: %v", err)
	}
	defer auditLogger.Close()

	store, err := initStorage(ctx, cfg, &closers)
	if err != nil {
		t.Fatalf("initStorage: %v", err)
	}
	if store.sql != nil {
		t.Error("development stack opened a SQL client without a DSN")
	}

	sec, err := initSecurity(ctx, cfg, nil, auditLogger, store.overlay)
	if err != nil {
		t.Fatalf("initSecurity: %v", err)
	}
	tasks := sec.sweepTasks(cfg)
	if len(tasks) != 3 {
		t.Fatalf("sweep tasks = %d, want 3", len(tasks))
	}
	for _, task := range tasks {
		if n := task.Sweep(); n != 0 {
			t.Errorf("%s swept %d entries from an idle stack", task.Name, n)
		}
	}

	checks := healthChecks(auditLogger, nil, store)
	if len(checks) != 1 {
		t.Errorf("checks = %d, want only audit", len(checks))
	}
}

func TestInitStorage_RequiresDSNOutsideDevelopment(t *testing.T) {
	cfg := devConfig(t)
	cfg.Server.Environment = "production"

	var closers closerStack
	defer closers.closeAll()
	if _, err := initStorage(context.Background(), cfg, &closers); err == nil {
		t.Fatal("expected an error without DATABASE_DSN in production")
	}
}

func TestHealthChecks_Redis(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := devConfig(t)
	cfg.Security.RateLimit.Backend = config.BackendRedis
	cfg.Redis.Addr = mr.Addr()

	client := newRedisClient(cfg)
	if client == nil {
		t.Fatal("redis backend selected but no client created")
	}
	defer client.Close()

	logger := audit.NewLogger(audit.NewMemoryStore(10), nil, audit.Config{})
	defer logger.Close()

	checks := healthChecks(logger, client, &storage{})
	if err := checks["redis"](context.Background()); err != nil {
		t.Errorf("redis check: %v", err)
	}
	mr.Close()
	if err := checks["redis"](context.Background()); err == nil {
		t.Error("redis check passed with the server down")
	}
}

func TestNewRedisClient_LocalBackends(t *testing.T) {
	if newRedisClient(devConfig(t)) != nil {
		t.Error("client created without a redis backend")
	}
}
