// Pinteya E-commerce - Enterprise Admin Security Pipeline
// Copyright 2026 The Pinteya E-commerce Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/SantiagoXOR/pinteya-ecommerce-sub017

package ratelimit

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/SantiagoXOR/pinteya-ecommerce-sub017/internal/config"
)

func TestTiers_IndependentBudgets(t *testing.T) {
	sw, _ := newTestWindow()
	tiers, err := NewTiers(sw, map[Tier]TierLimit{
		TierAuth:          {Requests: 1, Window: time.Minute},
		TierAdmin:         {Requests: 2, Window: time.Minute},
		TierAdminMutation: {Requests: 1, Window: time.Minute},
	})
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()

	if d, _ := tiers.Acquire(ctx, TierAuth, "u1"); !d.Allowed {
		t.Fatal("first auth request denied")
	}
	if d, _ := tiers.Acquire(ctx, TierAuth, "u1"); d.Allowed {
		t.Fatal("auth tier should be exhausted")
	}
	if d, _ := tiers.Acquire(ctx, TierAdmin, "u1"); !d.Allowed {
		t.Fatal("admin tier must not share the auth budget")
	}
	if sw.Count("auth:u1") != 1 || sw.Count("admin:u1") != 1 {
		t.Error("keys must be namespaced by tier")
	}
}

func TestTiers_UnknownTier(t *testing.T) {
	tiers, err := NewTiers(NewSlidingWindow(), map[Tier]TierLimit{TierAdmin: {Requests: 1, Window: time.Second}})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := tiers.Acquire(context.Background(), TierAuth, "u1"); err == nil {
		t.Error("unconfigured tier must be an error")
	}
}

func TestNewTiers_Invalid(t *testing.T) {
	if _, err := NewTiers(nil, nil); err == nil {
		t.Error("nil limiter accepted")
	}
	if _, err := NewTiers(NewSlidingWindow(), map[Tier]TierLimit{TierAdmin: {Requests: 0, Window: time.Second}}); err == nil {
		t.Error("zero requests accepted")
	}
}

func TestLimitsFromConfig(t *testing.T) {
	cfg := &config.RateLimitConfig{
		Auth:          config.RateTier{Requests: 10, Window: 10 * time.Second},
		Admin:         config.RateTier{Requests: 120, Window: time.Minute},
		AdminMutation: config.RateTier{Requests: 30, Window: time.Minute},
	}
	limits := LimitsFromConfig(cfg)
	if limits[TierAuth] != (TierLimit{Requests: 10, Window: 10 * time.Second}) {
		t.Errorf("auth = %+v", limits[TierAuth])
	}
	if limits[TierAdminMutation].Requests != 30 {
		t.Errorf("admin_mutation = %+v", limits[TierAdminMutation])
	}
}

func TestClassifyRequest(t *testing.T) {
	tests := []struct {
		method, path string
		want         Tier
	}{
		{http.MethodPost, "/api/v1/auth/csrf", TierAuth},
		{http.MethodGet, "/api/v1/auth/csrf", TierAuth},
		{http.MethodGet, "/api/v1/admin/products", TierAdmin},
		{http.MethodHead, "/api/v1/admin/orders", TierAdmin},
		{http.MethodPost, "/api/v1/admin/products", TierAdminMutation},
		{http.MethodDelete, "/api/v1/admin/products/1", TierAdminMutation},
	}
	for _, tt := range tests {
		if got := ClassifyRequest(tt.method, tt.path); got != tt.want {
			t.Errorf("ClassifyRequest(%s %s) = %s, want %s", tt.method, tt.path, got, tt.want)
		}
	}
}
