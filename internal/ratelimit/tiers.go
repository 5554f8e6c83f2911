// Pinteya E-commerce - Enterprise Admin Security Pipeline
// Copyright 2026 The Pinteya E-commerce Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/SantiagoXOR/pinteya-ecommerce-sub017

package ratelimit

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/SantiagoXOR/pinteya-ecommerce-sub017/internal/config"
	"github.com/SantiagoXOR/pinteya-ecommerce-sub017/internal/metrics"
)

// Tier names a class of routes with its own budget.
type Tier string

const (
	TierAuth          Tier = "auth"
	TierAdmin         Tier = "admin"
	TierAdminMutation Tier = "admin_mutation"
)

// TierLimit is the budget of one tier.
type TierLimit struct {
	Requests int
	Window   time.Duration
}

// Tiers applies per-tier limits on top of a shared Limiter.
type Tiers struct {
	limiter Limiter
	limits  map[Tier]TierLimit
}

// NewTiers validates limits and binds them to l.
func NewTiers(l Limiter, limits map[Tier]TierLimit) (*Tiers, error) {
	if l == nil {
		return nil, fmt.Errorf("limiter is required")
	}
	for tier, lim := range limits {
		if lim.Requests <= 0 || lim.Window <= 0 {
			return nil, fmt.Errorf("tier %s: %w", tier, ErrInvalidLimit)
		}
	}
	copied := make(map[Tier]TierLimit, len(limits))
	for k, v := range limits {
		copied[k] = v
	}
	return &Tiers{limiter: l, limits: copied}, nil
}

// LimitsFromConfig converts the configured tiers.
func LimitsFromConfig(cfg *config.RateLimitConfig) map[Tier]TierLimit {
	return map[Tier]TierLimit{
		TierAuth:          {Requests: cfg.Auth.Requests, Window: cfg.Auth.Window},
		TierAdmin:         {Requests: cfg.Admin.Requests, Window: cfg.Admin.Window},
		TierAdminMutation: {Requests: cfg.AdminMutation.Requests, Window: cfg.AdminMutation.Window},
	}
}

// Limit returns the budget for tier.
func (t *Tiers) Limit(tier Tier) (TierLimit, bool) {
	lim, ok := t.limits[tier]
	return lim, ok
}

// Acquire consumes one unit of tier budget for key (a user id or client IP).
// An unconfigured tier is an error, never an implicit allow.
func (t *Tiers) Acquire(ctx context.Context, tier Tier, key string) (Decision, error) {
	lim, ok := t.limits[tier]
	if !ok {
		return Decision{}, fmt.Errorf("rate limit tier %q is not configured", tier)
	}
	d, err := t.limiter.TryAcquire(ctx, string(tier)+":"+key, lim.Requests, lim.Window)
	if err != nil {
		return Decision{}, err
	}
	metrics.RecordRateLimit(string(tier), d.Allowed)
	return d, nil
}

// ClassifyRequest picks the tier for a request.
func ClassifyRequest(method, path string) Tier {
	if strings.HasPrefix(path, "/api/v1/auth") {
		return TierAuth
	}
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions:
		return TierAdmin
	default:
		return TierAdminMutation
	}
}
