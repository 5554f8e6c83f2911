// Pinteya E-commerce - Enterprise Admin Security Pipeline
// Copyright 2026 The Pinteya E-commerce Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/SantiagoXOR/pinteya-ecommerce-sub017

package identity

import (
	"context"
	"errors"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/SantiagoXOR/pinteya-ecommerce-sub017/internal/logging"
	"github.com/SantiagoXOR/pinteya-ecommerce-sub017/internal/metrics"
	"github.com/SantiagoXOR/pinteya-ecommerce-sub017/internal/secerr"
)

const (
	// DefaultTimeout bounds one identity lookup.
	DefaultTimeout = 2 * time.Second

	breakerName = "identity-provider"
)

// GuardConfig configures a GuardedProvider.
type GuardConfig struct {
	Timeout time.Duration
	// MaxFailures consecutive failures open the breaker.
	MaxFailures uint32
	// OpenTimeout is how long the breaker stays open before probing.
	OpenTimeout time.Duration
}

// DefaultGuardConfig returns default configuration.
func DefaultGuardConfig() GuardConfig {
	return GuardConfig{
		Timeout:     DefaultTimeout,
		MaxFailures: 5,
		OpenTimeout: 30 * time.Second,
	}
}

// GuardedProvider bounds a Provider with a timeout and a circuit breaker.
type GuardedProvider struct {
	next    Provider
	timeout time.Duration
	cb      *gobreaker.CircuitBreaker[*Identity]
}

// NewGuardedProvider wraps next.
func NewGuardedProvider(next Provider, cfg GuardConfig) *GuardedProvider {
	def := DefaultGuardConfig()
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}
	if cfg.MaxFailures == 0 {
		cfg.MaxFailures = def.MaxFailures
	}
	if cfg.OpenTimeout <= 0 {
		cfg.OpenTimeout = def.OpenTimeout
	}

	metrics.SetCircuitBreakerState(breakerName, 0)
	maxFailures := cfg.MaxFailures
	cb := gobreaker.NewCircuitBreaker[*Identity](gobreaker.Settings{
		Name:        breakerName,
		MaxRequests: 1,
		Timeout:     cfg.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= maxFailures
		},
		// A user the provider does not know is an answer, not an outage.
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, ErrNotFound)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logging.Warn().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).Msg("[CIRCUIT BREAKER] State transition")
			metrics.SetCircuitBreakerState(name, stateToInt(to))
		},
	})

	return &GuardedProvider{next: next, timeout: cfg.Timeout, cb: cb}
}

// Lookup implements Provider. Any failure other than ErrNotFound is returned
// as AUTH_UNAVAILABLE.
func (g *GuardedProvider) Lookup(ctx context.Context, userID string) (*Identity, error) {
	start := time.Now()
	id, err := g.cb.Execute(func() (*Identity, error) {
		ctx, cancel := context.WithTimeout(ctx, g.timeout)
		defer cancel()
		return g.next.Lookup(ctx, userID)
	})

	switch {
	case err == nil:
		metrics.RecordIdentityLookup("success", time.Since(start))
		return id, nil
	case errors.Is(err, ErrNotFound):
		metrics.RecordIdentityLookup("not_found", time.Since(start))
		return nil, err
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		metrics.RecordIdentityLookup("rejected", time.Since(start))
		return nil, secerr.Wrap(secerr.CodeAuthUnavailable, "identity provider circuit open", err)
	case errors.Is(err, context.DeadlineExceeded):
		metrics.RecordIdentityLookup("timeout", time.Since(start))
		return nil, secerr.Wrap(secerr.CodeAuthUnavailable, "identity provider timed out", err)
	default:
		metrics.RecordIdentityLookup("error", time.Since(start))
		return nil, secerr.Wrap(secerr.CodeAuthUnavailable, "identity provider unavailable", err)
	}
}

// State returns the breaker state.
func (g *GuardedProvider) State() gobreaker.State {
	return g.cb.State()
}

func stateToInt(s gobreaker.State) int {
	switch s {
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return 0
	}
}
