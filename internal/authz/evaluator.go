// Pinteya E-commerce - Enterprise Admin Security Pipeline
// Copyright 2026 The Pinteya E-commerce Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/SantiagoXOR/pinteya-ecommerce-sub017

package authz

import (
	"context"
	"errors"
	"time"

	"github.com/SantiagoXOR/pinteya-ecommerce-sub017/internal/secerr"
)

// Evaluator errors
var (
	// ErrUnknownRole is the reason recorded when a role outside the closed set is seen.
	ErrUnknownRole = errors.New("unknown role")

	// ErrMissingCapability is the reason for an authorization denial.
	ErrMissingCapability = errors.New("missing required capability")
)

// AuthorizeInput is everything the evaluator needs about a principal.
type AuthorizeInput struct {
	UserID    string
	TenantID  string
	SessionID string
	// Role is the identity provider's role string.
	Role string
	// Grants narrows the role defaults when non-nil.
	Grants      []string
	Revocations []string
	IssuedAt    time.Time
	ExpiresAt   time.Time
	Elevated    bool
}

// Evaluator resolves and authorizes principals.
type Evaluator struct {
	enforcer  *Enforcer
	anomalies *AnomalyTracker
}

// NewEvaluator creates an evaluator. anomalies may be nil, in which case the
// security level is the role baseline.
func NewEvaluator(enforcer *Enforcer, anomalies *AnomalyTracker) *Evaluator {
	return &Evaluator{enforcer: enforcer, anomalies: anomalies}
}

// Resolve computes the AuthContext for in without checking any requirement.
func (e *Evaluator) Resolve(_ context.Context, in AuthorizeInput) (*AuthContext, error) {
	role, _ := ParseRole(in.Role)

	candidates := in.Grants
	if candidates == nil {
		candidates = defaultPermissions[role]
	}
	revoked := make(map[string]struct{}, len(in.Revocations))
	for _, r := range in.Revocations {
		revoked[r] = struct{}{}
	}

	effective := make([]string, 0, len(candidates))
	for _, c := range candidates {
		if _, ok := revoked[c]; ok {
			continue
		}
		allowed, err := e.enforcer.Allows(role, c)
		if err != nil {
			return nil, secerr.Wrap(secerr.CodeAuthUnavailable, "policy evaluation failed", err)
		}
		if allowed {
			effective = append(effective, c)
		}
	}

	return NewAuthContext(ContextParams{
		UserID:      in.UserID,
		TenantID:    in.TenantID,
		Role:        role,
		Permissions: effective,
		Signals:     e.anomalies.Count(in.UserID),
		SessionID:   in.SessionID,
		IssuedAt:    in.IssuedAt,
		ExpiresAt:   in.ExpiresAt,
		Elevated:    in.Elevated,
	}), nil
}

// Authorize resolves in and requires every capability in required.
func (e *Evaluator) Authorize(ctx context.Context, in AuthorizeInput, required ...string) (*AuthContext, error) {
	ac, err := e.Resolve(ctx, in)
	if err != nil {
		return nil, err
	}
	if err := e.Require(ac, required...); err != nil {
		return nil, err
	}
	return ac, nil
}

// Require returns INSUFFICIENT_PERMISSIONS naming the first missing
// capability unless ac holds all of required. A context with an unknown role
// is refused even when nothing is required.
func (e *Evaluator) Require(ac *AuthContext, required ...string) error {
	if ac == nil {
		return secerr.Wrap(secerr.CodeInsufficientPermissions, "no authorization context", ErrMissingCapability)
	}
	if !ac.Role().Valid() {
		return secerr.Wrap(secerr.CodeInsufficientPermissions, "unknown role "+string(ac.Role()), ErrUnknownRole).
			WithDetail("role", string(ac.Role()))
	}
	missing, ok := ac.Missing(required...)
	if !ok {
		return nil
	}
	return secerr.Wrap(secerr.CodeInsufficientPermissions, "missing capability "+missing, ErrMissingCapability).
		WithDetail("capability", missing).
		WithDetail("role", string(ac.Role()))
}

// Bind returns a copy of a cached context bound to the current session, with
// the security level re-derived from current signals.
func (e *Evaluator) Bind(ac *AuthContext, sessionID string, issuedAt, expiresAt time.Time) *AuthContext {
	return ac.withSession(sessionID, issuedAt, expiresAt, e.anomalies.Count(ac.UserID()))
}

// RecordSignal counts a signal for identity. See AnomalyTracker.Record.
func (e *Evaluator) RecordSignal(identity string, s Signal) (int, bool) {
	if e.anomalies == nil {
		return 0, false
	}
	return e.anomalies.Record(identity, s)
}

// Anomalies returns the tracker, or nil.
func (e *Evaluator) Anomalies() *AnomalyTracker {
	return e.anomalies
}
