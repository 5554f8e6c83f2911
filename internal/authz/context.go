// Pinteya E-commerce - Enterprise Admin Security Pipeline
// Copyright 2026 The Pinteya E-commerce Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/SantiagoXOR/pinteya-ecommerce-sub017

package authz

import (
	"context"
	"sort"
	"time"
)

// SecurityLevel is the derived sensitivity of a principal.
type SecurityLevel int

const (
	SecurityLow SecurityLevel = iota
	SecurityMedium
	SecurityHigh
	SecurityCritical
)

func (l SecurityLevel) String() string {
	switch l {
	case SecurityLow:
		return "low"
	case SecurityMedium:
		return "medium"
	case SecurityHigh:
		return "high"
	case SecurityCritical:
		return "critical"
	default:
		return "unknown"
	}
}

// MarshalText renders the level by name.
func (l SecurityLevel) MarshalText() ([]byte, error) {
	return []byte(l.String()), nil
}

// baselineLevel is the security level of a role with no recent signals.
func baselineLevel(r Role) SecurityLevel {
	switch r {
	case RoleSupport:
		return SecurityMedium
	case RoleAdmin:
		return SecurityHigh
	case RoleSuperAdmin:
		return SecurityCritical
	default:
		return SecurityLow
	}
}

// ComputeSecurityLevel derives the level from the role and recent signal count.
func ComputeSecurityLevel(r Role, signals int) SecurityLevel {
	level := baselineLevel(r)
	switch {
	case signals >= EscalateTwoThreshold:
		level += 2
	case signals >= EscalateOneThreshold:
		level++
	}
	if level > SecurityCritical {
		level = SecurityCritical
	}
	return level
}

// AuthContext is the resolved, request-scoped principal. It is immutable:
// all fields are unexported and accessors return copies.
type AuthContext struct {
	userID        string
	tenantID      string
	role          Role
	permissions   map[string]struct{}
	securityLevel SecurityLevel
	sessionID     string
	issuedAt      time.Time
	expiresAt     time.Time
	elevated      bool
}

// ContextParams are the inputs of NewAuthContext.
type ContextParams struct {
	UserID      string
	TenantID    string
	Role        Role
	Permissions []string
	Signals     int
	SessionID   string
	IssuedAt    time.Time
	ExpiresAt   time.Time
	Elevated    bool
}

// NewAuthContext builds a context. Permissions outside the role defaults are
// dropped and elevation is ignored for non-administrative roles.
func NewAuthContext(p ContextParams) *AuthContext {
	ceiling := make(map[string]struct{})
	for _, c := range defaultPermissions[p.Role] {
		ceiling[c] = struct{}{}
	}
	perms := make(map[string]struct{}, len(p.Permissions))
	for _, c := range p.Permissions {
		if _, ok := ceiling[c]; ok {
			perms[c] = struct{}{}
		}
	}
	return &AuthContext{
		userID:        p.UserID,
		tenantID:      p.TenantID,
		role:          p.Role,
		permissions:   perms,
		securityLevel: ComputeSecurityLevel(p.Role, p.Signals),
		sessionID:     p.SessionID,
		issuedAt:      p.IssuedAt,
		expiresAt:     p.ExpiresAt,
		elevated:      p.Elevated && p.Role.IsAdministrative(),
	}
}

func (a *AuthContext) UserID() string               { return a.userID }
func (a *AuthContext) TenantID() string             { return a.tenantID }
func (a *AuthContext) Role() Role                   { return a.role }
func (a *AuthContext) SecurityLevel() SecurityLevel { return a.securityLevel }
func (a *AuthContext) SessionID() string            { return a.sessionID }
func (a *AuthContext) IssuedAt() time.Time          { return a.issuedAt }
func (a *AuthContext) ExpiresAt() time.Time         { return a.expiresAt }

// Elevated reports an explicit administrative elevation.
func (a *AuthContext) Elevated() bool { return a.elevated }

// Has reports whether the context holds capability.
func (a *AuthContext) Has(capability string) bool {
	_, ok := a.permissions[capability]
	return ok
}

// Permissions returns a sorted copy of the permission set.
func (a *AuthContext) Permissions() []string {
	out := make([]string, 0, len(a.permissions))
	for p := range a.permissions {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

// Missing returns the first required capability not held, in argument order.
func (a *AuthContext) Missing(required ...string) (string, bool) {
	for _, r := range required {
		if !a.Has(r) {
			return r, true
		}
	}
	return "", false
}

// withSession returns a copy bound to a session and re-derived security level.
func (a *AuthContext) withSession(sessionID string, issuedAt, expiresAt time.Time, signals int) *AuthContext {
	cp := *a
	cp.sessionID = sessionID
	cp.issuedAt = issuedAt
	cp.expiresAt = expiresAt
	cp.securityLevel = ComputeSecurityLevel(a.role, signals)
	return &cp
}

type contextKey struct{}

// WithContext stores ac in ctx.
func WithContext(ctx context.Context, ac *AuthContext) context.Context {
	return context.WithValue(ctx, contextKey{}, ac)
}

// FromContext returns the AuthContext stored by WithContext.
func FromContext(ctx context.Context) (*AuthContext, bool) {
	ac, ok := ctx.Value(contextKey{}).(*AuthContext)
	return ac, ok && ac != nil
}
