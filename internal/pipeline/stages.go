// Pinteya E-commerce - Enterprise Admin Security Pipeline
// Copyright 2026 The Pinteya E-commerce Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/SantiagoXOR/pinteya-ecommerce-sub017

package pipeline

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/SantiagoXOR/pinteya-ecommerce-sub017/internal/auth"
	"github.com/SantiagoXOR/pinteya-ecommerce-sub017/internal/authz"
	"github.com/SantiagoXOR/pinteya-ecommerce-sub017/internal/identity"
	"github.com/SantiagoXOR/pinteya-ecommerce-sub017/internal/metrics"
	"github.com/SantiagoXOR/pinteya-ecommerce-sub017/internal/ratelimit"
	"github.com/SantiagoXOR/pinteya-ecommerce-sub017/internal/secerr"
)

// Stage names used in metrics, logs and audit events.
const (
	StageToken     = "token"
	StageOrigin    = "origin"
	StageRate      = "rate"
	StageAuthorize = "authorize"
)

// stageFunc advances st or returns the reason it cannot.
type stageFunc func(ctx context.Context, r *http.Request, st *RequestState, required []string) error

type stage struct {
	name    string
	reached State
	run     stageFunc
}

// validateToken verifies the credential. A request already validated by an
// outer guard keeps its claims.
func (c *Composer) validateToken(ctx context.Context, r *http.Request, st *RequestState, _ []string) error {
	st.mu.Lock()
	validated := st.claims != nil
	st.mu.Unlock()
	if validated {
		return nil
	}

	raw := auth.ExtractCredential(r, c.cfg.SessionCookie)
	claims, err := c.validator.Validate(ctx, raw)
	if err != nil {
		result := "error"
		var te *auth.TokenError
		if errors.As(err, &te) {
			result = string(te.Kind)
		}
		metrics.RecordTokenValidation(result)
		return err
	}

	if err := c.checkRevocation(ctx, claims); err != nil {
		metrics.RecordTokenValidation(string(auth.KindRevoked))
		return err
	}
	metrics.RecordTokenValidation("valid")

	st.mu.Lock()
	st.claims = claims
	st.mu.Unlock()
	return nil
}

// checkRevocation rejects a credential issued at or before the user's
// logout-all cutoff. An unreadable cutoff fails closed.
func (c *Composer) checkRevocation(ctx context.Context, claims *auth.Claims) error {
	cutoff, err := c.revocations.RevokedBefore(ctx, claims.UserID())
	if err != nil {
		return secerr.Wrap(secerr.CodeAuthUnavailable, "session revocation check failed", err)
	}
	if cutoff.IsZero() {
		return nil
	}
	if claims.IssuedAt == nil || !claims.IssuedAt.Time.After(cutoff) {
		return auth.SecurityError(auth.NewRevokedError()).WithDetail("subject", claims.UserID())
	}
	return nil
}

// checkOrigin applies the origin/CSRF rules. Safe methods pass unchanged.
func (c *Composer) checkOrigin(_ context.Context, r *http.Request, st *RequestState, _ []string) error {
	st.mu.Lock()
	sessionID := st.claims.SessionID
	st.mu.Unlock()
	return c.origin.Check(r, sessionID)
}

// checkRate consumes one unit of the route tier's budget for the user. It
// runs at most once per request.
func (c *Composer) checkRate(ctx context.Context, r *http.Request, st *RequestState, _ []string) error {
	if !st.claimRate() {
		return nil
	}

	tier := ratelimit.ClassifyRequest(r.Method, r.URL.Path)
	d, err := c.tiers.Acquire(ctx, tier, st.userID())
	if err != nil {
		return secerr.Wrap(secerr.CodeAuthUnavailable, "rate limiter unavailable", err)
	}

	st.mu.Lock()
	st.tier = tier
	st.rate = d
	st.mu.Unlock()

	if !d.Allowed {
		return secerr.New(secerr.CodeRateLimited, "tier budget exhausted").
			WithRetryAfter(d.RetryAfter).
			WithDetail("tier", string(tier)).
			WithDetail("limit", strconv.Itoa(d.Limit))
	}
	return nil
}

// authorize resolves the user's context through the cache and requires
// every capability in required.
func (c *Composer) authorize(ctx context.Context, _ *http.Request, st *RequestState, required []string) error {
	st.mu.Lock()
	claims := st.claims
	st.mu.Unlock()

	userID := claims.UserID()
	scope := scopeRegular
	if claims.Elevated {
		scope = scopeElevated
	}

	cached, err := c.contexts.GetOrResolve(ctx, userID, scope, func(ctx context.Context) (*authz.AuthContext, error) {
		return c.resolve(ctx, userID, claims.Elevated, st)
	})
	if err != nil {
		return err
	}

	var issuedAt, expiresAt time.Time
	if claims.IssuedAt != nil {
		issuedAt = claims.IssuedAt.Time
	}
	if claims.ExpiresAt != nil {
		expiresAt = claims.ExpiresAt.Time
	}
	ac := c.evaluator.Bind(cached, claims.SessionID, issuedAt, expiresAt)

	st.mu.Lock()
	st.context = ac
	st.mu.Unlock()

	return c.evaluator.Require(ac, required...)
}

// resolve looks up the identity and computes its effective permissions.
func (c *Composer) resolve(ctx context.Context, userID string, elevated bool, st *RequestState) (*authz.AuthContext, error) {
	id, err := c.identities.Lookup(ctx, userID)
	if err != nil {
		if errors.Is(err, identity.ErrNotFound) {
			return nil, secerr.Wrap(secerr.CodeCredentialInvalid, "unknown subject", err).
				WithDetail("kind", "UNKNOWN_SUBJECT")
		}
		if se, ok := secerr.As(err); ok {
			return nil, se
		}
		return nil, secerr.Wrap(secerr.CodeAuthUnavailable, "identity lookup failed", err)
	}

	st.mu.Lock()
	st.identity = id
	st.mu.Unlock()

	if !id.IsActive {
		return nil, secerr.New(secerr.CodeCredentialInvalid, "identity is inactive").
			WithDetail("kind", "INACTIVE")
	}

	return c.evaluator.Resolve(ctx, authz.AuthorizeInput{
		UserID:      id.ID,
		TenantID:    id.TenantID,
		Role:        id.Role,
		Grants:      id.Grants,
		Revocations: id.Revocations,
		Elevated:    elevated,
	})
}
