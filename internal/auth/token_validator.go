// Pinteya E-commerce - Enterprise Admin Security Pipeline
// Copyright 2026 The Pinteya E-commerce Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/SantiagoXOR/pinteya-ecommerce-sub017

package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/SantiagoXOR/pinteya-ecommerce-sub017/internal/secerr"
)

// MaxClockSkew is the largest tolerated difference between our clock and the issuer's.
const MaxClockSkew = 60 * time.Second

// DefaultSessionCookie is the cookie consulted when no bearer token is sent.
const DefaultSessionCookie = "pinteya_session"

// Claims are the verified claims of a credential.
type Claims struct {
	// SessionID binds the credential to a session (sid claim).
	SessionID string `json:"sid,omitempty"`
	// Elevated is set by the issuer after a step-up challenge. It only
	// matters for administrative roles.
	Elevated bool `json:"elv,omitempty"`
	jwt.RegisteredClaims
}

// UserID returns the subject.
func (c *Claims) UserID() string {
	return c.Subject
}

// ValidatorConfig configures a TokenValidator.
type ValidatorConfig struct {
	Issuer    string
	Audience  string
	ClockSkew time.Duration
	// Now overrides the clock in tests.
	Now func() time.Time
}

// TokenValidator verifies credentials. It is safe for concurrent use.
type TokenValidator struct {
	keys     *KeySet
	issuer   string
	audience string
	skew     time.Duration
	now      func() time.Time
	parser   *jwt.Parser
}

// NewTokenValidator creates a validator over keys.
func NewTokenValidator(keys *KeySet, cfg ValidatorConfig) (*TokenValidator, error) {
	if keys == nil {
		return nil, errors.New("key set is required")
	}
	if cfg.Issuer == "" || cfg.Audience == "" {
		return nil, errors.New("issuer and audience are required")
	}
	if cfg.ClockSkew < 0 || cfg.ClockSkew > MaxClockSkew {
		return nil, fmt.Errorf("clock skew must be between 0 and %v", MaxClockSkew)
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	return &TokenValidator{
		keys:     keys,
		issuer:   cfg.Issuer,
		audience: cfg.Audience,
		skew:     cfg.ClockSkew,
		now:      cfg.Now,
		parser: jwt.NewParser(
			jwt.WithValidMethods([]string{"HS256", "HS384", "HS512", "RS256", "RS384", "RS512"}),
			jwt.WithoutClaimsValidation(),
		),
	}, nil
}

// Validate verifies raw and returns its claims. Every failure is a
// *TokenError, except an unreachable key source which is a *secerr.Error
// with CodeAuthUnavailable. Validate does not log and never panics on
// untrusted input.
func (v *TokenValidator) Validate(ctx context.Context, raw string) (claims *Claims, err error) {
	defer func() {
		if r := recover(); r != nil {
			claims = nil
			err = newTokenError(KindMalformed, fmt.Sprintf("unparseable token: %v", r), nil)
		}
	}()

	if strings.TrimSpace(raw) == "" {
		return nil, newTokenError(KindMalformed, "empty credential", nil)
	}

	claims = &Claims{}
	if _, err := v.parser.ParseWithClaims(raw, claims, v.keys.Keyfunc(ctx)); err != nil {
		return nil, classifyParseError(err)
	}

	if err := v.checkClaims(claims); err != nil {
		return nil, err
	}
	return claims, nil
}

// checkClaims applies the temporal and audience rules with our own clock.
func (v *TokenValidator) checkClaims(c *Claims) error {
	if c.Subject == "" {
		return newTokenError(KindMalformed, "missing sub", nil)
	}
	if c.ExpiresAt == nil || c.IssuedAt == nil {
		return newTokenError(KindMalformed, "missing exp or iat", nil)
	}

	now := v.now()
	if now.After(c.ExpiresAt.Time) {
		return newTokenError(KindExpired, "token expired", nil)
	}
	if now.Before(c.IssuedAt.Add(-v.skew)) {
		return newTokenError(KindExpired, "token issued in the future", nil)
	}
	if c.NotBefore != nil && now.Before(c.NotBefore.Add(-v.skew)) {
		return newTokenError(KindExpired, "token not yet valid", nil)
	}

	if c.Issuer != v.issuer {
		return newTokenError(KindBadAudience, "issuer mismatch", nil)
	}
	if !slices.Contains(c.Audience, v.audience) {
		return newTokenError(KindBadAudience, "audience mismatch", nil)
	}
	return nil
}

// classifyParseError maps jwt parse failures to token error kinds.
func classifyParseError(err error) error {
	if se, ok := secerr.As(err); ok {
		return se
	}
	switch {
	case errors.Is(err, ErrMissingKeyID), errors.Is(err, jwt.ErrTokenMalformed):
		return newTokenError(KindMalformed, "malformed token", err)
	case errors.Is(err, ErrUnknownKey),
		errors.Is(err, ErrKeyTypeMismatch),
		errors.Is(err, jwt.ErrTokenSignatureInvalid),
		errors.Is(err, jwt.ErrTokenUnverifiable):
		return newTokenError(KindBadSignature, "signature verification failed", err)
	default:
		return newTokenError(KindMalformed, "invalid token", err)
	}
}

// ExtractCredential returns the bearer token from the Authorization header,
// falling back to the session cookie.
func ExtractCredential(r *http.Request, cookieName string) string {
	if authHeader := r.Header.Get("Authorization"); authHeader != "" {
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
			return strings.TrimSpace(parts[1])
		}
		return ""
	}

	if cookieName == "" {
		cookieName = DefaultSessionCookie
	}
	if cookie, err := r.Cookie(cookieName); err == nil {
		return cookie.Value
	}
	return ""
}
