// Pinteya E-commerce - Enterprise Admin Security Pipeline
// Copyright 2026 The Pinteya E-commerce Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/SantiagoXOR/pinteya-ecommerce-sub017

package auth

import (
	"errors"

	"github.com/SantiagoXOR/pinteya-ecommerce-sub017/internal/secerr"
)

// TokenErrorKind classifies a credential failure.
type TokenErrorKind string

const (
	KindExpired      TokenErrorKind = "EXPIRED"
	KindBadSignature TokenErrorKind = "BAD_SIGNATURE"
	KindBadAudience  TokenErrorKind = "BAD_AUDIENCE"
	KindMalformed    TokenErrorKind = "MALFORMED"
	KindRevoked      TokenErrorKind = "REVOKED"
)

// TokenError is returned by TokenValidator for every rejected credential.
type TokenError struct {
	Kind   TokenErrorKind
	Reason string
	err    error
}

// NewRevokedError reports a credential issued before its user's sessions were
// revoked.
func NewRevokedError() *TokenError {
	return newTokenError(KindRevoked, "session revoked", nil)
}

func newTokenError(kind TokenErrorKind, reason string, cause error) *TokenError {
	return &TokenError{Kind: kind, Reason: reason, err: cause}
}

func (e *TokenError) Error() string {
	if e.Reason == "" {
		return string(e.Kind)
	}
	return string(e.Kind) + ": " + e.Reason
}

func (e *TokenError) Unwrap() error {
	return e.err
}

// Key resolution errors
var (
	// ErrUnknownKey indicates no key in the set matches the token's kid.
	ErrUnknownKey = errors.New("no verification key for kid")

	// ErrMissingKeyID indicates the token header carries no kid.
	ErrMissingKeyID = errors.New("token header missing kid")

	// ErrKeyTypeMismatch indicates the kid resolves to a key of a different
	// family than the token's alg (HMAC vs RSA).
	ErrKeyTypeMismatch = errors.New("key type does not match signing method")
)

// Origin guard errors
var (
	// ErrOriginNotAllowed indicates the Origin/Referer host is outside the allowed set.
	ErrOriginNotAllowed = errors.New("origin not allowed")

	// ErrOriginMissing indicates neither Origin nor Referer was sent.
	ErrOriginMissing = errors.New("origin missing")

	// ErrCSRFTokenInvalid indicates the anti-forgery token does not match the session.
	ErrCSRFTokenInvalid = errors.New("CSRF token invalid")
)

// SecurityError converts a validator or guard error to the shared taxonomy.
// Token failures become CREDENTIAL_INVALID, origin failures ORIGIN_REJECTED,
// token mismatches CSRF_TOKEN_MISMATCH. Anything already typed passes through
// and unknown errors fail closed as AUTH_UNAVAILABLE.
func SecurityError(err error) *secerr.Error {
	if err == nil {
		return nil
	}
	if se, ok := secerr.As(err); ok {
		return se
	}
	var te *TokenError
	if errors.As(err, &te) {
		return secerr.Wrap(secerr.CodeCredentialInvalid, te.Reason, err).
			WithDetail("kind", string(te.Kind))
	}
	switch {
	case errors.Is(err, ErrCSRFTokenInvalid):
		return secerr.Wrap(secerr.CodeCSRFTokenMismatch, "anti-forgery token mismatch", err)
	case errors.Is(err, ErrOriginNotAllowed), errors.Is(err, ErrOriginMissing):
		return secerr.Wrap(secerr.CodeOriginRejected, "origin rejected", err)
	default:
		return secerr.Wrap(secerr.CodeAuthUnavailable, "credential check failed", err)
	}
}
