// Pinteya E-commerce - Enterprise Admin Security Pipeline
// Copyright 2026 The Pinteya E-commerce Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/SantiagoXOR/pinteya-ecommerce-sub017

package pipeline

import (
	"context"
	"net/http"
	"sync"

	"github.com/SantiagoXOR/pinteya-ecommerce-sub017/internal/auth"
	"github.com/SantiagoXOR/pinteya-ecommerce-sub017/internal/authz"
	"github.com/SantiagoXOR/pinteya-ecommerce-sub017/internal/identity"
	"github.com/SantiagoXOR/pinteya-ecommerce-sub017/internal/ratelimit"
)

// State is a position in the request state machine.
type State int

const (
	StateReceived State = iota
	StateTokenValidated
	StateOriginChecked
	StateRateChecked
	StateAuthorized
	StateDelegated
	StateRejected
)

var stateNames = [...]string{
	StateReceived:       "RECEIVED",
	StateTokenValidated: "TOKEN_VALIDATED",
	StateOriginChecked:  "ORIGIN_CHECKED",
	StateRateChecked:    "RATE_CHECKED",
	StateAuthorized:     "AUTHORIZED",
	StateDelegated:      "DELEGATED_TO_HANDLER",
	StateRejected:       "REJECTED",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "UNKNOWN"
	}
	return stateNames[s]
}

// RequestState carries one request through the stages. It is created by
// RequireAuth and reused when the same request passes through more than one
// guarded middleware.
type RequestState struct {
	mu sync.Mutex

	state  State
	reason string

	ip       string
	claims   *auth.Claims
	identity *identity.Identity
	context  *authz.AuthContext

	tier        ratelimit.Tier
	rate        ratelimit.Decision
	rateApplied bool
}

func newRequestState(r *http.Request) *RequestState {
	return &RequestState{state: StateReceived, ip: auth.RemoteIP(r)}
}

// State returns the current state.
func (s *RequestState) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Reason returns the rejection reason code, if rejected.
func (s *RequestState) Reason() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reason
}

// Context returns the authorized context, or nil before AUTHORIZED.
func (s *RequestState) Context() *authz.AuthContext {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state < StateAuthorized || s.state == StateRejected {
		return nil
	}
	return s.context
}

// RateDecision returns the limiter decision, if the rate stage ran.
func (s *RequestState) RateDecision() (ratelimit.Tier, ratelimit.Decision, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tier, s.rate, s.rateApplied
}

func (s *RequestState) advance(to State) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateRejected && to > s.state {
		s.state = to
	}
}

func (s *RequestState) reject(code string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = StateRejected
	s.reason = code
}

// claimRate reports whether the rate stage should run, marking it applied.
func (s *RequestState) claimRate() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.rateApplied {
		return false
	}
	s.rateApplied = true
	return true
}

func (s *RequestState) userID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.claims == nil {
		return ""
	}
	return s.claims.UserID()
}

type stateKey struct{}

// WithState stores st in ctx.
func WithState(ctx context.Context, st *RequestState) context.Context {
	return context.WithValue(ctx, stateKey{}, st)
}

// StateFromContext returns the request state stored by the middleware.
func StateFromContext(ctx context.Context) (*RequestState, bool) {
	st, ok := ctx.Value(stateKey{}).(*RequestState)
	return st, ok && st != nil
}

func (s *RequestState) role() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch {
	case s.context != nil:
		return string(s.context.Role())
	case s.identity != nil:
		return s.identity.Role
	default:
		return ""
	}
}
