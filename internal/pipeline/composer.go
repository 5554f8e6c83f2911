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

	"github.com/SantiagoXOR/pinteya-ecommerce-sub017/internal/audit"
	"github.com/SantiagoXOR/pinteya-ecommerce-sub017/internal/auth"
	"github.com/SantiagoXOR/pinteya-ecommerce-sub017/internal/authz"
	"github.com/SantiagoXOR/pinteya-ecommerce-sub017/internal/cache"
	"github.com/SantiagoXOR/pinteya-ecommerce-sub017/internal/identity"
	"github.com/SantiagoXOR/pinteya-ecommerce-sub017/internal/logging"
	"github.com/SantiagoXOR/pinteya-ecommerce-sub017/internal/metrics"
	"github.com/SantiagoXOR/pinteya-ecommerce-sub017/internal/ratelimit"
	"github.com/SantiagoXOR/pinteya-ecommerce-sub017/internal/secerr"
)

// ErrMissingDependency is returned by NewComposer for an incomplete Deps.
var ErrMissingDependency = errors.New("pipeline dependency is required")

// Cache scopes. Elevated contexts are cached apart from regular ones so a
// step-up token never leaks elevation into a later plain request.
const (
	scopeRegular  = "authz"
	scopeElevated = "authz:elevated"
)

// Auditor receives the security events the pipeline produces.
type Auditor interface {
	Record(ctx context.Context, e *audit.Event) error
}

// Deps are the collaborators of a Composer.
type Deps struct {
	Validator   *auth.TokenValidator
	Origin      *auth.OriginGuard
	Tiers       *ratelimit.Tiers
	Evaluator   *authz.Evaluator
	Identities  identity.Provider
	Contexts    *cache.VersionedCache[*authz.AuthContext]
	Auditor     Auditor
	Revocations cache.RevocationStore // nil keeps logout-all cutoffs in process
}

// Config tunes a Composer.
type Config struct {
	// SessionCookie is consulted when no bearer token is sent.
	SessionCookie string
	// AuditSuccess records an auth_success event for every authorized request.
	AuditSuccess bool
}

// DefaultConfig returns the production defaults.
func DefaultConfig() Config {
	return Config{SessionCookie: auth.DefaultSessionCookie, AuditSuccess: true}
}

// Result is the outcome of RequireAuth.
type Result struct {
	Success    bool
	Context    *authz.AuthContext
	Error      *secerr.Error
	Code       secerr.Code
	HTTPStatus int
	RetryAfter time.Duration
	State      State
}

// Composer runs the ordered security stages for each request.
type Composer struct {
	validator   *auth.TokenValidator
	origin      *auth.OriginGuard
	tiers       *ratelimit.Tiers
	evaluator   *authz.Evaluator
	identities  identity.Provider
	contexts    *cache.VersionedCache[*authz.AuthContext]
	auditor     Auditor
	revocations cache.RevocationStore
	cfg         Config

	stages []stage
}

// NewComposer validates deps and builds the stage list.
func NewComposer(d Deps, cfg Config) (*Composer, error) {
	switch {
	case d.Validator == nil:
		return nil, errors.Join(ErrMissingDependency, errors.New("token validator"))
	case d.Origin == nil:
		return nil, errors.Join(ErrMissingDependency, errors.New("origin guard"))
	case d.Tiers == nil:
		return nil, errors.Join(ErrMissingDependency, errors.New("rate limit tiers"))
	case d.Evaluator == nil:
		return nil, errors.Join(ErrMissingDependency, errors.New("permission evaluator"))
	case d.Identities == nil:
		return nil, errors.Join(ErrMissingDependency, errors.New("identity provider"))
	case d.Contexts == nil:
		return nil, errors.Join(ErrMissingDependency, errors.New("context cache"))
	case d.Auditor == nil:
		return nil, errors.Join(ErrMissingDependency, errors.New("auditor"))
	}
	if cfg.SessionCookie == "" {
		cfg.SessionCookie = auth.DefaultSessionCookie
	}
	if d.Revocations == nil {
		d.Revocations = cache.NewLocalRevocationStore()
	}

	c := &Composer{
		validator:   d.Validator,
		origin:      d.Origin,
		tiers:       d.Tiers,
		evaluator:   d.Evaluator,
		identities:  d.Identities,
		contexts:    d.Contexts,
		auditor:     d.Auditor,
		revocations: d.Revocations,
		cfg:         cfg,
	}
	c.stages = []stage{
		{name: StageToken, reached: StateTokenValidated, run: c.validateToken},
		{name: StageOrigin, reached: StateOriginChecked, run: c.checkOrigin},
		{name: StageRate, reached: StateRateChecked, run: c.checkRate},
		{name: StageAuthorize, reached: StateAuthorized, run: c.authorize},
	}
	return c, nil
}

// RequireAuth runs every stage for r and requires all of required. The
// first failing stage short-circuits and is audited exactly once.
func (c *Composer) RequireAuth(r *http.Request, required ...string) Result {
	st, ok := StateFromContext(r.Context())
	if !ok {
		st = newRequestState(r)
	}
	return c.run(r, st, required)
}

func (c *Composer) run(r *http.Request, st *RequestState, required []string) Result {
	ctx := r.Context()
	metrics.TrackActiveRequest(true)
	defer metrics.TrackActiveRequest(false)

	for _, s := range c.stages {
		start := time.Now()
		err := s.run(ctx, r, st, required)
		metrics.RecordStageDuration(s.name, time.Since(start))
		if err != nil {
			return c.rejected(ctx, r, st, s.name, err)
		}
		st.advance(s.reached)
	}

	ac := st.Context()
	metrics.RecordPipelineDecision(StageAuthorize, true, "")
	logging.LogDecision(ctx, &logging.Decision{
		Stage:     StageAuthorize,
		Allowed:   true,
		UserID:    ac.UserID(),
		SessionID: ac.SessionID(),
		IP:        st.ip,
		Method:    r.Method,
		Path:      r.URL.Path,
	})
	if c.cfg.AuditSuccess {
		c.record(ctx, &audit.Event{
			Type:    audit.EventTypeAuthSuccess,
			ActorID: ac.UserID(),
			Role:    string(ac.Role()),
			Stage:   StageAuthorize,
			Source:  sourceOf(r, st),
			Metadata: map[string]string{
				"method":         r.Method,
				"path":           r.URL.Path,
				"security_level": ac.SecurityLevel().String(),
			},
		})
	}
	return Result{Success: true, Context: ac, HTTPStatus: http.StatusOK, State: StateAuthorized}
}

// rejected converts err, records the single audit event for this rejection
// and feeds the anomaly tracker.
func (c *Composer) rejected(ctx context.Context, r *http.Request, st *RequestState, stageName string, err error) Result {
	se := auth.SecurityError(err)
	st.reject(string(se.Code))

	userID := st.userID()
	metrics.RecordPipelineDecision(stageName, false, string(se.Code))
	logging.LogDecision(ctx, &logging.Decision{
		Stage:   stageName,
		Allowed: false,
		Code:    string(se.Code),
		UserID:  userID,
		IP:      st.ip,
		Method:  r.Method,
		Path:    r.URL.Path,
	})

	c.record(ctx, rejectionEvent(r, st, stageName, se))
	c.feedAnomaly(ctx, r, st, se)

	return Result{
		Success:    false,
		Error:      se,
		Code:       se.Code,
		HTTPStatus: se.HTTPStatus(),
		RetryAfter: se.RetryAfter,
		State:      StateRejected,
	}
}

func rejectionEvent(r *http.Request, st *RequestState, stageName string, se *secerr.Error) *audit.Event {
	e := &audit.Event{
		ActorID:  st.userID(),
		Stage:    stageName,
		Code:     string(se.Code),
		Source:   sourceOf(r, st),
		Metadata: map[string]string{"method": r.Method, "path": r.URL.Path},
	}
	if e.ActorID == "" {
		e.ActorID = se.Detail("subject")
	}
	e.Role = st.role()

	switch se.Code {
	case secerr.CodeOriginRejected, secerr.CodeCSRFTokenMismatch:
		e.Type = audit.EventTypeCSRFRejected
		if origin := se.Detail("origin"); origin != "" {
			e.Source.Origin = origin
			e.Metadata["origin"] = origin
		}
	case secerr.CodeRateLimited:
		e.Type = audit.EventTypeRateLimited
		e.Metadata["tier"] = se.Detail("tier")
		e.Metadata["retry_after_ms"] = strconv.FormatInt(se.RetryAfter.Milliseconds(), 10)
	case secerr.CodeInsufficientPermissions:
		e.Type = audit.EventTypePermissionDenied
		e.Metadata["capability"] = se.Detail("capability")
	case secerr.CodeAuthUnavailable:
		e.Type = audit.EventTypeAuthFailure
		e.Severity = audit.SeverityError
		e.Metadata["reason"] = "unavailable"
	default:
		e.Type = audit.EventTypeAuthFailure
		if kind := se.Detail("kind"); kind != "" {
			e.Metadata["kind"] = kind
		}
		if se.Reason != "" {
			e.Metadata["reason"] = se.Reason
		}
	}
	return e
}

// feedAnomaly counts auth failures and rate limiting per identity and
// records an anomaly event when a threshold is crossed.
func (c *Composer) feedAnomaly(ctx context.Context, r *http.Request, st *RequestState, se *secerr.Error) {
	var signal authz.Signal
	switch se.Code {
	case secerr.CodeCredentialInvalid:
		signal = authz.SignalAuthFailure
	case secerr.CodeRateLimited:
		signal = authz.SignalRateLimited
	default:
		return
	}

	identityKey := st.userID()
	if identityKey == "" {
		identityKey = "ip:" + st.ip
	}
	count, crossed := c.evaluator.RecordSignal(identityKey, signal)
	if !crossed {
		return
	}
	c.record(ctx, &audit.Event{
		Type:    audit.EventTypeAnomaly,
		ActorID: st.userID(),
		Stage:   "anomaly",
		Source:  sourceOf(r, st),
		Metadata: map[string]string{
			"identity": identityKey,
			"signal":   string(signal),
			"count":    strconv.Itoa(count),
		},
	})
}

func (c *Composer) record(ctx context.Context, e *audit.Event) {
	if err := c.auditor.Record(ctx, e); err != nil {
		logging.Ctx(ctx).Error().Err(err).
			Str("event_type", string(e.Type)).
			Msg("Failed to record security event")
	}
}

func sourceOf(r *http.Request, st *RequestState) audit.Source {
	return audit.Source{
		IP:        st.ip,
		UserAgent: r.UserAgent(),
		Origin:    r.Header.Get("Origin"),
	}
}

// CacheStats returns the context cache counters.
func (c *Composer) CacheStats() cache.Stats {
	return c.contexts.Stats()
}

// Invalidate drops every cached context of userID. It returns once the new
// version is visible, so the next request re-resolves permissions.
func (c *Composer) Invalidate(ctx context.Context, userID string) error {
	return c.contexts.Invalidate(ctx, userID)
}

// RevokeSessions rejects every credential of userID issued at or before at,
// then drops the user's cached contexts.
func (c *Composer) RevokeSessions(ctx context.Context, userID string, at time.Time) error {
	if err := c.revocations.RevokeSessions(ctx, userID, at); err != nil {
		return err
	}
	return c.contexts.Invalidate(ctx, userID)
}

// CSRFToken issues the anti-forgery token bound to sessionID.
func (c *Composer) CSRFToken(sessionID string) string {
	return c.origin.Tokens().Issue(sessionID)
}
