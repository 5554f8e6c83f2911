// Pinteya E-commerce - Enterprise Admin Security Pipeline
// Copyright 2026 The Pinteya E-commerce Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/SantiagoXOR/pinteya-ecommerce-sub017

package rls

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/SantiagoXOR/pinteya-ecommerce-sub017/internal/audit"
	"github.com/SantiagoXOR/pinteya-ecommerce-sub017/internal/authz"
	"github.com/SantiagoXOR/pinteya-ecommerce-sub017/internal/logging"
	"github.com/SantiagoXOR/pinteya-ecommerce-sub017/internal/metrics"
	"github.com/SantiagoXOR/pinteya-ecommerce-sub017/internal/secerr"
)

// Failure classifies why an execution did not produce a result.
type Failure string

// Execution failures.
const (
	FailureFilterConstruction Failure = "FILTER_CONSTRUCTION_FAILED"
	FailureOperation          Failure = "UNDERLYING_OPERATION_FAILED"
	FailureBypass             Failure = "RLS_BYPASS_ATTEMPTED"
)

// Sentinels wrapped by the typed errors Execute returns.
var (
	ErrFilterConstruction = errors.New("RLS filter construction failed")
	ErrOperationFailed    = errors.New("RLS operation failed")
)

// codeFor maps a failure class to the code reported to the caller. Store
// failures are kept apart from refused filters so alerting can tell them
// apart.
func codeFor(f Failure) secerr.Code {
	if f == FailureOperation {
		return secerr.CodeDataOperationFailed
	}
	return secerr.CodeRLSFilterUnavailable
}

// FailureOf extracts the failure class from an Execute error.
func FailureOf(err error) (Failure, bool) {
	var se *secerr.Error
	if !errors.As(err, &se) {
		return "", false
	}
	if se.Code != secerr.CodeRLSFilterUnavailable && se.Code != secerr.CodeDataOperationFailed {
		return "", false
	}
	f := se.Detail("failure")
	return Failure(f), f != ""
}

// Auditor receives the security events an execution produces.
type Auditor interface {
	Record(ctx context.Context, e *audit.Event) error
}

// Options control a single execution.
type Options struct {
	// BypassRLS skips the tenant filter. Only an elevated administrative
	// context may set it; anything else is treated as a bypass attempt.
	BypassRLS bool
	// AuditLog records an rls_access summary on success.
	AuditLog bool
	// Elevate asks for unrestricted access. Granted only to elevated
	// administrative contexts and always audited.
	Elevate bool
}

// DefaultOptions enforce filters and audit every access. The zero Options
// also enforce filters, without the access summary.
func DefaultOptions() Options {
	return Options{AuditLog: true}
}

// Operation is a caller-supplied data operation run under a filter.
type Operation[T any] func(ctx context.Context, client *ScopedClient) (T, error)

// Executor runs operations under row-level filters.
type Executor struct {
	registry *Registry
	data     DataClient
	auditor  Auditor
}

// NewExecutor creates an executor. A nil registry selects DefaultRegistry.
// A nil auditor disables event recording.
func NewExecutor(registry *Registry, data DataClient, auditor Auditor) *Executor {
	if registry == nil {
		registry = DefaultRegistry()
	}
	return &Executor{registry: registry, data: data, auditor: auditor}
}

// Registry returns the executor's resource registry.
func (ex *Executor) Registry() *Registry {
	return ex.registry
}

// Execute builds the filter for resource from ac and runs op against a
// ScopedClient carrying it. op never runs when no safe filter exists.
func Execute[T any](ctx context.Context, ex *Executor, ac *authz.AuthContext, resource string, op Operation[T], opts Options) (T, error) {
	var zero T

	if ac == nil {
		return zero, ex.fail(ctx, nil, resource, FailureFilterConstruction, ErrNoContext)
	}

	elevate := opts.Elevate
	if opts.BypassRLS {
		if !ac.Role().IsAdministrative() || !ac.Elevated() {
			return zero, ex.fail(ctx, ac, resource, FailureBypass,
				fmt.Errorf("%w: enforcement disabled for role %s", ErrBypassAttempted, ac.Role()))
		}
		elevate = true
	}

	var buildOpts []BuildOption
	if elevate {
		buildOpts = append(buildOpts, WithElevation())
	}
	filter, err := ex.registry.BuildFilters(ac, resource, buildOpts...)
	if err != nil {
		return zero, ex.fail(ctx, ac, resource, FailureFilterConstruction, err)
	}
	if !filter.Unrestricted && len(filter.Predicates) == 0 {
		return zero, ex.fail(ctx, ac, resource, FailureFilterConstruction, ErrEmptyFilter)
	}
	if filter.Unrestricted {
		ex.record(ctx, ac, audit.EventTypeRLSElevation, "", map[string]string{
			"resource": resource,
		})
	} else if elevate {
		logging.Ctx(ctx).Debug().
			Str("resource", resource).
			Str("role", string(ac.Role())).
			Msg("Elevation not granted, running scoped")
	}

	client := newScopedClient(filter, ex.data)
	result, opErr := op(ctx, client)

	if v := client.Violation(); v != nil {
		return zero, ex.fail(ctx, ac, resource, FailureBypass, v)
	}
	if opErr != nil {
		return zero, ex.fail(ctx, ac, resource, FailureOperation, opErr)
	}

	metrics.RecordRLSExecution(resource, "success")
	if opts.AuditLog {
		ex.record(ctx, ac, audit.EventTypeRLSAccess, "", map[string]string{
			"resource":   resource,
			"rows":       strconv.FormatInt(client.Rows(), 10),
			"predicates": predicateSummary(filter),
		})
	}
	return result, nil
}

// fail records the failure and returns the client-facing typed error. The
// collaborator's error is kept as the cause and never reaches the client.
func (ex *Executor) fail(ctx context.Context, ac *authz.AuthContext, resource string, failure Failure, cause error) error {
	metrics.RecordRLSExecution(resource, strings.ToLower(string(failure)))

	var sentinel error
	switch failure {
	case FailureFilterConstruction:
		sentinel = ErrFilterConstruction
	case FailureBypass:
		sentinel = ErrBypassAttempted
	default:
		sentinel = ErrOperationFailed
	}
	if !errors.Is(cause, sentinel) {
		cause = fmt.Errorf("%w: %w", sentinel, cause)
	}

	meta := map[string]string{
		"resource": resource,
		"failure":  string(failure),
		"reason":   logging.SanitizeError(cause.Error()),
	}
	if failure == FailureOperation {
		meta["outcome"] = "error"
		ex.record(ctx, ac, audit.EventTypeRLSAccess, audit.SeverityWarn, meta)
	} else {
		ex.record(ctx, ac, audit.EventTypeRLSViolationAttempt, audit.SeverityCritical, meta)
	}

	ev := logging.Ctx(ctx).Warn()
	if failure != FailureOperation {
		ev = logging.Ctx(ctx).Error()
	}
	ev.Err(cause).
		Str("resource", resource).
		Str("failure", string(failure)).
		Msg("[RLS] Execution refused")

	return secerr.Wrap(codeFor(failure), string(failure), cause).
		WithDetail("failure", string(failure)).
		WithDetail("resource", resource)
}

func (ex *Executor) record(ctx context.Context, ac *authz.AuthContext, typ audit.EventType, sev audit.Severity, meta map[string]string) {
	if ex.auditor == nil {
		return
	}
	e := &audit.Event{
		Type:     typ,
		Severity: sev,
		Stage:    "rls",
		Metadata: meta,
	}
	if ac != nil {
		e.ActorID = ac.UserID()
		e.Role = string(ac.Role())
		if ac.TenantID() != "" {
			meta["tenant_id"] = ac.TenantID()
		}
	}
	switch {
	case typ == audit.EventTypeRLSViolationAttempt:
		e.Code = string(secerr.CodeRLSFilterUnavailable)
	case meta["failure"] == string(FailureOperation):
		e.Code = string(secerr.CodeDataOperationFailed)
	}
	if err := ex.auditor.Record(ctx, e); err != nil {
		logging.Ctx(ctx).Error().Err(err).Str("event_type", string(typ)).Msg("Failed to record RLS audit event")
	}
}

func predicateSummary(f Filter) string {
	if f.Unrestricted {
		return "unrestricted"
	}
	return strings.Join(f.Columns(), ",")
}
