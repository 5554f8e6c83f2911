// Pinteya E-commerce - Enterprise Admin Security Pipeline
// Copyright 2026 The Pinteya E-commerce Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/SantiagoXOR/pinteya-ecommerce-sub017

package api

import (
	"context"
	"errors"
	"time"

	"github.com/SantiagoXOR/pinteya-ecommerce-sub017/internal/audit"
	"github.com/SantiagoXOR/pinteya-ecommerce-sub017/internal/identity"
	"github.com/SantiagoXOR/pinteya-ecommerce-sub017/internal/middleware"
	"github.com/SantiagoXOR/pinteya-ecommerce-sub017/internal/pipeline"
	"github.com/SantiagoXOR/pinteya-ecommerce-sub017/internal/rls"
)

// ErrMissingDependency is returned by NewHandler for an incomplete
// HandlerDeps.
var ErrMissingDependency = errors.New("api dependency is required")

// HealthCheck reports whether one dependency is usable.
type HealthCheck func(ctx context.Context) error

// HandlerDeps are the collaborators of the admin handlers.
type HandlerDeps struct {
	Composer *pipeline.Composer
	Executor *rls.Executor
	Audit    *audit.Logger
	Overlay  identity.Overlay
	// PerfMon is optional.
	PerfMon *middleware.PerformanceMonitor
	// Checks are run by /healthz, keyed by dependency name.
	Checks map[string]HealthCheck
}

// Handler contains dependencies for API handlers.
//
// Handler methods are split across files:
//   - handlers_health.go: health endpoint
//   - handlers_admin.go: products, orders and the CSRF token
//   - handlers_security.go: cache, audit, performance and user administration
//   - handlers_helpers.go: shared response and parsing helpers
type Handler struct {
	composer  *pipeline.Composer
	executor  *rls.Executor
	audit     *audit.Logger
	overlay   identity.Overlay
	perfMon   *middleware.PerformanceMonitor
	checks    map[string]HealthCheck
	startTime time.Time
	now       func() time.Time
}

// NewHandler validates d and creates the handler set.
func NewHandler(d HandlerDeps) (*Handler, error) {
	switch {
	case d.Composer == nil:
		return nil, errors.Join(ErrMissingDependency, errors.New("composer"))
	case d.Executor == nil:
		return nil, errors.Join(ErrMissingDependency, errors.New("rls executor"))
	case d.Audit == nil:
		return nil, errors.Join(ErrMissingDependency, errors.New("audit logger"))
	case d.Overlay == nil:
		return nil, errors.Join(ErrMissingDependency, errors.New("permission overlay"))
	}
	checks := make(map[string]HealthCheck, len(d.Checks))
	for name, c := range d.Checks {
		checks[name] = c
	}
	return &Handler{
		composer:  d.Composer,
		executor:  d.Executor,
		audit:     d.Audit,
		overlay:   d.Overlay,
		perfMon:   d.PerfMon,
		checks:    checks,
		startTime: time.Now(),
		now:       time.Now,
	}, nil
}
