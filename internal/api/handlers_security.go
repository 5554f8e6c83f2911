// Pinteya E-commerce - Enterprise Admin Security Pipeline
// Copyright 2026 The Pinteya E-commerce Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/SantiagoXOR/pinteya-ecommerce-sub017

package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/SantiagoXOR/pinteya-ecommerce-sub017/internal/audit"
	"github.com/SantiagoXOR/pinteya-ecommerce-sub017/internal/identity"
	"github.com/SantiagoXOR/pinteya-ecommerce-sub017/internal/logging"
	"github.com/SantiagoXOR/pinteya-ecommerce-sub017/internal/middleware"
	"github.com/SantiagoXOR/pinteya-ecommerce-sub017/internal/models"
	"github.com/SantiagoXOR/pinteya-ecommerce-sub017/internal/secerr"
	"github.com/SantiagoXOR/pinteya-ecommerce-sub017/internal/validation"
)

const (
	defaultSummaryWindow = 24 * time.Hour
	maxSummaryWindow     = 30 * 24 * time.Hour
	defaultSummaryTop    = 10
	maxSummaryTop        = 100
)

// CacheStats returns the context cache counters.
//
// Method: GET
// Path: /api/v1/admin/security/cache-stats
func (h *Handler) CacheStats(w http.ResponseWriter, r *http.Request) {
	respondData(w, r, http.StatusOK, h.composer.CacheStats(), time.Time{})
}

// AuditSummary aggregates recent security events.
//
// Method: GET
// Path: /api/v1/admin/security/audit/summary
// Query: window (Go duration, default 24h, max 720h), top (1-100, default 10)
func (h *Handler) AuditSummary(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	window := defaultSummaryWindow
	if v := r.URL.Query().Get("window"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d <= 0 || d > maxSummaryWindow {
			respondRequestError(w, r, http.StatusBadRequest, ErrCodeBadRequest, "window must be a duration up to 720h")
			return
		}
		window = d
	}
	top := defaultSummaryTop
	if v := r.URL.Query().Get("top"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > maxSummaryTop {
			respondRequestError(w, r, http.StatusBadRequest, ErrCodeBadRequest, "top must be between 1 and 100")
			return
		}
		top = n
	}

	// Queued events belong in the summary.
	if err := h.audit.Flush(r.Context()); err != nil {
		logging.Ctx(r.Context()).Warn().Err(err).Msg("Audit flush before summary failed")
	}
	summary, err := h.audit.Summary(r.Context(), window, top)
	if err != nil {
		respondError(w, r, secerr.Wrap(secerr.CodeAuthUnavailable, "audit summary failed", err))
		return
	}
	respondData(w, r, http.StatusOK, summary, start)
}

// Performance returns per-route latency of the guarded endpoints.
//
// Method: GET
// Path: /api/v1/admin/security/performance
func (h *Handler) Performance(w http.ResponseWriter, r *http.Request) {
	stats := []middleware.EndpointStats{}
	if h.perfMon != nil {
		stats = h.perfMon.Stats()
	}
	respondData(w, r, http.StatusOK, stats, time.Time{})
}

// UpdatePermissions replaces a user's grant/revoke overlay and invalidates
// their cached contexts before responding, so the next request of that user
// sees the change.
//
// Method: PUT
// Path: /api/v1/admin/users/{id}/permissions
func (h *Handler) UpdatePermissions(w http.ResponseWriter, r *http.Request) {
	ac, err := authContext(r)
	if err != nil {
		respondError(w, r, err)
		return
	}
	target, ok := targetUser(w, r)
	if !ok {
		return
	}
	if target == ac.UserID() {
		if lerr := h.audit.LogPermissionDenied(r.Context(), ac.UserID(), string(ac.Role()), "self_permission_change", sourceOf(r)); lerr != nil {
			logging.Ctx(r.Context()).Error().Err(lerr).Msg("Failed to record security event")
		}
		respondError(w, r, secerr.New(secerr.CodeInsufficientPermissions, "administrators cannot change their own permissions").
			WithDetail("capability", "self_permission_change"))
		return
	}

	var req models.PermissionUpdateRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	adj := &identity.Adjustment{
		Grants:      req.Grants,
		Revocations: req.Revocations,
		UpdatedBy:   ac.UserID(),
		UpdatedAt:   h.now().UTC(),
	}
	if err := h.overlay.Put(r.Context(), target, adj); err != nil {
		respondError(w, r, secerr.Wrap(secerr.CodeAuthUnavailable, "overlay write failed", err))
		return
	}
	if err := h.composer.Invalidate(r.Context(), target); err != nil {
		respondError(w, r, secerr.Wrap(secerr.CodeAuthUnavailable, "cache invalidation failed", err))
		return
	}

	src := sourceOf(r)
	if err := h.audit.LogGrantChanged(r.Context(), ac.UserID(), target, req.Grants, req.Revocations, src); err != nil {
		logging.Ctx(r.Context()).Error().Err(err).Msg("Failed to record grant change")
	}
	logging.Ctx(r.Context()).Info().
		Str("admin_id", logging.SanitizeUserID(ac.UserID())).
		Str("target_user", logging.SanitizeUserID(target)).
		Int("grants", len(req.Grants)).
		Int("revocations", len(req.Revocations)).
		Msg("Permissions updated")

	respondData(w, r, http.StatusOK, models.PermissionUpdateResponse{
		UserID:      target,
		Grants:      req.Grants,
		Revocations: req.Revocations,
		UpdatedBy:   adj.UpdatedBy,
		UpdatedAt:   adj.UpdatedAt,
		Invalidated: true,
	}, time.Time{})
}

// LogoutAll rejects every credential the user obtained up to now and drops
// their cached contexts. Credentials issued afterwards are accepted.
//
// Method: POST
// Path: /api/v1/admin/users/{id}/logout-all
func (h *Handler) LogoutAll(w http.ResponseWriter, r *http.Request) {
	ac, err := authContext(r)
	if err != nil {
		respondError(w, r, err)
		return
	}
	target, ok := targetUser(w, r)
	if !ok {
		return
	}

	revokedAt := h.now().UTC()
	if err := h.composer.RevokeSessions(r.Context(), target, revokedAt); err != nil {
		respondError(w, r, secerr.Wrap(secerr.CodeAuthUnavailable, "session revocation failed", err))
		return
	}

	if err := h.audit.Record(r.Context(), &audit.Event{
		Type:     audit.EventTypeSessionsRevoked,
		ActorID:  ac.UserID(),
		Role:     string(ac.Role()),
		Source:   sourceOf(r),
		Metadata: map[string]string{"target_user": target},
	}); err != nil {
		logging.Ctx(r.Context()).Error().Err(err).Msg("Failed to record session revocation")
	}

	respondData(w, r, http.StatusOK, models.SessionRevocationResponse{
		UserID:    target,
		RevokedAt: revokedAt,
	}, time.Time{})
}

// targetUser reads and validates the {id} path parameter.
func targetUser(w http.ResponseWriter, r *http.Request) (string, bool) {
	id := chi.URLParam(r, "id")
	if err := validation.GetValidator().Var(id, "required,subject"); err != nil {
		respondRequestError(w, r, http.StatusBadRequest, ErrCodeValidationFailed, "Invalid user id")
		return "", false
	}
	return id, true
}
