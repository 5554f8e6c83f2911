// Pinteya E-commerce - Enterprise Admin Security Pipeline
// Copyright 2026 The Pinteya E-commerce Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/SantiagoXOR/pinteya-ecommerce-sub017

package api

import (
	"context"
	"net/http"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/SantiagoXOR/pinteya-ecommerce-sub017/internal/logging"
	"github.com/SantiagoXOR/pinteya-ecommerce-sub017/internal/models"
)

const healthCheckTimeout = 2 * time.Second

// HealthResponse is the body of /healthz.
type HealthResponse struct {
	Status        string            `json:"status"`
	UptimeSeconds int64             `json:"uptime_seconds"`
	Checks        map[string]string `json:"checks,omitempty"`
	Failing       []string          `json:"failing,omitempty"`
}

// Health runs every dependency check concurrently. Any failing check turns
// the response into 503 so load balancers stop routing to this instance.
// Check errors are logged, never returned.
//
// Method: GET
// Path: /healthz
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
	defer cancel()

	var mu sync.Mutex
	results := make(map[string]string, len(h.checks))
	var failing []string

	g, gctx := errgroup.WithContext(ctx)
	for name, check := range h.checks {
		g.Go(func() error {
			err := check(gctx)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				logging.Ctx(r.Context()).Warn().Err(err).Str("check", name).Msg("Health check failed")
				results[name] = "unavailable"
				failing = append(failing, name)
				return nil
			}
			results[name] = "ok"
			return nil
		})
	}
	_ = g.Wait()
	sort.Strings(failing)

	resp := HealthResponse{
		Status:        "healthy",
		UptimeSeconds: int64(time.Since(h.startTime).Seconds()),
		Checks:        results,
		Failing:       failing,
	}
	status := http.StatusOK
	if len(failing) > 0 {
		resp.Status = "degraded"
		status = http.StatusServiceUnavailable
	}

	envelope := models.Success(resp, logging.RequestIDFromContext(r.Context()))
	if status != http.StatusOK {
		envelope.Status = models.StatusError
	}
	respondJSON(w, status, envelope)
}
