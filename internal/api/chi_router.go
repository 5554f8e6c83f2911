// Pinteya E-commerce - Enterprise Admin Security Pipeline
// Copyright 2026 The Pinteya E-commerce Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/SantiagoXOR/pinteya-ecommerce-sub017

package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/SantiagoXOR/pinteya-ecommerce-sub017/internal/authz"
	"github.com/SantiagoXOR/pinteya-ecommerce-sub017/internal/middleware"
	"github.com/SantiagoXOR/pinteya-ecommerce-sub017/internal/pipeline"
)

// Router wires handlers, the security pipeline and the edge middleware.
type Router struct {
	handler       *Handler
	composer      *pipeline.Composer
	chiMiddleware *ChiMiddleware
	perfMon       *middleware.PerformanceMonitor
}

// NewRouter creates a router. perfMon may be nil.
func NewRouter(handler *Handler, composer *pipeline.Composer, mw *ChiMiddleware, perfMon *middleware.PerformanceMonitor) *Router {
	if mw == nil {
		mw = NewChiMiddleware(nil)
	}
	return &Router{handler: handler, composer: composer, chiMiddleware: mw, perfMon: perfMon}
}

// SetupChi configures all HTTP routes.
func (router *Router) SetupChi() http.Handler {
	r := chi.NewRouter()

	// ========================
	// Global Middleware Stack
	// ========================
	r.Use(middleware.RequestID)
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.PrometheusMetrics)
	r.Use(router.chiMiddleware.CORS())

	r.NotFound(func(w http.ResponseWriter, req *http.Request) {
		respondRequestError(w, req, http.StatusNotFound, ErrCodeNotFound, "Not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, req *http.Request) {
		respondRequestError(w, req, http.StatusMethodNotAllowed, ErrCodeMethodNotAllowed, "Method not allowed")
	})

	// ========================
	// Operational Endpoints
	// ========================
	r.Get("/healthz", router.handler.Health)
	r.Handle("/metrics", promhttp.Handler())

	// ========================
	// Guarded Endpoints
	// ========================
	r.Group(func(r chi.Router) {
		r.Use(router.chiMiddleware.EdgeRateLimit())
		r.Use(APISecurityHeaders())
		if router.perfMon != nil {
			r.Use(router.perfMon.Middleware)
		}

		// Any authenticated session may fetch its anti-forgery token.
		r.With(router.composer.Require()).Get("/api/v1/auth/csrf", router.handler.CSRFToken)

		r.Route("/api/v1/admin", func(r chi.Router) {
			r.With(router.composer.Require(authz.ProductsRead)).Get("/products", router.handler.ListProducts)
			r.With(router.composer.Require(authz.ProductsWrite)).Post("/products", router.handler.CreateProduct)
			r.With(router.composer.Require(authz.OrdersRead)).Get("/orders", router.handler.ListOrders)

			r.Route("/security", func(r chi.Router) {
				r.Use(router.composer.Require(authz.AuditRead))
				r.Get("/cache-stats", router.handler.CacheStats)
				r.Get("/audit/summary", router.handler.AuditSummary)
				r.Get("/performance", router.handler.Performance)
			})

			r.Route("/users/{id}", func(r chi.Router) {
				r.Use(router.composer.Require(authz.UsersWrite))
				r.Put("/permissions", router.handler.UpdatePermissions)
				r.Post("/logout-all", router.handler.LogoutAll)
			})
		})
	})

	return r
}
