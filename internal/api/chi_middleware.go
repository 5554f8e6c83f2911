// Pinteya E-commerce - Enterprise Admin Security Pipeline
// Copyright 2026 The Pinteya E-commerce Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/SantiagoXOR/pinteya-ecommerce-sub017

package api

import (
	"net/http"
	"time"

	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"

	"github.com/SantiagoXOR/pinteya-ecommerce-sub017/internal/auth"
	"github.com/SantiagoXOR/pinteya-ecommerce-sub017/internal/middleware"
	"github.com/SantiagoXOR/pinteya-ecommerce-sub017/internal/pipeline"
	"github.com/SantiagoXOR/pinteya-ecommerce-sub017/internal/secerr"
)

// ChiMiddlewareConfig holds configuration for the edge middleware.
type ChiMiddlewareConfig struct {
	// CORS configuration
	CORSAllowedOrigins   []string
	CORSAllowedMethods   []string
	CORSAllowedHeaders   []string
	CORSExposedHeaders   []string
	CORSAllowCredentials bool
	CORSMaxAge           int // seconds

	// Edge rate limiting, per client IP, ahead of the pipeline.
	EdgeRequests int
	EdgeWindow   time.Duration
	EdgeDisabled bool
}

// DefaultChiMiddlewareConfig returns a secure default configuration.
// CORS origins default to empty, requiring explicit configuration.
func DefaultChiMiddlewareConfig() *ChiMiddlewareConfig {
	return &ChiMiddlewareConfig{
		CORSAllowedOrigins: []string{},
		CORSAllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		CORSAllowedHeaders: []string{"Content-Type", "Authorization", auth.CSRFHeaderName, middleware.RequestIDHeader},
		CORSExposedHeaders: []string{
			middleware.RequestIDHeader, "Retry-After",
			"X-RateLimit-Limit", "X-RateLimit-Remaining", "X-RateLimit-Reset",
		},
		CORSAllowCredentials: true,
		CORSMaxAge:           600,

		EdgeRequests: 600,
		EdgeWindow:   time.Minute,
	}
}

// ChiMiddleware provides chi-compatible middleware factories.
type ChiMiddleware struct {
	config *ChiMiddlewareConfig
	cors   func(http.Handler) http.Handler
}

// NewChiMiddleware creates the middleware factory. A nil config uses the
// defaults.
func NewChiMiddleware(config *ChiMiddlewareConfig) *ChiMiddleware {
	if config == nil {
		config = DefaultChiMiddlewareConfig()
	}

	corsHandler := cors.Handler(cors.Options{
		AllowedOrigins:   config.CORSAllowedOrigins,
		AllowedMethods:   config.CORSAllowedMethods,
		AllowedHeaders:   config.CORSAllowedHeaders,
		ExposedHeaders:   config.CORSExposedHeaders,
		AllowCredentials: config.CORSAllowCredentials,
		MaxAge:           config.CORSMaxAge,
	})

	return &ChiMiddleware{config: config, cors: corsHandler}
}

// CORS returns the go-chi/cors handler. It only shapes browser behaviour;
// the origin guard in the pipeline is what enforces origins.
func (m *ChiMiddleware) CORS() func(http.Handler) http.Handler {
	return m.cors
}

// EdgeRateLimit sheds request floods per client IP before any credential is
// parsed. Rejections use the same envelope as the pipeline's RATE_LIMITED.
func (m *ChiMiddleware) EdgeRateLimit() func(http.Handler) http.Handler {
	if m.config.EdgeDisabled || m.config.EdgeRequests <= 0 {
		return func(next http.Handler) http.Handler {
			return next
		}
	}

	window := m.config.EdgeWindow
	return httprate.Limit(
		m.config.EdgeRequests,
		window,
		httprate.WithKeyFuncs(httprate.KeyByIP),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			err := secerr.New(secerr.CodeRateLimited, "edge limit exceeded").
				WithRetryAfter(window).
				WithDetail("tier", "edge")
			pipeline.WriteError(w, r, err)
		}),
	)
}

// APISecurityHeaders adds the hardening headers every API response carries.
// HSTS is added when the request arrived over TLS, directly or through a
// terminating proxy.
func APISecurityHeaders() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h := w.Header()
			h.Set("X-Content-Type-Options", "nosniff")
			h.Set("X-Frame-Options", "DENY")
			h.Set("Referrer-Policy", "strict-origin-when-cross-origin")
			h.Set("Cache-Control", "no-store")

			if r.TLS != nil || r.Header.Get("X-Forwarded-Proto") == "https" {
				h.Set("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
			}

			next.ServeHTTP(w, r)
		})
	}
}
