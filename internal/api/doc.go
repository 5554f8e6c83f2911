// Pinteya E-commerce - Enterprise Admin Security Pipeline
// Copyright 2026 The Pinteya E-commerce Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/SantiagoXOR/pinteya-ecommerce-sub017

/*
Package api exposes the admin HTTP surface on a chi router.

Every admin route is guarded by the security pipeline through
pipeline.Composer.Require, which runs the token, origin, rate and
authorization stages before a handler sees the request. Handlers that touch
tenant data go through rls.Execute, so they never build their own filters.

Route groups:

	GET  /healthz                                  liveness and dependency checks
	GET  /metrics                                  Prometheus exposition
	GET  /api/v1/auth/csrf                         session-bound anti-forgery token
	GET  /api/v1/admin/products                    products_read
	POST /api/v1/admin/products                    products_write
	GET  /api/v1/admin/orders                      orders_read
	GET  /api/v1/admin/security/cache-stats        audit_read
	GET  /api/v1/admin/security/audit/summary      audit_read
	GET  /api/v1/admin/security/performance        audit_read
	PUT  /api/v1/admin/users/{id}/permissions      users_write
	POST /api/v1/admin/users/{id}/logout-all       users_write

An edge limiter keyed by client IP runs ahead of the pipeline to shed floods
before any token is parsed. Every response uses the models.APIResponse
envelope; error envelopes carry only the public code and message.
*/
package api
