// Pinteya E-commerce - Enterprise Admin Security Pipeline
// Copyright 2026 The Pinteya E-commerce Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/SantiagoXOR/pinteya-ecommerce-sub017

/*
Package middleware provides the infrastructure middleware that wraps the
security pipeline: request ids, Prometheus instrumentation and a bounded
latency monitor.

Middleware order in the router:

	r.Use(middleware.RequestID)          // ids for logs, audit events and error envelopes
	r.Use(middleware.PrometheusMetrics)  // status and latency per route pattern
	r.Use(monitor.Middleware)            // percentile view for operators

Route labels always come from the chi route pattern so path parameters
never reach metric labels.
*/
package middleware
