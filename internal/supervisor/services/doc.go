// Pinteya E-commerce - Enterprise Admin Security Pipeline
// Copyright 2026 The Pinteya E-commerce Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/SantiagoXOR/pinteya-ecommerce-sub017

/*
Package services provides suture.Service wrappers for the admin API's
long-running components.

Each wrapper translates a component lifecycle into suture's context-aware
Serve pattern and implements fmt.Stringer so suture can name it in logs.

# Available Services

HTTPServerService:
  - Wraps *http.Server with graceful shutdown
  - Converts ListenAndServe to Serve

AuditService:
  - Verifies the audit hash chain on an interval
  - Publishes the dead-letter backlog gauge
  - Drains and closes the audit logger on shutdown

JanitorService:
  - Sweeps idle rate-limit buckets
  - Evicts expired context cache entries
  - Drops stale anomaly counters

# Testing

Each wrapper depends on a small interface or function value, so tests use
in-package fakes rather than real servers or stores.
*/
package services
