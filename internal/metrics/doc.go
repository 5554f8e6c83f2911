// Pinteya E-commerce - Enterprise Admin Security Pipeline
// Copyright 2026 The Pinteya E-commerce Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/SantiagoXOR/pinteya-ecommerce-sub017

/*
Package metrics provides Prometheus metrics collection and export for the
security pipeline.

Collectors are registered once at package init with promauto and updated
through small Record* helpers so callers never touch label ordering.

# Metrics Endpoint

Metrics are exposed at /metrics in Prometheus text format:

	curl http://localhost:8080/metrics

# Available Metrics

API:
  - api_requests_total (method, endpoint, status_code)
  - api_request_duration_seconds (method, endpoint)
  - api_active_requests

Pipeline:
  - security_pipeline_decisions_total (stage, outcome, code)
  - security_pipeline_stage_duration_seconds (stage)
  - security_token_validations_total (result)

Rate limiting:
  - security_rate_limit_decisions_total (tier, allowed)
  - security_rate_limit_backend_errors_total (backend)
  - security_rate_limit_buckets

Context cache:
  - security_auth_cache_hits_total, security_auth_cache_misses_total
  - security_auth_cache_evictions_total (reason)
  - security_auth_cache_invalidations_total

Audit:
  - security_audit_events_total (type, severity)
  - security_audit_events_written_total
  - security_audit_write_failures_total (path)
  - security_audit_escalations_total
  - security_audit_dead_letter_events
  - security_audit_batch_size

RLS and identity:
  - security_rls_executions_total (resource, outcome)
  - security_identity_lookups_total (outcome)
  - security_identity_lookup_duration_seconds
  - circuit_breaker_state (name)

# Cardinality

Labels carry stage names, tiers, codes and resource names only. User IDs,
session IDs and IP addresses never become label values.
*/
package metrics
