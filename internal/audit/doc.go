// Pinteya E-commerce - Enterprise Admin Security Pipeline
// Copyright 2026 The Pinteya E-commerce Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/SantiagoXOR/pinteya-ecommerce-sub017

// Package audit provides the security audit trail for the admin pipeline.
//
// Every rejection the pipeline makes, every RLS-scoped data access and every
// administrative permission change is recorded as an Event.
//
// # Event Types
//
//   - auth_success, auth_failure: credential validation
//   - permission_denied: missing capability (metadata: capability)
//   - rate_limited: tier budget exhausted (metadata: tier, retry_after_ms)
//   - csrf_rejected: origin or CSRF token refused (source: origin)
//   - rls_violation_attempt: RLS enforcement failed (always critical)
//   - rls_access, rls_elevation: scoped data reads and unrestricted admin reads
//   - anomaly: an identity crossed a failure threshold
//   - grant_changed, sessions_revoked: administrative changes
//
// # Delivery
//
// Non-critical events are queued and written in batches of Config.BatchSize
// or every Config.FlushInterval. Critical events bypass the queue and are
// written immediately with exponential backoff. A critical event that still
// cannot be written is escalated through an Alerter and parked in a
// dead-letter buffer that every later flush retries. Close drains the queue
// and the dead-letter buffer.
//
// The caller's context only contributes values such as the request ID; its
// cancellation never prevents an event from being written.
//
// # Integrity
//
// Stores are append-only. Each event carries a sequence number and a keyed
// BLAKE2b-256 hash over its content and the previous event's hash, so
// VerifyChain detects edited, removed or reordered records.
//
// # Stores
//
//   - MemoryStore: development and tests
//   - SQLStore: PostgreSQL (pgx stdlib driver) or DuckDB
//
// # Escalation
//
//   - LogAlerter: always available
//   - PublisherAlerter: any Watermill publisher, rate limited
//   - NewNATSPublisher: NATS transport (build with -tags nats)
package audit
