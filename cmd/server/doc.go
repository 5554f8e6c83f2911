// Pinteya E-commerce - Enterprise Admin Security Pipeline
// Copyright 2026 The Pinteya E-commerce Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/SantiagoXOR/pinteya-ecommerce-sub017

/*
Package main is the entry point for the admin API server.

Every /api/v1/admin request passes the security pipeline before it reaches a
handler: credential validation, origin and CSRF checks, tiered rate limiting,
identity resolution through the context cache, capability checks and a
row-level filter on every data access. Each rejection is written to the
security audit log.

# Process Layout

	RootSupervisor ("pinteya-admin")
	├── StorageSupervisor ("storage-layer")
	│   ├── AuditService
	│   └── JanitorService
	└── APISupervisor ("api-layer")
	    └── HTTPServerService

Component initialization order:

 1. Configuration: Koanf v2 with defaults, config.yaml and environment
 2. Logging: zerolog, bridged to slog for sutureslog
 3. Audit logger: memory, PostgreSQL (pgx) or DuckDB store, NATS alerts
 4. Token validator: HMAC keys, JWKS URL or OIDC discovery
 5. Rate limiter and context cache: local or Redis backed
 6. Identity: HTTP provider behind a circuit breaker, Badger overlay
 7. RLS data client: PostgreSQL, or an in-memory fixture in development
 8. Router and supervisor tree

# Configuration

Key environment variables:

	ENVIRONMENT=production
	TOKEN_ISSUER=https://auth.pinteya.example
	TOKEN_AUDIENCE=pinteya-admin
	TOKEN_OIDC_DISCOVERY=true
	CSRF_SECRET=<32+ characters>
	ALLOWED_ORIGINS=https://admin.pinteya.example
	IDENTITY_URL=https://identity.internal
	AUDIT_STORE=postgres
	AUDIT_DSN=postgres://...
	DATABASE_DSN=postgres://...
	RATE_LIMIT_BACKEND=redis
	REDIS_ADDR=redis:6379

# Build Tags

	go build -tags nats ./cmd/server   # publish audit escalations to NATS

# Signal Handling

SIGINT and SIGTERM cancel the root context. The HTTP server drains first,
then the audit logger flushes every queued event and closes.
*/
package main
