// Pinteya E-commerce - Enterprise Admin Security Pipeline
// Copyright 2026 The Pinteya E-commerce Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/SantiagoXOR/pinteya-ecommerce-sub017

/*
Package config provides centralized configuration management for the admin
security pipeline.

# Configuration Sources

Configuration is layered with Koanf v2, highest priority last:
  - Built-in defaults (defaultConfig)
  - Optional YAML file (CONFIG_PATH, ./config.yaml, /etc/pinteya/config.yaml)
  - Environment variables, through an explicit mapping table

Comma-separated environment values are split for slice fields
(TOKEN_HMAC_KEYS, ALLOWED_ORIGINS, STAGING_ORIGINS, TOOL_USER_AGENTS).

# Configuration Structure

  - ServerConfig: listen address, timeouts, environment, edge limiter
  - SecurityConfig: token, origin/CSRF, rate limit tiers, context cache
  - IdentityConfig: identity provider endpoint, timeout and breaker
  - AuditConfig: audit store, batching, hash chain key, alert channel
  - DatabaseConfig, RedisConfig, OverlayConfig: backing stores
  - LoggingConfig: zerolog level and format

# Validation

Validate runs per section and fails closed. Notable rules:
  - TOKEN_CLOCK_SKEW may not exceed 60s
  - RELAXED_LOCAL_CSRF is rejected when ENVIRONMENT=production
  - Every rate limit tier needs a positive request count and a window between 1s and 1h
  - Wildcard origins are never accepted

# Example

	cfg, err := config.LoadWithKoanf()
	if err != nil {
	    logging.Fatal().Err(err).Msg("Failed to load configuration")
	}

# Thread Safety

Config is read-only after LoadWithKoanf returns and may be shared freely.
*/
package config
