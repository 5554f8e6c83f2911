// Pinteya E-commerce - Enterprise Admin Security Pipeline
// Copyright 2026 The Pinteya E-commerce Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/SantiagoXOR/pinteya-ecommerce-sub017

package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"
)

// Limits enforced on security settings.
const (
	MaxClockSkew       = 60 * time.Second
	minSecretLength    = 32
	minRateLimitWindow = time.Second
	maxRateLimitWindow = time.Hour
	maxRateLimitReqs   = 100000
	maxCacheTTL        = 5 * time.Minute
)

// Validate checks that required configuration is present and valid
func (c *Config) Validate() error {
	if err := c.validateServer(); err != nil {
		return err
	}
	if err := c.validateToken(); err != nil {
		return err
	}
	if err := c.validateOrigin(); err != nil {
		return err
	}
	if err := c.validateRateLimits(); err != nil {
		return err
	}
	if err := c.validateCache(); err != nil {
		return err
	}
	if err := c.validateIdentity(); err != nil {
		return err
	}
	if err := c.validateAudit(); err != nil {
		return err
	}
	return c.validateLogging()
}

func (c *Config) validateServer() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("HTTP_PORT must be between 1 and 65535")
	}
	return nil
}

// validateToken checks issuer/audience, key sources and clock skew.
func (c *Config) validateToken() error {
	t := &c.Security.Token
	if t.Issuer == "" {
		return fmt.Errorf("TOKEN_ISSUER is required")
	}
	if t.Audience == "" {
		return fmt.Errorf("TOKEN_AUDIENCE is required")
	}
	if t.ClockSkew < 0 || t.ClockSkew > MaxClockSkew {
		return fmt.Errorf("TOKEN_CLOCK_SKEW must be between 0 and %v", MaxClockSkew)
	}
	if len(t.HMACKeys) == 0 && t.JWKSURL == "" && !t.OIDCDiscovery {
		return fmt.Errorf("at least one key source is required: TOKEN_HMAC_KEYS, TOKEN_JWKS_URL or TOKEN_OIDC_DISCOVERY")
	}

	keys, err := t.ParseHMACKeys()
	if err != nil {
		return err
	}
	for kid, secret := range keys {
		if len(secret) < minSecretLength {
			return fmt.Errorf("TOKEN_HMAC_KEYS secret for kid %q must be at least %d characters", kid, minSecretLength)
		}
	}

	if t.JWKSURL != "" {
		if err := validateHTTPURL(t.JWKSURL, "TOKEN_JWKS_URL"); err != nil {
			return err
		}
	}
	if t.SessionCookie == "" {
		return fmt.Errorf("SESSION_COOKIE must not be empty")
	}
	return nil
}

// validateOrigin rejects wildcard origins and the relaxed local mode in production.
func (c *Config) validateOrigin() error {
	o := &c.Security.Origin
	if len(o.CSRFSecret) < minSecretLength {
		return fmt.Errorf("CSRF_SECRET must be at least %d characters", minSecretLength)
	}
	if c.IsProduction() && o.RelaxedLocalCSRF {
		return fmt.Errorf("RELAXED_LOCAL_CSRF is not allowed when ENVIRONMENT=production")
	}
	if c.IsProduction() && len(o.AllowedOrigins) == 0 {
		return fmt.Errorf("ALLOWED_ORIGINS is required when ENVIRONMENT=production")
	}

	all := make([]string, 0, len(o.AllowedOrigins)+len(o.StagingOrigins))
	all = append(all, o.AllowedOrigins...)
	all = append(all, o.StagingOrigins...)
	for _, origin := range all {
		if origin == "*" {
			return fmt.Errorf("wildcard origins are not allowed for the admin surface")
		}
		if err := validateHTTPURL(origin, "ALLOWED_ORIGINS"); err != nil {
			return err
		}
	}
	return nil
}

func (c *Config) validateRateLimits() error {
	rl := &c.Security.RateLimit
	switch rl.Backend {
	case BackendLocal, BackendRedis:
	default:
		return fmt.Errorf("RATE_LIMIT_BACKEND must be one of: local, redis")
	}

	tiers := []struct {
		name string
		tier RateTier
	}{
		{"AUTH", rl.Auth},
		{"ADMIN", rl.Admin},
		{"ADMIN_MUTATION", rl.AdminMutation},
	}
	for _, t := range tiers {
		if t.tier.Requests < 1 || t.tier.Requests > maxRateLimitReqs {
			return fmt.Errorf("RATE_LIMIT_%s_REQUESTS must be between 1 and %d", t.name, maxRateLimitReqs)
		}
		if t.tier.Window < minRateLimitWindow || t.tier.Window > maxRateLimitWindow {
			return fmt.Errorf("RATE_LIMIT_%s_WINDOW must be between %v and %v", t.name, minRateLimitWindow, maxRateLimitWindow)
		}
	}
	return nil
}

func (c *Config) validateCache() error {
	cc := &c.Security.Cache
	if cc.TTL <= 0 || cc.TTL > maxCacheTTL {
		return fmt.Errorf("AUTH_CACHE_TTL must be between 1ns and %v", maxCacheTTL)
	}
	if cc.MaxEntries < 1 {
		return fmt.Errorf("AUTH_CACHE_MAX_ENTRIES must be positive")
	}
	switch cc.VersionStore {
	case BackendLocal, BackendRedis:
	default:
		return fmt.Errorf("AUTH_CACHE_VERSION_STORE must be one of: local, redis")
	}
	if c.UsesRedis() && c.Redis.Addr == "" {
		return fmt.Errorf("REDIS_ADDR is required when a redis backend is selected")
	}
	return nil
}

func (c *Config) validateIdentity() error {
	id := &c.Identity
	if id.URL == "" {
		if c.IsProduction() {
			return fmt.Errorf("IDENTITY_URL is required when ENVIRONMENT=production")
		}
		return nil
	}
	if err := validateHTTPURL(id.URL, "IDENTITY_URL"); err != nil {
		return err
	}
	if id.Timeout <= 0 {
		return fmt.Errorf("IDENTITY_TIMEOUT must be positive")
	}
	return nil
}

var validAuditStores = map[string]bool{
	"memory":   true,
	"postgres": true,
	"duckdb":   true,
}

func (c *Config) validateAudit() error {
	a := &c.Audit
	if !validAuditStores[a.Store] {
		return fmt.Errorf("AUDIT_STORE must be one of: memory, postgres, duckdb")
	}
	if a.Store != "memory" && a.DSN == "" {
		return fmt.Errorf("AUDIT_DSN is required when AUDIT_STORE=%s", a.Store)
	}
	if c.IsProduction() && a.Store == "memory" {
		return fmt.Errorf("AUDIT_STORE=memory is not allowed when ENVIRONMENT=production")
	}
	if c.IsProduction() && len(a.ChainKey) < minSecretLength {
		return fmt.Errorf("AUDIT_CHAIN_KEY must be at least %d characters in production", minSecretLength)
	}
	if a.BatchSize < 1 {
		return fmt.Errorf("AUDIT_BATCH_SIZE must be positive")
	}
	if a.BufferSize < a.BatchSize {
		return fmt.Errorf("AUDIT_BUFFER_SIZE must be at least AUDIT_BATCH_SIZE")
	}
	if a.FlushInterval <= 0 {
		return fmt.Errorf("AUDIT_FLUSH_INTERVAL must be positive")
	}
	if a.CriticalRetries < 0 {
		return fmt.Errorf("AUDIT_CRITICAL_RETRIES must not be negative")
	}
	return nil
}

var validLogLevels = map[string]bool{
	"trace": true, "debug": true, "info": true, "warn": true, "error": true,
}

func (c *Config) validateLogging() error {
	if !validLogLevels[strings.ToLower(c.Logging.Level)] {
		return fmt.Errorf("LOG_LEVEL must be one of: trace, debug, info, warn, error")
	}
	if c.Logging.Format != "json" && c.Logging.Format != "console" {
		return fmt.Errorf("LOG_FORMAT must be one of: json, console")
	}
	return nil
}

// validateHTTPURL checks that raw is an absolute http(s) URL.
func validateHTTPURL(raw, name string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("%s is not a valid URL: %w", name, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("%s must use http or https scheme", name)
	}
	if u.Host == "" {
		return fmt.Errorf("%s must include a host", name)
	}
	return nil
}
