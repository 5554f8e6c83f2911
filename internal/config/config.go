// Pinteya E-commerce - Enterprise Admin Security Pipeline
// Copyright 2026 The Pinteya E-commerce Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/SantiagoXOR/pinteya-ecommerce-sub017

package config

import (
	"fmt"
	"strings"
	"time"
)

// Config holds all application configuration.
//
// Thread Safety:
// Config is immutable after LoadWithKoanf() and safe for concurrent read access.
type Config struct {
	Server   ServerConfig   `koanf:"server"`
	Security SecurityConfig `koanf:"security"`
	Identity IdentityConfig `koanf:"identity"`
	Audit    AuditConfig    `koanf:"audit"`
	Database DatabaseConfig `koanf:"database"`
	Redis    RedisConfig    `koanf:"redis"`
	Overlay  OverlayConfig  `koanf:"overlay"`
	Logging  LoggingConfig  `koanf:"logging"`
}

// ServerConfig holds HTTP server settings.
//
// Environment Variables:
//   - HTTP_PORT: Listen port (default: 8080)
//   - HTTP_HOST: Bind address (default: 0.0.0.0)
//   - HTTP_TIMEOUT: Read/write timeout (default: 30s)
//   - ENVIRONMENT: development, staging or production (default: development)
type ServerConfig struct {
	Port            int           `koanf:"port"`
	Host            string        `koanf:"host"`
	Timeout         time.Duration `koanf:"timeout"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
	Environment     string        `koanf:"environment"`
	// EdgeRequestsPerMinute is the coarse per-IP limit applied before the pipeline. 0 disables it.
	EdgeRequestsPerMinute int `koanf:"edge_requests_per_minute"`
}

// SecurityConfig groups the settings of every pipeline stage.
type SecurityConfig struct {
	Token     TokenConfig     `koanf:"token"`
	Origin    OriginConfig    `koanf:"origin"`
	RateLimit RateLimitConfig `koanf:"rate_limit"`
	Cache     CacheConfig     `koanf:"cache"`
	// AnomalyWindow is how far back auth_failure and rate_limited signals
	// count toward a raised security level.
	AnomalyWindow time.Duration `koanf:"anomaly_window"`
}

// TokenConfig configures credential verification.
//
// Environment Variables:
//   - TOKEN_ISSUER: Expected iss claim (required)
//   - TOKEN_AUDIENCE: Expected aud claim (required)
//   - TOKEN_HMAC_KEYS: Comma-separated kid:secret pairs
//   - TOKEN_JWKS_URL: IdP JWKS endpoint (optional)
//   - TOKEN_OIDC_DISCOVERY: Discover the JWKS endpoint from the issuer (default: false)
//   - TOKEN_CLOCK_SKEW: Tolerated clock skew (default: 30s, max: 60s)
//   - SESSION_COOKIE: Session cookie name (default: pinteya_session)
type TokenConfig struct {
	Issuer        string        `koanf:"issuer"`
	Audience      string        `koanf:"audience"`
	HMACKeys      []string      `koanf:"hmac_keys"`
	JWKSURL       string        `koanf:"jwks_url"`
	OIDCDiscovery bool          `koanf:"oidc_discovery"`
	JWKSCacheTTL  time.Duration `koanf:"jwks_cache_ttl"`
	ClockSkew     time.Duration `koanf:"clock_skew"`
	SessionCookie string        `koanf:"session_cookie"`
}

// ParseHMACKeys splits the kid:secret pairs into a key map.
func (t *TokenConfig) ParseHMACKeys() (map[string][]byte, error) {
	keys := make(map[string][]byte, len(t.HMACKeys))
	for _, pair := range t.HMACKeys {
		kid, secret, ok := strings.Cut(pair, ":")
		kid = strings.TrimSpace(kid)
		if !ok || kid == "" || secret == "" {
			return nil, fmt.Errorf("TOKEN_HMAC_KEYS entry must be kid:secret")
		}
		if _, dup := keys[kid]; dup {
			return nil, fmt.Errorf("TOKEN_HMAC_KEYS has duplicate kid %q", kid)
		}
		keys[kid] = []byte(secret)
	}
	return keys, nil
}

// OriginConfig configures the origin/CSRF guard.
//
// Environment Variables:
//   - ALLOWED_ORIGINS: Primary origin(s), comma-separated
//   - STAGING_ORIGINS: Staging origins, comma-separated
//   - TOOL_USER_AGENTS: Non-production tool user agent prefixes, comma-separated
//   - CSRF_SECRET: Secret binding CSRF tokens to sessions (min 32 chars)
//   - RELAXED_LOCAL_CSRF: Accept loopback requests without origin (never in production)
type OriginConfig struct {
	AllowedOrigins   []string `koanf:"allowed_origins"`
	StagingOrigins   []string `koanf:"staging_origins"`
	ToolUserAgents   []string `koanf:"tool_user_agents"`
	CSRFSecret       string   `koanf:"csrf_secret"`
	RelaxedLocalCSRF bool     `koanf:"relaxed_local_csrf"`
}

// RateTier is one independently configured rate limit.
type RateTier struct {
	Requests int           `koanf:"requests"`
	Window   time.Duration `koanf:"window"`
}

// RateLimitConfig configures the three limiter tiers.
//
// Environment Variables:
//   - RATE_LIMIT_BACKEND: local or redis (default: local)
//   - RATE_LIMIT_AUTH_REQUESTS / RATE_LIMIT_AUTH_WINDOW
//   - RATE_LIMIT_ADMIN_REQUESTS / RATE_LIMIT_ADMIN_WINDOW
//   - RATE_LIMIT_ADMIN_MUTATION_REQUESTS / RATE_LIMIT_ADMIN_MUTATION_WINDOW
type RateLimitConfig struct {
	Backend       string        `koanf:"backend"`
	Auth          RateTier      `koanf:"auth"`
	Admin         RateTier      `koanf:"admin"`
	AdminMutation RateTier      `koanf:"admin_mutation"`
	IdleTTL       time.Duration `koanf:"idle_ttl"`
	SweepInterval time.Duration `koanf:"sweep_interval"`
}

// CacheConfig configures the authorization context cache.
//
// Environment Variables:
//   - AUTH_CACHE_TTL: Entry lifetime (default: 10s)
//   - AUTH_CACHE_MAX_ENTRIES: LRU bound (default: 10000)
//   - AUTH_CACHE_VERSION_STORE: local or redis (default: local)
type CacheConfig struct {
	TTL          time.Duration `koanf:"ttl"`
	MaxEntries   int           `koanf:"max_entries"`
	VersionStore string        `koanf:"version_store"`
}

// IdentityConfig configures the identity provider collaborator.
// An empty URL selects the in-process static provider (development only).
type IdentityConfig struct {
	URL                string        `koanf:"url"`
	APIKey             string        `koanf:"api_key"`
	Timeout            time.Duration `koanf:"timeout"`
	BreakerMaxFailures uint32        `koanf:"breaker_max_failures"`
	BreakerOpenTimeout time.Duration `koanf:"breaker_open_timeout"`
}

// AuditConfig configures the security audit logger.
//
// Environment Variables:
//   - AUDIT_STORE: memory, postgres or duckdb (default: memory)
//   - AUDIT_DSN: Store DSN (postgres URL or duckdb file path)
//   - AUDIT_BATCH_SIZE: Batch size for non-critical events (default: 50)
//   - AUDIT_FLUSH_INTERVAL: Batch flush interval (default: 2s)
//   - AUDIT_CHAIN_KEY: Key for the hash chain (min 32 chars in production)
//   - AUDIT_ALERT_NATS_URL: NATS URL for critical escalations (optional)
type AuditConfig struct {
	Store           string        `koanf:"store"`
	DSN             string        `koanf:"dsn"`
	BatchSize       int           `koanf:"batch_size"`
	BufferSize      int           `koanf:"buffer_size"`
	FlushInterval   time.Duration `koanf:"flush_interval"`
	WriteTimeout    time.Duration `koanf:"write_timeout"`
	CriticalRetries int           `koanf:"critical_retries"`
	ChainKey        string        `koanf:"chain_key"`
	AlertNATSURL    string        `koanf:"alert_nats_url"`
	AlertTopic      string        `koanf:"alert_topic"`
	AlertsPerSecond float64       `koanf:"alerts_per_second"`
}

// DatabaseConfig configures the relational store behind RLS queries.
type DatabaseConfig struct {
	DSN          string `koanf:"dsn"`
	MaxOpenConns int    `koanf:"max_open_conns"`
}

// RedisConfig is used by the redis limiter backend and version store.
type RedisConfig struct {
	Addr     string `koanf:"addr"`
	Password string `koanf:"password"`
	DB       int    `koanf:"db"`
}

// OverlayConfig configures the grant/revoke overlay store.
// An empty Path keeps the overlay in memory.
type OverlayConfig struct {
	Path string `koanf:"path"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
	Caller bool   `koanf:"caller"`
}

// IsProduction returns true if the application is running in production mode.
func (c *Config) IsProduction() bool {
	env := strings.ToLower(c.Server.Environment)
	return env == "production" || env == "prod"
}

// IsDevelopment returns true if the application is running in development mode.
func (c *Config) IsDevelopment() bool {
	env := strings.ToLower(c.Server.Environment)
	return env == "" || env == "development" || env == "dev"
}

// UsesRedis reports whether any component needs the Redis client.
func (c *Config) UsesRedis() bool {
	return c.Security.RateLimit.Backend == BackendRedis || c.Security.Cache.VersionStore == BackendRedis
}

// Backend names.
const (
	BackendLocal = "local"
	BackendRedis = "redis"
)
