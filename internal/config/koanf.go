// Pinteya E-commerce - Enterprise Admin Security Pipeline
// Copyright 2026 The Pinteya E-commerce Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/SantiagoXOR/pinteya-ecommerce-sub017

package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths lists the paths where config files are searched in order of priority.
// The first file found will be used.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/pinteya/config.yaml",
	"/etc/pinteya/config.yml",
}

// ConfigPathEnvVar is the environment variable that can override the config file path.
const ConfigPathEnvVar = "CONFIG_PATH"

// defaultConfig returns a Config struct with all sensible default values.
// These defaults are applied first, then overridden by config file and env vars.
func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:                  8080,
			Host:                  "0.0.0.0",
			Timeout:               30 * time.Second,
			ShutdownTimeout:       15 * time.Second,
			Environment:           "development",
			EdgeRequestsPerMinute: 600,
		},
		Security: SecurityConfig{
			Token: TokenConfig{
				JWKSCacheTTL:  time.Hour,
				ClockSkew:     30 * time.Second,
				SessionCookie: "pinteya_session",
			},
			Origin: OriginConfig{
				AllowedOrigins:   []string{},
				StagingOrigins:   []string{},
				ToolUserAgents:   []string{"PostmanRuntime/", "insomnia/", "curl/"},
				RelaxedLocalCSRF: false,
			},
			RateLimit: RateLimitConfig{
				Backend:       BackendLocal,
				Auth:          RateTier{Requests: 10, Window: 10 * time.Second},
				Admin:         RateTier{Requests: 120, Window: time.Minute},
				AdminMutation: RateTier{Requests: 30, Window: time.Minute},
				IdleTTL:       10 * time.Minute,
				SweepInterval: time.Minute,
			},
			Cache: CacheConfig{
				TTL:          10 * time.Second,
				MaxEntries:   10000,
				VersionStore: BackendLocal,
			},
			AnomalyWindow: 15 * time.Minute,
		},
		Identity: IdentityConfig{
			Timeout:            2 * time.Second,
			BreakerMaxFailures: 5,
			BreakerOpenTimeout: 30 * time.Second,
		},
		Audit: AuditConfig{
			Store:           "memory",
			BatchSize:       50,
			BufferSize:      4096,
			FlushInterval:   2 * time.Second,
			WriteTimeout:    2 * time.Second,
			CriticalRetries: 5,
			AlertTopic:      "security.alerts",
			AlertsPerSecond: 5,
		},
		Database: DatabaseConfig{
			MaxOpenConns: 10,
		},
		Redis: RedisConfig{
			Addr: "127.0.0.1:6379",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Caller: false,
		},
	}
}

// LoadWithKoanf loads configuration using Koanf v2 with layered sources:
//  1. Defaults: Built-in sensible defaults
//  2. Config File: Optional YAML config file (if exists)
//  3. Environment Variables: Override any setting
func LoadWithKoanf() (*Config, error) {
	k := koanf.New(".")

	// Layer 1: Load defaults from struct
	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	// Layer 2: Load config file (optional)
	if configPath := findConfigFile(); configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	}

	// Layer 3: Load environment variables (highest priority)
	if err := k.Load(env.Provider("", ".", envTransformFunc), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := processSliceFields(k); err != nil {
		return nil, fmt.Errorf("failed to process slice fields: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// findConfigFile searches for a config file in the default paths.
// Returns the path to the first file found, or empty string if none found.
func findConfigFile() string {
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}

	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}

	return ""
}

// sliceConfigPaths defines which config paths should be parsed as comma-separated slices
var sliceConfigPaths = []string{
	"security.token.hmac_keys",
	"security.origin.allowed_origins",
	"security.origin.staging_origins",
	"security.origin.tool_user_agents",
}

// processSliceFields converts comma-separated string values to slices for known slice fields.
// Env vars come in as strings, but the config expects slices.
func processSliceFields(k *koanf.Koanf) error {
	for _, path := range sliceConfigPaths {
		val := k.Get(path)
		if val == nil {
			continue
		}

		// Already a slice (from YAML or defaults)
		if _, ok := val.([]interface{}); ok {
			continue
		}
		if _, ok := val.([]string); ok {
			continue
		}

		strVal, ok := val.(string)
		if !ok {
			continue
		}
		parts := strings.Split(strVal, ",")
		trimmed := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				trimmed = append(trimmed, p)
			}
		}
		if err := k.Set(path, trimmed); err != nil {
			return fmt.Errorf("failed to set %s: %w", path, err)
		}
	}
	return nil
}

// envMappings maps environment variable names (lowercased) to koanf paths.
// Only listed variables are read; everything else in the environment is ignored.
var envMappings = map[string]string{
	// Server
	"environment":              "server.environment",
	"http_port":                "server.port",
	"http_host":                "server.host",
	"http_timeout":             "server.timeout",
	"http_shutdown_timeout":    "server.shutdown_timeout",
	"edge_requests_per_minute": "server.edge_requests_per_minute",

	// Token validation
	"token_issuer":         "security.token.issuer",
	"token_audience":       "security.token.audience",
	"token_hmac_keys":      "security.token.hmac_keys",
	"token_jwks_url":       "security.token.jwks_url",
	"token_oidc_discovery": "security.token.oidc_discovery",
	"token_jwks_cache_ttl": "security.token.jwks_cache_ttl",
	"token_clock_skew":     "security.token.clock_skew",
	"session_cookie":       "security.token.session_cookie",

	// Origin / CSRF
	"allowed_origins":    "security.origin.allowed_origins",
	"staging_origins":    "security.origin.staging_origins",
	"tool_user_agents":   "security.origin.tool_user_agents",
	"csrf_secret":        "security.origin.csrf_secret",
	"relaxed_local_csrf": "security.origin.relaxed_local_csrf",

	// Rate limiting
	"rate_limit_backend":                 "security.rate_limit.backend",
	"rate_limit_auth_requests":           "security.rate_limit.auth.requests",
	"rate_limit_auth_window":             "security.rate_limit.auth.window",
	"rate_limit_admin_requests":          "security.rate_limit.admin.requests",
	"rate_limit_admin_window":            "security.rate_limit.admin.window",
	"rate_limit_admin_mutation_requests": "security.rate_limit.admin_mutation.requests",
	"rate_limit_admin_mutation_window":   "security.rate_limit.admin_mutation.window",
	"rate_limit_idle_ttl":                "security.rate_limit.idle_ttl",

	// Context cache
	"auth_cache_ttl":           "security.cache.ttl",
	"auth_cache_max_entries":   "security.cache.max_entries",
	"auth_cache_version_store": "security.cache.version_store",
	"anomaly_window":           "security.anomaly_window",

	// Identity provider
	"identity_url":                  "identity.url",
	"identity_api_key":              "identity.api_key",
	"identity_timeout":              "identity.timeout",
	"identity_breaker_max_failures": "identity.breaker_max_failures",
	"identity_breaker_open_timeout": "identity.breaker_open_timeout",

	// Audit
	"audit_store":             "audit.store",
	"audit_dsn":               "audit.dsn",
	"audit_batch_size":        "audit.batch_size",
	"audit_buffer_size":       "audit.buffer_size",
	"audit_flush_interval":    "audit.flush_interval",
	"audit_write_timeout":     "audit.write_timeout",
	"audit_critical_retries":  "audit.critical_retries",
	"audit_chain_key":         "audit.chain_key",
	"audit_alert_nats_url":    "audit.alert_nats_url",
	"audit_alert_topic":       "audit.alert_topic",
	"audit_alerts_per_second": "audit.alerts_per_second",

	// Stores
	"database_dsn":            "database.dsn",
	"database_max_open_conns": "database.max_open_conns",
	"redis_addr":              "redis.addr",
	"redis_password":          "redis.password",
	"redis_db":                "redis.db",
	"overlay_path":            "overlay.path",

	// Logging
	"log_level":  "logging.level",
	"log_format": "logging.format",
	"log_caller": "logging.caller",
}

// envTransformFunc transforms environment variable names to koanf config paths.
//
// Examples:
//   - HTTP_PORT -> server.port
//   - TOKEN_CLOCK_SKEW -> security.token.clock_skew
//   - RATE_LIMIT_ADMIN_REQUESTS -> security.rate_limit.admin.requests
//
// Unknown variables return "" and are skipped by koanf.
func envTransformFunc(key string) string {
	if path, ok := envMappings[strings.ToLower(key)]; ok {
		return path
	}
	return ""
}
