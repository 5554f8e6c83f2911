// Pinteya E-commerce - Enterprise Admin Security Pipeline
// Copyright 2026 The Pinteya E-commerce Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/SantiagoXOR/pinteya-ecommerce-sub017

package main

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/SantiagoXOR/pinteya-ecommerce-sub017/internal/audit"
	"github.com/SantiagoXOR/pinteya-ecommerce-sub017/internal/auth"
	"github.com/SantiagoXOR/pinteya-ecommerce-sub017/internal/authz"
	"github.com/SantiagoXOR/pinteya-ecommerce-sub017/internal/cache"
	"github.com/SantiagoXOR/pinteya-ecommerce-sub017/internal/config"
	"github.com/SantiagoXOR/pinteya-ecommerce-sub017/internal/identity"
	"github.com/SantiagoXOR/pinteya-ecommerce-sub017/internal/logging"
	"github.com/SantiagoXOR/pinteya-ecommerce-sub017/internal/pipeline"
	"github.com/SantiagoXOR/pinteya-ecommerce-sub017/internal/ratelimit"
	"github.com/SantiagoXOR/pinteya-ecommerce-sub017/internal/supervisor/services"
)

const maxAnomalyIdentities = 100000

// security holds the pipeline and the in-process state the janitor sweeps.
type security struct {
	composer  *pipeline.Composer
	limiter   *ratelimit.SlidingWindow
	contexts  *cache.VersionedCache[*authz.AuthContext]
	anomalies *authz.AnomalyTracker
}

// newRedisClient returns nil unless a Redis backend is selected.
func newRedisClient(cfg *config.Config) *redis.Client {
	if !cfg.UsesRedis() {
		return nil
	}
	return redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
}

func initSecurity(ctx context.Context, cfg *config.Config, redisClient *redis.Client, auditLogger *audit.Logger, overlay identity.Overlay) (*security, error) {
	validator, err := initTokenValidator(ctx, &cfg.Security.Token)
	if err != nil {
		return nil, err
	}

	origin, err := auth.NewOriginGuard(auth.OriginConfig{
		AllowedOrigins: cfg.Security.Origin.AllowedOrigins,
		StagingOrigins: cfg.Security.Origin.StagingOrigins,
		ToolUserAgents: cfg.Security.Origin.ToolUserAgents,
		CSRFSecret:     []byte(cfg.Security.Origin.CSRFSecret),
		Production:     cfg.IsProduction(),
		RelaxedLocal:   cfg.Security.Origin.RelaxedLocalCSRF,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create origin guard: %w", err)
	}

	local := ratelimit.NewSlidingWindow()
	var limiter ratelimit.Limiter = local
	if cfg.Security.RateLimit.Backend == config.BackendRedis {
		limiter = ratelimit.NewRedisLimiter(redisClient, local)
		logging.Info().Str("addr", cfg.Redis.Addr).Msg("Rate limiting backed by Redis")
	}
	tiers, err := ratelimit.NewTiers(limiter, ratelimit.LimitsFromConfig(&cfg.Security.RateLimit))
	if err != nil {
		return nil, fmt.Errorf("failed to create rate limit tiers: %w", err)
	}

	enforcer, err := authz.NewEnforcer(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create enforcer: %w", err)
	}
	anomalies := authz.NewAnomalyTracker(cfg.Security.AnomalyWindow, maxAnomalyIdentities)
	evaluator := authz.NewEvaluator(enforcer, anomalies)

	var versions cache.VersionStore = cache.NewLocalVersionStore()
	var revocations cache.RevocationStore = cache.NewLocalRevocationStore()
	if cfg.Security.Cache.VersionStore == config.BackendRedis {
		versions = cache.NewRedisVersionStore(redisClient)
		revocations = cache.NewRedisRevocationStore(redisClient)
	}
	contexts, err := cache.New[*authz.AuthContext](versions, cache.Config{
		TTL:        cfg.Security.Cache.TTL,
		MaxEntries: cfg.Security.Cache.MaxEntries,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create context cache: %w", err)
	}

	provider, err := initIdentity(cfg)
	if err != nil {
		return nil, err
	}

	pcfg := pipeline.DefaultConfig()
	pcfg.SessionCookie = cfg.Security.Token.SessionCookie
	composer, err := pipeline.NewComposer(pipeline.Deps{
		Validator:   validator,
		Origin:      origin,
		Tiers:       tiers,
		Evaluator:   evaluator,
		Identities:  identity.NewOverlayProvider(provider, overlay),
		Contexts:    contexts,
		Auditor:     auditLogger,
		Revocations: revocations,
	}, pcfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create security pipeline: %w", err)
	}

	return &security{composer: composer, limiter: local, contexts: contexts, anomalies: anomalies}, nil
}

// initTokenValidator builds the key set from HMAC keys and, when configured,
// a JWKS endpoint given directly or found through OIDC discovery.
func initTokenValidator(ctx context.Context, tc *config.TokenConfig) (*auth.TokenValidator, error) {
	hmacKeys, err := tc.ParseHMACKeys()
	if err != nil {
		return nil, err
	}

	httpClient := &http.Client{Timeout: 2 * time.Second}
	jwksURL := tc.JWKSURL
	if jwksURL == "" && tc.OIDCDiscovery {
		discoverCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		jwksURL, err = auth.DiscoverJWKSURI(discoverCtx, tc.Issuer, httpClient)
		cancel()
		if err != nil {
			return nil, err
		}
		logging.Info().Str("jwks_uri", jwksURL).Msg("Discovered signing keys through OIDC")
	}

	var jwks *auth.JWKSCache
	if jwksURL != "" {
		jwks = auth.NewJWKSCache(jwksURL, httpClient, tc.JWKSCacheTTL)
	}

	validator, err := auth.NewTokenValidator(auth.NewKeySet(hmacKeys, jwks), auth.ValidatorConfig{
		Issuer:    tc.Issuer,
		Audience:  tc.Audience,
		ClockSkew: tc.ClockSkew,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create token validator: %w", err)
	}
	logging.Info().Int("hmac_keys", len(hmacKeys)).Bool("jwks", jwks != nil).Msg("Token validation configured")
	return validator, nil
}

// initIdentity returns the identity provider behind a timeout and circuit
// breaker. Without IDENTITY_URL (development only) it serves fixtures.
func initIdentity(cfg *config.Config) (identity.Provider, error) {
	if cfg.Identity.URL == "" {
		logging.Warn().Msg("IDENTITY_URL not set: serving development identity fixtures")
		return devIdentities(), nil
	}
	httpProvider, err := identity.NewHTTPProvider(cfg.Identity.URL, cfg.Identity.APIKey, nil)
	if err != nil {
		return nil, err
	}
	return identity.NewGuardedProvider(httpProvider, identity.GuardConfig{
		Timeout:     cfg.Identity.Timeout,
		MaxFailures: cfg.Identity.BreakerMaxFailures,
		OpenTimeout: cfg.Identity.BreakerOpenTimeout,
	}), nil
}

func devIdentities() *identity.StaticProvider {
	return identity.NewStaticProvider(
		identity.Identity{ID: "dev-super-admin", IsActive: true, Role: "super-admin", TenantID: "dev"},
		identity.Identity{ID: "dev-admin", IsActive: true, Role: "admin", TenantID: "dev"},
		identity.Identity{ID: "dev-support", IsActive: true, Role: "support", TenantID: "dev"},
		identity.Identity{ID: "dev-customer", IsActive: true, Role: "customer", TenantID: "dev"},
	)
}

// sweepTasks bounds the in-process state between requests.
func (s *security) sweepTasks(cfg *config.Config) []services.SweepTask {
	idle := cfg.Security.RateLimit.IdleTTL
	return []services.SweepTask{
		{Name: "rate-limiter", Sweep: func() int { return s.limiter.Sweep(idle) }},
		{Name: "context-cache", Sweep: s.contexts.Sweep},
		{Name: "anomaly-tracker", Sweep: s.anomalies.Cleanup},
	}
}
