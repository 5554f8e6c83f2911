// Pinteya E-commerce - Enterprise Admin Security Pipeline
// Copyright 2026 The Pinteya E-commerce Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/SantiagoXOR/pinteya-ecommerce-sub017

package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/SantiagoXOR/pinteya-ecommerce-sub017/internal/api"
	"github.com/SantiagoXOR/pinteya-ecommerce-sub017/internal/audit"
	"github.com/SantiagoXOR/pinteya-ecommerce-sub017/internal/config"
	"github.com/SantiagoXOR/pinteya-ecommerce-sub017/internal/logging"
	"github.com/SantiagoXOR/pinteya-ecommerce-sub017/internal/middleware"
	"github.com/SantiagoXOR/pinteya-ecommerce-sub017/internal/supervisor"
	"github.com/SantiagoXOR/pinteya-ecommerce-sub017/internal/supervisor/services"
)

func main() {
	cfg, err := config.LoadWithKoanf()
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logging.Init(logging.Config{
		Level:     cfg.Logging.Level,
		Format:    cfg.Logging.Format,
		Caller:    cfg.Logging.Caller,
		Timestamp: true,
	})

	logging.Info().
		Str("environment", cfg.Server.Environment).
		Str("rate_limit_backend", cfg.Security.RateLimit.Backend).
		Str("audit_store", cfg.Audit.Store).
		Msg("Starting admin API with supervisor tree")

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, cfg); err != nil {
		logging.Error().Err(err).Msg("Server stopped with error")
		os.Exit(1)
	}
	logging.Info().Msg("Server stopped")
}

func run(ctx context.Context, cfg *config.Config) error {
	var closers closerStack
	defer closers.closeAll()

	redisClient := newRedisClient(cfg)
	if redisClient != nil {
		closers.push("redis", redisClient.Close)
	}

	auditLogger, err := initAudit(ctx, cfg, &closers)
	if err != nil {
		return err
	}

	store, err := initStorage(ctx, cfg, &closers)
	if err != nil {
		return err
	}

	sec, err := initSecurity(ctx, cfg, redisClient, auditLogger, store.overlay)
	if err != nil {
		return err
	}

	perfMon := middleware.NewPerformanceMonitor(1000, middleware.DefaultSlowThreshold)
	handler, err := api.NewHandler(api.HandlerDeps{
		Composer: sec.composer,
		Executor: store.executor(auditLogger),
		Audit:    auditLogger,
		Overlay:  store.overlay,
		PerfMon:  perfMon,
		Checks:   healthChecks(auditLogger, redisClient, store),
	})
	if err != nil {
		return fmt.Errorf("failed to create handler: %w", err)
	}

	mwCfg := api.DefaultChiMiddlewareConfig()
	mwCfg.CORSAllowedOrigins = append(append([]string{}, cfg.Security.Origin.AllowedOrigins...), cfg.Security.Origin.StagingOrigins...)
	mwCfg.EdgeRequests = cfg.Server.EdgeRequestsPerMinute
	router := api.NewRouter(handler, sec.composer, api.NewChiMiddleware(mwCfg), perfMon)

	server := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:           router.SetupChi(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       cfg.Server.Timeout,
		WriteTimeout:      cfg.Server.Timeout,
		IdleTimeout:       2 * time.Minute,
	}

	tree, err := supervisor.NewSupervisorTree(logging.NewSlogLogger(), supervisor.TreeConfig{
		FailureThreshold: 5,
		FailureBackoff:   15 * time.Second,
		ShutdownTimeout:  cfg.Server.ShutdownTimeout,
	})
	if err != nil {
		return fmt.Errorf("failed to create supervisor tree: %w", err)
	}

	tree.AddStorageService(services.NewAuditService(auditLogger, time.Minute))
	tree.AddStorageService(services.NewJanitorService(cfg.Security.RateLimit.SweepInterval, sec.sweepTasks(cfg)...))
	tree.AddAPIService(services.NewHTTPServerService(server, cfg.Server.ShutdownTimeout))

	logging.Info().Str("addr", server.Addr).Msg("HTTP server listening")
	if err := tree.Serve(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("supervisor tree: %w", err)
	}

	report, err := tree.UnstoppedServiceReport()
	if err == nil && len(report) > 0 {
		for _, svc := range report {
			logging.Warn().Str("service", svc.Name).Msg("Service did not stop within the shutdown timeout")
		}
	}
	return nil
}

// healthChecks returns the dependency checks behind /healthz.
func healthChecks(auditLog *audit.Logger, redisClient *redis.Client, store *storage) map[string]api.HealthCheck {
	checks := map[string]api.HealthCheck{
		"audit": auditLog.Flush,
	}
	if redisClient != nil {
		checks["redis"] = func(ctx context.Context) error { return redisClient.Ping(ctx).Err() }
	}
	if store.sql != nil {
		checks["database"] = func(ctx context.Context) error { return store.sql.DB().PingContext(ctx) }
	}
	return checks
}

// closerStack closes resources in reverse order of acquisition.
type closerStack struct {
	names []string
	fns   []func() error
}

func (c *closerStack) push(name string, fn func() error) {
	c.names = append(c.names, name)
	c.fns = append(c.fns, fn)
}

func (c *closerStack) closeAll() {
	for i := len(c.fns) - 1; i >= 0; i-- {
		if err := c.fns[i](); err != nil {
			logging.Error().Err(err).Str("resource", c.names[i]).Msg("Error closing resource")
		}
	}
}
