// Pinteya E-commerce - Enterprise Admin Security Pipeline
// Copyright 2026 The Pinteya E-commerce Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/SantiagoXOR/pinteya-ecommerce-sub017

package main

import (
	"context"
	"errors"
	"fmt"

	_ "github.com/duckdb/duckdb-go/v2" // registers the "duckdb" driver
	_ "github.com/jackc/pgx/v5/stdlib" // registers the "pgx" driver

	"github.com/SantiagoXOR/pinteya-ecommerce-sub017/internal/audit"
	"github.com/SantiagoXOR/pinteya-ecommerce-sub017/internal/config"
	"github.com/SantiagoXOR/pinteya-ecommerce-sub017/internal/identity"
	"github.com/SantiagoXOR/pinteya-ecommerce-sub017/internal/logging"
	"github.com/SantiagoXOR/pinteya-ecommerce-sub017/internal/rls"
)

const memoryAuditCapacity = 100000

// storage holds the data clients used by the handlers.
type storage struct {
	sql     *rls.SQLClient
	data    rls.DataClient
	overlay identity.Overlay
}

func (s *storage) executor(auditor rls.Auditor) *rls.Executor {
	return rls.NewExecutor(nil, s.data, auditor)
}

// initAudit opens the audit store and returns a running logger. Closing the
// logger is owned by the AuditService; the store is closed by closers.
func initAudit(ctx context.Context, cfg *config.Config, closers *closerStack) (*audit.Logger, error) {
	var store audit.Store
	switch cfg.Audit.Store {
	case "postgres", "duckdb":
		sqlStore, err := audit.OpenSQLStore(ctx, audit.Dialect(cfg.Audit.Store), cfg.Audit.DSN)
		if err != nil {
			return nil, err
		}
		closers.push("audit-store", sqlStore.Close)
		store = sqlStore
	default:
		logging.Warn().Msg("Audit events are kept in memory and lost on restart")
		store = audit.NewMemoryStore(memoryAuditCapacity)
	}

	alerter, err := initAlerter(&cfg.Audit, closers)
	if err != nil {
		return nil, err
	}

	logging.Info().Str("store", cfg.Audit.Store).Msg("Security audit logger started")
	return audit.NewLogger(store, alerter, audit.ConfigFrom(&cfg.Audit)), nil
}

// initAlerter publishes escalations to NATS when AUDIT_ALERT_NATS_URL is set
// and the binary was built with -tags nats. Escalations are always logged.
func initAlerter(ac *config.AuditConfig, closers *closerStack) (audit.Alerter, error) {
	if ac.AlertNATSURL == "" {
		return audit.LogAlerter{}, nil
	}
	pub, err := audit.NewNATSPublisher(ac.AlertNATSURL, logging.NewWatermillAdapter("audit-alerts"))
	if errors.Is(err, audit.ErrNATSNotCompiled) {
		logging.Warn().Msg("AUDIT_ALERT_NATS_URL is set but NATS support is not compiled in (build with -tags nats)")
		return audit.LogAlerter{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to connect audit alert publisher: %w", err)
	}
	pa := audit.NewPublisherAlerter(pub, ac.AlertTopic, ac.AlertsPerSecond)
	closers.push("audit-alerts", pa.Close)
	return audit.MultiAlerter{audit.LogAlerter{}, pa}, nil
}

// initStorage opens the RLS data client and the permission overlay.
func initStorage(ctx context.Context, cfg *config.Config, closers *closerStack) (*storage, error) {
	s := &storage{}

	switch {
	case cfg.Database.DSN != "":
		client, err := rls.OpenSQLClient(ctx, cfg.Database.DSN, cfg.Database.MaxOpenConns)
		if err != nil {
			return nil, err
		}
		closers.push("database", client.Close)
		s.sql = client
		s.data = client
	case cfg.IsDevelopment():
		logging.Warn().Msg("DATABASE_DSN not set: serving an empty in-memory data store")
		s.data = rls.NewMemoryClient()
	default:
		return nil, errors.New("DATABASE_DSN is required outside development")
	}

	if cfg.Overlay.Path != "" {
		overlay, err := identity.OpenBadgerOverlay(cfg.Overlay.Path)
		if err != nil {
			return nil, err
		}
		closers.push("overlay", overlay.Close)
		s.overlay = overlay
	} else {
		logging.Warn().Msg("OVERLAY_PATH not set: permission overrides are kept in memory")
		s.overlay = identity.NewMemoryOverlay()
	}
	return s, nil
}
