// Pinteya E-commerce - Enterprise Admin Security Pipeline
// Copyright 2026 The Pinteya E-commerce Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/SantiagoXOR/pinteya-ecommerce-sub017

package services

import (
	"context"
	"time"

	"github.com/SantiagoXOR/pinteya-ecommerce-sub017/internal/logging"
	"github.com/SantiagoXOR/pinteya-ecommerce-sub017/internal/metrics"
)

// AuditLog is the lifecycle subset of *audit.Logger.
type AuditLog interface {
	Flush(ctx context.Context) error
	Verify(ctx context.Context) error
	DeadLetterLen() int
	Close() error
}

// AuditService owns the audit logger lifecycle. While running it verifies
// the hash chain every interval and publishes the dead-letter backlog. On
// shutdown it drains and closes the logger.
type AuditService struct {
	log      AuditLog
	interval time.Duration
	name     string
}

// NewAuditService creates the service. interval <= 0 selects one minute.
func NewAuditService(log AuditLog, interval time.Duration) *AuditService {
	if interval <= 0 {
		interval = time.Minute
	}
	return &AuditService{log: log, interval: interval, name: "audit-logger"}
}

// Serve implements suture.Service.
func (a *AuditService) Serve(ctx context.Context) error {
	ticker := time.NewTicker(a.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return a.shutdown(ctx)
		case <-ticker.C:
			a.check(ctx)
		}
	}
}

func (a *AuditService) check(ctx context.Context) {
	metrics.SetAuditDeadLetter(a.log.DeadLetterLen())

	checkCtx, cancel := context.WithTimeout(ctx, a.interval/2)
	defer cancel()
	if err := a.log.Flush(checkCtx); err != nil {
		return
	}
	if err := a.log.Verify(checkCtx); err != nil {
		logging.Error().Err(err).Msg("Audit hash chain verification failed")
	}
}

func (a *AuditService) shutdown(ctx context.Context) error {
	if err := a.log.Close(); err != nil {
		logging.Error().Err(err).Int("dead_letter", a.log.DeadLetterLen()).Msg("Audit logger closed with unpersisted events")
	}
	metrics.SetAuditDeadLetter(a.log.DeadLetterLen())
	return ctx.Err()
}

// String implements fmt.Stringer.
func (a *AuditService) String() string {
	return a.name
}
