// Pinteya E-commerce - Enterprise Admin Security Pipeline
// Copyright 2026 The Pinteya E-commerce Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/SantiagoXOR/pinteya-ecommerce-sub017

package services

import (
	"context"
	"time"

	"github.com/SantiagoXOR/pinteya-ecommerce-sub017/internal/logging"
)

// SweepTask removes expired state and returns how many entries it dropped.
type SweepTask struct {
	Name  string
	Sweep func() int
}

// JanitorService runs every task once per interval. It keeps the in-process
// rate limiter, context cache and anomaly tracker bounded between requests.
//
//	janitor := services.NewJanitorService(time.Minute,
//	    services.SweepTask{Name: "rate-limiter", Sweep: func() int { return limiter.Sweep(idle) }},
//	    services.SweepTask{Name: "context-cache", Sweep: contexts.Sweep},
//	)
type JanitorService struct {
	interval time.Duration
	tasks    []SweepTask
	name     string
}

// NewJanitorService creates the service. interval <= 0 selects one minute.
func NewJanitorService(interval time.Duration, tasks ...SweepTask) *JanitorService {
	if interval <= 0 {
		interval = time.Minute
	}
	return &JanitorService{interval: interval, tasks: tasks, name: "state-janitor"}
}

// Serve implements suture.Service.
func (j *JanitorService) Serve(ctx context.Context) error {
	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			j.RunOnce()
		}
	}
}

// RunOnce runs every task and returns the total entries removed.
func (j *JanitorService) RunOnce() int {
	total := 0
	for _, task := range j.tasks {
		n := task.Sweep()
		if n > 0 {
			logging.Debug().Str("task", task.Name).Int("removed", n).Msg("Swept expired state")
		}
		total += n
	}
	return total
}

// String implements fmt.Stringer.
func (j *JanitorService) String() string {
	return j.name
}
