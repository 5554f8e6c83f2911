// Pinteya E-commerce - Enterprise Admin Security Pipeline
// Copyright 2026 The Pinteya E-commerce Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/SantiagoXOR/pinteya-ecommerce-sub017

package audit

import (
	"context"
	"fmt"
	"time"
)

// DefaultTopN is the number of actors and IPs a Summary lists.
const DefaultTopN = 10

// Summary describes security activity over a window.
type Summary struct {
	Since      time.Time           `json:"since"`
	Until      time.Time           `json:"until"`
	Total      int64               `json:"total"`
	ByType     map[EventType]int64 `json:"by_type"`
	BySeverity map[Severity]int64  `json:"by_severity"`
	TopActors  []Bucket            `json:"top_actors"`
	TopIPs     []Bucket            `json:"top_ips"`
}

// Summarize aggregates store events in [since, until].
func Summarize(ctx context.Context, store Store, since, until time.Time, topN int) (*Summary, error) {
	if topN <= 0 {
		topN = DefaultTopN
	}
	filter := QueryFilter{Since: since, Until: until}

	total, err := store.Count(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("summary count: %w", err)
	}

	s := &Summary{
		Since:      since,
		Until:      until,
		Total:      total,
		ByType:     make(map[EventType]int64),
		BySeverity: make(map[Severity]int64),
	}

	byType, err := store.Aggregate(ctx, filter, FieldType, 0)
	if err != nil {
		return nil, fmt.Errorf("summary by type: %w", err)
	}
	for _, b := range byType {
		s.ByType[EventType(b.Key)] = b.Count
	}

	bySeverity, err := store.Aggregate(ctx, filter, FieldSeverity, 0)
	if err != nil {
		return nil, fmt.Errorf("summary by severity: %w", err)
	}
	for _, b := range bySeverity {
		s.BySeverity[Severity(b.Key)] = b.Count
	}

	if s.TopActors, err = store.Aggregate(ctx, filter, FieldActorID, topN); err != nil {
		return nil, fmt.Errorf("summary top actors: %w", err)
	}
	if s.TopIPs, err = store.Aggregate(ctx, filter, FieldSourceIP, topN); err != nil {
		return nil, fmt.Errorf("summary top ips: %w", err)
	}
	return s, nil
}

// Summary aggregates the logger's store over the trailing window.
func (l *Logger) Summary(ctx context.Context, window time.Duration, topN int) (*Summary, error) {
	until := l.now().UTC()
	return Summarize(ctx, l.store, until.Add(-window), until, topN)
}
