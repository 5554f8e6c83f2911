// Pinteya E-commerce - Enterprise Admin Security Pipeline
// Copyright 2026 The Pinteya E-commerce Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/SantiagoXOR/pinteya-ecommerce-sub017

package audit

import (
	"context"
	"errors"
	mathrand "math/rand"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/SantiagoXOR/pinteya-ecommerce-sub017/internal/logging"
)

// EventType represents the type of security event.
type EventType string

// Security event types.
const (
	EventTypeAuthSuccess         EventType = "auth_success"
	EventTypeAuthFailure         EventType = "auth_failure"
	EventTypePermissionDenied    EventType = "permission_denied"
	EventTypeRateLimited         EventType = "rate_limited"
	EventTypeCSRFRejected        EventType = "csrf_rejected"
	EventTypeRLSViolationAttempt EventType = "rls_violation_attempt"
	EventTypeAnomaly             EventType = "anomaly"
	EventTypeRLSAccess           EventType = "rls_access"
	EventTypeRLSElevation        EventType = "rls_elevation"
	EventTypeGrantChanged        EventType = "grant_changed"
	EventTypeSessionsRevoked     EventType = "sessions_revoked"
)

// Severity represents the severity level of an event.
type Severity string

// Severity levels, in ascending order.
const (
	SeverityInfo     Severity = "info"
	SeverityWarn     Severity = "warn"
	SeverityError    Severity = "error"
	SeverityCritical Severity = "critical"
)

// Rank orders severities. Unknown values rank below info.
func (s Severity) Rank() int {
	switch s {
	case SeverityInfo:
		return 1
	case SeverityWarn:
		return 2
	case SeverityError:
		return 3
	case SeverityCritical:
		return 4
	default:
		return 0
	}
}

// Category groups event types.
type Category string

// Event categories.
const (
	CategoryAuthentication Category = "authentication"
	CategoryAuthorization  Category = "authorization"
	CategoryRateLimit      Category = "rate_limit"
	CategoryCSRF           Category = "csrf"
	CategoryDataAccess     Category = "data_access"
	CategoryAnomaly        Category = "anomaly"
	CategoryAdministration Category = "administration"
)

type typeDefaults struct {
	category Category
	severity Severity
}

var defaultsByType = map[EventType]typeDefaults{
	EventTypeAuthSuccess:         {CategoryAuthentication, SeverityInfo},
	EventTypeAuthFailure:         {CategoryAuthentication, SeverityWarn},
	EventTypePermissionDenied:    {CategoryAuthorization, SeverityWarn},
	EventTypeRateLimited:         {CategoryRateLimit, SeverityWarn},
	EventTypeCSRFRejected:        {CategoryCSRF, SeverityWarn},
	EventTypeRLSViolationAttempt: {CategoryDataAccess, SeverityCritical},
	EventTypeAnomaly:             {CategoryAnomaly, SeverityError},
	EventTypeRLSAccess:           {CategoryDataAccess, SeverityInfo},
	EventTypeRLSElevation:        {CategoryDataAccess, SeverityWarn},
	EventTypeGrantChanged:        {CategoryAdministration, SeverityWarn},
	EventTypeSessionsRevoked:     {CategoryAdministration, SeverityWarn},
}

// Source identifies where a request came from.
type Source struct {
	IP        string `json:"ip"`
	UserAgent string `json:"user_agent,omitempty"`
	Origin    string `json:"origin,omitempty"`
}

// Event is one security audit record.
//
// Seq, PrevHash and Hash are assigned when the event is appended to a Store
// and must not be set by callers.
type Event struct {
	ID        string            `json:"id"`
	Seq       uint64            `json:"seq"`
	Type      EventType         `json:"type"`
	Category  Category          `json:"category"`
	Severity  Severity          `json:"severity"`
	ActorID   string            `json:"actor_id,omitempty"`
	Role      string            `json:"role,omitempty"`
	Timestamp time.Time         `json:"timestamp"`
	RequestID string            `json:"request_id,omitempty"`
	Stage     string            `json:"stage,omitempty"`
	Code      string            `json:"code,omitempty"`
	Source    Source            `json:"source"`
	Metadata  map[string]string `json:"metadata,omitempty"`
	PrevHash  string            `json:"prev_hash"`
	Hash      string            `json:"hash"`
}

// Clone returns a deep copy of e.
func (e *Event) Clone() *Event {
	c := *e
	if e.Metadata != nil {
		c.Metadata = make(map[string]string, len(e.Metadata))
		for k, v := range e.Metadata {
			c.Metadata[k] = v
		}
	}
	return &c
}

// IsCritical reports whether e bypasses batching.
func (e *Event) IsCritical() bool {
	return e.Severity == SeverityCritical
}

// normalize fills defaults. Timestamps are truncated to microseconds so they
// survive a round trip through SQL storage unchanged.
func (e *Event) normalize(ctx context.Context, now time.Time) {
	if e.ID == "" {
		e.ID = newEventID(now)
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = now
	}
	e.Timestamp = e.Timestamp.UTC().Truncate(time.Microsecond)

	d, known := defaultsByType[e.Type]
	if e.Category == "" {
		e.Category = d.category
	}
	if e.Severity == "" {
		e.Severity = d.severity
		if !known {
			e.Severity = SeverityInfo
		}
	}
	if e.RequestID == "" {
		e.RequestID = logging.RequestIDFromContext(ctx)
	}
	if len(e.Metadata) == 0 {
		e.Metadata = nil
	}
}

var (
	entropyMu sync.Mutex
	entropy   = ulid.Monotonic(mathrand.New(mathrand.NewSource(time.Now().UnixNano())), 0)
)

// newEventID returns a lexicographically sortable identifier.
func newEventID(at time.Time) string {
	entropyMu.Lock()
	defer entropyMu.Unlock()
	return ulid.MustNew(ulid.Timestamp(at), entropy).String()
}

// ErrNilEvent is returned when recording a nil event.
var ErrNilEvent = errors.New("audit event cannot be nil")

// QueryFilter defines filters for querying audit events.
type QueryFilter struct {
	Types      []EventType `json:"types,omitempty"`
	Severities []Severity  `json:"severities,omitempty"`
	ActorID    string      `json:"actor_id,omitempty"`
	SourceIP   string      `json:"source_ip,omitempty"`
	RequestID  string      `json:"request_id,omitempty"`
	Since      time.Time   `json:"since,omitempty"`
	Until      time.Time   `json:"until,omitempty"`
	// AfterSeq keeps events with a sequence number above it.
	AfterSeq uint64 `json:"after_seq,omitempty"`
	Limit    int    `json:"limit,omitempty"`
	Offset   int    `json:"offset,omitempty"`
	// Descending orders by sequence newest first.
	Descending bool `json:"descending,omitempty"`
}

// Matches reports whether e passes every non-empty filter field.
func (f *QueryFilter) Matches(e *Event) bool {
	if len(f.Types) > 0 && !containsValue(f.Types, e.Type) {
		return false
	}
	if len(f.Severities) > 0 && !containsValue(f.Severities, e.Severity) {
		return false
	}
	if f.ActorID != "" && e.ActorID != f.ActorID {
		return false
	}
	if f.SourceIP != "" && e.Source.IP != f.SourceIP {
		return false
	}
	if f.RequestID != "" && e.RequestID != f.RequestID {
		return false
	}
	if !f.Since.IsZero() && e.Timestamp.Before(f.Since) {
		return false
	}
	if !f.Until.IsZero() && e.Timestamp.After(f.Until) {
		return false
	}
	if f.AfterSeq > 0 && e.Seq <= f.AfterSeq {
		return false
	}
	return true
}

func containsValue[T comparable](list []T, v T) bool {
	for _, x := range list {
		if x == v {
			return true
		}
	}
	return false
}

// AggregateField names a column events can be grouped by.
type AggregateField string

// Aggregatable fields.
const (
	FieldType     AggregateField = "type"
	FieldSeverity AggregateField = "severity"
	FieldActorID  AggregateField = "actor_id"
	FieldSourceIP AggregateField = "source_ip"
)

// ErrUnknownField is returned by Aggregate for an unsupported field.
var ErrUnknownField = errors.New("unknown aggregate field")

func (f AggregateField) valueOf(e *Event) (string, error) {
	switch f {
	case FieldType:
		return string(e.Type), nil
	case FieldSeverity:
		return string(e.Severity), nil
	case FieldActorID:
		return e.ActorID, nil
	case FieldSourceIP:
		return e.Source.IP, nil
	default:
		return "", ErrUnknownField
	}
}

// Bucket is one group of an aggregation.
type Bucket struct {
	Key   string `json:"key"`
	Count int64  `json:"count"`
}

// Store persists audit events. Stores are append-only: there is no update
// or delete.
type Store interface {
	// Append writes events atomically in the given order.
	Append(ctx context.Context, events ...*Event) error

	// Query retrieves events matching the filter, ordered by sequence.
	Query(ctx context.Context, filter QueryFilter) ([]*Event, error)

	// Count returns the number of events matching the filter.
	Count(ctx context.Context, filter QueryFilter) (int64, error)

	// Aggregate groups matching events by field, largest buckets first.
	// A non-positive limit returns every bucket.
	Aggregate(ctx context.Context, filter QueryFilter, field AggregateField, limit int) ([]Bucket, error)
}
