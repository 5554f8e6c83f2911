// Pinteya E-commerce - Enterprise Admin Security Pipeline
// Copyright 2026 The Pinteya E-commerce Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/SantiagoXOR/pinteya-ecommerce-sub017

package audit

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/goccy/go-json"
	"golang.org/x/time/rate"

	"github.com/SantiagoXOR/pinteya-ecommerce-sub017/internal/logging"
	"github.com/SantiagoXOR/pinteya-ecommerce-sub017/internal/metrics"
)

// DefaultAlertTopic is the topic escalations are published on.
const DefaultAlertTopic = "security.audit.alerts"

// ErrAlertThrottled is returned when an alert was suppressed by the rate limit.
var ErrAlertThrottled = errors.New("audit alert throttled")

// ErrNATSNotCompiled is returned by NewNATSPublisher when NATS support is
// not built in.
var ErrNATSNotCompiled = errors.New("NATS alerting requires building with -tags nats")

// Alerter escalates a critical event that could not be persisted.
type Alerter interface {
	Alert(ctx context.Context, e *Event, cause error) error
}

// Alert is the payload published for an escalation.
type Alert struct {
	Event    *Event    `json:"event"`
	Cause    string    `json:"cause"`
	RaisedAt time.Time `json:"raised_at"`
}

// LogAlerter writes escalations to the process log. It never fails.
type LogAlerter struct{}

// Alert implements Alerter.
func (LogAlerter) Alert(ctx context.Context, e *Event, cause error) error {
	logging.Ctx(ctx).Error().
		Err(cause).
		Str("event_id", e.ID).
		Str("event_type", string(e.Type)).
		Str("actor_id", logging.SanitizeUserID(e.ActorID)).
		Str("source_ip", e.Source.IP).
		Msg("[AUDIT ESCALATION] Critical security event could not be persisted")
	return nil
}

// PublisherAlerter publishes escalations through a Watermill publisher,
// throttled so a failing store cannot flood the channel.
type PublisherAlerter struct {
	pub     message.Publisher
	topic   string
	limiter *rate.Limiter
}

// NewPublisherAlerter creates an alerter. perSecond <= 0 disables throttling.
func NewPublisherAlerter(pub message.Publisher, topic string, perSecond float64) *PublisherAlerter {
	if topic == "" {
		topic = DefaultAlertTopic
	}
	limit := rate.Inf
	burst := 0
	if perSecond > 0 {
		limit = rate.Limit(perSecond)
		burst = int(perSecond)
		if burst < 1 {
			burst = 1
		}
	}
	return &PublisherAlerter{
		pub:     pub,
		topic:   topic,
		limiter: rate.NewLimiter(limit, burst),
	}
}

// Alert implements Alerter.
func (a *PublisherAlerter) Alert(ctx context.Context, e *Event, cause error) error {
	if !a.limiter.Allow() {
		return ErrAlertThrottled
	}
	payload := Alert{Event: e, RaisedAt: time.Now().UTC()}
	if cause != nil {
		payload.Cause = cause.Error()
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal alert: %w", err)
	}

	msg := message.NewMessage(e.ID, data)
	msg.Metadata.Set("event_type", string(e.Type))
	msg.Metadata.Set("severity", string(e.Severity))
	msg.SetContext(ctx)
	if err := a.pub.Publish(a.topic, msg); err != nil {
		return fmt.Errorf("publish alert: %w", err)
	}
	return nil
}

// Close closes the underlying publisher.
func (a *PublisherAlerter) Close() error {
	return a.pub.Close()
}

// MultiAlerter fans an escalation out to every alerter.
type MultiAlerter []Alerter

// Alert implements Alerter. Every alerter runs even if an earlier one fails.
func (m MultiAlerter) Alert(ctx context.Context, e *Event, cause error) error {
	var errs []error
	for _, a := range m {
		if err := a.Alert(ctx, e, cause); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// escalate sends e through alerter and records the outcome.
func escalate(ctx context.Context, alerter Alerter, e *Event, cause error) {
	metrics.RecordAuditEscalation()
	if alerter == nil {
		alerter = LogAlerter{}
	}
	if err := alerter.Alert(ctx, e, cause); err != nil {
		logging.Ctx(ctx).Warn().Err(err).Str("event_id", e.ID).Msg("Audit escalation delivery failed")
	}
}
