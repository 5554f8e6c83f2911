// Pinteya E-commerce - Enterprise Admin Security Pipeline
// Copyright 2026 The Pinteya E-commerce Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/SantiagoXOR/pinteya-ecommerce-sub017

package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// API Metrics
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_requests_total",
			Help: "Total number of API requests",
		},
		[]string{"method", "endpoint", "status_code"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "api_request_duration_seconds",
			Help:    "Duration of API requests in seconds",
			Buckets: []float64{.001, .005, .01, .05, .1, .5, 1, 5, 10},
		},
		[]string{"method", "endpoint"},
	)

	APIActiveRequests = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "api_active_requests",
			Help: "Current number of in-flight API requests",
		},
	)

	// Pipeline Metrics
	PipelineDecisions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "security_pipeline_decisions_total",
			Help: "Pipeline outcomes by final stage and error code",
		},
		[]string{"stage", "outcome", "code"},
	)

	PipelineStageDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "security_pipeline_stage_duration_seconds",
			Help:    "Duration of each pipeline stage in seconds",
			Buckets: []float64{.0001, .0005, .001, .005, .01, .05, .1, .5, 1, 2},
		},
		[]string{"stage"},
	)

	TokenValidations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "security_token_validations_total",
			Help: "Credential validations by result (ok or error kind)",
		},
		[]string{"result"},
	)

	// Rate Limiter Metrics
	RateLimitDecisions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "security_rate_limit_decisions_total",
			Help: "Rate limiter decisions by tier",
		},
		[]string{"tier", "allowed"},
	)

	RateLimitBackendErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "security_rate_limit_backend_errors_total",
			Help: "Centralized limiter failures that fell back to the local limiter",
		},
		[]string{"backend"},
	)

	RateLimitBuckets = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "security_rate_limit_buckets",
			Help: "Current number of live local rate limit buckets",
		},
	)

	// Context Cache Metrics
	AuthCacheHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "security_auth_cache_hits_total",
			Help: "Total number of authorization context cache hits",
		},
	)

	AuthCacheMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "security_auth_cache_misses_total",
			Help: "Total number of authorization context cache misses",
		},
	)

	AuthCacheEvictions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "security_auth_cache_evictions_total",
			Help: "Authorization context cache evictions by reason",
		},
		[]string{"reason"}, // "expired", "version", "capacity", "invalidated"
	)

	AuthCacheInvalidations = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "security_auth_cache_invalidations_total",
			Help: "Total number of per-user cache invalidations",
		},
	)

	// Audit Metrics
	AuditEventsRecorded = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "security_audit_events_total",
			Help: "Security audit events recorded by type and severity",
		},
		[]string{"type", "severity"},
	)

	AuditEventsWritten = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "security_audit_events_written_total",
			Help: "Security audit events persisted to the store",
		},
	)

	AuditWriteFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "security_audit_write_failures_total",
			Help: "Audit store write failures by path",
		},
		[]string{"path"}, // "batch", "critical"
	)

	AuditEscalations = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "security_audit_escalations_total",
			Help: "Critical audit events escalated after exhausting retries",
		},
	)

	AuditDeadLetter = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "security_audit_dead_letter_events",
			Help: "Critical audit events parked awaiting a successful write",
		},
	)

	AuditBatchSize = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "security_audit_batch_size",
			Help:    "Number of events per audit batch write",
			Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500},
		},
	)

	// RLS Metrics
	RLSExecutions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "security_rls_executions_total",
			Help: "Row-level security executions by resource and outcome",
		},
		[]string{"resource", "outcome"},
	)

	// Identity Provider Metrics
	IdentityLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "security_identity_lookups_total",
			Help: "Identity provider lookups by outcome",
		},
		[]string{"outcome"},
	)

	IdentityLookupDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "security_identity_lookup_duration_seconds",
			Help:    "Duration of identity provider lookups in seconds",
			Buckets: []float64{.005, .01, .05, .1, .25, .5, 1, 2},
		},
	)

	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)
)

// RecordAPIRequest records an API request metric
func RecordAPIRequest(method, endpoint, statusCode string, duration time.Duration) {
	APIRequestsTotal.WithLabelValues(method, endpoint, statusCode).Inc()
	APIRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// TrackActiveRequest tracks active API requests
func TrackActiveRequest(inc bool) {
	if inc {
		APIActiveRequests.Inc()
	} else {
		APIActiveRequests.Dec()
	}
}

// RecordPipelineDecision records the terminal outcome of one request.
// code is empty for allowed requests.
func RecordPipelineDecision(stage string, allowed bool, code string) {
	outcome := "rejected"
	if allowed {
		outcome = "allowed"
		code = "none"
	}
	PipelineDecisions.WithLabelValues(stage, outcome, code).Inc()
}

// RecordStageDuration records how long a pipeline stage took.
func RecordStageDuration(stage string, duration time.Duration) {
	PipelineStageDuration.WithLabelValues(stage).Observe(duration.Seconds())
}

// RecordTokenValidation records a credential validation result.
func RecordTokenValidation(result string) {
	TokenValidations.WithLabelValues(result).Inc()
}

// RecordRateLimit records a limiter decision for a tier.
func RecordRateLimit(tier string, allowed bool) {
	RateLimitDecisions.WithLabelValues(tier, strconv.FormatBool(allowed)).Inc()
}

// RecordRateLimitBackendError records a centralized limiter failure.
func RecordRateLimitBackendError(backend string) {
	RateLimitBackendErrors.WithLabelValues(backend).Inc()
}

// SetRateLimitBuckets sets the live bucket gauge.
func SetRateLimitBuckets(n int) {
	RateLimitBuckets.Set(float64(n))
}

// RecordCacheHit records an authorization context cache hit.
func RecordCacheHit() {
	AuthCacheHits.Inc()
}

// RecordCacheMiss records an authorization context cache miss.
func RecordCacheMiss() {
	AuthCacheMisses.Inc()
}

// RecordCacheEviction records an eviction with its reason.
func RecordCacheEviction(reason string) {
	AuthCacheEvictions.WithLabelValues(reason).Inc()
}

// RecordCacheInvalidation records a per-user invalidation.
func RecordCacheInvalidation() {
	AuthCacheInvalidations.Inc()
}

// RecordAuditEvent records an event accepted by the audit logger.
func RecordAuditEvent(eventType, severity string) {
	AuditEventsRecorded.WithLabelValues(eventType, severity).Inc()
}

// RecordAuditWrite records a successful store write of n events.
func RecordAuditWrite(n int) {
	AuditEventsWritten.Add(float64(n))
	AuditBatchSize.Observe(float64(n))
}

// RecordAuditWriteFailure records a failed store write.
func RecordAuditWriteFailure(path string) {
	AuditWriteFailures.WithLabelValues(path).Inc()
}

// RecordAuditEscalation records an escalated critical event.
func RecordAuditEscalation() {
	AuditEscalations.Inc()
}

// SetAuditDeadLetter sets the dead-letter gauge.
func SetAuditDeadLetter(n int) {
	AuditDeadLetter.Set(float64(n))
}

// RecordRLSExecution records an RLS execution outcome.
func RecordRLSExecution(resource, outcome string) {
	RLSExecutions.WithLabelValues(resource, outcome).Inc()
}

// RecordIdentityLookup records an identity provider lookup.
func RecordIdentityLookup(outcome string, duration time.Duration) {
	IdentityLookups.WithLabelValues(outcome).Inc()
	IdentityLookupDuration.Observe(duration.Seconds())
}

// SetCircuitBreakerState sets the breaker gauge (0=closed, 1=half-open, 2=open).
func SetCircuitBreakerState(name string, state int) {
	CircuitBreakerState.WithLabelValues(name).Set(float64(state))
}
