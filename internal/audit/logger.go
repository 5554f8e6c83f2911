// Pinteya E-commerce - Enterprise Admin Security Pipeline
// Copyright 2026 The Pinteya E-commerce Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/SantiagoXOR/pinteya-ecommerce-sub017

package audit

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"

	"github.com/SantiagoXOR/pinteya-ecommerce-sub017/internal/config"
	"github.com/SantiagoXOR/pinteya-ecommerce-sub017/internal/logging"
	"github.com/SantiagoXOR/pinteya-ecommerce-sub017/internal/metrics"
)

// ErrDeadLettered is returned by Record when a critical event could not be
// written and was parked for the next flush.
var ErrDeadLettered = errors.New("audit event parked in dead-letter buffer")

// Config holds audit logger configuration.
type Config struct {
	// BatchSize is the number of non-critical events written per batch.
	BatchSize int
	// BufferSize is the capacity of the pending-event queue.
	BufferSize int
	// FlushInterval bounds how long a partial batch waits.
	FlushInterval time.Duration
	// WriteTimeout bounds each store attempt.
	WriteTimeout time.Duration
	// CriticalRetries is the number of retries after the first failed
	// critical write.
	CriticalRetries int
	// RetryInitialInterval is the first backoff delay for critical writes.
	RetryInitialInterval time.Duration
	// DeadLetterLimit caps parked non-critical events. Critical events are
	// never dropped.
	DeadLetterLimit int
	// ChainKey keys the hash chain.
	ChainKey string
	// VerifyPageSize is the number of events Verify reads per query.
	VerifyPageSize int
	// LogToStdout mirrors every event to the process log.
	LogToStdout bool
}

// DefaultConfig returns default configuration.
func DefaultConfig() Config {
	return Config{
		BatchSize:            50,
		BufferSize:           1000,
		FlushInterval:        2 * time.Second,
		WriteTimeout:         2 * time.Second,
		CriticalRetries:      3,
		RetryInitialInterval: 100 * time.Millisecond,
		DeadLetterLimit:      10000,
		VerifyPageSize:       1000,
		LogToStdout:          true,
	}
}

// ConfigFrom builds a logger Config from application configuration.
func ConfigFrom(c *config.AuditConfig) Config {
	cfg := DefaultConfig()
	if c.BatchSize > 0 {
		cfg.BatchSize = c.BatchSize
	}
	if c.BufferSize > 0 {
		cfg.BufferSize = c.BufferSize
	}
	if c.FlushInterval > 0 {
		cfg.FlushInterval = c.FlushInterval
	}
	if c.WriteTimeout > 0 {
		cfg.WriteTimeout = c.WriteTimeout
	}
	cfg.CriticalRetries = c.CriticalRetries
	cfg.ChainKey = c.ChainKey
	return cfg
}

// Logger records security audit events.
//
// Non-critical events are queued and written in batches by a background
// goroutine. Critical events are written synchronously with retries. Events
// that cannot be written are parked and retried on every flush.
type Logger struct {
	config  Config
	store   Store
	alerter Alerter
	now     func() time.Time

	events   chan *Event
	flushReq chan chan struct{}
	stopChan chan struct{}
	done     chan struct{}
	// sendMu orders queue sends against Close so no event is left queued.
	sendMu   sync.RWMutex
	closed   atomic.Bool
	stopOnce sync.Once

	// writeMu serialises store appends and guards chain.
	writeMu sync.Mutex
	chain   *Chain

	deadMu sync.Mutex
	dead   []*Event

	// verifyMu guards the last verified chain position.
	verifyMu     sync.Mutex
	verifiedSeq  uint64
	verifiedHash string
}

// NewLogger creates a new audit logger and starts its writer goroutine.
// alerter may be nil, in which case escalations go to the process log.
func NewLogger(store Store, alerter Alerter, cfg Config) *Logger {
	def := DefaultConfig()
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = def.BatchSize
	}
	if cfg.BufferSize < cfg.BatchSize {
		cfg.BufferSize = cfg.BatchSize
	}
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = def.FlushInterval
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = def.WriteTimeout
	}
	if cfg.CriticalRetries < 0 {
		cfg.CriticalRetries = 0
	}
	if cfg.RetryInitialInterval <= 0 {
		cfg.RetryInitialInterval = def.RetryInitialInterval
	}
	if cfg.DeadLetterLimit <= 0 {
		cfg.DeadLetterLimit = def.DeadLetterLimit
	}
	if cfg.VerifyPageSize <= 0 {
		cfg.VerifyPageSize = def.VerifyPageSize
	}
	if alerter == nil {
		alerter = LogAlerter{}
	}

	l := &Logger{
		config:   cfg,
		store:    store,
		alerter:  alerter,
		now:      time.Now,
		events:   make(chan *Event, cfg.BufferSize),
		flushReq: make(chan chan struct{}),
		stopChan: make(chan struct{}),
		done:     make(chan struct{}),
		chain:    NewChain(cfg.ChainKey),
	}
	go l.asyncWriter()
	return l
}

// Record normalises and records an event. The caller's cancellation never
// affects a recorded event. Record only fails for a nil event or when a
// critical event had to be parked (ErrDeadLettered); parked events are
// still written by a later flush.
func (l *Logger) Record(ctx context.Context, e *Event) error {
	if e == nil {
		return ErrNilEvent
	}
	ctx = context.WithoutCancel(ctx)
	e = e.Clone()
	e.normalize(ctx, l.now())

	metrics.RecordAuditEvent(string(e.Type), string(e.Severity))
	if l.config.LogToStdout {
		l.logEvent(ctx, e)
	}

	if e.IsCritical() {
		return l.writeCritical(ctx, e)
	}

	l.sendMu.RLock()
	if !l.closed.Load() {
		select {
		case l.events <- e:
			l.sendMu.RUnlock()
			return nil
		default:
		}
	}
	l.sendMu.RUnlock()

	// Closed or queue full: write on the caller's goroutine rather than drop.
	l.writeDirect(ctx, []*Event{e})
	return nil
}

// Flush writes every queued and parked event before returning.
func (l *Logger) Flush(ctx context.Context) error {
	if l.closed.Load() {
		l.writeDirect(context.WithoutCancel(ctx), nil)
		return nil
	}
	done := make(chan struct{})
	select {
	case l.flushReq <- done:
	case <-l.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close stops the writer goroutine after draining every pending event.
func (l *Logger) Close() error {
	l.stopOnce.Do(func() {
		l.sendMu.Lock()
		l.closed.Store(true)
		l.sendMu.Unlock()
		close(l.stopChan)
	})
	<-l.done
	if n := l.DeadLetterLen(); n > 0 {
		return fmt.Errorf("%d audit events could not be persisted", n)
	}
	return nil
}

// DeadLetterLen returns the number of parked events.
func (l *Logger) DeadLetterLen() int {
	l.deadMu.Lock()
	defer l.deadMu.Unlock()
	return len(l.dead)
}

// Query retrieves events from the store.
func (l *Logger) Query(ctx context.Context, filter QueryFilter) ([]*Event, error) {
	return l.store.Query(ctx, filter)
}

// Count returns the number of events matching the filter.
func (l *Logger) Count(ctx context.Context, filter QueryFilter) (int64, error) {
	return l.store.Count(ctx, filter)
}

// Verify checks the events stored since the last successful Verify, in pages
// of VerifyPageSize. Each page must continue the previously verified head.
func (l *Logger) Verify(ctx context.Context) error {
	l.verifyMu.Lock()
	defer l.verifyMu.Unlock()

	for {
		page, err := l.store.Query(ctx, QueryFilter{AfterSeq: l.verifiedSeq, Limit: l.config.VerifyPageSize})
		if err != nil {
			return err
		}
		if len(page) == 0 {
			return nil
		}
		if err := l.verifyPage(page); err != nil {
			return err
		}
		last := page[len(page)-1]
		l.verifiedSeq, l.verifiedHash = last.Seq, last.Hash
		if len(page) < l.config.VerifyPageSize {
			return nil
		}
	}
}

// verifyPage checks one ascending page against the verified head. A bounded
// store may have evicted past the head, in which case the page starts a new
// window.
func (l *Logger) verifyPage(page []*Event) error {
	first := page[0]
	if l.verifiedSeq > 0 {
		if first.Seq == l.verifiedSeq+1 {
			if first.PrevHash != l.verifiedHash {
				return &ChainError{Seq: first.Seq, Reason: "previous hash mismatch"}
			}
		} else if !evicts(l.store) {
			return &ChainError{Seq: first.Seq, Reason: fmt.Sprintf("gap after verified seq %d", l.verifiedSeq)}
		}
	}
	return VerifyChain(l.config.ChainKey, page)
}

func evicts(store Store) bool {
	b, ok := store.(interface{ Bounded() bool })
	return ok && b.Bounded()
}

// asyncWriter batches queued events until Close.
func (l *Logger) asyncWriter() {
	defer close(l.done)
	ticker := time.NewTicker(l.config.FlushInterval)
	defer ticker.Stop()

	ctx := context.Background()
	batch := make([]*Event, 0, l.config.BatchSize)
	flush := func() {
		l.writeDirect(ctx, batch)
		batch = make([]*Event, 0, l.config.BatchSize)
	}

	for {
		select {
		case e := <-l.events:
			batch = append(batch, e)
			if len(batch) >= l.config.BatchSize {
				flush()
			}

		case <-ticker.C:
			flush()

		case done := <-l.flushReq:
			batch = l.drainQueue(batch)
			flush()
			close(done)

		case <-l.stopChan:
			batch = l.drainQueue(batch)
			flush()
			return
		}
	}
}

func (l *Logger) drainQueue(batch []*Event) []*Event {
	for {
		select {
		case e := <-l.events:
			batch = append(batch, e)
		default:
			return batch
		}
	}
}

// writeDirect retries parked events then writes batch in chunks of
// BatchSize. Failed chunks are parked.
func (l *Logger) writeDirect(ctx context.Context, batch []*Event) {
	if parked := l.takeDeadLetters(); len(parked) > 0 {
		if err := l.append(ctx, parked); err != nil {
			l.park(parked)
			metrics.RecordAuditWriteFailure("dead_letter")
			logging.Warn().Err(err).Int("events", len(parked)).Msg("Dead-letter audit retry failed")
		} else {
			logging.Info().Int("events", len(parked)).Msg("Dead-letter audit events persisted")
		}
	}

	for start := 0; start < len(batch); start += l.config.BatchSize {
		end := start + l.config.BatchSize
		if end > len(batch) {
			end = len(batch)
		}
		chunk := batch[start:end]
		if err := l.append(ctx, chunk); err != nil {
			metrics.RecordAuditWriteFailure("batch")
			logging.Error().Err(err).Int("events", len(chunk)).Msg("Failed to write audit batch")
			l.park(chunk)
		}
	}
}

// writeCritical writes e immediately with exponential backoff. On final
// failure the event is escalated and parked.
func (l *Logger) writeCritical(ctx context.Context, e *Event) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = l.config.RetryInitialInterval
	b.MaxElapsedTime = 0

	err := backoff.Retry(func() error {
		return l.append(ctx, []*Event{e})
	}, backoff.WithMaxRetries(b, uint64(l.config.CriticalRetries)))
	if err == nil {
		return nil
	}

	metrics.RecordAuditWriteFailure("critical")
	escalate(ctx, l.alerter, e, err)
	l.park([]*Event{e})
	return fmt.Errorf("%w: %v", ErrDeadLettered, err)
}

// append links events into the chain and writes them atomically.
func (l *Logger) append(ctx context.Context, events []*Event) error {
	if len(events) == 0 {
		return nil
	}
	l.writeMu.Lock()
	defer l.writeMu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, l.config.WriteTimeout)
	defer cancel()

	if !l.chain.Seeded() {
		tail, err := l.store.Query(ctx, QueryFilter{Limit: 1, Descending: true})
		if err != nil {
			return fmt.Errorf("read audit chain tail: %w", err)
		}
		var last *Event
		if len(tail) > 0 {
			last = tail[0]
		}
		l.chain.Seed(last)
	}

	seq, head := l.chain.Link(events)
	if err := l.store.Append(ctx, events...); err != nil {
		return err
	}
	l.chain.Commit(seq, head)
	metrics.RecordAuditWrite(len(events))
	return nil
}

func (l *Logger) takeDeadLetters() []*Event {
	l.deadMu.Lock()
	defer l.deadMu.Unlock()
	parked := l.dead
	l.dead = nil
	metrics.SetAuditDeadLetter(0)
	return parked
}

// park appends events to the dead-letter buffer. Over the limit, the oldest
// non-critical events are dropped.
func (l *Logger) park(events []*Event) {
	l.deadMu.Lock()
	defer l.deadMu.Unlock()
	l.dead = append(l.dead, events...)

	if over := len(l.dead) - l.config.DeadLetterLimit; over > 0 {
		kept := l.dead[:0]
		for _, e := range l.dead {
			if over > 0 && !e.IsCritical() {
				over--
				logging.Error().Str("event_id", e.ID).Str("event_type", string(e.Type)).Msg("Dropping parked audit event: dead-letter buffer full")
				continue
			}
			kept = append(kept, e)
		}
		l.dead = kept
	}
	metrics.SetAuditDeadLetter(len(l.dead))
}

func (l *Logger) logEvent(ctx context.Context, e *Event) {
	logger := logging.Ctx(ctx)
	var ev *zerolog.Event
	switch e.Severity {
	case SeverityCritical, SeverityError:
		ev = logger.Error()
	case SeverityWarn:
		ev = logger.Warn()
	default:
		ev = logger.Info()
	}
	ev = ev.
		Str("event_id", e.ID).
		Str("event_type", string(e.Type)).
		Str("severity", string(e.Severity)).
		Str("actor_id", logging.SanitizeUserID(e.ActorID)).
		Str("source_ip", e.Source.IP)
	if e.Stage != "" {
		ev = ev.Str("stage", e.Stage)
	}
	if e.Code != "" {
		ev = ev.Str("code", e.Code)
	}
	ev.Msg("[AUDIT] Security event")
}

// Log* helpers build common events.

// LogPermissionDenied records a permission_denied event.
func (l *Logger) LogPermissionDenied(ctx context.Context, actorID, role, capability string, src Source) error {
	return l.Record(ctx, &Event{
		Type:     EventTypePermissionDenied,
		ActorID:  actorID,
		Role:     role,
		Source:   src,
		Metadata: map[string]string{"capability": capability},
	})
}

// LogGrantChanged records a grant_changed event.
func (l *Logger) LogGrantChanged(ctx context.Context, adminID, targetUserID string, grants, revocations []string, src Source) error {
	return l.Record(ctx, &Event{
		Type:    EventTypeGrantChanged,
		ActorID: adminID,
		Source:  src,
		Metadata: map[string]string{
			"target_user": targetUserID,
			"grants":      joinList(grants),
			"revocations": joinList(revocations),
		},
	})
}

func joinList(items []string) string {
	if items == nil {
		return "<unchanged>"
	}
	return strings.Join(items, ",")
}
