// Pinteya E-commerce - Enterprise Admin Security Pipeline
// Copyright 2026 The Pinteya E-commerce Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/SantiagoXOR/pinteya-ecommerce-sub017

package audit

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/goccy/go-json"

	"github.com/SantiagoXOR/pinteya-ecommerce-sub017/internal/logging"
)

// Dialect selects the SQL backend. Both dialects accept $n placeholders and
// share one schema; metadata is stored as JSON text.
type Dialect string

// Supported dialects.
const (
	DialectPostgres Dialect = "postgres"
	DialectDuckDB   Dialect = "duckdb"
)

// DriverName returns the database/sql driver registered for d.
func (d Dialect) DriverName() string {
	if d == DialectDuckDB {
		return "duckdb"
	}
	return "pgx"
}

const eventColumns = `seq, id, type, category, severity, actor_id, role, timestamp,
	request_id, stage, code, source_ip, user_agent, origin, metadata, prev_hash, hash`

// SQLStore implements Store on PostgreSQL or DuckDB. The caller is
// responsible for registering the driver and for CreateTable.
type SQLStore struct {
	db      *sql.DB
	dialect Dialect
}

// NewSQLStore creates a store on an open database.
func NewSQLStore(db *sql.DB, dialect Dialect) *SQLStore {
	return &SQLStore{db: db, dialect: dialect}
}

// OpenSQLStore opens dsn with the dialect's driver and ensures the schema.
func OpenSQLStore(ctx context.Context, dialect Dialect, dsn string) (*SQLStore, error) {
	db, err := sql.Open(dialect.DriverName(), dsn)
	if err != nil {
		return nil, fmt.Errorf("open audit database: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping audit database: %w", err)
	}
	s := NewSQLStore(db, dialect)
	if err := s.CreateTable(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the underlying database.
func (s *SQLStore) Close() error {
	return s.db.Close()
}

// CreateTable creates the security_audit_events table if it doesn't exist.
func (s *SQLStore) CreateTable(ctx context.Context) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS security_audit_events (
			seq BIGINT PRIMARY KEY,
			id TEXT NOT NULL UNIQUE,
			type TEXT NOT NULL,
			category TEXT NOT NULL,
			severity TEXT NOT NULL,
			actor_id TEXT NOT NULL DEFAULT '',
			role TEXT NOT NULL DEFAULT '',
			timestamp TIMESTAMPTZ NOT NULL,
			request_id TEXT NOT NULL DEFAULT '',
			stage TEXT NOT NULL DEFAULT '',
			code TEXT NOT NULL DEFAULT '',
			source_ip TEXT NOT NULL DEFAULT '',
			user_agent TEXT NOT NULL DEFAULT '',
			origin TEXT NOT NULL DEFAULT '',
			metadata TEXT,
			prev_hash TEXT NOT NULL,
			hash TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_sec_audit_timestamp ON security_audit_events(timestamp)`,
		`CREATE INDEX IF NOT EXISTS idx_sec_audit_type ON security_audit_events(type)`,
		`CREATE INDEX IF NOT EXISTS idx_sec_audit_actor ON security_audit_events(actor_id)`,
		`CREATE INDEX IF NOT EXISTS idx_sec_audit_source_ip ON security_audit_events(source_ip)`,
	}
	for _, stmt := range statements {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to execute schema statement: %w", err)
		}
	}
	logging.Info().Str("dialect", string(s.dialect)).Msg("Security audit table created/verified")
	return nil
}

// Append implements Store. All events are written in one transaction.
func (s *SQLStore) Append(ctx context.Context, events ...*Event) error {
	if len(events) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin audit transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO security_audit_events (`+eventColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)`)
	if err != nil {
		return fmt.Errorf("prepare audit insert: %w", err)
	}
	defer stmt.Close()

	for _, e := range events {
		metadata, err := marshalMetadata(e.Metadata)
		if err != nil {
			return err
		}
		_, err = stmt.ExecContext(ctx,
			int64(e.Seq), e.ID, string(e.Type), string(e.Category), string(e.Severity),
			e.ActorID, e.Role, e.Timestamp, e.RequestID, e.Stage, e.Code,
			e.Source.IP, e.Source.UserAgent, e.Source.Origin, metadata, e.PrevHash, e.Hash,
		)
		if err != nil {
			return fmt.Errorf("insert audit event %s: %w", e.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit audit transaction: %w", err)
	}
	return nil
}

// Query implements Store.
func (s *SQLStore) Query(ctx context.Context, filter QueryFilter) ([]*Event, error) {
	where, args := buildFilterConditions(filter)
	query := "SELECT " + eventColumns + " FROM security_audit_events" + where
	if filter.Descending {
		query += " ORDER BY seq DESC"
	} else {
		query += " ORDER BY seq ASC"
	}
	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", filter.Limit)
	}
	if filter.Offset > 0 {
		query += fmt.Sprintf(" OFFSET %d", filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query audit events: %w", err)
	}
	defer rows.Close()

	var events []*Event
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan audit event: %w", err)
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating audit events: %w", err)
	}
	return events, nil
}

// Count implements Store.
func (s *SQLStore) Count(ctx context.Context, filter QueryFilter) (int64, error) {
	where, args := buildFilterConditions(filter)
	var count int64
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM security_audit_events"+where, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count audit events: %w", err)
	}
	return count, nil
}

// aggregateColumns whitelists GROUP BY targets.
var aggregateColumns = map[AggregateField]string{
	FieldType:     "type",
	FieldSeverity: "severity",
	FieldActorID:  "actor_id",
	FieldSourceIP: "source_ip",
}

// Aggregate implements Store.
func (s *SQLStore) Aggregate(ctx context.Context, filter QueryFilter, field AggregateField, limit int) ([]Bucket, error) {
	column, ok := aggregateColumns[field]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownField, field)
	}
	where, args := buildFilterConditions(filter)
	if where == "" {
		where = " WHERE "
	} else {
		where += " AND "
	}
	where += column + " <> ''"

	query := fmt.Sprintf("SELECT %s, COUNT(*) AS n FROM security_audit_events%s GROUP BY %s ORDER BY n DESC, %s ASC",
		column, where, column, column)
	if limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to get %s counts: %w", column, err)
	}
	defer rows.Close()

	var buckets []Bucket
	for rows.Next() {
		var b Bucket
		if err := rows.Scan(&b.Key, &b.Count); err != nil {
			return nil, fmt.Errorf("failed to scan %s counts: %w", column, err)
		}
		buckets = append(buckets, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating %s counts: %w", column, err)
	}
	return buckets, nil
}

// buildFilterConditions builds a WHERE clause (with leading space) from a
// QueryFilter.
func buildFilterConditions(filter QueryFilter) (string, []interface{}) {
	var conditions []string
	var args []interface{}
	next := func() string { return fmt.Sprintf("$%d", len(args)) }

	if cond := buildSliceCondition("type", filter.Types, &args); cond != "" {
		conditions = append(conditions, cond)
	}
	if cond := buildSliceCondition("severity", filter.Severities, &args); cond != "" {
		conditions = append(conditions, cond)
	}
	for _, c := range []struct{ column, value string }{
		{"actor_id", filter.ActorID},
		{"source_ip", filter.SourceIP},
		{"request_id", filter.RequestID},
	} {
		if c.value != "" {
			args = append(args, c.value)
			conditions = append(conditions, c.column+" = "+next())
		}
	}
	if !filter.Since.IsZero() {
		args = append(args, filter.Since.UTC())
		conditions = append(conditions, "timestamp >= "+next())
	}
	if !filter.Until.IsZero() {
		args = append(args, filter.Until.UTC())
		conditions = append(conditions, "timestamp <= "+next())
	}
	if filter.AfterSeq > 0 {
		args = append(args, int64(filter.AfterSeq))
		conditions = append(conditions, "seq > "+next())
	}

	if len(conditions) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(conditions, " AND "), args
}

// buildSliceCondition creates a SQL IN condition for a slice of string values.
func buildSliceCondition[T ~string](column string, values []T, args *[]interface{}) string {
	if len(values) == 0 {
		return ""
	}
	placeholders := make([]string, len(values))
	for i, v := range values {
		*args = append(*args, string(v))
		placeholders[i] = fmt.Sprintf("$%d", len(*args))
	}
	return fmt.Sprintf("%s IN (%s)", column, strings.Join(placeholders, ","))
}

func marshalMetadata(m map[string]string) (interface{}, error) {
	if len(m) == 0 {
		return nil, nil
	}
	data, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("marshal audit metadata: %w", err)
	}
	return string(data), nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanEvent(row rowScanner) (*Event, error) {
	var (
		e                  Event
		seq                int64
		typ, category, sev string
		metadata           sql.NullString
	)
	err := row.Scan(
		&seq, &e.ID, &typ, &category, &sev, &e.ActorID, &e.Role, &e.Timestamp,
		&e.RequestID, &e.Stage, &e.Code, &e.Source.IP, &e.Source.UserAgent, &e.Source.Origin,
		&metadata, &e.PrevHash, &e.Hash,
	)
	if err != nil {
		return nil, err
	}
	e.Seq = uint64(seq)
	e.Type = EventType(typ)
	e.Category = Category(category)
	e.Severity = Severity(sev)
	e.Timestamp = e.Timestamp.UTC()
	if metadata.Valid && metadata.String != "" && metadata.String != "null" {
		if err := json.Unmarshal([]byte(metadata.String), &e.Metadata); err != nil {
			return nil, fmt.Errorf("parse audit metadata: %w", err)
		}
		if len(e.Metadata) == 0 {
			e.Metadata = nil
		}
	}
	return &e, nil
}
