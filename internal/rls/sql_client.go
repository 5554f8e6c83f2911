// Pinteya E-commerce - Enterprise Admin Security Pipeline
// Copyright 2026 The Pinteya E-commerce Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/SantiagoXOR/pinteya-ecommerce-sub017

package rls

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
)

// SQLClient is a DataClient over database/sql. Queries use PostgreSQL
// positional parameters and quoted identifiers.
type SQLClient struct {
	db *sql.DB
}

// NewSQLClient wraps an open database.
func NewSQLClient(db *sql.DB) *SQLClient {
	return &SQLClient{db: db}
}

// OpenSQLClient opens a PostgreSQL database through the pgx stdlib driver.
// The caller must import github.com/jackc/pgx/v5/stdlib.
func OpenSQLClient(ctx context.Context, dsn string, maxOpenConns int) (*SQLClient, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if maxOpenConns > 0 {
		db.SetMaxOpenConns(maxOpenConns)
		db.SetMaxIdleConns(maxOpenConns)
	}
	db.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return &SQLClient{db: db}, nil
}

// DB returns the underlying handle.
func (c *SQLClient) DB() *sql.DB {
	return c.db
}

// Close closes the database.
func (c *SQLClient) Close() error {
	return c.db.Close()
}

func quoteIdent(name string) (string, error) {
	if !identifierPattern.MatchString(name) {
		return "", fmt.Errorf("invalid identifier %q", name)
	}
	return pgx.Identifier{name}.Sanitize(), nil
}

// args accumulates positional parameters.
type args struct {
	values []interface{}
}

func (a *args) add(v interface{}) string {
	a.values = append(a.values, v)
	return "$" + strconv.Itoa(len(a.values))
}

func (a *args) where(preds []Predicate) (string, error) {
	if len(preds) == 0 {
		return "", nil
	}
	parts := make([]string, len(preds))
	for i, p := range preds {
		col, err := quoteIdent(p.Column)
		if err != nil {
			return "", err
		}
		if !p.Operator.Valid() {
			return "", fmt.Errorf("unsupported operator %q", p.Operator)
		}
		parts[i] = col + " " + string(p.Operator) + " " + a.add(p.Value)
	}
	return " WHERE " + strings.Join(parts, " AND "), nil
}

// Select implements DataClient.
func (c *SQLClient) Select(ctx context.Context, q Query) ([]Row, error) {
	table, err := quoteIdent(q.Table)
	if err != nil {
		return nil, err
	}

	cols := "*"
	if len(q.Columns) > 0 {
		quoted := make([]string, len(q.Columns))
		for i, col := range q.Columns {
			if quoted[i], err = quoteIdent(col); err != nil {
				return nil, err
			}
		}
		cols = strings.Join(quoted, ", ")
	}

	var a args
	where, err := a.where(q.Where)
	if err != nil {
		return nil, err
	}

	var b strings.Builder
	b.WriteString("SELECT ")
	b.WriteString(cols)
	b.WriteString(" FROM ")
	b.WriteString(table)
	b.WriteString(where)
	if len(q.OrderBy) > 0 {
		order := make([]string, len(q.OrderBy))
		for i, o := range q.OrderBy {
			col, err := quoteIdent(o.Column)
			if err != nil {
				return nil, err
			}
			if o.Desc {
				col += " DESC"
			}
			order[i] = col
		}
		b.WriteString(" ORDER BY ")
		b.WriteString(strings.Join(order, ", "))
	}
	if q.Limit > 0 {
		b.WriteString(" LIMIT " + a.add(q.Limit))
	}
	if q.Offset > 0 {
		b.WriteString(" OFFSET " + a.add(q.Offset))
	}

	rows, err := c.db.QueryContext(ctx, b.String(), a.values...)
	if err != nil {
		return nil, fmt.Errorf("select %s: %w", q.Table, err)
	}
	defer rows.Close()
	return scanRows(rows)
}

func scanRows(rows *sql.Rows) ([]Row, error) {
	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}
	var out []Row
	for rows.Next() {
		values := make([]interface{}, len(cols))
		ptrs := make([]interface{}, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}
		row := make(Row, len(cols))
		for i, col := range cols {
			if b, ok := values[i].([]byte); ok {
				row[col] = string(b)
				continue
			}
			row[col] = values[i]
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

// Insert implements DataClient. Rows are written in one transaction.
func (c *SQLClient) Insert(ctx context.Context, table string, rows ...Row) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	qt, err := quoteIdent(table)
	if err != nil {
		return 0, err
	}

	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var n int64
	for _, row := range rows {
		cols := sortedKeys(row)
		quoted := make([]string, len(cols))
		var a args
		params := make([]string, len(cols))
		for i, col := range cols {
			if quoted[i], err = quoteIdent(col); err != nil {
				return 0, err
			}
			params[i] = a.add(row[col])
		}
		query := "INSERT INTO " + qt + " (" + strings.Join(quoted, ", ") + ") VALUES (" + strings.Join(params, ", ") + ")"
		res, err := tx.ExecContext(ctx, query, a.values...)
		if err != nil {
			return 0, fmt.Errorf("insert %s: %w", table, err)
		}
		affected, _ := res.RowsAffected()
		n += affected
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	return n, nil
}

// Update implements DataClient.
func (c *SQLClient) Update(ctx context.Context, m Mutation) (int64, error) {
	if len(m.Set) == 0 {
		return 0, nil
	}
	qt, err := quoteIdent(m.Table)
	if err != nil {
		return 0, err
	}
	var a args
	cols := sortedKeys(m.Set)
	sets := make([]string, len(cols))
	for i, col := range cols {
		q, err := quoteIdent(col)
		if err != nil {
			return 0, err
		}
		sets[i] = q + " = " + a.add(m.Set[col])
	}
	where, err := a.where(m.Where)
	if err != nil {
		return 0, err
	}
	res, err := c.db.ExecContext(ctx, "UPDATE "+qt+" SET "+strings.Join(sets, ", ")+where, a.values...)
	if err != nil {
		return 0, fmt.Errorf("update %s: %w", m.Table, err)
	}
	return res.RowsAffected()
}

// Delete implements DataClient.
func (c *SQLClient) Delete(ctx context.Context, table string, where []Predicate) (int64, error) {
	qt, err := quoteIdent(table)
	if err != nil {
		return 0, err
	}
	var a args
	clause, err := a.where(where)
	if err != nil {
		return 0, err
	}
	res, err := c.db.ExecContext(ctx, "DELETE FROM "+qt+clause, a.values...)
	if err != nil {
		return 0, fmt.Errorf("delete %s: %w", table, err)
	}
	return res.RowsAffected()
}

func sortedKeys(r Row) []string {
	keys := make([]string, 0, len(r))
	for k := range r {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
