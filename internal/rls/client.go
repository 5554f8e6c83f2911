// Pinteya E-commerce - Enterprise Admin Security Pipeline
// Copyright 2026 The Pinteya E-commerce Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/SantiagoXOR/pinteya-ecommerce-sub017

package rls

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
)

// ErrBypassAttempted marks an operation that tried to escape its filter.
var ErrBypassAttempted = errors.New("RLS bypass attempted")

// Row is one record keyed by column name.
type Row map[string]interface{}

// Clone returns a shallow copy of the row.
func (r Row) Clone() Row {
	out := make(Row, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// OrderBy sorts query results by a column.
type OrderBy struct {
	Column string
	Desc   bool
}

// Query selects rows from one table.
type Query struct {
	// Table defaults to the filter's table when empty.
	Table   string
	Columns []string
	Where   []Predicate
	OrderBy []OrderBy
	Limit   int
	Offset  int
}

// Mutation updates rows of one table.
type Mutation struct {
	Table string
	Set   Row
	Where []Predicate
}

// DataClient is the durable store the executor runs operations against.
// Implementations apply every predicate in Where with AND semantics.
type DataClient interface {
	Select(ctx context.Context, q Query) ([]Row, error)
	Insert(ctx context.Context, table string, rows ...Row) (int64, error)
	Update(ctx context.Context, m Mutation) (int64, error)
	Delete(ctx context.Context, table string, where []Predicate) (int64, error)
}

// ScopedClient wraps a DataClient so every call carries the filter's
// predicates. It is handed to operations by Execute and must not outlive it.
type ScopedClient struct {
	filter Filter
	data   DataClient

	rows atomic.Int64

	mu        sync.Mutex
	violation error
}

func newScopedClient(f Filter, data DataClient) *ScopedClient {
	return &ScopedClient{filter: f, data: data}
}

// Filter returns the filter applied to every call.
func (c *ScopedClient) Filter() Filter {
	return c.filter
}

// Rows returns the number of rows returned or affected so far.
func (c *ScopedClient) Rows() int64 {
	return c.rows.Load()
}

// Violation returns the first bypass attempt seen, if any. It stays set
// even when the operation swallows the returned error.
func (c *ScopedClient) Violation() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.violation
}

func (c *ScopedClient) bypass(format string, args ...interface{}) error {
	err := fmt.Errorf("%w: %s", ErrBypassAttempted, fmt.Sprintf(format, args...))
	c.mu.Lock()
	if c.violation == nil {
		c.violation = err
	}
	c.mu.Unlock()
	return err
}

func (c *ScopedClient) table(requested string) (string, error) {
	if requested == "" || requested == c.filter.Table {
		return c.filter.Table, nil
	}
	return "", c.bypass("cross-resource access to %q from %s", requested, c.filter.Resource)
}

func (c *ScopedClient) where(extra []Predicate) ([]Predicate, error) {
	out := make([]Predicate, 0, len(c.filter.Predicates)+len(extra))
	out = append(out, c.filter.Predicates...)
	for _, p := range extra {
		if !p.Operator.Valid() {
			return nil, fmt.Errorf("unsupported operator %q", p.Operator)
		}
		if !identifierPattern.MatchString(p.Column) {
			return nil, fmt.Errorf("invalid column %q", p.Column)
		}
		out = append(out, p)
	}
	return out, nil
}

// verify checks returned rows against the filter's equality predicates.
func (c *ScopedClient) verify(rows []Row) error {
	for _, row := range rows {
		for _, p := range c.filter.Predicates {
			if p.Operator != OpEq {
				continue
			}
			v, ok := row[p.Column]
			if !ok || !sameValue(v, p.Value) {
				return c.bypass("row outside filter: %s = %v", p.Column, v)
			}
		}
	}
	return nil
}

// Select runs q with the filter's predicates prepended to its Where clause.
// Predicate columns are always selected so results can be verified.
func (c *ScopedClient) Select(ctx context.Context, q Query) ([]Row, error) {
	table, err := c.table(q.Table)
	if err != nil {
		return nil, err
	}
	where, err := c.where(q.Where)
	if err != nil {
		return nil, err
	}
	q.Table = table
	q.Where = where
	if len(q.Columns) > 0 {
		q.Columns = withColumns(q.Columns, c.filter.Columns())
	}

	rows, err := c.data.Select(ctx, q)
	if err != nil {
		return nil, err
	}
	if err := c.verify(rows); err != nil {
		return nil, err
	}
	c.rows.Add(int64(len(rows)))
	return rows, nil
}

// Insert stamps each row with the filter's equality values. A row that
// already carries a different value for a scoped column is rejected.
func (c *ScopedClient) Insert(ctx context.Context, table string, rows ...Row) (int64, error) {
	table, err := c.table(table)
	if err != nil {
		return 0, err
	}
	stamped := make([]Row, len(rows))
	for i, row := range rows {
		out := row.Clone()
		for _, p := range c.filter.Predicates {
			if p.Operator != OpEq {
				continue
			}
			if v, ok := out[p.Column]; ok && !sameValue(v, p.Value) {
				return 0, c.bypass("insert sets %s = %v outside filter", p.Column, v)
			}
			out[p.Column] = p.Value
		}
		stamped[i] = out
	}
	n, err := c.data.Insert(ctx, table, stamped...)
	if err != nil {
		return 0, err
	}
	c.rows.Add(n)
	return n, nil
}

// Update applies m to rows matching the filter. Scoped columns cannot be
// reassigned.
func (c *ScopedClient) Update(ctx context.Context, m Mutation) (int64, error) {
	table, err := c.table(m.Table)
	if err != nil {
		return 0, err
	}
	for _, p := range c.filter.Predicates {
		if v, ok := m.Set[p.Column]; ok && !sameValue(v, p.Value) {
			return 0, c.bypass("update reassigns %s", p.Column)
		}
	}
	for col := range m.Set {
		if !identifierPattern.MatchString(col) {
			return 0, fmt.Errorf("invalid column %q", col)
		}
	}
	where, err := c.where(m.Where)
	if err != nil {
		return 0, err
	}
	m.Table = table
	m.Where = where

	n, err := c.data.Update(ctx, m)
	if err != nil {
		return 0, err
	}
	c.rows.Add(n)
	return n, nil
}

// Delete removes rows matching where and the filter.
func (c *ScopedClient) Delete(ctx context.Context, table string, where []Predicate) (int64, error) {
	table, err := c.table(table)
	if err != nil {
		return 0, err
	}
	all, err := c.where(where)
	if err != nil {
		return 0, err
	}
	if len(all) == 0 {
		return 0, c.bypass("unconditional delete on %s", table)
	}
	n, err := c.data.Delete(ctx, table, all)
	if err != nil {
		return 0, err
	}
	c.rows.Add(n)
	return n, nil
}

func withColumns(cols, required []string) []string {
	seen := make(map[string]struct{}, len(cols))
	out := append([]string(nil), cols...)
	for _, c := range cols {
		seen[c] = struct{}{}
	}
	for _, c := range required {
		if _, ok := seen[c]; !ok {
			out = append(out, c)
			seen[c] = struct{}{}
		}
	}
	return out
}
