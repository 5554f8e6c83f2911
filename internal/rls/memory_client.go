// Pinteya E-commerce - Enterprise Admin Security Pipeline
// Copyright 2026 The Pinteya E-commerce Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/SantiagoXOR/pinteya-ecommerce-sub017

package rls

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"sync"
)

// MemoryClient is an in-process DataClient. It backs development servers
// without a database and the package tests.
type MemoryClient struct {
	mu     sync.RWMutex
	tables map[string][]Row
}

// NewMemoryClient creates an empty client.
func NewMemoryClient() *MemoryClient {
	return &MemoryClient{tables: make(map[string][]Row)}
}

// Seed appends rows to table without any scoping.
func (m *MemoryClient) Seed(table string, rows ...Row) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range rows {
		m.tables[table] = append(m.tables[table], r.Clone())
	}
}

// Len returns the number of rows in table.
func (m *MemoryClient) Len(table string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.tables[table])
}

// Select implements DataClient.
func (m *MemoryClient) Select(ctx context.Context, q Query) ([]Row, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []Row
	for _, r := range m.tables[q.Table] {
		ok, err := matchesAll(r, q.Where)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, project(r, q.Columns))
		}
	}

	if len(q.OrderBy) > 0 {
		sort.SliceStable(out, func(i, j int) bool {
			for _, o := range q.OrderBy {
				c := compare(out[i][o.Column], out[j][o.Column])
				if c == 0 {
					continue
				}
				if o.Desc {
					return c > 0
				}
				return c < 0
			}
			return false
		})
	}

	if q.Offset > 0 {
		if q.Offset >= len(out) {
			return nil, nil
		}
		out = out[q.Offset:]
	}
	if q.Limit > 0 && q.Limit < len(out) {
		out = out[:q.Limit]
	}
	return out, nil
}

// Insert implements DataClient.
func (m *MemoryClient) Insert(ctx context.Context, table string, rows ...Row) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	m.Seed(table, rows...)
	return int64(len(rows)), nil
}

// Update implements DataClient.
func (m *MemoryClient) Update(ctx context.Context, mu Mutation) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	var n int64
	for _, r := range m.tables[mu.Table] {
		ok, err := matchesAll(r, mu.Where)
		if err != nil {
			return n, err
		}
		if !ok {
			continue
		}
		for k, v := range mu.Set {
			r[k] = v
		}
		n++
	}
	return n, nil
}

// Delete implements DataClient.
func (m *MemoryClient) Delete(ctx context.Context, table string, where []Predicate) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	rows := m.tables[table]
	kept := rows[:0]
	var n int64
	for _, r := range rows {
		ok, err := matchesAll(r, where)
		if err != nil {
			return 0, err
		}
		if ok {
			n++
			continue
		}
		kept = append(kept, r)
	}
	m.tables[table] = kept
	return n, nil
}

func project(r Row, cols []string) Row {
	if len(cols) == 0 {
		return r.Clone()
	}
	out := make(Row, len(cols))
	for _, c := range cols {
		if v, ok := r[c]; ok {
			out[c] = v
		}
	}
	return out
}

func matchesAll(r Row, preds []Predicate) (bool, error) {
	for _, p := range preds {
		v, ok := r[p.Column]
		if !ok {
			return false, nil
		}
		c := compare(v, p.Value)
		var hit bool
		switch p.Operator {
		case OpEq:
			hit = sameValue(v, p.Value)
		case OpNeq:
			hit = !sameValue(v, p.Value)
		case OpLt:
			hit = c < 0
		case OpLte:
			hit = c <= 0
		case OpGt:
			hit = c > 0
		case OpGte:
			hit = c >= 0
		default:
			return false, fmt.Errorf("unsupported operator %q", p.Operator)
		}
		if !hit {
			return false, nil
		}
	}
	return true, nil
}

// compare orders numbers numerically and everything else by string form.
func compare(a, b interface{}) int {
	fa, aok := toFloat(a)
	fb, bok := toFloat(b)
	if aok && bok {
		switch {
		case fa < fb:
			return -1
		case fa > fb:
			return 1
		default:
			return 0
		}
	}
	sa, sb := valueString(a), valueString(b)
	switch {
	case sa < sb:
		return -1
	case sa > sb:
		return 1
	default:
		return 0
	}
}

func toFloat(v interface{}) (float64, bool) {
	switch t := v.(type) {
	case int:
		return float64(t), true
	case int32:
		return float64(t), true
	case int64:
		return float64(t), true
	case float32:
		return float64(t), true
	case float64:
		return t, true
	case string:
		f, err := strconv.ParseFloat(t, 64)
		return f, err == nil
	default:
		return 0, false
	}
}
