// Pinteya E-commerce - Enterprise Admin Security Pipeline
// Copyright 2026 The Pinteya E-commerce Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/SantiagoXOR/pinteya-ecommerce-sub017

package rls

import (
	"errors"
	"fmt"
	"strings"

	"github.com/SantiagoXOR/pinteya-ecommerce-sub017/internal/authz"
)

// Filter construction errors
var (
	// ErrUnknownResource is returned for a resource the registry does not know.
	ErrUnknownResource = errors.New("unknown RLS resource")

	// ErrEmptyFilter is returned when no scoping predicate can be derived for
	// a context that must be scoped.
	ErrEmptyFilter = errors.New("no scoping predicate for context")

	// ErrNoContext is returned when no AuthContext is supplied.
	ErrNoContext = errors.New("no authorization context")
)

// Operator is a comparison operator.
type Operator string

// Supported operators.
const (
	OpEq  Operator = "="
	OpNeq Operator = "<>"
	OpLt  Operator = "<"
	OpLte Operator = "<="
	OpGt  Operator = ">"
	OpGte Operator = ">="
)

// Valid reports whether op is supported.
func (op Operator) Valid() bool {
	switch op {
	case OpEq, OpNeq, OpLt, OpLte, OpGt, OpGte:
		return true
	default:
		return false
	}
}

// Predicate is one column comparison.
type Predicate struct {
	Column   string      `json:"column"`
	Operator Operator    `json:"operator"`
	Value    interface{} `json:"value"`
}

// Eq builds an equality predicate.
func Eq(column string, value interface{}) Predicate {
	return Predicate{Column: column, Operator: OpEq, Value: value}
}

func (p Predicate) String() string {
	return fmt.Sprintf("%s %s %v", p.Column, p.Operator, p.Value)
}

// Filter is the set of predicates every query against Resource must carry.
type Filter struct {
	Resource   string      `json:"resource"`
	Table      string      `json:"table"`
	Predicates []Predicate `json:"predicates"`
	// Unrestricted is set only for an elevated administrative context.
	Unrestricted bool `json:"unrestricted"`
}

// Has reports whether f carries an equality predicate column = value.
func (f Filter) Has(column string, value interface{}) bool {
	for _, p := range f.Predicates {
		if p.Column == column && p.Operator == OpEq && sameValue(p.Value, value) {
			return true
		}
	}
	return false
}

// Columns returns the predicate columns.
func (f Filter) Columns() []string {
	cols := make([]string, len(f.Predicates))
	for i, p := range f.Predicates {
		cols[i] = p.Column
	}
	return cols
}

func (f Filter) String() string {
	if f.Unrestricted {
		return f.Resource + ": unrestricted"
	}
	parts := make([]string, len(f.Predicates))
	for i, p := range f.Predicates {
		parts[i] = p.String()
	}
	return f.Resource + ": " + strings.Join(parts, " AND ")
}

// BuildOption adjusts filter construction.
type BuildOption func(*buildOptions)

type buildOptions struct {
	elevate bool
}

// WithElevation requests unrestricted access. It only takes effect for an
// elevated administrative context.
func WithElevation() BuildOption {
	return func(o *buildOptions) { o.elevate = true }
}

// BuildFilters derives the predicates for resource from ac using the
// default registry.
func BuildFilters(ac *authz.AuthContext, resource string, opts ...BuildOption) (Filter, error) {
	return DefaultRegistry().BuildFilters(ac, resource, opts...)
}

// BuildFilters derives the predicates for resource from ac. It is pure and
// never returns an empty predicate list unless the result is Unrestricted.
//
//   - every context gets the tenant predicate when it has a tenant
//   - non-administrative roles get owner_id = userId on owner-scoped resources
//   - an elevated administrative context asking for elevation is Unrestricted
func (r *Registry) BuildFilters(ac *authz.AuthContext, resource string, opts ...BuildOption) (Filter, error) {
	if ac == nil {
		return Filter{}, ErrNoContext
	}
	res, err := r.Lookup(resource)
	if err != nil {
		return Filter{}, err
	}
	var o buildOptions
	for _, opt := range opts {
		opt(&o)
	}

	f := Filter{Resource: res.Name, Table: res.Table}
	role := ac.Role()

	if o.elevate && role.IsAdministrative() && ac.Elevated() {
		f.Unrestricted = true
		return f, nil
	}

	if res.TenantColumn != "" && ac.TenantID() != "" {
		f.Predicates = append(f.Predicates, Eq(res.TenantColumn, ac.TenantID()))
	}
	if res.OwnerScoped && !role.IsAdministrative() && role != authz.RoleSupport {
		if ac.UserID() == "" {
			return Filter{}, fmt.Errorf("%w: %s requires an owner but the context has no user", ErrEmptyFilter, res.Name)
		}
		f.Predicates = append(f.Predicates, Eq(res.OwnerColumn, ac.UserID()))
	}

	if len(f.Predicates) == 0 {
		return Filter{}, fmt.Errorf("%w: role %s on %s", ErrEmptyFilter, role, res.Name)
	}
	return f, nil
}

// sameValue compares predicate values by their string form so a database
// returning int64 matches a context value held as a string.
func sameValue(a, b interface{}) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return valueString(a) == valueString(b)
}

func valueString(v interface{}) string {
	switch t := v.(type) {
	case string:
		return t
	case []byte:
		return string(t)
	default:
		return fmt.Sprint(v)
	}
}
