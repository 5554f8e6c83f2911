// Pinteya E-commerce - Enterprise Admin Security Pipeline
// Copyright 2026 The Pinteya E-commerce Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/SantiagoXOR/pinteya-ecommerce-sub017

package rls

import (
	"errors"
	"testing"

	"github.com/SantiagoXOR/pinteya-ecommerce-sub017/internal/authz"
)

// =====================================================
// Test Helpers
// =====================================================

func newContext(role authz.Role, userID, tenantID string, elevated bool) *authz.AuthContext {
	return authz.NewAuthContext(authz.ContextParams{
		UserID:      userID,
		TenantID:    tenantID,
		Role:        role,
		Permissions: authz.DefaultPermissions(role),
		Elevated:    elevated,
	})
}

// =====================================================
// BuildFilters
// =====================================================

func TestBuildFilters_CustomerOrdersOwnership(t *testing.T) {
	ac := newContext(authz.RoleCustomer, "u1", "t1", false)

	f, err := BuildFilters(ac, ResourceOrders)
	if err != nil {
		t.Fatalf("BuildFilters() error = %v", err)
	}
	if !f.Has("owner_id", "u1") {
		t.Errorf("filter %s lacks owner_id = u1", f)
	}
	if !f.Has("tenant_id", "t1") {
		t.Errorf("filter %s lacks tenant_id = t1", f)
	}
	if f.Has("owner_id", "u2") {
		t.Error("filter matches another owner")
	}
	if f.Unrestricted {
		t.Error("customer filter must not be unrestricted")
	}
}

func TestBuildFilters_ByRole(t *testing.T) {
	tests := []struct {
		name     string
		role     authz.Role
		resource string
		elevated bool
		elevate  bool
		want     []string
		unres    bool
	}{
		{"guest products", authz.RoleGuest, ResourceProducts, false, false, []string{"tenant_id"}, false},
		{"customer customers", authz.RoleCustomer, ResourceCustomers, false, false, []string{"tenant_id", "owner_id"}, false},
		{"customer users", authz.RoleCustomer, ResourceUsers, false, false, []string{"tenant_id", "id"}, false},
		{"support orders", authz.RoleSupport, ResourceOrders, false, false, []string{"tenant_id"}, false},
		{"admin orders", authz.RoleAdmin, ResourceOrders, false, false, []string{"tenant_id"}, false},
		{"admin asks without elevation", authz.RoleAdmin, ResourceOrders, false, true, []string{"tenant_id"}, false},
		{"elevated admin not asking", authz.RoleAdmin, ResourceOrders, true, false, []string{"tenant_id"}, false},
		{"elevated super-admin asking", authz.RoleSuperAdmin, ResourceOrders, true, true, nil, true},
		{"customer asking for elevation", authz.RoleCustomer, ResourceOrders, true, true, []string{"tenant_id", "owner_id"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ac := newContext(tt.role, "u1", "t1", tt.elevated)
			var opts []BuildOption
			if tt.elevate {
				opts = append(opts, WithElevation())
			}
			f, err := BuildFilters(ac, tt.resource, opts...)
			if err != nil {
				t.Fatalf("BuildFilters() error = %v", err)
			}
			if f.Unrestricted != tt.unres {
				t.Errorf("Unrestricted = %v, want %v", f.Unrestricted, tt.unres)
			}
			cols := f.Columns()
			if len(cols) != len(tt.want) {
				t.Fatalf("columns = %v, want %v", cols, tt.want)
			}
			for i := range cols {
				if cols[i] != tt.want[i] {
					t.Errorf("columns = %v, want %v", cols, tt.want)
				}
			}
		})
	}
}

func TestBuildFilters_Errors(t *testing.T) {
	tests := []struct {
		name     string
		ac       *authz.AuthContext
		resource string
		want     error
	}{
		{"unknown resource", newContext(authz.RoleAdmin, "a1", "t1", false), "payments", ErrUnknownResource},
		{"nil context", nil, ResourceProducts, ErrNoContext},
		{"support without tenant", newContext(authz.RoleSupport, "s1", "", false), ResourceOrders, ErrEmptyFilter},
		{"admin without tenant", newContext(authz.RoleAdmin, "a1", "", false), ResourceProducts, ErrEmptyFilter},
		{"customer without user", newContext(authz.RoleCustomer, "", "t1", false), ResourceOrders, ErrEmptyFilter},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := BuildFilters(tt.ac, tt.resource)
			if !errors.Is(err, tt.want) {
				t.Errorf("BuildFilters() error = %v, want %v", err, tt.want)
			}
		})
	}
}

// For every non-elevated context and every resource the result is either
// an error or a non-empty predicate list.
func TestBuildFilters_FailClosedProperty(t *testing.T) {
	users := []string{"", "u1"}
	tenants := []string{"", "t1"}

	for _, role := range append(authz.AllRoles, authz.Role("unknown")) {
		for _, resource := range DefaultRegistry().Names() {
			for _, user := range users {
				for _, tenant := range tenants {
					for _, elevate := range []bool{false, true} {
						ac := newContext(role, user, tenant, false)
						var opts []BuildOption
						if elevate {
							opts = append(opts, WithElevation())
						}
						f, err := BuildFilters(ac, resource, opts...)
						if err != nil {
							continue
						}
						if f.Unrestricted || len(f.Predicates) == 0 {
							t.Errorf("role=%s resource=%s user=%q tenant=%q: unscoped filter %s",
								role, resource, user, tenant, f)
						}
					}
				}
			}
		}
	}
}

func TestBuildFilters_Pure(t *testing.T) {
	ac := newContext(authz.RoleCustomer, "u1", "t1", false)
	a, _ := BuildFilters(ac, ResourceOrders)
	b, _ := BuildFilters(ac, ResourceOrders)
	if a.String() != b.String() {
		t.Errorf("BuildFilters() not deterministic: %s vs %s", a, b)
	}
}

// =====================================================
// Registry
// =====================================================

func TestRegistry_RegisterValidates(t *testing.T) {
	r := NewRegistry()
	bad := []Resource{
		{Name: "x", Table: "Robert'); DROP TABLE students;--", TenantColumn: "tenant_id"},
		{Name: "x", Table: "x"},
		{Name: "x", Table: "x", OwnerScoped: true},
		{Table: "x", TenantColumn: "tenant_id"},
	}
	for _, res := range bad {
		if err := r.Register(res); err == nil {
			t.Errorf("Register(%+v) should fail", res)
		}
	}
	if err := r.Register(Resource{Name: "invoices", Table: "invoices", TenantColumn: "tenant_id"}); err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	if _, err := r.Lookup("invoices"); err != nil {
		t.Errorf("Lookup() error = %v", err)
	}
}
