// Pinteya E-commerce - Enterprise Admin Security Pipeline
// Copyright 2026 The Pinteya E-commerce Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/SantiagoXOR/pinteya-ecommerce-sub017

package authz

import (
	"sort"
	"strings"
)

// Role is the closed set of principal roles.
type Role string

const (
	RoleGuest      Role = "guest"
	RoleCustomer   Role = "customer"
	RoleSupport    Role = "support"
	RoleAdmin      Role = "admin"
	RoleSuperAdmin Role = "super-admin"
)

// AllRoles lists every valid role from least to most privileged.
var AllRoles = []Role{RoleGuest, RoleCustomer, RoleSupport, RoleAdmin, RoleSuperAdmin}

// ParseRole maps an identity provider role string onto the closed set.
// Unknown values report ok=false and must be treated as having no permissions.
func ParseRole(s string) (Role, bool) {
	switch Role(strings.ToLower(strings.TrimSpace(s))) {
	case RoleGuest:
		return RoleGuest, true
	case RoleCustomer:
		return RoleCustomer, true
	case RoleSupport:
		return RoleSupport, true
	case RoleAdmin:
		return RoleAdmin, true
	case RoleSuperAdmin, "super_admin", "superadmin":
		return RoleSuperAdmin, true
	default:
		return Role(s), false
	}
}

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	_, ok := defaultPermissions[r]
	return ok
}

// IsAdministrative reports whether r may be elevated to unrestricted data access.
func (r Role) IsAdministrative() bool {
	return r == RoleAdmin || r == RoleSuperAdmin
}

// Capability catalogue.
const (
	ProductsRead   = "products_read"
	ProductsWrite  = "products_write"
	OrdersRead     = "orders_read"
	OrdersWrite    = "orders_write"
	OrdersRefund   = "orders_refund"
	CustomersRead  = "customers_read"
	CustomersWrite = "customers_write"
	UsersRead      = "users_read"
	UsersWrite     = "users_write"
	AnalyticsRead  = "analytics_read"
	AnalyticsWrite = "analytics_write"
	SettingsRead   = "settings_read"
	SettingsWrite  = "settings_write"
	AuditRead      = "audit_read"
	AuditWrite     = "audit_write"
)

// defaultPermissions is the ceiling for every role. No AuthContext ever holds
// a capability outside its role's set.
var defaultPermissions = map[Role][]string{
	RoleGuest: {ProductsRead},
	RoleCustomer: {
		ProductsRead,
		OrdersRead, OrdersWrite,
		CustomersRead, CustomersWrite,
	},
	RoleSupport: {
		ProductsRead,
		OrdersRead, OrdersWrite,
		CustomersRead,
		AnalyticsRead,
	},
	RoleAdmin: {
		ProductsRead, ProductsWrite,
		OrdersRead, OrdersWrite, OrdersRefund,
		CustomersRead, CustomersWrite,
		UsersRead, UsersWrite,
		AnalyticsRead,
		SettingsRead,
		AuditRead,
	},
	RoleSuperAdmin: {
		ProductsRead, ProductsWrite,
		OrdersRead, OrdersWrite, OrdersRefund,
		CustomersRead, CustomersWrite,
		UsersRead, UsersWrite,
		AnalyticsRead, AnalyticsWrite,
		SettingsRead, SettingsWrite,
		AuditRead, AuditWrite,
	},
}

// DefaultPermissions returns a sorted copy of the default capability set of r.
// Unknown roles return nil.
func DefaultPermissions(r Role) []string {
	perms, ok := defaultPermissions[r]
	if !ok {
		return nil
	}
	out := append([]string(nil), perms...)
	sort.Strings(out)
	return out
}

// Catalogue returns every capability granted to at least one role.
func Catalogue() []string {
	seen := make(map[string]struct{})
	for _, perms := range defaultPermissions {
		for _, p := range perms {
			seen[p] = struct{}{}
		}
	}
	out := make([]string, 0, len(seen))
	for p := range seen {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

// splitCapability splits "orders_refund" into ("orders", "refund").
func splitCapability(c string) (resource, action string, ok bool) {
	i := strings.LastIndexByte(c, '_')
	if i <= 0 || i == len(c)-1 {
		return "", "", false
	}
	return c[:i], c[i+1:], true
}
