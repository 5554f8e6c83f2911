// Pinteya E-commerce - Enterprise Admin Security Pipeline
// Copyright 2026 The Pinteya E-commerce Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/SantiagoXOR/pinteya-ecommerce-sub017

// Package authz resolves a verified identity into an immutable AuthContext and
// decides whether it holds the capabilities a request requires.
//
// # Roles and capabilities
//
// Roles are a closed set (guest, customer, support, admin, super-admin). Each
// role has a static default capability set, see DefaultPermissions. A
// capability is a "<resource>_<action>" string such as products_read or
// orders_refund.
//
// The default sets are loaded into a Casbin SyncedEnforcer using the embedded
// ACL model:
//
//	[request_definition]
//	r = sub, obj, act
//
//	[policy_definition]
//	p = sub, obj, act
//
//	[matchers]
//	m = r.sub == p.sub && r.obj == p.obj && r.act == p.act
//
// # Effective permissions
//
//	effective = defaults(role) ∩ grants - revocations
//
// When no grants are supplied the role defaults are used. Unknown roles have
// no permissions at all. Authorization uses AND semantics over the required
// capabilities and a denial names the first missing capability in the error
// details, which are never serialized to clients.
//
// # Security level
//
// SecurityLevel is derived from the role baseline (guest and customer low,
// support medium, admin high, super-admin critical) and the number of recent
// auth_failure and rate_limited signals recorded by the AnomalyTracker for the
// same identity: three or more raise it one level, ten or more two levels.
package authz
