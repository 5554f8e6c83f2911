// Pinteya E-commerce - Enterprise Admin Security Pipeline
// Copyright 2026 The Pinteya E-commerce Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/SantiagoXOR/pinteya-ecommerce-sub017

// Package rls derives row-level data-access predicates from an AuthContext
// and runs data operations under them.
//
// # Filters
//
// BuildFilters is a pure mapping from (role, user, tenant) to an ordered
// predicate list for a registered resource:
//
//	products   tenant_id = :tenant
//	orders     tenant_id = :tenant AND owner_id = :user   (guest, customer)
//	customers  tenant_id = :tenant AND owner_id = :user   (guest, customer)
//	users      tenant_id = :tenant AND id = :user         (guest, customer)
//
// Support and non-elevated administrators keep the tenant predicate only.
// A non-elevated context for which no predicate can be derived fails with
// ErrEmptyFilter. An empty predicate list is only ever produced as an
// Unrestricted filter for an elevated administrator that asked for it.
//
// # Execution
//
// Execute refuses to run the operation when no safe filter exists. The
// operation receives a ScopedClient that prepends the filter to every
// query and mutation, stamps inserts, rejects access to other tables and
// checks every returned row. Any escape attempt is reported as
// RLS_BYPASS_ATTEMPTED even if the operation ignores the error.
//
// All failures surface to clients as RLS_FILTER_UNAVAILABLE (500) with a
// generic message. Construction and bypass failures are audited as
// critical rls_violation_attempt events.
package rls
