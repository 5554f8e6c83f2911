// Pinteya E-commerce - Enterprise Admin Security Pipeline
// Copyright 2026 The Pinteya E-commerce Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/SantiagoXOR/pinteya-ecommerce-sub017

package models

import "time"

// Product is the admin view of a catalogue item.
type Product struct {
	ID         string    `json:"id"`
	TenantID   string    `json:"tenant_id"`
	Name       string    `json:"name"`
	PriceCents int64     `json:"price_cents"`
	Stock      int64     `json:"stock"`
	UpdatedAt  time.Time `json:"updated_at,omitempty"`
}

// CreateProductRequest is the body of POST /admin/products.
type CreateProductRequest struct {
	Name       string `json:"name" validate:"required,min=2,max=200"`
	PriceCents int64  `json:"price_cents" validate:"gte=0"`
	Stock      int64  `json:"stock" validate:"gte=0"`
}

// Order is the admin view of an order.
type Order struct {
	ID         string `json:"id"`
	TenantID   string `json:"tenant_id"`
	OwnerID    string `json:"owner_id"`
	Status     string `json:"status"`
	TotalCents int64  `json:"total_cents"`
}

// PermissionUpdateRequest replaces a user's grant/revoke overlay. A nil
// Grants keeps the role defaults.
type PermissionUpdateRequest struct {
	Grants      []string `json:"grants" validate:"omitempty,max=128,dive,capability"`
	Revocations []string `json:"revocations" validate:"max=128,dive,capability"`
	Reason      string   `json:"reason" validate:"required,min=3,max=500"`
}

// CSRFTokenResponse is returned by GET /auth/csrf.
type CSRFTokenResponse struct {
	Token  string `json:"token"`
	Header string `json:"header"`
}

// PermissionUpdateResponse confirms an overlay change. Invalidated is true
// once the user's cached contexts are gone.
type PermissionUpdateResponse struct {
	UserID      string    `json:"user_id"`
	Grants      []string  `json:"grants"`
	Revocations []string  `json:"revocations"`
	UpdatedBy   string    `json:"updated_by"`
	UpdatedAt   time.Time `json:"updated_at"`
	Invalidated bool      `json:"invalidated"`
}

// SessionRevocationResponse confirms a logout-all.
type SessionRevocationResponse struct {
	UserID    string    `json:"user_id"`
	RevokedAt time.Time `json:"revoked_at"`
}
