// Pinteya E-commerce - Enterprise Admin Security Pipeline
// Copyright 2026 The Pinteya E-commerce Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/SantiagoXOR/pinteya-ecommerce-sub017

// Package validation provides struct validation using go-playground/validator v10.
//
// A single validator instance is created lazily and shared (it caches struct
// metadata and is safe for concurrent use). Two custom tags are registered:
//
//	capability  "<resource>_<action>", e.g. orders_refund
//	subject     opaque identifier: letters, digits and ._:@|- up to 128 chars
//
// Identity provider payloads and admin request bodies are validated before
// they reach the authorization layer:
//
//	type permissionsRequest struct {
//	    Grants      []string `json:"grants" validate:"omitempty,max=64,dive,capability"`
//	    Revocations []string `json:"revocations" validate:"max=64,dive,capability"`
//	}
//
//	if verr := validation.ValidateStruct(&req); verr != nil {
//	    // 400 with verr.Fields() as details
//	}
package validation
