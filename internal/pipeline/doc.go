// Pinteya E-commerce - Enterprise Admin Security Pipeline
// Copyright 2026 The Pinteya E-commerce Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/SantiagoXOR/pinteya-ecommerce-sub017

/*
Package pipeline composes the admin security stages into a single request
state machine.

Every request moves forward through

	RECEIVED -> TOKEN_VALIDATED -> ORIGIN_CHECKED -> RATE_CHECKED -> AUTHORIZED -> DELEGATED_TO_HANDLER

or ends in REJECTED. The first failing stage short-circuits the rest and
produces exactly one audit event. Credential failures and rate limiting also
feed the anomaly tracker, which raises the security level of later contexts
for the same identity.

Usage with chi:

	composer, err := pipeline.NewComposer(pipeline.Deps{...}, pipeline.DefaultConfig())
	r.With(composer.Require(authz.ProductsRead)).Get("/api/v1/admin/products", h.ListProducts)

Handlers read the authorized context with authz.FromContext. A request that
passes through more than one guard shares a RequestState, so the rate stage
consumes budget only once.
*/
package pipeline
