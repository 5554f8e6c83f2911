// Pinteya E-commerce - Enterprise Admin Security Pipeline
// Copyright 2026 The Pinteya E-commerce Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/SantiagoXOR/pinteya-ecommerce-sub017

/*
Package identity is the boundary to the identity provider.

The provider is a black box that returns the current role and grants for a
user id (pull model). Implementations:

  - HTTPProvider: GET {base}/users/{id} with a bearer API key.
  - StaticProvider: fixed in-memory identities for development and tests.

GuardedProvider wraps any Provider with a per-call timeout (2s by default) and
a sony/gobreaker circuit breaker. Timeouts, transport errors and an open
breaker all surface as secerr AUTH_UNAVAILABLE so the pipeline fails closed
instead of hanging.

OverlayProvider applies the local grant/revoke overlay (see Overlay) on top of
what the provider returns. Overlays are stored in BadgerDB, or in memory for
tests. Changing an overlay must be followed by invalidating the user's cached
authorization context; the admin API does both in one call.
*/
package identity
