// Pinteya E-commerce - Enterprise Admin Security Pipeline
// Copyright 2026 The Pinteya E-commerce Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/SantiagoXOR/pinteya-ecommerce-sub017

/*
Package auth verifies who is calling and where the call comes from.

It holds the first two stages of the admin security pipeline:

  - TokenValidator checks a bearer token or session cookie: signature against a
    rotation-aware KeySet, expiry and issued-at with bounded clock skew, issuer
    and audience. Failures are *TokenError values with a Kind of EXPIRED,
    BAD_SIGNATURE, BAD_AUDIENCE or MALFORMED. Validation is pure: it never logs.
  - OriginGuard checks unsafe requests (POST, PUT, PATCH, DELETE). A request is
    accepted when its Origin (or Referer) host is in the allowed set, or when
    the X-CSRF-Token header carries the anti-forgery token bound to the session.

# Key Rotation

A KeySet holds any number of concurrently valid keys addressed by kid: HMAC
secrets from configuration and RSA keys served by the identity provider's JWKS
endpoint. Rotating a key means publishing the new kid before retiring the old
one; both verify during the overlap.

	keys := auth.NewKeySet(map[string][]byte{"2026-01": s1, "2026-02": s2}, jwks)
	v, err := auth.NewTokenValidator(keys, auth.ValidatorConfig{
	    Issuer:    "https://id.pinteya.example",
	    Audience:  "pinteya-admin",
	    ClockSkew: 30 * time.Second,
	})

# Local Development

The relaxed local mode of OriginGuard accepts loopback requests without an
origin. It is honored only when the binary was built without the production
build tag, the environment is not production, and the flag is set. Config
validation additionally refuses the flag in production.
*/
package auth
