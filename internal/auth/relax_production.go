// Pinteya E-commerce - Enterprise Admin Security Pipeline
// Copyright 2026 The Pinteya E-commerce Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/SantiagoXOR/pinteya-ecommerce-sub017

//go:build production

package auth

// relaxedBuildAllowed is false in production builds: no configuration can
// enable the local CSRF relaxation.
const relaxedBuildAllowed = false
