// Pinteya E-commerce - Enterprise Admin Security Pipeline
// Copyright 2026 The Pinteya E-commerce Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/SantiagoXOR/pinteya-ecommerce-sub017

package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/zitadel/oidc/v3/pkg/client"
)

// DiscoverJWKSURI reads the issuer's OpenID discovery document and returns
// its jwks_uri.
func DiscoverJWKSURI(ctx context.Context, issuer string, httpClient *http.Client) (string, error) {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	discovery, err := client.Discover(ctx, issuer, httpClient)
	if err != nil {
		return "", fmt.Errorf("OIDC discovery failed: %w", err)
	}
	if discovery.JwksURI == "" {
		return "", errors.New("OIDC discovery missing jwks_uri")
	}
	return discovery.JwksURI, nil
}
