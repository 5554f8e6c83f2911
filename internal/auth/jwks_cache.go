// Pinteya E-commerce - Enterprise Admin Security Pipeline
// Copyright 2026 The Pinteya E-commerce Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/SantiagoXOR/pinteya-ecommerce-sub017

package auth

import (
	"context"
	"crypto/rsa"
	"encoding/base64"
	"fmt"
	"math/big"
	"net/http"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"golang.org/x/sync/singleflight"

	"github.com/SantiagoXOR/pinteya-ecommerce-sub017/internal/secerr"
)

// minUnknownKidRefresh bounds how often an unknown kid may force a refetch.
const minUnknownKidRefresh = 30 * time.Second

// JWKSCache caches the identity provider's RSA keys with TTL support.
// It is safe for concurrent use.
type JWKSCache struct {
	uri        string
	httpClient *http.Client
	ttl        time.Duration
	now        func() time.Time

	group singleflight.Group

	mu      sync.RWMutex
	keys    map[string]*rsa.PublicKey
	fetched time.Time
}

// NewJWKSCache creates a new JWKS cache.
func NewJWKSCache(uri string, client *http.Client, ttl time.Duration) *JWKSCache {
	if client == nil {
		client = &http.Client{
			Timeout: 2 * time.Second,
		}
	}
	if ttl == 0 {
		ttl = 15 * time.Minute
	}
	return &JWKSCache{
		uri:        uri,
		httpClient: client,
		ttl:        ttl,
		now:        time.Now,
		keys:       make(map[string]*rsa.PublicKey),
	}
}

// GetKey retrieves a key by ID, refreshing the cache if it is stale or the kid
// is unknown. A refresh failure is reported as AUTH_UNAVAILABLE only when no
// cached key can serve the request.
func (c *JWKSCache) GetKey(ctx context.Context, kid string) (*rsa.PublicKey, error) {
	c.mu.RLock()
	key, ok := c.keys[kid]
	fetched := c.fetched
	c.mu.RUnlock()

	age := c.now().Sub(fetched)
	if ok && age <= c.ttl {
		return key, nil
	}
	// Unknown kid on a fresh set: allow a refetch for rotation, but not on every request.
	if !ok && !fetched.IsZero() && age < minUnknownKidRefresh {
		return nil, fmt.Errorf("%w: %s", ErrUnknownKey, kid)
	}

	keys, err := c.refresh(ctx, fetched)
	if err != nil {
		if ok {
			return key, nil
		}
		return nil, secerr.Wrap(secerr.CodeAuthUnavailable, "JWKS refresh failed", err)
	}

	key, ok = keys[kid]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownKey, kid)
	}
	return key, nil
}

// refresh fetches the key set once for all concurrent callers. seen is the
// fetch time the caller observed; a newer set is returned without a fetch.
// The fetch outlives a cancelled caller so waiters sharing it still get keys.
func (c *JWKSCache) refresh(ctx context.Context, seen time.Time) (map[string]*rsa.PublicKey, error) {
	v, err, _ := c.group.Do("jwks", func() (interface{}, error) {
		c.mu.RLock()
		keys, fetched := c.keys, c.fetched
		c.mu.RUnlock()
		if fetched.After(seen) {
			return keys, nil
		}

		keys, err := c.fetchKeys(context.WithoutCancel(ctx))
		if err != nil {
			return nil, err
		}

		c.mu.Lock()
		c.keys = keys
		c.fetched = c.now()
		c.mu.Unlock()
		return keys, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(map[string]*rsa.PublicKey), nil
}

// fetchKeys downloads and decodes the JWKS document. No lock is held.
func (c *JWKSCache) fetchKeys(ctx context.Context) (map[string]*rsa.PublicKey, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.uri, http.NoBody)
	if err != nil {
		return nil, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("JWKS fetch failed with status %d", resp.StatusCode)
	}

	var jwks struct {
		Keys []struct {
			Kty string `json:"kty"`
			Kid string `json:"kid"`
			Use string `json:"use"`
			N   string `json:"n"`
			E   string `json:"e"`
		} `json:"keys"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&jwks); err != nil {
		return nil, fmt.Errorf("failed to decode JWKS: %w", err)
	}

	keys := make(map[string]*rsa.PublicKey, len(jwks.Keys))
	for _, k := range jwks.Keys {
		if k.Kty != "RSA" || k.Kid == "" || (k.Use != "" && k.Use != "sig") {
			continue
		}
		nBytes, err := base64.RawURLEncoding.DecodeString(k.N)
		if err != nil {
			continue
		}
		eBytes, err := base64.RawURLEncoding.DecodeString(k.E)
		if err != nil || len(eBytes) == 0 || len(eBytes) > 4 {
			continue
		}
		e := 0
		for _, b := range eBytes {
			e = e<<8 + int(b)
		}
		keys[k.Kid] = &rsa.PublicKey{N: new(big.Int).SetBytes(nBytes), E: e}
	}
	return keys, nil
}

// Len returns the number of cached keys.
func (c *JWKSCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.keys)
}

// URI returns the JWKS endpoint URI.
func (c *JWKSCache) URI() string {
	return c.uri
}
