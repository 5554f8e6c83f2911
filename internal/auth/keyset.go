// Pinteya E-commerce - Enterprise Admin Security Pipeline
// Copyright 2026 The Pinteya E-commerce Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/SantiagoXOR/pinteya-ecommerce-sub017

package auth

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/golang-jwt/jwt/v5"
)

// KeySet resolves verification keys by kid. HMAC secrets are held locally;
// RSA keys come from an optional JWKSCache. Any number of keys may be valid
// at the same time.
type KeySet struct {
	mu   sync.RWMutex
	hmac map[string][]byte
	jwks *JWKSCache
}

// NewKeySet creates a key set. jwks may be nil.
func NewKeySet(hmacKeys map[string][]byte, jwks *JWKSCache) *KeySet {
	ks := &KeySet{hmac: make(map[string][]byte, len(hmacKeys)), jwks: jwks}
	for kid, secret := range hmacKeys {
		ks.hmac[kid] = append([]byte(nil), secret...)
	}
	return ks
}

// AddHMAC publishes a new HMAC key. Existing keys stay valid.
func (ks *KeySet) AddHMAC(kid string, secret []byte) {
	ks.mu.Lock()
	defer ks.mu.Unlock()
	ks.hmac[kid] = append([]byte(nil), secret...)
}

// Retire removes an HMAC key; tokens signed with it stop verifying.
func (ks *KeySet) Retire(kid string) {
	ks.mu.Lock()
	defer ks.mu.Unlock()
	delete(ks.hmac, kid)
}

// KeyIDs returns the locally held kids, sorted.
func (ks *KeySet) KeyIDs() []string {
	ks.mu.RLock()
	defer ks.mu.RUnlock()
	ids := make([]string, 0, len(ks.hmac))
	for kid := range ks.hmac {
		ids = append(ids, kid)
	}
	sort.Strings(ids)
	return ids
}

// Keyfunc returns a jwt.Keyfunc bound to ctx. The key family must match the
// token's signing method so an RSA public key can never be used as an HMAC
// secret.
func (ks *KeySet) Keyfunc(ctx context.Context) jwt.Keyfunc {
	return func(token *jwt.Token) (interface{}, error) {
		kid, _ := token.Header["kid"].(string)
		if kid == "" {
			return nil, ErrMissingKeyID
		}

		switch token.Method.(type) {
		case *jwt.SigningMethodHMAC:
			ks.mu.RLock()
			secret, ok := ks.hmac[kid]
			ks.mu.RUnlock()
			if !ok {
				return nil, fmt.Errorf("%w: %s", ErrUnknownKey, kid)
			}
			return secret, nil
		case *jwt.SigningMethodRSA:
			if ks.jwks == nil {
				return nil, fmt.Errorf("%w: %s", ErrUnknownKey, kid)
			}
			return ks.jwks.GetKey(ctx, kid)
		default:
			return nil, ErrKeyTypeMismatch
		}
	}
}
