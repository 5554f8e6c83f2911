// Pinteya E-commerce - Enterprise Admin Security Pipeline
// Copyright 2026 The Pinteya E-commerce Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/SantiagoXOR/pinteya-ecommerce-sub017

package identity

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/goccy/go-json"

	"github.com/SantiagoXOR/pinteya-ecommerce-sub017/internal/validation"
)

// Provider errors
var (
	// ErrNotFound is returned when the provider does not know the user.
	ErrNotFound = errors.New("identity not found")

	// ErrInvalidPayload is returned when the provider response fails validation.
	ErrInvalidPayload = errors.New("invalid identity payload")
)

// Identity is the provider's view of a user.
type Identity struct {
	ID          string `json:"id" validate:"required,subject"`
	DisplayRole string `json:"display_role"`
	IsActive    bool   `json:"is_active"`
	Role        string `json:"role" validate:"required"`
	// Grants narrows the role defaults when non-nil.
	Grants      []string `json:"grants,omitempty" validate:"omitempty,max=128,dive,capability"`
	Revocations []string `json:"revocations,omitempty" validate:"max=128,dive,capability"`
	TenantID    string   `json:"tenant_id,omitempty" validate:"omitempty,subject"`
}

// Provider looks up the current identity for a user id.
type Provider interface {
	Lookup(ctx context.Context, userID string) (*Identity, error)
}

// HTTPProvider calls the identity provider's user endpoint.
type HTTPProvider struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

// NewHTTPProvider creates a provider for baseURL. client may be nil.
func NewHTTPProvider(baseURL, apiKey string, client *http.Client) (*HTTPProvider, error) {
	u, err := url.Parse(baseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid identity provider URL %q", baseURL)
	}
	if client == nil {
		client = &http.Client{Timeout: DefaultTimeout}
	}
	return &HTTPProvider{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		client:  client,
	}, nil
}

// Lookup implements Provider.
func (p *HTTPProvider) Lookup(ctx context.Context, userID string) (*Identity, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+"/users/"+url.PathEscape(userID), nil)
	if err != nil {
		return nil, fmt.Errorf("build identity request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if p.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+p.apiKey)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("identity request: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, ErrNotFound
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("identity provider returned status %d", resp.StatusCode)
	}

	var id Identity
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&id); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	if verr := validation.ValidateStruct(&id); verr != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPayload, verr)
	}
	if id.ID != userID {
		return nil, fmt.Errorf("%w: subject mismatch", ErrInvalidPayload)
	}
	return &id, nil
}

// StaticProvider serves a fixed set of identities.
type StaticProvider struct {
	mu         sync.RWMutex
	identities map[string]Identity
	delay      time.Duration
}

// NewStaticProvider creates a provider from ids.
func NewStaticProvider(ids ...Identity) *StaticProvider {
	p := &StaticProvider{identities: make(map[string]Identity, len(ids))}
	for _, id := range ids {
		p.identities[id.ID] = id
	}
	return p
}

// Put adds or replaces an identity.
func (p *StaticProvider) Put(id Identity) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.identities[id.ID] = id
}

// SetDelay makes every Lookup block for d or until ctx is done.
func (p *StaticProvider) SetDelay(d time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.delay = d
}

// Lookup implements Provider. The returned identity is a copy.
func (p *StaticProvider) Lookup(ctx context.Context, userID string) (*Identity, error) {
	p.mu.RLock()
	id, ok := p.identities[userID]
	delay := p.delay
	p.mu.RUnlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if !ok {
		return nil, ErrNotFound
	}
	id.Grants = cloneStrings(id.Grants)
	id.Revocations = cloneStrings(id.Revocations)
	return &id, nil
}

func cloneStrings(s []string) []string {
	if s == nil {
		return nil
	}
	return append([]string{}, s...)
}
