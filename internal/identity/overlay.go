// Pinteya E-commerce - Enterprise Admin Security Pipeline
// Copyright 2026 The Pinteya E-commerce Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/SantiagoXOR/pinteya-ecommerce-sub017

package identity

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"
)

// overlayKeyPrefix namespaces overlay records in BadgerDB.
const overlayKeyPrefix = "overlay:"

// Adjustment is a locally managed change to a user's grants.
type Adjustment struct {
	// Grants replaces the provider's grant list when non-nil.
	Grants []string `json:"grants,omitempty"`
	// Revocations are removed in addition to the provider's revocations.
	Revocations []string  `json:"revocations,omitempty"`
	UpdatedBy   string    `json:"updated_by"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Overlay stores adjustments per user.
type Overlay interface {
	Get(ctx context.Context, userID string) (*Adjustment, error)
	Put(ctx context.Context, userID string, adj *Adjustment) error
	Delete(ctx context.Context, userID string) error
}

// Apply merges adj into id. A nil adj leaves id unchanged.
func (adj *Adjustment) Apply(id *Identity) {
	if adj == nil {
		return
	}
	if adj.Grants != nil {
		id.Grants = cloneStrings(adj.Grants)
	}
	id.Revocations = append(cloneStrings(id.Revocations), adj.Revocations...)
}

// BadgerOverlay persists adjustments in BadgerDB.
type BadgerOverlay struct {
	db *badger.DB
}

// NewBadgerOverlay wraps an open database.
func NewBadgerOverlay(db *badger.DB) *BadgerOverlay {
	return &BadgerOverlay{db: db}
}

// OpenBadgerOverlay opens (or creates) a database at path. An empty path
// opens an in-memory database.
func OpenBadgerOverlay(path string) (*BadgerOverlay, error) {
	opts := badger.DefaultOptions(path).WithLogger(nil)
	if path == "" {
		opts = badger.DefaultOptions("").WithInMemory(true).WithLogger(nil)
	}
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open overlay store: %w", err)
	}
	return &BadgerOverlay{db: db}, nil
}

// Get implements Overlay. A user without an adjustment returns nil, nil.
func (o *BadgerOverlay) Get(_ context.Context, userID string) (*Adjustment, error) {
	var adj *Adjustment
	err := o.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(overlayKeyPrefix + userID))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("get overlay: %w", err)
		}
		return item.Value(func(val []byte) error {
			adj = &Adjustment{}
			return json.Unmarshal(val, adj)
		})
	})
	if err != nil {
		return nil, err
	}
	return adj, nil
}

// Put implements Overlay.
func (o *BadgerOverlay) Put(_ context.Context, userID string, adj *Adjustment) error {
	data, err := json.Marshal(adj)
	if err != nil {
		return fmt.Errorf("marshal overlay: %w", err)
	}
	return o.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(overlayKeyPrefix+userID), data)
	})
}

// Delete implements Overlay.
func (o *BadgerOverlay) Delete(_ context.Context, userID string) error {
	return o.db.Update(func(txn *badger.Txn) error {
		return txn.Delete([]byte(overlayKeyPrefix + userID))
	})
}

// Close closes the underlying database.
func (o *BadgerOverlay) Close() error {
	return o.db.Close()
}

// MemoryOverlay keeps adjustments in memory.
type MemoryOverlay struct {
	mu   sync.RWMutex
	adjs map[string]Adjustment
}

// NewMemoryOverlay creates an empty overlay.
func NewMemoryOverlay() *MemoryOverlay {
	return &MemoryOverlay{adjs: make(map[string]Adjustment)}
}

// Get implements Overlay.
func (o *MemoryOverlay) Get(_ context.Context, userID string) (*Adjustment, error) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	adj, ok := o.adjs[userID]
	if !ok {
		return nil, nil
	}
	adj.Grants = cloneStrings(adj.Grants)
	adj.Revocations = cloneStrings(adj.Revocations)
	return &adj, nil
}

// Put implements Overlay.
func (o *MemoryOverlay) Put(_ context.Context, userID string, adj *Adjustment) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.adjs[userID] = *adj
	return nil
}

// Delete implements Overlay.
func (o *MemoryOverlay) Delete(_ context.Context, userID string) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	delete(o.adjs, userID)
	return nil
}

// OverlayProvider applies an Overlay to another Provider's answers.
type OverlayProvider struct {
	next    Provider
	overlay Overlay
}

// NewOverlayProvider wraps next.
func NewOverlayProvider(next Provider, overlay Overlay) *OverlayProvider {
	return &OverlayProvider{next: next, overlay: overlay}
}

// Lookup implements Provider. An unreadable overlay fails the lookup: serving
// an identity without its revocations would widen access.
func (p *OverlayProvider) Lookup(ctx context.Context, userID string) (*Identity, error) {
	id, err := p.next.Lookup(ctx, userID)
	if err != nil {
		return nil, err
	}
	adj, err := p.overlay.Get(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("read grant overlay: %w", err)
	}
	adj.Apply(id)
	return id, nil
}
