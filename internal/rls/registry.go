// Pinteya E-commerce - Enterprise Admin Security Pipeline
// Copyright 2026 The Pinteya E-commerce Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/SantiagoXOR/pinteya-ecommerce-sub017

package rls

import (
	"fmt"
	"regexp"
	"sort"
	"sync"
)

// Resource names known to the default registry.
const (
	ResourceProducts  = "products"
	ResourceOrders    = "orders"
	ResourceCustomers = "customers"
	ResourceUsers     = "users"
)

// identifierPattern restricts table and column names to plain lower-case
// SQL identifiers.
var identifierPattern = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)

// Resource describes how rows of a table are scoped.
type Resource struct {
	Name         string
	Table        string
	TenantColumn string
	OwnerColumn  string
	// OwnerScoped resources restrict non-staff roles to their own rows.
	OwnerScoped bool
}

func (r Resource) validate() error {
	if r.Name == "" {
		return fmt.Errorf("resource name is required")
	}
	if !identifierPattern.MatchString(r.Table) {
		return fmt.Errorf("resource %s: invalid table %q", r.Name, r.Table)
	}
	if r.TenantColumn != "" && !identifierPattern.MatchString(r.TenantColumn) {
		return fmt.Errorf("resource %s: invalid tenant column %q", r.Name, r.TenantColumn)
	}
	if r.OwnerScoped && !identifierPattern.MatchString(r.OwnerColumn) {
		return fmt.Errorf("resource %s: owner-scoped resource needs a valid owner column", r.Name)
	}
	if r.TenantColumn == "" && !r.OwnerScoped {
		return fmt.Errorf("resource %s: needs a tenant column or owner scope", r.Name)
	}
	return nil
}

// Registry maps resource names to their scoping columns.
type Registry struct {
	mu        sync.RWMutex
	resources map[string]Resource
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{resources: make(map[string]Resource)}
}

var (
	defaultRegistry     *Registry
	defaultRegistryOnce sync.Once
)

// DefaultRegistry returns the shared registry of e-commerce resources.
func DefaultRegistry() *Registry {
	defaultRegistryOnce.Do(func() {
		r := NewRegistry()
		for _, res := range []Resource{
			{Name: ResourceProducts, Table: "products", TenantColumn: "tenant_id"},
			{Name: ResourceOrders, Table: "orders", TenantColumn: "tenant_id", OwnerColumn: "owner_id", OwnerScoped: true},
			{Name: ResourceCustomers, Table: "customers", TenantColumn: "tenant_id", OwnerColumn: "owner_id", OwnerScoped: true},
			{Name: ResourceUsers, Table: "users", TenantColumn: "tenant_id", OwnerColumn: "id", OwnerScoped: true},
		} {
			if err := r.Register(res); err != nil {
				panic(err)
			}
		}
		defaultRegistry = r
	})
	return defaultRegistry
}

// Register adds or replaces a resource.
func (r *Registry) Register(res Resource) error {
	if err := res.validate(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.resources[res.Name] = res
	return nil
}

// Lookup returns the resource registered under name.
func (r *Registry) Lookup(name string) (Resource, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	res, ok := r.resources[name]
	if !ok {
		return Resource{}, fmt.Errorf("%w: %q", ErrUnknownResource, name)
	}
	return res, nil
}

// Names returns the registered resource names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.resources))
	for name := range r.resources {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
