// Pinteya E-commerce - Enterprise Admin Security Pipeline
// Copyright 2026 The Pinteya E-commerce Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/SantiagoXOR/pinteya-ecommerce-sub017

package authz

import (
	_ "embed"
	"fmt"
	"os"

	"github.com/casbin/casbin/v2"
	"github.com/casbin/casbin/v2/model"
)

//go:embed model.conf
var embeddedModel string

// EnforcerConfig holds configuration for the Casbin enforcer.
type EnforcerConfig struct {
	// ModelPath is the path to a Casbin model file.
	// If empty, uses the embedded model.
	ModelPath string
}

// Enforcer decides role/capability pairs with Casbin. The policy is always
// generated from the static role defaults, so it can never grant more than
// DefaultPermissions.
type Enforcer struct {
	enforcer *casbin.SyncedEnforcer
}

// NewEnforcer creates an enforcer loaded with the role defaults.
func NewEnforcer(config *EnforcerConfig) (*Enforcer, error) {
	if config == nil {
		config = &EnforcerConfig{}
	}

	var m model.Model
	var err error
	if config.ModelPath != "" && fileExists(config.ModelPath) {
		m, err = model.NewModelFromFile(config.ModelPath)
	} else {
		m, err = model.NewModelFromString(embeddedModel)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load casbin model: %w", err)
	}

	enforcer, err := casbin.NewSyncedEnforcer(m)
	if err != nil {
		return nil, fmt.Errorf("failed to create casbin enforcer: %w", err)
	}

	if err := loadDefaultPolicy(enforcer); err != nil {
		return nil, err
	}
	return &Enforcer{enforcer: enforcer}, nil
}

// loadDefaultPolicy adds one "p, role, resource, action" rule per default capability.
func loadDefaultPolicy(enforcer *casbin.SyncedEnforcer) error {
	var rules [][]string
	for _, role := range AllRoles {
		for _, c := range defaultPermissions[role] {
			resource, action, ok := splitCapability(c)
			if !ok {
				return fmt.Errorf("invalid capability %q for role %s", c, role)
			}
			rules = append(rules, []string{string(role), resource, action})
		}
	}
	if _, err := enforcer.AddPolicies(rules); err != nil {
		return fmt.Errorf("failed to add default policy: %w", err)
	}
	return nil
}

// Allows reports whether role holds capability. Malformed capabilities and
// unknown roles are denied.
func (e *Enforcer) Allows(role Role, capability string) (bool, error) {
	if !role.Valid() {
		return false, nil
	}
	resource, action, ok := splitCapability(capability)
	if !ok {
		return false, nil
	}
	allowed, err := e.enforcer.Enforce(string(role), resource, action)
	if err != nil {
		return false, fmt.Errorf("enforcement failed: %w", err)
	}
	return allowed, nil
}

// GetPolicy returns all policy rules.
func (e *Enforcer) GetPolicy() [][]string {
	//nolint:errcheck // GetPolicy only fails if enforcer is nil, which is a programming error
	policies, _ := e.enforcer.GetPolicy()
	return policies
}

// fileExists checks if a file exists.
func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
