// Pinteya E-commerce - Enterprise Admin Security Pipeline
// Copyright 2026 The Pinteya E-commerce Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/SantiagoXOR/pinteya-ecommerce-sub017

package cache

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// VersionStore holds the authoritative per-user mutation version.
type VersionStore interface {
	// Current returns the user's version. Users never bumped are at 0.
	Current(ctx context.Context, userID string) (uint64, error)
	// Bump increments the user's version and returns the new value.
	Bump(ctx context.Context, userID string) (uint64, error)
}

// LocalVersionStore keeps versions in process memory.
type LocalVersionStore struct {
	mu       sync.RWMutex
	versions map[string]uint64
}

// NewLocalVersionStore creates an empty in-process store.
func NewLocalVersionStore() *LocalVersionStore {
	return &LocalVersionStore{versions: make(map[string]uint64)}
}

// Current implements VersionStore.
func (s *LocalVersionStore) Current(_ context.Context, userID string) (uint64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.versions[userID], nil
}

// Bump implements VersionStore.
func (s *LocalVersionStore) Bump(_ context.Context, userID string) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.versions[userID]++
	return s.versions[userID], nil
}

// DefaultRedisTimeout bounds one version store round trip.
const DefaultRedisTimeout = 2 * time.Second

// RedisVersionStore shares versions between instances.
type RedisVersionStore struct {
	client  redis.UniversalClient
	prefix  string
	timeout time.Duration
}

// NewRedisVersionStore creates a store on client.
func NewRedisVersionStore(client redis.UniversalClient) *RedisVersionStore {
	return &RedisVersionStore{
		client:  client,
		prefix:  "pinteya:authz:ver:",
		timeout: DefaultRedisTimeout,
	}
}

// Current implements VersionStore.
func (s *RedisVersionStore) Current(ctx context.Context, userID string) (uint64, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	v, err := s.client.Get(ctx, s.prefix+userID).Uint64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("read version for user: %w", err)
	}
	return v, nil
}

// Bump implements VersionStore.
func (s *RedisVersionStore) Bump(ctx context.Context, userID string) (uint64, error) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.timeout)
	defer cancel()

	v, err := s.client.Incr(ctx, s.prefix+userID).Result()
	if err != nil {
		return 0, fmt.Errorf("bump version for user: %w", err)
	}
	return uint64(v), nil
}

// RevocationStore records the instant before which a user's sessions are no
// longer accepted.
type RevocationStore interface {
	// RevokedBefore returns the user's cutoff. The zero time means none.
	RevokedBefore(ctx context.Context, userID string) (time.Time, error)
	// RevokeSessions moves the user's cutoff to at. An earlier at than the
	// stored cutoff is ignored.
	RevokeSessions(ctx context.Context, userID string, at time.Time) error
}

// LocalRevocationStore keeps cutoffs in process memory. They do not survive
// a restart.
type LocalRevocationStore struct {
	mu      sync.RWMutex
	cutoffs map[string]time.Time
}

// NewLocalRevocationStore creates an empty in-process store.
func NewLocalRevocationStore() *LocalRevocationStore {
	return &LocalRevocationStore{cutoffs: make(map[string]time.Time)}
}

// RevokedBefore implements RevocationStore.
func (s *LocalRevocationStore) RevokedBefore(_ context.Context, userID string) (time.Time, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cutoffs[userID], nil
}

// RevokeSessions implements RevocationStore.
func (s *LocalRevocationStore) RevokeSessions(_ context.Context, userID string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if at.After(s.cutoffs[userID]) {
		s.cutoffs[userID] = at
	}
	return nil
}

// revokeScript keeps the later of the stored and requested cutoff.
var revokeScript = redis.NewScript(`
local cur = tonumber(redis.call("GET", KEYS[1]) or "0")
local at = tonumber(ARGV[1])
if at > cur then
  redis.call("SET", KEYS[1], ARGV[1])
  return at
end
return cur
`)

// RedisRevocationStore shares cutoffs between instances. Cutoffs are stored
// as Unix milliseconds.
type RedisRevocationStore struct {
	client  redis.UniversalClient
	prefix  string
	timeout time.Duration
}

// NewRedisRevocationStore creates a store on client.
func NewRedisRevocationStore(client redis.UniversalClient) *RedisRevocationStore {
	return &RedisRevocationStore{
		client:  client,
		prefix:  "pinteya:authz:revoked:",
		timeout: DefaultRedisTimeout,
	}
}

// RevokedBefore implements RevocationStore.
func (s *RedisRevocationStore) RevokedBefore(ctx context.Context, userID string) (time.Time, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	ms, err := s.client.Get(ctx, s.prefix+userID).Int64()
	if errors.Is(err, redis.Nil) {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("read session cutoff for user: %w", err)
	}
	return time.UnixMilli(ms), nil
}

// RevokeSessions implements RevocationStore.
func (s *RedisRevocationStore) RevokeSessions(ctx context.Context, userID string, at time.Time) error {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.timeout)
	defer cancel()

	if err := revokeScript.Run(ctx, s.client, []string{s.prefix + userID}, at.UnixMilli()).Err(); err != nil {
		return fmt.Errorf("revoke sessions for user: %w", err)
	}
	return nil
}
