// Pinteya E-commerce - Enterprise Admin Security Pipeline
// Copyright 2026 The Pinteya E-commerce Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/SantiagoXOR/pinteya-ecommerce-sub017

package audit

import (
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"hash"
	"sort"
	"strconv"

	"golang.org/x/crypto/blake2b"
)

// ErrChainBroken is returned by VerifyChain when events were altered,
// removed or reordered.
var ErrChainBroken = errors.New("audit hash chain broken")

// ChainError describes the first inconsistency found in a chain.
type ChainError struct {
	Seq    uint64
	Reason string
}

func (e *ChainError) Error() string {
	return fmt.Sprintf("%s at seq %d: %s", ErrChainBroken, e.Seq, e.Reason)
}

func (e *ChainError) Unwrap() error {
	return ErrChainBroken
}

// Chain links events with a keyed BLAKE2b-256 hash. Each event's hash covers
// its content and the previous event's hash.
//
// Chain is not safe for concurrent use; the Logger serialises access.
type Chain struct {
	key    [32]byte
	seq    uint64
	head   string
	seeded bool
}

// NewChain creates a chain keyed by key. An empty key still chains events
// but anyone can recompute the hashes.
func NewChain(key string) *Chain {
	return &Chain{key: blake2b.Sum256([]byte(key))}
}

// Seed positions the chain after an existing tail event.
func (c *Chain) Seed(last *Event) {
	c.seeded = true
	if last == nil {
		c.seq, c.head = 0, ""
		return
	}
	c.seq, c.head = last.Seq, last.Hash
}

// Seeded reports whether Seed has been called.
func (c *Chain) Seeded() bool {
	return c.seeded
}

// Link assigns Seq, PrevHash and Hash to events in order and returns the
// resulting position. The chain itself is unchanged until Commit.
func (c *Chain) Link(events []*Event) (seq uint64, head string) {
	seq, head = c.seq, c.head
	for _, e := range events {
		seq++
		e.Seq = seq
		e.PrevHash = head
		e.Hash = c.sum(e)
		head = e.Hash
	}
	return seq, head
}

// Commit advances the chain to a position returned by Link.
func (c *Chain) Commit(seq uint64, head string) {
	c.seq, c.head = seq, head
}

func (c *Chain) sum(e *Event) string {
	h, err := blake2b.New256(c.key[:])
	if err != nil {
		// Unreachable: the key is always 32 bytes.
		panic(err)
	}
	writeField(h, strconv.FormatUint(e.Seq, 10))
	writeField(h, e.PrevHash)
	writeField(h, e.ID)
	writeField(h, string(e.Type))
	writeField(h, string(e.Category))
	writeField(h, string(e.Severity))
	writeField(h, e.ActorID)
	writeField(h, e.Role)
	writeField(h, strconv.FormatInt(e.Timestamp.UnixMicro(), 10))
	writeField(h, e.RequestID)
	writeField(h, e.Stage)
	writeField(h, e.Code)
	writeField(h, e.Source.IP)
	writeField(h, e.Source.UserAgent)
	writeField(h, e.Source.Origin)

	keys := make([]string, 0, len(e.Metadata))
	for k := range e.Metadata {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	writeField(h, strconv.Itoa(len(keys)))
	for _, k := range keys {
		writeField(h, k)
		writeField(h, e.Metadata[k])
	}
	return hex.EncodeToString(h.Sum(nil))
}

// writeField length-prefixes s so adjacent fields cannot be shifted into
// each other.
func writeField(h hash.Hash, s string) {
	var n [8]byte
	binary.BigEndian.PutUint64(n[:], uint64(len(s)))
	h.Write(n[:])
	h.Write([]byte(s))
}

// VerifyChain checks that events, ordered by sequence, form an unbroken chain
// under key. The slice may be a window of a longer chain; only an event with
// Seq 1 must have an empty PrevHash.
func VerifyChain(key string, events []*Event) error {
	if len(events) == 0 {
		return nil
	}
	sorted := make([]*Event, len(events))
	copy(sorted, events)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Seq < sorted[j].Seq })

	c := NewChain(key)
	for i, e := range sorted {
		if i == 0 {
			if e.Seq == 1 && e.PrevHash != "" {
				return &ChainError{Seq: e.Seq, Reason: "first event has a previous hash"}
			}
		} else {
			prev := sorted[i-1]
			if e.Seq != prev.Seq+1 {
				return &ChainError{Seq: e.Seq, Reason: fmt.Sprintf("gap after seq %d", prev.Seq)}
			}
			if e.PrevHash != prev.Hash {
				return &ChainError{Seq: e.Seq, Reason: "previous hash mismatch"}
			}
		}
		if c.sum(e) != e.Hash {
			return &ChainError{Seq: e.Seq, Reason: "content hash mismatch"}
		}
	}
	return nil
}
