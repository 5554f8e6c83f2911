// Pinteya E-commerce - Enterprise Admin Security Pipeline
// Copyright 2026 The Pinteya E-commerce Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/SantiagoXOR/pinteya-ecommerce-sub017

//go:build !nats

package audit

import (
	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
)

// NewNATSPublisher is unavailable without the nats build tag.
func NewNATSPublisher(_ string, _ watermill.LoggerAdapter) (message.Publisher, error) {
	return nil, ErrNATSNotCompiled
}
