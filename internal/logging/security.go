// Pinteya E-commerce - Enterprise Admin Security Pipeline
// Copyright 2026 The Pinteya E-commerce Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/SantiagoXOR/pinteya-ecommerce-sub017

package logging

import (
	"context"
	"strings"
)

// Decision describes one pipeline outcome for operational logging.
// The audit trail holds the full record; this line is for operators.
type Decision struct {
	// Stage is the pipeline stage that produced the decision.
	Stage string
	// Allowed is true when the request advanced to the handler.
	Allowed bool
	// Code is the typed error code on rejection.
	Code string
	// UserID is the actor, if known (masked on output).
	UserID string
	// SessionID is the session, if known (masked on output).
	SessionID string
	// IP is the client address.
	IP string
	// Method and Path identify the route.
	Method string
	Path   string
}

// LogDecision writes a pipeline decision with sanitized identifiers.
// Allowed decisions log at debug, rejections at warn.
func LogDecision(ctx context.Context, d *Decision) {
	l := Ctx(ctx)
	e := l.Warn()
	if d.Allowed {
		e = l.Debug()
	}

	e = e.Str("component", "pipeline").
		Str("stage", d.Stage).
		Bool("allowed", d.Allowed).
		Str("method", d.Method).
		Str("path", d.Path)

	if d.Code != "" {
		e = e.Str("code", d.Code)
	}
	if d.UserID != "" {
		e = e.Str("user_id", SanitizeUserID(d.UserID))
	}
	if d.SessionID != "" {
		e = e.Str("session_id", SanitizeSessionID(d.SessionID))
	}
	if d.IP != "" {
		e = e.Str("ip", d.IP)
	}

	if d.Allowed {
		e.Msg("Request authorized")
		return
	}
	e.Msg("Request rejected")
}

// ============================================================
// Sanitization Functions
// ============================================================

// SanitizeToken masks a token, showing only the first and last 4 characters.
// Example: "eyJhbGciOiJSUzI1NiIsInR5cCI6IkpXVCJ9..." -> "eyJh...kpXV"
func SanitizeToken(token string) string {
	return maskMiddle(token, 12)
}

// SanitizeSessionID masks a session ID.
// Example: "abc123def456ghi" -> "abc1...6ghi"
func SanitizeSessionID(sessionID string) string {
	return maskMiddle(sessionID, 12)
}

// SanitizeUserID masks a user ID.
// Example: "user-12345678" -> "user...5678"
func SanitizeUserID(userID string) string {
	return maskMiddle(userID, 8)
}

// SanitizeError collapses error messages that mention secrets into a
// generic string and truncates long messages.
func SanitizeError(err string) string {
	lower := strings.ToLower(err)
	for _, pattern := range []string{"password", "secret", "token", "key", "bearer", "authorization", "cookie"} {
		if strings.Contains(lower, pattern) {
			return "authentication error"
		}
	}
	return truncateString(err, 200)
}

func maskMiddle(s string, minLen int) string {
	if s == "" {
		return ""
	}
	if len(s) <= minLen {
		return "***"
	}
	return s[:4] + "..." + s[len(s)-4:]
}

func truncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
