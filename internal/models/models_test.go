// Pinteya E-commerce - Enterprise Admin Security Pipeline
// Copyright 2026 The Pinteya E-commerce Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/SantiagoXOR/pinteya-ecommerce-sub017

package models

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"

	"github.com/SantiagoXOR/pinteya-ecommerce-sub017/internal/secerr"
)

func TestNewAPIError(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		err       error
		wantCode  string
		wantMsg   string
		wantRetry int64
	}{
		{
			name:     "typed error",
			err:      secerr.New(secerr.CodeInsufficientPermissions, "missing capability products_write").WithDetail("capability", "products_write"),
			wantCode: "INSUFFICIENT_PERMISSIONS",
			wantMsg:  "Insufficient permissions",
		},
		{
			name:      "rate limited",
			err:       secerr.New(secerr.CodeRateLimited, "tier admin").WithRetryAfter(4200 * time.Millisecond),
			wantCode:  "RATE_LIMITED",
			wantMsg:   "Too many requests",
			wantRetry: 4200,
		},
		{
			name:     "untyped falls back",
			err:      errors.New("dial tcp 10.0.0.4:5432: connection refused"),
			wantCode: "AUTH_UNAVAILABLE",
			wantMsg:  "Authentication service unavailable",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NewAPIError(tt.err, secerr.CodeAuthUnavailable, "req-1")
			if got.Code != tt.wantCode || got.Message != tt.wantMsg || got.RetryAfterMs != tt.wantRetry {
				t.Errorf("NewAPIError() = %+v", got)
			}
			if got.RequestID != "req-1" {
				t.Errorf("RequestID = %q", got.RequestID)
			}
		})
	}
}

func TestFailure_DoesNotLeakInternals(t *testing.T) {
	t.Parallel()

	err := secerr.Wrap(secerr.CodeOriginRejected, "origin outside allowed set", errors.New("evil.example")).
		WithDetail("origin", "https://evil.example").
		WithDetail("ip", "203.0.113.9")
	data, jerr := json.Marshal(Failure(NewAPIError(err, secerr.CodeAuthUnavailable, "req-2")))
	if jerr != nil {
		t.Fatal(jerr)
	}
	body := string(data)
	for _, secret := range []string{"evil.example", "203.0.113.9", "allowed set"} {
		if strings.Contains(body, secret) {
			t.Errorf("response %s leaks %q", body, secret)
		}
	}
	if !strings.Contains(body, `"code":"ORIGIN_REJECTED"`) || !strings.Contains(body, `"request_id":"req-2"`) {
		t.Errorf("response %s lacks code or request id", body)
	}
}
