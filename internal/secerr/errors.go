// Pinteya E-commerce - Enterprise Admin Security Pipeline
// Copyright 2026 The Pinteya E-commerce Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/SantiagoXOR/pinteya-ecommerce-sub017

// Package secerr defines the typed error taxonomy shared by every stage of the
// security pipeline.
//
// Every failure that crosses a component boundary is a *Error carrying a
// machine-readable Code. The Code determines the HTTP status and the public
// message returned to the caller. The Reason and Detail fields are internal:
// they are written to the audit trail and never serialized to clients.
//
// # Codes
//
//	CREDENTIAL_INVALID        401  expired, malformed or badly signed credential
//	ORIGIN_REJECTED           403  unsafe request from an origin outside the allowed set
//	CSRF_TOKEN_MISMATCH       403  anti-forgery token missing or not bound to the session
//	RATE_LIMITED              429  tier budget exhausted; RetryAfter is populated
//	INSUFFICIENT_PERMISSIONS  403  a required capability is missing
//	RLS_FILTER_UNAVAILABLE    500  row-level filters could not be constructed (fail closed)
//	DATA_OPERATION_FAILED     500  the data store failed an operation that ran under a filter
//	AUTH_UNAVAILABLE          503  identity provider or audit store unreachable in time
//
// # Usage
//
//	err := secerr.New(secerr.CodeInsufficientPermissions, "missing capability").
//	    WithDetail("capability", "products_write")
//
//	var se *secerr.Error
//	if errors.As(err, &se) {
//	    w.WriteHeader(se.HTTPStatus())
//	}
package secerr

import (
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"time"
)

// Code is a machine-readable error code.
type Code string

const (
	CodeCredentialInvalid       Code = "CREDENTIAL_INVALID"
	CodeOriginRejected          Code = "ORIGIN_REJECTED"
	CodeCSRFTokenMismatch       Code = "CSRF_TOKEN_MISMATCH"
	CodeRateLimited             Code = "RATE_LIMITED"
	CodeInsufficientPermissions Code = "INSUFFICIENT_PERMISSIONS"
	CodeRLSFilterUnavailable    Code = "RLS_FILTER_UNAVAILABLE"
	CodeDataOperationFailed     Code = "DATA_OPERATION_FAILED"
	CodeAuthUnavailable         Code = "AUTH_UNAVAILABLE"
)

// publicMessages are the only human-readable strings a client ever sees.
var publicMessages = map[Code]string{
	CodeCredentialInvalid:       "Authentication required",
	CodeOriginRejected:          "Request origin not allowed",
	CodeCSRFTokenMismatch:       "Request origin not allowed",
	CodeRateLimited:             "Too many requests",
	CodeInsufficientPermissions: "Insufficient permissions",
	CodeRLSFilterUnavailable:    "Unable to process request",
	CodeDataOperationFailed:     "Unable to process request",
	CodeAuthUnavailable:         "Authentication service unavailable",
}

// statuses maps each code to its recommended HTTP status.
var statuses = map[Code]int{
	CodeCredentialInvalid:       http.StatusUnauthorized,
	CodeOriginRejected:          http.StatusForbidden,
	CodeCSRFTokenMismatch:       http.StatusForbidden,
	CodeRateLimited:             http.StatusTooManyRequests,
	CodeInsufficientPermissions: http.StatusForbidden,
	CodeRLSFilterUnavailable:    http.StatusInternalServerError,
	CodeDataOperationFailed:     http.StatusInternalServerError,
	CodeAuthUnavailable:         http.StatusServiceUnavailable,
}

// Error is a typed security failure.
type Error struct {
	// Code classifies the failure.
	Code Code

	// Reason is an internal, human-readable explanation (audit only).
	Reason string

	// Details holds internal key/value context such as the missing capability
	// or the offending origin (audit only).
	Details map[string]string

	// RetryAfter is set for CodeRateLimited.
	RetryAfter time.Duration

	// Cause is the wrapped component error, if any.
	Cause error
}

// New creates a typed error with an internal reason.
func New(code Code, reason string) *Error {
	return &Error{Code: code, Reason: reason}
}

// Wrap creates a typed error wrapping a component error.
func Wrap(code Code, reason string, cause error) *Error {
	return &Error{Code: code, Reason: reason, Cause: cause}
}

// WithDetail returns the error with an additional internal detail.
// The receiver is mutated and returned to allow chaining at construction time.
func (e *Error) WithDetail(key, value string) *Error {
	if e.Details == nil {
		e.Details = make(map[string]string, 2)
	}
	e.Details[key] = value
	return e
}

// WithRetryAfter sets the retry hint for rate limited errors.
func (e *Error) WithRetryAfter(d time.Duration) *Error {
	e.RetryAfter = d
	return e
}

// Error implements the error interface. The string is internal; use
// PublicMessage for anything sent to a client.
func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(string(e.Code))
	if e.Reason != "" {
		b.WriteString(": ")
		b.WriteString(e.Reason)
	}
	if len(e.Details) > 0 {
		keys := make([]string, 0, len(e.Details))
		for k := range e.Details {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		b.WriteString(" (")
		for i, k := range keys {
			if i > 0 {
				b.WriteString(", ")
			}
			fmt.Fprintf(&b, "%s=%s", k, e.Details[k])
		}
		b.WriteString(")")
	}
	if e.Cause != nil {
		b.WriteString(": ")
		b.WriteString(e.Cause.Error())
	}
	return b.String()
}

// Unwrap supports errors.Is / errors.As on the cause.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is matches another *Error by code so that sentinel comparisons work:
//
//	errors.Is(err, secerr.New(secerr.CodeRateLimited, ""))
func (e *Error) Is(target error) bool {
	var t *Error
	if errors.As(target, &t) {
		return t.Code == e.Code
	}
	return false
}

// HTTPStatus returns the recommended HTTP status for the error.
func (e *Error) HTTPStatus() int {
	return StatusFor(e.Code)
}

// PublicMessage returns the non-leaking message for clients.
func (e *Error) PublicMessage() string {
	return PublicMessage(e.Code)
}

// Detail returns an internal detail value.
func (e *Error) Detail(key string) string {
	return e.Details[key]
}

// StatusFor returns the HTTP status for a code. Unknown codes fail closed to 500.
func StatusFor(code Code) int {
	if s, ok := statuses[code]; ok {
		return s
	}
	return http.StatusInternalServerError
}

// PublicMessage returns the client-facing message for a code.
func PublicMessage(code Code) string {
	if m, ok := publicMessages[code]; ok {
		return m
	}
	return "Unable to process request"
}

// CodeOf extracts the Code from an error chain. Untyped errors report
// CodeAuthUnavailable: an unknown failure is never treated as success.
func CodeOf(err error) Code {
	var se *Error
	if errors.As(err, &se) {
		return se.Code
	}
	return CodeAuthUnavailable
}

// As is a convenience wrapper around errors.As for *Error.
func As(err error) (*Error, bool) {
	var se *Error
	if errors.As(err, &se) {
		return se, true
	}
	return nil, false
}
