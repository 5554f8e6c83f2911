// Pinteya E-commerce - Enterprise Admin Security Pipeline
// Copyright 2026 The Pinteya E-commerce Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/SantiagoXOR/pinteya-ecommerce-sub017

package models

import (
	"time"

	"github.com/SantiagoXOR/pinteya-ecommerce-sub017/internal/secerr"
)

// Response status values.
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// APIResponse is the envelope of every HTTP response.
//
// Example successful response:
//
//	{
//	  "status": "success",
//	  "data": {"products": [...]},
//	  "metadata": {"timestamp": "2026-03-01T12:00:00Z", "request_id": "6f1c..."}
//	}
//
// Example error response:
//
//	{
//	  "status": "error",
//	  "error": {
//	    "code": "RATE_LIMITED",
//	    "message": "Too many requests",
//	    "request_id": "6f1c...",
//	    "retry_after_ms": 4200
//	  },
//	  "metadata": {"timestamp": "2026-03-01T12:00:00Z", "request_id": "6f1c..."}
//	}
type APIResponse struct {
	Status   string      `json:"status"`
	Data     interface{} `json:"data,omitempty"`
	Metadata Metadata    `json:"metadata"`
	Error    *APIError   `json:"error,omitempty"`
}

// Metadata is attached to every response.
type Metadata struct {
	Timestamp time.Time `json:"timestamp"`
	RequestID string    `json:"request_id,omitempty"`
	// QueryTimeMS is the time spent in the data store, if any.
	QueryTimeMS int64 `json:"query_time_ms,omitempty"`
}

// APIError is the public form of an error. It never carries internal
// reasons, causes or details.
type APIError struct {
	Code         string `json:"code"`
	Message      string `json:"message"`
	RequestID    string `json:"request_id,omitempty"`
	RetryAfterMs int64  `json:"retry_after_ms,omitempty"`
}

// NewAPIError builds the public form of err. Untyped errors are reported
// with the generic message of the fallback code.
func NewAPIError(err error, fallback secerr.Code, requestID string) *APIError {
	se, ok := secerr.As(err)
	if !ok {
		return &APIError{Code: string(fallback), Message: secerr.PublicMessage(fallback), RequestID: requestID}
	}
	out := &APIError{
		Code:      string(se.Code),
		Message:   se.PublicMessage(),
		RequestID: requestID,
	}
	if se.RetryAfter > 0 {
		out.RetryAfterMs = se.RetryAfter.Milliseconds()
	}
	return out
}

// Success wraps data in a success envelope.
func Success(data interface{}, requestID string) *APIResponse {
	return &APIResponse{
		Status:   StatusSuccess,
		Data:     data,
		Metadata: Metadata{Timestamp: time.Now().UTC(), RequestID: requestID},
	}
}

// Failure wraps an APIError in an error envelope.
func Failure(apiErr *APIError) *APIResponse {
	return &APIResponse{
		Status:   StatusError,
		Error:    apiErr,
		Metadata: Metadata{Timestamp: time.Now().UTC(), RequestID: apiErr.RequestID},
	}
}
