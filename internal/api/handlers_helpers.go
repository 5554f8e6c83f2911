// Pinteya E-commerce - Enterprise Admin Security Pipeline
// Copyright 2026 The Pinteya E-commerce Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/SantiagoXOR/pinteya-ecommerce-sub017

package api

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/goccy/go-json"

	"github.com/SantiagoXOR/pinteya-ecommerce-sub017/internal/audit"
	"github.com/SantiagoXOR/pinteya-ecommerce-sub017/internal/auth"
	"github.com/SantiagoXOR/pinteya-ecommerce-sub017/internal/authz"
	"github.com/SantiagoXOR/pinteya-ecommerce-sub017/internal/logging"
	"github.com/SantiagoXOR/pinteya-ecommerce-sub017/internal/models"
	"github.com/SantiagoXOR/pinteya-ecommerce-sub017/internal/pipeline"
	"github.com/SantiagoXOR/pinteya-ecommerce-sub017/internal/secerr"
	"github.com/SantiagoXOR/pinteya-ecommerce-sub017/internal/validation"
)

const (
	maxBodyBytes = 1 << 20
	defaultLimit = 50
	maxLimit     = 500
)

var errBodyTooLarge = errors.New("request body too large")

// respondJSON sends a JSON envelope. Admin responses are never cached.
func respondJSON(w http.ResponseWriter, status int, response *models.APIResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")

	data, err := json.Marshal(response)
	if err != nil {
		logging.Error().Err(err).Msg("Failed to marshal JSON response")
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	w.WriteHeader(status)
	if _, err := w.Write(data); err != nil {
		logging.Error().Err(err).Msg("Failed to write JSON response")
	}
}

// respondData wraps data in a success envelope.
func respondData(w http.ResponseWriter, r *http.Request, status int, data interface{}, started time.Time) {
	resp := models.Success(data, logging.RequestIDFromContext(r.Context()))
	if !started.IsZero() {
		resp.Metadata.QueryTimeMS = time.Since(started).Milliseconds()
	}
	respondJSON(w, status, resp)
}

// respondError writes a security or data-layer failure. Typed errors keep
// their code; anything else is reported as the generic fallback.
func respondError(w http.ResponseWriter, r *http.Request, err error) {
	if _, ok := secerr.As(err); !ok {
		logging.Ctx(r.Context()).Error().Str("error", logging.SanitizeError(err.Error())).Msg("API error")
	}
	pipeline.WriteError(w, r, err)
}

// respondRequestError writes a 4xx that is not a security decision, such as a
// malformed body.
func respondRequestError(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	respondJSON(w, status, models.Failure(&models.APIError{
		Code:      code,
		Message:   message,
		RequestID: logging.RequestIDFromContext(r.Context()),
	}))
}

// decodeAndValidate decodes a bounded JSON body into dst and validates it.
// It writes the error response itself and reports whether dst is usable.
func decodeAndValidate(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes+1))
	if err == nil && len(body) > maxBodyBytes {
		err = errBodyTooLarge
	}
	if err != nil {
		respondRequestError(w, r, http.StatusBadRequest, ErrCodeBadRequest, "Request body could not be read")
		return false
	}

	dec := json.NewDecoder(bytes.NewReader(body))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		respondRequestError(w, r, http.StatusBadRequest, ErrCodeBadRequest, "Request body is not valid JSON")
		return false
	}

	if verr := validation.ValidateStruct(dst); verr != nil {
		respondRequestError(w, r, http.StatusBadRequest, ErrCodeValidationFailed, verr.Error())
		return false
	}
	return true
}

// pagination reads limit and offset query parameters.
func pagination(r *http.Request) (limit, offset int, err error) {
	limit = defaultLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		limit, err = strconv.Atoi(v)
		if err != nil || limit < 1 || limit > maxLimit {
			return 0, 0, fmt.Errorf("limit must be between 1 and %d", maxLimit)
		}
	}
	if v := r.URL.Query().Get("offset"); v != "" {
		offset, err = strconv.Atoi(v)
		if err != nil || offset < 0 {
			return 0, 0, errors.New("offset must be a non-negative integer")
		}
	}
	return limit, offset, nil
}

// authContext returns the context the pipeline attached. Routes are only
// reachable through Require, so a missing context is a wiring bug and fails
// closed.
func authContext(r *http.Request) (*authz.AuthContext, error) {
	ac, ok := authz.FromContext(r.Context())
	if !ok || ac == nil {
		return nil, secerr.New(secerr.CodeInsufficientPermissions, "handler reached without auth context")
	}
	return ac, nil
}

// sourceOf describes the caller for audit events.
func sourceOf(r *http.Request) audit.Source {
	return audit.Source{
		IP:        auth.RemoteIP(r),
		UserAgent: r.UserAgent(),
		Origin:    r.Header.Get("Origin"),
	}
}

// Row conversion. Values may come from the memory client (Go types) or
// from database/sql scans (int64, string, time.Time).

func rowString(v interface{}) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case []byte:
		return string(t)
	default:
		return fmt.Sprint(t)
	}
}

func rowInt64(v interface{}) int64 {
	switch t := v.(type) {
	case int:
		return int64(t)
	case int32:
		return int64(t)
	case int64:
		return t
	case float64:
		return int64(t)
	case string:
		n, _ := strconv.ParseInt(t, 10, 64)
		return n
	default:
		return 0
	}
}

func rowTime(v interface{}) time.Time {
	switch t := v.(type) {
	case time.Time:
		return t
	case string:
		parsed, _ := time.Parse(time.RFC3339Nano, t)
		return parsed
	default:
		return time.Time{}
	}
}
