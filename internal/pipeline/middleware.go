// Pinteya E-commerce - Enterprise Admin Security Pipeline
// Copyright 2026 The Pinteya E-commerce Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/SantiagoXOR/pinteya-ecommerce-sub017

package pipeline

import (
	"net/http"
	"strconv"

	"github.com/goccy/go-json"

	"github.com/SantiagoXOR/pinteya-ecommerce-sub017/internal/authz"
	"github.com/SantiagoXOR/pinteya-ecommerce-sub017/internal/logging"
	"github.com/SantiagoXOR/pinteya-ecommerce-sub017/internal/models"
	"github.com/SantiagoXOR/pinteya-ecommerce-sub017/internal/secerr"
)

// Require returns chi middleware that admits a request only once it reaches
// AUTHORIZED with every capability in required. The handler sees the
// AuthContext through authz.FromContext.
func (c *Composer) Require(required ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			st, ok := StateFromContext(r.Context())
			if !ok {
				st = newRequestState(r)
				r = r.WithContext(WithState(r.Context(), st))
			}

			res := c.run(r, st, required)
			setRateHeaders(w, st)
			if !res.Success {
				WriteError(w, r, res.Error)
				return
			}

			st.advance(StateDelegated)
			ctx := authz.WithContext(r.Context(), res.Context)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func setRateHeaders(w http.ResponseWriter, st *RequestState) {
	_, d, applied := st.RateDecision()
	if !applied || d.Limit == 0 {
		return
	}
	h := w.Header()
	h.Set("X-RateLimit-Limit", strconv.Itoa(d.Limit))
	h.Set("X-RateLimit-Remaining", strconv.Itoa(d.Remaining))
	if !d.ResetAt.IsZero() {
		h.Set("X-RateLimit-Reset", strconv.FormatInt(d.ResetAt.Unix(), 10))
	}
}

// WriteError writes err as a public error envelope. Internal reasons and
// details are never serialized.
func WriteError(w http.ResponseWriter, r *http.Request, err error) {
	apiErr := models.NewAPIError(err, secerr.CodeAuthUnavailable, logging.RequestIDFromContext(r.Context()))
	status := secerr.StatusFor(secerr.Code(apiErr.Code))

	if apiErr.RetryAfterMs > 0 {
		secs := (apiErr.RetryAfterMs + 999) / 1000
		w.Header().Set("Retry-After", strconv.FormatInt(secs, 10))
	}
	if status == http.StatusUnauthorized {
		w.Header().Set("WWW-Authenticate", `Bearer realm="admin"`)
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")

	data, jerr := json.Marshal(models.Failure(apiErr))
	if jerr != nil {
		logging.Error().Err(jerr).Msg("Failed to marshal error response")
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	w.WriteHeader(status)
	if _, werr := w.Write(data); werr != nil {
		logging.Debug().Err(werr).Msg("Failed to write error response")
	}
}
