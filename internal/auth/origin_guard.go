// Pinteya E-commerce - Enterprise Admin Security Pipeline
// Copyright 2026 The Pinteya E-commerce Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/SantiagoXOR/pinteya-ecommerce-sub017

package auth

import (
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"

	"golang.org/x/crypto/blake2b"

	"github.com/SantiagoXOR/pinteya-ecommerce-sub017/internal/secerr"
)

// CSRFHeaderName is the header carrying the double-submit token.
const CSRFHeaderName = "X-CSRF-Token"

// OriginConfig configures an OriginGuard.
type OriginConfig struct {
	// AllowedOrigins are the primary origins, e.g. https://admin.pinteya.example.
	AllowedOrigins []string
	// StagingOrigins are additional known deployment origins.
	StagingOrigins []string
	// ToolUserAgents are user agent prefixes accepted outside production.
	ToolUserAgents []string
	// CSRFSecret binds anti-forgery tokens to sessions.
	CSRFSecret []byte
	// Production disables every relaxation.
	Production bool
	// RelaxedLocal accepts loopback requests without an origin.
	RelaxedLocal bool
}

// OriginGuard validates that unsafe requests come from an approved origin or
// carry the anti-forgery token bound to the caller's session.
type OriginGuard struct {
	origins map[string]struct{}
	toolUAs []string
	tokens  *CSRFTokens
	relaxed bool
}

// NewOriginGuard builds the allowed origin set from cfg.
func NewOriginGuard(cfg OriginConfig) (*OriginGuard, error) {
	tokens, err := NewCSRFTokens(cfg.CSRFSecret)
	if err != nil {
		return nil, err
	}

	g := &OriginGuard{
		origins: make(map[string]struct{}, len(cfg.AllowedOrigins)+len(cfg.StagingOrigins)),
		tokens:  tokens,
		relaxed: relaxedBuildAllowed && !cfg.Production && cfg.RelaxedLocal,
	}
	for _, o := range append(append([]string{}, cfg.AllowedOrigins...), cfg.StagingOrigins...) {
		norm, ok := normalizeOrigin(o)
		if !ok {
			return nil, fmt.Errorf("invalid allowed origin %q", o)
		}
		g.origins[norm] = struct{}{}
	}
	if !cfg.Production {
		g.toolUAs = append(g.toolUAs, cfg.ToolUserAgents...)
	}
	return g, nil
}

// Tokens returns the session-bound token issuer.
func (g *OriginGuard) Tokens() *CSRFTokens {
	return g.tokens
}

// RelaxedLocal reports whether the local relaxation is active.
func (g *OriginGuard) RelaxedLocal() bool {
	return g.relaxed
}

// Check validates r. Safe methods always pass. The returned error is a
// *secerr.Error with CodeOriginRejected or CodeCSRFTokenMismatch whose
// details carry the offending origin and client IP.
func (g *OriginGuard) Check(r *http.Request, sessionID string) error {
	if !IsUnsafeMethod(r.Method) {
		return nil
	}

	origin := requestOrigin(r)
	if origin != "" {
		if _, ok := g.origins[origin]; ok {
			return nil
		}
	}

	token := r.Header.Get(CSRFHeaderName)
	if token != "" && sessionID != "" && g.tokens.Verify(sessionID, token) {
		return nil
	}

	if origin == "" && g.isTool(r.UserAgent()) {
		return nil
	}
	if g.relaxed && isLoopbackHost(r.Host) {
		return nil
	}

	raw := r.Header.Get("Origin")
	if raw == "" {
		raw = r.Header.Get("Referer")
	}

	var se *secerr.Error
	switch {
	case token != "":
		se = secerr.Wrap(secerr.CodeCSRFTokenMismatch, "anti-forgery token not bound to session", ErrCSRFTokenInvalid)
	case origin == "":
		se = secerr.Wrap(secerr.CodeOriginRejected, "no origin or referer on unsafe request", ErrOriginMissing)
	default:
		se = secerr.Wrap(secerr.CodeOriginRejected, "origin outside allowed set", ErrOriginNotAllowed)
	}
	return se.WithDetail("origin", raw).WithDetail("ip", RemoteIP(r))
}

func (g *OriginGuard) isTool(ua string) bool {
	for _, prefix := range g.toolUAs {
		if prefix != "" && strings.HasPrefix(ua, prefix) {
			return true
		}
	}
	return false
}

// IsUnsafeMethod reports whether method changes state.
func IsUnsafeMethod(method string) bool {
	switch method {
	case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
		return true
	default:
		return false
	}
}

// requestOrigin returns the normalized Origin, or the origin of the Referer.
func requestOrigin(r *http.Request) string {
	if o := r.Header.Get("Origin"); o != "" && o != "null" {
		norm, _ := normalizeOrigin(o)
		return norm
	}
	if ref := r.Header.Get("Referer"); ref != "" {
		norm, _ := normalizeOrigin(ref)
		return norm
	}
	return ""
}

// normalizeOrigin reduces a URL to lowercase scheme://host[:port].
func normalizeOrigin(raw string) (string, bool) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return "", false
	}
	host := strings.ToLower(u.Host)
	if u.Scheme == "https" {
		host = strings.TrimSuffix(host, ":443")
	} else {
		host = strings.TrimSuffix(host, ":80")
	}
	return u.Scheme + "://" + host, true
}

func isLoopbackHost(hostport string) bool {
	host := hostport
	if h, _, err := net.SplitHostPort(hostport); err == nil {
		host = h
	}
	if strings.EqualFold(host, "localhost") {
		return true
	}
	ip := net.ParseIP(strings.Trim(host, "[]"))
	return ip != nil && ip.IsLoopback()
}

// RemoteIP returns the client address without port.
func RemoteIP(r *http.Request) string {
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}

// CSRFTokens issues and verifies anti-forgery tokens bound to a session.
// A token is the keyed BLAKE2b-256 MAC of the session ID, so it needs no
// server-side storage and cannot be replayed across sessions.
type CSRFTokens struct {
	key [32]byte
}

// NewCSRFTokens derives the MAC key from secret.
func NewCSRFTokens(secret []byte) (*CSRFTokens, error) {
	if len(secret) < 32 {
		return nil, errors.New("CSRF secret must be at least 32 bytes")
	}
	return &CSRFTokens{key: blake2b.Sum256(secret)}, nil
}

// Issue returns the token for sessionID.
func (t *CSRFTokens) Issue(sessionID string) string {
	return base64.RawURLEncoding.EncodeToString(t.mac(sessionID))
}

// Verify compares token with the session's token in constant time.
func (t *CSRFTokens) Verify(sessionID, token string) bool {
	got, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return false
	}
	return subtle.ConstantTimeCompare(got, t.mac(sessionID)) == 1
}

func (t *CSRFTokens) mac(sessionID string) []byte {
	h, err := blake2b.New256(t.key[:])
	if err != nil {
		// Unreachable: the key is always 32 bytes.
		panic(err)
	}
	h.Write([]byte("csrf:"))
	h.Write([]byte(sessionID))
	return h.Sum(nil)
}
