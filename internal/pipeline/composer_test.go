// Pinteya E-commerce - Enterprise Admin Security Pipeline
// Copyright 2026 The Pinteya E-commerce Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/SantiagoXOR/pinteya-ecommerce-sub017

package pipeline

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/SantiagoXOR/pinteya-ecommerce-sub017/internal/audit"
	"github.com/SantiagoXOR/pinteya-ecommerce-sub017/internal/auth"
	"github.com/SantiagoXOR/pinteya-ecommerce-sub017/internal/authz"
	"github.com/SantiagoXOR/pinteya-ecommerce-sub017/internal/cache"
	"github.com/SantiagoXOR/pinteya-ecommerce-sub017/internal/identity"
	"github.com/SantiagoXOR/pinteya-ecommerce-sub017/internal/ratelimit"
	"github.com/SantiagoXOR/pinteya-ecommerce-sub017/internal/rls"
	"github.com/SantiagoXOR/pinteya-ecommerce-sub017/internal/secerr"
)

// =====================================================
// Fixture
// =====================================================

const (
	testIssuer    = "https://auth.pinteya.test"
	testAudience  = "pinteya-admin"
	testKeyID     = "k1"
	allowedOrigin = "https://admin.pinteya.com"
	productsPath  = "/api/v1/admin/products"
)

var (
	testSecret = []byte("0123456789abcdef0123456789abcdef")
	csrfSecret = []byte("fedcba9876543210fedcba9876543210")
)

// recordingAuditor keeps every event in memory.
type recordingAuditor struct {
	mu     sync.Mutex
	events []*audit.Event
}

func (a *recordingAuditor) Record(_ context.Context, e *audit.Event) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.events = append(a.events, e)
	return nil
}

func (a *recordingAuditor) ofType(t audit.EventType) []*audit.Event {
	a.mu.Lock()
	defer a.mu.Unlock()
	var out []*audit.Event
	for _, e := range a.events {
		if e.Type == t {
			out = append(out, e)
		}
	}
	return out
}

func (a *recordingAuditor) len() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.events)
}

type fixtureOptions struct {
	adminLimit ratelimit.TierLimit
	provider   func(*identity.StaticProvider) identity.Provider
	auditor    Auditor
}

type fixture struct {
	composer   *Composer
	auditor    *recordingAuditor
	identities *identity.StaticProvider
}

func defaultIdentities() []identity.Identity {
	return []identity.Identity{
		{ID: "u-support", IsActive: true, Role: "support", TenantID: "t1"},
		{ID: "u1", IsActive: true, Role: "customer", TenantID: "t1"},
		{ID: "u2", IsActive: true, Role: "customer", TenantID: "t1"},
		{ID: "u-admin", IsActive: true, Role: "admin", TenantID: "t1"},
		{ID: "u-inactive", IsActive: false, Role: "admin", TenantID: "t1"},
	}
}

func newFixture(t *testing.T, opts fixtureOptions) *fixture {
	t.Helper()

	keys := auth.NewKeySet(map[string][]byte{testKeyID: testSecret}, nil)
	validator, err := auth.NewTokenValidator(keys, auth.ValidatorConfig{
		Issuer:    testIssuer,
		Audience:  testAudience,
		ClockSkew: 30 * time.Second,
	})
	if err != nil {
		t.Fatalf("validator: %v", err)
	}

	origin, err := auth.NewOriginGuard(auth.OriginConfig{
		AllowedOrigins: []string{allowedOrigin},
		CSRFSecret:     csrfSecret,
		Production:     true,
	})
	if err != nil {
		t.Fatalf("origin guard: %v", err)
	}

	admin := opts.adminLimit
	if admin.Requests == 0 {
		admin = ratelimit.TierLimit{Requests: 10, Window: 10 * time.Second}
	}
	tiers, err := ratelimit.NewTiers(ratelimit.NewSlidingWindow(), map[ratelimit.Tier]ratelimit.TierLimit{
		ratelimit.TierAuth:          {Requests: 5, Window: time.Minute},
		ratelimit.TierAdmin:         admin,
		ratelimit.TierAdminMutation: admin,
	})
	if err != nil {
		t.Fatalf("tiers: %v", err)
	}

	enforcer, err := authz.NewEnforcer(nil)
	if err != nil {
		t.Fatalf("enforcer: %v", err)
	}
	evaluator := authz.NewEvaluator(enforcer, authz.NewAnomalyTracker(time.Minute, 1000))

	static := identity.NewStaticProvider(defaultIdentities()...)
	var provider identity.Provider = static
	if opts.provider != nil {
		provider = opts.provider(static)
	}

	contexts, err := cache.New[*authz.AuthContext](cache.NewLocalVersionStore(), cache.Config{TTL: 10 * time.Second})
	if err != nil {
		t.Fatalf("cache: %v", err)
	}

	rec := &recordingAuditor{}
	var auditor Auditor = rec
	if opts.auditor != nil {
		auditor = opts.auditor
	}

	c, err := NewComposer(Deps{
		Validator:  validator,
		Origin:     origin,
		Tiers:      tiers,
		Evaluator:  evaluator,
		Identities: provider,
		Contexts:   contexts,
		Auditor:    auditor,
	}, DefaultConfig())
	if err != nil {
		t.Fatalf("composer: %v", err)
	}
	return &fixture{composer: c, auditor: rec, identities: static}
}

func signToken(t *testing.T, sub string, mutate ...func(*auth.Claims)) string {
	t.Helper()
	now := time.Now()
	claims := &auth.Claims{
		SessionID: "sess-" + sub,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   sub,
			Issuer:    testIssuer,
			Audience:  jwt.ClaimStrings{testAudience},
			IssuedAt:  jwt.NewNumericDate(now.Add(-time.Minute)),
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
		},
	}
	for _, m := range mutate {
		m(claims)
	}
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tok.Header["kid"] = testKeyID
	s, err := tok.SignedString(testSecret)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	return s
}

func newRequest(method, path, token, origin string) *http.Request {
	r := httptest.NewRequest(method, path, nil)
	if token != "" {
		r.Header.Set("Authorization", "Bearer "+token)
	}
	if origin != "" {
		r.Header.Set("Origin", origin)
	}
	return r
}

// =====================================================
// End-to-end scenarios
// =====================================================

func TestRequireAuth_SupportReadsProducts(t *testing.T) {
	f := newFixture(t, fixtureOptions{})
	r := newRequest(http.MethodGet, productsPath, signToken(t, "u-support"), "")

	res := f.composer.RequireAuth(r, authz.ProductsRead)
	if !res.Success {
		t.Fatalf("expected success, got %v", res.Error)
	}
	if res.Context == nil {
		t.Fatal("expected an auth context")
	}
	if got := res.Context.SecurityLevel().String(); got != "medium" {
		t.Errorf("security level = %q, want medium", got)
	}
	if res.Context.UserID() != "u-support" || res.Context.TenantID() != "t1" {
		t.Errorf("unexpected context identity %s/%s", res.Context.UserID(), res.Context.TenantID())
	}
	if res.Context.SessionID() != "sess-u-support" {
		t.Errorf("session = %q", res.Context.SessionID())
	}
	if res.State != StateAuthorized {
		t.Errorf("state = %v", res.State)
	}
	if n := len(f.auditor.ofType(audit.EventTypeAuthSuccess)); n != 1 {
		t.Errorf("auth_success events = %d, want 1", n)
	}
}

func TestRequireAuth_SupportCannotWriteProducts(t *testing.T) {
	f := newFixture(t, fixtureOptions{})
	r := newRequest(http.MethodPost, productsPath, signToken(t, "u-support"), allowedOrigin)

	res := f.composer.RequireAuth(r, authz.ProductsWrite)
	if res.Success {
		t.Fatal("expected denial")
	}
	if res.Code != secerr.CodeInsufficientPermissions || res.HTTPStatus != http.StatusForbidden {
		t.Fatalf("got %s/%d, want INSUFFICIENT_PERMISSIONS/403", res.Code, res.HTTPStatus)
	}

	denied := f.auditor.ofType(audit.EventTypePermissionDenied)
	if len(denied) != 1 {
		t.Fatalf("permission_denied events = %d, want exactly 1", len(denied))
	}
	if got := denied[0].Metadata["capability"]; got != authz.ProductsWrite {
		t.Errorf("capability = %q, want %q", got, authz.ProductsWrite)
	}
	if denied[0].ActorID != "u-support" || denied[0].Role != "support" {
		t.Errorf("actor = %s/%s", denied[0].ActorID, denied[0].Role)
	}
	if f.auditor.len() != 1 {
		t.Errorf("total events = %d, want 1", f.auditor.len())
	}
}

func TestRequireAuth_EleventhRequestRateLimited(t *testing.T) {
	f := newFixture(t, fixtureOptions{})
	token := signToken(t, "u-support")

	for i := 1; i <= 10; i++ {
		res := f.composer.RequireAuth(newRequest(http.MethodGet, productsPath, token, ""), authz.ProductsRead)
		if !res.Success {
			t.Fatalf("request %d: unexpected rejection %v", i, res.Error)
		}
	}

	res := f.composer.RequireAuth(newRequest(http.MethodGet, productsPath, token, ""), authz.ProductsRead)
	if res.Success {
		t.Fatal("11th request should be rate limited")
	}
	if res.Code != secerr.CodeRateLimited || res.HTTPStatus != http.StatusTooManyRequests {
		t.Fatalf("got %s/%d, want RATE_LIMITED/429", res.Code, res.HTTPStatus)
	}
	if res.RetryAfter <= 0 || res.RetryAfter > 10*time.Second {
		t.Errorf("retry after = %v, want within (0, 10s]", res.RetryAfter)
	}

	limited := f.auditor.ofType(audit.EventTypeRateLimited)
	if len(limited) != 1 {
		t.Fatalf("rate_limited events = %d, want 1", len(limited))
	}
	if limited[0].Metadata["tier"] != string(ratelimit.TierAdmin) {
		t.Errorf("tier = %q", limited[0].Metadata["tier"])
	}
}

func TestRequireAuth_ForeignOriginRejected(t *testing.T) {
	f := newFixture(t, fixtureOptions{})
	r := newRequest(http.MethodPost, productsPath, signToken(t, "u-admin"), "https://evil.example")

	res := f.composer.RequireAuth(r, authz.ProductsWrite)
	if res.Success {
		t.Fatal("expected origin rejection")
	}
	if res.Code != secerr.CodeOriginRejected || res.HTTPStatus != http.StatusForbidden {
		t.Fatalf("got %s/%d, want ORIGIN_REJECTED/403", res.Code, res.HTTPStatus)
	}

	events := f.auditor.ofType(audit.EventTypeCSRFRejected)
	if len(events) != 1 {
		t.Fatalf("csrf_rejected events = %d, want 1", len(events))
	}
	if events[0].Source.Origin != "https://evil.example" {
		t.Errorf("origin = %q", events[0].Source.Origin)
	}
	if events[0].Metadata["origin"] != "https://evil.example" {
		t.Errorf("metadata origin = %q", events[0].Metadata["origin"])
	}
}

func TestRequireAuth_CustomerOrdersScopedToOwner(t *testing.T) {
	f := newFixture(t, fixtureOptions{})
	r := newRequest(http.MethodGet, "/api/v1/admin/orders", signToken(t, "u1"), "")

	res := f.composer.RequireAuth(r, authz.OrdersRead)
	if !res.Success {
		t.Fatalf("expected success, got %v", res.Error)
	}

	filter, err := rls.BuildFilters(res.Context, rls.ResourceOrders)
	if err != nil {
		t.Fatalf("build filters: %v", err)
	}
	if !filter.Has("owner_id", "u1") {
		t.Fatalf("filter %s lacks owner_id = u1", filter)
	}

	data := rls.NewMemoryClient()
	data.Seed("orders",
		rls.Row{"id": "o1", "tenant_id": "t1", "owner_id": "u1"},
		rls.Row{"id": "o2", "tenant_id": "t1", "owner_id": "u2"},
	)
	exec := rls.NewExecutor(nil, data, f.auditor)
	rows, err := rls.Execute(context.Background(), exec, res.Context, rls.ResourceOrders,
		func(ctx context.Context, c *rls.ScopedClient) ([]rls.Row, error) {
			return c.Select(ctx, rls.Query{})
		}, rls.DefaultOptions())
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if len(rows) != 1 || rows[0]["owner_id"] != "u1" {
		t.Fatalf("rows = %v, want only u1's order", rows)
	}
}

// =====================================================
// Token stage
// =====================================================

func TestRequireAuth_CredentialFailures(t *testing.T) {
	tests := []struct {
		name  string
		token func(t *testing.T) string
		kind  string
	}{
		{"missing", func(*testing.T) string { return "" }, "MALFORMED"},
		{"garbage", func(*testing.T) string { return "not-a-token" }, "MALFORMED"},
		{"expired", func(t *testing.T) string {
			return signToken(t, "u-support", func(c *auth.Claims) {
				c.ExpiresAt = jwt.NewNumericDate(time.Now().Add(-time.Hour))
			})
		}, "EXPIRED"},
		{"wrong audience", func(t *testing.T) string {
			return signToken(t, "u-support", func(c *auth.Claims) {
				c.Audience = jwt.ClaimStrings{"storefront"}
			})
		}, "BAD_AUDIENCE"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, fixtureOptions{})
			res := f.composer.RequireAuth(newRequest(http.MethodGet, productsPath, tt.token(t), ""), authz.ProductsRead)
			if res.Success {
				t.Fatal("expected rejection")
			}
			if res.Code != secerr.CodeCredentialInvalid || res.HTTPStatus != http.StatusUnauthorized {
				t.Fatalf("got %s/%d, want CREDENTIAL_INVALID/401", res.Code, res.HTTPStatus)
			}
			failures := f.auditor.ofType(audit.EventTypeAuthFailure)
			if len(failures) != 1 {
				t.Fatalf("auth_failure events = %d, want 1", len(failures))
			}
			if failures[0].Metadata["kind"] != tt.kind {
				t.Errorf("kind = %q, want %q", failures[0].Metadata["kind"], tt.kind)
			}
		})
	}
}

func TestRequireAuth_UnknownAndInactiveIdentities(t *testing.T) {
	for _, sub := range []string{"u-inactive", "u-nobody"} {
		t.Run(sub, func(t *testing.T) {
			f := newFixture(t, fixtureOptions{})
			res := f.composer.RequireAuth(newRequest(http.MethodGet, productsPath, signToken(t, sub), ""), authz.ProductsRead)
			if res.Code != secerr.CodeCredentialInvalid {
				t.Fatalf("code = %s, want CREDENTIAL_INVALID", res.Code)
			}
			if res.Context != nil {
				t.Error("rejected result must not carry a context")
			}
		})
	}
}

// =====================================================
// Identity provider failures
// =====================================================

func TestRequireAuth_SlowIdentityProviderUnavailable(t *testing.T) {
	f := newFixture(t, fixtureOptions{
		provider: func(s *identity.StaticProvider) identity.Provider {
			s.SetDelay(time.Second)
			return identity.NewGuardedProvider(s, identity.GuardConfig{Timeout: 50 * time.Millisecond, MaxFailures: 100})
		},
	})

	start := time.Now()
	res := f.composer.RequireAuth(newRequest(http.MethodGet, productsPath, signToken(t, "u-support"), ""), authz.ProductsRead)
	if res.Code != secerr.CodeAuthUnavailable || res.HTTPStatus != http.StatusServiceUnavailable {
		t.Fatalf("got %s/%d, want AUTH_UNAVAILABLE/503", res.Code, res.HTTPStatus)
	}
	if elapsed := time.Since(start); elapsed > 500*time.Millisecond {
		t.Errorf("lookup not bounded by timeout: %v", elapsed)
	}

	failures := f.auditor.ofType(audit.EventTypeAuthFailure)
	if len(failures) != 1 || failures[0].Severity != audit.SeverityError {
		t.Fatalf("expected one error-severity auth_failure, got %v", failures)
	}
}

type failingProvider struct{}

func (failingProvider) Lookup(context.Context, string) (*identity.Identity, error) {
	return nil, errors.New("connection refused")
}

func TestRequireAuth_ProviderErrorsDoNotLeak(t *testing.T) {
	f := newFixture(t, fixtureOptions{
		provider: func(*identity.StaticProvider) identity.Provider { return failingProvider{} },
	})
	res := f.composer.RequireAuth(newRequest(http.MethodGet, productsPath, signToken(t, "u-support"), ""), authz.ProductsRead)
	if res.Code != secerr.CodeAuthUnavailable {
		t.Fatalf("code = %s, want AUTH_UNAVAILABLE", res.Code)
	}
	if msg := res.Error.PublicMessage(); msg == "" || msg == "connection refused" {
		t.Errorf("public message %q leaks or is empty", msg)
	}
}

// =====================================================
// Anomalies and security level
// =====================================================

func TestRequireAuth_AnomalyThresholdRecorded(t *testing.T) {
	f := newFixture(t, fixtureOptions{})

	for i := 0; i < 3; i++ {
		f.composer.RequireAuth(newRequest(http.MethodGet, productsPath, "bogus", ""), authz.ProductsRead)
	}

	if n := len(f.auditor.ofType(audit.EventTypeAuthFailure)); n != 3 {
		t.Errorf("auth_failure events = %d, want 3", n)
	}
	anomalies := f.auditor.ofType(audit.EventTypeAnomaly)
	if len(anomalies) != 1 {
		t.Fatalf("anomaly events = %d, want 1", len(anomalies))
	}
	if anomalies[0].Metadata["identity"] != "ip:192.0.2.1" || anomalies[0].Metadata["count"] != "3" {
		t.Errorf("unexpected anomaly metadata %v", anomalies[0].Metadata)
	}
}

func TestRequireAuth_RateLimitingRaisesSecurityLevel(t *testing.T) {
	f := newFixture(t, fixtureOptions{adminLimit: ratelimit.TierLimit{Requests: 1, Window: 300 * time.Millisecond}})
	token := signToken(t, "u-support")

	// One allowed request then three rate limited ones.
	for i := 0; i < 4; i++ {
		f.composer.RequireAuth(newRequest(http.MethodGet, productsPath, token, ""), authz.ProductsRead)
	}
	if n := len(f.auditor.ofType(audit.EventTypeAnomaly)); n != 1 {
		t.Fatalf("anomaly events = %d, want 1", n)
	}

	time.Sleep(400 * time.Millisecond)
	res := f.composer.RequireAuth(newRequest(http.MethodGet, productsPath, token, ""), authz.ProductsRead)
	if !res.Success {
		t.Fatalf("expected success after window, got %v", res.Error)
	}
	if got := res.Context.SecurityLevel().String(); got != "high" {
		t.Errorf("security level = %q, want high", got)
	}
}

// =====================================================
// Cache coherence and elevation
// =====================================================

func TestRequireAuth_InvalidateAppliesRevocation(t *testing.T) {
	f := newFixture(t, fixtureOptions{})
	token := signToken(t, "u-support")
	call := func() Result {
		return f.composer.RequireAuth(newRequest(http.MethodGet, productsPath, token, ""), authz.ProductsRead)
	}

	if res := call(); !res.Success {
		t.Fatalf("warm-up: %v", res.Error)
	}
	f.identities.Put(identity.Identity{
		ID: "u-support", IsActive: true, Role: "support", TenantID: "t1",
		Revocations: []string{authz.ProductsRead},
	})
	if res := call(); !res.Success {
		t.Fatalf("cached context should still allow: %v", res.Error)
	}

	if err := f.composer.Invalidate(context.Background(), "u-support"); err != nil {
		t.Fatalf("invalidate: %v", err)
	}
	res := call()
	if res.Code != secerr.CodeInsufficientPermissions {
		t.Fatalf("after invalidate code = %s, want INSUFFICIENT_PERMISSIONS", res.Code)
	}

	stats := f.composer.CacheStats()
	if stats.Hits < 1 || stats.Misses < 2 {
		t.Errorf("unexpected cache stats %+v", stats)
	}
}

func TestRequireAuth_RevokedSessionRejected(t *testing.T) {
	f := newFixture(t, fixtureOptions{})
	before := signToken(t, "u-support")
	call := func(token string) Result {
		return f.composer.RequireAuth(newRequest(http.MethodGet, productsPath, token, ""), authz.ProductsRead)
	}

	if res := call(before); !res.Success {
		t.Fatalf("warm-up: %v", res.Error)
	}

	cutoff := time.Now().Add(-10 * time.Second)
	if err := f.composer.RevokeSessions(context.Background(), "u-support", cutoff); err != nil {
		t.Fatalf("RevokeSessions: %v", err)
	}

	res := call(before)
	if res.Success {
		t.Fatal("token issued before logout-all still authenticates")
	}
	if res.Code != secerr.CodeCredentialInvalid || res.HTTPStatus != http.StatusUnauthorized {
		t.Fatalf("got %s/%d, want CREDENTIAL_INVALID/401", res.Code, res.HTTPStatus)
	}
	if kind := res.Error.Detail("kind"); kind != string(auth.KindRevoked) {
		t.Errorf("kind = %q, want %q", kind, auth.KindRevoked)
	}

	failures := f.auditor.ofType(audit.EventTypeAuthFailure)
	if len(failures) != 1 {
		t.Fatalf("auth_failure events = %d, want 1", len(failures))
	}
	if failures[0].ActorID != "u-support" || failures[0].Metadata["kind"] != string(auth.KindRevoked) {
		t.Errorf("unexpected event actor=%q kind=%q", failures[0].ActorID, failures[0].Metadata["kind"])
	}

	// A credential issued after the cutoff is accepted.
	after := signToken(t, "u-support", func(c *auth.Claims) {
		c.IssuedAt = jwt.NewNumericDate(time.Now())
	})
	if res := call(after); !res.Success {
		t.Fatalf("fresh token rejected: %v", res.Error)
	}

	// Other users keep their sessions.
	if res := call(signToken(t, "u-admin")); !res.Success {
		t.Fatalf("unrelated user rejected: %v", res.Error)
	}
}

type failingRevocations struct{}

func (failingRevocations) RevokedBefore(context.Context, string) (time.Time, error) {
	return time.Time{}, errors.New("revocation store down")
}

func (failingRevocations) RevokeSessions(context.Context, string, time.Time) error {
	return errors.New("revocation store down")
}

func TestRequireAuth_RevocationStoreDownFailsClosed(t *testing.T) {
	f := newFixture(t, fixtureOptions{})
	f.composer.revocations = failingRevocations{}

	res := f.composer.RequireAuth(newRequest(http.MethodGet, productsPath, signToken(t, "u-support"), ""), authz.ProductsRead)
	if res.Success {
		t.Fatal("expected rejection with an unreadable revocation store")
	}
	if res.Code != secerr.CodeAuthUnavailable {
		t.Errorf("code = %s, want AUTH_UNAVAILABLE", res.Code)
	}
	if err := f.composer.RevokeSessions(context.Background(), "u-support", time.Now()); err == nil {
		t.Error("RevokeSessions should surface the store error")
	}
}

func TestRequireAuth_ElevationCachedSeparately(t *testing.T) {
	f := newFixture(t, fixtureOptions{})

	elevated := signToken(t, "u-admin", func(c *auth.Claims) { c.Elevated = true })
	res := f.composer.RequireAuth(newRequest(http.MethodGet, productsPath, elevated, ""), authz.ProductsRead)
	if !res.Success || !res.Context.Elevated() {
		t.Fatalf("expected elevated context, got %+v", res)
	}

	plain := signToken(t, "u-admin")
	res = f.composer.RequireAuth(newRequest(http.MethodGet, productsPath, plain, ""), authz.ProductsRead)
	if !res.Success {
		t.Fatalf("plain request: %v", res.Error)
	}
	if res.Context.Elevated() {
		t.Error("elevation leaked into a plain request")
	}
}

func TestRequireAuth_ElevationIgnoredForCustomers(t *testing.T) {
	f := newFixture(t, fixtureOptions{})
	token := signToken(t, "u1", func(c *auth.Claims) { c.Elevated = true })
	res := f.composer.RequireAuth(newRequest(http.MethodGet, "/api/v1/admin/orders", token, ""), authz.OrdersRead)
	if !res.Success {
		t.Fatalf("unexpected rejection %v", res.Error)
	}
	if res.Context.Elevated() {
		t.Error("customer context must never be elevated")
	}
}

// =====================================================
// Audit behaviour
// =====================================================

func TestRequireAuth_CancelledRequestStillAudited(t *testing.T) {
	store := audit.NewMemoryStore(100)
	cfg := audit.DefaultConfig()
	cfg.LogToStdout = false
	logger := audit.NewLogger(store, nil, cfg)
	defer logger.Close()

	f := newFixture(t, fixtureOptions{auditor: logger})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	r := newRequest(http.MethodGet, productsPath, "bogus", "").WithContext(ctx)
	res := f.composer.RequireAuth(r, authz.ProductsRead)
	if res.Success {
		t.Fatal("expected rejection")
	}

	if err := logger.Flush(context.Background()); err != nil {
		t.Fatalf("flush: %v", err)
	}
	n, err := logger.Count(context.Background(), audit.QueryFilter{Types: []audit.EventType{audit.EventTypeAuthFailure}})
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if n != 1 {
		t.Errorf("auth_failure events = %d, want 1", n)
	}
}

func TestRequireAuth_ExactlyOneEventPerRejection(t *testing.T) {
	f := newFixture(t, fixtureOptions{})
	cfg := DefaultConfig()
	cfg.AuditSuccess = false
	f.composer.cfg = cfg

	requests := []*http.Request{
		newRequest(http.MethodGet, productsPath, "", ""),
		newRequest(http.MethodPost, productsPath, signToken(t, "u-admin"), "https://evil.example"),
		newRequest(http.MethodPost, productsPath, signToken(t, "u-support"), allowedOrigin),
	}
	for i, r := range requests {
		before := f.auditor.len()
		res := f.composer.RequireAuth(r, authz.ProductsWrite)
		if res.Success {
			t.Fatalf("request %d unexpectedly allowed", i)
		}
		if got := f.auditor.len() - before; got != 1 {
			t.Errorf("request %d produced %d events, want 1", i, got)
		}
	}
}

// =====================================================
// State machine
// =====================================================

func TestRequestState_ForwardOnly(t *testing.T) {
	st := newRequestState(httptest.NewRequest(http.MethodGet, "/", nil))
	st.advance(StateRateChecked)
	st.advance(StateTokenValidated)
	if st.State() != StateRateChecked {
		t.Fatalf("state moved backwards to %v", st.State())
	}
	st.reject(string(secerr.CodeRateLimited))
	st.advance(StateAuthorized)
	if st.State() != StateRejected || st.Reason() != "RATE_LIMITED" {
		t.Fatalf("rejected state not terminal: %v/%s", st.State(), st.Reason())
	}
	if st.Context() != nil {
		t.Error("rejected state exposes a context")
	}
}

func TestState_String(t *testing.T) {
	tests := map[State]string{
		StateReceived:   "RECEIVED",
		StateAuthorized: "AUTHORIZED",
		StateDelegated:  "DELEGATED_TO_HANDLER",
		StateRejected:   "REJECTED",
		State(42):       "UNKNOWN",
	}
	for s, want := range tests {
		if got := s.String(); got != want {
			t.Errorf("State(%d) = %q, want %q", int(s), got, want)
		}
	}
}

func TestNewComposer_MissingDependency(t *testing.T) {
	_, err := NewComposer(Deps{}, DefaultConfig())
	if !errors.Is(err, ErrMissingDependency) {
		t.Fatalf("err = %v, want ErrMissingDependency", err)
	}
}

// =====================================================
// Concurrency
// =====================================================

func TestRequireAuth_ConcurrentRequests(t *testing.T) {
	f := newFixture(t, fixtureOptions{adminLimit: ratelimit.TierLimit{Requests: 100000, Window: time.Minute}})
	tokens := map[string]string{
		"u-support": signToken(t, "u-support"),
		"u1":        signToken(t, "u1"),
		"u-admin":   signToken(t, "u-admin"),
	}
	users := []string{"u-support", "u1", "u-admin"}

	var wg sync.WaitGroup
	var allowed, denied atomic.Int64
	for i := 0; i < 1000; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			user := users[i%len(users)]
			res := f.composer.RequireAuth(newRequest(http.MethodGet, productsPath, tokens[user], ""), authz.AnalyticsRead)
			if res.Success {
				allowed.Add(1)
				if res.Context.UserID() != user {
					t.Errorf("context for %s resolved as %s", user, res.Context.UserID())
				}
				return
			}
			denied.Add(1)
		}(i)
	}
	wg.Wait()

	// support and admin hold analytics_read, customers do not.
	if allowed.Load() != 667 || denied.Load() != 333 {
		t.Errorf("allowed=%d denied=%d, want 667/333", allowed.Load(), denied.Load())
	}
	if n := len(f.auditor.ofType(audit.EventTypePermissionDenied)); n != 333 {
		t.Errorf("permission_denied events = %d, want 333", n)
	}
}
