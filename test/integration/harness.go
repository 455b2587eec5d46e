// Package integration provides a reusable test harness for end-to-end
// testing of the workspace API. It starts a full HTTP server with real
// JWT verification against a test JWKS endpoint and in-memory stores.
package integration

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/ledgerspace/ledgerspace/internal/config"
	"github.com/ledgerspace/ledgerspace/internal/ledger"
	"github.com/ledgerspace/ledgerspace/internal/tenancy"
	"github.com/ledgerspace/ledgerspace/internal/transport"
	"github.com/ledgerspace/ledgerspace/model"
)

// FeedSecret is the shared secret the harness configures for the feed
// surface.
const FeedSecret = "integration-feed-secret"

// TestHarness encapsulates a fully wired server instance for integration
// testing.
type TestHarness struct {
	t      *testing.T
	server *httptest.Server
	issuer *tokenIssuer

	Ledger      *ledger.MemoryStore
	Memberships *tenancy.MemoryMembershipStore
	Claims      *tenancy.ClaimsProvider

	cfg *config.Config
}

// HarnessOption configures the test harness.
type HarnessOption func(*harnessConfig)

type harnessConfig struct {
	feedEnabled    bool
	handlerTimeout time.Duration
}

// WithFeed enables the trusted-automation feed surface.
func WithFeed() HarnessOption {
	return func(c *harnessConfig) {
		c.feedEnabled = true
	}
}

// WithHandlerTimeout sets the per-request handler timeout.
func WithHandlerTimeout(d time.Duration) HarnessOption {
	return func(c *harnessConfig) {
		c.handlerTimeout = d
	}
}

// NewTestHarness creates and starts a full test instance. The server is
// automatically cleaned up when the test completes.
func NewTestHarness(t *testing.T, opts ...HarnessOption) *TestHarness {
	t.Helper()

	hc := &harnessConfig{
		handlerTimeout: 10 * time.Second,
	}
	for _, opt := range opts {
		opt(hc)
	}

	h := &TestHarness{
		t:           t,
		issuer:      newTokenIssuer(t),
		Ledger:      ledger.NewMemoryStore(),
		Memberships: tenancy.NewMemoryMembershipStore(),
	}
	h.Claims = tenancy.NewClaimsProvider(h.Memberships, tenancy.NewMemoryClaimCache(), time.Minute, nil)

	cfg := config.Defaults()
	cfg.Server.HandlerTimeout = hc.handlerTimeout
	cfg.Identity.Issuer = h.issuer.issuer
	cfg.Identity.Audience = h.issuer.audience
	cfg.Identity.JWKSURL = h.issuer.JWKSURL()
	cfg.Feed.Enabled = hc.feedEnabled
	h.cfg = cfg

	jwks := transport.NewJWKSClient(cfg.Identity.JWKSURL, time.Hour, nil)
	gate := transport.NewGate(
		tenancy.NewRoleEvaluator(nil),
		tenancy.NewAnonymousEvaluator(nil),
		cfg.Identity.WorkspaceParam,
		nil,
		nil,
	)

	router := transport.NewRouter(transport.Dependencies{
		Config:       cfg,
		Authenticate: transport.JWTAuthenticator(cfg.Identity, jwks),
		Gate:         gate,
		Ledger:       h.Ledger,
		Memberships:  h.Memberships,
		Claims:       h.Claims,
		FeedSecret:   FeedSecret,
	})

	h.server = httptest.NewServer(router)
	t.Cleanup(h.server.Close)

	return h
}

// BaseURL returns the test server's base URL.
func (h *TestHarness) BaseURL() string {
	return h.server.URL
}

// GenerateToken creates a valid JWT token with the given claims.
func (h *TestHarness) GenerateToken(claims TestClaims) string {
	return h.issuer.GenerateToken(claims)
}

// GenerateExpiredToken creates a JWT that has already expired.
func (h *TestHarness) GenerateExpiredToken(claims TestClaims) string {
	return h.issuer.GenerateExpiredToken(claims)
}

// TokenFor issues a token for the subject with workspace roles computed
// from the membership store, the way the identity provider would at
// token issuance.
func (h *TestHarness) TokenFor(subjectID string) string {
	h.t.Helper()

	claims, err := h.Claims.WorkspaceClaims(context.Background(), subjectID)
	if err != nil {
		h.t.Fatalf("compute workspace claims for %s: %v", subjectID, err)
	}

	roles := make(map[string]string, len(claims))
	for _, c := range claims {
		roles[c.WorkspaceID.String()] = c.Role.String()
	}
	return h.GenerateToken(TestClaims{
		SubjectID:      subjectID,
		Email:          subjectID + "@example.com",
		WorkspaceRoles: roles,
	})
}

// SeedWorkspace creates a workspace record and an owner assignment
// directly in the stores, bypassing the API.
func (h *TestHarness) SeedWorkspace(name, owner string) uuid.UUID {
	h.t.Helper()

	ws := model.Workspace{
		ID:        uuid.New(),
		Name:      name,
		CreatedBy: owner,
		CreatedAt: time.Now().UTC(),
	}
	if err := h.Ledger.CreateWorkspace(context.Background(), ws); err != nil {
		h.t.Fatalf("seed workspace: %v", err)
	}
	h.AssignRole(owner, ws.ID, model.RoleOwner)
	return ws.ID
}

// AssignRole stores a role assignment and invalidates the subject's
// cached claims.
func (h *TestHarness) AssignRole(subjectID string, workspaceID uuid.UUID, role model.Role) {
	h.t.Helper()

	err := h.Memberships.Assign(context.Background(), tenancy.Membership{
		SubjectID:   subjectID,
		WorkspaceID: workspaceID,
		Role:        role,
		CreatedAt:   time.Now().UTC(),
	})
	if err != nil {
		h.t.Fatalf("assign role: %v", err)
	}
	h.Claims.Invalidate(context.Background(), subjectID)
}

// SeedAccount creates an account in the given workspace with the given
// opening balance in minor units.
func (h *TestHarness) SeedAccount(workspaceID uuid.UUID, name string, balance int64) uuid.UUID {
	h.t.Helper()

	acct := model.Account{
		ID:          uuid.New(),
		WorkspaceID: workspaceID,
		Name:        name,
		Kind:        model.AccountKindAsset,
		Currency:    "EUR",
		Balance:     balance,
		CreatedAt:   time.Now().UTC(),
		UpdatedAt:   time.Now().UTC(),
	}
	if err := h.Ledger.CreateAccount(context.Background(), acct); err != nil {
		h.t.Fatalf("seed account: %v", err)
	}
	return acct.ID
}

// --- HTTP client helpers ---

// GET performs an authenticated GET request.
func (h *TestHarness) GET(path, token string) *http.Response {
	h.t.Helper()
	return h.doRequest("GET", path, nil, token, nil)
}

// POST performs an authenticated POST request with a JSON body.
func (h *TestHarness) POST(path string, body any, token string) *http.Response {
	h.t.Helper()
	return h.doRequest("POST", path, body, token, nil)
}

// POSTWithHeaders performs a POST request with additional headers.
func (h *TestHarness) POSTWithHeaders(path string, body any, token string, headers map[string]string) *http.Response {
	h.t.Helper()
	return h.doRequest("POST", path, body, token, headers)
}

// DELETE performs an authenticated DELETE request.
func (h *TestHarness) DELETE(path, token string) *http.Response {
	h.t.Helper()
	return h.doRequest("DELETE", path, nil, token, nil)
}

func (h *TestHarness) doRequest(method, path string, body any, token string, headers map[string]string) *http.Response {
	h.t.Helper()

	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			h.t.Fatalf("marshal request body: %v", err)
		}
		bodyReader = strings.NewReader(string(data))
	}

	req, err := http.NewRequestWithContext(context.Background(), method, h.server.URL+path, bodyReader)
	if err != nil {
		h.t.Fatalf("create request: %v", err)
	}

	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		h.t.Fatalf("%s %s failed: %v", method, path, err)
	}
	return resp
}

// ParseJSON reads the response body and unmarshals it into the target.
func (h *TestHarness) ParseJSON(resp *http.Response, target any) {
	h.t.Helper()
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		h.t.Fatalf("read response body: %v", err)
	}
	if err := json.Unmarshal(data, target); err != nil {
		h.t.Fatalf("unmarshal response body: %v\nbody: %s", err, string(data))
	}
}

// ReadBody reads and returns the response body as bytes.
func (h *TestHarness) ReadBody(resp *http.Response) []byte {
	h.t.Helper()
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		h.t.Fatalf("read response body: %v", err)
	}
	return data
}

// AssertStatus checks that the response has the expected status code.
func (h *TestHarness) AssertStatus(t *testing.T, resp *http.Response, expected int) {
	t.Helper()
	if resp.StatusCode != expected {
		body, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		t.Errorf("status = %d, want %d\nbody: %s", resp.StatusCode, expected, string(body))
	}
}

// AssertJSON checks that the response has the expected status and parses the body.
func (h *TestHarness) AssertJSON(t *testing.T, resp *http.Response, expected int, target any) {
	t.Helper()
	if resp.StatusCode != expected {
		body, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		t.Fatalf("status = %d, want %d\nbody: %s", resp.StatusCode, expected, string(body))
	}
	h.ParseJSON(resp, target)
}
