package httpapi

import (
	"net/http"
	"testing"

	"stratix.org/internal/audit"
	"stratix.org/internal/directory"
)

func TestSuperadminLoginBadPassword(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodPost, "/admin/v1/login", "", map[string]any{
		"email":    testRootEmail,
		"password": "wrong",
	})
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
	var resp struct {
		Error string `json:"error"`
	}
	decodeBody(t, rec, &resp)
	if resp.Error != "invalid credentials" {
		t.Fatalf("unexpected error shape: %q", resp.Error)
	}

	// Unknown email must produce the identical shape.
	rec = f.do(t, http.MethodPost, "/admin/v1/login", "", map[string]any{
		"email":    "nobody@stratix.test",
		"password": "wrong",
	})
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("unknown email: %d", rec.Code)
	}
	var resp2 struct {
		Error string `json:"error"`
	}
	decodeBody(t, rec, &resp2)
	if resp2.Error != resp.Error {
		t.Fatalf("failure shapes differ: %q vs %q", resp.Error, resp2.Error)
	}
}

func TestSuperadminLoginLockout(t *testing.T) {
	f := newFixture(t)

	for i := 0; i < 5; i++ {
		rec := f.do(t, http.MethodPost, "/admin/v1/login", "", map[string]any{
			"email":    testRootEmail,
			"password": "wrong",
		})
		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("attempt %d: %d", i+1, rec.Code)
		}
	}

	// The correct password no longer helps during lockout.
	rec := f.do(t, http.MethodPost, "/admin/v1/login", "", map[string]any{
		"email":    testRootEmail,
		"password": testRootPassword,
	})
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429 during lockout, got %d", rec.Code)
	}
	if rec.Header().Get("Retry-After") == "" {
		t.Fatal("expected a Retry-After hint")
	}
}

func TestSuperadminSessionLifecycle(t *testing.T) {
	f := newFixture(t)
	token := f.superadminToken(t)

	rec := f.do(t, http.MethodGet, "/admin/v1/session", token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("session check: %d", rec.Code)
	}

	rec = f.do(t, http.MethodPost, "/admin/v1/logout", token, nil)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("logout: %d", rec.Code)
	}

	rec = f.do(t, http.MethodGet, "/admin/v1/session", token, nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("session after logout: %d", rec.Code)
	}
}

func TestTenantAdministration(t *testing.T) {
	f := newFixture(t)
	token := f.superadminToken(t)

	rec := f.do(t, http.MethodPost, "/admin/v1/tenants", token, map[string]any{
		"name":      "Globex",
		"subdomain": "globex",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create tenant: %d %s", rec.Code, rec.Body.String())
	}
	var tenant directory.Tenant
	decodeBody(t, rec, &tenant)
	if tenant.Subdomain != "globex" || !tenant.Active {
		t.Fatalf("unexpected tenant: %+v", tenant)
	}

	// Duplicate subdomain conflicts.
	rec = f.do(t, http.MethodPost, "/admin/v1/tenants", token, map[string]any{
		"name":      "Globex Again",
		"subdomain": "globex",
	})
	if rec.Code != http.StatusConflict {
		t.Fatalf("duplicate subdomain: %d", rec.Code)
	}

	// Tenant administration is invisible to anonymous callers.
	rec = f.do(t, http.MethodGet, "/admin/v1/tenants", "", nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("anonymous list: %d", rec.Code)
	}
}

func TestAuditQueryEndpoint(t *testing.T) {
	f := newFixture(t)
	token := f.superadminToken(t)

	rec := f.do(t, http.MethodPost, "/admin/v1/tenants", token, map[string]any{
		"name":      "Globex",
		"subdomain": "globex",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create tenant: %d", rec.Code)
	}

	rec = f.do(t, http.MethodGet, "/admin/v1/audit?action=tenant.create", token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("audit query: %d %s", rec.Code, rec.Body.String())
	}
	var resp struct {
		Entries    []audit.Entry `json:"entries"`
		NextCursor string        `json:"next_cursor"`
	}
	decodeBody(t, rec, &resp)
	if len(resp.Entries) != 1 {
		t.Fatalf("expected one tenant.create entry, got %d", len(resp.Entries))
	}
	if resp.Entries[0].ActorType != audit.ActorSuperadmin {
		t.Fatalf("unexpected actor type: %s", resp.Entries[0].ActorType)
	}
	if resp.NextCursor == "" {
		t.Fatal("expected a cursor")
	}

	rec = f.do(t, http.MethodGet, "/admin/v1/audit?from=not-a-time", token, nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("bad from: %d", rec.Code)
	}

	rec = f.do(t, http.MethodGet, "/admin/v1/audit", "", nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("anonymous audit query: %d", rec.Code)
	}
}
