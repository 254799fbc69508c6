// ABOUTME: Integration tests for organisation HTTP handlers: CRUD and membership.
// ABOUTME: Covers the premium gate, role middleware, and the last-admin rule over HTTP.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/delegator-ch/delegator/internal/store"
	"github.com/delegator-ch/delegator/internal/testutil"
)

// createOrgAs upgrades the user to premium and creates an org through the API.
func createOrgAs(t *testing.T, ctx context.Context, ts *httptest.Server, db *store.Store, userID int64, token, name string) int64 {
	t.Helper()
	if err := db.SetPremium(ctx, userID, true); err != nil {
		t.Fatalf("set premium: %v", err)
	}
	resp := doJSON(t, ctx, ts, http.MethodPost, "/api/v1/orgs", token, fmt.Sprintf(`{"name":%q}`, name))
	defer resp.Body.Close() //nolint:errcheck
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create org: got %d, want 201", resp.StatusCode)
	}
	var out struct {
		OrgID int64 `json:"org_id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode org: %v", err)
	}
	return out.OrgID
}

func TestCreateOrgRequiresPremium(t *testing.T) {
	t.Parallel()
	db := testutil.NewTestDB(t)
	ctx := context.Background()
	_, ts := newTestServer(t, db)

	_, token := session(t, ctx, ts, "free@example.com")

	resp := doJSON(t, ctx, ts, http.MethodPost, "/api/v1/orgs", token, `{"name":"Garage Band"}`)
	defer resp.Body.Close() //nolint:errcheck
	if resp.StatusCode != http.StatusForbidden {
		t.Errorf("free user create org: got %d, want 403", resp.StatusCode)
	}
}

func TestCreateAndGetOrg(t *testing.T) {
	t.Parallel()
	db := testutil.NewTestDB(t)
	ctx := context.Background()
	_, ts := newTestServer(t, db)

	userID, token := session(t, ctx, ts, "founder@example.com")
	orgID := createOrgAs(t, ctx, ts, db, userID, token, "Garage Band")

	resp := doJSON(t, ctx, ts, http.MethodGet, fmt.Sprintf("/api/v1/orgs/%d", orgID), token, "")
	defer resp.Body.Close() //nolint:errcheck
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("get org: got %d, want 200", resp.StatusCode)
	}
	var out struct {
		OrgID int64  `json:"org_id"`
		Name  string `json:"name"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out.Name != "Garage Band" {
		t.Errorf("org name = %q, want %q", out.Name, "Garage Band")
	}

	// A user who is not a member cannot see the org at all.
	_, otherToken := session(t, ctx, ts, "stranger@example.com")
	resp2 := doJSON(t, ctx, ts, http.MethodGet, fmt.Sprintf("/api/v1/orgs/%d", orgID), otherToken, "")
	defer resp2.Body.Close() //nolint:errcheck
	if resp2.StatusCode != http.StatusForbidden {
		t.Errorf("non-member get org: got %d, want 403", resp2.StatusCode)
	}
}

func TestOrgUpdateRequiresAdmin(t *testing.T) {
	t.Parallel()
	db := testutil.NewTestDB(t)
	ctx := context.Background()
	_, ts := newTestServer(t, db)

	adminID, adminToken := session(t, ctx, ts, "admin@example.com")
	memberID, memberToken := session(t, ctx, ts, "member@example.com")
	orgID := createOrgAs(t, ctx, ts, db, adminID, adminToken, "Garage Band")

	if err := db.AddOrgMember(ctx, orgID, memberID, roleIDByName(t, ctx, db, "member")); err != nil {
		t.Fatalf("add member: %v", err)
	}

	resp := doJSON(t, ctx, ts, http.MethodPatch, fmt.Sprintf("/api/v1/orgs/%d", orgID), memberToken, `{"name":"Renamed"}`)
	defer resp.Body.Close() //nolint:errcheck
	if resp.StatusCode != http.StatusForbidden {
		t.Errorf("member update org: got %d, want 403", resp.StatusCode)
	}

	resp2 := doJSON(t, ctx, ts, http.MethodPatch, fmt.Sprintf("/api/v1/orgs/%d", orgID), adminToken, `{"name":"Renamed"}`)
	defer resp2.Body.Close() //nolint:errcheck
	if resp2.StatusCode != http.StatusOK {
		t.Errorf("admin update org: got %d, want 200", resp2.StatusCode)
	}
}

func TestMemberManagement(t *testing.T) {
	t.Parallel()
	db := testutil.NewTestDB(t)
	ctx := context.Background()
	_, ts := newTestServer(t, db)

	adminID, adminToken := session(t, ctx, ts, "admin@example.com")
	newbieID, _ := session(t, ctx, ts, "newbie@example.com")
	orgID := createOrgAs(t, ctx, ts, db, adminID, adminToken, "Garage Band")

	memberRole := roleIDByName(t, ctx, db, "member")
	body := fmt.Sprintf(`{"user_id":%d,"role_id":%d}`, newbieID, memberRole)
	resp := doJSON(t, ctx, ts, http.MethodPost, fmt.Sprintf("/api/v1/orgs/%d/members", orgID), adminToken, body)
	resp.Body.Close() //nolint:errcheck
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("add member: got %d, want 204", resp.StatusCode)
	}

	// Unknown roles are rejected before touching the database.
	badBody := fmt.Sprintf(`{"user_id":%d,"role_id":9999}`, newbieID)
	resp2 := doJSON(t, ctx, ts, http.MethodPost, fmt.Sprintf("/api/v1/orgs/%d/members", orgID), adminToken, badBody)
	resp2.Body.Close() //nolint:errcheck
	if resp2.StatusCode != http.StatusBadRequest {
		t.Errorf("unknown role: got %d, want 400", resp2.StatusCode)
	}

	resp3 := doJSON(t, ctx, ts, http.MethodGet, fmt.Sprintf("/api/v1/orgs/%d/members", orgID), adminToken, "")
	defer resp3.Body.Close() //nolint:errcheck
	var out struct {
		Members []struct {
			UserID   int64  `json:"user_id"`
			RoleName string `json:"role_name"`
		} `json:"members"`
	}
	if err := json.NewDecoder(resp3.Body).Decode(&out); err != nil {
		t.Fatalf("decode members: %v", err)
	}
	if len(out.Members) != 2 {
		t.Fatalf("member count = %d, want 2", len(out.Members))
	}

	resp4 := doJSON(t, ctx, ts, http.MethodDelete, fmt.Sprintf("/api/v1/orgs/%d/members/%d", orgID, newbieID), adminToken, "")
	resp4.Body.Close() //nolint:errcheck
	if resp4.StatusCode != http.StatusNoContent {
		t.Errorf("remove member: got %d, want 204", resp4.StatusCode)
	}
}

func TestLastAdminProtectedOverHTTP(t *testing.T) {
	t.Parallel()
	db := testutil.NewTestDB(t)
	ctx := context.Background()
	_, ts := newTestServer(t, db)

	adminID, adminToken := session(t, ctx, ts, "admin@example.com")
	orgID := createOrgAs(t, ctx, ts, db, adminID, adminToken, "Garage Band")

	// Removing the only admin must fail.
	resp := doJSON(t, ctx, ts, http.MethodDelete, fmt.Sprintf("/api/v1/orgs/%d/members/%d", orgID, adminID), adminToken, "")
	resp.Body.Close() //nolint:errcheck
	if resp.StatusCode != http.StatusConflict {
		t.Errorf("remove last admin: got %d, want 409", resp.StatusCode)
	}

	// So must demoting them.
	body := fmt.Sprintf(`{"role_id":%d}`, roleIDByName(t, ctx, db, "member"))
	resp2 := doJSON(t, ctx, ts, http.MethodPatch, fmt.Sprintf("/api/v1/orgs/%d/members/%d", orgID, adminID), adminToken, body)
	resp2.Body.Close() //nolint:errcheck
	if resp2.StatusCode != http.StatusConflict {
		t.Errorf("demote last admin: got %d, want 409", resp2.StatusCode)
	}

	// With a second admin in place, the original admin can step down.
	secondID, _ := session(t, ctx, ts, "second@example.com")
	if err := db.AddOrgMember(ctx, orgID, secondID, roleIDByName(t, ctx, db, "admin")); err != nil {
		t.Fatalf("add second admin: %v", err)
	}
	resp3 := doJSON(t, ctx, ts, http.MethodDelete, fmt.Sprintf("/api/v1/orgs/%d/members/%d", orgID, adminID), adminToken, "")
	resp3.Body.Close() //nolint:errcheck
	if resp3.StatusCode != http.StatusNoContent {
		t.Errorf("remove admin with replacement: got %d, want 204", resp3.StatusCode)
	}
}

func TestRemoveUnknownMemberIs404(t *testing.T) {
	t.Parallel()
	db := testutil.NewTestDB(t)
	ctx := context.Background()
	_, ts := newTestServer(t, db)

	adminID, adminToken := session(t, ctx, ts, "admin@example.com")
	orgID := createOrgAs(t, ctx, ts, db, adminID, adminToken, "Garage Band")

	// The target user exists but has no membership row in this org.
	strangerID, _ := session(t, ctx, ts, "stranger@example.com")
	resp := doJSON(t, ctx, ts, http.MethodDelete, fmt.Sprintf("/api/v1/orgs/%d/members/%d", orgID, strangerID), adminToken, "")
	resp.Body.Close() //nolint:errcheck
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("remove non-member: got %d, want 404", resp.StatusCode)
	}

	// Same for a role change on a non-member.
	body := fmt.Sprintf(`{"role_id":%d}`, roleIDByName(t, ctx, db, "member"))
	resp2 := doJSON(t, ctx, ts, http.MethodPatch, fmt.Sprintf("/api/v1/orgs/%d/members/%d", orgID, strangerID), adminToken, body)
	resp2.Body.Close() //nolint:errcheck
	if resp2.StatusCode != http.StatusNotFound {
		t.Errorf("change role of non-member: got %d, want 404", resp2.StatusCode)
	}
}

// roleIDByName looks up a seeded role's ID, failing the test if absent.
func roleIDByName(t *testing.T, ctx context.Context, db *store.Store, name string) int64 {
	t.Helper()
	id, ok, err := db.RoleIDByName(ctx, name)
	if err != nil {
		t.Fatalf("role %q: %v", name, err)
	}
	if !ok {
		t.Fatalf("role %q not seeded", name)
	}
	return id
}
