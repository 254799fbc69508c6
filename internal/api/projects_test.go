// ABOUTME: Integration tests for project handlers: creation side effects,
// ABOUTME: external collaborators, and the project channel's reach.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/delegator-ch/delegator/internal/testutil"
)

func createProject(t *testing.T, ctx context.Context, ts *httptest.Server, token string, orgID int64, name string) int64 {
	t.Helper()
	body := fmt.Sprintf(`{"org_id":%d,"name":%q}`, orgID, name)
	resp := doJSON(t, ctx, ts, http.MethodPost, "/api/v1/projects", token, body)
	defer resp.Body.Close() //nolint:errcheck
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create project: got %d, want 201", resp.StatusCode)
	}
	var out struct {
		ProjectID int64 `json:"project_id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode project: %v", err)
	}
	return out.ProjectID
}

func TestProjectCreationCreatesChat(t *testing.T) {
	t.Parallel()
	db := testutil.NewTestDB(t)
	ctx := context.Background()
	_, ts := newTestServer(t, db)

	adminID, adminToken := session(t, ctx, ts, "admin@example.com")
	orgID := createOrgAs(t, ctx, ts, db, adminID, adminToken, "Garage Band")

	projectID := createProject(t, ctx, ts, adminToken, orgID, "Album")

	chats := listChatIDs(t, ctx, ts, adminToken)
	if len(chats) != 1 {
		t.Fatalf("chat count after project creation = %d, want 1", len(chats))
	}

	resp := doJSON(t, ctx, ts, http.MethodGet, fmt.Sprintf("/api/v1/chats/%d", chats[0]), adminToken, "")
	defer resp.Body.Close() //nolint:errcheck
	var chat struct {
		ProjectID *int64 `json:"project_id"`
		Name      string `json:"name"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&chat); err != nil {
		t.Fatalf("decode chat: %v", err)
	}
	if chat.ProjectID == nil || *chat.ProjectID != projectID {
		t.Errorf("chat project linkage = %v, want %d", chat.ProjectID, projectID)
	}
}

func TestExternalCollaboratorReach(t *testing.T) {
	t.Parallel()
	db := testutil.NewTestDB(t)
	ctx := context.Background()
	_, ts := newTestServer(t, db)

	adminID, adminToken := session(t, ctx, ts, "admin@example.com")
	extID, extToken := session(t, ctx, ts, "producer@example.com")
	orgID := createOrgAs(t, ctx, ts, db, adminID, adminToken, "Garage Band")

	cal := createCalendar(t, ctx, ts, adminToken, orgID, "Shows", false)
	projectID := createProject(t, ctx, ts, adminToken, orgID, "Album")

	// Nothing reachable before being added to the project.
	resp := doJSON(t, ctx, ts, http.MethodGet, fmt.Sprintf("/api/v1/calendars/%d", cal.CalendarID), extToken, "")
	resp.Body.Close() //nolint:errcheck
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("external before project: got %d, want 403", resp.StatusCode)
	}

	body := fmt.Sprintf(`{"user_id":%d}`, extID)
	resp2 := doJSON(t, ctx, ts, http.MethodPost, fmt.Sprintf("/api/v1/projects/%d/members", projectID), adminToken, body)
	resp2.Body.Close() //nolint:errcheck
	if resp2.StatusCode != http.StatusNoContent {
		t.Fatalf("add project member: got %d, want 204", resp2.StatusCode)
	}

	// Project membership reaches the org's calendars without an org role.
	resp3 := doJSON(t, ctx, ts, http.MethodGet, fmt.Sprintf("/api/v1/calendars/%d", cal.CalendarID), extToken, "")
	resp3.Body.Close() //nolint:errcheck
	if resp3.StatusCode != http.StatusOK {
		t.Errorf("external after project: got %d, want 200", resp3.StatusCode)
	}

	// And the project's chat, but not org-wide chats.
	orgChat := createChat(t, ctx, ts, adminToken, orgID, "General", 4)
	extChats := listChatIDs(t, ctx, ts, extToken)
	if containsID(extChats, orgChat) {
		t.Errorf("external reaches org-wide chat %d: %v", orgChat, extChats)
	}
	if len(extChats) != 1 {
		t.Errorf("external chat list = %v, want only the project chat", extChats)
	}

	// Removal closes the channel again.
	resp4 := doJSON(t, ctx, ts, http.MethodDelete, fmt.Sprintf("/api/v1/projects/%d/members/%d", projectID, extID), adminToken, "")
	resp4.Body.Close() //nolint:errcheck
	if resp4.StatusCode != http.StatusNoContent {
		t.Fatalf("remove project member: got %d, want 204", resp4.StatusCode)
	}
	resp5 := doJSON(t, ctx, ts, http.MethodGet, fmt.Sprintf("/api/v1/calendars/%d", cal.CalendarID), extToken, "")
	resp5.Body.Close() //nolint:errcheck
	if resp5.StatusCode != http.StatusForbidden {
		t.Errorf("external after removal: got %d, want 403", resp5.StatusCode)
	}
}

func TestMoveProjectCarriesChat(t *testing.T) {
	t.Parallel()
	db := testutil.NewTestDB(t)
	ctx := context.Background()
	_, ts := newTestServer(t, db)

	adminID, adminToken := session(t, ctx, ts, "admin@example.com")
	srcOrg := createOrgAs(t, ctx, ts, db, adminID, adminToken, "Old Band")
	dstOrg := createOrgAs(t, ctx, ts, db, adminID, adminToken, "New Band")

	projectID := createProject(t, ctx, ts, adminToken, srcOrg, "Album")

	body := fmt.Sprintf(`{"new_org_id":%d}`, dstOrg)
	resp := doJSON(t, ctx, ts, http.MethodPost, fmt.Sprintf("/api/v1/projects/%d/move", projectID), adminToken, body)
	defer resp.Body.Close() //nolint:errcheck
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("move project: got %d, want 200", resp.StatusCode)
	}
	var out struct {
		OrgID int64 `json:"org_id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out.OrgID != dstOrg {
		t.Errorf("project org after move = %d, want %d", out.OrgID, dstOrg)
	}

	// The project's chat moved with it.
	chat, err := db.GetProjectChat(ctx, projectID)
	if err != nil || chat == nil {
		t.Fatalf("project chat: %v", err)
	}
	if chat.OrgID != dstOrg {
		t.Errorf("chat org after move = %d, want %d", chat.OrgID, dstOrg)
	}
}
