// ABOUTME: Integration tests for calendar handlers: CRUD, personal calendars,
// ABOUTME: org-to-org moves, and token-authenticated feeds.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/delegator-ch/delegator/internal/store"
	"github.com/delegator-ch/delegator/internal/testutil"
)

type calendarOut struct {
	CalendarID int64  `json:"calendar_id"`
	OrgID      int64  `json:"org_id"`
	FeedToken  string `json:"feed_token"`
}

func createCalendar(t *testing.T, ctx context.Context, ts *httptest.Server, token string, orgID int64, name string, personal bool) calendarOut {
	t.Helper()
	body := fmt.Sprintf(`{"org_id":%d,"name":%q,"personal":%t}`, orgID, name, personal)
	resp := doJSON(t, ctx, ts, http.MethodPost, "/api/v1/calendars", token, body)
	defer resp.Body.Close() //nolint:errcheck
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create calendar: got %d, want 201", resp.StatusCode)
	}
	var out calendarOut
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode calendar: %v", err)
	}
	return out
}

func TestPersonalCalendarPrivacy(t *testing.T) {
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

	shared := createCalendar(t, ctx, ts, adminToken, orgID, "Shows", false)
	personal := createCalendar(t, ctx, ts, memberToken, orgID, "My Practice", true)

	// Both members see the shared calendar.
	resp := doJSON(t, ctx, ts, http.MethodGet, fmt.Sprintf("/api/v1/calendars/%d", shared.CalendarID), memberToken, "")
	resp.Body.Close() //nolint:errcheck
	if resp.StatusCode != http.StatusOK {
		t.Errorf("member get shared calendar: got %d, want 200", resp.StatusCode)
	}

	// The owner sees their personal calendar; so does the org (org channel
	// covers all calendars in the org). A complete outsider sees nothing.
	resp2 := doJSON(t, ctx, ts, http.MethodGet, fmt.Sprintf("/api/v1/calendars/%d", personal.CalendarID), memberToken, "")
	resp2.Body.Close() //nolint:errcheck
	if resp2.StatusCode != http.StatusOK {
		t.Errorf("owner get personal calendar: got %d, want 200", resp2.StatusCode)
	}

	_, outsiderToken := session(t, ctx, ts, "outsider@example.com")
	resp3 := doJSON(t, ctx, ts, http.MethodGet, fmt.Sprintf("/api/v1/calendars/%d", personal.CalendarID), outsiderToken, "")
	resp3.Body.Close() //nolint:errcheck
	if resp3.StatusCode != http.StatusForbidden {
		t.Errorf("outsider get personal calendar: got %d, want 403", resp3.StatusCode)
	}
}

func TestMoveCalendarBetweenOrgs(t *testing.T) {
	t.Parallel()
	db := testutil.NewTestDB(t)
	ctx := context.Background()
	_, ts := newTestServer(t, db)

	adminID, adminToken := session(t, ctx, ts, "admin@example.com")
	srcOrg := createOrgAs(t, ctx, ts, db, adminID, adminToken, "Old Band")
	dstOrg := createOrgAs(t, ctx, ts, db, adminID, adminToken, "New Band")

	cal := createCalendar(t, ctx, ts, adminToken, srcOrg, "Shows", false)

	body := fmt.Sprintf(`{"new_org_id":%d}`, dstOrg)
	resp := doJSON(t, ctx, ts, http.MethodPost, fmt.Sprintf("/api/v1/calendars/%d/move", cal.CalendarID), adminToken, body)
	defer resp.Body.Close() //nolint:errcheck
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("move calendar: got %d, want 200", resp.StatusCode)
	}
	var out calendarOut
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out.OrgID != dstOrg {
		t.Errorf("calendar org after move = %d, want %d", out.OrgID, dstOrg)
	}

	// A member of the source org only cannot move calendars into an org
	// the caller has no standing in.
	otherID, otherToken := session(t, ctx, ts, "other@example.com")
	if err := db.AddOrgMember(ctx, dstOrg, otherID, roleIDByName(t, ctx, db, "member")); err != nil {
		t.Fatalf("add member: %v", err)
	}
	thirdOrg := createOrgAs(t, ctx, ts, db, adminID, adminToken, "Third Band")
	body2 := fmt.Sprintf(`{"new_org_id":%d}`, thirdOrg)
	resp2 := doJSON(t, ctx, ts, http.MethodPost, fmt.Sprintf("/api/v1/calendars/%d/move", cal.CalendarID), otherToken, body2)
	resp2.Body.Close() //nolint:errcheck
	if resp2.StatusCode != http.StatusForbidden {
		t.Errorf("move without destination rights: got %d, want 403", resp2.StatusCode)
	}
}

func TestCalendarFeed(t *testing.T) {
	t.Parallel()
	db := testutil.NewTestDB(t)
	ctx := context.Background()
	_, ts := newTestServer(t, db)

	adminID, adminToken := session(t, ctx, ts, "admin@example.com")
	orgID := createOrgAs(t, ctx, ts, db, adminID, adminToken, "Garage Band")
	cal := createCalendar(t, ctx, ts, adminToken, orgID, "Shows", false)

	// One upcoming event in the window, one far outside it.
	if _, err := db.CreateEvent(ctx, store.CreateEventParams{
		CalendarID: cal.CalendarID, Name: "Soon", StartsAt: time.Now().Add(24 * time.Hour), IsGig: true,
	}); err != nil {
		t.Fatalf("create event: %v", err)
	}
	if _, err := db.CreateEvent(ctx, store.CreateEventParams{
		CalendarID: cal.CalendarID, Name: "Far", StartsAt: time.Now().AddDate(3, 0, 0),
	}); err != nil {
		t.Fatalf("create event: %v", err)
	}

	// Feeds need no session cookie.
	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, ts.URL+"/api/v1/feeds/calendar/"+cal.FeedToken, nil)
	resp, err := ts.Client().Do(req)
	if err != nil {
		t.Fatalf("feed: %v", err)
	}
	defer resp.Body.Close() //nolint:errcheck
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("feed: got %d, want 200", resp.StatusCode)
	}
	var out struct {
		Calendar string `json:"calendar"`
		Events   []struct {
			Name string `json:"name"`
		} `json:"events"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode feed: %v", err)
	}
	if out.Calendar != "Shows" {
		t.Errorf("feed calendar = %q, want %q", out.Calendar, "Shows")
	}
	if len(out.Events) != 1 || out.Events[0].Name != "Soon" {
		t.Errorf("feed events = %+v, want only %q", out.Events, "Soon")
	}

	// Rotating the token invalidates the old feed URL.
	resp2 := doJSON(t, ctx, ts, http.MethodPost, fmt.Sprintf("/api/v1/calendars/%d/rotate-feed", cal.CalendarID), adminToken, "")
	defer resp2.Body.Close() //nolint:errcheck
	if resp2.StatusCode != http.StatusOK {
		t.Fatalf("rotate feed: got %d, want 200", resp2.StatusCode)
	}
	var rotated calendarOut
	if err := json.NewDecoder(resp2.Body).Decode(&rotated); err != nil {
		t.Fatalf("decode rotated: %v", err)
	}
	if rotated.FeedToken == cal.FeedToken {
		t.Error("feed token unchanged after rotation")
	}

	req3, _ := http.NewRequestWithContext(ctx, http.MethodGet, ts.URL+"/api/v1/feeds/calendar/"+cal.FeedToken, nil)
	resp3, err := ts.Client().Do(req3)
	if err != nil {
		t.Fatalf("old feed: %v", err)
	}
	defer resp3.Body.Close() //nolint:errcheck
	if resp3.StatusCode != http.StatusNotFound {
		t.Errorf("old feed token: got %d, want 404", resp3.StatusCode)
	}
}

func TestUnknownFeedToken(t *testing.T) {
	t.Parallel()
	db := testutil.NewTestDB(t)
	ctx := context.Background()
	_, ts := newTestServer(t, db)

	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, ts.URL+"/api/v1/feeds/calendar/not-a-uuid", nil)
	resp, err := ts.Client().Do(req)
	if err != nil {
		t.Fatalf("feed: %v", err)
	}
	defer resp.Body.Close() //nolint:errcheck
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("bad token: got %d, want 404", resp.StatusCode)
	}
}
