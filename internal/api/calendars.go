// ABOUTME: HTTP handlers for calendars: CRUD, org-to-org moves, and feed access.
// ABOUTME: Every operation goes through the access guard; feeds use the opaque token.
package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/delegator-ch/delegator/internal/access"
	"github.com/delegator-ch/delegator/internal/store"
)

type calendarResponse struct {
	CalendarID int64  `json:"calendar_id"`
	OrgID      int64  `json:"org_id"`
	UserID     *int64 `json:"user_id,omitempty"`
	Name       string `json:"name"`
	FeedToken  string `json:"feed_token"`
}

func calendarJSON(c *store.Calendar) calendarResponse {
	return calendarResponse{
		CalendarID: c.ID,
		OrgID:      c.OrgID,
		UserID:     c.UserID,
		Name:       c.Name,
		FeedToken:  c.FeedToken.String(),
	}
}

type createCalendarBody struct {
	OrgID int64  `json:"org_id"`
	Name  string `json:"name"`
	// Personal makes the calendar private to its creator.
	Personal bool `json:"personal,omitempty"`
}

// createCalendarHandler handles POST /api/v1/calendars.
func (srv *Server) createCalendarHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := r.Context().Value(ctxUserID).(int64)
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	var req createCalendarBody
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.OrgID == 0 || req.Name == "" {
		http.Error(w, "org_id and name are required", http.StatusBadRequest)
		return
	}

	parent := access.Parent{Kind: access.KindOrganisation, ID: req.OrgID}
	if err := srv.guard.AuthorizeCreate(r.Context(), userID, access.KindCalendar, parent); err != nil {
		accessError(w, r, err)
		return
	}

	var owner *int64
	if req.Personal {
		owner = &userID
	}
	cal, err := srv.store.CreateCalendar(r.Context(), req.OrgID, owner, req.Name)
	if err != nil {
		slog.ErrorContext(r.Context(), "create calendar", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusCreated, calendarJSON(cal))
}

// listCalendarsHandler handles GET /api/v1/calendars: every calendar the
// caller can see, resolved in one set operation.
func (srv *Server) listCalendarsHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := r.Context().Value(ctxUserID).(int64)
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	set, err := srv.resolver.AccessibleSet(r.Context(), userID, access.KindCalendar)
	if err != nil {
		accessError(w, r, err)
		return
	}
	ids := make([]int64, 0, len(set))
	for id := range set {
		ids = append(ids, id)
	}
	cals, err := srv.store.ListCalendars(r.Context(), ids)
	if err != nil {
		slog.ErrorContext(r.Context(), "list calendars", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	out := make([]calendarResponse, 0, len(cals))
	for i := range cals {
		out = append(out, calendarJSON(&cals[i]))
	}
	writeJSON(w, http.StatusOK, map[string]any{"calendars": out})
}

// getCalendarHandler handles GET /api/v1/calendars/{id}.
func (srv *Server) getCalendarHandler(w http.ResponseWriter, r *http.Request) {
	userID, _ := r.Context().Value(ctxUserID).(int64)
	id, err := urlID(r, "id")
	if err != nil {
		http.Error(w, "invalid id", http.StatusBadRequest)
		return
	}

	allowed, err := srv.resolver.CanAccess(r.Context(), userID, access.ActionView, access.KindCalendar, id)
	if err != nil {
		accessError(w, r, err)
		return
	}
	if !allowed {
		http.Error(w, "forbidden", http.StatusForbidden)
		return
	}

	cal, err := srv.store.GetCalendarByID(r.Context(), id)
	if err != nil {
		slog.ErrorContext(r.Context(), "get calendar", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	if cal == nil {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, calendarJSON(cal))
}

type updateCalendarBody struct {
	Name string `json:"name"`
}

// updateCalendarHandler handles PATCH /api/v1/calendars/{id}.
func (srv *Server) updateCalendarHandler(w http.ResponseWriter, r *http.Request) {
	userID, _ := r.Context().Value(ctxUserID).(int64)
	id, err := urlID(r, "id")
	if err != nil {
		http.Error(w, "invalid id", http.StatusBadRequest)
		return
	}

	var req updateCalendarBody
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.Name == "" {
		http.Error(w, "name is required", http.StatusBadRequest)
		return
	}

	if err := srv.guard.AuthorizeWrite(r.Context(), userID, access.KindCalendar, id); err != nil {
		accessError(w, r, err)
		return
	}

	cal, err := srv.store.UpdateCalendar(r.Context(), id, req.Name)
	if err != nil {
		slog.ErrorContext(r.Context(), "update calendar", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	if cal == nil {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, calendarJSON(cal))
}

type moveCalendarBody struct {
	NewOrgID int64 `json:"new_org_id"`
}

// moveCalendarHandler handles POST /api/v1/calendars/{id}/move.
// The caller must hold move rights on the calendar and write rights in the
// destination organisation.
func (srv *Server) moveCalendarHandler(w http.ResponseWriter, r *http.Request) {
	userID, _ := r.Context().Value(ctxUserID).(int64)
	id, err := urlID(r, "id")
	if err != nil {
		http.Error(w, "invalid id", http.StatusBadRequest)
		return
	}

	var req moveCalendarBody
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.NewOrgID == 0 {
		http.Error(w, "new_org_id is required", http.StatusBadRequest)
		return
	}

	newParent := access.Parent{Kind: access.KindOrganisation, ID: req.NewOrgID}
	if err := srv.guard.AuthorizeMove(r.Context(), userID, access.KindCalendar, id, newParent); err != nil {
		accessError(w, r, err)
		return
	}

	cal, err := srv.store.MoveCalendar(r.Context(), id, req.NewOrgID)
	if err != nil {
		slog.ErrorContext(r.Context(), "move calendar", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	if cal == nil {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, calendarJSON(cal))
}

// rotateCalendarFeedHandler handles POST /api/v1/calendars/{id}/rotate-feed.
func (srv *Server) rotateCalendarFeedHandler(w http.ResponseWriter, r *http.Request) {
	userID, _ := r.Context().Value(ctxUserID).(int64)
	id, err := urlID(r, "id")
	if err != nil {
		http.Error(w, "invalid id", http.StatusBadRequest)
		return
	}

	if err := srv.guard.AuthorizeWrite(r.Context(), userID, access.KindCalendar, id); err != nil {
		accessError(w, r, err)
		return
	}

	cal, err := srv.store.RotateCalendarFeedToken(r.Context(), id)
	if err != nil {
		slog.ErrorContext(r.Context(), "rotate feed token", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	if cal == nil {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, calendarJSON(cal))
}

// deleteCalendarHandler handles DELETE /api/v1/calendars/{id}.
func (srv *Server) deleteCalendarHandler(w http.ResponseWriter, r *http.Request) {
	userID, _ := r.Context().Value(ctxUserID).(int64)
	id, err := urlID(r, "id")
	if err != nil {
		http.Error(w, "invalid id", http.StatusBadRequest)
		return
	}

	if err := srv.guard.AuthorizeDelete(r.Context(), userID, access.KindCalendar, id); err != nil {
		accessError(w, r, err)
		return
	}

	if err := srv.store.DeleteCalendar(r.Context(), id); err != nil {
		slog.ErrorContext(r.Context(), "delete calendar", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ── Feed ──────────────────────────────────────────────────────────────────────

type feedEventResponse struct {
	EventID  int64   `json:"event_id"`
	Name     string  `json:"name"`
	StartsAt string  `json:"starts_at"`
	EndsAt   *string `json:"ends_at,omitempty"`
	IsGig    bool    `json:"is_gig"`
}

// calendarFeedHandler handles GET /api/v1/feeds/calendar/{token}.
// The feed token is the only credential; there is no session here.
func (srv *Server) calendarFeedHandler(w http.ResponseWriter, r *http.Request) {
	token, err := uuid.Parse(chi.URLParam(r, "token"))
	if err != nil {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}

	cal, err := srv.store.GetCalendarByFeedToken(r.Context(), token)
	if err != nil {
		slog.ErrorContext(r.Context(), "feed: lookup calendar", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	if cal == nil {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}

	from := time.Now().AddDate(0, -1, 0)
	to := time.Now().AddDate(0, 0, srv.cfg.FeedWindowDays)
	events, err := srv.store.ListEventsInWindow(r.Context(), []int64{cal.ID}, from, to)
	if err != nil {
		slog.ErrorContext(r.Context(), "feed: list events", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	out := make([]feedEventResponse, 0, len(events))
	for _, e := range events {
		fe := feedEventResponse{
			EventID:  e.ID,
			Name:     e.Name,
			StartsAt: e.StartsAt.Format(time.RFC3339),
			IsGig:    e.IsGig,
		}
		if e.EndsAt != nil {
			s := e.EndsAt.Format(time.RFC3339)
			fe.EndsAt = &s
		}
		out = append(out, fe)
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"calendar": cal.Name,
		"events":   out,
	})
}
