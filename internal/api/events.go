// ABOUTME: HTTP handlers for events: CRUD plus calendar-to-calendar moves.
// ABOUTME: Events inherit scope from their calendar; the guard walks that chain.
package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/delegator-ch/delegator/internal/access"
	"github.com/delegator-ch/delegator/internal/store"
)

type eventResponse struct {
	EventID    int64   `json:"event_id"`
	CalendarID int64   `json:"calendar_id"`
	Name       string  `json:"name"`
	StartsAt   string  `json:"starts_at"`
	EndsAt     *string `json:"ends_at,omitempty"`
	IsGig      bool    `json:"is_gig"`
}

func eventJSON(e *store.Event) eventResponse {
	out := eventResponse{
		EventID:    e.ID,
		CalendarID: e.CalendarID,
		Name:       e.Name,
		StartsAt:   e.StartsAt.Format(time.RFC3339),
		IsGig:      e.IsGig,
	}
	if e.EndsAt != nil {
		s := e.EndsAt.Format(time.RFC3339)
		out.EndsAt = &s
	}
	return out
}

type eventBody struct {
	CalendarID int64      `json:"calendar_id,omitempty"`
	Name       string     `json:"name"`
	StartsAt   time.Time  `json:"starts_at"`
	EndsAt     *time.Time `json:"ends_at,omitempty"`
	IsGig      bool       `json:"is_gig,omitempty"`
}

// createEventHandler handles POST /api/v1/events.
func (srv *Server) createEventHandler(w http.ResponseWriter, r *http.Request) {
	userID, _ := r.Context().Value(ctxUserID).(int64)

	var req eventBody
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.CalendarID == 0 || req.Name == "" || req.StartsAt.IsZero() {
		http.Error(w, "calendar_id, name and starts_at are required", http.StatusBadRequest)
		return
	}

	parent := access.Parent{Kind: access.KindCalendar, ID: req.CalendarID}
	if err := srv.guard.AuthorizeCreate(r.Context(), userID, access.KindEvent, parent); err != nil {
		accessError(w, r, err)
		return
	}

	ev, err := srv.store.CreateEvent(r.Context(), store.CreateEventParams{
		CalendarID: req.CalendarID,
		Name:       req.Name,
		StartsAt:   req.StartsAt,
		EndsAt:     req.EndsAt,
		IsGig:      req.IsGig,
	})
	if err != nil {
		slog.ErrorContext(r.Context(), "create event", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusCreated, eventJSON(ev))
}

// getEventHandler handles GET /api/v1/events/{id}.
func (srv *Server) getEventHandler(w http.ResponseWriter, r *http.Request) {
	userID, _ := r.Context().Value(ctxUserID).(int64)
	id, err := urlID(r, "id")
	if err != nil {
		http.Error(w, "invalid id", http.StatusBadRequest)
		return
	}

	allowed, err := srv.resolver.CanAccess(r.Context(), userID, access.ActionView, access.KindEvent, id)
	if err != nil {
		accessError(w, r, err)
		return
	}
	if !allowed {
		http.Error(w, "forbidden", http.StatusForbidden)
		return
	}

	ev, err := srv.store.GetEventByID(r.Context(), id)
	if err != nil {
		slog.ErrorContext(r.Context(), "get event", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	if ev == nil {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, eventJSON(ev))
}

// updateEventHandler handles PATCH /api/v1/events/{id}.
func (srv *Server) updateEventHandler(w http.ResponseWriter, r *http.Request) {
	userID, _ := r.Context().Value(ctxUserID).(int64)
	id, err := urlID(r, "id")
	if err != nil {
		http.Error(w, "invalid id", http.StatusBadRequest)
		return
	}

	var req eventBody
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.Name == "" || req.StartsAt.IsZero() {
		http.Error(w, "name and starts_at are required", http.StatusBadRequest)
		return
	}

	if err := srv.guard.AuthorizeWrite(r.Context(), userID, access.KindEvent, id); err != nil {
		accessError(w, r, err)
		return
	}

	ev, err := srv.store.UpdateEvent(r.Context(), id, store.UpdateEventParams{
		Name:     req.Name,
		StartsAt: req.StartsAt,
		EndsAt:   req.EndsAt,
		IsGig:    req.IsGig,
	})
	if err != nil {
		slog.ErrorContext(r.Context(), "update event", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	if ev == nil {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, eventJSON(ev))
}

type moveEventBody struct {
	NewCalendarID int64 `json:"new_calendar_id"`
}

// moveEventHandler handles POST /api/v1/events/{id}/move.
// Requires move rights on the event and write rights on the target calendar.
func (srv *Server) moveEventHandler(w http.ResponseWriter, r *http.Request) {
	userID, _ := r.Context().Value(ctxUserID).(int64)
	id, err := urlID(r, "id")
	if err != nil {
		http.Error(w, "invalid id", http.StatusBadRequest)
		return
	}

	var req moveEventBody
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.NewCalendarID == 0 {
		http.Error(w, "new_calendar_id is required", http.StatusBadRequest)
		return
	}

	newParent := access.Parent{Kind: access.KindCalendar, ID: req.NewCalendarID}
	if err := srv.guard.AuthorizeMove(r.Context(), userID, access.KindEvent, id, newParent); err != nil {
		accessError(w, r, err)
		return
	}

	ev, err := srv.store.MoveEvent(r.Context(), id, req.NewCalendarID)
	if err != nil {
		slog.ErrorContext(r.Context(), "move event", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	if ev == nil {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, eventJSON(ev))
}

// deleteEventHandler handles DELETE /api/v1/events/{id}.
func (srv *Server) deleteEventHandler(w http.ResponseWriter, r *http.Request) {
	userID, _ := r.Context().Value(ctxUserID).(int64)
	id, err := urlID(r, "id")
	if err != nil {
		http.Error(w, "invalid id", http.StatusBadRequest)
		return
	}

	if err := srv.guard.AuthorizeDelete(r.Context(), userID, access.KindEvent, id); err != nil {
		accessError(w, r, err)
		return
	}

	if err := srv.store.DeleteEvent(r.Context(), id); err != nil {
		slog.ErrorContext(r.Context(), "delete event", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
