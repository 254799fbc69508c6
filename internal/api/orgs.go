// ABOUTME: HTTP handlers for organisation management: CRUD and membership.
// ABOUTME: Creation is premium-gated; member removal enforces the last-admin rule.
package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
)

type orgBody struct {
	Name string `json:"name"`
}

type orgResponse struct {
	OrgID int64  `json:"org_id"`
	Name  string `json:"name"`
	Since string `json:"since"`
}

// createOrgHandler handles POST /api/v1/orgs.
// Only premium (or staff) users may create organisations; the creator becomes
// the first admin.
func (srv *Server) createOrgHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := r.Context().Value(ctxUserID).(int64)
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	user, err := srv.store.GetUserByID(r.Context(), userID)
	if err != nil {
		slog.ErrorContext(r.Context(), "create org: lookup user", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	if user == nil || (!user.IsPremium && !user.IsStaff) {
		http.Error(w, "creating organisations requires a premium account", http.StatusForbidden)
		return
	}

	var req orgBody
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.Name == "" {
		http.Error(w, "name is required", http.StatusBadRequest)
		return
	}

	org, err := srv.store.CreateOrgWithOwner(r.Context(), req.Name, userID)
	if err != nil {
		slog.ErrorContext(r.Context(), "create org", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusCreated, orgResponse{
		OrgID: org.ID,
		Name:  org.Name,
		Since: org.Since.Format(time.RFC3339),
	})
}

// getOrgHandler handles GET /api/v1/orgs/{org_id}.
// Membership is enforced by RequireOrgMember.
func (srv *Server) getOrgHandler(w http.ResponseWriter, r *http.Request) {
	orgID, ok := r.Context().Value(ctxOrgID).(int64)
	if !ok {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}

	org, err := srv.store.GetOrgByID(r.Context(), orgID)
	if err != nil {
		slog.ErrorContext(r.Context(), "get org", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	if org == nil {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}

	writeJSON(w, http.StatusOK, orgResponse{
		OrgID: org.ID,
		Name:  org.Name,
		Since: org.Since.Format(time.RFC3339),
	})
}

// updateOrgHandler handles PATCH /api/v1/orgs/{org_id}.
// Requires the top role level (enforced by RequireOrgAdmin).
func (srv *Server) updateOrgHandler(w http.ResponseWriter, r *http.Request) {
	orgID, ok := r.Context().Value(ctxOrgID).(int64)
	if !ok {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}

	var req orgBody
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.Name == "" {
		http.Error(w, "name is required", http.StatusBadRequest)
		return
	}

	org, err := srv.store.UpdateOrg(r.Context(), orgID, req.Name)
	if err != nil {
		slog.ErrorContext(r.Context(), "update org", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	if org == nil {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}

	writeJSON(w, http.StatusOK, orgResponse{
		OrgID: org.ID,
		Name:  org.Name,
		Since: org.Since.Format(time.RFC3339),
	})
}

// deleteOrgHandler handles DELETE /api/v1/orgs/{org_id}.
func (srv *Server) deleteOrgHandler(w http.ResponseWriter, r *http.Request) {
	orgID, ok := r.Context().Value(ctxOrgID).(int64)
	if !ok {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}
	if err := srv.store.DeleteOrg(r.Context(), orgID); err != nil {
		slog.ErrorContext(r.Context(), "delete org", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ── Members ───────────────────────────────────────────────────────────────────

type memberResponse struct {
	UserID      int64  `json:"user_id"`
	DisplayName string `json:"display_name"`
	RoleID      int64  `json:"role_id"`
	RoleName    string `json:"role_name"`
	Level       int    `json:"level"`
}

// listMembersHandler handles GET /api/v1/orgs/{org_id}/members.
func (srv *Server) listMembersHandler(w http.ResponseWriter, r *http.Request) {
	orgID, ok := r.Context().Value(ctxOrgID).(int64)
	if !ok {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}

	members, err := srv.store.ListOrgMembers(r.Context(), orgID)
	if err != nil {
		slog.ErrorContext(r.Context(), "list members", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	out := make([]memberResponse, 0, len(members))
	for _, m := range members {
		out = append(out, memberResponse{
			UserID:      m.UserID,
			DisplayName: m.DisplayName,
			RoleID:      m.RoleID,
			RoleName:    m.RoleName,
			Level:       m.RoleLevel,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"members": out})
}

type addMemberBody struct {
	UserID int64 `json:"user_id"`
	RoleID int64 `json:"role_id"`
}

// addMemberHandler handles POST /api/v1/orgs/{org_id}/members.
func (srv *Server) addMemberHandler(w http.ResponseWriter, r *http.Request) {
	orgID, ok := r.Context().Value(ctxOrgID).(int64)
	if !ok {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}

	var req addMemberBody
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.UserID == 0 || req.RoleID == 0 {
		http.Error(w, "user_id and role_id are required", http.StatusBadRequest)
		return
	}
	// Reject unknown roles up front rather than letting the FK violation surface.
	if _, err := srv.resolver.Roles().LevelOf(req.RoleID); err != nil {
		http.Error(w, "unknown role", http.StatusBadRequest)
		return
	}

	if err := srv.store.AddOrgMember(r.Context(), orgID, req.UserID, req.RoleID); err != nil {
		slog.ErrorContext(r.Context(), "add member", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type updateMemberBody struct {
	RoleID int64 `json:"role_id"`
}

// updateMemberRoleHandler handles PATCH /api/v1/orgs/{org_id}/members/{user_id}.
// Demoting the last admin is rejected with 409.
func (srv *Server) updateMemberRoleHandler(w http.ResponseWriter, r *http.Request) {
	orgID, ok := r.Context().Value(ctxOrgID).(int64)
	if !ok {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}
	targetID, err := strconv.ParseInt(chi.URLParam(r, "user_id"), 10, 64)
	if err != nil {
		http.Error(w, "invalid user_id", http.StatusBadRequest)
		return
	}

	var req updateMemberBody
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if _, err := srv.resolver.Roles().LevelOf(req.RoleID); err != nil {
		http.Error(w, "unknown role", http.StatusBadRequest)
		return
	}

	if err := srv.store.UpdateOrgMemberRole(r.Context(), orgID, targetID, req.RoleID); err != nil {
		accessError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// removeMemberHandler handles DELETE /api/v1/orgs/{org_id}/members/{user_id}.
// Removing the last admin is rejected with 409; an unknown member is 404.
func (srv *Server) removeMemberHandler(w http.ResponseWriter, r *http.Request) {
	orgID, ok := r.Context().Value(ctxOrgID).(int64)
	if !ok {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}
	targetID, err := strconv.ParseInt(chi.URLParam(r, "user_id"), 10, 64)
	if err != nil {
		http.Error(w, "invalid user_id", http.StatusBadRequest)
		return
	}

	if err := srv.store.RemoveOrgMember(r.Context(), orgID, targetID); err != nil {
		accessError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
