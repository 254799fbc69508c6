// ABOUTME: HTTP handlers for projects: CRUD, membership, and org-to-org moves.
// ABOUTME: Creating a project creates its chat in the same transaction.
package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/delegator-ch/delegator/internal/access"
	"github.com/delegator-ch/delegator/internal/store"
)

type projectResponse struct {
	ProjectID int64   `json:"project_id"`
	OrgID     int64   `json:"org_id"`
	EventID   *int64  `json:"event_id,omitempty"`
	Name      string  `json:"name"`
	Deadline  *string `json:"deadline,omitempty"`
	Priority  int     `json:"priority"`
}

func projectJSON(p *store.Project) projectResponse {
	out := projectResponse{
		ProjectID: p.ID,
		OrgID:     p.OrgID,
		EventID:   p.EventID,
		Name:      p.Name,
		Priority:  p.Priority,
	}
	if p.Deadline != nil {
		s := p.Deadline.Format(time.RFC3339)
		out.Deadline = &s
	}
	return out
}

type createProjectBody struct {
	OrgID    int64      `json:"org_id"`
	EventID  *int64     `json:"event_id,omitempty"`
	Name     string     `json:"name"`
	Deadline *time.Time `json:"deadline,omitempty"`
	Priority int        `json:"priority,omitempty"`
}

// createProjectHandler handles POST /api/v1/projects. The creator becomes the
// project's first member and its chat is created alongside.
func (srv *Server) createProjectHandler(w http.ResponseWriter, r *http.Request) {
	userID, _ := r.Context().Value(ctxUserID).(int64)

	var req createProjectBody
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.OrgID == 0 || req.Name == "" {
		http.Error(w, "org_id and name are required", http.StatusBadRequest)
		return
	}

	parent := access.Parent{Kind: access.KindOrganisation, ID: req.OrgID}
	if err := srv.guard.AuthorizeCreate(r.Context(), userID, access.KindProject, parent); err != nil {
		accessError(w, r, err)
		return
	}

	p, err := srv.store.CreateProject(r.Context(), store.CreateProjectParams{
		OrgID:            req.OrgID,
		EventID:          req.EventID,
		Name:             req.Name,
		Deadline:         req.Deadline,
		Priority:         req.Priority,
		ChatMinRoleLevel: srv.cfg.DefaultChatMinLevel,
		CreatorID:        userID,
	})
	if err != nil {
		slog.ErrorContext(r.Context(), "create project", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusCreated, projectJSON(p))
}

// listProjectsHandler handles GET /api/v1/projects.
func (srv *Server) listProjectsHandler(w http.ResponseWriter, r *http.Request) {
	userID, _ := r.Context().Value(ctxUserID).(int64)

	set, err := srv.resolver.AccessibleSet(r.Context(), userID, access.KindProject)
	if err != nil {
		accessError(w, r, err)
		return
	}

	ids := make([]int64, 0, len(set))
	for id := range set {
		ids = append(ids, id)
	}
	projects, err := srv.store.ListProjects(r.Context(), ids)
	if err != nil {
		slog.ErrorContext(r.Context(), "list projects", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	out := make([]projectResponse, 0, len(projects))
	for i := range projects {
		out = append(out, projectJSON(&projects[i]))
	}
	writeJSON(w, http.StatusOK, map[string]any{"projects": out})
}

// getProjectHandler handles GET /api/v1/projects/{id}.
func (srv *Server) getProjectHandler(w http.ResponseWriter, r *http.Request) {
	userID, _ := r.Context().Value(ctxUserID).(int64)
	id, err := urlID(r, "id")
	if err != nil {
		http.Error(w, "invalid id", http.StatusBadRequest)
		return
	}

	allowed, err := srv.resolver.CanAccess(r.Context(), userID, access.ActionView, access.KindProject, id)
	if err != nil {
		accessError(w, r, err)
		return
	}
	if !allowed {
		http.Error(w, "forbidden", http.StatusForbidden)
		return
	}

	p, err := srv.store.GetProjectByID(r.Context(), id)
	if err != nil {
		slog.ErrorContext(r.Context(), "get project", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	if p == nil {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, projectJSON(p))
}

type updateProjectBody struct {
	Name     string     `json:"name"`
	EventID  *int64     `json:"event_id,omitempty"`
	Deadline *time.Time `json:"deadline,omitempty"`
	Priority int        `json:"priority,omitempty"`
}

// updateProjectHandler handles PATCH /api/v1/projects/{id}.
func (srv *Server) updateProjectHandler(w http.ResponseWriter, r *http.Request) {
	userID, _ := r.Context().Value(ctxUserID).(int64)
	id, err := urlID(r, "id")
	if err != nil {
		http.Error(w, "invalid id", http.StatusBadRequest)
		return
	}

	var req updateProjectBody
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.Name == "" {
		http.Error(w, "name is required", http.StatusBadRequest)
		return
	}

	if err := srv.guard.AuthorizeWrite(r.Context(), userID, access.KindProject, id); err != nil {
		accessError(w, r, err)
		return
	}

	p, err := srv.store.UpdateProject(r.Context(), id, store.UpdateProjectParams{
		Name:     req.Name,
		EventID:  req.EventID,
		Deadline: req.Deadline,
		Priority: req.Priority,
	})
	if err != nil {
		slog.ErrorContext(r.Context(), "update project", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	if p == nil {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, projectJSON(p))
}

type moveProjectBody struct {
	NewOrgID int64 `json:"new_org_id"`
}

// moveProjectHandler handles POST /api/v1/projects/{id}/move.
func (srv *Server) moveProjectHandler(w http.ResponseWriter, r *http.Request) {
	userID, _ := r.Context().Value(ctxUserID).(int64)
	id, err := urlID(r, "id")
	if err != nil {
		http.Error(w, "invalid id", http.StatusBadRequest)
		return
	}

	var req moveProjectBody
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.NewOrgID == 0 {
		http.Error(w, "new_org_id is required", http.StatusBadRequest)
		return
	}

	newParent := access.Parent{Kind: access.KindOrganisation, ID: req.NewOrgID}
	if err := srv.guard.AuthorizeMove(r.Context(), userID, access.KindProject, id, newParent); err != nil {
		accessError(w, r, err)
		return
	}

	p, err := srv.store.MoveProject(r.Context(), id, req.NewOrgID)
	if err != nil {
		slog.ErrorContext(r.Context(), "move project", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	if p == nil {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, projectJSON(p))
}

// deleteProjectHandler handles DELETE /api/v1/projects/{id}.
func (srv *Server) deleteProjectHandler(w http.ResponseWriter, r *http.Request) {
	userID, _ := r.Context().Value(ctxUserID).(int64)
	id, err := urlID(r, "id")
	if err != nil {
		http.Error(w, "invalid id", http.StatusBadRequest)
		return
	}

	if err := srv.guard.AuthorizeDelete(r.Context(), userID, access.KindProject, id); err != nil {
		accessError(w, r, err)
		return
	}

	if err := srv.store.DeleteProject(r.Context(), id); err != nil {
		slog.ErrorContext(r.Context(), "delete project", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ── Members ───────────────────────────────────────────────────────────────────

// listProjectMembersHandler handles GET /api/v1/projects/{id}/members.
func (srv *Server) listProjectMembersHandler(w http.ResponseWriter, r *http.Request) {
	userID, _ := r.Context().Value(ctxUserID).(int64)
	id, err := urlID(r, "id")
	if err != nil {
		http.Error(w, "invalid id", http.StatusBadRequest)
		return
	}

	allowed, err := srv.resolver.CanAccess(r.Context(), userID, access.ActionView, access.KindProject, id)
	if err != nil {
		accessError(w, r, err)
		return
	}
	if !allowed {
		http.Error(w, "forbidden", http.StatusForbidden)
		return
	}

	members, err := srv.store.ListProjectMembers(r.Context(), id)
	if err != nil {
		slog.ErrorContext(r.Context(), "list project members", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"members": members})
}

type projectMemberBody struct {
	UserID int64 `json:"user_id"`
}

// addProjectMemberHandler handles POST /api/v1/projects/{id}/members.
// Project membership is deliberately independent of org membership.
func (srv *Server) addProjectMemberHandler(w http.ResponseWriter, r *http.Request) {
	userID, _ := r.Context().Value(ctxUserID).(int64)
	id, err := urlID(r, "id")
	if err != nil {
		http.Error(w, "invalid id", http.StatusBadRequest)
		return
	}

	var req projectMemberBody
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.UserID == 0 {
		http.Error(w, "user_id is required", http.StatusBadRequest)
		return
	}

	if err := srv.guard.AuthorizeWrite(r.Context(), userID, access.KindProject, id); err != nil {
		accessError(w, r, err)
		return
	}

	if err := srv.store.AddProjectMember(r.Context(), req.UserID, id); err != nil {
		slog.ErrorContext(r.Context(), "add project member", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// removeProjectMemberHandler handles DELETE /api/v1/projects/{id}/members/{user_id}.
func (srv *Server) removeProjectMemberHandler(w http.ResponseWriter, r *http.Request) {
	userID, _ := r.Context().Value(ctxUserID).(int64)
	id, err := urlID(r, "id")
	if err != nil {
		http.Error(w, "invalid id", http.StatusBadRequest)
		return
	}
	targetID, err := urlID(r, "user_id")
	if err != nil {
		http.Error(w, "invalid user_id", http.StatusBadRequest)
		return
	}

	if err := srv.guard.AuthorizeWrite(r.Context(), userID, access.KindProject, id); err != nil {
		accessError(w, r, err)
		return
	}

	if err := srv.store.RemoveProjectMember(r.Context(), targetID, id); err != nil {
		slog.ErrorContext(r.Context(), "remove project member", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
