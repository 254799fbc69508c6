// ABOUTME: HTTP handlers for chats and per-user chat grants.
// ABOUTME: Grant changes take effect on the next resolution; nothing is cached.
package api

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/delegator-ch/delegator/internal/access"
	"github.com/delegator-ch/delegator/internal/store"
)

type chatResponse struct {
	ChatID       int64  `json:"chat_id"`
	OrgID        int64  `json:"org_id"`
	ProjectID    *int64 `json:"project_id,omitempty"`
	Name         string `json:"name"`
	MinRoleLevel int    `json:"min_role_level"`
}

func chatJSON(c *store.Chat) chatResponse {
	return chatResponse{
		ChatID:       c.ID,
		OrgID:        c.OrgID,
		ProjectID:    c.ProjectID,
		Name:         c.Name,
		MinRoleLevel: c.MinRoleLevel,
	}
}

type createChatBody struct {
	OrgID        int64  `json:"org_id"`
	Name         string `json:"name"`
	MinRoleLevel *int   `json:"min_role_level,omitempty"`
}

// createChatHandler handles POST /api/v1/chats. Creates an org-wide chat;
// project chats come from project creation.
func (srv *Server) createChatHandler(w http.ResponseWriter, r *http.Request) {
	userID, _ := r.Context().Value(ctxUserID).(int64)

	var req createChatBody
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.OrgID == 0 || req.Name == "" {
		http.Error(w, "org_id and name are required", http.StatusBadRequest)
		return
	}

	parent := access.Parent{Kind: access.KindOrganisation, ID: req.OrgID}
	if err := srv.guard.AuthorizeCreate(r.Context(), userID, access.KindChat, parent); err != nil {
		accessError(w, r, err)
		return
	}

	minLevel := srv.cfg.DefaultChatMinLevel
	if req.MinRoleLevel != nil {
		minLevel = *req.MinRoleLevel
	}
	c, err := srv.store.CreateChat(r.Context(), req.OrgID, req.Name, minLevel)
	if err != nil {
		slog.ErrorContext(r.Context(), "create chat", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusCreated, chatJSON(c))
}

// listChatsHandler handles GET /api/v1/chats: the caller's reachable chats as
// one resolved set. Revoked chats never appear here.
func (srv *Server) listChatsHandler(w http.ResponseWriter, r *http.Request) {
	userID, _ := r.Context().Value(ctxUserID).(int64)

	set, err := srv.resolver.AccessibleSet(r.Context(), userID, access.KindChat)
	if err != nil {
		accessError(w, r, err)
		return
	}

	ids := make([]int64, 0, len(set))
	for id := range set {
		ids = append(ids, id)
	}
	chats, err := srv.store.ListChats(r.Context(), ids)
	if err != nil {
		slog.ErrorContext(r.Context(), "list chats", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	out := make([]chatResponse, 0, len(chats))
	for i := range chats {
		out = append(out, chatJSON(&chats[i]))
	}
	writeJSON(w, http.StatusOK, map[string]any{"chats": out})
}

// getChatHandler handles GET /api/v1/chats/{id}.
func (srv *Server) getChatHandler(w http.ResponseWriter, r *http.Request) {
	userID, _ := r.Context().Value(ctxUserID).(int64)
	id, err := urlID(r, "id")
	if err != nil {
		http.Error(w, "invalid id", http.StatusBadRequest)
		return
	}

	allowed, err := srv.resolver.CanAccess(r.Context(), userID, access.ActionView, access.KindChat, id)
	if err != nil {
		accessError(w, r, err)
		return
	}
	if !allowed {
		http.Error(w, "forbidden", http.StatusForbidden)
		return
	}

	c, err := srv.store.GetChatByID(r.Context(), id)
	if err != nil {
		slog.ErrorContext(r.Context(), "get chat", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	if c == nil {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, chatJSON(c))
}

type updateChatBody struct {
	Name         string `json:"name"`
	MinRoleLevel int    `json:"min_role_level"`
}

// updateChatHandler handles PATCH /api/v1/chats/{id}. Tightening
// min_role_level silently drops members below the new threshold.
func (srv *Server) updateChatHandler(w http.ResponseWriter, r *http.Request) {
	userID, _ := r.Context().Value(ctxUserID).(int64)
	id, err := urlID(r, "id")
	if err != nil {
		http.Error(w, "invalid id", http.StatusBadRequest)
		return
	}

	var req updateChatBody
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.Name == "" || req.MinRoleLevel == 0 {
		http.Error(w, "name and min_role_level are required", http.StatusBadRequest)
		return
	}

	if err := srv.guard.AuthorizeWrite(r.Context(), userID, access.KindChat, id); err != nil {
		accessError(w, r, err)
		return
	}

	c, err := srv.store.UpdateChat(r.Context(), id, req.Name, req.MinRoleLevel)
	if err != nil {
		slog.ErrorContext(r.Context(), "update chat", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	if c == nil {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, chatJSON(c))
}

// deleteChatHandler handles DELETE /api/v1/chats/{id}.
func (srv *Server) deleteChatHandler(w http.ResponseWriter, r *http.Request) {
	userID, _ := r.Context().Value(ctxUserID).(int64)
	id, err := urlID(r, "id")
	if err != nil {
		http.Error(w, "invalid id", http.StatusBadRequest)
		return
	}

	if err := srv.guard.AuthorizeDelete(r.Context(), userID, access.KindChat, id); err != nil {
		accessError(w, r, err)
		return
	}

	if err := srv.store.DeleteChat(r.Context(), id); err != nil {
		slog.ErrorContext(r.Context(), "delete chat", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ── Grants ────────────────────────────────────────────────────────────────────

type grantResponse struct {
	UserID int64 `json:"user_id"`
	View   bool  `json:"view"`
	Write  bool  `json:"write"`
	Muted  bool  `json:"muted"`
}

// listChatGrantsHandler handles GET /api/v1/chats/{id}/grants.
func (srv *Server) listChatGrantsHandler(w http.ResponseWriter, r *http.Request) {
	userID, _ := r.Context().Value(ctxUserID).(int64)
	id, err := urlID(r, "id")
	if err != nil {
		http.Error(w, "invalid id", http.StatusBadRequest)
		return
	}

	if err := srv.guard.AuthorizeWrite(r.Context(), userID, access.KindChat, id); err != nil {
		accessError(w, r, err)
		return
	}

	grants, err := srv.store.ListChatGrants(r.Context(), id)
	if err != nil {
		slog.ErrorContext(r.Context(), "list chat grants", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	out := make([]grantResponse, 0, len(grants))
	for _, g := range grants {
		out = append(out, grantResponse{UserID: g.UserID, View: g.View, Write: g.Write, Muted: g.Muted})
	}
	writeJSON(w, http.StatusOK, map[string]any{"grants": out})
}

type grantBody struct {
	View  bool `json:"view"`
	Write bool `json:"write"`
	Muted bool `json:"muted"`
}

// upsertChatGrantHandler handles PUT /api/v1/chats/{id}/grants/{user_id}.
// A view=false grant is an explicit revocation overriding every other channel.
func (srv *Server) upsertChatGrantHandler(w http.ResponseWriter, r *http.Request) {
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

	var req grantBody
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	if err := srv.guard.AuthorizeWrite(r.Context(), userID, access.KindChat, id); err != nil {
		accessError(w, r, err)
		return
	}

	err = srv.store.UpsertChatGrant(r.Context(), store.ChatGrant{
		UserID: targetID,
		ChatID: id,
		View:   req.View,
		Write:  req.Write,
		Muted:  req.Muted,
	})
	if err != nil {
		slog.ErrorContext(r.Context(), "upsert chat grant", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// deleteChatGrantHandler handles DELETE /api/v1/chats/{id}/grants/{user_id}.
func (srv *Server) deleteChatGrantHandler(w http.ResponseWriter, r *http.Request) {
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

	if err := srv.guard.AuthorizeWrite(r.Context(), userID, access.KindChat, id); err != nil {
		accessError(w, r, err)
		return
	}

	if err := srv.store.DeleteChatGrant(r.Context(), targetID, id); err != nil {
		slog.ErrorContext(r.Context(), "delete chat grant", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
