// ABOUTME: HTTP handlers for songs: CRUD over org repertoire and the shared catalogue.
// ABOUTME: Unscoped songs are readable by everyone; writes on them are staff-only.
package api

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/delegator-ch/delegator/internal/access"
	"github.com/delegator-ch/delegator/internal/store"
)

type songResponse struct {
	SongID      int64  `json:"song_id"`
	OrgID       *int64 `json:"org_id,omitempty"`
	Nr          int    `json:"nr"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

func songJSON(s *store.Song) songResponse {
	return songResponse{
		SongID:      s.ID,
		OrgID:       s.OrgID,
		Nr:          s.Nr,
		Name:        s.Name,
		Description: s.Description,
	}
}

type songBody struct {
	OrgID       *int64 `json:"org_id,omitempty"`
	Nr          int    `json:"nr,omitempty"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

// createSongHandler handles POST /api/v1/songs. Songs without an org go to
// the shared catalogue, which only staff may write.
func (srv *Server) createSongHandler(w http.ResponseWriter, r *http.Request) {
	userID, _ := r.Context().Value(ctxUserID).(int64)

	var req songBody
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.Name == "" {
		http.Error(w, "name is required", http.StatusBadRequest)
		return
	}

	if req.OrgID != nil {
		parent := access.Parent{Kind: access.KindOrganisation, ID: *req.OrgID}
		if err := srv.guard.AuthorizeCreate(r.Context(), userID, access.KindSong, parent); err != nil {
			accessError(w, r, err)
			return
		}
	} else {
		staff, _ := r.Context().Value(ctxStaff).(bool)
		if !staff {
			http.Error(w, "forbidden", http.StatusForbidden)
			return
		}
	}

	song, err := srv.store.CreateSong(r.Context(), req.OrgID, req.Nr, req.Name, req.Description)
	if err != nil {
		slog.ErrorContext(r.Context(), "create song", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusCreated, songJSON(song))
}

// listSongsHandler handles GET /api/v1/songs.
func (srv *Server) listSongsHandler(w http.ResponseWriter, r *http.Request) {
	userID, _ := r.Context().Value(ctxUserID).(int64)

	set, err := srv.resolver.AccessibleSet(r.Context(), userID, access.KindSong)
	if err != nil {
		accessError(w, r, err)
		return
	}
	ids := make([]int64, 0, len(set))
	for id := range set {
		ids = append(ids, id)
	}
	songs, err := srv.store.ListSongs(r.Context(), ids)
	if err != nil {
		slog.ErrorContext(r.Context(), "list songs", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	out := make([]songResponse, 0, len(songs))
	for i := range songs {
		out = append(out, songJSON(&songs[i]))
	}
	writeJSON(w, http.StatusOK, map[string]any{"songs": out})
}

// getSongHandler handles GET /api/v1/songs/{id}.
func (srv *Server) getSongHandler(w http.ResponseWriter, r *http.Request) {
	userID, _ := r.Context().Value(ctxUserID).(int64)
	id, err := urlID(r, "id")
	if err != nil {
		http.Error(w, "invalid id", http.StatusBadRequest)
		return
	}

	allowed, err := srv.resolver.CanAccess(r.Context(), userID, access.ActionView, access.KindSong, id)
	if err != nil {
		accessError(w, r, err)
		return
	}
	if !allowed {
		http.Error(w, "forbidden", http.StatusForbidden)
		return
	}

	song, err := srv.store.GetSongByID(r.Context(), id)
	if err != nil {
		slog.ErrorContext(r.Context(), "get song", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	if song == nil {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, songJSON(song))
}

// updateSongHandler handles PATCH /api/v1/songs/{id}.
func (srv *Server) updateSongHandler(w http.ResponseWriter, r *http.Request) {
	userID, _ := r.Context().Value(ctxUserID).(int64)
	id, err := urlID(r, "id")
	if err != nil {
		http.Error(w, "invalid id", http.StatusBadRequest)
		return
	}

	var req songBody
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.Name == "" {
		http.Error(w, "name is required", http.StatusBadRequest)
		return
	}

	if err := srv.guard.AuthorizeWrite(r.Context(), userID, access.KindSong, id); err != nil {
		accessError(w, r, err)
		return
	}

	song, err := srv.store.UpdateSong(r.Context(), id, req.Nr, req.Name, req.Description)
	if err != nil {
		slog.ErrorContext(r.Context(), "update song", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	if song == nil {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, songJSON(song))
}

// deleteSongHandler handles DELETE /api/v1/songs/{id}.
func (srv *Server) deleteSongHandler(w http.ResponseWriter, r *http.Request) {
	userID, _ := r.Context().Value(ctxUserID).(int64)
	id, err := urlID(r, "id")
	if err != nil {
		http.Error(w, "invalid id", http.StatusBadRequest)
		return
	}

	if err := srv.guard.AuthorizeDelete(r.Context(), userID, access.KindSong, id); err != nil {
		accessError(w, r, err)
		return
	}

	if err := srv.store.DeleteSong(r.Context(), id); err != nil {
		slog.ErrorContext(r.Context(), "delete song", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
