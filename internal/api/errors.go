// ABOUTME: Maps access-control errors onto HTTP responses.
// ABOUTME: Denials stay quiet 403s; scope faults surface loudly as 500s.
package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/delegator-ch/delegator/internal/access"
)

// urlID parses the named chi URL parameter as an int64.
func urlID(r *http.Request, name string) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, name), 10, 64)
}

// writeJSON writes v as JSON with the given status code.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("writeJSON: encode failed", "error", err)
	}
}

// accessError translates guard and resolver errors into HTTP responses.
// Orphaned scope chains and unknown roles are server faults and must not be
// dressed up as denials.
func accessError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, access.ErrDenied):
		http.Error(w, "forbidden", http.StatusForbidden)
	case errors.Is(err, access.ErrNotFound):
		http.Error(w, "not found", http.StatusNotFound)
	case errors.Is(err, access.ErrLastAdmin):
		http.Error(w, "organisation must keep at least one admin", http.StatusConflict)
	default:
		slog.ErrorContext(r.Context(), "access check failed", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}
