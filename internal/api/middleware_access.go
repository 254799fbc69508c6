// ABOUTME: Org-scoped middleware — enforces membership and role level for /orgs routes.
// ABOUTME: Staff users pass both checks without a membership row.
package api

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
)

// RequireOrgMember returns a middleware that verifies the authenticated user
// is a member of the org in the URL ({org_id}). On success it injects ctxOrgID
// and ctxLevel into the request context. Staff users pass with the top level.
//
// Must run after RequireAuthenticated.
func (srv *Server) RequireOrgMember() func(http.Handler) http.Handler {
	return srv.requireOrg(false)
}

// RequireOrgAdmin is RequireOrgMember plus a top-level role requirement.
func (srv *Server) RequireOrgAdmin() func(http.Handler) http.Handler {
	return srv.requireOrg(true)
}

func (srv *Server) requireOrg(adminOnly bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID, ok := r.Context().Value(ctxUserID).(int64)
			if !ok {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			orgID, err := strconv.ParseInt(chi.URLParam(r, "org_id"), 10, 64)
			if err != nil {
				http.Error(w, "invalid org_id", http.StatusBadRequest)
				return
			}

			top := srv.resolver.Roles().TopLevel()

			if staff, _ := r.Context().Value(ctxStaff).(bool); staff {
				ctx := context.WithValue(r.Context(), ctxOrgID, orgID)
				ctx = context.WithValue(ctx, ctxLevel, top)
				next.ServeHTTP(w, r.WithContext(ctx))
				return
			}

			roleID, member, err := srv.store.OrgRole(r.Context(), userID, orgID)
			if err != nil {
				slog.ErrorContext(r.Context(), "org membership lookup", "error", err)
				http.Error(w, "internal error", http.StatusInternalServerError)
				return
			}
			if !member {
				http.Error(w, "forbidden", http.StatusForbidden)
				return
			}

			level, err := srv.resolver.Roles().LevelOf(roleID)
			if err != nil {
				// Unknown role in a membership row is a configuration fault,
				// not a deny.
				slog.ErrorContext(r.Context(), "role level lookup", "error", err, "role_id", roleID)
				http.Error(w, "internal error", http.StatusInternalServerError)
				return
			}

			if adminOnly && level != top {
				http.Error(w, "forbidden", http.StatusForbidden)
				return
			}

			ctx := context.WithValue(r.Context(), ctxOrgID, orgID)
			ctx = context.WithValue(ctx, ctxLevel, level)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
