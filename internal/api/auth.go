// ABOUTME: HTTP handlers for authentication: register, login, refresh, logout, me.
// ABOUTME: All auth endpoints live at /api/v1/auth/... and are rate-limited.
package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/delegator-ch/delegator/internal/auth"
)

// dummyPasswordHash is a valid PHC-format argon2id hash used for login timing
// normalization. Running VerifyPassword against this for nonexistent users
// prevents email enumeration via response time differences.
const dummyPasswordHash = "$argon2id$v=19$m=19456,t=2,p=1$AAAAAAAAAAAAAAAAAAAAAA$AAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA" //nolint:gosec // G101 false positive: public dummy hash for timing normalization, not a real credential

// authCookies returns Set-Cookie header values for the access and refresh tokens.
// refresh_token is scoped to /api/v1/auth to limit its transmission surface.
func (srv *Server) authCookies(accessToken, refreshToken string) []*http.Cookie {
	return []*http.Cookie{
		{
			Name:     "access_token",
			Value:    accessToken,
			Path:     "/",
			HttpOnly: true,
			Secure:   srv.cfg.CookieSecure,
			SameSite: http.SameSiteLaxMode,
			MaxAge:   int(srv.cfg.AccessTokenTTL.Seconds()),
		},
		{
			Name:     "refresh_token",
			Value:    refreshToken,
			Path:     "/api/v1/auth",
			HttpOnly: true,
			Secure:   srv.cfg.CookieSecure,
			SameSite: http.SameSiteLaxMode,
			MaxAge:   int(srv.cfg.RefreshTokenTTL.Seconds()),
		},
	}
}

// clearAuthCookies returns cookies that immediately expire both auth cookies.
func (srv *Server) clearAuthCookies() []*http.Cookie {
	return []*http.Cookie{
		{Name: "access_token", Value: "", Path: "/", HttpOnly: true, Secure: srv.cfg.CookieSecure, SameSite: http.SameSiteLaxMode, MaxAge: -1},
		{Name: "refresh_token", Value: "", Path: "/api/v1/auth", HttpOnly: true, Secure: srv.cfg.CookieSecure, SameSite: http.SameSiteLaxMode, MaxAge: -1},
	}
}

// issueSession creates a refresh-token row and sets both auth cookies.
func (srv *Server) issueSession(w http.ResponseWriter, r *http.Request, userID int64, tokenVersion int, staff bool) bool {
	accessToken, err := auth.IssueAccessToken([]byte(srv.cfg.JWTSecret), userID, tokenVersion, staff, srv.cfg.AccessTokenTTL)
	if err != nil {
		slog.ErrorContext(r.Context(), "issue access token", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return false
	}
	jti := uuid.New()
	refreshToken, err := auth.IssueRefreshToken([]byte(srv.cfg.JWTSecret), userID, tokenVersion, jti, srv.cfg.RefreshTokenTTL)
	if err != nil {
		slog.ErrorContext(r.Context(), "issue refresh token", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return false
	}
	if err := srv.store.CreateRefreshToken(r.Context(), jti, userID, tokenVersion, time.Now().Add(srv.cfg.RefreshTokenTTL)); err != nil {
		slog.ErrorContext(r.Context(), "store refresh token", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return false
	}
	for _, c := range srv.authCookies(accessToken, refreshToken) {
		http.SetCookie(w, c)
	}
	return true
}

// ── Register ──────────────────────────────────────────────────────────────────

type registerBody struct {
	Email       string `json:"email"`
	Password    string `json:"password"`
	DisplayName string `json:"display_name,omitempty"`
}

// registerHandler handles POST /api/v1/auth/register.
func (srv *Server) registerHandler(w http.ResponseWriter, r *http.Request) {
	if srv.cfg.RegistrationMode != "open" {
		http.Error(w, "registration is not open on this server", http.StatusForbidden)
		return
	}

	var req registerBody
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.Email == "" || len(req.Password) < 8 {
		http.Error(w, "email and a password of at least 8 characters are required", http.StatusBadRequest)
		return
	}

	// Reject duplicate email before the expensive hash.
	existing, err := srv.store.GetUserByEmail(r.Context(), req.Email)
	if err != nil {
		slog.ErrorContext(r.Context(), "register: lookup email", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	if existing != nil {
		http.Error(w, "email already registered", http.StatusConflict)
		return
	}

	if !srv.acquireArgon2() {
		http.Error(w, "server busy, please retry", http.StatusServiceUnavailable)
		return
	}
	hash, err := auth.HashPassword(req.Password)
	srv.releaseArgon2()
	if err != nil {
		slog.ErrorContext(r.Context(), "register: hash password", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	displayName := req.DisplayName
	if displayName == "" {
		// Derive a display name from the email local-part.
		if at := strings.Index(req.Email, "@"); at > 0 {
			displayName = req.Email[:at]
		} else {
			displayName = req.Email
		}
	}

	user, err := srv.store.CreateUser(r.Context(), req.Email, displayName, hash)
	if err != nil {
		slog.ErrorContext(r.Context(), "register: create user", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{"user_id": user.ID})
}

// ── Login ─────────────────────────────────────────────────────────────────────

type loginBody struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// loginHandler handles POST /api/v1/auth/login.
func (srv *Server) loginHandler(w http.ResponseWriter, r *http.Request) {
	var req loginBody
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	user, err := srv.store.GetUserByEmail(r.Context(), req.Email)
	if err != nil {
		slog.ErrorContext(r.Context(), "login: lookup email", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	if !srv.acquireArgon2() {
		http.Error(w, "server busy, please retry", http.StatusServiceUnavailable)
		return
	}
	hash := dummyPasswordHash
	if user != nil {
		hash = user.PasswordHash
	}
	match, err := auth.VerifyPassword(req.Password, hash)
	srv.releaseArgon2()
	if err != nil || user == nil || !match {
		http.Error(w, "invalid credentials", http.StatusUnauthorized)
		return
	}

	if !srv.issueSession(w, r, user.ID, user.TokenVersion, user.IsStaff) {
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"user_id": user.ID})
}

// ── Refresh ───────────────────────────────────────────────────────────────────

// refreshHandler handles POST /api/v1/auth/refresh. Refresh tokens are
// single-use: the stored row is consumed and a new pair is issued.
func (srv *Server) refreshHandler(w http.ResponseWriter, r *http.Request) {
	cookie, err := r.Cookie("refresh_token")
	if err != nil {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	claims, err := auth.ParseRefreshToken(cookie.Value, []byte(srv.cfg.JWTSecret))
	if err != nil {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	row, err := srv.store.ConsumeRefreshToken(r.Context(), claims.JTI)
	if err != nil {
		slog.ErrorContext(r.Context(), "refresh: consume token", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	if row == nil || row.UserID != claims.UserID || time.Now().After(row.ExpiresAt) {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	user, err := srv.store.GetUserByID(r.Context(), claims.UserID)
	if err != nil {
		slog.ErrorContext(r.Context(), "refresh: lookup user", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	// token_version mismatch means logout-all was called after this token was issued.
	if user == nil || user.TokenVersion != claims.TokenVersion {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	if !srv.issueSession(w, r, user.ID, user.TokenVersion, user.IsStaff) {
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"user_id": user.ID})
}

// ── Logout ────────────────────────────────────────────────────────────────────

// logoutHandler handles POST /api/v1/auth/logout. Consumes the refresh token
// if present and clears both cookies.
func (srv *Server) logoutHandler(w http.ResponseWriter, r *http.Request) {
	if cookie, err := r.Cookie("refresh_token"); err == nil {
		if claims, err := auth.ParseRefreshToken(cookie.Value, []byte(srv.cfg.JWTSecret)); err == nil {
			if _, err := srv.store.ConsumeRefreshToken(r.Context(), claims.JTI); err != nil {
				slog.WarnContext(r.Context(), "logout: consume refresh token", "error", err)
			}
		}
	}
	for _, c := range srv.clearAuthCookies() {
		http.SetCookie(w, c)
	}
	w.WriteHeader(http.StatusNoContent)
}

// ── Me ────────────────────────────────────────────────────────────────────────

// meHandler handles GET /api/v1/auth/me.
func (srv *Server) meHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := r.Context().Value(ctxUserID).(int64)
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	user, err := srv.store.GetUserByID(r.Context(), userID)
	if err != nil {
		slog.ErrorContext(r.Context(), "me: lookup user", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	if user == nil {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"user_id":      user.ID,
		"email":        user.Email,
		"display_name": user.DisplayName,
		"is_staff":     user.IsStaff,
		"is_premium":   user.IsPremium,
	})
}
