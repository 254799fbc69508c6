// ABOUTME: HTTP server struct, constructor, and handler wiring for Delegator.
// ABOUTME: Holds auth dependencies (store, config, argon2 semaphore) plus the access resolver.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"

	"github.com/delegator-ch/delegator/internal/access"
	"github.com/delegator-ch/delegator/internal/config"
	"github.com/delegator-ch/delegator/internal/store"
)

// Server holds the dependencies for the HTTP layer.
type Server struct {
	store       *store.Store
	cfg         *config.Config
	resolver    *access.Resolver
	guard       *access.Guard
	argon2Sem   chan struct{}
	rateLimiter *ipRateLimiter
}

// NewServer creates a Server. The role catalogue is loaded once from the
// database; an empty or inconsistent catalogue is a startup error.
func NewServer(ctx context.Context, s *store.Store, cfg *config.Config) (*Server, error) {
	roles, err := s.LoadRoles(ctx)
	if err != nil {
		return nil, fmt.Errorf("load roles: %w", err)
	}
	registry, err := access.NewRegistry(roles)
	if err != nil {
		return nil, fmt.Errorf("role registry: %w", err)
	}
	resolver := access.NewResolver(s, registry)

	sem := make(chan struct{}, cfg.Argon2MaxConcurrent)
	evictTTL := cfg.RateLimitEvictTTL
	if evictTTL == 0 {
		evictTTL = 15 * time.Minute
	}
	// 10 requests per minute, burst of 10.
	rl := newIPRateLimiter(rate.Limit(10.0/60), 10, evictTTL)

	return &Server{
		store:       s,
		cfg:         cfg,
		resolver:    resolver,
		guard:       access.NewGuard(resolver),
		argon2Sem:   sem,
		rateLimiter: rl,
	}, nil
}

// Handler builds and returns the http.Handler.
func (srv *Server) Handler() http.Handler {
	var db *pgxpool.Pool
	if srv.store != nil {
		db = srv.store.Pool()
	}
	r := chi.NewRouter()

	// Security headers go first so they appear on every response including errors.
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("X-Content-Type-Options", "nosniff")
			w.Header().Set("X-Frame-Options", "DENY")
			w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
			next.ServeHTTP(w, r)
		})
	})

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	// 1 MB global body limit — protect against OOM from large request bodies.
	r.Use(middleware.RequestSize(1 << 20))
	r.Use(middleware.Recoverer)

	r.Get("/healthz", healthzHandler(db))
	r.Handle("/metrics", promhttp.Handler())

	apiRouter := chi.NewRouter()
	apiRouter.Use(csrfProtect)

	// Auth endpoints are rate-limited per IP.
	apiRouter.Route("/auth", func(r chi.Router) {
		r.Use(srv.authRateLimit())
		r.Post("/register", srv.registerHandler)
		r.Post("/login", srv.loginHandler)
		r.Post("/refresh", srv.refreshHandler)
		r.Post("/logout", srv.logoutHandler)
		r.With(srv.RequireAuthenticated()).Get("/me", srv.meHandler)
	})

	// Calendar feeds authenticate by their opaque token, not by session.
	apiRouter.Get("/feeds/calendar/{token}", srv.calendarFeedHandler)

	apiRouter.Group(func(r chi.Router) {
		r.Use(srv.RequireAuthenticated())

		r.Route("/orgs", func(r chi.Router) {
			r.Post("/", srv.createOrgHandler)
			r.Route("/{org_id}", func(r chi.Router) {
				r.Use(srv.RequireOrgMember())
				r.Get("/", srv.getOrgHandler)
				r.With(srv.RequireOrgAdmin()).Patch("/", srv.updateOrgHandler)
				r.With(srv.RequireOrgAdmin()).Delete("/", srv.deleteOrgHandler)

				r.Route("/members", func(r chi.Router) {
					r.Get("/", srv.listMembersHandler)
					r.With(srv.RequireOrgAdmin()).Post("/", srv.addMemberHandler)
					r.With(srv.RequireOrgAdmin()).Patch("/{user_id}", srv.updateMemberRoleHandler)
					r.With(srv.RequireOrgAdmin()).Delete("/{user_id}", srv.removeMemberHandler)
				})
			})
		})

		r.Route("/calendars", func(r chi.Router) {
			r.Get("/", srv.listCalendarsHandler)
			r.Post("/", srv.createCalendarHandler)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", srv.getCalendarHandler)
				r.Patch("/", srv.updateCalendarHandler)
				r.Delete("/", srv.deleteCalendarHandler)
				r.Post("/move", srv.moveCalendarHandler)
				r.Post("/rotate-feed", srv.rotateCalendarFeedHandler)
			})
		})

		r.Route("/events", func(r chi.Router) {
			r.Post("/", srv.createEventHandler)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", srv.getEventHandler)
				r.Patch("/", srv.updateEventHandler)
				r.Delete("/", srv.deleteEventHandler)
				r.Post("/move", srv.moveEventHandler)
			})
		})

		r.Route("/projects", func(r chi.Router) {
			r.Get("/", srv.listProjectsHandler)
			r.Post("/", srv.createProjectHandler)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", srv.getProjectHandler)
				r.Patch("/", srv.updateProjectHandler)
				r.Delete("/", srv.deleteProjectHandler)
				r.Post("/move", srv.moveProjectHandler)
				r.Route("/members", func(r chi.Router) {
					r.Get("/", srv.listProjectMembersHandler)
					r.Post("/", srv.addProjectMemberHandler)
					r.Delete("/{user_id}", srv.removeProjectMemberHandler)
				})
			})
		})

		r.Route("/chats", func(r chi.Router) {
			r.Get("/", srv.listChatsHandler)
			r.Post("/", srv.createChatHandler)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", srv.getChatHandler)
				r.Patch("/", srv.updateChatHandler)
				r.Delete("/", srv.deleteChatHandler)
				r.Route("/grants", func(r chi.Router) {
					r.Get("/", srv.listChatGrantsHandler)
					r.Put("/{user_id}", srv.upsertChatGrantHandler)
					r.Delete("/{user_id}", srv.deleteChatGrantHandler)
				})
			})
		})

		r.Route("/songs", func(r chi.Router) {
			r.Get("/", srv.listSongsHandler)
			r.Post("/", srv.createSongHandler)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", srv.getSongHandler)
				r.Patch("/", srv.updateSongHandler)
				r.Delete("/", srv.deleteSongHandler)
			})
		})
	})

	r.Mount("/api/v1", apiRouter)

	return r
}

// acquireArgon2 tries to acquire the argon2 semaphore. Returns false if all
// slots are in use — the caller should return 503 immediately (do NOT block).
func (srv *Server) acquireArgon2() bool {
	select {
	case srv.argon2Sem <- struct{}{}:
		return true
	default:
		return false
	}
}

func (srv *Server) releaseArgon2() { <-srv.argon2Sem }

// healthResponse is the JSON body for /healthz.
type healthResponse struct {
	Status string `json:"status"`
	DB     string `json:"db,omitempty"`
}

// healthzHandler returns 200 {"status":"ok"} when the DB is reachable,
// or 503 {"status":"degraded","db":"unavailable"} when it is not.
func healthzHandler(db *pgxpool.Pool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp := healthResponse{Status: "ok"}
		statusCode := http.StatusOK

		if db == nil {
			resp.Status = "degraded"
			resp.DB = "unavailable"
			statusCode = http.StatusServiceUnavailable
		} else if err := db.Ping(r.Context()); err != nil {
			slog.WarnContext(r.Context(), "healthz: db ping failed", "error", err)
			resp.Status = "degraded"
			resp.DB = "unavailable"
			statusCode = http.StatusServiceUnavailable
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(statusCode)
		if err := json.NewEncoder(w).Encode(resp); err != nil {
			slog.ErrorContext(r.Context(), "healthz: failed to encode response", "error", err)
		}
	}
}
