package app

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/jmoiron/sqlx"

	"portfolio-backend/internal/auth"
	"portfolio-backend/internal/config"
	"portfolio-backend/internal/contact"
	"portfolio-backend/internal/maintenance"
	"portfolio-backend/internal/media"
	"portfolio-backend/internal/observability"
	"portfolio-backend/internal/project"
	"portfolio-backend/internal/resume"
	"portfolio-backend/internal/settings"
)

type routes struct {
	database *sqlx.DB
	verifier auth.AccessVerifier
	auth     *auth.Handler
	projects *project.Handler
	contacts *contact.Handler
	resume   *resume.Handler
	settings *settings.Handler
	media    *media.UploadHandler
	cleanup  *maintenance.CleanupHandler
}

func newRouter(cfg config.Config, h routes) http.Handler {
	r := chi.NewRouter()

	r.Use(observability.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{cfg.FrontendURL},
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "X-Requested-With"},
		ExposedHeaders:   []string{observability.RequestIDHeader},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	requireAdmin := auth.RequireAdmin(h.verifier)

	r.Get("/health", healthHandler(h.database))
	r.Get("/internal/maintenance/cleanup", h.cleanup.Handle)
	r.Post("/internal/maintenance/cleanup", h.cleanup.Handle)

	r.Route("/api", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			r.With(rateLimit(cfg.LoginRateLimit, "Too many login attempts, please try again later")).
				Post("/login", h.auth.Login)
			r.Post("/refresh", h.auth.Refresh)

			r.Group(func(r chi.Router) {
				r.Use(requireAdmin)
				r.Post("/logout", h.auth.Logout)
				r.Get("/me", h.auth.Me)
			})
		})

		r.Route("/projects", func(r chi.Router) {
			r.Get("/", h.projects.ListProjects)
			r.Get("/{slug}", h.projects.GetProject)

			r.Group(func(r chi.Router) {
				r.Use(requireAdmin)
				r.Get("/admin/all", h.projects.ListAllProjects)
				r.Post("/upload-images", h.projects.UploadImages)
				r.Post("/", h.projects.CreateProject)
				r.Put("/{id}", h.projects.UpdateProject)
				r.Delete("/{id}", h.projects.DeleteProject)
				r.Patch("/{id}/toggle-featured", h.projects.ToggleFeatured)
			})
		})

		r.Route("/contact", func(r chi.Router) {
			r.With(rateLimit(cfg.ContactRateLimit, "Too many messages, please try again later")).
				Post("/", h.contacts.Submit)

			r.Group(func(r chi.Router) {
				r.Use(requireAdmin)
				r.Get("/", h.contacts.List)
				r.Patch("/{id}", h.contacts.MarkAsRead)
			})
		})

		r.Route("/resume", func(r chi.Router) {
			r.Get("/", h.resume.GetLatest)
			r.With(requireAdmin).Post("/", h.resume.Upload)
			r.With(requireAdmin).Delete("/{id}", h.resume.Delete)
		})

		r.Route("/settings", func(r chi.Router) {
			r.Get("/", h.settings.Get)
			r.Group(func(r chi.Router) {
				r.Use(requireAdmin)
				r.Post("/", h.settings.Update)
				r.Get("/admin/all", h.settings.List)
				r.Put("/{key}", h.settings.Put)
			})
		})

		r.With(requireAdmin).Post("/media/upload", h.media.Upload)
	})

	return r
}

// rateLimit keys on the client IP resolved by RealIP.
func rateLimit(limit config.RateLimit, message string) func(http.Handler) http.Handler {
	return httprate.Limit(
		limit.Max,
		limit.Window,
		httprate.WithKeyFuncs(httprate.KeyByIP),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusTooManyRequests, map[string]string{"error": message})
		}),
	)
}

func healthHandler(database *sqlx.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		status := http.StatusOK
		body := map[string]any{"status": "ok", "time": time.Now().UTC().Format(time.RFC3339)}
		if err := database.PingContext(ctx); err != nil {
			status = http.StatusServiceUnavailable
			body["status"] = "degraded"
		}

		writeJSON(w, status, body)
	}
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}
