package api

import (
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/readaloudhq/readaloud/internal/limiter"
)

// RouterConfig holds settings for the API router.
// Passed from main.go so the router can configure CORS and auth from env vars.
type RouterConfig struct {
	// TTSAPIKey is the bearer token required on /api routes.
	// If empty, auth middleware is skipped (development mode).
	TTSAPIKey string

	// CorsAllowedOrigins is a comma-separated list of allowed origins.
	// If empty, defaults to "*" (development mode).
	CorsAllowedOrigins string

	// Limiter rate-limits generation submissions. Nil disables limiting.
	Limiter *limiter.Limiter
}

func NewRouter(h *Handler, cfg RouterConfig) *chi.Mux {
	r := chi.NewRouter()

	// Global middleware (applied to all routes including /health)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)

	// CORS: restrict origins when configured, otherwise allow all (dev mode)
	allowedOrigins := []string{"*"}
	if cfg.CorsAllowedOrigins != "" {
		origins := strings.Split(cfg.CorsAllowedOrigins, ",")
		trimmed := make([]string, 0, len(origins))
		for _, o := range origins {
			if s := strings.TrimSpace(o); s != "" {
				trimmed = append(trimmed, s)
			}
		}
		if len(trimmed) > 0 {
			allowedOrigins = trimmed
		}
	}

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-API-Key"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Health check — public, no auth required
	r.Get("/health", h.Health)

	// Web UI — PIN-gated playlist plus the public player page
	r.Get("/", h.Home)
	r.Post("/generate", h.WebGenerate)
	r.Post("/delete/{jobId}", h.WebDelete)
	r.Get("/play/{jobId}", h.Play)

	// Skill API — protected by bearer token auth
	r.Route("/api", func(r chi.Router) {
		if cfg.TTSAPIKey != "" {
			r.Use(BearerAuth(cfg.TTSAPIKey))
		}

		// Generation is the expensive call — only it gets rate limited
		r.With(RateLimit(cfg.Limiter)).Post("/generate", h.Generate)

		r.Get("/status/{jobId}", h.Status)
		r.Get("/audio/{jobId}", h.Audio)
		r.Get("/generations", h.ListGenerations)
		r.Delete("/generations/{jobId}", h.DeleteGeneration)
	})

	return r
}
