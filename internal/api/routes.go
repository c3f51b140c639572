package api

import (
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// NewRouter creates a new router with all routes configured
func NewRouter(h *Handler) *chi.Mux {
	r := chi.NewRouter()

	// Global middleware (all routes)
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(LoggingMiddleware)
	r.Use(middleware.Recoverer)

	// Rate limiter for DELETE operations: burst of 100, then sustained
	// 10/second. Birthday deletions are rare; a flood is a bug or abuse.
	deleteRateLimiter := NewDeleteRateLimiter(100, 100*time.Millisecond)

	r.Route("/api/v1", func(r chi.Router) {
		// Public routes (no auth required)
		r.Get("/health", h.Health)

		// Protected routes (auth required)
		r.Group(func(r chi.Router) {
			r.Use(AuthMiddleware(h.apiKey))

			r.Route("/owners/{ownerID}", func(r chi.Router) {
				r.Use(OwnerCtx)

				r.Get("/birthdays", h.ListBirthdays)
				r.Post("/birthdays", h.CreateBirthday)
				r.Put("/birthdays/{id}", h.UpdateBirthday)
				r.With(deleteRateLimiter.Middleware).Delete("/birthdays/{id}", h.DeleteBirthday)

				r.Get("/changes", h.Changes)
			})
		})
	})

	return r
}
