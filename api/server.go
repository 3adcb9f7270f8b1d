/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route
  definitions. This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. Logger:     Request logging
  2. Recoverer:  Panic recovery (500 instead of crash)
  3. RequestID:  Unique ID per request for tracing
  4. CORS:       Cross-origin requests for the admin frontend

ROUTE GROUPS:
  /api/sheet/*   Master-sheet session (pages, edits, commit)
  /api/recon/*   Reconciliation runs and mapping administration
  /api/admin/*   Seeding (dev only)

ROLE GATING:
  Reads require any recognized role; commits require admin; mapping
  invalidation and seeding require superadmin. See rolegate.go.

SEE ALSO:
  - handlers.go: Handler implementations
  - cmd/server/main.go: Server startup
*/
package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:5173", "http://localhost:8080"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", SessionHeader, RoleHeader},
		AllowCredentials: true,
	}))

	// API routes
	r.Route("/api", func(r chi.Router) {
		// Master-sheet session routes
		r.Route("/sheet", func(r chi.Router) {
			r.Use(RequireRole(RoleAgent))
			r.Get("/fields", h.ListFields)
			r.Post("/pages", h.LoadNextPage)
			r.Get("/records", h.ListRecords)
			r.Get("/records/{id}", h.GetRecord)
			r.Get("/edits", h.ListPending)
			r.Post("/edits", h.SetEdit)
			r.Delete("/edits", h.DiscardEdits)
			r.With(RequireRole(RoleAdmin)).Post("/commit", h.Commit)
		})

		// Reconciliation routes
		r.Route("/recon", func(r chi.Router) {
			r.Use(RequireRole(RoleAdmin))
			r.Post("/runs", h.RunReconciliation)
			r.With(RequireRole(RoleSuperadmin)).
				Post("/mappings/{insurer}/invalidate", h.InvalidateMapping)
		})

		// Admin routes
		r.Route("/admin", func(r chi.Router) {
			r.Use(RequireRole(RoleSuperadmin))
			r.Post("/seed", h.SeedDemo)
		})
	})

	return r
}
