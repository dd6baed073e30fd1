/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route
  definitions. This is the wiring layer that connects URLs to handlers.

ROUTER: chi
  Chi was chosen for:
  - Lightweight and fast
  - Context-based
  - Middleware support
  - RESTful route patterns

MIDDLEWARE STACK:
  1. Logger:     Request logging
  2. Recoverer:  Panic recovery (500 instead of crash)
  3. RequestID:  Unique ID per request for tracing
  4. CORS:       Cross-origin requests for the operator frontend

ROUTE GROUPS:
  /api/employees         Roster (read-only over HTTP)
  /api/periods/*         Stored service periods
  /api/insurer/*         BTL rows and batch rollups
  /api/import/*          File-upload imports
  /api/reconcile/*       Calculation, sync, orphan audit
  /api/admin/*           Reset

SECURITY NOTE:
  No authentication middleware. The server is meant for a single payroll
  operator on a trusted network.

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
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))

	// API routes
	r.Route("/api", func(r chi.Router) {
		r.Get("/employees", h.ListEmployees)

		r.Route("/periods", func(r chi.Router) {
			r.Get("/", h.ListPeriods)
			r.Get("/unpaid", h.ListUnpaidPeriods)
		})

		r.Route("/insurer", func(r chi.Router) {
			r.Get("/records", h.ListInsurerRecords)
			r.Get("/batches", h.ListBatches)
		})

		r.Route("/import", func(r chi.Router) {
			r.Post("/attendance", h.ImportAttendance)
			r.Post("/insurer", h.ImportInsurer)
			r.Post("/bonus", h.ImportBonus)
		})

		r.Route("/reconcile", func(r chi.Router) {
			r.Post("/calculate", h.Calculate)
			r.Post("/sync", h.Sync)
			r.Get("/orphans", h.Orphans)
		})

		r.Route("/admin", func(r chi.Router) {
			r.Post("/reset", h.Reset)
		})
	})

	return r
}
