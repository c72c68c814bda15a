/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

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
  4. CORS:       Cross-origin requests for frontend

ROUTE GROUPS:
  /api/employments/*    Employment, allocation, and transition operations
  /api/sweeps/*         Sweep run history
  /api/admin/*          Admin operations (manual sweep, reset)

SECURITY NOTE:
  No authentication middleware currently. All endpoints are public.

SEE ALSO:
  - handlers.go: Handler implementations
  - cmd/server/main.go: Server startup
*/
package api

import (
	"net/http"

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
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))

	// API routes
	r.Route("/api", func(r chi.Router) {
		// Employment routes
		r.Route("/employments", func(r chi.Router) {
			r.Get("/", h.ListEmployments)
			r.Post("/", h.CreateEmployment)
			r.Get("/{id}", h.GetEmployment)
			r.Put("/{id}", h.UpdateEmployment)
			r.Get("/{id}/calculate", h.CalculateAllocation)
			r.Get("/{id}/allocations", h.GetAllocations)
			r.Put("/{id}/allocations", h.ReplaceAllocations)
			r.Post("/{id}/complete-probation", h.CompleteProbation)
			r.Get("/{id}/history", h.GetHistory)
		})

		// Sweep routes
		r.Route("/sweeps", func(r chi.Router) {
			r.Get("/runs", h.ListSweepRuns)
		})

		// Admin routes
		r.Route("/admin", func(r chi.Router) {
			r.Post("/sweep", h.TriggerSweep)
			r.Post("/reset", h.ResetDatabase)
		})
	})

	// Minimal index for anyone hitting the root in a browser
	r.Get("/*", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte(`<!DOCTYPE html>
<html>
<head><title>Funding Engine</title></head>
<body style="font-family: system-ui; max-width: 800px; margin: 50px auto; padding: 20px;">
<h1>Funding Engine API</h1>
<h2>API Endpoints</h2>
<ul>
<li><a href="/api/employments">/api/employments</a> - List employments</li>
<li><a href="/api/sweeps/runs">/api/sweeps/runs</a> - Sweep run history</li>
</ul>
</body>
</html>`))
	})

	return r
}
