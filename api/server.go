/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route
  definitions. This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. Logger:     Request logging
  2. Recoverer:  Panic recovery (500 instead of crash)
  3. RequestID:  Unique ID per request for tracing
  4. CORS:       Cross-origin requests for frontend

AUTH:
  /api/login, /healthz and /metrics are public. Everything else under
  /api requires a Bearer token; owner-only rules live in the domain
  layer, not here.

SEE ALSO:
  - handlers.go: Handler implementations
  - auth.go: Token middleware
  - cmd/server/main.go: Server startup
*/
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
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
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))

	// Public routes
	r.Post("/api/login", h.Login)
	r.Handle("/metrics", promhttp.Handler())
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	// Protected API routes
	r.Route("/api", func(r chi.Router) {
		r.Use(h.Auth.Middleware)

		// Day lifecycle and cash
		r.Route("/caja", func(r chi.Router) {
			r.Get("/", h.GetCaja)
			r.Get("/state", h.GetDayState)
			r.Post("/open", h.OpenDay)
			r.Post("/close", h.CloseDay)
			r.Post("/movements", h.PostMovement)
		})

		// Reports
		r.Get("/reports/monthly", h.MonthlyReport)

		// Courts
		r.Route("/courts", func(r chi.Router) {
			r.Get("/", h.ListCourts)
			r.Post("/{id}/book", h.BookCourt)
			r.Patch("/{id}/occupancy", h.UpdateOccupancy)
			r.Post("/{id}/release", h.ReleaseCourt)
		})

		// Schedule
		r.Get("/calendar", h.Calendar)

		r.Route("/tournaments", func(r chi.Router) {
			r.Get("/", h.ListTournaments)
			r.Post("/", h.CreateTournament)
			r.Put("/{id}", h.UpdateTournament)
			r.Delete("/{id}", h.DeleteTournament)
		})

		r.Route("/referees", func(r chi.Router) {
			r.Get("/", h.ListReferees)
			r.Post("/", h.CreateReferee)
			r.Put("/{id}", h.UpdateReferee)
			r.Delete("/{id}", h.DeleteReferee)
		})

		r.Route("/matches", func(r chi.Router) {
			r.Post("/", h.CreateMatch)
			r.Post("/{id}/pay", h.PayReferee)
		})

		// Audit
		r.Get("/audit", h.RecentAudit)
	})

	return r
}
