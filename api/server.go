/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. Logger:     Request logging
  2. Recoverer:  Panic recovery (500 instead of crash)
  3. RequestID:  Unique ID per request for tracing
  4. CORS:       Cross-origin requests for frontend
  5. Auth:       JWT bearer verification on every route except the demo
                 token endpoint

ROUTE GROUPS:
  /api/ksis/*               KSI management + nested structure
  /api/milestones/*         Milestone management
  /api/kpis/*               KPI management
  /api/major-activities/*   Activity management + department assignments
  /api/tasks/*              Task management + position assignment
  /api/departments/*        Org reference data
  /api/positions/*
  /api/challenge-types/*
  /api/challenge-groups/*
  /api/scenarios/*          Demo scenarios (dev only)
  /api/auth/token           Demo token minting (dev only, unauthenticated)

SEE ALSO:
  - handlers.go: Handler implementations
  - auth/auth.go: Bearer middleware
  - cmd/server/main.go: Server startup
*/
package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/warp/initiative-engine/auth"
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

	r.Route("/api", func(r chi.Router) {
		// Demo token minting stays outside the auth gate.
		r.Post("/auth/token", h.IssueToken)

		r.Group(func(r chi.Router) {
			r.Use(auth.Middleware(h.secret))

			// KSI routes
			r.Route("/ksis", func(r chi.Router) {
				r.Get("/", h.ListKSIs)
				r.Post("/", h.CreateKSI)
				r.Get("/structure", h.Structure)
				r.Get("/{id}", h.GetKSI)
				r.Put("/{id}", h.UpdateKSI)
				r.Patch("/{id}", h.UpdateKSI)
				r.Delete("/{id}", h.DeleteKSI)
			})

			// Milestone routes
			r.Route("/milestones", func(r chi.Router) {
				r.Get("/", h.ListMilestones)
				r.Post("/", h.CreateMilestone)
				r.Get("/{id}", h.GetMilestone)
				r.Put("/{id}", h.UpdateMilestone)
				r.Patch("/{id}", h.UpdateMilestone)
				r.Delete("/{id}", h.DeleteMilestone)
			})

			// KPI routes
			r.Route("/kpis", func(r chi.Router) {
				r.Get("/", h.ListKPIs)
				r.Post("/", h.CreateKPI)
				r.Get("/{id}", h.GetKPI)
				r.Put("/{id}", h.UpdateKPI)
				r.Patch("/{id}", h.UpdateKPI)
				r.Delete("/{id}", h.DeleteKPI)
			})

			// Major activity routes
			r.Route("/major-activities", func(r chi.Router) {
				r.Get("/", h.ListActivities)
				r.Post("/", h.CreateActivity)
				r.Get("/assigned", h.AssignedActivities)
				r.Get("/{id}", h.GetActivity)
				r.Put("/{id}", h.UpdateActivity)
				r.Patch("/{id}", h.UpdateActivity)
				r.Delete("/{id}", h.DeleteActivity)
			})

			// Task routes
			r.Route("/tasks", func(r chi.Router) {
				r.Get("/", h.ListTasks)
				r.Post("/", h.CreateTask)
				r.Get("/{id}", h.GetTask)
				r.Put("/{id}", h.UpdateTask)
				r.Patch("/{id}", h.UpdateTask)
				r.Delete("/{id}", h.DeleteTask)
				r.Post("/{id}/add_positions", h.AddPositions)
				r.Post("/{id}/remove_positions", h.RemovePositions)
			})

			// Org data routes
			r.Route("/departments", func(r chi.Router) {
				r.Get("/", h.ListDepartments)
				r.Post("/", h.CreateDepartment)
				r.Get("/{id}", h.GetDepartment)
				r.Put("/{id}", h.UpdateDepartment)
				r.Delete("/{id}", h.DeleteDepartment)
			})
			r.Route("/positions", func(r chi.Router) {
				r.Get("/", h.ListPositions)
				r.Post("/", h.CreatePosition)
				r.Get("/{id}", h.GetPosition)
				r.Put("/{id}", h.UpdatePosition)
				r.Delete("/{id}", h.DeletePosition)
			})
			r.Route("/challenge-types", func(r chi.Router) {
				r.Get("/", h.ListChallengeTypes)
				r.Post("/", h.CreateChallengeType)
				r.Get("/{id}", h.GetChallengeType)
				r.Put("/{id}", h.UpdateChallengeType)
				r.Delete("/{id}", h.DeleteChallengeType)
			})
			r.Route("/challenge-groups", func(r chi.Router) {
				r.Get("/", h.ListChallengeGroups)
				r.Post("/", h.CreateChallengeGroup)
				r.Get("/{id}", h.GetChallengeGroup)
				r.Put("/{id}", h.UpdateChallengeGroup)
				r.Delete("/{id}", h.DeleteChallengeGroup)
			})

			// Scenario routes
			r.Route("/scenarios", func(r chi.Router) {
				r.Get("/", h.ListScenarios)
				r.Post("/load", h.LoadScenario)
			})
		})
	})

	return r
}
