// Package api wires the HTTP routes of the assistant.
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/dvloznov/finance-assistant/internal/api/handlers"
	"github.com/dvloznov/finance-assistant/internal/api/middleware"
	"github.com/dvloznov/finance-assistant/internal/assistant"
	"github.com/dvloznov/finance-assistant/internal/jobs"
	"github.com/dvloznov/finance-assistant/internal/session"
)

// Deps are the collaborators the router needs. Jobs may be nil.
type Deps struct {
	Assistant      *assistant.Service
	Sessions       session.Store
	Jobs           jobs.JobStore
	MaxUploadBytes int64
	SecureCookies  bool
	Log            zerolog.Logger
}

// NewRouter wires HTTP routes to core services.
func NewRouter(d Deps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Recovery(d.Log))
	r.Use(middleware.Logger(d.Log))
	r.Use(middleware.RequestID)
	r.Use(middleware.CORS)

	assistantHandler := handlers.NewAssistantHandler(d.Assistant, d.MaxUploadBytes, d.Log)
	jobsHandler := handlers.NewJobsHandler(d.Jobs, d.Log)

	r.Get("/health", handlers.Health)

	r.Group(func(r chi.Router) {
		r.Use(middleware.Session(d.Sessions, d.SecureCookies))

		r.Get("/", assistantHandler.Index)
		r.Post("/analyze", assistantHandler.Analyze)
		r.Post("/clear_history", assistantHandler.ClearHistory)

		r.Route("/api", func(api chi.Router) {
			api.Get("/history", assistantHandler.History)
			api.Get("/jobs", jobsHandler.ListJobs)
			api.Get("/jobs/{jobID}", func(w http.ResponseWriter, r *http.Request) {
				jobsHandler.GetJob(w, r, chi.URLParam(r, "jobID"))
			})
		})
	})

	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
	})
	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		middleware.WriteError(w, http.StatusNotFound, "Not found")
	})

	return r
}
