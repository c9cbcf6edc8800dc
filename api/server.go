// Package api serves schedules and daily medications over HTTP with the same
// JSON contract the remote client speaks.
package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// NewRouter with every route and the middleware stack
func NewRouter(h *Handler) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
	}))

	r.Route("/schedules", func(r chi.Router) {
		r.Get("/", h.ListSchedules)
		r.Post("/", h.CreateSchedule)
		r.Put("/{id}", h.UpdateSchedule)
		r.Delete("/{id}", h.DeleteSchedule)
	})

	r.Route("/daily-medications", func(r chi.Router) {
		r.Get("/", h.ListOccurrences)
		// registered before /{id} so "reset" is never read as an id
		r.Post("/reset", h.ResetOccurrences)
		r.Put("/{id}", h.UpdateOccurrence)
		r.Delete("/{id}", h.DeleteOccurrence)
	})

	return r
}
