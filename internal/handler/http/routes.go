package http

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

func (h *Handler) Init() *chi.Mux {
	router := chi.NewRouter()
	router.Use(middleware.Recoverer)
	router.Use(h.withTraceID)
	router.Use(h.withLogging)

	// routes without session authorization
	router.Group(func(r chi.Router) {
		r.Post("/api/sessions", h.createSession)
		r.Get("/api/sessions/{sessionID}", h.sessionInfo)
		r.Get("/api/sessions/{sessionID}/health", h.sessionHealth)
		r.Get("/api/stats", h.stats)
		r.Get("/api/version", h.buildVersion)
	})

	// routes mutating a session require its bearer token
	router.Group(func(r chi.Router) {
		r.Use(h.requireSessionToken)
		r.Post("/api/sessions/{sessionID}/schema", h.pushSchema)
		r.Post("/api/sessions/{sessionID}/extend", h.extendSession)
		r.Delete("/api/sessions/{sessionID}", h.deleteSession)
	})

	return router
}
