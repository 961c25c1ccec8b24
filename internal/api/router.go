package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/starford/agevault/internal/pipelineservice"
)

// NewRouter returns the read-only status routes, meant to be mounted under
// /api. events, when non-nil, is served at GET /events behind the same auth.
func NewRouter(svc *pipelineservice.Service, authEnabled bool, token string, events http.Handler) chi.Router {
	h := NewHandler(svc)

	r := chi.NewRouter()
	r.Use(AuthMiddleware(authEnabled, token))

	r.Group(func(r chi.Router) {
		r.Use(middleware.NoCache)
		r.Get("/status", h.Status)
		r.Get("/stages/{stage}", h.ListStage)
		r.Get("/history", h.History)
	})

	if events != nil {
		r.Method(http.MethodGet, "/events", events)
	}

	return r
}
