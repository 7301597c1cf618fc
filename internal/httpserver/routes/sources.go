package routes

import (
	"github.com/go-chi/chi/v5"

	"github.com/MrSnakeDoc/lookout/internal/httpserver/deps"
	"github.com/MrSnakeDoc/lookout/internal/httpserver/handlers"
	srcregistry "github.com/MrSnakeDoc/lookout/internal/registry"
)

func init() { Register(registerSources) }

func registerSources(r chi.Router, d deps.Deps) {
	api := guarded(r, d).With(requestTimeout(d))

	api.Get("/api/sources", handlers.ListSources(d))
	api.Post("/api/sources", handlers.AddSource(d))
	api.Get("/api/sources/{id}", handlers.GetSource(d))
	api.Put("/api/sources/{id}", handlers.UpdateSource(d))
	api.Delete("/api/sources/{id}", handlers.RemoveSource(d))

	api.Post("/api/sources/{id}/start", handlers.Command(d, "start", (*srcregistry.Registry).Start))
	api.Post("/api/sources/{id}/stop", handlers.Command(d, "stop", (*srcregistry.Registry).Stop))
	api.Post("/api/sources/{id}/retry", handlers.Command(d, "retry", (*srcregistry.Registry).Retry))
	api.Post("/api/sources/{id}/pause", handlers.Pause(d))
	api.Put("/api/sources/{id}/position", handlers.MoveSource(d))
	api.Post("/api/sources/{id}/select", handlers.SelectSource(d))
	api.Get("/api/sources/{id}/frame", handlers.Frame(d))

	api.Get("/api/selected", handlers.Selected(d))
}
