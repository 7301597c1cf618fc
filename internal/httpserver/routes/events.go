package routes

import (
	"github.com/go-chi/chi/v5"

	"github.com/MrSnakeDoc/lookout/internal/httpserver/deps"
	"github.com/MrSnakeDoc/lookout/internal/httpserver/handlers"
)

func init() { Register(registerEvents) }

func registerEvents(r chi.Router, d deps.Deps) {
	guarded(r, d).Get("/api/events", handlers.Events(d))
}
