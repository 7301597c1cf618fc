package routes

import (
	"github.com/go-chi/chi/v5"

	"github.com/MrSnakeDoc/lookout/internal/httpserver/deps"
	"github.com/MrSnakeDoc/lookout/internal/httpserver/handlers"
)

func init() { Register(registerSnapshot) }

func registerSnapshot(r chi.Router, d deps.Deps) {
	guarded(r, d).With(rateLimited(d), requestTimeout(d)).Post("/api/snapshot", handlers.Snapshot(d))
}
