package routes

import (
	"github.com/go-chi/chi/v5"

	"github.com/MrSnakeDoc/lookout/internal/httpserver/deps"
	"github.com/MrSnakeDoc/lookout/internal/httpserver/handlers"
)

func init() { Register(registerDiscover) }

// Discovery blocks for the whole browse window, so it gets no request timeout.
func registerDiscover(r chi.Router, d deps.Deps) {
	guarded(r, d).With(rateLimited(d)).Get("/api/discover", handlers.Discover(d))
}
