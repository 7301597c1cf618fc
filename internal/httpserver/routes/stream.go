package routes

import (
	"github.com/go-chi/chi/v5"

	"github.com/MrSnakeDoc/lookout/internal/httpserver/deps"
	"github.com/MrSnakeDoc/lookout/internal/httpserver/handlers"
)

func init() { Register(registerStream) }

// The MJPEG stream is long-lived, so it skips the request timeout.
func registerStream(r chi.Router, d deps.Deps) {
	guarded(r, d).Get("/api/sources/{id}/stream", handlers.Stream(d))
}
