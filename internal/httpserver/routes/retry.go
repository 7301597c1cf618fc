package routes

import (
	"github.com/go-chi/chi/v5"

	"github.com/MrSnakeDoc/lookout/internal/httpserver/deps"
	"github.com/MrSnakeDoc/lookout/internal/httpserver/handlers"
)

func init() { Register(registerRetry) }

func registerRetry(r chi.Router, d deps.Deps) {
	guarded(r, d).Post("/api/retry", handlers.Retry(d))
}
