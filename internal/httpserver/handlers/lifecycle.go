package handlers

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/MrSnakeDoc/lookout/internal/httpserver/deps"
	"github.com/MrSnakeDoc/lookout/internal/logger"
	"github.com/MrSnakeDoc/lookout/internal/registry"
)

// Command adapts a registry lifecycle command (start, stop, retry) to an
// endpoint. The command is asynchronous: progress arrives on the event stream.
func Command(d deps.Deps, name string, fn func(*registry.Registry, context.Context, string) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		if err := fn(d.Registry, r.Context(), id); err != nil {
			writeRegistryError(w, err, d.Logger)
			return
		}
		d.Logger.Debug("source command accepted", logger.String("command", name), logger.SourceID(id))
		w.WriteHeader(http.StatusAccepted)
	}
}

type pauseRequest struct {
	Paused *bool `json:"paused"`
}

type pauseResponse struct {
	Changed bool `json:"changed"`
}

func Pause(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req pauseRequest
		if err := decodeJSON(r, &req); err != nil || req.Paused == nil {
			writeError(w, http.StatusBadRequest, `body must be {"paused": bool}`, d.Logger)
			return
		}

		changed, err := d.Registry.Pause(r.Context(), chi.URLParam(r, "id"), *req.Paused)
		if err != nil {
			writeRegistryError(w, err, d.Logger)
			return
		}
		writeJSON(w, http.StatusOK, pauseResponse{Changed: changed}, d.Logger)
	}
}
