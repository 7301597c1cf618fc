package handlers

import (
	"net/http"

	"github.com/MrSnakeDoc/lookout/internal/httpserver/deps"
	"github.com/MrSnakeDoc/lookout/internal/logger"
)

type candidatePayload struct {
	Instance string        `json:"instance"`
	Config   sourcePayload `json:"config"`
}

type discoverResponse struct {
	Candidates []candidatePayload `json:"candidates"`
}

// Discover browses the local network for sources that can be added.
func Discover(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if d.Discover == nil {
			writeError(w, http.StatusServiceUnavailable, "discovery disabled", d.Logger)
			return
		}

		found, err := d.Discover(r.Context(), d.DiscoveryTimeout, d.Logger)
		if err != nil {
			d.Logger.Warn("discovery failed", logger.Error(err))
			writeError(w, http.StatusBadGateway, "discovery failed", d.Logger)
			return
		}

		resp := discoverResponse{Candidates: make([]candidatePayload, 0, len(found))}
		for _, c := range found {
			resp.Candidates = append(resp.Candidates, candidatePayload{
				Instance: c.Instance,
				Config:   payloadFrom(c.Config),
			})
		}
		writeJSON(w, http.StatusOK, resp, d.Logger)
	}
}
