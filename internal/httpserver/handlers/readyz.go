package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/MrSnakeDoc/lookout/internal/httpserver/deps"
)

type readyzResponse struct {
	Ready   bool `json:"ready"`
	Sources int  `json:"sources"`
}

// Readyz reports ready once the registry has loaded its sources.
func Readyz(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ready := d.Registry != nil && d.Registry.Loaded()
		resp := readyzResponse{Ready: ready}
		status := http.StatusServiceUnavailable
		if ready {
			resp.Sources = d.Registry.Len()
			status = http.StatusOK
		}

		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Cache-Control", "no-store")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(resp)
	}
}
