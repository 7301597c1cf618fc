package handlers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/MrSnakeDoc/lookout/internal/domain"
	"github.com/MrSnakeDoc/lookout/internal/httpserver/deps"
	"github.com/MrSnakeDoc/lookout/internal/source"
)

// sourcePayload is the wire form of a source configuration. The password is
// accepted on input and never written back.
type sourcePayload struct {
	Name           string            `json:"name"`
	Location       string            `json:"location,omitempty"`
	Protocol       string            `json:"protocol,omitempty"`
	Host           string            `json:"host"`
	Port           int               `json:"port,omitempty"`
	Path           string            `json:"path,omitempty"`
	Username       string            `json:"username,omitempty"`
	Password       string            `json:"password,omitempty"`
	Resolution     domain.Resolution `json:"resolution"`
	ConnectTimeout int               `json:"connect_timeout,omitempty"` // seconds
}

func (p sourcePayload) config() domain.SourceConfig {
	return domain.SourceConfig{
		Name:           p.Name,
		Location:       p.Location,
		Protocol:       p.Protocol,
		Host:           p.Host,
		Port:           p.Port,
		Path:           p.Path,
		Username:       p.Username,
		Password:       p.Password,
		Resolution:     p.Resolution,
		ConnectTimeout: time.Duration(p.ConnectTimeout) * time.Second,
	}
}

func payloadFrom(cfg domain.SourceConfig) sourcePayload {
	return sourcePayload{
		Name:           cfg.Name,
		Location:       cfg.Location,
		Protocol:       cfg.Protocol,
		Host:           cfg.Host,
		Port:           cfg.Port,
		Path:           cfg.Path,
		Username:       cfg.Username,
		Resolution:     cfg.Resolution,
		ConnectTimeout: int(cfg.ConnectTimeout / time.Second),
	}
}

type sourcesResponse struct {
	Sources    []source.View `json:"sources"`
	SelectedID string        `json:"selected_id,omitempty"`
}

type addResponse struct {
	ID string `json:"id"`
}

// ListSources returns the sources in display order and the selection.
func ListSources(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, sourcesResponse{
			Sources:    d.Registry.Views(),
			SelectedID: d.Registry.SelectedID(),
		}, d.Logger)
	}
}

func GetSource(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rec, ok := d.Registry.Get(chi.URLParam(r, "id"))
		if !ok {
			writeError(w, http.StatusNotFound, "source not found", d.Logger)
			return
		}
		writeJSON(w, http.StatusOK, rec.View(), d.Logger)
	}
}

func AddSource(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var p sourcePayload
		if err := decodeJSON(r, &p); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body", d.Logger)
			return
		}

		id, err := d.Registry.Add(r.Context(), p.config())
		if err != nil {
			writeRegistryError(w, err, d.Logger)
			return
		}
		writeJSON(w, http.StatusCreated, addResponse{ID: id}, d.Logger)
	}
}

// UpdateSource replaces a source configuration. An omitted password keeps
// the stored one.
func UpdateSource(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		rec, ok := d.Registry.Get(id)
		if !ok {
			writeError(w, http.StatusNotFound, "source not found", d.Logger)
			return
		}

		var p sourcePayload
		if err := decodeJSON(r, &p); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body", d.Logger)
			return
		}
		cfg := p.config()
		if p.Password == "" && p.Username == rec.Config().Username {
			cfg.Password = rec.Config().Password
		}

		if err := d.Registry.Update(r.Context(), id, cfg); err != nil {
			writeRegistryError(w, err, d.Logger)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func RemoveSource(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !d.Registry.Remove(r.Context(), chi.URLParam(r, "id")) {
			writeError(w, http.StatusNotFound, "source not found", d.Logger)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

type positionRequest struct {
	Index *int `json:"index"`
}

// MoveSource moves a source to a new position in the display order.
func MoveSource(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req positionRequest
		if err := decodeJSON(r, &req); err != nil || req.Index == nil {
			writeError(w, http.StatusBadRequest, `body must be {"index": n}`, d.Logger)
			return
		}
		if !d.Registry.Reorder(r.Context(), chi.URLParam(r, "id"), *req.Index) {
			writeError(w, http.StatusNotFound, "source not found", d.Logger)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func SelectSource(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !d.Registry.Select(r.Context(), chi.URLParam(r, "id")) {
			writeError(w, http.StatusNotFound, "source not found", d.Logger)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// Selected returns the selected source, or 204 when nothing is selected.
func Selected(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rec, ok := d.Registry.Selected()
		if !ok {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		writeJSON(w, http.StatusOK, rec.View(), d.Logger)
	}
}
