package handlers

import (
	"errors"
	"io"
	"net/http"

	"github.com/MrSnakeDoc/lookout/internal/httpserver/deps"
	"github.com/MrSnakeDoc/lookout/internal/logger"
	"github.com/MrSnakeDoc/lookout/internal/snapshot"
)

type snapshotRequest struct {
	Path string `json:"path"`
}

type snapshotResponse struct {
	Path string `json:"path"`
}

// Snapshot exports the last frame of the selected source into the snapshot
// directory. Without a path the file gets a timestamped name; a path is taken
// relative to the directory and may not escape it.
func Snapshot(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req snapshotRequest
		if err := decodeJSON(r, &req); err != nil && !errors.Is(err, io.EOF) {
			writeError(w, http.StatusBadRequest, "invalid JSON body", d.Logger)
			return
		}

		rec, ok := d.Registry.Selected()
		if !ok {
			writeError(w, http.StatusConflict, "no source selected", d.Logger)
			return
		}
		frame, ok := d.Registry.Frames().Latest(rec.ID())
		if !ok {
			writeError(w, http.StatusConflict, snapshot.ErrNoFrame.Error(), d.Logger)
			return
		}

		path, err := snapshot.Resolve(d.SnapshotDir, req.Path, rec.Config().Name, d.Now())
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error(), d.Logger)
			return
		}
		if err := snapshot.Export(frame.Image, path); err != nil {
			d.Logger.Error("snapshot export failed",
				logger.SourceID(rec.ID()), logger.String("path", path), logger.Error(err))
			writeError(w, http.StatusInternalServerError, "snapshot export failed", d.Logger)
			return
		}

		d.Logger.Info("📸 snapshot saved", logger.SourceID(rec.ID()), logger.String("path", path))
		writeJSON(w, http.StatusCreated, snapshotResponse{Path: path}, d.Logger)
	}
}
