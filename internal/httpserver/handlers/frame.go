package handlers

import (
	"bytes"
	"image/jpeg"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/MrSnakeDoc/lookout/internal/httpserver/deps"
	"github.com/MrSnakeDoc/lookout/internal/logger"
)

const frameQuality = 85

// Frame serves the last frame of a source as a JPEG.
func Frame(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		if _, ok := d.Registry.Get(id); !ok {
			writeError(w, http.StatusNotFound, "source not found", d.Logger)
			return
		}

		frame, ok := d.Registry.Frames().Latest(id)
		if !ok {
			writeError(w, http.StatusNotFound, "no frame available", d.Logger)
			return
		}

		var buf bytes.Buffer
		if err := jpeg.Encode(&buf, frame.Image, &jpeg.Options{Quality: frameQuality}); err != nil {
			d.Logger.Error("failed to encode frame", logger.SourceID(id), logger.Error(err))
			writeError(w, http.StatusInternalServerError, "encode failed", d.Logger)
			return
		}

		w.Header().Set("Content-Type", "image/jpeg")
		w.Header().Set("Cache-Control", "no-store")
		w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
		w.Header().Set("X-Frame-Seq", strconv.FormatUint(frame.Seq, 10))
		if _, err := w.Write(buf.Bytes()); err != nil {
			d.Logger.Debug("failed to write response", logger.Error(err))
		}
	}
}
