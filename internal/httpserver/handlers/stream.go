package handlers

import (
	"bytes"
	"context"
	"errors"
	"image/jpeg"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/MrSnakeDoc/lookout/internal/httpserver/deps"
	"github.com/MrSnakeDoc/lookout/internal/logger"
)

const (
	streamBoundary = "lookout-frame"
	// streamRecheck bounds each wait for a frame so a removed source ends the stream.
	streamRecheck   = time.Second
	streamWriteWait = 10 * time.Second
)

// Stream pushes every new frame of a source as an MJPEG
// (multipart/x-mixed-replace) response until the client goes away or the
// source is removed. Frames produced while the client is still writing the
// previous one are skipped.
func Stream(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		if _, ok := d.Registry.Get(id); !ok {
			writeError(w, http.StatusNotFound, "source not found", d.Logger)
			return
		}

		w.Header().Set("Content-Type", "multipart/x-mixed-replace; boundary="+streamBoundary)
		w.Header().Set("Cache-Control", "no-store")
		w.WriteHeader(http.StatusOK)

		rc := http.NewResponseController(w)
		_ = rc.Flush()

		parts := multipart.NewWriter(w)
		if err := parts.SetBoundary(streamBoundary); err != nil {
			d.Logger.Error("invalid stream boundary", logger.Error(err))
			return
		}

		log := d.Logger.With(logger.SourceID(id))
		log.Debug("frame stream opened")
		defer log.Debug("frame stream closed")

		var (
			seq uint64
			buf bytes.Buffer
		)
		for {
			wait, cancel := context.WithTimeout(r.Context(), streamRecheck)
			frame, err := d.Registry.Frames().Next(wait, id, seq)
			cancel()
			if err != nil {
				if r.Context().Err() != nil {
					return
				}
				if _, ok := d.Registry.Get(id); !ok || !errors.Is(err, context.DeadlineExceeded) {
					return
				}
				continue
			}
			seq = frame.Seq

			buf.Reset()
			if err := jpeg.Encode(&buf, frame.Image, &jpeg.Options{Quality: frameQuality}); err != nil {
				log.Error("failed to encode frame", logger.Error(err))
				return
			}

			_ = rc.SetWriteDeadline(time.Now().Add(streamWriteWait))
			part, err := parts.CreatePart(textproto.MIMEHeader{
				"Content-Type":   {"image/jpeg"},
				"Content-Length": {strconv.Itoa(buf.Len())},
				"X-Frame-Seq":    {strconv.FormatUint(frame.Seq, 10)},
			})
			if err != nil {
				return
			}
			if _, err := part.Write(buf.Bytes()); err != nil {
				log.Debug("frame stream write failed", logger.Error(err))
				return
			}
			if err := rc.Flush(); err != nil {
				return
			}
		}
	}
}
