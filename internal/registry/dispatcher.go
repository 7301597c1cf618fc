package registry

import (
	"context"

	"github.com/MrSnakeDoc/lookout/internal/events"
	"github.com/MrSnakeDoc/lookout/internal/logger"
	"github.com/MrSnakeDoc/lookout/internal/stream"
)

// Run drains the worker event queue until ctx is done. It is the only
// consumer of worker events, so events of one source are applied in order.
func (r *Registry) Run(ctx context.Context) {
	r.log.Debug("event dispatcher started")
	for {
		select {
		case <-ctx.Done():
			r.log.Debug("event dispatcher stopped")
			return
		case ev := <-r.queue:
			r.dispatch(ctx, ev)
		}
	}
}

func (r *Registry) dispatch(ctx context.Context, ev stream.Event) {
	rec, ok := r.Get(ev.SourceID)
	if !ok {
		return
	}

	switch ev.Kind {
	case stream.KindFrame:
		if rec.AcceptsFrame(ev.Generation) {
			r.frames.Put(ev.SourceID, ev.Frame, ev.At)
		}

	case stream.KindStatus:
		if !rec.AcceptsStatus(ev.Generation) {
			return
		}
		r.hub.Publish(events.Notification{
			Kind:     events.Status,
			SourceID: ev.SourceID,
			State:    rec.State(),
			Text:     ev.Text,
			At:       ev.At,
		})

	case stream.KindFirstFrame, stream.KindError:
		if !rec.Apply(ev) {
			return
		}
		kind := events.FirstFrame
		if ev.Kind == stream.KindError {
			kind = events.Error
			r.log.Warn("source entered error state", logger.SourceID(ev.SourceID), logger.String("reason", ev.Text))
		}
		r.hub.Publish(events.Notification{
			Kind:     kind,
			SourceID: ev.SourceID,
			State:    rec.State(),
			Text:     ev.Text,
			At:       ev.At,
		})
		r.persistChange(ctx, rec)
	}
}
