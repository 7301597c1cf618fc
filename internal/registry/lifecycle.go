package registry

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/MrSnakeDoc/lookout/internal/domain"
	"github.com/MrSnakeDoc/lookout/internal/events"
	"github.com/MrSnakeDoc/lookout/internal/logger"
	"github.com/MrSnakeDoc/lookout/internal/source"
)

// Start launches (or relaunches) the stream of a record.
func (r *Registry) Start(ctx context.Context, id string) error {
	return r.command(ctx, id, func(rec *source.Record) (bool, error) {
		return true, rec.Start()
	})
}

// Stop stops the stream of a record. Stopping a stopped record is a no-op.
func (r *Registry) Stop(ctx context.Context, id string) error {
	return r.command(ctx, id, func(rec *source.Record) (bool, error) {
		before := rec.State()
		rec.Stop()
		return before != domain.StateStopped, nil
	})
}

// Pause pauses or resumes a running stream. It reports whether anything changed.
func (r *Registry) Pause(ctx context.Context, id string, paused bool) (bool, error) {
	var changed bool
	err := r.command(ctx, id, func(rec *source.Record) (bool, error) {
		changed = rec.Pause(paused)
		return changed, nil
	})
	return changed, err
}

// Retry clears the last error and starts the record again.
func (r *Registry) Retry(ctx context.Context, id string) error {
	return r.command(ctx, id, func(rec *source.Record) (bool, error) {
		return true, rec.Retry()
	})
}

func (r *Registry) command(ctx context.Context, id string, fn func(*source.Record) (bool, error)) error {
	rec, ok := r.Get(id)
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	changed, err := fn(rec)
	if changed {
		r.persistChange(ctx, rec)
	}
	return err
}

// persistChange saves after a record changed state and notifies updated.
func (r *Registry) persistChange(ctx context.Context, rec *source.Record) {
	saved := r.Save(ctx)
	r.afterMutation(saved, events.Notification{
		Kind:     events.Updated,
		SourceID: rec.ID(),
		State:    rec.State(),
		Text:     rec.LastError(),
	})
}

// RetryErrored restarts every record in ERROR and returns how many were retried.
func (r *Registry) RetryErrored(ctx context.Context) int {
	n := 0
	for _, rec := range r.All() {
		retried, err := rec.RetryIfErrored()
		if !retried {
			continue
		}
		r.persistChange(ctx, rec)
		if err != nil {
			r.log.Warn("retry failed", logger.SourceID(rec.ID()), logger.Error(err))
			continue
		}
		n++
	}
	return n
}

// ResumeActive starts every record that was persisted in an active state.
func (r *Registry) ResumeActive(ctx context.Context) int {
	n := 0
	for _, rec := range r.All() {
		if !rec.WasActive() {
			continue
		}
		if err := r.Start(ctx, rec.ID()); err != nil {
			r.log.Warn("resume failed", logger.SourceID(rec.ID()), logger.Error(err))
			continue
		}
		n++
	}
	return n
}

// Shutdown stops every worker concurrently. The persisted states are left as
// they were so that active sources can be resumed on the next start.
func (r *Registry) Shutdown(ctx context.Context) error {
	var g errgroup.Group
	for _, rec := range r.All() {
		if !rec.HasWorker() {
			continue
		}
		rec := rec
		g.Go(func() error {
			rec.Stop()
			return nil
		})
	}

	done := make(chan error, 1)
	go func() { done <- g.Wait() }()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return fmt.Errorf("stop workers: %w", ctx.Err())
	}
}
