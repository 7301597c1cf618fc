// Package registry owns the ordered source collection: CRUD, display order,
// selection, persistence through the injected settings.Store, and change
// notifications. Worker events reach it through a single queue drained by Run.
package registry

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/MrSnakeDoc/lookout/internal/capture"
	"github.com/MrSnakeDoc/lookout/internal/domain"
	"github.com/MrSnakeDoc/lookout/internal/events"
	"github.com/MrSnakeDoc/lookout/internal/logger"
	"github.com/MrSnakeDoc/lookout/internal/settings"
	"github.com/MrSnakeDoc/lookout/internal/source"
	"github.com/MrSnakeDoc/lookout/internal/stream"
)

const defaultQueueSize = 256

// ErrNotFound is returned by commands addressed to an unknown id.
var ErrNotFound = errors.New("registry: source not found")

// Options tunes the registry. Zero values fall back to defaults.
type Options struct {
	DefaultConnectTimeout time.Duration
	PausePoll             time.Duration
	QueueSize             int
}

type Registry struct {
	mu         sync.Mutex
	order      []*source.Record
	selectedID string
	loaded     atomic.Bool

	store  settings.Store
	opener capture.Opener
	hub    *events.Hub
	frames *FrameCache
	queue  chan stream.Event
	opts   Options
	log    logger.Logger
}

// New wires a registry to its persistence port and capture backend. Call Load
// to populate it and Run to start dispatching worker events.
func New(store settings.Store, opener capture.Opener, hub *events.Hub, opts Options, log logger.Logger) *Registry {
	if opts.DefaultConnectTimeout <= 0 {
		opts.DefaultConnectTimeout = domain.DefaultConnectTimeout
	}
	if opts.QueueSize <= 0 {
		opts.QueueSize = defaultQueueSize
	}
	if hub == nil {
		hub = events.NewHub(log)
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Registry{
		store:  store,
		opener: opener,
		hub:    hub,
		frames: NewFrameCache(),
		queue:  make(chan stream.Event, opts.QueueSize),
		opts:   opts,
		log:    log,
	}
}

func (r *Registry) Hub() *events.Hub { return r.hub }

func (r *Registry) Frames() *FrameCache { return r.frames }

// Loaded reports whether Load has run at least once.
func (r *Registry) Loaded() bool { return r.loaded.Load() }

func (r *Registry) newWorker(cfg stream.Config) source.Worker {
	cfg.PausePoll = r.opts.PausePoll
	return stream.New(cfg, r.opener, r.queue, r.log.With(logger.SourceID(cfg.SourceID)))
}

// Add validates cfg and appends a new record. The id is returned even when
// the save fails; that failure is reported as a save_failed notification.
func (r *Registry) Add(ctx context.Context, cfg domain.SourceConfig) (string, error) {
	cfg = cfg.WithDefaults(r.opts.DefaultConnectTimeout)
	if err := cfg.Validate(); err != nil {
		return "", err
	}

	id := uuid.NewString()
	rec := source.New(id, cfg, r.newWorker, r.log)

	r.mu.Lock()
	r.order = append(r.order, rec)
	saved := r.saveLocked(ctx)
	r.mu.Unlock()

	r.log.Info("source added", logger.SourceID(id), logger.String("address", rec.Address(false)))
	r.afterMutation(saved, events.Notification{Kind: events.Added, SourceID: id, State: domain.StateStopped})
	return id, nil
}

// Update replaces a record's configuration. A running stream keeps its
// current connection until it is restarted.
func (r *Registry) Update(ctx context.Context, id string, cfg domain.SourceConfig) error {
	cfg = cfg.WithDefaults(r.opts.DefaultConnectTimeout)
	if err := cfg.Validate(); err != nil {
		return err
	}

	r.mu.Lock()
	rec, _ := r.findLocked(id)
	if rec == nil {
		r.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	rec.Reconfigure(cfg)
	saved := r.saveLocked(ctx)
	r.mu.Unlock()

	r.afterMutation(saved, events.Notification{Kind: events.Updated, SourceID: id, State: rec.State()})
	return nil
}

// Remove stops the record's worker, drops it, and clears the selection when
// it pointed at the record. It reports false for an unknown id.
func (r *Registry) Remove(ctx context.Context, id string) bool {
	r.mu.Lock()
	rec, idx := r.findLocked(id)
	if rec == nil {
		r.mu.Unlock()
		return false
	}

	rec.Stop()
	r.order = append(r.order[:idx:idx], r.order[idx+1:]...)
	selectionCleared := r.selectedID == id
	if selectionCleared {
		r.selectedID = ""
	}
	saved := r.saveLocked(ctx)
	r.mu.Unlock()

	r.frames.Delete(id)
	r.log.Info("source removed", logger.SourceID(id))

	if selectionCleared {
		r.hub.Publish(events.Notification{Kind: events.SelectionChanged})
	}
	r.afterMutation(saved, events.Notification{Kind: events.Removed, SourceID: id})
	return true
}

// Reorder moves a record to index, clamped to [0, len-1 after removal].
func (r *Registry) Reorder(ctx context.Context, id string, index int) bool {
	r.mu.Lock()
	rec, idx := r.findLocked(id)
	if rec == nil {
		r.mu.Unlock()
		return false
	}

	rest := append(r.order[:idx:idx], r.order[idx+1:]...)
	index = max(0, min(index, len(rest)))

	order := make([]*source.Record, 0, len(rest)+1)
	order = append(order, rest[:index]...)
	order = append(order, rec)
	order = append(order, rest[index:]...)
	r.order = order

	saved := r.saveLocked(ctx)
	r.mu.Unlock()

	r.afterMutation(saved, events.Notification{Kind: events.Reordered})
	return true
}

// Select marks id as selected. Unknown ids are refused without notification.
func (r *Registry) Select(ctx context.Context, id string) bool {
	r.mu.Lock()
	if rec, _ := r.findLocked(id); rec == nil {
		r.mu.Unlock()
		return false
	}
	r.selectedID = id
	saved := r.saveLocked(ctx)
	r.mu.Unlock()

	r.afterMutation(saved, events.Notification{Kind: events.SelectionChanged, SourceID: id})
	return true
}

// Selected returns the selected record, if any.
func (r *Registry) Selected() (*source.Record, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.selectedID == "" {
		return nil, false
	}
	rec, _ := r.findLocked(r.selectedID)
	return rec, rec != nil
}

func (r *Registry) SelectedID() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.selectedID
}

func (r *Registry) Get(id string) (*source.Record, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, _ := r.findLocked(id)
	return rec, rec != nil
}

// All returns the records in display order.
func (r *Registry) All() []*source.Record {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*source.Record, len(r.order))
	copy(out, r.order)
	return out
}

// Views returns read-only snapshots in display order.
func (r *Registry) Views() []source.View {
	recs := r.All()
	out := make([]source.View, 0, len(recs))
	for _, rec := range recs {
		out = append(out, rec.View())
	}
	return out
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.order)
}

func (r *Registry) findLocked(id string) (*source.Record, int) {
	for i, rec := range r.order {
		if rec.ID() == id {
			return rec, i
		}
	}
	return nil, -1
}

func (r *Registry) afterMutation(saved bool, n events.Notification) {
	if !saved {
		r.hub.Publish(events.Notification{Kind: events.SaveFailed, SourceID: n.SourceID})
	}
	r.hub.Publish(n)
}
