package registry

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/MrSnakeDoc/lookout/internal/domain"
	"github.com/MrSnakeDoc/lookout/internal/logger"
	"github.com/MrSnakeDoc/lookout/internal/migrate"
	"github.com/MrSnakeDoc/lookout/internal/settings"
	"github.com/MrSnakeDoc/lookout/internal/source"
)

// Save writes every record, credential-encoded, and the selection, then
// flushes. It reports true only when the backend reports no error.
// In-memory state is never touched.
func (r *Registry) Save(ctx context.Context) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.saveLocked(ctx)
}

func (r *Registry) saveLocked(ctx context.Context) bool {
	if err := r.writeLocked(ctx); err != nil {
		r.log.Warn("⚠️ failed to persist sources, changes may not survive a restart", logger.Error(err))
		return false
	}
	return true
}

func (r *Registry) writeLocked(ctx context.Context) error {
	entries := make([]domain.PersistedSource, 0, len(r.order))
	for _, rec := range r.order {
		entries = append(entries, rec.Serialize())
	}
	data, err := json.Marshal(entries)
	if err != nil {
		return fmt.Errorf("marshal sources: %w", err)
	}

	if err := r.store.SetValue(ctx, settings.KeySources, string(data)); err != nil {
		return fmt.Errorf("write sources: %w", err)
	}
	if r.selectedID != "" {
		err = r.store.SetValue(ctx, settings.KeySelectedID, r.selectedID)
	} else {
		err = r.store.Remove(ctx, settings.KeySelectedID)
	}
	if err != nil {
		return fmt.Errorf("write selection: %w", err)
	}

	if err := r.store.Sync(ctx); err != nil {
		return fmt.Errorf("sync settings: %w", err)
	}
	if err := r.store.Status(); err != nil {
		return fmt.Errorf("settings status: %w", err)
	}
	return nil
}

// Load replaces the collection with what the store holds.
//
// It fails open: a backend in error, or a collection that is not a JSON
// array, leaves the registry empty and returns false. Individual malformed
// entries are skipped. A missing collection is an empty, successful load.
// Any worker running before the call is stopped first.
func (r *Registry) Load(ctx context.Context) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	defer r.loaded.Store(true)

	for _, rec := range r.order {
		rec.Stop()
	}
	r.order = nil
	r.selectedID = ""

	if err := r.store.Status(); err != nil {
		r.log.Warn("⚠️ settings backend reports an error, starting with no sources", logger.Error(err))
		return false
	}

	raw, ok, err := r.store.Value(ctx, settings.KeySources)
	if err != nil {
		r.log.Warn("⚠️ could not read sources, starting with no sources", logger.Error(err))
		return false
	}
	if !ok || raw == "" {
		return true
	}

	var entries []json.RawMessage
	if err := json.Unmarshal([]byte(raw), &entries); err != nil {
		r.log.Error("❌ stored sources are unreadable, starting with no sources", logger.Error(err))
		return false
	}

	for i, entry := range entries {
		var p domain.PersistedSource
		if err := json.Unmarshal(entry, &p); err != nil {
			r.log.Warn("skipping unreadable source entry", logger.Int("index", i), logger.Error(err))
			continue
		}
		rec, err := source.FromPersisted(p, r.opts.DefaultConnectTimeout, r.newWorker, r.log)
		if err != nil {
			r.log.Warn("skipping invalid source entry", logger.Int("index", i), logger.Error(err))
			continue
		}
		if dup, _ := r.findLocked(rec.ID()); dup != nil {
			r.log.Warn("skipping duplicate source entry", logger.Int("index", i), logger.SourceID(rec.ID()))
			continue
		}
		r.order = append(r.order, rec)
	}

	if id, ok, err := r.store.Value(ctx, settings.KeySelectedID); err != nil {
		r.log.Warn("could not read selected source", logger.Error(err))
	} else if ok {
		if rec, _ := r.findLocked(id); rec != nil {
			r.selectedID = id
		}
	}

	r.log.Info("✅ sources loaded",
		logger.Int("count", len(r.order)),
		logger.Int("skipped", len(entries)-len(r.order)))
	return true
}

// Migrate upgrades a legacy single-source layout in place. Run it before Load.
func (r *Registry) Migrate(ctx context.Context) (bool, error) {
	return migrate.Migrate(ctx, r.store, int(r.opts.DefaultConnectTimeout.Seconds()), r.log)
}
