package app

import (
	"context"
	"fmt"
	"io"

	"github.com/MrSnakeDoc/lookout/internal/capture"
	"github.com/MrSnakeDoc/lookout/internal/config"
	"github.com/MrSnakeDoc/lookout/internal/events"
	"github.com/MrSnakeDoc/lookout/internal/logger"
	"github.com/MrSnakeDoc/lookout/internal/registry"
	"github.com/MrSnakeDoc/lookout/internal/settings"
)

// offline is used by one-shot commands that read or rewrite the settings but
// never stream.
var offline = capture.OpenerFunc(func(context.Context, string) (capture.Handle, error) {
	return nil, fmt.Errorf("%w: streaming disabled in this command", capture.ErrOpenFailed)
})

func offlineRegistry(store settings.Store, cfg *config.Config, log logger.Logger) *registry.Registry {
	return registry.New(store, offline, events.NewHub(log), registry.Options{
		DefaultConnectTimeout: cfg.DefaultConnectTimeout,
	}, log)
}

// Migrate converts legacy single-camera settings in the configured store and
// reports whether anything was converted.
func Migrate(ctx context.Context) (bool, error) {
	cfg := config.Load()
	log := logger.New(cfg.LogLevel, cfg.PrettyLog)

	store, err := OpenStore(ctx, cfg, log)
	if err != nil {
		return false, err
	}
	defer func() { _ = store.Close() }()

	return offlineRegistry(store, cfg, log).Migrate(ctx)
}

// ListSources prints the persisted sources in display order, one safe line
// each, marking the selected one.
func ListSources(ctx context.Context, w io.Writer) error {
	cfg := config.Load()
	log := logger.New(cfg.LogLevel, cfg.PrettyLog)

	store, err := OpenStore(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	reg := offlineRegistry(store, cfg, log)
	if !reg.Load(ctx) {
		return fmt.Errorf("failed to load sources from %s backend", cfg.SettingsBackend)
	}
	return printSources(w, reg)
}

func printSources(w io.Writer, reg *registry.Registry) error {
	selected := reg.SelectedID()
	for i, rec := range reg.All() {
		mark := " "
		if rec.ID() == selected {
			mark = "*"
		}
		if _, err := fmt.Fprintf(w, "%s %d. %s\n", mark, i+1, rec); err != nil {
			return err
		}
	}
	return nil
}
