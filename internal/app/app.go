package app

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/MrSnakeDoc/lookout/internal/capture/gst"
	"github.com/MrSnakeDoc/lookout/internal/config"
	"github.com/MrSnakeDoc/lookout/internal/discovery"
	"github.com/MrSnakeDoc/lookout/internal/events"
	"github.com/MrSnakeDoc/lookout/internal/httpserver"
	"github.com/MrSnakeDoc/lookout/internal/httpserver/deps"
	"github.com/MrSnakeDoc/lookout/internal/logger"
	"github.com/MrSnakeDoc/lookout/internal/registry"
	"github.com/MrSnakeDoc/lookout/internal/scheduler"
	"github.com/MrSnakeDoc/lookout/internal/version"
)

type App struct {
	cfg      *config.Config
	logger   logger.Logger
	server   *httpserver.Server
	store    *Store
	hub      *events.Hub
	registry *registry.Registry
	retrier  *scheduler.AutoRetrier
}

func New() *App {
	cfg := config.Load()

	loggerClient := logger.New(cfg.LogLevel, cfg.PrettyLog)

	// Settings store - fail fast if unavailable
	store, err := OpenStore(context.Background(), cfg, loggerClient)
	if err != nil {
		loggerClient.Errorf("Failed to open settings store: %v", err)
		os.Exit(1)
	}

	// Capture backend - nothing works without it
	opener, err := gst.NewOpener(gst.Options{
		ReadTimeout: cfg.ReadTimeout,
		Logger:      loggerClient,
	})
	if err != nil {
		loggerClient.Errorf("Failed to initialize capture backend: %v", err)
		os.Exit(1)
	}
	loggerClient.Info("GStreamer capture backend initialized")

	hub := events.NewHub(loggerClient)
	reg := registry.New(store, opener, hub, registry.Options{
		DefaultConnectTimeout: cfg.DefaultConnectTimeout,
		PausePoll:             cfg.PausePoll,
		QueueSize:             cfg.EventQueue,
	}, loggerClient)

	// Create manual retry trigger channel
	retryTrigger := make(chan struct{}, 1)
	retrier := scheduler.NewAutoRetrier(reg, loggerClient, cfg.RetryInterval, retryTrigger)

	// Dependencies passed to routes (extend as needed).
	d := deps.Deps{
		Logger:           loggerClient,
		StartTime:        time.Now(),
		Version:          version.Version,
		Commit:           version.Commit,
		BuildDate:        version.BuildDate,
		GoVersion:        version.GoVersion,
		TimeNow:          time.Now,
		AllowedHosts:     cfg.AllowedHosts,
		AllowedCIDRS:     cfg.AllowedCIDRS,
		TrustProxy:       cfg.TrustProxy,
		RateBurst:        cfg.RateBurst,
		RatePerMin:       cfg.RatePerMin,
		Registry:         reg,
		SnapshotDir:      cfg.SnapshotDir,
		RetryTrigger:     retryTrigger,
		DiscoveryTimeout: cfg.DiscoveryTimeout,
		Discover:         discovery.Discover,
	}

	server := httpserver.New(cfg, loggerClient, d)

	return &App{
		cfg:      cfg,
		logger:   loggerClient,
		server:   server,
		store:    store,
		hub:      hub,
		registry: reg,
		retrier:  retrier,
	}
}

func (a *App) Run() error {
	a.logger.Infof("🚀 Starting Lookout v%s on %s", version.Version, a.cfg.ListenPort)
	a.logger.Infof("Lookout %s (commit=%s, built=%s, go=%s)",
		version.Version, version.Commit, version.BuildDate, version.GoVersion)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if a.cfg.MigrateOnStart {
		migrated, err := a.registry.Migrate(ctx)
		if err != nil {
			return fmt.Errorf("failed to migrate legacy settings: %w", err)
		}
		if migrated {
			a.logger.Info("legacy single-camera settings migrated")
		}
	}

	if !a.registry.Load(ctx) {
		a.logger.Warn("failed to load sources, starting with an empty list")
	}
	a.logger.Info("sources loaded", logger.Int("count", a.registry.Len()))

	// The dispatcher outlives the signal context so worker teardown events
	// are still drained during shutdown.
	dispatchCtx, stopDispatch := context.WithCancel(context.Background())
	dispatched := make(chan struct{})
	go func() {
		a.registry.Run(dispatchCtx)
		close(dispatched)
	}()

	if a.cfg.ResumeActive {
		n := a.registry.ResumeActive(ctx)
		a.logger.Info("resumed previously active sources", logger.Int("count", n))
	}

	if err := a.retrier.Start(ctx); err != nil {
		stopDispatch()
		return fmt.Errorf("failed to start auto retrier: %w", err)
	}

	errCh := make(chan error, 1)
	go func() {
		if err := a.server.Start(); err != nil {
			errCh <- fmt.Errorf("http server error: %w", err)
		}
	}()

	var runErr error
	select {
	case <-ctx.Done():
		a.logger.Info("⏳ Shutting down gracefully...")
	case runErr = <-errCh:
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.ShutdownTimeout)
	defer cancel()

	if err := a.server.Stop(shutdownCtx); err != nil && runErr == nil {
		runErr = fmt.Errorf("failed to stop server: %w", err)
	}

	a.retrier.Stop()

	if err := a.registry.Shutdown(shutdownCtx); err != nil {
		a.logger.Warn("not every stream stopped in time", logger.Error(err))
	} else {
		a.logger.Info("✅ All streams stopped")
	}
	a.hub.Close()
	stopDispatch()
	<-dispatched

	if err := a.store.Close(); err != nil {
		a.logger.Warnf("failed to close settings store: %v", err)
	}

	if runErr != nil {
		return runErr
	}
	a.logger.Info("✅ Lookout stopped cleanly")
	_ = a.logger.Sync()
	return nil
}
