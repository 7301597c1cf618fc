// Package source holds the per-source record: configuration, lifecycle state
// and the single stream worker an active source owns.
package source

import (
	"fmt"
	"net"
	"net/url"
	"strconv"
	"sync"

	"github.com/MrSnakeDoc/lookout/internal/domain"
	"github.com/MrSnakeDoc/lookout/internal/logger"
	"github.com/MrSnakeDoc/lookout/internal/stream"
)

// Worker is what a record needs from a stream worker.
type Worker interface {
	Start() error
	Stop()
	Pause(paused bool)
	Alive() bool
}

// WorkerFactory builds a fresh worker for one activation.
type WorkerFactory func(cfg stream.Config) Worker

// Record is one configured source.
//
// Invariant: worker is non-nil only while state is STARTING, RUNNING or PAUSED,
// and a new worker is created only after the previous one has fully stopped.
type Record struct {
	mu sync.Mutex

	id        string
	cfg       domain.SourceConfig
	state     domain.State
	lastError string
	wasActive bool

	worker     Worker
	generation uint64
	newWorker  WorkerFactory
	log        logger.Logger
}

// New builds a stopped record. cfg is expected to be validated and defaulted.
func New(id string, cfg domain.SourceConfig, newWorker WorkerFactory, log logger.Logger) *Record {
	if log == nil {
		log = logger.Nop()
	}
	return &Record{
		id:        id,
		cfg:       cfg,
		state:     domain.StateStopped,
		newWorker: newWorker,
		log:       log.With(logger.SourceID(id)),
	}
}

func (r *Record) ID() string { return r.id }

func (r *Record) State() domain.State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

func (r *Record) LastError() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lastError
}

// Config returns a copy of the configuration, password included.
func (r *Record) Config() domain.SourceConfig {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.cfg
}

// HasWorker reports whether the record currently owns a worker.
func (r *Record) HasWorker() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.worker != nil
}

// WasActive reports whether the record was persisted in an active state.
func (r *Record) WasActive() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.wasActive
}

// Start discards any existing worker and launches a new one. The record is
// STARTING when Start returns; RUNNING only follows a first_frame event.
func (r *Record) Start() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.startLocked()
}

func (r *Record) startLocked() error {
	r.discardLocked()
	r.wasActive = false

	r.generation++
	w := r.newWorker(stream.Config{
		SourceID:       r.id,
		Generation:     r.generation,
		Address:        r.addressLocked(true),
		Resolution:     r.cfg.Resolution,
		ConnectTimeout: r.cfg.ConnectTimeout,
	})
	r.worker = w
	r.state = domain.StateStarting

	if err := w.Start(); err != nil {
		r.worker = nil
		r.state = domain.StateError
		r.lastError = err.Error()
		return fmt.Errorf("start source %s: %w", r.id, err)
	}
	r.log.Info("starting stream", logger.String("address", r.addressLocked(false)))
	return nil
}

// Stop tears the worker down and moves to STOPPED from any state.
func (r *Record) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.worker != nil {
		r.log.Info("stopping stream")
	}
	r.discardLocked()
	r.state = domain.StateStopped
	r.lastError = ""
	r.wasActive = false
}

// Pause toggles RUNNING and PAUSED. It reports false, and does nothing, when
// there is no live worker or the record is not in the matching state.
func (r *Record) Pause(paused bool) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.worker == nil || !r.worker.Alive() {
		return false
	}
	switch {
	case paused && r.state == domain.StateRunning:
		r.state = domain.StatePaused
	case !paused && r.state == domain.StatePaused:
		r.state = domain.StateRunning
	default:
		return false
	}
	r.worker.Pause(paused)
	return true
}

// Retry clears the last error then behaves like Start.
func (r *Record) Retry() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lastError = ""
	return r.startLocked()
}

// RetryIfErrored restarts the record only while it is still in ERROR and
// reports whether it did.
func (r *Record) RetryIfErrored() (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state != domain.StateError {
		return false, nil
	}
	r.lastError = ""
	return true, r.startLocked()
}

// Apply folds a worker event into the record state and reports whether the
// state changed. Events from a worker other than the current one are ignored.
func (r *Record) Apply(ev stream.Event) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.worker == nil || ev.Generation != r.generation {
		return false
	}

	switch ev.Kind {
	case stream.KindFirstFrame:
		if r.state != domain.StateStarting {
			return false
		}
		r.state = domain.StateRunning
		r.lastError = ""
		r.log.Info("stream running")
		return true
	case stream.KindError:
		r.discardLocked()
		r.state = domain.StateError
		r.lastError = ev.Text
		r.log.Warn("stream failed", logger.String("reason", ev.Text))
		return true
	default:
		return false
	}
}

// AcceptsFrame reports whether a frame event should reach consumers: it comes
// from the current worker and the record is RUNNING.
func (r *Record) AcceptsFrame(generation uint64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.worker != nil && generation == r.generation && r.state == domain.StateRunning
}

// AcceptsStatus reports whether a status event from the given worker
// generation may still be published. Nothing follows a worker's error.
func (r *Record) AcceptsStatus(generation uint64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return generation == r.generation && r.state != domain.StateError
}

// Reconfigure replaces the configuration. A running worker keeps its
// original address; the new one is used on the next start.
func (r *Record) Reconfigure(cfg domain.SourceConfig) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cfg = cfg
}

func (r *Record) discardLocked() {
	if r.worker == nil {
		return
	}
	r.worker.Stop()
	r.worker = nil
}

// Address builds the connection address. With credentials it embeds
// user:password and must only be handed to the capture layer.
func (r *Record) Address(withCredentials bool) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.addressLocked(withCredentials)
}

func (r *Record) addressLocked(withCredentials bool) string {
	return BuildAddress(r.cfg, withCredentials)
}

// BuildAddress formats protocol://[user:pass@]host:port/path. Credentials are
// included only when asked for and both username and password are set.
func BuildAddress(cfg domain.SourceConfig, withCredentials bool) string {
	u := url.URL{
		Scheme: cfg.Protocol,
		Host:   net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port)),
		Path:   "/" + cfg.Path,
	}
	if withCredentials && cfg.Username != "" && cfg.Password != "" {
		u.User = url.UserPassword(cfg.Username, cfg.Password)
	}
	return u.String()
}

// String is safe for logs: no credentials, no address path.
func (r *Record) String() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return fmt.Sprintf("Source(id=%s, name=%s, host=%s, state=%s)",
		r.id, r.cfg.Name, net.JoinHostPort(r.cfg.Host, strconv.Itoa(r.cfg.Port)), r.state)
}
