// Package stream runs one connect-and-decode cycle per source activation.
//
// A Worker is single use. It owns its capture handle exclusively and talks to
// the rest of the service only through the events channel it was given.
package stream

import (
	"context"
	"errors"
	"fmt"
	"image"
	"sync"
	"sync/atomic"
	"time"

	"github.com/MrSnakeDoc/lookout/internal/capture"
	"github.com/MrSnakeDoc/lookout/internal/domain"
	"github.com/MrSnakeDoc/lookout/internal/logger"
)

const defaultPausePoll = 10 * time.Millisecond

var (
	// ErrAlreadyStarted is returned when Start is called twice on one worker.
	ErrAlreadyStarted = errors.New("stream: worker already started")
	// ErrConnectTimeout means Open did not complete within the connect timeout.
	ErrConnectTimeout = errors.New("stream: connection timeout")

	errStopped = errors.New("stream: stopped")
)

// Config describes one activation.
type Config struct {
	SourceID   string
	Generation uint64

	// Address is the credentialed address handed to the opener. It is never
	// logged or put in an event.
	Address string

	Resolution     domain.Resolution
	ConnectTimeout time.Duration

	// PausePoll bounds each idle sleep while paused.
	PausePoll time.Duration
}

// Worker performs a single connect-and-decode cycle.
type Worker struct {
	cfg    Config
	opener capture.Opener
	events chan<- Event
	log    logger.Logger

	started atomic.Bool
	paused  atomic.Bool
	alive   atomic.Bool
	failed  atomic.Bool

	ctx      context.Context
	cancel   context.CancelFunc
	stopCh   chan struct{}
	stopOnce sync.Once
	done     chan struct{}

	mu          sync.Mutex
	handle      capture.Handle
	releaseOnce sync.Once
}

// New prepares a worker. Nothing runs until Start.
func New(cfg Config, opener capture.Opener, events chan<- Event, log logger.Logger) *Worker {
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = domain.DefaultConnectTimeout
	}
	if cfg.PausePoll <= 0 {
		cfg.PausePoll = defaultPausePoll
	}
	if log == nil {
		log = logger.Nop()
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Worker{
		cfg:    cfg,
		opener: opener,
		events: events,
		log:    log,
		ctx:    ctx,
		cancel: cancel,
		stopCh: make(chan struct{}),
		done:   make(chan struct{}),
	}
}

// Start launches the worker goroutine. A worker can be started once.
func (w *Worker) Start() error {
	if !w.started.CompareAndSwap(false, true) {
		return ErrAlreadyStarted
	}
	w.alive.Store(true)
	go w.run()
	return nil
}

// Stop signals the loop, waits for the goroutine to exit, then releases the
// capture handle. It is safe to call more than once and before Start.
func (w *Worker) Stop() {
	first := false
	w.stopOnce.Do(func() {
		first = true
		close(w.stopCh)
		w.cancel()
	})
	// error is the last event of a failed worker.
	if first && w.started.Load() && w.alive.Load() && !w.failed.Load() {
		w.trySend(Event{Kind: KindStatus, Text: StatusStopping})
	}

	if w.started.Load() {
		<-w.done
	}
	w.release()
}

// Pause sets the cooperative pause flag. The loop checks it once per
// iteration, reports the change as a status event, and emits no frame while
// it is set. Pause never blocks, so callers may hold their own locks.
func (w *Worker) Pause(paused bool) {
	w.paused.Store(paused)
}

// Alive reports whether the worker goroutine is still running.
func (w *Worker) Alive() bool { return w.alive.Load() }

// Paused reports the current pause flag.
func (w *Worker) Paused() bool { return w.paused.Load() }

func (w *Worker) run() {
	defer close(w.done)
	defer w.alive.Store(false)
	defer w.release()

	w.emitControl(KindStatus, StatusStarting)

	h, err := w.connect()
	if err != nil {
		if w.stopping() {
			return
		}
		switch {
		case errors.Is(err, ErrConnectTimeout):
			w.log.Warn("connect timed out", logger.Duration("timeout", w.cfg.ConnectTimeout))
			w.fail(fmt.Sprintf(
				"Connection timeout: failed to connect within %d seconds. Check the address, network, and credentials.",
				int(w.cfg.ConnectTimeout/time.Second)))
		default:
			w.log.Warn("open failed", logger.Error(err))
			w.fail(ErrTextOpenFailed)
		}
		return
	}

	w.mu.Lock()
	w.handle = h
	w.mu.Unlock()

	if err := h.SetBufferDepth(1); err != nil {
		w.log.Debug("could not reduce buffer depth", logger.Error(err))
	}

	nw, nh := h.NativeResolution()
	scale := needsResize(nw, nh, w.cfg.Resolution)
	w.log.Debug("stream opened",
		logger.String("native", domain.Resolution{Width: nw, Height: nh}.String()),
		logger.String("requested", w.cfg.Resolution.String()),
		logger.Bool("resize", scale))

	w.loop(h, scale)
}

// connect runs Open on a helper goroutine and waits at most ConnectTimeout.
// On timeout or stop the helper is abandoned: its context is cancelled and a
// handle it still produces is closed by the helper itself.
func (w *Worker) connect() (capture.Handle, error) {
	results := make(chan openResult, 1)

	go func() {
		h, err := w.opener.Open(w.ctx, w.cfg.Address)
		results <- openResult{h: h, err: err}
	}()

	timer := time.NewTimer(w.cfg.ConnectTimeout)
	defer timer.Stop()

	select {
	case r := <-results:
		if r.err != nil {
			return nil, fmt.Errorf("%w: %w", capture.ErrOpenFailed, r.err)
		}
		if r.h == nil {
			return nil, capture.ErrOpenFailed
		}
		return r.h, nil
	case <-timer.C:
		w.abandon(results)
		return nil, ErrConnectTimeout
	case <-w.stopCh:
		w.abandon(results)
		return nil, errStopped
	}
}

type openResult struct {
	h   capture.Handle
	err error
}

func (w *Worker) abandon(results <-chan openResult) {
	w.cancel()
	go func() {
		r := <-results
		if r.h != nil {
			_ = r.h.Close()
		}
	}()
}

func (w *Worker) loop(h capture.Handle, scale bool) {
	firstFrame := true
	paused := false
	idle := time.NewTimer(0)
	defer idle.Stop()
	<-idle.C

	for !w.stopping() {
		if p := w.paused.Load(); p != paused {
			paused = p
			if paused {
				w.emitControl(KindStatus, StatusPaused)
			} else {
				w.emitControl(KindStatus, StatusPlaying)
			}
		}
		if paused {
			idle.Reset(w.cfg.PausePoll)
			select {
			case <-w.stopCh:
				return
			case <-idle.C:
			}
			continue
		}

		frame, err := h.Read(w.ctx)
		if err != nil {
			if w.stopping() {
				return
			}
			w.log.Warn("frame read failed", logger.Error(err))
			w.fail(ErrTextReadFailed)
			return
		}
		if w.paused.Load() {
			continue
		}
		if scale {
			frame = resize(frame, w.cfg.Resolution)
		}

		if firstFrame {
			firstFrame = false
			w.emitControl(KindStatus, StatusStarted)
			w.emitControl(KindFirstFrame, "")
		}
		w.emitFrame(frame)
	}
}

func (w *Worker) stopping() bool {
	select {
	case <-w.stopCh:
		return true
	default:
		return false
	}
}

// release closes the handle once. The loop has exited whenever this runs.
func (w *Worker) release() {
	w.mu.Lock()
	h := w.handle
	w.mu.Unlock()
	if h == nil {
		return
	}
	w.releaseOnce.Do(func() {
		if err := h.Close(); err != nil {
			w.log.Warn("failed to release capture handle", logger.Error(err))
		}
	})
}

func (w *Worker) event(kind Kind, text string) Event {
	return Event{
		Kind:       kind,
		SourceID:   w.cfg.SourceID,
		Generation: w.cfg.Generation,
		Text:       text,
		At:         time.Now(),
	}
}

// emitControl queues a non-frame event, giving up only when the worker is stopped.
func (w *Worker) emitControl(kind Kind, text string) {
	select {
	case w.events <- w.event(kind, text):
	case <-w.stopCh:
	}
}

// fail marks the worker failed before queueing the error, so a Stop racing
// with the exit never follows it with another event.
func (w *Worker) fail(text string) {
	w.failed.Store(true)
	w.emitControl(KindError, text)
}

// emitFrame drops the frame when the queue is full.
func (w *Worker) emitFrame(frame *image.RGBA) {
	ev := w.event(KindFrame, "")
	ev.Frame = frame
	select {
	case w.events <- ev:
	default:
	}
}

func (w *Worker) trySend(ev Event) {
	ev.SourceID = w.cfg.SourceID
	ev.Generation = w.cfg.Generation
	ev.At = time.Now()
	select {
	case w.events <- ev:
	default:
	}
}
