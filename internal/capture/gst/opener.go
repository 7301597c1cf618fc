package gst

import (
	"context"
	"errors"
	"fmt"
	"image"
	"sync"
	"time"

	"github.com/tinyzimmer/go-gst/gst"

	"github.com/MrSnakeDoc/lookout/internal/capture"
	"github.com/MrSnakeDoc/lookout/internal/logger"
)

const (
	defaultReadTimeout  = 10 * time.Second
	defaultPollInterval = 50 * time.Millisecond
)

// ErrUnavailable is returned by NewOpener when GStreamer or its decoding
// plugins are missing.
var ErrUnavailable = errors.New("gst: GStreamer not available")

var errEndOfStream = errors.New("end of stream")

// PipelineError is a classified, credential-free pipeline failure.
type PipelineError struct {
	Category ErrorCategory
	Message  string
}

func (e *PipelineError) Error() string {
	return fmt.Sprintf("pipeline error [%s]: %s", e.Category, e.Message)
}

// Options tunes the backend.
type Options struct {
	// ReadTimeout bounds a single Read. Expiry is reported as capture.ErrReadTimeout.
	ReadTimeout time.Duration
	// PollInterval is how long a single appsink pull or bus poll may block.
	// It also bounds how quickly Open and Read notice cancellation.
	PollInterval time.Duration
	Logger       logger.Logger
}

// Opener opens GStreamer decode sessions.
type Opener struct {
	opts Options
	log  logger.Logger
}

var _ capture.Opener = (*Opener)(nil)

// NewOpener validates options and checks GStreamer is usable.
func NewOpener(opts Options) (*Opener, error) {
	if opts.ReadTimeout <= 0 {
		opts.ReadTimeout = defaultReadTimeout
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = defaultPollInterval
	}
	if opts.Logger == nil {
		opts.Logger = logger.Nop()
	}
	if err := checkAvailable(); err != nil {
		return nil, err
	}
	return &Opener{opts: opts, log: opts.Logger}, nil
}

func checkAvailable() error {
	initGStreamer()
	for _, name := range []string{"uridecodebin", "videoconvert", "appsink"} {
		if _, err := gst.NewElement(name); err != nil {
			return fmt.Errorf("%w: element %s: %v", ErrUnavailable, name, err)
		}
	}
	return nil
}

// Open starts a pipeline for address and waits for the first decoded frame.
// Cancelling ctx tears the half-built pipeline down and returns ctx.Err().
func (o *Opener) Open(ctx context.Context, address string) (capture.Handle, error) {
	el, err := buildPipeline(address, o.log)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", capture.ErrOpenFailed, err)
	}

	if err := el.pipeline.SetState(gst.StatePlaying); err != nil {
		_ = el.destroy()
		return nil, fmt.Errorf("%w: failed to start pipeline: %v", capture.ErrOpenFailed, err)
	}

	for {
		if err := ctx.Err(); err != nil {
			_ = el.destroy()
			return nil, err
		}
		if err := drainBus(el.pipeline.GetPipelineBus()); err != nil {
			_ = el.destroy()
			return nil, fmt.Errorf("%w: %v", capture.ErrOpenFailed, err)
		}

		sample := el.sink.TryPullSample(o.opts.PollInterval)
		if sample == nil {
			continue
		}
		frame, err := frameFromSample(sample)
		if err != nil {
			_ = el.destroy()
			return nil, fmt.Errorf("%w: %v", capture.ErrOpenFailed, err)
		}

		return &session{
			el:          el,
			width:       frame.Rect.Dx(),
			height:      frame.Rect.Dy(),
			pending:     frame,
			readTimeout: o.opts.ReadTimeout,
			poll:        o.opts.PollInterval,
		}, nil
	}
}

// drainBus consumes queued bus messages and reports the first error or EOS.
func drainBus(bus *gst.Bus) error {
	for {
		msg := bus.TimedPop(0)
		if msg == nil {
			return nil
		}
		switch msg.Type() {
		case gst.MessageEOS:
			return errEndOfStream
		case gst.MessageError:
			gerr := msg.ParseError()
			return &PipelineError{
				Category: classify(gerr.Error(), gerr.DebugString()),
				Message:  redact(gerr.Error()),
			}
		}
	}
}

func frameFromSample(sample *gst.Sample) (*image.RGBA, error) {
	caps := sample.GetCaps()
	if caps == nil || caps.GetSize() == 0 {
		return nil, fmt.Errorf("sample has no caps")
	}
	st := caps.GetStructureAt(0)
	w, err := intField(st, "width")
	if err != nil {
		return nil, err
	}
	h, err := intField(st, "height")
	if err != nil {
		return nil, err
	}

	buffer := sample.GetBuffer()
	if buffer == nil {
		return nil, fmt.Errorf("sample has no buffer")
	}
	mapInfo := buffer.Map(gst.MapRead)
	defer buffer.Unmap()

	return rgbaFromBytes(mapInfo.Bytes(), w, h)
}

func intField(st *gst.Structure, name string) (int, error) {
	v, err := st.GetValue(name)
	if err != nil {
		return 0, fmt.Errorf("caps field %s: %w", name, err)
	}
	n, ok := v.(int)
	if !ok || n <= 0 {
		return 0, fmt.Errorf("caps field %s: unexpected value %v", name, v)
	}
	return n, nil
}

// rgbaFromBytes copies a packed RGBA buffer, honouring row padding.
func rgbaFromBytes(data []byte, w, h int) (*image.RGBA, error) {
	if w <= 0 || h <= 0 {
		return nil, fmt.Errorf("invalid frame size %dx%d", w, h)
	}
	stride := len(data) / h
	if stride < w*4 {
		return nil, fmt.Errorf("buffer of %d bytes too small for %dx%d RGBA", len(data), w, h)
	}

	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		copy(img.Pix[y*img.Stride:y*img.Stride+w*4], data[y*stride:y*stride+w*4])
	}
	return img, nil
}

// session is a playing pipeline handed to one stream worker.
type session struct {
	el          *elements
	width       int
	height      int
	pending     *image.RGBA
	readTimeout time.Duration
	poll        time.Duration

	closeOnce sync.Once
	closeErr  error
	closed    bool
	mu        sync.Mutex
}

func (s *session) NativeResolution() (int, int) { return s.width, s.height }

func (s *session) SetBufferDepth(n int) error {
	if n < 1 {
		n = 1
	}
	if err := s.el.sink.SetProperty("max-buffers", uint(n)); err != nil {
		return fmt.Errorf("set appsink max-buffers: %w", err)
	}
	return nil
}

func (s *session) Read(ctx context.Context) (*image.RGBA, error) {
	s.mu.Lock()
	closed := s.closed
	pending := s.pending
	s.pending = nil
	s.mu.Unlock()

	if closed {
		return nil, capture.ErrClosed
	}
	if pending != nil {
		return pending, nil
	}

	deadline := time.Now().Add(s.readTimeout)
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if err := drainBus(s.el.pipeline.GetPipelineBus()); err != nil {
			return nil, fmt.Errorf("%w: %v", capture.ErrReadFailed, err)
		}
		if s.el.sink.IsEOS() {
			return nil, fmt.Errorf("%w: %v", capture.ErrReadFailed, errEndOfStream)
		}
		if sample := s.el.sink.TryPullSample(s.poll); sample != nil {
			frame, err := frameFromSample(sample)
			if err != nil {
				return nil, fmt.Errorf("%w: %v", capture.ErrReadFailed, err)
			}
			return frame, nil
		}
		if time.Now().After(deadline) {
			return nil, capture.ErrReadTimeout
		}
	}
}

func (s *session) Close() error {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		s.closed = true
		s.pending = nil
		s.mu.Unlock()
		s.closeErr = s.el.destroy()
	})
	return s.closeErr
}
