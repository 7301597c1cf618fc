// Package capture defines the boundary to the external capture/decode
// facility. The stream worker drives a Handle; it never knows which backend
// produced it.
package capture

import (
	"context"
	"errors"
	"image"
)

var (
	// ErrOpenFailed wraps backend failures while establishing a stream.
	ErrOpenFailed = errors.New("capture: open failed")
	// ErrReadFailed wraps backend failures while reading a frame.
	ErrReadFailed = errors.New("capture: read failed")
	// ErrReadTimeout is returned when no frame arrived within the read timeout.
	ErrReadTimeout = errors.New("capture: no frame within read timeout")
	// ErrClosed is returned by Read after Close.
	ErrClosed = errors.New("capture: handle closed")
)

// Opener establishes streams. Open may block for a long time; it returns
// early with ctx.Err() when the backend can observe cancellation.
//
// The address embeds credentials and must never be logged by implementations.
type Opener interface {
	Open(ctx context.Context, address string) (Handle, error)
}

// OpenerFunc adapts a function to Opener.
type OpenerFunc func(ctx context.Context, address string) (Handle, error)

func (f OpenerFunc) Open(ctx context.Context, address string) (Handle, error) {
	return f(ctx, address)
}

// Handle is one live decode session. It is owned by a single goroutine
// except for Close, which the owner calls after that goroutine has exited.
type Handle interface {
	// NativeResolution is the size frames are decoded at.
	NativeResolution() (width, height int)
	// SetBufferDepth bounds how many decoded frames the backend queues.
	SetBufferDepth(n int) error
	// Read blocks for the next frame.
	Read(ctx context.Context) (*image.RGBA, error)
	Close() error
}
