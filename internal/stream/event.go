package stream

import (
	"image"
	"time"
)

// Kind identifies what a worker is reporting.
type Kind int

const (
	KindFrame Kind = iota
	KindFirstFrame
	KindStatus
	KindError
)

func (k Kind) String() string {
	switch k {
	case KindFrame:
		return "frame"
	case KindFirstFrame:
		return "first_frame"
	case KindStatus:
		return "status"
	case KindError:
		return "error"
	default:
		return "unknown"
	}
}

// Status texts emitted with KindStatus.
const (
	StatusStarting = "Starting streaming"
	StatusStarted  = "Streaming started"
	StatusPaused   = "Streaming paused"
	StatusPlaying  = "Streaming playing"
	StatusStopping = "Stopping streaming"
)

// Error texts emitted with KindError. None of them carries the address.
const (
	ErrTextOpenFailed = "Failed to open camera stream"
	ErrTextReadFailed = "frame read failed"
)

// Event crosses from a worker goroutine to the dispatcher through a channel.
// Generation identifies the worker instance so late events from a discarded
// worker can be told apart from the current one.
type Event struct {
	Kind       Kind
	SourceID   string
	Generation uint64
	Frame      *image.RGBA
	Text       string
	At         time.Time
}
