// Package settings defines the key/value persistence port the source registry
// writes through, plus an in-memory implementation.
//
// Backends behave like a settings file: writes may be staged until Sync, and
// Status reports the outcome of the last open or flush.
package settings

import (
	"context"
	"errors"
)

// Keys shared by the registry and the schema migrator.
const (
	KeySources    = "sources"
	KeySelectedID = "selected_source_id"
)

// Legacy single-source keys, read only by the migrator.
const (
	LegacyKeyProtocol   = "protocol"
	LegacyKeyUser       = "user"
	LegacyKeyPassword   = "password"
	LegacyKeyIP         = "ip"
	LegacyKeyPort       = "port"
	LegacyKeyStreamPath = "stream_path"
	LegacyKeyResolution = "video_resolution"
)

// LegacyKeys lists every key of the single-source layout.
var LegacyKeys = []string{
	LegacyKeyProtocol,
	LegacyKeyUser,
	LegacyKeyPassword,
	LegacyKeyIP,
	LegacyKeyPort,
	LegacyKeyStreamPath,
	LegacyKeyResolution,
}

var (
	// ErrFormat is reported by Status when stored data could not be parsed.
	ErrFormat = errors.New("settings: stored data is malformed")
	// ErrAccess is reported by Status when the backend could not be read or written.
	ErrAccess = errors.New("settings: backend not accessible")
)

// Store is the persistence port injected into the registry.
type Store interface {
	// Value returns the value for key and whether it exists.
	Value(ctx context.Context, key string) (string, bool, error)
	SetValue(ctx context.Context, key, value string) error
	Remove(ctx context.Context, key string) error
	Contains(ctx context.Context, key string) (bool, error)
	// Sync forces staged writes to the backend.
	Sync(ctx context.Context) error
	// Status returns nil when the last open/flush succeeded.
	Status() error
}
