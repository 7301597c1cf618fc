package domain

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

const (
	DefaultProtocol       = "rtsp"
	DefaultPort           = 554
	DefaultLocation       = "Default"
	DefaultConnectTimeout = 20 * time.Second

	maxNameLength = 100
)

// DefaultResolution is used when a source does not request one.
var DefaultResolution = Resolution{Width: 1920, Height: 1080}

// ErrInvalidConfig is wrapped by every SourceConfig validation failure.
var ErrInvalidConfig = errors.New("invalid source config")

var supportedProtocols = map[string]bool{
	"rtsp":  true,
	"http":  true,
	"https": true,
}

const forbiddenPathChars = `<>|"?*`

// SourceConfig is the user-supplied description of a network video source.
//
// It is validated once at the boundary (API, migration) and then copied into
// a source record. Zero values are replaced by WithDefaults.
type SourceConfig struct {
	// ─────────────────────────────
	// Presentation
	// ─────────────────────────────

	// Name is the display name. Required.
	Name string

	// Location is a free-text grouping tag.
	// Example: "Front Door", "Backyard". Defaults to "Default".
	Location string

	// ─────────────────────────────
	// Addressing
	// ─────────────────────────────

	// Protocol is the URL scheme: rtsp, http or https.
	Protocol string

	// Host is the IP address or hostname of the camera. Required.
	Host string

	// Port defaults to 554.
	Port int

	// Path is the stream path without a leading slash.
	// Example: Streaming/Channels/101
	Path string

	// ─────────────────────────────
	// Credentials
	// ─────────────────────────────

	Username string

	// Password is plaintext and lives in memory only.
	Password string

	// ─────────────────────────────
	// Capture
	// ─────────────────────────────

	// Resolution is the size frames are delivered at.
	Resolution Resolution

	// ConnectTimeout bounds connection establishment.
	ConnectTimeout time.Duration
}

// WithDefaults fills every optional field left at its zero value.
// connectTimeout replaces DefaultConnectTimeout when positive.
func (c SourceConfig) WithDefaults(connectTimeout time.Duration) SourceConfig {
	c.Name = strings.TrimSpace(c.Name)
	c.Host = strings.TrimSpace(c.Host)
	c.Location = strings.TrimSpace(c.Location)

	if c.Protocol == "" {
		c.Protocol = DefaultProtocol
	}
	c.Protocol = strings.ToLower(c.Protocol)
	if c.Port == 0 {
		c.Port = DefaultPort
	}
	if c.Location == "" {
		c.Location = DefaultLocation
	}
	if c.Resolution.IsZero() {
		c.Resolution = DefaultResolution
	}
	if c.ConnectTimeout <= 0 {
		c.ConnectTimeout = DefaultConnectTimeout
		if connectTimeout > 0 {
			c.ConnectTimeout = connectTimeout
		}
	}
	c.Path = strings.TrimPrefix(c.Path, "/")
	return c
}

// Validate reports the first problem found, wrapped in ErrInvalidConfig.
func (c SourceConfig) Validate() error {
	switch {
	case strings.TrimSpace(c.Name) == "":
		return fmt.Errorf("%w: name is required", ErrInvalidConfig)
	case len(c.Name) > maxNameLength:
		return fmt.Errorf("%w: name must be %d characters or less", ErrInvalidConfig, maxNameLength)
	case len(c.Location) > maxNameLength:
		return fmt.Errorf("%w: location must be %d characters or less", ErrInvalidConfig, maxNameLength)
	case strings.TrimSpace(c.Host) == "":
		return fmt.Errorf("%w: host is required", ErrInvalidConfig)
	case strings.ContainsAny(c.Host, " /@"):
		return fmt.Errorf("%w: host %q is not a valid address", ErrInvalidConfig, c.Host)
	case c.Port < 1 || c.Port > 65535:
		return fmt.Errorf("%w: port must be between 1 and 65535", ErrInvalidConfig)
	case !supportedProtocols[strings.ToLower(c.Protocol)]:
		return fmt.Errorf("%w: protocol must be rtsp, http, or https", ErrInvalidConfig)
	case c.Resolution.Width < 0 || c.Resolution.Height < 0:
		return fmt.Errorf("%w: resolution must be positive", ErrInvalidConfig)
	}
	if i := strings.IndexAny(c.Path, forbiddenPathChars); i >= 0 {
		return fmt.Errorf("%w: path contains invalid character: %c", ErrInvalidConfig, c.Path[i])
	}
	return nil
}

// PersistedSource is the at-rest form of a source record.
// Password always holds the encoded token, never plaintext.
type PersistedSource struct {
	ID             string     `json:"id"`
	Name           string     `json:"name"`
	Protocol       string     `json:"protocol"`
	Username       string     `json:"username"`
	Password       string     `json:"password"`
	Host           string     `json:"host"`
	Port           int        `json:"port"`
	Path           string     `json:"path"`
	Resolution     Resolution `json:"resolution"`
	ConnectTimeout int        `json:"connect_timeout"` // seconds
	Location       string     `json:"location"`
	State          State      `json:"state"`
	LastError      string     `json:"last_error"`
}
