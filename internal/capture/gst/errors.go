package gst

import (
	"regexp"
	"strings"
)

// ErrorCategory classifies pipeline failures for logs and status messages.
type ErrorCategory int

const (
	ErrCategoryNetwork ErrorCategory = iota
	ErrCategoryCodec
	ErrCategoryAuth
	ErrCategoryUnknown
)

func (e ErrorCategory) String() string {
	switch e {
	case ErrCategoryNetwork:
		return "network"
	case ErrCategoryCodec:
		return "codec"
	case ErrCategoryAuth:
		return "auth"
	default:
		return "unknown"
	}
}

var (
	authKeywords = []string{
		"unauthorized", "401", "403", "forbidden", "authentication", "not authorized",
	}
	codecKeywords = []string{
		"codec", "decode", "format", "negotiation", "not negotiated", "caps",
		"h264", "h265", "mjpeg", "no decoder", "missing plugin",
	}
	networkKeywords = []string{
		"connection", "timeout", "timed out", "unreachable", "network", "dns",
		"resolve", "socket", "could not connect", "failed to connect", "not found",
		"could not open resource",
	}
)

// classify inspects the message and debug string of a GStreamer error.
// Auth is checked first since auth failures also mention the connection.
func classify(message, debug string) ErrorCategory {
	combined := strings.ToLower(message + " " + debug)
	switch {
	case containsAny(combined, authKeywords):
		return ErrCategoryAuth
	case containsAny(combined, codecKeywords):
		return ErrCategoryCodec
	case containsAny(combined, networkKeywords):
		return ErrCategoryNetwork
	default:
		return ErrCategoryUnknown
	}
}

func containsAny(s string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(s, kw) {
			return true
		}
	}
	return false
}

var userinfoPattern = regexp.MustCompile(`([a-zA-Z][a-zA-Z0-9+.-]*://)[^/@\s]+@`)

// redact strips user:password@ from any URL embedded in s. GStreamer echoes
// the location in several error messages.
func redact(s string) string {
	return userinfoPattern.ReplaceAllString(s, "$1")
}
