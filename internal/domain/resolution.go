package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
)

// Resolution is a frame size in pixels.
type Resolution struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

func (r Resolution) IsZero() bool { return r.Width == 0 && r.Height == 0 }

func (r Resolution) String() string { return fmt.Sprintf("%dx%d", r.Width, r.Height) }

// UnmarshalJSON accepts {"width":w,"height":h} as well as the [w, h] pair
// older settings files were written with.
func (r *Resolution) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '[' {
		var pair []int
		if err := json.Unmarshal(data, &pair); err != nil {
			return fmt.Errorf("resolution pair: %w", err)
		}
		if len(pair) != 2 {
			return fmt.Errorf("resolution pair: want 2 values, got %d", len(pair))
		}
		r.Width, r.Height = pair[0], pair[1]
		return nil
	}

	type plain Resolution
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return fmt.Errorf("resolution: %w", err)
	}
	*r = Resolution(p)
	return nil
}

var resolutionPattern = regexp.MustCompile(`^\D*(\d+)\D+(\d+)\D*$`)

// ParseResolution reads two integers out of strings such as "1280x720",
// "(1280, 720)" or "[1280,720]". Nothing in the input is evaluated.
func ParseResolution(s string) (Resolution, error) {
	m := resolutionPattern.FindStringSubmatch(s)
	if m == nil {
		return Resolution{}, fmt.Errorf("unrecognised resolution %q", s)
	}
	w, err := strconv.Atoi(m[1])
	if err != nil {
		return Resolution{}, fmt.Errorf("resolution width %q: %w", m[1], err)
	}
	h, err := strconv.Atoi(m[2])
	if err != nil {
		return Resolution{}, fmt.Errorf("resolution height %q: %w", m[2], err)
	}
	if w <= 0 || h <= 0 {
		return Resolution{}, fmt.Errorf("resolution %q must be positive", s)
	}
	return Resolution{Width: w, Height: h}, nil
}
