package domain

import (
	"encoding/json"
	"errors"
	"testing"
	"time"
)

func TestSourceConfigWithDefaults(t *testing.T) {
	cfg := SourceConfig{Name: " Cam1 ", Host: "10.0.0.5", Path: "/live", Protocol: "RTSP"}.WithDefaults(0)

	if cfg.Name != "Cam1" {
		t.Errorf("Name = %q, want trimmed", cfg.Name)
	}
	if cfg.Protocol != "rtsp" {
		t.Errorf("Protocol = %q, want rtsp", cfg.Protocol)
	}
	if cfg.Port != DefaultPort {
		t.Errorf("Port = %d, want %d", cfg.Port, DefaultPort)
	}
	if cfg.Location != DefaultLocation {
		t.Errorf("Location = %q, want %q", cfg.Location, DefaultLocation)
	}
	if cfg.Resolution != DefaultResolution {
		t.Errorf("Resolution = %v, want %v", cfg.Resolution, DefaultResolution)
	}
	if cfg.ConnectTimeout != DefaultConnectTimeout {
		t.Errorf("ConnectTimeout = %v, want %v", cfg.ConnectTimeout, DefaultConnectTimeout)
	}
	if cfg.Path != "live" {
		t.Errorf("Path = %q, want leading slash stripped", cfg.Path)
	}

	custom := SourceConfig{Name: "a", Host: "b"}.WithDefaults(7 * time.Second)
	if custom.ConnectTimeout != 7*time.Second {
		t.Errorf("ConnectTimeout = %v, want 7s", custom.ConnectTimeout)
	}
}

func TestSourceConfigValidate(t *testing.T) {
	valid := SourceConfig{Name: "Cam1", Host: "10.0.0.5"}.WithDefaults(0)

	tests := []struct {
		name    string
		mutate  func(c *SourceConfig)
		wantErr bool
	}{
		{name: "valid", mutate: func(c *SourceConfig) {}},
		{name: "missing name", mutate: func(c *SourceConfig) { c.Name = "" }, wantErr: true},
		{name: "missing host", mutate: func(c *SourceConfig) { c.Host = "  " }, wantErr: true},
		{name: "host with credentials", mutate: func(c *SourceConfig) { c.Host = "u@10.0.0.5" }, wantErr: true},
		{name: "port zero", mutate: func(c *SourceConfig) { c.Port = 0 }, wantErr: true},
		{name: "port too large", mutate: func(c *SourceConfig) { c.Port = 70000 }, wantErr: true},
		{name: "bad protocol", mutate: func(c *SourceConfig) { c.Protocol = "ftp" }, wantErr: true},
		{name: "https allowed", mutate: func(c *SourceConfig) { c.Protocol = "https" }},
		{name: "bad path char", mutate: func(c *SourceConfig) { c.Path = "live?x" }, wantErr: true},
		{name: "long name", mutate: func(c *SourceConfig) { c.Name = string(make([]byte, 101)) }, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := valid
			tt.mutate(&c)
			err := c.Validate()
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidConfig) {
					t.Errorf("Validate() = %v, want ErrInvalidConfig", err)
				}
				return
			}
			if err != nil {
				t.Errorf("Validate() unexpected error: %v", err)
			}
		})
	}
}

func TestParseResolution(t *testing.T) {
	tests := []struct {
		in      string
		want    Resolution
		wantErr bool
	}{
		{in: "1280x720", want: Resolution{1280, 720}},
		{in: "(1920, 1080)", want: Resolution{1920, 1080}},
		{in: "[640,480]", want: Resolution{640, 480}},
		{in: "__import__('os').system('rm -rf /')", wantErr: true},
		{in: "", wantErr: true},
		{in: "1280", wantErr: true},
		{in: "0x0", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseResolution(tt.in)
			if tt.wantErr {
				if err == nil {
					t.Errorf("ParseResolution(%q) = %v, want error", tt.in, got)
				}
				return
			}
			if err != nil || got != tt.want {
				t.Errorf("ParseResolution(%q) = %v, %v; want %v", tt.in, got, err, tt.want)
			}
		})
	}
}

func TestResolutionUnmarshal(t *testing.T) {
	tests := []struct {
		in      string
		want    Resolution
		wantErr bool
	}{
		{in: `{"width":1280,"height":720}`, want: Resolution{1280, 720}},
		{in: `[640, 480]`, want: Resolution{640, 480}},
		{in: `[640]`, wantErr: true},
		{in: `"1280x720"`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			var r Resolution
			err := json.Unmarshal([]byte(tt.in), &r)
			if tt.wantErr {
				if err == nil {
					t.Errorf("Unmarshal(%s) = %v, want error", tt.in, r)
				}
				return
			}
			if err != nil || r != tt.want {
				t.Errorf("Unmarshal(%s) = %v, %v; want %v", tt.in, r, err, tt.want)
			}
		})
	}
}

func TestParseState(t *testing.T) {
	if s, err := ParseState(""); err != nil || s != StateStopped {
		t.Errorf("ParseState(\"\") = %v, %v", s, err)
	}
	if s, err := ParseState("paused"); err != nil || s != StatePaused {
		t.Errorf("ParseState(paused) = %v, %v", s, err)
	}
	if _, err := ParseState("exploded"); err == nil {
		t.Error("ParseState(exploded) should fail")
	}
	if !StateRunning.Active() || StateError.Active() || StateStopped.Active() {
		t.Error("Active() mismatch")
	}
}
