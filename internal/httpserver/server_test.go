package httpserver

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"image"
	"image/jpeg"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/MrSnakeDoc/lookout/internal/capture"
	"github.com/MrSnakeDoc/lookout/internal/discovery"
	"github.com/MrSnakeDoc/lookout/internal/domain"
	"github.com/MrSnakeDoc/lookout/internal/events"
	"github.com/MrSnakeDoc/lookout/internal/httpserver/deps"
	"github.com/MrSnakeDoc/lookout/internal/logger"
	"github.com/MrSnakeDoc/lookout/internal/registry"
	"github.com/MrSnakeDoc/lookout/internal/settings"
)

type fakeHandle struct{}

func (fakeHandle) NativeResolution() (int, int) { return 4, 4 }
func (fakeHandle) SetBufferDepth(int) error     { return nil }
func (fakeHandle) Close() error                 { return nil }

func (fakeHandle) Read(ctx context.Context) (*image.RGBA, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-time.After(time.Millisecond):
	}
	return image.NewRGBA(image.Rect(0, 0, 4, 4)), nil
}

var okOpener = capture.OpenerFunc(func(context.Context, string) (capture.Handle, error) {
	return fakeHandle{}, nil
})

type testEnv struct {
	srv  *httptest.Server
	reg  *registry.Registry
	deps deps.Deps
}

func newTestEnv(t *testing.T, mutate func(*deps.Deps)) *testEnv {
	t.Helper()
	log := logger.New("error", false)

	reg := registry.New(settings.NewMemory(), okOpener, events.NewHub(log),
		registry.Options{PausePoll: time.Millisecond}, log)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		reg.Run(ctx)
		close(done)
	}()

	d := deps.Deps{
		Logger:       log,
		StartTime:    time.Now(),
		Version:      "test",
		Registry:     reg,
		SnapshotDir:  t.TempDir(),
		RetryTrigger: make(chan struct{}, 1),
		RateBurst:    100,
		RatePerMin:   100,
	}
	if mutate != nil {
		mutate(&d)
	}

	srv := httptest.NewServer(NewRouter(log, d))
	t.Cleanup(func() {
		srv.Close()
		_ = reg.Shutdown(context.Background())
		reg.Hub().Close()
		cancel()
		<-done
	})
	return &testEnv{srv: srv, reg: reg, deps: d}
}

func (e *testEnv) do(t *testing.T, method, path, body string) *http.Response {
	t.Helper()
	var rd io.Reader
	if body != "" {
		rd = strings.NewReader(body)
	}
	req, err := http.NewRequest(method, e.srv.URL+path, rd)
	if err != nil {
		t.Fatal(err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func (e *testEnv) add(t *testing.T, body string) string {
	t.Helper()
	resp := e.do(t, http.MethodPost, "/api/sources", body)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("add status = %d", resp.StatusCode)
	}
	var out struct {
		ID string `json:"id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil || out.ID == "" {
		t.Fatalf("add response: %+v, %v", out, err)
	}
	return out.ID
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(2 * time.Millisecond)
	}
}

const cam1 = `{"name":"Cam1","host":"10.0.0.5","username":"admin","password":"Secret1","resolution":{"width":4,"height":4}}`

func TestHealthAndReady(t *testing.T) {
	env := newTestEnv(t, nil)

	if resp := env.do(t, http.MethodGet, "/healthz", ""); resp.StatusCode != http.StatusOK {
		t.Errorf("healthz status = %d", resp.StatusCode)
	}
	if resp := env.do(t, http.MethodGet, "/readyz", ""); resp.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("readyz before load = %d, want 503", resp.StatusCode)
	}

	env.reg.Load(context.Background())
	if resp := env.do(t, http.MethodGet, "/readyz", ""); resp.StatusCode != http.StatusOK {
		t.Errorf("readyz after load = %d, want 200", resp.StatusCode)
	}
}

func TestSourcesCRUD(t *testing.T) {
	env := newTestEnv(t, nil)

	id := env.add(t, cam1)
	second := env.add(t, `{"name":"Cam2","host":"10.0.0.6"}`)

	tests := []struct {
		name   string
		method string
		path   string
		body   string
		want   int
	}{
		{name: "missing host", method: http.MethodPost, path: "/api/sources", body: `{"name":"x"}`, want: http.StatusBadRequest},
		{name: "bad protocol", method: http.MethodPost, path: "/api/sources", body: `{"name":"x","host":"h","protocol":"ftp"}`, want: http.StatusBadRequest},
		{name: "unknown field", method: http.MethodPost, path: "/api/sources", body: `{"name":"x","host":"h","ip":"1"}`, want: http.StatusBadRequest},
		{name: "get", method: http.MethodGet, path: "/api/sources/" + id, want: http.StatusOK},
		{name: "get unknown", method: http.MethodGet, path: "/api/sources/nope", want: http.StatusNotFound},
		{name: "update", method: http.MethodPut, path: "/api/sources/" + id, body: `{"name":"Porch","host":"10.0.0.5","username":"admin"}`, want: http.StatusNoContent},
		{name: "update invalid", method: http.MethodPut, path: "/api/sources/" + id, body: `{"name":"","host":"10.0.0.5"}`, want: http.StatusBadRequest},
		{name: "move", method: http.MethodPut, path: "/api/sources/" + second + "/position", body: `{"index":0}`, want: http.StatusNoContent},
		{name: "move without index", method: http.MethodPut, path: "/api/sources/" + second + "/position", body: `{}`, want: http.StatusBadRequest},
		{name: "select", method: http.MethodPost, path: "/api/sources/" + id + "/select", want: http.StatusNoContent},
		{name: "select unknown", method: http.MethodPost, path: "/api/sources/nope/select", want: http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if resp := env.do(t, tt.method, tt.path, tt.body); resp.StatusCode != tt.want {
				t.Errorf("status = %d, want %d", resp.StatusCode, tt.want)
			}
		})
	}

	resp := env.do(t, http.MethodGet, "/api/sources", "")
	raw, _ := io.ReadAll(resp.Body)
	if bytes.Contains(raw, []byte("Secret1")) {
		t.Fatalf("listing leaks the password: %s", raw)
	}
	var list struct {
		Sources []struct {
			ID          string `json:"id"`
			Name        string `json:"name"`
			HasPassword bool   `json:"has_password"`
		} `json:"sources"`
		SelectedID string `json:"selected_id"`
	}
	if err := json.Unmarshal(raw, &list); err != nil {
		t.Fatal(err)
	}
	if len(list.Sources) != 2 || list.Sources[0].ID != second || list.Sources[1].Name != "Porch" {
		t.Fatalf("sources = %+v", list.Sources)
	}
	if !list.Sources[1].HasPassword {
		t.Error("update without password should keep the stored one")
	}
	if list.SelectedID != id {
		t.Errorf("selected_id = %q, want %q", list.SelectedID, id)
	}

	if resp := env.do(t, http.MethodDelete, "/api/sources/"+id, ""); resp.StatusCode != http.StatusNoContent {
		t.Errorf("delete status = %d", resp.StatusCode)
	}
	if resp := env.do(t, http.MethodDelete, "/api/sources/"+id, ""); resp.StatusCode != http.StatusNotFound {
		t.Errorf("second delete status = %d", resp.StatusCode)
	}
	if resp := env.do(t, http.MethodGet, "/api/selected", ""); resp.StatusCode != http.StatusNoContent {
		t.Errorf("selected after delete = %d, want 204", resp.StatusCode)
	}
}

func TestLifecycleAndFrame(t *testing.T) {
	env := newTestEnv(t, nil)
	id := env.add(t, cam1)

	if resp := env.do(t, http.MethodGet, "/api/sources/"+id+"/frame", ""); resp.StatusCode != http.StatusNotFound {
		t.Errorf("frame before start = %d, want 404", resp.StatusCode)
	}
	if resp := env.do(t, http.MethodPost, "/api/sources/"+id+"/start", ""); resp.StatusCode != http.StatusAccepted {
		t.Fatalf("start status = %d", resp.StatusCode)
	}
	if resp := env.do(t, http.MethodPost, "/api/sources/nope/start", ""); resp.StatusCode != http.StatusNotFound {
		t.Errorf("start unknown = %d, want 404", resp.StatusCode)
	}

	waitFor(t, "a frame", func() bool {
		_, ok := env.reg.Frames().Latest(id)
		return ok
	})

	resp := env.do(t, http.MethodGet, "/api/sources/"+id+"/frame", "")
	if resp.StatusCode != http.StatusOK || resp.Header.Get("Content-Type") != "image/jpeg" {
		t.Fatalf("frame = %d %s", resp.StatusCode, resp.Header.Get("Content-Type"))
	}

	resp = env.do(t, http.MethodPost, "/api/sources/"+id+"/pause", `{"paused":true}`)
	var pause struct {
		Changed bool `json:"changed"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&pause); err != nil || !pause.Changed {
		t.Fatalf("pause = %+v, %v", pause, err)
	}
	rec, _ := env.reg.Get(id)
	if rec.State() != domain.StatePaused {
		t.Errorf("state = %s, want PAUSED", rec.State())
	}
	if resp := env.do(t, http.MethodPost, "/api/sources/"+id+"/pause", `{}`); resp.StatusCode != http.StatusBadRequest {
		t.Errorf("pause without flag = %d, want 400", resp.StatusCode)
	}

	if resp := env.do(t, http.MethodPost, "/api/sources/"+id+"/stop", ""); resp.StatusCode != http.StatusAccepted {
		t.Errorf("stop status = %d", resp.StatusCode)
	}
	if rec.State() != domain.StateStopped {
		t.Errorf("state = %s, want STOPPED", rec.State())
	}
}

func TestFrameStream(t *testing.T) {
	env := newTestEnv(t, nil)
	id := env.add(t, cam1)

	if resp := env.do(t, http.MethodGet, "/api/sources/nope/stream", ""); resp.StatusCode != http.StatusNotFound {
		t.Errorf("stream unknown = %d, want 404", resp.StatusCode)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, env.srv.URL+"/api/sources/"+id+"/stream", nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	mediaType, params, err := mime.ParseMediaType(resp.Header.Get("Content-Type"))
	if err != nil || mediaType != "multipart/x-mixed-replace" {
		t.Fatalf("content type = %q, %v", resp.Header.Get("Content-Type"), err)
	}

	env.do(t, http.MethodPost, "/api/sources/"+id+"/start", "")

	parts := multipart.NewReader(resp.Body, params["boundary"])
	var last uint64
	for i := 0; i < 3; i++ {
		part, err := parts.NextPart()
		if err != nil {
			t.Fatalf("part %d: %v", i, err)
		}
		if ct := part.Header.Get("Content-Type"); ct != "image/jpeg" {
			t.Errorf("part content type = %q", ct)
		}
		seq, _ := strconv.ParseUint(part.Header.Get("X-Frame-Seq"), 10, 64)
		if seq <= last {
			t.Errorf("frame seq %d after %d", seq, last)
		}
		last = seq
		if _, err := jpeg.Decode(part); err != nil {
			t.Fatalf("decode part %d: %v", i, err)
		}
	}
}

func TestSnapshot(t *testing.T) {
	env := newTestEnv(t, nil)
	id := env.add(t, cam1)

	if resp := env.do(t, http.MethodPost, "/api/snapshot", ""); resp.StatusCode != http.StatusConflict {
		t.Errorf("snapshot without selection = %d, want 409", resp.StatusCode)
	}

	env.do(t, http.MethodPost, "/api/sources/"+id+"/select", "")
	if resp := env.do(t, http.MethodPost, "/api/snapshot", ""); resp.StatusCode != http.StatusConflict {
		t.Errorf("snapshot without frame = %d, want 409", resp.StatusCode)
	}

	env.do(t, http.MethodPost, "/api/sources/"+id+"/start", "")
	waitFor(t, "a frame", func() bool {
		_, ok := env.reg.Frames().Latest(id)
		return ok
	})

	outside := t.TempDir()
	for _, bad := range []string{"../escaped", filepath.Join(outside, "abs.png")} {
		body, _ := json.Marshal(map[string]string{"path": bad})
		if resp := env.do(t, http.MethodPost, "/api/snapshot", string(body)); resp.StatusCode != http.StatusBadRequest {
			t.Errorf("snapshot to %q = %d, want 400", bad, resp.StatusCode)
		}
	}
	if left, _ := filepath.Glob(filepath.Join(outside, "*")); len(left) > 0 {
		t.Errorf("files written outside the snapshot dir: %v", left)
	}
	if _, err := os.Stat(filepath.Join(filepath.Dir(env.deps.SnapshotDir), "escaped.png")); err == nil {
		t.Error("relative path escaped the snapshot dir")
	}

	body, _ := json.Marshal(map[string]string{"path": "porch/front.jpg"})
	resp := env.do(t, http.MethodPost, "/api/snapshot", string(body))
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("snapshot status = %d", resp.StatusCode)
	}
	var out struct {
		Path string `json:"path"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatal(err)
	}
	want := filepath.Join(env.deps.SnapshotDir, "porch", "front.jpg")
	if out.Path != want {
		t.Errorf("snapshot path = %q, want %q", out.Path, want)
	}
	if _, err := os.Stat(want); err != nil {
		t.Errorf("snapshot file: %v", err)
	}
}

func TestRetryTrigger(t *testing.T) {
	env := newTestEnv(t, nil)

	if resp := env.do(t, http.MethodPost, "/api/retry", ""); resp.StatusCode != http.StatusAccepted {
		t.Errorf("first retry = %d, want 202", resp.StatusCode)
	}
	if resp := env.do(t, http.MethodPost, "/api/retry", ""); resp.StatusCode != http.StatusTooManyRequests {
		t.Errorf("second retry = %d, want 429", resp.StatusCode)
	}
}

func TestDiscover(t *testing.T) {
	found := []discovery.Candidate{{
		Instance: "Porch",
		Config:   domain.SourceConfig{Name: "Porch", Host: "192.168.1.40", Port: 554}.WithDefaults(0),
	}}

	tests := []struct {
		name     string
		discover deps.DiscoverFunc
		want     int
	}{
		{name: "disabled", want: http.StatusServiceUnavailable},
		{
			name: "found",
			discover: func(context.Context, time.Duration, logger.Logger) ([]discovery.Candidate, error) {
				return found, nil
			},
			want: http.StatusOK,
		},
		{
			name: "browse error",
			discover: func(context.Context, time.Duration, logger.Logger) ([]discovery.Candidate, error) {
				return nil, errors.New("no multicast interface")
			},
			want: http.StatusBadGateway,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t, func(d *deps.Deps) { d.Discover = tt.discover })
			resp := env.do(t, http.MethodGet, "/api/discover", "")
			if resp.StatusCode != tt.want {
				t.Fatalf("status = %d, want %d", resp.StatusCode, tt.want)
			}
			if tt.want != http.StatusOK {
				return
			}
			var out struct {
				Candidates []struct {
					Instance string `json:"instance"`
					Config   struct {
						Host string `json:"host"`
						Port int    `json:"port"`
					} `json:"config"`
				} `json:"candidates"`
			}
			if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
				t.Fatal(err)
			}
			if len(out.Candidates) != 1 || out.Candidates[0].Config.Host != "192.168.1.40" {
				t.Errorf("candidates = %+v", out.Candidates)
			}
		})
	}
}

func TestEventStream(t *testing.T) {
	env := newTestEnv(t, nil)

	url := "ws" + strings.TrimPrefix(env.srv.URL, "http") + "/api/events"
	ws, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer ws.Close()
	_ = ws.SetReadDeadline(time.Now().Add(3 * time.Second))

	var hello struct {
		Kind string `json:"kind"`
	}
	if err := ws.ReadJSON(&hello); err != nil || hello.Kind != "hello" {
		t.Fatalf("hello = %+v, %v", hello, err)
	}

	id := env.add(t, cam1)

	var n events.Notification
	if err := ws.ReadJSON(&n); err != nil {
		t.Fatalf("read: %v", err)
	}
	if n.Kind != events.Added || n.SourceID != id {
		t.Errorf("notification = %+v", n)
	}
}

func TestHostEnforcement(t *testing.T) {
	env := newTestEnv(t, func(d *deps.Deps) { d.AllowedHosts = []string{"cams.home.lan"} })

	req, _ := http.NewRequest(http.MethodGet, env.srv.URL+"/api/sources", nil)
	req.Host = "evil.example"
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusForbidden {
		t.Errorf("status = %d, want 403", resp.StatusCode)
	}

	if resp := env.do(t, http.MethodGet, "/healthz", ""); resp.StatusCode != http.StatusOK {
		t.Errorf("healthz should stay open, got %d", resp.StatusCode)
	}
}
