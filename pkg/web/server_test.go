package web

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"image"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/teslashibe/go-tango/pkg/camera"
	"github.com/teslashibe/go-tango/pkg/detection"
	"github.com/teslashibe/go-tango/pkg/expression"
	"github.com/teslashibe/go-tango/pkg/gesture"
	"github.com/teslashibe/go-tango/pkg/hub"
	"github.com/teslashibe/go-tango/pkg/keyboard"
	"github.com/teslashibe/go-tango/pkg/pipeline"
	"github.com/teslashibe/go-tango/pkg/session"
)

type fakeCapture struct {
	sess      *session.Session
	enableErr error

	mu      sync.Mutex
	enabled bool
}

func newFakeCapture(t *testing.T) *fakeCapture {
	t.Helper()
	alpha, err := keyboard.NewSet("A", "B", "C", "D", "E")
	if err != nil {
		t.Fatalf("NewSet: %v", err)
	}
	sess, err := session.New(alpha, 1)
	if err != nil {
		t.Fatalf("session.New: %v", err)
	}
	return &fakeCapture{sess: sess}
}

func (f *fakeCapture) SetEnabled(ctx context.Context, enabled bool) error {
	if enabled && f.enableErr != nil {
		return f.enableErr
	}
	f.mu.Lock()
	f.enabled = enabled
	f.mu.Unlock()
	return nil
}

func (f *fakeCapture) Enabled() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.enabled
}

func (f *fakeCapture) Gesture(label expression.Label) (gesture.Action, error) {
	if f.Enabled() {
		return gesture.NoAction, session.ErrCaptureActive
	}
	a, _ := f.sess.Observe(label, label != expression.None)
	return a, nil
}

func (f *fakeCapture) Session() *session.Session {
	return f.sess
}

func testServer(t *testing.T, cams *camera.Manager) (*Server, *fakeCapture) {
	t.Helper()
	fc := newFakeCapture(t)
	s := NewServer(Config{Port: "0"}, fc, cams)
	return s, fc
}

func do(t *testing.T, s *Server, method, path, body string) (int, []byte) {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := s.App().Test(req, -1)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()
	data, _ := io.ReadAll(resp.Body)
	return resp.StatusCode, data
}

func TestHandleState(t *testing.T) {
	s, _ := testServer(t, nil)

	status, body := do(t, s, http.MethodGet, "/api/state", "")
	if status != http.StatusOK {
		t.Fatalf("status = %d, body %s", status, body)
	}
	var snap session.Snapshot
	if err := json.Unmarshal(body, &snap); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if strings.Join(snap.Left, "") != "ABC" || strings.Join(snap.Right, "") != "DE" {
		t.Errorf("partition = %v %v", snap.Left, snap.Right)
	}
	if snap.SessionID == "" {
		t.Error("session id missing")
	}
}

func TestHandleCapture(t *testing.T) {
	tests := []struct {
		name      string
		enableErr error
		body      string
		want      int
	}{
		{"enable", nil, `{"enabled":true}`, http.StatusOK},
		{"disable", nil, `{"enabled":false}`, http.StatusOK},
		{
			name:      "model missing",
			enableErr: &detection.ModelLoadError{Asset: "models/face.onnx", Err: errors.New("not found")},
			body:      `{"enabled":true}`,
			want:      http.StatusServiceUnavailable,
		},
		{"other failure", errors.New("camera busy"), `{"enabled":true}`, http.StatusInternalServerError},
		{"bad body", nil, `{"enabled":`, http.StatusBadRequest},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			s, fc := testServer(t, nil)
			fc.enableErr = tc.enableErr

			status, body := do(t, s, http.MethodPost, "/api/capture", tc.body)
			if status != tc.want {
				t.Errorf("status = %d, want %d (body %s)", status, tc.want, body)
			}
			if tc.want == http.StatusServiceUnavailable && !bytes.Contains(body, []byte("models/face.onnx")) {
				t.Errorf("error body should name the model: %s", body)
			}
		})
	}
}

func TestHandleGesture(t *testing.T) {
	s, fc := testServer(t, nil)

	post := func(label string) (int, GestureResponse) {
		status, body := do(t, s, http.MethodPost, "/api/gesture", `{"label":"`+label+`"}`)
		var resp GestureResponse
		json.Unmarshal(body, &resp)
		return status, resp
	}

	status, resp := post("happy")
	if status != http.StatusOK || resp.Action != "select_right" {
		t.Fatalf("happy: %d %+v", status, resp)
	}
	if strings.Join(resp.State.Left, "") != "D" {
		t.Errorf("left after happy = %v, want [D]", resp.State.Left)
	}

	// Held: no second action.
	if _, resp = post("happy"); resp.Action != "none" {
		t.Errorf("held happy action = %q, want none", resp.Action)
	}

	post("neutral")
	if _, resp = post("HAPPY"); resp.State.Output != "E" {
		t.Errorf("output = %q, want E", resp.State.Output)
	}

	if status, _ := post("contempt"); status != http.StatusBadRequest {
		t.Errorf("unknown label status = %d, want 400", status)
	}

	fc.SetEnabled(context.Background(), true)
	if status, _ := post("angry"); status != http.StatusConflict {
		t.Errorf("gesture while capturing = %d, want 409", status)
	}
}

func TestHandleKeyboardAndOutput(t *testing.T) {
	s, fc := testServer(t, nil)
	sess := fc.Session()

	sess.Observe(expression.Happy, true)
	sess.Observe(expression.Neutral, true)
	sess.Observe(expression.Happy, true) // "E"
	sess.Observe(expression.Angry, true) // [A B C]

	status, body := do(t, s, http.MethodPost, "/api/keyboard/reset", "")
	if status != http.StatusOK {
		t.Fatalf("reset status = %d", status)
	}
	var snap session.Snapshot
	json.Unmarshal(body, &snap)
	if len(snap.Left)+len(snap.Right) != 5 || snap.Output != "E" {
		t.Errorf("after reset: %v %v output %q", snap.Left, snap.Right, snap.Output)
	}

	_, body = do(t, s, http.MethodPost, "/api/output/clear", "")
	json.Unmarshal(body, &snap)
	if snap.Output != "" {
		t.Errorf("output after clear = %q", snap.Output)
	}
}

func TestHandleCamera(t *testing.T) {
	s, _ := testServer(t, nil)
	if status, _ := do(t, s, http.MethodGet, "/api/camera", ""); status != http.StatusNotFound {
		t.Errorf("no manager: status = %d, want 404", status)
	}

	cams := camera.NewManager(camera.DefaultConfig())
	var restarted int
	cams.OnConfigChange = func(camera.Config) error { restarted++; return nil }
	s, _ = testServer(t, cams)

	status, body := do(t, s, http.MethodPost, "/api/camera", `{"preset":"low"}`)
	if status != http.StatusOK {
		t.Fatalf("preset status = %d, body %s", status, body)
	}
	if cams.GetConfig().Width != 320 || restarted != 1 {
		t.Errorf("config = %+v, restarts = %d", cams.GetConfig(), restarted)
	}

	if status, _ := do(t, s, http.MethodPost, "/api/camera", `{"quality":0}`); status != http.StatusBadRequest {
		t.Errorf("invalid quality status = %d, want 400", status)
	}

	status, body = do(t, s, http.MethodGet, "/api/camera/capabilities", "")
	if status != http.StatusOK || !bytes.Contains(body, []byte(`"presets"`)) {
		t.Errorf("capabilities: %d %s", status, body)
	}
}

func TestWebSocketRequiresUpgrade(t *testing.T) {
	s, _ := testServer(t, nil)
	if status, _ := do(t, s, http.MethodGet, "/ws/state", ""); status != http.StatusUpgradeRequired {
		t.Errorf("plain GET /ws/state = %d, want 426", status)
	}
}

func TestStateWebSocket(t *testing.T) {
	fc := newFakeCapture(t)
	s := NewServer(Config{Port: "18091"}, fc, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go s.Start(ctx)
	defer s.Shutdown()
	time.Sleep(100 * time.Millisecond)

	conn, _, err := websocket.DefaultDialer.Dial("ws://localhost:18091/ws/state", nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	conn.SetReadDeadline(time.Now().Add(3 * time.Second))

	var snap session.Snapshot
	if err := conn.ReadJSON(&snap); err != nil {
		t.Fatalf("initial snapshot: %v", err)
	}
	if snap.Output != "" || snap.Action != "none" {
		t.Errorf("initial snapshot = %+v", snap)
	}

	deadline := time.Now().Add(2 * time.Second)
	for s.stateHub.ClientCount() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}

	fc.Gesture(expression.Angry)
	if err := conn.ReadJSON(&snap); err != nil {
		t.Fatalf("update: %v", err)
	}
	if snap.Action != "select_left" || strings.Join(snap.Left, "") != "AB" {
		t.Errorf("update = action %q left %v", snap.Action, snap.Left)
	}
}

func TestStreamer_Publish(t *testing.T) {
	s, _ := testServer(t, nil)
	st := s.Stream()

	frame := pipeline.Frame{
		Image:   image.NewRGBA(image.Rect(0, 0, 64, 48)),
		Overlay: image.NewRGBA(image.Rect(0, 0, 64, 48)),
	}

	// Nobody is watching.
	st.Publish(frame)
	if len(st.frames) != 0 {
		t.Error("frames should be dropped without camera clients")
	}

	// A registered client with no pumps is enough to count as a viewer.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go s.cameraHub.Run(ctx)
	registerIdleClient(t, s)

	st.Publish(frame)
	if len(st.frames) != 1 {
		t.Fatalf("queued = %d, want 1", len(st.frames))
	}
	st.Publish(frame) // Too soon for 30 fps
	st.last = time.Time{}
	st.Publish(frame) // Encoder busy
	if _, skipped := st.Stats(); skipped != 1 {
		t.Errorf("skipped = %d, want 1", skipped)
	}

	go st.Run(ctx)
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if sent, _ := st.Stats(); sent == 1 {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Error("queued frame was never encoded")
}

// idleConn satisfies hub.Conn without doing any I/O.
type idleConn struct{}

func (idleConn) ReadMessage() (int, []byte, error) { return 0, nil, io.EOF }
func (idleConn) WriteMessage(int, []byte) error    { return nil }
func (idleConn) SetReadLimit(int64)                {}
func (idleConn) SetReadDeadline(time.Time) error   { return nil }
func (idleConn) SetWriteDeadline(time.Time) error  { return nil }
func (idleConn) SetPongHandler(func(string) error) {}
func (idleConn) Close() error                      { return nil }

func registerIdleClient(t *testing.T, s *Server) {
	t.Helper()
	hub.NewClient(s.cameraHub, idleConn{})

	deadline := time.Now().Add(2 * time.Second)
	for s.cameraHub.ClientCount() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("client never registered")
		}
		time.Sleep(5 * time.Millisecond)
	}
}
