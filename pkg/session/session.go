// Package session holds the typing state of one user: the keyboard
// automaton, the gesture debouncer and the capture lifecycle.
package session

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/teslashibe/go-tango/internal/log"
	"github.com/teslashibe/go-tango/pkg/expression"
	"github.com/teslashibe/go-tango/pkg/gesture"
	"github.com/teslashibe/go-tango/pkg/keyboard"
	"github.com/teslashibe/go-tango/pkg/pipeline"
)

// Snapshot is a point-in-time view of the session, safe to serialise.
type Snapshot struct {
	SessionID string    `json:"session_id"`
	Enabled   bool      `json:"enabled"`
	Ready     bool      `json:"ready"`
	Left      []string  `json:"left"`
	Right     []string  `json:"right"`
	Output    string    `json:"output"`
	Label     string    `json:"label"`
	Present   bool      `json:"present"`
	Action    string    `json:"action"`
	Committed string    `json:"committed,omitempty"`
	Error     string    `json:"error,omitempty"`
	UpdatedAt time.Time `json:"updated_at"`

	Frames     uint64 `json:"frames"`
	Detections uint64 `json:"detections"`
	Actions    uint64 `json:"actions"`
	Commits    uint64 `json:"commits"`
}

// Listener is called after every visible state change, outside the lock.
type Listener func(Snapshot)

// Session is the explicit state of the keyboard. Frames are applied in
// order; readers take snapshots.
type Session struct {
	mu sync.RWMutex

	id       string
	enabled  bool
	ready    bool
	lastErr  string
	keyboard *keyboard.Automaton
	debounce *gesture.Debouncer

	label     expression.Label
	present   bool
	action    gesture.Action
	committed keyboard.Token
	updatedAt time.Time

	frames     uint64
	detections uint64
	actions    uint64
	commits    uint64

	listeners map[int]Listener
	nextID    int
}

// New creates a disabled session over alphabet.
func New(alphabet keyboard.Set, stableFrames int) (*Session, error) {
	kb, err := keyboard.New(alphabet)
	if err != nil {
		return nil, err
	}
	return &Session{
		id:        uuid.New().String(),
		keyboard:  kb,
		debounce:  gesture.NewDebouncer(stableFrames),
		updatedAt: time.Now(),
		listeners: make(map[int]Listener),
	}, nil
}

// ID returns the current session id. It changes on every Begin.
func (s *Session) ID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.id
}

// Enabled reports whether capture is running.
func (s *Session) Enabled() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.enabled
}

// Subscribe registers fn for state changes. Call the returned func to stop.
func (s *Session) Subscribe(fn Listener) func() {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = fn
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.listeners, id)
		s.mu.Unlock()
	}
}

// HandleFrame is the pipeline publisher for this session.
func (s *Session) HandleFrame(f pipeline.Frame) {
	s.mu.Lock()
	s.frames++
	s.detections += uint64(len(f.Detections))
	_, _, changed := s.observeLocked(f.Label, f.Present)
	snap, listeners := s.snapshotLocked(changed)
	s.mu.Unlock()

	s.notify(snap, listeners)
}

// Observe feeds one gesture signal through the debouncer and keyboard.
// It returns the action that fired, if any, and what the keyboard did.
func (s *Session) Observe(label expression.Label, present bool) (gesture.Action, keyboard.Result) {
	s.mu.Lock()
	action, res, _ := s.observeLocked(label, present)
	snap, listeners := s.snapshotLocked(true)
	s.mu.Unlock()

	s.notify(snap, listeners)
	return action, res
}

// observeLocked also reports whether anything a viewer would see changed.
func (s *Session) observeLocked(label expression.Label, present bool) (gesture.Action, keyboard.Result, bool) {
	changed := label != s.label || present != s.present
	s.label, s.present = label, present

	action := s.debounce.Observe(label, present)
	s.action = action
	if action == gesture.NoAction {
		left, right := s.keyboard.Partition()
		return action, keyboard.Result{Action: action, Left: left, Right: right}, changed
	}

	res := s.keyboard.Apply(action)
	s.actions++
	s.committed = res.Committed
	if res.Committed != "" {
		s.commits++
	}

	log.Info("gesture",
		"action", action.String(),
		"label", label.String(),
		"committed", string(res.Committed),
		"deleted", res.Deleted,
		"output_len", len([]rune(s.keyboard.Output())))
	return action, res, true
}

// Begin starts a capture cycle with a fresh id and debouncer.
func (s *Session) Begin() {
	s.mu.Lock()
	s.id = uuid.New().String()
	s.enabled = true
	s.ready = false
	s.lastErr = ""
	s.debounce.Reset()
	s.label, s.present, s.action = expression.None, false, gesture.NoAction
	snap, listeners := s.snapshotLocked(true)
	s.mu.Unlock()

	log.Info("capture enabled", "session_id", snap.SessionID)
	s.notify(snap, listeners)
}

// MarkReady records that the video source produced its first frame.
func (s *Session) MarkReady() {
	s.mu.Lock()
	s.ready = true
	snap, listeners := s.snapshotLocked(true)
	s.mu.Unlock()

	s.notify(snap, listeners)
}

// End stops the capture cycle. A non-nil err is kept for display.
func (s *Session) End(err error) {
	s.mu.Lock()
	s.enabled = false
	s.ready = false
	s.present = false
	s.lastErr = ""
	if err != nil {
		s.lastErr = err.Error()
	}
	snap, listeners := s.snapshotLocked(true)
	s.mu.Unlock()

	log.Info("capture disabled", "session_id", snap.SessionID, "error", snap.Error)
	s.notify(snap, listeners)
}

// Fail records an error without touching the lifecycle.
func (s *Session) Fail(err error) {
	s.mu.Lock()
	s.lastErr = err.Error()
	snap, listeners := s.snapshotLocked(true)
	s.mu.Unlock()

	s.notify(snap, listeners)
}

// ResetKeyboard returns the selection to the full alphabet.
func (s *Session) ResetKeyboard() {
	s.mu.Lock()
	s.keyboard.Reset()
	snap, listeners := s.snapshotLocked(true)
	s.mu.Unlock()

	s.notify(snap, listeners)
}

// ClearOutput empties the typed text.
func (s *Session) ClearOutput() {
	s.mu.Lock()
	s.keyboard.Clear()
	s.committed = ""
	snap, listeners := s.snapshotLocked(true)
	s.mu.Unlock()

	s.notify(snap, listeners)
}

// Snapshot returns the current state.
func (s *Session) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.buildSnapshot()
}

// snapshotLocked stamps the change and captures listeners. Caller holds mu.
func (s *Session) snapshotLocked(changed bool) (Snapshot, []Listener) {
	if !changed {
		return Snapshot{}, nil
	}
	s.updatedAt = time.Now()

	listeners := make([]Listener, 0, len(s.listeners))
	for _, l := range s.listeners {
		listeners = append(listeners, l)
	}
	return s.buildSnapshot(), listeners
}

func (s *Session) buildSnapshot() Snapshot {
	left, right := s.keyboard.Partition()
	return Snapshot{
		SessionID:  s.id,
		Enabled:    s.enabled,
		Ready:      s.ready,
		Left:       left.Strings(),
		Right:      right.Strings(),
		Output:     s.keyboard.Output(),
		Label:      s.label.String(),
		Present:    s.present,
		Action:     s.action.String(),
		Committed:  string(s.committed),
		Error:      s.lastErr,
		UpdatedAt:  s.updatedAt,
		Frames:     s.frames,
		Detections: s.detections,
		Actions:    s.actions,
		Commits:    s.commits,
	}
}

func (s *Session) notify(snap Snapshot, listeners []Listener) {
	for _, l := range listeners {
		l(snap)
	}
}
