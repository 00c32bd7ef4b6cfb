package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/teslashibe/go-tango/internal/log"
	"github.com/teslashibe/go-tango/pkg/detection"
	"github.com/teslashibe/go-tango/pkg/expression"
	"github.com/teslashibe/go-tango/pkg/gesture"
	"github.com/teslashibe/go-tango/pkg/overlay"
	"github.com/teslashibe/go-tango/pkg/pipeline"
)

// ErrCaptureActive is returned for manual gestures while the camera drives
// the keyboard.
var ErrCaptureActive = errors.New("session: capture is enabled")

// Source is a video source the controller can close when capture stops.
type Source interface {
	pipeline.Source
	io.Closer
}

// SourceFactory opens the video source for one capture cycle.
type SourceFactory func(ctx context.Context) (Source, error)

// ControllerConfig tunes startup and the loop.
type ControllerConfig struct {
	ReadyInterval time.Duration // Readiness poll interval (default 500ms)
	ReadyAttempts int           // Polls before giving up (default 60)
	Loop          pipeline.Config
}

// DefaultControllerConfig returns startup defaults.
func DefaultControllerConfig() ControllerConfig {
	return ControllerConfig{
		ReadyInterval: 500 * time.Millisecond,
		ReadyAttempts: 60,
		Loop:          pipeline.DefaultConfig(),
	}
}

// Controller owns the enable/disable lifecycle of capture.
type Controller struct {
	config     ControllerConfig
	session    *Session
	detector   detection.Detector
	compositor *overlay.Compositor
	open       SourceFactory

	mu     sync.Mutex
	loaded bool
	token  *pipeline.Token
	done   chan struct{}
	hooks  []pipeline.Publisher
}

// NewController wires a controller. Capture starts disabled.
func NewController(cfg ControllerConfig, sess *Session, det detection.Detector, comp *overlay.Compositor, open SourceFactory) *Controller {
	return &Controller{
		config:     cfg,
		session:    sess,
		detector:   det,
		compositor: comp,
		open:       open,
	}
}

// Session returns the session the controller drives.
func (c *Controller) Session() *Session {
	return c.session
}

// OnFrame adds a publisher that sees every frame after the session.
// Hooks added while capture runs take effect on the next Enable.
func (c *Controller) OnFrame(p pipeline.Publisher) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.hooks = append(c.hooks, p)
}

// Enabled reports whether a capture cycle is running.
func (c *Controller) Enabled() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.token != nil
}

// SetEnabled enables or disables capture.
func (c *Controller) SetEnabled(ctx context.Context, enabled bool) error {
	if enabled {
		return c.Enable(ctx)
	}
	c.Disable()
	return nil
}

// Enable loads the model (once), opens the source and starts the loop.
// A *detection.ModelLoadError leaves capture disabled.
func (c *Controller) Enable(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.token != nil {
		return nil
	}

	if !c.loaded {
		if err := c.detector.Load(ctx); err != nil {
			log.Error("model load failed", "error", err)
			c.session.Fail(err)
			return err
		}
		c.loaded = true
	}

	src, err := c.open(ctx)
	if err != nil {
		err = fmt.Errorf("open video source: %w", err)
		c.session.Fail(err)
		return err
	}

	hooks := append([]pipeline.Publisher(nil), c.hooks...)
	publish := func(f pipeline.Frame) {
		c.session.HandleFrame(f)
		for _, h := range hooks {
			h(f)
		}
	}

	tok := pipeline.NewToken(context.Background())
	done := make(chan struct{})
	loop := pipeline.NewLoop(c.config.Loop, src, c.detector, c.compositor, publish)

	c.token = tok
	c.done = done
	c.session.Begin()

	go c.run(tok, done, src, loop)
	return nil
}

func (c *Controller) run(tok *pipeline.Token, done chan struct{}, src Source, loop *pipeline.Loop) {
	defer close(done)
	defer func() {
		if err := src.Close(); err != nil {
			log.Warn("close video source", "error", err)
		}
	}()

	err := pipeline.WaitReady(tok.Context(), src, c.config.ReadyInterval, c.config.ReadyAttempts)
	if err == nil {
		c.session.MarkReady()
		log.Info("video source ready")
		err = loop.Run(tok)
	}
	if err != nil && tok.Active() {
		log.Error("capture stopped", "error", err)
	}

	// The loop ended by itself: release the slot.
	c.mu.Lock()
	owned := c.token == tok
	if owned {
		c.token = nil
		c.done = nil
	}
	c.mu.Unlock()

	if owned {
		tok.Cancel()
		c.session.End(err)
	}
}

// Disable cancels the loop and waits for it to exit.
func (c *Controller) Disable() {
	c.mu.Lock()
	tok, done := c.token, c.done
	c.token, c.done = nil, nil
	c.mu.Unlock()

	if tok == nil {
		return
	}
	tok.Cancel()
	<-done
	c.session.End(nil)
}

// Gesture injects a manual expression signal. Refused while capture runs.
// None counts as a frame without a face.
func (c *Controller) Gesture(label expression.Label) (gesture.Action, error) {
	if c.Enabled() {
		return gesture.NoAction, ErrCaptureActive
	}
	action, _ := c.session.Observe(label, label != expression.None)
	return action, nil
}

// Close stops capture and releases the detector.
func (c *Controller) Close() error {
	c.Disable()
	return c.detector.Close()
}
