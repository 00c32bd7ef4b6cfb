// Package tango wires the expression keyboard together: detector, overlay,
// session, camera and dashboard.
package tango

import (
	"context"
	"fmt"
	"strings"

	"github.com/teslashibe/go-tango/internal/config"
	"github.com/teslashibe/go-tango/internal/log"
	"github.com/teslashibe/go-tango/pkg/camera"
	"github.com/teslashibe/go-tango/pkg/detection"
	"github.com/teslashibe/go-tango/pkg/overlay"
	"github.com/teslashibe/go-tango/pkg/session"
	"github.com/teslashibe/go-tango/pkg/web"
)

// ConfigError is returned by New when the configuration is unusable.
type ConfigError struct {
	Problems []string
}

func (e *ConfigError) Error() string {
	return "invalid configuration: " + strings.Join(e.Problems, "; ")
}

// Options are run-time switches that are not part of the config file.
type Options struct {
	// AutoEnable starts capture as soon as the app runs.
	AutoEnable bool
}

// App is the main application orchestrator.
// It manages all components and their lifecycle.
type App struct {
	config  config.Config
	options Options

	detector   detection.Detector
	assets     *overlay.Store
	compositor *overlay.Compositor
	session    *session.Session
	controller *session.Controller
	cameras    *camera.Manager
	webServer  *web.Server

	// runCtx outlives config-change restarts; set by Run.
	runCtx context.Context
}

// New validates cfg and creates an app.
func New(cfg config.Config, opts Options) (*App, error) {
	if problems := cfg.Validate(); len(problems) > 0 {
		return nil, &ConfigError{Problems: problems}
	}
	return &App{
		config:  cfg,
		options: opts,
		runCtx:  context.Background(),
	}, nil
}

// Init builds all components. Models are loaded lazily on first enable.
func (a *App) Init() error {
	alphabet, err := a.config.Alphabet()
	if err != nil {
		return fmt.Errorf("alphabet: %w", err)
	}
	a.session, err = session.New(alphabet, a.config.Gesture.StableFrames)
	if err != nil {
		return fmt.Errorf("session: %w", err)
	}

	a.detector = detection.NewFaceExpression(a.config.Detection())
	a.assets = overlay.NewStore(a.config.Overlay.AssetRoot, a.config.Overlay.Ext)
	a.compositor = overlay.NewCompositor(a.assets)

	a.cameras = camera.NewManager(a.config.Camera)
	a.cameras.OnConfigChange = a.restartCapture

	a.controller = session.NewController(a.config.Controller(), a.session, a.detector, a.compositor, a.openCamera)
	a.webServer = web.NewServer(a.config.Web(), a.controller, a.cameras)
	a.controller.OnFrame(a.webServer.Stream().Publish)

	log.Info("initialized",
		"alphabet", len(alphabet),
		"stable_frames", a.config.Gesture.StableFrames,
		"camera", a.config.Camera.Device,
		"assets", a.config.Overlay.AssetRoot)
	return nil
}

// Run serves the dashboard until ctx is cancelled.
func (a *App) Run(ctx context.Context) error {
	a.runCtx = ctx

	if a.config.Overlay.Watch {
		if err := a.assets.Watch(ctx); err != nil {
			log.Warn("emoji hot reload disabled", "error", err)
		}
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- a.webServer.Start(ctx)
	}()

	if a.options.AutoEnable {
		if err := a.controller.Enable(ctx); err != nil {
			log.Error("capture not started", "error", err)
		}
	}

	select {
	case <-ctx.Done():
		return nil
	case err := <-errCh:
		return fmt.Errorf("web server: %w", err)
	}
}

// Shutdown stops capture and the dashboard.
func (a *App) Shutdown() {
	if a.controller != nil {
		if err := a.controller.Close(); err != nil {
			log.Warn("close detector", "error", err)
		}
	}
	if a.webServer != nil {
		if err := a.webServer.Shutdown(); err != nil {
			log.Warn("web shutdown", "error", err)
		}
	}
	if a.session != nil {
		log.Info("goodbye", "output", a.session.Snapshot().Output)
	}
}

// Session exposes the typing state.
func (a *App) Session() *session.Session {
	return a.session
}

func (a *App) openCamera(ctx context.Context) (session.Source, error) {
	c, err := camera.Open(a.cameras.GetConfig())
	if err != nil {
		return nil, err
	}
	return c, nil
}

// restartCapture reopens the camera with new settings if it is running.
func (a *App) restartCapture(cfg camera.Config) error {
	if !a.controller.Enabled() {
		return nil
	}
	log.Info("camera settings changed, restarting capture",
		"device", cfg.Device, "width", cfg.Width, "height", cfg.Height)
	a.controller.Disable()
	return a.controller.Enable(a.runCtx)
}
