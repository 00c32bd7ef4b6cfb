// Package web serves the keyboard dashboard: a JSON API to drive capture
// and the keyboard, a websocket state stream and a live camera preview.
package web

import (
	"context"
	"fmt"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/websocket/v2"

	"github.com/teslashibe/go-tango/internal/log"
	"github.com/teslashibe/go-tango/pkg/camera"
	"github.com/teslashibe/go-tango/pkg/expression"
	"github.com/teslashibe/go-tango/pkg/gesture"
	"github.com/teslashibe/go-tango/pkg/hub"
	"github.com/teslashibe/go-tango/pkg/session"
)

// Capture is what the dashboard drives. *session.Controller implements it.
type Capture interface {
	SetEnabled(ctx context.Context, enabled bool) error
	Enabled() bool
	Gesture(label expression.Label) (gesture.Action, error)
	Session() *session.Session
}

// Config holds dashboard settings.
type Config struct {
	Port      string // Listen port, e.g. "8080"
	StaticDir string // Dashboard assets; empty disables static serving
}

// DefaultConfig serves ./web on port 8080.
func DefaultConfig() Config {
	return Config{
		Port:      "8080",
		StaticDir: "./web",
	}
}

// Server is the web dashboard server
type Server struct {
	app     *fiber.App
	config  Config
	capture Capture
	cameras *camera.Manager

	// Hubs for websocket broadcast
	stateHub  *hub.Hub
	cameraHub *hub.Hub

	stream      *Streamer
	unsubscribe func()
}

// NewServer creates the dashboard. cameras may be nil when there is no
// runtime-configurable camera (replayed video, tests).
func NewServer(cfg Config, capture Capture, cameras *camera.Manager) *Server {
	s := &Server{
		config:    cfg,
		capture:   capture,
		cameras:   cameras,
		stateHub:  hub.New("state"),
		cameraHub: hub.New("camera"),
	}
	s.stream = NewStreamer(s.cameraHub, s.streamSettings)

	// Every visible change goes out on /ws/state.
	s.unsubscribe = capture.Session().Subscribe(func(snap session.Snapshot) {
		if err := s.stateHub.BroadcastJSON(snap); err != nil {
			log.Warn("broadcast state", "error", err)
		}
	})

	app := fiber.New(fiber.Config{
		AppName:               "Tango",
		DisableStartupMessage: true,
	})

	app.Use(recover.New())
	app.Use(cors.New())

	if cfg.StaticDir != "" {
		app.Static("/", cfg.StaticDir)
	}

	api := app.Group("/api")
	api.Get("/health", s.handleHealth)
	api.Get("/state", s.handleState)
	api.Post("/capture", s.handleCapture)
	api.Post("/keyboard/reset", s.handleResetKeyboard)
	api.Post("/output/clear", s.handleClearOutput)
	api.Post("/gesture", s.handleGesture)
	api.Get("/camera", s.handleGetCamera)
	api.Post("/camera", s.handleSetCamera)
	api.Get("/camera/capabilities", s.handleCameraCapabilities)

	// WebSocket upgrade middleware
	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})

	app.Get("/ws/state", websocket.New(s.handleStateWS))
	app.Get("/ws/camera", websocket.New(s.handleCameraWS))

	s.app = app
	return s
}

// App exposes the fiber app, mainly for tests.
func (s *Server) App() *fiber.App {
	return s.app
}

// Stream returns the preview streamer. Register its Publish as a frame hook.
func (s *Server) Stream() *Streamer {
	return s.stream
}

// Start runs the hubs and the streamer until ctx is done and serves HTTP
// until Shutdown.
func (s *Server) Start(ctx context.Context) error {
	go s.stateHub.Run(ctx)
	go s.cameraHub.Run(ctx)
	go s.stream.Run(ctx)

	log.Info("web dashboard listening", "url", fmt.Sprintf("http://localhost:%s", s.config.Port))
	return s.app.Listen(":" + s.config.Port)
}

// Shutdown gracefully stops the web server
func (s *Server) Shutdown() error {
	s.unsubscribe()
	return s.app.Shutdown()
}

// streamSettings reads the preview rate and quality from the camera config.
func (s *Server) streamSettings() (fps, quality int) {
	if s.cameras == nil {
		cfg := camera.DefaultConfig()
		return cfg.Framerate, cfg.Quality
	}
	cfg := s.cameras.GetConfig()
	return cfg.Framerate, cfg.Quality
}
