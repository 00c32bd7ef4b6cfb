package web

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"

	"github.com/teslashibe/go-tango/internal/log"
	"github.com/teslashibe/go-tango/pkg/camera"
	"github.com/teslashibe/go-tango/pkg/detection"
	"github.com/teslashibe/go-tango/pkg/expression"
	"github.com/teslashibe/go-tango/pkg/hub"
	"github.com/teslashibe/go-tango/pkg/session"
)

// CaptureRequest is the body of POST /api/capture.
type CaptureRequest struct {
	Enabled bool `json:"enabled"`
}

// GestureRequest is the body of POST /api/gesture.
type GestureRequest struct {
	Label string `json:"label"`
}

// GestureResponse reports what a manual gesture did.
type GestureResponse struct {
	Action string           `json:"action"`
	State  session.Snapshot `json:"state"`
}

func errorJSON(c *fiber.Ctx, status int, err error) error {
	return c.Status(status).JSON(fiber.Map{
		"error": err.Error(),
	})
}

// handleHealth reports liveness and connected dashboards
func (s *Server) handleHealth(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status":         "ok",
		"capture":        s.capture.Enabled(),
		"state_clients":  s.stateHub.ClientCount(),
		"camera_clients": s.cameraHub.ClientCount(),
	})
}

// handleState returns the current session snapshot
func (s *Server) handleState(c *fiber.Ctx) error {
	return c.JSON(s.capture.Session().Snapshot())
}

// handleCapture turns the camera pipeline on or off
func (s *Server) handleCapture(c *fiber.Ctx) error {
	var req CaptureRequest
	if err := c.BodyParser(&req); err != nil {
		return errorJSON(c, fiber.StatusBadRequest, err)
	}

	if err := s.capture.SetEnabled(c.UserContext(), req.Enabled); err != nil {
		if detection.IsModelLoad(err) {
			return errorJSON(c, fiber.StatusServiceUnavailable, err)
		}
		return errorJSON(c, fiber.StatusInternalServerError, err)
	}
	return c.JSON(s.capture.Session().Snapshot())
}

// handleResetKeyboard returns the selection to the full alphabet
func (s *Server) handleResetKeyboard(c *fiber.Ctx) error {
	sess := s.capture.Session()
	sess.ResetKeyboard()
	return c.JSON(sess.Snapshot())
}

// handleClearOutput empties the typed text
func (s *Server) handleClearOutput(c *fiber.Ctx) error {
	sess := s.capture.Session()
	sess.ClearOutput()
	return c.JSON(sess.Snapshot())
}

// handleGesture injects an expression as if the camera had seen it
func (s *Server) handleGesture(c *fiber.Ctx) error {
	var req GestureRequest
	if err := c.BodyParser(&req); err != nil {
		return errorJSON(c, fiber.StatusBadRequest, err)
	}

	label, err := expression.Parse(req.Label)
	if err != nil {
		return errorJSON(c, fiber.StatusBadRequest, err)
	}

	action, err := s.capture.Gesture(label)
	if err != nil {
		if errors.Is(err, session.ErrCaptureActive) {
			return errorJSON(c, fiber.StatusConflict, err)
		}
		return errorJSON(c, fiber.StatusInternalServerError, err)
	}

	return c.JSON(GestureResponse{
		Action: action.String(),
		State:  s.capture.Session().Snapshot(),
	})
}

// handleGetCamera returns the capture settings
func (s *Server) handleGetCamera(c *fiber.Ctx) error {
	if s.cameras == nil {
		return errorJSON(c, fiber.StatusNotFound, errors.New("camera is not configurable"))
	}
	return c.JSON(s.cameras.GetConfig())
}

// handleSetCamera applies a partial settings update or a preset
func (s *Server) handleSetCamera(c *fiber.Ctx) error {
	if s.cameras == nil {
		return errorJSON(c, fiber.StatusNotFound, errors.New("camera is not configurable"))
	}

	update, err := camera.DecodeUpdate(c.Body())
	if err != nil {
		return errorJSON(c, fiber.StatusBadRequest, err)
	}
	if err := s.cameras.Apply(update); err != nil {
		return errorJSON(c, fiber.StatusBadRequest, err)
	}
	return c.JSON(s.cameras.GetConfig())
}

// handleCameraCapabilities lists limits and presets
func (s *Server) handleCameraCapabilities(c *fiber.Ctx) error {
	return c.JSON(camera.Capabilities())
}

// handleStateWS streams snapshots, starting with the current one
func (s *Server) handleStateWS(c *websocket.Conn) {
	// Nothing else writes to the connection until the client pumps start.
	if err := c.WriteJSON(s.capture.Session().Snapshot()); err != nil {
		log.Debug("state websocket closed early", "error", err)
		c.Close()
		return
	}
	hub.NewClient(s.stateHub, c).Run()
}

// handleCameraWS streams JPEG preview frames
func (s *Server) handleCameraWS(c *websocket.Conn) {
	hub.NewClient(s.cameraHub, c).Run()
}
