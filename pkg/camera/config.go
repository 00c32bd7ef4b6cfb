// Package camera opens the webcam (or a video file / stream URL) as a
// frame source and keeps its runtime-tunable capture settings.
package camera

import "strconv"

// Config holds capture parameters. They can be changed at runtime through
// the Manager; a change restarts capture.
type Config struct {
	// Device is a camera index ("0"), a file path or a stream URL.
	Device string `json:"device" yaml:"device"`

	// === Resolution ===
	Width     int `json:"width" yaml:"width"`         // Requested frame width in pixels
	Height    int `json:"height" yaml:"height"`       // Requested frame height in pixels
	Framerate int `json:"framerate" yaml:"framerate"` // Requested FPS, also caps the preview stream
	Quality   int `json:"quality" yaml:"quality"`     // JPEG quality 1-100 for the preview stream

	// Brightness is passed to the driver when non-zero (0-255 on most UVC cameras).
	Brightness float64 `json:"brightness" yaml:"brightness"`

	// Mirror flips frames horizontally so the preview behaves like a mirror.
	Mirror bool `json:"mirror" yaml:"mirror"`
}

// Limits accepted by Validate.
const (
	MaxWidth     = 3840
	MaxHeight    = 2160
	MaxFramerate = 120
)

// DefaultConfig returns 640x480 at 30 fps from the first camera.
// Expression classification works on small crops, so more pixels only add latency.
func DefaultConfig() Config {
	return Config{
		Device:    "0",
		Width:     640,
		Height:    480,
		Framerate: 30,
		Quality:   75,
		Mirror:    true,
	}
}

// Index returns the device as a camera index, if it is one.
func (c *Config) Index() (int, bool) {
	idx, err := strconv.Atoi(c.Device)
	if err != nil || idx < 0 {
		return 0, false
	}
	return idx, true
}

// Validate checks if the config values are within valid ranges.
// Returns a list of validation errors, or nil if valid.
func (c *Config) Validate() []string {
	var errors []string

	if c.Device == "" {
		errors = append(errors, "device must be a camera index, file path or URL")
	}
	if c.Width < 160 || c.Width > MaxWidth {
		errors = append(errors, "width must be between 160 and 3840")
	}
	if c.Height < 120 || c.Height > MaxHeight {
		errors = append(errors, "height must be between 120 and 2160")
	}
	if c.Framerate < 1 || c.Framerate > MaxFramerate {
		errors = append(errors, "framerate must be between 1 and 120")
	}
	if c.Quality < 1 || c.Quality > 100 {
		errors = append(errors, "quality must be between 1 and 100")
	}
	if c.Brightness < 0 || c.Brightness > 255 {
		errors = append(errors, "brightness must be between 0 and 255")
	}

	return errors
}

// Capabilities describes what the capture layer accepts.
func Capabilities() map[string]interface{} {
	return map[string]interface{}{
		"max_width":     MaxWidth,
		"max_height":    MaxHeight,
		"max_framerate": MaxFramerate,
		"presets":       PresetNames(),
	}
}
