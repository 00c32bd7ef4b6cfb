// Package config loads go-tango settings: defaults, then an optional YAML
// file, then TANGO_* environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/teslashibe/go-tango/pkg/camera"
	"github.com/teslashibe/go-tango/pkg/detection"
	"github.com/teslashibe/go-tango/pkg/keyboard"
	"github.com/teslashibe/go-tango/pkg/pipeline"
	"github.com/teslashibe/go-tango/pkg/session"
	"github.com/teslashibe/go-tango/pkg/web"
)

// DefaultPath is where the CLI looks for a config file.
const DefaultPath = "tango.yaml"

// Config is the full application configuration.
type Config struct {
	LogLevel string         `yaml:"log_level"`
	HTTP     HTTPConfig     `yaml:"http"`
	Camera   camera.Config  `yaml:"camera"`
	Models   ModelsConfig   `yaml:"models"`
	Overlay  OverlayConfig  `yaml:"overlay"`
	Keyboard KeyboardConfig `yaml:"keyboard"`
	Gesture  GestureConfig  `yaml:"gesture"`
	Pipeline PipelineConfig `yaml:"pipeline"`
}

// HTTPConfig configures the dashboard.
type HTTPConfig struct {
	Port      string `yaml:"port"`
	StaticDir string `yaml:"static_dir"`
}

// ModelsConfig points at the ONNX models.
type ModelsConfig struct {
	FacePath            string  `yaml:"face_path"`
	ExpressionPath      string  `yaml:"expression_path"`
	ConfidenceThreshold float64 `yaml:"confidence_threshold"`
}

// OverlayConfig locates the emoji assets.
type OverlayConfig struct {
	AssetRoot string `yaml:"asset_root"`
	Ext       string `yaml:"ext"`
	Watch     bool   `yaml:"watch"` // Reload assets when files change
}

// KeyboardConfig sets the alphabet. Empty means A-Z, Space, Delete, Enter.
type KeyboardConfig struct {
	Alphabet []string `yaml:"alphabet"`
}

// GestureConfig tunes the debouncer.
type GestureConfig struct {
	StableFrames int `yaml:"stable_frames"`
}

// PipelineConfig tunes startup and the loop.
type PipelineConfig struct {
	ReadyInterval time.Duration `yaml:"ready_interval"`
	ReadyAttempts int           `yaml:"ready_attempts"`
	MinInterval   time.Duration `yaml:"min_interval"`
	WarnEvery     int           `yaml:"warn_every"`
}

// Default returns the built-in configuration.
func Default() Config {
	det := detection.DefaultConfig()
	ctl := session.DefaultControllerConfig()
	w := web.DefaultConfig()

	return Config{
		LogLevel: "info",
		HTTP: HTTPConfig{
			Port:      w.Port,
			StaticDir: w.StaticDir,
		},
		Camera: camera.DefaultConfig(),
		Models: ModelsConfig{
			FacePath:            det.FaceModelPath,
			ExpressionPath:      det.ExpressionModelPath,
			ConfidenceThreshold: det.ConfidenceThresh,
		},
		Overlay: OverlayConfig{
			AssetRoot: "./web/emojis",
			Ext:       "png",
			Watch:     true,
		},
		Gesture: GestureConfig{
			StableFrames: 1,
		},
		Pipeline: PipelineConfig{
			ReadyInterval: ctl.ReadyInterval,
			ReadyAttempts: ctl.ReadyAttempts,
			MinInterval:   ctl.Loop.MinInterval,
			WarnEvery:     ctl.Loop.WarnEvery,
		},
	}
}

// Load reads path over the defaults and applies environment overrides.
// A missing file is not an error.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return cfg, fmt.Errorf("read config %s: %w", path, err)
		default:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return cfg, fmt.Errorf("parse config %s: %w", path, err)
			}
		}
	}

	cfg.applyEnv()
	return cfg, nil
}

func (c *Config) applyEnv() {
	c.LogLevel = envString("TANGO_LOG_LEVEL", c.LogLevel)

	c.HTTP.Port = envString("TANGO_HTTP_PORT", c.HTTP.Port)
	c.HTTP.StaticDir = envString("TANGO_STATIC_DIR", c.HTTP.StaticDir)

	c.Camera.Device = envString("TANGO_CAMERA_DEVICE", c.Camera.Device)
	c.Camera.Width = envInt("TANGO_CAMERA_WIDTH", c.Camera.Width)
	c.Camera.Height = envInt("TANGO_CAMERA_HEIGHT", c.Camera.Height)
	c.Camera.Framerate = envInt("TANGO_CAMERA_FPS", c.Camera.Framerate)
	c.Camera.Quality = envInt("TANGO_CAMERA_QUALITY", c.Camera.Quality)
	c.Camera.Mirror = envBool("TANGO_CAMERA_MIRROR", c.Camera.Mirror)

	c.Models.FacePath = envString("TANGO_FACE_MODEL", c.Models.FacePath)
	c.Models.ExpressionPath = envString("TANGO_EXPRESSION_MODEL", c.Models.ExpressionPath)
	c.Models.ConfidenceThreshold = envFloat("TANGO_CONFIDENCE", c.Models.ConfidenceThreshold)

	c.Overlay.AssetRoot = envString("TANGO_ASSET_ROOT", c.Overlay.AssetRoot)
	c.Overlay.Watch = envBool("TANGO_ASSET_WATCH", c.Overlay.Watch)

	if v := os.Getenv("TANGO_ALPHABET"); v != "" {
		c.Keyboard.Alphabet = strings.Split(v, ",")
	}
	c.Gesture.StableFrames = envInt("TANGO_STABLE_FRAMES", c.Gesture.StableFrames)
}

// Validate checks if the config values are within valid ranges.
// Returns a list of validation errors, or nil if valid.
func (c *Config) Validate() []string {
	var errs []string

	if c.HTTP.Port == "" {
		errs = append(errs, "http.port is required")
	} else if p, err := strconv.Atoi(c.HTTP.Port); err != nil || p < 0 || p > 65535 {
		errs = append(errs, "http.port must be a number between 0 and 65535")
	}

	for _, e := range c.Camera.Validate() {
		errs = append(errs, "camera."+e)
	}

	if c.Models.FacePath == "" {
		errs = append(errs, "models.face_path is required")
	}
	if c.Models.ExpressionPath == "" {
		errs = append(errs, "models.expression_path is required")
	}
	if c.Models.ConfidenceThreshold <= 0 || c.Models.ConfidenceThreshold >= 1 {
		errs = append(errs, "models.confidence_threshold must be between 0 and 1")
	}

	if c.Overlay.AssetRoot == "" {
		errs = append(errs, "overlay.asset_root is required")
	}

	if _, err := c.Alphabet(); err != nil {
		errs = append(errs, "keyboard.alphabet: "+err.Error())
	}

	if c.Gesture.StableFrames < 1 || c.Gesture.StableFrames > 30 {
		errs = append(errs, "gesture.stable_frames must be between 1 and 30")
	}

	if c.Pipeline.ReadyInterval <= 0 {
		errs = append(errs, "pipeline.ready_interval must be positive")
	}
	if c.Pipeline.ReadyAttempts < 1 {
		errs = append(errs, "pipeline.ready_attempts must be at least 1")
	}
	if c.Pipeline.MinInterval < 0 {
		errs = append(errs, "pipeline.min_interval must not be negative")
	}

	return errs
}

// Alphabet returns the keyboard alphabet.
func (c *Config) Alphabet() (keyboard.Set, error) {
	if len(c.Keyboard.Alphabet) == 0 {
		return keyboard.DefaultAlphabet(), nil
	}
	keys := make([]string, len(c.Keyboard.Alphabet))
	for i, k := range c.Keyboard.Alphabet {
		keys[i] = strings.TrimSpace(k)
	}
	return keyboard.ParseSet(keys)
}

// Detection returns the detector settings.
func (c *Config) Detection() detection.Config {
	det := detection.DefaultConfig()
	det.FaceModelPath = c.Models.FacePath
	det.ExpressionModelPath = c.Models.ExpressionPath
	det.ConfidenceThresh = c.Models.ConfidenceThreshold
	return det
}

// Controller returns the capture lifecycle settings.
func (c *Config) Controller() session.ControllerConfig {
	return session.ControllerConfig{
		ReadyInterval: c.Pipeline.ReadyInterval,
		ReadyAttempts: c.Pipeline.ReadyAttempts,
		Loop: pipeline.Config{
			MinInterval: c.Pipeline.MinInterval,
			WarnEvery:   c.Pipeline.WarnEvery,
		},
	}
}

// Web returns the dashboard settings.
func (c *Config) Web() web.Config {
	return web.Config{
		Port:      c.HTTP.Port,
		StaticDir: c.HTTP.StaticDir,
	}
}

func envString(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) int {
	if n, err := strconv.Atoi(os.Getenv(key)); err == nil {
		return n
	}
	return def
}

func envFloat(key string, def float64) float64 {
	if f, err := strconv.ParseFloat(os.Getenv(key), 64); err == nil {
		return f
	}
	return def
}

func envBool(key string, def bool) bool {
	if b, err := strconv.ParseBool(os.Getenv(key)); err == nil {
		return b
	}
	return def
}
