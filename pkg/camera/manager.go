package camera

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
)

// Update is a partial settings change. Nil fields keep their value.
// Preset, if set, replaces everything except the device first.
type Update struct {
	Preset     *string  `json:"preset,omitempty"`
	Device     *string  `json:"device,omitempty"`
	Width      *int     `json:"width,omitempty"`
	Height     *int     `json:"height,omitempty"`
	Framerate  *int     `json:"framerate,omitempty"`
	Quality    *int     `json:"quality,omitempty"`
	Brightness *float64 `json:"brightness,omitempty"`
	Mirror     *bool    `json:"mirror,omitempty"`
}

// DecodeUpdate parses a JSON update. Unknown keys are rejected.
func DecodeUpdate(data []byte) (Update, error) {
	var u Update
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&u); err != nil {
		return Update{}, fmt.Errorf("decode camera update: %w", err)
	}
	return u, nil
}

// ApplyTo returns cfg with the update applied.
func (u Update) ApplyTo(cfg Config) (Config, error) {
	if u.Preset != nil {
		preset := GetPreset(*u.Preset)
		if preset == nil {
			return cfg, fmt.Errorf("unknown preset %q (have %s)", *u.Preset, strings.Join(PresetNames(), ", "))
		}
		device := cfg.Device
		cfg = *preset
		cfg.Device = device
	}

	if u.Device != nil {
		cfg.Device = *u.Device
	}
	if u.Width != nil {
		cfg.Width = *u.Width
	}
	if u.Height != nil {
		cfg.Height = *u.Height
	}
	if u.Framerate != nil {
		cfg.Framerate = *u.Framerate
	}
	if u.Quality != nil {
		cfg.Quality = *u.Quality
	}
	if u.Brightness != nil {
		cfg.Brightness = *u.Brightness
	}
	if u.Mirror != nil {
		cfg.Mirror = *u.Mirror
	}
	return cfg, nil
}

// Manager holds the live capture settings.
type Manager struct {
	mu     sync.RWMutex
	config Config

	// OnConfigChange runs after a change is stored, outside the lock.
	// The app uses it to reopen the camera.
	OnConfigChange func(cfg Config) error
}

// NewManager creates a manager starting from cfg.
func NewManager(cfg Config) *Manager {
	return &Manager{config: cfg}
}

// GetConfig returns the current settings.
func (m *Manager) GetConfig() Config {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.config
}

// SetConfig validates and stores cfg. Storing the current settings again
// does not fire OnConfigChange.
func (m *Manager) SetConfig(cfg Config) error {
	if problems := cfg.Validate(); len(problems) > 0 {
		return fmt.Errorf("invalid camera config: %s", strings.Join(problems, "; "))
	}

	m.mu.Lock()
	changed := m.config != cfg
	m.config = cfg
	onChange := m.OnConfigChange
	m.mu.Unlock()

	if !changed || onChange == nil {
		return nil
	}
	if err := onChange(cfg); err != nil {
		return fmt.Errorf("apply camera config: %w", err)
	}
	return nil
}

// Apply merges u into the current settings.
func (m *Manager) Apply(u Update) error {
	cfg, err := u.ApplyTo(m.GetConfig())
	if err != nil {
		return err
	}
	return m.SetConfig(cfg)
}
