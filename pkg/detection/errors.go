package detection

import (
	"errors"
	"fmt"
)

// ErrNotLoaded is returned when Detect runs before Load succeeded.
var ErrNotLoaded = errors.New("detection: model not loaded")

// ModelLoadError means the detector cannot start. Capture stays disabled.
type ModelLoadError struct {
	// Asset is the model path that failed.
	Asset string
	Err   error
}

// Error implements the error interface.
func (e *ModelLoadError) Error() string {
	return fmt.Sprintf("detection: load model %s: %v", e.Asset, e.Err)
}

// Unwrap returns the underlying error.
func (e *ModelLoadError) Unwrap() error {
	return e.Err
}

// DetectionFailure is a per-frame failure. The frame is skipped.
type DetectionFailure struct {
	Err error
}

// Error implements the error interface.
func (e *DetectionFailure) Error() string {
	return fmt.Sprintf("detection: frame failed: %v", e.Err)
}

// Unwrap returns the underlying error.
func (e *DetectionFailure) Unwrap() error {
	return e.Err
}

// IsModelLoad reports whether err is (or wraps) a *ModelLoadError.
func IsModelLoad(err error) bool {
	var mle *ModelLoadError
	return errors.As(err, &mle)
}
