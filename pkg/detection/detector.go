// Package detection finds faces in video frames and classifies their expression.
package detection

import (
	"context"
	"image"
	"math"

	"github.com/teslashibe/go-tango/pkg/expression"
)

// Box is a face bounding box in frame pixels.
type Box struct {
	X, Y float64 // Top-left corner
	W, H float64 // Width and height
}

// Center returns the center point of the box
func (b Box) Center() (x, y float64) {
	return b.X + b.W/2, b.Y + b.H/2
}

// Area returns the area of the bounding box
func (b Box) Area() float64 {
	return b.W * b.H
}

// Rect rounds the box to an integer rectangle.
func (b Box) Rect() image.Rectangle {
	return image.Rect(
		int(math.Round(b.X)),
		int(math.Round(b.Y)),
		int(math.Round(b.X+b.W)),
		int(math.Round(b.Y+b.H)),
	)
}

// Detection is one face found in a frame.
type Detection struct {
	Box        Box
	Scores     expression.Scores
	Confidence float64 // Face detector confidence (0-1)
}

// Detector is the interface for face expression backends
type Detector interface {
	// Load prepares model assets. Failures are *ModelLoadError.
	Load(ctx context.Context) error

	// Detect finds faces in the frame and scores their expressions.
	// Returns an empty slice when no face is found.
	Detect(ctx context.Context, frame image.Image) ([]Detection, error)

	// Close releases resources
	Close() error
}

// Config holds detector configuration
type Config struct {
	FaceModelPath       string  // YuNet ONNX model
	ExpressionModelPath string  // FER+ ONNX model
	ConfidenceThresh    float64 // Minimum face confidence (default 0.6)
	InputWidth          int     // Initial YuNet input width
	InputHeight         int     // Initial YuNet input height
}

// DefaultConfig returns production defaults for YuNet + FER+
func DefaultConfig() Config {
	return Config{
		FaceModelPath:       "models/face_detection_yunet.onnx",
		ExpressionModelPath: "models/emotion-ferplus-8.onnx",
		ConfidenceThresh:    0.6,
		InputWidth:          320,
		InputHeight:         320,
	}
}

// Primary returns the face the keyboard listens to: the first one.
func Primary(dets []Detection) *Detection {
	if len(dets) == 0 {
		return nil
	}
	return &dets[0]
}

// Resolve returns the dominant expression of the primary face.
// Returns false when there are no detections or the face has no scores.
func Resolve(dets []Detection) (expression.Label, bool) {
	p := Primary(dets)
	if p == nil {
		return expression.None, false
	}
	return expression.Dominant(p.Scores)
}
