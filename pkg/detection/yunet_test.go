package detection

import (
	"context"
	"errors"
	"image"
	"image/color"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/teslashibe/go-tango/pkg/expression"
)

// TestLoad_MissingModel tests error handling for missing model files
func TestLoad_MissingModel(t *testing.T) {
	d := NewFaceExpression(Config{
		FaceModelPath:       "/nonexistent/path/yunet.onnx",
		ExpressionModelPath: "/nonexistent/path/ferplus.onnx",
		ConfidenceThresh:    0.6,
		InputWidth:          320,
		InputHeight:         320,
	})
	defer d.Close()

	err := d.Load(context.Background())
	if err == nil {
		t.Fatal("expected error for missing model")
	}

	var mle *ModelLoadError
	if !errors.As(err, &mle) {
		t.Fatalf("expected *ModelLoadError, got %T", err)
	}
	if mle.Asset != "/nonexistent/path/yunet.onnx" {
		t.Errorf("Asset = %q, want face model path", mle.Asset)
	}
}

// TestDetect_NotLoaded tests that Detect refuses to run without models
func TestDetect_NotLoaded(t *testing.T) {
	d := NewFaceExpression(DefaultConfig())

	_, err := d.Detect(context.Background(), image.NewRGBA(image.Rect(0, 0, 8, 8)))
	if !errors.Is(err, ErrNotLoaded) {
		t.Errorf("expected ErrNotLoaded, got %v", err)
	}
}

// TestDetect_BlankFrame tests detection on a frame with no face
func TestDetect_BlankFrame(t *testing.T) {
	cfg, ok := findModels()
	if !ok {
		t.Skip("models not found, skipping test")
	}

	d := NewFaceExpression(cfg)
	if err := d.Load(context.Background()); err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	defer d.Close()

	img := image.NewRGBA(image.Rect(0, 0, 320, 240))
	for y := 0; y < 240; y++ {
		for x := 0; x < 320; x++ {
			img.Set(x, y, color.RGBA{128, 128, 128, 255})
		}
	}

	dets, err := d.Detect(context.Background(), img)
	if err != nil {
		t.Fatalf("Detect failed: %v", err)
	}
	if len(dets) != 0 {
		t.Errorf("expected no faces in a blank frame, got %d", len(dets))
	}
}

func TestSoftmax(t *testing.T) {
	probs := softmax([]float64{1, 2, 3})

	sum := 0.0
	for _, p := range probs {
		sum += p
	}
	if math.Abs(sum-1) > 1e-9 {
		t.Errorf("softmax sum = %f, want 1", sum)
	}
	if !(probs[2] > probs[1] && probs[1] > probs[0]) {
		t.Errorf("softmax should preserve order: %v", probs)
	}

	if len(softmax(nil)) != 0 {
		t.Error("softmax(nil) should be empty")
	}
}

func TestFERLabels_CoverCanonical(t *testing.T) {
	seen := make(map[expression.Label]bool)
	for _, l := range ferLabels {
		seen[l] = true
	}
	for _, l := range expression.Canonical {
		if !seen[l] {
			t.Errorf("canonical label %q missing from FER+ mapping", l)
		}
	}
}

func TestSortByConfidence(t *testing.T) {
	dets := []Detection{
		{Box: Box{X: 1}, Confidence: 0.6},
		{Box: Box{X: 2}, Confidence: 0.9},
		{Box: Box{X: 3}, Confidence: 0.6},
	}
	sortByConfidence(dets)

	wantX := []float64{2, 1, 3}
	for i, w := range wantX {
		if dets[i].Box.X != w {
			t.Errorf("dets[%d].Box.X = %v, want %v", i, dets[i].Box.X, w)
		}
	}
}

// findModels looks for the model files relative to the test location
func findModels() (Config, bool) {
	for _, dir := range []string{"models", "../models", "../../models"} {
		cfg := DefaultConfig()
		cfg.FaceModelPath = filepath.Join(dir, "face_detection_yunet.onnx")
		cfg.ExpressionModelPath = filepath.Join(dir, "emotion-ferplus-8.onnx")
		if fileExists(cfg.FaceModelPath) && fileExists(cfg.ExpressionModelPath) {
			return cfg, true
		}
	}
	return Config{}, false
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
