package detection

import (
	"context"
	"errors"
	"fmt"
	"image"
	"math"
	"os"
	"sort"
	"sync"

	"github.com/teslashibe/go-tango/internal/log"
	"github.com/teslashibe/go-tango/pkg/expression"
	"gocv.io/x/gocv"
)

// ferInputSize is the FER+ network input (64x64 grayscale).
var ferInputSize = image.Pt(64, 64)

// ferLabels is the FER+ output order. Contempt has no canonical label and is dropped.
var ferLabels = []expression.Label{
	expression.Neutral,
	expression.Happy,
	expression.Surprised,
	expression.Sad,
	expression.Angry,
	expression.Disgusted,
	expression.Fearful,
	expression.None, // contempt
}

// FaceExpression finds faces with OpenCV's FaceDetectorYN and classifies
// each face crop with a FER+ ONNX network.
type FaceExpression struct {
	config Config

	mu     sync.Mutex // Protects inference
	faces  gocv.FaceDetectorYN
	net    gocv.Net
	loaded bool
}

// NewFaceExpression creates an unloaded detector. Call Load before Detect.
func NewFaceExpression(cfg Config) *FaceExpression {
	return &FaceExpression{config: cfg}
}

// Load reads both models. Missing or unreadable files are *ModelLoadError.
func (d *FaceExpression) Load(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if d.loaded {
		return nil
	}

	for _, path := range []string{d.config.FaceModelPath, d.config.ExpressionModelPath} {
		if _, err := os.Stat(path); err != nil {
			return &ModelLoadError{Asset: path, Err: err}
		}
	}

	faces := gocv.NewFaceDetectorYNWithParams(
		d.config.FaceModelPath,
		"", // No config file needed for ONNX
		image.Pt(d.config.InputWidth, d.config.InputHeight),
		float32(d.config.ConfidenceThresh),
		0.3,  // NMS threshold
		5000, // Top K
		int(gocv.NetBackendDefault),
		int(gocv.NetTargetCPU),
	)

	net := gocv.ReadNetFromONNX(d.config.ExpressionModelPath)
	if net.Empty() {
		faces.Close()
		return &ModelLoadError{
			Asset: d.config.ExpressionModelPath,
			Err:   errors.New("network is empty"),
		}
	}
	net.SetPreferableBackend(gocv.NetBackendDefault)
	net.SetPreferableTarget(gocv.NetTargetCPU)

	d.faces = faces
	d.net = net
	d.loaded = true

	log.Info("expression models loaded",
		"face", d.config.FaceModelPath,
		"expression", d.config.ExpressionModelPath)
	return nil
}

// Detect finds faces in the frame, strongest first.
func (d *FaceExpression) Detect(ctx context.Context, frame image.Image) ([]Detection, error) {
	if err := ctx.Err(); err != nil {
		return nil, &DetectionFailure{Err: err}
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.loaded {
		return nil, &DetectionFailure{Err: ErrNotLoaded}
	}

	img, err := gocv.ImageToMatRGB(frame)
	if err != nil {
		return nil, &DetectionFailure{Err: fmt.Errorf("convert frame: %w", err)}
	}
	defer img.Close()

	if img.Empty() {
		return nil, &DetectionFailure{Err: errors.New("empty frame")}
	}

	bounds := image.Rect(0, 0, img.Cols(), img.Rows())
	d.faces.SetInputSize(bounds.Size())

	faces := gocv.NewMat()
	defer faces.Close()
	d.faces.Detect(img, &faces)

	if faces.Rows() == 0 {
		return nil, nil
	}

	gray := gocv.NewMat()
	defer gray.Close()
	gocv.CvtColor(img, &gray, gocv.ColorBGRToGray)

	detections := make([]Detection, 0, faces.Rows())
	for r := 0; r < faces.Rows(); r++ {
		// YuNet rows: 0-3 box, 4-13 landmarks, 14 score
		box := Box{
			X: float64(faces.GetFloatAt(r, 0)),
			Y: float64(faces.GetFloatAt(r, 1)),
			W: float64(faces.GetFloatAt(r, 2)),
			H: float64(faces.GetFloatAt(r, 3)),
		}
		score := float64(faces.GetFloatAt(r, 14))
		if score < d.config.ConfidenceThresh {
			continue
		}

		crop := box.Rect().Intersect(bounds)
		if crop.Empty() {
			continue
		}

		scores, err := d.classify(gray, crop)
		if err != nil {
			return nil, &DetectionFailure{Err: err}
		}

		detections = append(detections, Detection{
			Box:        box,
			Scores:     scores,
			Confidence: score,
		})
	}

	sortByConfidence(detections)
	return detections, nil
}

// classify runs FER+ over one face crop.
func (d *FaceExpression) classify(gray gocv.Mat, crop image.Rectangle) (expression.Scores, error) {
	face := gray.Region(crop)
	defer face.Close()

	blob := gocv.BlobFromImage(face, 1.0, ferInputSize, gocv.NewScalar(0, 0, 0, 0), false, false)
	defer blob.Close()

	d.net.SetInput(blob, "")
	out := d.net.Forward("")
	defer out.Close()

	if out.Empty() || int(out.Total()) < len(ferLabels) {
		return nil, fmt.Errorf("unexpected classifier output size %d", out.Total())
	}

	logits := make([]float64, len(ferLabels))
	for i := range logits {
		logits[i] = float64(out.GetFloatAt(0, i))
	}

	probs := softmax(logits)
	scores := make(expression.Scores, len(expression.Canonical))
	for i, label := range ferLabels {
		if label == expression.None {
			continue
		}
		scores[label] = probs[i]
	}
	return scores, nil
}

// Close releases the detector resources
func (d *FaceExpression) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.loaded {
		return nil
	}
	d.faces.Close()
	d.net.Close()
	d.loaded = false
	return nil
}

func softmax(logits []float64) []float64 {
	out := make([]float64, len(logits))
	if len(logits) == 0 {
		return out
	}

	max := logits[0]
	for _, v := range logits[1:] {
		if v > max {
			max = v
		}
	}

	sum := 0.0
	for i, v := range logits {
		out[i] = math.Exp(v - max)
		sum += out[i]
	}
	for i := range out {
		out[i] /= sum
	}
	return out
}

// sortByConfidence orders detections strongest first.
func sortByConfidence(dets []Detection) {
	sort.SliceStable(dets, func(i, j int) bool {
		return dets[i].Confidence > dets[j].Confidence
	})
}
