package pipeline

import (
	"errors"
	"image"
	"io"
	"sync/atomic"
	"time"

	"github.com/teslashibe/go-tango/internal/log"
	"github.com/teslashibe/go-tango/pkg/detection"
	"github.com/teslashibe/go-tango/pkg/expression"
	"github.com/teslashibe/go-tango/pkg/overlay"
)

// readRetryDelay keeps a failing source from spinning the loop.
const readRetryDelay = 50 * time.Millisecond

// Frame is the outcome of one cycle.
type Frame struct {
	Seq        uint64
	At         time.Time
	Image      image.Image
	Detections []detection.Detection

	// Label is the dominant expression of the primary face.
	// Present is false when no face was found.
	Label   expression.Label
	Present bool

	// Overlay is the emoji canvas. It is reused by the next cycle, so
	// handlers must copy it if they keep it past Publish.
	Overlay *image.RGBA
}

// Publisher receives every completed frame on the loop goroutine.
type Publisher func(Frame)

// Config tunes the loop.
type Config struct {
	// MinInterval spaces cycles out when the source returns frames faster
	// than needed. Zero lets the source set the pace.
	MinInterval time.Duration

	// WarnEvery throttles per-frame warnings.
	WarnEvery int
}

// DefaultConfig returns loop defaults.
func DefaultConfig() Config {
	return Config{
		MinInterval: 0,
		WarnEvery:   30,
	}
}

// Loop drives detect → resolve → render → publish, one frame at a time.
type Loop struct {
	config     Config
	source     Source
	detector   detection.Detector
	compositor *overlay.Compositor
	publish    Publisher

	canvas     *image.RGBA
	seq        atomic.Uint64
	detectWarn *log.Throttle
	assetWarn  *log.Throttle
	sourceWarn *log.Throttle
}

// NewLoop wires a loop. publish may be nil.
func NewLoop(cfg Config, src Source, det detection.Detector, comp *overlay.Compositor, publish Publisher) *Loop {
	if publish == nil {
		publish = func(Frame) {}
	}
	return &Loop{
		config:     cfg,
		source:     src,
		detector:   det,
		compositor: comp,
		publish:    publish,
		detectWarn: log.NewThrottle(cfg.WarnEvery),
		assetWarn:  log.NewThrottle(cfg.WarnEvery),
		sourceWarn: log.NewThrottle(cfg.WarnEvery),
	}
}

// Run cycles until tok is cancelled or the source ends.
// A source that ends with io.EOF returns nil.
func (l *Loop) Run(tok *Token) error {
	var last time.Time

	for tok.Active() {
		if l.config.MinInterval > 0 && !last.IsZero() {
			wait := l.config.MinInterval - time.Since(last)
			if wait > 0 {
				timer := time.NewTimer(wait)
				select {
				case <-tok.Context().Done():
					timer.Stop()
					return nil
				case <-timer.C:
				}
			}
		}
		last = time.Now()

		if err := l.Step(tok); err != nil {
			if errors.Is(err, io.EOF) {
				log.Info("video source ended")
				return nil
			}
			return err
		}
	}
	return nil
}

// Step runs a single cycle. Per-frame failures are logged and swallowed;
// only the source ending is returned.
func (l *Loop) Step(tok *Token) error {
	ctx := tok.Context()

	img, err := l.source.Next(ctx)
	if err != nil {
		if errors.Is(err, io.EOF) {
			return err
		}
		if tok.Active() {
			if ok, n := l.sourceWarn.Allow(); ok {
				log.Warn("frame read failed", "error", err, "count", n)
			}
		}
		select {
		case <-ctx.Done():
		case <-time.After(readRetryDelay):
		}
		return nil
	}

	dets, err := l.detector.Detect(ctx, img)

	// Disabled while detecting: drop the result.
	if !tok.Active() {
		return nil
	}

	if err != nil {
		if ok, n := l.detectWarn.Allow(); ok {
			log.Warn("detection failed, skipping frame", "error", err, "count", n)
		}
		dets = nil
	}

	frame := Frame{
		Seq:        l.seq.Add(1),
		At:         time.Now(),
		Image:      img,
		Detections: dets,
		Overlay:    l.canvasFor(img.Bounds()),
	}
	frame.Label, frame.Present = detection.Resolve(dets)

	if frame.Present {
		box := detection.Primary(dets).Box
		if err := l.compositor.Render(frame.Label, box, frame.Overlay); err != nil {
			if ok, n := l.assetWarn.Allow(); ok {
				log.Warn("overlay skipped", "label", frame.Label, "error", err, "count", n)
			}
		}
	} else {
		overlay.Clear(frame.Overlay)
	}

	log.Debug("frame",
		"seq", frame.Seq,
		"faces", len(dets),
		"label", frame.Label.String())

	l.publish(frame)
	return nil
}

// canvasFor returns the overlay canvas, reallocating when the frame size changes.
func (l *Loop) canvasFor(b image.Rectangle) *image.RGBA {
	size := b.Size()
	if l.canvas == nil || l.canvas.Bounds().Size() != size {
		l.canvas = image.NewRGBA(image.Rect(0, 0, size.X, size.Y))
	}
	return l.canvas
}

// Frames returns how many frames have been published.
func (l *Loop) Frames() uint64 {
	return l.seq.Load()
}
