package camera

import (
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"sync"

	"gocv.io/x/gocv"
)

// ErrReadFailed means the camera returned no frame.
var ErrReadFailed = errors.New("camera: read failed")

// Capture reads frames from a gocv VideoCapture.
// Live cameras block in Read until the next frame, which paces the loop.
type Capture struct {
	config Config
	live   bool

	mu      sync.Mutex
	cap     *gocv.VideoCapture
	mat     gocv.Mat
	pending image.Image
	closed  bool
}

// Open opens the configured device and applies the requested resolution.
func Open(cfg Config) (*Capture, error) {
	var (
		vc  *gocv.VideoCapture
		err error
	)
	idx, live := cfg.Index()
	if live {
		vc, err = gocv.OpenVideoCapture(idx)
	} else {
		vc, err = gocv.OpenVideoCapture(cfg.Device)
	}
	if err != nil {
		return nil, fmt.Errorf("open video source %s: %w", cfg.Device, err)
	}
	if !vc.IsOpened() {
		vc.Close()
		return nil, fmt.Errorf("video source not opened: %s", cfg.Device)
	}

	if live {
		vc.Set(gocv.VideoCaptureFrameWidth, float64(cfg.Width))
		vc.Set(gocv.VideoCaptureFrameHeight, float64(cfg.Height))
		vc.Set(gocv.VideoCaptureFPS, float64(cfg.Framerate))
		if cfg.Brightness > 0 {
			vc.Set(gocv.VideoCaptureBrightness, cfg.Brightness)
		}
	}

	return &Capture{
		config: cfg,
		live:   live,
		cap:    vc,
		mat:    gocv.NewMat(),
	}, nil
}

// Ready reports whether the source has produced a frame. The probe frame
// is handed out by the next call to Next.
func (c *Capture) Ready() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return false
	}
	if c.pending != nil {
		return true
	}
	img, err := c.readLocked()
	if err != nil {
		return false
	}
	c.pending = img
	return true
}

// Next returns the next frame. A file that runs out returns io.EOF.
func (c *Capture) Next(ctx context.Context) (image.Image, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil, io.EOF
	}
	if c.pending != nil {
		img := c.pending
		c.pending = nil
		return img, nil
	}
	img, err := c.readLocked()
	if err != nil && !c.live {
		return nil, io.EOF
	}
	return img, err
}

func (c *Capture) readLocked() (image.Image, error) {
	if ok := c.cap.Read(&c.mat); !ok || c.mat.Empty() {
		return nil, ErrReadFailed
	}
	if c.config.Mirror {
		gocv.Flip(c.mat, &c.mat, 1)
	}
	img, err := c.mat.ToImage()
	if err != nil {
		return nil, fmt.Errorf("convert frame: %w", err)
	}
	return img, nil
}

// Size returns the negotiated frame size, which may differ from the request.
func (c *Capture) Size() (width, height int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return 0, 0
	}
	return int(c.cap.Get(gocv.VideoCaptureFrameWidth)), int(c.cap.Get(gocv.VideoCaptureFrameHeight))
}

// Close releases the device. Safe to call more than once.
func (c *Capture) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}
	c.closed = true
	c.pending = nil
	c.mat.Close()
	return c.cap.Close()
}
