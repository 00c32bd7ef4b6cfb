package web

import (
	"context"
	"image"
	"sync/atomic"
	"time"

	"github.com/teslashibe/go-tango/internal/log"
	"github.com/teslashibe/go-tango/pkg/camera"
	"github.com/teslashibe/go-tango/pkg/hub"
	"github.com/teslashibe/go-tango/pkg/overlay"
	"github.com/teslashibe/go-tango/pkg/pipeline"
)

// Streamer turns loop frames into JPEG previews on the camera hub.
// Publish composites on the loop goroutine; Run encodes on its own.
type Streamer struct {
	hub      *hub.Hub
	settings func() (fps, quality int)
	frames   chan *image.RGBA

	last    time.Time
	sent    atomic.Uint64
	skipped atomic.Uint64
}

// NewStreamer creates a streamer. settings is read on every frame.
func NewStreamer(h *hub.Hub, settings func() (fps, quality int)) *Streamer {
	return &Streamer{
		hub:      h,
		settings: settings,
		frames:   make(chan *image.RGBA, 1),
	}
}

// Publish is a pipeline hook. Frames are dropped when nobody watches,
// when they come faster than the configured fps, or when the encoder is busy.
func (s *Streamer) Publish(f pipeline.Frame) {
	if f.Image == nil || s.hub.ClientCount() == 0 {
		return
	}

	fps, _ := s.settings()
	if fps > 0 && time.Since(s.last) < time.Second/time.Duration(fps) {
		return
	}
	s.last = time.Now()

	// The overlay canvas is reused next cycle, so composite now.
	img := overlay.Composite(f.Image, f.Overlay)
	select {
	case s.frames <- img:
	default:
		s.skipped.Add(1)
	}
}

// Run encodes and broadcasts frames until ctx is done.
func (s *Streamer) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case img := <-s.frames:
			_, quality := s.settings()
			data, err := camera.EncodeJPEG(img, quality)
			if err != nil {
				log.Warn("encode preview frame", "error", err)
				continue
			}
			s.hub.BroadcastBinary(data)
			s.sent.Add(1)
		}
	}
}

// Stats returns how many previews were sent and skipped.
func (s *Streamer) Stats() (sent, skipped uint64) {
	return s.sent.Load(), s.skipped.Load()
}
