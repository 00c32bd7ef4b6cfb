// Package pipeline runs the per-frame detection cycle: read a frame,
// detect faces, resolve the dominant expression, draw the overlay and
// publish the result. One cycle is in flight at a time.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"image"
	"time"
)

// ErrSourceNotReady is returned when the video source never became readable.
var ErrSourceNotReady = errors.New("pipeline: video source not ready")

// Source supplies video frames.
type Source interface {
	// Ready reports whether frames can be read.
	Ready() bool

	// Next blocks until the next frame is available. io.EOF ends the loop.
	Next(ctx context.Context) (image.Image, error)
}

// WaitReady polls src every interval until it is ready, giving up after
// attempts polls or when ctx is done.
func WaitReady(ctx context.Context, src Source, interval time.Duration, attempts int) error {
	if src.Ready() {
		return nil
	}
	if attempts < 1 {
		attempts = 1
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for i := 1; i < attempts; i++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if src.Ready() {
				return nil
			}
		}
	}

	return fmt.Errorf("%w after %d attempts (%v interval)", ErrSourceNotReady, attempts, interval)
}

// Token is the run flag for one loop. Cancel stops scheduling new cycles;
// a cycle already in flight sees Active() == false and drops its result.
type Token struct {
	ctx    context.Context
	cancel context.CancelFunc
}

// NewToken returns an active token derived from parent.
func NewToken(parent context.Context) *Token {
	ctx, cancel := context.WithCancel(parent)
	return &Token{ctx: ctx, cancel: cancel}
}

// Active reports whether the loop may keep going.
func (t *Token) Active() bool {
	return t.ctx.Err() == nil
}

// Cancel deactivates the token. Safe to call more than once.
func (t *Token) Cancel() {
	t.cancel()
}

// Context is cancelled together with the token.
func (t *Token) Context() context.Context {
	return t.ctx
}
