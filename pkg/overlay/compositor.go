package overlay

import (
	"image"
	"math"

	"golang.org/x/image/draw"

	"github.com/teslashibe/go-tango/pkg/detection"
	"github.com/teslashibe/go-tango/pkg/expression"
)

// Emoji geometry relative to the face box.
const (
	SizeFactor = 1.2 // Emoji side = 1.2 x face height
	OffsetX    = 0.1 // Shift left by 10% of the emoji side
	OffsetY    = 0.2 // Shift up by 20% of the emoji side
)

// Compositor draws one emoji per frame onto a transparent canvas.
type Compositor struct {
	assets Assets
	scaler draw.Scaler
}

// NewCompositor draws emoji from assets with Catmull-Rom scaling.
func NewCompositor(assets Assets) *Compositor {
	return &Compositor{
		assets: assets,
		scaler: draw.CatmullRom,
	}
}

// Placement returns the emoji rectangle for a face box. The emoji is a
// square sized from the face height so it tracks distance, not head tilt.
func Placement(box detection.Box) image.Rectangle {
	size := box.H * SizeFactor
	x := box.X - size*OffsetX
	y := box.Y - size*OffsetY

	return image.Rect(
		int(math.Round(x)),
		int(math.Round(y)),
		int(math.Round(x+size)),
		int(math.Round(y+size)),
	)
}

// Render clears canvas and draws the emoji for label over box.
// On an asset error the canvas is left clear and the error returned.
func (c *Compositor) Render(label expression.Label, box detection.Box, canvas *image.RGBA) error {
	Clear(canvas)

	img, err := c.assets.Get(label)
	if err != nil {
		return err
	}

	dst := Placement(box)
	if dst.Empty() {
		return nil
	}
	c.scaler.Scale(canvas, dst, img, img.Bounds(), draw.Over, nil)
	return nil
}

// Clear makes the whole canvas transparent.
func Clear(canvas *image.RGBA) {
	draw.Draw(canvas, canvas.Bounds(), image.Transparent, image.Point{}, draw.Src)
}

// Composite returns frame with the overlay canvas drawn on top.
func Composite(frame image.Image, canvas *image.RGBA) *image.RGBA {
	b := frame.Bounds()
	out := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(out, out.Bounds(), frame, b.Min, draw.Src)
	if canvas != nil {
		draw.Draw(out, out.Bounds(), canvas, canvas.Bounds().Min, draw.Over)
	}
	return out
}
