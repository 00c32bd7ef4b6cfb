package camera

import (
	"bytes"
	"image"
	"image/jpeg"
)

// EncodeJPEG encodes a preview frame. Out-of-range quality falls back to 75.
func EncodeJPEG(img image.Image, quality int) ([]byte, error) {
	if quality < 1 || quality > 100 {
		quality = 75
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
