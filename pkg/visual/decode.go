package visual

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"

	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"golang.org/x/image/draw"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// ErrInvalidImage marks source bytes that cannot be decoded as an image.
// It is returned before any cache write happens.
var ErrInvalidImage = errors.New("invalid image data")

// maxEdge bounds the working resolution of the transforms. Screenshots of
// charting tools can be huge; the maps only need structural detail.
const maxEdge = 1024

// DecodeGray decodes chart image bytes (PNG, JPEG, GIF, BMP, TIFF or WebP)
// into a grayscale raster, downscaling so the longer edge is at most maxEdge.
// The scaling kernel is fixed, keeping the result deterministic per input.
func DecodeGray(data []byte) (*image.Gray, error) {
	src, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidImage, err.Error())
	}

	bounds := src.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	if w == 0 || h == 0 {
		return nil, fmt.Errorf("%w: empty bounds", ErrInvalidImage)
	}

	if w > maxEdge || h > maxEdge {
		scale := float64(maxEdge) / float64(max(w, h))
		dw, dh := max(1, int(float64(w)*scale)), max(1, int(float64(h)*scale))
		scaled := image.NewRGBA(image.Rect(0, 0, dw, dh))
		draw.ApproxBiLinear.Scale(scaled, scaled.Bounds(), src, bounds, draw.Src, nil)
		src = scaled
		bounds = scaled.Bounds()
	}

	gray := image.NewGray(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			gray.Set(x-bounds.Min.X, y-bounds.Min.Y, color.GrayModel.Convert(src.At(x, y)))
		}
	}
	return gray, nil
}
