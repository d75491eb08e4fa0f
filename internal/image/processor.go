// Package image decodes, validates, and downsamples untrusted image bytes
// under strict memory ceilings, and synthesizes fallback images
// procedurally.
package image

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"

	// Codecs registered for image.Decode / image.DecodeConfig.
	_ "image/gif"

	"golang.org/x/image/draw"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// ErrNotAnImage is returned when bytes cannot be decoded by any registered
// codec.
var ErrNotAnImage = errors.New("not a decodable image")

// DefaultMaxWidth is the thumbnail width ceiling applied by Resize callers.
const DefaultMaxWidth = 300

// Info describes a decodable image without decoding its pixels.
type Info struct {
	Width  int
	Height int
	Format string
}

// Decode probes the image header and returns its dimensions and format.
// Only the header is parsed, so this is safe to call before the
// decompression-bomb check.
func Decode(data []byte) (Info, error) {
	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return Info{}, fmt.Errorf("%w: %v", ErrNotAnImage, err)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return Info{}, fmt.Errorf("%w: degenerate dimensions %dx%d", ErrNotAnImage, cfg.Width, cfg.Height)
	}
	return Info{Width: cfg.Width, Height: cfg.Height, Format: format}, nil
}

// EstimateDecodedMemory returns the in-memory size of a fully decoded RGBA
// raster. Callers must reject images whose estimate exceeds their ceiling
// before attempting a full decode.
func EstimateDecodedMemory(width, height int) int64 {
	return int64(width) * int64(height) * 4
}

// Resize proportionally downsamples so width <= maxWidth, preserving aspect
// ratio and alpha transparency. Images already narrow enough pass through
// untouched, and bytes no codec can handle are returned unchanged rather
// than rejected.
func Resize(data []byte, maxWidth int) []byte {
	if maxWidth <= 0 {
		maxWidth = DefaultMaxWidth
	}
	src, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return data
	}
	bounds := src.Bounds()
	if bounds.Dx() <= maxWidth {
		return data
	}

	height := bounds.Dy() * maxWidth / bounds.Dx()
	if height < 1 {
		height = 1
	}
	dst := image.NewRGBA(image.Rect(0, 0, maxWidth, height))
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, bounds, draw.Over, nil)

	var buf bytes.Buffer
	if format == "jpeg" {
		if err := jpeg.Encode(&buf, dst, &jpeg.Options{Quality: 85}); err != nil {
			return data
		}
	} else {
		if err := png.Encode(&buf, dst); err != nil {
			return data
		}
	}
	return buf.Bytes()
}
