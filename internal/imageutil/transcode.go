// Package imageutil shrinks images for transport to byte-limited model APIs
// and produces thumbnails for report embedding.
package imageutil

import (
	"bytes"
	"errors"
	"fmt"
	"image"

	"github.com/disintegration/imaging"
)

// DefaultMaxImageBytes keeps the base64-encoded payload under the reasoning
// service's 5 MB request ceiling.
const DefaultMaxImageBytes = 3_900_000

// ErrCannotFit is returned when neither re-encoding nor downscaling can bring
// an image under the requested ceiling before the dimension floor is reached.
var ErrCannotFit = errors.New("image cannot be reduced under the size ceiling")

var jpegQualityLadder = []int{85, 70, 50, 30}

const (
	maxDownscalePasses = 8
	minDimension       = 64
	downscaleFactor    = 0.8
)

// FitUnderLimit returns the input unchanged when it is already at or below
// maxBytes. Otherwise it re-encodes as JPEG down a quality ladder, then
// geometrically downscales, until the result fits. The loop is bounded: after
// maxDownscalePasses or once either dimension would drop below minDimension,
// it fails with ErrCannotFit instead of spinning.
func FitUnderLimit(b []byte, maxBytes int) ([]byte, error) {
	if len(b) <= maxBytes {
		return b, nil
	}

	img, err := imaging.Decode(bytes.NewReader(b))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image for size fitting: %w", err)
	}

	for _, q := range jpegQualityLadder {
		out, err := encodeJPEG(img, q)
		if err != nil {
			return nil, err
		}
		if len(out) <= maxBytes {
			return out, nil
		}
	}

	for pass := 0; pass < maxDownscalePasses; pass++ {
		w := int(float64(img.Bounds().Dx()) * downscaleFactor)
		h := int(float64(img.Bounds().Dy()) * downscaleFactor)
		if w < minDimension || h < minDimension {
			break
		}
		img = imaging.Resize(img, w, h, imaging.Lanczos)
		out, err := encodeJPEG(img, 70)
		if err != nil {
			return nil, err
		}
		if len(out) <= maxBytes {
			return out, nil
		}
	}

	return nil, fmt.Errorf("%w: ceiling %d bytes", ErrCannotFit, maxBytes)
}

// Thumbnail resizes the image to the given width (preserving aspect ratio,
// never upscaling) and returns it as a JPEG.
func Thumbnail(b []byte, width, quality int) ([]byte, error) {
	img, err := imaging.Decode(bytes.NewReader(b))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image for thumbnail: %w", err)
	}
	if img.Bounds().Dx() > width {
		img = imaging.Resize(img, width, 0, imaging.Lanczos)
	}
	return encodeJPEG(img, quality)
}

// Format sniffs the encoded image format by magic bytes: "jpeg" or "png".
func Format(b []byte) string {
	if len(b) >= 2 && b[0] == 0xff && b[1] == 0xd8 {
		return "jpeg"
	}
	return "png"
}

func encodeJPEG(img image.Image, quality int) ([]byte, error) {
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(quality)); err != nil {
		return nil, fmt.Errorf("failed to encode JPEG: %w", err)
	}
	return buf.Bytes(), nil
}
