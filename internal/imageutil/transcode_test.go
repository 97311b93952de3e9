package imageutil

import (
	"bytes"
	"image"
	"image/color"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// noisePNG builds a PNG that compresses poorly, so re-encoding actually has
// work to do. The generator is a fixed LCG to keep the test deterministic.
func noisePNG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	seed := uint32(42)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			seed = seed*1664525 + 1013904223
			img.SetNRGBA(x, y, color.NRGBA{
				R: uint8(seed >> 24),
				G: uint8(seed >> 16),
				B: uint8(seed >> 8),
				A: 255,
			})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, imaging.Encode(&buf, img, imaging.PNG))
	return buf.Bytes()
}

func TestFitUnderLimitNoOpBelowCeiling(t *testing.T) {
	src := noisePNG(t, 32, 32)
	out, err := FitUnderLimit(src, len(src))
	require.NoError(t, err)
	assert.Equal(t, src, out, "input at or below the ceiling must pass through untouched")
}

func TestFitUnderLimitShrinksOversizedImage(t *testing.T) {
	src := noisePNG(t, 256, 256)
	ceiling := len(src) / 3
	out, err := FitUnderLimit(src, ceiling)
	require.NoError(t, err)
	assert.LessOrEqual(t, len(out), ceiling)

	img, err := imaging.Decode(bytes.NewReader(out))
	require.NoError(t, err, "output must remain a decodable image")
	assert.NotZero(t, img.Bounds().Dx())
}

func TestFitUnderLimitExhaustionIsAnError(t *testing.T) {
	src := noisePNG(t, 256, 256)
	_, err := FitUnderLimit(src, 16)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrCannotFit)
}

func TestFitUnderLimitRejectsGarbage(t *testing.T) {
	garbage := bytes.Repeat([]byte{0xde, 0xad}, 4096)
	_, err := FitUnderLimit(garbage, 16)
	assert.Error(t, err)
}

func TestThumbnailDownscalesWideImages(t *testing.T) {
	src := noisePNG(t, 400, 200)
	out, err := Thumbnail(src, 100, 75)
	require.NoError(t, err)

	img, err := imaging.Decode(bytes.NewReader(out))
	require.NoError(t, err)
	assert.Equal(t, 100, img.Bounds().Dx())
	assert.Equal(t, 50, img.Bounds().Dy())
	assert.Equal(t, "jpeg", Format(out))
}

func TestThumbnailNeverUpscales(t *testing.T) {
	src := noisePNG(t, 40, 40)
	out, err := Thumbnail(src, 300, 75)
	require.NoError(t, err)

	img, err := imaging.Decode(bytes.NewReader(out))
	require.NoError(t, err)
	assert.Equal(t, 40, img.Bounds().Dx())
}

func TestFormat(t *testing.T) {
	assert.Equal(t, "png", Format(noisePNG(t, 8, 8)))
	assert.Equal(t, "jpeg", Format([]byte{0xff, 0xd8, 0xff}))
	assert.Equal(t, "png", Format(nil))
}
