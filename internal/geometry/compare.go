package geometry

import (
	"image"
	"image/color"
	"image/draw"

	"github.com/disintegration/imaging"
)

// SurvivalThreshold is the overlap above which a before-structure is
// considered to still exist in the after image.
const SurvivalThreshold = 0.5

var (
	survivedColor  = color.NRGBA{R: 0, G: 170, B: 0, A: 255}
	destroyedColor = color.NRGBA{R: 220, G: 0, B: 0, A: 255}
)

// Survival is the comparison verdict for one before-structure.
type Survival struct {
	Index    int
	Bounds   Bounds
	Survived bool
}

// CompareMasks marks each before-structure as survived when any after-mask
// overlaps it above the threshold. Empty before-masks are skipped.
func CompareMasks(before, after []Mask, threshold float64) []Survival {
	out := make([]Survival, 0, len(before))
	for i, bm := range before {
		bounds, ok := BoundsOf(bm)
		if !ok {
			continue
		}
		survived := false
		for _, am := range after {
			if Overlap(bm, am) > threshold {
				survived = true
				break
			}
		}
		out = append(out, Survival{Index: i, Bounds: bounds, Survived: survived})
	}
	return out
}

// RenderComparison draws the survival verdicts onto a copy of the before
// image: green outlines for surviving structures, red for destroyed ones.
func RenderComparison(base image.Image, survivals []Survival) *image.NRGBA {
	out := imaging.Clone(base)
	for _, s := range survivals {
		c := destroyedColor
		if s.Survived {
			c = survivedColor
		}
		r := image.Rect(s.Bounds.MinX, s.Bounds.MinY, s.Bounds.MaxX+1, s.Bounds.MaxY+1)
		DrawRect(out, r, c, 3)
	}
	return out
}

// DrawRect draws a rectangle outline of the given stroke width, clipped to
// the destination bounds.
func DrawRect(dst draw.Image, r image.Rectangle, c color.Color, width int) {
	if width < 1 {
		width = 1
	}
	u := image.NewUniform(c)
	clip := func(rr image.Rectangle) image.Rectangle { return rr.Intersect(dst.Bounds()) }

	top := clip(image.Rect(r.Min.X, r.Min.Y, r.Max.X, r.Min.Y+width))
	bottom := clip(image.Rect(r.Min.X, r.Max.Y-width, r.Max.X, r.Max.Y))
	left := clip(image.Rect(r.Min.X, r.Min.Y, r.Min.X+width, r.Max.Y))
	right := clip(image.Rect(r.Max.X-width, r.Min.Y, r.Max.X, r.Max.Y))

	for _, edge := range []image.Rectangle{top, bottom, left, right} {
		if !edge.Empty() {
			draw.Draw(dst, edge, u, image.Point{}, draw.Src)
		}
	}
}
