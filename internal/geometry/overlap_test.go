package geometry

import (
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func rectMask(x1, y1, x2, y2 int) Mask {
	var m Mask
	for x := x1; x <= x2; x++ {
		for y := y1; y <= y2; y++ {
			m = append(m, Point{X: x, Y: y})
		}
	}
	return m
}

func TestOverlapIdenticalMasks(t *testing.T) {
	m := rectMask(10, 10, 20, 30)
	assert.InDelta(t, 1.0, Overlap(m, m), 1e-9)
}

func TestOverlapDisjointMasks(t *testing.T) {
	a := rectMask(0, 0, 5, 5)
	b := rectMask(50, 50, 60, 60)
	assert.Zero(t, Overlap(a, b))
}

func TestOverlapCommutative(t *testing.T) {
	a := rectMask(0, 0, 10, 10)
	b := rectMask(5, 5, 20, 20)
	assert.Equal(t, Overlap(a, b), Overlap(b, a))
	assert.Greater(t, Overlap(a, b), 0.0)
	assert.Less(t, Overlap(a, b), 1.0)
}

func TestOverlapEmptyMask(t *testing.T) {
	assert.Zero(t, Overlap(nil, rectMask(0, 0, 5, 5)))
	assert.Zero(t, Overlap(rectMask(0, 0, 5, 5), Mask{}))
	assert.Zero(t, Overlap(nil, nil))
}

func TestBoundsOf(t *testing.T) {
	b, ok := BoundsOf(Mask{{X: 7, Y: 2}, {X: 3, Y: 9}, {X: 5, Y: 5}})
	require.True(t, ok)
	assert.Equal(t, Bounds{MinX: 3, MinY: 2, MaxX: 7, MaxY: 9}, b)

	_, ok = BoundsOf(nil)
	assert.False(t, ok)
}

func TestCompareMasksSurvival(t *testing.T) {
	before := []Mask{
		rectMask(0, 0, 10, 10),   // intact in the after image
		rectMask(50, 50, 60, 60), // gone in the after image
		{},                       // empty, skipped entirely
	}
	after := []Mask{rectMask(1, 1, 11, 11)}

	got := CompareMasks(before, after, SurvivalThreshold)
	require.Len(t, got, 2)
	assert.Equal(t, 0, got[0].Index)
	assert.True(t, got[0].Survived)
	assert.Equal(t, 1, got[1].Index)
	assert.False(t, got[1].Survived)
}

func TestRenderComparisonDrawsOutlines(t *testing.T) {
	base := image.NewNRGBA(image.Rect(0, 0, 40, 40))
	survivals := []Survival{
		{Index: 0, Bounds: Bounds{MinX: 2, MinY: 2, MaxX: 15, MaxY: 15}, Survived: true},
		{Index: 1, Bounds: Bounds{MinX: 20, MinY: 20, MaxX: 35, MaxY: 35}, Survived: false},
	}

	out := RenderComparison(base, survivals)
	require.Equal(t, base.Bounds(), out.Bounds())

	// Top-left corner of the surviving structure's outline is green.
	r, g, b, _ := out.At(2, 2).RGBA()
	assert.Zero(t, r)
	assert.NotZero(t, g)
	assert.Zero(t, b)

	// Top-left corner of the destroyed structure's outline is red.
	r, g, b, _ = out.At(20, 20).RGBA()
	assert.NotZero(t, r)
	assert.Zero(t, g)
	assert.Zero(t, b)

	// The source image is untouched.
	assert.Equal(t, color.NRGBA{}, base.NRGBAAt(2, 2))
}
