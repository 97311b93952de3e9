// Package geometry evaluates spatial overlap between segmentation masks to
// decide whether a structure survived between the before and after images.
package geometry

// Point is a single pixel coordinate belonging to a mask.
type Point struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// Mask is the set of pixel coordinates the segmentation service reported for
// one structure instance.
type Mask []Point

// Bounds is the axis-aligned pixel bounding box of a mask.
type Bounds struct {
	MinX int
	MinY int
	MaxX int
	MaxY int
}

func (b Bounds) width() int  { return b.MaxX - b.MinX }
func (b Bounds) height() int { return b.MaxY - b.MinY }

// area treats the box as inclusive of its max edge, so single-pixel masks
// still carry weight.
func (b Bounds) area() float64 {
	return float64(b.width()+1) * float64(b.height()+1)
}

// BoundsOf computes the bounding box of a mask. ok is false for an empty mask.
func BoundsOf(m Mask) (Bounds, bool) {
	if len(m) == 0 {
		return Bounds{}, false
	}
	b := Bounds{MinX: m[0].X, MinY: m[0].Y, MaxX: m[0].X, MaxY: m[0].Y}
	for _, p := range m[1:] {
		if p.X < b.MinX {
			b.MinX = p.X
		}
		if p.X > b.MaxX {
			b.MaxX = p.X
		}
		if p.Y < b.MinY {
			b.MinY = p.Y
		}
		if p.Y > b.MaxY {
			b.MaxY = p.Y
		}
	}
	return b, true
}

// Overlap returns the intersection-over-union of the two masks' bounding
// boxes, in [0,1]. An empty mask or disjoint boxes yield 0. The result is
// commutative.
func Overlap(a, b Mask) float64 {
	ba, ok := BoundsOf(a)
	if !ok {
		return 0
	}
	bb, ok := BoundsOf(b)
	if !ok {
		return 0
	}

	ix1 := max(ba.MinX, bb.MinX)
	iy1 := max(ba.MinY, bb.MinY)
	ix2 := min(ba.MaxX, bb.MaxX)
	iy2 := min(ba.MaxY, bb.MaxY)
	if ix1 > ix2 || iy1 > iy2 {
		return 0
	}

	intersection := float64(ix2-ix1+1) * float64(iy2-iy1+1)
	union := ba.area() + bb.area() - intersection
	if union <= 0 {
		return 0
	}
	return intersection / union
}
