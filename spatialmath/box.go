package spatialmath

import (
	"math"

	"github.com/golang/geo/r3"
)

// Box is an axis-aligned 3-D box. The zero value is a degenerate box at the origin;
// use EmptyBox to start merging points.
type Box struct {
	Min r3.Vector
	Max r3.Vector
}

// EmptyBox returns a box that contains nothing and grows with Merge.
func EmptyBox() Box {
	inf := math.Inf(1)
	return Box{
		Min: r3.Vector{X: inf, Y: inf, Z: inf},
		Max: r3.Vector{X: -inf, Y: -inf, Z: -inf},
	}
}

// IsEmpty reports whether no point has been merged.
func (b Box) IsEmpty() bool {
	return b.Min.X > b.Max.X || b.Min.Y > b.Max.Y || b.Min.Z > b.Max.Z
}

// Merge grows the box to include p.
func (b *Box) Merge(p r3.Vector) {
	b.Min = r3.Vector{X: math.Min(b.Min.X, p.X), Y: math.Min(b.Min.Y, p.Y), Z: math.Min(b.Min.Z, p.Z)}
	b.Max = r3.Vector{X: math.Max(b.Max.X, p.X), Y: math.Max(b.Max.Y, p.Y), Z: math.Max(b.Max.Z, p.Z)}
}

// Center returns the midpoint of the box.
func (b Box) Center() r3.Vector {
	return b.Min.Add(b.Max).Mul(0.5)
}

// Size returns the length of the box along each axis.
func (b Box) Size() r3.Vector {
	return b.Max.Sub(b.Min)
}

// Exceeds reports whether any axis length is strictly greater than the matching shape axis.
func (b Box) Exceeds(shape r3.Vector) bool {
	s := b.Size()
	return s.X > shape.X || s.Y > shape.Y || s.Z > shape.Z
}

// ContainsPoint reports whether p lies inside the closed box.
func (b Box) ContainsPoint(p r3.Vector) bool {
	return p.X >= b.Min.X && p.X <= b.Max.X &&
		p.Y >= b.Min.Y && p.Y <= b.Max.Y &&
		p.Z >= b.Min.Z && p.Z <= b.Max.Z
}

// MinDistSquared returns the squared distance from p to the closest point of the box.
func (b Box) MinDistSquared(p r3.Vector) float64 {
	d := r3.Vector{
		X: axisGap(p.X, b.Min.X, b.Max.X),
		Y: axisGap(p.Y, b.Min.Y, b.Max.Y),
		Z: axisGap(p.Z, b.Min.Z, b.Max.Z),
	}
	return d.Norm2()
}

// Octant returns the index of the child octant of the box holding p: bit 0 is set when
// p.X is above the center, bit 1 for Y and bit 2 for Z.
func (b Box) Octant(p r3.Vector) int {
	c := b.Center()
	octant := 0
	if p.X > c.X {
		octant |= 1
	}
	if p.Y > c.Y {
		octant |= 2
	}
	if p.Z > c.Z {
		octant |= 4
	}
	return octant
}

// Extents converts the box into three-axis extents.
func (b Box) Extents() Extents {
	return Extents{
		Min: []float64{b.Min.X, b.Min.Y, b.Min.Z},
		Max: []float64{b.Max.X, b.Max.Y, b.Max.Z},
	}
}

func axisGap(v, lo, hi float64) float64 {
	switch {
	case v < lo:
		return lo - v
	case v > hi:
		return v - hi
	default:
		return 0
	}
}
