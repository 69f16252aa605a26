// Package spatialmath defines the axis-aligned bounds shared by the spatial indexes.
package spatialmath

import (
	"math"

	"go.viam.com/pcindex/utils"
)

// Extents is an axis-aligned box of arbitrary dimension. An Extents with no merged
// points is empty: every Min is +Inf and every Max is -Inf.
type Extents struct {
	Min []float64
	Max []float64
}

// NewExtents returns an empty Extents of the given dimension.
func NewExtents(dim int) Extents {
	e := Extents{Min: make([]float64, dim), Max: make([]float64, dim)}
	for i := 0; i < dim; i++ {
		e.Min[i] = math.Inf(1)
		e.Max[i] = math.Inf(-1)
	}
	return e
}

// ExtentsFromBounds copies the given bounds, requiring matching lengths and min <= max.
func ExtentsFromBounds(minBound, maxBound []float64) (Extents, error) {
	if len(minBound) != len(maxBound) {
		return Extents{}, utils.NewDimensionMismatchError(len(minBound), len(maxBound))
	}
	for i := range minBound {
		if !(minBound[i] <= maxBound[i]) {
			return Extents{}, utils.NewInvalidArgumentError("bound %d: min %v > max %v", i, minBound[i], maxBound[i])
		}
	}
	return Extents{
		Min: append([]float64(nil), minBound...),
		Max: append([]float64(nil), maxBound...),
	}, nil
}

// Dim returns the number of axes.
func (e Extents) Dim() int {
	return len(e.Min)
}

// IsEmpty reports whether no point has been merged.
func (e Extents) IsEmpty() bool {
	return len(e.Min) == 0 || e.Min[0] > e.Max[0]
}

// Clone returns a deep copy.
func (e Extents) Clone() Extents {
	return Extents{
		Min: append([]float64(nil), e.Min...),
		Max: append([]float64(nil), e.Max...),
	}
}

// Merge grows the extents to include the first Dim() scalars of p.
func (e *Extents) Merge(p []float64) {
	for i := range e.Min {
		if p[i] < e.Min[i] {
			e.Min[i] = p[i]
		}
		if p[i] > e.Max[i] {
			e.Max[i] = p[i]
		}
	}
}

// Length returns the size of the extents along axis.
func (e Extents) Length(axis int) float64 {
	return e.Max[axis] - e.Min[axis]
}

// Center returns the midpoint along axis.
func (e Extents) Center(axis int) float64 {
	return (e.Min[axis] + e.Max[axis]) / 2
}

// LongestAxis returns the axis with the greatest length, the lowest one on ties.
func (e Extents) LongestAxis() int {
	best := 0
	for i := 1; i < len(e.Min); i++ {
		if e.Length(i) > e.Length(best) {
			best = i
		}
	}
	return best
}

// FitsWithin reports whether every axis length is at most size[axis].
func (e Extents) FitsWithin(size []float64) bool {
	for i := range e.Min {
		if e.Length(i) > size[i] {
			return false
		}
	}
	return true
}

// ContainsPoint reports whether p lies inside the closed extents.
func (e Extents) ContainsPoint(p []float64) bool {
	for i := range e.Min {
		if p[i] < e.Min[i] || p[i] > e.Max[i] {
			return false
		}
	}
	return true
}

// MinDistSquared returns the squared distance from p to the closest point of the extents,
// zero when p is inside.
func (e Extents) MinDistSquared(p []float64) float64 {
	var d2 float64
	for i := range e.Min {
		var d float64
		switch {
		case p[i] < e.Min[i]:
			d = e.Min[i] - p[i]
		case p[i] > e.Max[i]:
			d = p[i] - e.Max[i]
		}
		d2 += d * d
	}
	return d2
}

// Split cuts the extents at the given position along axis.
func (e Extents) Split(axis int, at float64) (lo, hi Extents) {
	lo, hi = e.Clone(), e.Clone()
	lo.Max[axis] = at
	hi.Min[axis] = at
	return lo, hi
}

// SquaredDistance returns the squared euclidean distance over the first dim scalars.
func SquaredDistance(a, b []float64, dim int) float64 {
	var d2 float64
	for i := 0; i < dim; i++ {
		d := a[i] - b[i]
		d2 += d * d
	}
	return d2
}
