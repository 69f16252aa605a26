// Package pointcloud holds point storage shared by the spatial indexes, readers for
// point files and the voxel grid used for outlier filtering.
//
// A Buffer is a fixed-width array of float64 tuples. Buffer values are handles: copying
// one aliases the same storage, and writes through any handle are visible through all
// of them. Clone is the only way to get independent storage. Readers get copies. Each
// index freezes the buffer it is built over and thaws it when cleared; while any freeze
// is held every mutating call fails with ErrFrozen, so shared storage stays immutable for
// as long as an index may read it.
package pointcloud

import (
	"sync/atomic"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"github.com/samber/lo"

	"go.viam.com/pcindex/internal/rawpoints"
	"go.viam.com/pcindex/spatialmath"
	"go.viam.com/pcindex/utils"
)

func init() {
	rawpoints.Register(func(buf any) []float64 {
		b := buf.(Buffer)
		if b.s == nil {
			return nil
		}
		return b.s.data
	})
}

// EmptyOffset is returned by Append when there was nothing to append.
const EmptyOffset = -1

// ErrFrozen is returned when mutating a buffer that an index has been built over.
var ErrFrozen = errors.New("point buffer is frozen")

type storage struct {
	dim     int
	data    []float64
	freezes atomic.Int32
}

// Buffer is a shared handle to a fixed-width point array. The zero value is an empty
// buffer of dimension zero that cannot be grown.
type Buffer struct {
	s *storage
}

// NewBuffer returns a buffer of count zeroed points with dim scalars each.
func NewBuffer(dim, count int) (Buffer, error) {
	if dim < 1 {
		return Buffer{}, utils.NewInvalidConfigurationError("dim", dim)
	}
	if count < 0 {
		return Buffer{}, utils.NewInvalidArgumentError("negative point count %d", count)
	}
	return Buffer{s: &storage{dim: dim, data: make([]float64, dim*count)}}, nil
}

// NewBufferFromData wraps data, which must hold a whole number of dim-wide points.
// The buffer takes ownership of data.
func NewBufferFromData(dim int, data []float64) (Buffer, error) {
	if dim < 1 {
		return Buffer{}, utils.NewInvalidConfigurationError("dim", dim)
	}
	if len(data)%dim != 0 {
		return Buffer{}, errors.Wrapf(utils.ErrDimensionMismatch, "%d scalars is not a multiple of dimension %d", len(data), dim)
	}
	return Buffer{s: &storage{dim: dim, data: data}}, nil
}

// NewBufferFromVectors returns a three-dimensional buffer holding vs.
func NewBufferFromVectors(vs []r3.Vector) Buffer {
	data := make([]float64, 0, 3*len(vs))
	for _, v := range vs {
		data = append(data, v.X, v.Y, v.Z)
	}
	return Buffer{s: &storage{dim: 3, data: data}}
}

// Size returns the number of points.
func (b Buffer) Size() int {
	if b.s == nil {
		return 0
	}
	return len(b.s.data) / b.s.dim
}

// Dim returns the number of scalars per point.
func (b Buffer) Dim() int {
	if b.s == nil {
		return 0
	}
	return b.s.dim
}

// Empty reports whether the buffer holds no points.
func (b Buffer) Empty() bool {
	return b.Size() == 0
}

// Shares reports whether b and other are handles to the same storage.
func (b Buffer) Shares(other Buffer) bool {
	return b.s != nil && b.s == other.s
}

// Clone returns a deep, unfrozen copy.
func (b Buffer) Clone() Buffer {
	if b.s == nil {
		return Buffer{}
	}
	return Buffer{s: &storage{dim: b.s.dim, data: append([]float64(nil), b.s.data...)}}
}

// Freeze makes the storage immutable through every handle until a matching Thaw.
// Freezes nest.
func (b Buffer) Freeze() {
	if b.s != nil {
		b.s.freezes.Add(1)
	}
}

// Thaw releases one Freeze. It does nothing on a buffer that is not frozen.
func (b Buffer) Thaw() {
	if b.s == nil {
		return
	}
	for {
		n := b.s.freezes.Load()
		if n <= 0 || b.s.freezes.CompareAndSwap(n, n-1) {
			return
		}
	}
}

// Frozen reports whether any freeze is held on the storage.
func (b Buffer) Frozen() bool {
	return b.s != nil && b.s.freezes.Load() > 0
}

// Data returns a copy of the backing scalars, point-major.
func (b Buffer) Data() []float64 {
	if b.s == nil {
		return nil
	}
	return append([]float64(nil), b.s.data...)
}

// At returns a copy of the scalars of point id.
func (b Buffer) At(id int) ([]float64, error) {
	if err := b.checkID(id); err != nil {
		return nil, err
	}
	return append([]float64(nil), b.row(id)...), nil
}

// Vector returns the first three scalars of point id; missing axes are zero.
func (b Buffer) Vector(id int) (r3.Vector, error) {
	if err := b.checkID(id); err != nil {
		return r3.Vector{}, err
	}
	return ToVector(b.row(id)), nil
}

// ToVector converts up to the first three scalars of p into a vector.
func ToVector(p []float64) r3.Vector {
	var v r3.Vector
	switch {
	case len(p) >= 3:
		v.Z = p[2]
		fallthrough
	case len(p) == 2:
		v.Y = p[1]
		fallthrough
	case len(p) == 1:
		v.X = p[0]
	}
	return v
}

// Set overwrites point id with the first Dim() scalars of values.
func (b Buffer) Set(id int, values []float64) error {
	if err := b.checkMutable(); err != nil {
		return err
	}
	if err := b.checkID(id); err != nil {
		return err
	}
	if len(values) < b.s.dim {
		return utils.NewDimensionMismatchError(b.s.dim, len(values))
	}
	copy(b.row(id), values)
	return nil
}

// Reset sets every point to values.
func (b Buffer) Reset(values []float64) error {
	if err := b.checkMutable(); err != nil {
		return err
	}
	if len(values) < b.s.dim {
		return utils.NewDimensionMismatchError(b.s.dim, len(values))
	}
	for id := 0; id < b.Size(); id++ {
		copy(b.row(id), values)
	}
	return nil
}

// Resize changes the number of points to n, keeping the leading points and zeroing new
// ones.
func (b Buffer) Resize(n int) error {
	if err := b.checkMutable(); err != nil {
		return err
	}
	if n < 0 {
		return utils.NewInvalidArgumentError("negative point count %d", n)
	}
	b.s.data = resized(b.s.data, n*b.s.dim)
	return nil
}

// Append copies other onto the end of b and returns the id of its first point in b,
// or EmptyOffset if other is empty.
func (b Buffer) Append(other Buffer) (int, error) {
	if err := b.checkMutable(); err != nil {
		return EmptyOffset, err
	}
	if other.Empty() {
		return EmptyOffset, nil
	}
	if other.Dim() != b.s.dim {
		return EmptyOffset, utils.NewDimensionMismatchError(b.s.dim, other.Dim())
	}
	offset := b.Size()
	src := other.s.data
	if other.s == b.s {
		src = append([]float64(nil), src...)
	}
	b.s.data = append(b.s.data, src...)
	return offset, nil
}

// CopyIn overwrites n points of b starting at destPos with the points of other starting
// at srcPos. b grows when destPos+n runs past its end.
func (b Buffer) CopyIn(destPos, srcPos, n int, other Buffer) error {
	if err := b.checkMutable(); err != nil {
		return err
	}
	if other.Dim() != b.s.dim {
		return utils.NewDimensionMismatchError(b.s.dim, other.Dim())
	}
	if destPos < 0 || n < 0 {
		return utils.NewInvalidArgumentError("negative copy position %d or count %d", destPos, n)
	}
	if srcPos < 0 || srcPos+n > other.Size() {
		return errors.Wrapf(utils.ErrIndexOutOfRange, "copying %d points from %d out of %d", n, srcPos, other.Size())
	}
	if need := destPos + n; need > b.Size() {
		b.s.data = resized(b.s.data, need*b.s.dim)
	}
	dim := b.s.dim
	copy(b.s.data[destPos*dim:(destPos+n)*dim], other.s.data[srcPos*dim:(srcPos+n)*dim])
	return nil
}

// CopyOut returns a new buffer holding points [beg, end).
func (b Buffer) CopyOut(beg, end int) (Buffer, error) {
	if beg < 0 || beg > end || end > b.Size() {
		return Buffer{}, errors.Wrapf(utils.ErrIndexOutOfRange, "range [%d, %d) not within [0, %d)", beg, end, b.Size())
	}
	dim := b.s.dim
	return Buffer{s: &storage{dim: dim, data: append([]float64(nil), b.s.data[beg*dim:end*dim]...)}}, nil
}

// IDs returns every point id in order.
func (b Buffer) IDs() []int {
	return lo.Range(b.Size())
}

// CheckIDs returns an error naming the first id outside the buffer.
func (b Buffer) CheckIDs(ids []int) error {
	for _, id := range ids {
		if err := b.checkID(id); err != nil {
			return err
		}
	}
	return nil
}

// Bounds returns the tight extents of the given points.
func (b Buffer) Bounds(ids []int) (spatialmath.Extents, error) {
	e := spatialmath.NewExtents(b.Dim())
	for _, id := range ids {
		if err := b.checkID(id); err != nil {
			return spatialmath.Extents{}, err
		}
		e.Merge(b.row(id))
	}
	return e, nil
}

// BoundsAll returns the tight extents of every point.
func (b Buffer) BoundsAll() spatialmath.Extents {
	e := spatialmath.NewExtents(b.Dim())
	for id := 0; id < b.Size(); id++ {
		e.Merge(b.row(id))
	}
	return e
}

func (b Buffer) row(id int) []float64 {
	dim := b.s.dim
	return b.s.data[id*dim : (id+1)*dim : (id+1)*dim]
}

func (b Buffer) checkID(id int) error {
	if id < 0 || id >= b.Size() {
		return utils.NewIndexOutOfRangeError(id, b.Size())
	}
	return nil
}

func (b Buffer) checkMutable() error {
	if b.s == nil {
		return errors.New("point buffer was never allocated")
	}
	if b.s.freezes.Load() > 0 {
		return ErrFrozen
	}
	return nil
}

func resized(data []float64, n int) []float64 {
	if n <= len(data) {
		return data[:n:n]
	}
	grown := make([]float64, n)
	copy(grown, data)
	return grown
}
