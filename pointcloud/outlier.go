package pointcloud

import (
	"sort"

	"github.com/pkg/errors"

	"go.viam.com/pcindex/utils"
)

// OutlierConfig parameterises an OutlierFilter.
type OutlierConfig struct {
	// DistanceThreshold is the voxel edge length; points further apart than roughly this
	// are not neighbors.
	DistanceThreshold float64 `json:"distance_threshold"`
	// NumberThreshold is the point count at which a cell is dense enough to never be an
	// outlier. Default 2.
	NumberThreshold int `json:"number_threshold"`
}

type cellClass uint8

const (
	cellUnknown cellClass = iota
	cellOutlier
	cellInlier
)

// OutlierFilter flags sparse, isolated points with a voxel hash grid. It does not use the
// spatial indexes.
type OutlierFilter struct {
	buf  Buffer
	cfg  OutlierConfig
	grid *VoxelGrid
	tags map[VoxelCoords]cellClass
}

// NewOutlierFilter validates cfg and returns a filter over the three first coordinates
// of buf.
func NewOutlierFilter(buf Buffer, cfg OutlierConfig) (*OutlierFilter, error) {
	if !(cfg.DistanceThreshold > 0) {
		return nil, utils.NewInvalidConfigurationError("distance_threshold", cfg.DistanceThreshold)
	}
	if cfg.NumberThreshold == 0 {
		cfg.NumberThreshold = 2
	}
	if cfg.NumberThreshold < 1 {
		return nil, utils.NewInvalidConfigurationError("number_threshold", cfg.NumberThreshold)
	}
	return &OutlierFilter{buf: buf, cfg: cfg}, nil
}

// Run classifies every point of the buffer and returns the outlier ids in ascending order.
func (f *OutlierFilter) Run() ([]int, error) {
	return f.RunIDs(f.buf.IDs())
}

// RunIDs classifies only the given points.
func (f *OutlierFilter) RunIDs(ids []int) ([]int, error) {
	bounds, err := f.buf.Bounds(ids)
	if err != nil {
		return nil, errors.Wrap(err, "computing outlier grid bounds")
	}
	f.Clear()
	if len(ids) == 0 {
		return nil, nil
	}
	f.grid, err = NewVoxelGrid(ToVector(bounds.Min), f.cfg.DistanceThreshold)
	if err != nil {
		return nil, err
	}
	for _, id := range ids {
		f.grid.Push(ToVector(f.buf.row(id)), id)
	}

	var outliers []int
	for _, c := range f.grid.Keys() {
		if f.isOutlierCell(c) {
			outliers = append(outliers, f.grid.Cell(c)...)
		}
	}
	sort.Ints(outliers)
	return outliers, nil
}

// Clear drops the grid and cell classification.
func (f *OutlierFilter) Clear() {
	f.grid = nil
	f.tags = make(map[VoxelCoords]cellClass)
}

// isOutlierCell decides whether every point of c is an outlier. A dense cell never is.
// A sparse cell is an outlier when it has no occupied neighbor, or when its only occupied
// neighbor is itself sparse and touches nothing but c. Decisions are memoised and also
// propagated to the neighbor that settled them.
func (f *OutlierFilter) isOutlierCell(c VoxelCoords) bool {
	switch f.tags[c] {
	case cellOutlier:
		return true
	case cellInlier:
		return false
	case cellUnknown:
	}

	if len(f.grid.Cell(c)) >= f.cfg.NumberThreshold {
		f.tags[c] = cellInlier
		return false
	}

	var (
		occupied int
		first    VoxelCoords
	)
	for _, nc := range c.Neighbors() {
		switch f.tags[nc] {
		case cellInlier:
			f.tags[c] = cellInlier
			return false
		case cellOutlier:
			f.tags[c] = cellOutlier
			return true
		case cellUnknown:
		}
		if f.grid.IsEmpty(nc) {
			continue
		}
		occupied++
		if occupied == 1 {
			first = nc
		} else {
			break
		}
	}

	switch {
	case occupied == 0:
		f.tags[c] = cellOutlier
		return true
	case occupied == 1 &&
		len(f.grid.Cell(first)) < f.cfg.NumberThreshold &&
		f.grid.OccupiedNeighbors(first) == 1:
		f.tags[c] = cellOutlier
		f.tags[first] = cellOutlier
		return true
	}
	f.tags[c] = cellInlier
	f.tags[first] = cellInlier
	return false
}
