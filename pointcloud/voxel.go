package pointcloud

import (
	"math"
	"sort"

	"github.com/golang/geo/r3"

	"go.viam.com/pcindex/utils"
)

/* A voxel grid buckets point ids by the cube of a regular 3-D lattice they fall in.
Only occupied cells are stored, so the grid costs memory proportional to the number
of points rather than to the volume of the bounding box.
*/

// VoxelCoords stores Voxel coordinates in VoxelGrid axes.
type VoxelCoords struct {
	I, J, K int64
}

// IsEqual tests if two VoxelCoords are the same.
func (c VoxelCoords) IsEqual(c2 VoxelCoords) bool {
	return c.I == c2.I && c.J == c2.J && c.K == c2.K
}

// Neighbors returns the 26 cells sharing a face, edge or corner with c.
func (c VoxelCoords) Neighbors() []VoxelCoords {
	out := make([]VoxelCoords, 0, 26)
	for dk := int64(-1); dk <= 1; dk++ {
		for dj := int64(-1); dj <= 1; dj++ {
			for di := int64(-1); di <= 1; di++ {
				if di == 0 && dj == 0 && dk == 0 {
					continue
				}
				out = append(out, VoxelCoords{I: c.I + di, J: c.J + dj, K: c.K + dk})
			}
		}
	}
	return out
}

// GetVoxelCoordinates computes voxel coordinates in VoxelGrid Axes.
func GetVoxelCoordinates(pt, ptMin r3.Vector, voxelSize float64) VoxelCoords {
	ptVoxel := pt.Sub(ptMin)
	return VoxelCoords{
		I: int64(math.Floor(ptVoxel.X / voxelSize)),
		J: int64(math.Floor(ptVoxel.Y / voxelSize)),
		K: int64(math.Floor(ptVoxel.Z / voxelSize)),
	}
}

// VoxelGrid is a sparse hash grid of point ids.
type VoxelGrid struct {
	origin    r3.Vector
	voxelSize float64
	cells     map[VoxelCoords][]int
}

// NewVoxelGrid returns an empty grid whose cell (0, 0, 0) starts at origin.
func NewVoxelGrid(origin r3.Vector, voxelSize float64) (*VoxelGrid, error) {
	if !(voxelSize > 0) {
		return nil, utils.NewInvalidConfigurationError("voxelSize", voxelSize)
	}
	return &VoxelGrid{origin: origin, voxelSize: voxelSize, cells: make(map[VoxelCoords][]int)}, nil
}

// VoxelSize returns the edge length of a cell.
func (g *VoxelGrid) VoxelSize() float64 {
	return g.voxelSize
}

// Push adds id at position p.
func (g *VoxelGrid) Push(p r3.Vector, id int) VoxelCoords {
	c := GetVoxelCoordinates(p, g.origin, g.voxelSize)
	g.cells[c] = append(g.cells[c], id)
	return c
}

// Cell returns the ids stored in c.
func (g *VoxelGrid) Cell(c VoxelCoords) []int {
	return g.cells[c]
}

// IsEmpty reports whether c holds no points.
func (g *VoxelGrid) IsEmpty(c VoxelCoords) bool {
	return len(g.cells[c]) == 0
}

// Len returns the number of occupied cells.
func (g *VoxelGrid) Len() int {
	return len(g.cells)
}

// Keys returns the occupied cells ordered by K, then J, then I.
func (g *VoxelGrid) Keys() []VoxelCoords {
	keys := make([]VoxelCoords, 0, len(g.cells))
	for c := range g.cells {
		keys = append(keys, c)
	}
	sort.Slice(keys, func(a, b int) bool {
		if keys[a].K != keys[b].K {
			return keys[a].K < keys[b].K
		}
		if keys[a].J != keys[b].J {
			return keys[a].J < keys[b].J
		}
		return keys[a].I < keys[b].I
	})
	return keys
}

// OccupiedNeighbors counts the non-empty cells around c.
func (g *VoxelGrid) OccupiedNeighbors(c VoxelCoords) int {
	n := 0
	for _, nc := range c.Neighbors() {
		if !g.IsEmpty(nc) {
			n++
		}
	}
	return n
}

// Clear removes every point.
func (g *VoxelGrid) Clear() {
	g.cells = make(map[VoxelCoords][]int)
}
