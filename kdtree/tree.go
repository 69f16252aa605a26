// Package kdtree implements a k-d tree over a frozen point buffer for nearest, k-nearest
// and radius queries.
//
// Nodes are stored in an arena and refer to each other by index. A node stops splitting
// once its tight extents fit within the configured node size on every axis. Otherwise it
// splits on the axis of greatest tight extent, lowest axis first on ties, at the midpoint
// of that extent; points at or below the split go left.
package kdtree

import (
	"github.com/pkg/errors"

	"go.viam.com/pcindex/internal/rawpoints"
	"go.viam.com/pcindex/logging"
	"go.viam.com/pcindex/pointcloud"
	"go.viam.com/pcindex/spatialmath"
	"go.viam.com/pcindex/utils"
)

// noChild marks the child links of a leaf.
const noChild = -1

// Node is one entry of the tree arena. Extents are the tight bounds of the points below
// the node; Region is the slice of the build bounds the node covers.
type Node struct {
	Leaf    bool
	Axis    int
	Split   float64
	Left    int
	Right   int
	Depth   int
	Extents spatialmath.Extents
	Region  spatialmath.Extents
	IDs     []int
}

// Tree is a k-d tree over the first Dim() scalars of each point of a buffer. Builds are
// single-threaded; a built tree may be queried from any number of goroutines.
type Tree struct {
	buf      pointcloud.Buffer
	dim      int
	logger   logging.Logger
	frozen   bool
	data     []float64
	stride   int
	nodeSize []float64
	nodes    []Node
	size     int
	layers   int
}

// New returns an unbuilt tree searching the first dim axes of buf.
func New(buf pointcloud.Buffer, dim int, logger logging.Logger) (*Tree, error) {
	if dim < 1 {
		return nil, utils.NewInvalidConfigurationError("dim", dim)
	}
	if dim > buf.Dim() {
		return nil, errors.Wrapf(utils.ErrDimensionMismatch, "search dimension %d exceeds point dimension %d", dim, buf.Dim())
	}
	if logger == nil {
		logger = logging.NewBlankLogger("kdtree")
	}
	return &Tree{buf: buf, dim: dim, logger: logger}, nil
}

// NewFromBuffer returns an unbuilt tree searching every axis of buf.
func NewFromBuffer(buf pointcloud.Buffer, logger logging.Logger) (*Tree, error) {
	return New(buf, buf.Dim(), logger)
}

// Dim returns the number of axes searched.
func (t *Tree) Dim() int {
	return t.dim
}

// Build indexes ids. minBound and maxBound give the region the tree covers and nodeSize
// the largest leaf extent per axis. Building freezes the buffer until Clear and
// replaces any previous tree.
func (t *Tree) Build(ids []int, minBound, maxBound, nodeSize []float64) error {
	for _, bound := range [][]float64{minBound, maxBound, nodeSize} {
		if len(bound) != t.dim {
			return utils.NewDimensionMismatchError(t.dim, len(bound))
		}
	}
	for axis, size := range nodeSize {
		if !(size > 0) {
			return errors.Wrapf(utils.NewInvalidConfigurationError("node size", size), "axis %d", axis)
		}
	}
	region, err := spatialmath.ExtentsFromBounds(minBound, maxBound)
	if err != nil {
		return err
	}
	if err := t.buf.CheckIDs(ids); err != nil {
		return err
	}

	t.Clear()
	t.buf.Freeze()
	t.frozen = true
	t.data = rawpoints.Data(t.buf)
	t.stride = t.buf.Dim()
	t.nodeSize = append([]float64(nil), nodeSize...)
	t.size = len(ids)

	t.nodes = append(t.nodes, Node{
		Leaf:    true,
		Left:    noChild,
		Right:   noChild,
		Extents: t.tightExtents(ids),
		Region:  region,
		IDs:     append([]int(nil), ids...),
	})
	leaves := 0
	work := []int{0}
	for len(work) > 0 {
		i := work[len(work)-1]
		work = work[:len(work)-1]
		if t.nodes[i].Depth+1 > t.layers {
			t.layers = t.nodes[i].Depth + 1
		}

		left, right, ok := t.split(i)
		if !ok {
			leaves++
			continue
		}
		work = append(work, left, right)
	}

	t.logger.Debugw("built k-d tree", "points", t.size, "nodes", len(t.nodes), "leaves", leaves, "layers", t.layers)
	return nil
}

// BuildAll indexes every point of the buffer using its tight bounds.
func (t *Tree) BuildAll(nodeSize []float64) error {
	minBound := make([]float64, t.dim)
	maxBound := make([]float64, t.dim)
	if !t.buf.Empty() {
		bounds := t.buf.BoundsAll()
		copy(minBound, bounds.Min)
		copy(maxBound, bounds.Max)
	}
	return t.Build(t.buf.IDs(), minBound, maxBound, nodeSize)
}

// split turns node i into a branch with two new children and reports whether it did.
func (t *Tree) split(i int) (int, int, bool) {
	n := t.nodes[i]
	if len(n.IDs) < 2 || n.Extents.FitsWithin(t.nodeSize) {
		return 0, 0, false
	}
	axis := n.Extents.LongestAxis()
	at := n.Extents.Center(axis)

	var lo, hi []int
	for _, id := range n.IDs {
		if t.point(id)[axis] <= at {
			lo = append(lo, id)
		} else {
			hi = append(hi, id)
		}
	}
	// The midpoint of two adjacent floats may round onto the upper one.
	if len(lo) == 0 || len(hi) == 0 {
		return 0, 0, false
	}

	loRegion, hiRegion := n.Region.Split(axis, at)
	left := t.addLeaf(lo, loRegion, n.Depth+1)
	right := t.addLeaf(hi, hiRegion, n.Depth+1)

	branch := &t.nodes[i]
	branch.Leaf = false
	branch.Axis = axis
	branch.Split = at
	branch.Left = left
	branch.Right = right
	branch.IDs = nil
	return left, right, true
}

func (t *Tree) addLeaf(ids []int, region spatialmath.Extents, depth int) int {
	t.nodes = append(t.nodes, Node{
		Leaf:    true,
		Left:    noChild,
		Right:   noChild,
		Depth:   depth,
		Extents: t.tightExtents(ids),
		Region:  region,
		IDs:     ids,
	})
	return len(t.nodes) - 1
}

func (t *Tree) tightExtents(ids []int) spatialmath.Extents {
	e := spatialmath.NewExtents(t.dim)
	for _, id := range ids {
		e.Merge(t.point(id))
	}
	return e
}

func (t *Tree) point(id int) []float64 {
	off := id * t.stride
	return t.data[off : off+t.dim : off+t.dim]
}

// Clear drops every node and releases the tree's freeze on the buffer.
func (t *Tree) Clear() {
	if t.frozen {
		t.buf.Thaw()
		t.frozen = false
	}
	t.nodes = nil
	t.data = nil
	t.size = 0
	t.layers = 0
}

// Empty reports whether the tree indexes no points, including when it was never built.
func (t *Tree) Empty() bool {
	return t.size == 0
}

// Size returns the number of indexed points.
func (t *Tree) Size() int {
	return t.size
}

// LayerCount returns the number of levels, zero when never built.
func (t *Tree) LayerCount() int {
	return t.layers
}

// NodeCount returns the number of nodes in the arena.
func (t *Tree) NodeCount() int {
	return len(t.nodes)
}

// Root returns the root node; ok is false when the tree was never built.
func (t *Tree) Root() (Node, bool) {
	if len(t.nodes) == 0 {
		return Node{}, false
	}
	return t.nodes[0], true
}

// Node returns the node at arena index i.
func (t *Tree) Node(i int) (Node, error) {
	if i < 0 || i >= len(t.nodes) {
		return Node{}, utils.NewIndexOutOfRangeError(i, len(t.nodes))
	}
	return t.nodes[i], nil
}

// Leaves returns the arena indices of every leaf in depth-first order, left first.
func (t *Tree) Leaves() []int {
	if len(t.nodes) == 0 {
		return nil
	}
	var leaves []int
	stack := []int{0}
	for len(stack) > 0 {
		i := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if t.nodes[i].Leaf {
			leaves = append(leaves, i)
			continue
		}
		stack = append(stack, t.nodes[i].Right, t.nodes[i].Left)
	}
	return leaves
}

// Element returns a copy of the scalars of point id in the underlying buffer.
func (t *Tree) Element(id int) ([]float64, error) {
	return t.buf.At(id)
}

// Buffer returns the buffer the tree reads from.
func (t *Tree) Buffer() pointcloud.Buffer {
	return t.buf
}
