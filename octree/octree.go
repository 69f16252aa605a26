// Package octree implements an octree over the first three scalars of each point in a
// frozen point buffer.
//
// Each node is either a branch, which links to up to eight child octants, or a leaf,
// which holds the ids of the points inside it. A node is split while its tight box is
// larger than the maximum leaf shape on some axis and it holds more than the minimum
// number of points per node. Octants left empty by a split are not stored.
package octree

import (
	"github.com/golang/geo/r3"
	"github.com/pkg/errors"

	"go.viam.com/pcindex/internal/rawpoints"
	"go.viam.com/pcindex/logging"
	"go.viam.com/pcindex/pointcloud"
	"go.viam.com/pcindex/spatialmath"
	"go.viam.com/pcindex/utils"
)

const (
	defaultMinPointsForNode = 1
	numOctants              = 8
)

var defaultMaxLeafShape = r3.Vector{X: 1, Y: 1, Z: 1}

// Child links a branch to the node covering one of its octants.
type Child struct {
	Octant int
	Node   int
}

// Node is one entry of the octree arena. Box is the tight box of the points below it.
type Node struct {
	Leaf     bool
	Depth    int
	Box      spatialmath.Box
	Children []Child
	IDs      []int
}

// Tree is an octree whose nodes live in an arena and refer to each other by index.
type Tree struct {
	buf          pointcloud.Buffer
	logger       logging.Logger
	frozen       bool
	data         []float64
	stride       int
	minPoints    int
	maxLeafShape r3.Vector
	nodes        []Node
	size         int
}

// New returns an unbuilt octree over buf, which must hold at least three scalars per point.
func New(buf pointcloud.Buffer, logger logging.Logger) (*Tree, error) {
	if buf.Dim() < 3 {
		return nil, errors.Wrapf(utils.ErrDimensionMismatch, "octree needs 3 scalars per point, buffer has %d", buf.Dim())
	}
	if logger == nil {
		logger = logging.NewBlankLogger("octree")
	}
	return &Tree{
		buf:          buf,
		logger:       logger,
		minPoints:    defaultMinPointsForNode,
		maxLeafShape: defaultMaxLeafShape,
	}, nil
}

// SetMinPointsForNode sets the point count a node must exceed to be split.
func (t *Tree) SetMinPointsForNode(n int) error {
	if n < 1 {
		return utils.NewInvalidConfigurationError("min points for node", n)
	}
	t.minPoints = n
	return nil
}

// MinPointsForNode returns the configured minimum.
func (t *Tree) MinPointsForNode() int {
	return t.minPoints
}

// SetMaxLeafShape sets the largest box a leaf may have along each axis.
func (t *Tree) SetMaxLeafShape(shape r3.Vector) error {
	if !(shape.X > 0 && shape.Y > 0 && shape.Z > 0) {
		return utils.NewInvalidConfigurationError("max leaf shape", shape)
	}
	t.maxLeafShape = shape
	return nil
}

// MaxLeafShape returns the configured leaf shape.
func (t *Tree) MaxLeafShape() r3.Vector {
	return t.maxLeafShape
}

func (t *Tree) isSplit(box spatialmath.Box, count int) bool {
	return box.Exceeds(t.maxLeafShape) && count > t.minPoints
}

// Build indexes ids, freezing the buffer until Clear and replacing any previous tree.
// Building over no ids leaves the tree without a root.
func (t *Tree) Build(ids []int) error {
	if err := t.buf.CheckIDs(ids); err != nil {
		return err
	}
	t.Clear()
	t.buf.Freeze()
	t.frozen = true
	t.data = rawpoints.Data(t.buf)
	t.stride = t.buf.Dim()
	t.size = len(ids)
	if len(ids) == 0 {
		t.logger.Debug("built empty octree")
		return nil
	}

	t.nodes = append(t.nodes, t.newLeaf(append([]int(nil), ids...), 0))
	var stack []int
	if t.isSplit(t.nodes[0].Box, len(ids)) {
		stack = append(stack, 0)
	}
	depth := 0
	for len(stack) > 0 {
		i := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		parent := t.nodes[i]

		var buckets [numOctants][]int
		for _, id := range parent.IDs {
			oct := parent.Box.Octant(t.vertex(id))
			buckets[oct] = append(buckets[oct], id)
		}

		var children []Child
		for oct, bucket := range buckets {
			if len(bucket) == 0 {
				continue
			}
			// A center that rounds onto the box edge can leave every point in one octant.
			if len(bucket) == len(parent.IDs) {
				break
			}
			child := t.newLeaf(bucket, parent.Depth+1)
			t.nodes = append(t.nodes, child)
			idx := len(t.nodes) - 1
			children = append(children, Child{Octant: oct, Node: idx})
			if t.isSplit(child.Box, len(bucket)) {
				stack = append(stack, idx)
			}
			depth = max(depth, child.Depth)
		}
		if len(children) == 0 {
			continue
		}

		branch := &t.nodes[i]
		branch.Leaf = false
		branch.Children = children
		branch.IDs = nil
	}

	t.logger.Debugw("built octree", "points", t.size, "nodes", len(t.nodes), "leaves", len(t.Leaves()), "depth", depth)
	return nil
}

// BuildAll indexes every point of the buffer.
func (t *Tree) BuildAll() error {
	return t.Build(t.buf.IDs())
}

func (t *Tree) newLeaf(ids []int, depth int) Node {
	box := spatialmath.EmptyBox()
	for _, id := range ids {
		box.Merge(t.vertex(id))
	}
	return Node{Leaf: true, Depth: depth, Box: box, IDs: ids}
}

// Vertex returns the position of point id in the buffer.
func (t *Tree) Vertex(id int) (r3.Vector, error) {
	return t.buf.Vector(id)
}

// vertex is Vertex without checks, for ids already validated by Build.
func (t *Tree) vertex(id int) r3.Vector {
	off := id * t.stride
	return r3.Vector{X: t.data[off], Y: t.data[off+1], Z: t.data[off+2]}
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
}

// Empty reports whether the tree has no root.
func (t *Tree) Empty() bool {
	return len(t.nodes) == 0
}

// Size returns the number of indexed points.
func (t *Tree) Size() int {
	return t.size
}

// NodeCount returns the number of nodes in the arena.
func (t *Tree) NodeCount() int {
	return len(t.nodes)
}

// Root returns the root node; ok is false when the tree is empty.
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

// Leaves returns the arena indices of every leaf in creation order.
func (t *Tree) Leaves() []int {
	var leaves []int
	for i := range t.nodes {
		if t.nodes[i].Leaf {
			leaves = append(leaves, i)
		}
	}
	return leaves
}
