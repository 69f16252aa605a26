package octree

import (
	"math"
	"sort"

	"github.com/golang/geo/r3"

	"go.viam.com/pcindex/pointcloud"
	"go.viam.com/pcindex/topk"
	"go.viam.com/pcindex/utils"
)

// SearchNearest returns the closest point within radius of q, or a Neighbor with ID
// NotFound when there is none.
func (t *Tree) SearchNearest(q r3.Vector, radius float64) (pointcloud.Neighbor, error) {
	found, err := t.SearchKNearest(q, 1, radius)
	if err != nil || len(found) == 0 {
		return pointcloud.Neighbor{ID: pointcloud.NotFound}, err
	}
	return found[0], nil
}

// SearchKNearest returns up to k points within radius of q, nearest first.
func (t *Tree) SearchKNearest(q r3.Vector, k int, radius float64) ([]pointcloud.Neighbor, error) {
	if err := utils.CheckRadius(radius); err != nil {
		return nil, err
	}
	if k < 1 {
		return nil, utils.NewInvalidArgumentError("k must be positive, got %d", k)
	}
	if t.Empty() {
		return nil, nil
	}

	best, err := topk.New[float64, int](min(k, t.size))
	if err != nil {
		return nil, err
	}
	r2 := radius * radius
	limit := func() float64 {
		if tail, ok := best.TailKey(); ok && best.Full() {
			return math.Min(tail, r2)
		}
		return r2
	}
	t.traverse(q, limit, func(id int, d2 float64) {
		best.Insert(d2, id)
	})

	dists, ids := best.Elems()
	found := make([]pointcloud.Neighbor, len(ids))
	for i := range ids {
		found[i] = pointcloud.Neighbor{ID: ids[i], DistSquared: dists[i]}
	}
	return found, nil
}

// SearchRadius returns every point within radius of q in no particular order.
func (t *Tree) SearchRadius(q r3.Vector, radius float64) ([]pointcloud.Neighbor, error) {
	if err := utils.CheckRadius(radius); err != nil {
		return nil, err
	}
	if t.Empty() {
		return nil, nil
	}
	r2 := radius * radius
	var found []pointcloud.Neighbor
	t.traverse(q, func() float64 { return r2 }, func(id int, d2 float64) {
		found = append(found, pointcloud.Neighbor{ID: id, DistSquared: d2})
	})
	return found, nil
}

// Contains reports whether an indexed point is exactly at q.
func (t *Tree) Contains(q r3.Vector) (bool, error) {
	n, err := t.SearchNearest(q, 0)
	if err != nil {
		return false, err
	}
	return n.ID != pointcloud.NotFound, nil
}

type pending struct {
	node  int
	dist2 float64
}

// traverse walks the tree depth first, visiting the children of a branch nearest first
// and skipping any node whose box lies farther than limit().
func (t *Tree) traverse(q r3.Vector, limit func() float64, visit func(id int, d2 float64)) {
	stack := []pending{{node: 0, dist2: t.nodes[0].Box.MinDistSquared(q)}}
	var children []pending
	for len(stack) > 0 {
		top := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if top.dist2 > limit() {
			continue
		}
		n := &t.nodes[top.node]
		if n.Leaf {
			for _, id := range n.IDs {
				if d2 := t.vertex(id).Sub(q).Norm2(); d2 <= limit() {
					visit(id, d2)
				}
			}
			continue
		}

		children = children[:0]
		for _, c := range n.Children {
			children = append(children, pending{node: c.Node, dist2: t.nodes[c.Node].Box.MinDistSquared(q)})
		}
		// Farthest first so the nearest child is popped next.
		sort.Slice(children, func(i, j int) bool { return children[i].dist2 > children[j].dist2 })
		stack = append(stack, children...)
	}
}
