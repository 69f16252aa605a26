package kdtree

import (
	"math"

	"go.viam.com/pcindex/pointcloud"
	"go.viam.com/pcindex/spatialmath"
	"go.viam.com/pcindex/topk"
	"go.viam.com/pcindex/utils"
)

// SearchNearest returns the closest point within radius of q, or a Neighbor with ID
// NotFound when there is none.
func (t *Tree) SearchNearest(q []float64, radius float64) (pointcloud.Neighbor, error) {
	found, err := t.SearchKNearest(q, 1, radius)
	if err != nil || len(found) == 0 {
		return pointcloud.Neighbor{ID: pointcloud.NotFound}, err
	}
	return found[0], nil
}

// SearchKNearest returns up to k points within radius of q, nearest first.
func (t *Tree) SearchKNearest(q []float64, k int, radius float64) ([]pointcloud.Neighbor, error) {
	if err := t.checkQuery(q, radius); err != nil {
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
		if best.Full() {
			tail, _ := best.TailKey()
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
func (t *Tree) SearchRadius(q []float64, radius float64) ([]pointcloud.Neighbor, error) {
	if err := t.checkQuery(q, radius); err != nil {
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

// Contains reports whether an indexed point equals q on every searched axis.
func (t *Tree) Contains(q []float64) (bool, error) {
	n, err := t.SearchNearest(q, 0)
	if err != nil {
		return false, err
	}
	return n.ID != pointcloud.NotFound, nil
}

func (t *Tree) checkQuery(q []float64, radius float64) error {
	if len(q) < t.dim {
		return utils.NewDimensionMismatchError(t.dim, len(q))
	}
	return utils.CheckRadius(radius)
}

// traverse walks the tree depth first, nearer child first, skipping nodes whose tight
// extents lie farther than limit() and calling visit for each point within it.
func (t *Tree) traverse(q []float64, limit func() float64, visit func(id int, d2 float64)) {
	stack := []int{0}
	for len(stack) > 0 {
		n := &t.nodes[stack[len(stack)-1]]
		stack = stack[:len(stack)-1]
		if n.Extents.MinDistSquared(q) > limit() {
			continue
		}
		if n.Leaf {
			for _, id := range n.IDs {
				if d2 := spatialmath.SquaredDistance(t.point(id), q, t.dim); d2 <= limit() {
					visit(id, d2)
				}
			}
			continue
		}
		near, far := n.Left, n.Right
		if q[n.Axis] > n.Split {
			near, far = far, near
		}
		stack = append(stack, far, near)
	}
}
