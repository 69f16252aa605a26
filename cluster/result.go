// Package cluster groups the points of a buffer with distance based region growing,
// density based (DBSCAN) and mode seeking (mean-shift) clustering, all driven by radius
// queries on a k-d tree, and with k-means.
package cluster

import (
	"github.com/samber/lo"

	"go.viam.com/pcindex/pointcloud"
	"go.viam.com/pcindex/utils"
)

const (
	// Unassigned labels points that were not part of the clustered set.
	Unassigned = 0
	// Noise labels clustered points that belong to no cluster.
	Noise = -1
)

// Result holds one label per point of the buffer. Clusters are numbered from 1 to Count.
type Result struct {
	Labels []int
	Count  int
	// Modes holds the center of each cluster when the algorithm produces one; Modes[i] is
	// the center of cluster i+1.
	Modes [][]float64
}

func newResult(size int) *Result {
	return &Result{Labels: make([]int, size)}
}

// Members returns the ids labelled with label in ascending order.
func (r *Result) Members(label int) []int {
	return lo.Filter(lo.Range(len(r.Labels)), func(id, _ int) bool {
		return r.Labels[id] == label
	})
}

// Sizes returns the number of points in each cluster; Sizes()[i] is the size of cluster i+1.
func (r *Result) Sizes() []int {
	sizes := make([]int, r.Count)
	for _, label := range r.Labels {
		if label > 0 {
			sizes[label-1]++
		}
	}
	return sizes
}

func targetIDs(buf pointcloud.Buffer, ids []int) ([]int, error) {
	if ids == nil {
		return buf.IDs(), nil
	}
	if err := buf.CheckIDs(ids); err != nil {
		return nil, err
	}
	return ids, nil
}

// startIDs returns the ids growth starts from: seeds when given, otherwise every target.
// Each seed must be one of the targets.
func startIDs(ids, seeds []int) ([]int, error) {
	if len(seeds) == 0 {
		return ids, nil
	}
	targets := lo.SliceToMap(ids, func(id int) (int, struct{}) { return id, struct{}{} })
	for _, id := range seeds {
		if _, ok := targets[id]; !ok {
			return nil, utils.NewInvalidArgumentError("seed %d is not a clustered point", id)
		}
	}
	return seeds, nil
}

// markNoise labels every target that growth from the seeds never reached.
func (r *Result) markNoise(ids []int) {
	for _, id := range ids {
		if r.Labels[id] == Unassigned {
			r.Labels[id] = Noise
		}
	}
}
