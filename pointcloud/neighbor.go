package pointcloud

import "math"

// NotFound is the id of a Neighbor when a search found no point.
const NotFound = -1

// Neighbor is a search result: a point id and its squared distance to the query.
type Neighbor struct {
	ID          int
	DistSquared float64
}

// Distance returns the euclidean distance to the query.
func (n Neighbor) Distance() float64 {
	return math.Sqrt(n.DistSquared)
}
