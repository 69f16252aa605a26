package cluster

import (
	"context"

	"github.com/samber/lo"
	"go.uber.org/multierr"
	goutils "go.viam.com/utils"

	"go.viam.com/pcindex/kdtree"
	"go.viam.com/pcindex/logging"
	"go.viam.com/pcindex/pointcloud"
	"go.viam.com/pcindex/utils"
)

// DBSCANConfig configures DBSCAN.
type DBSCANConfig struct {
	// MaxDistance is the largest distance between two neighbors.
	MaxDistance float64 `json:"max_distance"`
	// MinNeighbors is the neighbor count, the point itself included, that makes a point a core point.
	MinNeighbors int `json:"min_neighbors"`
	// Workers bounds the goroutines counting neighbors; zero uses every CPU.
	Workers int `json:"workers,omitempty"`
	// Seeds restricts cluster growth to start from these points.
	Seeds []int `json:"seeds,omitempty"`
}

// Validate ensures all parts of the config are valid.
func (cfg *DBSCANConfig) Validate(path string) error {
	if cfg.MaxDistance <= 0 {
		return goutils.NewConfigValidationError(path, utils.NewInvalidConfigurationError("max_distance", cfg.MaxDistance))
	}
	if cfg.MinNeighbors < 1 {
		return goutils.NewConfigValidationError(path, utils.NewInvalidConfigurationError("min_neighbors", cfg.MinNeighbors))
	}
	if cfg.Workers < 0 {
		return goutils.NewConfigValidationError(path, utils.NewInvalidConfigurationError("workers", cfg.Workers))
	}
	return nil
}

// DBSCAN clusters ids of buf, or every point when ids is nil. A point with at least
// MinNeighbors points within MaxDistance is a core point; clusters grow from core points
// through their neighbors. A non-core point reached from a cluster joins the first one to
// reach it, and the rest are Noise. With Seeds set only the seeds start clusters, and
// targets no seeded cluster reaches are Noise.
func DBSCAN(ctx context.Context, buf pointcloud.Buffer, ids []int, cfg DBSCANConfig, logger logging.Logger) (*Result, error) {
	if err := cfg.Validate("dbscan"); err != nil {
		return nil, err
	}
	ids, err := targetIDs(buf, ids)
	if err != nil {
		return nil, err
	}
	starts, err := startIDs(ids, cfg.Seeds)
	if err != nil {
		return nil, err
	}
	result := newResult(buf.Size())
	if len(ids) == 0 {
		return result, nil
	}
	if logger == nil {
		logger = logging.NewBlankLogger("dbscan")
	}

	tree, err := kdtree.NewFromBuffer(buf, logger.Sublogger("kdtree"))
	if err != nil {
		return nil, err
	}
	bounds, err := buf.Bounds(ids)
	if err != nil {
		return nil, err
	}
	nodeSize := lo.Times(buf.Dim(), func(int) float64 { return cfg.MaxDistance })
	if err := tree.Build(ids, bounds.Min, bounds.Max, nodeSize); err != nil {
		return nil, err
	}
	defer tree.Clear()

	neighbors := make([][]int, len(ids))
	errs := make([]error, len(ids))
	err = utils.GroupWorkParallel(ctx, len(ids), cfg.Workers, func(_, _, _, _ int) (utils.MemberWorkFunc, utils.GroupWorkDoneFunc) {
		return func(_, i int) {
			p, err := buf.At(ids[i])
			if err != nil {
				errs[i] = err
				return
			}
			found, err := tree.SearchRadius(p, cfg.MaxDistance)
			if err != nil {
				errs[i] = err
				return
			}
			neighbors[i] = lo.Map(found, func(n pointcloud.Neighbor, _ int) int { return n.ID })
		}, nil
	})
	if err = multierr.Combine(append(errs, err)...); err != nil {
		return nil, err
	}

	position := make(map[int]int, len(ids))
	for i, id := range ids {
		position[id] = i
	}
	isCore := func(id int) bool {
		return len(neighbors[position[id]]) >= cfg.MinNeighbors
	}

	labels := result.Labels
	var stack []int
	for _, id := range starts {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if labels[id] != Unassigned {
			continue
		}
		if !isCore(id) {
			labels[id] = Noise
			continue
		}

		result.Count++
		label := result.Count
		labels[id] = label
		stack = append(stack[:0], neighbors[position[id]]...)
		for len(stack) > 0 {
			next := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			switch labels[next] {
			case Noise:
				labels[next] = label
				continue
			case Unassigned:
			default:
				continue
			}
			labels[next] = label
			if isCore(next) {
				stack = append(stack, neighbors[position[next]]...)
			}
		}
	}

	if len(cfg.Seeds) > 0 {
		result.markNoise(ids)
	}
	logger.Debugw("dbscan finished", "points", len(ids), "clusters", result.Count, "noise", len(result.Members(Noise)))
	return result, nil
}
