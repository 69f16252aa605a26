package cluster

import (
	"context"

	"github.com/samber/lo"
	goutils "go.viam.com/utils"

	"go.viam.com/pcindex/kdtree"
	"go.viam.com/pcindex/logging"
	"go.viam.com/pcindex/pointcloud"
	"go.viam.com/pcindex/utils"
)

// DistanceConfig configures Distance.
type DistanceConfig struct {
	// MaxDistance is the largest gap between two points of the same cluster.
	MaxDistance float64 `json:"max_distance"`
	// Seeds restricts cluster growth to start from these points.
	Seeds []int `json:"seeds,omitempty"`
}

// Validate ensures all parts of the config are valid.
func (cfg *DistanceConfig) Validate(path string) error {
	if cfg.MaxDistance <= 0 {
		return goutils.NewConfigValidationError(path, utils.NewInvalidConfigurationError("max_distance", cfg.MaxDistance))
	}
	return nil
}

// Distance clusters ids of buf, or every point when ids is nil, into the groups connected
// by gaps of at most MaxDistance. Every target lands in a cluster, a lone point in its
// own. With Seeds set only the seeds start clusters, and targets no seed reaches are Noise.
func Distance(ctx context.Context, buf pointcloud.Buffer, ids []int, cfg DistanceConfig, logger logging.Logger) (*Result, error) {
	if err := cfg.Validate("distance"); err != nil {
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
		logger = logging.NewBlankLogger("distance")
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

	labels := result.Labels
	var stack []int
	for _, id := range starts {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if labels[id] != Unassigned {
			continue
		}

		result.Count++
		label := result.Count
		labels[id] = label
		stack = append(stack[:0], id)
		for len(stack) > 0 {
			next := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			p, err := buf.At(next)
			if err != nil {
				return nil, err
			}
			found, err := tree.SearchRadius(p, cfg.MaxDistance)
			if err != nil {
				return nil, err
			}
			for _, n := range found {
				if labels[n.ID] == Unassigned {
					labels[n.ID] = label
					stack = append(stack, n.ID)
				}
			}
		}
	}
	if len(cfg.Seeds) > 0 {
		result.markNoise(ids)
	}

	logger.Debugw("distance clustering finished", "points", len(ids), "clusters", result.Count)
	return result, nil
}
