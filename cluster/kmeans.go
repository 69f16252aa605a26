package cluster

import (
	"context"

	"github.com/muesli/clusters"
	"github.com/muesli/kmeans"
	goutils "go.viam.com/utils"
	"gonum.org/v1/gonum/floats"

	"go.viam.com/pcindex/logging"
	"go.viam.com/pcindex/pointcloud"
	"go.viam.com/pcindex/utils"
)

const defaultDeltaThreshold = 0.01

// KMeansConfig configures KMeans.
type KMeansConfig struct {
	// K is the number of clusters.
	K int `json:"k"`
	// DeltaThreshold stops iterating once fewer than this fraction of points change
	// cluster. Must lie in (0, 1); defaults to 0.01.
	DeltaThreshold float64 `json:"delta_threshold,omitempty"`
}

// Validate ensures all parts of the config are valid.
func (cfg *KMeansConfig) Validate(path string) error {
	if cfg.K < 1 {
		return goutils.NewConfigValidationError(path, utils.NewInvalidConfigurationError("k", cfg.K))
	}
	if cfg.DeltaThreshold < 0 || cfg.DeltaThreshold >= 1 {
		return goutils.NewConfigValidationError(path,
			utils.NewInvalidArgumentError("delta_threshold must be in (0, 1), got %v", cfg.DeltaThreshold))
	}
	return nil
}

type pointObservation struct {
	id     int
	coords clusters.Coordinates
}

func (o pointObservation) Coordinates() clusters.Coordinates {
	return o.coords
}

func (o pointObservation) Distance(point clusters.Coordinates) float64 {
	return floats.Distance(o.coords, point, 2)
}

// KMeans partitions ids of buf, or every point when ids is nil, into at most K clusters
// around their means. With no more points than K every point is its own cluster.
func KMeans(ctx context.Context, buf pointcloud.Buffer, ids []int, cfg KMeansConfig, logger logging.Logger) (*Result, error) {
	if err := cfg.Validate("kmeans"); err != nil {
		return nil, err
	}
	if cfg.DeltaThreshold == 0 {
		cfg.DeltaThreshold = defaultDeltaThreshold
	}
	ids, err := targetIDs(buf, ids)
	if err != nil {
		return nil, err
	}
	result := newResult(buf.Size())
	if len(ids) == 0 {
		return result, nil
	}
	if logger == nil {
		logger = logging.NewBlankLogger("kmeans")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	observations := make(clusters.Observations, 0, len(ids))
	for _, id := range ids {
		p, err := buf.At(id)
		if err != nil {
			return nil, err
		}
		observations = append(observations, pointObservation{id: id, coords: clusters.Coordinates(p)})
	}

	if len(ids) <= cfg.K {
		for i, o := range observations {
			result.Labels[o.(pointObservation).id] = i + 1
			result.Modes = append(result.Modes, []float64(o.Coordinates()))
		}
		result.Count = len(ids)
		return result, nil
	}

	km, err := kmeans.NewWithOptions(cfg.DeltaThreshold, nil)
	if err != nil {
		return nil, err
	}
	partition, err := km.Partition(observations, cfg.K)
	if err != nil {
		return nil, err
	}
	for _, c := range partition {
		if len(c.Observations) == 0 {
			continue
		}
		result.Modes = append(result.Modes, []float64(c.Center))
		for _, o := range c.Observations {
			result.Labels[o.(pointObservation).id] = len(result.Modes)
		}
	}
	result.Count = len(result.Modes)

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	logger.Debugw("k-means finished", "points", len(ids), "clusters", result.Count)
	return result, nil
}
