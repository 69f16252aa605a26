// Package config defines the JSON configuration shared by the pcindex commands.
package config

import (
	"fmt"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"go.viam.com/utils"

	"go.viam.com/pcindex/cluster"
	"go.viam.com/pcindex/logging"
	"go.viam.com/pcindex/pointcloud"
	rutils "go.viam.com/pcindex/utils"
)

// Config describes how point files are indexed, clustered and filtered.
type Config struct {
	ConfigFilePath string `json:"-"`

	Index     IndexConfig              `json:"index"`
	Octree    OctreeConfig             `json:"octree"`
	Distance  cluster.DistanceConfig   `json:"distance"`
	DBSCAN    cluster.DBSCANConfig     `json:"dbscan"`
	MeanShift cluster.MeanShiftConfig  `json:"mean_shift"`
	KMeans    cluster.KMeansConfig     `json:"kmeans"`
	Outlier   pointcloud.OutlierConfig `json:"outlier"`
	Log       LogConfig                `json:"log"`
}

// IndexConfig configures k-d tree builds.
type IndexConfig struct {
	// Dim is the number of scalars per point read from files.
	Dim int `json:"dim"`
	// NodeSize is the largest leaf extent, either one value for every axis or one per axis.
	NodeSize []float64 `json:"node_size"`
}

// OctreeConfig configures octree builds.
type OctreeConfig struct {
	MinPointsForNode int       `json:"min_points_for_node"`
	MaxLeafShape     r3.Vector `json:"max_leaf_shape"`
}

// LogConfig configures the process logger.
type LogConfig struct {
	Level logging.Level `json:"level"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Index: IndexConfig{
			Dim:      3,
			NodeSize: []float64{1},
		},
		Octree: OctreeConfig{
			MinPointsForNode: 1,
			MaxLeafShape:     r3.Vector{X: 1, Y: 1, Z: 1},
		},
		Distance: cluster.DistanceConfig{MaxDistance: 1},
		DBSCAN: cluster.DBSCANConfig{
			MaxDistance:  1,
			MinNeighbors: 3,
		},
		MeanShift: cluster.MeanShiftConfig{
			SearchRadius: 1,
			ModeDistance: 1,
		},
		KMeans: cluster.KMeansConfig{K: 2},
		Outlier: pointcloud.OutlierConfig{
			DistanceThreshold: 1,
			NumberThreshold:   2,
		},
		Log: LogConfig{Level: logging.INFO},
	}
}

// Validate ensures all parts of the config are valid.
func (c *Config) Validate() error {
	if err := c.Index.Validate("index"); err != nil {
		return err
	}
	if err := c.Octree.Validate("octree"); err != nil {
		return err
	}
	if err := c.Distance.Validate("distance"); err != nil {
		return err
	}
	if err := c.DBSCAN.Validate("dbscan"); err != nil {
		return err
	}
	if err := c.MeanShift.Validate("mean_shift"); err != nil {
		return err
	}
	if err := c.KMeans.Validate("kmeans"); err != nil {
		return err
	}
	if c.Outlier.DistanceThreshold <= 0 {
		return utils.NewConfigValidationFieldRequiredError("outlier", "distance_threshold")
	}
	if c.Outlier.NumberThreshold < 0 {
		return utils.NewConfigValidationError("outlier",
			rutils.NewInvalidConfigurationError("number_threshold", c.Outlier.NumberThreshold))
	}
	return nil
}

// Validate ensures all parts of the config are valid.
func (ic *IndexConfig) Validate(path string) error {
	if ic.Dim < 1 {
		return utils.NewConfigValidationFieldRequiredError(path, "dim")
	}
	if len(ic.NodeSize) == 0 {
		return utils.NewConfigValidationFieldRequiredError(path, "node_size")
	}
	if len(ic.NodeSize) != 1 && len(ic.NodeSize) != ic.Dim {
		return utils.NewConfigValidationError(path,
			errors.Wrapf(rutils.ErrDimensionMismatch, "node_size needs 1 or %d values, got %d", ic.Dim, len(ic.NodeSize)))
	}
	for i, size := range ic.NodeSize {
		if !(size > 0) {
			return utils.NewConfigValidationError(fmt.Sprintf("%s.node_size.%d", path, i),
				rutils.NewInvalidConfigurationError("node_size", size))
		}
	}
	return nil
}

// NodeSizeFor expands NodeSize to dim axes.
func (ic *IndexConfig) NodeSizeFor(dim int) ([]float64, error) {
	switch len(ic.NodeSize) {
	case 1:
		out := make([]float64, dim)
		for i := range out {
			out[i] = ic.NodeSize[0]
		}
		return out, nil
	case dim:
		return append([]float64(nil), ic.NodeSize...), nil
	default:
		return nil, rutils.NewDimensionMismatchError(dim, len(ic.NodeSize))
	}
}

// Validate ensures all parts of the config are valid.
func (oc *OctreeConfig) Validate(path string) error {
	if oc.MinPointsForNode < 1 {
		return utils.NewConfigValidationError(path,
			rutils.NewInvalidConfigurationError("min_points_for_node", oc.MinPointsForNode))
	}
	if !(oc.MaxLeafShape.X > 0 && oc.MaxLeafShape.Y > 0 && oc.MaxLeafShape.Z > 0) {
		return utils.NewConfigValidationError(path,
			rutils.NewInvalidConfigurationError("max_leaf_shape", oc.MaxLeafShape))
	}
	return nil
}
