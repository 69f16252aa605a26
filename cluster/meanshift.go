package cluster

import (
	"context"
	"math"

	"github.com/pkg/errors"
	"github.com/samber/lo"
	goutils "go.viam.com/utils"
	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/floats"

	"go.viam.com/pcindex/kdtree"
	"go.viam.com/pcindex/logging"
	"go.viam.com/pcindex/pointcloud"
	"go.viam.com/pcindex/utils"
)

const (
	meanShiftNodeSize          = 2.0
	defaultModeDistance        = 1.0
	defaultConvergenceDistance = 0.01
	defaultMaxIterations       = 100
	defaultKernelScale         = 2.0
)

// Kernel weighs a neighbor by r, its squared distance to the current mode divided by
// the squared search radius.
type Kernel func(r float64) float64

// DefaultKernel is g(r) = 2 e^(-r/2) sqrt(r).
func DefaultKernel(r float64) float64 {
	return defaultKernelScale * math.Exp(-0.5*r) * math.Sqrt(r)
}

// MeanShiftConfig configures MeanShift. Zero values other than SearchRadius select the
// defaults.
type MeanShiftConfig struct {
	// SearchRadius is the kernel bandwidth.
	SearchRadius float64 `json:"search_radius"`
	// ModeDistance is how close two modes must be to share a cluster. Defaults to 1.
	ModeDistance float64 `json:"mode_distance,omitempty"`
	// ConvergenceDistance stops a mode once a step is this short. Defaults to 0.01.
	ConvergenceDistance float64 `json:"convergence_distance,omitempty"`
	// MaxIterations caps the steps taken from each point. Defaults to 100.
	MaxIterations int `json:"max_iterations,omitempty"`
	// Weights scales each axis when measuring step length. Defaults to 1 per axis.
	Weights []float64 `json:"weights,omitempty"`
	// Kernel defaults to DefaultKernel.
	Kernel Kernel `json:"-"`
	// Workers bounds the goroutines seeking modes; zero uses every CPU.
	Workers int `json:"workers,omitempty"`
}

// Validate ensures all parts of the config are valid.
func (cfg *MeanShiftConfig) Validate(path string) error {
	if cfg.SearchRadius <= 0 {
		return goutils.NewConfigValidationError(path, utils.NewInvalidConfigurationError("search_radius", cfg.SearchRadius))
	}
	for name, v := range map[string]float64{
		"mode_distance":        cfg.ModeDistance,
		"convergence_distance": cfg.ConvergenceDistance,
		"max_iterations":       float64(cfg.MaxIterations),
		"workers":              float64(cfg.Workers),
	} {
		if v < 0 {
			return goutils.NewConfigValidationError(path, utils.NewInvalidConfigurationError(name, v))
		}
	}
	for i, w := range cfg.Weights {
		if w < 0 {
			return goutils.NewConfigValidationError(path,
				errors.Wrapf(utils.ErrInvalidConfiguration, "weight %d must not be negative, got %v", i, w))
		}
	}
	return nil
}

func (cfg MeanShiftConfig) withDefaults(dim int) MeanShiftConfig {
	if cfg.ModeDistance == 0 {
		cfg.ModeDistance = defaultModeDistance
	}
	if cfg.ConvergenceDistance == 0 {
		cfg.ConvergenceDistance = defaultConvergenceDistance
	}
	if cfg.MaxIterations == 0 {
		cfg.MaxIterations = defaultMaxIterations
	}
	if cfg.Weights == nil {
		cfg.Weights = lo.Times(dim, func(int) float64 { return 1 })
	}
	if cfg.Kernel == nil {
		cfg.Kernel = DefaultKernel
	}
	if cfg.Workers == 0 {
		cfg.Workers = utils.ParallelFactor
	}
	return cfg
}

// MeanShift clusters ids of buf, or every point when ids is nil. Each point climbs to a
// mode of the kernel density estimate; modes closer than ModeDistance to the mode that
// opened a cluster join it, in point order.
func MeanShift(ctx context.Context, buf pointcloud.Buffer, ids []int, cfg MeanShiftConfig, logger logging.Logger) (*Result, error) {
	if err := cfg.Validate("mean_shift"); err != nil {
		return nil, err
	}
	dim := buf.Dim()
	if cfg.Weights != nil && len(cfg.Weights) != dim {
		return nil, utils.NewDimensionMismatchError(dim, len(cfg.Weights))
	}
	cfg = cfg.withDefaults(dim)
	ids, err := targetIDs(buf, ids)
	if err != nil {
		return nil, err
	}
	result := newResult(buf.Size())
	if len(ids) == 0 {
		return result, nil
	}
	if logger == nil {
		logger = logging.NewBlankLogger("meanshift")
	}

	tree, err := kdtree.NewFromBuffer(buf, logger.Sublogger("kdtree"))
	if err != nil {
		return nil, err
	}
	bounds, err := buf.Bounds(ids)
	if err != nil {
		return nil, err
	}
	nodeSize := lo.Times(dim, func(int) float64 { return meanShiftNodeSize })
	if err := tree.Build(ids, bounds.Min, bounds.Max, nodeSize); err != nil {
		return nil, err
	}
	defer tree.Clear()

	modes := make([][]float64, len(ids))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(cfg.Workers)
	for i, id := range ids {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			p, err := buf.At(id)
			if err != nil {
				return err
			}
			modes[i], err = seekMode(tree, p, &cfg)
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	for i, id := range ids {
		label := 0
		for c, center := range result.Modes {
			if floats.Distance(modes[i], center, 2) <= cfg.ModeDistance {
				label = c + 1
				break
			}
		}
		if label == 0 {
			result.Modes = append(result.Modes, modes[i])
			label = len(result.Modes)
		}
		result.Labels[id] = label
	}
	result.Count = len(result.Modes)

	logger.Debugw("mean shift finished", "points", len(ids), "clusters", result.Count)
	return result, nil
}

// seekMode moves from p to the kernel weighted mean of its neighbors until the step
// converges, stops shrinking, runs out of neighbors or hits MaxIterations.
func seekMode(tree *kdtree.Tree, p []float64, cfg *MeanShiftConfig) ([]float64, error) {
	dim := len(cfg.Weights)
	mode := append([]float64(nil), p[:dim]...)
	mean := make([]float64, dim)
	step := make([]float64, dim)
	h2 := cfg.SearchRadius * cfg.SearchRadius
	convergence2 := cfg.ConvergenceDistance * cfg.ConvergenceDistance
	prevShift := math.Inf(1)

	for iter := 0; iter < cfg.MaxIterations; iter++ {
		found, err := tree.SearchRadius(mode, cfg.SearchRadius)
		if err != nil {
			return nil, err
		}
		if len(found) == 0 {
			break
		}

		for j := range mean {
			mean[j] = 0
		}
		var sw float64
		for _, n := range found {
			neighbor, err := tree.Element(n.ID)
			if err != nil {
				return nil, err
			}
			w := cfg.Kernel(n.DistSquared / h2)
			floats.AddScaled(mean, w, neighbor[:dim])
			sw += w
		}
		if sw == 0 {
			break
		}
		floats.Scale(1/sw, mean)

		floats.SubTo(step, mean, mode)
		floats.Mul(step, step)
		shift := floats.Dot(step, cfg.Weights)
		copy(mode, mean)
		if shift >= prevShift || shift <= convergence2 {
			break
		}
		prevShift = shift
	}
	return mode, nil
}
