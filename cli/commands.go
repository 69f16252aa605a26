package cli

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/montanaflynn/stats"
	"github.com/pkg/errors"
	"github.com/samber/lo"
	"github.com/urfave/cli/v2"

	"go.viam.com/pcindex/cluster"
	"go.viam.com/pcindex/config"
	"go.viam.com/pcindex/kdtree"
	"go.viam.com/pcindex/logging"
	"go.viam.com/pcindex/octree"
	"go.viam.com/pcindex/pointcloud"
	"go.viam.com/pcindex/utils"
)

// printf prints a message with a newline.
func printf(w io.Writer, format string, a ...interface{}) {
	//nolint:errcheck
	fmt.Fprintf(w, format+"\n", a...)
}

// session is what every command needs before it can do its work.
type session struct {
	cfg    *config.Config
	logger logging.Logger
	buf    pointcloud.Buffer
}

func setup(c *cli.Context) (*session, error) {
	logger := logging.NewLogger("pcindex")
	cfg := config.Default()
	if path := c.Path(flagConfig); path != "" {
		var err error
		if cfg, err = config.Read(path, logger); err != nil {
			return nil, err
		}
	}
	logger.SetLevel(cfg.Log.Level)
	if c.Bool(flagDebug) {
		logger.SetLevel(logging.DEBUG)
	}

	dim := cfg.Index.Dim
	if c.IsSet(flagDim) {
		dim = c.Int(flagDim)
	}
	buf, err := pointcloud.NewFromFile(c.Path(flagFile), dim)
	if err != nil {
		return nil, err
	}
	logger.Debugw("read points", "file", c.Path(flagFile), "points", buf.Size(), "dim", buf.Dim())
	return &session{cfg: cfg, logger: logger, buf: buf}, nil
}

// nodeSize returns the leaf size for the session's points, preferring the flag over the config.
func (s *session) nodeSize(c *cli.Context) ([]float64, error) {
	ic := s.cfg.Index
	ic.Dim = s.buf.Dim()
	if c.IsSet(flagNodeSize) {
		ic.NodeSize = c.Float64Slice(flagNodeSize)
		if err := ic.Validate(flagNodeSize); err != nil {
			return nil, err
		}
	}
	return ic.NodeSizeFor(s.buf.Dim())
}

func (s *session) kdTree(c *cli.Context) (*kdtree.Tree, error) {
	nodeSize, err := s.nodeSize(c)
	if err != nil {
		return nil, err
	}
	tree, err := kdtree.NewFromBuffer(s.buf, s.logger.Sublogger("kdtree"))
	if err != nil {
		return nil, err
	}
	if err := tree.BuildAll(nodeSize); err != nil {
		return nil, err
	}
	return tree, nil
}

func (s *session) octree() (*octree.Tree, error) {
	tree, err := octree.New(s.buf, s.logger.Sublogger("octree"))
	if err != nil {
		return nil, err
	}
	if err := tree.SetMinPointsForNode(s.cfg.Octree.MinPointsForNode); err != nil {
		return nil, err
	}
	if err := tree.SetMaxLeafShape(s.cfg.Octree.MaxLeafShape); err != nil {
		return nil, err
	}
	if err := tree.BuildAll(); err != nil {
		return nil, err
	}
	return tree, nil
}

// parseQuery parses comma separated coordinates.
func parseQuery(s string, dim int) ([]float64, error) {
	fields := strings.Split(s, ",")
	if len(fields) != dim {
		return nil, utils.NewDimensionMismatchError(dim, len(fields))
	}
	q := make([]float64, 0, dim)
	for _, f := range fields {
		v, err := strconv.ParseFloat(strings.TrimSpace(f), 64)
		if err != nil {
			return nil, errors.Wrapf(err, "bad query coordinate %q", f)
		}
		q = append(q, v)
	}
	return q, nil
}

func printNeighbors(w io.Writer, neighbors []pointcloud.Neighbor) {
	printf(w, "id\tdistance")
	for _, n := range neighbors {
		printf(w, "%d\t%g", n.ID, n.Distance())
	}
}

func printLabels(w io.Writer, res *cluster.Result) {
	printf(w, "id\tlabel")
	for id, label := range res.Labels {
		printf(w, "%d\t%d", id, label)
	}
}

// KNNAction prints the k nearest points to the query, closest first.
func KNNAction(c *cli.Context) error {
	s, err := setup(c)
	if err != nil {
		return err
	}
	q, err := parseQuery(c.String(flagQuery), s.buf.Dim())
	if err != nil {
		return err
	}
	tree, err := s.kdTree(c)
	if err != nil {
		return err
	}
	defer tree.Clear()
	neighbors, err := tree.SearchKNearest(q, c.Int(flagK), c.Float64(flagRadius))
	if err != nil {
		return err
	}
	printNeighbors(c.App.Writer, neighbors)
	return nil
}

// RadiusAction prints every point within the radius of the query, by id.
func RadiusAction(c *cli.Context) error {
	s, err := setup(c)
	if err != nil {
		return err
	}
	q, err := parseQuery(c.String(flagQuery), s.buf.Dim())
	if err != nil {
		return err
	}
	radius := c.Float64(flagRadius)

	var neighbors []pointcloud.Neighbor
	if c.Bool(flagOctree) {
		if s.buf.Dim() < 3 {
			return utils.NewDimensionMismatchError(3, s.buf.Dim())
		}
		tree, err := s.octree()
		if err != nil {
			return err
		}
		defer tree.Clear()
		if neighbors, err = tree.SearchRadius(pointcloud.ToVector(q), radius); err != nil {
			return err
		}
	} else {
		tree, err := s.kdTree(c)
		if err != nil {
			return err
		}
		defer tree.Clear()
		if neighbors, err = tree.SearchRadius(q, radius); err != nil {
			return err
		}
	}
	sort.Slice(neighbors, func(i, j int) bool { return neighbors[i].ID < neighbors[j].ID })
	printNeighbors(c.App.Writer, neighbors)
	return nil
}

// StatsAction builds both trees concurrently and prints their shapes.
func StatsAction(c *cli.Context) error {
	s, err := setup(c)
	if err != nil {
		return err
	}
	var kd *kdtree.Tree
	var oc *octree.Tree
	fs := []utils.SimpleFunc{
		func(context.Context) error {
			var err error
			kd, err = s.kdTree(c)
			return err
		},
	}
	if s.buf.Dim() >= 3 {
		fs = append(fs, func(context.Context) error {
			var err error
			oc, err = s.octree()
			return err
		})
	}
	elapsed, err := utils.RunInParallel(c.Context, fs)
	if kd != nil {
		defer kd.Clear()
	}
	if oc != nil {
		defer oc.Clear()
	}
	if err != nil {
		return err
	}
	s.logger.Debugw("built indexes", "elapsed", elapsed)

	w := c.App.Writer
	printf(w, "points\t%d", s.buf.Size())
	printf(w, "dim\t%d", s.buf.Dim())
	printf(w, "kdtree nodes\t%d", kd.NodeCount())
	printf(w, "kdtree leaves\t%d", len(kd.Leaves()))
	printf(w, "kdtree layers\t%d", kd.LayerCount())
	if err := printLeafStats(w, "kdtree", kd.Leaves(), func(i int) (int, error) {
		n, err := kd.Node(i)
		return len(n.IDs), err
	}); err != nil {
		return err
	}
	if oc != nil {
		printf(w, "octree nodes\t%d", oc.NodeCount())
		printf(w, "octree leaves\t%d", len(oc.Leaves()))
		if err := printLeafStats(w, "octree", oc.Leaves(), func(i int) (int, error) {
			n, err := oc.Node(i)
			return len(n.IDs), err
		}); err != nil {
			return err
		}
	}
	return nil
}

// printLeafStats prints the mean and largest point count of the given leaves.
func printLeafStats(w io.Writer, name string, leaves []int, count func(i int) (int, error)) error {
	if len(leaves) == 0 {
		return nil
	}
	sizes := make(stats.Float64Data, 0, len(leaves))
	for _, i := range leaves {
		n, err := count(i)
		if err != nil {
			return err
		}
		sizes = append(sizes, float64(n))
	}
	mean, err := sizes.Mean()
	if err != nil {
		return err
	}
	largest, err := sizes.Max()
	if err != nil {
		return err
	}
	printf(w, "%s leaf points\tmean %g max %g", name, mean, largest)
	return nil
}

// DistanceAction prints a distance cluster label for every point.
func DistanceAction(c *cli.Context) error {
	s, err := setup(c)
	if err != nil {
		return err
	}
	cfg := s.cfg.Distance
	if c.IsSet(flagDistance) {
		cfg.MaxDistance = c.Float64(flagDistance)
	}
	if c.IsSet(flagSeeds) {
		cfg.Seeds = c.IntSlice(flagSeeds)
	}
	res, err := cluster.Distance(c.Context, s.buf, nil, cfg, s.logger.Sublogger("distance"))
	if err != nil {
		return err
	}
	s.logger.Infow("clustered", "clusters", res.Count, "sizes", res.Sizes())
	printLabels(c.App.Writer, res)
	return nil
}

// DBSCANAction prints a DBSCAN label for every point.
func DBSCANAction(c *cli.Context) error {
	s, err := setup(c)
	if err != nil {
		return err
	}
	cfg := s.cfg.DBSCAN
	if c.IsSet(flagEps) {
		cfg.MaxDistance = c.Float64(flagEps)
	}
	if c.IsSet(flagMinNeighbors) {
		cfg.MinNeighbors = c.Int(flagMinNeighbors)
	}
	if c.IsSet(flagWorkers) {
		cfg.Workers = c.Int(flagWorkers)
	}
	if c.IsSet(flagSeeds) {
		cfg.Seeds = c.IntSlice(flagSeeds)
	}
	res, err := cluster.DBSCAN(c.Context, s.buf, nil, cfg, s.logger.Sublogger("dbscan"))
	if err != nil {
		return err
	}
	s.logger.Infow("clustered", "clusters", res.Count, "noise", len(res.Members(cluster.Noise)))
	printLabels(c.App.Writer, res)
	return nil
}

// MeanShiftAction prints a mean-shift label for every point.
func MeanShiftAction(c *cli.Context) error {
	s, err := setup(c)
	if err != nil {
		return err
	}
	cfg := s.cfg.MeanShift
	if c.IsSet(flagRadius) {
		cfg.SearchRadius = c.Float64(flagRadius)
	}
	if c.IsSet(flagModeDistance) {
		cfg.ModeDistance = c.Float64(flagModeDistance)
	}
	if c.IsSet(flagWorkers) {
		cfg.Workers = c.Int(flagWorkers)
	}
	res, err := cluster.MeanShift(c.Context, s.buf, nil, cfg, s.logger.Sublogger("meanshift"))
	if err != nil {
		return err
	}
	s.logger.Infow("clustered", "clusters", res.Count, "sizes", res.Sizes())
	printLabels(c.App.Writer, res)
	return nil
}

// KMeansAction prints a k-means label for every point.
func KMeansAction(c *cli.Context) error {
	s, err := setup(c)
	if err != nil {
		return err
	}
	cfg := s.cfg.KMeans
	if c.IsSet(flagK) {
		cfg.K = c.Int(flagK)
	}
	res, err := cluster.KMeans(c.Context, s.buf, nil, cfg, s.logger.Sublogger("kmeans"))
	if err != nil {
		return err
	}
	s.logger.Infow("clustered", "clusters", res.Count, "sizes", res.Sizes())
	printLabels(c.App.Writer, res)
	return nil
}

// OutliersAction prints the ids of the outliers in ascending order.
func OutliersAction(c *cli.Context) error {
	s, err := setup(c)
	if err != nil {
		return err
	}
	if s.buf.Dim() < 3 {
		return utils.NewDimensionMismatchError(3, s.buf.Dim())
	}
	cfg := s.cfg.Outlier
	if c.IsSet(flagDistance) {
		cfg.DistanceThreshold = c.Float64(flagDistance)
	}
	if c.IsSet(flagMinPoints) {
		cfg.NumberThreshold = c.Int(flagMinPoints)
	}
	filter, err := pointcloud.NewOutlierFilter(s.buf, cfg)
	if err != nil {
		return err
	}
	outliers, err := filter.Run()
	if err != nil {
		return err
	}
	s.logger.Debugw("filtered outliers", "outliers", len(outliers), "points", s.buf.Size())
	lo.ForEach(outliers, func(id int, _ int) {
		printf(c.App.Writer, "%d", id)
	})
	return nil
}
