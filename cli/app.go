// Package cli contains the pcindex command line application.
package cli

import (
	"io"
	"math"

	"github.com/urfave/cli/v2"
)

// Flags.
const (
	flagConfig       = "config"
	flagDebug        = "debug"
	flagFile         = "file"
	flagDim          = "dim"
	flagQuery        = "query"
	flagK            = "k"
	flagRadius       = "radius"
	flagOctree       = "octree"
	flagNodeSize     = "node-size"
	flagEps          = "eps"
	flagMinNeighbors = "min-neighbors"
	flagModeDistance = "mode-distance"
	flagDistance     = "distance"
	flagMinPoints    = "min-points"
	flagWorkers      = "workers"
	flagSeeds        = "seeds"
)

func withFileFlags(flags ...cli.Flag) []cli.Flag {
	return append([]cli.Flag{
		&cli.PathFlag{
			Name:     flagFile,
			Aliases:  []string{"f"},
			Required: true,
			Usage:    "read points from `FILE` (.las, or text with one point per line)",
		},
		&cli.IntFlag{
			Name:  flagDim,
			Usage: "scalars per point; defaults to index.dim from the config",
		},
	}, flags...)
}

func nodeSizeFlag() cli.Flag {
	return &cli.Float64SliceFlag{Name: flagNodeSize, Usage: "k-d tree leaf size, one value or one per axis; defaults to index.node_size"}
}

var app = &cli.App{
	Name:            "pcindex",
	Usage:           "index, query and cluster point clouds",
	HideHelpCommand: true,
	Flags: []cli.Flag{
		&cli.PathFlag{
			Name:    flagConfig,
			Aliases: []string{"c"},
			Usage:   "load configuration from `FILE`",
		},
		&cli.BoolFlag{
			Name:    flagDebug,
			Aliases: []string{"vvv"},
			Usage:   "enable debug logging",
		},
	},
	Commands: []*cli.Command{
		{
			Name:      "knn",
			Usage:     "print the k nearest points to a query point",
			UsageText: "pcindex knn --file <FILE> --query <x,y,...> [other options]",
			Flags: withFileFlags(
				&cli.StringFlag{Name: flagQuery, Required: true, Usage: "comma separated query point"},
				&cli.IntFlag{Name: flagK, Value: 1, Usage: "number of neighbors"},
				&cli.Float64Flag{Name: flagRadius, Value: math.Inf(1), Usage: "ignore points further than this"},
				nodeSizeFlag(),
			),
			Action: KNNAction,
		},
		{
			Name:      "radius",
			Usage:     "print every point within a radius of a query point",
			UsageText: "pcindex radius --file <FILE> --query <x,y,...> --radius <R> [--octree]",
			Flags: withFileFlags(
				&cli.StringFlag{Name: flagQuery, Required: true, Usage: "comma separated query point"},
				&cli.Float64Flag{Name: flagRadius, Required: true, Usage: "search radius"},
				&cli.BoolFlag{Name: flagOctree, Usage: "search an octree instead of a k-d tree"},
				nodeSizeFlag(),
			),
			Action: RadiusAction,
		},
		{
			Name:   "stats",
			Usage:  "build a k-d tree and an octree over a file and print their shape",
			Flags:  withFileFlags(nodeSizeFlag()),
			Action: StatsAction,
		},
		{
			Name:  "distance",
			Usage: "label points with clusters connected by short gaps",
			Flags: withFileFlags(
				&cli.Float64Flag{Name: flagDistance, Usage: "largest gap inside a cluster; defaults to distance.max_distance"},
				&cli.IntSliceFlag{Name: flagSeeds, Usage: "grow clusters only from these point ids; defaults to distance.seeds"},
			),
			Action: DistanceAction,
		},
		{
			Name:  "dbscan",
			Usage: "label points with DBSCAN clusters",
			Flags: withFileFlags(
				&cli.Float64Flag{Name: flagEps, Usage: "neighbor distance; defaults to dbscan.max_distance"},
				&cli.IntFlag{Name: flagMinNeighbors, Usage: "core point neighbor count; defaults to dbscan.min_neighbors"},
				&cli.IntFlag{Name: flagWorkers, Usage: "parallel workers; defaults to the CPU count"},
				&cli.IntSliceFlag{Name: flagSeeds, Usage: "grow clusters only from these point ids; defaults to dbscan.seeds"},
			),
			Action: DBSCANAction,
		},
		{
			Name:  "meanshift",
			Usage: "label points with mean-shift clusters",
			Flags: withFileFlags(
				&cli.Float64Flag{Name: flagRadius, Usage: "kernel bandwidth; defaults to mean_shift.search_radius"},
				&cli.Float64Flag{Name: flagModeDistance, Usage: "mode merge distance; defaults to mean_shift.mode_distance"},
				&cli.IntFlag{Name: flagWorkers, Usage: "parallel workers; defaults to the CPU count"},
			),
			Action: MeanShiftAction,
		},
		{
			Name:  "kmeans",
			Usage: "label points with k-means clusters",
			Flags: withFileFlags(
				&cli.IntFlag{Name: flagK, Usage: "number of clusters; defaults to kmeans.k"},
			),
			Action: KMeansAction,
		},
		{
			Name:  "outliers",
			Usage: "print the ids of sparse, isolated points",
			Flags: withFileFlags(
				&cli.Float64Flag{Name: flagDistance, Usage: "voxel size; defaults to outlier.distance_threshold"},
				&cli.IntFlag{Name: flagMinPoints, Usage: "dense voxel point count; defaults to outlier.number_threshold"},
			),
			Action: OutliersAction,
		},
	},
}

// NewApp returns a new app with the CLI API, Writer set to out, and ErrWriter
// set to errOut.
func NewApp(out, errOut io.Writer) *cli.App {
	app.Writer = out
	app.ErrWriter = errOut
	return app
}
