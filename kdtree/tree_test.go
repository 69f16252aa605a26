package kdtree

import (
	"context"
	"math/rand"
	"sort"
	"testing"

	"github.com/pkg/errors"
	"github.com/samber/lo"
	"go.viam.com/test"

	"go.viam.com/pcindex/logging"
	"go.viam.com/pcindex/pointcloud"
	"go.viam.com/pcindex/spatialmath"
	"go.viam.com/pcindex/utils"
)

func twoClusters(t *testing.T) pointcloud.Buffer {
	t.Helper()
	buf, err := pointcloud.NewBufferFromData(2, []float64{
		0, 0,
		1, 0,
		0, 1,
		5, 5,
		6, 5,
		5, 6,
	})
	test.That(t, err, test.ShouldBeNil)
	return buf
}

func randomCloud(t *testing.T, seed int64, n, dim int, scale float64) pointcloud.Buffer {
	t.Helper()
	rng := rand.New(rand.NewSource(seed))
	data := make([]float64, n*dim)
	for i := range data {
		data[i] = rng.Float64() * scale
	}
	buf, err := pointcloud.NewBufferFromData(dim, data)
	test.That(t, err, test.ShouldBeNil)
	return buf
}

func bruteRadius(buf pointcloud.Buffer, dim int, q []float64, radius float64) []int {
	ids := []int{}
	for id := 0; id < buf.Size(); id++ {
		p, _ := buf.At(id)
		if spatialmath.SquaredDistance(p, q, dim) <= radius*radius {
			ids = append(ids, id)
		}
	}
	return ids
}

func neighborIDs(found []pointcloud.Neighbor) []int {
	ids := lo.Map(found, func(n pointcloud.Neighbor, _ int) int { return n.ID })
	sort.Ints(ids)
	return ids
}

func TestBuildTwoClusters(t *testing.T) {
	logger, logs := logging.NewObservedTestLogger(t)
	buf := twoClusters(t)
	tree, err := NewFromBuffer(buf, logger)
	test.That(t, err, test.ShouldBeNil)

	err = tree.Build(buf.IDs(), []float64{0, 0}, []float64{6, 6}, []float64{2, 2})
	test.That(t, err, test.ShouldBeNil)
	test.That(t, tree.Size(), test.ShouldEqual, 6)
	test.That(t, tree.Empty(), test.ShouldBeFalse)
	test.That(t, tree.LayerCount(), test.ShouldEqual, 2)
	test.That(t, tree.NodeCount(), test.ShouldEqual, 3)

	root, ok := tree.Root()
	test.That(t, ok, test.ShouldBeTrue)
	test.That(t, root.Leaf, test.ShouldBeFalse)
	test.That(t, root.Axis, test.ShouldEqual, 0)
	test.That(t, root.Split, test.ShouldEqual, 3.0)

	leaves := tree.Leaves()
	test.That(t, leaves, test.ShouldHaveLength, 2)
	left, err := tree.Node(leaves[0])
	test.That(t, err, test.ShouldBeNil)
	test.That(t, left.IDs, test.ShouldResemble, []int{0, 1, 2})
	test.That(t, left.Region.Min, test.ShouldResemble, []float64{0, 0})
	test.That(t, left.Region.Max, test.ShouldResemble, []float64{3, 6})
	right, err := tree.Node(leaves[1])
	test.That(t, err, test.ShouldBeNil)
	test.That(t, right.IDs, test.ShouldResemble, []int{3, 4, 5})
	test.That(t, right.Extents.Min, test.ShouldResemble, []float64{5, 5})

	found, err := tree.SearchRadius([]float64{0, 0}, 1.5)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, neighborIDs(found), test.ShouldResemble, []int{0, 1, 2})

	_, err = tree.Node(3)
	test.That(t, errors.Is(err, utils.ErrIndexOutOfRange), test.ShouldBeTrue)

	built := logs.FilterMessage("built k-d tree").All()
	test.That(t, built, test.ShouldHaveLength, 1)
	test.That(t, built[0].ContextMap()["leaves"], test.ShouldEqual, int64(2))
}

func TestBuildFreezesBuffer(t *testing.T) {
	buf := twoClusters(t)
	tree, err := NewFromBuffer(buf, logging.NewTestLogger(t))
	test.That(t, err, test.ShouldBeNil)
	test.That(t, tree.BuildAll([]float64{2, 2}), test.ShouldBeNil)
	test.That(t, buf.Frozen(), test.ShouldBeTrue)
	test.That(t, errors.Is(buf.Set(0, []float64{1, 1}), pointcloud.ErrFrozen), test.ShouldBeTrue)

	// Rebuilding does not stack freezes, and a second tree holds its own.
	test.That(t, tree.BuildAll([]float64{1, 1}), test.ShouldBeNil)
	other, err := NewFromBuffer(buf, nil)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, other.BuildAll([]float64{2, 2}), test.ShouldBeNil)

	tree.Clear()
	test.That(t, buf.Frozen(), test.ShouldBeTrue)
	other.Clear()
	other.Clear()
	test.That(t, buf.Frozen(), test.ShouldBeFalse)
	test.That(t, buf.Set(0, []float64{1, 1}), test.ShouldBeNil)

	p, err := tree.Element(0)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, p, test.ShouldResemble, []float64{1, 1})
}

func TestPartitionAndLeafExtents(t *testing.T) {
	buf := randomCloud(t, 7, 500, 3, 10)
	for _, size := range [][]float64{{0.5, 0.5, 0.5}, {1, 2, 4}, {20, 20, 20}} {
		tree, err := NewFromBuffer(buf, logging.NewTestLogger(t))
		test.That(t, err, test.ShouldBeNil)
		test.That(t, tree.BuildAll(size), test.ShouldBeNil)

		var all []int
		for _, i := range tree.Leaves() {
			leaf, err := tree.Node(i)
			test.That(t, err, test.ShouldBeNil)
			test.That(t, leaf.Leaf, test.ShouldBeTrue)
			test.That(t, len(leaf.IDs) == 1 || leaf.Extents.FitsWithin(size), test.ShouldBeTrue)
			all = append(all, leaf.IDs...)
		}
		sort.Ints(all)
		test.That(t, all, test.ShouldResemble, buf.IDs())
	}
}

func TestCoincidentPoints(t *testing.T) {
	buf, err := pointcloud.NewBufferFromData(2, []float64{1, 1, 1, 1, 1, 1, 1, 1})
	test.That(t, err, test.ShouldBeNil)
	tree, err := NewFromBuffer(buf, logging.NewTestLogger(t))
	test.That(t, err, test.ShouldBeNil)
	test.That(t, tree.BuildAll([]float64{1e-9, 1e-9}), test.ShouldBeNil)

	root, ok := tree.Root()
	test.That(t, ok, test.ShouldBeTrue)
	test.That(t, root.Leaf, test.ShouldBeTrue)
	test.That(t, root.IDs, test.ShouldResemble, []int{0, 1, 2, 3})

	has, err := tree.Contains([]float64{1, 1})
	test.That(t, err, test.ShouldBeNil)
	test.That(t, has, test.ShouldBeTrue)
	has, err = tree.Contains([]float64{1, 1.5})
	test.That(t, err, test.ShouldBeNil)
	test.That(t, has, test.ShouldBeFalse)
}

func TestSearchMatchesBruteForce(t *testing.T) {
	buf := randomCloud(t, 11, 400, 3, 10)
	tree, err := NewFromBuffer(buf, logging.NewTestLogger(t))
	test.That(t, err, test.ShouldBeNil)
	test.That(t, tree.BuildAll([]float64{1, 1, 1}), test.ShouldBeNil)

	rng := rand.New(rand.NewSource(3))
	for i := 0; i < 50; i++ {
		q := []float64{rng.Float64()*12 - 1, rng.Float64()*12 - 1, rng.Float64()*12 - 1}
		radius := rng.Float64() * 4

		found, err := tree.SearchRadius(q, radius)
		test.That(t, err, test.ShouldBeNil)
		test.That(t, neighborIDs(found), test.ShouldResemble, bruteRadius(buf, 3, q, radius))

		k := 1 + rng.Intn(10)
		nearest, err := tree.SearchKNearest(q, k, radius)
		test.That(t, err, test.ShouldBeNil)
		want := make([]float64, 0, len(found))
		for _, n := range found {
			want = append(want, n.DistSquared)
		}
		sort.Float64s(want)
		want = want[:min(k, len(want))]
		got := lo.Map(nearest, func(n pointcloud.Neighbor, _ int) float64 { return n.DistSquared })
		test.That(t, got, test.ShouldResemble, want)

		one, err := tree.SearchKNearest(q, 1, radius)
		test.That(t, err, test.ShouldBeNil)
		closest, err := tree.SearchNearest(q, radius)
		test.That(t, err, test.ShouldBeNil)
		if len(found) == 0 {
			test.That(t, one, test.ShouldBeEmpty)
			test.That(t, closest.ID, test.ShouldEqual, pointcloud.NotFound)
		} else {
			test.That(t, one, test.ShouldHaveLength, 1)
			test.That(t, closest, test.ShouldResemble, one[0])
		}
	}
}

func TestSearchSubsetOfAxes(t *testing.T) {
	buf, err := pointcloud.NewBufferFromData(3, []float64{
		0, 0, 100,
		3, 0, -100,
	})
	test.That(t, err, test.ShouldBeNil)
	tree, err := New(buf, 2, logging.NewTestLogger(t))
	test.That(t, err, test.ShouldBeNil)
	test.That(t, tree.Dim(), test.ShouldEqual, 2)
	test.That(t, tree.BuildAll([]float64{1, 1}), test.ShouldBeNil)

	n, err := tree.SearchNearest([]float64{1, 0}, 5)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, n.ID, test.ShouldEqual, 0)
	test.That(t, n.DistSquared, test.ShouldEqual, 1.0)
	test.That(t, n.Distance(), test.ShouldEqual, 1.0)

	_, err = New(buf, 4, logging.NewTestLogger(t))
	test.That(t, errors.Is(err, utils.ErrDimensionMismatch), test.ShouldBeTrue)
}

func TestConcurrentQueries(t *testing.T) {
	buf := randomCloud(t, 5, 300, 2, 10)
	tree, err := NewFromBuffer(buf, logging.NewTestLogger(t))
	test.That(t, err, test.ShouldBeNil)
	test.That(t, tree.BuildAll([]float64{0.5, 0.5}), test.ShouldBeNil)

	got := make([][]int, buf.Size())
	err = utils.GroupWorkParallel(context.Background(), buf.Size(), 8, func(_, _, _, _ int) (utils.MemberWorkFunc, utils.GroupWorkDoneFunc) {
		return func(_, id int) {
			p, _ := buf.At(id)
			found, _ := tree.SearchRadius(p, 1)
			got[id] = neighborIDs(found)
		}, nil
	})
	test.That(t, err, test.ShouldBeNil)
	for id := range got {
		p, _ := buf.At(id)
		test.That(t, got[id], test.ShouldResemble, bruteRadius(buf, 2, p, 1))
	}
}

func TestEmptyTree(t *testing.T) {
	buf := twoClusters(t)
	tree, err := NewFromBuffer(buf, logging.NewTestLogger(t))
	test.That(t, err, test.ShouldBeNil)

	t.Run("never built", func(t *testing.T) {
		test.That(t, tree.Empty(), test.ShouldBeTrue)
		_, ok := tree.Root()
		test.That(t, ok, test.ShouldBeFalse)
		test.That(t, tree.LayerCount(), test.ShouldEqual, 0)
		test.That(t, tree.Leaves(), test.ShouldBeEmpty)

		found, err := tree.SearchRadius([]float64{0, 0}, 10)
		test.That(t, err, test.ShouldBeNil)
		test.That(t, found, test.ShouldBeEmpty)
		n, err := tree.SearchNearest([]float64{0, 0}, 10)
		test.That(t, err, test.ShouldBeNil)
		test.That(t, n.ID, test.ShouldEqual, pointcloud.NotFound)
	})

	t.Run("built with no ids", func(t *testing.T) {
		test.That(t, tree.Build(nil, []float64{0, 0}, []float64{6, 6}, []float64{1, 1}), test.ShouldBeNil)
		test.That(t, tree.Empty(), test.ShouldBeTrue)
		root, ok := tree.Root()
		test.That(t, ok, test.ShouldBeTrue)
		test.That(t, root.Leaf, test.ShouldBeTrue)
		test.That(t, root.IDs, test.ShouldBeEmpty)
		test.That(t, tree.LayerCount(), test.ShouldEqual, 1)

		found, err := tree.SearchKNearest([]float64{0, 0}, 3, 10)
		test.That(t, err, test.ShouldBeNil)
		test.That(t, found, test.ShouldBeEmpty)
	})

	t.Run("cleared", func(t *testing.T) {
		test.That(t, tree.BuildAll([]float64{2, 2}), test.ShouldBeNil)
		test.That(t, tree.Empty(), test.ShouldBeFalse)
		tree.Clear()
		test.That(t, tree.Empty(), test.ShouldBeTrue)
		_, ok := tree.Root()
		test.That(t, ok, test.ShouldBeFalse)
	})
}

func TestBuildErrors(t *testing.T) {
	buf := twoClusters(t)
	tree, err := NewFromBuffer(buf, logging.NewTestLogger(t))
	test.That(t, err, test.ShouldBeNil)
	zero, six := []float64{0, 0}, []float64{6, 6}

	for _, tc := range []struct {
		name     string
		ids      []int
		min, max []float64
		size     []float64
		expected error
	}{
		{"zero node size", buf.IDs(), zero, six, []float64{1, 0}, utils.ErrInvalidConfiguration},
		{"negative node size", buf.IDs(), zero, six, []float64{-1, 1}, utils.ErrInvalidConfiguration},
		{"short bounds", buf.IDs(), []float64{0}, six, []float64{1, 1}, utils.ErrDimensionMismatch},
		{"short node size", buf.IDs(), zero, six, []float64{1}, utils.ErrDimensionMismatch},
		{"inverted bounds", buf.IDs(), six, zero, []float64{1, 1}, utils.ErrInvalidArgument},
		{"id out of range", []int{0, 6}, zero, six, []float64{1, 1}, utils.ErrIndexOutOfRange},
	} {
		t.Run(tc.name, func(t *testing.T) {
			err := tree.Build(tc.ids, tc.min, tc.max, tc.size)
			test.That(t, errors.Is(err, tc.expected), test.ShouldBeTrue)
		})
	}

	_, err = New(buf, 0, logging.NewTestLogger(t))
	test.That(t, errors.Is(err, utils.ErrInvalidConfiguration), test.ShouldBeTrue)
}

func TestQueryErrors(t *testing.T) {
	buf := twoClusters(t)
	tree, err := NewFromBuffer(buf, logging.NewTestLogger(t))
	test.That(t, err, test.ShouldBeNil)
	test.That(t, tree.BuildAll([]float64{2, 2}), test.ShouldBeNil)

	_, err = tree.SearchRadius([]float64{0}, 1)
	test.That(t, errors.Is(err, utils.ErrDimensionMismatch), test.ShouldBeTrue)
	_, err = tree.SearchRadius([]float64{0, 0}, -1)
	test.That(t, errors.Is(err, utils.ErrInvalidArgument), test.ShouldBeTrue)
	_, err = tree.SearchKNearest([]float64{0, 0}, 0, 1)
	test.That(t, errors.Is(err, utils.ErrInvalidArgument), test.ShouldBeTrue)
	n, err := tree.SearchNearest([]float64{0, 0, 0}, -2)
	test.That(t, errors.Is(err, utils.ErrInvalidArgument), test.ShouldBeTrue)
	test.That(t, n.ID, test.ShouldEqual, pointcloud.NotFound)

	el, err := tree.Element(4)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, el, test.ShouldResemble, []float64{6, 5})
}
