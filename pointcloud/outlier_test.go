package pointcloud

import (
	"testing"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"go.viam.com/test"

	"go.viam.com/pcindex/utils"
)

func outlierCloud() Buffer {
	return NewBufferFromVectors([]r3.Vector{
		// dense cell at the origin
		{X: 0, Y: 0, Z: 0},
		{X: 0.1, Y: 0, Z: 0},
		{X: 0, Y: 0.1, Z: 0},
		{X: 0.2, Y: 0.2, Z: 0.2},
		{X: 0.3, Y: 0.1, Z: 0},
		// sparse cell touching the dense one
		{X: 1.5, Y: 0, Z: 0},
		// isolated point
		{X: 10, Y: 10, Z: 10},
		// isolated sparse pair in neighboring cells
		{X: 20, Y: 20, Z: 20},
		{X: 21.2, Y: 20, Z: 20},
	})
}

func TestOutlierFilter(t *testing.T) {
	f, err := NewOutlierFilter(outlierCloud(), OutlierConfig{DistanceThreshold: 1})
	test.That(t, err, test.ShouldBeNil)

	outliers, err := f.Run()
	test.That(t, err, test.ShouldBeNil)
	test.That(t, outliers, test.ShouldResemble, []int{6, 7, 8})

	outliers, err = f.RunIDs([]int{0, 1, 2, 3, 4, 5})
	test.That(t, err, test.ShouldBeNil)
	test.That(t, outliers, test.ShouldBeEmpty)

	// Without its dense neighbor the sparse cell is alone.
	outliers, err = f.RunIDs([]int{5, 6})
	test.That(t, err, test.ShouldBeNil)
	test.That(t, outliers, test.ShouldResemble, []int{5, 6})

	outliers, err = f.RunIDs(nil)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, outliers, test.ShouldBeEmpty)

	_, err = f.RunIDs([]int{42})
	test.That(t, errors.Is(err, utils.ErrIndexOutOfRange), test.ShouldBeTrue)
}

func TestOutlierFilterNumberThreshold(t *testing.T) {
	// With a threshold of one point every occupied cell is dense.
	f, err := NewOutlierFilter(outlierCloud(), OutlierConfig{DistanceThreshold: 1, NumberThreshold: 1})
	test.That(t, err, test.ShouldBeNil)
	outliers, err := f.Run()
	test.That(t, err, test.ShouldBeNil)
	test.That(t, outliers, test.ShouldBeEmpty)
}

func TestOutlierFilterConfig(t *testing.T) {
	_, err := NewOutlierFilter(outlierCloud(), OutlierConfig{})
	test.That(t, errors.Is(err, utils.ErrInvalidConfiguration), test.ShouldBeTrue)

	_, err = NewOutlierFilter(outlierCloud(), OutlierConfig{DistanceThreshold: 1, NumberThreshold: -1})
	test.That(t, errors.Is(err, utils.ErrInvalidConfiguration), test.ShouldBeTrue)
}
