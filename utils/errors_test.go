package utils

import (
	"testing"

	"github.com/pkg/errors"
	"go.viam.com/test"
)

func TestErrorTaxonomy(t *testing.T) {
	for _, tc := range []struct {
		name   string
		err    error
		target error
		errStr string
	}{
		{"out of range", NewIndexOutOfRangeError(7, 5), ErrIndexOutOfRange, "id 7 not in [0, 5): index out of range"},
		{"configuration", NewInvalidConfigurationError("nodeSize[1]", -2.0), ErrInvalidConfiguration, "nodeSize[1] must be positive"},
		{"dimension", NewDimensionMismatchError(3, 2), ErrDimensionMismatch, "expected 3 but got 2"},
		{"argument", NewInvalidArgumentError("radius %v", -1), ErrInvalidArgument, "radius -1"},
	} {
		t.Run(tc.name, func(t *testing.T) {
			test.That(t, errors.Is(tc.err, tc.target), test.ShouldBeTrue)
			test.That(t, errors.Cause(tc.err), test.ShouldEqual, tc.target)
			test.That(t, tc.err.Error(), test.ShouldContainSubstring, tc.errStr)
		})
	}
}
