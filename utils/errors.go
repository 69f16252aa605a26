package utils

import (
	"math"

	"github.com/pkg/errors"
)

var (
	// ErrIndexOutOfRange is returned when an element id is outside of a buffer.
	ErrIndexOutOfRange = errors.New("index out of range")

	// ErrInvalidConfiguration is returned for non-positive node sizes, leaf shapes,
	// point thresholds and capacities.
	ErrInvalidConfiguration = errors.New("invalid configuration")

	// ErrDimensionMismatch is returned when points, bounds or queries do not carry
	// enough scalars for the structure they are used with.
	ErrDimensionMismatch = errors.New("dimension mismatch")

	// ErrInvalidArgument is returned for malformed query arguments such as a
	// negative radius.
	ErrInvalidArgument = errors.New("invalid argument")
)

// NewIndexOutOfRangeError is used when id does not address one of size elements.
func NewIndexOutOfRangeError(id, size int) error {
	return errors.Wrapf(ErrIndexOutOfRange, "id %d not in [0, %d)", id, size)
}

// NewInvalidConfigurationError is used when a configuration value is rejected.
func NewInvalidConfigurationError(name string, value interface{}) error {
	return errors.Wrapf(ErrInvalidConfiguration, "%s must be positive, got %v", name, value)
}

// NewDimensionMismatchError is used when expected scalars were not supplied.
func NewDimensionMismatchError(expected, actual int) error {
	return errors.Wrapf(ErrDimensionMismatch, "expected %d but got %d", expected, actual)
}

// NewInvalidArgumentError is used when a query argument is malformed.
func NewInvalidArgumentError(format string, args ...interface{}) error {
	return errors.Wrapf(ErrInvalidArgument, format, args...)
}

// CheckRadius rejects negative and NaN search radii.
func CheckRadius(radius float64) error {
	if math.IsNaN(radius) || radius < 0 {
		return NewInvalidArgumentError("radius must be non-negative, got %v", radius)
	}
	return nil
}
