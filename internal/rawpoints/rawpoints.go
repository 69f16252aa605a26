// Package rawpoints lets the indexes read point buffer storage in place, without the
// copies the public pointcloud accessors make.
package rawpoints

var data func(buf any) []float64

// Register installs the accessor. Package pointcloud calls it once at init.
func Register(f func(buf any) []float64) {
	data = f
}

// Data returns the backing scalars of a pointcloud.Buffer, point-major. Callers must
// not write to the returned slice.
func Data(buf any) []float64 {
	return data(buf)
}
