package pointcloud

import (
	"testing"

	"github.com/golang/geo/r3"
	"go.viam.com/test"
)

func TestGetVoxelCoordinates(t *testing.T) {
	ptMin := r3.Vector{X: -1, Y: -1, Z: -1}
	test.That(t, GetVoxelCoordinates(r3.Vector{X: -1, Y: -1, Z: -1}, ptMin, 0.5), test.ShouldResemble, VoxelCoords{})
	test.That(t, GetVoxelCoordinates(r3.Vector{X: 0, Y: 0.25, Z: 1}, ptMin, 0.5), test.ShouldResemble, VoxelCoords{2, 2, 4})
	test.That(t, GetVoxelCoordinates(r3.Vector{X: -1.1, Y: -1, Z: -1}, ptMin, 0.5), test.ShouldResemble, VoxelCoords{-1, 0, 0})
}

func TestVoxelGrid(t *testing.T) {
	_, err := NewVoxelGrid(r3.Vector{}, 0)
	test.That(t, err, test.ShouldNotBeNil)

	grid, err := NewVoxelGrid(r3.Vector{}, 1)
	test.That(t, err, test.ShouldBeNil)

	c0 := grid.Push(r3.Vector{X: 0.1, Y: 0.1, Z: 0.1}, 0)
	grid.Push(r3.Vector{X: 0.9, Y: 0.2, Z: 0.3}, 1)
	c2 := grid.Push(r3.Vector{X: 1.5, Y: 0.2, Z: 0.3}, 2)
	grid.Push(r3.Vector{X: 5, Y: 5, Z: 5}, 3)

	test.That(t, c0.IsEqual(VoxelCoords{}), test.ShouldBeTrue)
	test.That(t, grid.Len(), test.ShouldEqual, 3)
	test.That(t, grid.Cell(c0), test.ShouldResemble, []int{0, 1})
	test.That(t, grid.IsEmpty(VoxelCoords{2, 0, 0}), test.ShouldBeTrue)
	test.That(t, grid.OccupiedNeighbors(c0), test.ShouldEqual, 1)
	test.That(t, grid.OccupiedNeighbors(c2), test.ShouldEqual, 1)
	test.That(t, grid.OccupiedNeighbors(VoxelCoords{5, 5, 5}), test.ShouldEqual, 0)
	test.That(t, grid.Keys(), test.ShouldResemble, []VoxelCoords{{0, 0, 0}, {1, 0, 0}, {5, 5, 5}})
	test.That(t, len(c0.Neighbors()), test.ShouldEqual, 26)

	grid.Clear()
	test.That(t, grid.Len(), test.ShouldEqual, 0)
}
