package geo

import (
	"math"
	"testing"

	"github.com/golang/geo/r3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPointSystemConvergingRays(t *testing.T) {
	target := r3.Vector{X: 0.4, Y: 3, Z: 0.5}
	stations := []r3.Vector{{X: -1, Z: 2}, {X: 1, Z: 2}, {X: 0, Y: -1, Z: 1}}

	var ps PointSystem
	rays := make([]WRay, 0, len(stations))
	for _, s := range stations {
		rays = append(rays, WRay{Ray: RayThrough(s, target), Weight: 1})
	}
	ps.AddWeightedRays(rays)
	require.Equal(t, 3, ps.NumObservations())

	soln := ps.PointSolution()
	require.True(t, soln.IsValid())
	assert.True(t, soln.IsWellDetermined())
	assert.InDelta(t, 0, soln.Loc.Sub(target).Norm(), 1e-9)

	l0 := soln.KthLargestSemiAxis(0).Mag
	l1 := soln.KthLargestSemiAxis(1).Mag
	l2 := soln.KthLargestSemiAxis(2).Mag
	assert.GreaterOrEqual(t, l0, l1)
	assert.GreaterOrEqual(t, l1, l2)
}

func TestPointSystemSingleRay(t *testing.T) {
	var ps PointSystem
	ps.AddWeightedRays([]WRay{{Ray: NewRay(r3.Vector{X: 1, Y: 2, Z: 3}, r3.Vector{Z: 1}), Weight: 2}})

	soln := ps.PointSolution()
	require.True(t, soln.IsValid())
	assert.False(t, soln.IsWellDetermined())

	// Minimum-norm solution is the foot of the perpendicular from the origin.
	assert.InDelta(t, 0, soln.Loc.Sub(r3.Vector{X: 1, Y: 2}).Norm(), 1e-9)

	loose := soln.KthLargestSemiAxis(0)
	assert.True(t, math.IsInf(loose.Mag, 1))
	assert.InDelta(t, 1, math.Abs(loose.Dir.Z), 1e-9)

	for k := 1; k < 3; k++ {
		ax := soln.KthLargestSemiAxis(k)
		assert.True(t, ax.IsFinite())
		assert.InDelta(t, 0.5, ax.Mag, 1e-9)
	}
}

func TestPointSystemPlanes(t *testing.T) {
	want := r3.Vector{X: 1.5, Y: -2, Z: 0.25}
	var ps PointSystem
	ps.AddWeightedPlanes([]WPlane{
		{Plane: NewPlane(want, r3.Vector{X: 1}), Weight: 1},
		{Plane: NewPlane(want.Add(r3.Vector{X: 7}), r3.Vector{Y: 2}), Weight: 3},
		{Plane: NewPlane(want.Add(r3.Vector{Y: 5}), r3.Vector{X: 1, Z: 1}), Weight: 0.5},
	})

	soln := ps.PointSolution()
	require.True(t, soln.IsWellDetermined())
	assert.InDelta(t, 0, soln.Loc.Sub(want).Norm(), 1e-9)
}

func TestPointSystemMixed(t *testing.T) {
	target := r3.Vector{X: 2, Y: 2, Z: 0}
	var ps PointSystem
	ps.AddWeightedRays([]WRay{{Ray: RayThrough(r3.Vector{Z: 5}, target), Weight: 1}})
	ps.AddWeightedPlanes([]WPlane{{Plane: NewPlane(r3.Vector{}, r3.Vector{Z: 1}), Weight: 1}})

	soln := ps.PointSolution()
	require.True(t, soln.IsWellDetermined())
	assert.InDelta(t, 0, soln.Loc.Sub(target).Norm(), 1e-9)
}

func TestPointSystemInvalid(t *testing.T) {
	var ps PointSystem
	assert.False(t, ps.PointSolution().IsValid())

	ps.AddWeightedRays([]WRay{
		{Ray: NewRay(r3.Vector{}, r3.Vector{}), Weight: 1},
		{Ray: NewRay(r3.Vector{}, r3.Vector{X: 1}), Weight: 0},
	})
	assert.Equal(t, 0, ps.NumObservations())
	assert.False(t, ps.PointSolution().IsValid())

	soln := NullPointSoln()
	assert.False(t, soln.KthLargestSemiAxis(0).IsValid())
	assert.False(t, soln.IsWellDetermined())
}

func TestKthLargestSemiAxisRange(t *testing.T) {
	var ps PointSystem
	ps.AddWeightedPlanes([]WPlane{
		{Plane: NewPlane(r3.Vector{}, r3.Vector{X: 1}), Weight: 1},
		{Plane: NewPlane(r3.Vector{}, r3.Vector{Y: 1}), Weight: 2},
		{Plane: NewPlane(r3.Vector{}, r3.Vector{Z: 1}), Weight: 4},
	})
	soln := ps.PointSolution()
	require.True(t, soln.IsValid())

	assert.InDelta(t, 1.0, soln.KthLargestSemiAxis(0).Mag, 1e-9)
	assert.InDelta(t, 0.5, soln.KthLargestSemiAxis(1).Mag, 1e-9)
	assert.InDelta(t, 0.25, soln.KthLargestSemiAxis(2).Mag, 1e-9)
	assert.False(t, soln.KthLargestSemiAxis(3).IsValid())
	assert.False(t, soln.KthLargestSemiAxis(-1).IsValid())
}
