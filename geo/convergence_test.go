package geo

import (
	"math"
	"testing"

	"github.com/golang/geo/r3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ringRays(target r3.Vector, n int, radius float64) []Ray {
	rays := make([]Ray, 0, n)
	for i := 0; i < n; i++ {
		theta := 2 * math.Pi * float64(i) / float64(n)
		start := r3.Vector{X: radius * math.Cos(theta), Y: radius * math.Sin(theta)}
		rays = append(rays, RayThrough(start, target))
	}
	return rays
}

func TestRobustPointIgnoresOutliers(t *testing.T) {
	target := r3.Vector{X: 0.3, Y: -0.2, Z: 1.5}
	rays := ringRays(target, 10, 5)

	miss := target.Add(r3.Vector{Z: 2})
	rays = append(rays,
		RayThrough(r3.Vector{X: 8, Z: 1.5}, miss),
		RayThrough(r3.Vector{X: -8, Y: 1, Z: 1.5}, miss),
		RayThrough(r3.Vector{Y: 8, Z: 1.5}, miss),
	)

	rc := NewRayConvergence(rays)
	require.Equal(t, 13, rc.NumRays())

	var gaps []float64
	robust := rc.RobustPoint(DefaultMinAngle, &gaps)
	assert.InDelta(t, 0, robust.Sub(target).Norm(), 1e-6)
	require.NotEmpty(t, gaps)
	tight := 0
	for _, g := range gaps {
		if g < 1e-9 {
			tight++
		}
	}
	assert.GreaterOrEqual(t, tight, 45)

	// Averaging every ray is pulled off by the outliers.
	naive := rc.MeanNearTo(target, math.Inf(1))
	assert.Greater(t, naive.Sub(target).Norm(), 0.1)

	refined := rc.MeanNearTo(robust, 0.1)
	assert.InDelta(t, 0, refined.Sub(target).Norm(), 1e-6)
}

func TestMeanNearToFallsBackToRobust(t *testing.T) {
	target := r3.Vector{X: 1, Y: 1, Z: 1}
	rc := NewRayConvergence(ringRays(target, 6, 3))
	nan := math.NaN()
	got := rc.MeanNearTo(r3.Vector{X: nan, Y: nan, Z: nan}, 0.01)
	assert.InDelta(t, 0, got.Sub(target).Norm(), 1e-6)
}

func TestRayConvergenceDegenerate(t *testing.T) {
	t.Run("no rays", func(t *testing.T) {
		rc := NewRayConvergence(nil)
		assert.False(t, isValid(rc.RobustPoint(DefaultMinAngle, nil)))
		assert.False(t, isValid(rc.MeanNearTo(r3.Vector{}, 1)))
	})

	t.Run("parallel rays", func(t *testing.T) {
		rc := NewRayConvergence([]Ray{
			NewRay(r3.Vector{}, r3.Vector{X: 1}),
			NewRay(r3.Vector{Y: 1}, r3.Vector{X: 1}),
		})
		assert.False(t, isValid(rc.RobustPoint(DefaultMinAngle, nil)))
	})

	t.Run("nothing within tolerance", func(t *testing.T) {
		rc := NewRayConvergence([]Ray{NewRay(r3.Vector{}, r3.Vector{X: 1})})
		assert.False(t, isValid(rc.MeanNearTo(r3.Vector{Y: 5}, 1)))
	})
}

func TestClosestApproach(t *testing.T) {
	a := NewRay(r3.Vector{}, r3.Vector{X: 1})
	b := NewRay(r3.Vector{X: 2, Y: -1, Z: 1}, r3.Vector{Y: 1})
	onA, onB, ok := ClosestApproach(a, b)
	require.True(t, ok)
	assert.InDelta(t, 0, onA.Sub(r3.Vector{X: 2}).Norm(), 1e-12)
	assert.InDelta(t, 0, onB.Sub(r3.Vector{X: 2, Z: 1}).Norm(), 1e-12)
}

func TestMedian(t *testing.T) {
	assert.True(t, math.IsNaN(median(nil)))
	assert.Equal(t, 2.0, median([]float64{3, 1, 2}))
	assert.Equal(t, 2.0, median([]float64{4, 1, 3, 2}))
	assert.Equal(t, 7.0, median([]float64{7}))
}

func isValid(v r3.Vector) bool {
	return !math.IsNaN(v.X) && !math.IsNaN(v.Y) && !math.IsNaN(v.Z)
}
