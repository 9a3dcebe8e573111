package geo_test

import (
	"math"
	"testing"

	"github.com/golang/geo/r3"
	"github.com/kwv/blockori/ga"
	"github.com/kwv/blockori/geo"
	"github.com/kwv/blockori/sim"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestPointSystemTwoPerturbedRays sweeps seeded perturbations of two rays
// from known stations and checks the solution stays inside the ellipsoid.
func TestPointSystemTwoPerturbedRays(t *testing.T) {
	target := r3.Vector{Y: 3}
	stations := []r3.Vector{{X: -1}, {X: 1}}

	const dirTol, posTol = 1e-3, 1e-3
	// worst lateral miss of a perturbed ray at the target
	miss := target.Sub(stations[0]).Norm()*math.Sin(dirTol) + math.Sqrt(3)*posTol

	for seed := uint64(1); seed <= 100; seed++ {
		rng := sim.NewRand(seed)

		var ps geo.PointSystem
		for _, s := range stations {
			dir := sim.RandomAttitude(rng, dirTol).Apply(ga.Unit(target.Sub(s)))
			start := s.Add(r3.Vector{
				X: posTol * (2*rng.Float64() - 1),
				Y: posTol * (2*rng.Float64() - 1),
				Z: posTol * (2*rng.Float64() - 1),
			})
			ps.AddWeightedRays([]geo.WRay{{Ray: geo.NewRay(start, dir), Weight: 1 / miss}})
		}

		soln := ps.PointSolution()
		require.True(t, soln.IsWellDetermined(), "seed %d", seed)

		loose := soln.KthLargestSemiAxis(0)
		assert.InDelta(t, miss/math.Sqrt(0.2), loose.Mag, 0.05*miss, "seed %d", seed)
		assert.Less(t, soln.Loc.Sub(target).Norm(), 3*loose.Mag, "seed %d", seed)
	}
}
