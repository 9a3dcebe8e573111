package survey

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/golang/geo/r3"
	"github.com/kwv/blockori/ga"
	"github.com/kwv/blockori/geo"
	"github.com/kwv/blockori/sim"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func targetFromRays(id string, rays []geo.Ray) Target {
	t := Target{ID: id}
	for _, r := range rays {
		t.Rays = append(t.Rays, RayObservation{Start: ga.Array(r.Start), Dir: ga.Array(r.Dir)})
	}
	return t
}

func ringTarget(id string, at r3.Vector) Target {
	rays := sim.RaysToward(nil, sim.RingStations(6, 10, 0), at, 0)
	return targetFromRays(id, rays)
}

func TestEstimateTarget_ExactRays(t *testing.T) {
	cfg := DefaultConfig().Estimation
	want := r3.Vector{X: 1, Y: 2, Z: 3}

	est := EstimateTarget(ringTarget("t1", want), cfg)
	require.True(t, est.Valid, est.Error)
	assert.Equal(t, 6, est.NumRays)
	assert.True(t, ga.ApproxEqual(ga.Vec(est.Location), want, 1e-6), "location %v", est.Location)
	assert.True(t, ga.ApproxEqual(ga.Vec(est.RobustLocation), want, 1e-6), "robust %v", est.RobustLocation)

	first := sim.RingStations(6, 10, 0)[0]
	assert.InDelta(t, want.Sub(first).Norm(), est.LikelyDistance, 0.15)
	assert.Len(t, est.Profile, cfg.Bins)

	assert.GreaterOrEqual(t, est.SemiAxes[0], est.SemiAxes[1])
	assert.GreaterOrEqual(t, est.SemiAxes[1], est.SemiAxes[2])
	assert.Contains(t, est.String(), "t1: loc=(1.0000, 2.0000, 3.0000)")
}

func TestEstimateTarget_RobustIgnoresOutliers(t *testing.T) {
	cfg := DefaultConfig().Estimation
	rng := sim.NewRand(42)
	want := r3.Vector{X: -2, Y: 0.5, Z: 1}

	rays := sim.RaysToward(rng, sim.RingStations(9, 8, 0), want, 0.0005)
	rays = append(rays, sim.Outliers(rng, 3, want, 8, 2)...)

	est := EstimateTarget(targetFromRays("noisy", rays), cfg)
	assert.Equal(t, 12, est.NumRays)
	assert.Less(t, ga.Vec(est.RobustLocation).Sub(want).Norm(), 0.05)
}

func TestEstimateTarget_WithPlane(t *testing.T) {
	cfg := DefaultConfig().Estimation
	// one ray straight down onto the z = 0 plane
	target := Target{
		ID:     "floor",
		Rays:   []RayObservation{{Start: [3]float64{1, 1, 5}, Dir: [3]float64{0, 0, -1}}},
		Planes: []PlaneObservation{{Point: [3]float64{0, 0, 0}, Normal: [3]float64{0, 0, 1}, Sigma: 0.01}},
	}
	est := EstimateTarget(target, cfg)
	require.True(t, est.Valid, est.Error)
	assert.InDelta(t, 1, est.Location[0], 1e-6)
	assert.InDelta(t, 1, est.Location[1], 1e-6)
	assert.InDelta(t, 0, est.Location[2], 1e-6)
	assert.Zero(t, est.LikelyDistance, "a single ray has no profile")
}

func TestEstimateTarget_Underdetermined(t *testing.T) {
	cfg := DefaultConfig().Estimation

	est := EstimateTarget(Target{ID: "empty"}, cfg)
	assert.False(t, est.Valid)
	assert.Equal(t, "no usable observations", est.Error)
	assert.True(t, strings.HasPrefix(est.String(), "empty: no usable observations"))

	single := Target{ID: "one", Rays: []RayObservation{{Start: [3]float64{0, 0, 0}, Dir: [3]float64{1, 0, 0}}}}
	est = EstimateTarget(single, cfg)
	assert.False(t, est.Valid)
	assert.Equal(t, 1, est.NumRays)
	assert.Zero(t, est.SemiAxes[0], "the along-ray axis is undetermined")
	assert.Greater(t, est.SemiAxes[1], 0.0)
}

func TestEstimateBatch_KeepsOrder(t *testing.T) {
	cfg := DefaultConfig().Estimation
	cfg.Concurrency = 2

	var targets []Target
	for i := 0; i < 7; i++ {
		targets = append(targets, ringTarget(fmt.Sprintf("t%d", i), r3.Vector{X: float64(i), Z: 2}))
	}

	results, err := EstimateBatch(context.Background(), targets, cfg)
	require.NoError(t, err)
	require.Len(t, results, 7)
	for i, est := range results {
		assert.Equal(t, fmt.Sprintf("t%d", i), est.ID)
		assert.InDelta(t, float64(i), est.Location[0], 1e-6)
	}
}

func TestEstimateBatch_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := EstimateBatch(ctx, []Target{ringTarget("t", r3.Vector{Z: 1})}, DefaultConfig().Estimation)
	assert.True(t, errors.Is(err, context.Canceled))
}
