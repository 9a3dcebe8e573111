package survey

import (
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"

	"github.com/kwv/blockori/blk"
	"github.com/kwv/blockori/rigid"
	"github.com/kwv/blockori/sim"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// cubeTruth returns eight stations "n0".."n7" on a cube, with respect to
// the world frame
func cubeTruth(seed uint64) map[string]rigid.Transform {
	truth := make(map[string]rigid.Transform, 8)
	for i, t := range sim.CubeBlock(sim.NewRand(seed), 2) {
		truth[fmt.Sprintf("n%d", i)] = t
	}
	return truth
}

// cubeMeasurements returns an exact measurement for every pair of cube
// stations
func cubeMeasurements(t *testing.T, seed uint64) []Measurement {
	t.Helper()
	pairs := sim.AllPairs(cubeTruth(seed))
	ms := make([]Measurement, 0, len(pairs))
	for _, p := range pairs {
		ms = append(ms, MeasurementFromPair(p, 0.01))
	}
	require.Len(t, ms, 28)
	return ms
}

func TestMeasurementStore_AddReplacesEitherDirection(t *testing.T) {
	s := NewMeasurementStore()
	require.NoError(t, s.Add(Measurement{From: "a", Into: "b", Location: [3]float64{1, 0, 0}}))
	require.NoError(t, s.Add(Measurement{From: "b", Into: "a", Location: [3]float64{-2, 0, 0}}))

	assert.Equal(t, 1, s.Count())
	ms := s.Measurements()
	require.Len(t, ms, 1)
	assert.Equal(t, "b", ms[0].From)
	assert.Equal(t, -2.0, ms[0].Location[0])
}

func TestMeasurementStore_AddRejectsInvalid(t *testing.T) {
	s := NewMeasurementStore()
	err := s.Add(Measurement{From: "a", Into: "a"})
	assert.True(t, errors.Is(err, ErrInvalidMeasurement))
	assert.Equal(t, 0, s.Count())

	err = s.AddAll([]Measurement{{From: "a", Into: "b"}, {From: "c"}})
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "measurement 1")
	assert.Equal(t, 1, s.Count())
}

func TestMeasurementStore_PoolCarriesSigmas(t *testing.T) {
	s := NewMeasurementStore()
	require.NoError(t, s.AddAll([]Measurement{
		{From: "b", Into: "a", Sigma: 0.3},
		{From: "b", Into: "c"},
	}))

	pool, sigmas := s.Pool()
	assert.Equal(t, 2, pool.Len())
	assert.Equal(t, 0.3, sigmas[blk.NewEdgeKey("a", "b")])
	_, ok := sigmas[blk.NewEdgeKey("b", "c")]
	assert.False(t, ok, "unset sigma should be left to the fallback")
}

func TestMeasurementStore_FormCube(t *testing.T) {
	truth := cubeTruth(7)
	s := NewMeasurementStore()
	require.NoError(t, s.AddAll(cubeMeasurements(t, 7)))

	sol, err := s.Form(BlockConfig{Root: "n3", Weighting: WeightingSigma})
	require.NoError(t, err)
	require.True(t, sol.IsConnected())
	assert.Equal(t, "n3", sol.Root)
	assert.Len(t, sol.Orientations, 8)
	assert.Len(t, sol.TreeEdges, 7)
	assert.Equal(t, 28, sol.NumEdges)
	assert.Len(t, sol.Residuals, 28)
	assert.Less(t, sol.MaxLocGap, 1e-8)
	assert.Less(t, sol.MaxAngleGap, 1e-8)

	for id, ori := range sol.Orientations {
		want := blk.Implied(truth["n3"], truth[id])
		assert.True(t, ori.NearlyEqual(want, 1e-8), "node %s: got %v want %v", id, ori, want)
	}
	assert.Same(t, sol, s.Latest())
}

func TestMeasurementStore_FormErrors(t *testing.T) {
	s := NewMeasurementStore()
	_, err := s.Form(BlockConfig{})
	assert.Error(t, err)

	require.NoError(t, s.AddAll([]Measurement{
		{From: "a", Into: "b"},
		{From: "c", Into: "d"},
	}))
	_, err = s.Form(BlockConfig{MinEdges: 3})
	assert.Error(t, err)

	sol, err := s.Form(BlockConfig{})
	assert.True(t, errors.Is(err, ErrNotConnected))
	require.NotNil(t, sol)
	assert.Equal(t, 2, sol.Components)
	assert.False(t, sol.IsConnected())
	assert.Nil(t, s.Latest())
}

func TestMeasurementStore_CacheRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache", "block.json")

	s := NewMeasurementStoreWithCache(path)
	assert.Nil(t, s.Latest())
	require.NoError(t, s.AddAll(cubeMeasurements(t, 3)))
	sol, err := s.Form(BlockConfig{Root: "n0"})
	require.NoError(t, err)

	reloaded := NewMeasurementStoreWithCache(path)
	cached := reloaded.Latest()
	require.NotNil(t, cached)
	assert.Equal(t, "n0", cached.Root)
	require.Len(t, cached.Orientations, 8)
	for id, ori := range sol.Orientations {
		assert.True(t, cached.Orientations[id].NearlyEqual(ori, 1e-9), "node %s", id)
	}
}

func TestMeasurementStore_Colors(t *testing.T) {
	s := NewMeasurementStore()
	s.SetColor("a", "#112233")
	colors := s.Colors()
	colors["a"] = "changed"
	assert.Equal(t, "#112233", s.Colors()["a"])
}

func TestMeasurementStore_ConcurrentAdds(t *testing.T) {
	s := NewMeasurementStore()
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_ = s.Add(Measurement{From: "hub", Into: fmt.Sprintf("s%02d", i)})
			_ = s.Count()
		}(i)
	}
	wg.Wait()
	assert.Equal(t, 20, s.Count())
}

func TestSolveBlock_UniformDefaults(t *testing.T) {
	pairs := sim.AllPairs(cubeTruth(11))
	sol := SolveBlock(blk.PoolFrom(pairs), nil, BlockConfig{})
	require.True(t, sol.IsConnected())
	assert.Equal(t, "n0", sol.Root)
	assert.InDelta(t, 0, sol.MeanLocGap, 1e-8)
	assert.Equal(t, []string{"n0", "n1", "n2", "n3", "n4", "n5", "n6", "n7"}, sol.NodeIDs())

	nodes := sol.Nodes()
	require.Len(t, nodes, 8)
	assert.True(t, nodes[0].Root)
	assert.False(t, nodes[1].Root)
}
