package sim

import (
	"cmp"
	"math"
	"math/rand/v2"
	"slices"

	"github.com/golang/geo/r3"
	"github.com/kwv/blockori/blk"
	"github.com/kwv/blockori/ga"
	"github.com/kwv/blockori/geo"
	"github.com/kwv/blockori/rigid"
)

// NewRand returns a deterministic generator for the given seed.
func NewRand(seed uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
}

// RandomAttitude draws a rotation with angle up to maxAngle about a random axis.
func RandomAttitude(rng *rand.Rand, maxAngle float64) ga.Attitude {
	axis := ga.Unit(r3.Vector{X: rng.NormFloat64(), Y: rng.NormFloat64(), Z: rng.NormFloat64()})
	if !ga.IsValidVector(axis) {
		return ga.IdentityAttitude()
	}
	return ga.NewAttitude(axis.Mul(maxAngle * rng.Float64()))
}

// CubeBlock places eight nodes on the corners of a cube with the given edge
// length and random attitudes. Each transform is the node with respect to
// the world frame.
func CubeBlock(rng *rand.Rand, edge float64) map[int]rigid.Transform {
	truth := make(map[int]rigid.Transform, 8)
	for i := 0; i < 8; i++ {
		loc := r3.Vector{X: float64(i & 1), Y: float64((i >> 1) & 1), Z: float64((i >> 2) & 1)}.Mul(edge)
		truth[i] = rigid.New(loc, RandomAttitude(rng, math.Pi))
	}
	return truth
}

// AllPairs returns the exact relative orientation for every pair of nodes.
func AllPairs[K cmp.Ordered](truth map[K]rigid.Transform) []blk.OriPair[K] {
	keys := make([]K, 0, len(truth))
	for k := range truth {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	pairs := []blk.OriPair[K]{}
	for i, ki := range keys {
		for _, kj := range keys[i+1:] {
			pairs = append(pairs, blk.OriPair[K]{I: ki, J: kj, OriJwrtI: blk.Implied(truth[ki], truth[kj])})
		}
	}
	return pairs
}

// Perturb adds Gaussian noise to a transform's location and attitude.
func Perturb(rng *rand.Rand, t rigid.Transform, locSigma, angSigma float64) rigid.Transform {
	dLoc := r3.Vector{X: rng.NormFloat64(), Y: rng.NormFloat64(), Z: rng.NormFloat64()}.Mul(locSigma)
	dAng := r3.Vector{X: rng.NormFloat64(), Y: rng.NormFloat64(), Z: rng.NormFloat64()}.Mul(angSigma)
	return rigid.New(t.Loc.Add(dLoc), ga.NewAttitude(dAng).Mul(t.Att))
}

// PerturbPairs perturbs every pair's transform.
func PerturbPairs[K cmp.Ordered](rng *rand.Rand, pairs []blk.OriPair[K], locSigma, angSigma float64) []blk.OriPair[K] {
	out := make([]blk.OriPair[K], len(pairs))
	for i, p := range pairs {
		out[i] = blk.OriPair[K]{I: p.I, J: p.J, OriJwrtI: Perturb(rng, p.OriJwrtI, locSigma, angSigma)}
	}
	return out
}

// RingStations spaces n stations evenly on a horizontal circle.
func RingStations(n int, radius, height float64) []r3.Vector {
	out := make([]r3.Vector, 0, n)
	for i := 0; i < n; i++ {
		theta := 2 * math.Pi * float64(i) / float64(n)
		out = append(out, r3.Vector{X: radius * math.Cos(theta), Y: radius * math.Sin(theta), Z: height})
	}
	return out
}

// RaysToward aims a ray from each station at target, tilting the direction
// by dirSigma radians of Gaussian noise.
func RaysToward(rng *rand.Rand, stations []r3.Vector, target r3.Vector, dirSigma float64) []geo.Ray {
	rays := make([]geo.Ray, 0, len(stations))
	for _, s := range stations {
		dir := ga.Unit(target.Sub(s))
		if dirSigma > 0 {
			dir = RandomTilt(rng, dirSigma).Apply(dir)
		}
		rays = append(rays, geo.NewRay(s, dir))
	}
	return rays
}

// RandomTilt is a small rotation with Gaussian components of sigma radians.
func RandomTilt(rng *rand.Rand, sigma float64) ga.Attitude {
	return ga.NewAttitude(r3.Vector{X: rng.NormFloat64(), Y: rng.NormFloat64(), Z: rng.NormFloat64()}.Mul(sigma))
}

// Outliers returns rays from random far stations that pass offset away from target.
func Outliers(rng *rand.Rand, n int, target r3.Vector, radius, offset float64) []geo.Ray {
	rays := make([]geo.Ray, 0, n)
	for i := 0; i < n; i++ {
		theta := 2 * math.Pi * rng.Float64()
		start := target.Add(r3.Vector{X: radius * math.Cos(theta), Y: radius * math.Sin(theta)})
		miss := target.Add(r3.Vector{Z: offset})
		rays = append(rays, geo.RayThrough(start, miss))
	}
	return rays
}
