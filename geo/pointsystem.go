package geo

import (
	"math"

	"github.com/golang/geo/r3"
	"github.com/kwv/blockori/ga"
	"gonum.org/v1/gonum/mat"
)

// singularFloor is the fraction of the largest singular value below which
// a direction is treated as undetermined.
const singularFloor = 1e-12

// WRay is a ray observation with a weight (typically 1/sigma).
type WRay struct {
	Ray    Ray
	Weight float64
}

// WPlane is a plane observation with a weight.
type WPlane struct {
	Plane  Plane
	Weight float64
}

// PointSystem accumulates the normal equations for the point that best
// fits a set of weighted rays and planes. The zero value is ready to use.
type PointSystem struct {
	normal *mat.SymDense
	rhs    *mat.VecDense
	numObs int
}

func (ps *PointSystem) init() {
	if ps.normal == nil {
		ps.normal = mat.NewSymDense(3, nil)
		ps.rhs = mat.NewVecDense(3, nil)
	}
}

func vecOf(v r3.Vector) *mat.VecDense {
	return mat.NewVecDense(3, []float64{v.X, v.Y, v.Z})
}

// NumObservations counts accepted rays and planes.
func (ps *PointSystem) NumObservations() int {
	return ps.numObs
}

// AddWeightedRays adds w²(I - d dᵀ) to the normal matrix and the same
// projector applied to the ray start to the right-hand side. Invalid rays
// and non-positive weights are skipped.
func (ps *PointSystem) AddWeightedRays(rays []WRay) {
	ps.init()
	for _, wr := range rays {
		if !wr.Ray.IsValid() || !(wr.Weight > 0) {
			continue
		}
		w2 := wr.Weight * wr.Weight
		d := vecOf(wr.Ray.Dir)
		for i := 0; i < 3; i++ {
			ps.normal.SetSym(i, i, ps.normal.At(i, i)+w2)
		}
		ps.normal.SymRankOne(ps.normal, -w2, d)

		s := wr.Ray.Start
		perp := s.Sub(wr.Ray.Dir.Mul(wr.Ray.Dir.Dot(s)))
		ps.rhs.AddScaledVec(ps.rhs, w2, vecOf(perp))
		ps.numObs++
	}
}

// AddWeightedPlanes adds w² n nᵀ to the normal matrix and w² n (n·p) to
// the right-hand side.
func (ps *PointSystem) AddWeightedPlanes(planes []WPlane) {
	ps.init()
	for _, wp := range planes {
		if !wp.Plane.IsValid() || !(wp.Weight > 0) {
			continue
		}
		w2 := wp.Weight * wp.Weight
		n := wp.Plane.Normal
		ps.normal.SymRankOne(ps.normal, w2, vecOf(n))
		ps.rhs.AddScaledVec(ps.rhs, w2*n.Dot(wp.Plane.Point), vecOf(n))
		ps.numObs++
	}
}

// SemiAxis is one principal axis of the uncertainty ellipsoid.
type SemiAxis struct {
	Mag float64
	Dir r3.Vector
}

func (s SemiAxis) IsValid() bool {
	return !math.IsNaN(s.Mag) && ga.IsValidVector(s.Dir)
}

// IsFinite reports whether the axis is determined by the observations.
func (s SemiAxis) IsFinite() bool {
	return s.IsValid() && !math.IsInf(s.Mag, 0)
}

// PointSoln is a least-squares point with its uncertainty semi-axes.
type PointSoln struct {
	Loc r3.Vector
	// SemiAxes are ordered as the solver reports them: smallest magnitude first.
	SemiAxes [3]SemiAxis
}

// NullPointSoln is the invalid sentinel.
func NullPointSoln() PointSoln {
	null := SemiAxis{Mag: math.NaN(), Dir: ga.NullVector()}
	return PointSoln{Loc: ga.NullVector(), SemiAxes: [3]SemiAxis{null, null, null}}
}

func (s PointSoln) IsValid() bool {
	return ga.IsValidVector(s.Loc)
}

// IsWellDetermined reports whether every semi-axis is finite.
func (s PointSoln) IsWellDetermined() bool {
	if !s.IsValid() {
		return false
	}
	for _, ax := range s.SemiAxes {
		if !ax.IsFinite() {
			return false
		}
	}
	return true
}

// KthLargestSemiAxis returns the semi-axis of rank k by magnitude: k=0 is
// the largest (least determined) axis, the reverse of the SemiAxes order.
// Use SemiAxes[k] for the k-th smallest. Out-of-range k is invalid.
func (s PointSoln) KthLargestSemiAxis(k int) SemiAxis {
	if k < 0 || k > 2 || !s.IsValid() {
		return SemiAxis{Mag: math.NaN(), Dir: ga.NullVector()}
	}
	return s.SemiAxes[2-k]
}

// PointSolution solves the accumulated system with an SVD pseudo-inverse.
// Directions whose singular value falls below the floor get an infinite
// semi-axis and do not contribute to the location.
func (ps *PointSystem) PointSolution() PointSoln {
	if ps.numObs == 0 || ps.normal == nil {
		return NullPointSoln()
	}

	var svd mat.SVD
	if ok := svd.Factorize(ps.normal, mat.SVDThin); !ok {
		return NullPointSoln()
	}
	vals := svd.Values(nil)
	if len(vals) != 3 || !(vals[0] > 0) {
		return NullPointSoln()
	}
	var u, v mat.Dense
	svd.UTo(&u)
	svd.VTo(&v)

	floor := vals[0] * singularFloor
	loc := mat.NewVecDense(3, nil)
	soln := PointSoln{}
	for k, sigma := range vals {
		dir := r3.Vector{X: v.At(0, k), Y: v.At(1, k), Z: v.At(2, k)}
		if sigma <= floor || sigma == 0 {
			soln.SemiAxes[k] = SemiAxis{Mag: math.Inf(1), Dir: dir}
			continue
		}
		soln.SemiAxes[k] = SemiAxis{Mag: 1 / math.Sqrt(sigma), Dir: dir}

		coef := mat.Dot(u.ColView(k), ps.rhs) / sigma
		loc.AddScaledVec(loc, coef, v.ColView(k))
	}
	soln.Loc = r3.Vector{X: loc.AtVec(0), Y: loc.AtVec(1), Z: loc.AtVec(2)}
	return soln
}
