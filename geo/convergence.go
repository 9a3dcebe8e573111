package geo

import (
	"math"
	"sort"

	"github.com/golang/geo/r3"
	"github.com/kwv/blockori/ga"
	"gonum.org/v1/gonum/stat"
)

// DefaultMinAngle is the smallest angle between two ray directions for the
// pair to be used in RobustPoint (one degree).
const DefaultMinAngle = math.Pi / 180

// RayConvergence estimates where a bundle of rays meets.
type RayConvergence struct {
	rays []Ray
}

// NewRayConvergence keeps the valid rays.
func NewRayConvergence(rays []Ray) RayConvergence {
	kept := make([]Ray, 0, len(rays))
	for _, r := range rays {
		if r.IsValid() {
			kept = append(kept, r)
		}
	}
	return RayConvergence{rays: kept}
}

func (rc RayConvergence) NumRays() int {
	return len(rc.rays)
}

// RobustPoint is the componentwise median of the mutually closest points
// of every ray pair whose directions differ by more than minAngle. When
// gapMags is non-nil the pair gap distances are appended to it. The result
// is invalid if no pair qualifies.
func (rc RayConvergence) RobustPoint(minAngle float64, gapMags *[]float64) r3.Vector {
	maxDot := math.Cos(minAngle)

	var xs, ys, zs []float64
	for i := 0; i < len(rc.rays); i++ {
		for j := i + 1; j < len(rc.rays); j++ {
			a, b := rc.rays[i], rc.rays[j]
			if !(a.Dir.Dot(b.Dir) < maxDot) {
				continue
			}
			onA, onB, ok := ClosestApproach(a, b)
			if !ok {
				continue
			}
			xs = append(xs, onA.X, onB.X)
			ys = append(ys, onA.Y, onB.Y)
			zs = append(zs, onA.Z, onB.Z)
			if gapMags != nil {
				*gapMags = append(*gapMags, onA.Sub(onB).Norm())
			}
		}
	}
	if len(xs) == 0 {
		return ga.NullVector()
	}

	return r3.Vector{X: median(xs), Y: median(ys), Z: median(zs)}
}

// MeanNearTo averages the closest point on each ray to evalPoint, keeping
// only rays that pass within maxRejTol of it. An invalid evalPoint is
// replaced by RobustPoint(DefaultMinAngle, nil).
func (rc RayConvergence) MeanNearTo(evalPoint r3.Vector, maxRejTol float64) r3.Vector {
	if !ga.IsValidVector(evalPoint) {
		evalPoint = rc.RobustPoint(DefaultMinAngle, nil)
		if !ga.IsValidVector(evalPoint) {
			return ga.NullVector()
		}
	}

	var xs, ys, zs []float64
	for _, r := range rc.rays {
		near := r.ProjectionOf(evalPoint)
		if near.Sub(evalPoint).Norm() > maxRejTol {
			continue
		}
		xs = append(xs, near.X)
		ys = append(ys, near.Y)
		zs = append(zs, near.Z)
	}
	if len(xs) == 0 {
		return ga.NullVector()
	}
	return r3.Vector{X: stat.Mean(xs, nil), Y: stat.Mean(ys, nil), Z: stat.Mean(zs, nil)}
}

// median is the lower median for an even count, so it is always one of the
// values.
func median(values []float64) float64 {
	if len(values) == 0 {
		return math.NaN()
	}
	sort.Float64s(values)
	return stat.Quantile(0.5, stat.Empirical, values, nil)
}
