package survey

import (
	"fmt"
	"math"

	"github.com/kwv/blockori/ga"
	"github.com/kwv/blockori/geo"
)

// EstimateTarget locates one target from its rays and planes. The least
// squares point comes from a PointSystem, the robust point from the ray
// bundle's convergence refined by MeanNearTo, and the likely distance from
// a ProbRay along the first ray.
func EstimateTarget(t Target, cfg EstimationConfig) PointEstimate {
	est := PointEstimate{ID: t.ID, Peak: geo.NullDistProb()}

	rays := make([]geo.Ray, 0, len(t.Rays))
	wrays := make([]geo.WRay, 0, len(t.Rays))
	for _, obs := range t.Rays {
		r := obs.Ray()
		if !r.IsValid() {
			continue
		}
		sigma := obs.Sigma
		if sigma <= 0 {
			sigma = cfg.RaySigma
		}
		rays = append(rays, r)
		wrays = append(wrays, geo.WRay{Ray: r, Weight: 1 / sigma})
	}
	est.NumRays = len(rays)
	est.Rays = rays

	wplanes := make([]geo.WPlane, 0, len(t.Planes))
	for _, obs := range t.Planes {
		sigma := obs.Sigma
		if sigma <= 0 {
			sigma = 1
		}
		wplanes = append(wplanes, geo.WPlane{Plane: obs.Plane(), Weight: 1 / sigma})
	}

	var ps geo.PointSystem
	ps.AddWeightedRays(wrays)
	ps.AddWeightedPlanes(wplanes)
	soln := ps.PointSolution()
	if !soln.IsValid() {
		est.Error = "no usable observations"
		return est
	}
	est.Location = ga.Array(soln.Loc)
	for k := 0; k < 3; k++ {
		// undetermined axes are reported as 0
		if ax := soln.KthLargestSemiAxis(k); ax.IsFinite() {
			est.SemiAxes[k] = ax.Mag
		}
	}
	est.Valid = soln.IsWellDetermined()
	if !est.Valid {
		est.Error = "point is not fully determined"
	}

	rc := geo.NewRayConvergence(rays)
	robust := rc.RobustPoint(cfg.MinAngleDeg*math.Pi/180, nil)
	if ga.IsValidVector(robust) {
		if refined := rc.MeanNearTo(robust, cfg.RejectTol); ga.IsValidVector(refined) {
			robust = refined
		}
		est.RobustLocation = ga.Array(robust)
	}

	if len(rays) >= 2 {
		pr := geo.ProbRayFrom(rays[0], rays[1:], cfg.RaySigma,
			geo.Range{Min: cfg.MinDistance, Max: cfg.MaxDistance}, cfg.Bins)
		if d := pr.LikelyDistance(); !math.IsNaN(d) {
			est.LikelyDistance = d
		}
		est.Profile = pr.DistProbs()
		est.Peak = pr.LikelyDistProb()
	}

	return est
}

// String summarizes the estimate on one line
func (e PointEstimate) String() string {
	if e.Error != "" && !e.Valid {
		return fmt.Sprintf("%s: %s (%d rays)", e.ID, e.Error, e.NumRays)
	}
	return fmt.Sprintf("%s: loc=(%.4f, %.4f, %.4f) robust=(%.4f, %.4f, %.4f) axes=[%.3g %.3g %.3g] dist=%.4f (%d rays)",
		e.ID, e.Location[0], e.Location[1], e.Location[2],
		e.RobustLocation[0], e.RobustLocation[1], e.RobustLocation[2],
		e.SemiAxes[0], e.SemiAxes[1], e.SemiAxes[2], e.LikelyDistance, e.NumRays)
}
