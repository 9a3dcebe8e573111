package geo

import (
	"errors"
	"math"

	"github.com/golang/geo/r3"
	"github.com/kwv/blockori/ga"
)

var (
	ErrBadSigma        = errors.New("geo: sigma must be positive")
	ErrInvalidProbRay  = errors.New("geo: prob ray is not valid")
	ErrInvalidEvidence = errors.New("geo: evidence geometry is not valid")
)

// PseudoProb is the unnormalized Gaussian kernel exp(-½(arg/sigma)²).
func PseudoProb(arg, sigma float64) float64 {
	z := arg / sigma
	return math.Exp(-0.5 * z * z)
}

// DistProb is a distance along a ray with its accumulated pseudo-probability.
type DistProb struct {
	Distance float64
	Prob     float64
}

// NullDistProb is the invalid sentinel.
func NullDistProb() DistProb {
	return DistProb{Distance: math.NaN(), Prob: math.NaN()}
}

func (d DistProb) IsValid() bool {
	return !math.IsNaN(d.Distance) && !math.IsNaN(d.Prob)
}

// ProbRay accumulates evidence for where along a primary ray a target lies.
// The distance range is split into bins sampled at their centers; each
// Consider call adds a pseudo-probability to every bin. Values are
// comparable within one ProbRay only.
type ProbRay struct {
	ray        Ray
	rng        Range
	delta      float64
	probs      []float64
	considered int
	valid      bool
}

// NewProbRay returns a ProbRay over distRange with numBins bins. An invalid
// ray, range or bin count yields an invalid instance.
func NewProbRay(primary Ray, distRange Range, numBins int) *ProbRay {
	p := &ProbRay{ray: primary, rng: distRange}
	if !primary.IsValid() || !distRange.IsValid() || numBins < 1 {
		return p
	}
	p.delta = distRange.Span() / float64(numBins)
	p.probs = make([]float64, numBins)
	p.valid = true
	return p
}

// ProbRayFrom builds a ProbRay and considers every other ray against it.
func ProbRayFrom(primary Ray, others []Ray, raySigma float64, distRange Range, numBins int) *ProbRay {
	p := NewProbRay(primary, distRange, numBins)
	for _, other := range others {
		if err := p.ConsiderRay(other, raySigma); errors.Is(err, ErrBadSigma) {
			break
		}
	}
	return p
}

func (p *ProbRay) IsValid() bool {
	return p != nil && p.valid
}

func (p *ProbRay) Ray() Ray {
	return p.ray
}

func (p *ProbRay) Range() Range {
	return p.rng
}

func (p *ProbRay) NumBins() int {
	return len(p.probs)
}

// Considered counts accepted pieces of evidence.
func (p *ProbRay) Considered() int {
	return p.considered
}

// DistanceAt maps a (fractional) bin index to the distance it samples.
func (p *ProbRay) DistanceAt(fracNdx float64) float64 {
	return p.rng.Min + (fracNdx+0.5)*p.delta
}

// DistProbs returns a copy of every bin's distance and probability.
func (p *ProbRay) DistProbs() []DistProb {
	if !p.IsValid() {
		return nil
	}
	out := make([]DistProb, len(p.probs))
	for i, prob := range p.probs {
		out[i] = DistProb{Distance: p.DistanceAt(float64(i)), Prob: prob}
	}
	return out
}

func (p *ProbRay) check(sigma float64) error {
	if !p.IsValid() {
		return ErrInvalidProbRay
	}
	if !(sigma > 0) || math.IsInf(sigma, 0) {
		p.valid = false
		return ErrBadSigma
	}
	return nil
}

func (p *ProbRay) accumulate(probAt func(sample r3.Vector) float64) {
	for i := range p.probs {
		p.probs[i] += probAt(p.ray.PointAt(p.DistanceAt(float64(i))))
	}
	p.considered++
}

// ConsiderPoint adds evidence that the target is near pnt. The angular
// agreement seen from the ray start scales the whole contribution and the
// distance from each sample to pnt shapes it.
func (p *ProbRay) ConsiderPoint(pnt r3.Vector, pntSigma float64) error {
	if err := p.check(pntSigma); err != nil {
		return err
	}
	if !ga.IsValidVector(pnt) {
		return ErrInvalidEvidence
	}

	angProb := 1.0
	if rangeTo := pnt.Sub(p.ray.Start).Norm(); rangeTo > 0 {
		angSigma := math.Atan2(pntSigma, rangeTo)
		angProb = PseudoProb(p.ray.AngleTo(pnt), angSigma)
	}

	p.accumulate(func(sample r3.Vector) float64 {
		return angProb * PseudoProb(sample.Sub(pnt).Norm(), pntSigma)
	})
	return nil
}

// ConsiderRay adds evidence from another ray pointing at the same target.
// For each sample the primary ray's view of the nearest point on the other
// ray and the other ray's view of the sample are both scored.
func (p *ProbRay) ConsiderRay(other Ray, raySigma float64) error {
	if err := p.check(raySigma); err != nil {
		return err
	}
	if !other.IsValid() {
		return ErrInvalidEvidence
	}

	p.accumulate(func(sample r3.Vector) float64 {
		nearOther := other.ProjectionOf(sample)
		angPrimary := p.ray.AngleTo(nearOther)
		angOther := other.AngleTo(sample)
		return PseudoProb(angPrimary, raySigma) * PseudoProb(angOther, raySigma)
	})
	return nil
}

// ConsiderCone adds evidence that the target lies on a cone. The cone apex
// is rayOnCone.Start, its axis coneAxisDir, and rayOnCone.Dir lies on its
// surface.
func (p *ProbRay) ConsiderCone(rayOnCone Ray, coneAxisDir r3.Vector, apexSigma float64) error {
	if err := p.check(apexSigma); err != nil {
		return err
	}
	axis := ga.Unit(coneAxisDir)
	if !rayOnCone.IsValid() || !ga.IsValidVector(axis) {
		return ErrInvalidEvidence
	}

	apex := rayOnCone.Start
	halfAngle := ga.AngleBetween(axis, rayOnCone.Dir)
	p.accumulate(func(sample r3.Vector) float64 {
		dev := ga.AngleBetween(axis, sample.Sub(apex)) - halfAngle
		return PseudoProb(dev, apexSigma)
	})
	return nil
}

// LikelyDistProb returns the interpolated peak of the accumulated profile.
// It is invalid with no evidence, a peak in the first or last bin, or a
// peak that is not strictly above both neighbors.
func (p *ProbRay) LikelyDistProb() DistProb {
	if !p.IsValid() || p.considered == 0 || len(p.probs) < 3 {
		return NullDistProb()
	}

	ndx := 0
	for i, prob := range p.probs {
		if prob > p.probs[ndx] {
			ndx = i
		}
	}
	if ndx == 0 || ndx == len(p.probs)-1 {
		return NullDistProb()
	}

	alpha, beta, gamma := p.probs[ndx-1], p.probs[ndx], p.probs[ndx+1]
	if !(alpha < beta && gamma < beta) {
		return NullDistProb()
	}

	den := alpha - 2*beta + gamma
	delta := 0.5 * (alpha - gamma) / den
	peak := beta - 0.25*(alpha-gamma)*delta
	return DistProb{Distance: p.DistanceAt(float64(ndx) + delta), Prob: peak}
}

// LikelyDistance is the distance of LikelyDistProb, NaN when invalid.
func (p *ProbRay) LikelyDistance() float64 {
	return p.LikelyDistProb().Distance
}

// LikelyPoint is the point on the ray at LikelyDistance.
func (p *ProbRay) LikelyPoint() r3.Vector {
	dp := p.LikelyDistProb()
	if !dp.IsValid() {
		return ga.NullVector()
	}
	return p.ray.PointAt(dp.Distance)
}
