// Package geo estimates 3D point locations from rays, planes and cones:
// probability profiles along a ray, weighted least squares and robust
// convergence of ray bundles.
package geo

import (
	"math"

	"github.com/golang/geo/r3"
	"github.com/kwv/blockori/ga"
)

// Ray is a half-line from Start along the unit direction Dir.
type Ray struct {
	Start r3.Vector
	Dir   r3.Vector
}

// NewRay normalizes dir. A zero direction gives an invalid ray.
func NewRay(start, dir r3.Vector) Ray {
	return Ray{Start: start, Dir: ga.Unit(dir)}
}

// RayThrough builds the ray from start through pnt.
func RayThrough(start, pnt r3.Vector) Ray {
	return NewRay(start, pnt.Sub(start))
}

func (r Ray) IsValid() bool {
	return ga.IsValidVector(r.Start) && ga.IsValidVector(r.Dir) && math.Abs(r.Dir.Norm()-1) < 1e-9
}

// PointAt returns the point dist along the ray.
func (r Ray) PointAt(dist float64) r3.Vector {
	return r.Start.Add(r.Dir.Mul(dist))
}

// DistanceAlong is the signed distance of the projection of pnt.
func (r Ray) DistanceAlong(pnt r3.Vector) float64 {
	return pnt.Sub(r.Start).Dot(r.Dir)
}

// ProjectionOf returns the closest point on the line to pnt.
func (r Ray) ProjectionOf(pnt r3.Vector) r3.Vector {
	return r.PointAt(r.DistanceAlong(pnt))
}

// RejectionOf is the perpendicular gap from the line to pnt.
func (r Ray) RejectionOf(pnt r3.Vector) r3.Vector {
	return pnt.Sub(r.ProjectionOf(pnt))
}

// AngleTo is the angle at Start between the ray and the direction to pnt.
func (r Ray) AngleTo(pnt r3.Vector) float64 {
	return ga.AngleBetween(r.Dir, pnt.Sub(r.Start))
}

// ClosestApproach returns the mutually closest points on two lines. ok is
// false for (nearly) parallel lines.
func ClosestApproach(a, b Ray) (onA, onB r3.Vector, ok bool) {
	w := a.Start.Sub(b.Start)
	dd := a.Dir.Dot(b.Dir)
	d := a.Dir.Dot(w)
	e := b.Dir.Dot(w)
	sin := ga.Wedge(a.Dir, b.Dir).Magnitude()
	den := sin * sin
	if den < 1e-12 {
		return ga.NullVector(), ga.NullVector(), false
	}
	s := (dd*e - d) / den
	t := (e - dd*d) / den
	return a.PointAt(s), b.PointAt(t), true
}

// Plane is the set of points p with (p - Point)·Normal = 0.
type Plane struct {
	Point  r3.Vector
	Normal r3.Vector
}

// NewPlane normalizes the normal.
func NewPlane(pnt, normal r3.Vector) Plane {
	return Plane{Point: pnt, Normal: ga.Unit(normal)}
}

func (p Plane) IsValid() bool {
	return ga.IsValidVector(p.Point) && ga.IsValidVector(p.Normal)
}

// DistanceTo is the signed distance of pnt above the plane.
func (p Plane) DistanceTo(pnt r3.Vector) float64 {
	return pnt.Sub(p.Point).Dot(p.Normal)
}

// Range is a closed interval of distances.
type Range struct {
	Min float64
	Max float64
}

func (r Range) IsValid() bool {
	return !math.IsNaN(r.Min) && !math.IsNaN(r.Max) &&
		!math.IsInf(r.Min, 0) && !math.IsInf(r.Max, 0) && r.Min < r.Max
}

func (r Range) Span() float64 {
	return r.Max - r.Min
}

func (r Range) Contains(v float64) bool {
	return r.Min <= v && v <= r.Max
}
