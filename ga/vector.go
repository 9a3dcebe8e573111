// Package ga holds the small slice of 3D geometric algebra used by the
// orientation code: vectors, bivectors, spinors and attitudes.
package ga

import (
	"math"

	"github.com/golang/geo/r3"
)

// Vector is a grade-1 element.
type Vector = r3.Vector

// Basis vectors.
var (
	E1 = Vector{X: 1}
	E2 = Vector{Y: 1}
	E3 = Vector{Z: 1}
)

// NullVector returns the invalid vector sentinel.
func NullVector() Vector {
	nan := math.NaN()
	return Vector{X: nan, Y: nan, Z: nan}
}

// IsValidVector reports whether every component is finite.
func IsValidVector(v Vector) bool {
	return isFinite(v.X) && isFinite(v.Y) && isFinite(v.Z)
}

// Unit returns v scaled to unit length, or the null vector when v has no direction.
func Unit(v Vector) Vector {
	if !IsValidVector(v) {
		return NullVector()
	}
	mag := v.Norm()
	if mag == 0 {
		return NullVector()
	}
	return v.Mul(1 / mag)
}

// AngleBetween returns the angle in radians between two directions.
func AngleBetween(a, b Vector) float64 {
	return a.Angle(b).Radians()
}

// ApproxEqual compares two vectors within an absolute distance.
func ApproxEqual(a, b Vector, tol float64) bool {
	return a.Sub(b).Norm() <= tol
}

// Vec builds a vector from a 3-element array, the form used on the wire.
func Vec(a [3]float64) Vector {
	return Vector{X: a[0], Y: a[1], Z: a[2]}
}

// Array is the inverse of Vec.
func Array(v Vector) [3]float64 {
	return [3]float64{v.X, v.Y, v.Z}
}

func isFinite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
