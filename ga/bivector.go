package ga

import "math"

// BiVector is a grade-2 element (an oriented plane) stored by the
// components of its axial vector. Products follow the right-handed
// quaternion convention so that Exp(b) rotates about b.Dual().
type BiVector struct {
	X, Y, Z float64
}

// Wedge returns the outer product a ^ b.
func Wedge(a, b Vector) BiVector {
	c := a.Cross(b)
	return BiVector{X: c.X, Y: c.Y, Z: c.Z}
}

// BiVectorFromDual builds the plane whose axial vector is v.
func BiVectorFromDual(v Vector) BiVector {
	return BiVector{X: v.X, Y: v.Y, Z: v.Z}
}

// Dual returns the axial vector of the plane.
func (b BiVector) Dual() Vector {
	return Vector{X: b.X, Y: b.Y, Z: b.Z}
}

func (b BiVector) Add(o BiVector) BiVector {
	return BiVector{X: b.X + o.X, Y: b.Y + o.Y, Z: b.Z + o.Z}
}

func (b BiVector) Scale(s float64) BiVector {
	return BiVector{X: b.X * s, Y: b.Y * s, Z: b.Z * s}
}

// Magnitude is the area of the plane element.
func (b BiVector) Magnitude() float64 {
	return math.Sqrt(b.X*b.X + b.Y*b.Y + b.Z*b.Z)
}

func (b BiVector) IsValid() bool {
	return isFinite(b.X) && isFinite(b.Y) && isFinite(b.Z)
}
