package ga

import (
	"fmt"
	"math"
)

// Attitude is a unit spinor used as a rotation operator: v -> R v R⁻¹.
type Attitude struct {
	spin Spinor
}

// IdentityAttitude is the rotation that does nothing.
func IdentityAttitude() Attitude {
	return Attitude{spin: Spinor{S: 1}}
}

// NullAttitude returns the invalid attitude sentinel.
func NullAttitude() Attitude {
	return Attitude{spin: NullSpinor()}
}

// NewAttitude builds the rotation described by a physical angle: the
// direction is the rotation axis and the magnitude the angle in radians.
func NewAttitude(physAngle Vector) Attitude {
	if !IsValidVector(physAngle) {
		return NullAttitude()
	}
	return Attitude{spin: Exp(BiVectorFromDual(physAngle.Mul(0.5)))}
}

// AttitudeFromSpinor normalizes s into a rotation.
func AttitudeFromSpinor(s Spinor) Attitude {
	mag := s.Magnitude()
	if !s.IsValid() || mag == 0 {
		return NullAttitude()
	}
	return Attitude{spin: s.Scale(1 / mag)}
}

func (a Attitude) IsValid() bool {
	return a.spin.IsValid()
}

func (a Attitude) Spinor() Spinor {
	return a.spin
}

// PhysAngle returns the axis-angle vector of the rotation.
func (a Attitude) PhysAngle() Vector {
	if !a.IsValid() {
		return NullVector()
	}
	if a.spin.B.Magnitude() == 0 {
		return Vector{}
	}
	// the log plane carries half the rotation angle
	return Log(a.spin).B.Dual().Mul(2)
}

// Angle is the rotation angle in [0, π].
func (a Attitude) Angle() float64 {
	if !a.IsValid() {
		return math.NaN()
	}
	return 2 * math.Atan2(a.spin.B.Magnitude(), math.Abs(a.spin.S))
}

// Apply rotates v.
func (a Attitude) Apply(v Vector) Vector {
	if !a.IsValid() {
		return NullVector()
	}
	pure := Spinor{B: BiVectorFromDual(v)}
	out := a.spin.Mul(pure).Mul(a.spin.Reverse())
	return out.B.Dual()
}

// Mul returns the rotation that applies b first and then a.
func (a Attitude) Mul(b Attitude) Attitude {
	if !a.IsValid() || !b.IsValid() {
		return NullAttitude()
	}
	return AttitudeFromSpinor(a.spin.Mul(b.spin))
}

func (a Attitude) Inverse() Attitude {
	if !a.IsValid() {
		return NullAttitude()
	}
	return Attitude{spin: a.spin.Reverse()}
}

// AngleTo is the magnitude of the rotation taking a to b.
func (a Attitude) AngleTo(b Attitude) float64 {
	return b.Mul(a.Inverse()).Angle()
}

// NearlyEqual compares rotations, treating R and -R as the same attitude.
func (a Attitude) NearlyEqual(b Attitude, tol float64) bool {
	if !a.IsValid() || !b.IsValid() {
		return false
	}
	return a.AngleTo(b) <= tol
}

func (a Attitude) String() string {
	p := a.PhysAngle()
	return fmt.Sprintf("att[%.6g %.6g %.6g]", p.X, p.Y, p.Z)
}
