package ga

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/num/quat"
)

// Spinor is the even-grade part of the algebra: a scalar plus a bivector.
// Arithmetic is carried out on the isomorphic quaternion.
type Spinor struct {
	S float64
	B BiVector
}

// NullSpinor returns the invalid spinor sentinel.
func NullSpinor() Spinor {
	nan := math.NaN()
	return Spinor{S: nan, B: BiVector{X: nan, Y: nan, Z: nan}}
}

func (s Spinor) quat() quat.Number {
	return quat.Number{Real: s.S, Imag: s.B.X, Jmag: s.B.Y, Kmag: s.B.Z}
}

func spinorOf(q quat.Number) Spinor {
	return Spinor{S: q.Real, B: BiVector{X: q.Imag, Y: q.Jmag, Z: q.Kmag}}
}

func (s Spinor) IsValid() bool {
	return isFinite(s.S) && s.B.IsValid()
}

// Mul is the geometric product s*o.
func (s Spinor) Mul(o Spinor) Spinor {
	return spinorOf(quat.Mul(s.quat(), o.quat()))
}

// Reverse flips the sign of the bivector part.
func (s Spinor) Reverse() Spinor {
	return spinorOf(quat.Conj(s.quat()))
}

// Inverse returns the multiplicative inverse or the null spinor for zero.
func (s Spinor) Inverse() Spinor {
	if !s.IsValid() || s.Magnitude() == 0 {
		return NullSpinor()
	}
	return spinorOf(quat.Inv(s.quat()))
}

func (s Spinor) Magnitude() float64 {
	return quat.Abs(s.quat())
}

func (s Spinor) Scale(f float64) Spinor {
	return spinorOf(quat.Scale(f, s.quat()))
}

// Exp returns the spinor exp(b).
func Exp(b BiVector) Spinor {
	return spinorOf(quat.Exp(quat.Number{Imag: b.X, Jmag: b.Y, Kmag: b.Z}))
}

// Log returns the principal logarithm: log magnitude in S, angle-weighted plane in B.
func Log(s Spinor) Spinor {
	if !s.IsValid() || s.Magnitude() == 0 {
		return NullSpinor()
	}
	return spinorOf(quat.Log(s.quat()))
}

func (s Spinor) String() string {
	return fmt.Sprintf("(%.6g + [%.6g %.6g %.6g])", s.S, s.B.X, s.B.Y, s.B.Z)
}
