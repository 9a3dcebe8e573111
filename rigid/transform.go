package rigid

import (
	"fmt"

	"github.com/kwv/blockori/ga"
)

// Transform expresses frame B with respect to frame A ("BwrtA"): Loc is
// the origin of B in A coordinates and Att rotates A-frame directions into B.
type Transform struct {
	Loc ga.Vector
	Att ga.Attitude
}

// New builds a transform from location and attitude.
func New(loc ga.Vector, att ga.Attitude) Transform {
	return Transform{Loc: loc, Att: att}
}

// Identity maps every frame onto itself.
func Identity() Transform {
	return Transform{Att: ga.IdentityAttitude()}
}

// Null returns the invalid transform sentinel.
func Null() Transform {
	return Transform{Loc: ga.NullVector(), Att: ga.NullAttitude()}
}

func (t Transform) IsValid() bool {
	return ga.IsValidVector(t.Loc) && t.Att.IsValid()
}

// Apply maps a point expressed in A into B.
func (t Transform) Apply(pntInA ga.Vector) ga.Vector {
	return t.Att.Apply(pntInA.Sub(t.Loc))
}

// ApplyDir maps a direction expressed in A into B.
func (t Transform) ApplyDir(dirInA ga.Vector) ga.Vector {
	return t.Att.Apply(dirInA)
}

// Inverse returns AwrtB.
func (t Transform) Inverse() Transform {
	if !t.IsValid() {
		return Null()
	}
	return Transform{
		Loc: t.Att.Apply(t.Loc).Mul(-1),
		Att: t.Att.Inverse(),
	}
}

// Mul composes t (CwrtB) with bWrtA, yielding CwrtA.
func (t Transform) Mul(bWrtA Transform) Transform {
	if !t.IsValid() || !bWrtA.IsValid() {
		return Null()
	}
	return Transform{
		Loc: bWrtA.Loc.Add(bWrtA.Att.Inverse().Apply(t.Loc)),
		Att: t.Att.Mul(bWrtA.Att),
	}
}

// Compose is the function form of cWrtB.Mul(bWrtA).
func Compose(cWrtB, bWrtA Transform) Transform {
	return cWrtB.Mul(bWrtA)
}

// NearlyEqual compares location (absolute) and attitude (radians).
func (t Transform) NearlyEqual(o Transform, tol float64) bool {
	if !t.IsValid() || !o.IsValid() {
		return false
	}
	return ga.ApproxEqual(t.Loc, o.Loc, tol) && t.Att.NearlyEqual(o.Att, tol)
}

func (t Transform) String() string {
	return fmt.Sprintf("loc[%.6g %.6g %.6g] %s", t.Loc.X, t.Loc.Y, t.Loc.Z, t.Att)
}
