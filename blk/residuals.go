package blk

import (
	"cmp"

	"github.com/kwv/blockori/rigid"
)

// EdgeResidual is the disagreement between a measured edge and the
// relative orientation implied by a formed block.
type EdgeResidual[K cmp.Ordered] struct {
	Key      EdgeKey[K]
	LocGap   float64
	AngleGap float64
	InTree   bool
}

// Residuals compares every pool edge whose nodes are both in the block
// against the block's implied relative orientation. Tree edges reproduce
// their measurement exactly, so non-zero gaps show what the tree discarded.
func (r FormResult[K]) Residuals(pool *RelOriPool[K]) []EdgeResidual[K] {
	inTree := make(map[EdgeKey[K]]bool, len(r.TreeEdges))
	for _, k := range r.TreeEdges {
		inTree[k.Canonical()] = true
	}

	out := []EdgeResidual[K]{}
	for _, eo := range pool.EdgeOris() {
		oriI, okI := r.Orientations[eo.Key.I]
		oriJ, okJ := r.Orientations[eo.Key.J]
		if !okI || !okJ {
			continue
		}
		implied := Implied(oriI, oriJ)
		out = append(out, EdgeResidual[K]{
			Key:      eo.Key,
			LocGap:   implied.Loc.Sub(eo.Ori.Loc).Norm(),
			AngleGap: implied.Att.AngleTo(eo.Ori.Att),
			InTree:   inTree[eo.Key],
		})
	}
	return out
}

// Implied returns JwrtI from two orientations sharing a root.
func Implied(iWrtRoot, jWrtRoot rigid.Transform) rigid.Transform {
	return jWrtRoot.Mul(iWrtRoot.Inverse())
}
