package blk

import (
	"cmp"
	"fmt"

	"github.com/kwv/blockori/rigid"
)

// EdgeKey names the relationship between two nodes.
type EdgeKey[K cmp.Ordered] struct {
	I K
	J K
}

// NewEdgeKey builds the key (i, j) without reordering.
func NewEdgeKey[K cmp.Ordered](i, j K) EdgeKey[K] {
	return EdgeKey[K]{I: i, J: j}
}

// Canonical returns the key with the smaller node first.
func (k EdgeKey[K]) Canonical() EdgeKey[K] {
	if k.IsReversed() {
		return k.Reversed()
	}
	return k
}

// IsReversed reports whether J sorts before I.
func (k EdgeKey[K]) IsReversed() bool {
	return k.J < k.I
}

func (k EdgeKey[K]) IsSelf() bool {
	return k.I == k.J
}

func (k EdgeKey[K]) Reversed() EdgeKey[K] {
	return EdgeKey[K]{I: k.J, J: k.I}
}

func (k EdgeKey[K]) String() string {
	return fmt.Sprintf("(%v,%v)", k.I, k.J)
}

func compareEdgeKeys[K cmp.Ordered](a, b EdgeKey[K]) int {
	if c := cmp.Compare(a.I, b.I); c != 0 {
		return c
	}
	return cmp.Compare(a.J, b.J)
}

// EdgeOri is a keyed relative orientation: Ori is J with respect to I.
type EdgeOri[K cmp.Ordered] struct {
	Key EdgeKey[K]
	Ori rigid.Transform
}

// NullEdgeOri is returned for lookups that find nothing.
func NullEdgeOri[K cmp.Ordered]() EdgeOri[K] {
	return EdgeOri[K]{Ori: rigid.Null()}
}

func (e EdgeOri[K]) IsValid() bool {
	return e.Ori.IsValid()
}

// Principal returns the same relationship keyed with I < J.
func (e EdgeOri[K]) Principal() EdgeOri[K] {
	if !e.IsValid() || e.Key.IsSelf() || !e.Key.IsReversed() {
		return e
	}
	return EdgeOri[K]{Key: e.Key.Reversed(), Ori: e.Ori.Inverse()}
}

// OriPair is a measured orientation of node J relative to node I.
type OriPair[K cmp.Ordered] struct {
	I        K
	J        K
	OriJwrtI rigid.Transform
}

// IsValid rejects self-pairs and invalid transforms.
func (p OriPair[K]) IsValid() bool {
	return p.I != p.J && p.OriJwrtI.IsValid()
}

// PrincipalPair returns the pair with I < J, inverting the transform if the
// nodes had to be swapped. Invalid pairs come back unchanged.
func (p OriPair[K]) PrincipalPair() OriPair[K] {
	if !p.IsValid() || p.I < p.J {
		return p
	}
	return OriPair[K]{I: p.J, J: p.I, OriJwrtI: p.OriJwrtI.Inverse()}
}

func (p OriPair[K]) EdgeOri() EdgeOri[K] {
	return EdgeOri[K]{Key: NewEdgeKey(p.I, p.J), Ori: p.OriJwrtI}
}

func (p OriPair[K]) String() string {
	return fmt.Sprintf("%v->%v %s", p.I, p.J, p.OriJwrtI)
}
