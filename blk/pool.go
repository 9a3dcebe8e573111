package blk

import (
	"cmp"
	"log"
	"slices"

	"github.com/kwv/blockori/rigid"
)

// RelOriPool is an immutable set of relative orientations keyed by
// canonical edge. Lookups work in either direction.
type RelOriPool[K cmp.Ordered] struct {
	oris       map[EdgeKey[K]]rigid.Transform
	duplicates int
}

// PoolFrom builds a pool from measured pairs. Pairs are canonicalized and a
// later pair for the same edge replaces an earlier one. Invalid pairs are
// skipped.
func PoolFrom[K cmp.Ordered](pairs []OriPair[K]) *RelOriPool[K] {
	p := &RelOriPool[K]{oris: make(map[EdgeKey[K]]rigid.Transform, len(pairs))}
	for _, pair := range pairs {
		p.add(pair.EdgeOri())
	}
	return p
}

// PoolFromEdgeOris builds a pool from keyed orientations.
func PoolFromEdgeOris[K cmp.Ordered](eos []EdgeOri[K]) *RelOriPool[K] {
	p := &RelOriPool[K]{oris: make(map[EdgeKey[K]]rigid.Transform, len(eos))}
	for _, eo := range eos {
		p.add(eo)
	}
	return p
}

func (p *RelOriPool[K]) add(eo EdgeOri[K]) {
	if eo.Key.IsSelf() || !eo.IsValid() {
		log.Printf("Warning: skipping invalid relative orientation %v", eo.Key)
		return
	}
	eo = eo.Principal()
	if _, exists := p.oris[eo.Key]; exists {
		p.duplicates++
		log.Printf("Warning: duplicate relative orientation for edge %v, keeping the later one", eo.Key)
	}
	p.oris[eo.Key] = eo.Ori
}

// Len is the number of distinct edges.
func (p *RelOriPool[K]) Len() int {
	if p == nil {
		return 0
	}
	return len(p.oris)
}

// Duplicates counts edges that were supplied more than once.
func (p *RelOriPool[K]) Duplicates() int {
	if p == nil {
		return 0
	}
	return p.duplicates
}

// EdgeOriFor returns the orientation of k2 with respect to k1. Equal keys
// give identity, a reversed query gives the inverse and a missing edge gives
// the null sentinel.
func (p *RelOriPool[K]) EdgeOriFor(k1, k2 K) EdgeOri[K] {
	key := NewEdgeKey(k1, k2)
	if k1 == k2 {
		return EdgeOri[K]{Key: key, Ori: rigid.Identity()}
	}
	if p == nil {
		return NullEdgeOri[K]()
	}
	ori, ok := p.oris[key.Canonical()]
	if !ok {
		return NullEdgeOri[K]()
	}
	if key.IsReversed() {
		ori = ori.Inverse()
	}
	return EdgeOri[K]{Key: key, Ori: ori}
}

// Keys returns every canonical edge key in sorted order.
func (p *RelOriPool[K]) Keys() []EdgeKey[K] {
	if p == nil {
		return nil
	}
	keys := make([]EdgeKey[K], 0, len(p.oris))
	for k := range p.oris {
		keys = append(keys, k)
	}
	slices.SortFunc(keys, compareEdgeKeys[K])
	return keys
}

// NodeKeys returns the distinct nodes referenced by any edge, sorted.
func (p *RelOriPool[K]) NodeKeys() []K {
	seen := make(map[K]struct{})
	nodes := []K{}
	for _, k := range p.Keys() {
		for _, n := range []K{k.I, k.J} {
			if _, ok := seen[n]; !ok {
				seen[n] = struct{}{}
				nodes = append(nodes, n)
			}
		}
	}
	slices.Sort(nodes)
	return nodes
}

// EdgeOris returns the canonical orientations in key order.
func (p *RelOriPool[K]) EdgeOris() []EdgeOri[K] {
	keys := p.Keys()
	out := make([]EdgeOri[K], 0, len(keys))
	for _, k := range keys {
		out = append(out, EdgeOri[K]{Key: k, Ori: p.oris[k]})
	}
	return out
}
