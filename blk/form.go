package blk

import (
	"cmp"
	"fmt"
	"log"
	"math"
	"slices"

	"github.com/kwv/blockori/rigid"
	"gonum.org/v1/gonum/graph"
	"gonum.org/v1/gonum/graph/path"
	"gonum.org/v1/gonum/graph/simple"
	"gonum.org/v1/gonum/graph/topo"
)

// tieBreak is the relative weight added per edge rank; tieFloor stands in
// for the magnitude of zero weights.
const (
	tieBreak = 1e-9
	tieFloor = 1e-300
)

// EdgeWeightFunc scores an edge for the spanning tree. Lower is preferred.
type EdgeWeightFunc[K cmp.Ordered] func(key EdgeKey[K], ori rigid.Transform) float64

// UniformWeight treats every edge the same.
func UniformWeight[K cmp.Ordered]() EdgeWeightFunc[K] {
	return func(EdgeKey[K], rigid.Transform) float64 { return 1.0 }
}

// SigmaWeights uses per-edge measurement uncertainty as the weight, so the
// tree keeps the most precise edges. Edges without a sigma get fallback.
func SigmaWeights[K cmp.Ordered](sigmas map[EdgeKey[K]]float64, fallback float64) EdgeWeightFunc[K] {
	return func(key EdgeKey[K], _ rigid.Transform) float64 {
		if s, ok := sigmas[key.Canonical()]; ok && s > 0 {
			return s
		}
		return fallback
	}
}

type formConfig[K cmp.Ordered] struct {
	weight  EdgeWeightFunc[K]
	root    K
	hasRoot bool
	nodes   []K
}

// FormOption adjusts block formation.
type FormOption[K cmp.Ordered] func(*formConfig[K])

// WithWeights sets the edge weighting used by the spanning tree.
func WithWeights[K cmp.Ordered](fn EdgeWeightFunc[K]) FormOption[K] {
	return func(c *formConfig[K]) {
		if fn != nil {
			c.weight = fn
		}
	}
}

// WithRoot picks the node that receives the identity orientation. By
// default the smallest key is the root.
func WithRoot[K cmp.Ordered](root K) FormOption[K] {
	return func(c *formConfig[K]) {
		c.root = root
		c.hasRoot = true
	}
}

// WithNodes adds nodes that may have no edges. Any such node leaves the
// block disconnected unless it is the only node.
func WithNodes[K cmp.Ordered](nodes ...K) FormOption[K] {
	return func(c *formConfig[K]) {
		c.nodes = append(c.nodes, nodes...)
	}
}

// FormResult is a formed block along with how it was formed.
type FormResult[K cmp.Ordered] struct {
	// Orientations maps each node to its orientation with respect to Root.
	Orientations map[K]rigid.Transform
	Root         K
	TreeEdges    []EdgeKey[K]
	Components   int
}

func (r FormResult[K]) IsEmpty() bool {
	return len(r.Orientations) == 0
}

// ViaSpan forms a block of node orientations, all expressed relative to a
// common root, by walking a minimum spanning tree of the pool. A pool whose
// graph is not connected yields an empty map.
func ViaSpan[K cmp.Ordered](pool *RelOriPool[K], opts ...FormOption[K]) map[K]rigid.Transform {
	return ViaSpanResult(pool, opts...).Orientations
}

// ViaSpanResult is ViaSpan with the tree edges and root reported.
func ViaSpanResult[K cmp.Ordered](pool *RelOriPool[K], opts ...FormOption[K]) FormResult[K] {
	cfg := formConfig[K]{weight: UniformWeight[K]()}
	for _, opt := range opts {
		opt(&cfg)
	}

	res := FormResult[K]{Orientations: make(map[K]rigid.Transform)}

	keys := append(pool.NodeKeys(), cfg.nodes...)
	slices.Sort(keys)
	keys = slices.Compact(keys)
	if len(keys) == 0 {
		return res
	}

	ids := make(map[K]int64, len(keys))
	g := simple.NewWeightedUndirectedGraph(0, math.Inf(1))
	for i, k := range keys {
		ids[k] = int64(i)
		g.AddNode(simple.Node(i))
	}
	for rank, eo := range pool.EdgeOris() {
		// equal weights break toward earlier keys so the tree is unique
		w := cfg.weight(eo.Key, eo.Ori)
		w += float64(rank) * tieBreak * math.Max(math.Abs(w), tieFloor)
		g.SetWeightedEdge(g.NewWeightedEdge(simple.Node(ids[eo.Key.I]), simple.Node(ids[eo.Key.J]), w))
	}

	res.Components = len(topo.ConnectedComponents(g))
	if res.Components != 1 {
		log.Printf("[DEBUG] block graph has %d components over %d nodes, not forming", res.Components, len(keys))
		return res
	}

	// Prim adds the nodes of g to tree itself
	tree := simple.NewWeightedUndirectedGraph(0, math.Inf(1))
	path.Prim(tree, g)

	rootID := int64(0)
	if cfg.hasRoot {
		if id, ok := ids[cfg.root]; ok {
			rootID = id
		} else {
			log.Printf("Warning: requested root %v is not in the block, using %v", cfg.root, keys[0])
		}
	}
	res.Root = keys[rootID]
	res.Orientations[res.Root] = rigid.Identity()

	queue := []int64{rootID}
	for len(queue) > 0 {
		from := queue[0]
		queue = queue[1:]

		nbrs := graph.NodesOf(tree.From(from))
		slices.SortFunc(nbrs, func(a, b graph.Node) int { return cmp.Compare(a.ID(), b.ID()) })
		for _, n := range nbrs {
			into := n.ID()
			fromKey, intoKey := keys[from], keys[into]
			if _, done := res.Orientations[intoKey]; done {
				continue
			}
			eo := pool.EdgeOriFor(fromKey, intoKey)
			if !eo.IsValid() {
				panic(fmt.Sprintf("blk: spanning tree edge %v missing from pool", NewEdgeKey(fromKey, intoKey)))
			}
			res.Orientations[intoKey] = eo.Ori.Mul(res.Orientations[fromKey])
			res.TreeEdges = append(res.TreeEdges, NewEdgeKey(fromKey, intoKey))
			queue = append(queue, into)
		}
	}

	return res
}
