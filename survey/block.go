package survey

import (
	"log"
	"math"
	"time"

	"github.com/kwv/blockori/blk"
	"gonum.org/v1/gonum/stat"
)

// SolveBlock forms a block from the pool using the configured root and
// weighting and summarizes how consistent the measured edges are with it
func SolveBlock(pool *blk.RelOriPool[string], sigmas map[blk.EdgeKey[string]]float64, cfg BlockConfig) *BlockSolution {
	opts := []blk.FormOption[string]{}
	if cfg.Root != "" {
		opts = append(opts, blk.WithRoot(cfg.Root))
	}
	if cfg.Weighting == WeightingSigma {
		fallback := cfg.FallbackSigma
		if fallback <= 0 {
			fallback = DefaultFallbackSigma
		}
		opts = append(opts, blk.WithWeights(blk.SigmaWeights(sigmas, fallback)))
	}

	res := blk.ViaSpanResult(pool, opts...)
	sol := &BlockSolution{
		Root:         res.Root,
		Orientations: res.Orientations,
		TreeEdges:    res.TreeEdges,
		Components:   res.Components,
		NumEdges:     pool.Len(),
		Formed:       time.Now(),
	}
	if res.IsEmpty() {
		return sol
	}

	sol.Residuals = res.Residuals(pool)
	gaps := make([]float64, 0, len(sol.Residuals))
	for _, r := range sol.Residuals {
		gaps = append(gaps, r.LocGap)
		sol.MaxLocGap = math.Max(sol.MaxLocGap, r.LocGap)
		sol.MaxAngleGap = math.Max(sol.MaxAngleGap, r.AngleGap)
	}
	if len(gaps) > 0 {
		sol.MeanLocGap = stat.Mean(gaps, nil)
	}

	log.Printf("Formed block of %d nodes from %d edges (root %s, max loc gap %.4g, max angle gap %.4g rad)",
		len(sol.Orientations), sol.NumEdges, sol.Root, sol.MaxLocGap, sol.MaxAngleGap)
	return sol
}
