package survey

import (
	"context"
	"log"

	"golang.org/x/sync/errgroup"
)

// EstimateBatch estimates every target with at most cfg.Concurrency
// running at once. Results keep the order of targets. A cancelled context
// stops scheduling and returns its error.
func EstimateBatch(ctx context.Context, targets []Target, cfg EstimationConfig) ([]PointEstimate, error) {
	results := make([]PointEstimate, len(targets))

	g, gctx := errgroup.WithContext(ctx)
	limit := cfg.Concurrency
	if limit <= 0 {
		limit = DefaultConcurrency
	}
	g.SetLimit(limit)

	for i, t := range targets {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			results[i] = EstimateTarget(t, cfg)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	log.Printf("[DEBUG] estimated %d targets with concurrency %d", len(targets), limit)
	return results, nil
}
