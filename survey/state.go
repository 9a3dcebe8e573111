package survey

import (
	"fmt"
	"log"
	"sync"

	"github.com/kwv/blockori/blk"
)

// MeasurementStore keeps the latest measurement per edge and the most
// recently formed block, for the service loop and HTTP endpoints
type MeasurementStore struct {
	mu        sync.RWMutex
	edges     map[blk.EdgeKey[string]]Measurement
	order     []blk.EdgeKey[string]
	colors    map[string]string
	latest    *BlockSolution
	cachePath string
}

// NewMeasurementStore creates an empty store
func NewMeasurementStore() *MeasurementStore {
	return &MeasurementStore{
		edges:  make(map[blk.EdgeKey[string]]Measurement),
		colors: make(map[string]string),
	}
}

// NewMeasurementStoreWithCache creates a store that persists each formed
// block to cachePath and serves the cached block until a new one forms
func NewMeasurementStoreWithCache(cachePath string) *MeasurementStore {
	s := NewMeasurementStore()
	s.cachePath = cachePath
	if cachePath == "" {
		return s
	}
	cache, err := LoadBlockCache(cachePath)
	if err != nil {
		log.Printf("Warning: ignoring block cache: %v", err)
		return s
	}
	if cache != nil {
		s.latest = cache.Solution()
	}
	return s
}

// SetColor sets the display color for a node
func (s *MeasurementStore) SetColor(nodeID, hexColor string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.colors[nodeID] = hexColor
}

// Colors returns a copy of the node colors
func (s *MeasurementStore) Colors() map[string]string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]string, len(s.colors))
	for k, v := range s.colors {
		out[k] = v
	}
	return out
}

// Add stores a measurement, replacing any earlier one for the same edge
// in either direction
func (s *MeasurementStore) Add(m Measurement) error {
	if err := m.Validate(); err != nil {
		return err
	}
	key := blk.NewEdgeKey(m.From, m.Into).Canonical()

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.edges[key]; exists {
		log.Printf("[DEBUG] replacing measurement for edge %v", key)
	} else {
		s.order = append(s.order, key)
	}
	s.edges[key] = m
	return nil
}

// AddAll stores measurements in order, stopping at the first invalid one
func (s *MeasurementStore) AddAll(ms []Measurement) error {
	for i, m := range ms {
		if err := s.Add(m); err != nil {
			return fmt.Errorf("measurement %d: %w", i, err)
		}
	}
	return nil
}

// Count returns the number of distinct edges
func (s *MeasurementStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.edges)
}

// Measurements returns the stored measurements in first-seen edge order
func (s *MeasurementStore) Measurements() []Measurement {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Measurement, 0, len(s.order))
	for _, k := range s.order {
		out = append(out, s.edges[k])
	}
	return out
}

// Pool builds a relative orientation pool and per-edge sigmas
func (s *MeasurementStore) Pool() (*blk.RelOriPool[string], map[blk.EdgeKey[string]]float64) {
	ms := s.Measurements()
	pairs := make([]blk.OriPair[string], 0, len(ms))
	sigmas := make(map[blk.EdgeKey[string]]float64, len(ms))
	for _, m := range ms {
		pairs = append(pairs, m.OriPair())
		if m.Sigma > 0 {
			sigmas[blk.NewEdgeKey(m.From, m.Into).Canonical()] = m.Sigma
		}
	}
	return blk.PoolFrom(pairs), sigmas
}

// Form solves the block from the stored measurements. A connected result
// becomes the latest block and is written to the cache when configured.
func (s *MeasurementStore) Form(cfg BlockConfig) (*BlockSolution, error) {
	if s.Count() < max(cfg.MinEdges, 1) {
		return nil, fmt.Errorf("need at least %d edges, have %d", max(cfg.MinEdges, 1), s.Count())
	}

	pool, sigmas := s.Pool()
	sol := SolveBlock(pool, sigmas, cfg)
	if !sol.IsConnected() {
		return sol, fmt.Errorf("%w: %d components", ErrNotConnected, sol.Components)
	}

	s.mu.Lock()
	s.latest = sol
	cachePath := s.cachePath
	s.mu.Unlock()

	if cachePath != "" {
		if err := SaveBlockCache(cachePath, NewBlockCache(sol)); err != nil {
			log.Printf("Warning: failed to save block cache: %v", err)
		}
	}
	return sol, nil
}

// Latest returns the most recently formed block, or nil
func (s *MeasurementStore) Latest() *BlockSolution {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.latest
}
