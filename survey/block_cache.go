package survey

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/kwv/blockori/rigid"
)

// DefaultBlockCachePath is the default path for the formed block cache
const DefaultBlockCachePath = ".block-cache.json"

// BlockCache is the JSON form of a formed block
type BlockCache struct {
	Root        string                     `json:"root"`
	Nodes       map[string]NodeOrientation `json:"nodes"`
	MaxLocGap   float64                    `json:"maxLocGap"`
	LastUpdated int64                      `json:"lastUpdated"`
}

// NewBlockCache flattens a solution for saving
func NewBlockCache(sol *BlockSolution) *BlockCache {
	c := &BlockCache{Nodes: make(map[string]NodeOrientation)}
	if sol == nil {
		return c
	}
	c.Root = sol.Root
	c.MaxLocGap = sol.MaxLocGap
	for _, n := range sol.Nodes() {
		c.Nodes[n.NodeID] = n
	}
	return c
}

// LoadBlockCache loads a block cache; a missing file is not an error
func LoadBlockCache(path string) (*BlockCache, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading block cache: %w", err)
	}

	var c BlockCache
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("parsing block cache: %w", err)
	}
	if c.Nodes == nil {
		c.Nodes = make(map[string]NodeOrientation)
	}
	return &c, nil
}

// SaveBlockCache writes the cache, stamping LastUpdated
func SaveBlockCache(path string, c *BlockCache) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("creating cache directory: %w", err)
	}

	c.LastUpdated = time.Now().Unix()

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling block cache: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing block cache: %w", err)
	}
	return nil
}

// GetTransform returns a node's orientation relative to the root, or
// false when the node is not cached
func (c *BlockCache) GetTransform(nodeID string) (rigid.Transform, bool) {
	if c == nil {
		return rigid.Null(), false
	}
	n, ok := c.Nodes[nodeID]
	if !ok {
		return rigid.Null(), false
	}
	return n.Transform(), true
}

// Solution rebuilds a BlockSolution without residuals
func (c *BlockCache) Solution() *BlockSolution {
	sol := &BlockSolution{
		Root:         c.Root,
		Orientations: make(map[string]rigid.Transform, len(c.Nodes)),
		MaxLocGap:    c.MaxLocGap,
		Formed:       time.Unix(c.LastUpdated, 0),
	}
	if len(c.Nodes) > 0 {
		sol.Components = 1
	}
	for id, n := range c.Nodes {
		sol.Orientations[id] = n.Transform()
	}
	return sol
}

// BlockStatus describes cache coverage
type BlockStatus struct {
	Root         string    `json:"root"`
	CachedNodes  []string  `json:"cachedNodes"`
	MissingNodes []string  `json:"missingNodes"`
	LastUpdated  time.Time `json:"lastUpdated"`
}

// GetStatus reports which expected nodes are in the cache
func (c *BlockCache) GetStatus(expected []string) BlockStatus {
	status := BlockStatus{}
	if c == nil {
		status.MissingNodes = expected
		return status
	}

	status.Root = c.Root
	status.LastUpdated = time.Unix(c.LastUpdated, 0)
	for id := range c.Nodes {
		status.CachedNodes = append(status.CachedNodes, id)
	}
	sort.Strings(status.CachedNodes)
	for _, id := range expected {
		if _, ok := c.Nodes[id]; !ok {
			status.MissingNodes = append(status.MissingNodes, id)
		}
	}
	return status
}

// NeedsRefresh checks if the cached block is older than maxAge
func (c *BlockCache) NeedsRefresh(maxAge time.Duration) bool {
	if c == nil || c.LastUpdated == 0 {
		return true
	}
	return time.Since(time.Unix(c.LastUpdated, 0)) > maxAge
}
