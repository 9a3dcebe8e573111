package survey

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadBlockCache_Missing(t *testing.T) {
	c, err := LoadBlockCache(filepath.Join(t.TempDir(), "none.json"))
	assert.NoError(t, err)
	assert.Nil(t, c)
}

func TestLoadBlockCache_Corrupt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.json")
	require.NoError(t, os.WriteFile(path, []byte("{"), 0644))
	_, err := LoadBlockCache(path)
	assert.Error(t, err)
}

func TestBlockCache_SaveLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "cache.json")
	sol := threeNodeSolution()

	before := time.Now().Unix()
	require.NoError(t, SaveBlockCache(path, NewBlockCache(sol)))

	c, err := LoadBlockCache(path)
	require.NoError(t, err)
	require.NotNil(t, c)
	assert.Equal(t, "a", c.Root)
	assert.Len(t, c.Nodes, 3)
	assert.GreaterOrEqual(t, c.LastUpdated, before)
	assert.Equal(t, 0.01, c.MaxLocGap)

	tr, ok := c.GetTransform("b")
	require.True(t, ok)
	assert.True(t, tr.NearlyEqual(sol.Orientations["b"], 1e-12))

	_, ok = c.GetTransform("zz")
	assert.False(t, ok)

	back := c.Solution()
	assert.True(t, back.IsConnected())
	assert.Equal(t, 1, back.Components)
	assert.Equal(t, []string{"a", "b", "c"}, back.NodeIDs())
}

func TestBlockCache_GetStatus(t *testing.T) {
	c := NewBlockCache(threeNodeSolution())
	status := c.GetStatus([]string{"a", "c", "d"})
	assert.Equal(t, "a", status.Root)
	assert.Equal(t, []string{"a", "b", "c"}, status.CachedNodes)
	assert.Equal(t, []string{"d"}, status.MissingNodes)

	var nilCache *BlockCache
	status = nilCache.GetStatus([]string{"a"})
	assert.Equal(t, []string{"a"}, status.MissingNodes)
	_, ok := nilCache.GetTransform("a")
	assert.False(t, ok)
}

func TestBlockCache_NeedsRefresh(t *testing.T) {
	var nilCache *BlockCache
	assert.True(t, nilCache.NeedsRefresh(time.Hour))

	c := NewBlockCache(threeNodeSolution())
	assert.True(t, c.NeedsRefresh(time.Hour), "never saved")

	c.LastUpdated = time.Now().Unix()
	assert.False(t, c.NeedsRefresh(time.Hour))

	c.LastUpdated = time.Now().Add(-2 * time.Hour).Unix()
	assert.True(t, c.NeedsRefresh(time.Hour))
}
