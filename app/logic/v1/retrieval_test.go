package v1

import (
	"testing"

	"github.com/samber/lo"
	"github.com/stretchr/testify/assert"

	"github.com/evergreensystems/evergreen-ai/pkg/types"
)

func TestMergeChunksDeduplicates(t *testing.T) {
	// the same chunk surfaced by two scopes keeps its first occurrence,
	// scores are scope local and not comparable
	chunks := []*types.RetrievedChunk{
		{ID: "c1", DocumentID: "d1", Cos: 0.4},
		{ID: "c1", DocumentID: "d1", Cos: 0.9},
		{ID: "c2", DocumentID: "d2", Cos: 0.6},
	}

	merged := mergeChunks(chunks, 20)

	assert.Len(t, merged, 2)
	assert.Equal(t, "c2", merged[0].ID)
	assert.Equal(t, "c1", merged[1].ID)
	assert.Equal(t, float32(0.4), merged[1].Cos)
}

func TestMergeChunksSortsDescending(t *testing.T) {
	chunks := []*types.RetrievedChunk{
		{ID: "c1", Cos: 0.2},
		{ID: "c2", Cos: 0.8},
		{ID: "c3", Cos: 0.5},
	}

	merged := mergeChunks(chunks, 20)

	scores := lo.Map(merged, func(c *types.RetrievedChunk, _ int) float32 { return c.Cos })
	assert.Equal(t, []float32{0.8, 0.5, 0.2}, scores)
}

func TestMergeChunksCaps(t *testing.T) {
	var chunks []*types.RetrievedChunk
	for i := 0; i < 50; i++ {
		chunks = append(chunks, &types.RetrievedChunk{
			ID:  string(rune('a' + i)),
			Cos: float32(i) / 100,
		})
	}

	merged := mergeChunks(chunks, 20)

	assert.Len(t, merged, 20)
	// highest scores survive the cap
	assert.Equal(t, float32(0.49), merged[0].Cos)
}

func TestMergeChunksStableOnTies(t *testing.T) {
	// equal scores keep their scope-then-rank arrival order
	chunks := []*types.RetrievedChunk{
		{ID: "b", Cos: 0.5},
		{ID: "a", Cos: 0.5},
		{ID: "c", Cos: 0.7},
	}

	merged := mergeChunks(chunks, 20)

	ids := lo.Map(merged, func(c *types.RetrievedChunk, _ int) string { return c.ID })
	assert.Equal(t, []string{"c", "b", "a"}, ids)
}

func TestMergeChunksEmpty(t *testing.T) {
	assert.Empty(t, mergeChunks(nil, 20))
}
