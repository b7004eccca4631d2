package ai

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/evergreensystems/evergreen-ai/pkg/types"
)

func TestBuildGroundingBlockGroupsByDocument(t *testing.T) {
	chunks := []*types.RetrievedChunk{
		{ID: "c1", DocumentID: "d1", DocumentTitle: "Pricing Guide", Position: 2, Content: "Tier two costs more.", Cos: 0.9},
		{ID: "c2", DocumentID: "d2", DocumentTitle: "FAQ", Position: 1, Content: "Common questions.", Cos: 0.8},
		{ID: "c3", DocumentID: "d1", DocumentTitle: "Pricing Guide", Position: 5, Content: "Enterprise tier.", Cos: 0.7},
	}

	block := BuildGroundingBlock(chunks)

	assert.Contains(t, block, "[Document: Pricing Guide - Chunk 2]\nTier two costs more.")
	assert.Contains(t, block, "[Document: FAQ - Chunk 1]\nCommon questions.")
	assert.Contains(t, block, "[Document: Pricing Guide - Chunk 5]\nEnterprise tier.")

	// chunks of the same document stay together even when another document
	// ranks between them
	d1First := strings.Index(block, "Chunk 2]")
	d1Second := strings.Index(block, "Chunk 5]")
	d2 := strings.Index(block, "FAQ - Chunk 1]")
	assert.Less(t, d1First, d1Second)
	assert.Less(t, d1Second, d2)
}

func TestBuildGroundingBlockEmpty(t *testing.T) {
	assert.Equal(t, "", BuildGroundingBlock(nil))
}

func TestBuildSystemPrompt(t *testing.T) {
	// no retrieved material means no instruction block at all
	assert.Equal(t, "", BuildSystemPrompt(nil))
	assert.Equal(t, "", BuildSystemPrompt([]*types.RetrievedChunk{}))

	withChunks := BuildSystemPrompt([]*types.RetrievedChunk{
		{ID: "c1", DocumentID: "d1", DocumentTitle: "Doc", Position: 1, Content: "text", Cos: 0.5},
	})
	assert.True(t, strings.HasPrefix(withChunks, PROMPT_GROUNDED_ANSWER))
	assert.Contains(t, withChunks, PROMPT_CONTEXT_HEADER)
}
