package ai

import (
	"fmt"
	"strings"

	"github.com/evergreensystems/evergreen-ai/pkg/types"
)

const PROMPT_GROUNDED_ANSWER = `You are a knowledge assistant. Answer the user's question using the reference material below.
Rules:
1. Attribute claims to their source documents by name.
2. Synthesize across documents when more than one is relevant.
3. Point out contradictions between documents instead of papering over them.
4. When the material does not cover the question, say so instead of inventing facts.
5. Answer in the language the user asked in.`

const PROMPT_CONTEXT_HEADER = "Reference material:"

// BuildGroundingBlock renders retrieved chunks into the system prompt.
// Chunks are grouped per document. The first document keeps the position
// of its best-ranked chunk, so higher scored material appears earlier.
func BuildGroundingBlock(chunks []*types.RetrievedChunk) string {
	if len(chunks) == 0 {
		return ""
	}

	var (
		order  []string
		groups = make(map[string][]*types.RetrievedChunk)
	)
	for _, v := range chunks {
		if _, ok := groups[v.DocumentID]; !ok {
			order = append(order, v.DocumentID)
		}
		groups[v.DocumentID] = append(groups[v.DocumentID], v)
	}

	b := strings.Builder{}
	b.WriteString(PROMPT_CONTEXT_HEADER)
	b.WriteString("\n")
	for _, docID := range order {
		for _, chunk := range groups[docID] {
			b.WriteString(fmt.Sprintf("[Document: %s - Chunk %d]\n", chunk.DocumentTitle, chunk.Position))
			b.WriteString(chunk.Content)
			b.WriteString("\n\n")
		}
	}

	return strings.TrimSuffix(b.String(), "\n")
}

// BuildSystemPrompt joins the instruction preamble with the grounding
// block. Without retrieved chunks there is no block at all and the
// transcript carries no system message.
func BuildSystemPrompt(chunks []*types.RetrievedChunk) string {
	grounding := BuildGroundingBlock(chunks)
	if grounding == "" {
		return ""
	}
	return PROMPT_GROUNDED_ANSWER + "\n\n" + grounding
}
