package v1

import (
	"fmt"
	"strings"

	"github.com/evergreensystems/evergreen-ai/pkg/types"
	"github.com/evergreensystems/evergreen-ai/pkg/utils"
)

const citationProbeLimit = 50

// ExtractCitations matches the final response text against the chunks that
// grounded the turn. A chunk contributes at most one citation, and only
// when the link is detectable: the chunk's leading text quoted verbatim,
// an explicit "Chunk <n>" reference, or the document title. Chunks never
// referenced produce nothing. Rank order of the input is preserved.
func ExtractCitations(response string, chunks []*types.RetrievedChunk) types.MessageCitations {
	if response == "" || len(chunks) == 0 {
		return nil
	}

	lowered := strings.ToLower(response)

	var citations types.MessageCitations
	for _, chunk := range chunks {
		if !matchesChunk(response, lowered, chunk) {
			continue
		}

		citations = append(citations, types.Citation{
			ChunkID:    chunk.ID,
			DocumentID: chunk.DocumentID,
			Excerpt:    utils.TruncateRunes(chunk.Content, types.CITATION_EXCERPT_LIMIT),
			Label:      fmt.Sprintf("%s - Chunk %d", chunk.DocumentTitle, chunk.Position),
		})
	}
	return citations
}

func matchesChunk(response, lowered string, chunk *types.RetrievedChunk) bool {
	probe := strings.ToLower(utils.TruncateRunes(strings.TrimSpace(chunk.Content), citationProbeLimit))
	if probe != "" && strings.Contains(lowered, probe) {
		return true
	}

	if strings.Contains(response, fmt.Sprintf("Chunk %d", chunk.Position)) {
		return true
	}

	if chunk.DocumentTitle != "" && strings.Contains(response, chunk.DocumentTitle) {
		return true
	}

	return false
}
