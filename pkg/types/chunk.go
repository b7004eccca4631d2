package types

import (
	sq "github.com/Masterminds/squirrel"
	"github.com/pgvector/pgvector-go"
)

// Document rows are owned by the ingestion subsystem; this service only
// reads them to resolve retrieval scopes. chunk_count is maintained by
// ingestion so scope expansion can skip chunkless documents without a join.
type Document struct {
	ID              string `json:"id" db:"id"`
	UserID          string `json:"user_id" db:"user_id"`
	ProjectID       string `json:"project_id" db:"project_id"`
	KnowledgeBaseID string `json:"knowledge_base_id" db:"knowledge_base_id"`
	Title           string `json:"title" db:"title"`
	Status          string `json:"status" db:"status"`
	ChunkCount      int    `json:"chunk_count" db:"chunk_count"`
	CreatedAt       int64  `json:"created_at" db:"created_at"`
	UpdatedAt       int64  `json:"updated_at" db:"updated_at"`
}

// Chunk is a pre-embedded slice of a document. Position is the chunk's
// 1-based order within its document and drives the "Chunk <n>" labels used
// in grounding blocks and citations.
type Chunk struct {
	ID         string          `json:"id" db:"id"`
	DocumentID string          `json:"document_id" db:"document_id"`
	UserID     string          `json:"user_id" db:"user_id"`
	Position   int             `json:"position" db:"position"`
	Content    string          `json:"content" db:"content"`
	Embedding  pgvector.Vector `json:"embedding" db:"embedding"`
	CreatedAt  int64           `json:"created_at" db:"created_at"`
}

// RetrievedChunk is the ephemeral, per-turn similarity search row: the chunk
// joined with its document title and the scope-local cosine score.
type RetrievedChunk struct {
	ID            string  `json:"id" db:"id"`
	DocumentID    string  `json:"document_id" db:"document_id"`
	DocumentTitle string  `json:"document_title" db:"document_title"`
	Position      int     `json:"position" db:"position"`
	Content       string  `json:"content" db:"content"`
	Cos           float32 `json:"cos" db:"cos"`
}

// RetrievalResult is the merged, deduplicated, capped chunk list for one
// turn plus retrieval bookkeeping for metadata and logs.
type RetrievalResult struct {
	Chunks       []*RetrievedChunk
	FailedScopes int
}

type GetDocumentOptions struct {
	ID              string
	IDs             []string
	UserID          string
	ProjectID       string
	KnowledgeBaseID string
	Status          string
	WithChunksOnly  bool
}

func (opts GetDocumentOptions) Apply(query *sq.SelectBuilder) {
	if opts.ID != "" {
		*query = query.Where(sq.Eq{"id": opts.ID})
	}
	if len(opts.IDs) > 0 {
		*query = query.Where(sq.Eq{"id": opts.IDs})
	}
	if opts.UserID != "" {
		*query = query.Where(sq.Eq{"user_id": opts.UserID})
	}
	if opts.ProjectID != "" {
		*query = query.Where(sq.Eq{"project_id": opts.ProjectID})
	}
	if opts.KnowledgeBaseID != "" {
		*query = query.Where(sq.Eq{"knowledge_base_id": opts.KnowledgeBaseID})
	}
	if opts.Status != "" {
		*query = query.Where(sq.Eq{"status": opts.Status})
	}
	if opts.WithChunksOnly {
		*query = query.Where(sq.Gt{"chunk_count": 0})
	}
}
