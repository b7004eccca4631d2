package v1

import (
	"context"
	"database/sql"
	"log/slog"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/pgvector/pgvector-go"
	"github.com/samber/lo"
	"golang.org/x/sync/errgroup"

	"github.com/evergreensystems/evergreen-ai/app/core"
	"github.com/evergreensystems/evergreen-ai/pkg/errors"
	"github.com/evergreensystems/evergreen-ai/pkg/i18n"
	"github.com/evergreensystems/evergreen-ai/pkg/types"
)

type RetrievalLogic struct {
	ctx  context.Context
	core *core.Core
	UserInfo
}

func NewRetrievalLogic(ctx context.Context, core *core.Core) *RetrievalLogic {
	return &RetrievalLogic{
		ctx:      ctx,
		core:     core,
		UserInfo: SetupUserInfo(ctx, core),
	}
}

// ResolveContexts expands caller references into retrieval scopes.
// A reference that points at nothing the caller owns is dropped, not an
// error. Duplicate documents across references collapse into one scope.
func (l *RetrievalLogic) ResolveContexts(refs []types.ContextRef) (*types.ContextResolution, error) {
	res := &types.ContextResolution{
		Requested: len(refs),
	}

	seen := make(map[string]bool)
	addScope := func(documentID string) {
		if seen[documentID] {
			return
		}
		seen[documentID] = true
		res.Scopes = append(res.Scopes, types.RetrievalScope{DocumentID: documentID})
	}

	userID := l.GetUserInfo().UserID
	for _, ref := range refs {
		if err := ref.Type.Validate(); err != nil {
			return nil, errors.New("RetrievalLogic.ResolveContexts.Validate", i18n.ERROR_UNKNOWN_CONTEXT_TYPE, err).Code(http.StatusBadRequest)
		}

		resolved := false
		switch ref.Type {
		case types.CONTEXT_TYPE_DOCUMENT:
			_, err := l.core.Store().DocumentStore().GetOne(l.ctx, types.GetDocumentOptions{
				ID:             ref.ID,
				UserID:         userID,
				Status:         types.DOCUMENT_STATUS_NORMAL,
				WithChunksOnly: true,
			})
			if err != nil {
				if err != sql.ErrNoRows {
					return nil, errors.New("RetrievalLogic.ResolveContexts.DocumentStore.GetOne", i18n.ERROR_INTERNAL, err)
				}
			} else {
				addScope(ref.ID)
				resolved = true
			}
		case types.CONTEXT_TYPE_PROJECT, types.CONTEXT_TYPE_KNOWLEDGE_BASE:
			opts := types.GetDocumentOptions{
				UserID:         userID,
				Status:         types.DOCUMENT_STATUS_NORMAL,
				WithChunksOnly: true,
			}
			if ref.Type == types.CONTEXT_TYPE_PROJECT {
				opts.ProjectID = ref.ID
			} else {
				opts.KnowledgeBaseID = ref.ID
			}

			docs, err := l.core.Store().DocumentStore().List(l.ctx, opts, types.NO_PAGING, types.NO_PAGING)
			if err != nil && err != sql.ErrNoRows {
				return nil, errors.New("RetrievalLogic.ResolveContexts.DocumentStore.List", i18n.ERROR_INTERNAL, err)
			}
			for _, doc := range docs {
				addScope(doc.ID)
				resolved = true
			}
		}

		if resolved {
			res.Resolved++
		} else {
			res.Dropped++
		}
	}

	return res, nil
}

// EmbedQuery vectorizes the user message. A nil vector with nil error means
// the embedding provider failed and the turn should continue ungrounded.
func (l *RetrievalLogic) EmbedQuery(message string) *pgvector.Vector {
	timer := l.core.Metrics().RetrievalTimer("embedding")
	defer timer.ObserveDuration()

	ctx, cancel := context.WithTimeout(l.ctx, time.Duration(l.core.Cfg().RAG.EmbeddingTimeout)*time.Second)
	defer cancel()

	result, err := l.core.Srv().AI().EmbeddingForQuery(ctx, []string{message})
	if err != nil || len(result.Data) == 0 {
		slog.Error("failed to embed user query, continuing without retrieval",
			slog.Any("error", err))
		return nil
	}

	vector := pgvector.NewVector(result.Data[0])
	return &vector
}

// Retrieve fans out one similarity search per scope and merges the results.
// A failed scope only increments FailedScopes; survivors still count.
func (l *RetrievalLogic) Retrieve(scopes []types.RetrievalScope, vector pgvector.Vector) *types.RetrievalResult {
	timer := l.core.Metrics().RetrievalTimer("search")
	defer timer.ObserveDuration()

	cfg := l.core.Cfg().RAG

	var (
		mu     sync.Mutex
		failed int
	)
	results := make([][]*types.RetrievedChunk, len(scopes))

	g, ctx := errgroup.WithContext(l.ctx)
	g.SetLimit(8)
	for i, scope := range scopes {
		i, scope := i, scope
		g.Go(func() error {
			searchCtx, cancel := context.WithTimeout(ctx, time.Duration(cfg.ScopeSearchTimeout)*time.Second)
			defer cancel()

			chunks, err := l.core.Store().ChunkStore().Query(searchCtx, scope.DocumentID, vector, cfg.PerScopeLimit)
			if err != nil {
				mu.Lock()
				failed++
				mu.Unlock()
				l.core.Metrics().RetrievalScopeFailureInc()
				slog.Error("scope search failed",
					slog.String("document_id", scope.DocumentID),
					slog.String("error", err.Error()))
				return nil
			}
			results[i] = chunks
			return nil
		})
	}
	g.Wait()

	// flatten in scope order so the merge stays deterministic across runs
	return &types.RetrievalResult{
		Chunks:       mergeChunks(lo.Flatten(results), cfg.MergedLimit),
		FailedScopes: failed,
	}
}

// mergeChunks deduplicates by chunk id, sorts by score descending and caps
// the list. Scores are scope local, so the first sighting of a duplicate
// wins and ties keep their scope-then-rank order.
func mergeChunks(chunks []*types.RetrievedChunk, limit int) []*types.RetrievedChunk {
	seen := make(map[string]bool, len(chunks))
	merged := make([]*types.RetrievedChunk, 0, len(chunks))
	for _, v := range chunks {
		if seen[v.ID] {
			continue
		}
		seen[v.ID] = true
		merged = append(merged, v)
	}

	sort.SliceStable(merged, func(i, j int) bool {
		return merged[i].Cos > merged[j].Cos
	})

	if len(merged) > limit {
		merged = merged[:limit]
	}
	return merged
}
