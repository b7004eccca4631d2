package sqlstore

import (
	"context"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/pgvector/pgvector-go"

	"github.com/evergreensystems/evergreen-ai/pkg/register"
	"github.com/evergreensystems/evergreen-ai/pkg/types"
)

func init() {
	register.RegisterFunc[*Provider](RegisterKey{}, func(provider *Provider) {
		provider.stores.ChunkStore = NewChunkStore(provider)
	})
}

type ChunkStore struct {
	CommonFields
}

func NewChunkStore(provider SqlProviderAchieve) *ChunkStore {
	repo := &ChunkStore{}
	repo.SetProvider(provider)
	repo.SetTable(types.TABLE_CHUNK)
	repo.SetAllColumns("id", "document_id", "user_id", "position", "content", "embedding", "created_at")
	return repo
}

func (s *ChunkStore) BatchCreate(ctx context.Context, datas []*types.Chunk) error {
	if len(datas) == 0 {
		return nil
	}

	query := sq.Insert(s.GetTable()).
		Columns("id", "document_id", "user_id", "position", "content", "embedding", "created_at")

	now := time.Now().Unix()
	for _, v := range datas {
		if v.CreatedAt == 0 {
			v.CreatedAt = now
		}
		query = query.Values(v.ID, v.DocumentID, v.UserID, v.Position, v.Content, v.Embedding, v.CreatedAt)
	}

	queryString, args, err := query.ToSql()
	if err != nil {
		return ErrorSqlBuild(err)
	}

	_, err = s.GetMaster(ctx).Exec(queryString, args...)
	return err
}

// Query runs similarity search over one document's chunk pool.
// pgvector supported distance functions are:
// <-> - L2 distance
// <#> - (negative) inner product
// <=> - cosine distance
// <+> - L1 distance (added in 0.7.0)
func (s *ChunkStore) Query(ctx context.Context, documentID string, vector pgvector.Vector, limit uint64) ([]*types.RetrievedChunk, error) {
	cosColumn, vectorArgs, _ := sq.Expr("1 - (c.embedding <=> ?) as cos", vector).ToSql()
	query := sq.Select("c.id", "c.document_id", "d.title as document_title", "c.position", "c.content", cosColumn).
		From(s.GetTable() + " c").
		Join(types.TABLE_DOCUMENT.Name() + " d ON d.id = c.document_id").
		Where(sq.Eq{"c.document_id": documentID}).
		OrderBy("cos DESC").
		Limit(limit)

	queryString, args, err := query.ToSql()
	if err != nil {
		return nil, ErrorSqlBuild(err)
	}

	args = append(vectorArgs, args...)

	var res []*types.RetrievedChunk
	if err = s.GetReplica(ctx).Select(&res, queryString, args...); err != nil {
		return nil, err
	}
	return res, nil
}

func (s *ChunkStore) ListByDocument(ctx context.Context, documentID string) ([]types.Chunk, error) {
	query := sq.Select(s.GetAllColumns()...).From(s.GetTable()).
		Where(sq.Eq{"document_id": documentID}).
		OrderBy("position ASC")

	queryString, args, err := query.ToSql()
	if err != nil {
		return nil, ErrorSqlBuild(err)
	}

	var res []types.Chunk
	if err = s.GetReplica(ctx).Select(&res, queryString, args...); err != nil {
		return nil, err
	}
	return res, nil
}

func (s *ChunkStore) DeleteByDocument(ctx context.Context, documentID string) error {
	query := sq.Delete(s.GetTable()).Where(sq.Eq{"document_id": documentID})
	queryString, args, err := query.ToSql()
	if err != nil {
		return ErrorSqlBuild(err)
	}

	_, err = s.GetMaster(ctx).Exec(queryString, args...)
	return err
}
