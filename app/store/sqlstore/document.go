package sqlstore

import (
	"context"
	"time"

	sq "github.com/Masterminds/squirrel"

	"github.com/evergreensystems/evergreen-ai/pkg/register"
	"github.com/evergreensystems/evergreen-ai/pkg/types"
)

func init() {
	register.RegisterFunc[*Provider](RegisterKey{}, func(provider *Provider) {
		provider.stores.DocumentStore = NewDocumentStore(provider)
	})
}

type DocumentStore struct {
	CommonFields
}

func NewDocumentStore(provider SqlProviderAchieve) *DocumentStore {
	repo := &DocumentStore{}
	repo.SetProvider(provider)
	repo.SetTable(types.TABLE_DOCUMENT)
	repo.SetAllColumns("id", "user_id", "project_id", "knowledge_base_id", "title", "status", "chunk_count", "created_at", "updated_at")
	return repo
}

func (s *DocumentStore) Create(ctx context.Context, data *types.Document) error {
	now := time.Now().Unix()
	if data.CreatedAt == 0 {
		data.CreatedAt = now
	}
	if data.UpdatedAt == 0 {
		data.UpdatedAt = now
	}
	if data.Status == "" {
		data.Status = types.DOCUMENT_STATUS_NORMAL
	}
	query := sq.Insert(s.GetTable()).
		Columns("id", "user_id", "project_id", "knowledge_base_id", "title", "status", "chunk_count", "created_at", "updated_at").
		Values(data.ID, data.UserID, data.ProjectID, data.KnowledgeBaseID, data.Title, data.Status, data.ChunkCount, data.CreatedAt, data.UpdatedAt)

	queryString, args, err := query.ToSql()
	if err != nil {
		return ErrorSqlBuild(err)
	}

	_, err = s.GetMaster(ctx).Exec(queryString, args...)
	return err
}

func (s *DocumentStore) GetOne(ctx context.Context, opts types.GetDocumentOptions) (*types.Document, error) {
	query := sq.Select(s.GetAllColumns()...).From(s.GetTable())
	opts.Apply(&query)

	queryString, args, err := query.ToSql()
	if err != nil {
		return nil, ErrorSqlBuild(err)
	}

	var res types.Document
	if err = s.GetReplica(ctx).Get(&res, queryString, args...); err != nil {
		return nil, err
	}
	return &res, nil
}

func (s *DocumentStore) List(ctx context.Context, opts types.GetDocumentOptions, page, pageSize uint64) ([]types.Document, error) {
	query := sq.Select(s.GetAllColumns()...).From(s.GetTable()).OrderBy("created_at DESC")
	if page != types.NO_PAGING && pageSize != types.NO_PAGING {
		query = query.Limit(pageSize).Offset((page - 1) * pageSize)
	}
	opts.Apply(&query)

	queryString, args, err := query.ToSql()
	if err != nil {
		return nil, ErrorSqlBuild(err)
	}

	var res []types.Document
	if err = s.GetReplica(ctx).Select(&res, queryString, args...); err != nil {
		return nil, err
	}
	return res, nil
}

func (s *DocumentStore) Delete(ctx context.Context, id string) error {
	query := sq.Update(s.GetTable()).
		Set("status", types.DOCUMENT_STATUS_DELETED).
		Set("updated_at", time.Now().Unix()).
		Where(sq.Eq{"id": id})

	queryString, args, err := query.ToSql()
	if err != nil {
		return ErrorSqlBuild(err)
	}

	_, err = s.GetMaster(ctx).Exec(queryString, args...)
	return err
}
