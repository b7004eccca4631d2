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
		provider.stores.ConversationStore = NewConversationStore(provider)
	})
}

type ConversationStore struct {
	CommonFields
}

func NewConversationStore(provider SqlProviderAchieve) *ConversationStore {
	repo := &ConversationStore{}
	repo.SetProvider(provider)
	repo.SetTable(types.TABLE_CONVERSATION)
	repo.SetAllColumns("id", "user_id", "title", "created_at", "updated_at")
	return repo
}

func (s *ConversationStore) Create(ctx context.Context, data *types.Conversation) error {
	now := time.Now().Unix()
	if data.CreatedAt == 0 {
		data.CreatedAt = now
	}
	if data.UpdatedAt == 0 {
		data.UpdatedAt = now
	}
	query := sq.Insert(s.GetTable()).
		Columns("id", "user_id", "title", "created_at", "updated_at").
		Values(data.ID, data.UserID, data.Title, data.CreatedAt, data.UpdatedAt)

	queryString, args, err := query.ToSql()
	if err != nil {
		return ErrorSqlBuild(err)
	}

	_, err = s.GetMaster(ctx).Exec(queryString, args...)
	return err
}

func (s *ConversationStore) GetOne(ctx context.Context, id string) (*types.Conversation, error) {
	query := sq.Select(s.GetAllColumns()...).From(s.GetTable()).Where(sq.Eq{"id": id})
	queryString, args, err := query.ToSql()
	if err != nil {
		return nil, ErrorSqlBuild(err)
	}

	var res types.Conversation
	if err = s.GetReplica(ctx).Get(&res, queryString, args...); err != nil {
		return nil, err
	}
	return &res, nil
}

func (s *ConversationStore) List(ctx context.Context, opts types.ListConversationOptions, page, pageSize uint64) ([]types.Conversation, error) {
	query := sq.Select(s.GetAllColumns()...).From(s.GetTable()).OrderBy("updated_at DESC")
	if page != types.NO_PAGING && pageSize != types.NO_PAGING {
		query = query.Limit(pageSize).Offset((page - 1) * pageSize)
	}
	opts.Apply(&query)

	queryString, args, err := query.ToSql()
	if err != nil {
		return nil, ErrorSqlBuild(err)
	}

	var res []types.Conversation
	if err = s.GetReplica(ctx).Select(&res, queryString, args...); err != nil {
		return nil, err
	}
	return res, nil
}

func (s *ConversationStore) Total(ctx context.Context, opts types.ListConversationOptions) (int64, error) {
	query := sq.Select("COUNT(*)").From(s.GetTable())
	opts.Apply(&query)

	queryString, args, err := query.ToSql()
	if err != nil {
		return 0, ErrorSqlBuild(err)
	}

	var total int64
	if err = s.GetReplica(ctx).Get(&total, queryString, args...); err != nil {
		return 0, err
	}
	return total, nil
}

func (s *ConversationStore) UpdateTitle(ctx context.Context, id, title string) error {
	query := sq.Update(s.GetTable()).
		Set("title", title).
		Set("updated_at", time.Now().Unix()).
		Where(sq.Eq{"id": id})

	queryString, args, err := query.ToSql()
	if err != nil {
		return ErrorSqlBuild(err)
	}

	_, err = s.GetMaster(ctx).Exec(queryString, args...)
	return err
}

func (s *ConversationStore) Touch(ctx context.Context, id string) error {
	query := sq.Update(s.GetTable()).
		Set("updated_at", time.Now().Unix()).
		Where(sq.Eq{"id": id})

	queryString, args, err := query.ToSql()
	if err != nil {
		return ErrorSqlBuild(err)
	}

	_, err = s.GetMaster(ctx).Exec(queryString, args...)
	return err
}

// DeleteEmptyCreatedBefore removes conversations that never received a
// message and have been idle since before the given unix time.
func (s *ConversationStore) DeleteEmptyCreatedBefore(ctx context.Context, before int64) (int64, error) {
	query := sq.Delete(s.GetTable()).
		Where(sq.Lt{"created_at": before}).
		Where(sq.Expr("NOT EXISTS (SELECT 1 FROM " + types.TABLE_MESSAGE.Name() + " m WHERE m.conversation_id = " + s.GetTable() + ".id)"))

	queryString, args, err := query.ToSql()
	if err != nil {
		return 0, ErrorSqlBuild(err)
	}

	result, err := s.GetMaster(ctx).Exec(queryString, args...)
	if err != nil {
		return 0, err
	}
	affected, _ := result.RowsAffected()
	return affected, nil
}

func (s *ConversationStore) Delete(ctx context.Context, id string) error {
	query := sq.Delete(s.GetTable()).Where(sq.Eq{"id": id})
	queryString, args, err := query.ToSql()
	if err != nil {
		return ErrorSqlBuild(err)
	}

	_, err = s.GetMaster(ctx).Exec(queryString, args...)
	return err
}
