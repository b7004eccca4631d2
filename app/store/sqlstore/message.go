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
		provider.stores.MessageStore = NewMessageStore(provider)
	})
}

type MessageStore struct {
	CommonFields
}

func NewMessageStore(provider SqlProviderAchieve) *MessageStore {
	repo := &MessageStore{}
	repo.SetProvider(provider)
	repo.SetTable(types.TABLE_MESSAGE)
	repo.SetAllColumns("id", "conversation_id", "user_id", "role", "content", "citations", "metadata", "created_at")
	return repo
}

func (s *MessageStore) Create(ctx context.Context, data *types.Message) error {
	if data.CreatedAt == 0 {
		data.CreatedAt = time.Now().Unix()
	}
	query := sq.Insert(s.GetTable()).
		Columns("id", "conversation_id", "user_id", "role", "content", "citations", "metadata", "created_at").
		Values(data.ID, data.ConversationID, data.UserID, data.Role, data.Content, data.Citations.String(), data.Metadata.String(), data.CreatedAt)

	queryString, args, err := query.ToSql()
	if err != nil {
		return ErrorSqlBuild(err)
	}

	_, err = s.GetMaster(ctx).Exec(queryString, args...)
	return err
}

func (s *MessageStore) GetOne(ctx context.Context, id string) (*types.Message, error) {
	query := sq.Select(s.GetAllColumns()...).From(s.GetTable()).Where(sq.Eq{"id": id})
	queryString, args, err := query.ToSql()
	if err != nil {
		return nil, ErrorSqlBuild(err)
	}

	var res types.Message
	if err = s.GetReplica(ctx).Get(&res, queryString, args...); err != nil {
		return nil, err
	}
	return &res, nil
}

// ListByConversation returns messages ordered oldest first. Ties on
// created_at fall back to the snowflake id, which is time sortable.
func (s *MessageStore) ListByConversation(ctx context.Context, conversationID string, page, pageSize uint64) ([]types.Message, error) {
	query := sq.Select(s.GetAllColumns()...).From(s.GetTable()).
		Where(sq.Eq{"conversation_id": conversationID}).
		OrderBy("created_at ASC", "id ASC")
	if page != types.NO_PAGING && pageSize != types.NO_PAGING {
		query = query.Limit(pageSize).Offset((page - 1) * pageSize)
	}

	queryString, args, err := query.ToSql()
	if err != nil {
		return nil, ErrorSqlBuild(err)
	}

	var res []types.Message
	if err = s.GetReplica(ctx).Select(&res, queryString, args...); err != nil {
		return nil, err
	}
	return res, nil
}

func (s *MessageStore) TotalByConversation(ctx context.Context, conversationID string) (int64, error) {
	query := sq.Select("COUNT(*)").From(s.GetTable()).Where(sq.Eq{"conversation_id": conversationID})
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

func (s *MessageStore) DeleteByConversation(ctx context.Context, conversationID string) error {
	query := sq.Delete(s.GetTable()).Where(sq.Eq{"conversation_id": conversationID})
	queryString, args, err := query.ToSql()
	if err != nil {
		return ErrorSqlBuild(err)
	}

	_, err = s.GetMaster(ctx).Exec(queryString, args...)
	return err
}
