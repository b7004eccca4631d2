package v1

import (
	"context"
	"database/sql"
	"net/http"

	"github.com/evergreensystems/evergreen-ai/app/core"
	"github.com/evergreensystems/evergreen-ai/pkg/errors"
	"github.com/evergreensystems/evergreen-ai/pkg/i18n"
	"github.com/evergreensystems/evergreen-ai/pkg/types"
	"github.com/evergreensystems/evergreen-ai/pkg/utils"
)

type ConversationLogic struct {
	ctx  context.Context
	core *core.Core
	UserInfo
}

func NewConversationLogic(ctx context.Context, core *core.Core) *ConversationLogic {
	return &ConversationLogic{
		ctx:      ctx,
		core:     core,
		UserInfo: SetupUserInfo(ctx, core),
	}
}

func (l *ConversationLogic) Create() (*types.Conversation, error) {
	conversation := &types.Conversation{
		ID:     utils.GenSpecIDStr(),
		UserID: l.GetUserInfo().UserID,
	}

	if err := l.core.Store().ConversationStore().Create(l.ctx, conversation); err != nil {
		return nil, errors.New("ConversationLogic.Create.ConversationStore.Create", i18n.ERROR_INTERNAL, err)
	}
	return conversation, nil
}

// GetOwned loads a conversation and rejects access by anyone but its owner.
// Another user's conversation id reads the same as a missing one.
func (l *ConversationLogic) GetOwned(id string) (*types.Conversation, error) {
	conversation, err := l.core.Store().ConversationStore().GetOne(l.ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.New("ConversationLogic.GetOwned.ConversationStore.GetOne", i18n.ERROR_CONVERSATION_NOT_FOUND, err).Code(http.StatusNotFound)
		}
		return nil, errors.New("ConversationLogic.GetOwned.ConversationStore.GetOne", i18n.ERROR_INTERNAL, err)
	}

	if conversation.UserID != l.GetUserInfo().UserID {
		return nil, errors.New("ConversationLogic.GetOwned.owner", i18n.ERROR_CONVERSATION_NOT_FOUND, nil).Code(http.StatusNotFound)
	}
	return conversation, nil
}

func (l *ConversationLogic) List(page, pageSize uint64) ([]types.Conversation, int64, error) {
	opts := types.ListConversationOptions{
		UserID: l.GetUserInfo().UserID,
	}

	list, err := l.core.Store().ConversationStore().List(l.ctx, opts, page, pageSize)
	if err != nil && err != sql.ErrNoRows {
		return nil, 0, errors.New("ConversationLogic.List.ConversationStore.List", i18n.ERROR_INTERNAL, err)
	}

	total, err := l.core.Store().ConversationStore().Total(l.ctx, opts)
	if err != nil {
		return nil, 0, errors.New("ConversationLogic.List.ConversationStore.Total", i18n.ERROR_INTERNAL, err)
	}

	return list, total, nil
}

// Delete removes the conversation and its messages in one transaction.
func (l *ConversationLogic) Delete(id string) error {
	if _, err := l.GetOwned(id); err != nil {
		return err
	}

	return l.core.Store().Transaction(l.ctx, func(ctx context.Context) error {
		if err := l.core.Store().MessageStore().DeleteByConversation(ctx, id); err != nil {
			return errors.New("ConversationLogic.Delete.MessageStore.DeleteByConversation", i18n.ERROR_INTERNAL, err)
		}
		if err := l.core.Store().ConversationStore().Delete(ctx, id); err != nil {
			return errors.New("ConversationLogic.Delete.ConversationStore.Delete", i18n.ERROR_INTERNAL, err)
		}
		return nil
	})
}

type ConversationHistory struct {
	List  []types.Message `json:"list"`
	Total int64           `json:"total"`
}

func (l *ConversationLogic) History(id string, page, pageSize uint64) (*ConversationHistory, error) {
	if _, err := l.GetOwned(id); err != nil {
		return nil, err
	}

	list, err := l.core.Store().MessageStore().ListByConversation(l.ctx, id, page, pageSize)
	if err != nil && err != sql.ErrNoRows {
		return nil, errors.New("ConversationLogic.History.MessageStore.ListByConversation", i18n.ERROR_INTERNAL, err)
	}

	total, err := l.core.Store().MessageStore().TotalByConversation(l.ctx, id)
	if err != nil {
		return nil, errors.New("ConversationLogic.History.MessageStore.TotalByConversation", i18n.ERROR_INTERNAL, err)
	}

	return &ConversationHistory{List: list, Total: total}, nil
}
