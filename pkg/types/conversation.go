package types

import (
	sq "github.com/Masterminds/squirrel"
)

type Conversation struct {
	ID        string `json:"id" db:"id"`
	UserID    string `json:"user_id" db:"user_id"`
	Title     string `json:"title" db:"title"` // empty until the first user turn names it
	CreatedAt int64  `json:"created_at" db:"created_at"`
	UpdatedAt int64  `json:"updated_at" db:"updated_at"`
}

type ListConversationOptions struct {
	UserID string
}

func (opts ListConversationOptions) Apply(query *sq.SelectBuilder) {
	if opts.UserID != "" {
		*query = query.Where(sq.Eq{"user_id": opts.UserID})
	}
}

// CONVERSATION_TITLE_LIMIT caps the lazily generated title taken from the
// first user message.
const CONVERSATION_TITLE_LIMIT = 100
