package store

import (
	"context"

	"github.com/pgvector/pgvector-go"

	"github.com/evergreensystems/evergreen-ai/pkg/types"
)

type ConversationStore interface {
	Create(ctx context.Context, data *types.Conversation) error
	GetOne(ctx context.Context, id string) (*types.Conversation, error)
	List(ctx context.Context, opts types.ListConversationOptions, page, pageSize uint64) ([]types.Conversation, error)
	Total(ctx context.Context, opts types.ListConversationOptions) (int64, error)
	UpdateTitle(ctx context.Context, id, title string) error
	Touch(ctx context.Context, id string) error
	Delete(ctx context.Context, id string) error
	DeleteEmptyCreatedBefore(ctx context.Context, before int64) (int64, error)
}

type MessageStore interface {
	Create(ctx context.Context, data *types.Message) error
	GetOne(ctx context.Context, id string) (*types.Message, error)
	ListByConversation(ctx context.Context, conversationID string, page, pageSize uint64) ([]types.Message, error)
	TotalByConversation(ctx context.Context, conversationID string) (int64, error)
	DeleteByConversation(ctx context.Context, conversationID string) error
}

type DocumentStore interface {
	Create(ctx context.Context, data *types.Document) error
	GetOne(ctx context.Context, opts types.GetDocumentOptions) (*types.Document, error)
	List(ctx context.Context, opts types.GetDocumentOptions, page, pageSize uint64) ([]types.Document, error)
	Delete(ctx context.Context, id string) error
}

type ChunkStore interface {
	BatchCreate(ctx context.Context, datas []*types.Chunk) error
	Query(ctx context.Context, documentID string, vector pgvector.Vector, limit uint64) ([]*types.RetrievedChunk, error)
	ListByDocument(ctx context.Context, documentID string) ([]types.Chunk, error)
	DeleteByDocument(ctx context.Context, documentID string) error
}

type AccessTokenStore interface {
	Create(ctx context.Context, data types.AccessToken) error
	GetAccessToken(ctx context.Context, token string) (*types.AccessToken, error)
	Delete(ctx context.Context, userID string, token string) error
	ClearUserTokens(ctx context.Context, userID string) error
	DeleteExpired(ctx context.Context, before int64) (int64, error)
}
