package v1

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/pgvector/pgvector-go"
	openai "github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"

	"github.com/evergreensystems/evergreen-ai/app/core"
	"github.com/evergreensystems/evergreen-ai/app/core/srv"
	"github.com/evergreensystems/evergreen-ai/app/store"
	"github.com/evergreensystems/evergreen-ai/pkg/ai"
	"github.com/evergreensystems/evergreen-ai/pkg/errors"
	"github.com/evergreensystems/evergreen-ai/pkg/types"
	"github.com/evergreensystems/evergreen-ai/pkg/types/protocol"
	"github.com/evergreensystems/evergreen-ai/pkg/utils"
)

func TestMain(m *testing.M) {
	utils.SetupIDWorker(1)
	os.Exit(m.Run())
}

// memory stores backing turn tests without postgres

type memStore struct {
	conversations *memConversationStore
	messages      *memMessageStore
	documents     *memDocumentStore
	chunks        *memChunkStore
}

func newMemStore() *memStore {
	return &memStore{
		conversations: &memConversationStore{rows: make(map[string]*types.Conversation)},
		messages:      &memMessageStore{},
		documents:     &memDocumentStore{},
		chunks:        &memChunkStore{rows: make(map[string][]*types.RetrievedChunk)},
	}
}

func (s *memStore) Transaction(ctx context.Context, next func(ctx context.Context) error) error {
	return next(ctx)
}

func (s *memStore) ConversationStore() store.ConversationStore { return s.conversations }
func (s *memStore) MessageStore() store.MessageStore           { return s.messages }
func (s *memStore) DocumentStore() store.DocumentStore         { return s.documents }
func (s *memStore) ChunkStore() store.ChunkStore               { return s.chunks }
func (s *memStore) AccessTokenStore() store.AccessTokenStore   { return nil }
func (s *memStore) Install() error                             { return nil }

type memConversationStore struct {
	mu   sync.Mutex
	rows map[string]*types.Conversation
}

func (s *memConversationStore) Create(ctx context.Context, data *types.Conversation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rows[data.ID] = data
	return nil
}

func (s *memConversationStore) GetOne(ctx context.Context, id string) (*types.Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	row, ok := s.rows[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	cp := *row
	return &cp, nil
}

func (s *memConversationStore) List(ctx context.Context, opts types.ListConversationOptions, page, pageSize uint64) ([]types.Conversation, error) {
	return nil, nil
}

func (s *memConversationStore) Total(ctx context.Context, opts types.ListConversationOptions) (int64, error) {
	return 0, nil
}

func (s *memConversationStore) UpdateTitle(ctx context.Context, id, title string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if row, ok := s.rows[id]; ok {
		row.Title = title
	}
	return nil
}

func (s *memConversationStore) Touch(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if row, ok := s.rows[id]; ok {
		row.UpdatedAt = time.Now().Unix()
	}
	return nil
}

func (s *memConversationStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.rows, id)
	return nil
}

func (s *memConversationStore) DeleteEmptyCreatedBefore(ctx context.Context, before int64) (int64, error) {
	return 0, nil
}

type memMessageStore struct {
	mu       sync.Mutex
	rows     []types.Message
	failRole types.MessageUserRole // Create rejects this role when set
}

func (s *memMessageStore) Create(ctx context.Context, data *types.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failRole != types.USER_ROLE_UNKNOWN && data.Role == s.failRole {
		return fmt.Errorf("insert rejected")
	}
	s.rows = append(s.rows, *data)
	return nil
}

func (s *memMessageStore) GetOne(ctx context.Context, id string) (*types.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, row := range s.rows {
		if row.ID == id {
			cp := row
			return &cp, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (s *memMessageStore) ListByConversation(ctx context.Context, conversationID string, page, pageSize uint64) ([]types.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var list []types.Message
	for _, row := range s.rows {
		if row.ConversationID == conversationID {
			list = append(list, row)
		}
	}
	return list, nil
}

func (s *memMessageStore) TotalByConversation(ctx context.Context, conversationID string) (int64, error) {
	list, _ := s.ListByConversation(ctx, conversationID, types.NO_PAGING, types.NO_PAGING)
	return int64(len(list)), nil
}

func (s *memMessageStore) DeleteByConversation(ctx context.Context, conversationID string) error {
	return nil
}

func (s *memMessageStore) byRole(role types.MessageUserRole) []types.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	var list []types.Message
	for _, row := range s.rows {
		if row.Role == role {
			list = append(list, row)
		}
	}
	return list
}

type memDocumentStore struct {
	mu   sync.Mutex
	rows []types.Document
}

func (s *memDocumentStore) matches(doc types.Document, opts types.GetDocumentOptions) bool {
	if opts.ID != "" && doc.ID != opts.ID {
		return false
	}
	if opts.UserID != "" && doc.UserID != opts.UserID {
		return false
	}
	if opts.ProjectID != "" && doc.ProjectID != opts.ProjectID {
		return false
	}
	if opts.KnowledgeBaseID != "" && doc.KnowledgeBaseID != opts.KnowledgeBaseID {
		return false
	}
	if opts.Status != "" && doc.Status != opts.Status {
		return false
	}
	if opts.WithChunksOnly && doc.ChunkCount == 0 {
		return false
	}
	return true
}

func (s *memDocumentStore) Create(ctx context.Context, data *types.Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rows = append(s.rows, *data)
	return nil
}

func (s *memDocumentStore) GetOne(ctx context.Context, opts types.GetDocumentOptions) (*types.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, row := range s.rows {
		if s.matches(row, opts) {
			cp := row
			return &cp, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (s *memDocumentStore) List(ctx context.Context, opts types.GetDocumentOptions, page, pageSize uint64) ([]types.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var list []types.Document
	for _, row := range s.rows {
		if s.matches(row, opts) {
			list = append(list, row)
		}
	}
	return list, nil
}

func (s *memDocumentStore) Delete(ctx context.Context, id string) error { return nil }

type memChunkStore struct {
	mu   sync.Mutex
	rows map[string][]*types.RetrievedChunk
}

func (s *memChunkStore) BatchCreate(ctx context.Context, datas []*types.Chunk) error { return nil }

func (s *memChunkStore) Query(ctx context.Context, documentID string, vector pgvector.Vector, limit uint64) ([]*types.RetrievedChunk, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	list := s.rows[documentID]
	if uint64(len(list)) > limit {
		list = list[:limit]
	}
	return list, nil
}

func (s *memChunkStore) ListByDocument(ctx context.Context, documentID string) ([]types.Chunk, error) {
	return nil, nil
}

func (s *memChunkStore) DeleteByDocument(ctx context.Context, documentID string) error { return nil }

// stub model driver

type stubDriver struct {
	deltas  []string
	recvErr error // returned after the deltas instead of io.EOF
	hang    bool  // block after the deltas until the request context ends
}

func (d *stubDriver) ModelName() ai.ModelName {
	return ai.ModelName{ChatModel: "test-model"}
}

func (d *stubDriver) GenerationParams() types.GenerationParams {
	return types.GenerationParams{Model: "test-model", Temperature: 0.7, MaxTokens: 512}
}

func (d *stubDriver) MsgIsOverLimit(msgs []*types.MessageContext) bool { return false }

func (d *stubDriver) EmbeddingForQuery(ctx context.Context, content []string) (ai.EmbeddingResult, error) {
	return ai.EmbeddingResult{Data: [][]float32{{0.1, 0.2, 0.3}}}, nil
}

func (d *stubDriver) QueryStream(ctx context.Context, req openai.ChatCompletionRequest) (ai.ChatStreamReader, error) {
	return &stubStream{ctx: ctx, deltas: d.deltas, recvErr: d.recvErr, hang: d.hang}, nil
}

type stubStream struct {
	ctx     context.Context
	deltas  []string
	idx     int
	recvErr error
	hang    bool
}

func (s *stubStream) Recv() (openai.ChatCompletionStreamResponse, error) {
	if s.idx < len(s.deltas) {
		delta := s.deltas[s.idx]
		s.idx++
		return openai.ChatCompletionStreamResponse{
			ID: "stream-1",
			Choices: []openai.ChatCompletionStreamChoice{
				{Delta: openai.ChatCompletionStreamChoiceDelta{Content: delta}},
			},
		}, nil
	}
	if s.recvErr != nil {
		return openai.ChatCompletionStreamResponse{}, s.recvErr
	}
	if s.hang {
		// the real transport unblocks Recv when the request context ends
		<-s.ctx.Done()
		return openai.ChatCompletionStreamResponse{}, s.ctx.Err()
	}
	return openai.ChatCompletionStreamResponse{}, io.EOF
}

func (s *stubStream) Close() error { return nil }

// helpers

func newTurnCore(st core.AppStore, driver srv.AIDriver, turnTimeout int) *core.Core {
	cfg := core.CoreConfig{}
	cfg.RAG.ApplyDefaults()
	if turnTimeout > 0 {
		cfg.RAG.TurnTimeout = turnTimeout
	}
	return core.New(cfg, st, srv.SetupSrvs(srv.ApplyAIDriver(driver)))
}

func claimsCtx(userID string) context.Context {
	return context.WithValue(context.Background(), TokenClaimsKey{}, TokenClaims{UserID: userID, Token: "token"})
}

func seedConversation(st *memStore, id, userID string) {
	st.conversations.rows[id] = &types.Conversation{
		ID:        id,
		UserID:    userID,
		CreatedAt: time.Now().Unix(),
	}
}

func drainEvents(t *testing.T, events <-chan protocol.StreamEvent) []protocol.StreamEvent {
	t.Helper()
	var got []protocol.StreamEvent
	deadline := time.After(5 * time.Second)
	for {
		select {
		case ev, ok := <-events:
			if !ok {
				return got
			}
			got = append(got, ev)
		case <-deadline:
			t.Fatal("stream did not close in time")
			return got
		}
	}
}

func terminalEvents(events []protocol.StreamEvent) []protocol.StreamEvent {
	var terminals []protocol.StreamEvent
	for _, ev := range events {
		if ev.Type == protocol.STREAM_EVENT_DONE || ev.Type == protocol.STREAM_EVENT_ERROR {
			terminals = append(terminals, ev)
		}
	}
	return terminals
}

func TestRequestAssistantStreamsAndPersists(t *testing.T) {
	st := newMemStore()
	seedConversation(st, "c1", "u1")
	app := newTurnCore(st, &stubDriver{deltas: []string{"Hi", " there"}}, 0)

	logic := NewChatLogic(claimsCtx("u1"), app)
	events, err := logic.RequestAssistant("c1", types.CreateTurnArgs{Content: "Hello"})
	assert.NoError(t, err)

	got := drainEvents(t, events)
	terminals := terminalEvents(got)
	assert.Len(t, terminals, 1)
	assert.Equal(t, protocol.STREAM_EVENT_DONE, terminals[0].Type)
	assert.Equal(t, protocol.STREAM_EVENT_DONE, got[len(got)-1].Type)

	var streamed string
	for _, ev := range got {
		streamed += ev.Content
	}
	assert.Equal(t, "Hi there", streamed)

	userMsgs := st.messages.byRole(types.USER_ROLE_USER)
	assert.Len(t, userMsgs, 1)
	assert.Equal(t, "Hello", userMsgs[0].Content)

	assistantMsgs := st.messages.byRole(types.USER_ROLE_ASSISTANT)
	assert.Len(t, assistantMsgs, 1)
	assert.Equal(t, "Hi there", assistantMsgs[0].Content)
	assert.Equal(t, terminals[0].MessageID, assistantMsgs[0].ID)
	assert.False(t, assistantMsgs[0].Metadata.RAGUsed)
	assert.Equal(t, 0, assistantMsgs[0].Metadata.ChunksRetrieved)
	assert.Empty(t, assistantMsgs[0].Citations)

	conversation, err := st.conversations.GetOne(context.Background(), "c1")
	assert.NoError(t, err)
	assert.Equal(t, "Hello", conversation.Title)
	assert.NotZero(t, conversation.UpdatedAt)
}

func TestRequestAssistantGroundsAndCites(t *testing.T) {
	st := newMemStore()
	seedConversation(st, "c1", "u1")
	st.documents.rows = []types.Document{
		{ID: "d1", UserID: "u1", Title: "Pricing Guide", Status: types.DOCUMENT_STATUS_NORMAL, ChunkCount: 1},
	}
	st.chunks.rows["d1"] = []*types.RetrievedChunk{
		{ID: "ck1", DocumentID: "d1", DocumentTitle: "Pricing Guide", Position: 1, Content: "Tier two costs more than tier one.", Cos: 0.9},
	}

	app := newTurnCore(st, &stubDriver{deltas: []string{"According to Pricing Guide, tier two costs more."}}, 0)
	logic := NewChatLogic(claimsCtx("u1"), app)

	events, err := logic.RequestAssistant("c1", types.CreateTurnArgs{
		Content:     "what do the tiers cost?",
		ContextRefs: []types.ContextRef{{Type: types.CONTEXT_TYPE_DOCUMENT, ID: "d1"}},
	})
	assert.NoError(t, err)

	got := drainEvents(t, events)
	terminals := terminalEvents(got)
	assert.Len(t, terminals, 1)
	assert.Equal(t, protocol.STREAM_EVENT_DONE, terminals[0].Type)

	assistantMsgs := st.messages.byRole(types.USER_ROLE_ASSISTANT)
	assert.Len(t, assistantMsgs, 1)
	assert.True(t, assistantMsgs[0].Metadata.RAGUsed)
	assert.Equal(t, 1, assistantMsgs[0].Metadata.ChunksRetrieved)
	assert.Len(t, assistantMsgs[0].Citations, 1)
	assert.Equal(t, "ck1", assistantMsgs[0].Citations[0].ChunkID)
}

func TestRequestAssistantKeepsUserMessageOnStreamFailure(t *testing.T) {
	st := newMemStore()
	seedConversation(st, "c1", "u1")
	app := newTurnCore(st, &stubDriver{recvErr: fmt.Errorf("upstream hiccup")}, 0)

	logic := NewChatLogic(claimsCtx("u1"), app)
	events, err := logic.RequestAssistant("c1", types.CreateTurnArgs{Content: "Hello"})
	assert.NoError(t, err)

	got := drainEvents(t, events)
	terminals := terminalEvents(got)
	assert.Len(t, terminals, 1)
	assert.Equal(t, protocol.STREAM_EVENT_ERROR, terminals[0].Type)

	assert.Len(t, st.messages.byRole(types.USER_ROLE_USER), 1)
	assert.Empty(t, st.messages.byRole(types.USER_ROLE_ASSISTANT))
}

func TestRequestAssistantCancelDiscardsAssistant(t *testing.T) {
	st := newMemStore()
	seedConversation(st, "c1", "u1")
	app := newTurnCore(st, &stubDriver{deltas: []string{"partial"}, hang: true}, 0)

	ctx, cancel := context.WithCancel(claimsCtx("u1"))
	logic := NewChatLogic(ctx, app)
	events, err := logic.RequestAssistant("c1", types.CreateTurnArgs{Content: "Hello"})
	assert.NoError(t, err)

	// the first flushed fragment proves the stream was live, then the
	// caller goes away
	select {
	case ev := <-events:
		assert.Equal(t, protocol.STREAM_EVENT_CHUNK, ev.Type)
	case <-time.After(5 * time.Second):
		t.Fatal("no fragment arrived before cancel")
	}
	cancel()

	got := drainEvents(t, events)
	assert.Empty(t, terminalEvents(got))

	assert.Len(t, st.messages.byRole(types.USER_ROLE_USER), 1)
	assert.Empty(t, st.messages.byRole(types.USER_ROLE_ASSISTANT))
}

func TestRequestAssistantCeilingEmitsTerminalError(t *testing.T) {
	st := newMemStore()
	seedConversation(st, "c1", "u1")
	app := newTurnCore(st, &stubDriver{deltas: []string{"partial"}, hang: true}, 1)

	// the caller stays connected while the turn runs out of time
	logic := NewChatLogic(claimsCtx("u1"), app)
	events, err := logic.RequestAssistant("c1", types.CreateTurnArgs{Content: "Hello"})
	assert.NoError(t, err)

	got := drainEvents(t, events)
	terminals := terminalEvents(got)
	assert.Len(t, terminals, 1)
	assert.Equal(t, protocol.STREAM_EVENT_ERROR, terminals[0].Type)
	assert.Equal(t, protocol.STREAM_EVENT_ERROR, got[len(got)-1].Type)

	assert.Empty(t, st.messages.byRole(types.USER_ROLE_ASSISTANT))
}

func TestRequestAssistantPersistFailureStillEmitsDone(t *testing.T) {
	st := newMemStore()
	seedConversation(st, "c1", "u1")
	st.messages.failRole = types.USER_ROLE_ASSISTANT
	app := newTurnCore(st, &stubDriver{deltas: []string{"answer"}}, 0)

	logic := NewChatLogic(claimsCtx("u1"), app)
	events, err := logic.RequestAssistant("c1", types.CreateTurnArgs{Content: "Hello"})
	assert.NoError(t, err)

	// the caller already received the full text, a failed save must not
	// turn the stream into an error
	got := drainEvents(t, events)
	terminals := terminalEvents(got)
	assert.Len(t, terminals, 1)
	assert.Equal(t, protocol.STREAM_EVENT_DONE, terminals[0].Type)

	assert.Len(t, st.messages.byRole(types.USER_ROLE_USER), 1)
	assert.Empty(t, st.messages.byRole(types.USER_ROLE_ASSISTANT))
}

func TestRequestAssistantRejectsEmptyContent(t *testing.T) {
	st := newMemStore()
	seedConversation(st, "c1", "u1")
	app := newTurnCore(st, &stubDriver{}, 0)

	logic := NewChatLogic(claimsCtx("u1"), app)
	_, err := logic.RequestAssistant("c1", types.CreateTurnArgs{Content: "   "})
	assert.Error(t, err)
	ce, ok := err.(*errors.CustomizedError)
	assert.True(t, ok)
	assert.Equal(t, 400, ce.GetCode())
	assert.Empty(t, st.messages.rows)
}

func TestRequestAssistantRejectsOverlappingTurn(t *testing.T) {
	st := newMemStore()
	seedConversation(st, "c1", "u1")
	app := newTurnCore(st, &stubDriver{}, 0)
	app.TryLockTurn(protocol.GenConversationTurnKey("c1"))

	logic := NewChatLogic(claimsCtx("u1"), app)
	_, err := logic.RequestAssistant("c1", types.CreateTurnArgs{Content: "Hello"})
	assert.Error(t, err)
	ce, ok := err.(*errors.CustomizedError)
	assert.True(t, ok)
	assert.Equal(t, 409, ce.GetCode())
}

func TestBuildTranscriptWithoutChunksHasNoSystemMessage(t *testing.T) {
	st := newMemStore()
	seedConversation(st, "c1", "u1")
	st.messages.rows = []types.Message{
		{ID: "m1", ConversationID: "c1", Role: types.USER_ROLE_USER, Content: "Hello"},
	}
	app := newTurnCore(st, &stubDriver{}, 0)
	logic := NewChatLogic(claimsCtx("u1"), app)

	transcript, err := logic.buildTranscript(context.Background(), "c1", nil)
	assert.NoError(t, err)
	assert.Len(t, transcript, 1)
	assert.Equal(t, types.USER_ROLE_USER.String(), transcript[0].Role)
	assert.Equal(t, "Hello", transcript[0].Content)
}

func TestBuildTranscriptWithChunksLeadsWithSystemMessage(t *testing.T) {
	st := newMemStore()
	seedConversation(st, "c1", "u1")
	st.messages.rows = []types.Message{
		{ID: "m1", ConversationID: "c1", Role: types.USER_ROLE_USER, Content: "Hello"},
	}
	app := newTurnCore(st, &stubDriver{}, 0)
	logic := NewChatLogic(claimsCtx("u1"), app)

	transcript, err := logic.buildTranscript(context.Background(), "c1", []*types.RetrievedChunk{
		{ID: "ck1", DocumentID: "d1", DocumentTitle: "Doc", Position: 1, Content: "text", Cos: 0.5},
	})
	assert.NoError(t, err)
	assert.Len(t, transcript, 2)
	assert.Equal(t, types.USER_ROLE_SYSTEM.String(), transcript[0].Role)
	assert.Contains(t, transcript[0].Content, ai.PROMPT_CONTEXT_HEADER)
	assert.Equal(t, types.USER_ROLE_USER.String(), transcript[1].Role)
}
