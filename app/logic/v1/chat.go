package v1

import (
	"context"
	"database/sql"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/samber/lo"

	"github.com/evergreensystems/evergreen-ai/app/core"
	"github.com/evergreensystems/evergreen-ai/pkg/ai"
	"github.com/evergreensystems/evergreen-ai/pkg/errors"
	"github.com/evergreensystems/evergreen-ai/pkg/i18n"
	"github.com/evergreensystems/evergreen-ai/pkg/safe"
	"github.com/evergreensystems/evergreen-ai/pkg/types"
	"github.com/evergreensystems/evergreen-ai/pkg/types/protocol"
	"github.com/evergreensystems/evergreen-ai/pkg/utils"
)

type ChatLogic struct {
	ctx  context.Context
	core *core.Core
	UserInfo
}

func NewChatLogic(ctx context.Context, core *core.Core) *ChatLogic {
	return &ChatLogic{
		ctx:      ctx,
		core:     core,
		UserInfo: SetupUserInfo(ctx, core),
	}
}

// RequestAssistant runs one conversation turn. It validates and persists the
// user message synchronously, then streams the assistant reply through the
// returned channel. The channel carries zero or more chunk events and exactly
// one terminal event; it is closed when the turn ends. Cancelling ctx mid
// stream aborts generation and discards the assistant message.
func (l *ChatLogic) RequestAssistant(conversationID string, args types.CreateTurnArgs) (<-chan protocol.StreamEvent, error) {
	content := strings.TrimSpace(args.Content)
	if content == "" {
		return nil, errors.New("ChatLogic.RequestAssistant.content", i18n.ERROR_EMPTY_MESSAGE, nil).Code(http.StatusBadRequest)
	}

	for _, ref := range args.ContextRefs {
		if err := ref.Type.Validate(); err != nil {
			return nil, errors.New("ChatLogic.RequestAssistant.ContextRefs", i18n.ERROR_UNKNOWN_CONTEXT_TYPE, err).Code(http.StatusBadRequest)
		}
	}

	convLogic := &ConversationLogic{ctx: l.ctx, core: l.core, UserInfo: l.UserInfo}
	conversation, err := convLogic.GetOwned(conversationID)
	if err != nil {
		return nil, err
	}

	lockKey := protocol.GenConversationTurnKey(conversationID)
	if !l.core.TryLockTurn(lockKey) {
		return nil, errors.New("ChatLogic.RequestAssistant.TryLockTurn", i18n.ERROR_TURN_IN_PROGRESS, nil).Code(http.StatusConflict)
	}

	userMessage, err := l.persistUserTurn(conversation, content, args.MessageID)
	if err != nil {
		l.core.UnlockTurn(lockKey)
		return nil, err
	}

	events := make(chan protocol.StreamEvent, 10)

	go safe.Run(func() {
		defer func() {
			close(events)
			l.core.UnlockTurn(lockKey)
		}()

		turnCtx, cancel := context.WithTimeout(l.ctx, time.Duration(l.core.Cfg().RAG.TurnTimeout)*time.Second)
		defer cancel()

		l.generate(turnCtx, conversation, userMessage, args.ContextRefs, events)
	})

	return events, nil
}

// persistUserTurn writes the user message and, on the conversation's first
// turn, derives its title. The user message survives any downstream failure.
func (l *ChatLogic) persistUserTurn(conversation *types.Conversation, content, messageID string) (*types.Message, error) {
	if messageID == "" {
		messageID = utils.GenSpecIDStr()
	}

	message := &types.Message{
		ID:             messageID,
		ConversationID: conversation.ID,
		UserID:         l.GetUserInfo().UserID,
		Role:           types.USER_ROLE_USER,
		Content:        content,
		CreatedAt:      time.Now().Unix(),
	}

	err := l.core.Store().Transaction(l.ctx, func(ctx context.Context) error {
		if conversation.Title == "" {
			title := utils.TruncateRunes(content, types.CONVERSATION_TITLE_LIMIT)
			if err := l.core.Store().ConversationStore().UpdateTitle(ctx, conversation.ID, title); err != nil {
				return err
			}
			conversation.Title = title
		}
		return l.core.Store().MessageStore().Create(ctx, message)
	})
	if err != nil {
		return nil, errors.New("ChatLogic.persistUserTurn", i18n.ERROR_INTERNAL, err)
	}
	return message, nil
}

func (l *ChatLogic) generate(ctx context.Context, conversation *types.Conversation, userMessage *types.Message, refs []types.ContextRef, events chan<- protocol.StreamEvent) {
	genTimer := l.core.Metrics().GenerationTimer()
	defer genTimer.ObserveDuration()

	retrieval := l.retrieve(ctx, userMessage.Content, refs)

	transcript, err := l.buildTranscript(ctx, conversation.ID, retrieval.Chunks)
	if err != nil {
		l.core.Metrics().GenerationErrorInc("transcript")
		events <- protocol.ErrorEvent("failed to load conversation history")
		return
	}

	params := l.core.Srv().AI().GenerationParams()
	resp, err := ai.NewQueryOptions(ctx, l.core.Srv().AI(), params, transcript).QueryStream()
	if err != nil {
		l.core.Metrics().GenerationErrorInc("upstream")
		slog.Error("failed to open completion stream",
			slog.String("conversation_id", conversation.ID),
			slog.String("error", err.Error()))
		events <- protocol.ErrorEvent("generation failed to start")
		return
	}

	var answer strings.Builder
	for choice := range ai.HandleAIStream(ctx, resp) {
		if choice.Error != nil {
			if ctx.Err() != nil {
				l.abortTurn(events, conversation.ID)
				return
			}
			l.core.Metrics().GenerationErrorInc("stream")
			events <- protocol.ErrorEvent("generation failed")
			return
		}

		if choice.Message != "" {
			answer.WriteString(choice.Message)
			select {
			case events <- protocol.ChunkEvent(choice.Message):
			case <-ctx.Done():
				l.abortTurn(events, conversation.ID)
				return
			}
		}
	}

	if ctx.Err() != nil {
		l.abortTurn(events, conversation.ID)
		return
	}

	assistantMessage := &types.Message{
		ID:             utils.GenSpecIDStr(),
		ConversationID: conversation.ID,
		UserID:         l.GetUserInfo().UserID,
		Role:           types.USER_ROLE_ASSISTANT,
		Content:        answer.String(),
		Citations:      ExtractCitations(answer.String(), retrieval.Chunks),
		Metadata: types.TurnMetadata{
			Model:           params.Model,
			RAGUsed:         len(retrieval.Chunks) > 0,
			ChunksRetrieved: len(retrieval.Chunks),
		},
		CreatedAt: time.Now().Unix(),
	}

	// persistence uses a fresh context so a caller disconnect between the
	// final delta and the done frame cannot half-apply the writes
	persistCtx, cancel := context.WithTimeout(context.Background(), time.Second*10)
	defer cancel()

	err = l.core.Store().Transaction(persistCtx, func(txCtx context.Context) error {
		if err := l.core.Store().MessageStore().Create(txCtx, assistantMessage); err != nil {
			return err
		}
		return l.core.Store().ConversationStore().Touch(txCtx, conversation.ID)
	})
	if err != nil {
		// the caller already holds the full text, so a failed save must not
		// retract the stream. The answer is only missing from history.
		l.core.Metrics().GenerationErrorInc("persist")
		slog.Error("failed to persist assistant message, streamed answer will be missing from history",
			slog.String("conversation_id", conversation.ID),
			slog.String("message_id", assistantMessage.ID),
			slog.String("error", err.Error()))
	}

	events <- protocol.DoneEvent(assistantMessage.ID)
}

// abortTurn closes out a canceled turn. A disconnected caller can receive
// nothing; a connected caller whose turn hit the ceiling still gets its
// terminal error frame.
func (l *ChatLogic) abortTurn(events chan<- protocol.StreamEvent, conversationID string) {
	if l.ctx.Err() != nil {
		slog.Warn("turn canceled by caller",
			slog.String("conversation_id", conversationID))
		return
	}

	l.core.Metrics().GenerationErrorInc("timeout")
	slog.Warn("turn hit its time ceiling",
		slog.String("conversation_id", conversationID))
	events <- protocol.ErrorEvent("generation timed out")
}

// retrieve resolves contexts and runs similarity search. Every failure mode
// degrades to an empty result; a turn is never failed by retrieval.
func (l *ChatLogic) retrieve(ctx context.Context, content string, refs []types.ContextRef) *types.RetrievalResult {
	empty := &types.RetrievalResult{}
	if len(refs) == 0 {
		return empty
	}

	rl := &RetrievalLogic{ctx: ctx, core: l.core, UserInfo: l.UserInfo}

	resolution, err := rl.ResolveContexts(refs)
	if err != nil {
		slog.Error("context resolution failed, continuing without retrieval", slog.String("error", err.Error()))
		return empty
	}
	if len(resolution.Scopes) == 0 {
		return empty
	}
	if resolution.Dropped > 0 {
		slog.Warn("some context references were dropped",
			slog.Int("requested", resolution.Requested),
			slog.Int("resolved", resolution.Resolved))
	}

	vector := rl.EmbedQuery(content)
	if vector == nil {
		return empty
	}

	return rl.Retrieve(resolution.Scopes, *vector)
}

// buildTranscript reconstructs the prompt from the grounding block and the
// conversation history in created_at order. The just-persisted user message
// is already part of the history. When the request exceeds the token budget,
// the lowest ranked chunks go first, then the oldest history turns.
func (l *ChatLogic) buildTranscript(ctx context.Context, conversationID string, chunks []*types.RetrievedChunk) ([]*types.MessageContext, error) {
	history, err := l.core.Store().MessageStore().ListByConversation(ctx, conversationID, types.NO_PAGING, types.NO_PAGING)
	if err != nil && err != sql.ErrNoRows {
		return nil, err
	}

	systemMsg := func(chunks []*types.RetrievedChunk) *types.MessageContext {
		return &types.MessageContext{
			Role:    types.USER_ROLE_SYSTEM.String(),
			Content: ai.BuildSystemPrompt(chunks),
		}
	}

	// without retrieved material there is no system block, the transcript is
	// the conversation history alone
	var transcript []*types.MessageContext
	if len(chunks) > 0 {
		for len(chunks) > 0 && l.core.Srv().AI().MsgIsOverLimit([]*types.MessageContext{systemMsg(chunks)}) {
			chunks = chunks[:len(chunks)-1]
		}
		if len(chunks) > 0 {
			transcript = append(transcript, systemMsg(chunks))
		}
	}

	head := len(transcript)
	transcript = append(transcript, lo.Map(history, func(item types.Message, _ int) *types.MessageContext {
		return &types.MessageContext{
			Role:    item.Role.String(),
			Content: item.Content,
		}
	})...)

	// the optional system prompt and the latest user message always stay
	for len(transcript) > head+1 && l.core.Srv().AI().MsgIsOverLimit(transcript) {
		transcript = append(transcript[:head], transcript[head+1:]...)
	}

	return transcript, nil
}
