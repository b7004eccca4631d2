package handler

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	v1 "github.com/evergreensystems/evergreen-ai/app/logic/v1"
	"github.com/evergreensystems/evergreen-ai/app/response"
	"github.com/evergreensystems/evergreen-ai/pkg/errors"
	"github.com/evergreensystems/evergreen-ai/pkg/i18n"
	"github.com/evergreensystems/evergreen-ai/pkg/types"
	"github.com/evergreensystems/evergreen-ai/pkg/types/protocol"
	"github.com/evergreensystems/evergreen-ai/pkg/utils"
)

type CreateMessageRequest struct {
	MessageID   string             `json:"message_id" form:"message_id"`
	Content     string             `json:"content" form:"content" binding:"required"`
	ContextRefs []types.ContextRef `json:"context_refs" form:"context_refs"`
}

// CreateMessage submits one conversation turn and relays the generation
// stream as server-sent events. Validation failures are reported through the
// normal JSON envelope before any stream bytes are written; once streaming
// starts, failures arrive as an error frame.
func (s *HttpSrv) CreateMessage(c *gin.Context) {
	conversationID, _ := c.Params.Get("conversation")
	if conversationID == "" {
		response.APIError(c, errors.New("api.CreateMessage", i18n.ERROR_INVALIDARGUMENT, nil).Code(http.StatusBadRequest))
		return
	}

	var (
		err error
		req CreateMessageRequest
	)
	if err = utils.BindArgsWithGin(c, &req); err != nil {
		response.APIError(c, err)
		return
	}

	logic := v1.NewChatLogic(c.Request.Context(), s.Core)
	events, err := logic.RequestAssistant(conversationID, types.CreateTurnArgs{
		MessageID:   req.MessageID,
		Content:     req.Content,
		ContextRefs: req.ContextRefs,
	})
	if err != nil {
		response.APIError(c, err)
		return
	}

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")
	c.Writer.WriteHeader(http.StatusOK)
	c.Writer.Flush()

	flusher, _ := c.Writer.(http.Flusher)
	disconnected := c.Request.Context().Done()

	// drain to the end even after a disconnect so the producer goroutine
	// never blocks on a full channel
	gone := false
	for event := range events {
		if gone {
			continue
		}
		if !writeStreamEvent(c, flusher, event) {
			gone = true
		}
		select {
		case <-disconnected:
			gone = true
		default:
		}
	}
}

func writeStreamEvent(c *gin.Context, flusher http.Flusher, event protocol.StreamEvent) bool {
	raw, err := json.Marshal(event)
	if err != nil {
		return false
	}

	if _, err = fmt.Fprintf(c.Writer, "data: %s\n\n", raw); err != nil {
		return false
	}
	if flusher != nil {
		flusher.Flush()
	}
	return true
}
