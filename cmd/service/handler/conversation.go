package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	v1 "github.com/evergreensystems/evergreen-ai/app/logic/v1"
	"github.com/evergreensystems/evergreen-ai/app/response"
	"github.com/evergreensystems/evergreen-ai/pkg/errors"
	"github.com/evergreensystems/evergreen-ai/pkg/i18n"
	"github.com/evergreensystems/evergreen-ai/pkg/types"
	"github.com/evergreensystems/evergreen-ai/pkg/utils"
)

func (s *HttpSrv) CreateConversation(c *gin.Context) {
	logic := v1.NewConversationLogic(c, s.Core)
	conversation, err := logic.Create()
	if err != nil {
		response.APIError(c, err)
		return
	}
	response.APISuccess(c, conversation)
}

type ListConversationRequest struct {
	Page     uint64 `json:"page" form:"page" binding:"required"`
	PageSize uint64 `json:"pagesize" form:"pagesize" binding:"required,lte=100"`
}

type ListConversationResponse struct {
	List  []types.Conversation `json:"list"`
	Total int64                `json:"total"`
}

func (s *HttpSrv) ListConversations(c *gin.Context) {
	var (
		err error
		req ListConversationRequest
	)
	if err = utils.BindArgsWithGin(c, &req); err != nil {
		response.APIError(c, err)
		return
	}

	logic := v1.NewConversationLogic(c, s.Core)
	list, total, err := logic.List(req.Page, req.PageSize)
	if err != nil {
		response.APIError(c, err)
		return
	}

	response.APISuccess(c, ListConversationResponse{
		List:  list,
		Total: total,
	})
}

func (s *HttpSrv) DeleteConversation(c *gin.Context) {
	conversationID, _ := c.Params.Get("conversation")
	if conversationID == "" {
		response.APIError(c, errors.New("api.DeleteConversation", i18n.ERROR_INVALIDARGUMENT, nil).Code(http.StatusBadRequest))
		return
	}

	logic := v1.NewConversationLogic(c, s.Core)
	if err := logic.Delete(conversationID); err != nil {
		response.APIError(c, err)
		return
	}
	response.APISuccess(c, nil)
}

type ConversationHistoryRequest struct {
	Page     uint64 `json:"page" form:"page" binding:"required"`
	PageSize uint64 `json:"pagesize" form:"pagesize" binding:"required,lte=200"`
}

func (s *HttpSrv) GetConversationHistory(c *gin.Context) {
	conversationID, _ := c.Params.Get("conversation")
	if conversationID == "" {
		response.APIError(c, errors.New("api.GetConversationHistory", i18n.ERROR_INVALIDARGUMENT, nil).Code(http.StatusBadRequest))
		return
	}

	var (
		err error
		req ConversationHistoryRequest
	)
	if err = utils.BindArgsWithGin(c, &req); err != nil {
		response.APIError(c, err)
		return
	}

	logic := v1.NewConversationLogic(c, s.Core)
	history, err := logic.History(conversationID, req.Page, req.PageSize)
	if err != nil {
		response.APIError(c, err)
		return
	}

	response.APISuccess(c, history)
}
