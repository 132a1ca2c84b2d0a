package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yoockh/yoochat/internal/services"
	"github.com/yoockh/yoochat/internal/utils"
)

type ConversationHandler struct {
	svc services.ConversationService
}

func NewConversationHandler(svc services.ConversationService) *ConversationHandler {
	return &ConversationHandler{svc: svc}
}

type SendMessageRequest struct {
	Text  string `json:"text"`
	Image string `json:"image,omitempty"` // data URL
}

// Send accepts a user message and answers 202 once the turn has started; the
// reply arrives over the session's event stream.
func (h *ConversationHandler) Send(c *gin.Context) {
	var req SendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, utils.E(utils.CodeInvalidArgument, "ConversationHandler.Send", "invalid request body", err))
		return
	}

	turn, err := h.svc.Send(c.Request.Context(), services.SendRequest{
		SessionID: c.Param("session_id"),
		Text:      req.Text,
		Image:     req.Image,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, turn)
}

func (h *ConversationHandler) Status(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"session_id":        c.Param("session_id"),
		"in_flight":         h.svc.InFlight(c.Param("session_id")),
		"awaiting_response": h.svc.AwaitingResponse(),
	})
}
