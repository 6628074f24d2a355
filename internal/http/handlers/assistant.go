package handlers

import (
	"net/http"
	"strings"

	"busease/internal/assistant"
	"busease/internal/http/middleware"
	"busease/internal/utils"

	"github.com/gin-gonic/gin"
)

type assistantRequest struct {
	Question string `json:"question"`
	// UserID is accepted for older clients; identity comes from the token.
	UserID            any             `json:"userId"`
	ConversationState assistant.State `json:"conversationState"`
}

// POST /api/assistant
func (h *Handler) Assistant(c *gin.Context) {
	var req assistantRequest
	if !BindJSONOrError(c, &req) {
		return
	}
	if strings.TrimSpace(req.Question) == "" {
		RespondError(c, http.StatusBadRequest, "question is required", nil)
		return
	}
	reply, err := h.resolver(c).Resolve(c.Request.Context(), middleware.Actor(c), req.Question, req.ConversationState)
	if err != nil {
		utils.LogError(middleware.GetRequestID(c), "assistant", "resolve", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"response":          assistant.ReplyFailure,
			"conversationState": req.ConversationState,
		})
		return
	}
	c.JSON(http.StatusOK, reply)
}
