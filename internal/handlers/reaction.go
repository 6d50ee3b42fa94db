package handlers

import (
	"net/http"

	"jishi/internal/models"
	"jishi/internal/services"

	"github.com/gin-gonic/gin"
)

type ReactionHandler struct {
	reactions  *services.ReactionService
	moderation *services.ModerationService
}

func NewReactionHandler(reactions *services.ReactionService, moderation *services.ModerationService) *ReactionHandler {
	return &ReactionHandler{reactions: reactions, moderation: moderation}
}

// Toggle 翻转 like/favorite/hidden，返回这次调用之后的状态
func (h *ReactionHandler) Toggle(c *gin.Context) {
	account := currentAccount(c)

	kind := models.ReactionKind(c.Param("kind"))
	result, err := h.reactions.Toggle(account.UserID, c.Param("pid"), kind)
	if err != nil {
		writeErr(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

type reportRequest struct {
	Reason string `json:"reason"`
}

// Report 举报。重复举报不报错，回 already_reported
func (h *ReactionHandler) Report(c *gin.Context) {
	account := currentAccount(c)

	var req reportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "validation", "message": "请求体格式不正确"})
		return
	}

	result, err := h.moderation.Report(c.Param("pid"), account.UserID, req.Reason)
	if err != nil {
		writeErr(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}
