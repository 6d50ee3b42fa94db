package handlers

import (
	"log"
	"net/http"
	"strings"

	"jishi/internal/models"
	"jishi/internal/services"
	"jishi/internal/utils"

	"github.com/gin-gonic/gin"
)

type ModerationHandler struct {
	moderation *services.ModerationService
}

func NewModerationHandler(moderation *services.ModerationService) *ModerationHandler {
	return &ModerationHandler{moderation: moderation}
}

// callbackUpdate 审核按钮回调的 webhook 载荷，只取需要的字段
type callbackUpdate struct {
	CallbackQuery *struct {
		ID   string `json:"id"`
		Data string `json:"data"`
	} `json:"callback_query"`
}

// Callback 接收审核面的按钮回调。
// data 格式 decide:<ticket>:<decision>；重复点击返回 200 但不产生二次副作用。
func (h *ModerationHandler) Callback(c *gin.Context) {
	var update callbackUpdate
	if err := c.ShouldBindJSON(&update); err != nil || update.CallbackQuery == nil {
		// webhook 必须回 200，否则平台会不停重试
		c.JSON(http.StatusOK, gin.H{"ok": true})
		return
	}

	parts := strings.Split(update.CallbackQuery.Data, ":")
	if len(parts) != 3 || parts[0] != "decide" {
		c.JSON(http.StatusOK, gin.H{"ok": true})
		return
	}

	ticketID := uint(utils.StringToInt(parts[1]))
	decision := models.Decision(parts[2])

	// 失效工单的回调也回 200：重试救不回这类错误，只会无限重放
	if _, err := h.moderation.Decide(ticketID, decision); err != nil {
		log.Printf("裁决回调失败 (ticket=%d, decision=%s): %v", ticketID, decision, err)
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}
