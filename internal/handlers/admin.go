package handlers

import (
	"net/http"
	"os"

	"jishi/internal/middleware"
	"jishi/internal/models"
	"jishi/internal/services"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"golang.org/x/crypto/bcrypt"
)

type AdminHandler struct {
	quota      *services.QuotaService
	accounts   *services.AccountService
	moderation *services.ModerationService
}

func NewAdminHandler(quota *services.QuotaService, accounts *services.AccountService, moderation *services.ModerationService) *AdminHandler {
	return &AdminHandler{quota: quota, accounts: accounts, moderation: moderation}
}

type adminLoginRequest struct {
	Password string `json:"password"`
}

// Login 管理员口令登录，口令哈希放在环境变量里
func (h *AdminHandler) Login(c *gin.Context) {
	var req adminLoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "validation", "message": "请求体格式不正确"})
		return
	}

	hash := os.Getenv("ADMIN_PASSWORD_HASH")
	if hash == "" {
		c.JSON(http.StatusForbidden, gin.H{"error": "forbidden", "message": "未配置管理员口令"})
		return
	}
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(req.Password)); err != nil {
		c.JSON(http.StatusForbidden, gin.H{"error": "forbidden", "message": "口令错误"})
		return
	}

	session := sessions.Default(c)
	session.Set(middleware.AdminSessionKey, true)
	if err := session.Save(); err != nil {
		writeErr(c, &services.TransientError{Op: "保存会话", Err: err})
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func (h *AdminHandler) Logout(c *gin.Context) {
	session := sessions.Default(c)
	session.Clear()
	session.Save()
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

type setLimitRequest struct {
	UserID int64 `json:"user_id"`
	Limit  int   `json:"limit"`
}

// SetLimit 调整用户发布上限
func (h *AdminHandler) SetLimit(c *gin.Context) {
	var req setLimitRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.UserID == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "validation", "message": "请求体格式不正确"})
		return
	}
	if err := h.quota.SetLimit(req.UserID, req.Limit); err != nil {
		writeErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"user_id": req.UserID,
		"used":    h.quota.PublishedCount(req.UserID),
		"total":   h.quota.Limit(req.UserID),
	})
}

type banRequest struct {
	UserID int64  `json:"user_id"`
	Reason string `json:"reason"`
}

func (h *AdminHandler) Ban(c *gin.Context) {
	var req banRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.UserID == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "validation", "message": "请求体格式不正确"})
		return
	}
	if err := h.accounts.Ban(req.UserID, req.Reason); err != nil {
		writeErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func (h *AdminHandler) Unban(c *gin.Context) {
	var req banRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.UserID == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "validation", "message": "请求体格式不正确"})
		return
	}
	if err := h.accounts.Unban(req.UserID); err != nil {
		writeErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// Reports 未裁决的举报工单
func (h *AdminHandler) Reports(c *gin.Context) {
	tickets, err := h.moderation.OpenReports()
	if err != nil {
		writeErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"tickets": tickets})
}

type decideRequest struct {
	TicketID uint   `json:"ticket_id"`
	Decision string `json:"decision"`
}

// Decide 后台直接裁决工单，和审核面按钮走同一条幂等路径
func (h *AdminHandler) Decide(c *gin.Context) {
	var req decideRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.TicketID == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "validation", "message": "请求体格式不正确"})
		return
	}
	post, err := h.moderation.Decide(req.TicketID, models.Decision(req.Decision))
	if err != nil {
		writeErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "post": post})
}
