package handlers

import (
	"errors"
	"log"
	"net/http"

	"jishi/internal/middleware"
	"jishi/internal/models"
	"jishi/internal/services"

	"github.com/gin-gonic/gin"
)

// currentAccount 取出中间件挂上的账号，匿名返回 nil
func currentAccount(c *gin.Context) *models.Account {
	v, exists := c.Get(middleware.CheckUserKey)
	if !exists {
		return nil
	}
	account, _ := v.(*models.Account)
	return account
}

// writeErr 把服务层错误翻译成 HTTP 响应。
// 校验失败 400、配额 429、权限 403、不存在 404，其余一律 502 并记日志。
func writeErr(c *gin.Context, err error) {
	var vErr *services.ValidationError
	var qErr *services.QuotaExceededError

	switch {
	case errors.As(err, &vErr):
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "validation",
			"message": vErr.Reason,
		})
	case errors.As(err, &qErr):
		c.JSON(http.StatusTooManyRequests, gin.H{
			"error":   "quota_exceeded",
			"message": qErr.Error(),
			"used":    qErr.Used,
			"total":   qErr.Limit,
		})
	case errors.Is(err, services.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{
			"error":   "not_found",
			"message": services.ErrNotFound.Error(),
		})
	case errors.Is(err, services.ErrForbidden):
		c.JSON(http.StatusForbidden, gin.H{
			"error":   "forbidden",
			"message": services.ErrForbidden.Error(),
		})
	default:
		log.Printf("请求处理失败: %v", err)
		c.JSON(http.StatusBadGateway, gin.H{
			"error":   "transient",
			"message": "服务暂时不可用，请稍后再试",
		})
	}
}
