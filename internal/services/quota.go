package services

import (
	"fmt"
	"os"
	"time"

	"jishi/internal/db"
	"jishi/internal/models"
	"jishi/internal/utils"
)

const quotaCacheTTL = 60 * time.Second

// QuotaService 回答"用户 X 现在还能不能再发一条"。
// 用量永远等于 posts 表里该用户 approved 状态的行数：
// 缓存只是加速读，任何影响该计数的状态迁移都会同步失效缓存。
// 提交时自增的内存计数器会和真实发布数漂移，这里不存在这种计数器。
type QuotaService struct {
	hub          *Hub
	defaultLimit int
}

func NewQuotaService(hub *Hub) *QuotaService {
	limit := utils.StringToInt(os.Getenv("DEFAULT_POST_LIMIT"))
	if limit <= 0 {
		limit = 4
	}
	return &QuotaService{hub: hub, defaultLimit: limit}
}

func quotaUsedKey(userID int64) string {
	return fmt.Sprintf("quota:used:%d", userID)
}

func quotaLimitKey(userID int64) string {
	return fmt.Sprintf("quota:limit:%d", userID)
}

// PublishedCount 当前已发布（approved）帖子数
func (s *QuotaService) PublishedCount(userID int64) int {
	key := quotaUsedKey(userID)
	if cached := utils.GetCache().Get(key); cached != nil {
		if n, ok := cached.(int); ok {
			return n
		}
	}

	var count int64
	db.DB.Model(&models.Post{}).
		Where("author_id = ? AND status = ?", userID, models.PostStatusApproved).
		Count(&count)

	utils.GetCache().Set(key, int(count), quotaCacheTTL)
	return int(count)
}

// Limit 用户的发布上限，没有单独设置时用默认值
func (s *QuotaService) Limit(userID int64) int {
	key := quotaLimitKey(userID)
	if cached := utils.GetCache().Get(key); cached != nil {
		if n, ok := cached.(int); ok {
			return n
		}
	}

	limit := s.defaultLimit
	var account models.Account
	if err := db.DB.First(&account, "user_id = ?", userID).Error; err == nil {
		limit = account.PublishLimit
	}

	utils.GetCache().Set(key, limit, 10*time.Minute)
	return limit
}

// Check 发布资格判定，返回当前用量便于直接回显给用户
func (s *QuotaService) Check(userID int64) (ok bool, used, limit int) {
	used = s.PublishedCount(userID)
	limit = s.Limit(userID)
	return used < limit, used, limit
}

// SetLimit 管理员调整上限
func (s *QuotaService) SetLimit(userID int64, n int) error {
	if n < 0 {
		return validationf("发布上限不能为负数")
	}

	res := db.DB.Model(&models.Account{}).
		Where("user_id = ?", userID).
		Update("publish_limit", n)
	if res.Error != nil {
		return &TransientError{Op: "更新发布上限", Err: res.Error}
	}
	if res.RowsAffected == 0 {
		// 账号还没同步过，先落一行。用列值 map 插入：
		// 结构体插入会让零值上限被 default:4 顶掉
		now := time.Now()
		err := db.DB.Model(&models.Account{}).Create(map[string]interface{}{
			"user_id":       userID,
			"publish_limit": n,
			"language":      "ru",
			"created_at":    now,
			"updated_at":    now,
		}).Error
		if err != nil {
			return &TransientError{Op: "更新发布上限", Err: err}
		}
	}

	utils.GetCache().Delete(quotaLimitKey(userID))
	utils.GetCache().Delete(fmt.Sprintf("account:%d", userID))
	s.notify(userID)
	return nil
}

// Invalidate 在改变用户 approved 计数的同一逻辑操作内同步调用，
// 随后把最新用量推给该用户（只推本人，不广播）。
func (s *QuotaService) Invalidate(userID int64) {
	utils.GetCache().Delete(quotaUsedKey(userID))
	s.notify(userID)
}

func (s *QuotaService) notify(userID int64) {
	if s.hub == nil {
		return
	}
	used := s.PublishedCount(userID)
	limit := s.Limit(userID)
	s.hub.PublishTo(userID, models.Event{
		Kind:    models.EventQuotaUpdated,
		Payload: models.QuotaPayload{Used: used, Limit: limit},
	})
}
