package services

import (
	"errors"
	"fmt"
	"log"
	"time"

	"jishi/internal/db"
	"jishi/internal/models"
	"jishi/internal/utils"

	"gorm.io/gorm"
)

const accountCacheTTL = 5 * time.Minute

// AccountService 账号同步与封禁。资料字段来自客户端每次会话的同步，
// 封禁只能由管理操作触发。
type AccountService struct {
	hub      *Hub
	notifier Notifier
}

func NewAccountService(hub *Hub, notifier Notifier) *AccountService {
	return &AccountService{hub: hub, notifier: notifier}
}

func accountCacheKey(userID int64) string {
	return fmt.Sprintf("account:%d", userID)
}

// Profile 客户端上报的资料字段
type Profile struct {
	UserID    int64  `json:"user_id"`
	Username  string `json:"username"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	PhotoURL  string `json:"photo_url"`
	Language  string `json:"language"`
}

// Sync 按资料 upsert 账号，带短缓存避免每个请求都写库
func (s *AccountService) Sync(p Profile) (*models.Account, error) {
	if cached := utils.GetCache().Get(accountCacheKey(p.UserID)); cached != nil {
		if account, ok := cached.(*models.Account); ok {
			return account, nil
		}
	}

	var account models.Account
	err := db.DB.First(&account, "user_id = ?", p.UserID).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		account = models.Account{
			UserID:    p.UserID,
			Username:  p.Username,
			FirstName: p.FirstName,
			LastName:  p.LastName,
			PhotoURL:  p.PhotoURL,
			Language:  p.Language,
		}
		if account.Language == "" {
			account.Language = "ru"
		}
		if err := db.DB.Create(&account).Error; err != nil {
			return nil, &TransientError{Op: "创建账号", Err: err}
		}
	case err != nil:
		return nil, &TransientError{Op: "读取账号", Err: err}
	default:
		account.Username = p.Username
		account.FirstName = p.FirstName
		account.LastName = p.LastName
		account.PhotoURL = p.PhotoURL
		if p.Language != "" {
			account.Language = p.Language
		}
		if err := db.DB.Save(&account).Error; err != nil {
			return nil, &TransientError{Op: "更新账号", Err: err}
		}
	}

	utils.GetCache().Set(accountCacheKey(p.UserID), &account, accountCacheTTL)
	return &account, nil
}

func (s *AccountService) Get(userID int64) (*models.Account, error) {
	if cached := utils.GetCache().Get(accountCacheKey(userID)); cached != nil {
		if account, ok := cached.(*models.Account); ok {
			return account, nil
		}
	}
	var account models.Account
	if err := db.DB.First(&account, "user_id = ?", userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, &TransientError{Op: "读取账号", Err: err}
	}
	utils.GetCache().Set(accountCacheKey(userID), &account, accountCacheTTL)
	return &account, nil
}

// Ban 封禁后该用户不能再提交、互动、举报
func (s *AccountService) Ban(userID int64, reason string) error {
	err := db.DB.Model(&models.Account{}).
		Where("user_id = ?", userID).
		Updates(map[string]interface{}{"is_banned": true, "ban_reason": reason}).Error
	if err != nil {
		return &TransientError{Op: "封禁账号", Err: err}
	}

	utils.GetCache().Delete(accountCacheKey(userID))
	s.hub.PublishTo(userID, models.Event{
		Kind:    models.EventUserBanned,
		Payload: models.BanPayload{Reason: reason},
	})
	if s.notifier != nil {
		if err := s.notifier.Send(userID, "🚫 你的账号已被封禁。"+reason); err != nil {
			log.Printf("封禁通知失败 (user=%d): %v", userID, err)
		}
	}
	return nil
}

func (s *AccountService) Unban(userID int64) error {
	err := db.DB.Model(&models.Account{}).
		Where("user_id = ?", userID).
		Updates(map[string]interface{}{"is_banned": false, "ban_reason": ""}).Error
	if err != nil {
		return &TransientError{Op: "解封账号", Err: err}
	}

	utils.GetCache().Delete(accountCacheKey(userID))
	s.hub.PublishTo(userID, models.Event{Kind: models.EventUserUnbanned})
	if s.notifier != nil {
		if err := s.notifier.Send(userID, "✅ 你的账号已解除封禁。"); err != nil {
			log.Printf("解封通知失败 (user=%d): %v", userID, err)
		}
	}
	return nil
}
