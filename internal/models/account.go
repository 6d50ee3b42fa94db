package models

import (
	"time"
)

// Account 以聊天平台的用户 ID 为主键，资料字段由客户端每次同步时刷新
type Account struct {
	UserID       int64     `gorm:"primaryKey" json:"user_id"`
	Username     string    `gorm:"size:64" json:"username"`
	FirstName    string    `gorm:"size:64" json:"first_name"`
	LastName     string    `gorm:"size:64" json:"last_name"`
	PhotoURL     string    `json:"photo_url"`
	Language     string    `gorm:"size:8;default:'ru'" json:"language"`
	PublishLimit int       `gorm:"default:4" json:"publish_limit"`
	IsBanned     bool      `gorm:"default:false" json:"is_banned"`
	BanReason    string    `gorm:"size:200" json:"ban_reason,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}
