package models

import (
	"time"
)

// Report 举报记录，同一用户对同一帖只保留第一条
type Report struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	PostID     uint      `gorm:"not null;index;uniqueIndex:idx_post_reporter" json:"post_id"`
	ReporterID int64     `gorm:"not null;index;uniqueIndex:idx_post_reporter" json:"reporter_id"`
	Reason     string    `gorm:"size:200" json:"reason"`
	CreatedAt  time.Time `json:"created_at"`
}
