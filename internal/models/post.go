package models

import (
	"time"
)

type PostStatus string

const (
	PostStatusPending  PostStatus = "pending"
	PostStatusApproved PostStatus = "approved"
	PostStatusRejected PostStatus = "rejected"
)

type Post struct {
	ID          uint       `gorm:"primaryKey" json:"id"`
	Pid         string     `gorm:"uniqueIndex;size:8;not null" json:"pid"`
	AuthorID    int64      `gorm:"not null;index" json:"author_id"`
	Description string     `gorm:"type:text;not null" json:"description"`
	Category    string     `gorm:"size:32;not null;index" json:"category"`
	Tags        []string   `gorm:"serializer:json;type:text" json:"tags"`
	LikeCount   int        `gorm:"default:0" json:"like_count"`
	Status      PostStatus `gorm:"size:16;default:'pending';index" json:"status"`
	IsEdit      bool       `gorm:"default:false" json:"is_edit"`
	// 编辑草稿指向原帖，审核通过后内容合并进原帖，草稿本身删除
	OriginalPostID *uint     `gorm:"index" json:"original_post_id,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`

	// 非数据库字段，查询时按当前 viewer 填充
	Liked           bool   `gorm:"-" json:"liked"`
	Favorited       bool   `gorm:"-" json:"favorited"`
	Hidden          bool   `gorm:"-" json:"hidden"`
	DescriptionHTML string `gorm:"-" json:"description_html,omitempty"`
}
