package models

import (
	"time"
)

type ReactionKind string

const (
	ReactionLike     ReactionKind = "like"
	ReactionFavorite ReactionKind = "favorite"
	ReactionHidden   ReactionKind = "hidden"
)

// Reaction 每行代表某用户对某帖的一种布尔关系。
// (user_id, post_id, kind) 唯一，集合语义由唯一索引兜底。
type Reaction struct {
	ID        uint         `gorm:"primaryKey" json:"id"`
	UserID    int64        `gorm:"not null;index;uniqueIndex:idx_user_post_kind" json:"user_id"`
	PostID    uint         `gorm:"not null;index;uniqueIndex:idx_user_post_kind" json:"post_id"`
	Kind      ReactionKind `gorm:"size:16;not null;uniqueIndex:idx_user_post_kind" json:"kind"`
	CreatedAt time.Time    `json:"created_at"`
}

func ValidReactionKind(k ReactionKind) bool {
	switch k {
	case ReactionLike, ReactionFavorite, ReactionHidden:
		return true
	}
	return false
}
