package services

import (
	"errors"
	"fmt"

	"jishi/internal/db"
	"jishi/internal/models"

	"gorm.io/gorm"
)

// ReactionService 维护每用户的 like/favorite/hidden 集合。
// like 的集合成员关系和帖子 like_count 在同一事务里一起变，
// 同一 (user, post) 的 toggle 按 key 串行，防止并发双读双加。
type ReactionService struct {
	hub   *Hub
	locks *keyedMutex
}

func NewReactionService(hub *Hub) *ReactionService {
	return &ReactionService{hub: hub, locks: newKeyedMutex()}
}

// ToggleResult Added 表示这次调用把关系加上了（false 即移除）
type ToggleResult struct {
	Added     bool `json:"added"`
	LikeCount int  `json:"like_count,omitempty"`
}

func reactionLockKey(userID int64, postID uint) string {
	return fmt.Sprintf("reaction:%d:%d", userID, postID)
}

// Toggle 翻转集合成员关系。两次连续 toggle 回到原状。
func (s *ReactionService) Toggle(userID int64, pid string, kind models.ReactionKind) (*ToggleResult, error) {
	if !models.ValidReactionKind(kind) {
		return nil, validationf("不支持的操作 %q", kind)
	}

	var post models.Post
	if err := db.DB.First(&post, "pid = ?", pid).Error; err != nil {
		return nil, ErrNotFound
	}
	// 未发布的帖子对 viewer 不可见，也不可互动
	if post.Status != models.PostStatusApproved {
		return nil, ErrNotFound
	}

	var account models.Account
	if err := db.DB.First(&account, "user_id = ?", userID).Error; err == nil && account.IsBanned {
		return nil, ErrForbidden
	}

	key := reactionLockKey(userID, post.ID)
	s.locks.Lock(key)
	defer s.locks.Unlock(key)

	result := &ToggleResult{}
	err := db.DB.Transaction(func(tx *gorm.DB) error {
		var existing models.Reaction
		err := tx.Where("user_id = ? AND post_id = ? AND kind = ?", userID, post.ID, kind).
			First(&existing).Error

		switch {
		case err == nil:
			if err := tx.Delete(&existing).Error; err != nil {
				return err
			}
			if kind == models.ReactionLike {
				// 集合与计数同事务同方向变，计数永不为负
				if err := tx.Model(&models.Post{}).
					Where("id = ? AND like_count > 0", post.ID).
					UpdateColumn("like_count", gorm.Expr("like_count - 1")).Error; err != nil {
					return err
				}
			}
			result.Added = false
		case errors.Is(err, gorm.ErrRecordNotFound):
			reaction := models.Reaction{UserID: userID, PostID: post.ID, Kind: kind}
			if err := tx.Create(&reaction).Error; err != nil {
				return err
			}
			if kind == models.ReactionLike {
				if err := tx.Model(&models.Post{}).
					Where("id = ?", post.ID).
					UpdateColumn("like_count", gorm.Expr("like_count + 1")).Error; err != nil {
					return err
				}
			}
			result.Added = true
		default:
			return err
		}
		return nil
	})
	if err != nil {
		return nil, &TransientError{Op: "更新反应", Err: err}
	}

	if kind == models.ReactionLike {
		var fresh models.Post
		if err := db.DB.Select("like_count").First(&fresh, post.ID).Error; err == nil {
			result.LikeCount = fresh.LikeCount
		}
		s.hub.Publish(models.Event{
			Kind:    models.EventPostLiked,
			Payload: models.LikePayload{Pid: post.Pid, LikeCount: result.LikeCount},
		})
	} else {
		// 收藏/隐藏是私有状态，只推给本人
		eventKind := models.EventFavoritesUpdated
		if kind == models.ReactionHidden {
			eventKind = models.EventHiddenUpdated
		}
		s.hub.PublishTo(userID, models.Event{
			Kind:    eventKind,
			Payload: models.ReactionPayload{Pid: post.Pid, Added: result.Added},
		})
	}
	return result, nil
}

// LikeCountOf 实时统计 liked 集合里包含该帖的用户数（校验计数一致性用）
func LikeCountOf(postID uint) int64 {
	var count int64
	db.DB.Model(&models.Reaction{}).
		Where("post_id = ? AND kind = ?", postID, models.ReactionLike).
		Count(&count)
	return count
}
