package services

import (
	"sync"
	"testing"

	"jishi/internal/db"
	"jishi/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToggleLikeRoundTrip(t *testing.T) {
	setupDB(t)
	posts, _ := newPostService(t)
	reactions := NewReactionService(NewHub())

	post := mustPublish(t, posts, 3001)
	liker := int64(3002)

	result, err := reactions.Toggle(liker, post.Pid, models.ReactionLike)
	require.NoError(t, err)
	assert.True(t, result.Added)
	assert.Equal(t, 1, result.LikeCount)

	// 第二次 toggle 回到原状
	result, err = reactions.Toggle(liker, post.Pid, models.ReactionLike)
	require.NoError(t, err)
	assert.False(t, result.Added)
	assert.Zero(t, result.LikeCount)
	assert.Zero(t, LikeCountOf(post.ID))
}

func TestLikeCountMatchesSet(t *testing.T) {
	setupDB(t)
	posts, _ := newPostService(t)
	reactions := NewReactionService(NewHub())

	post := mustPublish(t, posts, 3003)
	for _, liker := range []int64{3004, 3005, 3006} {
		_, err := reactions.Toggle(liker, post.Pid, models.ReactionLike)
		require.NoError(t, err)
	}
	_, err := reactions.Toggle(3005, post.Pid, models.ReactionLike)
	require.NoError(t, err)

	// 冗余计数永远等于 liked 集合的基数
	fresh, err := posts.Get(post.Pid)
	require.NoError(t, err)
	assert.Equal(t, 2, fresh.LikeCount)
	assert.EqualValues(t, 2, LikeCountOf(post.ID))
}

func TestConcurrentToggles(t *testing.T) {
	setupDB(t)
	posts, _ := newPostService(t)
	reactions := NewReactionService(NewHub())

	post := mustPublish(t, posts, 3007)
	liker := int64(3008)

	// 同一 (user, post) 的并发 toggle 被串行化，偶数次后必须回到原状
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := reactions.Toggle(liker, post.Pid, models.ReactionLike)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	fresh, err := posts.Get(post.Pid)
	require.NoError(t, err)
	assert.Zero(t, fresh.LikeCount)
	assert.Zero(t, LikeCountOf(post.ID))

	var count int64
	db.DB.Model(&models.Reaction{}).
		Where("user_id = ? AND post_id = ?", liker, post.ID).
		Count(&count)
	assert.Zero(t, count)
}

func TestToggleUnpublishedPostNotFound(t *testing.T) {
	setupDB(t)
	posts, _ := newPostService(t)
	reactions := NewReactionService(NewHub())

	pending := mustCreate(t, posts, 3009)
	_, err := reactions.Toggle(3010, pending.Pid, models.ReactionLike)
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = reactions.Toggle(3010, "missing0", models.ReactionLike)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestToggleUnknownKind(t *testing.T) {
	setupDB(t)
	posts, _ := newPostService(t)
	reactions := NewReactionService(NewHub())

	post := mustPublish(t, posts, 3011)
	_, err := reactions.Toggle(3012, post.Pid, models.ReactionKind("star"))
	var vErr *ValidationError
	assert.ErrorAs(t, err, &vErr)
}

func TestFavoriteDoesNotTouchLikeCount(t *testing.T) {
	setupDB(t)
	posts, _ := newPostService(t)
	reactions := NewReactionService(NewHub())

	post := mustPublish(t, posts, 3013)
	viewer := int64(3014)

	result, err := reactions.Toggle(viewer, post.Pid, models.ReactionFavorite)
	require.NoError(t, err)
	assert.True(t, result.Added)

	fresh, err := posts.Get(post.Pid)
	require.NoError(t, err)
	assert.Zero(t, fresh.LikeCount)
}

func TestBannedUserCannotReact(t *testing.T) {
	setupDB(t)
	posts, _ := newPostService(t)
	reactions := NewReactionService(NewHub())
	accounts := NewAccountService(NewHub(), nil)

	post := mustPublish(t, posts, 3015)
	banned := int64(3016)
	_, err := accounts.Sync(Profile{UserID: banned, Username: "banned_user"})
	require.NoError(t, err)
	require.NoError(t, accounts.Ban(banned, "刷屏"))

	_, err = reactions.Toggle(banned, post.Pid, models.ReactionLike)
	assert.ErrorIs(t, err, ErrForbidden)
}
