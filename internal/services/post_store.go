package services

import (
	"errors"
	"regexp"
	"strings"
	"unicode/utf8"

	"jishi/internal/db"
	"jishi/internal/models"
	"jishi/internal/utils"

	"gorm.io/gorm"
)

const (
	DescriptionMin = 10
	DescriptionMax = 4000
	MaxTags        = 5
	MaxTagLen      = 30

	DefaultPageSize = 20
	MaxPageSize     = 50
)

var (
	urlRe = regexp.MustCompile(`(?i)https?://`)
	// 裸域名：联系方式统一走平台资料页，描述里不收站点
	domainRe = regexp.MustCompile(`\b[a-zA-Z0-9]([a-zA-Z0-9\-]{0,61}[a-zA-Z0-9])?\.([a-zA-Z]{2,})\b`)
)

// PostService 持有帖子生命周期状态机：
// pending --approve--> approved, pending --reject--> rejected,
// approved --edit合并--> approved，任何状态都可被删除，rejected 不再流转。
type PostService struct {
	quota *QuotaService
	hub   *Hub
}

func NewPostService(quota *QuotaService, hub *Hub) *PostService {
	return &PostService{quota: quota, hub: hub}
}

// CreateInput 一次提交的全部字段，编辑草稿通过 OriginalPid 指向原帖
type CreateInput struct {
	AuthorID    int64
	Description string
	Category    string
	Tags        []string
	IsEdit      bool
	OriginalPid string
}

func checkDescription(text string) error {
	n := utf8.RuneCountInString(text)
	if n < DescriptionMin {
		return validationf("描述太短（至少 %d 个字符）", DescriptionMin)
	}
	if n > DescriptionMax {
		return validationf("描述太长（最多 %d 个字符）", DescriptionMax)
	}
	if strings.Contains(text, "@") {
		return validationf("描述中不能包含 @用户名，发布后会自动附上你的联系方式")
	}
	if urlRe.MatchString(text) || domainRe.MatchString(text) {
		return validationf("描述中不能包含链接或网址，发布后会自动附上你的联系方式")
	}
	return nil
}

func normalizeTags(tags []string) ([]string, error) {
	if len(tags) > MaxTags {
		return nil, validationf("标签最多 %d 个", MaxTags)
	}
	out := make([]string, 0, len(tags))
	seen := make(map[string]bool)
	for _, tag := range tags {
		t := strings.ToLower(strings.TrimSpace(tag))
		if t == "" {
			return nil, validationf("标签不能为空")
		}
		if utf8.RuneCountInString(t) > MaxTagLen {
			return nil, validationf("单个标签最长 %d 个字符", MaxTagLen)
		}
		if !seen[t] {
			seen[t] = true
			out = append(out, t)
		}
	}
	return out, nil
}

// Create 校验、过配额门槛后落一条 pending 帖子。
// 校验和配额都发生在任何写入之前：失败即快速返回，不留半成品状态。
func (s *PostService) Create(in CreateInput) (*models.Post, error) {
	description := strings.TrimSpace(in.Description)
	if err := checkDescription(description); err != nil {
		return nil, err
	}

	var category models.Category
	if err := db.DB.First(&category, "name = ?", in.Category).Error; err != nil {
		return nil, validationf("分类 %q 不存在", in.Category)
	}

	tags, err := normalizeTags(in.Tags)
	if err != nil {
		return nil, err
	}

	var account models.Account
	if err := db.DB.First(&account, "user_id = ?", in.AuthorID).Error; err == nil && account.IsBanned {
		return nil, ErrForbidden
	}

	var originalID *uint
	if in.IsEdit {
		original, err := s.Get(in.OriginalPid)
		if err != nil {
			return nil, err
		}
		if original.AuthorID != in.AuthorID {
			return nil, ErrForbidden
		}
		if original.Status != models.PostStatusApproved {
			return nil, validationf("只有已发布的帖子才能提交修改")
		}
		originalID = &original.ID
	} else {
		// 编辑不占额度：审核通过后只是替换原帖内容，发布数不变
		if ok, used, limit := s.quota.Check(in.AuthorID); !ok {
			return nil, &QuotaExceededError{Used: used, Limit: limit}
		}
	}

	post := models.Post{
		Pid:            utils.RandString(8),
		AuthorID:       in.AuthorID,
		Description:    description,
		Category:       in.Category,
		Tags:           tags,
		Status:         models.PostStatusPending,
		IsEdit:         in.IsEdit,
		OriginalPostID: originalID,
	}
	if err := db.DB.Create(&post).Error; err != nil {
		return nil, &TransientError{Op: "创建帖子", Err: err}
	}
	return &post, nil
}

// Approve 审核通过。普通帖 pending→approved；编辑草稿则把内容合并进原帖、
// 删除草稿，草稿的 ID 永远不会作为已发布内容出现。重复 approve 幂等。
func (s *PostService) Approve(postID uint) (*models.Post, error) {
	var result *models.Post
	changed := false

	err := db.DB.Transaction(func(tx *gorm.DB) error {
		var post models.Post
		if err := tx.First(&post, postID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return &TransientError{Op: "读取帖子", Err: err}
		}

		if post.IsEdit && post.OriginalPostID != nil {
			var original models.Post
			if err := tx.First(&original, *post.OriginalPostID).Error; err != nil {
				return ErrNotFound
			}
			original.Description = post.Description
			original.Category = post.Category
			original.Tags = post.Tags
			original.Status = models.PostStatusApproved
			if err := tx.Save(&original).Error; err != nil {
				return &TransientError{Op: "合并编辑", Err: err}
			}
			if err := tx.Delete(&post).Error; err != nil {
				return &TransientError{Op: "删除编辑草稿", Err: err}
			}
			result = &original
			changed = true
			return nil
		}

		switch post.Status {
		case models.PostStatusApproved:
			result = &post // 重复点击，返回现状即可
			return nil
		case models.PostStatusRejected:
			return validationf("已拒绝的帖子不能再发布")
		}

		post.Status = models.PostStatusApproved
		if err := tx.Save(&post).Error; err != nil {
			return &TransientError{Op: "更新状态", Err: err}
		}
		result = &post
		changed = true
		return nil
	})
	if err != nil {
		return nil, err
	}

	if changed {
		s.quota.Invalidate(result.AuthorID)
		s.hub.Publish(models.Event{
			Kind:    models.EventPostApproved,
			Payload: models.PostEventPayload{Post: result},
		})
	}
	return result, nil
}

// Reject 审核拒绝，pending→rejected；重复 reject 幂等
func (s *PostService) Reject(postID uint) (*models.Post, error) {
	var post models.Post
	if err := db.DB.First(&post, postID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, &TransientError{Op: "读取帖子", Err: err}
	}

	switch post.Status {
	case models.PostStatusRejected:
		return &post, nil
	case models.PostStatusApproved:
		return nil, validationf("已发布的帖子不能被拒绝，请用删除")
	}

	post.Status = models.PostStatusRejected
	if err := db.DB.Save(&post).Error; err != nil {
		return nil, &TransientError{Op: "更新状态", Err: err}
	}

	s.quota.Invalidate(post.AuthorID)
	s.hub.Publish(models.Event{
		Kind:    models.EventPostRejected,
		Payload: models.PostRefPayload{ID: post.ID, Pid: post.Pid, AuthorID: post.AuthorID},
	})
	return &post, nil
}

// Delete 硬删除。requester 非空时做属主校验（用户自删），
// 为空则是审核删除，不检查属主。连带清掉反应、举报和未决的编辑草稿。
func (s *PostService) Delete(postID uint, requester *int64) (bool, error) {
	var post models.Post
	if err := db.DB.First(&post, postID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return false, ErrNotFound
		}
		return false, &TransientError{Op: "读取帖子", Err: err}
	}

	if requester != nil && *requester != post.AuthorID {
		return false, ErrForbidden
	}

	err := db.DB.Transaction(func(tx *gorm.DB) error {
		ids := []uint{post.ID}
		var drafts []models.Post
		tx.Where("original_post_id = ?", post.ID).Find(&drafts)
		for _, d := range drafts {
			ids = append(ids, d.ID)
		}

		if err := tx.Where("post_id IN ?", ids).Delete(&models.Reaction{}).Error; err != nil {
			return err
		}
		if err := tx.Where("post_id IN ?", ids).Delete(&models.Report{}).Error; err != nil {
			return err
		}
		if err := tx.Where("id IN ?", ids).Delete(&models.Post{}).Error; err != nil {
			return err
		}
		return nil
	})
	if err != nil {
		return false, &TransientError{Op: "删除帖子", Err: err}
	}

	s.quota.Invalidate(post.AuthorID)
	s.hub.Publish(models.Event{
		Kind:    models.EventPostDeleted,
		Payload: models.PostRefPayload{ID: post.ID, Pid: post.Pid},
	})
	return true, nil
}

func (s *PostService) Get(pid string) (*models.Post, error) {
	var post models.Post
	if err := db.DB.First(&post, "pid = ?", pid).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, &TransientError{Op: "读取帖子", Err: err}
	}
	return &post, nil
}

func (s *PostService) GetByID(postID uint) (*models.Post, error) {
	var post models.Post
	if err := db.DB.First(&post, postID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, &TransientError{Op: "读取帖子", Err: err}
	}
	return &post, nil
}

// QueryOpts 列表查询参数。Sort: newest | oldest | top
type QueryOpts struct {
	Category string
	Tags     []string
	Search   string
	Sort     string
	Page     int
	PageSize int
	ViewerID int64 // 0 = 匿名
}

// Query 只返回 approved 的帖子；viewer 隐藏过的不出现在结果里，
// liked/favorited/hidden 标记按 viewer 批量回填。
func (s *PostService) Query(opts QueryOpts) ([]models.Post, int64, error) {
	page := opts.Page
	if page < 1 {
		page = 1
	}
	perPage := opts.PageSize
	if perPage <= 0 {
		perPage = DefaultPageSize
	}
	if perPage > MaxPageSize {
		perPage = MaxPageSize
	}

	q := db.DB.Model(&models.Post{}).Where("status = ?", models.PostStatusApproved)

	if opts.Category != "" {
		q = q.Where("category = ?", opts.Category)
	}
	if opts.Search != "" {
		pattern := "%" + strings.ToLower(opts.Search) + "%"
		q = q.Where("LOWER(description) LIKE ?", pattern)
	}
	// 标签 AND 语义：每个标签都必须命中。标签在入库时统一小写，
	// JSON 文本里按带引号的形式匹配，避免子串误命中。
	for _, tag := range opts.Tags {
		t := strings.ToLower(strings.TrimSpace(tag))
		if t == "" {
			continue
		}
		q = q.Where("tags LIKE ?", "%\""+t+"\"%")
	}
	if opts.ViewerID != 0 {
		hidden := db.DB.Model(&models.Reaction{}).
			Select("post_id").
			Where("user_id = ? AND kind = ?", opts.ViewerID, models.ReactionHidden)
		q = q.Where("id NOT IN (?)", hidden)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, &TransientError{Op: "统计帖子", Err: err}
	}

	switch opts.Sort {
	case "oldest":
		q = q.Order("created_at ASC")
	case "top":
		q = q.Order("like_count DESC, created_at DESC")
	default:
		q = q.Order("created_at DESC")
	}

	var posts []models.Post
	if err := q.Limit(perPage).Offset((page - 1) * perPage).Find(&posts).Error; err != nil {
		return nil, 0, &TransientError{Op: "查询帖子", Err: err}
	}

	if err := s.fillViewerFlags(posts, opts.ViewerID); err != nil {
		return nil, 0, err
	}
	return posts, total, nil
}

// MyPosts 作者自己的帖子，任何状态都可见，编辑草稿除外
func (s *PostService) MyPosts(userID int64) ([]models.Post, error) {
	var posts []models.Post
	err := db.DB.Where("author_id = ? AND is_edit = ?", userID, false).
		Order("created_at DESC").
		Find(&posts).Error
	if err != nil {
		return nil, &TransientError{Op: "查询帖子", Err: err}
	}
	if err := s.fillViewerFlags(posts, userID); err != nil {
		return nil, err
	}
	return posts, nil
}

// fillViewerFlags 批量回填当前 viewer 的 liked/favorited/hidden 标记。
// 查询失败必须上抛：静默回填全 false 会被当成真实状态
func (s *PostService) fillViewerFlags(posts []models.Post, viewerID int64) error {
	if viewerID == 0 || len(posts) == 0 {
		return nil
	}

	postIDs := make([]uint, len(posts))
	for i, p := range posts {
		postIDs[i] = p.ID
	}

	var reactions []models.Reaction
	if err := db.DB.Where("user_id = ? AND post_id IN ?", viewerID, postIDs).
		Find(&reactions).Error; err != nil {
		return &TransientError{Op: "查询反应", Err: err}
	}

	type flagKey struct {
		postID uint
		kind   models.ReactionKind
	}
	flags := make(map[flagKey]bool, len(reactions))
	for _, r := range reactions {
		flags[flagKey{r.PostID, r.Kind}] = true
	}

	for i := range posts {
		posts[i].Liked = flags[flagKey{posts[i].ID, models.ReactionLike}]
		posts[i].Favorited = flags[flagKey{posts[i].ID, models.ReactionFavorite}]
		posts[i].Hidden = flags[flagKey{posts[i].ID, models.ReactionHidden}]
	}
	return nil
}

// Categories 分类目录
func (s *PostService) Categories() ([]models.Category, error) {
	var categories []models.Category
	if err := db.DB.Order("id ASC").Find(&categories).Error; err != nil {
		return nil, &TransientError{Op: "查询分类", Err: err}
	}
	return categories, nil
}
