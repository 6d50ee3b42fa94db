package handlers

import (
	"net/http"
	"strings"

	"jishi/internal/models"
	"jishi/internal/services"
	"jishi/internal/utils"

	"github.com/gin-gonic/gin"
)

type PostHandler struct {
	posts      *services.PostService
	moderation *services.ModerationService
	quota      *services.QuotaService
}

func NewPostHandler(posts *services.PostService, moderation *services.ModerationService, quota *services.QuotaService) *PostHandler {
	return &PostHandler{posts: posts, moderation: moderation, quota: quota}
}

type createPostRequest struct {
	Description string   `json:"description"`
	Category    string   `json:"category"`
	Tags        []string `json:"tags"`
	EditOf      string   `json:"edit_of"` // 非空时是对已发布帖子的修改稿
}

// Create 提交新帖（或修改稿），落库后签发审核工单
func (h *PostHandler) Create(c *gin.Context) {
	account := currentAccount(c)

	var req createPostRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "validation", "message": "请求体格式不正确"})
		return
	}

	post, err := h.posts.Create(services.CreateInput{
		AuthorID:    account.UserID,
		Description: req.Description,
		Category:    req.Category,
		Tags:        req.Tags,
		IsEdit:      req.EditOf != "",
		OriginalPid: req.EditOf,
	})
	if err != nil {
		writeErr(c, err)
		return
	}

	ticket, err := h.moderation.Submit(post)
	if err != nil {
		writeErr(c, err)
		return
	}

	// fail-open 时帖子此刻已是 approved，重新读一遍返回真实状态
	if ticket.Closed() {
		if fresh, err := h.posts.Get(post.Pid); err == nil {
			post = fresh
		}
	}

	used := h.quota.PublishedCount(account.UserID)
	limit := h.quota.Limit(account.UserID)
	c.JSON(http.StatusCreated, gin.H{
		"post":  post,
		"quota": gin.H{"used": used, "total": limit},
	})
}

// List 帖子列表，只含已发布内容，按 viewer 过滤 hidden 并回填标记
func (h *PostHandler) List(c *gin.Context) {
	var viewerID int64
	if account := currentAccount(c); account != nil {
		viewerID = account.UserID
	}

	var tags []string
	if raw := c.Query("tags"); raw != "" {
		tags = strings.Split(raw, ",")
	}

	posts, total, err := h.posts.Query(services.QueryOpts{
		Category: c.Query("category"),
		Tags:     tags,
		Search:   c.Query("q"),
		Sort:     c.Query("sort"),
		Page:     utils.StringToInt(c.Query("page")),
		PageSize: utils.StringToInt(c.Query("page_size")),
		ViewerID: viewerID,
	})
	if err != nil {
		writeErr(c, err)
		return
	}

	for i := range posts {
		posts[i].DescriptionHTML = utils.RenderDescription(posts[i].Description)
	}
	c.JSON(http.StatusOK, gin.H{"posts": posts, "total": total})
}

// Detail 单帖详情。未发布的帖子只有作者本人可见
func (h *PostHandler) Detail(c *gin.Context) {
	post, err := h.posts.Get(c.Param("pid"))
	if err != nil {
		writeErr(c, err)
		return
	}

	account := currentAccount(c)
	if post.Status != models.PostStatusApproved {
		if account == nil || account.UserID != post.AuthorID {
			writeErr(c, services.ErrNotFound)
			return
		}
	}

	post.DescriptionHTML = utils.RenderDescription(post.Description)
	c.JSON(http.StatusOK, gin.H{"post": post})
}

// Delete 作者删除自己的帖子
func (h *PostHandler) Delete(c *gin.Context) {
	account := currentAccount(c)

	post, err := h.posts.Get(c.Param("pid"))
	if err != nil {
		writeErr(c, err)
		return
	}

	requester := account.UserID
	if _, err := h.posts.Delete(post.ID, &requester); err != nil {
		writeErr(c, err)
		return
	}

	used := h.quota.PublishedCount(account.UserID)
	limit := h.quota.Limit(account.UserID)
	c.JSON(http.StatusOK, gin.H{
		"deleted": true,
		"quota":   gin.H{"used": used, "total": limit},
	})
}

// MyPosts 我的帖子，pending/rejected 也在列表里
func (h *PostHandler) MyPosts(c *gin.Context) {
	account := currentAccount(c)

	posts, err := h.posts.MyPosts(account.UserID)
	if err != nil {
		writeErr(c, err)
		return
	}
	for i := range posts {
		posts[i].DescriptionHTML = utils.RenderDescription(posts[i].Description)
	}
	c.JSON(http.StatusOK, gin.H{"posts": posts})
}

// Categories 分类目录
func (h *PostHandler) Categories(c *gin.Context) {
	categories, err := h.posts.Categories()
	if err != nil {
		writeErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"categories": categories})
}

// Me 当前账号概况，含配额用量
func (h *PostHandler) Me(c *gin.Context) {
	account := currentAccount(c)

	used := h.quota.PublishedCount(account.UserID)
	limit := h.quota.Limit(account.UserID)
	c.JSON(http.StatusOK, gin.H{
		"account": account,
		"quota":   gin.H{"used": used, "total": limit},
	})
}
