package handlers_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"

	"jishi/internal/db"
	"jishi/internal/middleware"
	"jishi/internal/models"
	"jishi/internal/router"
	"jishi/internal/services"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testBotToken = "12345:test-token"

type recordedSurface struct {
	mu        sync.Mutex
	presented []uint
}

func (f *recordedSurface) Present(ticketID uint, post *models.Post, kind models.TicketKind, reason string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.presented = append(f.presented, ticketID)
	return fmt.Sprintf("msg-%d", ticketID), nil
}

func (f *recordedSurface) Update(ref string, outcome string) error { return nil }

type testEnv struct {
	engine *gin.Engine
	posts  *services.PostService
	quota  *services.QuotaService
}

func newTestEnv(t *testing.T, surface services.Surface) *testEnv {
	t.Helper()
	t.Setenv("BOT_TOKEN", testBotToken)
	t.Setenv("DEFAULT_POST_LIMIT", "")
	_, err := db.OpenTest()
	require.NoError(t, err)

	gin.SetMode(gin.TestMode)
	hub := services.NewHub()
	accounts := services.NewAccountService(hub, nil)
	quota := services.NewQuotaService(hub)
	posts := services.NewPostService(quota, hub)
	reactions := services.NewReactionService(hub)
	moderation := services.NewModerationService(surface, nil, posts)

	engine := gin.New()
	router.RegisterRoutes(engine, router.Deps{
		Hub:        hub,
		Quota:      quota,
		Posts:      posts,
		Reactions:  reactions,
		Moderation: moderation,
		Accounts:   accounts,
	})
	return &testEnv{engine: engine, posts: posts, quota: quota}
}

func initDataFor(t *testing.T, userID int64) string {
	t.Helper()
	values := url.Values{}
	values.Set("user", fmt.Sprintf(`{"id":%d,"username":"user%d"}`, userID, userID))
	values.Set("auth_date", "1700000000")
	return middleware.SignInitData(testBotToken, values)
}

func (e *testEnv) do(t *testing.T, method, path string, userID int64, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if userID != 0 {
		req.Header.Set("X-Telegram-Init-Data", initDataFor(t, userID))
	}
	w := httptest.NewRecorder()
	e.engine.ServeHTTP(w, req)
	return w
}

const apiDescription = "出一套九成新的滑雪装备，雪板雪鞋都有，适合初学者"

func TestSubmitFailOpenFlow(t *testing.T) {
	env := newTestEnv(t, nil)
	author := int64(6001)

	w := env.do(t, http.MethodPost, "/api/posts", author, gin.H{
		"description": apiDescription,
		"category":    "goods",
		"tags":        []string{"滑雪"},
	})
	require.Equal(t, http.StatusCreated, w.Code)

	var resp struct {
		Post  models.Post `json:"post"`
		Quota struct {
			Used  int `json:"used"`
			Total int `json:"total"`
		} `json:"quota"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	// 没配审核面：提交即发布，配额立刻占用
	assert.Equal(t, models.PostStatusApproved, resp.Post.Status)
	assert.Equal(t, 1, resp.Quota.Used)
	assert.Equal(t, 4, resp.Quota.Total)

	// 匿名也能在列表里看到
	w = env.do(t, http.MethodGet, "/api/posts", 0, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), resp.Post.Pid)
}

func TestSubmitValidationAndQuotaStatus(t *testing.T) {
	env := newTestEnv(t, nil)
	author := int64(6002)

	w := env.do(t, http.MethodPost, "/api/posts", author, gin.H{
		"description": "太短",
		"category":    "goods",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	require.NoError(t, env.quota.SetLimit(author, 0))
	w = env.do(t, http.MethodPost, "/api/posts", author, gin.H{
		"description": apiDescription,
		"category":    "goods",
	})
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Contains(t, w.Body.String(), "quota_exceeded")
}

func TestPendingFlowWithSurface(t *testing.T) {
	surface := &recordedSurface{}
	env := newTestEnv(t, surface)
	author := int64(6003)

	w := env.do(t, http.MethodPost, "/api/posts", author, gin.H{
		"description": apiDescription,
		"category":    "goods",
	})
	require.Equal(t, http.StatusCreated, w.Code)

	var resp struct {
		Post models.Post `json:"post"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, models.PostStatusPending, resp.Post.Status)
	require.Len(t, surface.presented, 1)

	// pending 的帖子对外不可见，作者自己可见
	w = env.do(t, http.MethodGet, "/api/posts/"+resp.Post.Pid, 0, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	w = env.do(t, http.MethodGet, "/api/posts/"+resp.Post.Pid, author, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	// 审核面按钮回调走 webhook
	callback := gin.H{"callback_query": gin.H{
		"id":   "cb1",
		"data": fmt.Sprintf("decide:%d:approve", surface.presented[0]),
	}}
	w = env.do(t, http.MethodPost, "/moderation/callback", 0, callback)
	require.Equal(t, http.StatusOK, w.Code)

	fresh, err := env.posts.Get(resp.Post.Pid)
	require.NoError(t, err)
	assert.Equal(t, models.PostStatusApproved, fresh.Status)

	// 重复点击同一个按钮照样 200，状态不动
	w = env.do(t, http.MethodPost, "/moderation/callback", 0, callback)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestCallbackIgnoresGarbage(t *testing.T) {
	env := newTestEnv(t, nil)

	// webhook 对不认识的载荷必须回 200，否则平台会无限重试
	w := env.do(t, http.MethodPost, "/moderation/callback", 0, gin.H{"message": gin.H{"text": "hi"}})
	assert.Equal(t, http.StatusOK, w.Code)

	w = env.do(t, http.MethodPost, "/moderation/callback", 0, gin.H{"callback_query": gin.H{"data": "what:is:this:even"}})
	assert.Equal(t, http.StatusOK, w.Code)

	// 指向不存在工单的回调（消息被转发、工单被清理等）同样不能触发重试
	w = env.do(t, http.MethodPost, "/moderation/callback", 0, gin.H{"callback_query": gin.H{"data": "decide:99999:approve"}})
	assert.Equal(t, http.StatusOK, w.Code)

	w = env.do(t, http.MethodPost, "/moderation/callback", 0, gin.H{"callback_query": gin.H{"data": "decide:99999:nuke"}})
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestReactionAndReportEndpoints(t *testing.T) {
	env := newTestEnv(t, nil)
	author := int64(6004)
	viewer := int64(6005)

	w := env.do(t, http.MethodPost, "/api/posts", author, gin.H{
		"description": apiDescription,
		"category":    "goods",
	})
	require.Equal(t, http.StatusCreated, w.Code)
	var resp struct {
		Post models.Post `json:"post"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	pid := resp.Post.Pid

	w = env.do(t, http.MethodPost, "/api/posts/"+pid+"/reactions/like", viewer, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"added":true`)
	assert.Contains(t, w.Body.String(), `"like_count":1`)

	w = env.do(t, http.MethodPost, "/api/posts/"+pid+"/reactions/star", viewer, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	// 匿名不能互动
	w = env.do(t, http.MethodPost, "/api/posts/"+pid+"/reactions/like", 0, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = env.do(t, http.MethodPost, "/api/posts/"+pid+"/report", viewer, gin.H{"reason": "可疑信息"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"already_reported":false`)

	w = env.do(t, http.MethodPost, "/api/posts/"+pid+"/report", viewer, gin.H{"reason": "再举报一次"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"already_reported":true`)
}

func TestDeleteOwnPost(t *testing.T) {
	env := newTestEnv(t, nil)
	author := int64(6006)
	stranger := int64(6007)

	w := env.do(t, http.MethodPost, "/api/posts", author, gin.H{
		"description": apiDescription,
		"category":    "goods",
	})
	require.Equal(t, http.StatusCreated, w.Code)
	var resp struct {
		Post models.Post `json:"post"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))

	w = env.do(t, http.MethodDelete, "/api/posts/"+resp.Post.Pid, stranger, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = env.do(t, http.MethodDelete, "/api/posts/"+resp.Post.Pid, author, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"used":0`)
}

func TestMeAndMyPosts(t *testing.T) {
	env := newTestEnv(t, nil)
	author := int64(6008)

	w := env.do(t, http.MethodGet, "/api/me", author, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"total":4`)

	w = env.do(t, http.MethodPost, "/api/posts", author, gin.H{
		"description": apiDescription,
		"category":    "goods",
	})
	require.Equal(t, http.StatusCreated, w.Code)

	w = env.do(t, http.MethodGet, "/api/my/posts", author, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), apiDescription)
}

func TestHealthAndCategories(t *testing.T) {
	env := newTestEnv(t, nil)

	w := env.do(t, http.MethodGet, "/health", 0, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"ok"`)

	w = env.do(t, http.MethodGet, "/api/categories", 0, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "housing")
}
