package router

import (
	"net/http"

	"jishi/internal/handlers"
	"jishi/internal/middleware"
	"jishi/internal/services"

	"github.com/gin-gonic/gin"
)

// Deps 路由需要的全部服务
type Deps struct {
	Hub        *services.Hub
	Quota      *services.QuotaService
	Posts      *services.PostService
	Reactions  *services.ReactionService
	Moderation *services.ModerationService
	Accounts   *services.AccountService
	BotWired   bool
}

func RegisterRoutes(r *gin.Engine, d Deps) {
	// Handlers
	postHandler := handlers.NewPostHandler(d.Posts, d.Moderation, d.Quota)
	reactionHandler := handlers.NewReactionHandler(d.Reactions, d.Moderation)
	wsHandler := handlers.NewWSHandler(d.Hub, d.Quota, d.Accounts)
	moderationHandler := handlers.NewModerationHandler(d.Moderation)
	adminHandler := handlers.NewAdminHandler(d.Quota, d.Accounts, d.Moderation)

	r.GET("/", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"service": "jishi"})
	})
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "sessions": d.Hub.Count(), "bot": d.BotWired})
	})

	// 公共路由：列表和目录允许匿名，带 init data 时回填 viewer 标记
	public := r.Group("/api")
	public.Use(middleware.TelegramAuth(d.Accounts, false))
	{
		public.GET("/categories", postHandler.Categories)
		public.GET("/posts", postHandler.List)
		public.GET("/posts/:pid", postHandler.Detail)
	}

	// 受保护路由：必须携带合法 init data
	authorized := r.Group("/api")
	authorized.Use(middleware.TelegramAuth(d.Accounts, true))
	{
		authorized.GET("/me", postHandler.Me)
		authorized.GET("/my/posts", postHandler.MyPosts)
		authorized.POST("/posts", postHandler.Create)
		authorized.DELETE("/posts/:pid", postHandler.Delete)
		authorized.POST("/posts/:pid/reactions/:kind", reactionHandler.Toggle)
		authorized.POST("/posts/:pid/report", reactionHandler.Report)
	}

	// WebSocket：init data 走 query 参数，匿名也能收公共广播
	r.GET("/ws", middleware.TelegramAuth(d.Accounts, false), wsHandler.Serve)

	// 审核面回调（webhook）
	r.POST("/moderation/callback", moderationHandler.Callback)

	// 管理后台
	r.POST("/admin/login", adminHandler.Login)
	admin := r.Group("/admin")
	admin.Use(middleware.AdminRequired())
	{
		admin.POST("/logout", adminHandler.Logout)
		admin.POST("/limit", adminHandler.SetLimit)
		admin.POST("/ban", adminHandler.Ban)
		admin.POST("/unban", adminHandler.Unban)
		admin.GET("/reports", adminHandler.Reports)
		admin.POST("/decide", adminHandler.Decide)
	}
}
