package main

import (
	"log"
	"os"

	"jishi/internal/db"
	"jishi/internal/router"
	"jishi/internal/services"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
)

func main() {
	// Load .env file
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, finding env vars from system")
	}

	// Initialize Database
	db.Init()

	hub := services.NewHub()

	// Telegram 客户端兼任私信通知和审核面；没配 token 时两者都为空，
	// 审核走 fail-open，通知静默跳过。
	var notifier services.Notifier
	var surface services.Surface
	if tg := services.NewTelegramClient(); tg != nil {
		notifier = tg
		if tg.HasModerationChat() {
			surface = tg
		} else {
			log.Println("未配置 MODERATION_CHAT_ID，提交将自动发布")
		}
	} else {
		log.Println("未配置 BOT_TOKEN，跳过 Telegram 集成")
	}

	accounts := services.NewAccountService(hub, notifier)
	quota := services.NewQuotaService(hub)
	posts := services.NewPostService(quota, hub)
	reactions := services.NewReactionService(hub)
	moderation := services.NewModerationService(surface, notifier, posts)

	// Initialize Gin
	r := gin.Default()

	// Setup Sessions
	secret := os.Getenv("SESSION_SECRET")
	if secret == "" {
		secret = "secret_key_change_me"
	}
	store := cookie.NewStore([]byte(secret))
	r.Use(sessions.Sessions("jishi_session", store))

	router.RegisterRoutes(r, router.Deps{
		Hub:        hub,
		Quota:      quota,
		Posts:      posts,
		Reactions:  reactions,
		Moderation: moderation,
		Accounts:   accounts,
		BotWired:   notifier != nil,
	})

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}
	log.Printf("Jishi server starting on :%s", port)
	if err := r.Run(":" + port); err != nil {
		log.Fatal(err)
	}
}
