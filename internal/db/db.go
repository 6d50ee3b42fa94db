package db

import (
	"log"
	"os"

	"jishi/internal/models"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

var DB *gorm.DB

func Init() {
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		// Fallback for local dev if not set
		dsn = "host=localhost user=postgres password=postgres dbname=jishi port=5432 sslmode=disable TimeZone=Europe/Moscow"
	}

	var err error
	DB, err = gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	log.Println("Database connection established")

	if err := Migrate(DB); err != nil {
		log.Fatalf("Failed to migrate database: %v", err)
	}
	log.Println("Database migration completed")

	seedCategories(DB)
}

// Migrate 建表，测试环境同样走这条路径
func Migrate(conn *gorm.DB) error {
	return conn.AutoMigrate(
		&models.Account{},
		&models.Category{},
		&models.Post{},
		&models.Reaction{},
		&models.Report{},
		&models.Ticket{},
	)
}

func seedCategories(conn *gorm.DB) {
	// 已有分类就跳过
	var count int64
	conn.Model(&models.Category{}).Count(&count)
	if count > 0 {
		return
	}

	categories := []models.Category{
		{Name: "jobs", Title: "💼 工作"},
		{Name: "housing", Title: "🏠 房产"},
		{Name: "auto", Title: "🚗 二手车"},
		{Name: "goods", Title: "🛍️ 好物"},
		{Name: "services", Title: "💡 服务"},
		{Name: "education", Title: "📚 学习"},
	}

	for _, cat := range categories {
		if err := conn.Create(&cat).Error; err != nil {
			log.Printf("Failed to create category %s: %v", cat.Name, err)
		}
	}
	log.Println("Initial categories created successfully")
}
