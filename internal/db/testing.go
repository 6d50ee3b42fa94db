package db

import (
	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// OpenTest 打开一个内存库并替换全局 DB，供各包的测试使用。
// 单连接，避免 :memory: 在连接池下各连各库的问题。
func OpenTest() (*gorm.DB, error) {
	conn, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, err
	}
	sqlDB, err := conn.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(1)

	if err := Migrate(conn); err != nil {
		return nil, err
	}
	seedCategories(conn)

	DB = conn
	return conn, nil
}
