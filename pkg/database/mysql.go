package database

import (
	"time"

	"mindbridge-go/internal/model"
	"mindbridge-go/pkg/log"

	"gorm.io/driver/mysql"
	"gorm.io/gorm"
)

var DB *gorm.DB

// InitMySQL 初始化审计库连接并迁移表结构。
// 审计库是可选能力，调用方在 DSN 为空时不应调用本函数。
func InitMySQL(dsn string) {
	var err error
	DB, err = gorm.Open(mysql.Open(dsn), &gorm.Config{})
	if err != nil {
		log.Fatal("failed to connect database", err)
	}

	// 配置连接池
	sqlDB, err := DB.DB()
	if err != nil {
		log.Fatal("failed to get sql.DB", err)
	}

	sqlDB.SetMaxIdleConns(5)
	sqlDB.SetMaxOpenConns(20)
	sqlDB.SetConnMaxLifetime(time.Hour)

	if err := DB.AutoMigrate(&model.AlertRecord{}); err != nil {
		log.Fatal("failed to migrate alert_journal", err)
	}

	log.Info("MySQL database connected successfully")
}
