package db

import (
	"fmt"

	"github.com/hansol-oss/intrachat/internal/domain"
	"github.com/hansol-oss/intrachat/internal/infrastructure/configs"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func Open(cfg configs.DatabaseConfig) (*gorm.DB, error) {
	gormDB, err := gorm.Open(postgres.Open(cfg.DSN), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open postgres connection: %w", err)
	}

	sqlDB, err := gormDB.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to access connection pool: %w", err)
	}
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	return gormDB, nil
}

// Migrate creates the chat tables. The app_users table belongs to the auth
// system and is only migrated here so local development works standalone.
func Migrate(gormDB *gorm.DB) error {
	return gormDB.AutoMigrate(
		&domain.User{},
		&domain.Chat{},
		&domain.ChatMember{},
		&domain.ChatMessage{},
		&domain.ChatAttachment{},
	)
}
