package database

import (
	"fmt"
	"time"

	"wedhabesha-chat/config"
	"wedhabesha-chat/internal/domain/audit"
	"wedhabesha-chat/internal/domain/message"
	"wedhabesha-chat/internal/domain/notification"
	"wedhabesha-chat/internal/domain/thread"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// Connect opens the postgres connection. TranslateError is on so driver
// unique-violation errors surface as gorm.ErrDuplicatedKey.
func Connect(cfg *config.Config) (*gorm.DB, error) {
	dsn := fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=disable TimeZone=UTC",
		cfg.DBHost, cfg.DBUser, cfg.DBPassword, cfg.DBName, cfg.DBPort)

	logMode := gormlogger.Warn
	if cfg.AppMode == "debug" {
		logMode = gormlogger.Info
	}

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger:         gormlogger.Default.LogMode(logMode),
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(100)
	sqlDB.SetConnMaxLifetime(time.Hour)

	return db, nil
}

// Migrate creates or updates the schema for every persisted entity.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&thread.Thread{},
		&message.Message{},
		&message.ReadStatus{},
		&message.Attachment{},
		&audit.AccessLogEntry{},
		&notification.Notification{},
		&notification.Preferences{},
	)
}
