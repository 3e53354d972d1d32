package database

import (
	"fmt"

	"github.com/gdg-garage/airbadge/internal/config"
	"github.com/gdg-garage/airbadge/internal/models"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func Connect(cfg *config.Config, logger *zap.Logger) (*gorm.DB, error) {
	level := gormlogger.Warn
	if cfg.AppEnv == "production" {
		level = gormlogger.Error
	}

	db, err := gorm.Open(sqlite.Open(cfg.DatabasePath), &gorm.Config{
		Logger: gormlogger.Default.LogMode(level),
	})
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}

	// Auto Migrate
	err = db.AutoMigrate(&models.User{}, &models.UserProgress{}, &models.KVEntry{})
	if err != nil {
		return nil, fmt.Errorf("auto migrate: %w", err)
	}

	logger.Info("Database ready", zap.String("path", cfg.DatabasePath))
	return db, nil
}
