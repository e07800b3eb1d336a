package infrastructure

import (
	"fmt"
	"time"

	"github.com/glebarez/sqlite"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"user-crud-service/internal/config"
	"user-crud-service/pkg/logger"
)

// NewDatabase opens the SQLite database backing STORE_DRIVER=sqlite.
// The pool is pinned to one connection: every connection to an in-memory DSN sees its own empty database.
func NewDatabase(cfg *config.Config, l *zap.Logger) (*gorm.DB, error) {
	slow := time.Duration(cfg.Logger.SlowQuerySeconds * float64(time.Second))
	gormLogger := logger.NewGormLogger(l, slow, cfg.Logger.Level)

	db, err := gorm.Open(sqlite.Open(cfg.Store.SQLiteDSN), &gorm.Config{
		Logger: gormLogger,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}

	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetMaxIdleConns(1)
	sqlDB.SetConnMaxLifetime(0)
	sqlDB.SetConnMaxIdleTime(0)

	l.Info("sqlite database opened", zap.String("dsn", cfg.Store.SQLiteDSN))

	return db, nil
}

// CloseDatabase closes the database connection
func CloseDatabase(db *gorm.DB) error {
	if db == nil {
		return nil
	}

	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}

	if err := sqlDB.Close(); err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}

	return nil
}
