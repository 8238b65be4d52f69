// Package persistence provides the local snapshot cache backed by an
// embedded sqlite database. The cache is warm-start state only; the
// backend of record stays authoritative and every cached row is
// overwritten as fresher facts arrive.
package persistence

import (
	"fmt"

	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/foodhub/ordersync/internal/infrastructure/logger"
)

// Database holds the sqlite connection
type Database struct {
	DB *gorm.DB
}

// NewDatabase opens the snapshot database at the given path (":memory:"
// for ephemeral) and migrates the schema.
func NewDatabase(path string, zapLogger *zap.Logger) (*Database, error) {
	if path == "" {
		return nil, fmt.Errorf("cache path cannot be empty")
	}

	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger:                 logger.NewGormLogger(zapLogger, gormlogger.Warn),
		SkipDefaultTransaction: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open snapshot database: %w", err)
	}

	if err := db.AutoMigrate(&OrderSnapshotModel{}); err != nil {
		return nil, fmt.Errorf("failed to migrate snapshot schema: %w", err)
	}

	return &Database{DB: db}, nil
}

// Close closes the underlying connection
func (d *Database) Close() error {
	sqlDB, err := d.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
