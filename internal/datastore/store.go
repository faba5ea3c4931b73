// Package datastore opens and migrates the backing database.
package datastore

import (
	"fmt"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/glucoguard/glucoguard/internal/datastore/entities"
)

// Open opens the SQLite database at path.
func Open(path string) (*gorm.DB, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database %s: %w", path, err)
	}
	return db, nil
}

// Migrate creates or updates the schema for all engine tables.
func Migrate(db *gorm.DB) error {
	err := db.AutoMigrate(
		&entities.GlucoseReading{},
		&entities.MealEntry{},
		&entities.RiskScore{},
		&entities.NotificationPreference{},
		&entities.NotificationRecord{},
	)
	if err != nil {
		return fmt.Errorf("failed to migrate schema: %w", err)
	}
	return nil
}
