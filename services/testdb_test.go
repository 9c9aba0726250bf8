package services

import (
	"testing"
	"time"

	"pet-competition-system/models"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// setupTestDB opens an in-memory sqlite database with the full schema.
// Pinned to a single connection so every query sees the same memory store.
func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("Failed to access underlying database: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)

	if err := db.AutoMigrate(
		&models.Competition{},
		&models.CompetitionEntry{},
		&models.CompetitionVote{},
		&models.TokenWallet{},
		&models.TokenTransaction{},
	); err != nil {
		t.Fatalf("Failed to migrate test schema: %v", err)
	}

	t.Cleanup(func() { sqlDB.Close() })
	return db
}

// fixedClock returns a Now func pinned to the given instant.
func fixedClock(at time.Time) func() time.Time {
	return func() time.Time { return at }
}
