package workers

import (
	"testing"
	"time"

	"pet-competition-system/models"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

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
	); err != nil {
		t.Fatalf("Failed to migrate test schema: %v", err)
	}
	t.Cleanup(func() { sqlDB.Close() })
	return db
}

func seedCompetition(t *testing.T, db *gorm.DB, status models.CompetitionStatus) models.Competition {
	t.Helper()
	day := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	comp := models.Competition{
		ID:             uuid.NewString(),
		Date:           "2026-03-10",
		Status:         status,
		StartTime:      day,
		EndTime:        day.Add(24*time.Hour - time.Millisecond),
		EntryStartTime: day.Add(-time.Hour),
		EntryEndTime:   day.Add(23 * time.Hour),
	}
	if err := db.Create(&comp).Error; err != nil {
		t.Fatalf("Failed to seed competition: %v", err)
	}
	return comp
}

func TestReconcileOnce_RepairsDriftedCounters(t *testing.T) {
	db := setupTestDB(t)
	comp := seedCompetition(t, db, models.CompetitionStatusActive)

	entry := models.CompetitionEntry{
		ID:            uuid.NewString(),
		CompetitionID: comp.ID,
		UserID:        "user1",
		PetName:       "Biscuit",
		Status:        models.EntryStatusActive,
		VotesCount:    9, // drifted: only 2 actual vote rows below
		EntryFeePaid:  10,
	}
	if err := db.Create(&entry).Error; err != nil {
		t.Fatalf("Failed to seed entry: %v", err)
	}
	for _, voter := range []string{"voter1", "voter2"} {
		vote := models.CompetitionVote{
			ID:            uuid.NewString(),
			CompetitionID: comp.ID,
			EntryID:       entry.ID,
			UserID:        voter,
			IsValid:       true,
		}
		if err := db.Create(&vote).Error; err != nil {
			t.Fatalf("Failed to seed vote: %v", err)
		}
	}
	// Drift the competition aggregates too.
	if err := db.Model(&models.Competition{}).Where("id = ?", comp.ID).
		Updates(map[string]interface{}{
			"total_votes":   11,
			"total_entries": 4,
			"prize_pool":    99,
		}).Error; err != nil {
		t.Fatalf("Failed to drift counters: %v", err)
	}

	r := NewCounterReconciler(db, time.Minute)
	if err := r.ReconcileOnce(); err != nil {
		t.Fatalf("ReconcileOnce failed: %v", err)
	}

	var repairedEntry models.CompetitionEntry
	db.First(&repairedEntry, "id = ?", entry.ID)
	if repairedEntry.VotesCount != 2 {
		t.Errorf("Expected votes_count repaired to 2, got %d", repairedEntry.VotesCount)
	}

	var repaired models.Competition
	db.First(&repaired, "id = ?", comp.ID)
	if repaired.TotalVotes != 2 {
		t.Errorf("Expected total_votes repaired to 2, got %d", repaired.TotalVotes)
	}
	if repaired.TotalEntries != 1 {
		t.Errorf("Expected total_entries repaired to 1, got %d", repaired.TotalEntries)
	}
	if repaired.PrizePool != 10 {
		t.Errorf("Expected prize_pool repaired to 10, got %d", repaired.PrizePool)
	}
}

func TestReconcileOnce_LeavesCompletedCompetitionsAlone(t *testing.T) {
	db := setupTestDB(t)
	comp := seedCompetition(t, db, models.CompetitionStatusCompleted)

	if err := db.Model(&models.Competition{}).Where("id = ?", comp.ID).
		Updates(map[string]interface{}{"total_votes": 42, "prize_pool": 300}).Error; err != nil {
		t.Fatalf("Failed to set frozen counters: %v", err)
	}

	r := NewCounterReconciler(db, time.Minute)
	if err := r.ReconcileOnce(); err != nil {
		t.Fatalf("ReconcileOnce failed: %v", err)
	}

	var frozen models.Competition
	db.First(&frozen, "id = ?", comp.ID)
	if frozen.TotalVotes != 42 || frozen.PrizePool != 300 {
		t.Errorf("Expected completed competition untouched, got votes %d pool %d", frozen.TotalVotes, frozen.PrizePool)
	}
}
