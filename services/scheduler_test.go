package services

import (
	"testing"
	"time"

	"pet-competition-system/models"
)

func TestRunNightlyTick_ClosesTodayAndOpensTomorrow(t *testing.T) {
	db := setupTestDB(t)
	engine := newTestEngine(t, db, time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC))

	comp, err := engine.CreateDailyCompetition()
	if err != nil {
		t.Fatalf("CreateDailyCompetition failed: %v", err)
	}
	addEntry(t, db, comp.ID, "user1", 5, comp.StartTime.Add(time.Hour))

	// The close timer fires a minute before midnight.
	engine.Now = fixedClock(time.Date(2026, 3, 10, 23, 59, 0, 0, time.UTC))
	sched := NewCompetitionScheduler(engine, SchedulerConfig{CloseHour: 23, CloseMinute: 59})
	sched.RunNightlyTick()

	var closed models.Competition
	db.First(&closed, "id = ?", comp.ID)
	if closed.Status != models.CompetitionStatusCompleted {
		t.Errorf("Expected today's competition completed, got %s", closed.Status)
	}

	var tomorrow models.Competition
	if err := db.First(&tomorrow, "date = ?", "2026-03-11").Error; err != nil {
		t.Fatalf("Expected tomorrow's competition to exist: %v", err)
	}
	if tomorrow.Status != models.CompetitionStatusUpcoming {
		t.Errorf("Expected tomorrow upcoming, got %s", tomorrow.Status)
	}
}

func TestRunHourlyTick_SelfHeals(t *testing.T) {
	db := setupTestDB(t)
	engine := newTestEngine(t, db, time.Date(2026, 3, 10, 23, 59, 0, 0, time.UTC))

	upcoming, err := engine.CreateTomorrowCompetition()
	if err != nil {
		t.Fatalf("CreateTomorrowCompetition failed: %v", err)
	}

	// First hourly tick of the next day: promote tomorrow's competition.
	engine.Now = fixedClock(time.Date(2026, 3, 11, 0, 59, 0, 0, time.UTC))
	sched := NewCompetitionScheduler(engine, SchedulerConfig{})
	sched.RunHourlyTick()

	var promoted models.Competition
	db.First(&promoted, "id = ?", upcoming.ID)
	if promoted.Status != models.CompetitionStatusActive {
		t.Errorf("Expected promoted to active, got %s", promoted.Status)
	}

	var count int64
	db.Model(&models.Competition{}).Count(&count)
	if count != 1 {
		t.Errorf("Expected the ensure step to reuse the existing row, got %d competitions", count)
	}
}
