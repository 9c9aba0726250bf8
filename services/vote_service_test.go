package services

import (
	"errors"
	"testing"
	"time"

	"pet-competition-system/models"

	"gorm.io/gorm"
)

// setupVoteTest creates an active competition with one entry and a vote
// service whose clock sits inside the voting window.
func setupVoteTest(t *testing.T, threshold int64) (*gorm.DB, *VoteService, *models.Competition, models.CompetitionEntry) {
	t.Helper()
	db := setupTestDB(t)
	noon := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

	engine := newTestEngine(t, db, noon)
	comp, err := engine.CreateDailyCompetition()
	if err != nil {
		t.Fatalf("CreateDailyCompetition failed: %v", err)
	}
	entry := addEntry(t, db, comp.ID, "entrant", 0, comp.StartTime.Add(time.Hour))

	svc := NewVoteService(db, CompetitionConfig{FraudVoteThreshold: threshold})
	svc.Now = fixedClock(noon)
	return db, svc, comp, entry
}

func TestCastVote_IncrementsCounters(t *testing.T) {
	db, svc, comp, entry := setupVoteTest(t, 5)

	vote, err := svc.CastVote(CastVoteParams{
		CompetitionID:     comp.ID,
		EntryID:           entry.ID,
		UserID:            "voter1",
		DeviceFingerprint: "fp-1",
		IPAddress:         "10.0.0.1",
	})
	if err != nil {
		t.Fatalf("CastVote failed: %v", err)
	}
	if !vote.IsValid || vote.FlaggedForReview {
		t.Errorf("Expected a clean valid vote, got valid=%v flagged=%v", vote.IsValid, vote.FlaggedForReview)
	}

	var reloadedEntry models.CompetitionEntry
	db.First(&reloadedEntry, "id = ?", entry.ID)
	if reloadedEntry.VotesCount != 1 {
		t.Errorf("Expected votes_count 1, got %d", reloadedEntry.VotesCount)
	}
	var reloadedComp models.Competition
	db.First(&reloadedComp, "id = ?", comp.ID)
	if reloadedComp.TotalVotes != 1 {
		t.Errorf("Expected total_votes 1, got %d", reloadedComp.TotalVotes)
	}
}

func TestCastVote_DuplicateRejectedBeforeCounters(t *testing.T) {
	db, svc, comp, entry := setupVoteTest(t, 5)

	params := CastVoteParams{CompetitionID: comp.ID, EntryID: entry.ID, UserID: "voter1"}
	if _, err := svc.CastVote(params); err != nil {
		t.Fatalf("First CastVote failed: %v", err)
	}
	_, err := svc.CastVote(params)
	if !errors.Is(err, ErrDuplicateVote) {
		t.Fatalf("Expected ErrDuplicateVote, got %v", err)
	}

	var reloadedEntry models.CompetitionEntry
	db.First(&reloadedEntry, "id = ?", entry.ID)
	if reloadedEntry.VotesCount != 1 {
		t.Errorf("Expected votes_count still 1, got %d", reloadedEntry.VotesCount)
	}
}

func TestCastVote_SameUserMayVoteDifferentEntries(t *testing.T) {
	db, svc, comp, entry := setupVoteTest(t, 5)
	other := addEntry(t, db, comp.ID, "entrant2", 0, comp.StartTime.Add(2*time.Hour))

	if _, err := svc.CastVote(CastVoteParams{CompetitionID: comp.ID, EntryID: entry.ID, UserID: "voter1"}); err != nil {
		t.Fatalf("First CastVote failed: %v", err)
	}
	if _, err := svc.CastVote(CastVoteParams{CompetitionID: comp.ID, EntryID: other.ID, UserID: "voter1"}); err != nil {
		t.Fatalf("Expected vote on a second entry to succeed, got %v", err)
	}

	var reloadedComp models.Competition
	db.First(&reloadedComp, "id = ?", comp.ID)
	if reloadedComp.TotalVotes != 2 {
		t.Errorf("Expected total_votes 2, got %d", reloadedComp.TotalVotes)
	}
}

func TestCastVote_FraudFlagIsAdvisory(t *testing.T) {
	db, svc, comp, entry := setupVoteTest(t, 2)

	// Three voters share a device fingerprint. The third crosses the
	// threshold and gets flagged but still counts.
	for i, user := range []string{"voter1", "voter2", "voter3"} {
		vote, err := svc.CastVote(CastVoteParams{
			CompetitionID:     comp.ID,
			EntryID:           entry.ID,
			UserID:            user,
			DeviceFingerprint: "shared-device",
		})
		if err != nil {
			t.Fatalf("CastVote %d failed: %v", i+1, err)
		}
		wantFlagged := i >= 2
		if vote.FlaggedForReview != wantFlagged {
			t.Errorf("Vote %d: expected flagged=%v, got %v (%s)", i+1, wantFlagged, vote.FlaggedForReview, vote.FlagReason)
		}
	}

	var reloadedEntry models.CompetitionEntry
	db.First(&reloadedEntry, "id = ?", entry.ID)
	if reloadedEntry.VotesCount != 3 {
		t.Errorf("Expected all 3 votes to count, got %d", reloadedEntry.VotesCount)
	}

	flagged, err := svc.GetFlaggedVotes(comp.ID)
	if err != nil {
		t.Fatalf("GetFlaggedVotes failed: %v", err)
	}
	if len(flagged) != 1 {
		t.Errorf("Expected 1 flagged vote, got %d", len(flagged))
	}
}

func TestCastVote_SameIPFlagged(t *testing.T) {
	_, svc, comp, entry := setupVoteTest(t, 1)

	if _, err := svc.CastVote(CastVoteParams{CompetitionID: comp.ID, EntryID: entry.ID, UserID: "voter1", IPAddress: "10.0.0.9"}); err != nil {
		t.Fatalf("First CastVote failed: %v", err)
	}
	vote, err := svc.CastVote(CastVoteParams{CompetitionID: comp.ID, EntryID: entry.ID, UserID: "voter2", IPAddress: "10.0.0.9"})
	if err != nil {
		t.Fatalf("Second CastVote failed: %v", err)
	}
	if !vote.FlaggedForReview {
		t.Error("Expected second same-IP vote to be flagged")
	}
}

func TestCastVote_OutsideVotingWindow(t *testing.T) {
	_, svc, comp, entry := setupVoteTest(t, 5)
	svc.Now = fixedClock(comp.EndTime.Add(time.Minute))

	_, err := svc.CastVote(CastVoteParams{CompetitionID: comp.ID, EntryID: entry.ID, UserID: "voter1"})
	if !errors.Is(err, ErrVotingWindowClosed) {
		t.Fatalf("Expected ErrVotingWindowClosed, got %v", err)
	}
}

func TestCastVote_CancelledEntryRejected(t *testing.T) {
	db, svc, comp, entry := setupVoteTest(t, 5)
	if err := db.Model(&models.CompetitionEntry{}).Where("id = ?", entry.ID).
		Update("status", models.EntryStatusCancelled).Error; err != nil {
		t.Fatalf("Failed to cancel entry: %v", err)
	}

	_, err := svc.CastVote(CastVoteParams{CompetitionID: comp.ID, EntryID: entry.ID, UserID: "voter1"})
	if !errors.Is(err, ErrEntryNotActive) {
		t.Fatalf("Expected ErrEntryNotActive, got %v", err)
	}
}
