package services

import (
	"errors"
	"fmt"
	"log"
	"pet-competition-system/models"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// CompetitionConfig carries the tunables the lifecycle engine and vote guard need.
type CompetitionConfig struct {
	DefaultEntryFee    int64
	FraudVoteThreshold int64 // prior same-fingerprint/IP votes per competition before flagging
}

// CompetitionEngine owns the daily competition state machine: creation,
// status promotion, closure, winner selection and prize payout. Every
// operation is idempotent or guarded by a conditional update so overlapping
// scheduler ticks and manual admin calls are safe.
type CompetitionEngine struct {
	DB     *gorm.DB
	Ledger *LedgerService
	Config CompetitionConfig

	// Now is swappable in tests; always UTC.
	Now func() time.Time
}

func NewCompetitionEngine(db *gorm.DB, ledger *LedgerService, cfg CompetitionConfig) *CompetitionEngine {
	if cfg.FraudVoteThreshold <= 0 {
		cfg.FraudVoteThreshold = 5
	}
	return &CompetitionEngine{
		DB:     db,
		Ledger: ledger,
		Config: cfg,
		Now:    func() time.Time { return time.Now().UTC() },
	}
}

// dayBounds returns the UTC voting window for a calendar day.
func dayBounds(t time.Time) (start, end time.Time) {
	y, m, d := t.UTC().Date()
	start = time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	end = time.Date(y, m, d, 23, 59, 59, 999000000, time.UTC)
	return start, end
}

// CreateDailyCompetition ensures a competition exists for today's UTC date.
// Safe to call any number of times per day: an existing row is returned unchanged.
// A retroactively created competition starts out active so the day self-heals
// even when the evening-ahead creation never ran.
func (e *CompetitionEngine) CreateDailyCompetition() (*models.Competition, error) {
	now := e.Now()
	start, end := dayBounds(now)
	return e.ensureCompetition(now.UTC().Format("2006-01-02"), models.Competition{
		Status:         models.CompetitionStatusActive,
		EntryFee:       e.Config.DefaultEntryFee,
		StartTime:      start,
		EndTime:        end,
		EntryStartTime: start.Add(-time.Hour),
		EntryEndTime:   end.Add(-time.Hour),
	})
}

// CreateTomorrowCompetition ensures tomorrow's competition exists in status
// upcoming. The entry window opens one hour after creation time rather than at
// a fixed clock point, so users can start entering right after the nightly
// tick runs; it closes one hour before tomorrow's voting window ends.
func (e *CompetitionEngine) CreateTomorrowCompetition() (*models.Competition, error) {
	now := e.Now()
	start, end := dayBounds(now.Add(24 * time.Hour))
	return e.ensureCompetition(now.UTC().Add(24*time.Hour).Format("2006-01-02"), models.Competition{
		Status:         models.CompetitionStatusUpcoming,
		EntryFee:       e.Config.DefaultEntryFee,
		StartTime:      start,
		EndTime:        end,
		EntryStartTime: now.Add(time.Hour),
		EntryEndTime:   end.Add(-time.Hour),
	})
}

func (e *CompetitionEngine) ensureCompetition(date string, template models.Competition) (*models.Competition, error) {
	var existing models.Competition
	err := e.DB.Where("date = ?", date).First(&existing).Error
	if err == nil {
		return &existing, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("failed to look up competition for %s: %w", date, err)
	}

	template.ID = uuid.NewString()
	template.Date = date
	if err := e.DB.Create(&template).Error; err != nil {
		// A concurrent creator may have won the unique-date race; their row is ours too.
		var raced models.Competition
		if ferr := e.DB.Where("date = ?", date).First(&raced).Error; ferr == nil {
			return &raced, nil
		}
		return nil, fmt.Errorf("failed to create competition for %s: %w", date, err)
	}
	log.Printf("[Lifecycle] Created %s competition for %s (entry fee %d)", template.Status, date, template.EntryFee)
	return &template, nil
}

// UpdateCompetitionStatuses promotes every upcoming competition whose voting
// window has opened to active. Pure and idempotent; a missed nightly run
// self-heals on the next hourly tick.
func (e *CompetitionEngine) UpdateCompetitionStatuses() error {
	result := e.DB.Model(&models.Competition{}).
		Where("status = ? AND start_time <= ?", models.CompetitionStatusUpcoming, e.Now()).
		Update("status", models.CompetitionStatusActive)
	if result.Error != nil {
		return fmt.Errorf("failed to promote upcoming competitions: %w", result.Error)
	}
	if result.RowsAffected > 0 {
		log.Printf("[Lifecycle] Promoted %d competition(s) to active", result.RowsAffected)
	}
	return nil
}

// prizeSplit divides the pool across the awarded positions. The last position
// absorbs the rounding remainder so the parts always sum to the pool exactly.
func prizeSplit(pool int64, entryCount int) []int64 {
	switch {
	case entryCount <= 0:
		return nil
	case entryCount == 1:
		return []int64{pool}
	case entryCount == 2:
		first := pool * 67 / 100
		return []int64{first, pool - first}
	default:
		first := pool * 50 / 100
		second := pool * 30 / 100
		return []int64{first, second, pool - first - second}
	}
}

// EndCompetitionAndSelectWinners closes the single due competition, ranks its
// entries and pays out the prize pool. Returns (nil, nil) when no competition
// is due — that is what makes overlapping scheduler ticks and manual triggers
// safe. The prizes_distributed flip is an atomic compare-and-set acquired
// before any credit, so concurrent callers distribute at most once; a payout
// interrupted after the flip is resumed on the next call, with the unique
// ledger reference per position preventing double credits.
func (e *CompetitionEngine) EndCompetitionAndSelectWinners() (*models.Competition, error) {
	now := e.Now()

	// The nightly tick fires moments before the voting window formally ends;
	// a one-minute grace keeps it from missing the day it is meant to close.
	dueBy := now.Add(time.Minute)

	var comp models.Competition
	err := e.DB.Where("status = ? AND end_time <= ?", models.CompetitionStatusActive, dueBy).
		Order("end_time ASC").
		First(&comp).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find due competition: %w", err)
	}

	if !comp.PrizesDistributed {
		// Acquire the distribution fence. Zero rows matched means another
		// process already holds (or finished) it — benign, not an error.
		result := e.DB.Model(&models.Competition{}).
			Where("id = ? AND prizes_distributed = ?", comp.ID, false).
			Update("prizes_distributed", true)
		if result.Error != nil {
			return nil, fmt.Errorf("failed to acquire distribution fence: %w", result.Error)
		}
		if result.RowsAffected == 0 {
			return nil, nil
		}
	} else {
		// Fence already flipped but the competition never reached completed:
		// a previous payout died partway. Re-run it; per-position ledger
		// references keep already-credited winners from being paid again.
		log.Printf("[Lifecycle] Resuming interrupted payout for competition %s", comp.Date)
	}

	var entries []models.CompetitionEntry
	if err := e.DB.Where("competition_id = ? AND status = ?", comp.ID, models.EntryStatusActive).
		Order("votes_count DESC, created_at ASC").
		Limit(3).
		Find(&entries).Error; err != nil {
		return nil, fmt.Errorf("failed to rank entries: %w", err)
	}

	updates := map[string]interface{}{
		"status": models.CompetitionStatusCompleted,
	}

	split := prizeSplit(comp.PrizePool, len(entries))
	slotPrefixes := []string{"first", "second", "third"}
	for i, entry := range entries {
		position := i + 1
		prize := split[i]

		if prize > 0 {
			ref := fmt.Sprintf("prize:%s:%s:%d", comp.ID, entry.ID, position)
			_, err := e.Ledger.Apply(MovementParams{
				UserID:    entry.UserID,
				Amount:    prize,
				Type:      models.TokenTxTypePrize,
				RelatedID: comp.ID,
				Reference: ref,
				Metadata:  fmt.Sprintf(`{"entry_id":%q,"position":%d}`, entry.ID, position),
			})
			if errors.Is(err, ErrDuplicateTransaction) {
				log.Printf("[Lifecycle] Prize for position %d of %s already credited, skipping", position, comp.Date)
			} else if err != nil {
				return nil, fmt.Errorf("failed to credit position %d prize: %w", position, err)
			}
		}

		if err := e.DB.Model(&models.CompetitionEntry{}).
			Where("id = ?", entry.ID).
			Update("rank", position).Error; err != nil {
			return nil, fmt.Errorf("failed to assign rank %d: %w", position, err)
		}

		prefix := slotPrefixes[i]
		updates[prefix+"_entry_id"] = entry.ID
		updates[prefix+"_user_id"] = entry.UserID
		updates[prefix+"_votes"] = entry.VotesCount
		updates[prefix+"_prize"] = prize
	}

	// Single atomic write: status, winner slots and (already-set) fence land
	// together, never readable half-transitioned.
	if err := e.DB.Model(&models.Competition{}).
		Where("id = ?", comp.ID).
		Updates(updates).Error; err != nil {
		return nil, fmt.Errorf("failed to complete competition: %w", err)
	}

	var completed models.Competition
	if err := e.DB.Preload("Entries", func(db *gorm.DB) *gorm.DB {
		return db.Where("rank > 0").Order("rank ASC")
	}).First(&completed, "id = ?", comp.ID).Error; err != nil {
		return nil, fmt.Errorf("failed to reload completed competition: %w", err)
	}

	log.Printf("[Lifecycle] Completed competition %s: %d entries, pool %d distributed", completed.Date, len(entries), comp.PrizePool)
	return &completed, nil
}
