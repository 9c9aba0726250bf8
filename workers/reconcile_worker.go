package workers

import (
	"context"
	"log"
	"time"

	"pet-competition-system/models"

	"gorm.io/gorm"
)

// CounterReconciler periodically recomputes the cached aggregates
// (entry votes_count, competition total_votes/total_entries/prize_pool) from
// the authoritative rows and repairs drift. The counters are maintained
// incrementally on the hot path; this loop is the safety net behind them.
type CounterReconciler struct {
	DB       *gorm.DB
	Interval time.Duration
}

func NewCounterReconciler(db *gorm.DB, interval time.Duration) *CounterReconciler {
	if interval <= 0 {
		interval = 15 * time.Minute
	}
	return &CounterReconciler{DB: db, Interval: interval}
}

// Run blocks until ctx is cancelled, reconciling on each tick.
func (r *CounterReconciler) Run(ctx context.Context) {
	ticker := time.NewTicker(r.Interval)
	defer ticker.Stop()

	log.Printf("[Reconciler] Running every %s", r.Interval)
	for {
		select {
		case <-ctx.Done():
			log.Println("[Reconciler] Stopping")
			return
		case <-ticker.C:
			if err := r.ReconcileOnce(); err != nil {
				log.Printf("[Reconciler] Pass failed: %v", err)
			}
		}
	}
}

// ReconcileOnce repairs counters for every non-terminal competition.
// Completed and cancelled competitions are frozen and left alone.
func (r *CounterReconciler) ReconcileOnce() error {
	var comps []models.Competition
	err := r.DB.Where("status IN ?", []models.CompetitionStatus{
		models.CompetitionStatusUpcoming,
		models.CompetitionStatusActive,
	}).Find(&comps).Error
	if err != nil {
		return err
	}

	for _, comp := range comps {
		if err := r.reconcileCompetition(comp); err != nil {
			log.Printf("[Reconciler] Competition %s failed: %v", comp.Date, err)
		}
	}
	return nil
}

func (r *CounterReconciler) reconcileCompetition(comp models.Competition) error {
	// Entry vote counts from the vote rows.
	var entries []models.CompetitionEntry
	if err := r.DB.Where("competition_id = ?", comp.ID).Find(&entries).Error; err != nil {
		return err
	}
	for _, entry := range entries {
		var actual int64
		if err := r.DB.Model(&models.CompetitionVote{}).
			Where("entry_id = ?", entry.ID).
			Count(&actual).Error; err != nil {
			return err
		}
		if actual != entry.VotesCount {
			log.Printf("[Reconciler] Entry %s votes_count drift: cached %d, actual %d", entry.ID, entry.VotesCount, actual)
			if err := r.DB.Model(&models.CompetitionEntry{}).
				Where("id = ?", entry.ID).
				Update("votes_count", actual).Error; err != nil {
				return err
			}
		}
	}

	var totalVotes int64
	if err := r.DB.Model(&models.CompetitionVote{}).
		Where("competition_id = ?", comp.ID).
		Count(&totalVotes).Error; err != nil {
		return err
	}

	var totalEntries int64
	if err := r.DB.Model(&models.CompetitionEntry{}).
		Where("competition_id = ? AND status = ?", comp.ID, models.EntryStatusActive).
		Count(&totalEntries).Error; err != nil {
		return err
	}

	// Pool equals the sum of fee snapshots over non-cancelled entries.
	var pool int64
	if err := r.DB.Model(&models.CompetitionEntry{}).
		Where("competition_id = ? AND status = ?", comp.ID, models.EntryStatusActive).
		Select("COALESCE(SUM(entry_fee_paid), 0)").
		Scan(&pool).Error; err != nil {
		return err
	}

	updates := map[string]interface{}{}
	if totalVotes != comp.TotalVotes {
		log.Printf("[Reconciler] Competition %s total_votes drift: cached %d, actual %d", comp.Date, comp.TotalVotes, totalVotes)
		updates["total_votes"] = totalVotes
	}
	if totalEntries != comp.TotalEntries {
		log.Printf("[Reconciler] Competition %s total_entries drift: cached %d, actual %d", comp.Date, comp.TotalEntries, totalEntries)
		updates["total_entries"] = totalEntries
	}
	if pool != comp.PrizePool {
		log.Printf("[Reconciler] Competition %s prize_pool drift: cached %d, actual %d", comp.Date, comp.PrizePool, pool)
		updates["prize_pool"] = pool
	}
	if len(updates) == 0 {
		return nil
	}

	// Repair only while the competition is still in the state we read; a
	// concurrent close wins and keeps its frozen numbers.
	return r.DB.Model(&models.Competition{}).
		Where("id = ? AND status = ?", comp.ID, comp.Status).
		Updates(updates).Error
}
