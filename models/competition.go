package models

import (
	"time"
)

// CompetitionStatus tracks where a daily competition is in its lifecycle
type CompetitionStatus string

const (
	CompetitionStatusUpcoming  CompetitionStatus = "upcoming"
	CompetitionStatusActive    CompetitionStatus = "active"
	CompetitionStatusCompleted CompetitionStatus = "completed"
	CompetitionStatusCancelled CompetitionStatus = "cancelled"
)

// WinnerSlot is a denormalized snapshot of one podium position, written once
// when the competition is completed. An empty EntryID means the slot was not awarded.
type WinnerSlot struct {
	EntryID string `json:"entry_id,omitempty"`
	UserID  string `json:"user_id,omitempty"`
	Votes   int64  `json:"votes"`
	Prize   int64  `json:"prize"`
}

// Awarded reports whether this slot holds a winner.
func (w WinnerSlot) Awarded() bool {
	return w.EntryID != ""
}

// Competition is one daily pet-photo contest, keyed by calendar date (UTC).
type Competition struct {
	ID     string            `json:"id" gorm:"primaryKey"`
	Date   string            `json:"date" gorm:"uniqueIndex;not null"` // ISO date, e.g. "2026-08-31"
	Status CompetitionStatus `json:"status" gorm:"type:varchar(16);default:'upcoming';index"`

	// Token economy — all amounts are whole tokens
	EntryFee  int64 `json:"entry_fee" gorm:"default:0"`
	PrizePool int64 `json:"prize_pool" gorm:"default:0"` // accumulated from entry fees

	// Voting window
	StartTime time.Time `json:"start_time" gorm:"not null"`
	EndTime   time.Time `json:"end_time" gorm:"not null;index"`
	// Entry window — always closes strictly before StartTime
	EntryStartTime time.Time `json:"entry_start_time" gorm:"not null"`
	EntryEndTime   time.Time `json:"entry_end_time" gorm:"not null"`

	// Cached aggregates, kept in step with entry/vote rows via atomic increments
	TotalEntries int64 `json:"total_entries" gorm:"default:0"`
	TotalVotes   int64 `json:"total_votes" gorm:"default:0"`

	// Podium, populated at completion
	First  WinnerSlot `json:"first" gorm:"embedded;embeddedPrefix:first_"`
	Second WinnerSlot `json:"second" gorm:"embedded;embeddedPrefix:second_"`
	Third  WinnerSlot `json:"third" gorm:"embedded;embeddedPrefix:third_"`

	// Fencing flag: flips false→true exactly once, before any prize credit
	PrizesDistributed bool `json:"prizes_distributed" gorm:"default:false"`

	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt time.Time `json:"updated_at" gorm:"autoUpdateTime"`

	// Relationships
	Entries []CompetitionEntry `json:"entries,omitempty" gorm:"foreignKey:CompetitionID"`
}
