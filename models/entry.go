package models

import (
	"time"
)

// EntryStatus is the lifecycle state of a single submission
type EntryStatus string

const (
	EntryStatusActive    EntryStatus = "active"
	EntryStatusCancelled EntryStatus = "cancelled"
)

// CompetitionEntry is a user's single submission into one daily competition.
// At most one entry per (competition, user).
type CompetitionEntry struct {
	ID            string      `json:"id" gorm:"primaryKey"`
	CompetitionID string      `json:"competition_id" gorm:"not null;index;uniqueIndex:idx_entries_competition_user"`
	UserID        string      `json:"user_id" gorm:"not null;index;uniqueIndex:idx_entries_competition_user"`
	PetName       string      `json:"pet_name" gorm:"not null"`
	Description   string      `json:"description"`
	PhotoURL      string      `json:"photo_url" gorm:"type:text"`
	Status        EntryStatus `json:"status" gorm:"type:varchar(16);default:'active';index"`

	// Cached vote count, incremented atomically with each vote insert; never negative
	VotesCount int64 `json:"votes_count" gorm:"default:0"`

	// Fee snapshot taken at submission time; immutable afterwards
	EntryFeePaid int64 `json:"entry_fee_paid" gorm:"not null"`

	// Refund bookkeeping for cancelled entries
	Refunded   bool       `json:"refunded" gorm:"default:false"`
	RefundedAt *time.Time `json:"refunded_at,omitempty"`

	// 1, 2 or 3 for prize winners, 0 otherwise; assigned only at completion
	Rank int `json:"rank,omitempty" gorm:"default:0"`

	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime;index"`
	UpdatedAt time.Time `json:"updated_at" gorm:"autoUpdateTime"`
}
