package models

import (
	"time"
)

// CompetitionVote is one user's endorsement of one entry. The uniqueness
// constraint is scoped to (competition, entry, user): a user may vote for
// several different entries in the same competition, but never twice for
// the same one.
type CompetitionVote struct {
	ID            string `json:"id" gorm:"primaryKey"`
	CompetitionID string `json:"competition_id" gorm:"not null;index;uniqueIndex:idx_votes_competition_entry_user"`
	EntryID       string `json:"entry_id" gorm:"not null;index;uniqueIndex:idx_votes_competition_entry_user"`
	UserID        string `json:"user_id" gorm:"not null;index;uniqueIndex:idx_votes_competition_entry_user"`

	// Abuse-detection context captured at cast time
	DeviceFingerprint string `json:"device_fingerprint" gorm:"type:varchar(128);index"`
	DeviceInfo        string `json:"device_info,omitempty"` // platform/model/OS, informational only
	IPAddress         string `json:"ip_address" gorm:"type:varchar(64);index"`

	// Advisory review flags: flagged votes still count toward ranking
	IsValid          bool   `json:"is_valid" gorm:"default:true"`
	FlaggedForReview bool   `json:"flagged_for_review" gorm:"default:false;index"`
	FlagReason       string `json:"flag_reason,omitempty"`

	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime"`
}
