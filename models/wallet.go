package models

import (
	"time"
)

// TokenTransactionType classifies ledger movements
type TokenTransactionType string

const (
	TokenTxTypeEntryFee    TokenTransactionType = "entry_fee"
	TokenTxTypeEntryRefund TokenTransactionType = "entry_refund"
	TokenTxTypePrize       TokenTransactionType = "prize"
	TokenTxTypeTopUp       TokenTransactionType = "top_up"
)

// TokenWallet holds a user's spendable token balance. One row per user,
// mutated only through conditional atomic updates.
type TokenWallet struct {
	ID        string    `json:"id" gorm:"primaryKey"`
	UserID    string    `json:"user_id" gorm:"uniqueIndex;not null"` // External user ID
	Balance   int64     `json:"balance" gorm:"not null;default:0"`
	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt time.Time `json:"updated_at" gorm:"autoUpdateTime"`
}

// TokenTransaction is an append-only ledger record. Reference is unique per
// logical movement (e.g. "prize:<competition>:<entry>:<position>") so retried
// payouts cannot credit twice.
type TokenTransaction struct {
	ID            string               `json:"id" gorm:"primaryKey"`
	UserID        string               `json:"user_id" gorm:"not null;index"`
	Amount        int64                `json:"amount" gorm:"not null"` // signed: debits negative, credits positive
	Type          TokenTransactionType `json:"type" gorm:"type:varchar(32);not null;index"`
	RelatedID     string               `json:"related_id,omitempty" gorm:"index"` // competition or entry ID
	Reference     string               `json:"reference" gorm:"uniqueIndex;not null"`
	BalanceBefore int64                `json:"balance_before" gorm:"not null"`
	BalanceAfter  int64                `json:"balance_after" gorm:"not null"`
	Metadata      string               `json:"metadata,omitempty" gorm:"type:text"` // e.g. {"position": 1}
	CreatedAt     time.Time            `json:"created_at" gorm:"autoCreateTime"`
}
