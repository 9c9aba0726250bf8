package services

import (
	"errors"
	"fmt"
	"pet-competition-system/models"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// LedgerService owns token wallets and the append-only transaction log.
// Every movement updates the balance and records a transaction in one DB
// transaction; the unique Reference makes retried movements no-ops.
type LedgerService struct {
	DB *gorm.DB
}

func NewLedgerService(db *gorm.DB) *LedgerService {
	return &LedgerService{DB: db}
}

// MovementParams describes one signed balance movement.
type MovementParams struct {
	UserID    string
	Amount    int64 // negative for debits
	Type      models.TokenTransactionType
	RelatedID string
	Reference string
	Metadata  string
}

// GetBalance returns the user's current balance. A missing wallet row reads as zero.
func (s *LedgerService) GetBalance(userID string) (int64, error) {
	var wallet models.TokenWallet
	if err := s.DB.Where("user_id = ?", userID).First(&wallet).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, nil
		}
		return 0, fmt.Errorf("failed to get balance for user %s: %w", userID, err)
	}
	return wallet.Balance, nil
}

// Apply records a single movement. Debits fail with ErrInsufficientFunds when
// the balance cannot cover them; a reused reference fails with
// ErrDuplicateTransaction and leaves the wallet untouched.
func (s *LedgerService) Apply(params MovementParams) (*models.TokenTransaction, error) {
	var txRecord *models.TokenTransaction
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		rec, err := applyMovement(tx, params)
		if err != nil {
			return err
		}
		txRecord = rec
		return nil
	})
	if err != nil {
		return nil, err
	}
	return txRecord, nil
}

// applyMovement runs inside an existing DB transaction so callers can combine
// a movement with their own row writes (entry creation, counter bumps).
func applyMovement(tx *gorm.DB, params MovementParams) (*models.TokenTransaction, error) {
	// Reference dedupe: an existing row means this movement already happened.
	var existing models.TokenTransaction
	err := tx.Where("reference = ?", params.Reference).First(&existing).Error
	if err == nil {
		return nil, fmt.Errorf("%w: reference %s", ErrDuplicateTransaction, params.Reference)
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("failed to check for duplicate transaction: %w", err)
	}

	// Lock the wallet row, creating it on first use.
	var wallet models.TokenWallet
	err = tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("user_id = ?", params.UserID).
		First(&wallet).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		wallet = models.TokenWallet{
			ID:      uuid.NewString(),
			UserID:  params.UserID,
			Balance: 0,
		}
		if err := tx.Create(&wallet).Error; err != nil {
			return nil, fmt.Errorf("failed to create wallet: %w", err)
		}
	} else if err != nil {
		return nil, fmt.Errorf("failed to lock wallet: %w", err)
	}

	newBalance := wallet.Balance + params.Amount
	if newBalance < 0 {
		return nil, ErrInsufficientFunds
	}

	record := &models.TokenTransaction{
		ID:            uuid.NewString(),
		UserID:        params.UserID,
		Amount:        params.Amount,
		Type:          params.Type,
		RelatedID:     params.RelatedID,
		Reference:     params.Reference,
		BalanceBefore: wallet.Balance,
		BalanceAfter:  newBalance,
		Metadata:      params.Metadata,
		CreatedAt:     time.Now().UTC(),
	}
	if err := tx.Create(record).Error; err != nil {
		return nil, fmt.Errorf("failed to record transaction: %w", err)
	}

	if err := tx.Model(&models.TokenWallet{}).
		Where("id = ?", wallet.ID).
		Update("balance", newBalance).Error; err != nil {
		return nil, fmt.Errorf("failed to update balance: %w", err)
	}

	return record, nil
}

// GetTransactions lists a user's ledger history, newest first.
func (s *LedgerService) GetTransactions(userID string, limit int) ([]models.TokenTransaction, error) {
	var txs []models.TokenTransaction
	q := s.DB.Where("user_id = ?", userID).Order("created_at DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&txs).Error; err != nil {
		return nil, fmt.Errorf("failed to fetch transactions: %w", err)
	}
	return txs, nil
}
