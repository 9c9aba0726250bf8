package services

import (
	"errors"
	"fmt"
	"log"
	"path/filepath"
	"pet-competition-system/models"
	"pet-competition-system/utils"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/gosimple/slug"
	"gorm.io/gorm"
)

// EntryService handles competition entry submission and cancellation.
type EntryService struct {
	DB     *gorm.DB
	Ledger *LedgerService

	Now func() time.Time
}

func NewEntryService(db *gorm.DB, ledger *LedgerService) *EntryService {
	return &EntryService{
		DB:     db,
		Ledger: ledger,
		Now:    func() time.Time { return time.Now().UTC() },
	}
}

// SubmitEntryParams is the contract consumed by the HTTP handler and tests alike.
type SubmitEntryParams struct {
	CompetitionID string
	UserID        string
	PetName       string
	Description   string
	PhotoURL      string
}

// SubmitEntry creates an entry and charges the competition's entry fee in one
// unit of work: the window check, duplicate check, fee debit, entry insert and
// pool/counter increments either all apply or none do. The fee debit and the
// entry row therefore cannot diverge.
func (s *EntryService) SubmitEntry(params SubmitEntryParams) (*models.CompetitionEntry, error) {
	now := s.Now()

	var entry *models.CompetitionEntry
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		var comp models.Competition
		if err := tx.First(&comp, "id = ?", params.CompetitionID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrCompetitionNotFound
			}
			return fmt.Errorf("failed to fetch competition: %w", err)
		}

		// Upcoming competitions accept entries too: tomorrow's entry window
		// opens the evening before its voting day.
		if comp.Status != models.CompetitionStatusActive && comp.Status != models.CompetitionStatusUpcoming {
			return ErrCompetitionClosed
		}
		if now.Before(comp.EntryStartTime) || now.After(comp.EntryEndTime) {
			return ErrEntryWindowClosed
		}

		var count int64
		if err := tx.Model(&models.CompetitionEntry{}).
			Where("competition_id = ? AND user_id = ?", comp.ID, params.UserID).
			Count(&count).Error; err != nil {
			return fmt.Errorf("failed to check for existing entry: %w", err)
		}
		if count > 0 {
			return ErrDuplicateEntry
		}

		newEntry := models.CompetitionEntry{
			ID:            uuid.NewString(),
			CompetitionID: comp.ID,
			UserID:        params.UserID,
			PetName:       params.PetName,
			Description:   params.Description,
			PhotoURL:      params.PhotoURL,
			Status:        models.EntryStatusActive,
			EntryFeePaid:  comp.EntryFee,
		}

		if comp.EntryFee > 0 {
			_, err := applyMovement(tx, MovementParams{
				UserID:    params.UserID,
				Amount:    -comp.EntryFee,
				Type:      models.TokenTxTypeEntryFee,
				RelatedID: comp.ID,
				Reference: fmt.Sprintf("entry-fee:%s:%s", comp.ID, params.UserID),
				Metadata:  fmt.Sprintf(`{"entry_id":%q}`, newEntry.ID),
			})
			if err != nil {
				return err
			}
		}

		if err := tx.Create(&newEntry).Error; err != nil {
			return fmt.Errorf("failed to create entry: %w", err)
		}

		if err := tx.Model(&models.Competition{}).
			Where("id = ?", comp.ID).
			Updates(map[string]interface{}{
				"prize_pool":    gorm.Expr("prize_pool + ?", comp.EntryFee),
				"total_entries": gorm.Expr("total_entries + ?", 1),
			}).Error; err != nil {
			return fmt.Errorf("failed to update competition counters: %w", err)
		}

		entry = &newEntry
		return nil
	})
	if err != nil {
		return nil, err
	}
	return entry, nil
}

// CancelEntryAndRefund marks an entry cancelled, refunds its fee snapshot and
// shrinks the competition's pool and entry counter. Admin-triggered; allowed
// only while the competition has not completed.
func (s *EntryService) CancelEntryAndRefund(entryID string) (*models.CompetitionEntry, error) {
	var cancelled *models.CompetitionEntry
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		var entry models.CompetitionEntry
		if err := tx.First(&entry, "id = ?", entryID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrEntryNotFound
			}
			return fmt.Errorf("failed to fetch entry: %w", err)
		}
		if entry.Status != models.EntryStatusActive {
			return ErrEntryNotActive
		}
		if entry.Refunded {
			return ErrAlreadyRefunded
		}

		var comp models.Competition
		if err := tx.First(&comp, "id = ?", entry.CompetitionID).Error; err != nil {
			return fmt.Errorf("failed to fetch competition: %w", err)
		}
		if comp.Status == models.CompetitionStatusCompleted {
			return ErrCompetitionClosed
		}

		now := s.Now()
		if err := tx.Model(&models.CompetitionEntry{}).
			Where("id = ?", entry.ID).
			Updates(map[string]interface{}{
				"status":      models.EntryStatusCancelled,
				"refunded":    true,
				"refunded_at": now,
			}).Error; err != nil {
			return fmt.Errorf("failed to cancel entry: %w", err)
		}

		if entry.EntryFeePaid > 0 {
			_, err := applyMovement(tx, MovementParams{
				UserID:    entry.UserID,
				Amount:    entry.EntryFeePaid,
				Type:      models.TokenTxTypeEntryRefund,
				RelatedID: entry.ID,
				Reference: fmt.Sprintf("entry-refund:%s", entry.ID),
			})
			if err != nil {
				return err
			}
		}

		if err := tx.Model(&models.Competition{}).
			Where("id = ?", comp.ID).
			Updates(map[string]interface{}{
				"prize_pool":    gorm.Expr("prize_pool - ?", entry.EntryFeePaid),
				"total_entries": gorm.Expr("total_entries - ?", 1),
			}).Error; err != nil {
			return fmt.Errorf("failed to update competition counters: %w", err)
		}

		entry.Status = models.EntryStatusCancelled
		entry.Refunded = true
		entry.RefundedAt = &now
		cancelled = &entry
		return nil
	})
	if err != nil {
		return nil, err
	}
	return cancelled, nil
}

// --- Fiber handlers ---

// SubmitEntryHandler accepts a multipart form with pet_name, description and a
// photo file, uploads the photo to R2 and creates the entry.
func (s *EntryService) SubmitEntryHandler(c *fiber.Ctx) error {
	competitionID := c.Params("id")
	userID := c.Locals("user_id").(string)

	petName := c.FormValue("pet_name")
	description := c.FormValue("description")
	if petName == "" {
		return c.Status(400).JSON(fiber.Map{"error": "pet_name is required"})
	}

	photo, err := c.FormFile("photo")
	if err != nil || photo.Size == 0 {
		return c.Status(400).JSON(fiber.Map{"error": "photo is required"})
	}
	ext := filepath.Ext(photo.Filename)
	if ext == "" {
		ext = ".jpg"
	}
	key := fmt.Sprintf("entries/%s/%s-%s%s", competitionID, slug.Make(petName), uuid.NewString(), ext)
	photoURL, err := utils.StorePhoto(photo, key)
	if err != nil {
		log.Printf("ERROR uploading entry photo: %v", err)
		return c.Status(500).JSON(fiber.Map{"error": "failed to upload photo"})
	}

	entry, err := s.SubmitEntry(SubmitEntryParams{
		CompetitionID: competitionID,
		UserID:        userID,
		PetName:       petName,
		Description:   description,
		PhotoURL:      photoURL,
	})
	if err != nil {
		switch {
		case errors.Is(err, ErrCompetitionNotFound):
			return c.Status(404).JSON(fiber.Map{"error": err.Error()})
		case errors.Is(err, ErrEntryWindowClosed), errors.Is(err, ErrCompetitionClosed):
			return c.Status(400).JSON(fiber.Map{"error": err.Error()})
		case errors.Is(err, ErrDuplicateEntry):
			return c.Status(409).JSON(fiber.Map{"error": err.Error()})
		case errors.Is(err, ErrInsufficientFunds):
			return c.Status(402).JSON(fiber.Map{"error": err.Error()})
		default:
			log.Printf("ERROR submitting entry: %v", err)
			return c.Status(500).JSON(fiber.Map{"error": "failed to submit entry"})
		}
	}
	return c.Status(201).JSON(entry)
}

// CancelEntryHandler is the admin refund endpoint.
func (s *EntryService) CancelEntryHandler(c *fiber.Ctx) error {
	entryID := c.Params("id")
	entry, err := s.CancelEntryAndRefund(entryID)
	if err != nil {
		switch {
		case errors.Is(err, ErrEntryNotFound):
			return c.Status(404).JSON(fiber.Map{"error": err.Error()})
		case errors.Is(err, ErrEntryNotActive), errors.Is(err, ErrAlreadyRefunded), errors.Is(err, ErrCompetitionClosed):
			return c.Status(400).JSON(fiber.Map{"error": err.Error()})
		default:
			log.Printf("ERROR cancelling entry %s: %v", entryID, err)
			return c.Status(500).JSON(fiber.Map{"error": "failed to cancel entry"})
		}
	}
	return c.JSON(fiber.Map{"message": "entry cancelled and refunded", "entry": entry})
}
