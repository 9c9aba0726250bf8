package services

import (
	"errors"
	"fmt"
	"log"
	"pet-competition-system/models"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// VoteService is the vote integrity guard: it enforces one vote per user per
// entry and flags suspicious same-device / same-IP voting patterns. Flagging
// is advisory — a flagged vote still counts.
type VoteService struct {
	DB     *gorm.DB
	Config CompetitionConfig

	Now func() time.Time
}

func NewVoteService(db *gorm.DB, cfg CompetitionConfig) *VoteService {
	if cfg.FraudVoteThreshold <= 0 {
		cfg.FraudVoteThreshold = 5
	}
	return &VoteService{
		DB:     db,
		Config: cfg,
		Now:    func() time.Time { return time.Now().UTC() },
	}
}

// CastVoteParams carries one vote submission with its abuse-detection context.
type CastVoteParams struct {
	CompetitionID     string
	EntryID           string
	UserID            string
	DeviceFingerprint string
	DeviceInfo        string
	IPAddress         string
}

// CastVote inserts a vote and bumps the entry and competition counters as one
// unit of work. A duplicate (competition, entry, user) vote is rejected before
// any counter moves.
func (s *VoteService) CastVote(params CastVoteParams) (*models.CompetitionVote, error) {
	now := s.Now()

	var vote *models.CompetitionVote
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		var comp models.Competition
		if err := tx.First(&comp, "id = ?", params.CompetitionID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrCompetitionNotFound
			}
			return fmt.Errorf("failed to fetch competition: %w", err)
		}
		if comp.Status != models.CompetitionStatusActive {
			return ErrCompetitionClosed
		}
		if now.Before(comp.StartTime) || !now.Before(comp.EndTime) {
			return ErrVotingWindowClosed
		}

		var entry models.CompetitionEntry
		if err := tx.First(&entry, "id = ? AND competition_id = ?", params.EntryID, comp.ID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrEntryNotFound
			}
			return fmt.Errorf("failed to fetch entry: %w", err)
		}
		if entry.Status != models.EntryStatusActive {
			return ErrEntryNotActive
		}

		var count int64
		if err := tx.Model(&models.CompetitionVote{}).
			Where("competition_id = ? AND entry_id = ? AND user_id = ?", comp.ID, entry.ID, params.UserID).
			Count(&count).Error; err != nil {
			return fmt.Errorf("failed to check for existing vote: %w", err)
		}
		if count > 0 {
			return ErrDuplicateVote
		}

		flagged, reason, err := s.fraudCheck(tx, comp.ID, params)
		if err != nil {
			return err
		}

		newVote := models.CompetitionVote{
			ID:                uuid.NewString(),
			CompetitionID:     comp.ID,
			EntryID:           entry.ID,
			UserID:            params.UserID,
			DeviceFingerprint: params.DeviceFingerprint,
			DeviceInfo:        params.DeviceInfo,
			IPAddress:         params.IPAddress,
			IsValid:           true,
			FlaggedForReview:  flagged,
			FlagReason:        reason,
		}
		if err := tx.Create(&newVote).Error; err != nil {
			return fmt.Errorf("failed to create vote: %w", err)
		}

		if err := tx.Model(&models.CompetitionEntry{}).
			Where("id = ?", entry.ID).
			Update("votes_count", gorm.Expr("votes_count + ?", 1)).Error; err != nil {
			return fmt.Errorf("failed to increment entry votes: %w", err)
		}
		if err := tx.Model(&models.Competition{}).
			Where("id = ?", comp.ID).
			Update("total_votes", gorm.Expr("total_votes + ?", 1)).Error; err != nil {
			return fmt.Errorf("failed to increment competition votes: %w", err)
		}

		vote = &newVote
		return nil
	})
	if err != nil {
		return nil, err
	}

	if vote.FlaggedForReview {
		log.Printf("[VoteGuard] Flagged vote %s in competition %s: %s", vote.ID, vote.CompetitionID, vote.FlagReason)
	}
	return vote, nil
}

// fraudCheck counts prior votes in the same competition sharing the device
// fingerprint or IP address. Crossing the threshold flags the new vote for
// review; it never blocks it.
func (s *VoteService) fraudCheck(tx *gorm.DB, competitionID string, params CastVoteParams) (bool, string, error) {
	if params.DeviceFingerprint != "" {
		var sameDevice int64
		if err := tx.Model(&models.CompetitionVote{}).
			Where("competition_id = ? AND device_fingerprint = ?", competitionID, params.DeviceFingerprint).
			Count(&sameDevice).Error; err != nil {
			return false, "", fmt.Errorf("failed to count same-device votes: %w", err)
		}
		if sameDevice >= s.Config.FraudVoteThreshold {
			return true, fmt.Sprintf("device fingerprint seen on %d prior votes in this competition", sameDevice), nil
		}
	}

	if params.IPAddress != "" {
		var sameIP int64
		if err := tx.Model(&models.CompetitionVote{}).
			Where("competition_id = ? AND ip_address = ?", competitionID, params.IPAddress).
			Count(&sameIP).Error; err != nil {
			return false, "", fmt.Errorf("failed to count same-IP votes: %w", err)
		}
		if sameIP >= s.Config.FraudVoteThreshold {
			return true, fmt.Sprintf("IP address seen on %d prior votes in this competition", sameIP), nil
		}
	}

	return false, "", nil
}

// GetFlaggedVotes lists votes awaiting manual review for one competition.
func (s *VoteService) GetFlaggedVotes(competitionID string) ([]models.CompetitionVote, error) {
	var votes []models.CompetitionVote
	if err := s.DB.Where("competition_id = ? AND flagged_for_review = ?", competitionID, true).
		Order("created_at ASC").
		Find(&votes).Error; err != nil {
		return nil, fmt.Errorf("failed to fetch flagged votes: %w", err)
	}
	return votes, nil
}

// --- Fiber handlers ---

// CastVoteHandler wires the HTTP submission flow into CastVote. The device
// fingerprint and info come from the client; the IP from the connection.
func (s *VoteService) CastVoteHandler(c *fiber.Ctx) error {
	type Req struct {
		CompetitionID     string `json:"competition_id"`
		DeviceFingerprint string `json:"device_fingerprint"`
		DeviceInfo        string `json:"device_info"`
	}
	entryID := c.Params("id")
	userID := c.Locals("user_id").(string)

	var req Req
	if err := c.BodyParser(&req); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "invalid JSON"})
	}
	if req.CompetitionID == "" {
		return c.Status(400).JSON(fiber.Map{"error": "competition_id is required"})
	}

	vote, err := s.CastVote(CastVoteParams{
		CompetitionID:     req.CompetitionID,
		EntryID:           entryID,
		UserID:            userID,
		DeviceFingerprint: req.DeviceFingerprint,
		DeviceInfo:        req.DeviceInfo,
		IPAddress:         c.IP(),
	})
	if err != nil {
		switch {
		case errors.Is(err, ErrCompetitionNotFound), errors.Is(err, ErrEntryNotFound):
			return c.Status(404).JSON(fiber.Map{"error": err.Error()})
		case errors.Is(err, ErrDuplicateVote):
			return c.Status(409).JSON(fiber.Map{"error": err.Error()})
		case errors.Is(err, ErrCompetitionClosed), errors.Is(err, ErrVotingWindowClosed), errors.Is(err, ErrEntryNotActive):
			return c.Status(400).JSON(fiber.Map{"error": err.Error()})
		default:
			log.Printf("ERROR casting vote: %v", err)
			return c.Status(500).JSON(fiber.Map{"error": "failed to cast vote"})
		}
	}
	return c.Status(201).JSON(vote)
}

// GetFlaggedVotesHandler is the admin review queue.
func (s *VoteService) GetFlaggedVotesHandler(c *fiber.Ctx) error {
	votes, err := s.GetFlaggedVotes(c.Params("id"))
	if err != nil {
		log.Printf("ERROR fetching flagged votes: %v", err)
		return c.Status(500).JSON(fiber.Map{"error": "failed to fetch flagged votes"})
	}
	return c.JSON(votes)
}
