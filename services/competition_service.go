package services

import (
	"errors"
	"log"
	"pet-competition-system/models"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

// CompetitionService is the read/admin HTTP surface over competitions.
type CompetitionService struct {
	DB     *gorm.DB
	Engine *CompetitionEngine
}

func NewCompetitionService(db *gorm.DB, engine *CompetitionEngine) *CompetitionService {
	return &CompetitionService{DB: db, Engine: engine}
}

// GetTodayCompetition returns today's competition (UTC date).
func (s *CompetitionService) GetTodayCompetition(c *fiber.Ctx) error {
	date := s.Engine.Now().Format("2006-01-02")
	var comp models.Competition
	if err := s.DB.Where("date = ?", date).First(&comp).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(404).JSON(fiber.Map{"error": "no competition for today"})
		}
		log.Printf("ERROR fetching today's competition: %v", err)
		return c.Status(500).JSON(fiber.Map{"error": "DB error"})
	}
	return c.JSON(comp)
}

// GetAllCompetitions lists competitions newest first, optionally filtered by status.
func (s *CompetitionService) GetAllCompetitions(c *fiber.Ctx) error {
	query := s.DB.Order("date DESC")
	if status := c.Query("status"); status != "" {
		query = query.Where("status = ?", status)
	}
	var comps []models.Competition
	if err := query.Limit(60).Find(&comps).Error; err != nil {
		log.Printf("ERROR fetching competitions: %v", err)
		return c.Status(500).JSON(fiber.Map{"error": "failed to fetch competitions"})
	}
	return c.JSON(comps)
}

// GetCompetitionByID returns one competition with its podium entries preloaded.
func (s *CompetitionService) GetCompetitionByID(c *fiber.Ctx) error {
	id := c.Params("id")
	var comp models.Competition
	err := s.DB.Preload("Entries", func(db *gorm.DB) *gorm.DB {
		return db.Where("rank > 0").Order("rank ASC")
	}).First(&comp, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(404).JSON(fiber.Map{"error": "competition not found"})
		}
		log.Printf("ERROR fetching competition %s: %v", id, err)
		return c.Status(500).JSON(fiber.Map{"error": "DB error"})
	}
	return c.JSON(comp)
}

// GetLeaderboard lists a competition's active entries in ranking order:
// votes descending, earlier submission breaking ties.
func (s *CompetitionService) GetLeaderboard(c *fiber.Ctx) error {
	id := c.Params("id")
	var entries []models.CompetitionEntry
	if err := s.DB.Where("competition_id = ? AND status = ?", id, models.EntryStatusActive).
		Order("votes_count DESC, created_at ASC").
		Find(&entries).Error; err != nil {
		log.Printf("ERROR fetching leaderboard for %s: %v", id, err)
		return c.Status(500).JSON(fiber.Map{"error": "failed to fetch leaderboard"})
	}
	return c.JSON(entries)
}

// CancelCompetition is the terminal admin action. Only upcoming or active
// competitions can be cancelled; the conditional update makes repeated or
// racing cancels harmless.
func (s *CompetitionService) CancelCompetition(c *fiber.Ctx) error {
	id := c.Params("id")
	result := s.DB.Model(&models.Competition{}).
		Where("id = ? AND status IN ?", id, []models.CompetitionStatus{
			models.CompetitionStatusUpcoming,
			models.CompetitionStatusActive,
		}).
		Update("status", models.CompetitionStatusCancelled)
	if result.Error != nil {
		log.Printf("ERROR cancelling competition %s: %v", id, result.Error)
		return c.Status(500).JSON(fiber.Map{"error": "DB error"})
	}
	if result.RowsAffected == 0 {
		return c.Status(409).JSON(fiber.Map{"error": "competition not found or not cancellable"})
	}
	log.Printf("[Admin] Competition %s cancelled", id)
	return c.JSON(fiber.Map{"message": "competition cancelled"})
}

// EnsureToday lets ops tooling trigger today's creation directly. Idempotent.
func (s *CompetitionService) EnsureToday(c *fiber.Ctx) error {
	comp, err := s.Engine.CreateDailyCompetition()
	if err != nil {
		log.Printf("ERROR creating daily competition: %v", err)
		return c.Status(500).JSON(fiber.Map{"error": "failed to create daily competition"})
	}
	return c.JSON(comp)
}

// EnsureTomorrow lets ops tooling trigger tomorrow's creation directly. Idempotent.
func (s *CompetitionService) EnsureTomorrow(c *fiber.Ctx) error {
	comp, err := s.Engine.CreateTomorrowCompetition()
	if err != nil {
		log.Printf("ERROR creating tomorrow's competition: %v", err)
		return c.Status(500).JSON(fiber.Map{"error": "failed to create tomorrow's competition"})
	}
	return c.JSON(comp)
}

// TriggerEnd runs winner selection on demand. Safe next to the scheduler: the
// engine's distribution fence guarantees at-most-once payout, and "nothing
// due" is a 200 with no competition.
func (s *CompetitionService) TriggerEnd(c *fiber.Ctx) error {
	comp, err := s.Engine.EndCompetitionAndSelectWinners()
	if err != nil {
		log.Printf("ERROR ending competition: %v", err)
		return c.Status(500).JSON(fiber.Map{"error": "failed to end competition"})
	}
	if comp == nil {
		return c.JSON(fiber.Map{"message": "no competition due", "competition": nil})
	}
	return c.JSON(fiber.Map{"message": "competition completed", "competition": comp})
}
