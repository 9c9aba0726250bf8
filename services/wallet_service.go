package services

import (
	"errors"
	"log"
	"pet-competition-system/models"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

// WalletService exposes token balances and history over HTTP.
type WalletService struct {
	Ledger *LedgerService
}

func NewWalletService(ledger *LedgerService) *WalletService {
	return &WalletService{Ledger: ledger}
}

// GetMyBalance returns the authenticated user's token balance.
func (s *WalletService) GetMyBalance(c *fiber.Ctx) error {
	userID := c.Locals("user_id").(string)
	balance, err := s.Ledger.GetBalance(userID)
	if err != nil {
		log.Printf("ERROR fetching balance for %s: %v", userID, err)
		return c.Status(500).JSON(fiber.Map{"error": "failed to fetch balance"})
	}
	return c.JSON(fiber.Map{"user_id": userID, "balance": balance})
}

// GetMyTransactions returns the authenticated user's ledger history.
func (s *WalletService) GetMyTransactions(c *fiber.Ctx) error {
	userID := c.Locals("user_id").(string)
	txs, err := s.Ledger.GetTransactions(userID, 100)
	if err != nil {
		log.Printf("ERROR fetching transactions for %s: %v", userID, err)
		return c.Status(500).JSON(fiber.Map{"error": "failed to fetch transactions"})
	}
	return c.JSON(txs)
}

// TopUp credits a user's wallet (admin / payment-callback use). The caller
// supplies an idempotency reference so webhook retries cannot double-credit.
func (s *WalletService) TopUp(c *fiber.Ctx) error {
	type Req struct {
		UserID    string `json:"user_id"`
		Amount    int64  `json:"amount"`
		Reference string `json:"reference"`
	}
	var req Req
	if err := c.BodyParser(&req); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "invalid JSON"})
	}
	if req.UserID == "" || req.Amount <= 0 {
		return c.Status(400).JSON(fiber.Map{"error": "user_id and a positive amount are required"})
	}
	if req.Reference == "" {
		req.Reference = "top-up:" + uuid.NewString()
	}

	tx, err := s.Ledger.Apply(MovementParams{
		UserID:    req.UserID,
		Amount:    req.Amount,
		Type:      models.TokenTxTypeTopUp,
		Reference: req.Reference,
	})
	if err != nil {
		if errors.Is(err, ErrDuplicateTransaction) {
			return c.Status(409).JSON(fiber.Map{"error": "reference already credited"})
		}
		log.Printf("ERROR topping up %s: %v", req.UserID, err)
		return c.Status(500).JSON(fiber.Map{"error": "failed to credit wallet"})
	}
	return c.Status(201).JSON(tx)
}
