package handlers

import (
	"pet-competition-system/middleware"
	"pet-competition-system/services"

	"github.com/gofiber/fiber/v2"
)

func SetupCompetitionRoutes(
	app *fiber.App,
	competitionService *services.CompetitionService,
	entryService *services.EntryService,
	voteService *services.VoteService,
	walletService *services.WalletService,
) {
	// 🔓 Public reads
	app.Get("/competitions", competitionService.GetAllCompetitions)
	app.Get("/competitions/today", competitionService.GetTodayCompetition)
	app.Get("/competitions/:id", competitionService.GetCompetitionByID)
	app.Get("/competitions/:id/leaderboard", competitionService.GetLeaderboard)

	// 🔐 Authenticated routes (gateway provides X-User-ID)
	secured := app.Group("/", middleware.UserContextMiddleware())

	secured.Post("/competitions/:id/entries", entryService.SubmitEntryHandler)
	secured.Post("/entries/:id/votes", voteService.CastVoteHandler)

	secured.Get("/users/me/wallet", walletService.GetMyBalance)
	secured.Get("/users/me/wallet/transactions", walletService.GetMyTransactions)

	// 🔐 Admin / ops tooling
	admin := secured.Group("/admin", middleware.RequireAdmin())
	admin.Post("/competitions/ensure-today", competitionService.EnsureToday)
	admin.Post("/competitions/ensure-tomorrow", competitionService.EnsureTomorrow)
	admin.Post("/competitions/end", competitionService.TriggerEnd)
	admin.Post("/competitions/:id/cancel", competitionService.CancelCompetition)
	admin.Get("/competitions/:id/votes/flagged", voteService.GetFlaggedVotesHandler)
	admin.Post("/entries/:id/cancel", entryService.CancelEntryHandler)
	admin.Post("/wallets/top-up", walletService.TopUp)
}
