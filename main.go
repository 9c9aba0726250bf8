package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"pet-competition-system/handlers"
	"pet-competition-system/middleware"
	"pet-competition-system/models"
	"pet-competition-system/services"
	"pet-competition-system/utils"
	"pet-competition-system/workers"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/joho/godotenv"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("⚠️  No .env file found, reading environment variables directly")
	}

	app := fiber.New(fiber.Config{
		BodyLimit: 20 * 1024 * 1024, // photos only, nothing bigger
	})

	// 🔐❗ GLOBAL: Only Gateway requests allowed — no exceptions
	app.Use(middleware.GatewayAuthMiddleware())

	allowedOriginsEnv := os.Getenv("ALLOWED_ORIGINS")
	if allowedOriginsEnv == "" {
		log.Println("⚠️  ALLOWED_ORIGINS environment variable not set, using default: http://localhost:3000")
		allowedOriginsEnv = "http://localhost:3000"
	}
	allowedOriginsList := strings.Split(allowedOriginsEnv, ",")
	for i, origin := range allowedOriginsList {
		allowedOriginsList[i] = strings.TrimSpace(origin)
	}

	app.Use(cors.New(cors.Config{
		AllowOrigins:     strings.Join(allowedOriginsList, ","),
		AllowMethods:     "GET,POST,PUT,DELETE,OPTIONS,PATCH,HEAD",
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization, X-Requested-With, X-Request-ID, User-Agent, Cache-Control, X-User-ID, X-User-Roles, X-Device-ID",
		ExposeHeaders:    "Content-Length, Content-Type, Authorization, X-Request-ID",
		AllowCredentials: true,
		MaxAge:           86400, // 24 hours
	}))

	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		log.Fatal("DATABASE_URL environment variable not set")
	}

	if os.Getenv("CLOUDFLARE_ACCOUNT_ID") != "" {
		if err := utils.InitR2(); err != nil {
			log.Fatal("failed to initialize R2 client:", err)
		}
	} else {
		log.Println("⚠️  R2 not configured, entry photos will be stored locally under ./uploads")
	}

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		log.Fatal("failed to connect to database:", err)
	}

	if err := db.AutoMigrate(
		&models.Competition{},
		&models.CompetitionEntry{},
		&models.CompetitionVote{},
		&models.TokenWallet{},
		&models.TokenTransaction{},
	); err != nil {
		log.Fatal("failed to migrate database:", err)
	}

	if err := utils.EnsureUploadDir(); err != nil {
		log.Fatal("failed to ensure upload dir:", err)
	}

	cfg := services.CompetitionConfig{
		DefaultEntryFee:    envInt64("COMPETITION_ENTRY_FEE", 10),
		FraudVoteThreshold: envInt64("FRAUD_VOTE_THRESHOLD", 5),
	}

	ledger := services.NewLedgerService(db)
	engine := services.NewCompetitionEngine(db, ledger, cfg)
	competitionService := services.NewCompetitionService(db, engine)
	entryService := services.NewEntryService(db, ledger)
	voteService := services.NewVoteService(db, cfg)
	walletService := services.NewWalletService(ledger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Make sure today exists even if the process was down over midnight.
	if _, err := engine.CreateDailyCompetition(); err != nil {
		log.Printf("⚠️  Failed to ensure today's competition at startup: %v", err)
	}

	scheduler := services.NewCompetitionScheduler(engine, schedulerConfigFromEnv())
	if err := scheduler.Start(); err != nil {
		log.Fatal("failed to start competition scheduler:", err)
	}
	defer scheduler.Stop()

	reconciler := workers.NewCounterReconciler(db, envDuration("RECONCILE_INTERVAL", 15*time.Minute))
	go reconciler.Run(ctx)

	handlers.SetupCompetitionRoutes(app, competitionService, entryService, voteService, walletService)

	app.Static("/uploads", "./uploads")

	go func() {
		if err := app.Listen(":5300"); err != nil {
			log.Printf("Server error: %v", err)
		}
	}()

	log.Println("✅ Server running on http://localhost:5300")
	log.Println("✅ Competition scheduler running (nightly close + hourly status tick)")
	log.Println("✅ Counter reconciler running")
	log.Println("✅ GatewayAuthMiddleware enforced globally — all requests must come from Gateway")

	<-ctx.Done()
	log.Println("Shutting down server...")
}

func schedulerConfigFromEnv() services.SchedulerConfig {
	closeTime := os.Getenv("COMPETITION_CLOSE_TIME")
	if closeTime == "" {
		closeTime = "23:59"
	}
	parsed, err := time.Parse("15:04", closeTime)
	if err != nil {
		log.Fatalf("invalid COMPETITION_CLOSE_TIME %q (use HH:MM): %v", closeTime, err)
	}

	loc := time.UTC
	if tz := os.Getenv("COMPETITION_TIMEZONE"); tz != "" {
		loc, err = time.LoadLocation(tz)
		if err != nil {
			log.Fatalf("invalid COMPETITION_TIMEZONE %q: %v", tz, err)
		}
	}

	return services.SchedulerConfig{
		CloseHour:   parsed.Hour(),
		CloseMinute: parsed.Minute(),
		Location:    loc,
	}
}

func envInt64(key string, fallback int64) int64 {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil && n >= 0 {
			return n
		}
		log.Fatalf("invalid %s: %q must be a non-negative integer", key, v)
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			return d
		}
		log.Fatalf("invalid %s: %q must be a positive duration", key, v)
	}
	return fallback
}
