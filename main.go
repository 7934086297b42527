package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"bounty-marketplace/handlers"
	"bounty-marketplace/middleware"
	"bounty-marketplace/models"
	"bounty-marketplace/services"
	"bounty-marketplace/utils"
	"bounty-marketplace/workers"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("⚠️  No .env file found, reading environment variables directly")
	}

	app := fiber.New(fiber.Config{
		BodyLimit: 100 * 1024 * 1024, // 100MB uploads
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
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization, X-Requested-With, X-Request-ID, User-Agent, Cache-Control, X-User-ID, X-User-Roles, X-Service-Token",
		ExposeHeaders:    "Content-Length, Content-Type, Authorization, X-Request-ID",
		AllowCredentials: true,
		MaxAge:           86400, // 24 hours
	}))

	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		log.Fatal("DATABASE_URL environment variable not set")
	}

	if err := utils.InitStorage(); err != nil {
		log.Fatal("failed to initialize object storage client:", err)
	}

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{TranslateError: true})
	if err != nil {
		log.Fatal("failed to connect to database:", err)
	}

	if err := db.AutoMigrate(
		&models.Bounty{},
		&models.WinningSpotConfig{},
		&models.Submission{},
		&models.SubmissionFile{},
		&models.Vote{},
		&models.ScoringJob{},
		&models.ScoringTask{},
		&models.Screener{},
		&models.SuggestedBounty{},
	); err != nil {
		log.Fatal("failed to migrate database:", err)
	}

	if err := utils.EnsureUploadDir(); err != nil {
		log.Fatal("failed to ensure upload dir:", err)
	}

	logServiceURL := os.Getenv("LOG_SERVICE_URL")
	if logServiceURL == "" {
		log.Fatal("LOG_SERVICE_URL environment variable not set")
	}
	dispatcherToken := os.Getenv("DISPATCHER_SERVICE_TOKEN")
	if dispatcherToken == "" {
		log.Fatal("DISPATCHER_SERVICE_TOKEN environment variable not set")
	}
	registryURL := os.Getenv("SCREENER_REGISTRY_URL")
	if registryURL == "" {
		log.Fatal("SCREENER_REGISTRY_URL environment variable not set")
	}
	tokenID := os.Getenv("REWARD_TOKEN_ID")
	if tokenID == "" {
		tokenID = "the-open-network"
	}

	approvalThreshold := decimal.NewFromInt(60)
	if raw := os.Getenv("APPROVAL_THRESHOLD"); raw != "" {
		parsed, err := decimal.NewFromString(raw)
		if err != nil {
			log.Fatal("invalid APPROVAL_THRESHOLD:", err)
		}
		approvalThreshold = parsed
	}

	bountyService := services.NewBountyService(db)
	submissionService := services.NewSubmissionService(db)
	suggestionService := services.NewSuggestionService(db)
	priceService := services.NewPriceService(tokenID)
	logClient := services.NewLogClient(logServiceURL, dispatcherToken)
	scoringService := services.NewScoringService(
		db,
		services.NewHighestPriorityAggregator(approvalThreshold),
		logClient,
	)

	screenerSync := workers.NewScreenerSyncWorker(db, registryURL, "/api/v1/screeners", dispatcherToken)
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	screenerSync.Start(ctx)

	bountyService.StartDeadlineScheduler()

	handlers.SetupBountyRoutes(app, bountyService, submissionService)
	handlers.SetupSubmissionRoutes(app, submissionService, scoringService)
	handlers.SetupScoringRoutes(app, scoringService)
	handlers.SetupSuggestionRoutes(app, suggestionService, priceService)

	// Legacy local uploads fallback for files stored before object
	// storage; resolves against the uploads dir and rejects traversal.
	app.Get("/uploads/*", func(c *fiber.Ctx) error {
		resolved, err := utils.ResolveUploadPath(c.Params("*"))
		if err != nil {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "file not found"})
		}
		return c.SendFile(resolved)
	})

	go func() {
		if err := app.Listen(":5300"); err != nil {
			log.Printf("Server error: %v", err)
		}
	}()

	log.Println("✅ Server running on http://localhost:5300")
	log.Println("✅ Screener Sync Worker running")
	log.Println("✅ Deadline scheduler running (every 1m)")
	log.Println("✅ GatewayAuthMiddleware enforced globally — all requests must come from Gateway")

	<-ctx.Done()
	log.Println("Shutting down server...")
}
