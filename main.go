package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"rental-rewards-system/handlers"
	"rental-rewards-system/middleware"
	"rental-rewards-system/models"
	"rental-rewards-system/services"
	"rental-rewards-system/workers"

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

	app := fiber.New(fiber.Config{})

	// 🔐 GLOBAL: Only Gateway requests allowed — no exceptions
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
	allowedOriginsString := strings.Join(allowedOriginsList, ",")

	app.Use(cors.New(cors.Config{
		AllowOrigins:     allowedOriginsString,
		AllowMethods:     "GET,POST,OPTIONS",
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization, X-Requested-With, X-Request-ID, X-User-ID, X-User-Roles, X-Service-Token",
		ExposeHeaders:    "Content-Length, Content-Type, X-Request-ID",
		AllowCredentials: true,
		MaxAge:           86400, // 24 hours
	}))

	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		log.Fatal("DATABASE_URL environment variable not set")
	}

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		log.Fatal("failed to connect to database:", err)
	}

	if err := db.AutoMigrate(
		&models.Achievement{},
		&models.UserAchievementProgress{},
		&models.LeaderboardSnapshot{},
		&models.PointsTransaction{},
		&models.RentalMirror{},
		&models.ReferralMirror{},
		&models.Notification{},
	); err != nil {
		log.Fatal("failed to migrate database:", err)
	}

	catalogService := services.NewCatalogService(db)
	if err := catalogService.SeedDefaults(); err != nil {
		log.Fatal("failed to seed achievement catalog:", err)
	}

	activityStore := services.NewActivityStore(db)
	progressService := services.NewProgressService(activityStore)
	ledgerService := services.NewLedgerService(db)
	dispatcher := services.NewQueueDispatcher(db)
	leaderboardService := services.NewLeaderboardService(db, activityStore, ledgerService)
	unlockService := services.NewUnlockService(db, progressService, catalogService, dispatcher)
	claimService := services.NewClaimService(db, ledgerService, leaderboardService, dispatcher)

	syncServiceURL := os.Getenv("ACTIVITY_SYNC_URL")
	if syncServiceURL == "" {
		log.Fatal("ACTIVITY_SYNC_URL environment variable not set")
	}
	serviceToken := os.Getenv("REWARDS_SERVICE_TOKEN")
	if serviceToken == "" {
		log.Fatal("REWARDS_SERVICE_TOKEN environment variable not set")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	activitySyncClient := workers.NewActivitySyncClient(db, syncServiceURL, serviceToken)
	go workers.PollActivity(ctx, activitySyncClient, 10*time.Second)

	notificationWorker := workers.NewNotificationWorker(db, workers.LogSender{}, dispatcher.Wake())
	go notificationWorker.Run(ctx)

	leaderboardService.StartRankScheduler(ctx)

	handlers.SetupAchievementRoutes(app, unlockService, claimService)
	handlers.SetupLeaderboardRoutes(app, leaderboardService)

	go func() {
		if err := app.Listen(":5300"); err != nil {
			log.Printf("Server error: %v", err)
		}
	}()

	log.Println("✅ Server running on http://localhost:5300")
	log.Println("✅ Activity polling running (every 10s)")
	log.Println("✅ Notification worker running")
	log.Println("✅ Leaderboard rank scheduler running (every 1m)")
	log.Printf("✅ CORS configured for origins: %s", allowedOriginsString)

	<-ctx.Done()
	log.Println("Shutting down server...")
}
