package main

import (
	"context"
	"database/sql"
	"encoding/base64"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	config "github.com/priyankab28/contribsync/configs"
	"github.com/priyankab28/contribsync/internal/api/handlers"
	"github.com/priyankab28/contribsync/internal/api/middleware"
	job "github.com/priyankab28/contribsync/internal/jobs"
	"github.com/priyankab28/contribsync/internal/queue"
	"github.com/priyankab28/contribsync/internal/repository"
	"github.com/priyankab28/contribsync/internal/service"
	"github.com/robfig/cron"
)

const (
	syncBatchSize       = 5
	generationBatchSize = 10
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: Failed to load environment variables", err)
	}

	cfg := config.LoadConfig()
	encryptionKey, err := base64.StdEncoding.DecodeString(cfg.EncryptionKey)
	if err != nil {
		log.Fatalf("ENCRYPTION_KEY must be base64: %v", err)
	}
	if len(encryptionKey) != 32 {
		log.Fatalf("ENCRYPTION_KEY must decode to 32 bytes, got %d", len(encryptionKey))
	}

	db, err := sql.Open("postgres", cfg.PostgresURI)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer closeDB(db)

	if err := db.Ping(); err != nil {
		log.Fatalf("Database is unreachable: %v", err)
	}

	app := fiber.New(fiber.Config{
		ReadTimeout:  time.Minute,
		WriteTimeout: time.Minute,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			log.Printf("Error: %v", err)
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
		},
	})

	app.Use(logger.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.FrontendURL,
		AllowMethods:     "GET,POST,PUT,DELETE,OPTIONS",
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization",
		AllowCredentials: true,
		MaxAge:           3600,
	}))

	accountRepo := repository.NewPlatformAccountRepository(db)
	contributionRepo := repository.NewContributionRepository(db)
	activityRepo := repository.NewActivityRepository(db)
	syncJobRepo := repository.NewSyncJobRepository(db)
	generationJobRepo := repository.NewGenerationJobRepository(db)
	settingRepo := repository.NewSyncSettingRepository(db)

	r2Service := service.NewR2Service(*cfg)
	accountService := service.NewAccountService(accountRepo, encryptionKey)
	settingsService := service.NewSettingsService(settingRepo)
	syncJobService := service.NewSyncJobService(syncJobRepo, accountRepo)
	generationJobService := service.NewGenerationJobService(generationJobRepo)
	aggregationService := service.NewAggregationService(activityRepo)
	timelineService := service.NewTimelineService(accountRepo, contributionRepo, activityRepo)

	syncExecutor := service.NewSyncExecutor(syncJobRepo, accountRepo, contributionRepo, aggregationService, generationJobService, encryptionKey)
	generationExecutor := service.NewGenerationExecutor(generationJobRepo, contributionRepo, service.NewSVGRenderer(), r2Service)

	syncWorker := queue.NewWorker("sync", syncJobRepo, syncExecutor, syncBatchSize)
	generationWorker := queue.NewWorker("generation", generationJobRepo, generationExecutor, generationBatchSize)

	ctx := context.Background()
	if err := syncWorker.Recover(ctx); err != nil {
		log.Fatalf("Failed to recover sync jobs: %v", err)
	}
	if err := generationWorker.Recover(ctx); err != nil {
		log.Fatalf("Failed to recover generation jobs: %v", err)
	}

	authMiddleware := middleware.NewAuthMiddleware(*cfg)

	api := app.Group("/api")
	api.Use(authMiddleware.AuthMiddleware())

	account := handlers.NewAccountHandler(accountService)
	api.Post("/accounts", account.ConnectAccount)
	api.Get("/accounts", account.ListAccounts)
	api.Patch("/accounts/:id", account.UpdateAccount)
	api.Delete("/accounts/:id", account.RemoveAccount)

	settings := handlers.NewSettingsHandler(settingsService)
	api.Get("/settings/info", settings.GetSettings)
	api.Post("/settings/update", settings.UpdateSettings)

	syncJob := handlers.NewSyncJobHandler(syncJobService)
	api.Post("/sync", syncJob.TriggerSync)
	api.Get("/sync/jobs", syncJob.ListJobs)
	api.Get("/sync/jobs/:id", syncJob.GetJob)
	api.Get("/sync/jobs/:id/progress", syncJob.Progress)
	api.Post("/sync/jobs/:id/cancel", syncJob.CancelJob)
	api.Delete("/sync/jobs/:id", syncJob.DeleteJob)

	timeline := handlers.NewTimelineHandler(timelineService)
	api.Get("/accounts/:id/contributions", timeline.AccountContributions)
	api.Get("/accounts/:id/activities", timeline.AccountActivities)
	api.Get("/activities", timeline.ListActivities)
	api.Get("/contributions/summary", timeline.ContributionSummary)

	generation := handlers.NewGenerationHandler(generationJobService)
	api.Post("/generate", generation.TriggerGeneration)
	api.Get("/generate/jobs", generation.ListJobs)
	api.Post("/generate/jobs/:id/cancel", generation.CancelJob)

	// cron jobs
	schedulerJob := job.NewSyncSchedulerJob(settingRepo, accountRepo, syncJobService)
	refreshTokenJob := job.NewTokenRefreshJob(accountRepo, *cfg, encryptionKey)

	c := cron.New()
	c.AddFunc("@every 00h01m00s", schedulerJob.CheckDueUsers)
	c.AddFunc("@every 00h00m10s", syncWorker.ProcessPendingJobs)
	c.AddFunc("@every 00h00m10s", generationWorker.ProcessPendingJobs)
	c.AddFunc("@every 00h10m00s", refreshTokenJob.RefreshTokens)
	c.Start()

	go func() {
		if err := app.Listen(":3000"); err != nil {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()
	log.Println("Server is running on http://localhost:3000")

	gracefulShutdown(app, db)
}

func closeDB(db *sql.DB) {
	fmt.Fprint(os.Stdout, "Closing database connection... ")
	if err := db.Close(); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to close database: %v", err)
		return
	}
	fmt.Fprintln(os.Stdout, "Done")
}

func gracefulShutdown(app *fiber.App, db *sql.DB) {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	<-quit
	log.Println("Shutting down server...")

	if err := app.Shutdown(); err != nil {
		log.Fatalf("Failed to shut down server: %v", err)
	}

	closeDB(db)
	log.Println("Server shutdown complete.")
}
