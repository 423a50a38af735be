package main

import (
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/getsentry/sentry-go"
	sentryfiber "github.com/getsentry/sentry-go/fiber"

	"github.com/gofiber/fiber/v2"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/opentranscribe/scribe-backend/internal/config"
	"github.com/opentranscribe/scribe-backend/internal/database"
	"github.com/opentranscribe/scribe-backend/internal/events"
	"github.com/opentranscribe/scribe-backend/internal/handlers"
	"github.com/opentranscribe/scribe-backend/internal/jobs"
	"github.com/opentranscribe/scribe-backend/internal/logging"
	"github.com/opentranscribe/scribe-backend/internal/middleware"
	"github.com/opentranscribe/scribe-backend/internal/rng"
	"github.com/opentranscribe/scribe-backend/internal/routes"
	"github.com/opentranscribe/scribe-backend/internal/services"
)

func main() {
	// Structured logging (JSON to stdout)
	logging.Setup()

	cfg := config.Load()

	if cfg.DBPassword == "" {
		slog.Error("DB_PASSWORD environment variable is required")
		os.Exit(1)
	}
	if cfg.JWTSecret == "" && !cfg.OverrideAPIAuth {
		slog.Error("JWT_SECRET environment variable is required")
		os.Exit(1)
	}

	// Database
	if err := database.Connect(cfg); err != nil {
		slog.Error("database connection failed", "error", err)
		os.Exit(1)
	}
	if err := database.Migrate(database.DB); err != nil {
		slog.Error("migration failed", "error", err)
		os.Exit(1)
	}

	// Database log handler (ERROR+ async batch)
	dbLogHandler := logging.NewDBHandler(database.DB)
	slog.SetDefault(slog.New(logging.NewMultiHandler(
		slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}),
		dbLogHandler,
	)))

	// Log cleanup (30-day retention)
	cleanupDone := make(chan struct{})
	logging.StartCleanup(database.DB, cleanupDone)

	// Review event bus
	bus := events.NewBus(cfg.EventQueueSize, cfg.EventWorkers, cfg.EventSendTimeout, events.LogSink{})

	// Services
	random := rng.New()
	volunteerService := services.NewVolunteerService(database.DB, random)
	checkService := services.NewCheckService(database.DB, volunteerService, bus)
	submissionService := services.NewSubmissionService(database.DB, volunteerService, checkService, bus)
	transcriptionService := services.NewTranscriptionService(database.DB, volunteerService, random)
	queueService := services.NewQueueService(database.DB, cfg, volunteerService)
	aggregationService := services.NewAggregationService(database.DB)

	// Archiver job
	archiver := jobs.NewArchiver(database.DB, bus, cfg)
	if err := archiver.Start(); err != nil {
		slog.Error("archiver start failed", "error", err)
		os.Exit(1)
	}

	// Handlers
	healthHandler := handlers.NewHealthHandler()
	submissionHandler := handlers.NewSubmissionHandler(database.DB, submissionService, queueService, aggregationService)
	transcriptionHandler := handlers.NewTranscriptionHandler(database.DB, transcriptionService)
	volunteerHandler := handlers.NewVolunteerHandler(database.DB, volunteerService, transcriptionService)
	checkHandler := handlers.NewCheckHandler(checkService)

	// Sentry error tracking
	if dsn := os.Getenv("SENTRY_DSN"); dsn != "" {
		if err := sentry.Init(sentry.ClientOptions{
			Dsn:              dsn,
			EnableTracing:    true,
			TracesSampleRate: 0.2,
			Environment:      os.Getenv("APP_ENV"),
		}); err != nil {
			slog.Error("sentry init failed", "error", err)
		} else {
			defer sentry.Flush(2 * time.Second)
		}
	}

	// Fiber app
	app := fiber.New(fiber.Config{
		BodyLimit:    4 * 1024 * 1024,
		ErrorHandler: customErrorHandler,
	})

	app.Use(sentryfiber.New(sentryfiber.Options{
		Repanic:         true,
		WaitForDelivery: false,
	}))

	// Global middleware
	app.Use(recover.New())
	app.Use(requestid.New())
	app.Use(fiberlogger.New(fiberlogger.Config{
		Format: "${time} | ${status} | ${latency} | ${ip} | ${method} | ${path}\n",
	}))
	app.Use(middleware.CORS(cfg))
	app.Use(func(c *fiber.Ctx) error {
		c.Set("X-Content-Type-Options", "nosniff")
		c.Set("X-Frame-Options", "DENY")
		return c.Next()
	})

	// Routes
	routes.Setup(app, cfg, database.DB, healthHandler, submissionHandler, transcriptionHandler, volunteerHandler, checkHandler)

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		slog.Info("server starting", "port", cfg.Port)
		if err := app.Listen(":" + cfg.Port); err != nil {
			slog.Error("server failed to start", "error", err)
			os.Exit(1)
		}
	}()

	<-quit
	slog.Info("shutting down server...")

	archiver.Stop()
	bus.Stop()
	close(cleanupDone)
	dbLogHandler.Stop()
	sentry.Flush(2 * time.Second)

	if err := app.Shutdown(); err != nil {
		slog.Error("server shutdown error", "error", err)
	}

	if sqlDB, err := database.DB.DB(); err == nil {
		if err := sqlDB.Close(); err != nil {
			slog.Error("database close error", "error", err)
		}
	}

	slog.Info("server stopped")
}

func customErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	message := "Internal server error"
	if e, ok := err.(*fiber.Error); ok {
		code = e.Code
		message = e.Message
	}

	// Only expose error details for client errors (4xx), not server errors (5xx)
	if code >= 500 {
		slog.Error("unhandled server error", "method", c.Method(), "path", c.Path(), "error", err.Error())
		message = "Internal server error"
	}

	return c.Status(code).JSON(fiber.Map{
		"error":   true,
		"message": message,
	})
}
