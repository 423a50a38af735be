package routes

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/opentranscribe/scribe-backend/internal/config"
	"github.com/opentranscribe/scribe-backend/internal/handlers"
	"github.com/opentranscribe/scribe-backend/internal/middleware"
	"gorm.io/gorm"
)

func Setup(
	app *fiber.App,
	cfg *config.Config,
	db *gorm.DB,
	healthHandler *handlers.HealthHandler,
	submissionHandler *handlers.SubmissionHandler,
	transcriptionHandler *handlers.TranscriptionHandler,
	volunteerHandler *handlers.VolunteerHandler,
	checkHandler *handlers.CheckHandler,
) {
	// General rate limiter: 300 req/min per IP (ingest bots are chatty)
	app.Use(limiter.New(limiter.Config{
		Max:               300,
		Expiration:        1 * time.Minute,
		LimiterMiddleware: limiter.SlidingWindow{},
		KeyGenerator:      func(c *fiber.Ctx) string { return c.IP() },
	}))

	apiKey := middleware.APIKeyRequired(db, cfg)
	modOnly := middleware.JWTProtected(cfg)

	app.Get("/health", healthHandler.Check)

	// Submission resource. Static segments registered before :id routes.
	sub := app.Group("/submission")
	sub.Get("/", apiKey, submissionHandler.List)
	sub.Post("/", apiKey, submissionHandler.Create)
	sub.Get("/expired", apiKey, submissionHandler.Expired)
	sub.Get("/in_progress", apiKey, submissionHandler.InProgress)
	sub.Get("/unarchived", apiKey, submissionHandler.Unarchived)
	sub.Get("/get_transcribot_queue", apiKey, submissionHandler.TranscribotQueue)
	sub.Get("/rate", apiKey, submissionHandler.Rate)
	sub.Get("/heatmap", apiKey, submissionHandler.Heatmap)
	sub.Get("/leaderboard", apiKey, submissionHandler.Leaderboard)
	sub.Get("/subreddits", apiKey, submissionHandler.Subreddits)
	sub.Post("/yeet", modOnly, submissionHandler.Yeet)
	sub.Post("/bulkcheck", apiKey, submissionHandler.BulkCheck)
	sub.Get("/:id", apiKey, submissionHandler.Get)
	sub.Patch("/:id/claim", apiKey, submissionHandler.Claim)
	sub.Patch("/:id/unclaim", apiKey, submissionHandler.Unclaim)
	sub.Patch("/:id/done", apiKey, submissionHandler.Done)
	sub.Patch("/:id/approve", modOnly, submissionHandler.Approve)
	sub.Patch("/:id/remove", modOnly, submissionHandler.Remove)
	sub.Patch("/:id/nsfw", apiKey, submissionHandler.NSFW)
	sub.Patch("/:id/report", apiKey, submissionHandler.Report)

	// Transcription resource
	tr := app.Group("/transcription")
	tr.Get("/", apiKey, transcriptionHandler.List)
	tr.Post("/", apiKey, transcriptionHandler.Create)
	tr.Get("/search", apiKey, transcriptionHandler.Search)
	tr.Get("/review_random", modOnly, transcriptionHandler.ReviewRandom)
	tr.Get("/:id", apiKey, transcriptionHandler.Get)

	// Volunteer resource
	vol := app.Group("/volunteer")
	vol.Get("/", apiKey, volunteerHandler.List)
	vol.Post("/", apiKey, volunteerHandler.Create)
	vol.Get("/summary", apiKey, volunteerHandler.Summary)
	vol.Post("/accept_coc", apiKey, volunteerHandler.AcceptCoC)
	vol.Patch("/:id/gamma_plusone", modOnly, volunteerHandler.GammaPlusOne)

	// Transcription checks, driven by the review collaborator
	checks := app.Group("/checks", modOnly)
	checks.Get("/:id", checkHandler.Get)
	checks.Patch("/:id/claim", checkHandler.Claim)
	checks.Patch("/:id/unclaim", checkHandler.Unclaim)
	checks.Patch("/:id/:action", checkHandler.SetStatus)
}
