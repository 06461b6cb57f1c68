package router

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/noah-isme/vidya-go-api/internal/config"
	"github.com/noah-isme/vidya-go-api/internal/handler"
	"github.com/noah-isme/vidya-go-api/internal/middleware"
	"github.com/noah-isme/vidya-go-api/internal/observability"
)

// Dependencies groups router dependencies for registration.
type Dependencies struct {
	SubmissionHandler      *handler.SubmissionHandler
	QuestionHandler        *handler.QuestionHandler
	UploadHandler          *handler.UploadHandler
	LearnerProgressHandler *handler.LearnerProgressHandler
	JWTMiddleware          fiber.Handler
}

// Register wires the HTTP routes into the fiber application.
func Register(app *fiber.App, cfg config.Config, deps Dependencies) {
	// Common v1 group for health & headers
	api := app.Group("/api/v1", func(c *fiber.Ctx) error {
		c.Set("X-Application", cfg.AppName)
		return c.Next()
	})
	api.Get("/health", handler.HealthCheck(cfg))
	app.Get("/metrics", observability.MetricsHandler())

	// Use provided JWT middleware, or a no-op if nil
	jwtMiddleware := deps.JWTMiddleware
	if jwtMiddleware == nil {
		jwtMiddleware = func(c *fiber.Ctx) error { return c.Next() }
	}

	answers := app.Group("/api/v2/answers", jwtMiddleware)

	if deps.SubmissionHandler != nil {
		submissions := answers.Group("/submissions")
		deps.SubmissionHandler.Register(submissions,
			middleware.RateLimit("submit", cfg.SubmitRateLimit, time.Duration(cfg.SubmitRateWindowSeconds)*time.Second))
	}

	if deps.QuestionHandler != nil {
		questions := answers.Group("/questions")
		deps.QuestionHandler.Register(questions)
	}

	if deps.UploadHandler != nil {
		uploads := answers.Group("/uploads")
		deps.UploadHandler.Register(uploads)
	}

	if deps.LearnerProgressHandler != nil {
		learner := app.Group("/api/v2/learner", jwtMiddleware)
		deps.LearnerProgressHandler.Register(learner)
	}
}
