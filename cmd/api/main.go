package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/noah-isme/vidya-go-api/internal/config"
	"github.com/noah-isme/vidya-go-api/internal/database"
	"github.com/noah-isme/vidya-go-api/internal/handler"
	"github.com/noah-isme/vidya-go-api/internal/middleware"
	"github.com/noah-isme/vidya-go-api/internal/models"
	"github.com/noah-isme/vidya-go-api/internal/repository"
	"github.com/noah-isme/vidya-go-api/internal/router"
	"github.com/noah-isme/vidya-go-api/internal/service"
	"github.com/noah-isme/vidya-go-api/pkg/ai"
	cloud "github.com/noah-isme/vidya-go-api/pkg/cloudinary"
	"github.com/noah-isme/vidya-go-api/pkg/ocr"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()

	db, err := database.ConnectPostgres(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}

	if err := db.AutoMigrate(
		&models.Question{},
		&models.Submission{},
		&models.SubmissionStatusHistory{},
		&models.AnswerImage{},
	); err != nil {
		log.Fatalf("failed to migrate database: %v", err)
	}

	var redisClient *redis.Client
	if cfg.RedisURL != "" {
		redisClient, err = database.ConnectRedis(cfg.RedisURL)
		if err != nil {
			log.Fatalf("failed to connect to redis: %v", err)
		}
		defer redisClient.Close()
	}

	var natsConn *nats.Conn
	if cfg.NATSURL != "" {
		natsConn, err = nats.Connect(cfg.NATSURL)
		if err != nil {
			logger.Warn().Err(err).Msg("nats unavailable, lifecycle events disabled")
		} else {
			defer natsConn.Drain()
		}
	}

	uploader, err := cloud.New(cloud.Config{
		CloudName: cfg.CloudinaryCloudName,
		APIKey:    cfg.CloudinaryAPIKey,
		APISecret: cfg.CloudinaryAPISecret,
		Folder:    cfg.CloudinaryUploadFolder,
	}, logger)
	if err != nil {
		log.Fatalf("failed to create cloudinary client: %v", err)
	}

	validate := validator.New(validator.WithRequiredStructEnabled())

	questionRepo := repository.NewQuestionRepository(db)
	submissionRepo := repository.NewSubmissionRepository(db)
	uploadRepo := repository.NewUploadRepository(db)

	var backend ai.Backend
	if cfg.OpenAIAPIKey != "" {
		openaiBackend, err := ai.NewOpenAIBackend(ai.OpenAIConfig{
			APIKey:  cfg.OpenAIAPIKey,
			Model:   cfg.ScoringModel,
			Timeout: cfg.ScoringTimeout,
			Logger:  logger,
		})
		if err != nil {
			log.Fatalf("failed to create scoring backend: %v", err)
		}
		backend = openaiBackend
	} else {
		logger.Warn().Msg("no scoring backend configured, auto evaluations degrade to fallback")
	}

	extractor := buildExtractor(cfg, logger)

	allocator := service.NewAttemptAllocator(submissionRepo, service.AttemptAllocatorConfig{
		MaxAttempts: cfg.MaxAttempts,
		Retries:     cfg.AllocationRetries,
	}, logger)
	machine := service.NewStatusMachine(submissionRepo, logger)
	scorer := service.NewEvaluationScorer(backend, service.EvaluationScorerConfig{
		MaxListItems: cfg.MaxListItems,
	}, logger)
	events := service.NewEventPublisher(natsConn, redisClient, cfg.EventChannelBase, logger)
	progressService := service.NewLearnerProgressService(submissionRepo, redisClient, cfg.ProgressCacheTTL, cfg.MaxAttempts, logger)

	submissionService := service.NewSubmissionService(
		submissionRepo,
		questionRepo,
		allocator,
		machine,
		scorer,
		extractor,
		events,
		progressService,
		validate,
		logger,
		service.SubmissionServiceConfig{PublishThreshold: cfg.PublishThreshold},
	)
	questionService := service.NewQuestionService(questionRepo, validate, logger)
	uploadService := service.NewUploadService(uploader, uploadRepo, cfg.UploadMaxSizeMB, logger)

	app := fiber.New(fiber.Config{
		AppName:      cfg.AppName,
		ServerHeader: cfg.AppName,
	})

	middleware.Register(app, middleware.Config{Logger: &logger})
	router.Register(app, cfg, router.Dependencies{
		SubmissionHandler:      handler.NewSubmissionHandler(submissionService, logger),
		QuestionHandler:        handler.NewQuestionHandler(questionService, logger),
		UploadHandler:          handler.NewUploadHandler(uploadService, logger),
		LearnerProgressHandler: handler.NewLearnerProgressHandler(progressService, logger),
		JWTMiddleware:          middleware.JWTProtected(cfg.JWTSecret),
	})

	go func() {
		if err := app.Listen(cfg.HTTPAddress()); err != nil {
			log.Fatalf("failed to start server: %v", err)
		}
	}()

	waitForShutdown(app)
}

// buildExtractor assembles the ordered OCR fallback chain from configuration.
// A nil return disables extraction; image-only submissions then score on
// placeholder texts.
func buildExtractor(cfg config.Config, logger zerolog.Logger) service.Extractor {
	providers := make([]ocr.Provider, 0, len(cfg.ExtractionProviders))
	for _, name := range cfg.ExtractionProviders {
		switch name {
		case "openai-vision":
			if cfg.OpenAIAPIKey == "" {
				continue
			}
			provider, err := ocr.NewVisionProvider(ocr.VisionConfig{
				APIKey:  cfg.OpenAIAPIKey,
				Model:   cfg.VisionModel,
				Timeout: cfg.ExtractionTimeout,
				Logger:  logger,
			})
			if err != nil {
				logger.Warn().Err(err).Msg("vision provider unavailable")
				continue
			}
			providers = append(providers, provider)
		case "remote-ocr":
			if cfg.RemoteOCRURL == "" {
				continue
			}
			provider, err := ocr.NewRemoteProvider(ocr.RemoteConfig{
				Endpoint: cfg.RemoteOCRURL,
				APIKey:   cfg.RemoteOCRToken,
				Timeout:  cfg.ExtractionTimeout,
				Logger:   logger,
			})
			if err != nil {
				logger.Warn().Err(err).Msg("remote ocr provider unavailable")
				continue
			}
			providers = append(providers, provider)
		default:
			logger.Warn().Str("provider", name).Msg("unknown extraction provider, skipping")
		}
	}

	return ocr.NewGateway(providers, ocr.GatewayConfig{
		Concurrency: cfg.ExtractionConcurrency,
		Logger:      logger,
	})
}

func waitForShutdown(app *fiber.App) {
	shutdownCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-shutdownCtx.Done()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(ctx); err != nil {
		log.Printf("graceful shutdown failed: %v", err)
	}

	log.Println("server stopped")
}
