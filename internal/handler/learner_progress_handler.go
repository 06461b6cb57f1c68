package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/vidya-go-api/internal/service"
	"github.com/noah-isme/vidya-go-api/internal/utils"
)

// LearnerProgressHandler serves per-learner attempt summaries.
type LearnerProgressHandler struct {
	service service.LearnerProgressService
	logger  zerolog.Logger
}

// NewLearnerProgressHandler builds a progress handler instance.
func NewLearnerProgressHandler(service service.LearnerProgressService, logger zerolog.Logger) *LearnerProgressHandler {
	return &LearnerProgressHandler{
		service: service,
		logger:  logger.With().Str("component", "learner_progress_handler").Logger(),
	}
}

// Register attaches the routes to the provided router group.
func (h *LearnerProgressHandler) Register(router fiber.Router) {
	router.Get("/progress", h.progress)
}

func (h *LearnerProgressHandler) progress(c *fiber.Ctx) error {
	learnerID := userIDFromContext(c)
	if learnerID == 0 {
		return utils.SendError(c, fiber.StatusUnauthorized, "authentication required")
	}

	progress, err := h.service.GetProgress(c.Context(), learnerID)
	if err != nil {
		h.logger.Error().Err(err).Uint("learner_id", learnerID).Msg("failed to build progress")
		return utils.SendError(c, fiber.StatusInternalServerError, "internal server error")
	}

	return utils.SendSuccess(c, "progress retrieved", progress)
}
