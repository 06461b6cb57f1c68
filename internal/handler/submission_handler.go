package handler

import (
	"errors"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/vidya-go-api/internal/dto"
	"github.com/noah-isme/vidya-go-api/internal/middleware"
	"github.com/noah-isme/vidya-go-api/internal/service"
	"github.com/noah-isme/vidya-go-api/internal/utils"
)

// SubmissionHandler exposes the answer submission pipeline over HTTP.
type SubmissionHandler struct {
	service service.SubmissionService
	logger  zerolog.Logger
}

// NewSubmissionHandler builds a submission handler instance.
func NewSubmissionHandler(service service.SubmissionService, logger zerolog.Logger) *SubmissionHandler {
	return &SubmissionHandler{
		service: service,
		logger:  logger.With().Str("component", "submission_handler").Logger(),
	}
}

// Register attaches the routes to the provided router group. Guards passed
// in are applied to the submit route only, ahead of the handler itself.
func (h *SubmissionHandler) Register(router fiber.Router, submitGuards ...fiber.Handler) {
	createChain := append(append([]fiber.Handler{}, submitGuards...), h.create)
	router.Post("", createChain...)
	router.Get("", h.list)
	router.Get("/:id", h.get)
	router.Post("/:id/evaluation", middleware.WithAuth(h.evaluate, middleware.AuthOptions{Role: middleware.AuthRoleEvaluator}))
	router.Post("/:id/reevaluate", middleware.WithAuth(h.reevaluate, middleware.AuthOptions{Role: middleware.AuthRoleEvaluator}))
	router.Post("/:id/transition", middleware.WithAuth(h.transition, middleware.AuthOptions{Role: middleware.AuthRoleAdmin}))
}

func (h *SubmissionHandler) create(c *fiber.Ctx) error {
	var payload dto.SubmissionCreateRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	learnerID := userIDFromContext(c)
	if learnerID == 0 {
		return utils.SendError(c, fiber.StatusUnauthorized, "authentication required")
	}

	submission, err := h.service.Submit(c.Context(), learnerID, tenantFromContext(c), payload)
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "submission accepted", submission)
}

func (h *SubmissionHandler) list(c *fiber.Ctx) error {
	filter := dto.SubmissionListFilter{
		LearnerID:        parseQueryUint(c, "learner_id"),
		QuestionID:       parseQueryUint(c, "question_id"),
		SetID:            parseQueryUint(c, "set_id"),
		MainStatus:       queryString(c, "main_status"),
		ReviewStatus:     queryString(c, "review_status"),
		EvaluationStatus: queryString(c, "evaluation_status"),
		PopularityStatus: queryString(c, "popularity_status"),
	}

	submissions, err := h.service.List(c.Context(), filter)
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "submissions retrieved", submissions)
}

func (h *SubmissionHandler) get(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid submission id")
	}

	submission, err := h.service.Get(c.Context(), id)
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "submission retrieved", submission)
}

func (h *SubmissionHandler) evaluate(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid submission id")
	}

	var payload dto.ManualEvaluationRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	submission, err := h.service.EvaluateManually(c.Context(), id, payload, actorFromContext(c))
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "evaluation recorded", submission)
}

func (h *SubmissionHandler) reevaluate(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid submission id")
	}

	submission, err := h.service.Reevaluate(c.Context(), id, actorFromContext(c))
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "submission re-evaluated", submission)
}

func (h *SubmissionHandler) transition(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid submission id")
	}

	var payload dto.TransitionRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	submission, err := h.service.Transition(c.Context(), id, payload, actorFromContext(c))
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "status updated", submission)
}

func (h *SubmissionHandler) handleError(c *fiber.Ctx, err error) error {
	var validationErrors validator.ValidationErrors
	switch {
	case errors.Is(err, service.ErrAttemptLimitExceeded):
		return utils.SendErrorCode(c, fiber.StatusConflict, "LIMIT_EXCEEDED", "attempt limit reached for this question")
	case errors.Is(err, service.ErrNoContent):
		return utils.SendErrorCode(c, fiber.StatusBadRequest, "NO_CONTENT", "submission requires images or text")
	case errors.Is(err, service.ErrQuestionNotFound):
		return utils.SendErrorCode(c, fiber.StatusNotFound, "QUESTION_NOT_FOUND", "question not found")
	case errors.Is(err, service.ErrSubmissionNotFound):
		return utils.SendErrorCode(c, fiber.StatusNotFound, "NOT_FOUND", "submission not found")
	case errors.Is(err, service.ErrInvalidEvaluationMode):
		return utils.SendErrorCode(c, fiber.StatusConflict, "INVALID_EVALUATION_MODE", "operation not allowed for this evaluation mode")
	case errors.Is(err, service.ErrAlreadyEvaluated):
		return utils.SendErrorCode(c, fiber.StatusConflict, "ALREADY_EVALUATED", "submission already holds a manual verdict")
	case errors.Is(err, service.ErrAllocationContention):
		return utils.SendError(c, fiber.StatusServiceUnavailable, "submission could not be allocated, retry shortly")
	case errors.Is(err, service.ErrInvalidAxis), errors.Is(err, service.ErrInvalidAxisValue):
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	case errors.Is(err, service.ErrScoreOutOfRange),
		errors.Is(err, service.ErrMarksOutOfRange),
		errors.Is(err, service.ErrTooManyListItems):
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	case errors.As(err, &validationErrors):
		return utils.SendError(c, fiber.StatusBadRequest, validationErrors.Error())
	default:
		h.logger.Error().Err(err).Msg("internal server error")
		return utils.SendError(c, fiber.StatusInternalServerError, "internal server error")
	}
}
