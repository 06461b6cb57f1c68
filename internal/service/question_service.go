package service

import (
	"context"
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/microcosm-cc/bluemonday"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/noah-isme/vidya-go-api/internal/dto"
	"github.com/noah-isme/vidya-go-api/internal/models"
	"github.com/noah-isme/vidya-go-api/internal/repository"
)

// QuestionService manages the question catalogue the pipeline scores against.
type QuestionService interface {
	Create(ctx context.Context, payload dto.QuestionCreateRequest) (dto.QuestionResponse, error)
	Get(ctx context.Context, id uint) (dto.QuestionResponse, error)
	UpdateGuideline(ctx context.Context, id uint, payload dto.QuestionGuidelineUpdateRequest) (dto.QuestionResponse, error)
}

type questionService struct {
	repo      repository.QuestionRepository
	validator *validator.Validate
	sanitizer *bluemonday.Policy
	logger    zerolog.Logger
}

// NewQuestionService builds the question service.
func NewQuestionService(repo repository.QuestionRepository, validate *validator.Validate, logger zerolog.Logger) QuestionService {
	return &questionService{
		repo:      repo,
		validator: validate,
		sanitizer: bluemonday.StrictPolicy(),
		logger:    logger.With().Str("component", "question_service").Logger(),
	}
}

func (s *questionService) Create(ctx context.Context, payload dto.QuestionCreateRequest) (dto.QuestionResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.QuestionResponse{}, err
	}

	question := models.Question{
		Prompt:    strings.TrimSpace(s.sanitizer.Sanitize(payload.Prompt)),
		Guideline: strings.TrimSpace(s.sanitizer.Sanitize(payload.Guideline)),
		MaxScore:  payload.MaxScore,
		Mode:      payload.Mode,
		SetID:     payload.SetID,
	}
	if question.Prompt == "" {
		return dto.QuestionResponse{}, ErrNoContent
	}

	if err := s.repo.Create(ctx, &question); err != nil {
		return dto.QuestionResponse{}, err
	}

	s.logger.Info().Uint("question_id", question.ID).Str("mode", question.Mode).Msg("question created")
	return dto.NewQuestionResponse(question), nil
}

func (s *questionService) Get(ctx context.Context, id uint) (dto.QuestionResponse, error) {
	question, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.QuestionResponse{}, ErrQuestionNotFound
		}
		return dto.QuestionResponse{}, err
	}

	return dto.NewQuestionResponse(question), nil
}

func (s *questionService) UpdateGuideline(ctx context.Context, id uint, payload dto.QuestionGuidelineUpdateRequest) (dto.QuestionResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.QuestionResponse{}, err
	}

	guideline := strings.TrimSpace(s.sanitizer.Sanitize(payload.Guideline))
	question, err := s.repo.UpdateGuideline(ctx, id, guideline)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.QuestionResponse{}, ErrQuestionNotFound
		}
		return dto.QuestionResponse{}, err
	}

	return dto.NewQuestionResponse(question), nil
}
