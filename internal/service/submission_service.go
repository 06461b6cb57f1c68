package service

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/microcosm-cc/bluemonday"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/noah-isme/vidya-go-api/internal/dto"
	"github.com/noah-isme/vidya-go-api/internal/models"
	"github.com/noah-isme/vidya-go-api/internal/repository"
	"github.com/noah-isme/vidya-go-api/pkg/ocr"
)

// ErrNoContent indicates a submission carried neither images nor text.
var ErrNoContent = errors.New("submission has no content")

// ErrQuestionNotFound indicates the referenced question does not exist.
var ErrQuestionNotFound = errors.New("question not found")

// ErrInvalidEvaluationMode indicates a manual operation on an auto question
// or an auto operation on a manual question.
var ErrInvalidEvaluationMode = errors.New("invalid evaluation mode for operation")

// ErrAlreadyEvaluated indicates the submission already holds a manual verdict.
var ErrAlreadyEvaluated = errors.New("submission already evaluated")

const systemActor = "system"

// Extractor converts answer images into text, one result per input.
type Extractor interface {
	Extract(ctx context.Context, refs []ocr.Ref) []ocr.Result
}

// ProgressInvalidator drops cached learner progress after a submission.
type ProgressInvalidator interface {
	Invalidate(ctx context.Context, learnerID uint)
}

// SubmissionServiceConfig tunes orchestration behaviour.
type SubmissionServiceConfig struct {
	// PublishThreshold is the minimum auto-evaluation score (0-100) at which
	// a submission publishes without manual review.
	PublishThreshold float64
}

// SubmissionService orchestrates the answer pipeline: attempt allocation,
// persistence, extraction, scoring and status progression.
type SubmissionService interface {
	Submit(ctx context.Context, learnerID uint, tenantID string, payload dto.SubmissionCreateRequest) (dto.SubmissionDetailResponse, error)
	EvaluateManually(ctx context.Context, submissionID uint, payload dto.ManualEvaluationRequest, actor string) (dto.SubmissionDetailResponse, error)
	Reevaluate(ctx context.Context, submissionID uint, actor string) (dto.SubmissionDetailResponse, error)
	Transition(ctx context.Context, submissionID uint, payload dto.TransitionRequest, actor string) (dto.SubmissionDetailResponse, error)
	Get(ctx context.Context, submissionID uint) (dto.SubmissionDetailResponse, error)
	List(ctx context.Context, filter dto.SubmissionListFilter) ([]dto.SubmissionResponse, error)
}

type submissionService struct {
	submissions repository.SubmissionRepository
	questions   repository.QuestionRepository
	allocator   AttemptAllocator
	machine     StatusMachine
	scorer      EvaluationScorer
	extractor   Extractor
	events      EventPublisher
	progress    ProgressInvalidator
	validator   *validator.Validate
	sanitizer   *bluemonday.Policy
	logger      zerolog.Logger
	tracer      trace.Tracer
	cfg         SubmissionServiceConfig
	now         func() time.Time
}

// NewSubmissionService constructs the orchestrator. The extractor, events and
// progress collaborators may be nil; the pipeline degrades without them.
func NewSubmissionService(
	submissions repository.SubmissionRepository,
	questions repository.QuestionRepository,
	allocator AttemptAllocator,
	machine StatusMachine,
	scorer EvaluationScorer,
	extractor Extractor,
	events EventPublisher,
	progress ProgressInvalidator,
	validate *validator.Validate,
	logger zerolog.Logger,
	cfg SubmissionServiceConfig,
) SubmissionService {
	if cfg.PublishThreshold <= 0 {
		cfg.PublishThreshold = 40
	}

	return &submissionService{
		submissions: submissions,
		questions:   questions,
		allocator:   allocator,
		machine:     machine,
		scorer:      scorer,
		extractor:   extractor,
		events:      events,
		progress:    progress,
		validator:   validate,
		sanitizer:   bluemonday.StrictPolicy(),
		logger:      logger.With().Str("component", "submission_service").Logger(),
		tracer:      otel.Tracer("github.com/noah-isme/vidya-go-api/internal/service/submission"),
		cfg:         cfg,
		now:         time.Now,
	}
}

func (s *submissionService) Submit(ctx context.Context, learnerID uint, tenantID string, payload dto.SubmissionCreateRequest) (dto.SubmissionDetailResponse, error) {
	ctx, span := s.tracer.Start(ctx, "submission.submit", trace.WithAttributes(
		attribute.Int64("submission.learner_id", int64(learnerID)),
		attribute.Int64("submission.question_id", int64(payload.QuestionID)),
	))
	defer span.End()

	if err := s.validator.Struct(payload); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "validation_failed")
		return dto.SubmissionDetailResponse{}, err
	}

	text := strings.TrimSpace(s.sanitizer.Sanitize(payload.Text))
	if len(payload.Images) == 0 && text == "" {
		return dto.SubmissionDetailResponse{}, ErrNoContent
	}

	question, err := s.questions.GetByID(ctx, payload.QuestionID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.SubmissionDetailResponse{}, ErrQuestionNotFound
		}
		span.RecordError(err)
		return dto.SubmissionDetailResponse{}, err
	}

	refs := make([]models.ImageRef, 0, len(payload.Images))
	for _, image := range payload.Images {
		refs = append(refs, models.ImageRef{URL: image.URL, Key: image.Key})
	}
	encodedRefs, err := json.Marshal(refs)
	if err != nil {
		return dto.SubmissionDetailResponse{}, err
	}

	submission := models.Submission{
		LearnerID:        learnerID,
		QuestionID:       question.ID,
		TenantID:         tenantID,
		SetID:            payload.SetID,
		AnswerText:       text,
		ImageRefs:        datatypes.JSON(encodedRefs),
		MainStatus:       models.MainStatusPending,
		ReviewStatus:     models.ReviewStatusPending,
		EvaluationStatus: models.EvaluationStatusNone,
		PopularityStatus: models.PopularityStatusNotPopular,
		Mode:             question.Mode,
		SubmittedAt:      s.now(),
	}

	if err := s.allocator.Allocate(ctx, &submission); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "allocation_failed")
		return dto.SubmissionDetailResponse{}, err
	}
	span.SetAttributes(attribute.Int("submission.attempt_number", submission.AttemptNumber))

	s.publish(ctx, EventSubmissionReceived, submission)

	if question.IsAuto() {
		s.runAutoEvaluation(ctx, &submission, question, refs)
	}

	if s.progress != nil {
		s.progress.Invalidate(ctx, learnerID)
	}

	return s.detail(ctx, submission.ID)
}

func (s *submissionService) EvaluateManually(ctx context.Context, submissionID uint, payload dto.ManualEvaluationRequest, actor string) (dto.SubmissionDetailResponse, error) {
	ctx, span := s.tracer.Start(ctx, "submission.evaluate_manually", trace.WithAttributes(
		attribute.Int64("submission.id", int64(submissionID)),
	))
	defer span.End()

	if err := s.validator.Struct(payload); err != nil {
		return dto.SubmissionDetailResponse{}, err
	}

	submission, err := s.submissions.GetByID(ctx, submissionID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.SubmissionDetailResponse{}, ErrSubmissionNotFound
		}
		return dto.SubmissionDetailResponse{}, err
	}

	if submission.Mode != models.EvaluationModeManual {
		return dto.SubmissionDetailResponse{}, ErrInvalidEvaluationMode
	}
	if submission.EvaluationStatus == models.EvaluationStatusManual {
		return dto.SubmissionDetailResponse{}, ErrAlreadyEvaluated
	}

	verdict := ManualEvaluation{
		Score:       payload.Score,
		Marks:       payload.Marks,
		Strengths:   payload.Strengths,
		Weaknesses:  payload.Weaknesses,
		Suggestions: payload.Suggestions,
		Feedback:    strings.TrimSpace(s.sanitizer.Sanitize(payload.Feedback)),
	}
	if err := s.scorer.ValidateManual(submission.Question, verdict); err != nil {
		span.RecordError(err)
		return dto.SubmissionDetailResponse{}, err
	}

	if err := s.persistEvaluation(ctx, &submission, EvaluationOutcome{
		Score:       verdict.Score,
		Marks:       verdict.Marks,
		Strengths:   verdict.Strengths,
		Weaknesses:  verdict.Weaknesses,
		Suggestions: verdict.Suggestions,
		Feedback:    verdict.Feedback,
	}, nil); err != nil {
		return dto.SubmissionDetailResponse{}, err
	}

	if _, err := s.machine.Transition(ctx, submission.ID, models.AxisEvaluation, models.EvaluationStatusManual, "manual evaluation recorded", actor); err != nil {
		return dto.SubmissionDetailResponse{}, err
	}

	if payload.Publish {
		if _, err := s.machine.Transition(ctx, submission.ID, models.AxisMain, models.MainStatusPublished, "published by evaluator", actor); err != nil {
			return dto.SubmissionDetailResponse{}, err
		}
		s.publish(ctx, EventSubmissionPublished, submission)
	}

	s.publish(ctx, EventSubmissionEvaluated, submission)

	return s.detail(ctx, submission.ID)
}

func (s *submissionService) Reevaluate(ctx context.Context, submissionID uint, actor string) (dto.SubmissionDetailResponse, error) {
	ctx, span := s.tracer.Start(ctx, "submission.reevaluate", trace.WithAttributes(
		attribute.Int64("submission.id", int64(submissionID)),
	))
	defer span.End()

	submission, err := s.submissions.GetByID(ctx, submissionID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.SubmissionDetailResponse{}, ErrSubmissionNotFound
		}
		return dto.SubmissionDetailResponse{}, err
	}

	if submission.Mode != models.EvaluationModeAuto {
		return dto.SubmissionDetailResponse{}, ErrInvalidEvaluationMode
	}
	if submission.EvaluationStatus == models.EvaluationStatusManual {
		return dto.SubmissionDetailResponse{}, ErrAlreadyEvaluated
	}

	var refs []models.ImageRef
	if len(submission.ImageRefs) > 0 {
		if err := json.Unmarshal(submission.ImageRefs, &refs); err != nil {
			s.logger.Warn().Err(err).Uint("submission_id", submission.ID).Msg("invalid stored image refs")
		}
	}

	s.logger.Info().Uint("submission_id", submission.ID).Str("actor", actor).Msg("re-running automatic evaluation")
	s.runAutoEvaluation(ctx, &submission, submission.Question, refs)

	return s.detail(ctx, submission.ID)
}

func (s *submissionService) Transition(ctx context.Context, submissionID uint, payload dto.TransitionRequest, actor string) (dto.SubmissionDetailResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.SubmissionDetailResponse{}, err
	}

	if _, err := s.machine.Transition(ctx, submissionID, payload.Axis, payload.Value, payload.Reason, actor); err != nil {
		return dto.SubmissionDetailResponse{}, err
	}

	return s.detail(ctx, submissionID)
}

func (s *submissionService) Get(ctx context.Context, submissionID uint) (dto.SubmissionDetailResponse, error) {
	return s.detail(ctx, submissionID)
}

func (s *submissionService) List(ctx context.Context, filter dto.SubmissionListFilter) ([]dto.SubmissionResponse, error) {
	if err := s.validator.Struct(filter); err != nil {
		return nil, err
	}

	submissions, err := s.submissions.List(ctx, repository.SubmissionFilter{
		LearnerID:        filter.LearnerID,
		QuestionID:       filter.QuestionID,
		SetID:            filter.SetID,
		MainStatus:       filter.MainStatus,
		ReviewStatus:     filter.ReviewStatus,
		EvaluationStatus: filter.EvaluationStatus,
		PopularityStatus: filter.PopularityStatus,
	})
	if err != nil {
		return nil, err
	}

	return dto.NewSubmissionResponseSlice(submissions), nil
}

// runAutoEvaluation drives extraction and scoring for an accepted submission.
// Downstream failures never bubble up: they degrade to sentinel texts, a
// fallback evaluation, or the evaluation_failed status. The submission itself
// already succeeded.
func (s *submissionService) runAutoEvaluation(ctx context.Context, submission *models.Submission, question models.Question, refs []models.ImageRef) {
	texts := make([]string, 0, len(refs)+1)
	if submission.AnswerText != "" {
		texts = append(texts, submission.AnswerText)
	}

	var extracted []string
	if len(refs) > 0 && s.extractor != nil {
		ocrRefs := make([]ocr.Ref, 0, len(refs))
		for _, ref := range refs {
			ocrRefs = append(ocrRefs, ocr.Ref{URL: ref.URL, Key: ref.Key})
		}

		results := s.extractor.Extract(ctx, ocrRefs)
		extracted = make([]string, 0, len(results))
		for _, result := range results {
			extracted = append(extracted, result.Text)
			if !result.Failed {
				texts = append(texts, result.Text)
			}
		}
	}

	outcome := s.scorer.ScoreAuto(ctx, question, texts)

	if err := s.persistEvaluation(ctx, submission, outcome, extracted); err != nil {
		s.logger.Error().Err(err).Uint("submission_id", submission.ID).Msg("failed to persist evaluation")
		s.markEvaluationFailed(ctx, submission.ID, "failed to persist evaluation")
		return
	}

	if outcome.Fallback {
		// terminal but retriable: a re-evaluation may run extraction and
		// scoring again from this state
		s.markEvaluationFailed(ctx, submission.ID, "scoring degraded to fallback")
		s.publish(ctx, EventSubmissionEvaluated, *submission)
		return
	}

	if _, err := s.machine.Transition(ctx, submission.ID, models.AxisEvaluation, models.EvaluationStatusAuto, "automatic evaluation completed", systemActor); err != nil {
		s.logger.Error().Err(err).Uint("submission_id", submission.ID).Msg("failed to record evaluation status")
		return
	}

	s.autoProgress(ctx, submission.ID, outcome)
	s.publish(ctx, EventSubmissionEvaluated, *submission)
}

// autoProgress applies the publish rule after a successful automatic
// evaluation: two recorded transitions, not one.
func (s *submissionService) autoProgress(ctx context.Context, submissionID uint, outcome EvaluationOutcome) {
	if outcome.Score >= s.cfg.PublishThreshold {
		if _, err := s.machine.Transition(ctx, submissionID, models.AxisMain, models.MainStatusPublished, "auto-published after evaluation", systemActor); err != nil {
			s.logger.Error().Err(err).Uint("submission_id", submissionID).Msg("auto publish failed")
			return
		}
		if _, err := s.machine.Transition(ctx, submissionID, models.AxisReview, models.ReviewStatusCompleted, "review completed by auto evaluation", systemActor); err != nil {
			s.logger.Error().Err(err).Uint("submission_id", submissionID).Msg("auto review completion failed")
		}
		return
	}

	if _, err := s.machine.Transition(ctx, submissionID, models.AxisMain, models.MainStatusNotPublished, "evaluation below publish threshold", systemActor); err != nil {
		s.logger.Error().Err(err).Uint("submission_id", submissionID).Msg("below-threshold transition failed")
	}
}

func (s *submissionService) persistEvaluation(ctx context.Context, submission *models.Submission, outcome EvaluationOutcome, extracted []string) error {
	submission.Score = &outcome.Score
	submission.Marks = &outcome.Marks
	submission.Feedback = outcome.Feedback
	submission.Strengths = encodeStringList(outcome.Strengths)
	submission.Weaknesses = encodeStringList(outcome.Weaknesses)
	submission.Suggestions = encodeStringList(outcome.Suggestions)
	if extracted != nil {
		submission.ExtractedTexts = encodeStringList(extracted)
	}

	return s.submissions.SaveEvaluation(ctx, submission)
}

func (s *submissionService) markEvaluationFailed(ctx context.Context, submissionID uint, reason string) {
	if _, err := s.machine.Transition(ctx, submissionID, models.AxisEvaluation, models.EvaluationStatusFailed, reason, systemActor); err != nil {
		s.logger.Error().Err(err).Uint("submission_id", submissionID).Msg("failed to record evaluation failure")
	}
}

func (s *submissionService) publish(ctx context.Context, eventType string, submission models.Submission) {
	if s.events == nil {
		return
	}
	s.events.Publish(ctx, SubmissionEvent{
		Type:          eventType,
		SubmissionID:  submission.ID,
		LearnerID:     submission.LearnerID,
		QuestionID:    submission.QuestionID,
		AttemptNumber: submission.AttemptNumber,
		Status:        submission.EvaluationStatus,
	})
}

func (s *submissionService) detail(ctx context.Context, submissionID uint) (dto.SubmissionDetailResponse, error) {
	submission, err := s.submissions.GetByID(ctx, submissionID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.SubmissionDetailResponse{}, ErrSubmissionNotFound
		}
		return dto.SubmissionDetailResponse{}, err
	}

	return dto.NewSubmissionDetailResponse(submission), nil
}

func encodeStringList(list []string) datatypes.JSON {
	if list == nil {
		list = []string{}
	}
	encoded, err := json.Marshal(list)
	if err != nil {
		return datatypes.JSON("[]")
	}
	return datatypes.JSON(encoded)
}
