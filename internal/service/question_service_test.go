package service

import (
	"context"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/vidya-go-api/internal/dto"
	"github.com/noah-isme/vidya-go-api/internal/models"
)

func newQuestionService(repo *stubQuestionRepo) QuestionService {
	return NewQuestionService(repo, validator.New(validator.WithRequiredStructEnabled()), zerolog.Nop())
}

func TestQuestionServiceCreateSanitizes(t *testing.T) {
	repo := &stubQuestionRepo{questions: map[uint]models.Question{}}
	svc := newQuestionService(repo)

	created, err := svc.Create(context.Background(), dto.QuestionCreateRequest{
		Prompt:    "Explain <b>osmosis</b>.",
		Guideline: "Award marks for membrane transport detail.",
		MaxScore:  15,
		Mode:      models.EvaluationModeAuto,
	})
	require.NoError(t, err)
	require.Equal(t, "Explain osmosis.", created.Prompt)
	require.InDelta(t, 15, created.MaxScore, 0.001)
}

func TestQuestionServiceCreateRejectsMarkupOnlyPrompt(t *testing.T) {
	repo := &stubQuestionRepo{questions: map[uint]models.Question{}}
	svc := newQuestionService(repo)

	_, err := svc.Create(context.Background(), dto.QuestionCreateRequest{
		Prompt: "<img src=x>",
		Mode:   models.EvaluationModeManual,
	})
	require.ErrorIs(t, err, ErrNoContent)
}

func TestQuestionServiceCreateRejectsUnknownMode(t *testing.T) {
	repo := &stubQuestionRepo{questions: map[uint]models.Question{}}
	svc := newQuestionService(repo)

	_, err := svc.Create(context.Background(), dto.QuestionCreateRequest{Prompt: "Explain osmosis.", Mode: "hybrid"})
	require.Error(t, err)
}

func TestQuestionServiceGetMissing(t *testing.T) {
	repo := &stubQuestionRepo{questions: map[uint]models.Question{}}
	svc := newQuestionService(repo)

	_, err := svc.Get(context.Background(), 7)
	require.ErrorIs(t, err, ErrQuestionNotFound)
}

func TestQuestionServiceUpdateGuideline(t *testing.T) {
	repo := &stubQuestionRepo{questions: map[uint]models.Question{1: autoQuestion(10)}}
	svc := newQuestionService(repo)

	updated, err := svc.UpdateGuideline(context.Background(), 1, dto.QuestionGuidelineUpdateRequest{
		Guideline: "Focus on the light-dependent reactions.",
	})
	require.NoError(t, err)
	require.Equal(t, "Focus on the light-dependent reactions.", updated.Guideline)

	_, err = svc.UpdateGuideline(context.Background(), 99, dto.QuestionGuidelineUpdateRequest{Guideline: "anything at all"})
	require.ErrorIs(t, err, ErrQuestionNotFound)
}
