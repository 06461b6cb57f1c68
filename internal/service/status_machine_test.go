package service

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/vidya-go-api/internal/models"
)

func TestStatusMachineRejectsUnknownAxis(t *testing.T) {
	machine := NewStatusMachine(newMemorySubmissionRepo(), zerolog.Nop())

	_, err := machine.Transition(context.Background(), 1, "grade", models.MainStatusPublished, "", systemActor)
	require.ErrorIs(t, err, ErrInvalidAxis)
}

func TestStatusMachineRejectsValueOutsideAxisVocabulary(t *testing.T) {
	machine := NewStatusMachine(newMemorySubmissionRepo(), zerolog.Nop())

	_, err := machine.Transition(context.Background(), 1, models.AxisMain, "review_completed", "", systemActor)
	require.ErrorIs(t, err, ErrInvalidAxisValue)
}

func TestStatusMachineMissingSubmission(t *testing.T) {
	machine := NewStatusMachine(newMemorySubmissionRepo(), zerolog.Nop())

	_, err := machine.Transition(context.Background(), 404, models.AxisMain, models.MainStatusPublished, "", systemActor)
	require.ErrorIs(t, err, ErrSubmissionNotFound)
}

func TestStatusMachineRecordsOneHistoryEntryPerCall(t *testing.T) {
	repo := newMemorySubmissionRepo()
	machine := NewStatusMachine(repo, zerolog.Nop())
	ctx := context.Background()

	submission := pendingSubmission(1, 1)
	submission.AttemptNumber = 1
	require.NoError(t, repo.Create(ctx, submission))

	steps := []struct {
		axis  string
		value string
	}{
		{models.AxisEvaluation, models.EvaluationStatusAuto},
		{models.AxisMain, models.MainStatusPublished},
		{models.AxisReview, models.ReviewStatusCompleted},
		{models.AxisPopularity, models.PopularityStatusPopular},
		{models.AxisMain, models.MainStatusRejected},
	}

	for _, step := range steps {
		_, err := machine.Transition(ctx, submission.ID, step.axis, step.value, "test", "tester")
		require.NoError(t, err)
	}

	history := repo.historyFor(submission.ID)
	require.Len(t, history, len(steps))
	for i, step := range steps {
		require.Equal(t, step.axis, history[i].Axis)
		require.Equal(t, step.value, history[i].NewValue)
	}
	// the second main transition captured the value the first one wrote
	require.Equal(t, models.MainStatusPublished, history[4].PreviousValue)
}

func TestStatusMachineAxesAreIndependentProjections(t *testing.T) {
	repo := newMemorySubmissionRepo()
	machine := NewStatusMachine(repo, zerolog.Nop())
	ctx := context.Background()

	submission := pendingSubmission(1, 1)
	submission.AttemptNumber = 1
	require.NoError(t, repo.Create(ctx, submission))

	_, err := machine.Transition(ctx, submission.ID, models.AxisReview, models.ReviewStatusAccepted, "", "reviewer")
	require.NoError(t, err)
	updated, err := machine.Transition(ctx, submission.ID, models.AxisEvaluation, models.EvaluationStatusAuto, "", systemActor)
	require.NoError(t, err)

	require.Equal(t, models.ReviewStatusAccepted, updated.ReviewStatus)
	require.Equal(t, models.EvaluationStatusAuto, updated.EvaluationStatus)
	require.Equal(t, models.MainStatusPending, updated.MainStatus)
}
