package repository

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/noah-isme/vidya-go-api/internal/models"
)

func setupSubmissionDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:submission_repo_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.Question{}, &models.Submission{}, &models.SubmissionStatusHistory{}))
	return db
}

func newSubmission(learnerID, questionID uint, attempt int) models.Submission {
	return models.Submission{
		LearnerID:        learnerID,
		QuestionID:       questionID,
		AttemptNumber:    attempt,
		AnswerText:       "an answer",
		MainStatus:       models.MainStatusPending,
		ReviewStatus:     models.ReviewStatusPending,
		EvaluationStatus: models.EvaluationStatusNone,
		PopularityStatus: models.PopularityStatusNotPopular,
		Mode:             models.EvaluationModeAuto,
		SubmittedAt:      time.Now(),
	}
}

func TestSubmissionRepositoryPairStats(t *testing.T) {
	db := setupSubmissionDB(t)
	repo := NewSubmissionRepository(db)
	ctx := context.Background()

	stats, err := repo.PairStats(ctx, 1, 1)
	require.NoError(t, err)
	require.Equal(t, int64(0), stats.Count)
	require.Equal(t, 0, stats.MaxAttempt)

	first := newSubmission(1, 1, 1)
	third := newSubmission(1, 1, 3)
	other := newSubmission(2, 1, 1)
	require.NoError(t, repo.Create(ctx, &first))
	require.NoError(t, repo.Create(ctx, &third))
	require.NoError(t, repo.Create(ctx, &other))

	stats, err = repo.PairStats(ctx, 1, 1)
	require.NoError(t, err)
	require.Equal(t, int64(2), stats.Count)
	require.Equal(t, 3, stats.MaxAttempt)
}

func TestSubmissionRepositoryDuplicateAttemptDetected(t *testing.T) {
	db := setupSubmissionDB(t)
	repo := NewSubmissionRepository(db)
	ctx := context.Background()

	first := newSubmission(7, 9, 1)
	require.NoError(t, repo.Create(ctx, &first))

	duplicate := newSubmission(7, 9, 1)
	err := repo.Create(ctx, &duplicate)
	require.Error(t, err)
	require.True(t, IsDuplicateAttempt(err))

	next := newSubmission(7, 9, 2)
	require.NoError(t, repo.Create(ctx, &next))
}

func TestSubmissionRepositoryTransitionAppendsHistory(t *testing.T) {
	db := setupSubmissionDB(t)
	repo := NewSubmissionRepository(db)
	ctx := context.Background()

	submission := newSubmission(1, 1, 1)
	require.NoError(t, repo.Create(ctx, &submission))

	updated, err := repo.TransitionAxis(ctx, submission.ID, models.AxisEvaluation, models.EvaluationStatusAuto, "auto evaluation", "system")
	require.NoError(t, err)
	require.Equal(t, models.EvaluationStatusAuto, updated.EvaluationStatus)
	require.NotNil(t, updated.EvaluatedAt)

	updated, err = repo.TransitionAxis(ctx, submission.ID, models.AxisMain, models.MainStatusPublished, "auto publish", "system")
	require.NoError(t, err)
	require.Equal(t, models.MainStatusPublished, updated.MainStatus)

	stored, err := repo.GetByID(ctx, submission.ID)
	require.NoError(t, err)
	require.Len(t, stored.History, 2)
	require.Equal(t, models.AxisEvaluation, stored.History[0].Axis)
	require.Equal(t, models.EvaluationStatusNone, stored.History[0].PreviousValue)
	require.Equal(t, models.EvaluationStatusAuto, stored.History[0].NewValue)
	require.Equal(t, models.AxisMain, stored.History[1].Axis)
	require.Equal(t, models.MainStatusPending, stored.History[1].PreviousValue)
	// evaluation status was untouched by the main-axis write
	require.Equal(t, models.EvaluationStatusAuto, stored.EvaluationStatus)
}

func TestSubmissionRepositoryEvaluatedAtSetOnce(t *testing.T) {
	db := setupSubmissionDB(t)
	repo := NewSubmissionRepository(db)
	ctx := context.Background()

	submission := newSubmission(1, 1, 1)
	require.NoError(t, repo.Create(ctx, &submission))

	first, err := repo.TransitionAxis(ctx, submission.ID, models.AxisEvaluation, models.EvaluationStatusAuto, "", "system")
	require.NoError(t, err)
	require.NotNil(t, first.EvaluatedAt)
	initial := *first.EvaluatedAt

	_, err = repo.TransitionAxis(ctx, submission.ID, models.AxisEvaluation, models.EvaluationStatusFailed, "", "system")
	require.NoError(t, err)
	second, err := repo.TransitionAxis(ctx, submission.ID, models.AxisEvaluation, models.EvaluationStatusAuto, "", "system")
	require.NoError(t, err)
	require.WithinDuration(t, initial, *second.EvaluatedAt, time.Second)
}

func TestSubmissionRepositoryUnknownAxisRejected(t *testing.T) {
	db := setupSubmissionDB(t)
	repo := NewSubmissionRepository(db)

	_, err := repo.TransitionAxis(context.Background(), 1, "grade", "x", "", "system")
	require.ErrorIs(t, err, ErrUnknownAxis)
}

func TestSubmissionRepositorySaveEvaluationLeavesAxesAlone(t *testing.T) {
	db := setupSubmissionDB(t)
	repo := NewSubmissionRepository(db)
	ctx := context.Background()

	submission := newSubmission(1, 1, 1)
	require.NoError(t, repo.Create(ctx, &submission))

	_, err := repo.TransitionAxis(ctx, submission.ID, models.AxisMain, models.MainStatusPublished, "", "system")
	require.NoError(t, err)

	score := 82.0
	marks := 8.2
	submission.Score = &score
	submission.Marks = &marks
	submission.Feedback = "well argued"
	require.NoError(t, repo.SaveEvaluation(ctx, &submission))

	stored, err := repo.GetByID(ctx, submission.ID)
	require.NoError(t, err)
	require.Equal(t, models.MainStatusPublished, stored.MainStatus)
	require.NotNil(t, stored.Score)
	require.InDelta(t, 82.0, *stored.Score, 0.001)
	require.Equal(t, "well argued", stored.Feedback)
}

func TestSubmissionRepositoryListFilters(t *testing.T) {
	db := setupSubmissionDB(t)
	repo := NewSubmissionRepository(db)
	ctx := context.Background()

	a := newSubmission(1, 1, 1)
	b := newSubmission(1, 2, 1)
	b.EvaluationStatus = models.EvaluationStatusAuto
	c := newSubmission(2, 1, 1)
	require.NoError(t, repo.Create(ctx, &a))
	require.NoError(t, repo.Create(ctx, &b))
	require.NoError(t, repo.Create(ctx, &c))

	learner := uint(1)
	listed, err := repo.List(ctx, SubmissionFilter{LearnerID: &learner})
	require.NoError(t, err)
	require.Len(t, listed, 2)

	status := models.EvaluationStatusAuto
	listed, err = repo.List(ctx, SubmissionFilter{EvaluationStatus: &status})
	require.NoError(t, err)
	require.Len(t, listed, 1)
	require.Equal(t, uint(2), listed[0].QuestionID)
}
