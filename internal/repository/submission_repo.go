package repository

import (
	"context"
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/noah-isme/vidya-go-api/internal/models"
)

// ErrUnknownAxis indicates a transition referenced an axis that does not exist.
var ErrUnknownAxis = errors.New("unknown status axis")

// SubmissionFilter narrows submission queries.
type SubmissionFilter struct {
	LearnerID        *uint
	QuestionID       *uint
	SetID            *uint
	MainStatus       *string
	ReviewStatus     *string
	EvaluationStatus *string
	PopularityStatus *string
}

// PairStats summarises the attempts already taken for a (learner, question) pair.
type PairStats struct {
	Count      int64
	MaxAttempt int
}

// SubmissionRepository defines data operations for submissions and their
// status history.
type SubmissionRepository interface {
	Create(ctx context.Context, submission *models.Submission) error
	GetByID(ctx context.Context, id uint) (models.Submission, error)
	List(ctx context.Context, filter SubmissionFilter) ([]models.Submission, error)
	PairStats(ctx context.Context, learnerID, questionID uint) (PairStats, error)
	TransitionAxis(ctx context.Context, id uint, axis, newValue, reason, actor string) (models.Submission, error)
	SaveEvaluation(ctx context.Context, submission *models.Submission) error
}

type submissionRepository struct {
	db  *gorm.DB
	now func() time.Time
}

// NewSubmissionRepository instantiates the repository.
func NewSubmissionRepository(db *gorm.DB) SubmissionRepository {
	return &submissionRepository{db: db, now: time.Now}
}

// IsDuplicateAttempt reports whether err is a uniqueness violation on the
// (learner, question, attempt) index. GORM normalises this for some drivers;
// the string checks cover postgres and sqlite messages that slip through.
func IsDuplicateAttempt(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "duplicate key value") ||
		strings.Contains(msg, "UNIQUE constraint failed")
}

func (r *submissionRepository) Create(ctx context.Context, submission *models.Submission) error {
	return r.db.WithContext(ctx).Create(submission).Error
}

func (r *submissionRepository) GetByID(ctx context.Context, id uint) (models.Submission, error) {
	var submission models.Submission
	err := r.db.WithContext(ctx).
		Preload("Question").
		Preload("History", func(db *gorm.DB) *gorm.DB {
			return db.Order("id ASC")
		}).
		First(&submission, id).Error
	if err != nil {
		return models.Submission{}, err
	}

	return submission, nil
}

func (r *submissionRepository) List(ctx context.Context, filter SubmissionFilter) ([]models.Submission, error) {
	query := r.db.WithContext(ctx).Model(&models.Submission{}).Preload("Question")

	if filter.LearnerID != nil {
		query = query.Where("learner_id = ?", *filter.LearnerID)
	}
	if filter.QuestionID != nil {
		query = query.Where("question_id = ?", *filter.QuestionID)
	}
	if filter.SetID != nil {
		query = query.Where("set_id = ?", *filter.SetID)
	}
	if filter.MainStatus != nil {
		query = query.Where("main_status = ?", *filter.MainStatus)
	}
	if filter.ReviewStatus != nil {
		query = query.Where("review_status = ?", *filter.ReviewStatus)
	}
	if filter.EvaluationStatus != nil {
		query = query.Where("evaluation_status = ?", *filter.EvaluationStatus)
	}
	if filter.PopularityStatus != nil {
		query = query.Where("popularity_status = ?", *filter.PopularityStatus)
	}

	var submissions []models.Submission
	if err := query.Order("submitted_at DESC").Find(&submissions).Error; err != nil {
		return nil, err
	}

	return submissions, nil
}

func (r *submissionRepository) PairStats(ctx context.Context, learnerID, questionID uint) (PairStats, error) {
	var stats PairStats
	row := r.db.WithContext(ctx).Model(&models.Submission{}).
		Select("COUNT(*) AS count, COALESCE(MAX(attempt_number), 0) AS max_attempt").
		Where("learner_id = ? AND question_id = ?", learnerID, questionID).
		Row()
	if err := row.Scan(&stats.Count, &stats.MaxAttempt); err != nil {
		return PairStats{}, err
	}

	return stats, nil
}

// TransitionAxis overwrites one status axis and appends the matching history
// record in a single transaction, so no reader observes one without the other.
func (r *submissionRepository) TransitionAxis(ctx context.Context, id uint, axis, newValue, reason, actor string) (models.Submission, error) {
	column, ok := axisColumn(axis)
	if !ok {
		return models.Submission{}, ErrUnknownAxis
	}

	var submission models.Submission
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&submission, id).Error; err != nil {
			return err
		}

		previous := submission.AxisValue(axis)
		updates := map[string]interface{}{column: newValue}

		now := r.now()
		if axis == models.AxisEvaluation && submission.EvaluatedAt == nil &&
			(newValue == models.EvaluationStatusAuto || newValue == models.EvaluationStatusManual) {
			updates["evaluated_at"] = now
			submission.EvaluatedAt = &now
		}
		if axis == models.AxisReview && submission.ReviewedAt == nil && newValue == models.ReviewStatusCompleted {
			updates["reviewed_at"] = now
			submission.ReviewedAt = &now
		}

		if err := tx.Model(&models.Submission{}).Where("id = ?", id).Updates(updates).Error; err != nil {
			return err
		}

		history := models.SubmissionStatusHistory{
			SubmissionID:  id,
			Axis:          axis,
			PreviousValue: previous,
			NewValue:      newValue,
			Reason:        reason,
			Actor:         actor,
			CreatedAt:     now,
		}
		if err := tx.Create(&history).Error; err != nil {
			return err
		}

		setAxisValue(&submission, axis, newValue)
		submission.History = append(submission.History, history)
		return nil
	})
	if err != nil {
		return models.Submission{}, err
	}

	return submission, nil
}

// SaveEvaluation persists only the evaluation payload columns, leaving the
// status axes untouched so concurrent transitions are never overwritten.
func (r *submissionRepository) SaveEvaluation(ctx context.Context, submission *models.Submission) error {
	return r.db.WithContext(ctx).Model(&models.Submission{}).
		Where("id = ?", submission.ID).
		Select("score", "marks", "strengths", "weaknesses", "suggestions", "feedback", "extracted_texts").
		Updates(map[string]interface{}{
			"score":           submission.Score,
			"marks":           submission.Marks,
			"strengths":       submission.Strengths,
			"weaknesses":      submission.Weaknesses,
			"suggestions":     submission.Suggestions,
			"feedback":        submission.Feedback,
			"extracted_texts": submission.ExtractedTexts,
		}).Error
}

func axisColumn(axis string) (string, bool) {
	switch axis {
	case models.AxisMain:
		return "main_status", true
	case models.AxisReview:
		return "review_status", true
	case models.AxisEvaluation:
		return "evaluation_status", true
	case models.AxisPopularity:
		return "popularity_status", true
	}
	return "", false
}

func setAxisValue(submission *models.Submission, axis, value string) {
	switch axis {
	case models.AxisMain:
		submission.MainStatus = value
	case models.AxisReview:
		submission.ReviewStatus = value
	case models.AxisEvaluation:
		submission.EvaluationStatus = value
	case models.AxisPopularity:
		submission.PopularityStatus = value
	}
}
