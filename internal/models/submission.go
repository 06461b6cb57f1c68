package models

import (
	"time"

	"gorm.io/datatypes"
)

// MaxAttempts caps how many times a learner may answer the same question.
const MaxAttempts = 5

// Status axes tracked independently on every submission.
const (
	AxisMain       = "main"
	AxisReview     = "review"
	AxisEvaluation = "evaluation"
	AxisPopularity = "popularity"
)

// Main status values.
const (
	MainStatusPending      = "pending"
	MainStatusRejected     = "rejected"
	MainStatusPublished    = "published"
	MainStatusNotPublished = "not_published"
)

// Review status values.
const (
	ReviewStatusPending   = "review_pending"
	ReviewStatusAccepted  = "review_accepted"
	ReviewStatusCompleted = "review_completed"
)

// Evaluation status values.
const (
	EvaluationStatusNone   = "not_evaluated"
	EvaluationStatusAuto   = "auto_evaluated"
	EvaluationStatusManual = "manual_evaluated"
	EvaluationStatusFailed = "evaluation_failed"
)

// Popularity status values.
const (
	PopularityStatusPopular    = "popular"
	PopularityStatusNotPopular = "not_popular"
)

// AxisValues maps each status axis to its allowed vocabulary.
var AxisValues = map[string][]string{
	AxisMain:       {MainStatusPending, MainStatusRejected, MainStatusPublished, MainStatusNotPublished},
	AxisReview:     {ReviewStatusPending, ReviewStatusAccepted, ReviewStatusCompleted},
	AxisEvaluation: {EvaluationStatusNone, EvaluationStatusAuto, EvaluationStatusManual, EvaluationStatusFailed},
	AxisPopularity: {PopularityStatusPopular, PopularityStatusNotPopular},
}

// ImageRef points at an answer image stored in the blob store.
type ImageRef struct {
	URL string `json:"url"`
	Key string `json:"key,omitempty"`
}

// Submission is one attempt by a learner at answering a question.
//
// The (learner_id, question_id, attempt_number) unique index backs attempt
// allocation: concurrent submissions for the same pair race on it and the
// loser retries with a fresh count.
type Submission struct {
	ID         uint   `gorm:"primaryKey" json:"id"`
	LearnerID  uint   `gorm:"not null;uniqueIndex:idx_learner_question_attempt" json:"learner_id"`
	QuestionID uint   `gorm:"not null;uniqueIndex:idx_learner_question_attempt" json:"question_id"`
	TenantID   string `gorm:"size:64;index" json:"tenant_id"`
	SetID      *uint  `gorm:"index" json:"set_id"`

	AttemptNumber int `gorm:"not null;uniqueIndex:idx_learner_question_attempt" json:"attempt_number"`

	AnswerText string         `gorm:"type:text" json:"answer_text"`
	ImageRefs  datatypes.JSON `json:"image_refs"`

	MainStatus       string `gorm:"size:32;not null;default:pending" json:"main_status"`
	ReviewStatus     string `gorm:"size:32;not null;default:review_pending" json:"review_status"`
	EvaluationStatus string `gorm:"size:32;not null;default:not_evaluated" json:"evaluation_status"`
	PopularityStatus string `gorm:"size:32;not null;default:not_popular" json:"popularity_status"`

	// Mode is copied from the question at submission time so a later change
	// to the question never alters an in-flight submission.
	Mode string `gorm:"size:16;not null" json:"mode"`

	Score          *float64       `json:"score"`
	Marks          *float64       `json:"marks"`
	Strengths      datatypes.JSON `json:"strengths"`
	Weaknesses     datatypes.JSON `json:"weaknesses"`
	Suggestions    datatypes.JSON `json:"suggestions"`
	Feedback       string         `gorm:"type:text" json:"feedback"`
	ExtractedTexts datatypes.JSON `json:"extracted_texts"`

	SubmittedAt time.Time  `gorm:"not null" json:"submitted_at"`
	EvaluatedAt *time.Time `json:"evaluated_at"`
	ReviewedAt  *time.Time `json:"reviewed_at"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`

	Question Question                  `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"question"`
	History  []SubmissionStatusHistory `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"history,omitempty"`
}

// AxisValue returns the current value of the given status axis.
func (s Submission) AxisValue(axis string) string {
	switch axis {
	case AxisMain:
		return s.MainStatus
	case AxisReview:
		return s.ReviewStatus
	case AxisEvaluation:
		return s.EvaluationStatus
	case AxisPopularity:
		return s.PopularityStatus
	}
	return ""
}

// IsEvaluated reports whether evaluation reached a terminal evaluated value.
func (s Submission) IsEvaluated() bool {
	return s.EvaluationStatus == EvaluationStatusAuto || s.EvaluationStatus == EvaluationStatusManual
}

// SubmissionStatusHistory is one append-only audit record of an axis change.
// Rows are never updated or deleted once written.
type SubmissionStatusHistory struct {
	ID            uint      `gorm:"primaryKey" json:"id"`
	SubmissionID  uint      `gorm:"not null;index" json:"submission_id"`
	Axis          string    `gorm:"size:16;not null" json:"axis"`
	PreviousValue string    `gorm:"size:32;not null" json:"previous_value"`
	NewValue      string    `gorm:"size:32;not null" json:"new_value"`
	Reason        string    `gorm:"size:255" json:"reason"`
	Actor         string    `gorm:"size:64" json:"actor"`
	CreatedAt     time.Time `json:"created_at"`
}
