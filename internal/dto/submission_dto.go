package dto

import (
	"encoding/json"
	"time"

	"github.com/noah-isme/vidya-go-api/internal/models"
)

// ImageRefPayload identifies one uploaded answer image.
type ImageRefPayload struct {
	URL string `json:"url" validate:"required,url"`
	Key string `json:"key"`
}

// SubmissionCreateRequest is the payload for submitting an answer.
// At least one of Images and Text must be present; the service enforces it.
type SubmissionCreateRequest struct {
	QuestionID uint              `json:"question_id" validate:"required,gt=0"`
	SetID      *uint             `json:"set_id" validate:"omitempty,gt=0"`
	Images     []ImageRefPayload `json:"images" validate:"omitempty,max=10,dive"`
	Text       string            `json:"text" validate:"omitempty,max=20000"`
}

// ManualEvaluationRequest carries a human evaluator's verdict.
type ManualEvaluationRequest struct {
	Score       float64  `json:"score" validate:"gte=0,lte=100"`
	Marks       float64  `json:"marks" validate:"gte=0"`
	Strengths   []string `json:"strengths" validate:"omitempty,dive,min=1"`
	Weaknesses  []string `json:"weaknesses" validate:"omitempty,dive,min=1"`
	Suggestions []string `json:"suggestions" validate:"omitempty,dive,min=1"`
	Feedback    string   `json:"feedback" validate:"omitempty,max=10000"`
	Publish     bool     `json:"publish"`
}

// TransitionRequest drives one explicit status-axis transition.
type TransitionRequest struct {
	Axis   string `json:"axis" validate:"required,oneof=main review evaluation popularity"`
	Value  string `json:"value" validate:"required"`
	Reason string `json:"reason" validate:"omitempty,max=255"`
}

// SubmissionListFilter describes query string filters for listing submissions.
type SubmissionListFilter struct {
	LearnerID        *uint   `query:"learner_id"`
	QuestionID       *uint   `query:"question_id"`
	SetID            *uint   `query:"set_id"`
	MainStatus       *string `query:"main_status" validate:"omitempty,oneof=pending rejected published not_published"`
	ReviewStatus     *string `query:"review_status" validate:"omitempty,oneof=review_pending review_accepted review_completed"`
	EvaluationStatus *string `query:"evaluation_status" validate:"omitempty,oneof=not_evaluated auto_evaluated manual_evaluated evaluation_failed"`
	PopularityStatus *string `query:"popularity_status" validate:"omitempty,oneof=popular not_popular"`
}

// EvaluationPayload serializes the structured evaluation result.
type EvaluationPayload struct {
	Score          *float64 `json:"score"`
	Marks          *float64 `json:"marks"`
	Strengths      []string `json:"strengths"`
	Weaknesses     []string `json:"weaknesses"`
	Suggestions    []string `json:"suggestions"`
	Feedback       string   `json:"feedback"`
	ExtractedTexts []string `json:"extracted_texts"`
}

// SubmissionResponse is returned to API clients when viewing submissions.
type SubmissionResponse struct {
	ID               uint               `json:"id"`
	LearnerID        uint               `json:"learner_id"`
	QuestionID       uint               `json:"question_id"`
	TenantID         string             `json:"tenant_id,omitempty"`
	SetID            *uint              `json:"set_id,omitempty"`
	AttemptNumber    int                `json:"attempt_number"`
	AnswerText       string             `json:"answer_text,omitempty"`
	Images           []ImageRefPayload  `json:"images,omitempty"`
	MainStatus       string             `json:"main_status"`
	ReviewStatus     string             `json:"review_status"`
	EvaluationStatus string             `json:"evaluation_status"`
	PopularityStatus string             `json:"popularity_status"`
	Mode             string             `json:"mode"`
	Evaluation       *EvaluationPayload `json:"evaluation,omitempty"`
	SubmittedAt      time.Time          `json:"submitted_at"`
	EvaluatedAt      *time.Time         `json:"evaluated_at,omitempty"`
	ReviewedAt       *time.Time         `json:"reviewed_at,omitempty"`
	Question         QuestionLite       `json:"question"`
}

// SubmissionDetailResponse adds the full status history to a submission view.
type SubmissionDetailResponse struct {
	SubmissionResponse
	History []StatusHistoryResponse `json:"history"`
}

// StatusHistoryResponse serializes one audit record of an axis change.
type StatusHistoryResponse struct {
	Axis          string    `json:"axis"`
	PreviousValue string    `json:"previous_value"`
	NewValue      string    `json:"new_value"`
	Reason        string    `json:"reason,omitempty"`
	Actor         string    `json:"actor,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

// QuestionLite summarizes a question in submission responses.
type QuestionLite struct {
	ID       uint    `json:"id"`
	Prompt   string  `json:"prompt"`
	MaxScore float64 `json:"max_score"`
	Mode     string  `json:"mode"`
}

// NewSubmissionResponse converts a Submission model into a DTO.
func NewSubmissionResponse(model models.Submission) SubmissionResponse {
	response := SubmissionResponse{
		ID:               model.ID,
		LearnerID:        model.LearnerID,
		QuestionID:       model.QuestionID,
		TenantID:         model.TenantID,
		SetID:            model.SetID,
		AttemptNumber:    model.AttemptNumber,
		AnswerText:       model.AnswerText,
		MainStatus:       model.MainStatus,
		ReviewStatus:     model.ReviewStatus,
		EvaluationStatus: model.EvaluationStatus,
		PopularityStatus: model.PopularityStatus,
		Mode:             model.Mode,
		SubmittedAt:      model.SubmittedAt,
		EvaluatedAt:      model.EvaluatedAt,
		ReviewedAt:       model.ReviewedAt,
	}

	if len(model.ImageRefs) > 0 {
		var refs []ImageRefPayload
		if err := json.Unmarshal(model.ImageRefs, &refs); err == nil {
			response.Images = refs
		}
	}

	if model.IsEvaluated() || model.Score != nil {
		response.Evaluation = &EvaluationPayload{
			Score:          model.Score,
			Marks:          model.Marks,
			Strengths:      decodeStringList(model.Strengths),
			Weaknesses:     decodeStringList(model.Weaknesses),
			Suggestions:    decodeStringList(model.Suggestions),
			Feedback:       model.Feedback,
			ExtractedTexts: decodeStringList(model.ExtractedTexts),
		}
	}

	if model.Question.ID != 0 {
		response.Question = QuestionLite{
			ID:       model.Question.ID,
			Prompt:   model.Question.Prompt,
			MaxScore: model.Question.EffectiveMaxScore(),
			Mode:     model.Question.Mode,
		}
	}

	return response
}

// NewSubmissionDetailResponse converts a submission including its history.
func NewSubmissionDetailResponse(model models.Submission) SubmissionDetailResponse {
	detail := SubmissionDetailResponse{
		SubmissionResponse: NewSubmissionResponse(model),
		History:            make([]StatusHistoryResponse, 0, len(model.History)),
	}

	for _, entry := range model.History {
		detail.History = append(detail.History, StatusHistoryResponse{
			Axis:          entry.Axis,
			PreviousValue: entry.PreviousValue,
			NewValue:      entry.NewValue,
			Reason:        entry.Reason,
			Actor:         entry.Actor,
			CreatedAt:     entry.CreatedAt,
		})
	}

	return detail
}

// NewSubmissionResponseSlice converts submission models into DTOs.
func NewSubmissionResponseSlice(submissions []models.Submission) []SubmissionResponse {
	responses := make([]SubmissionResponse, 0, len(submissions))
	for _, submission := range submissions {
		responses = append(responses, NewSubmissionResponse(submission))
	}

	return responses
}

func decodeStringList(raw []byte) []string {
	if len(raw) == 0 {
		return nil
	}
	var list []string
	if err := json.Unmarshal(raw, &list); err != nil {
		return nil
	}
	return list
}
