package dto

import (
	"time"

	"github.com/noah-isme/vidya-go-api/internal/models"
)

// QuestionCreateRequest is the payload for registering a question.
type QuestionCreateRequest struct {
	Prompt    string  `json:"prompt" validate:"required,min=3"`
	Guideline string  `json:"guideline" validate:"omitempty,max=20000"`
	MaxScore  float64 `json:"max_score" validate:"omitempty,gt=0,lte=1000"`
	Mode      string  `json:"mode" validate:"required,oneof=auto manual"`
	SetID     *uint   `json:"set_id" validate:"omitempty,gt=0"`
}

// QuestionGuidelineUpdateRequest updates the grading guideline text.
type QuestionGuidelineUpdateRequest struct {
	Guideline string `json:"guideline" validate:"required,min=3,max=20000"`
}

// QuestionResponse is returned to API clients when viewing questions.
type QuestionResponse struct {
	ID        uint      `json:"id"`
	TenantID  string    `json:"tenant_id,omitempty"`
	SetID     *uint     `json:"set_id,omitempty"`
	Prompt    string    `json:"prompt"`
	Guideline string    `json:"guideline,omitempty"`
	MaxScore  float64   `json:"max_score"`
	Mode      string    `json:"mode"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewQuestionResponse converts a Question model into a DTO.
func NewQuestionResponse(model models.Question) QuestionResponse {
	return QuestionResponse{
		ID:        model.ID,
		TenantID:  model.TenantID,
		SetID:     model.SetID,
		Prompt:    model.Prompt,
		Guideline: model.Guideline,
		MaxScore:  model.EffectiveMaxScore(),
		Mode:      model.Mode,
		CreatedAt: model.CreatedAt,
		UpdatedAt: model.UpdatedAt,
	}
}
