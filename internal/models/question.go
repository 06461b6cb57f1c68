package models

import "time"

// Evaluation modes supported by a question.
const (
	EvaluationModeAuto   = "auto"
	EvaluationModeManual = "manual"
)

// Question represents a subjective question learners answer with free text or images.
type Question struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	TenantID  string    `gorm:"size:64;index" json:"tenant_id"`
	SetID     *uint     `gorm:"index" json:"set_id"`
	Prompt    string    `gorm:"type:text;not null" json:"prompt"`
	Guideline string    `gorm:"type:text" json:"guideline"`
	MaxScore  float64   `gorm:"not null;default:100" json:"max_score"`
	Mode      string    `gorm:"size:16;not null;default:auto" json:"mode"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// EffectiveMaxScore returns the grading ceiling, defaulting when unset.
func (q Question) EffectiveMaxScore() float64 {
	if q.MaxScore <= 0 {
		return 100
	}
	return q.MaxScore
}

// IsAuto reports whether answers to this question are scored automatically.
func (q Question) IsAuto() bool {
	return q.Mode == EvaluationModeAuto
}
