package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/noah-isme/vidya-go-api/internal/models"
)

// QuestionRepository defines data operations for questions.
type QuestionRepository interface {
	Create(ctx context.Context, question *models.Question) error
	GetByID(ctx context.Context, id uint) (models.Question, error)
	UpdateGuideline(ctx context.Context, id uint, guideline string) (models.Question, error)
}

type questionRepository struct {
	db *gorm.DB
}

// NewQuestionRepository instantiates the repository.
func NewQuestionRepository(db *gorm.DB) QuestionRepository {
	return &questionRepository{db: db}
}

func (r *questionRepository) Create(ctx context.Context, question *models.Question) error {
	return r.db.WithContext(ctx).Create(question).Error
}

func (r *questionRepository) GetByID(ctx context.Context, id uint) (models.Question, error) {
	var question models.Question
	if err := r.db.WithContext(ctx).First(&question, id).Error; err != nil {
		return models.Question{}, err
	}

	return question, nil
}

func (r *questionRepository) UpdateGuideline(ctx context.Context, id uint, guideline string) (models.Question, error) {
	var question models.Question
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&question, id).Error; err != nil {
			return err
		}
		question.Guideline = guideline
		return tx.Model(&question).Update("guideline", guideline).Error
	})
	if err != nil {
		return models.Question{}, err
	}

	return question, nil
}
