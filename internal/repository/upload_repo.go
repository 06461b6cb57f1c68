package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/noah-isme/vidya-go-api/internal/models"
)

// UploadRepository persists metadata about uploaded answer images.
type UploadRepository interface {
	Create(ctx context.Context, record *models.AnswerImage) error
}

type uploadRepository struct {
	db *gorm.DB
}

// NewUploadRepository constructs a repository for answer image records.
func NewUploadRepository(db *gorm.DB) UploadRepository {
	return &uploadRepository{db: db}
}

func (r *uploadRepository) Create(ctx context.Context, record *models.AnswerImage) error {
	return r.db.WithContext(ctx).Create(record).Error
}
