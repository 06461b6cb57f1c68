package models

import "time"

// AnswerImage stores metadata about an uploaded answer image. Submissions
// reference the returned URL and key; the record itself is audit data.
type AnswerImage struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	LearnerID *uint     `gorm:"index" json:"learner_id,omitempty"`
	FileName  string    `gorm:"size:255" json:"file_name"`
	URL       string    `gorm:"size:512" json:"url"`
	Key       string    `gorm:"size:255" json:"key"`
	MimeType  string    `gorm:"size:100" json:"mime_type"`
	SizeBytes int64     `json:"size_bytes"`
	Checksum  string    `gorm:"size:64" json:"checksum"`
	CreatedAt time.Time `json:"created_at"`
}
