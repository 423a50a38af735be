package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Transcription is one volunteer's (or the OCR bot's) text for a
// submission. A submission may carry several; gamma counts one unit per
// transcription with a non-bot, non-blocked author.
type Transcription struct {
	ID           uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	SubmissionID uuid.UUID `gorm:"type:uuid;not null;index" json:"submission"`
	AuthorID     uuid.UUID `gorm:"type:uuid;not null;index" json:"author"`
	SourceName   string    `gorm:"size:50;not null" json:"source"`

	CreateTime     time.Time `gorm:"not null;index" json:"create_time"`
	LastUpdateTime time.Time `gorm:"not null" json:"last_update_time"`

	// OriginalID is the external comment id once the text has been posted
	// back to the partner site; null for OCR output still waiting to post.
	OriginalID *string `gorm:"size:255" json:"original_id"`

	URL               *string `gorm:"size:2048" json:"url"`
	Text              string  `gorm:"type:text" json:"text"`
	RemovedFromReddit bool    `gorm:"default:false" json:"removed_from_reddit"`
}

func (t *Transcription) BeforeCreate(_ *gorm.DB) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	now := time.Now().UTC()
	if t.CreateTime.IsZero() {
		t.CreateTime = now
	}
	if t.LastUpdateTime.IsZero() {
		t.LastUpdateTime = now
	}
	return nil
}
