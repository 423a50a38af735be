package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Submission is a unit of transcribable content deposited by an ingest
// source. The claim/done axis is mutated only through the submission
// service; claimed_by/completed_by arbitration is compare-and-set.
type Submission struct {
	ID         uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	OriginalID *string   `gorm:"size:255;index" json:"original_id"`
	SourceName string    `gorm:"size:50;not null;index" json:"source"`
	Source     Source    `gorm:"foreignKey:SourceName;references:Name" json:"-"`

	URL        *string `gorm:"size:2048" json:"url"`
	TorURL     *string `gorm:"size:2048" json:"tor_url"`
	ContentURL *string `gorm:"size:2048" json:"content_url"`
	Title      *string `gorm:"size:512" json:"title"`
	NSFW       bool    `gorm:"default:false" json:"nsfw"`

	CreateTime     time.Time  `gorm:"not null;index" json:"create_time"`
	LastUpdateTime time.Time  `gorm:"not null" json:"last_update_time"`
	ClaimTime      *time.Time `json:"claim_time"`
	CompleteTime   *time.Time `gorm:"index" json:"complete_time"`

	ClaimedByID   *uuid.UUID `gorm:"type:uuid;index" json:"claimed_by"`
	CompletedByID *uuid.UUID `gorm:"type:uuid;index" json:"completed_by"`

	Archived         bool `gorm:"default:false;index" json:"archived"`
	RemovedFromQueue bool `gorm:"default:false" json:"removed_from_queue"`
	Approved         bool `gorm:"default:false" json:"approved"`
	CannotOCR        bool `gorm:"column:cannot_ocr;default:false" json:"cannot_ocr"`

	ReportReason      *string `gorm:"size:500" json:"report_reason"`
	ReportChatChannel *string `gorm:"size:100" json:"report_chat_channel"`
	ReportChatMessage *string `gorm:"size:100" json:"report_chat_message"`

	// Legacy correlator from the redis era. Never written by the core.
	RedisID *string `gorm:"size:100" json:"redis_id"`

	Transcriptions []Transcription `gorm:"constraint:OnDelete:CASCADE" json:"-"`
}

func (s *Submission) BeforeCreate(_ *gorm.DB) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	now := time.Now().UTC()
	if s.CreateTime.IsZero() {
		s.CreateTime = now
	}
	if s.LastUpdateTime.IsZero() {
		s.LastUpdateTime = now
	}
	return nil
}
