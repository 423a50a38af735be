package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// CheckStatus is the review state of a sampled transcription.
type CheckStatus string

const (
	CheckPending         CheckStatus = "pending"
	CheckApproved        CheckStatus = "approved"
	CheckCommentPending  CheckStatus = "comment-pending"
	CheckCommentResolved CheckStatus = "comment-resolved"
	CheckCommentUnfixed  CheckStatus = "comment-unfixed"
	CheckWarningPending  CheckStatus = "warning-pending"
	CheckWarningResolved CheckStatus = "warning-resolved"
	CheckWarningUnfixed  CheckStatus = "warning-unfixed"
)

// Terminal reports whether the status ends the review lifecycle.
func (s CheckStatus) Terminal() bool {
	switch s {
	case CheckApproved, CheckCommentResolved, CheckCommentUnfixed,
		CheckWarningResolved, CheckWarningUnfixed:
		return true
	}
	return false
}

// TranscriptionCheck is a sampled post-hoc review of a completed
// transcription. The unique index on TranscriptionID enforces at most
// one check per transcription.
type TranscriptionCheck struct {
	ID              uuid.UUID     `gorm:"type:uuid;primaryKey" json:"id"`
	TranscriptionID uuid.UUID     `gorm:"type:uuid;not null;uniqueIndex" json:"transcription"`
	Transcription   Transcription `gorm:"constraint:OnDelete:CASCADE" json:"-"`
	ModeratorID     *uuid.UUID    `gorm:"type:uuid;index" json:"moderator"`
	Trigger         string        `gorm:"size:100;not null" json:"trigger"`
	Status          CheckStatus   `gorm:"size:30;not null;default:'pending'" json:"status"`

	ClaimTime    *time.Time `json:"claim_time"`
	CompleteTime *time.Time `json:"complete_time"`

	ChatChannel *string `gorm:"size:100" json:"chat_channel"`
	ChatMessage *string `gorm:"size:100" json:"chat_message"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (c *TranscriptionCheck) BeforeCreate(_ *gorm.DB) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	if c.Status == "" {
		c.Status = CheckPending
	}
	return nil
}
