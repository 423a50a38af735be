package dto

import (
	"time"

	"github.com/google/uuid"
)

type CreateTranscriptionRequest struct {
	SubmissionID      uuid.UUID  `json:"submission_id"`
	Username          string     `json:"username"`
	Source            string     `json:"source"`
	OriginalID        *string    `json:"original_id"`
	URL               *string    `json:"url"`
	Text              string     `json:"text"`
	RemovedFromReddit bool       `json:"removed_from_reddit"`
	CreateTime        *time.Time `json:"create_time"`
}
