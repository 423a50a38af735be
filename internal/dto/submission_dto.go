package dto

import (
	"github.com/google/uuid"
)

type CreateSubmissionRequest struct {
	OriginalID string  `json:"original_id"`
	Source     string  `json:"source"`
	ContentURL string  `json:"content_url"`
	URL        *string `json:"url"`
	TorURL     *string `json:"tor_url"`
	Title      *string `json:"title"`
	NSFW       bool    `json:"nsfw"`
	CannotOCR  bool    `json:"cannot_ocr"`
}

type ClaimRequest struct {
	Username string `json:"username"`
}

type UnclaimRequest struct {
	Username string `json:"username"`
}

type DoneRequest struct {
	Username    string `json:"username"`
	ModOverride bool   `json:"mod_override"`
}

type ApproveRequest struct {
	Approved *bool `json:"approved"`
}

type RemoveRequest struct {
	RemovedFromQueue *bool `json:"removed_from_queue"`
}

type NSFWRequest struct {
	NSFW *bool `json:"nsfw"`
}

type ReportRequest struct {
	Reason string `json:"reason"`
}

type YeetRequest struct {
	Username string `json:"username"`
	Count    int    `json:"count"`
}

type YeetResponse struct {
	TotalYeeted int64 `json:"total_yeeted"`
}

type BulkCheckRequest struct {
	URLs []string `json:"urls"`
}

// OCRQueueItem is the projection returned by the transcribot queue.
type OCRQueueItem struct {
	ID                uuid.UUID `json:"id"`
	TorURL            *string   `json:"tor_url"`
	TranscriptionID   uuid.UUID `json:"transcription_id"`
	TranscriptionText string    `json:"transcription_text"`
}

type RateBucket struct {
	Date  string `json:"date"`
	Count int64  `json:"count"`
}

type HeatmapCell struct {
	Day   int   `json:"day"`
	Hour  int   `json:"hour"`
	Count int64 `json:"count"`
}

type LeaderboardEntry struct {
	ID       uuid.UUID `json:"id"`
	Username string    `json:"username"`
	Gamma    int64     `json:"gamma"`
	Rank     int       `json:"rank"`
}

type LeaderboardResponse struct {
	Top   []LeaderboardEntry `json:"top"`
	User  *LeaderboardEntry  `json:"user,omitempty"`
	Above []LeaderboardEntry `json:"above,omitempty"`
	Below []LeaderboardEntry `json:"below,omitempty"`
}

type SubredditCount struct {
	Subreddit string
	Count     int64
}
