package events

import (
	"time"

	"github.com/google/uuid"
)

// Kind enumerates the review events the lifecycle core emits.
type Kind string

const (
	KindCheckCreated     Kind = "check_created"
	KindReportOpened     Kind = "report_opened"
	KindReportUpdated    Kind = "report_updated"
	KindRankUp           Kind = "rank_up"
	KindUnclaimRequested Kind = "unclaim_requested"
)

// Report resolutions carried by KindReportUpdated.
const (
	ReportApproved = "approved"
	ReportRemoved  = "removed"
)

// Event is a typed notification for the external chat collaborator.
// SubmissionID (and CheckID where present) are the stable correlators;
// ChatChannel/ChatMessage carry the message the collaborator should edit
// instead of reposting.
type Event struct {
	Kind         Kind       `json:"kind"`
	SubmissionID uuid.UUID  `json:"submission_id"`
	CheckID      *uuid.UUID `json:"check_id,omitempty"`
	UserID       *uuid.UUID `json:"user_id,omitempty"`
	Username     string     `json:"username,omitempty"`

	// Reason holds the report reason, the report resolution
	// (approved|removed), or the rank reached, depending on Kind.
	Reason string `json:"reason,omitempty"`

	ChatChannel *string   `json:"chat_channel,omitempty"`
	ChatMessage *string   `json:"chat_message,omitempty"`
	OccurredAt  time.Time `json:"occurred_at"`
}

// Key identifies the logical notification an emission belongs to. Two
// events with the same key describe the same chat message; sinks edit
// that message in place instead of reposting it.
func (e Event) Key() string {
	id := e.SubmissionID.String()
	if e.CheckID != nil {
		id = e.CheckID.String()
	}
	return string(e.Kind) + ":" + id + ":" + e.Reason
}
