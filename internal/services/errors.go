package services

import (
	"errors"

	"github.com/opentranscribe/scribe-backend/internal/models"
)

// Error kinds surfaced by the lifecycle services. Handlers own the
// mapping to wire statuses; preconditions are evaluated in a fixed
// order and the first failure is returned without mutating state.
var (
	ErrBlocked              = errors.New("user is blocked")
	ErrCoCRequired          = errors.New("user has not accepted the code of conduct")
	ErrNotFound             = errors.New("not found")
	ErrAlreadyDone          = errors.New("submission is already completed")
	ErrNotClaimed           = errors.New("submission is not claimed")
	ErrNotOwner             = errors.New("submission is claimed by another user")
	ErrTranscriptionMissing = errors.New("no transcription found for this user and submission")
	ErrDuplicateUser        = errors.New("username already exists")
	ErrInvalidTimeFrame     = errors.New("invalid time frame")
	ErrMissingField         = errors.New("missing required field")

	ErrSelfReview      = errors.New("moderators cannot review their own transcription")
	ErrCheckOwnership  = errors.New("check is claimed by another moderator")
	ErrCheckTransition = errors.New("transition not allowed from current check status")
	ErrCheckNotClaimed = errors.New("check is not claimed")
)

// AlreadyClaimedError reports a claim against an owned submission and
// identifies the current claimant.
type AlreadyClaimedError struct {
	Claimant *models.User
}

func (e *AlreadyClaimedError) Error() string {
	return "submission is already claimed"
}

// TooManyClaimsError reports a claim beyond the per-gamma cap and
// carries the user's open claims.
type TooManyClaimsError struct {
	Claims []models.Submission
}

func (e *TooManyClaimsError) Error() string {
	return "user has too many open claims"
}
