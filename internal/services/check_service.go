package services

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/opentranscribe/scribe-backend/internal/events"
	"github.com/opentranscribe/scribe-backend/internal/models"
	"gorm.io/gorm"
)

// checkSources lists, per target status, the states a review action may
// leave from. Transitions from an unlisted source state are rejected.
var checkSources = map[models.CheckStatus][]models.CheckStatus{
	models.CheckApproved:        {models.CheckPending},
	models.CheckCommentPending:  {models.CheckPending, models.CheckCommentResolved, models.CheckCommentUnfixed},
	models.CheckCommentResolved: {models.CheckCommentPending},
	models.CheckCommentUnfixed:  {models.CheckCommentPending},
	models.CheckWarningPending:  {models.CheckPending, models.CheckWarningResolved, models.CheckWarningUnfixed},
	models.CheckWarningResolved: {models.CheckWarningPending},
	models.CheckWarningUnfixed:  {models.CheckWarningPending},
	models.CheckPending:         {models.CheckCommentPending, models.CheckWarningPending},
}

// statusesSettingComplete mark the review as (provisionally) finished;
// re-opening statuses clear the completion timestamp again.
var statusesSettingComplete = map[models.CheckStatus]bool{
	models.CheckApproved:        true,
	models.CheckCommentResolved: true,
	models.CheckCommentUnfixed:  true,
	models.CheckWarningResolved: true,
	models.CheckWarningUnfixed:  true,
}

// CheckService owns the transcription check lifecycle: the sampling
// decision at done-time and the review state machine driven by the
// moderator collaborator.
type CheckService struct {
	db         *gorm.DB
	volunteers *VolunteerService
	bus        events.Publisher
	now        func() time.Time
}

func NewCheckService(db *gorm.DB, volunteers *VolunteerService, bus events.Publisher) *CheckService {
	return &CheckService{
		db:         db,
		volunteers: volunteers,
		bus:        bus,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

func (s *CheckService) Get(id uuid.UUID) (*models.TranscriptionCheck, error) {
	var check models.TranscriptionCheck
	if err := s.db.Where("id = ?", id).First(&check).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &check, nil
}

func (s *CheckService) GetByTranscription(transcriptionID uuid.UUID) (*models.TranscriptionCheck, error) {
	var check models.TranscriptionCheck
	if err := s.db.Where("transcription_id = ?", transcriptionID).First(&check).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &check, nil
}

// MaybeCreate runs the sampling decision for a completed transcription
// and creates at most one pending check, publishing CheckCreated when it
// does. The unique index on transcription_id makes the create
// first-writer-wins; a duplicate is silently absorbed with no event.
func (s *CheckService) MaybeCreate(sub *models.Submission, tr *models.Transcription, author *models.User) (*models.TranscriptionCheck, error) {
	check, reason, err := s.volunteers.ShouldCheck(author)
	if err != nil {
		return nil, err
	}
	if !check {
		return nil, nil
	}

	row := models.TranscriptionCheck{
		TranscriptionID: tr.ID,
		Trigger:         reason,
		Status:          models.CheckPending,
	}
	if err := s.db.Create(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, nil
		}
		return nil, err
	}

	checkID := row.ID
	authorID := author.ID
	s.bus.Publish(events.Event{
		Kind:         events.KindCheckCreated,
		SubmissionID: sub.ID,
		CheckID:      &checkID,
		UserID:       &authorID,
		Username:     author.Username,
		Reason:       reason,
	})
	return &row, nil
}

// Claim assigns a moderator to a non-terminal check. Moderators cannot
// review their own transcription, and a check claimed by someone else
// stays theirs.
func (s *CheckService) Claim(id uuid.UUID, moderatorUsername string) (*models.TranscriptionCheck, error) {
	mod, err := s.volunteers.GetByUsername(moderatorUsername)
	if err != nil {
		return nil, err
	}
	check, err := s.Get(id)
	if err != nil {
		return nil, err
	}
	if check.Status.Terminal() {
		return nil, ErrCheckTransition
	}
	if check.ModeratorID != nil && *check.ModeratorID != mod.ID {
		return nil, ErrCheckOwnership
	}

	var tr models.Transcription
	if err := s.db.Where("id = ?", check.TranscriptionID).First(&tr).Error; err != nil {
		return nil, err
	}
	if tr.AuthorID == mod.ID {
		return nil, ErrSelfReview
	}

	if err := s.db.Model(check).Updates(map[string]interface{}{
		"moderator_id": mod.ID,
		"claim_time":   s.now(),
	}).Error; err != nil {
		return nil, err
	}
	return s.Get(id)
}

// Unclaim releases a non-terminal check, allowed only for the current
// moderator.
func (s *CheckService) Unclaim(id uuid.UUID, moderatorUsername string) (*models.TranscriptionCheck, error) {
	mod, err := s.volunteers.GetByUsername(moderatorUsername)
	if err != nil {
		return nil, err
	}
	check, err := s.Get(id)
	if err != nil {
		return nil, err
	}
	if check.Status.Terminal() {
		return nil, ErrCheckTransition
	}
	if check.ModeratorID == nil {
		return nil, ErrCheckNotClaimed
	}
	if *check.ModeratorID != mod.ID {
		return nil, ErrCheckOwnership
	}

	if err := s.db.Model(check).Updates(map[string]interface{}{
		"moderator_id": nil,
		"claim_time":   nil,
	}).Error; err != nil {
		return nil, err
	}
	return s.Get(id)
}

// SetStatus applies one review transition. The acting moderator is
// recorded and checked against the current moderator field.
func (s *CheckService) SetStatus(id uuid.UUID, moderatorUsername string, target models.CheckStatus) (*models.TranscriptionCheck, error) {
	mod, err := s.volunteers.GetByUsername(moderatorUsername)
	if err != nil {
		return nil, err
	}
	check, err := s.Get(id)
	if err != nil {
		return nil, err
	}
	if check.ModeratorID != nil && *check.ModeratorID != mod.ID {
		return nil, ErrCheckOwnership
	}

	sources, known := checkSources[target]
	if !known {
		return nil, ErrCheckTransition
	}
	allowed := false
	for _, from := range sources {
		if check.Status == from {
			allowed = true
			break
		}
	}
	if !allowed {
		return nil, ErrCheckTransition
	}

	fields := map[string]interface{}{
		"status":       target,
		"moderator_id": mod.ID,
	}
	if statusesSettingComplete[target] {
		fields["complete_time"] = s.now()
	} else {
		fields["complete_time"] = nil
	}

	if err := s.db.Model(check).Updates(fields).Error; err != nil {
		return nil, err
	}
	return s.Get(id)
}
