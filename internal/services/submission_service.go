package services

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/opentranscribe/scribe-backend/internal/dto"
	"github.com/opentranscribe/scribe-backend/internal/events"
	"github.com/opentranscribe/scribe-backend/internal/models"
	"gorm.io/gorm"
)

const yeetOriginalIDLength = 10

// SubmissionService is the authoritative state machine for the
// claim/unclaim/done/approve/report/remove transitions. Contention on a
// single submission is resolved by compare-and-set on the
// claimed_by/completed_by columns; precondition failures never mutate.
type SubmissionService struct {
	db         *gorm.DB
	volunteers *VolunteerService
	checks     *CheckService
	bus        events.Publisher
	now        func() time.Time
}

func NewSubmissionService(db *gorm.DB, volunteers *VolunteerService, checks *CheckService, bus events.Publisher) *SubmissionService {
	return &SubmissionService{
		db:         db,
		volunteers: volunteers,
		checks:     checks,
		bus:        bus,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

func (s *SubmissionService) Get(id uuid.UUID) (*models.Submission, error) {
	var sub models.Submission
	if err := s.db.Where("id = ?", id).First(&sub).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &sub, nil
}

func (s *SubmissionService) Create(req *dto.CreateSubmissionRequest) (*models.Submission, error) {
	if req.OriginalID == "" {
		return nil, fmt.Errorf("%w: original_id", ErrMissingField)
	}
	if req.Source == "" {
		return nil, fmt.Errorf("%w: source", ErrMissingField)
	}
	if req.ContentURL == "" {
		return nil, fmt.Errorf("%w: content_url", ErrMissingField)
	}

	if err := s.ensureSource(req.Source); err != nil {
		return nil, err
	}

	originalID := req.OriginalID
	contentURL := req.ContentURL
	sub := models.Submission{
		OriginalID: &originalID,
		SourceName: req.Source,
		ContentURL: &contentURL,
		URL:        req.URL,
		TorURL:     req.TorURL,
		Title:      req.Title,
		NSFW:       req.NSFW,
		CannotOCR:  req.CannotOCR,
		CreateTime: s.now(),
	}
	if err := s.db.Create(&sub).Error; err != nil {
		return nil, err
	}
	return &sub, nil
}

// Claim takes ownership of an unclaimed submission. Preconditions are
// checked in order and the first failure wins; the final write is a CAS
// against claimed_by being null, so exactly one of N racing claims
// succeeds.
func (s *SubmissionService) Claim(id uuid.UUID, username string) (*models.Submission, error) {
	user, err := s.volunteers.GetByUsername(username)
	if err != nil {
		return nil, err
	}
	sub, err := s.Get(id)
	if err != nil {
		return nil, err
	}

	if user.Blocked {
		return nil, ErrBlocked
	}
	if !user.AcceptedCoC {
		return nil, ErrCoCRequired
	}
	if sub.ClaimedByID != nil {
		claimant, err := s.volunteers.GetByID(*sub.ClaimedByID)
		if err != nil {
			return nil, err
		}
		return nil, &AlreadyClaimedError{Claimant: claimant}
	}

	openClaims, err := s.openClaims(user.ID)
	if err != nil {
		return nil, err
	}
	cap, err := s.claimCap(user.ID)
	if err != nil {
		return nil, err
	}
	if int64(len(openClaims)) >= cap {
		return nil, &TooManyClaimsError{Claims: openClaims}
	}

	now := s.now()
	result := s.db.Model(&models.Submission{}).
		Where("id = ? AND claimed_by_id IS NULL", id).
		Updates(map[string]interface{}{
			"claimed_by_id":    user.ID,
			"claim_time":       now,
			"last_update_time": now,
		})
	if result.Error != nil {
		return nil, result.Error
	}
	if result.RowsAffected == 0 {
		// Lost the race; report the winner.
		sub, err = s.Get(id)
		if err != nil {
			return nil, err
		}
		if sub.ClaimedByID == nil {
			return nil, &AlreadyClaimedError{}
		}
		claimant, err := s.volunteers.GetByID(*sub.ClaimedByID)
		if err != nil {
			return nil, err
		}
		return nil, &AlreadyClaimedError{Claimant: claimant}
	}

	return s.Get(id)
}

func (s *SubmissionService) Unclaim(id uuid.UUID, username string) (*models.Submission, error) {
	user, err := s.volunteers.GetByUsername(username)
	if err != nil {
		return nil, err
	}
	sub, err := s.Get(id)
	if err != nil {
		return nil, err
	}

	if user.Blocked {
		return nil, ErrBlocked
	}
	if sub.ClaimedByID == nil {
		return nil, ErrNotClaimed
	}
	if *sub.ClaimedByID != user.ID {
		return nil, ErrNotOwner
	}
	if sub.CompletedByID != nil {
		return nil, ErrAlreadyDone
	}

	result := s.db.Model(&models.Submission{}).
		Where("id = ? AND claimed_by_id = ? AND completed_by_id IS NULL", id, user.ID).
		Updates(map[string]interface{}{
			"claimed_by_id":    nil,
			"claim_time":       nil,
			"last_update_time": s.now(),
		})
	if result.Error != nil {
		return nil, result.Error
	}
	if result.RowsAffected == 0 {
		return nil, ErrAlreadyDone
	}

	return s.Get(id)
}

// Done marks a claimed submission complete. Without mod_override the
// caller must own the claim and have posted a transcription. The check
// sampler and rank-up detection run after the commit, keyed on the
// submission so a repeated done cannot emit twice.
func (s *SubmissionService) Done(id uuid.UUID, username string, modOverride bool) (*models.Submission, error) {
	user, err := s.volunteers.GetByUsername(username)
	if err != nil {
		return nil, err
	}
	sub, err := s.Get(id)
	if err != nil {
		return nil, err
	}

	if user.Blocked {
		return nil, ErrBlocked
	}
	if !user.AcceptedCoC {
		return nil, ErrCoCRequired
	}
	if sub.CompletedByID != nil {
		return nil, ErrAlreadyDone
	}
	if sub.ClaimedByID == nil {
		return nil, ErrNotClaimed
	}

	var transcription *models.Transcription
	if !modOverride {
		if *sub.ClaimedByID != user.ID {
			return nil, ErrNotOwner
		}
		transcription, err = s.findTranscription(id, user.ID)
		if err != nil {
			return nil, err
		}
		if transcription == nil {
			return nil, ErrTranscriptionMissing
		}
	}

	now := s.now()
	result := s.db.Model(&models.Submission{}).
		Where("id = ? AND completed_by_id IS NULL AND claimed_by_id IS NOT NULL", id).
		Updates(map[string]interface{}{
			"completed_by_id":  user.ID,
			"complete_time":    now,
			"last_update_time": now,
		})
	if result.Error != nil {
		return nil, result.Error
	}
	if result.RowsAffected == 0 {
		return nil, ErrAlreadyDone
	}

	if !modOverride && transcription != nil {
		if _, err := s.checks.MaybeCreate(sub, transcription, user); err != nil {
			// Sampling must not fail the completed transition.
			s.logPostDone(id, user.ID, "check sampling failed", err)
		}
	}

	if gamma, err := s.volunteers.Gamma(user.ID); err == nil {
		if rank, up := RankedUp(gamma-1, gamma); up {
			uid := user.ID
			s.bus.Publish(events.Event{
				Kind:         events.KindRankUp,
				SubmissionID: id,
				UserID:       &uid,
				Username:     user.Username,
				Reason:       rank,
			})
		}
	}

	return s.Get(id)
}

// queueStatus folds the coupled approved/removed_from_queue pair into a
// single moderation state; the wire shape stays two booleans.
type queueStatus int

const (
	queueNeutral queueStatus = iota
	queueApproved
	queueRemoved
)

func (q queueStatus) fields(now time.Time) map[string]interface{} {
	return map[string]interface{}{
		"approved":           q == queueApproved,
		"removed_from_queue": q == queueRemoved,
		"last_update_time":   now,
	}
}

func submissionQueueStatus(sub *models.Submission) queueStatus {
	switch {
	case sub.Approved:
		return queueApproved
	case sub.RemovedFromQueue:
		return queueRemoved
	default:
		return queueNeutral
	}
}

// Approve sets the approved flag; approving clears removed_from_queue
// in the same update. A ReportUpdated event fires when the submission
// carries a report chat correlator.
func (s *SubmissionService) Approve(id uuid.UUID, approved bool) (*models.Submission, error) {
	sub, err := s.Get(id)
	if err != nil {
		return nil, err
	}

	status := submissionQueueStatus(sub)
	if approved {
		status = queueApproved
	} else if status == queueApproved {
		status = queueNeutral
	}
	return s.applyQueueStatus(sub, status, events.ReportApproved)
}

// Remove sets removed_from_queue; removal clears approved in the same
// update.
func (s *SubmissionService) Remove(id uuid.UUID, removed bool) (*models.Submission, error) {
	sub, err := s.Get(id)
	if err != nil {
		return nil, err
	}

	status := submissionQueueStatus(sub)
	if removed {
		status = queueRemoved
	} else if status == queueRemoved {
		status = queueNeutral
	}
	return s.applyQueueStatus(sub, status, events.ReportRemoved)
}

func (s *SubmissionService) applyQueueStatus(sub *models.Submission, status queueStatus, resolution string) (*models.Submission, error) {
	if err := s.db.Model(sub).Updates(status.fields(s.now())).Error; err != nil {
		return nil, err
	}

	if sub.ReportChatChannel != nil || sub.ReportChatMessage != nil {
		s.bus.Publish(events.Event{
			Kind:         events.KindReportUpdated,
			SubmissionID: sub.ID,
			Reason:       resolution,
			ChatChannel:  sub.ReportChatChannel,
			ChatMessage:  sub.ReportChatMessage,
		})
	}

	return s.Get(sub.ID)
}

// Report files a report against a submission. An already-removed,
// already-reported or approved submission makes this a no-op success.
func (s *SubmissionService) Report(id uuid.UUID, reason string) (*models.Submission, error) {
	if strings.TrimSpace(reason) == "" {
		return nil, fmt.Errorf("%w: reason", ErrMissingField)
	}

	sub, err := s.Get(id)
	if err != nil {
		return nil, err
	}
	if sub.RemovedFromQueue || sub.ReportReason != nil || sub.Approved {
		return sub, nil
	}

	if err := s.db.Model(sub).Updates(map[string]interface{}{
		"report_reason":    reason,
		"last_update_time": s.now(),
	}).Error; err != nil {
		return nil, err
	}

	s.bus.Publish(events.Event{
		Kind:         events.KindReportOpened,
		SubmissionID: id,
		Reason:       reason,
	})

	return s.Get(id)
}

func (s *SubmissionService) NSFW(id uuid.UUID, nsfw bool) (*models.Submission, error) {
	sub, err := s.Get(id)
	if err != nil {
		return nil, err
	}
	if err := s.db.Model(sub).Updates(map[string]interface{}{
		"nsfw":             nsfw,
		"last_update_time": s.now(),
	}).Error; err != nil {
		return nil, err
	}
	return s.Get(id)
}

// Yeet bulk-deletes auto-generated placeholder submissions completed by
// the user, identified by an overlong original_id. Transcription rows
// cascade. Returns the number deleted.
func (s *SubmissionService) Yeet(username string, count int) (int64, error) {
	user, err := s.volunteers.GetByUsername(username)
	if err != nil {
		return 0, err
	}
	if count < 1 {
		count = 1
	}

	var ids []uuid.UUID
	err = s.db.Model(&models.Submission{}).
		Where("completed_by_id = ? AND original_id IS NOT NULL AND LENGTH(original_id) > ?", user.ID, yeetOriginalIDLength).
		Limit(count).
		Pluck("id", &ids).Error
	if err != nil {
		return 0, err
	}
	if len(ids) == 0 {
		return 0, nil
	}

	var deleted int64
	err = s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("submission_id IN ?", ids).Delete(&models.Transcription{}).Error; err != nil {
			return err
		}
		result := tx.Where("id IN ?", ids).Delete(&models.Submission{})
		if result.Error != nil {
			return result.Error
		}
		deleted = result.RowsAffected
		return nil
	})
	if err != nil {
		return 0, err
	}

	s.volunteers.InvalidateGamma(user.ID)
	return deleted, nil
}

// BulkCheck returns the subset of urls not present as any submission's
// url, preserving input order. Ingest uses it to dedupe before create.
func (s *SubmissionService) BulkCheck(urls []string) ([]string, error) {
	if len(urls) == 0 {
		return []string{}, nil
	}

	var existing []string
	if err := s.db.Model(&models.Submission{}).
		Where("url IN ?", urls).
		Pluck("url", &existing).Error; err != nil {
		return nil, err
	}

	seen := make(map[string]struct{}, len(existing))
	for _, u := range existing {
		seen[u] = struct{}{}
	}

	remaining := make([]string, 0, len(urls))
	for _, u := range urls {
		if _, ok := seen[u]; !ok {
			remaining = append(remaining, u)
		}
	}
	return remaining, nil
}

func (s *SubmissionService) openClaims(userID uuid.UUID) ([]models.Submission, error) {
	var claims []models.Submission
	err := s.db.
		Where("claimed_by_id = ? AND completed_by_id IS NULL AND archived = ?", userID, false).
		Order("claim_time ASC").
		Find(&claims).Error
	return claims, err
}

// claimCap is 1 below gamma 100 and 2 from there on.
func (s *SubmissionService) claimCap(userID uuid.UUID) (int64, error) {
	gamma, err := s.volunteers.Gamma(userID)
	if err != nil {
		return 0, err
	}
	if gamma < 100 {
		return 1, nil
	}
	return 2, nil
}

func (s *SubmissionService) findTranscription(submissionID, authorID uuid.UUID) (*models.Transcription, error) {
	var tr models.Transcription
	err := s.db.
		Where("submission_id = ? AND author_id = ?", submissionID, authorID).
		Order("create_time DESC").
		First(&tr).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &tr, nil
}

func (s *SubmissionService) ensureSource(name string) error {
	return s.db.Where(models.Source{Name: name}).FirstOrCreate(&models.Source{Name: name}).Error
}

func (s *SubmissionService) logPostDone(id, userID uuid.UUID, msg string, err error) {
	slog.Error(msg, "submission_id", id.String(), "user_id", userID.String(), "error", err)
}
