package services

import (
	"time"

	"github.com/opentranscribe/scribe-backend/internal/config"
	"github.com/opentranscribe/scribe-backend/internal/dto"
	"github.com/opentranscribe/scribe-backend/internal/models"
	"gorm.io/gorm"
)

const queuePageSize = 100

// QueueService computes the derived queue views over submissions. All
// views are source-scoped and bounded.
type QueueService struct {
	db         *gorm.DB
	cfg        *config.Config
	volunteers *VolunteerService
	now        func() time.Time
}

func NewQueueService(db *gorm.DB, cfg *config.Config, volunteers *VolunteerService) *QueueService {
	return &QueueService{
		db:         db,
		cfg:        cfg,
		volunteers: volunteers,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// Expired returns unclaimed, unarchived, unremoved submissions older
// than the age threshold. CTQ ("clear the queue") mode drops the
// threshold to zero so every unclaimed submission is returned.
func (s *QueueService) Expired(source string, hours float64, ctq bool) ([]models.Submission, error) {
	age := s.cfg.QueueTimeout
	if hours > 0 {
		age = time.Duration(hours * float64(time.Hour))
	}
	if ctq {
		age = 0
	}

	var subs []models.Submission
	err := s.db.
		Where("claimed_by_id IS NULL AND completed_by_id IS NULL").
		Where("archived = ? AND removed_from_queue = ?", false, false).
		Where("source_name = ?", source).
		Where("create_time < ?", s.now().Add(-age)).
		Order("create_time ASC").
		Limit(queuePageSize).
		Find(&subs).Error
	return subs, err
}

// InProgress returns claimed-but-stale submissions.
func (s *QueueService) InProgress(source string, hours float64) ([]models.Submission, error) {
	age := s.cfg.InProgressTimeout
	if hours > 0 {
		age = time.Duration(hours * float64(time.Hour))
	}

	var subs []models.Submission
	err := s.db.
		Where("completed_by_id IS NULL AND claimed_by_id IS NOT NULL").
		Where("archived = ? AND removed_from_queue = ?", false, false).
		Where("source_name = ?", source).
		Where("claim_time < ?", s.now().Add(-age)).
		Order("claim_time ASC").
		Limit(queuePageSize).
		Find(&subs).Error
	return subs, err
}

// Unarchived returns completed submissions the archiver has not yet
// picked up, once they age past the completed delay.
func (s *QueueService) Unarchived(source string) ([]models.Submission, error) {
	var subs []models.Submission
	err := s.db.
		Where("completed_by_id IS NOT NULL AND archived = ?", false).
		Where("source_name = ?", source).
		Where("complete_time < ?", s.now().Add(-s.cfg.ArchivistCompletedDelay)).
		Order("complete_time ASC").
		Limit(queuePageSize).
		Find(&subs).Error
	return subs, err
}

// OCRQueue projects submissions whose bot transcription exists in the
// store but has not been posted externally (null external id). limit <= 0
// means no limit ("none").
func (s *QueueService) OCRQueue(source string, limit int) ([]dto.OCRQueueItem, error) {
	if !s.cfg.EnableOCR {
		return []dto.OCRQueueItem{}, nil
	}
	bot, err := s.volunteers.GetByUsername(s.cfg.OCRBotUsername)
	if err != nil {
		return []dto.OCRQueueItem{}, nil
	}

	q := s.db.Table("submissions").
		Select("submissions.id AS id, submissions.tor_url AS tor_url, transcriptions.id AS transcription_id, transcriptions.text AS transcription_text").
		Joins("JOIN transcriptions ON transcriptions.submission_id = submissions.id").
		Where("transcriptions.author_id = ? AND transcriptions.original_id IS NULL", bot.ID).
		Where("submissions.removed_from_queue = ? AND submissions.cannot_ocr = ?", false, false).
		Where("submissions.source_name = ?", source).
		Order("submissions.create_time ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}

	var items []dto.OCRQueueItem
	if err := q.Scan(&items).Error; err != nil {
		return nil, err
	}
	if items == nil {
		items = []dto.OCRQueueItem{}
	}
	return items, nil
}
