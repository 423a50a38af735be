package services

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/opentranscribe/scribe-backend/internal/dto"
	"github.com/opentranscribe/scribe-backend/internal/models"
	"github.com/opentranscribe/scribe-backend/internal/rng"
	"gorm.io/gorm"
)

// TranscriptionService owns transcription rows. Every insert or delete
// invalidates the author's cached gamma.
type TranscriptionService struct {
	db         *gorm.DB
	volunteers *VolunteerService
	rand       rng.Source
	now        func() time.Time
}

func NewTranscriptionService(db *gorm.DB, volunteers *VolunteerService, rand rng.Source) *TranscriptionService {
	return &TranscriptionService{
		db:         db,
		volunteers: volunteers,
		rand:       rand,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

func (s *TranscriptionService) Get(id uuid.UUID) (*models.Transcription, error) {
	var tr models.Transcription
	if err := s.db.Where("id = ?", id).First(&tr).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &tr, nil
}

func (s *TranscriptionService) Create(req *dto.CreateTranscriptionRequest) (*models.Transcription, error) {
	if req.Username == "" {
		return nil, fmt.Errorf("%w: username", ErrMissingField)
	}
	if req.Source == "" {
		return nil, fmt.Errorf("%w: source", ErrMissingField)
	}

	author, err := s.volunteers.GetByUsername(req.Username)
	if err != nil {
		return nil, err
	}

	var sub models.Submission
	if err := s.db.Where("id = ?", req.SubmissionID).First(&sub).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	if err := s.db.Where(models.Source{Name: req.Source}).FirstOrCreate(&models.Source{Name: req.Source}).Error; err != nil {
		return nil, err
	}

	createTime := s.now()
	if req.CreateTime != nil {
		createTime = *req.CreateTime
	}

	tr := models.Transcription{
		SubmissionID:      sub.ID,
		AuthorID:          author.ID,
		SourceName:        req.Source,
		OriginalID:        req.OriginalID,
		URL:               req.URL,
		Text:              req.Text,
		RemovedFromReddit: req.RemovedFromReddit,
		CreateTime:        createTime,
	}
	if err := s.db.Create(&tr).Error; err != nil {
		return nil, err
	}

	s.volunteers.InvalidateGamma(author.ID)
	return &tr, nil
}

// Search returns all transcriptions for a submission.
func (s *TranscriptionService) Search(submissionID uuid.UUID) ([]models.Transcription, error) {
	var trs []models.Transcription
	err := s.db.
		Where("submission_id = ?", submissionID).
		Order("create_time ASC").
		Find(&trs).Error
	return trs, err
}

// ReviewRandom picks a uniformly random human transcription created in
// the last hour, or nil when there is none.
func (s *TranscriptionService) ReviewRandom() (*models.Transcription, error) {
	cutoff := s.now().Add(-time.Hour)

	base := s.db.Model(&models.Transcription{}).
		Joins("JOIN users ON users.id = transcriptions.author_id").
		Where("transcriptions.create_time > ?", cutoff).
		Where("users.is_bot = ?", false)

	var count int64
	if err := base.Count(&count).Error; err != nil {
		return nil, err
	}
	if count == 0 {
		return nil, nil
	}

	var tr models.Transcription
	err := s.db.Model(&models.Transcription{}).
		Joins("JOIN users ON users.id = transcriptions.author_id").
		Where("transcriptions.create_time > ?", cutoff).
		Where("users.is_bot = ?", false).
		Order("transcriptions.create_time ASC").
		Offset(s.rand.Intn(int(count))).
		First(&tr).Error
	if err != nil {
		return nil, err
	}
	return &tr, nil
}

// GammaPlusOne mints a placeholder submission and transcription pair
// under the dedicated source, crediting one gamma to the user.
func (s *TranscriptionService) GammaPlusOne(userID uuid.UUID) (*models.Transcription, error) {
	user, err := s.volunteers.GetByID(userID)
	if err != nil {
		return nil, err
	}

	if err := s.db.Where(models.Source{Name: models.GammaPlusOneSource}).
		FirstOrCreate(&models.Source{Name: models.GammaPlusOneSource}).Error; err != nil {
		return nil, err
	}

	now := s.now()
	originalID := fmt.Sprintf("gamma-plus-one-%s-%d", user.ID, now.UnixNano())
	text := fmt.Sprintf("Mod-awarded dummy transcription for u/%s", user.Username)

	var tr models.Transcription
	err = s.db.Transaction(func(tx *gorm.DB) error {
		sub := models.Submission{
			OriginalID:    &originalID,
			SourceName:    models.GammaPlusOneSource,
			CreateTime:    now,
			ClaimTime:     &now,
			CompleteTime:  &now,
			ClaimedByID:   &user.ID,
			CompletedByID: &user.ID,
		}
		if err := tx.Create(&sub).Error; err != nil {
			return err
		}
		tr = models.Transcription{
			SubmissionID: sub.ID,
			AuthorID:     user.ID,
			SourceName:   models.GammaPlusOneSource,
			Text:         text,
			CreateTime:   now,
		}
		return tx.Create(&tr).Error
	})
	if err != nil {
		return nil, err
	}

	s.volunteers.InvalidateGamma(user.ID)
	return &tr, nil
}
