package services

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/opentranscribe/scribe-backend/internal/config"
	"github.com/opentranscribe/scribe-backend/internal/database"
	"github.com/opentranscribe/scribe-backend/internal/events"
	"github.com/opentranscribe/scribe-backend/internal/models"
	"github.com/opentranscribe/scribe-backend/internal/rng"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	// A single connection keeps every query on the same in-memory DB.
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, database.Migrate(db))
	return db
}

type fixture struct {
	db             *gorm.DB
	bus            *events.Recorder
	rand           *rng.Fixed
	volunteers     *VolunteerService
	checks         *CheckService
	submissions    *SubmissionService
	transcriptions *TranscriptionService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	db := newTestDB(t)
	bus := &events.Recorder{}
	random := &rng.Fixed{Values: []float64{0.99}}

	volunteers := NewVolunteerService(db, random)
	checks := NewCheckService(db, volunteers, bus)
	submissions := NewSubmissionService(db, volunteers, checks, bus)
	transcriptions := NewTranscriptionService(db, volunteers, random)

	return &fixture{
		db:             db,
		bus:            bus,
		rand:           random,
		volunteers:     volunteers,
		checks:         checks,
		submissions:    submissions,
		transcriptions: transcriptions,
	}
}

func (f *fixture) user(t *testing.T, username string, mutate ...func(*models.User)) *models.User {
	t.Helper()

	user := &models.User{
		Username:    username,
		AcceptedCoC: true,
		JoinTime:    time.Now().UTC(),
	}
	for _, m := range mutate {
		m(user)
	}
	require.NoError(t, f.db.Create(user).Error)
	return user
}

func (f *fixture) submission(t *testing.T, source string, mutate ...func(*models.Submission)) *models.Submission {
	t.Helper()

	require.NoError(t, f.db.Where(models.Source{Name: source}).FirstOrCreate(&models.Source{Name: source}).Error)

	originalID := uuid.NewString()[:8]
	url := "https://reddit.com/r/" + source + "/comments/" + originalID
	sub := &models.Submission{
		OriginalID: &originalID,
		SourceName: source,
		URL:        &url,
		ContentURL: &url,
	}
	for _, m := range mutate {
		m(sub)
	}
	require.NoError(t, f.db.Create(sub).Error)
	return sub
}

func (f *fixture) transcription(t *testing.T, sub *models.Submission, author *models.User, mutate ...func(*models.Transcription)) *models.Transcription {
	t.Helper()

	tr := &models.Transcription{
		SubmissionID: sub.ID,
		AuthorID:     author.ID,
		SourceName:   sub.SourceName,
		Text:         "test transcription",
	}
	for _, m := range mutate {
		m(tr)
	}
	require.NoError(t, f.db.Create(tr).Error)
	f.volunteers.InvalidateGamma(author.ID)
	return tr
}

// bumpGamma inserts n transcriptions for the user against throwaway
// submissions.
func (f *fixture) bumpGamma(t *testing.T, user *models.User, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		sub := f.submission(t, "reddit")
		f.transcription(t, sub, user)
	}
}

func testConfig() *config.Config {
	return &config.Config{
		QueueTimeout:            18 * time.Hour,
		InProgressTimeout:       4 * time.Hour,
		ArchivistDelay:          20 * time.Hour,
		ArchivistCompletedDelay: time.Hour,
		EnableOCR:               true,
		OCRBotUsername:          "transcribot",
	}
}
