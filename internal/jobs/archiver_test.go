package jobs

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/opentranscribe/scribe-backend/internal/config"
	"github.com/opentranscribe/scribe-backend/internal/database"
	"github.com/opentranscribe/scribe-backend/internal/events"
	"github.com/opentranscribe/scribe-backend/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newArchiverFixture(t *testing.T) (*gorm.DB, *events.Recorder, *Archiver) {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, database.Migrate(db))

	cfg := &config.Config{
		ArchivistDelay:          20 * time.Hour,
		ArchivistCompletedDelay: time.Hour,
	}
	bus := &events.Recorder{}
	return db, bus, NewArchiver(db, bus, cfg)
}

func seedSubmission(t *testing.T, db *gorm.DB, mutate func(*models.Submission)) *models.Submission {
	t.Helper()

	require.NoError(t, db.Where(models.Source{Name: "reddit"}).FirstOrCreate(&models.Source{Name: "reddit"}).Error)
	originalID := uuid.NewString()[:8]
	sub := &models.Submission{OriginalID: &originalID, SourceName: "reddit"}
	if mutate != nil {
		mutate(sub)
	}
	require.NoError(t, db.Create(sub).Error)
	return sub
}

func TestRunArchivesAgedCompletions(t *testing.T) {
	db, _, archiver := newArchiverFixture(t)
	userID := uuid.New()

	past := time.Now().UTC().Add(-2 * time.Hour)
	recent := time.Now().UTC().Add(-10 * time.Minute)

	aged := seedSubmission(t, db, func(s *models.Submission) {
		s.ClaimedByID = &userID
		s.ClaimTime = &past
		s.CompletedByID = &userID
		s.CompleteTime = &past
	})
	fresh := seedSubmission(t, db, func(s *models.Submission) {
		s.ClaimedByID = &userID
		s.ClaimTime = &recent
		s.CompletedByID = &userID
		s.CompleteTime = &recent
	})
	open := seedSubmission(t, db, nil)

	archiver.Run()

	var got models.Submission
	require.NoError(t, db.First(&got, "id = ?", aged.ID).Error)
	assert.True(t, got.Archived)

	got = models.Submission{}
	require.NoError(t, db.First(&got, "id = ?", fresh.ID).Error)
	assert.False(t, got.Archived)

	got = models.Submission{}
	require.NoError(t, db.First(&got, "id = ?", open.ID).Error)
	assert.False(t, got.Archived)

	// A second pass finds nothing new.
	archiver.Run()
	var count int64
	db.Model(&models.Submission{}).Where("archived = ?", true).Count(&count)
	assert.EqualValues(t, 1, count)
}

func TestRunNagsStaleClaims(t *testing.T) {
	db, bus, archiver := newArchiverFixture(t)
	userID := uuid.New()

	staleTime := time.Now().UTC().Add(-30 * time.Hour)
	recent := time.Now().UTC().Add(-time.Hour)

	stale := seedSubmission(t, db, func(s *models.Submission) {
		s.ClaimedByID = &userID
		s.ClaimTime = &staleTime
	})
	seedSubmission(t, db, func(s *models.Submission) {
		s.ClaimedByID = &userID
		s.ClaimTime = &recent
	})
	// Completed claims are never nagged.
	seedSubmission(t, db, func(s *models.Submission) {
		s.ClaimedByID = &userID
		s.ClaimTime = &staleTime
		s.CompletedByID = &userID
		s.CompleteTime = &recent
	})

	archiver.Run()

	var nags []events.Event
	for _, ev := range bus.Events() {
		if ev.Kind == events.KindUnclaimRequested {
			nags = append(nags, ev)
		}
	}
	require.Len(t, nags, 1)
	assert.Equal(t, stale.ID, nags[0].SubmissionID)
	require.NotNil(t, nags[0].UserID)
	assert.Equal(t, userID, *nags[0].UserID)
}
