package services

import (
	"testing"
	"time"

	"github.com/opentranscribe/scribe-backend/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newQueueFixture(t *testing.T) (*fixture, *QueueService) {
	t.Helper()
	f := newFixture(t)
	return f, NewQueueService(f.db, testConfig(), f.volunteers)
}

func TestExpiredQueue(t *testing.T) {
	f, queues := newQueueFixture(t)
	user := f.user(t, "worker")

	old := f.submission(t, "reddit", func(s *models.Submission) {
		s.CreateTime = time.Now().UTC().Add(-24 * time.Hour)
	})
	fresh := f.submission(t, "reddit", func(s *models.Submission) {
		s.CreateTime = time.Now().UTC().Add(-time.Hour)
	})
	// Claimed, removed, and foreign-source rows never show up.
	f.submission(t, "reddit", func(s *models.Submission) {
		s.CreateTime = time.Now().UTC().Add(-24 * time.Hour)
		s.ClaimedByID = &user.ID
	})
	f.submission(t, "reddit", func(s *models.Submission) {
		s.CreateTime = time.Now().UTC().Add(-24 * time.Hour)
		s.RemovedFromQueue = true
	})
	f.submission(t, "blog", func(s *models.Submission) {
		s.CreateTime = time.Now().UTC().Add(-24 * time.Hour)
	})

	// Default threshold (18h): only the day-old row qualifies.
	subs, err := queues.Expired("reddit", 0, false)
	require.NoError(t, err)
	require.Len(t, subs, 1)
	assert.Equal(t, old.ID, subs[0].ID)

	// Explicit 30-minute threshold pulls in the fresh row too.
	subs, err = queues.Expired("reddit", 0.5, false)
	require.NoError(t, err)
	require.Len(t, subs, 2)
	assert.Equal(t, old.ID, subs[0].ID)
	assert.Equal(t, fresh.ID, subs[1].ID)

	// CTQ ignores age entirely.
	subs, err = queues.Expired("reddit", 48, true)
	require.NoError(t, err)
	assert.Len(t, subs, 2)
}

func TestInProgressQueue(t *testing.T) {
	f, queues := newQueueFixture(t)
	user := f.user(t, "worker")

	stale := time.Now().UTC().Add(-6 * time.Hour)
	recent := time.Now().UTC().Add(-time.Hour)

	staleSub := f.submission(t, "reddit", func(s *models.Submission) {
		s.ClaimedByID = &user.ID
		s.ClaimTime = &stale
	})
	f.submission(t, "reddit", func(s *models.Submission) {
		s.ClaimedByID = &user.ID
		s.ClaimTime = &recent
	})
	// Completed claims are out of scope.
	f.submission(t, "reddit", func(s *models.Submission) {
		s.ClaimedByID = &user.ID
		s.ClaimTime = &stale
		s.CompletedByID = &user.ID
		s.CompleteTime = &recent
	})

	subs, err := queues.InProgress("reddit", 0)
	require.NoError(t, err)
	require.Len(t, subs, 1)
	assert.Equal(t, staleSub.ID, subs[0].ID)
}

func TestUnarchivedQueue(t *testing.T) {
	f, queues := newQueueFixture(t)
	user := f.user(t, "worker")

	past := time.Now().UTC().Add(-2 * time.Hour)
	justDone := time.Now().UTC().Add(-10 * time.Minute)

	due := f.submission(t, "reddit", func(s *models.Submission) {
		s.ClaimedByID = &user.ID
		s.ClaimTime = &past
		s.CompletedByID = &user.ID
		s.CompleteTime = &past
	})
	// Still inside the completed delay.
	f.submission(t, "reddit", func(s *models.Submission) {
		s.ClaimedByID = &user.ID
		s.ClaimTime = &past
		s.CompletedByID = &user.ID
		s.CompleteTime = &justDone
	})
	// Already archived.
	f.submission(t, "reddit", func(s *models.Submission) {
		s.ClaimedByID = &user.ID
		s.ClaimTime = &past
		s.CompletedByID = &user.ID
		s.CompleteTime = &past
		s.Archived = true
	})

	subs, err := queues.Unarchived("reddit")
	require.NoError(t, err)
	require.Len(t, subs, 1)
	assert.Equal(t, due.ID, subs[0].ID)
}

func TestOCRQueueProjection(t *testing.T) {
	f, queues := newQueueFixture(t)
	bot := f.user(t, "transcribot", func(u *models.User) { u.IsBot = true })
	human := f.user(t, "human")

	torURL := "https://reddit.com/r/TranscribersOfReddit/abc"
	pending := f.submission(t, "reddit", func(s *models.Submission) { s.TorURL = &torURL })
	f.transcription(t, pending, bot, func(tr *models.Transcription) {
		tr.Text = "bot text"
	})

	// Already posted externally.
	posted := f.submission(t, "reddit")
	f.transcription(t, posted, bot, func(tr *models.Transcription) {
		id := "ext-1"
		tr.OriginalID = &id
	})

	// A human transcription is not OCR output.
	humanSub := f.submission(t, "reddit")
	f.transcription(t, humanSub, human)

	// Flagged un-OCRable.
	noOCR := f.submission(t, "reddit", func(s *models.Submission) { s.CannotOCR = true })
	f.transcription(t, noOCR, bot)

	items, err := queues.OCRQueue("reddit", 10)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, pending.ID, items[0].ID)
	require.NotNil(t, items[0].TorURL)
	assert.Equal(t, torURL, *items[0].TorURL)
	assert.Equal(t, "bot text", items[0].TranscriptionText)
}

func TestOCRQueueDisabledOrNoBot(t *testing.T) {
	f := newFixture(t)

	cfg := testConfig()
	cfg.EnableOCR = false
	queues := NewQueueService(f.db, cfg, f.volunteers)
	items, err := queues.OCRQueue("reddit", 10)
	require.NoError(t, err)
	assert.Empty(t, items)

	// Enabled but the bot account does not exist yet.
	cfg = testConfig()
	queues = NewQueueService(f.db, cfg, f.volunteers)
	items, err = queues.OCRQueue("reddit", 10)
	require.NoError(t, err)
	assert.Empty(t, items)
}

func TestOCRQueueLimit(t *testing.T) {
	f, queues := newQueueFixture(t)
	bot := f.user(t, "transcribot", func(u *models.User) { u.IsBot = true })

	for i := 0; i < 3; i++ {
		sub := f.submission(t, "reddit")
		f.transcription(t, sub, bot)
	}

	items, err := queues.OCRQueue("reddit", 2)
	require.NoError(t, err)
	assert.Len(t, items, 2)

	// limit <= 0 means unbounded.
	items, err = queues.OCRQueue("reddit", -1)
	require.NoError(t, err)
	assert.Len(t, items, 3)
}
