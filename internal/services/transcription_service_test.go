package services

import (
	"strings"
	"testing"
	"time"

	"github.com/opentranscribe/scribe-backend/internal/dto"
	"github.com/opentranscribe/scribe-backend/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateTranscription(t *testing.T) {
	f := newFixture(t)
	user := f.user(t, "writer")
	sub := f.submission(t, "reddit")

	_, err := f.transcriptions.Create(&dto.CreateTranscriptionRequest{
		SubmissionID: sub.ID, Source: "reddit", Text: "hi",
	})
	assert.ErrorIs(t, err, ErrMissingField)

	_, err = f.transcriptions.Create(&dto.CreateTranscriptionRequest{
		SubmissionID: sub.ID, Username: "writer", Text: "hi",
	})
	assert.ErrorIs(t, err, ErrMissingField)

	_, err = f.transcriptions.Create(&dto.CreateTranscriptionRequest{
		SubmissionID: sub.ID, Username: "ghost", Source: "reddit", Text: "hi",
	})
	assert.ErrorIs(t, err, ErrNotFound)

	backdated := time.Date(2021, 1, 1, 0, 0, 0, 0, time.UTC)
	tr, err := f.transcriptions.Create(&dto.CreateTranscriptionRequest{
		SubmissionID: sub.ID,
		Username:     "writer",
		Source:       "reddit",
		Text:         "Image transcription below.",
		CreateTime:   &backdated,
	})
	require.NoError(t, err)
	assert.Equal(t, user.ID, tr.AuthorID)
	assert.True(t, tr.CreateTime.Equal(backdated))

	// The insert counts toward gamma immediately.
	gamma, err := f.volunteers.Gamma(user.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 1, gamma)
}

func TestSearchBySubmission(t *testing.T) {
	f := newFixture(t)
	user := f.user(t, "writer")
	sub := f.submission(t, "reddit")
	other := f.submission(t, "reddit")

	f.transcription(t, sub, user)
	f.transcription(t, other, user)

	got, err := f.transcriptions.Search(sub.ID)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, sub.ID, got[0].SubmissionID)
}

func TestReviewRandom(t *testing.T) {
	f := newFixture(t)

	// Nothing recent: nil, no error.
	tr, err := f.transcriptions.ReviewRandom()
	require.NoError(t, err)
	assert.Nil(t, tr)

	human := f.user(t, "human")
	bot := f.user(t, "bot", func(u *models.User) { u.IsBot = true })

	recent := f.submission(t, "reddit")
	wanted := f.transcription(t, recent, human)

	// Bot output and stale rows are outside the review pool.
	botSub := f.submission(t, "reddit")
	f.transcription(t, botSub, bot)
	staleSub := f.submission(t, "reddit")
	f.transcription(t, staleSub, human, func(tr *models.Transcription) {
		tr.CreateTime = time.Now().UTC().Add(-2 * time.Hour)
	})

	tr, err = f.transcriptions.ReviewRandom()
	require.NoError(t, err)
	require.NotNil(t, tr)
	assert.Equal(t, wanted.ID, tr.ID)
}

func TestGammaPlusOne(t *testing.T) {
	f := newFixture(t)
	user := f.user(t, "awarded")

	tr, err := f.transcriptions.GammaPlusOne(user.ID)
	require.NoError(t, err)
	assert.Equal(t, models.GammaPlusOneSource, tr.SourceName)
	assert.Contains(t, tr.Text, "u/awarded")

	// The placeholder submission is pre-claimed and pre-completed by the
	// user, with a long generated original id.
	var sub models.Submission
	require.NoError(t, f.db.First(&sub, "id = ?", tr.SubmissionID).Error)
	require.NotNil(t, sub.CompletedByID)
	assert.Equal(t, user.ID, *sub.CompletedByID)
	require.NotNil(t, sub.OriginalID)
	assert.True(t, strings.HasPrefix(*sub.OriginalID, "gamma-plus-one-"))
	assert.Greater(t, len(*sub.OriginalID), 10)

	gamma, err := f.volunteers.Gamma(user.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 1, gamma)

	// Yeet takes it back out again.
	deleted, err := f.submissions.Yeet("awarded", 1)
	require.NoError(t, err)
	assert.EqualValues(t, 1, deleted)
	gamma, err = f.volunteers.Gamma(user.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 0, gamma)
}
