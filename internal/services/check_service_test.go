package services

import (
	"testing"

	"github.com/opentranscribe/scribe-backend/internal/events"
	"github.com/opentranscribe/scribe-backend/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func (f *fixture) pendingCheck(t *testing.T, tr *models.Transcription) *models.TranscriptionCheck {
	t.Helper()

	check := &models.TranscriptionCheck{
		TranscriptionID: tr.ID,
		Trigger:         "Low activity",
		Status:          models.CheckPending,
	}
	require.NoError(t, f.db.Create(check).Error)
	return check
}

func TestMaybeCreateSamplesOnce(t *testing.T) {
	f := newFixture(t)
	author := f.user(t, "author")
	sub := f.submission(t, "reddit")
	tr := f.transcription(t, sub, author)

	// Low-activity author: always sampled.
	check, err := f.checks.MaybeCreate(sub, tr, author)
	require.NoError(t, err)
	require.NotNil(t, check)
	assert.Equal(t, models.CheckPending, check.Status)
	assert.Equal(t, "Low activity", check.Trigger)

	created := eventsOfKind(f.bus.Events(), events.KindCheckCreated)
	require.Len(t, created, 1)
	assert.Equal(t, sub.ID, created[0].SubmissionID)
	require.NotNil(t, created[0].CheckID)
	assert.Equal(t, check.ID, *created[0].CheckID)
	assert.Equal(t, "author", created[0].Username)

	// A second attempt hits the unique index: no row, no event.
	again, err := f.checks.MaybeCreate(sub, tr, author)
	require.NoError(t, err)
	assert.Nil(t, again)
	assert.Len(t, eventsOfKind(f.bus.Events(), events.KindCheckCreated), 1)
}

func TestMaybeCreateSkipsWhenDrawMisses(t *testing.T) {
	f := newFixture(t)
	author := f.user(t, "veteran")
	f.bumpGamma(t, author, 300)
	sub := f.submission(t, "reddit")
	tr := f.transcription(t, sub, author)

	// Gamma 301 draws at 1%; 0.99 misses.
	f.rand.Values = []float64{0.99}
	check, err := f.checks.MaybeCreate(sub, tr, author)
	require.NoError(t, err)
	assert.Nil(t, check)
	assert.Empty(t, eventsOfKind(f.bus.Events(), events.KindCheckCreated))
}

func TestCheckClaimOwnership(t *testing.T) {
	f := newFixture(t)
	author := f.user(t, "author")
	f.user(t, "mod1")
	f.user(t, "mod2")
	sub := f.submission(t, "reddit")
	tr := f.transcription(t, sub, author)
	check := f.pendingCheck(t, tr)

	// Authors cannot review themselves.
	_, err := f.checks.Claim(check.ID, "author")
	assert.ErrorIs(t, err, ErrSelfReview)

	got, err := f.checks.Claim(check.ID, "mod1")
	require.NoError(t, err)
	require.NotNil(t, got.ModeratorID)
	assert.NotNil(t, got.ClaimTime)

	// A claimed check belongs to its moderator.
	_, err = f.checks.Claim(check.ID, "mod2")
	assert.ErrorIs(t, err, ErrCheckOwnership)

	// Re-claiming by the same moderator is allowed.
	_, err = f.checks.Claim(check.ID, "mod1")
	assert.NoError(t, err)
}

func TestCheckUnclaim(t *testing.T) {
	f := newFixture(t)
	author := f.user(t, "author")
	f.user(t, "mod1")
	f.user(t, "mod2")
	sub := f.submission(t, "reddit")
	tr := f.transcription(t, sub, author)
	check := f.pendingCheck(t, tr)

	_, err := f.checks.Unclaim(check.ID, "mod1")
	assert.ErrorIs(t, err, ErrCheckNotClaimed)

	_, err = f.checks.Claim(check.ID, "mod1")
	require.NoError(t, err)

	_, err = f.checks.Unclaim(check.ID, "mod2")
	assert.ErrorIs(t, err, ErrCheckOwnership)

	got, err := f.checks.Unclaim(check.ID, "mod1")
	require.NoError(t, err)
	assert.Nil(t, got.ModeratorID)
	assert.Nil(t, got.ClaimTime)
}

func TestCheckStatusTransitions(t *testing.T) {
	f := newFixture(t)
	author := f.user(t, "author")
	f.user(t, "mod")
	sub := f.submission(t, "reddit")

	newCheck := func() *models.TranscriptionCheck {
		tr := f.transcription(t, sub, author, func(tr *models.Transcription) {
			id := "t-" + tr.SubmissionID.String()
			tr.OriginalID = &id
		})
		check := f.pendingCheck(t, tr)
		_, err := f.checks.Claim(check.ID, "mod")
		require.NoError(t, err)
		return check
	}

	t.Run("approve is terminal", func(t *testing.T) {
		check := newCheck()
		got, err := f.checks.SetStatus(check.ID, "mod", models.CheckApproved)
		require.NoError(t, err)
		assert.NotNil(t, got.CompleteTime)
		assert.True(t, got.Status.Terminal())

		_, err = f.checks.SetStatus(check.ID, "mod", models.CheckCommentPending)
		assert.ErrorIs(t, err, ErrCheckTransition)
		_, err = f.checks.Claim(check.ID, "mod")
		assert.ErrorIs(t, err, ErrCheckTransition)
	})

	t.Run("comment round trip", func(t *testing.T) {
		check := newCheck()
		got, err := f.checks.SetStatus(check.ID, "mod", models.CheckCommentPending)
		require.NoError(t, err)
		assert.Nil(t, got.CompleteTime)

		got, err = f.checks.SetStatus(check.ID, "mod", models.CheckCommentResolved)
		require.NoError(t, err)
		assert.NotNil(t, got.CompleteTime)

		// Resolved comments can be reopened; the completion stamp clears.
		got, err = f.checks.SetStatus(check.ID, "mod", models.CheckCommentPending)
		require.NoError(t, err)
		assert.Nil(t, got.CompleteTime)

		got, err = f.checks.SetStatus(check.ID, "mod", models.CheckCommentUnfixed)
		require.NoError(t, err)
		assert.NotNil(t, got.CompleteTime)
		assert.True(t, got.Status.Terminal())
	})

	t.Run("warning branch stays on its side", func(t *testing.T) {
		check := newCheck()
		_, err := f.checks.SetStatus(check.ID, "mod", models.CheckWarningPending)
		require.NoError(t, err)

		_, err = f.checks.SetStatus(check.ID, "mod", models.CheckCommentResolved)
		assert.ErrorIs(t, err, ErrCheckTransition)

		got, err := f.checks.SetStatus(check.ID, "mod", models.CheckWarningResolved)
		require.NoError(t, err)
		assert.NotNil(t, got.CompleteTime)
	})

	t.Run("pending cannot resolve directly", func(t *testing.T) {
		check := newCheck()
		_, err := f.checks.SetStatus(check.ID, "mod", models.CheckCommentResolved)
		assert.ErrorIs(t, err, ErrCheckTransition)
		_, err = f.checks.SetStatus(check.ID, "mod", models.CheckWarningUnfixed)
		assert.ErrorIs(t, err, ErrCheckTransition)
	})
}

func TestSetStatusRecordsModerator(t *testing.T) {
	f := newFixture(t)
	author := f.user(t, "author")
	mod := f.user(t, "mod")
	sub := f.submission(t, "reddit")
	tr := f.transcription(t, sub, author)
	check := f.pendingCheck(t, tr)

	// An unclaimed check can be acted on; the actor becomes the moderator.
	got, err := f.checks.SetStatus(check.ID, "mod", models.CheckApproved)
	require.NoError(t, err)
	require.NotNil(t, got.ModeratorID)
	assert.Equal(t, mod.ID, *got.ModeratorID)
}

func TestSetStatusRejectsOtherModerator(t *testing.T) {
	f := newFixture(t)
	author := f.user(t, "author")
	f.user(t, "mod1")
	f.user(t, "mod2")
	sub := f.submission(t, "reddit")
	tr := f.transcription(t, sub, author)
	check := f.pendingCheck(t, tr)

	_, err := f.checks.Claim(check.ID, "mod1")
	require.NoError(t, err)

	_, err = f.checks.SetStatus(check.ID, "mod2", models.CheckApproved)
	assert.ErrorIs(t, err, ErrCheckOwnership)
}
