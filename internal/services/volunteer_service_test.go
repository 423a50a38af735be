package services

import (
	"testing"
	"time"

	"github.com/opentranscribe/scribe-backend/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateVolunteerDuplicate(t *testing.T) {
	f := newFixture(t)

	_, err := f.volunteers.Create("Transcriber")
	require.NoError(t, err)

	// Case-insensitive collision.
	_, err = f.volunteers.Create("tRaNsCrIbEr")
	assert.ErrorIs(t, err, ErrDuplicateUser)
}

func TestGetByUsernameCaseInsensitive(t *testing.T) {
	f := newFixture(t)
	f.user(t, "MixedCase")

	user, err := f.volunteers.GetByUsername("mixedcase")
	require.NoError(t, err)
	assert.Equal(t, "MixedCase", user.Username)

	_, err = f.volunteers.GetByUsername("nobody")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestGammaCountsAndCache(t *testing.T) {
	f := newFixture(t)
	user := f.user(t, "counter")

	gamma, err := f.volunteers.Gamma(user.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 0, gamma)

	f.bumpGamma(t, user, 3)
	gamma, err = f.volunteers.Gamma(user.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 3, gamma)

	// Without invalidation the cache serves the stale count.
	sub := f.submission(t, "reddit")
	require.NoError(t, f.db.Create(&models.Transcription{
		SubmissionID: sub.ID,
		AuthorID:     user.ID,
		SourceName:   "reddit",
		Text:         "x",
	}).Error)
	gamma, _ = f.volunteers.Gamma(user.ID)
	assert.EqualValues(t, 3, gamma)

	f.volunteers.InvalidateGamma(user.ID)
	gamma, _ = f.volunteers.Gamma(user.ID)
	assert.EqualValues(t, 4, gamma)
}

func TestAutoCheckPercentageTable(t *testing.T) {
	cases := []struct {
		gamma int64
		want  float64
	}{
		{0, 1.00},
		{10, 1.00},
		{11, 0.50},
		{50, 0.50},
		{51, 0.30},
		{100, 0.30},
		{101, 0.15},
		{250, 0.15},
		{251, 0.05},
		{300, 0.05},
		{301, 0.01},
		{5000, 0.01},
		{5001, 0.005},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, AutoCheckPercentage(tc.gamma), "gamma=%d", tc.gamma)
	}
}

func TestShouldCheckLowActivity(t *testing.T) {
	f := newFixture(t)
	user := f.user(t, "newbie")
	f.bumpGamma(t, user, 2)

	// Draw would fail the percentage test, but low activity wins.
	f.rand.Values = []float64{0.99}
	check, reason, err := f.volunteers.ShouldCheck(user)
	require.NoError(t, err)
	assert.True(t, check)
	assert.Equal(t, "Low activity", reason)
}

func TestShouldCheckDeterministicDraw(t *testing.T) {
	f := newFixture(t)
	user := f.user(t, "veteran")
	f.bumpGamma(t, user, 300) // auto rate 0.05, not low activity

	f.rand.Values = []float64{0.04}
	check, reason, err := f.volunteers.ShouldCheck(user)
	require.NoError(t, err)
	assert.True(t, check)
	assert.Equal(t, "Automatic (5%)", reason)

	f.rand.Values = []float64{0.10}
	check, _, err = f.volunteers.ShouldCheck(user)
	require.NoError(t, err)
	assert.False(t, check)
}

func TestShouldCheckOverride(t *testing.T) {
	f := newFixture(t)
	override := 0.8
	user := f.user(t, "watched", func(u *models.User) {
		u.OverrideCheckPercentage = &override
	})
	f.bumpGamma(t, user, 300)

	f.rand.Values = []float64{0.5}
	check, reason, err := f.volunteers.ShouldCheck(user)
	require.NoError(t, err)
	assert.True(t, check)
	assert.Equal(t, "Watched (80%)", reason)
}

func TestGammaInWindow(t *testing.T) {
	f := newFixture(t)
	user := f.user(t, "windowed")
	now := time.Now().UTC()

	sub := f.submission(t, "reddit")
	f.transcription(t, sub, user, func(tr *models.Transcription) {
		tr.CreateTime = now.Add(-30 * 24 * time.Hour)
	})
	sub2 := f.submission(t, "reddit")
	f.transcription(t, sub2, user, func(tr *models.Transcription) {
		tr.CreateTime = now.Add(-time.Hour)
	})

	recent, err := f.volunteers.RecentActivity(user.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 1, recent)

	total, err := f.volunteers.Gamma(user.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 2, total)
}

func TestRankThresholds(t *testing.T) {
	assert.Equal(t, "Visitor", Rank(0))
	assert.Equal(t, "Initiate", Rank(1))
	assert.Equal(t, "Pink", Rank(25))
	assert.Equal(t, "Green", Rank(99))
	assert.Equal(t, "Teal", Rank(100))
	assert.Equal(t, "Sapphire", Rank(50000))

	rank, up := RankedUp(24, 25)
	assert.True(t, up)
	assert.Equal(t, "Pink", rank)

	_, up = RankedUp(26, 27)
	assert.False(t, up)
}

func TestAcceptCoC(t *testing.T) {
	f := newFixture(t)
	f.user(t, "shy", func(u *models.User) { u.AcceptedCoC = false })

	user, err := f.volunteers.AcceptCoC("shy")
	require.NoError(t, err)
	assert.True(t, user.AcceptedCoC)

	var stored models.User
	require.NoError(t, f.db.Where("username_lower = ?", "shy").First(&stored).Error)
	assert.True(t, stored.AcceptedCoC)
}
