package services

import (
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/opentranscribe/scribe-backend/internal/dto"
	"github.com/opentranscribe/scribe-backend/internal/models"
	"github.com/opentranscribe/scribe-backend/internal/queryfilter"
	"gorm.io/gorm"
)

var rateFrames = map[string]bool{
	"second": true,
	"hour":   true,
	"day":    true,
	"week":   true,
	"month":  true,
	"year":   true,
}

// leaderboardFields rebinds the shared filter dimensions onto the
// transcription join used for gamma counting.
var leaderboardFields = queryfilter.Whitelist{
	"create_time":   {Column: "transcriptions.create_time", Kind: queryfilter.Time},
	"complete_time": {Column: "transcriptions.create_time", Kind: queryfilter.Time},
	"source":        {Column: "transcriptions.source_name", Kind: queryfilter.String},
}

// AggregationService is read-only over the store: rates, heatmaps,
// leaderboards and subreddit rollups. Bucketing happens in Go because
// the wire accepts arbitrary minute-level UTC offsets that SQL
// date_trunc cannot express portably.
type AggregationService struct {
	db *gorm.DB
}

func NewAggregationService(db *gorm.DB) *AggregationService {
	return &AggregationService{db: db}
}

// Rate groups completions into time buckets of the given frame,
// truncated in the caller's UTC offset. Buckets with zero completions
// are omitted; pages run date-ascending.
func (s *AggregationService) Rate(params map[string]string, timeFrame string, loc *time.Location, page, pageSize int) ([]dto.RateBucket, int64, error) {
	if !rateFrames[timeFrame] {
		return nil, 0, ErrInvalidTimeFrame
	}

	times, err := s.completeTimes(params)
	if err != nil {
		return nil, 0, err
	}

	counts := make(map[time.Time]int64)
	for _, t := range times {
		counts[truncateTo(t, timeFrame, loc)]++
	}

	buckets := make([]time.Time, 0, len(counts))
	for b := range counts {
		buckets = append(buckets, b)
	}
	sort.Slice(buckets, func(i, j int) bool { return buckets[i].Before(buckets[j]) })

	total := int64(len(buckets))
	offset, limit := queryfilter.Page(page, pageSize)
	if offset >= len(buckets) {
		return []dto.RateBucket{}, total, nil
	}
	end := offset + limit
	if end > len(buckets) {
		end = len(buckets)
	}

	out := make([]dto.RateBucket, 0, end-offset)
	for _, b := range buckets[offset:end] {
		out = append(out, dto.RateBucket{
			Date:  b.Format(time.RFC3339),
			Count: counts[b],
		})
	}
	return out, total, nil
}

// Heatmap buckets completions by (ISO weekday, hour of day) in the
// caller's UTC offset, sorted by day then hour. Empty cells omitted.
func (s *AggregationService) Heatmap(params map[string]string, loc *time.Location) ([]dto.HeatmapCell, error) {
	times, err := s.completeTimes(params)
	if err != nil {
		return nil, err
	}

	type cell struct{ day, hour int }
	counts := make(map[cell]int64)
	for _, t := range times {
		local := t.In(loc)
		day := int(local.Weekday()+6)%7 + 1 // ISO: Monday=1 .. Sunday=7
		counts[cell{day, local.Hour()}]++
	}

	cells := make([]cell, 0, len(counts))
	for c := range counts {
		cells = append(cells, c)
	}
	sort.Slice(cells, func(i, j int) bool {
		if cells[i].day != cells[j].day {
			return cells[i].day < cells[j].day
		}
		return cells[i].hour < cells[j].hour
	})

	out := make([]dto.HeatmapCell, 0, len(cells))
	for _, c := range cells {
		out = append(out, dto.HeatmapCell{Day: c.day, Hour: c.hour, Count: counts[c]})
	}
	return out, nil
}

// Leaderboard materializes a dense ranking by gamma descending, ties
// broken by join_time descending, and returns the top slice plus the
// requested user's neighborhood.
func (s *AggregationService) Leaderboard(params map[string]string, userID *uuid.UUID, topCount, aboveCount, belowCount int) (*dto.LeaderboardResponse, error) {
	type row struct {
		ID       uuid.UUID
		Username string
		JoinTime time.Time
		Gamma    int64
	}

	q := s.db.Table("users").
		Select("users.id AS id, users.username AS username, users.join_time AS join_time, COUNT(transcriptions.id) AS gamma").
		Joins("JOIN transcriptions ON transcriptions.author_id = users.id").
		Where("users.is_bot = ? AND users.blocked = ?", false, false).
		Group("users.id, users.username, users.join_time")
	q, err := queryfilter.Apply(q, params, leaderboardFields)
	if err != nil {
		return nil, err
	}

	var rows []row
	if err := q.Scan(&rows).Error; err != nil {
		return nil, err
	}

	sort.Slice(rows, func(i, j int) bool {
		if rows[i].Gamma != rows[j].Gamma {
			return rows[i].Gamma > rows[j].Gamma
		}
		return rows[i].JoinTime.After(rows[j].JoinTime)
	})

	entries := make([]dto.LeaderboardEntry, len(rows))
	for i, r := range rows {
		entries[i] = dto.LeaderboardEntry{
			ID:       r.ID,
			Username: r.Username,
			Gamma:    r.Gamma,
			Rank:     i + 1,
		}
	}

	resp := &dto.LeaderboardResponse{Top: head(entries, topCount)}
	if userID == nil {
		return resp, nil
	}

	idx := -1
	for i := range entries {
		if entries[i].ID == *userID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return nil, ErrNotFound
	}

	user := entries[idx]
	resp.User = &user

	// Neighbors ordered by rank proximity to the user.
	above := make([]dto.LeaderboardEntry, 0, aboveCount)
	for i := idx - 1; i >= 0 && len(above) < aboveCount; i-- {
		above = append(above, entries[i])
	}
	below := make([]dto.LeaderboardEntry, 0, belowCount)
	for i := idx + 1; i < len(entries) && len(below) < belowCount; i++ {
		below = append(below, entries[i])
	}
	resp.Above = above
	resp.Below = below
	return resp, nil
}

// Subreddits extracts the /r/<name> path segment from each submission
// url and aggregates counts in descending order.
func (s *AggregationService) Subreddits(params map[string]string) ([]dto.SubredditCount, error) {
	q := s.db.Model(&models.Submission{}).Where("url IS NOT NULL")
	q, err := queryfilter.Apply(q, params, queryfilter.SubmissionFields)
	if err != nil {
		return nil, err
	}

	var urls []string
	if err := q.Pluck("url", &urls).Error; err != nil {
		return nil, err
	}

	counts := make(map[string]int64)
	for _, u := range urls {
		if sub, ok := subredditFromURL(u); ok {
			counts[sub]++
		}
	}

	out := make([]dto.SubredditCount, 0, len(counts))
	for name, n := range counts {
		out = append(out, dto.SubredditCount{Subreddit: name, Count: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Subreddit < out[j].Subreddit
	})
	return out, nil
}

func (s *AggregationService) completeTimes(params map[string]string) ([]time.Time, error) {
	q := s.db.Model(&models.Submission{}).Where("complete_time IS NOT NULL")
	q, err := queryfilter.Apply(q, params, queryfilter.SubmissionFields)
	if err != nil {
		return nil, err
	}
	var times []time.Time
	if err := q.Pluck("complete_time", &times).Error; err != nil {
		return nil, err
	}
	return times, nil
}

func truncateTo(t time.Time, frame string, loc *time.Location) time.Time {
	t = t.In(loc)
	y, mo, d := t.Date()
	switch frame {
	case "second":
		return time.Date(y, mo, d, t.Hour(), t.Minute(), t.Second(), 0, loc)
	case "hour":
		return time.Date(y, mo, d, t.Hour(), 0, 0, 0, loc)
	case "day":
		return time.Date(y, mo, d, 0, 0, 0, 0, loc)
	case "week":
		// ISO week starts Monday.
		back := (int(t.Weekday()) + 6) % 7
		return time.Date(y, mo, d-back, 0, 0, 0, 0, loc)
	case "month":
		return time.Date(y, mo, 1, 0, 0, 0, 0, loc)
	default: // year
		return time.Date(y, 1, 1, 0, 0, 0, 0, loc)
	}
}

func subredditFromURL(u string) (string, bool) {
	i := strings.Index(u, "/r/")
	if i < 0 {
		return "", false
	}
	rest := u[i+len("/r/"):]
	if j := strings.IndexByte(rest, '/'); j >= 0 {
		rest = rest[:j]
	}
	if rest == "" {
		return "", false
	}
	return rest, true
}

func head(entries []dto.LeaderboardEntry, n int) []dto.LeaderboardEntry {
	if n < 0 {
		n = 0
	}
	if n > len(entries) {
		n = len(entries)
	}
	out := make([]dto.LeaderboardEntry, n)
	copy(out, entries[:n])
	return out
}
