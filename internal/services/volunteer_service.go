package services

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/opentranscribe/scribe-backend/internal/models"
	"github.com/opentranscribe/scribe-backend/internal/rng"
	"gorm.io/gorm"
)

const (
	lowActivityThreshold = 10
	recentActivityWindow = 14 * 24 * time.Hour
)

// gammaRanks maps gamma thresholds to rank names, highest threshold at
// or below the user's gamma wins.
var gammaRanks = []struct {
	Threshold int64
	Name      string
}{
	{0, "Visitor"},
	{1, "Initiate"},
	{25, "Pink"},
	{50, "Green"},
	{100, "Teal"},
	{250, "Purple"},
	{500, "Gold"},
	{1000, "Diamond"},
	{2500, "Ruby"},
	{5000, "Topaz"},
	{10000, "Jade"},
	{20000, "Sapphire"},
}

// VolunteerService is the read-mostly user projection: gamma counts,
// activity, check rates and ranks are pure functions of committed state.
// The gamma cache is invalidated on every transcription insert/delete.
type VolunteerService struct {
	db   *gorm.DB
	rand rng.Source
	now  func() time.Time

	mu         sync.RWMutex
	gammaCache map[uuid.UUID]int64
}

func NewVolunteerService(db *gorm.DB, rand rng.Source) *VolunteerService {
	return &VolunteerService{
		db:         db,
		rand:       rand,
		now:        func() time.Time { return time.Now().UTC() },
		gammaCache: make(map[uuid.UUID]int64),
	}
}

func (s *VolunteerService) GetByID(id uuid.UUID) (*models.User, error) {
	var user models.User
	if err := s.db.Where("id = ?", id).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &user, nil
}

// GetByUsername resolves a user case-insensitively via the normalized
// username_lower column.
func (s *VolunteerService) GetByUsername(username string) (*models.User, error) {
	var user models.User
	if err := s.db.Where("username_lower = ?", strings.ToLower(username)).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &user, nil
}

func (s *VolunteerService) Create(username string) (*models.User, error) {
	if strings.TrimSpace(username) == "" {
		return nil, fmt.Errorf("%w: username", ErrMissingField)
	}

	user := models.User{
		Username:      username,
		UsernameLower: strings.ToLower(username),
		JoinTime:      s.now(),
	}
	if err := s.db.Create(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, ErrDuplicateUser
		}
		return nil, err
	}
	return &user, nil
}

func (s *VolunteerService) AcceptCoC(username string) (*models.User, error) {
	user, err := s.GetByUsername(username)
	if err != nil {
		return nil, err
	}
	if err := s.db.Model(user).Update("accepted_coc", true).Error; err != nil {
		return nil, err
	}
	user.AcceptedCoC = true
	return user, nil
}

// Gamma is the count of transcriptions authored by the user, regardless
// of submission state.
func (s *VolunteerService) Gamma(userID uuid.UUID) (int64, error) {
	s.mu.RLock()
	cached, ok := s.gammaCache[userID]
	s.mu.RUnlock()
	if ok {
		return cached, nil
	}

	var count int64
	if err := s.db.Model(&models.Transcription{}).Where("author_id = ?", userID).Count(&count).Error; err != nil {
		return 0, err
	}

	s.mu.Lock()
	s.gammaCache[userID] = count
	s.mu.Unlock()
	return count, nil
}

// GammaIn counts the user's transcriptions with create_time in [from, to).
func (s *VolunteerService) GammaIn(userID uuid.UUID, from, to time.Time) (int64, error) {
	var count int64
	err := s.db.Model(&models.Transcription{}).
		Where("author_id = ? AND create_time >= ? AND create_time < ?", userID, from, to).
		Count(&count).Error
	return count, err
}

// InvalidateGamma must be called after any transcription insert or
// delete touching the user.
func (s *VolunteerService) InvalidateGamma(userID uuid.UUID) {
	s.mu.Lock()
	delete(s.gammaCache, userID)
	s.mu.Unlock()
}

// RecentActivity is the gamma earned in the last 14 days.
func (s *VolunteerService) RecentActivity(userID uuid.UUID) (int64, error) {
	now := s.now()
	return s.GammaIn(userID, now.Add(-recentActivityWindow), now)
}

// LowActivity is true for users with little total or recent history;
// their completions are always checked.
func (s *VolunteerService) LowActivity(userID uuid.UUID) (bool, error) {
	gamma, err := s.Gamma(userID)
	if err != nil {
		return false, err
	}
	if gamma <= lowActivityThreshold {
		return true, nil
	}
	recent, err := s.RecentActivity(userID)
	if err != nil {
		return false, err
	}
	return recent <= lowActivityThreshold, nil
}

// AutoCheckPercentage is the stepwise gamma-based sampling table.
func AutoCheckPercentage(gamma int64) float64 {
	switch {
	case gamma <= 10:
		return 1.00
	case gamma <= 50:
		return 0.50
	case gamma <= 100:
		return 0.30
	case gamma <= 250:
		return 0.15
	case gamma <= 300:
		return 0.05
	case gamma <= 5000:
		return 0.01
	default:
		return 0.005
	}
}

// CheckPercentage applies the mod override when present, otherwise the
// automatic table.
func (s *VolunteerService) CheckPercentage(user *models.User) (float64, error) {
	if user.OverrideCheckPercentage != nil {
		return *user.OverrideCheckPercentage, nil
	}
	gamma, err := s.Gamma(user.ID)
	if err != nil {
		return 0, err
	}
	return AutoCheckPercentage(gamma), nil
}

// ShouldCheck decides whether a completion gets a transcription check
// and names the trigger.
func (s *VolunteerService) ShouldCheck(user *models.User) (bool, string, error) {
	low, err := s.LowActivity(user.ID)
	if err != nil {
		return false, "", err
	}
	if low {
		return true, "Low activity", nil
	}

	percentage, err := s.CheckPercentage(user)
	if err != nil {
		return false, "", err
	}
	if s.rand.Float64() > percentage {
		return false, "", nil
	}
	if user.OverrideCheckPercentage != nil {
		return true, fmt.Sprintf("Watched (%s)", formatPercentage(percentage)), nil
	}
	return true, fmt.Sprintf("Automatic (%s)", formatPercentage(percentage)), nil
}

// Rank is the highest gamma threshold reached.
func Rank(gamma int64) string {
	name := gammaRanks[0].Name
	for _, r := range gammaRanks {
		if gamma >= r.Threshold {
			name = r.Name
		}
	}
	return name
}

// RankedUp reports the rank reached when gamma moved from before to
// after, if the move crossed a threshold.
func RankedUp(before, after int64) (string, bool) {
	ra := Rank(after)
	if Rank(before) != ra {
		return ra, true
	}
	return "", false
}

func formatPercentage(p float64) string {
	return fmt.Sprintf("%g%%", p*100)
}
