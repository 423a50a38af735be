package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// User is the volunteer projection consumed by the lifecycle core.
// Identity, sessions and login live elsewhere; this record carries only
// the flags and timestamps the state machine and sampler need.
type User struct {
	ID            uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	Username      string    `gorm:"size:255;not null" json:"username"`
	UsernameLower string    `gorm:"size:255;not null;uniqueIndex" json:"-"`
	IsBot         bool      `gorm:"default:false" json:"is_bot"`
	Blocked       bool      `gorm:"default:false" json:"blocked"`
	AcceptedCoC   bool      `gorm:"column:accepted_coc;default:false" json:"accepted_coc"`
	JoinTime      time.Time `gorm:"not null;index" json:"join_time"`
	// OverrideCheckPercentage, when set by a mod, wins over the automatic
	// gamma-based table. Range [0,1].
	OverrideCheckPercentage *float64  `json:"override_check_percentage,omitempty"`
	CreatedAt               time.Time `json:"created_at"`
	UpdatedAt               time.Time `json:"updated_at"`
}

func (u *User) BeforeCreate(_ *gorm.DB) error {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	if u.UsernameLower == "" {
		u.UsernameLower = strings.ToLower(u.Username)
	}
	if u.JoinTime.IsZero() {
		u.JoinTime = time.Now().UTC()
	}
	return nil
}
