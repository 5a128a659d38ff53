// Package models contains data structures for the application's domain models.
package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// AvatarColor is the color of a user's initial badge.
type AvatarColor string

const (
	AvatarPurple AvatarColor = "purple"
	AvatarBlue   AvatarColor = "blue"
	AvatarGreen  AvatarColor = "green"
	AvatarPink   AvatarColor = "pink"
	AvatarOrange AvatarColor = "orange"
	AvatarTeal   AvatarColor = "teal"
	AvatarRed    AvatarColor = "red"
	AvatarIndigo AvatarColor = "indigo"
)

// AvatarColors lists every selectable avatar color in display order.
var AvatarColors = []AvatarColor{
	AvatarPurple, AvatarBlue, AvatarGreen, AvatarPink,
	AvatarOrange, AvatarTeal, AvatarRed, AvatarIndigo,
}

// Valid reports whether c is one of AvatarColors.
func (c AvatarColor) Valid() bool {
	for _, v := range AvatarColors {
		if c == v {
			return true
		}
	}
	return false
}

// User is created on first sign-in without a username. The username is
// unique once set and never changes afterwards.
type User struct {
	ID             string      `gorm:"primaryKey;type:varchar(36)" json:"id"`
	Username       string      `gorm:"type:varchar(20);uniqueIndex:idx_users_username,where:username <> ''" json:"username"`
	DisplayName    string      `gorm:"type:varchar(30)" json:"display_name"`
	Bio            string      `gorm:"type:varchar(150)" json:"bio"`
	AvatarColor    AvatarColor `gorm:"type:varchar(10);not null;default:'purple'" json:"avatar_color"`
	FollowerCount  int64       `gorm:"not null;default:0" json:"follower_count"`
	FollowingCount int64       `gorm:"not null;default:0" json:"following_count"`
	CreatedDate    time.Time   `gorm:"column:created_date;autoCreateTime;index" json:"created_date"`
}

// IsComplete reports whether the user has finished profile setup.
func (u *User) IsComplete() bool {
	return u != nil && u.Username != "" && u.DisplayName != ""
}

// BeforeCreate assigns an id and the default avatar color.
func (u *User) BeforeCreate(_ *gorm.DB) error {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	if u.AvatarColor == "" {
		u.AvatarColor = AvatarPurple
	}
	return nil
}
