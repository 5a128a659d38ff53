package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ReactionType is the kind of affirmation a user leaves on a confession.
type ReactionType string

const (
	ReactionHug    ReactionType = "hug"
	ReactionRelate ReactionType = "relate"
)

// Valid reports whether t is hug or relate.
func (t ReactionType) Valid() bool {
	return t == ReactionHug || t == ReactionRelate
}

// CounterField returns the confession column this reaction type increments.
func (t ReactionType) CounterField() string {
	if t == ReactionRelate {
		return FieldRelateCount
	}
	return FieldHugCount
}

// Reaction records that a user hugged or related to a confession. There is at
// most one per (user, post, type); the index is deliberately not unique
// because the reaction engine owns that rule.
type Reaction struct {
	ID           string       `gorm:"primaryKey;type:varchar(36)" json:"id"`
	UserID       string       `gorm:"type:varchar(36);not null;index:idx_reactions_lookup" json:"user_id"`
	PostID       string       `gorm:"type:varchar(36);not null;index:idx_reactions_lookup" json:"post_id"`
	ReactionType ReactionType `gorm:"type:varchar(10);not null;index:idx_reactions_lookup" json:"reaction_type"`
	CreatedDate  time.Time    `gorm:"column:created_date;autoCreateTime" json:"created_date"`
}

// BeforeCreate assigns an id when the caller left it empty.
func (r *Reaction) BeforeCreate(_ *gorm.DB) error {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	return nil
}
