package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Comment is a reply on a confession. The author is recorded but never
// serialized, so comments render anonymously.
type Comment struct {
	ID           string    `gorm:"primaryKey;type:varchar(36)" json:"id"`
	ConfessionID string    `gorm:"type:varchar(36);not null;index" json:"confession_id"`
	Content      string    `gorm:"type:varchar(500);not null" json:"content"`
	AuthorID     string    `gorm:"type:varchar(36);not null" json:"-"`
	HugCount     int64     `gorm:"not null;default:0" json:"hug_count"`
	IsSupportive bool      `gorm:"not null;default:true" json:"is_supportive"`
	IsReported   bool      `gorm:"not null;default:false" json:"is_reported"`
	CreatedDate  time.Time `gorm:"column:created_date;autoCreateTime;index" json:"created_date"`
}

// BeforeCreate assigns an id when the caller left it empty.
func (c *Comment) BeforeCreate(_ *gorm.DB) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	return nil
}
