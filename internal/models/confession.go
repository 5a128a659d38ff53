package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Category groups confessions in the feed.
type Category string

const (
	CategoryDailyLife     Category = "daily_life"
	CategoryFunny         Category = "funny"
	CategoryRant          Category = "rant"
	CategoryRelationships Category = "relationships"
	CategoryDeepThoughts  Category = "deep_thoughts"
	CategorySchoolLife    Category = "school_life"
	CategoryAdviceNeeded  Category = "advice_needed"
	CategorySecret        Category = "secret"

	// CategoryAll is the filter sentinel that matches every category.
	CategoryAll Category = "all"
)

// Categories lists the postable categories in display order.
var Categories = []Category{
	CategoryDailyLife, CategoryFunny, CategoryRant, CategoryRelationships,
	CategoryDeepThoughts, CategorySchoolLife, CategoryAdviceNeeded, CategorySecret,
}

// Valid reports whether c is a postable category. CategoryAll is not.
func (c Category) Valid() bool {
	for _, v := range Categories {
		if c == v {
			return true
		}
	}
	return false
}

// Confession is a post in the feed. Content fields are fixed at creation;
// only the counters and report flags change afterwards.
type Confession struct {
	ID          string    `gorm:"primaryKey;type:varchar(36)" json:"id"`
	AuthorID    string    `gorm:"type:varchar(36);not null;index" json:"author_id"`
	Title       string    `gorm:"type:varchar(100);not null" json:"title"`
	Content     string    `gorm:"type:text;not null" json:"content"`
	Category    Category  `gorm:"type:varchar(20);not null;index" json:"category"`
	ImageURL    string    `json:"image_url,omitempty"`
	HugCount    int64     `gorm:"not null;default:0" json:"hug_count"`
	RelateCount int64     `gorm:"not null;default:0" json:"relate_count"`
	IsReported  bool      `gorm:"not null;default:false" json:"is_reported"`
	ReportCount int64     `gorm:"not null;default:0" json:"report_count"`
	CreatedDate time.Time `gorm:"column:created_date;autoCreateTime;index" json:"created_date"`
}

// TableName specifies the table name for GORM
func (Confession) TableName() string {
	return "confessions"
}

// BeforeCreate assigns an id when the caller left it empty.
func (c *Confession) BeforeCreate(_ *gorm.DB) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	return nil
}

// Counter columns that the engines mutate.
const (
	FieldHugCount       = "hug_count"
	FieldRelateCount    = "relate_count"
	FieldReportCount    = "report_count"
	FieldIsReported     = "is_reported"
	FieldFollowerCount  = "follower_count"
	FieldFollowingCount = "following_count"
	FieldCreatedDate    = "created_date"
)
