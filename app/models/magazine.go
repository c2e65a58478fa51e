package models

import (
	"time"

	"gorm.io/gorm"
)

// Magazine represents one magazine issue on the platform. The teaser
// (title, summary, cover) is public; the full content is gated behind an
// active subscription.
type Magazine struct {
	ID          uint64         `gorm:"primaryKey" json:"id"`
	Title       string         `gorm:"type:varchar(255)" json:"title" validate:"required,min=3,max=255"`
	Slug        string         `gorm:"uniqueIndex;type:varchar(255)" json:"slug" validate:"required,min=3,max=255"`
	IssueNumber int            `gorm:"default:0" json:"issue_number" validate:"gte=0"`
	Summary     string         `gorm:"type:text" json:"summary" validate:"max=2000"`
	Content     string         `gorm:"type:longtext" json:"content" validate:"required"`
	CoverPath   string         `gorm:"type:varchar(512);default:''" json:"cover_path"`
	ThumbPath   string         `gorm:"type:varchar(512);default:''" json:"thumb_path"`
	Published   bool           `gorm:"type:tinyint(1);default:0" json:"published"`
	ViewCount   uint64         `gorm:"default:0" json:"view_count"`
	UserID      uint           `gorm:"index" json:"user_id"`
	User        User           `gorm:"foreignKey:UserID" json:"user"`
	CreatedAt   time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt   gorm.DeletedAt `gorm:"index" json:"-"`
}

// TableName specifies the table name for the Magazine model
func (Magazine) TableName() string {
	return "magazines"
}
