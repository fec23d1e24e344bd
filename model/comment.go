package model

import (
	"time"
)

// Comment is a rated review left by a user on an activity
type Comment struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	Content    string    `gorm:"type:text;not null" json:"content"`
	Picture    string    `gorm:"type:varchar(512)" json:"picture"`
	StarNumber int       `gorm:"not null;default:5" json:"star_number"`
	UserID     uint      `gorm:"not null;index" json:"user_id"`
	ActivityID uint      `gorm:"not null;index" json:"activity_id"`
	CreatedAt  time.Time `json:"create_time"`

	// Relationships
	User     User     `gorm:"foreignKey:UserID" json:"-"`
	Activity Activity `gorm:"foreignKey:ActivityID" json:"-"`
}

// TableName specifies the table name for Comment
func (Comment) TableName() string {
	return "comments"
}
