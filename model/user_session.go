package model

import (
	"time"
)

// UserSession is one authenticated device of a user, keyed by its signed token
type UserSession struct {
	ID             uint       `gorm:"primaryKey" json:"id"`
	UserID         uint       `gorm:"not null;index:idx_user_sessions_user_active" json:"user_id"`
	Token          string     `gorm:"type:varchar(1024);not null;uniqueIndex" json:"-"`
	DeviceInfo     string     `gorm:"type:varchar(255)" json:"device_info,omitempty"`
	UserAgent      string     `gorm:"type:text" json:"user_agent,omitempty"`
	IPAddress      string     `gorm:"type:varchar(45)" json:"ip_address,omitempty"`
	IsActive       bool       `gorm:"not null;index:idx_user_sessions_user_active" json:"is_active"`
	LoginTime      time.Time  `gorm:"not null" json:"login_time"`
	LastActiveTime time.Time  `gorm:"not null;index" json:"last_active_time"`
	LogoutTime     *time.Time `json:"logout_time"`

	// Relationships
	User User `gorm:"foreignKey:UserID" json:"-"`
}

// TableName specifies the table name for UserSession
func (UserSession) TableName() string {
	return "user_sessions"
}
