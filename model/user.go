package model

import (
	"time"
)

// DefaultProfile is the profile text given to new accounts
const DefaultProfile = "This user is lazy and has not written a profile yet."

// User represents a registered user in the system.
// IsOnline is derived from the user's sessions and is only written by the session registry.
type User struct {
	ID             uint       `gorm:"primaryKey" json:"id"`
	Account        string     `gorm:"type:varchar(64);uniqueIndex;not null" json:"account"`
	PasswordHash   string     `gorm:"not null" json:"-"` // Never expose password in JSON
	Name           string     `gorm:"type:varchar(64);not null" json:"name"`
	Avatar         string     `gorm:"type:varchar(512);default:''" json:"avatar"`
	Profile        string     `gorm:"type:text" json:"profile"`
	IsOnline       bool       `gorm:"not null;default:false;index" json:"is_online"`
	LastActiveTime *time.Time `json:"last_active_time"`
	CreatedAt      time.Time  `json:"register_time"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// TableName specifies the table name for User
func (User) TableName() string {
	return "users"
}

// UserSummary is the public projection of a user, without credentials
type UserSummary struct {
	ID             uint       `json:"id"`
	Account        string     `json:"account"`
	Name           string     `json:"name"`
	Avatar         string     `json:"avatar"`
	IsOnline       bool       `json:"is_online"`
	LastActiveTime *time.Time `json:"last_active_time"`
}

// Summary projects the user into its public shape
func (u User) Summary() UserSummary {
	return UserSummary{
		ID:             u.ID,
		Account:        u.Account,
		Name:           u.Name,
		Avatar:         u.Avatar,
		IsOnline:       u.IsOnline,
		LastActiveTime: u.LastActiveTime,
	}
}
