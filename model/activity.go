package model

import (
	"time"
)

// ActivityType is the closed set of activity categories
type ActivityType string

const (
	ActivityTypeRunning    ActivityType = "running"
	ActivityTypeSwimming   ActivityType = "swimming"
	ActivityTypeWorkout    ActivityType = "workout"
	ActivityTypeDance      ActivityType = "dance"
	ActivityTypeBasketball ActivityType = "basketball"
	ActivityTypeFootball   ActivityType = "football"
	ActivityTypeBadminton  ActivityType = "badminton"
	ActivityTypeOther      ActivityType = "other"
)

// ActivityTypes lists every valid ActivityType
var ActivityTypes = []ActivityType{
	ActivityTypeRunning,
	ActivityTypeSwimming,
	ActivityTypeWorkout,
	ActivityTypeDance,
	ActivityTypeBasketball,
	ActivityTypeFootball,
	ActivityTypeBadminton,
	ActivityTypeOther,
}

// Valid reports whether t is one of the known activity types
func (t ActivityType) Valid() bool {
	for _, known := range ActivityTypes {
		if t == known {
			return true
		}
	}
	return false
}

// Activity is an event users can join or favorite.
// Participants and favoriters live in the participations and favorites join tables.
type Activity struct {
	ID                uint         `gorm:"primaryKey" json:"id"`
	Title             string       `gorm:"type:varchar(255);not null;index" json:"title"`
	Profile           string       `gorm:"type:text" json:"profile"`
	Date              time.Time    `gorm:"not null" json:"date"`
	Location          string       `gorm:"type:varchar(255)" json:"location"`
	OrganizerName     string       `gorm:"type:varchar(64)" json:"organizer_name"`
	Picture           string       `gorm:"type:varchar(512)" json:"picture"`
	ParticipantsLimit int          `gorm:"not null" json:"participants_limit"`
	Fee               float64      `gorm:"not null;default:0" json:"fee"`
	Type              ActivityType `gorm:"type:varchar(20);not null;default:'other';index" json:"type"`
	CreatorID         *uint        `gorm:"index" json:"creator_id"`
	CreatedAt         time.Time    `json:"create_time"`
	UpdatedAt         time.Time    `json:"updated_at"`

	// Relationships
	Creator *User `gorm:"foreignKey:CreatorID" json:"-"`
}

// TableName specifies the table name for Activity
func (Activity) TableName() string {
	return "activities"
}

// Participation is a join row: the user has signed up for the activity
type Participation struct {
	UserID     uint      `gorm:"primaryKey;autoIncrement:false" json:"user_id"`
	ActivityID uint      `gorm:"primaryKey;autoIncrement:false;index" json:"activity_id"`
	CreatedAt  time.Time `json:"created_at"`

	// Relationships
	User     User     `gorm:"foreignKey:UserID" json:"-"`
	Activity Activity `gorm:"foreignKey:ActivityID" json:"-"`
}

// TableName specifies the table name for Participation
func (Participation) TableName() string {
	return "participations"
}

// Favorite is a join row: the user has favorited the activity
type Favorite struct {
	UserID     uint      `gorm:"primaryKey;autoIncrement:false" json:"user_id"`
	ActivityID uint      `gorm:"primaryKey;autoIncrement:false;index" json:"activity_id"`
	CreatedAt  time.Time `json:"created_at"`

	// Relationships
	User     User     `gorm:"foreignKey:UserID" json:"-"`
	Activity Activity `gorm:"foreignKey:ActivityID" json:"-"`
}

// TableName specifies the table name for Favorite
func (Favorite) TableName() string {
	return "favorites"
}
