package models

import (
	"time"
)

/** --------------------ENTITIES-------------------- */
// User represents the user entity. The table is owned by the main application;
// the relay only reads profiles and touches LastSeen.
type User struct {
	Base
	Username string     `gorm:"not null" json:"username"`
	Email    string     `gorm:"uniqueIndex;not null;type:varchar(255)" json:"email"`
	Password string     `json:"-"`
	Image    string     `json:"image,omitempty"`
	City     string     `json:"city,omitempty"`
	Premium  bool       `gorm:"not null;default:false" json:"premium"`
	LastSeen *time.Time `json:"lastSeen,omitempty"`
}

// Follow is a follower -> following edge
type Follow struct {
	Base
	FollowerID  string `gorm:"not null;index;type:varchar(64)" json:"followerId"`
	FollowingID string `gorm:"not null;index;type:varchar(64)" json:"followingId"`
}

/** -------------------- DTOs -------------------- */
// UserProfile is the public projection of a user cached on a live session
type UserProfile struct {
	ID             string `json:"id"`
	Username       string `json:"username"`
	Image          string `json:"image,omitempty"`
	City           string `json:"city,omitempty"`
	Premium        bool   `json:"premium"`
	FollowersCount int    `json:"followersCount"`
}

// PublicSender is the sender profile embedded in public room messages
type PublicSender struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Image    string `json:"image,omitempty"`
	City     string `json:"city,omitempty"`
}

func (u *User) PublicSender() PublicSender {
	return PublicSender{
		ID:       u.ID,
		Username: u.Username,
		Image:    u.Image,
		City:     u.City,
	}
}
