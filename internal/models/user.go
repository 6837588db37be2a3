// Package models contains the gorm models and error types of the BlogsHive domain.
package models

import (
	"time"
)

// User is a registered account.
type User struct {
	ID                   uint      `gorm:"primaryKey" json:"id"`
	Username             string    `gorm:"uniqueIndex;size:50;not null" json:"username"`
	Email                string    `gorm:"uniqueIndex;size:255;not null" json:"email"`
	Password             string    `gorm:"not null" json:"-"`
	Name                 string    `gorm:"size:100" json:"name"`
	Provider             string    `gorm:"size:30" json:"provider,omitempty"`
	ProviderID           string    `gorm:"size:255" json:"-"`
	Avatar               string    `json:"avatar"`
	Bio                  string    `gorm:"type:text" json:"bio"`
	Pronouns             string    `gorm:"size:30" json:"pronouns"`
	IsMember             bool      `gorm:"default:false" json:"is_member"`
	IsAdmin              bool      `gorm:"default:false" json:"is_admin"`
	StripeCustomerID     string    `json:"-"`
	StripeSubscriptionID string    `json:"-"`
	FollowedTopics       []string  `gorm:"type:text;serializer:json" json:"followed_topics"`
	CreatedAt            time.Time `json:"created_at"`
	UpdatedAt            time.Time `json:"updated_at"`
}

// DisplayName is the name shown in notification messages.
func (u *User) DisplayName() string {
	if u.Name != "" {
		return u.Name
	}
	return u.Username
}

// UserSummary is the public projection of a User used in lists and hydration.
type UserSummary struct {
	ID       uint   `json:"id"`
	Username string `json:"username"`
	Name     string `json:"name"`
	Avatar   string `json:"avatar"`
	Bio      string `json:"bio,omitempty"`
}

// Summary returns the public projection of u.
func (u *User) Summary() UserSummary {
	return UserSummary{ID: u.ID, Username: u.Username, Name: u.Name, Avatar: u.Avatar, Bio: u.Bio}
}
