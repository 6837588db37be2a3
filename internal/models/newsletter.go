package models

import "time"

type SubscriptionStatus string

const (
	SubscriptionActive       SubscriptionStatus = "subscribed"
	SubscriptionUnsubscribed SubscriptionStatus = "unsubscribed"
)

// NewsletterSubscription is an email on the newsletter list, optionally tied to an account.
type NewsletterSubscription struct {
	ID             uint               `gorm:"primaryKey" json:"id"`
	Email          string             `gorm:"uniqueIndex;size:255;not null" json:"email"`
	UserID         *uint              `gorm:"index" json:"user_id"`
	Status         SubscriptionStatus `gorm:"type:varchar(20);not null" json:"status"`
	SubscribedAt   time.Time          `json:"subscribed_at"`
	UnsubscribedAt *time.Time         `json:"unsubscribed_at"`
	CreatedAt      time.Time          `json:"created_at"`
	UpdatedAt      time.Time          `json:"updated_at"`
}
