package models

import "time"

// Theme is a UI color scheme preference.
type Theme string

const (
	ThemeLight  Theme = "light"
	ThemeDark   Theme = "dark"
	ThemeSystem Theme = "system"
)

// UserSetting holds per-user preferences. One row per user, created lazily.
type UserSetting struct {
	ID                  uint      `gorm:"primaryKey" json:"-"`
	UserID              uint      `gorm:"uniqueIndex;not null" json:"user_id"`
	Theme               Theme     `gorm:"type:varchar(10);not null;default:'system'" json:"theme"`
	Language            string    `gorm:"size:10;not null;default:'en'" json:"language"`
	EmailNotifications  bool      `gorm:"not null;default:true" json:"email_notifications"`
	PushNotifications   bool      `gorm:"not null;default:true" json:"push_notifications"`
	ShowReadingActivity bool      `gorm:"not null;default:true" json:"show_reading_activity"`
	CreatedAt           time.Time `json:"created_at"`
	UpdatedAt           time.Time `json:"updated_at"`
}

// DefaultUserSetting returns the settings a new user starts with.
func DefaultUserSetting(userID uint) UserSetting {
	return UserSetting{
		UserID:              userID,
		Theme:               ThemeSystem,
		Language:            "en",
		EmailNotifications:  true,
		PushNotifications:   true,
		ShowReadingActivity: true,
	}
}
