package models

import "time"

// SavedPost bookmarks a post for a user.
type SavedPost struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	UserID    uint      `gorm:"not null;uniqueIndex:idx_saved_user_post" json:"user_id"`
	PostID    uint      `gorm:"not null;uniqueIndex:idx_saved_user_post;index" json:"post_id"`
	CreatedAt time.Time `json:"created_at"`
}

// HiddenPost suppresses a post from a user's feed.
type HiddenPost struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	UserID    uint      `gorm:"not null;uniqueIndex:idx_hidden_user_post" json:"user_id"`
	PostID    uint      `gorm:"not null;uniqueIndex:idx_hidden_user_post;index" json:"post_id"`
	CreatedAt time.Time `json:"created_at"`
}
