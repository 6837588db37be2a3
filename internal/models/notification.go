package models

import "time"

// NotificationType is the reason a notification was sent.
type NotificationType string

const (
	NotificationLike    NotificationType = "like"
	NotificationComment NotificationType = "comment"
	NotificationReply   NotificationType = "reply"
	NotificationFollow  NotificationType = "follow"
	NotificationMention NotificationType = "mention"
	NotificationSystem  NotificationType = "system"
)

// Valid reports whether t is a known notification type.
func (t NotificationType) Valid() bool {
	switch t {
	case NotificationLike, NotificationComment, NotificationReply,
		NotificationFollow, NotificationMention, NotificationSystem:
		return true
	}
	return false
}

// Notification is immutable after creation except for IsRead.
type Notification struct {
	ID          uint             `gorm:"primaryKey" json:"id"`
	RecipientID uint             `gorm:"not null;index:idx_notification_recipient_created,priority:1" json:"recipient_id"`
	SenderID    *uint            `gorm:"index" json:"sender_id"`
	Type        NotificationType `gorm:"type:varchar(20);not null" json:"type"`
	PostID      *uint            `gorm:"index" json:"post_id"`
	Message     string           `gorm:"type:text" json:"message"`
	Metadata    map[string]any   `gorm:"type:text;serializer:json" json:"metadata"`
	IsRead      bool             `gorm:"not null;default:false;index" json:"is_read"`
	CreatedAt   time.Time        `gorm:"index:idx_notification_recipient_created,priority:2,sort:desc" json:"created_at"`
	UpdatedAt   time.Time        `json:"updated_at"`
}

// NotificationPostRef is the hydrated post reference on a payload.
type NotificationPostRef struct {
	ID    string `json:"id"`
	Title string `json:"title"`
	Slug  string `json:"slug"`
}

// NotificationSender is the hydrated sender on a payload.
type NotificationSender struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Name     string `json:"name"`
	Avatar   string `json:"avatar"`
}

// NotificationPayload is the transport shape of a notification:
// string ids, RFC 3339 timestamps and null for absent relations.
type NotificationPayload struct {
	ID          string               `json:"id"`
	RecipientID string               `json:"recipient_id"`
	Sender      *NotificationSender  `json:"sender"`
	Type        NotificationType     `json:"type"`
	Post        *NotificationPostRef `json:"post"`
	Message     string               `json:"message"`
	Metadata    map[string]any       `json:"metadata"`
	IsRead      bool                 `json:"is_read"`
	CreatedAt   string               `json:"created_at"`
	UpdatedAt   string               `json:"updated_at"`
}

// NotificationPage is one page of a recipient's notifications.
type NotificationPage struct {
	Items       []NotificationPayload `json:"items"`
	UnreadCount int64                 `json:"unread_count"`
	NextCursor  *string               `json:"next_cursor"`
	HasMore     bool                  `json:"has_more"`
}
