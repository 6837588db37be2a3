package service

import (
	"context"
	"log/slog"
	"strconv"
	"time"

	"blogshive/internal/models"
	"blogshive/internal/observability"
	"blogshive/internal/repository"
)

// EventNotificationNew is the socket event carrying a freshly created notification.
const EventNotificationNew = "notifications:new"

const (
	defaultNotificationLimit = 20
	maxNotificationLimit     = 50
)

// Pusher delivers an event to a user's connected sockets.
type Pusher interface {
	PushTo(userID uint, event string, payload any) error
}

type NotificationService struct {
	repo     repository.NotificationRepository
	userRepo repository.UserRepository
	postRepo repository.PostRepository
	pusher   Pusher
}

type CreateNotificationInput struct {
	RecipientID uint
	SenderID    *uint
	Type        models.NotificationType
	PostID      *uint
	Message     string
	Metadata    map[string]any
}

// NewNotificationService returns a NotificationService. pusher may be nil.
func NewNotificationService(
	repo repository.NotificationRepository,
	userRepo repository.UserRepository,
	postRepo repository.PostRepository,
	pusher Pusher,
) *NotificationService {
	return &NotificationService{repo: repo, userRepo: userRepo, postRepo: postRepo, pusher: pusher}
}

// CreateNotification persists a notification and pushes it to the recipient's
// sockets. A sender notifying themselves yields (nil, nil) and stores nothing.
// Push failures are logged and never returned.
func (s *NotificationService) CreateNotification(ctx context.Context, in CreateNotificationInput) (_ *models.NotificationPayload, err error) {
	ctx, finish := observability.StartServiceSpan(ctx, "NotificationService", "CreateNotification")
	defer func() { finish(err) }()

	if in.RecipientID == 0 {
		return nil, models.NewValidationError("Recipient is required")
	}
	if in.Type == "" {
		return nil, models.NewValidationError("Notification type is required")
	}
	if !in.Type.Valid() {
		return nil, models.NewValidationError("Unknown notification type")
	}
	if in.SenderID != nil && *in.SenderID == in.RecipientID {
		return nil, nil
	}

	n := &models.Notification{
		RecipientID: in.RecipientID,
		SenderID:    in.SenderID,
		Type:        in.Type,
		PostID:      in.PostID,
		Message:     in.Message,
		Metadata:    in.Metadata,
		// microsecond precision keeps the value identical after a postgres round trip,
		// which the created_at cursor relies on
		CreatedAt: time.Now().UTC().Truncate(time.Microsecond),
	}
	if err := s.repo.Create(ctx, n); err != nil {
		return nil, err
	}
	observability.NotificationsCreated.WithLabelValues(string(n.Type)).Inc()

	payloads, err := s.hydrate(ctx, []models.Notification{*n})
	if err != nil {
		return nil, err
	}
	payload := &payloads[0]

	if s.pusher != nil {
		if pushErr := s.pusher.PushTo(n.RecipientID, EventNotificationNew, payload); pushErr != nil {
			slog.WarnContext(ctx, "notification push failed",
				"notification_id", n.ID, "recipient_id", n.RecipientID, "err", pushErr)
		}
	}
	return payload, nil
}

// normalizeNotificationLimit maps 0 to the default, negatives to 1 and caps at the max.
func normalizeNotificationLimit(limit int) int {
	switch {
	case limit == 0:
		return defaultNotificationLimit
	case limit < 0:
		return 1
	case limit > maxNotificationLimit:
		return maxNotificationLimit
	}
	return limit
}

// LoadNotifications returns one page of the recipient's notifications, newest
// first, strictly older than cursor when one is given.
func (s *NotificationService) LoadNotifications(ctx context.Context, recipientID uint, limit int, cursor string) (*models.NotificationPage, error) {
	limit = normalizeNotificationLimit(limit)

	var before *time.Time
	if cursor != "" {
		t, err := time.Parse(time.RFC3339Nano, cursor)
		if err != nil {
			return nil, models.NewValidationError("Invalid cursor")
		}
		before = &t
	}

	items, err := s.repo.ListByRecipient(ctx, recipientID, before, limit)
	if err != nil {
		return nil, err
	}
	unread, err := s.repo.CountUnread(ctx, recipientID)
	if err != nil {
		return nil, err
	}
	payloads, err := s.hydrate(ctx, items)
	if err != nil {
		return nil, err
	}

	page := &models.NotificationPage{
		Items:       payloads,
		UnreadCount: unread,
		HasMore:     len(items) == limit,
	}
	if page.HasMore {
		next := formatTimestamp(items[len(items)-1].CreatedAt)
		page.NextCursor = &next
	}
	return page, nil
}

// MarkNotificationsRead marks the recipient's unread notifications read,
// only those in ids when ids is non-empty. Returns the number changed.
func (s *NotificationService) MarkNotificationsRead(ctx context.Context, recipientID uint, ids []uint) (int64, error) {
	return s.repo.MarkRead(ctx, recipientID, ids)
}

func (s *NotificationService) UnreadCount(ctx context.Context, recipientID uint) (int64, error) {
	return s.repo.CountUnread(ctx, recipientID)
}

// DeleteNotification removes one of the recipient's notifications.
func (s *NotificationService) DeleteNotification(ctx context.Context, recipientID, id uint) error {
	n, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if n.RecipientID != recipientID {
		return models.NewForbiddenError("You can only delete your own notifications")
	}
	return s.repo.Delete(ctx, id)
}

// SendSystemNotification sends a sender-less system notification.
func (s *NotificationService) SendSystemNotification(ctx context.Context, recipientID uint, message string, metadata map[string]any) (*models.NotificationPayload, error) {
	if message == "" {
		return nil, models.NewValidationError("Message is required")
	}
	if _, err := s.userRepo.GetByID(ctx, recipientID); err != nil {
		return nil, err
	}
	return s.CreateNotification(ctx, CreateNotificationInput{
		RecipientID: recipientID,
		Type:        models.NotificationSystem,
		Message:     message,
		Metadata:    metadata,
	})
}

// hydrate resolves senders and posts with one query per collection and merges
// them into transport payloads. Missing references serialise as null.
func (s *NotificationService) hydrate(ctx context.Context, items []models.Notification) ([]models.NotificationPayload, error) {
	senderIDs := make([]uint, 0, len(items))
	postIDs := make([]uint, 0, len(items))
	for _, n := range items {
		if n.SenderID != nil {
			senderIDs = append(senderIDs, *n.SenderID)
		}
		if n.PostID != nil {
			postIDs = append(postIDs, *n.PostID)
		}
	}

	senders := make(map[uint]*models.User)
	if len(senderIDs) > 0 {
		users, err := s.userRepo.GetByIDs(ctx, dedupe(senderIDs))
		if err != nil {
			return nil, err
		}
		for i := range users {
			senders[users[i].ID] = &users[i]
		}
	}
	posts := make(map[uint]*models.Post)
	if len(postIDs) > 0 {
		found, err := s.postRepo.GetByIDs(ctx, dedupe(postIDs))
		if err != nil {
			return nil, err
		}
		for i := range found {
			posts[found[i].ID] = &found[i]
		}
	}

	out := make([]models.NotificationPayload, len(items))
	for i, n := range items {
		p := models.NotificationPayload{
			ID:          formatID(n.ID),
			RecipientID: formatID(n.RecipientID),
			Type:        n.Type,
			Message:     n.Message,
			Metadata:    n.Metadata,
			IsRead:      n.IsRead,
			CreatedAt:   formatTimestamp(n.CreatedAt),
			UpdatedAt:   formatTimestamp(n.UpdatedAt),
		}
		if p.Metadata == nil {
			p.Metadata = map[string]any{}
		}
		if n.SenderID != nil {
			if u, ok := senders[*n.SenderID]; ok {
				p.Sender = &models.NotificationSender{
					ID:       formatID(u.ID),
					Username: u.Username,
					Name:     u.Name,
					Avatar:   u.Avatar,
				}
			}
		}
		if n.PostID != nil {
			if post, ok := posts[*n.PostID]; ok {
				p.Post = &models.NotificationPostRef{ID: formatID(post.ID), Title: post.Title, Slug: post.Slug}
			}
		}
		out[i] = p
	}
	return out, nil
}

func formatID(id uint) string {
	return strconv.FormatUint(uint64(id), 10)
}

func formatTimestamp(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func dedupe(ids []uint) []uint {
	seen := make(map[uint]struct{}, len(ids))
	out := ids[:0:0]
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
