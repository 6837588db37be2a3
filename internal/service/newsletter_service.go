package service

import (
	"context"
	"strings"
	"time"

	"blogshive/internal/models"
	"blogshive/internal/repository"
	"blogshive/internal/validation"
)

type NewsletterService struct {
	repo repository.NewsletterRepository
}

func NewNewsletterService(repo repository.NewsletterRepository) *NewsletterService {
	return &NewsletterService{repo: repo}
}

// Subscribe adds email to the list or reactivates it. userID is optional.
// Subscribing an already active address returns it unchanged.
func (s *NewsletterService) Subscribe(ctx context.Context, email string, userID *uint) (*models.NewsletterSubscription, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if err := validation.ValidateEmail(email); err != nil {
		return nil, models.NewValidationError(err.Error())
	}

	sub, err := s.repo.GetByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if sub != nil && sub.Status == models.SubscriptionActive {
		if sub.UserID == nil && userID != nil {
			sub.UserID = userID
			if err := s.repo.Save(ctx, sub); err != nil {
				return nil, err
			}
		}
		return sub, nil
	}

	if sub == nil {
		sub = &models.NewsletterSubscription{Email: email}
	}
	if userID != nil {
		sub.UserID = userID
	}
	sub.Status = models.SubscriptionActive
	sub.SubscribedAt = time.Now().UTC()
	sub.UnsubscribedAt = nil
	if err := s.repo.Save(ctx, sub); err != nil {
		return nil, err
	}
	return sub, nil
}

// Unsubscribe marks email unsubscribed. Unknown addresses are not found.
func (s *NewsletterService) Unsubscribe(ctx context.Context, email string) (*models.NewsletterSubscription, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return nil, models.NewValidationError("Email is required")
	}
	sub, err := s.repo.GetByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if sub == nil {
		return nil, models.NewNotFoundError("Subscription", email)
	}
	if sub.Status == models.SubscriptionUnsubscribed {
		return sub, nil
	}
	now := time.Now().UTC()
	sub.Status = models.SubscriptionUnsubscribed
	sub.UnsubscribedAt = &now
	if err := s.repo.Save(ctx, sub); err != nil {
		return nil, err
	}
	return sub, nil
}
