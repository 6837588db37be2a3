package repository

import (
	"context"
	"errors"
	"strings"

	"blogshive/internal/models"

	"gorm.io/gorm"
)

// NewsletterRepository persists newsletter subscriptions.
type NewsletterRepository interface {
	GetByEmail(ctx context.Context, email string) (*models.NewsletterSubscription, error)
	Save(ctx context.Context, sub *models.NewsletterSubscription) error
}

type newsletterRepository struct {
	db *gorm.DB
}

// NewNewsletterRepository returns a gorm-backed NewsletterRepository.
func NewNewsletterRepository(db *gorm.DB) NewsletterRepository {
	return &newsletterRepository{db: db}
}

// GetByEmail returns nil when the address has never subscribed.
func (r *newsletterRepository) GetByEmail(ctx context.Context, email string) (*models.NewsletterSubscription, error) {
	var sub models.NewsletterSubscription
	err := r.db.WithContext(ctx).Where("email = ?", strings.ToLower(email)).First(&sub).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, models.NewInternalError(err)
	}
	return &sub, nil
}

func (r *newsletterRepository) Save(ctx context.Context, sub *models.NewsletterSubscription) error {
	sub.Email = strings.ToLower(sub.Email)
	if err := r.db.WithContext(ctx).Save(sub).Error; err != nil {
		return models.NewInternalError(err)
	}
	return nil
}
