package repository

import (
	"context"
	"errors"
	"time"

	"blogshive/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// SettingsRepository persists per-user settings.
type SettingsRepository interface {
	GetOrCreate(ctx context.Context, userID uint) (*models.UserSetting, error)
	Save(ctx context.Context, setting *models.UserSetting) error
}

type settingsRepository struct {
	db *gorm.DB
}

// NewSettingsRepository returns a gorm-backed SettingsRepository.
func NewSettingsRepository(db *gorm.DB) SettingsRepository {
	return &settingsRepository{db: db}
}

func (r *settingsRepository) GetOrCreate(ctx context.Context, userID uint) (*models.UserSetting, error) {
	db := r.db.WithContext(ctx)
	var s models.UserSetting
	err := db.Where("user_id = ?", userID).First(&s).Error
	if err == nil {
		return &s, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, models.NewInternalError(err)
	}

	s = models.DefaultUserSetting(userID)
	// a concurrent first read may have inserted the row already
	if err := db.Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "user_id"}}, DoNothing: true}).Create(&s).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	if err := db.Where("user_id = ?", userID).First(&s).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	return &s, nil
}

func (r *settingsRepository) Save(ctx context.Context, setting *models.UserSetting) error {
	err := r.db.WithContext(ctx).Model(&models.UserSetting{}).
		Where("user_id = ?", setting.UserID).
		Updates(map[string]any{
			"theme":                 setting.Theme,
			"language":              setting.Language,
			"email_notifications":   setting.EmailNotifications,
			"push_notifications":    setting.PushNotifications,
			"show_reading_activity": setting.ShowReadingActivity,
			"updated_at":            time.Now(),
		}).Error
	if err != nil {
		return models.NewInternalError(err)
	}
	return nil
}
