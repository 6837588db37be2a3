package service

import (
	"context"
	"strings"

	"blogshive/internal/models"
	"blogshive/internal/repository"
)

const maxLanguageLen = 10

type SettingsService struct {
	repo repository.SettingsRepository
}

// UpdateSettingsInput changes only the non-nil fields.
type UpdateSettingsInput struct {
	UserID              uint
	Theme               *models.Theme
	Language            *string
	EmailNotifications  *bool
	PushNotifications   *bool
	ShowReadingActivity *bool
}

func NewSettingsService(repo repository.SettingsRepository) *SettingsService {
	return &SettingsService{repo: repo}
}

// GetSettings returns the user's settings, creating the defaults on first read.
func (s *SettingsService) GetSettings(ctx context.Context, userID uint) (*models.UserSetting, error) {
	return s.repo.GetOrCreate(ctx, userID)
}

func (s *SettingsService) UpdateSettings(ctx context.Context, in UpdateSettingsInput) (*models.UserSetting, error) {
	setting, err := s.repo.GetOrCreate(ctx, in.UserID)
	if err != nil {
		return nil, err
	}

	if in.Theme != nil {
		switch *in.Theme {
		case models.ThemeLight, models.ThemeDark, models.ThemeSystem:
			setting.Theme = *in.Theme
		default:
			return nil, models.NewValidationError("Theme must be light, dark or system")
		}
	}
	if in.Language != nil {
		lang := strings.ToLower(strings.TrimSpace(*in.Language))
		if lang == "" || len(lang) > maxLanguageLen {
			return nil, models.NewValidationError("Invalid language")
		}
		setting.Language = lang
	}
	if in.EmailNotifications != nil {
		setting.EmailNotifications = *in.EmailNotifications
	}
	if in.PushNotifications != nil {
		setting.PushNotifications = *in.PushNotifications
	}
	if in.ShowReadingActivity != nil {
		setting.ShowReadingActivity = *in.ShowReadingActivity
	}

	if err := s.repo.Save(ctx, setting); err != nil {
		return nil, err
	}
	return setting, nil
}
