package database

import "blogshive/internal/models"

// PersistentModels returns the authoritative set of schema-managed GORM models.
func PersistentModels() []any {
	return []any{
		&models.User{},
		&models.Relationship{},
		&models.Post{},
		&models.Clap{},
		&models.Comment{},
		&models.Notification{},
		&models.SavedPost{},
		&models.HiddenPost{},
		&models.UserSetting{},
		&models.NewsletterSubscription{},
	}
}
