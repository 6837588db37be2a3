package repository

import (
	"context"
	"errors"
	"strings"

	"blogshive/internal/cache"
	"blogshive/internal/models"

	"gorm.io/gorm"
)

// UserRepository defines persistence operations for users.
type UserRepository interface {
	GetByID(ctx context.Context, id uint) (*models.User, error)
	GetCredentials(ctx context.Context, id uint) (*models.User, error)
	GetByIDs(ctx context.Context, ids []uint) ([]models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	GetByUsername(ctx context.Context, username string) (*models.User, error)
	GetByUsernames(ctx context.Context, usernames []string) ([]models.User, error)
	Create(ctx context.Context, user *models.User) error
	Update(ctx context.Context, user *models.User) error
	SetMembership(ctx context.Context, id uint, isMember bool) error
	SetAdmin(ctx context.Context, id uint, isAdmin bool) error
	DeleteAccount(ctx context.Context, id uint) error
}

type userRepository struct {
	db *gorm.DB
}

// NewUserRepository returns a new UserRepository implementation.
func NewUserRepository(db *gorm.DB) UserRepository {
	return &userRepository{db: db}
}

func (r *userRepository) GetByID(ctx context.Context, id uint) (*models.User, error) {
	var user models.User
	err := cache.CacheAside(ctx, cache.UserKey(id), &user, cache.UserTTL, func() error {
		if err := r.db.WithContext(ctx).First(&user, id).Error; err != nil {
			return notFoundOr(err, "User", id)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// GetCredentials reads the user straight from the database. Cached users carry
// no password hash, so credential checks must not go through GetByID.
func (r *userRepository) GetCredentials(ctx context.Context, id uint) (*models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).First(&user, id).Error; err != nil {
		return nil, notFoundOr(err, "User", id)
	}
	return &user, nil
}

func (r *userRepository) GetByIDs(ctx context.Context, ids []uint) ([]models.User, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var users []models.User
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&users).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	return users, nil
}

func (r *userRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).Where("LOWER(email) = ?", strings.ToLower(email)).First(&user).Error; err != nil {
		return nil, notFoundOr(err, "User", email)
	}
	return &user, nil
}

func (r *userRepository) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).Where("LOWER(username) = ?", strings.ToLower(username)).First(&user).Error; err != nil {
		return nil, notFoundOr(err, "User", username)
	}
	return &user, nil
}

func (r *userRepository) GetByUsernames(ctx context.Context, usernames []string) ([]models.User, error) {
	if len(usernames) == 0 {
		return nil, nil
	}
	lowered := make([]string, len(usernames))
	for i, u := range usernames {
		lowered[i] = strings.ToLower(u)
	}
	var users []models.User
	if err := r.db.WithContext(ctx).Where("LOWER(username) IN ?", lowered).Find(&users).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	return users, nil
}

func (r *userRepository) Create(ctx context.Context, user *models.User) error {
	if err := r.db.WithContext(ctx).Create(user).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) || isUniqueViolation(err) {
			return models.NewConflictError("Username or email already in use")
		}
		return models.NewInternalError(err)
	}
	return nil
}

func (r *userRepository) Update(ctx context.Context, user *models.User) error {
	err := r.db.WithContext(ctx).Model(user).Select(
		"username", "name", "bio", "avatar", "pronouns", "followed_topics",
	).Updates(user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) || isUniqueViolation(err) {
			return models.NewConflictError("Username already in use")
		}
		return models.NewInternalError(err)
	}
	cache.InvalidateUser(ctx, user.ID)
	return nil
}

func (r *userRepository) SetMembership(ctx context.Context, id uint, isMember bool) error {
	return r.setFlag(ctx, id, "is_member", isMember)
}

func (r *userRepository) SetAdmin(ctx context.Context, id uint, isAdmin bool) error {
	return r.setFlag(ctx, id, "is_admin", isAdmin)
}

func (r *userRepository) setFlag(ctx context.Context, id uint, column string, value bool) error {
	res := r.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", id).Update(column, value)
	if res.Error != nil {
		return models.NewInternalError(res.Error)
	}
	if res.RowsAffected == 0 {
		return models.NewNotFoundError("User", id)
	}
	cache.InvalidateUser(ctx, id)
	return nil
}

// DeleteAccount removes the user and every row owned by or pointing at them.
func (r *userRepository) DeleteAccount(ctx context.Context, id uint) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var user models.User
		if err := tx.First(&user, id).Error; err != nil {
			return notFoundOr(err, "User", id)
		}

		var ownPostIDs []uint
		if err := tx.Model(&models.Post{}).Where("author_id = ?", id).Pluck("id", &ownPostIDs).Error; err != nil {
			return err
		}

		// Posts whose counters change because this user's comments or claps disappear.
		var touchedPostIDs []uint
		if err := tx.Model(&models.Comment{}).Where("author_id = ?", id).Distinct().Pluck("post_id", &touchedPostIDs).Error; err != nil {
			return err
		}
		var clappedPostIDs []uint
		if err := tx.Model(&models.Clap{}).Where("user_id = ?", id).Pluck("post_id", &clappedPostIDs).Error; err != nil {
			return err
		}
		touchedPostIDs = append(touchedPostIDs, clappedPostIDs...)

		steps := []struct {
			model any
			query string
			args  []any
		}{
			{&models.Relationship{}, "follower_id = ? OR following_id = ?", []any{id, id}},
			{&models.Notification{}, "recipient_id = ? OR sender_id = ?", []any{id, id}},
			{&models.SavedPost{}, "user_id = ?", []any{id}},
			{&models.HiddenPost{}, "user_id = ?", []any{id}},
			{&models.UserSetting{}, "user_id = ?", []any{id}},
			{&models.Clap{}, "user_id = ?", []any{id}},
			{&models.Comment{}, "author_id = ?", []any{id}},
		}
		for _, s := range steps {
			if err := tx.Where(s.query, s.args...).Delete(s.model).Error; err != nil {
				return err
			}
		}

		if len(ownPostIDs) > 0 {
			if err := deletePostRows(tx, ownPostIDs); err != nil {
				return err
			}
		}

		if err := tx.Model(&models.NewsletterSubscription{}).Where("user_id = ?", id).Update("user_id", nil).Error; err != nil {
			return err
		}

		if len(touchedPostIDs) > 0 {
			if err := recountPosts(tx, touchedPostIDs); err != nil {
				return err
			}
		}

		return tx.Delete(&models.User{}, id).Error
	})
	if err != nil {
		var appErr *models.AppError
		if errors.As(err, &appErr) {
			return err
		}
		return models.NewInternalError(err)
	}
	cache.InvalidateUser(ctx, id)
	return nil
}

// recountPosts recomputes denormalized counters from source rows.
func recountPosts(tx *gorm.DB, postIDs []uint) error {
	if err := tx.Exec(
		"UPDATE posts SET response_count = (SELECT COUNT(*) FROM comments WHERE comments.post_id = posts.id) WHERE id IN ?",
		postIDs,
	).Error; err != nil {
		return err
	}
	return tx.Exec(
		"UPDATE posts SET clap_count = COALESCE((SELECT SUM(claps.count) FROM claps WHERE claps.post_id = posts.id), 0) WHERE id IN ?",
		postIDs,
	).Error
}

func isUniqueViolation(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique constraint") || strings.Contains(msg, "duplicate key")
}
