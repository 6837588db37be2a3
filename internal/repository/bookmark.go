package repository

import (
	"context"

	"blogshive/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// BookmarkRepository persists saved and hidden posts.
type BookmarkRepository interface {
	Save(ctx context.Context, userID, postID uint) error
	Unsave(ctx context.Context, userID, postID uint) error
	ListSaved(ctx context.Context, userID uint, page Page) ([]models.Post, error)
	SavedAmong(ctx context.Context, userID uint, postIDs []uint) (map[uint]bool, error)
	Hide(ctx context.Context, userID, postID uint) error
	Unhide(ctx context.Context, userID, postID uint) error
}

type bookmarkRepository struct {
	db *gorm.DB
}

// NewBookmarkRepository returns a gorm-backed BookmarkRepository.
func NewBookmarkRepository(db *gorm.DB) BookmarkRepository {
	return &bookmarkRepository{db: db}
}

func (r *bookmarkRepository) insertIgnore(ctx context.Context, row any) error {
	if err := r.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(row).Error; err != nil {
		return models.NewInternalError(err)
	}
	return nil
}

func (r *bookmarkRepository) remove(ctx context.Context, model any, userID, postID uint) error {
	if err := r.db.WithContext(ctx).Where("user_id = ? AND post_id = ?", userID, postID).Delete(model).Error; err != nil {
		return models.NewInternalError(err)
	}
	return nil
}

func (r *bookmarkRepository) Save(ctx context.Context, userID, postID uint) error {
	return r.insertIgnore(ctx, &models.SavedPost{UserID: userID, PostID: postID})
}

func (r *bookmarkRepository) Unsave(ctx context.Context, userID, postID uint) error {
	return r.remove(ctx, &models.SavedPost{}, userID, postID)
}

func (r *bookmarkRepository) Hide(ctx context.Context, userID, postID uint) error {
	return r.insertIgnore(ctx, &models.HiddenPost{UserID: userID, PostID: postID})
}

func (r *bookmarkRepository) Unhide(ctx context.Context, userID, postID uint) error {
	return r.remove(ctx, &models.HiddenPost{}, userID, postID)
}

// ListSaved returns the user's saved posts, most recently saved first.
func (r *bookmarkRepository) ListSaved(ctx context.Context, userID uint, page Page) ([]models.Post, error) {
	page = page.normalized()
	var posts []models.Post
	if err := r.db.WithContext(ctx).Preload("Author").
		Joins("JOIN saved_posts sp ON sp.post_id = posts.id").
		Where("sp.user_id = ?", userID).
		Order("sp.created_at DESC").
		Limit(page.Limit).Offset(page.Offset).
		Find(&posts).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	return posts, nil
}

func (r *bookmarkRepository) SavedAmong(ctx context.Context, userID uint, postIDs []uint) (map[uint]bool, error) {
	out := make(map[uint]bool)
	if userID == 0 || len(postIDs) == 0 {
		return out, nil
	}
	var ids []uint
	if err := r.db.WithContext(ctx).Model(&models.SavedPost{}).
		Where("user_id = ? AND post_id IN ?", userID, postIDs).
		Pluck("post_id", &ids).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	for _, id := range ids {
		out[id] = true
	}
	return out, nil
}
