package repository

import (
	"context"

	"blogshive/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// CommentRepository persists comments and keeps posts.response_count in step.
type CommentRepository interface {
	Create(ctx context.Context, comment *models.Comment) error
	GetByID(ctx context.Context, id uint) (*models.Comment, error)
	ListByPost(ctx context.Context, postID uint) ([]*models.Comment, error)
	UpdateContent(ctx context.Context, id uint, content string) error
	SetVisibility(ctx context.Context, id uint, visible bool) error
	DeleteWithReplies(ctx context.Context, comment *models.Comment) (int64, error)
}

type commentRepository struct {
	db *gorm.DB
}

// NewCommentRepository returns a gorm-backed CommentRepository.
func NewCommentRepository(db *gorm.DB) CommentRepository {
	return &commentRepository{db: db}
}

func (r *commentRepository) Create(ctx context.Context, comment *models.Comment) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit(clause.Associations).Create(comment).Error; err != nil {
			return err
		}
		return tx.Model(&models.Post{}).Where("id = ?", comment.PostID).
			Update("response_count", gorm.Expr("response_count + 1")).Error
	})
	if err != nil {
		return models.NewInternalError(err)
	}
	return nil
}

func (r *commentRepository) GetByID(ctx context.Context, id uint) (*models.Comment, error) {
	var c models.Comment
	if err := r.db.WithContext(ctx).Preload("Author").First(&c, id).Error; err != nil {
		return nil, notFoundOr(err, "Comment", id)
	}
	return &c, nil
}

// ListByPost returns every comment on the post in creation order.
func (r *commentRepository) ListByPost(ctx context.Context, postID uint) ([]*models.Comment, error) {
	var comments []*models.Comment
	if err := r.db.WithContext(ctx).Preload("Author").
		Where("post_id = ?", postID).
		Order("created_at ASC").Order("id ASC").
		Find(&comments).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	return comments, nil
}

func (r *commentRepository) UpdateContent(ctx context.Context, id uint, content string) error {
	if err := r.db.WithContext(ctx).Model(&models.Comment{}).Where("id = ?", id).
		Update("content", content).Error; err != nil {
		return models.NewInternalError(err)
	}
	return nil
}

func (r *commentRepository) SetVisibility(ctx context.Context, id uint, visible bool) error {
	if err := r.db.WithContext(ctx).Model(&models.Comment{}).Where("id = ?", id).
		Update("is_visible", visible).Error; err != nil {
		return models.NewInternalError(err)
	}
	return nil
}

// DeleteWithReplies removes the comment and all of its descendants. Returns the number removed.
func (r *commentRepository) DeleteWithReplies(ctx context.Context, comment *models.Comment) (int64, error) {
	var removed int64
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		ids := []uint{comment.ID}
		frontier := []uint{comment.ID}
		for len(frontier) > 0 {
			var children []uint
			if err := tx.Model(&models.Comment{}).Where("parent_id IN ?", frontier).Pluck("id", &children).Error; err != nil {
				return err
			}
			ids = append(ids, children...)
			frontier = children
		}

		res := tx.Where("id IN ?", ids).Delete(&models.Comment{})
		if res.Error != nil {
			return res.Error
		}
		removed = res.RowsAffected

		return tx.Model(&models.Post{}).Where("id = ?", comment.PostID).
			Update("response_count", gorm.Expr("CASE WHEN response_count >= ? THEN response_count - ? ELSE 0 END", removed, removed)).Error
	})
	if err != nil {
		return 0, models.NewInternalError(err)
	}
	return removed, nil
}
