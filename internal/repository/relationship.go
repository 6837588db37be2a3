package repository

import (
	"context"
	"errors"
	"time"

	"blogshive/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// RelationshipRepository persists directed follow/block edges.
type RelationshipRepository interface {
	Get(ctx context.Context, followerID, followingID uint) (*models.Relationship, error)
	Upsert(ctx context.Context, followerID, followingID uint, status models.RelationshipStatus) error
	Delete(ctx context.Context, followerID, followingID uint, status models.RelationshipStatus) (bool, error)
	Block(ctx context.Context, actorID, targetID uint) error
	CountFollowers(ctx context.Context, userID uint) (int64, error)
	CountFollowing(ctx context.Context, userID uint) (int64, error)
	ListFollowers(ctx context.Context, userID uint, page Page) ([]models.User, error)
	ListFollowing(ctx context.Context, userID uint, page Page) ([]models.User, error)
	ListBlocked(ctx context.Context, userID uint, page Page) ([]models.User, error)
}

type relationshipRepository struct {
	db *gorm.DB
}

// NewRelationshipRepository returns a gorm-backed RelationshipRepository.
func NewRelationshipRepository(db *gorm.DB) RelationshipRepository {
	return &relationshipRepository{db: db}
}

// Get returns the edge follower -> following, or nil when none exists.
func (r *relationshipRepository) Get(ctx context.Context, followerID, followingID uint) (*models.Relationship, error) {
	var rel models.Relationship
	err := r.db.WithContext(ctx).
		Where("follower_id = ? AND following_id = ?", followerID, followingID).
		First(&rel).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, models.NewInternalError(err)
	}
	return &rel, nil
}

func upsertEdge(tx *gorm.DB, followerID, followingID uint, status models.RelationshipStatus) error {
	rel := &models.Relationship{
		FollowerID:  followerID,
		FollowingID: followingID,
		Status:      status,
	}
	return tx.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "follower_id"}, {Name: "following_id"}},
		DoUpdates: clause.Assignments(map[string]any{
			"status":     status,
			"updated_at": time.Now(),
		}),
	}).Create(rel).Error
}

// Upsert writes the edge, replacing the status of an existing edge for the same pair.
func (r *relationshipRepository) Upsert(ctx context.Context, followerID, followingID uint, status models.RelationshipStatus) error {
	if err := upsertEdge(r.db.WithContext(ctx), followerID, followingID, status); err != nil {
		if errors.Is(err, models.ErrSelfRelationship) {
			return models.NewValidationError(err.Error())
		}
		return models.NewInternalError(err)
	}
	return nil
}

// Delete removes the edge if it has the given status. Reports whether a row was removed.
func (r *relationshipRepository) Delete(ctx context.Context, followerID, followingID uint, status models.RelationshipStatus) (bool, error) {
	res := r.db.WithContext(ctx).
		Where("follower_id = ? AND following_id = ? AND status = ?", followerID, followingID, status).
		Delete(&models.Relationship{})
	if res.Error != nil {
		return false, models.NewInternalError(res.Error)
	}
	return res.RowsAffected > 0, nil
}

// Block drops follow edges in both directions and records actor -> target as blocked, atomically.
func (r *relationshipRepository) Block(ctx context.Context, actorID, targetID uint) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.
			Where("status = ? AND ((follower_id = ? AND following_id = ?) OR (follower_id = ? AND following_id = ?))",
				models.RelationshipFollowing, actorID, targetID, targetID, actorID).
			Delete(&models.Relationship{}).Error; err != nil {
			return err
		}
		return upsertEdge(tx, actorID, targetID, models.RelationshipBlocked)
	})
	if err != nil {
		if errors.Is(err, models.ErrSelfRelationship) {
			return models.NewValidationError(err.Error())
		}
		return models.NewInternalError(err)
	}
	return nil
}

func (r *relationshipRepository) count(ctx context.Context, column string, userID uint) (int64, error) {
	var n int64
	if err := r.db.WithContext(ctx).Model(&models.Relationship{}).
		Where(column+" = ? AND status = ?", userID, models.RelationshipFollowing).
		Count(&n).Error; err != nil {
		return 0, models.NewInternalError(err)
	}
	return n, nil
}

func (r *relationshipRepository) CountFollowers(ctx context.Context, userID uint) (int64, error) {
	return r.count(ctx, "following_id", userID)
}

func (r *relationshipRepository) CountFollowing(ctx context.Context, userID uint) (int64, error) {
	return r.count(ctx, "follower_id", userID)
}

// listUsers joins users on joinColumn for edges where whereColumn = userID.
func (r *relationshipRepository) listUsers(ctx context.Context, joinColumn, whereColumn string, userID uint, status models.RelationshipStatus, page Page) ([]models.User, error) {
	page = page.normalized()
	var users []models.User
	if err := r.db.WithContext(ctx).
		Model(&models.User{}).
		Joins("JOIN relationships rel ON rel."+joinColumn+" = users.id").
		Where("rel."+whereColumn+" = ? AND rel.status = ?", userID, status).
		Order("rel.created_at DESC").
		Limit(page.Limit).
		Offset(page.Offset).
		Find(&users).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	return users, nil
}

func (r *relationshipRepository) ListFollowers(ctx context.Context, userID uint, page Page) ([]models.User, error) {
	return r.listUsers(ctx, "follower_id", "following_id", userID, models.RelationshipFollowing, page)
}

func (r *relationshipRepository) ListFollowing(ctx context.Context, userID uint, page Page) ([]models.User, error) {
	return r.listUsers(ctx, "following_id", "follower_id", userID, models.RelationshipFollowing, page)
}

func (r *relationshipRepository) ListBlocked(ctx context.Context, userID uint, page Page) ([]models.User, error) {
	return r.listUsers(ctx, "following_id", "follower_id", userID, models.RelationshipBlocked, page)
}
