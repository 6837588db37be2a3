package repository

import (
	"context"
	"errors"

	"blogshive/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// FeedQuery selects published public posts for a viewer.
type FeedQuery struct {
	ViewerID uint // 0 for anonymous
	Tag      string
	Page     Page
}

// PostRepository persists posts and claps.
type PostRepository interface {
	Create(ctx context.Context, post *models.Post) error
	GetByID(ctx context.Context, id uint) (*models.Post, error)
	GetByIDs(ctx context.Context, ids []uint) ([]models.Post, error)
	GetBySlug(ctx context.Context, slug string) (*models.Post, error)
	SlugExists(ctx context.Context, slug string) (bool, error)
	Update(ctx context.Context, post *models.Post) error
	Delete(ctx context.Context, id uint) error
	ListFeed(ctx context.Context, q FeedQuery) ([]models.Post, error)
	ListByAuthor(ctx context.Context, authorID uint, includeDrafts bool, page Page) ([]models.Post, error)
	AddClaps(ctx context.Context, userID, postID uint, n int) (*ClapResult, error)
	GetUserClaps(ctx context.Context, userID uint, postIDs []uint) (map[uint]int, error)
}

// ClapResult reports the outcome of AddClaps.
type ClapResult struct {
	Accepted  int   // claps actually added, after the per-user cap
	UserTotal int   // the user's total on the post
	PostTotal int64 // the post's clap_count
	First     bool  // the user had not clapped this post before
}

type postRepository struct {
	db *gorm.DB
}

// NewPostRepository returns a gorm-backed PostRepository.
func NewPostRepository(db *gorm.DB) PostRepository {
	return &postRepository{db: db}
}

func (r *postRepository) Create(ctx context.Context, post *models.Post) error {
	if err := r.db.WithContext(ctx).Omit(clause.Associations).Create(post).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) || isUniqueViolation(err) {
			return models.NewConflictError("A post with this slug already exists")
		}
		return models.NewInternalError(err)
	}
	return nil
}

func (r *postRepository) GetByID(ctx context.Context, id uint) (*models.Post, error) {
	var post models.Post
	if err := r.db.WithContext(ctx).Preload("Author").First(&post, id).Error; err != nil {
		return nil, notFoundOr(err, "Post", id)
	}
	return &post, nil
}

func (r *postRepository) GetByIDs(ctx context.Context, ids []uint) ([]models.Post, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var posts []models.Post
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&posts).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	return posts, nil
}

func (r *postRepository) GetBySlug(ctx context.Context, slug string) (*models.Post, error) {
	var post models.Post
	if err := r.db.WithContext(ctx).Preload("Author").Where("slug = ?", slug).First(&post).Error; err != nil {
		return nil, notFoundOr(err, "Post", slug)
	}
	return &post, nil
}

func (r *postRepository) SlugExists(ctx context.Context, slug string) (bool, error) {
	var n int64
	if err := r.db.WithContext(ctx).Model(&models.Post{}).Where("slug = ?", slug).Count(&n).Error; err != nil {
		return false, models.NewInternalError(err)
	}
	return n > 0, nil
}

func (r *postRepository) Update(ctx context.Context, post *models.Post) error {
	err := r.db.WithContext(ctx).Model(post).Select(
		"title", "subtitle", "content", "tags", "cover_image",
		"published", "published_at", "visibility", "reading_time_minutes",
	).Updates(post).Error
	if err != nil {
		return models.NewInternalError(err)
	}
	return nil
}

// deletePostRows removes posts and everything hanging off them. Must run inside a transaction.
func deletePostRows(tx *gorm.DB, postIDs []uint) error {
	for _, m := range []any{&models.Comment{}, &models.Clap{}, &models.SavedPost{}, &models.HiddenPost{}} {
		if err := tx.Where("post_id IN ?", postIDs).Delete(m).Error; err != nil {
			return err
		}
	}
	return tx.Where("id IN ?", postIDs).Delete(&models.Post{}).Error
}

func (r *postRepository) Delete(ctx context.Context, id uint) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return deletePostRows(tx, []uint{id})
	})
	if err != nil {
		return models.NewInternalError(err)
	}
	return nil
}

// ListFeed returns published public posts, newest first, excluding posts the viewer
// hid and posts by authors the viewer blocked.
func (r *postRepository) ListFeed(ctx context.Context, q FeedQuery) ([]models.Post, error) {
	page := q.Page.normalized()
	db := r.db.WithContext(ctx).Preload("Author").
		Where("published = ? AND visibility = ?", true, models.VisibilityPublic)

	if q.ViewerID != 0 {
		db = db.
			Where("id NOT IN (?)", r.db.Model(&models.HiddenPost{}).Select("post_id").Where("user_id = ?", q.ViewerID)).
			Where("author_id NOT IN (?)", r.db.Model(&models.Relationship{}).Select("following_id").
				Where("follower_id = ? AND status = ?", q.ViewerID, models.RelationshipBlocked))
	}
	if q.Tag != "" {
		// tags is a JSON array column; match the quoted element.
		db = db.Where("tags LIKE ?", "%\""+q.Tag+"\"%")
	}

	var posts []models.Post
	if err := db.Order("published_at DESC").Order("id DESC").
		Limit(page.Limit).Offset(page.Offset).
		Find(&posts).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	return posts, nil
}

func (r *postRepository) ListByAuthor(ctx context.Context, authorID uint, includeDrafts bool, page Page) ([]models.Post, error) {
	page = page.normalized()
	db := r.db.WithContext(ctx).Preload("Author").Where("author_id = ?", authorID)
	if !includeDrafts {
		db = db.Where("published = ? AND visibility IN ?", true,
			[]models.Visibility{models.VisibilityPublic, models.VisibilityMembersOnly})
	}
	var posts []models.Post
	if err := db.Order("created_at DESC").Order("id DESC").
		Limit(page.Limit).Offset(page.Offset).
		Find(&posts).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	return posts, nil
}

// AddClaps adds up to n claps for userID, capped at models.MaxClapsPerUser in total.
// The clap row is locked for the rest of the transaction, and the post counter
// only moves by what the guarded row update actually applied.
func (r *postRepository) AddClaps(ctx context.Context, userID, postID uint, n int) (*ClapResult, error) {
	result := &ClapResult{}
	if n <= 0 {
		return result, nil
	}
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		created := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}, {Name: "post_id"}},
			DoNothing: true,
		}).Create(&models.Clap{UserID: userID, PostID: postID})
		if created.Error != nil {
			return created.Error
		}
		result.First = created.RowsAffected == 1

		var clap models.Clap
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("user_id = ? AND post_id = ?", userID, postID).
			First(&clap).Error; err != nil {
			return err
		}

		accepted := min(n, models.MaxClapsPerUser-clap.Count)
		if accepted > 0 {
			updated := tx.Model(&models.Clap{}).
				Where("id = ? AND count + ? <= ?", clap.ID, accepted, models.MaxClapsPerUser).
				Update("count", gorm.Expr("count + ?", accepted))
			if updated.Error != nil {
				return updated.Error
			}
			if updated.RowsAffected != 1 {
				accepted = 0
			}
		}
		if accepted < 0 {
			accepted = 0
		}
		result.Accepted = accepted
		result.UserTotal = clap.Count + accepted

		if accepted > 0 {
			if err := tx.Model(&models.Post{}).Where("id = ?", postID).
				Update("clap_count", gorm.Expr("clap_count + ?", accepted)).Error; err != nil {
				return err
			}
		}

		return tx.Model(&models.Post{}).Where("id = ?", postID).Select("clap_count").Scan(&result.PostTotal).Error
	})
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	return result, nil
}

// GetUserClaps returns the user's clap count per post, omitting posts without claps.
func (r *postRepository) GetUserClaps(ctx context.Context, userID uint, postIDs []uint) (map[uint]int, error) {
	out := make(map[uint]int)
	if userID == 0 || len(postIDs) == 0 {
		return out, nil
	}
	var claps []models.Clap
	if err := r.db.WithContext(ctx).Where("user_id = ? AND post_id IN ?", userID, postIDs).Find(&claps).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	for _, c := range claps {
		out[c.PostID] = c.Count
	}
	return out, nil
}
