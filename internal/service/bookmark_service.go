package service

import (
	"context"

	"blogshive/internal/models"
	"blogshive/internal/repository"
)

// BookmarkService manages saved posts and per-user feed suppression.
type BookmarkService struct {
	bookmarkRepo repository.BookmarkRepository
	postRepo     repository.PostRepository
	userRepo     repository.UserRepository
}

func NewBookmarkService(
	bookmarkRepo repository.BookmarkRepository,
	postRepo repository.PostRepository,
	userRepo repository.UserRepository,
) *BookmarkService {
	return &BookmarkService{bookmarkRepo: bookmarkRepo, postRepo: postRepo, userRepo: userRepo}
}

func (s *BookmarkService) readable(ctx context.Context, userID, postID uint) error {
	post, err := s.postRepo.GetByID(ctx, postID)
	if err != nil {
		return err
	}
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return err
	}
	return canRead(post, user, postID)
}

// SavePost bookmarks a readable post. Saving twice is a no-op.
func (s *BookmarkService) SavePost(ctx context.Context, userID, postID uint) error {
	if err := s.readable(ctx, userID, postID); err != nil {
		return err
	}
	return s.bookmarkRepo.Save(ctx, userID, postID)
}

func (s *BookmarkService) UnsavePost(ctx context.Context, userID, postID uint) error {
	return s.bookmarkRepo.Unsave(ctx, userID, postID)
}

// HidePost removes a post from the user's feed.
func (s *BookmarkService) HidePost(ctx context.Context, userID, postID uint) error {
	if _, err := s.postRepo.GetByID(ctx, postID); err != nil {
		return err
	}
	return s.bookmarkRepo.Hide(ctx, userID, postID)
}

func (s *BookmarkService) UnhidePost(ctx context.Context, userID, postID uint) error {
	return s.bookmarkRepo.Unhide(ctx, userID, postID)
}

// ListSaved returns the user's saved posts, newest save first. Posts the user
// can no longer read are left out.
func (s *BookmarkService) ListSaved(ctx context.Context, userID uint, page repository.Page) ([]models.Post, error) {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	posts, err := s.bookmarkRepo.ListSaved(ctx, userID, page)
	if err != nil {
		return nil, err
	}
	out := make([]models.Post, 0, len(posts))
	for _, p := range posts {
		if canRead(&p, user, p.ID) != nil {
			continue
		}
		p.Saved = true
		out = append(out, p)
	}
	return out, nil
}
