package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"blogshive/internal/models"
	"blogshive/internal/observability"
	"blogshive/internal/repository"
)

const (
	maxTitleLen    = 200
	maxSubtitleLen = 300
	maxBlocks      = 500
	maxTags        = 5
	maxTagLen      = 30
)

type PostService struct {
	postRepo      repository.PostRepository
	bookmarkRepo  repository.BookmarkRepository
	userRepo      repository.UserRepository
	notifications NotificationCreator
}

type CreatePostInput struct {
	AuthorID   uint
	Title      string
	Subtitle   string
	Content    []models.Block
	Tags       []string
	CoverImage string
	Visibility models.Visibility
}

// UpdatePostInput changes only the non-nil fields.
type UpdatePostInput struct {
	UserID     uint
	PostID     uint
	Title      *string
	Subtitle   *string
	Content    *[]models.Block
	Tags       *[]string
	CoverImage *string
	Visibility *models.Visibility
}

type FeedInput struct {
	ViewerID uint
	Tag      string
	Page     repository.Page
}

func NewPostService(
	postRepo repository.PostRepository,
	bookmarkRepo repository.BookmarkRepository,
	userRepo repository.UserRepository,
	notifications NotificationCreator,
) *PostService {
	return &PostService{
		postRepo:      postRepo,
		bookmarkRepo:  bookmarkRepo,
		userRepo:      userRepo,
		notifications: notifications,
	}
}

// CreatePost stores a new draft with a unique slug derived from the title.
func (s *PostService) CreatePost(ctx context.Context, in CreatePostInput) (*models.Post, error) {
	title := strings.TrimSpace(in.Title)
	if err := validateTitle(title); err != nil {
		return nil, err
	}
	if err := validateSubtitle(in.Subtitle); err != nil {
		return nil, err
	}
	if err := validateBlocks(in.Content); err != nil {
		return nil, err
	}
	tags, err := normalizeTags(in.Tags)
	if err != nil {
		return nil, err
	}
	visibility := in.Visibility
	if visibility == "" {
		visibility = models.VisibilityPublic
	}
	if !visibility.Valid() {
		return nil, models.NewValidationError("Invalid visibility")
	}

	slug, err := uniqueSlug(ctx, s.postRepo, title)
	if err != nil {
		return nil, err
	}

	post := &models.Post{
		AuthorID:           in.AuthorID,
		Title:              title,
		Subtitle:           strings.TrimSpace(in.Subtitle),
		Slug:               slug,
		Content:            in.Content,
		Tags:               tags,
		CoverImage:         in.CoverImage,
		Visibility:         visibility,
		ReadingTimeMinutes: models.ReadingTime(in.Content),
	}
	if err := s.postRepo.Create(ctx, post); err != nil {
		return nil, err
	}
	return s.postRepo.GetByID(ctx, post.ID)
}

// ownedPost loads the post and checks userID is its author.
func (s *PostService) ownedPost(ctx context.Context, userID, postID uint) (*models.Post, error) {
	post, err := s.postRepo.GetByID(ctx, postID)
	if err != nil {
		return nil, err
	}
	if post.AuthorID != userID {
		return nil, models.NewForbiddenError("You can only modify your own posts")
	}
	return post, nil
}

func (s *PostService) UpdatePost(ctx context.Context, in UpdatePostInput) (*models.Post, error) {
	post, err := s.ownedPost(ctx, in.UserID, in.PostID)
	if err != nil {
		return nil, err
	}

	if in.Title != nil {
		title := strings.TrimSpace(*in.Title)
		if err := validateTitle(title); err != nil {
			return nil, err
		}
		post.Title = title
	}
	if in.Subtitle != nil {
		if err := validateSubtitle(*in.Subtitle); err != nil {
			return nil, err
		}
		post.Subtitle = strings.TrimSpace(*in.Subtitle)
	}
	if in.Content != nil {
		if err := validateBlocks(*in.Content); err != nil {
			return nil, err
		}
		post.Content = *in.Content
		post.ReadingTimeMinutes = models.ReadingTime(post.Content)
	}
	if in.Tags != nil {
		tags, err := normalizeTags(*in.Tags)
		if err != nil {
			return nil, err
		}
		post.Tags = tags
	}
	if in.CoverImage != nil {
		post.CoverImage = *in.CoverImage
	}
	if in.Visibility != nil {
		if !in.Visibility.Valid() {
			return nil, models.NewValidationError("Invalid visibility")
		}
		post.Visibility = *in.Visibility
	}

	if err := s.postRepo.Update(ctx, post); err != nil {
		return nil, err
	}
	return s.postRepo.GetByID(ctx, post.ID)
}

// SetPublished publishes or unpublishes the author's post. The first publish
// time is kept across unpublish/republish.
func (s *PostService) SetPublished(ctx context.Context, userID, postID uint, published bool) (*models.Post, error) {
	post, err := s.ownedPost(ctx, userID, postID)
	if err != nil {
		return nil, err
	}
	if published && len(post.Content) == 0 {
		return nil, models.NewValidationError("Cannot publish an empty post")
	}
	post.Published = published
	if published && post.PublishedAt == nil {
		now := time.Now().UTC()
		post.PublishedAt = &now
	}
	if err := s.postRepo.Update(ctx, post); err != nil {
		return nil, err
	}
	return post, nil
}

// DeletePost removes a post. Allowed for its author and admins.
func (s *PostService) DeletePost(ctx context.Context, userID, postID uint) error {
	post, err := s.postRepo.GetByID(ctx, postID)
	if err != nil {
		return err
	}
	if post.AuthorID != userID {
		user, err := s.userRepo.GetByID(ctx, userID)
		if err != nil {
			return err
		}
		if !user.IsAdmin {
			return models.NewForbiddenError("You can only delete your own posts")
		}
	}
	return s.postRepo.Delete(ctx, postID)
}

// viewer resolves the optional viewer; 0 means anonymous.
func (s *PostService) viewer(ctx context.Context, viewerID uint) (*models.User, error) {
	if viewerID == 0 {
		return nil, nil
	}
	return s.userRepo.GetByID(ctx, viewerID)
}

// canRead applies visibility rules. Hidden posts are reported as not found.
func canRead(post *models.Post, viewer *models.User, ref any) error {
	if viewer != nil && viewer.ID == post.AuthorID {
		return nil
	}
	if !post.Published || post.Visibility == models.VisibilityPrivate {
		return models.NewNotFoundError("Post", ref)
	}
	if post.Visibility == models.VisibilityMembersOnly && (viewer == nil || !viewer.IsMember) {
		return models.NewForbiddenError("This story is for members only")
	}
	return nil
}

// GetPost returns the post at slug if viewerID may read it.
func (s *PostService) GetPost(ctx context.Context, slug string, viewerID uint) (*models.Post, error) {
	post, err := s.postRepo.GetBySlug(ctx, slug)
	if err != nil {
		return nil, err
	}
	viewer, err := s.viewer(ctx, viewerID)
	if err != nil {
		return nil, err
	}
	if err := canRead(post, viewer, slug); err != nil {
		return nil, err
	}
	if err := s.decorate(ctx, viewerID, []*models.Post{post}); err != nil {
		return nil, err
	}
	return post, nil
}

// readablePost loads a post by id for an interaction by viewerID.
func (s *PostService) readablePost(ctx context.Context, postID, viewerID uint) (*models.Post, error) {
	post, err := s.postRepo.GetByID(ctx, postID)
	if err != nil {
		return nil, err
	}
	viewer, err := s.viewer(ctx, viewerID)
	if err != nil {
		return nil, err
	}
	if err := canRead(post, viewer, postID); err != nil {
		return nil, err
	}
	return post, nil
}

// ListFeed returns published public posts, minus the viewer's hidden posts and blocked authors.
func (s *PostService) ListFeed(ctx context.Context, in FeedInput) ([]models.Post, error) {
	posts, err := s.postRepo.ListFeed(ctx, repository.FeedQuery{
		ViewerID: in.ViewerID,
		Tag:      strings.ToLower(strings.TrimSpace(in.Tag)),
		Page:     in.Page,
	})
	if err != nil {
		return nil, err
	}
	return posts, s.decorate(ctx, in.ViewerID, pointers(posts))
}

// ListByAuthor lists an author's posts. Authors see their own drafts.
func (s *PostService) ListByAuthor(ctx context.Context, authorID, viewerID uint, page repository.Page) ([]models.Post, error) {
	if _, err := s.userRepo.GetByID(ctx, authorID); err != nil {
		return nil, err
	}
	posts, err := s.postRepo.ListByAuthor(ctx, authorID, authorID == viewerID, page)
	if err != nil {
		return nil, err
	}
	return posts, s.decorate(ctx, viewerID, pointers(posts))
}

// decorate fills the viewer-relative Saved and MyClaps flags.
func (s *PostService) decorate(ctx context.Context, viewerID uint, posts []*models.Post) error {
	if viewerID == 0 || len(posts) == 0 {
		return nil
	}
	ids := make([]uint, len(posts))
	for i, p := range posts {
		ids[i] = p.ID
	}
	claps, err := s.postRepo.GetUserClaps(ctx, viewerID, ids)
	if err != nil {
		return err
	}
	saved, err := s.bookmarkRepo.SavedAmong(ctx, viewerID, ids)
	if err != nil {
		return err
	}
	for _, p := range posts {
		p.MyClaps = claps[p.ID]
		p.Saved = saved[p.ID]
	}
	return nil
}

// Clap adds count claps (1..50) from userID. The post author is notified on a user's first clap.
func (s *PostService) Clap(ctx context.Context, userID, postID uint, count int) (_ *repository.ClapResult, err error) {
	ctx, finish := observability.StartServiceSpan(ctx, "PostService", "Clap")
	defer func() { finish(err) }()

	if count < 1 || count > models.MaxClapsPerUser {
		return nil, models.NewValidationError(fmt.Sprintf("Clap count must be between 1 and %d", models.MaxClapsPerUser))
	}
	post, err := s.readablePost(ctx, postID, userID)
	if err != nil {
		return nil, err
	}
	if !post.Published {
		return nil, models.NewValidationError("Cannot clap for an unpublished post")
	}

	res, err := s.postRepo.AddClaps(ctx, userID, postID, count)
	if err != nil {
		return nil, err
	}
	if res.First && res.Accepted > 0 {
		s.notifyClap(ctx, userID, post)
	}
	return res, nil
}

func (s *PostService) notifyClap(ctx context.Context, userID uint, post *models.Post) {
	if s.notifications == nil {
		return
	}
	clapper, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		slog.WarnContext(ctx, "clap notification skipped, user lookup failed", "user_id", userID, "err", err)
		return
	}
	postID := post.ID
	_, err = s.notifications.CreateNotification(ctx, CreateNotificationInput{
		RecipientID: post.AuthorID,
		SenderID:    &userID,
		Type:        models.NotificationLike,
		PostID:      &postID,
		Message:     fmt.Sprintf("%s applauded %q", clapper.DisplayName(), post.Title),
	})
	if err != nil {
		slog.WarnContext(ctx, "failed to create clap notification", "post_id", post.ID, "err", err)
	}
}

func validateTitle(title string) error {
	if title == "" {
		return models.NewValidationError("Title is required")
	}
	if utf8.RuneCountInString(title) > maxTitleLen {
		return models.NewValidationError(fmt.Sprintf("Title too long (max %d characters)", maxTitleLen))
	}
	return nil
}

func validateSubtitle(subtitle string) error {
	if utf8.RuneCountInString(subtitle) > maxSubtitleLen {
		return models.NewValidationError(fmt.Sprintf("Subtitle too long (max %d characters)", maxSubtitleLen))
	}
	return nil
}

func validateBlocks(blocks []models.Block) error {
	if len(blocks) > maxBlocks {
		return models.NewValidationError(fmt.Sprintf("Too many content blocks (max %d)", maxBlocks))
	}
	for i, b := range blocks {
		if err := b.Validate(); err != nil {
			return models.NewValidationError(fmt.Sprintf("Block %d: %v", i, err))
		}
	}
	return nil
}

// normalizeTags lowercases, trims and de-duplicates tags, preserving order.
func normalizeTags(tags []string) ([]string, error) {
	out := make([]string, 0, len(tags))
	seen := make(map[string]struct{}, len(tags))
	for _, t := range tags {
		t = strings.ToLower(strings.TrimSpace(t))
		if t == "" {
			continue
		}
		if utf8.RuneCountInString(t) > maxTagLen {
			return nil, models.NewValidationError(fmt.Sprintf("Tag too long (max %d characters)", maxTagLen))
		}
		if strings.ContainsAny(t, `"%`) {
			return nil, models.NewValidationError("Tags cannot contain quotes or percent signs")
		}
		if _, dup := seen[t]; dup {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	if len(out) > maxTags {
		return nil, models.NewValidationError(fmt.Sprintf("Too many tags (max %d)", maxTags))
	}
	return out, nil
}

func pointers(posts []models.Post) []*models.Post {
	out := make([]*models.Post, len(posts))
	for i := range posts {
		out[i] = &posts[i]
	}
	return out
}
