package service

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"unicode/utf8"

	"blogshive/internal/models"
	"blogshive/internal/repository"
	"blogshive/internal/validation"
)

const maxCommentLen = 10000

// mentionRegex captures the whole handle-like token after @; it is then held to
// the username rules, so "@bob_" never degrades to "bob".
var mentionRegex = regexp.MustCompile(`(?:^|[^A-Za-z0-9_@-])@([A-Za-z0-9_-]+)`)

type CommentService struct {
	commentRepo   repository.CommentRepository
	postRepo      repository.PostRepository
	userRepo      repository.UserRepository
	notifications NotificationCreator
}

type CreateCommentInput struct {
	UserID   uint
	PostID   uint
	ParentID *uint
	Content  string
}

type UpdateCommentInput struct {
	UserID    uint
	CommentID uint
	Content   string
}

func NewCommentService(
	commentRepo repository.CommentRepository,
	postRepo repository.PostRepository,
	userRepo repository.UserRepository,
	notifications NotificationCreator,
) *CommentService {
	return &CommentService{
		commentRepo:   commentRepo,
		postRepo:      postRepo,
		userRepo:      userRepo,
		notifications: notifications,
	}
}

func validateCommentContent(content string) (string, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return "", models.NewValidationError("Content is required")
	}
	if utf8.RuneCountInString(content) > maxCommentLen {
		return "", models.NewValidationError(fmt.Sprintf("Comment too long (max %d characters)", maxCommentLen))
	}
	return content, nil
}

// CreateComment adds a response to a published post (or a reply to another
// response on the same post) and notifies the post author or parent author
// plus every mentioned user.
func (s *CommentService) CreateComment(ctx context.Context, in CreateCommentInput) (*models.Comment, error) {
	content, err := validateCommentContent(in.Content)
	if err != nil {
		return nil, err
	}

	post, err := s.postRepo.GetByID(ctx, in.PostID)
	if err != nil {
		return nil, err
	}
	author, err := s.userRepo.GetByID(ctx, in.UserID)
	if err != nil {
		return nil, err
	}
	if err := canRead(post, author, in.PostID); err != nil {
		return nil, err
	}
	if !post.Published {
		return nil, models.NewValidationError("Cannot respond to an unpublished post")
	}

	var parent *models.Comment
	if in.ParentID != nil {
		parent, err = s.commentRepo.GetByID(ctx, *in.ParentID)
		if err != nil {
			return nil, err
		}
		if parent.PostID != post.ID {
			return nil, models.NewValidationError("Parent comment belongs to a different post")
		}
	}

	comment := &models.Comment{
		PostID:    post.ID,
		AuthorID:  in.UserID,
		ParentID:  in.ParentID,
		Content:   content,
		IsVisible: true,
	}
	if err := s.commentRepo.Create(ctx, comment); err != nil {
		return nil, err
	}

	s.notifyComment(ctx, author, post, parent, comment)

	return s.commentRepo.GetByID(ctx, comment.ID)
}

func (s *CommentService) notifyComment(ctx context.Context, author *models.User, post *models.Post, parent *models.Comment, comment *models.Comment) {
	if s.notifications == nil {
		return
	}
	postID := post.ID
	senderID := author.ID
	metadata := map[string]any{"comment_id": formatID(comment.ID)}
	notified := map[uint]struct{}{author.ID: {}}

	send := func(recipient uint, typ models.NotificationType, message string) {
		if _, done := notified[recipient]; done {
			return
		}
		notified[recipient] = struct{}{}
		_, err := s.notifications.CreateNotification(ctx, CreateNotificationInput{
			RecipientID: recipient,
			SenderID:    &senderID,
			Type:        typ,
			PostID:      &postID,
			Message:     message,
			Metadata:    metadata,
		})
		if err != nil {
			slog.WarnContext(ctx, "failed to create comment notification",
				"type", typ, "comment_id", comment.ID, "recipient_id", recipient, "err", err)
		}
	}

	name := author.DisplayName()
	if parent != nil {
		send(parent.AuthorID, models.NotificationReply, fmt.Sprintf("%s replied to your response", name))
	} else {
		send(post.AuthorID, models.NotificationComment, fmt.Sprintf("%s responded to %q", name, post.Title))
	}

	usernames := ExtractMentions(comment.Content)
	if len(usernames) == 0 {
		return
	}
	mentioned, err := s.userRepo.GetByUsernames(ctx, usernames)
	if err != nil {
		slog.WarnContext(ctx, "failed to resolve mentions", "comment_id", comment.ID, "err", err)
		return
	}
	for _, u := range mentioned {
		send(u.ID, models.NotificationMention, fmt.Sprintf("%s mentioned you in a response", name))
	}
}

// ExtractMentions returns the distinct @usernames in content, lowercased, in order of appearance.
func ExtractMentions(content string) []string {
	var out []string
	seen := make(map[string]struct{})
	for _, m := range mentionRegex.FindAllStringSubmatch(content, -1) {
		if validation.ValidateUsername(m[1]) != nil {
			continue
		}
		name := strings.ToLower(m[1])
		if _, dup := seen[name]; dup {
			continue
		}
		seen[name] = struct{}{}
		out = append(out, name)
	}
	return out
}

// ListComments returns the post's responses as a reply tree. Hidden responses
// are shown only to their author, the post author and admins.
func (s *CommentService) ListComments(ctx context.Context, postID, viewerID uint) ([]*models.Comment, error) {
	post, err := s.postRepo.GetByID(ctx, postID)
	if err != nil {
		return nil, err
	}
	var viewer *models.User
	if viewerID != 0 {
		if viewer, err = s.userRepo.GetByID(ctx, viewerID); err != nil {
			return nil, err
		}
	}
	if err := canRead(post, viewer, postID); err != nil {
		return nil, err
	}

	comments, err := s.commentRepo.ListByPost(ctx, postID)
	if err != nil {
		return nil, err
	}

	moderator := viewer != nil && (viewer.IsAdmin || viewer.ID == post.AuthorID)
	return BuildCommentTree(comments, func(c *models.Comment) bool {
		return c.IsVisible || moderator || (viewer != nil && c.AuthorID == viewer.ID)
	}), nil
}

// BuildCommentTree nests creation-ordered comments under their parents in one
// pass. A comment whose parent is absent or filtered out becomes a root.
func BuildCommentTree(comments []*models.Comment, visible func(*models.Comment) bool) []*models.Comment {
	byID := make(map[uint]*models.Comment, len(comments))
	roots := make([]*models.Comment, 0)
	for _, c := range comments {
		if visible != nil && !visible(c) {
			continue
		}
		c.Replies = make([]*models.Comment, 0)
		byID[c.ID] = c
		if c.ParentID != nil {
			if parent, ok := byID[*c.ParentID]; ok {
				parent.Replies = append(parent.Replies, c)
				continue
			}
		}
		roots = append(roots, c)
	}
	return roots
}

// UpdateComment edits the content of the caller's own comment.
func (s *CommentService) UpdateComment(ctx context.Context, in UpdateCommentInput) (*models.Comment, error) {
	comment, err := s.commentRepo.GetByID(ctx, in.CommentID)
	if err != nil {
		return nil, err
	}
	if comment.AuthorID != in.UserID {
		return nil, models.NewForbiddenError("You can only edit your own responses")
	}
	content, err := validateCommentContent(in.Content)
	if err != nil {
		return nil, err
	}
	if err := s.commentRepo.UpdateContent(ctx, comment.ID, content); err != nil {
		return nil, err
	}
	return s.commentRepo.GetByID(ctx, comment.ID)
}

// moderates reports whether userID is the post's author or an admin.
func (s *CommentService) moderates(ctx context.Context, userID, postID uint) (bool, error) {
	post, err := s.postRepo.GetByID(ctx, postID)
	if err != nil {
		return false, err
	}
	if post.AuthorID == userID {
		return true, nil
	}
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return false, err
	}
	return user.IsAdmin, nil
}

// DeleteComment removes a comment with all its replies. Allowed for the
// comment author, the post author and admins. Returns the number removed.
func (s *CommentService) DeleteComment(ctx context.Context, userID, commentID uint) (int64, error) {
	comment, err := s.commentRepo.GetByID(ctx, commentID)
	if err != nil {
		return 0, err
	}
	if comment.AuthorID != userID {
		ok, err := s.moderates(ctx, userID, comment.PostID)
		if err != nil {
			return 0, err
		}
		if !ok {
			return 0, models.NewForbiddenError("You can only delete your own responses")
		}
	}
	return s.commentRepo.DeleteWithReplies(ctx, comment)
}

// SetCommentVisibility hides or shows a comment. Allowed for the post author and admins.
func (s *CommentService) SetCommentVisibility(ctx context.Context, userID, commentID uint, visible bool) (*models.Comment, error) {
	comment, err := s.commentRepo.GetByID(ctx, commentID)
	if err != nil {
		return nil, err
	}
	ok, err := s.moderates(ctx, userID, comment.PostID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, models.NewForbiddenError("Only the post author can moderate responses")
	}
	if err := s.commentRepo.SetVisibility(ctx, commentID, visible); err != nil {
		return nil, err
	}
	comment.IsVisible = visible
	return comment, nil
}
