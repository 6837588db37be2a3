package service

import (
	"context"
	"fmt"
	"log/slog"

	"blogshive/internal/models"
	"blogshive/internal/observability"
	"blogshive/internal/repository"
)

// NotificationCreator is the part of NotificationService other services depend on.
type NotificationCreator interface {
	CreateNotification(ctx context.Context, in CreateNotificationInput) (*models.NotificationPayload, error)
}

// RelationshipService manages the follow/block graph.
type RelationshipService struct {
	repo          repository.RelationshipRepository
	userRepo      repository.UserRepository
	notifications NotificationCreator
}

// FollowResult is returned by Follow and Unfollow. Stats are the target's.
type FollowResult struct {
	IsFollowing bool               `json:"is_following"`
	Stats       models.FollowStats `json:"stats"`
}

// BlockResult is returned by Block and Unblock.
type BlockResult struct {
	IsBlocked bool `json:"is_blocked"`
}

func NewRelationshipService(
	repo repository.RelationshipRepository,
	userRepo repository.UserRepository,
	notifications NotificationCreator,
) *RelationshipService {
	return &RelationshipService{repo: repo, userRepo: userRepo, notifications: notifications}
}

// Follow makes actor follow target and notifies target on a new edge.
// It is refused when target has blocked actor. An actor's own block on
// target is overwritten by the follow.
func (s *RelationshipService) Follow(ctx context.Context, actorID, targetID uint) (_ *FollowResult, err error) {
	ctx, finish := observability.StartServiceSpan(ctx, "RelationshipService", "Follow")
	defer func() { finish(err) }()

	if actorID == targetID {
		return nil, models.NewValidationError("You cannot follow yourself")
	}
	if _, err := s.userRepo.GetByID(ctx, targetID); err != nil {
		return nil, err
	}

	reverse, err := s.repo.Get(ctx, targetID, actorID)
	if err != nil {
		return nil, err
	}
	if reverse != nil && reverse.Status == models.RelationshipBlocked {
		return nil, models.NewForbiddenError("You cannot follow this user")
	}

	existing, err := s.repo.Get(ctx, actorID, targetID)
	if err != nil {
		return nil, err
	}
	if existing != nil && existing.Status == models.RelationshipFollowing {
		return s.followResult(ctx, targetID, true)
	}

	if err := s.repo.Upsert(ctx, actorID, targetID, models.RelationshipFollowing); err != nil {
		return nil, err
	}
	observability.RelationshipChanges.WithLabelValues("follow").Inc()
	s.notifyFollow(ctx, actorID, targetID)

	return s.followResult(ctx, targetID, true)
}

func (s *RelationshipService) notifyFollow(ctx context.Context, actorID, targetID uint) {
	if s.notifications == nil {
		return
	}
	actor, err := s.userRepo.GetByID(ctx, actorID)
	if err != nil {
		slog.WarnContext(ctx, "follow notification skipped, actor lookup failed", "actor_id", actorID, "err", err)
		return
	}
	sender := actorID
	_, err = s.notifications.CreateNotification(ctx, CreateNotificationInput{
		RecipientID: targetID,
		SenderID:    &sender,
		Type:        models.NotificationFollow,
		Message:     fmt.Sprintf("%s started following you", actor.DisplayName()),
		Metadata:    map[string]any{"follower_id": formatID(actorID)},
	})
	if err != nil {
		slog.WarnContext(ctx, "failed to create follow notification", "actor_id", actorID, "target_id", targetID, "err", err)
	}
}

func (s *RelationshipService) followResult(ctx context.Context, targetID uint, following bool) (*FollowResult, error) {
	stats, err := s.GetFollowStats(ctx, targetID)
	if err != nil {
		return nil, err
	}
	return &FollowResult{IsFollowing: following, Stats: *stats}, nil
}

// Unfollow removes actor's follow edge to target if present.
func (s *RelationshipService) Unfollow(ctx context.Context, actorID, targetID uint) (*FollowResult, error) {
	if actorID == targetID {
		return nil, models.NewValidationError("You cannot unfollow yourself")
	}
	removed, err := s.repo.Delete(ctx, actorID, targetID, models.RelationshipFollowing)
	if err != nil {
		return nil, err
	}
	if removed {
		observability.RelationshipChanges.WithLabelValues("unfollow").Inc()
	}
	return s.followResult(ctx, targetID, false)
}

// Block removes follow edges in both directions and records actor's block on target.
func (s *RelationshipService) Block(ctx context.Context, actorID, targetID uint) (*BlockResult, error) {
	if actorID == targetID {
		return nil, models.NewValidationError("You cannot block yourself")
	}
	if _, err := s.userRepo.GetByID(ctx, targetID); err != nil {
		return nil, err
	}
	if err := s.repo.Block(ctx, actorID, targetID); err != nil {
		return nil, err
	}
	observability.RelationshipChanges.WithLabelValues("block").Inc()
	return &BlockResult{IsBlocked: true}, nil
}

// Unblock removes actor's block on target. It is a no-op when there is none.
func (s *RelationshipService) Unblock(ctx context.Context, actorID, targetID uint) (*BlockResult, error) {
	if actorID == targetID {
		return nil, models.NewValidationError("You cannot unblock yourself")
	}
	removed, err := s.repo.Delete(ctx, actorID, targetID, models.RelationshipBlocked)
	if err != nil {
		return nil, err
	}
	if removed {
		observability.RelationshipChanges.WithLabelValues("unblock").Inc()
	}
	return &BlockResult{IsBlocked: false}, nil
}

// GetFollowStats counts the user's followers and followings.
func (s *RelationshipService) GetFollowStats(ctx context.Context, userID uint) (*models.FollowStats, error) {
	followers, err := s.repo.CountFollowers(ctx, userID)
	if err != nil {
		return nil, err
	}
	following, err := s.repo.CountFollowing(ctx, userID)
	if err != nil {
		return nil, err
	}
	return &models.FollowStats{Followers: followers, Following: following}, nil
}

func (s *RelationshipService) hasEdge(ctx context.Context, from, to uint, status models.RelationshipStatus) (bool, error) {
	rel, err := s.repo.Get(ctx, from, to)
	if err != nil {
		return false, err
	}
	return rel != nil && rel.Status == status, nil
}

// IsFollowing reports whether a follows b.
func (s *RelationshipService) IsFollowing(ctx context.Context, a, b uint) (bool, error) {
	return s.hasEdge(ctx, a, b, models.RelationshipFollowing)
}

// HasBlocked reports whether a has blocked b.
func (s *RelationshipService) HasBlocked(ctx context.Context, a, b uint) (bool, error) {
	return s.hasEdge(ctx, a, b, models.RelationshipBlocked)
}

// GetRelationshipStatus describes both directed edges between viewer and target.
func (s *RelationshipService) GetRelationshipStatus(ctx context.Context, viewerID, targetID uint) (*models.RelationshipState, error) {
	forward, err := s.repo.Get(ctx, viewerID, targetID)
	if err != nil {
		return nil, err
	}
	reverse, err := s.repo.Get(ctx, targetID, viewerID)
	if err != nil {
		return nil, err
	}

	state := &models.RelationshipState{}
	if forward != nil {
		state.IsFollowing = forward.Status == models.RelationshipFollowing
		state.IsBlocked = forward.Status == models.RelationshipBlocked
	}
	if reverse != nil {
		state.IsFollowedBy = reverse.Status == models.RelationshipFollowing
		state.HasBlockedYou = reverse.Status == models.RelationshipBlocked
	}
	return state, nil
}

func (s *RelationshipService) ListFollowers(ctx context.Context, userID uint, page repository.Page) ([]models.UserSummary, error) {
	if _, err := s.userRepo.GetByID(ctx, userID); err != nil {
		return nil, err
	}
	users, err := s.repo.ListFollowers(ctx, userID, page)
	if err != nil {
		return nil, err
	}
	return summaries(users), nil
}

func (s *RelationshipService) ListFollowing(ctx context.Context, userID uint, page repository.Page) ([]models.UserSummary, error) {
	if _, err := s.userRepo.GetByID(ctx, userID); err != nil {
		return nil, err
	}
	users, err := s.repo.ListFollowing(ctx, userID, page)
	if err != nil {
		return nil, err
	}
	return summaries(users), nil
}

// ListBlocked lists the users actor has blocked.
func (s *RelationshipService) ListBlocked(ctx context.Context, actorID uint, page repository.Page) ([]models.UserSummary, error) {
	users, err := s.repo.ListBlocked(ctx, actorID, page)
	if err != nil {
		return nil, err
	}
	return summaries(users), nil
}

func summaries(users []models.User) []models.UserSummary {
	out := make([]models.UserSummary, len(users))
	for i := range users {
		out[i] = users[i].Summary()
	}
	return out
}
