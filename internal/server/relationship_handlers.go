package server

import (
	"github.com/gofiber/fiber/v2"
)

// FollowUser handles POST /api/relationships/:userId/follow
// @Summary Follow a user
// @Description Idempotent. Refused when the target has blocked the caller.
// @Tags relationships
// @Security BearerAuth
// @Produce json
// @Param userId path int true "Target user ID"
// @Success 200 {object} service.FollowResult
// @Failure 400 {object} models.ErrorResponse
// @Failure 403 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Router /relationships/{userId}/follow [post]
func (s *Server) FollowUser(c *fiber.Ctx) error {
	targetID, err := s.parseID(c, "userId")
	if err != nil {
		return nil
	}

	result, err := s.relationshipService.Follow(c.UserContext(), userID(c), targetID)
	if err != nil {
		return s.respondError(c, err)
	}
	return c.JSON(result)
}

// UnfollowUser handles DELETE /api/relationships/:userId/follow
// @Summary Unfollow a user
// @Tags relationships
// @Security BearerAuth
// @Produce json
// @Param userId path int true "Target user ID"
// @Success 200 {object} service.FollowResult
// @Failure 400 {object} models.ErrorResponse
// @Router /relationships/{userId}/follow [delete]
func (s *Server) UnfollowUser(c *fiber.Ctx) error {
	targetID, err := s.parseID(c, "userId")
	if err != nil {
		return nil
	}

	result, err := s.relationshipService.Unfollow(c.UserContext(), userID(c), targetID)
	if err != nil {
		return s.respondError(c, err)
	}
	return c.JSON(result)
}

// BlockUser handles POST /api/relationships/:userId/block
// @Summary Block a user
// @Description Removes follow edges in both directions, then records the block.
// @Tags relationships
// @Security BearerAuth
// @Produce json
// @Param userId path int true "Target user ID"
// @Success 200 {object} service.BlockResult
// @Failure 400 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Router /relationships/{userId}/block [post]
func (s *Server) BlockUser(c *fiber.Ctx) error {
	targetID, err := s.parseID(c, "userId")
	if err != nil {
		return nil
	}

	result, err := s.relationshipService.Block(c.UserContext(), userID(c), targetID)
	if err != nil {
		return s.respondError(c, err)
	}
	return c.JSON(result)
}

// UnblockUser handles DELETE /api/relationships/:userId/block
// @Summary Unblock a user
// @Tags relationships
// @Security BearerAuth
// @Produce json
// @Param userId path int true "Target user ID"
// @Success 200 {object} service.BlockResult
// @Router /relationships/{userId}/block [delete]
func (s *Server) UnblockUser(c *fiber.Ctx) error {
	targetID, err := s.parseID(c, "userId")
	if err != nil {
		return nil
	}

	result, err := s.relationshipService.Unblock(c.UserContext(), userID(c), targetID)
	if err != nil {
		return s.respondError(c, err)
	}
	return c.JSON(result)
}

// GetFollowers handles GET /api/relationships/:userId/followers
// @Summary List a user's followers
// @Tags relationships
// @Security BearerAuth
// @Produce json
// @Param userId path int true "User ID"
// @Param limit query int false "Page size" default(20)
// @Param offset query int false "Offset" default(0)
// @Success 200 {array} models.UserSummary
// @Router /relationships/{userId}/followers [get]
func (s *Server) GetFollowers(c *fiber.Ctx) error {
	targetID, err := s.parseID(c, "userId")
	if err != nil {
		return nil
	}

	users, err := s.relationshipService.ListFollowers(c.UserContext(), targetID, parsePagination(c, 20))
	if err != nil {
		return s.respondError(c, err)
	}
	return c.JSON(users)
}

// GetFollowing handles GET /api/relationships/:userId/following
// @Summary List the users a user follows
// @Tags relationships
// @Security BearerAuth
// @Produce json
// @Param userId path int true "User ID"
// @Success 200 {array} models.UserSummary
// @Router /relationships/{userId}/following [get]
func (s *Server) GetFollowing(c *fiber.Ctx) error {
	targetID, err := s.parseID(c, "userId")
	if err != nil {
		return nil
	}

	users, err := s.relationshipService.ListFollowing(c.UserContext(), targetID, parsePagination(c, 20))
	if err != nil {
		return s.respondError(c, err)
	}
	return c.JSON(users)
}

// GetBlockedUsers handles GET /api/relationships/blocked
// @Summary List users the caller has blocked
// @Tags relationships
// @Security BearerAuth
// @Produce json
// @Success 200 {array} models.UserSummary
// @Router /relationships/blocked [get]
func (s *Server) GetBlockedUsers(c *fiber.Ctx) error {
	users, err := s.relationshipService.ListBlocked(c.UserContext(), userID(c), parsePagination(c, 50))
	if err != nil {
		return s.respondError(c, err)
	}
	return c.JSON(users)
}

// GetFollowStats handles GET /api/relationships/:userId/stats
// @Summary Follower and following counts
// @Tags relationships
// @Security BearerAuth
// @Produce json
// @Param userId path int true "User ID"
// @Success 200 {object} models.FollowStats
// @Router /relationships/{userId}/stats [get]
func (s *Server) GetFollowStats(c *fiber.Ctx) error {
	targetID, err := s.parseID(c, "userId")
	if err != nil {
		return nil
	}

	stats, err := s.relationshipService.GetFollowStats(c.UserContext(), targetID)
	if err != nil {
		return s.respondError(c, err)
	}
	return c.JSON(stats)
}

// GetRelationshipStatus handles GET /api/relationships/:userId/status
// @Summary Edges between the caller and a user
// @Tags relationships
// @Security BearerAuth
// @Produce json
// @Param userId path int true "User ID"
// @Success 200 {object} models.RelationshipState
// @Router /relationships/{userId}/status [get]
func (s *Server) GetRelationshipStatus(c *fiber.Ctx) error {
	targetID, err := s.parseID(c, "userId")
	if err != nil {
		return nil
	}

	state, err := s.relationshipService.GetRelationshipStatus(c.UserContext(), userID(c), targetID)
	if err != nil {
		return s.respondError(c, err)
	}
	return c.JSON(state)
}
