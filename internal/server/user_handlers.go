package server

import (
	"blogshive/internal/service"

	"github.com/gofiber/fiber/v2"
)

// GetMyProfile handles GET /api/users/me
// @Summary Get current user profile
// @Tags users
// @Security BearerAuth
// @Produce json
// @Success 200 {object} models.User
// @Failure 401 {object} models.ErrorResponse
// @Router /users/me [get]
func (s *Server) GetMyProfile(c *fiber.Ctx) error {
	user, err := s.userService.GetMe(c.UserContext(), userID(c))
	if err != nil {
		return s.respondError(c, err)
	}
	return c.JSON(user)
}

// UpdateMyProfile handles PUT /api/users/me
// @Summary Update current user profile
// @Tags users
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param request body object{username=string,name=string,bio=string,avatar=string,pronouns=string,followed_topics=[]string} true "Fields to change"
// @Success 200 {object} models.User
// @Failure 400 {object} models.ErrorResponse
// @Failure 409 {object} models.ErrorResponse
// @Router /users/me [put]
func (s *Server) UpdateMyProfile(c *fiber.Ctx) error {
	var req struct {
		Username       *string   `json:"username"`
		Name           *string   `json:"name"`
		Bio            *string   `json:"bio"`
		Avatar         *string   `json:"avatar"`
		Pronouns       *string   `json:"pronouns"`
		FollowedTopics *[]string `json:"followed_topics"`
	}
	if err := parseBody(c, &req); err != nil {
		return nil
	}

	user, err := s.userService.UpdateProfile(c.UserContext(), service.UpdateProfileInput{
		UserID:         userID(c),
		Username:       req.Username,
		Name:           req.Name,
		Bio:            req.Bio,
		Avatar:         req.Avatar,
		Pronouns:       req.Pronouns,
		FollowedTopics: req.FollowedTopics,
	})
	if err != nil {
		return s.respondError(c, err)
	}
	return c.JSON(user)
}

// DeleteMyAccount handles DELETE /api/users/me
// @Summary Delete the current account
// @Tags users
// @Security BearerAuth
// @Accept json
// @Param request body object{password=string} true "Password confirmation"
// @Success 204
// @Failure 401 {object} models.ErrorResponse
// @Router /users/me [delete]
func (s *Server) DeleteMyAccount(c *fiber.Ctx) error {
	var req struct {
		Password string `json:"password"`
	}
	if err := parseBody(c, &req); err != nil {
		return nil
	}
	if err := s.userService.DeleteAccount(c.UserContext(), userID(c), req.Password); err != nil {
		return s.respondError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// GetSavedPosts handles GET /api/users/me/saved
// @Summary List saved posts
// @Tags users
// @Security BearerAuth
// @Produce json
// @Param limit query int false "Page size" default(20)
// @Param offset query int false "Offset" default(0)
// @Success 200 {array} models.Post
// @Router /users/me/saved [get]
func (s *Server) GetSavedPosts(c *fiber.Ctx) error {
	posts, err := s.bookmarkService.ListSaved(c.UserContext(), userID(c), parsePagination(c, 20))
	if err != nil {
		return s.respondError(c, err)
	}
	return c.JSON(posts)
}

// GetUserProfile handles GET /api/users/:username
// @Summary Public profile with follow stats
// @Tags users
// @Produce json
// @Param username path string true "Username"
// @Success 200 {object} service.Profile
// @Failure 404 {object} models.ErrorResponse
// @Router /users/{username} [get]
func (s *Server) GetUserProfile(c *fiber.Ctx) error {
	profile, err := s.userService.GetProfile(c.UserContext(), c.Params("username"), s.optionalUserID(c))
	if err != nil {
		return s.respondError(c, err)
	}
	return c.JSON(profile)
}

// GetUserPosts handles GET /api/users/:id/posts
// @Summary Published posts by an author
// @Tags users
// @Produce json
// @Param id path int true "Author ID"
// @Success 200 {array} models.Post
// @Router /users/{id}/posts [get]
func (s *Server) GetUserPosts(c *fiber.Ctx) error {
	authorID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	viewer := s.optionalUserID(c)

	posts, err := s.postService.ListByAuthor(c.UserContext(), authorID, viewer, parsePagination(c, 20))
	if err != nil {
		return s.respondError(c, err)
	}
	return c.JSON(posts)
}
