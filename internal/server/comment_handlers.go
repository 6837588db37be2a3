package server

import (
	"blogshive/internal/models"
	"blogshive/internal/service"

	"github.com/gofiber/fiber/v2"
)

// GetComments handles GET /api/posts/:id/comments
// @Summary Responses to a post as a reply tree
// @Tags comments
// @Produce json
// @Param id path int true "Post ID"
// @Success 200 {array} models.Comment
// @Failure 404 {object} models.ErrorResponse
// @Router /posts/{id}/comments [get]
func (s *Server) GetComments(c *fiber.Ctx) error {
	postID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	tree, err := s.commentService.ListComments(c.UserContext(), postID, s.optionalUserID(c))
	if err != nil {
		return s.respondError(c, err)
	}
	return c.JSON(tree)
}

// CreateComment handles POST /api/posts/:id/comments
// @Summary Respond to a post or reply to a response
// @Tags comments
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param id path int true "Post ID"
// @Param request body object{content=string,parent_id=int} true "Response"
// @Success 201 {object} models.Comment
// @Failure 400 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Router /posts/{id}/comments [post]
func (s *Server) CreateComment(c *fiber.Ctx) error {
	postID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	var req struct {
		Content  string `json:"content"`
		ParentID *uint  `json:"parent_id"`
	}
	if err := parseBody(c, &req); err != nil {
		return nil
	}
	if req.ParentID != nil && *req.ParentID == 0 {
		req.ParentID = nil
	}

	comment, err := s.commentService.CreateComment(c.UserContext(), service.CreateCommentInput{
		UserID:   userID(c),
		PostID:   postID,
		ParentID: req.ParentID,
		Content:  req.Content,
	})
	if err != nil {
		return s.respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(comment)
}

// UpdateComment handles PUT /api/comments/:id
// @Summary Edit one's own response
// @Tags comments
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param id path int true "Comment ID"
// @Param request body object{content=string} true "New content"
// @Success 200 {object} models.Comment
// @Failure 403 {object} models.ErrorResponse
// @Router /comments/{id} [put]
func (s *Server) UpdateComment(c *fiber.Ctx) error {
	commentID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	var req struct {
		Content string `json:"content"`
	}
	if err := parseBody(c, &req); err != nil {
		return nil
	}

	comment, err := s.commentService.UpdateComment(c.UserContext(), service.UpdateCommentInput{
		UserID:    userID(c),
		CommentID: commentID,
		Content:   req.Content,
	})
	if err != nil {
		return s.respondError(c, err)
	}
	return c.JSON(comment)
}

// DeleteComment handles DELETE /api/comments/:id
// @Summary Delete a response and its replies
// @Tags comments
// @Security BearerAuth
// @Produce json
// @Param id path int true "Comment ID"
// @Success 200 {object} object{deleted=int}
// @Failure 403 {object} models.ErrorResponse
// @Router /comments/{id} [delete]
func (s *Server) DeleteComment(c *fiber.Ctx) error {
	commentID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	deleted, err := s.commentService.DeleteComment(c.UserContext(), userID(c), commentID)
	if err != nil {
		return s.respondError(c, err)
	}
	return c.JSON(fiber.Map{"deleted": deleted})
}

// SetCommentVisibility handles POST /api/comments/:id/visibility
// @Summary Hide or show a response on one's own post
// @Tags comments
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param id path int true "Comment ID"
// @Param request body object{is_visible=bool} true "Visibility"
// @Success 200 {object} models.Comment
// @Failure 403 {object} models.ErrorResponse
// @Router /comments/{id}/visibility [post]
func (s *Server) SetCommentVisibility(c *fiber.Ctx) error {
	commentID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	var req struct {
		IsVisible *bool `json:"is_visible"`
	}
	if err := parseBody(c, &req); err != nil {
		return nil
	}
	if req.IsVisible == nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("is_visible is required"))
	}

	comment, err := s.commentService.SetCommentVisibility(c.UserContext(), userID(c), commentID, *req.IsVisible)
	if err != nil {
		return s.respondError(c, err)
	}
	return c.JSON(comment)
}
