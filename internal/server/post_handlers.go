package server

import (
	"context"

	"blogshive/internal/models"
	"blogshive/internal/service"

	"github.com/gofiber/fiber/v2"
)

type postRequest struct {
	Title      *string            `json:"title"`
	Subtitle   *string            `json:"subtitle"`
	Content    *[]models.Block    `json:"content"`
	Tags       *[]string          `json:"tags"`
	CoverImage *string            `json:"cover_image"`
	Visibility *models.Visibility `json:"visibility"`
}

func deref[T any](p *T) T {
	var zero T
	if p == nil {
		return zero
	}
	return *p
}

// GetFeed handles GET /api/posts
// @Summary Published public posts, newest first
// @Description Hidden posts and authors the caller blocked are left out for signed-in callers.
// @Tags posts
// @Produce json
// @Param tag query string false "Only posts with this tag"
// @Param limit query int false "Page size" default(20)
// @Param offset query int false "Offset" default(0)
// @Success 200 {array} models.Post
// @Router /posts [get]
func (s *Server) GetFeed(c *fiber.Ctx) error {
	posts, err := s.postService.ListFeed(c.UserContext(), service.FeedInput{
		ViewerID: s.optionalUserID(c),
		Tag:      c.Query("tag"),
		Page:     parsePagination(c, 20),
	})
	if err != nil {
		return s.respondError(c, err)
	}
	return c.JSON(posts)
}

// GetPost handles GET /api/posts/:slug
// @Summary Read a post by slug
// @Tags posts
// @Produce json
// @Param slug path string true "Post slug"
// @Success 200 {object} models.Post
// @Failure 403 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Router /posts/{slug} [get]
func (s *Server) GetPost(c *fiber.Ctx) error {
	post, err := s.postService.GetPost(c.UserContext(), c.Params("slug"), s.optionalUserID(c))
	if err != nil {
		return s.respondError(c, err)
	}
	return c.JSON(post)
}

// CreatePost handles POST /api/posts
// @Summary Create a draft
// @Tags posts
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param request body postRequest true "Draft"
// @Success 201 {object} models.Post
// @Failure 400 {object} models.ErrorResponse
// @Router /posts [post]
func (s *Server) CreatePost(c *fiber.Ctx) error {
	var req postRequest
	if err := parseBody(c, &req); err != nil {
		return nil
	}

	post, err := s.postService.CreatePost(c.UserContext(), service.CreatePostInput{
		AuthorID:   userID(c),
		Title:      deref(req.Title),
		Subtitle:   deref(req.Subtitle),
		Content:    deref(req.Content),
		Tags:       deref(req.Tags),
		CoverImage: deref(req.CoverImage),
		Visibility: deref(req.Visibility),
	})
	if err != nil {
		return s.respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(post)
}

// UpdatePost handles PUT /api/posts/:id
// @Summary Edit a post
// @Tags posts
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param id path int true "Post ID"
// @Param request body postRequest true "Fields to change"
// @Success 200 {object} models.Post
// @Failure 403 {object} models.ErrorResponse
// @Router /posts/{id} [put]
func (s *Server) UpdatePost(c *fiber.Ctx) error {
	postID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	var req postRequest
	if err := parseBody(c, &req); err != nil {
		return nil
	}

	post, err := s.postService.UpdatePost(c.UserContext(), service.UpdatePostInput{
		UserID:     userID(c),
		PostID:     postID,
		Title:      req.Title,
		Subtitle:   req.Subtitle,
		Content:    req.Content,
		Tags:       req.Tags,
		CoverImage: req.CoverImage,
		Visibility: req.Visibility,
	})
	if err != nil {
		return s.respondError(c, err)
	}
	return c.JSON(post)
}

// PublishPost handles POST /api/posts/:id/publish
// @Summary Publish a draft
// @Tags posts
// @Security BearerAuth
// @Produce json
// @Param id path int true "Post ID"
// @Success 200 {object} models.Post
// @Router /posts/{id}/publish [post]
func (s *Server) PublishPost(c *fiber.Ctx) error {
	return s.setPublished(c, true)
}

// UnpublishPost handles POST /api/posts/:id/unpublish
// @Summary Return a post to drafts
// @Tags posts
// @Security BearerAuth
// @Produce json
// @Param id path int true "Post ID"
// @Success 200 {object} models.Post
// @Router /posts/{id}/unpublish [post]
func (s *Server) UnpublishPost(c *fiber.Ctx) error {
	return s.setPublished(c, false)
}

func (s *Server) setPublished(c *fiber.Ctx, published bool) error {
	postID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	post, err := s.postService.SetPublished(c.UserContext(), userID(c), postID, published)
	if err != nil {
		return s.respondError(c, err)
	}
	return c.JSON(post)
}

// DeletePost handles DELETE /api/posts/:id
// @Summary Delete a post and its comments
// @Tags posts
// @Security BearerAuth
// @Param id path int true "Post ID"
// @Success 204
// @Failure 403 {object} models.ErrorResponse
// @Router /posts/{id} [delete]
func (s *Server) DeletePost(c *fiber.Ctx) error {
	postID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	if err := s.postService.DeletePost(c.UserContext(), userID(c), postID); err != nil {
		return s.respondError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// ClapPost handles POST /api/posts/:id/clap
// @Summary Clap for a post
// @Tags posts
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param id path int true "Post ID"
// @Param request body object{count=int} false "Claps to add (default 1)"
// @Success 200 {object} object{accepted=int,my_claps=int,clap_count=int}
// @Failure 400 {object} models.ErrorResponse
// @Router /posts/{id}/clap [post]
func (s *Server) ClapPost(c *fiber.Ctx) error {
	postID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	req := struct {
		Count int `json:"count"`
	}{Count: 1}
	if len(c.Body()) > 0 {
		if err := parseBody(c, &req); err != nil {
			return nil
		}
	}

	res, err := s.postService.Clap(c.UserContext(), userID(c), postID, req.Count)
	if err != nil {
		return s.respondError(c, err)
	}
	return c.JSON(fiber.Map{
		"accepted":   res.Accepted,
		"my_claps":   res.UserTotal,
		"clap_count": res.PostTotal,
	})
}

// SavePost handles POST /api/posts/:id/save
// @Summary Bookmark a post
// @Tags posts
// @Security BearerAuth
// @Param id path int true "Post ID"
// @Success 200 {object} object{saved=bool}
// @Router /posts/{id}/save [post]
func (s *Server) SavePost(c *fiber.Ctx) error {
	return s.toggleBookmark(c, s.bookmarkService.SavePost, "saved", true)
}

// UnsavePost handles DELETE /api/posts/:id/save
// @Summary Remove a bookmark
// @Tags posts
// @Security BearerAuth
// @Param id path int true "Post ID"
// @Success 200 {object} object{saved=bool}
// @Router /posts/{id}/save [delete]
func (s *Server) UnsavePost(c *fiber.Ctx) error {
	return s.toggleBookmark(c, s.bookmarkService.UnsavePost, "saved", false)
}

// HidePost handles POST /api/posts/:id/hide
// @Summary Hide a post from the caller's feed
// @Tags posts
// @Security BearerAuth
// @Param id path int true "Post ID"
// @Success 200 {object} object{hidden=bool}
// @Router /posts/{id}/hide [post]
func (s *Server) HidePost(c *fiber.Ctx) error {
	return s.toggleBookmark(c, s.bookmarkService.HidePost, "hidden", true)
}

// UnhidePost handles DELETE /api/posts/:id/hide
// @Summary Show a hidden post again
// @Tags posts
// @Security BearerAuth
// @Param id path int true "Post ID"
// @Success 200 {object} object{hidden=bool}
// @Router /posts/{id}/hide [delete]
func (s *Server) UnhidePost(c *fiber.Ctx) error {
	return s.toggleBookmark(c, s.bookmarkService.UnhidePost, "hidden", false)
}

func (s *Server) toggleBookmark(c *fiber.Ctx, op func(ctx context.Context, userID, postID uint) error, key string, state bool) error {
	postID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	if err := op(c.UserContext(), userID(c), postID); err != nil {
		return s.respondError(c, err)
	}
	return c.JSON(fiber.Map{key: state})
}
