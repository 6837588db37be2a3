package server

import (
	"encoding/json"
	"strconv"

	"blogshive/internal/models"

	"github.com/gofiber/fiber/v2"
)

// GetNotifications handles GET /api/notifications
// @Summary List notifications, newest first
// @Description Cursor pagination: pass next_cursor from the previous page as cursor.
// @Tags notifications
// @Security BearerAuth
// @Produce json
// @Param limit query int false "Page size (1-50)" default(20)
// @Param cursor query string false "created_at of the last item seen"
// @Success 200 {object} models.NotificationPage
// @Failure 400 {object} models.ErrorResponse
// @Router /notifications [get]
func (s *Server) GetNotifications(c *fiber.Ctx) error {
	page, err := s.notificationService.LoadNotifications(c.UserContext(), userID(c),
		c.QueryInt("limit", 0), c.Query("cursor"))
	if err != nil {
		return s.respondError(c, err)
	}
	return c.JSON(page)
}

// GetUnreadCount handles GET /api/notifications/unread-count
// @Summary Number of unread notifications
// @Tags notifications
// @Security BearerAuth
// @Produce json
// @Success 200 {object} object{unread_count=int}
// @Router /notifications/unread-count [get]
func (s *Server) GetUnreadCount(c *fiber.Ctx) error {
	count, err := s.notificationService.UnreadCount(c.UserContext(), userID(c))
	if err != nil {
		return s.respondError(c, err)
	}
	return c.JSON(fiber.Map{"unread_count": count})
}

// MarkNotificationsRead handles POST /api/notifications/read
// @Summary Mark notifications read
// @Description Without ids every unread notification is marked.
// @Tags notifications
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param request body object{ids=[]string} false "Notification IDs"
// @Success 200 {object} object{modified=int}
// @Failure 400 {object} models.ErrorResponse
// @Router /notifications/read [post]
func (s *Server) MarkNotificationsRead(c *fiber.Ctx) error {
	var req struct {
		IDs []json.Number `json:"ids"`
	}
	if len(c.Body()) > 0 {
		if err := parseBody(c, &req); err != nil {
			return nil
		}
	}

	ids := make([]uint, 0, len(req.IDs))
	for _, raw := range req.IDs {
		id, err := strconv.ParseUint(raw.String(), 10, 32)
		if err != nil || id == 0 {
			return models.RespondWithError(c, fiber.StatusBadRequest,
				models.NewValidationError("Invalid notification ID: "+raw.String()))
		}
		ids = append(ids, uint(id))
	}

	modified, err := s.notificationService.MarkNotificationsRead(c.UserContext(), userID(c), ids)
	if err != nil {
		return s.respondError(c, err)
	}
	return c.JSON(fiber.Map{"modified": modified})
}

// DeleteNotification handles DELETE /api/notifications/:id
// @Summary Delete a notification
// @Tags notifications
// @Security BearerAuth
// @Param id path int true "Notification ID"
// @Success 204
// @Failure 403 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Router /notifications/{id} [delete]
func (s *Server) DeleteNotification(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	if err := s.notificationService.DeleteNotification(c.UserContext(), userID(c), id); err != nil {
		return s.respondError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// SendSystemNotification handles POST /api/admin/notifications
// @Summary Send a system notification to a user
// @Tags admin
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param request body object{user_id=int,message=string,metadata=object} true "Notification"
// @Success 201 {object} models.NotificationPayload
// @Failure 400 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Router /admin/notifications [post]
func (s *Server) SendSystemNotification(c *fiber.Ctx) error {
	var req struct {
		UserID   uint           `json:"user_id"`
		Message  string         `json:"message"`
		Metadata map[string]any `json:"metadata"`
	}
	if err := parseBody(c, &req); err != nil {
		return nil
	}
	if req.UserID == 0 {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("user_id is required"))
	}

	payload, err := s.notificationService.SendSystemNotification(c.UserContext(), req.UserID, req.Message, req.Metadata)
	if err != nil {
		return s.respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(payload)
}
