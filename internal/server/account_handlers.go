package server

import (
	"blogshive/internal/models"
	"blogshive/internal/service"

	"github.com/gofiber/fiber/v2"
)

// FlagNewsletter gates the newsletter endpoints.
const FlagNewsletter = "newsletter"

// GetSettings handles GET /api/settings
// @Summary Current user's settings
// @Tags settings
// @Security BearerAuth
// @Produce json
// @Success 200 {object} models.UserSetting
// @Router /settings [get]
func (s *Server) GetSettings(c *fiber.Ctx) error {
	setting, err := s.settingsService.GetSettings(c.UserContext(), userID(c))
	if err != nil {
		return s.respondError(c, err)
	}
	return c.JSON(setting)
}

// UpdateSettings handles PUT /api/settings
// @Summary Change settings
// @Tags settings
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param request body object{theme=string,language=string,email_notifications=bool,push_notifications=bool,show_reading_activity=bool} true "Fields to change"
// @Success 200 {object} models.UserSetting
// @Failure 400 {object} models.ErrorResponse
// @Router /settings [put]
func (s *Server) UpdateSettings(c *fiber.Ctx) error {
	var req struct {
		Theme               *models.Theme `json:"theme"`
		Language            *string       `json:"language"`
		EmailNotifications  *bool         `json:"email_notifications"`
		PushNotifications   *bool         `json:"push_notifications"`
		ShowReadingActivity *bool         `json:"show_reading_activity"`
	}
	if err := parseBody(c, &req); err != nil {
		return nil
	}

	setting, err := s.settingsService.UpdateSettings(c.UserContext(), service.UpdateSettingsInput{
		UserID:              userID(c),
		Theme:               req.Theme,
		Language:            req.Language,
		EmailNotifications:  req.EmailNotifications,
		PushNotifications:   req.PushNotifications,
		ShowReadingActivity: req.ShowReadingActivity,
	})
	if err != nil {
		return s.respondError(c, err)
	}
	return c.JSON(setting)
}

// Subscribe handles POST /api/newsletter/subscribe
// @Summary Subscribe an email to the newsletter
// @Description A signed-in caller's account is linked to the subscription.
// @Tags newsletter
// @Accept json
// @Produce json
// @Param request body object{email=string} true "Email"
// @Success 200 {object} models.NewsletterSubscription
// @Failure 400 {object} models.ErrorResponse
// @Router /newsletter/subscribe [post]
func (s *Server) Subscribe(c *fiber.Ctx) error {
	var req struct {
		Email string `json:"email"`
	}
	if err := parseBody(c, &req); err != nil {
		return nil
	}

	var owner *uint
	if uid := s.optionalUserID(c); uid != 0 {
		owner = &uid
	}
	sub, err := s.newsletterService.Subscribe(c.UserContext(), req.Email, owner)
	if err != nil {
		return s.respondError(c, err)
	}
	return c.JSON(sub)
}

// Unsubscribe handles POST /api/newsletter/unsubscribe
// @Summary Unsubscribe an email
// @Tags newsletter
// @Accept json
// @Produce json
// @Param request body object{email=string} true "Email"
// @Success 200 {object} models.NewsletterSubscription
// @Failure 404 {object} models.ErrorResponse
// @Router /newsletter/unsubscribe [post]
func (s *Server) Unsubscribe(c *fiber.Ctx) error {
	var req struct {
		Email string `json:"email"`
	}
	if err := parseBody(c, &req); err != nil {
		return nil
	}

	sub, err := s.newsletterService.Unsubscribe(c.UserContext(), req.Email)
	if err != nil {
		return s.respondError(c, err)
	}
	return c.JSON(sub)
}

// SetMembership handles PUT /api/admin/users/:id/membership
// @Summary Grant or revoke membership
// @Tags admin
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param id path int true "User ID"
// @Param request body object{is_member=bool} true "Membership"
// @Success 200 {object} models.User
// @Failure 404 {object} models.ErrorResponse
// @Router /admin/users/{id}/membership [put]
func (s *Server) SetMembership(c *fiber.Ctx) error {
	targetID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	var req struct {
		IsMember *bool `json:"is_member"`
	}
	if err := parseBody(c, &req); err != nil {
		return nil
	}
	if req.IsMember == nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("is_member is required"))
	}

	user, err := s.userService.SetMembership(c.UserContext(), targetID, *req.IsMember)
	if err != nil {
		return s.respondError(c, err)
	}
	return c.JSON(user)
}

// GetFeatureFlags handles GET /api/feature-flags
// @Summary Feature flags evaluated for the caller
// @Tags meta
// @Produce json
// @Success 200 {object} map[string]bool
// @Router /feature-flags [get]
func (s *Server) GetFeatureFlags(c *fiber.Ctx) error {
	return c.JSON(s.featureFlags.Snapshot(s.optionalUserID(c)))
}

// FeatureRequired returns 404 for routes behind a disabled flag.
func (s *Server) FeatureRequired(flag string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if !s.featureFlags.Enabled(flag, s.optionalUserID(c)) {
			return models.RespondWithError(c, fiber.StatusNotFound,
				models.NewNotFoundError("Feature", flag))
		}
		return c.Next()
	}
}
