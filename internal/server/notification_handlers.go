package server

import (
	"strconv"

	"civicpulse/internal/middleware"
	"civicpulse/internal/models"
	"civicpulse/internal/service"

	"github.com/gofiber/fiber/v2"
)

// GetNotifications handles GET /api/v1/notifications
// @Summary List own notifications
// @Tags notifications
// @Produce json
// @Param limit query int false "Page size (default 20, max 100)"
// @Param skip query int false "Rows to skip"
// @Param read query bool false "Filter by read state"
// @Param sort query string false "newest (default) or oldest"
// @Success 200 {object} object{success=bool,data=object{notifications=[]models.Notification,pagination=object{limit=int,skip=int,total=int,unreadCount=int}}}
// @Security BearerAuth
// @Router /notifications [get]
func (s *Server) GetNotifications(c *fiber.Ctx) error {
	userID, _ := middleware.CurrentUserID(c)

	in := service.ListNotificationsInput{
		Limit:  c.QueryInt("limit", 0),
		Skip:   c.QueryInt("skip", 0),
		Oldest: c.Query("sort") == "oldest",
	}
	if raw := c.Query("read"); raw != "" {
		read, err := strconv.ParseBool(raw)
		if err != nil {
			return badRequest(c, "Invalid read filter")
		}
		in.Read = &read
	}

	page, err := s.notificationService.List(c.UserContext(), userID, in)
	if err != nil {
		return respondError(c, err)
	}
	items := page.Items
	if items == nil {
		items = []models.Notification{}
	}
	return c.JSON(fiber.Map{
		"success": true,
		"data": fiber.Map{
			"notifications": items,
			"pagination": fiber.Map{
				"limit":       page.Limit,
				"skip":        page.Skip,
				"total":       page.Total,
				"unreadCount": page.UnreadCount,
			},
		},
	})
}

// GetUnreadCount handles GET /api/v1/notifications/unread/count
// @Summary Unread notification count
// @Tags notifications
// @Produce json
// @Success 200 {object} object{success=bool,data=object{count=int}}
// @Security BearerAuth
// @Router /notifications/unread/count [get]
func (s *Server) GetUnreadCount(c *fiber.Ctx) error {
	userID, _ := middleware.CurrentUserID(c)
	count, err := s.notificationService.UnreadCount(c.UserContext(), userID)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"success": true, "data": fiber.Map{"count": count}})
}

// MarkNotificationRead handles PATCH /api/v1/notifications/:id/read
// @Summary Mark one notification read
// @Tags notifications
// @Produce json
// @Param id path int true "Notification ID"
// @Success 200 {object} object{success=bool,message=string}
// @Failure 404 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /notifications/{id}/read [patch]
func (s *Server) MarkNotificationRead(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	userID, _ := middleware.CurrentUserID(c)

	if err := s.notificationService.MarkRead(c.UserContext(), userID, id); err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"success": true, "message": "Notification marked as read"})
}

// MarkAllNotificationsRead handles PATCH /api/v1/notifications/read/all
// @Summary Mark every notification read
// @Tags notifications
// @Produce json
// @Success 200 {object} object{success=bool,count=int}
// @Security BearerAuth
// @Router /notifications/read/all [patch]
func (s *Server) MarkAllNotificationsRead(c *fiber.Ctx) error {
	userID, _ := middleware.CurrentUserID(c)
	count, err := s.notificationService.MarkAllRead(c.UserContext(), userID)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"success": true, "count": count})
}

// DeleteNotification handles DELETE /api/v1/notifications/:id
// @Summary Delete a notification
// @Tags notifications
// @Produce json
// @Param id path int true "Notification ID"
// @Success 200 {object} object{success=bool,message=string}
// @Failure 404 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /notifications/{id} [delete]
func (s *Server) DeleteNotification(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	userID, _ := middleware.CurrentUserID(c)

	if err := s.notificationService.Delete(c.UserContext(), userID, id); err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"success": true, "message": "Notification deleted"})
}

// CreateTestNotification handles POST /api/v1/notifications/test
// @Summary Send yourself a sample notification
// @Description Available outside production, or when the test_notifications flag is on
// @Tags notifications
// @Accept json
// @Produce json
// @Param request body object{type=string} false "comment, follower, vote or system"
// @Success 201 {object} object{success=bool,data=models.Notification}
// @Failure 404 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /notifications/test [post]
func (s *Server) CreateTestNotification(c *fiber.Ctx) error {
	userID, _ := middleware.CurrentUserID(c)
	if s.config.IsProduction() && !s.featureFlags.Enabled(FlagTestNotifications, userID) {
		return models.RespondWithError(c, fiber.StatusNotFound, models.NewNotFoundError("Route", c.Path()))
	}

	var req struct {
		Type string `json:"type"`
	}
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return badRequest(c, "Invalid request body")
		}
	}

	n, err := s.notificationService.CreateTest(c.UserContext(), currentUser(c), req.Type)
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"success": true, "data": n})
}
