package server

import (
	"civicpulse/internal/middleware"
	"civicpulse/internal/service"

	"github.com/gofiber/fiber/v2"
)

// GetTopics handles GET /api/v1/topics
// @Summary List topics
// @Tags topics
// @Produce json
// @Success 200 {object} object{success=bool,data=[]models.Topic}
// @Router /topics [get]
func (s *Server) GetTopics(c *fiber.Ctx) error {
	topics, err := s.topicService.ListTopics(c.UserContext())
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"success": true, "data": topics})
}

// CreateTopic handles POST /api/v1/topics
// @Summary Create a topic
// @Tags topics
// @Accept json
// @Produce json
// @Param request body service.CreateTopicInput true "Topic"
// @Success 201 {object} object{success=bool,data=models.Topic}
// @Failure 403 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /topics [post]
func (s *Server) CreateTopic(c *fiber.Ctx) error {
	var req service.CreateTopicInput
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}
	userID, _ := middleware.CurrentUserID(c)

	topic, err := s.topicService.CreateTopic(c.UserContext(), userID, req)
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"success": true, "data": topic})
}

// FollowTopic handles POST /api/v1/topics/:slug/follow
// @Summary Follow a topic
// @Tags topics
// @Produce json
// @Param slug path string true "Topic slug"
// @Success 200 {object} object{success=bool,data=models.Topic}
// @Security BearerAuth
// @Router /topics/{slug}/follow [post]
func (s *Server) FollowTopic(c *fiber.Ctx) error {
	return s.setTopicFollow(c, true)
}

// UnfollowTopic handles DELETE /api/v1/topics/:slug/follow
// @Summary Unfollow a topic
// @Tags topics
// @Produce json
// @Param slug path string true "Topic slug"
// @Success 200 {object} object{success=bool,data=models.Topic}
// @Security BearerAuth
// @Router /topics/{slug}/follow [delete]
func (s *Server) UnfollowTopic(c *fiber.Ctx) error {
	return s.setTopicFollow(c, false)
}

func (s *Server) setTopicFollow(c *fiber.Ctx, follow bool) error {
	userID, _ := middleware.CurrentUserID(c)
	topic, err := s.topicService.FollowTopic(c.UserContext(), userID, c.Params("slug"), follow)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"success": true, "data": topic})
}

// GetLocations handles GET /api/v1/locations
// @Summary List locations
// @Tags topics
// @Produce json
// @Success 200 {object} object{success=bool,data=[]models.Location}
// @Router /locations [get]
func (s *Server) GetLocations(c *fiber.Ctx) error {
	locations, err := s.topicService.ListLocations(c.UserContext())
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"success": true, "data": locations})
}

// CreateLocation handles POST /api/v1/locations
// @Summary Create a location
// @Tags topics
// @Accept json
// @Produce json
// @Param request body service.CreateLocationInput true "Location"
// @Success 201 {object} object{success=bool,data=models.Location}
// @Failure 403 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /locations [post]
func (s *Server) CreateLocation(c *fiber.Ctx) error {
	var req service.CreateLocationInput
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}
	userID, _ := middleware.CurrentUserID(c)

	location, err := s.topicService.CreateLocation(c.UserContext(), userID, req)
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"success": true, "data": location})
}
