package server

import (
	"civicpulse/internal/middleware"
	"civicpulse/internal/models"
	"civicpulse/internal/service"

	"github.com/gofiber/fiber/v2"
)

// sessionUser is a user with the access token merged into the object.
type sessionUser struct {
	models.User
	Token string `json:"token"`
}

type sessionResponse struct {
	Success bool        `json:"success"`
	Data    sessionUser `json:"data"`
}

// Register handles POST /api/v1/auth/register
// @Summary Register
// @Description Create an account; the username is derived from the name
// @Tags auth
// @Accept json
// @Produce json
// @Param request body service.RegisterInput true "Registration"
// @Success 201 {object} sessionResponse
// @Failure 400 {object} models.ErrorResponse
// @Router /auth/register [post]
func (s *Server) Register(c *fiber.Ctx) error {
	var req service.RegisterInput
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}

	session, err := s.authService.Register(c.UserContext(), req)
	if err != nil {
		return respondError(c, err)
	}

	s.setRefreshCookie(c, session.RefreshToken)
	return c.Status(fiber.StatusCreated).JSON(sessionResponse{
		Success: true,
		Data:    sessionUser{User: *session.User, Token: session.AccessToken},
	})
}

// Login handles POST /api/v1/auth/login
// @Summary Login
// @Description Authenticate with email and password; sets the refresh cookie
// @Tags auth
// @Accept json
// @Produce json
// @Param request body service.LoginInput true "Credentials"
// @Success 200 {object} sessionResponse
// @Failure 401 {object} models.ErrorResponse
// @Router /auth/login [post]
func (s *Server) Login(c *fiber.Ctx) error {
	var req service.LoginInput
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}

	session, err := s.authService.Login(c.UserContext(), req)
	if err != nil {
		return respondError(c, err)
	}

	s.setRefreshCookie(c, session.RefreshToken)
	return c.JSON(sessionResponse{
		Success: true,
		Data:    sessionUser{User: *session.User, Token: session.AccessToken},
	})
}

// Verify handles GET /api/v1/auth/verify
// @Summary Verify session
// @Description Resolve the bearer token, falling back to the refresh cookie
// @Tags auth
// @Produce json
// @Success 200 {object} object{success=bool,user=sessionUser}
// @Failure 401 {object} models.ErrorResponse
// @Router /auth/verify [get]
func (s *Server) Verify(c *fiber.Ctx) error {
	access, _ := middleware.BearerToken(c)
	user, token, err := s.authService.Verify(c.UserContext(), access, c.Cookies(refreshCookieName))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{
		"success": true,
		"user":    sessionUser{User: *user, Token: token},
	})
}

// Refresh handles POST /api/v1/auth/refresh
// @Summary Refresh access token
// @Tags auth
// @Produce json
// @Success 200 {object} sessionResponse
// @Failure 401 {object} models.ErrorResponse
// @Router /auth/refresh [post]
func (s *Server) Refresh(c *fiber.Ctx) error {
	session, err := s.authService.Refresh(c.UserContext(), c.Cookies(refreshCookieName))
	if err != nil {
		if models.IsCode(err, models.CodeInvalidToken) {
			s.clearRefreshCookie(c)
		}
		return respondError(c, err)
	}
	return c.JSON(sessionResponse{
		Success: true,
		Data:    sessionUser{User: *session.User, Token: session.AccessToken},
	})
}

// Logout handles POST /api/v1/auth/logout
// @Summary Logout
// @Description Revoke the session tokens and clear the refresh cookie
// @Tags auth
// @Produce json
// @Success 200 {object} object{success=bool,message=string}
// @Router /auth/logout [post]
func (s *Server) Logout(c *fiber.Ctx) error {
	access, _ := middleware.BearerToken(c)
	if err := s.authService.Logout(c.UserContext(), access, c.Cookies(refreshCookieName)); err != nil {
		return respondError(c, err)
	}
	s.clearRefreshCookie(c)
	return c.JSON(fiber.Map{"success": true, "message": "Logged out"})
}
