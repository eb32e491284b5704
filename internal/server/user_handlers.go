package server

import (
	"strings"

	"civicpulse/internal/middleware"
	"civicpulse/internal/service"

	"github.com/gofiber/fiber/v2"
)

// GetTopContributors handles GET /api/v1/users/top-contributors
// @Summary Top contributors
// @Description Five users with the most points (posts x10, comments x5, votes received x2)
// @Tags users
// @Produce json
// @Success 200 {object} object{success=bool,data=[]models.Contributor}
// @Router /users/top-contributors [get]
func (s *Server) GetTopContributors(c *fiber.Ctx) error {
	top, err := s.userService.TopContributors(c.UserContext())
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"success": true, "data": top})
}

// GetUserProfile handles GET /api/v1/users/profile/:username
// @Summary Public profile
// @Tags users
// @Produce json
// @Param username path string true "Username"
// @Success 200 {object} object{success=bool,data=models.UserProfile}
// @Failure 404 {object} models.ErrorResponse
// @Router /users/profile/{username} [get]
func (s *Server) GetUserProfile(c *fiber.Ctx) error {
	profile, err := s.userService.GetProfileByUsername(c.UserContext(), c.Params("username"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"success": true, "data": profile})
}

// GetMyProfile handles GET /api/v1/users/profile
// @Summary Own profile
// @Tags users
// @Produce json
// @Success 200 {object} object{success=bool,data=models.UserProfile}
// @Security BearerAuth
// @Router /users/profile [get]
func (s *Server) GetMyProfile(c *fiber.Ctx) error {
	userID, _ := middleware.CurrentUserID(c)
	profile, err := s.userService.GetProfile(c.UserContext(), userID)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"success": true, "data": profile})
}

// UpdateMyProfile handles PUT /api/v1/users/profile
// @Summary Update own profile
// @Description Only fields that are sent change
// @Tags users
// @Accept multipart/form-data
// @Produce json
// @Param name formData string false "Display name"
// @Param bio formData string false "Bio"
// @Param avatar formData file false "Avatar (jpeg or png)"
// @Success 200 {object} object{success=bool,data=models.UserProfile}
// @Failure 400 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /users/profile [put]
func (s *Server) UpdateMyProfile(c *fiber.Ctx) error {
	userID, _ := middleware.CurrentUserID(c)

	var in service.UpdateProfileInput
	if strings.HasPrefix(c.Get(fiber.HeaderContentType), fiber.MIMEApplicationJSON) {
		if err := c.BodyParser(&in); err != nil {
			return badRequest(c, "Invalid request body")
		}
		in.Avatar = nil
	} else {
		in.Name = formField(c, "name")
		in.Bio = formField(c, "bio")
		avatar, err := readUpload(c, "avatar", s.config.MaxUploadBytes())
		if err != nil {
			return respondError(c, err)
		}
		in.Avatar = avatar
	}

	profile, err := s.userService.UpdateProfile(c.UserContext(), userID, in)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"success": true, "data": profile})
}

// FollowUser handles POST /api/v1/users/:username/follow
// @Summary Follow a user
// @Tags users
// @Produce json
// @Param username path string true "Username"
// @Success 200 {object} object{success=bool,data=service.FollowState}
// @Security BearerAuth
// @Router /users/{username}/follow [post]
func (s *Server) FollowUser(c *fiber.Ctx) error {
	state, err := s.userService.Follow(c.UserContext(), currentUser(c), c.Params("username"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"success": true, "data": state})
}

// UnfollowUser handles DELETE /api/v1/users/:username/follow
// @Summary Unfollow a user
// @Tags users
// @Produce json
// @Param username path string true "Username"
// @Success 200 {object} object{success=bool,data=service.FollowState}
// @Security BearerAuth
// @Router /users/{username}/follow [delete]
func (s *Server) UnfollowUser(c *fiber.Ctx) error {
	state, err := s.userService.Unfollow(c.UserContext(), currentUser(c), c.Params("username"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"success": true, "data": state})
}

// formField returns a pointer to a submitted form value, or nil when the
// field was not sent at all.
func formField(c *fiber.Ctx, key string) *string {
	if form, err := c.MultipartForm(); err == nil {
		if v, ok := form.Value[key]; ok && len(v) > 0 {
			return &v[0]
		}
		return nil
	}
	if c.Request().PostArgs().Has(key) {
		v := c.FormValue(key)
		return &v
	}
	return nil
}
