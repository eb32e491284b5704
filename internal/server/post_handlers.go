package server

import (
	"civicpulse/internal/middleware"
	"civicpulse/internal/service"

	"github.com/gofiber/fiber/v2"
)

// GetPosts handles GET /api/v1/posts
// @Summary List issues
// @Tags posts
// @Produce json
// @Param sort query string false "votes, new or trending"
// @Param category query string false "Category filter"
// @Param limit query int false "Page size, max 100; omit for the whole feed"
// @Param offset query int false "Offset"
// @Success 200 {array} models.Post
// @Failure 400 {object} models.ErrorResponse
// @Router /posts [get]
func (s *Server) GetPosts(c *fiber.Ctx) error {
	page := parsePagination(c, maxPaginationLimit)
	if c.Query("limit") == "" {
		page.Limit = 0
	}
	viewerID, _ := middleware.CurrentUserID(c)

	posts, err := s.postService.ListPosts(c.UserContext(), service.ListPostsInput{
		Sort:     c.Query("sort"),
		Category: c.Query("category"),
		Limit:    page.Limit,
		Offset:   page.Offset,
		ViewerID: viewerID,
	})
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(posts)
}

// GetPost handles GET /api/v1/posts/:id
// @Summary Get an issue with its comments
// @Tags posts
// @Produce json
// @Param id path int true "Post ID"
// @Success 200 {object} models.Post
// @Failure 404 {object} models.ErrorResponse
// @Router /posts/{id} [get]
func (s *Server) GetPost(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	viewerID, _ := middleware.CurrentUserID(c)

	post, err := s.postService.GetPost(c.UserContext(), id, viewerID)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(post)
}

// CreatePost handles POST /api/v1/posts
// @Summary Report an issue
// @Tags posts
// @Accept multipart/form-data
// @Produce json
// @Param title formData string true "Title"
// @Param description formData string true "Description"
// @Param category formData string true "Category"
// @Param image formData file false "Image (jpeg, png or gif)"
// @Success 201 {object} object{success=bool,data=models.Post}
// @Failure 400 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /posts [post]
func (s *Server) CreatePost(c *fiber.Ctx) error {
	image, err := readUpload(c, "image", s.config.MaxUploadBytes())
	if err != nil {
		return respondError(c, err)
	}

	post, err := s.postService.CreatePost(c.UserContext(), currentUser(c), service.CreatePostInput{
		Title:       c.FormValue("title"),
		Description: c.FormValue("description"),
		Category:    c.FormValue("category"),
		Image:       image,
	})
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"success": true, "data": post})
}

// VotePost handles POST /api/v1/posts/:id/vote
// @Summary Vote on an issue
// @Description direction is 1 (up), -1 (down) or 0 (clear)
// @Tags posts
// @Accept json
// @Produce json
// @Param id path int true "Post ID"
// @Param request body object{direction=int} true "Vote"
// @Success 200 {object} object{success=bool,data=service.VoteOutcome}
// @Failure 400 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /posts/{id}/vote [post]
func (s *Server) VotePost(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	var req struct {
		Direction *int `json:"direction"`
	}
	if err := c.BodyParser(&req); err != nil || req.Direction == nil {
		return badRequest(c, "Invalid vote direction")
	}

	outcome, err := s.postService.Vote(c.UserContext(), currentUser(c), id, *req.Direction)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"success": true, "data": outcome})
}

// LikePost handles POST /api/v1/posts/:id/like
// @Summary Like or unlike an issue
// @Description With {"liked": bool} sets the state, without a body toggles it
// @Tags posts
// @Accept json
// @Produce json
// @Param id path int true "Post ID"
// @Success 200 {object} object{success=bool,data=models.LikeResult}
// @Security BearerAuth
// @Router /posts/{id}/like [post]
func (s *Server) LikePost(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	liked, err := parseLikeRequest(c)
	if err != nil {
		return respondError(c, err)
	}
	userID, _ := middleware.CurrentUserID(c)

	res, err := s.postService.Like(c.UserContext(), userID, id, liked)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"success": true, "data": res})
}

// SharePost handles POST /api/v1/posts/:id/share
// @Summary Count a share
// @Tags posts
// @Produce json
// @Param id path int true "Post ID"
// @Success 200 {object} object{success=bool,data=object{shares=int}}
// @Security BearerAuth
// @Router /posts/{id}/share [post]
func (s *Server) SharePost(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	shares, err := s.postService.Share(c.UserContext(), id)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"success": true, "data": fiber.Map{"shares": shares}})
}
