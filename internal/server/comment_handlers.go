package server

import (
	"civicpulse/internal/middleware"
	"civicpulse/internal/service"

	"github.com/gofiber/fiber/v2"
)

// CreateComment handles POST /api/v1/posts/:postId/comments
// @Summary Comment on an issue
// @Tags comments
// @Accept json
// @Produce json
// @Param postId path int true "Post ID"
// @Param request body object{content=string} true "Comment"
// @Success 201 {object} object{success=bool,data=models.Comment}
// @Failure 400 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /posts/{postId}/comments [post]
func (s *Server) CreateComment(c *fiber.Ctx) error {
	postID, err := s.parseID(c, "postId")
	if err != nil {
		return nil
	}

	var req struct {
		Content string `json:"content"`
	}
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}

	comment, err := s.commentService.CreateComment(c.UserContext(), currentUser(c), service.CreateCommentInput{
		PostID:  postID,
		Content: req.Content,
	})
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"success": true, "data": comment})
}

// LikeComment handles POST /api/v1/posts/:postId/comments/:commentId/like
// @Summary Like or unlike a comment
// @Tags comments
// @Accept json
// @Produce json
// @Param postId path int true "Post ID"
// @Param commentId path int true "Comment ID"
// @Success 200 {object} object{success=bool,data=models.LikeResult}
// @Security BearerAuth
// @Router /posts/{postId}/comments/{commentId}/like [post]
func (s *Server) LikeComment(c *fiber.Ctx) error {
	postID, err := s.parseID(c, "postId")
	if err != nil {
		return nil
	}
	commentID, err := s.parseID(c, "commentId")
	if err != nil {
		return nil
	}
	liked, err := parseLikeRequest(c)
	if err != nil {
		return respondError(c, err)
	}
	userID, _ := middleware.CurrentUserID(c)

	res, err := s.commentService.LikeComment(c.UserContext(), userID, postID, commentID, liked)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"success": true, "data": res})
}
