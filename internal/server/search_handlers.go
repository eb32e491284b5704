package server

import "github.com/gofiber/fiber/v2"

// Search handles GET /api/v1/search
// @Summary Search everything
// @Description Issues, people, topics and locations; all four keys are always present
// @Tags search
// @Produce json
// @Param q query string true "Query"
// @Param type query string false "all, issues, people, topics or locations"
// @Success 200 {object} models.SearchResults
// @Failure 400 {object} models.ErrorResponse
// @Router /search [get]
func (s *Server) Search(c *fiber.Ctx) error {
	results, err := s.searchService.Search(c.UserContext(), c.Query("q"), c.Query("type"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(results)
}

// SearchSuggestions handles GET /api/v1/search/suggestions
// @Summary Autocomplete suggestions
// @Tags search
// @Produce json
// @Param q query string false "Query"
// @Success 200 {array} models.Suggestion
// @Router /search/suggestions [get]
func (s *Server) SearchSuggestions(c *fiber.Ctx) error {
	suggestions, err := s.searchService.Suggestions(c.UserContext(), c.Query("q"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(suggestions)
}
