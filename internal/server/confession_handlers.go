package server

import (
	"strings"

	"confessions/internal/feed"
	"confessions/internal/models"
	"confessions/internal/service"

	"github.com/gofiber/fiber/v2"
)

// GetFeed handles GET /api/confessions?q=&category=&sort=
func (s *Server) GetFeed(c *fiber.Ctx) error {
	q := feed.Query{
		SearchTerm: c.Query("q"),
		Category:   models.Category(strings.ToLower(strings.TrimSpace(c.Query("category")))),
		SortBy:     feed.ParseSortBy(c.Query("sort")),
	}

	page, err := s.postService.Feed(c.UserContext(), q)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(page)
}

// CreateConfession handles POST /api/confessions
func (s *Server) CreateConfession(c *fiber.Ctx) error {
	var req service.CreatePostInput
	if err := parseBody(c, &req); err != nil {
		return nil
	}

	post, err := s.postService.Create(c.UserContext(), req)
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(post)
}

// GetConfession handles GET /api/confessions/:id
func (s *Server) GetConfession(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return nil
	}

	post, err := s.postService.Get(c.UserContext(), id)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(post)
}

// React handles POST /api/confessions/:id/reactions
func (s *Server) React(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return nil
	}

	var req struct {
		ReactionType models.ReactionType `json:"reaction_type"`
	}
	if err := parseBody(c, &req); err != nil {
		return nil
	}

	res, err := s.reactionService.React(c.UserContext(), id, req.ReactionType)
	if err != nil {
		return respondError(c, err)
	}
	if res.Created {
		return c.Status(fiber.StatusCreated).JSON(res)
	}
	return c.JSON(res)
}

// GetMyReactions handles GET /api/confessions/:id/reactions/me
func (s *Server) GetMyReactions(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return nil
	}

	state, err := s.reactionService.State(c.UserContext(), id)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(state)
}

// ReportConfession handles POST /api/confessions/:id/report
func (s *Server) ReportConfession(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return nil
	}

	post, err := s.postService.Report(c.UserContext(), id)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(post)
}
