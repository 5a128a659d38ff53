package server

import (
	"context"

	"confessions/internal/models"
	"confessions/internal/service"
	"confessions/internal/session"

	"github.com/gofiber/fiber/v2"
)

// GetSession handles GET /api/session
func (s *Server) GetSession(c *fiber.Ctx) error {
	snap, err := session.NewMachine(s.gate).Resolve(c.UserContext())
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(snap)
}

// SetupProfile handles PUT /api/users/me/profile
func (s *Server) SetupProfile(c *fiber.Ctx) error {
	var req service.ProfileInput
	if err := parseBody(c, &req); err != nil {
		return nil
	}

	snap, err := session.NewMachine(s.gate).CompleteProfile(c.UserContext(), func(ctx context.Context) (*models.User, error) {
		return s.userService.SetupProfile(ctx, req)
	})
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(snap)
}

// GetUserProfile handles GET /api/users/:id
func (s *Server) GetUserProfile(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return nil
	}

	profile, err := s.userService.Profile(c.UserContext(), id)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(profile)
}

// FollowUser handles POST /api/users/:id/follow
func (s *Server) FollowUser(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return nil
	}

	res, err := s.followService.Follow(c.UserContext(), id)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(res)
}

// UnfollowUser handles DELETE /api/users/:id/follow
func (s *Server) UnfollowUser(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return nil
	}

	res, err := s.followService.Unfollow(c.UserContext(), id)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(res)
}
