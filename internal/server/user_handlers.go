package server

import (
	"strconv"

	"github.com/gofiber/fiber/v2"

	"github.com/inner-byte/i2bt-v1/internal/models"
	"github.com/inner-byte/i2bt-v1/internal/repository"
	"github.com/inner-byte/i2bt-v1/internal/service"
)

// Members serves the searchable member directory. Password hashes are
// excluded by the model's JSON projection.
func (s *Server) Members(c *fiber.Ctx) error {
	params := repository.SearchParams{
		Search: c.Query("search"),
		Skill:  c.Query("skill"),
		Page:   c.QueryInt("page", 1),
		Limit:  c.QueryInt("limit", 10),
	}

	page, err := s.userService.ListMembers(c.UserContext(), params)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(page)
}

// GetProfile returns the authenticated user's profile.
func (s *Server) GetProfile(c *fiber.Ctx) error {
	user, err := s.userService.GetProfile(c.UserContext(), currentUserID(c))
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(user)
}

// UpdateProfile replaces the authenticated user's profile fields.
func (s *Server) UpdateProfile(c *fiber.Ctx) error {
	var req service.ProfileInput
	if err := c.BodyParser(&req); err != nil {
		return fail(c, models.NewValidationError("Invalid request body"))
	}

	user, err := s.userService.UpdateProfile(c.UserContext(), currentUserID(c), req)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(user)
}

// UpdateImage sets the authenticated user's avatar URL.
func (s *Server) UpdateImage(c *fiber.Ctx) error {
	var req struct {
		Image string `json:"image"`
	}
	if err := c.BodyParser(&req); err != nil {
		return fail(c, models.NewValidationError("Invalid request body"))
	}

	user, err := s.userService.UpdateImage(c.UserContext(), currentUserID(c), req.Image)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(user)
}

// Me returns the session identity plus the stored account record.
func (s *Server) Me(c *fiber.Ctx) error {
	user, err := s.userService.GetProfile(c.UserContext(), currentUserID(c))
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(fiber.Map{
		"user":     user,
		"identity": models.IdentityOf(user),
	})
}

// SetRole changes a user's role. Reached only through the admin group.
func (s *Server) SetRole(c *fiber.Ctx) error {
	targetID, err := strconv.ParseUint(c.Params("id"), 10, 32)
	if err != nil {
		return fail(c, models.NewValidationError("Invalid user id"))
	}

	var req struct {
		Role string `json:"role"`
	}
	if err := c.BodyParser(&req); err != nil {
		return fail(c, models.NewValidationError("Invalid request body"))
	}

	user, err := s.userService.SetRole(c.UserContext(), currentUserID(c), uint(targetID), models.Role(req.Role))
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(user)
}
