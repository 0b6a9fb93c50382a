package server

import (
	"veritas/internal/middleware"
	"veritas/internal/models"

	"github.com/gofiber/fiber/v2"
)

// UpvotePost handles PUT /api/posts/:id/upvote
// This endpoint toggles the upvote - if already upvoted, it removes it; if not, it adds it
func (s *Server) UpvotePost(c *fiber.Ctx) error {
	return s.toggle(c, models.ReactionUpvote, "upvotes")
}

// FlagPost handles PUT /api/posts/:id/flag
// Flag membership toggles independently of upvotes.
func (s *Server) FlagPost(c *fiber.Ctx) error {
	return s.toggle(c, models.ReactionFlag, "flags")
}

func (s *Server) toggle(c *fiber.Ctx, kind models.ReactionKind, countKey string) error {
	id, err := parsePostID(c)
	if err != nil {
		return nil
	}

	count, err := s.moderationService.Toggle(c.UserContext(), id, middleware.UserID(c), kind)
	if err != nil {
		return models.RespondWithAppError(c, err)
	}

	return c.JSON(fiber.Map{
		"success": true,
		countKey:  count,
	})
}
