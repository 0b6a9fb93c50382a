package service

import (
	"context"
	"strings"

	"veritas/internal/cache"
	"veritas/internal/models"
	"veritas/internal/observability"
	"veritas/internal/repository"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
)

// ModerationService toggles upvote and flag membership on posts.
type ModerationService struct {
	posts repository.PostRepository
	feed  *cache.FeedCache
}

func NewModerationService(posts repository.PostRepository, feed *cache.FeedCache) *ModerationService {
	return &ModerationService{posts: posts, feed: feed}
}

// Toggle adds userID to the post's kind set when absent and removes it when
// present, returning the set's new size. Applying it twice is a no-op.
func (s *ModerationService) Toggle(ctx context.Context, postID uuid.UUID, userID string, kind models.ReactionKind) (count int64, err error) {
	ctx, span := observability.StartServiceSpan(ctx, "ModerationService", "Toggle",
		attribute.String("reaction.kind", string(kind)),
	)
	defer func() { observability.EndSpan(span, err) }()

	if strings.TrimSpace(userID) == "" {
		return 0, models.NewUnauthorizedError("Authentication required")
	}
	if !kind.Valid() {
		return 0, models.NewValidationError("Unknown reaction kind")
	}

	res, err := s.posts.ToggleReaction(ctx, postID, userID, kind)
	if err != nil {
		return 0, err
	}
	s.feed.Invalidate(ctx)

	state := "removed"
	if res.Active {
		state = "added"
	}
	observability.ReactionToggles.WithLabelValues(string(kind), state).Inc()
	observability.LogServiceCall(ctx, "ModerationService", "Toggle", map[string]any{
		"post_id": postID.String(),
		"kind":    string(kind),
		"state":   state,
		"count":   res.Count,
	})
	return int64(res.Count), nil
}
