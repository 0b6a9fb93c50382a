package service

import (
	"context"
	"strings"

	"veritas/internal/cache"
	"veritas/internal/models"
	"veritas/internal/observability"
	"veritas/internal/repository"
	"veritas/internal/validation"

	"github.com/google/uuid"
)

type CommentService struct {
	posts    repository.PostRepository
	profiles repository.ProfileRepository
	feed     *cache.FeedCache
}

func NewCommentService(posts repository.PostRepository, profiles repository.ProfileRepository, feed *cache.FeedCache) *CommentService {
	return &CommentService{posts: posts, profiles: profiles, feed: feed}
}

// AddComment appends a comment and returns the post's full comment sequence
// in insertion order.
func (s *CommentService) AddComment(ctx context.Context, postID uuid.UUID, userID, text string) (comments []models.Comment, err error) {
	ctx, span := observability.StartServiceSpan(ctx, "CommentService", "AddComment")
	defer func() { observability.EndSpan(span, err) }()

	if strings.TrimSpace(userID) == "" {
		return nil, models.NewUnauthorizedError("Authentication required")
	}
	text = validation.NormalizeText(text)
	if err := validation.ValidateCommentText(text); err != nil {
		// a missing post outranks bad text
		if _, getErr := s.posts.GetByID(ctx, postID); getErr != nil {
			return nil, getErr
		}
		return nil, models.NewValidationError(err.Error())
	}

	comment := &models.Comment{AuthorID: userID, Text: text}
	comments, err = s.posts.AppendComment(ctx, postID, comment)
	if err != nil {
		return nil, err
	}
	s.feed.Invalidate(ctx)

	if projErr := attachCommentAuthors(ctx, s.profiles, comments); projErr != nil {
		observability.LogDegraded(ctx, "comment.project_authors", projErr, map[string]any{"post_id": postID.String()})
	}

	observability.LogServiceCall(ctx, "CommentService", "AddComment", map[string]any{
		"post_id":    postID.String(),
		"comment_id": comment.ID.String(),
		"comments":   len(comments),
	})
	return comments, nil
}
