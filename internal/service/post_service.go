package service

import (
	"context"
	"strings"
	"time"

	"veritas/internal/cache"
	"veritas/internal/featureflags"
	"veritas/internal/media"
	"veritas/internal/models"
	"veritas/internal/observability"
	"veritas/internal/repository"
	"veritas/internal/scoring"
	"veritas/internal/validation"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
)

// PostService owns the post lifecycle: creation with media and scoring,
// single reads, author-only deletion and rescoring.
type PostService struct {
	posts      repository.PostRepository
	profiles   repository.ProfileRepository
	attacher   *media.Attacher
	classifier scoring.Classifier
	flags      *featureflags.Manager
	feed       *cache.FeedCache
}

// CreatePostInput carries an authenticated author's submission.
type CreatePostInput struct {
	AuthorID    string
	Text        string
	Attachments media.Attachments
}

// PostServiceDeps bundles PostService collaborators. Nil Classifier and Flags
// fall back to no scoring and the default flag set.
type PostServiceDeps struct {
	Posts      repository.PostRepository
	Profiles   repository.ProfileRepository
	Attacher   *media.Attacher
	Classifier scoring.Classifier
	Flags      *featureflags.Manager
	Feed       *cache.FeedCache
}

func NewPostService(deps PostServiceDeps) *PostService {
	classifier := deps.Classifier
	if classifier == nil {
		classifier = scoring.NoopClassifier{}
	}
	return &PostService{
		posts:      deps.Posts,
		profiles:   deps.Profiles,
		attacher:   deps.Attacher,
		classifier: classifier,
		flags:      flagsOrDefault(deps.Flags),
		feed:       deps.Feed,
	}
}

func flagsOrDefault(m *featureflags.Manager) *featureflags.Manager {
	if m != nil {
		return m
	}
	return featureflags.NewManager(featureflags.FactCheck + "=on," + featureflags.FeedCache + "=on")
}

// CreatePost validates the submission, uploads media, scores the text and
// persists the post. Upload and scoring failures degrade the post instead of
// failing the request.
func (s *PostService) CreatePost(ctx context.Context, in CreatePostInput) (post *models.Post, err error) {
	ctx, span := observability.StartServiceSpan(ctx, "PostService", "CreatePost",
		attribute.Int("post.images", len(in.Attachments.Images)),
		attribute.Int("post.videos", len(in.Attachments.Videos)),
	)
	defer func() { observability.EndSpan(span, err) }()

	if strings.TrimSpace(in.AuthorID) == "" {
		return nil, models.NewUnauthorizedError("Authentication required")
	}
	text := validation.NormalizeText(in.Text)
	if text == "" && in.Attachments.Empty() {
		return nil, models.NewValidationError("Post must include text or media")
	}
	if err := validation.ValidatePostText(text); err != nil {
		return nil, models.NewValidationError(err.Error())
	}
	if err := in.Attachments.Validate(); err != nil {
		return nil, models.NewValidationError(err.Error())
	}

	uploaded := s.attacher.UploadAll(ctx, in.Attachments)

	verdict := scoring.Unverified()
	var attemptedAt *time.Time
	if text != "" && s.flags.Enabled(featureflags.FactCheck, in.AuthorID) {
		verdict = s.classifier.Classify(ctx, text)
		now := time.Now()
		attemptedAt = &now
	}

	post = &models.Post{
		AuthorID:         in.AuthorID,
		Text:             text,
		ImageURL:         uploaded.ImageURL,
		VideoURL:         uploaded.VideoURL,
		Upvotes:          []string{},
		Flags:            []string{},
		Comments:         []models.Comment{},
		FactCheckScore:   verdict.Score,
		FactCheckLabel:   verdict.Label,
		ScoreAttemptedAt: attemptedAt,
	}
	if err = s.posts.Create(ctx, post); err != nil {
		return nil, err
	}
	s.feed.Invalidate(ctx)

	if projErr := attachAuthors(ctx, s.profiles, []*models.Post{post}); projErr != nil {
		observability.LogDegraded(ctx, "post.project_author", projErr, map[string]any{"post_id": post.ID.String()})
	}

	observability.LogServiceCall(ctx, "PostService", "CreatePost", map[string]any{
		"post_id":  post.ID.String(),
		"label":    string(post.FactCheckLabel),
		"has_img":  post.ImageURL != "",
		"has_vid":  post.VideoURL != "",
		"text_len": len(text),
	})
	return post, nil
}

// GetPost loads one post with author projection.
func (s *PostService) GetPost(ctx context.Context, postID uuid.UUID) (post *models.Post, err error) {
	ctx, span := observability.StartServiceSpan(ctx, "PostService", "GetPost")
	defer func() { observability.EndSpan(span, err) }()

	post, err = s.posts.GetByID(ctx, postID)
	if err != nil {
		return nil, err
	}
	if err = attachAuthors(ctx, s.profiles, []*models.Post{post}); err != nil {
		return nil, err
	}
	return post, nil
}

// DeletePost removes a post with its comments and reactions. Only the author
// may delete.
func (s *PostService) DeletePost(ctx context.Context, postID uuid.UUID, userID string) (err error) {
	ctx, span := observability.StartServiceSpan(ctx, "PostService", "DeletePost")
	defer func() { observability.EndSpan(span, err) }()

	if strings.TrimSpace(userID) == "" {
		return models.NewUnauthorizedError("Authentication required")
	}

	post, err := s.posts.GetByID(ctx, postID)
	if err != nil {
		return err
	}
	if post.AuthorID != userID {
		return models.NewForbiddenError("Only the author can delete this post")
	}

	if err = s.posts.Delete(ctx, postID); err != nil {
		return err
	}
	s.feed.Invalidate(ctx)

	observability.LogServiceCall(ctx, "PostService", "DeletePost", map[string]any{"post_id": postID.String()})
	return nil
}

// Rescore re-runs the classifier over up to limit posts still labelled
// unverified and returns how many received a score. Posts that stay
// unverified, including those whose author is outside the fact_check rollout,
// are stamped as attempted so the next run moves on to other candidates.
func (s *PostService) Rescore(ctx context.Context, limit int) (scored int, err error) {
	ctx, span := observability.StartServiceSpan(ctx, "PostService", "Rescore", attribute.Int("rescore.limit", limit))
	defer func() { observability.EndSpan(span, err) }()

	if limit <= 0 {
		return 0, models.NewValidationError("limit must be positive")
	}

	pending, err := s.posts.ListUnverified(ctx, limit)
	if err != nil {
		return 0, err
	}

	var attempted []uuid.UUID
	defer func() {
		// record progress even when the run was cancelled part way
		markErr := s.posts.MarkScoreAttempts(context.WithoutCancel(ctx), attempted)
		if markErr != nil && err == nil {
			err = markErr
		}
	}()

	skipped := 0
	for _, p := range pending {
		if err := ctx.Err(); err != nil {
			return scored, err
		}
		if !s.flags.Enabled(featureflags.FactCheck, p.AuthorID) {
			skipped++
			attempted = append(attempted, p.ID)
			continue
		}
		verdict := s.classifier.Classify(ctx, p.Text)
		if verdict.Score == nil {
			attempted = append(attempted, p.ID)
			continue
		}
		if err := s.posts.UpdateFactCheck(ctx, p.ID, verdict.Score, verdict.Label); err != nil {
			if models.IsCode(err, models.CodeNotFound) {
				// deleted while we were scoring
				continue
			}
			return scored, err
		}
		scored++
	}

	if scored > 0 {
		s.feed.Invalidate(ctx)
	}
	observability.LogServiceCall(ctx, "PostService", "Rescore", map[string]any{
		"candidates": len(pending),
		"scored":     scored,
		"skipped":    skipped,
	})
	return scored, nil
}
