package service

import (
	"context"

	"veritas/internal/cache"
	"veritas/internal/featureflags"
	"veritas/internal/models"
	"veritas/internal/observability"
	"veritas/internal/repository"

	"go.opentelemetry.io/otel/attribute"
)

const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// FeedPage is one page of the newest-first feed.
type FeedPage struct {
	Posts       []*models.Post `json:"posts"`
	CurrentPage int            `json:"currentPage"`
	TotalPages  int            `json:"totalPages"`
	TotalPosts  int64          `json:"totalPosts"`
	Results     int            `json:"results"`
}

type FeedService struct {
	posts    repository.PostRepository
	profiles repository.ProfileRepository
	flags    *featureflags.Manager
	feed     *cache.FeedCache
}

func NewFeedService(posts repository.PostRepository, profiles repository.ProfileRepository, flags *featureflags.Manager, feed *cache.FeedCache) *FeedService {
	return &FeedService{posts: posts, profiles: profiles, flags: flagsOrDefault(flags), feed: feed}
}

// NormalizePage applies the paging defaults: page below 1 becomes 1, size
// below 1 becomes DefaultPageSize, and size is capped at MaxPageSize.
func NormalizePage(page, pageSize int) (int, int) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = DefaultPageSize
	}
	if pageSize > MaxPageSize {
		pageSize = MaxPageSize
	}
	return page, pageSize
}

// ListPosts returns one page of posts, newest first, with authors resolved.
// Pages past the end are empty but still report the totals.
func (s *FeedService) ListPosts(ctx context.Context, page, pageSize int) (out *FeedPage, err error) {
	page, pageSize = NormalizePage(page, pageSize)
	ctx, span := observability.StartServiceSpan(ctx, "FeedService", "ListPosts",
		attribute.Int("feed.page", page),
		attribute.Int("feed.page_size", pageSize),
	)
	defer func() { observability.EndSpan(span, err) }()

	load := func(dst *FeedPage) error {
		return s.loadPage(ctx, page, pageSize, dst)
	}

	var result FeedPage
	if s.flags.EnabledGlobally(featureflags.FeedCache) {
		err = s.feed.Page(ctx, page, pageSize, &result, func() error { return load(&result) })
	} else {
		err = load(&result)
	}
	if err != nil {
		return nil, err
	}
	if result.Posts == nil {
		result.Posts = []*models.Post{}
	}
	return &result, nil
}

func (s *FeedService) loadPage(ctx context.Context, page, pageSize int, dst *FeedPage) error {
	total, err := s.posts.Count(ctx)
	if err != nil {
		return err
	}

	totalPages := (total + int64(pageSize) - 1) / int64(pageSize)

	// Pages past the end are answered from the totals alone; checking before
	// multiplying keeps huge page numbers from overflowing the offset.
	posts := []*models.Post{}
	if int64(page) <= totalPages {
		if posts, err = s.posts.List(ctx, pageSize, (page-1)*pageSize); err != nil {
			return err
		}
		if err = attachAuthors(ctx, s.profiles, posts); err != nil {
			return err
		}
	}

	*dst = FeedPage{
		Posts:       posts,
		CurrentPage: page,
		TotalPages:  int(totalPages),
		TotalPosts:  total,
		Results:     len(posts),
	}
	return nil
}
