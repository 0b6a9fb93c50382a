// Package repository provides data access layer implementations for the application.
package repository

import (
	"context"
	"errors"

	"veritas/internal/models"
	"veritas/internal/observability"

	"github.com/google/uuid"
)

// PostRepository defines the interface for post data operations
type PostRepository interface {
	Create(ctx context.Context, post *models.Post) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Post, error)
	List(ctx context.Context, limit, offset int) ([]*models.Post, error)
	Count(ctx context.Context) (int64, error)
	Delete(ctx context.Context, id uuid.UUID) error
	ToggleReaction(ctx context.Context, postID uuid.UUID, userID string, kind models.ReactionKind) (ToggleResult, error)
	AppendComment(ctx context.Context, postID uuid.UUID, comment *models.Comment) ([]models.Comment, error)
	UpdateFactCheck(ctx context.Context, id uuid.UUID, score *int, label models.Label) error
	ListUnverified(ctx context.Context, limit int) ([]*models.Post, error)
	MarkScoreAttempts(ctx context.Context, ids []uuid.UUID) error
}

// ProfileRepository resolves public author fields. Rows are owned by the
// identity provider; Upsert exists for seeding and local development.
type ProfileRepository interface {
	GetPublicProfiles(ctx context.Context, ids []string) (map[string]models.PublicProfile, error)
	Upsert(ctx context.Context, user *models.User) error
}

// ToggleResult is the state of a reaction set after a toggle.
type ToggleResult struct {
	// Active reports whether the user is a member after the toggle.
	Active bool
	Count  int
}

// prepareNew fills the server-assigned fields of a post about to be stored.
func prepareNew(post *models.Post) {
	if post.ID == uuid.Nil {
		post.ID = uuid.New()
	}
	if post.FactCheckLabel == "" {
		post.FactCheckLabel = models.LabelUnverified
	}
	normalizeSets(post)
}

// normalizeSets guarantees empty collections render as [] rather than null.
func normalizeSets(post *models.Post) {
	if post.Upvotes == nil {
		post.Upvotes = []string{}
	}
	if post.Flags == nil {
		post.Flags = []string{}
	}
	if post.Comments == nil {
		post.Comments = []models.Comment{}
	}
}

func postNotFound(id uuid.UUID) error {
	return models.NewNotFoundError("Post", id)
}

// storeErr passes application errors through and wraps everything else as a
// storage failure.
func storeErr(err error) error {
	if err == nil {
		return nil
	}
	var appErr *models.AppError
	if errors.As(err, &appErr) {
		return err
	}
	return models.NewStorageError(err)
}

// instrument opens a store span and latency timer. The returned func closes both.
func instrument(ctx context.Context, system, op, table string) (context.Context, func(error)) {
	ctx, span := observability.StartStoreSpan(ctx, system, op, table)
	done := observability.TrackQuery(op, table)
	return ctx, func(err error) {
		done()
		observability.EndSpan(span, err)
	}
}
