package service

import (
	"context"

	"veritas/internal/models"
	"veritas/internal/repository"
)

// attachAuthors resolves post and comment authors with one batched lookup.
// Authors missing from the profile store keep a profile carrying only their id.
func attachAuthors(ctx context.Context, profiles repository.ProfileRepository, posts []*models.Post) error {
	if len(posts) == 0 {
		return nil
	}

	seen := make(map[string]struct{})
	var ids []string
	add := func(id string) {
		if _, ok := seen[id]; ok || id == "" {
			return
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	for _, p := range posts {
		add(p.AuthorID)
		for i := range p.Comments {
			add(p.Comments[i].AuthorID)
		}
	}

	found := map[string]models.PublicProfile{}
	if profiles != nil {
		var err error
		if found, err = profiles.GetPublicProfiles(ctx, ids); err != nil {
			return err
		}
	}

	lookup := func(id string) *models.PublicProfile {
		if p, ok := found[id]; ok {
			return &p
		}
		return &models.PublicProfile{ID: id}
	}
	for _, p := range posts {
		p.Author = lookup(p.AuthorID)
		for i := range p.Comments {
			p.Comments[i].Author = lookup(p.Comments[i].AuthorID)
		}
	}
	return nil
}

// attachCommentAuthors is attachAuthors for a bare comment sequence.
func attachCommentAuthors(ctx context.Context, profiles repository.ProfileRepository, comments []models.Comment) error {
	holder := &models.Post{Comments: comments}
	return attachAuthors(ctx, profiles, []*models.Post{holder})
}
