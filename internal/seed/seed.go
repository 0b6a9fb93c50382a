// Package seed provides database seeding utilities for development and testing.
package seed

import (
	"context"
	"fmt"
	"log"

	"veritas/internal/models"
	"veritas/internal/repository"
)

// Options configuration for the seeder
type Options struct {
	NumUsers int
	NumPosts int
	// MaxDays spreads post creation times over the last MaxDays days.
	MaxDays int
	// Force seeds even when the store already holds posts.
	Force bool
	// Seed makes generated content reproducible when non-zero.
	Seed int64
	// Distribution is the text/image/video mix of generated posts.
	Distribution Distribution
}

// DefaultOptions returns the preset used by bootstrap and feedctl.
func DefaultOptions() Options {
	return Options{
		NumUsers:     12,
		NumPosts:     60,
		MaxDays:      30,
		Distribution: defaultDistribution,
	}
}

// Result reports what Demo created.
type Result struct {
	Users    int
	Posts    int
	Comments int
	Toggles  int
	Skipped  bool
}

// Demo fills the store with generated users and posts, including comments,
// upvotes, flags and fact-check verdicts. An already populated store is left
// alone unless Force is set.
func Demo(ctx context.Context, posts repository.PostRepository, profiles repository.ProfileRepository, opts Options) error {
	_, err := Run(ctx, posts, profiles, opts)
	return err
}

// Run is Demo returning counts.
func Run(ctx context.Context, posts repository.PostRepository, profiles repository.ProfileRepository, opts Options) (Result, error) {
	var res Result
	if opts.NumUsers <= 0 || opts.NumPosts < 0 {
		return res, fmt.Errorf("seed: need at least one user")
	}

	if !opts.Force {
		n, err := posts.Count(ctx)
		if err != nil {
			return res, fmt.Errorf("seed: count posts: %w", err)
		}
		if n > 0 {
			log.Printf("seed: store already has %d posts, skipping", n)
			res.Skipped = true
			return res, nil
		}
	}

	f := NewFactory(opts)

	users := make([]*models.User, 0, opts.NumUsers)
	for i := 0; i < opts.NumUsers; i++ {
		u := f.BuildUser()
		if err := profiles.Upsert(ctx, u); err != nil {
			return res, fmt.Errorf("seed: upsert user: %w", err)
		}
		users = append(users, u)
	}
	res.Users = len(users)

	text, image, video := computeCounts(opts.NumPosts, opts.Distribution)
	kinds := make([]string, 0, opts.NumPosts)
	for i := 0; i < text; i++ {
		kinds = append(kinds, KindText)
	}
	for i := 0; i < image; i++ {
		kinds = append(kinds, KindImage)
	}
	for i := 0; i < video; i++ {
		kinds = append(kinds, KindVideo)
	}

	for _, kind := range kinds {
		author := f.pick(users)
		post := f.BuildPost(author, kind)
		if err := posts.Create(ctx, post); err != nil {
			return res, fmt.Errorf("seed: create post: %w", err)
		}
		res.Posts++

		if post.Text != "" {
			if score, ok := f.Verdict(); ok {
				if err := posts.UpdateFactCheck(ctx, post.ID, &score.Score, score.Label); err != nil {
					return res, fmt.Errorf("seed: fact check: %w", err)
				}
			}
		}

		for i := 0; i < f.Intn(4); i++ {
			if _, err := posts.AppendComment(ctx, post.ID, f.BuildComment(f.pick(users))); err != nil {
				return res, fmt.Errorf("seed: comment: %w", err)
			}
			res.Comments++
		}

		for _, u := range f.sample(users, f.Intn(len(users)+1)) {
			if _, err := posts.ToggleReaction(ctx, post.ID, u.ID, models.ReactionUpvote); err != nil {
				return res, fmt.Errorf("seed: upvote: %w", err)
			}
			res.Toggles++
		}
		if f.Intn(10) == 0 {
			if _, err := posts.ToggleReaction(ctx, post.ID, f.pick(users).ID, models.ReactionFlag); err != nil {
				return res, fmt.Errorf("seed: flag: %w", err)
			}
			res.Toggles++
		}
	}

	log.Printf("seed: created %d users, %d posts, %d comments, %d reactions",
		res.Users, res.Posts, res.Comments, res.Toggles)
	return res, nil
}
