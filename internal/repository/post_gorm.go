package repository

import (
	"context"
	"errors"
	"time"

	"veritas/internal/models"
	"veritas/internal/observability"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// postRepository implements PostRepository on a relational store through GORM.
// Reaction sets live in post_reactions; comments in their own table.
type postRepository struct {
	db     *gorm.DB
	system string
	log    *observability.RepoLogger
}

// NewPostRepository creates a new post repository
func NewPostRepository(db *gorm.DB) PostRepository {
	system := db.Dialector.Name()
	return &postRepository{
		db:     db,
		system: system,
		log:    observability.NewRepoLogger(system, "posts"),
	}
}

func withOrderedComments(db *gorm.DB) *gorm.DB {
	return db.Preload("Comments", func(db *gorm.DB) *gorm.DB {
		return db.Order("created_at ASC, id ASC")
	})
}

func (r *postRepository) Create(ctx context.Context, post *models.Post) (err error) {
	ctx, finish := instrument(ctx, r.system, "create", "posts")
	defer func() { finish(err) }()

	prepareNew(post)
	if err = r.db.WithContext(ctx).Omit(clause.Associations).Create(post).Error; err != nil {
		r.log.LogError(ctx, err, "create")
		return storeErr(err)
	}
	r.log.LogCreate(ctx, map[string]any{"post_id": post.ID.String(), "author_id": post.AuthorID})
	return nil
}

func (r *postRepository) GetByID(ctx context.Context, id uuid.UUID) (post *models.Post, err error) {
	ctx, finish := instrument(ctx, r.system, "get", "posts")
	defer func() { finish(err) }()

	var p models.Post
	err = withOrderedComments(r.db.WithContext(ctx)).Where("id = ?", id).Take(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, postNotFound(id)
	}
	if err != nil {
		return nil, storeErr(err)
	}
	if err = r.hydrateReactions(ctx, r.db, []*models.Post{&p}); err != nil {
		return nil, storeErr(err)
	}
	return &p, nil
}

func (r *postRepository) List(ctx context.Context, limit, offset int) (posts []*models.Post, err error) {
	ctx, finish := instrument(ctx, r.system, "list", "posts")
	defer func() { finish(err) }()

	posts = []*models.Post{}
	err = withOrderedComments(r.db.WithContext(ctx)).
		Order("created_at DESC, id DESC").
		Limit(limit).
		Offset(offset).
		Find(&posts).Error
	if err != nil {
		return nil, storeErr(err)
	}
	if err = r.hydrateReactions(ctx, r.db, posts); err != nil {
		return nil, storeErr(err)
	}
	return posts, nil
}

func (r *postRepository) Count(ctx context.Context) (n int64, err error) {
	ctx, finish := instrument(ctx, r.system, "count", "posts")
	defer func() { finish(err) }()

	err = r.db.WithContext(ctx).Model(&models.Post{}).Count(&n).Error
	return n, storeErr(err)
}

// Delete removes a post together with its comments and reactions.
func (r *postRepository) Delete(ctx context.Context, id uuid.UUID) (err error) {
	ctx, finish := instrument(ctx, r.system, "delete", "posts")
	defer func() { finish(err) }()

	err = r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("post_id = ?", id).Delete(&models.Reaction{}).Error; err != nil {
			return err
		}
		if err := tx.Where("post_id = ?", id).Delete(&models.Comment{}).Error; err != nil {
			return err
		}
		res := tx.Where("id = ?", id).Delete(&models.Post{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return postNotFound(id)
		}
		return nil
	})
	if err != nil {
		if !models.IsCode(err, models.CodeNotFound) {
			r.log.LogError(ctx, err, "delete")
		}
		return storeErr(err)
	}
	r.log.LogDelete(ctx, map[string]any{"post_id": id.String()})
	return nil
}

// ToggleReaction flips userID's membership in one reaction set. The post row is
// locked on Postgres so concurrent toggles on the same post serialize; the
// composite key on post_reactions keeps membership unique either way.
func (r *postRepository) ToggleReaction(ctx context.Context, postID uuid.UUID, userID string, kind models.ReactionKind) (result ToggleResult, err error) {
	ctx, finish := instrument(ctx, r.system, "toggle_reaction", "post_reactions")
	defer func() { finish(err) }()

	if !kind.Valid() {
		return result, models.NewValidationError("Unknown reaction kind")
	}

	err = r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := lockPost(tx, postID); err != nil {
			return err
		}

		removed := tx.Where("post_id = ? AND user_id = ? AND kind = ?", postID, userID, kind).
			Delete(&models.Reaction{})
		if removed.Error != nil {
			return removed.Error
		}
		if removed.RowsAffected == 0 {
			reaction := models.Reaction{PostID: postID, UserID: userID, Kind: kind, CreatedAt: time.Now()}
			if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&reaction).Error; err != nil {
				return err
			}
			result.Active = true
		}

		var count int64
		if err := tx.Model(&models.Reaction{}).
			Where("post_id = ? AND kind = ?", postID, kind).
			Count(&count).Error; err != nil {
			return err
		}
		result.Count = int(count)

		return tx.Model(&models.Post{}).Where("id = ?", postID).Update("updated_at", time.Now()).Error
	})
	if err != nil {
		return ToggleResult{}, storeErr(err)
	}
	r.log.LogUpdate(ctx, map[string]any{
		"post_id": postID.String(),
		"kind":    string(kind),
		"active":  result.Active,
	})
	return result, nil
}

func (r *postRepository) AppendComment(ctx context.Context, postID uuid.UUID, comment *models.Comment) (comments []models.Comment, err error) {
	ctx, finish := instrument(ctx, r.system, "append_comment", "comments")
	defer func() { finish(err) }()

	err = r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := lockPost(tx, postID); err != nil {
			return err
		}
		if comment.ID == uuid.Nil {
			id, err := uuid.NewV7()
			if err != nil {
				return err
			}
			comment.ID = id
		}
		comment.PostID = postID
		if err := tx.Create(comment).Error; err != nil {
			return err
		}
		if err := tx.Model(&models.Post{}).Where("id = ?", postID).Update("updated_at", time.Now()).Error; err != nil {
			return err
		}
		comments = []models.Comment{}
		return tx.Where("post_id = ?", postID).Order("created_at ASC, id ASC").Find(&comments).Error
	})
	if err != nil {
		return nil, storeErr(err)
	}
	r.log.LogCreate(ctx, map[string]any{"post_id": postID.String(), "comment_id": comment.ID.String()})
	return comments, nil
}

func (r *postRepository) UpdateFactCheck(ctx context.Context, id uuid.UUID, score *int, label models.Label) (err error) {
	ctx, finish := instrument(ctx, r.system, "update_fact_check", "posts")
	defer func() { finish(err) }()

	res := r.db.WithContext(ctx).Model(&models.Post{}).Where("id = ?", id).Updates(map[string]any{
		"fact_check_score":   score,
		"fact_check_label":   label,
		"score_attempted_at": time.Now(),
	})
	if res.Error != nil {
		return storeErr(res.Error)
	}
	if res.RowsAffected == 0 {
		return postNotFound(id)
	}
	return nil
}

// ListUnverified returns unverified posts with text worth scoring, never
// attempted first and then least recently attempted, oldest post first on ties.
func (r *postRepository) ListUnverified(ctx context.Context, limit int) (posts []*models.Post, err error) {
	ctx, finish := instrument(ctx, r.system, "list_unverified", "posts")
	defer func() { finish(err) }()

	posts = []*models.Post{}
	err = r.db.WithContext(ctx).
		Where("fact_check_label = ? AND text <> ''", models.LabelUnverified).
		Order("score_attempted_at ASC NULLS FIRST, created_at ASC").
		Limit(limit).
		Find(&posts).Error
	if err != nil {
		return nil, storeErr(err)
	}
	for _, p := range posts {
		normalizeSets(p)
	}
	return posts, nil
}

// MarkScoreAttempts stamps posts that were considered for scoring but kept
// their label, moving them behind untried candidates.
func (r *postRepository) MarkScoreAttempts(ctx context.Context, ids []uuid.UUID) (err error) {
	if len(ids) == 0 {
		return nil
	}
	ctx, finish := instrument(ctx, r.system, "mark_score_attempts", "posts")
	defer func() { finish(err) }()

	err = r.db.WithContext(ctx).Model(&models.Post{}).
		Where("id IN ?", ids).
		Update("score_attempted_at", time.Now()).Error
	return storeErr(err)
}

// lockPost asserts the post exists, taking a row lock where the dialect has one.
func lockPost(tx *gorm.DB, id uuid.UUID) error {
	q := tx.Model(&models.Post{}).Select("id").Where("id = ?", id)
	if tx.Dialector.Name() == "postgres" {
		q = q.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	var found models.Post
	err := q.Take(&found).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return postNotFound(id)
	}
	return err
}

// hydrateReactions fills Upvotes and Flags for posts with one query, preserving
// insertion order within each set.
func (r *postRepository) hydrateReactions(ctx context.Context, db *gorm.DB, posts []*models.Post) error {
	if len(posts) == 0 {
		return nil
	}
	ids := make([]uuid.UUID, 0, len(posts))
	byID := make(map[uuid.UUID]*models.Post, len(posts))
	for _, p := range posts {
		normalizeSets(p)
		ids = append(ids, p.ID)
		byID[p.ID] = p
	}

	var reactions []models.Reaction
	if err := db.WithContext(ctx).
		Where("post_id IN ?", ids).
		Order("created_at ASC, user_id ASC").
		Find(&reactions).Error; err != nil {
		return err
	}
	for _, rx := range reactions {
		p := byID[rx.PostID]
		if p == nil {
			continue
		}
		switch rx.Kind {
		case models.ReactionUpvote:
			p.Upvotes = append(p.Upvotes, rx.UserID)
		case models.ReactionFlag:
			p.Flags = append(p.Flags, rx.UserID)
		}
	}
	return nil
}
