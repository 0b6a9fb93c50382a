package repository

import (
	"context"
	"errors"
	"time"

	"veritas/internal/models"
	"veritas/internal/observability"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	postsCollection = "posts"
	usersCollection = "users"
	mongoSystem     = "mongodb"
)

// postDocument is the stored shape of a post. Reaction sets and comments are
// embedded so every mutation is a single-document update.
type postDocument struct {
	ID             string            `bson:"_id"`
	AuthorID       string            `bson:"authorId"`
	Text           string            `bson:"text"`
	ImageURL       string            `bson:"imageUrl,omitempty"`
	VideoURL       string            `bson:"videoUrl,omitempty"`
	Upvotes        []string          `bson:"upvotes"`
	Flags          []string          `bson:"flags"`
	Comments       []commentDocument `bson:"comments"`
	FactCheckScore *int              `bson:"factCheckScore"`
	FactCheckLabel string            `bson:"factCheckLabel"`
	AttemptedAt    *time.Time        `bson:"scoreAttemptedAt,omitempty"`
	CreatedAt      time.Time         `bson:"createdAt"`
	UpdatedAt      time.Time         `bson:"updatedAt"`
}

type commentDocument struct {
	ID        string    `bson:"_id"`
	AuthorID  string    `bson:"authorId"`
	Text      string    `bson:"text"`
	CreatedAt time.Time `bson:"createdAt"`
}

type userDocument struct {
	ID        string    `bson:"_id"`
	Username  string    `bson:"username"`
	Name      string    `bson:"name"`
	Avatar    string    `bson:"avatar"`
	Bio       string    `bson:"bio,omitempty"`
	CreatedAt time.Time `bson:"createdAt"`
}

func toPostDocument(p *models.Post) postDocument {
	doc := postDocument{
		ID:             p.ID.String(),
		AuthorID:       p.AuthorID,
		Text:           p.Text,
		ImageURL:       p.ImageURL,
		VideoURL:       p.VideoURL,
		Upvotes:        p.Upvotes,
		Flags:          p.Flags,
		Comments:       make([]commentDocument, 0, len(p.Comments)),
		FactCheckScore: p.FactCheckScore,
		FactCheckLabel: string(p.FactCheckLabel),
		AttemptedAt:    p.ScoreAttemptedAt,
		CreatedAt:      p.CreatedAt,
		UpdatedAt:      p.UpdatedAt,
	}
	for i := range p.Comments {
		doc.Comments = append(doc.Comments, toCommentDocument(&p.Comments[i]))
	}
	return doc
}

func toCommentDocument(c *models.Comment) commentDocument {
	return commentDocument{ID: c.ID.String(), AuthorID: c.AuthorID, Text: c.Text, CreatedAt: c.CreatedAt}
}

func (d *postDocument) model() (*models.Post, error) {
	id, err := uuid.Parse(d.ID)
	if err != nil {
		return nil, err
	}
	p := &models.Post{
		ID:               id,
		AuthorID:         d.AuthorID,
		Text:             d.Text,
		ImageURL:         d.ImageURL,
		VideoURL:         d.VideoURL,
		Upvotes:          d.Upvotes,
		Flags:            d.Flags,
		FactCheckScore:   d.FactCheckScore,
		FactCheckLabel:   models.Label(d.FactCheckLabel),
		ScoreAttemptedAt: d.AttemptedAt,
		CreatedAt:        d.CreatedAt,
		UpdatedAt:        d.UpdatedAt,
	}
	if p.FactCheckLabel == "" {
		p.FactCheckLabel = models.LabelUnverified
	}
	p.Comments, err = commentModels(id, d.Comments)
	if err != nil {
		return nil, err
	}
	normalizeSets(p)
	return p, nil
}

func commentModels(postID uuid.UUID, docs []commentDocument) ([]models.Comment, error) {
	out := make([]models.Comment, 0, len(docs))
	for _, cd := range docs {
		cid, err := uuid.Parse(cd.ID)
		if err != nil {
			return nil, err
		}
		out = append(out, models.Comment{
			ID:        cid,
			PostID:    postID,
			AuthorID:  cd.AuthorID,
			Text:      cd.Text,
			CreatedAt: cd.CreatedAt,
		})
	}
	return out, nil
}

// mongoPostRepository implements PostRepository on MongoDB.
type mongoPostRepository struct {
	posts *mongo.Collection
	log   *observability.RepoLogger
}

// NewMongoPostRepository creates a post repository over db's posts collection.
func NewMongoPostRepository(db *mongo.Database) PostRepository {
	return &mongoPostRepository{
		posts: db.Collection(postsCollection),
		log:   observability.NewRepoLogger(mongoSystem, postsCollection),
	}
}

// EnsureIndexes creates the indexes the feed and rescoring queries rely on.
func EnsureIndexes(ctx context.Context, db *mongo.Database) error {
	_, err := db.Collection(postsCollection).Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "createdAt", Value: -1}, {Key: "_id", Value: -1}}},
		{Keys: bson.D{{Key: "factCheckLabel", Value: 1}, {Key: "scoreAttemptedAt", Value: 1}, {Key: "createdAt", Value: 1}}},
		{Keys: bson.D{{Key: "authorId", Value: 1}}},
	})
	return err
}

func (r *mongoPostRepository) Create(ctx context.Context, post *models.Post) (err error) {
	ctx, finish := instrument(ctx, mongoSystem, "create", postsCollection)
	defer func() { finish(err) }()

	prepareNew(post)
	now := time.Now().UTC()
	if post.CreatedAt.IsZero() {
		post.CreatedAt = now
	}
	post.UpdatedAt = now

	if _, err = r.posts.InsertOne(ctx, toPostDocument(post)); err != nil {
		r.log.LogError(ctx, err, "create")
		return storeErr(err)
	}
	r.log.LogCreate(ctx, map[string]any{"post_id": post.ID.String(), "author_id": post.AuthorID})
	return nil
}

func (r *mongoPostRepository) GetByID(ctx context.Context, id uuid.UUID) (post *models.Post, err error) {
	ctx, finish := instrument(ctx, mongoSystem, "get", postsCollection)
	defer func() { finish(err) }()

	var doc postDocument
	err = r.posts.FindOne(ctx, bson.M{"_id": id.String()}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, postNotFound(id)
	}
	if err != nil {
		return nil, storeErr(err)
	}
	post, err = doc.model()
	return post, storeErr(err)
}

func (r *mongoPostRepository) List(ctx context.Context, limit, offset int) (posts []*models.Post, err error) {
	ctx, finish := instrument(ctx, mongoSystem, "list", postsCollection)
	defer func() { finish(err) }()

	opts := options.Find().
		SetSort(bson.D{{Key: "createdAt", Value: -1}, {Key: "_id", Value: -1}}).
		SetSkip(int64(offset)).
		SetLimit(int64(limit))
	return r.find(ctx, bson.M{}, opts)
}

func (r *mongoPostRepository) Count(ctx context.Context) (n int64, err error) {
	ctx, finish := instrument(ctx, mongoSystem, "count", postsCollection)
	defer func() { finish(err) }()

	n, err = r.posts.CountDocuments(ctx, bson.M{})
	return n, storeErr(err)
}

func (r *mongoPostRepository) Delete(ctx context.Context, id uuid.UUID) (err error) {
	ctx, finish := instrument(ctx, mongoSystem, "delete", postsCollection)
	defer func() { finish(err) }()

	res, err := r.posts.DeleteOne(ctx, bson.M{"_id": id.String()})
	if err != nil {
		r.log.LogError(ctx, err, "delete")
		return storeErr(err)
	}
	if res.DeletedCount == 0 {
		return postNotFound(id)
	}
	r.log.LogDelete(ctx, map[string]any{"post_id": id.String()})
	return nil
}

// ToggleReaction flips membership with a single pipeline update, so concurrent
// toggles on the same document are applied one after another by the server.
func (r *mongoPostRepository) ToggleReaction(ctx context.Context, postID uuid.UUID, userID string, kind models.ReactionKind) (result ToggleResult, err error) {
	ctx, finish := instrument(ctx, mongoSystem, "toggle_reaction", postsCollection)
	defer func() { finish(err) }()

	field, ok := reactionField(kind)
	if !ok {
		return result, models.NewValidationError("Unknown reaction kind")
	}

	opts := options.FindOneAndUpdate().
		SetReturnDocument(options.After).
		SetProjection(bson.M{field: 1})

	var doc postDocument
	err = r.posts.FindOneAndUpdate(ctx, bson.M{"_id": postID.String()}, togglePipeline(field, userID), opts).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return result, postNotFound(postID)
	}
	if err != nil {
		return result, storeErr(err)
	}

	members := doc.Upvotes
	if kind == models.ReactionFlag {
		members = doc.Flags
	}
	result.Count = len(members)
	for _, m := range members {
		if m == userID {
			result.Active = true
			break
		}
	}
	r.log.LogUpdate(ctx, map[string]any{"post_id": postID.String(), "kind": string(kind), "active": result.Active})
	return result, nil
}

func reactionField(kind models.ReactionKind) (string, bool) {
	switch kind {
	case models.ReactionUpvote:
		return "upvotes", true
	case models.ReactionFlag:
		return "flags", true
	}
	return "", false
}

// togglePipeline removes userID from field when present and appends it otherwise.
func togglePipeline(field, userID string) mongo.Pipeline {
	current := bson.D{{Key: "$ifNull", Value: bson.A{"$" + field, bson.A{}}}}
	return mongo.Pipeline{
		{{Key: "$set", Value: bson.D{
			{Key: field, Value: bson.D{{Key: "$cond", Value: bson.A{
				bson.D{{Key: "$in", Value: bson.A{userID, current}}},
				bson.D{{Key: "$filter", Value: bson.D{
					{Key: "input", Value: current},
					{Key: "cond", Value: bson.D{{Key: "$ne", Value: bson.A{"$$this", userID}}}},
				}}},
				bson.D{{Key: "$concatArrays", Value: bson.A{current, bson.A{userID}}}},
			}}}},
			{Key: "updatedAt", Value: "$$NOW"},
		}}},
	}
}

func (r *mongoPostRepository) AppendComment(ctx context.Context, postID uuid.UUID, comment *models.Comment) (comments []models.Comment, err error) {
	ctx, finish := instrument(ctx, mongoSystem, "append_comment", postsCollection)
	defer func() { finish(err) }()

	if comment.ID == uuid.Nil {
		if comment.ID, err = uuid.NewV7(); err != nil {
			return nil, storeErr(err)
		}
	}
	if comment.CreatedAt.IsZero() {
		comment.CreatedAt = time.Now().UTC()
	}
	comment.PostID = postID

	update := bson.M{
		"$push": bson.M{"comments": toCommentDocument(comment)},
		"$set":  bson.M{"updatedAt": comment.CreatedAt},
	}
	opts := options.FindOneAndUpdate().
		SetReturnDocument(options.After).
		SetProjection(bson.M{"comments": 1})

	var doc postDocument
	err = r.posts.FindOneAndUpdate(ctx, bson.M{"_id": postID.String()}, update, opts).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, postNotFound(postID)
	}
	if err != nil {
		return nil, storeErr(err)
	}
	comments, err = commentModels(postID, doc.Comments)
	if err != nil {
		return nil, storeErr(err)
	}
	r.log.LogCreate(ctx, map[string]any{"post_id": postID.String(), "comment_id": comment.ID.String()})
	return comments, nil
}

func (r *mongoPostRepository) UpdateFactCheck(ctx context.Context, id uuid.UUID, score *int, label models.Label) (err error) {
	ctx, finish := instrument(ctx, mongoSystem, "update_fact_check", postsCollection)
	defer func() { finish(err) }()

	res, err := r.posts.UpdateOne(ctx, bson.M{"_id": id.String()}, bson.M{"$set": bson.M{
		"factCheckScore":   score,
		"factCheckLabel":   string(label),
		"scoreAttemptedAt": time.Now().UTC(),
	}})
	if err != nil {
		return storeErr(err)
	}
	if res.MatchedCount == 0 {
		return postNotFound(id)
	}
	return nil
}

func (r *mongoPostRepository) ListUnverified(ctx context.Context, limit int) (posts []*models.Post, err error) {
	ctx, finish := instrument(ctx, mongoSystem, "list_unverified", postsCollection)
	defer func() { finish(err) }()

	filter := bson.M{"factCheckLabel": string(models.LabelUnverified), "text": bson.M{"$ne": ""}}
	// a missing scoreAttemptedAt sorts before any timestamp
	opts := options.Find().
		SetSort(bson.D{{Key: "scoreAttemptedAt", Value: 1}, {Key: "createdAt", Value: 1}}).
		SetLimit(int64(limit))
	return r.find(ctx, filter, opts)
}

func (r *mongoPostRepository) MarkScoreAttempts(ctx context.Context, ids []uuid.UUID) (err error) {
	if len(ids) == 0 {
		return nil
	}
	ctx, finish := instrument(ctx, mongoSystem, "mark_score_attempts", postsCollection)
	defer func() { finish(err) }()

	keys := make([]string, 0, len(ids))
	for _, id := range ids {
		keys = append(keys, id.String())
	}
	_, err = r.posts.UpdateMany(ctx, bson.M{"_id": bson.M{"$in": keys}},
		bson.M{"$set": bson.M{"scoreAttemptedAt": time.Now().UTC()}})
	return storeErr(err)
}

func (r *mongoPostRepository) find(ctx context.Context, filter any, opts *options.FindOptions) ([]*models.Post, error) {
	cur, err := r.posts.Find(ctx, filter, opts)
	if err != nil {
		return nil, storeErr(err)
	}
	var docs []postDocument
	if err := cur.All(ctx, &docs); err != nil {
		return nil, storeErr(err)
	}
	posts := make([]*models.Post, 0, len(docs))
	for i := range docs {
		p, err := docs[i].model()
		if err != nil {
			return nil, storeErr(err)
		}
		posts = append(posts, p)
	}
	return posts, nil
}

type mongoProfileRepository struct {
	users *mongo.Collection
}

// NewMongoProfileRepository creates a profile repository over db's users collection.
func NewMongoProfileRepository(db *mongo.Database) ProfileRepository {
	return &mongoProfileRepository{users: db.Collection(usersCollection)}
}

func (r *mongoProfileRepository) GetPublicProfiles(ctx context.Context, ids []string) (out map[string]models.PublicProfile, err error) {
	out = make(map[string]models.PublicProfile, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	ctx, finish := instrument(ctx, mongoSystem, "get_profiles", usersCollection)
	defer func() { finish(err) }()

	opts := options.Find().SetProjection(bson.M{"username": 1, "avatar": 1})
	cur, err := r.users.Find(ctx, bson.M{"_id": bson.M{"$in": ids}}, opts)
	if err != nil {
		return nil, storeErr(err)
	}
	var docs []userDocument
	if err = cur.All(ctx, &docs); err != nil {
		return nil, storeErr(err)
	}
	for _, d := range docs {
		out[d.ID] = models.PublicProfile{ID: d.ID, Username: d.Username, Avatar: d.Avatar}
	}
	return out, nil
}

func (r *mongoProfileRepository) Upsert(ctx context.Context, user *models.User) error {
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}
	doc := userDocument{
		ID:        user.ID,
		Username:  user.Username,
		Name:      user.Name,
		Avatar:    user.Avatar,
		Bio:       user.Bio,
		CreatedAt: user.CreatedAt,
	}
	_, err := r.users.ReplaceOne(ctx, bson.M{"_id": user.ID}, doc, options.Replace().SetUpsert(true))
	return storeErr(err)
}
