package repository

import (
	"context"
	"testing"
	"time"

	"veritas/internal/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/integration/mtest"
)

func postDoc(id uuid.UUID, text string, upvotes, flags bson.A) bson.D {
	return bson.D{
		{Key: "_id", Value: id.String()},
		{Key: "authorId", Value: "author"},
		{Key: "text", Value: text},
		{Key: "upvotes", Value: upvotes},
		{Key: "flags", Value: flags},
		{Key: "comments", Value: bson.A{}},
		{Key: "factCheckScore", Value: nil},
		{Key: "factCheckLabel", Value: "unverified"},
		{Key: "createdAt", Value: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)},
	}
}

func TestMongoPostRepository(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("create", func(mt *mtest.T) {
		repo := NewMongoPostRepository(mt.DB)
		mt.AddMockResponses(mtest.CreateSuccessResponse())

		p := &models.Post{AuthorID: "u1", Text: "hello"}
		require.NoError(mt, repo.Create(context.Background(), p))
		assert.NotEqual(mt, uuid.Nil, p.ID)
		assert.False(mt, p.CreatedAt.IsZero())
		assert.Equal(mt, models.LabelUnverified, p.FactCheckLabel)
	})

	mt.Run("create duplicate key", func(mt *mtest.T) {
		repo := NewMongoPostRepository(mt.DB)
		mt.AddMockResponses(mtest.CreateWriteErrorsResponse(mtest.WriteError{
			Index: 0, Code: 11000, Message: "duplicate key error",
		}))

		err := repo.Create(context.Background(), &models.Post{AuthorID: "u1"})
		assert.True(mt, models.IsCode(err, models.CodeStorage))
	})

	mt.Run("get by id", func(mt *mtest.T) {
		repo := NewMongoPostRepository(mt.DB)
		id := uuid.New()
		mt.AddMockResponses(mtest.CreateCursorResponse(0, "veritas.posts", mtest.FirstBatch,
			postDoc(id, "claim", bson.A{"a", "b"}, bson.A{})))

		got, err := repo.GetByID(context.Background(), id)
		require.NoError(mt, err)
		assert.Equal(mt, id, got.ID)
		assert.Equal(mt, []string{"a", "b"}, got.Upvotes)
		assert.Equal(mt, []string{}, got.Flags)
		assert.Nil(mt, got.FactCheckScore)
	})

	mt.Run("get by id not found", func(mt *mtest.T) {
		repo := NewMongoPostRepository(mt.DB)
		mt.AddMockResponses(mtest.CreateCursorResponse(0, "veritas.posts", mtest.FirstBatch))

		_, err := repo.GetByID(context.Background(), uuid.New())
		assert.True(mt, models.IsCode(err, models.CodeNotFound))
	})

	mt.Run("list", func(mt *mtest.T) {
		repo := NewMongoPostRepository(mt.DB)
		first, second := uuid.New(), uuid.New()
		mt.AddMockResponses(mtest.CreateCursorResponse(0, "veritas.posts", mtest.FirstBatch,
			postDoc(first, "newer", bson.A{}, bson.A{}),
			postDoc(second, "older", bson.A{}, bson.A{"x"}),
		))

		posts, err := repo.List(context.Background(), 20, 0)
		require.NoError(mt, err)
		require.Len(mt, posts, 2)
		assert.Equal(mt, first, posts[0].ID)
		assert.Equal(mt, 1, posts[1].FlagCount())
	})

	mt.Run("count", func(mt *mtest.T) {
		repo := NewMongoPostRepository(mt.DB)
		mt.AddMockResponses(mtest.CreateCursorResponse(0, "veritas.posts", mtest.FirstBatch,
			bson.D{{Key: "n", Value: int32(7)}}))

		n, err := repo.Count(context.Background())
		require.NoError(mt, err)
		assert.Equal(mt, int64(7), n)
	})

	mt.Run("toggle reaction adds member", func(mt *mtest.T) {
		repo := NewMongoPostRepository(mt.DB)
		id := uuid.New()
		mt.AddMockResponses(mtest.CreateSuccessResponse(bson.E{
			Key:   "value",
			Value: bson.D{{Key: "_id", Value: id.String()}, {Key: "upvotes", Value: bson.A{"bob", "alice"}}},
		}))

		res, err := repo.ToggleReaction(context.Background(), id, "alice", models.ReactionUpvote)
		require.NoError(mt, err)
		assert.Equal(mt, ToggleResult{Active: true, Count: 2}, res)
	})

	mt.Run("toggle reaction removes member", func(mt *mtest.T) {
		repo := NewMongoPostRepository(mt.DB)
		id := uuid.New()
		mt.AddMockResponses(mtest.CreateSuccessResponse(bson.E{
			Key:   "value",
			Value: bson.D{{Key: "_id", Value: id.String()}, {Key: "flags", Value: bson.A{}}},
		}))

		res, err := repo.ToggleReaction(context.Background(), id, "alice", models.ReactionFlag)
		require.NoError(mt, err)
		assert.Equal(mt, ToggleResult{Active: false, Count: 0}, res)
	})

	mt.Run("toggle reaction missing post", func(mt *mtest.T) {
		repo := NewMongoPostRepository(mt.DB)
		mt.AddMockResponses(mtest.CreateSuccessResponse(bson.E{Key: "value", Value: nil}))

		_, err := repo.ToggleReaction(context.Background(), uuid.New(), "alice", models.ReactionUpvote)
		assert.True(mt, models.IsCode(err, models.CodeNotFound))
	})

	mt.Run("append comment", func(mt *mtest.T) {
		repo := NewMongoPostRepository(mt.DB)
		id := uuid.New()
		existing := uuid.New()
		mt.AddMockResponses(mtest.CreateSuccessResponse(bson.E{
			Key: "value",
			Value: bson.D{
				{Key: "_id", Value: id.String()},
				{Key: "comments", Value: bson.A{
					bson.D{{Key: "_id", Value: existing.String()}, {Key: "authorId", Value: "bob"}, {Key: "text", Value: "first"}},
					bson.D{{Key: "_id", Value: uuid.New().String()}, {Key: "authorId", Value: "alice"}, {Key: "text", Value: "second"}},
				}},
			},
		}))

		c := &models.Comment{AuthorID: "alice", Text: "second"}
		comments, err := repo.AppendComment(context.Background(), id, c)
		require.NoError(mt, err)
		require.Len(mt, comments, 2)
		assert.Equal(mt, existing, comments[0].ID)
		assert.Equal(mt, "second", comments[1].Text)
		assert.NotEqual(mt, uuid.Nil, c.ID)
	})

	mt.Run("delete", func(mt *mtest.T) {
		repo := NewMongoPostRepository(mt.DB)
		mt.AddMockResponses(mtest.CreateSuccessResponse(bson.E{Key: "n", Value: int32(1)}))
		require.NoError(mt, repo.Delete(context.Background(), uuid.New()))
	})

	mt.Run("delete missing", func(mt *mtest.T) {
		repo := NewMongoPostRepository(mt.DB)
		mt.AddMockResponses(mtest.CreateSuccessResponse(bson.E{Key: "n", Value: int32(0)}))
		err := repo.Delete(context.Background(), uuid.New())
		assert.True(mt, models.IsCode(err, models.CodeNotFound))
	})

	mt.Run("update fact check", func(mt *mtest.T) {
		repo := NewMongoPostRepository(mt.DB)
		mt.AddMockResponses(mtest.CreateSuccessResponse(
			bson.E{Key: "n", Value: int32(1)},
			bson.E{Key: "nModified", Value: int32(1)},
		))
		score := 55
		require.NoError(mt, repo.UpdateFactCheck(context.Background(), uuid.New(), &score, models.LabelMixed))
	})

	mt.Run("mark score attempts", func(mt *mtest.T) {
		repo := NewMongoPostRepository(mt.DB)
		require.NoError(mt, repo.MarkScoreAttempts(context.Background(), nil))

		mt.AddMockResponses(mtest.CreateSuccessResponse(
			bson.E{Key: "n", Value: int32(2)},
			bson.E{Key: "nModified", Value: int32(2)},
		))
		require.NoError(mt, repo.MarkScoreAttempts(context.Background(), []uuid.UUID{uuid.New(), uuid.New()}))

		started := mt.GetStartedEvent()
		require.NotNil(mt, started)
		assert.Equal(mt, "update", started.CommandName)
	})

	mt.Run("store failure", func(mt *mtest.T) {
		repo := NewMongoPostRepository(mt.DB)
		mt.AddMockResponses(mtest.CreateCommandErrorResponse(mtest.CommandError{
			Code: 2, Name: "BadValue", Message: "bad sort",
		}))

		_, err := repo.List(context.Background(), 10, 0)
		assert.True(mt, models.IsCode(err, models.CodeStorage))
	})

	mt.Run("profiles", func(mt *mtest.T) {
		repo := NewMongoProfileRepository(mt.DB)
		mt.AddMockResponses(mtest.CreateCursorResponse(0, "veritas.users", mtest.FirstBatch,
			bson.D{{Key: "_id", Value: "u1"}, {Key: "username", Value: "ana"}, {Key: "avatar", Value: "a.png"}}))

		profiles, err := repo.GetPublicProfiles(context.Background(), []string{"u1", "ghost"})
		require.NoError(mt, err)
		assert.Equal(mt, map[string]models.PublicProfile{"u1": {ID: "u1", Username: "ana", Avatar: "a.png"}}, profiles)
	})
}

func TestTogglePipelineShape(t *testing.T) {
	p := togglePipeline("upvotes", "alice")
	require.Len(t, p, 1)

	set, ok := p[0].Map()["$set"].(bson.D)
	require.True(t, ok)
	fields := set.Map()
	assert.Contains(t, fields, "upvotes")
	assert.Equal(t, "$$NOW", fields["updatedAt"])

	_, ok = reactionField(models.ReactionKind("like"))
	assert.False(t, ok)
}
