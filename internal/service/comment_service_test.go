package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"veritas/internal/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCommentService_AddComment(t *testing.T) {
	posts, profiles := setupStore(t)
	require.NoError(t, profiles.Upsert(context.Background(), &models.User{ID: "u2", Username: "bo"}))
	post := seedPosts(t, posts, 1)[0]

	svc := NewCommentService(posts, profiles, nil)
	ctx := context.Background()

	first, err := svc.AddComment(ctx, post.ID, "u2", "  first  ")
	require.NoError(t, err)
	require.Len(t, first, 1)
	assert.Equal(t, "first", first[0].Text)
	assert.Equal(t, "bo", first[0].Author.Username)
	assert.NotEqual(t, uuid.Nil, first[0].ID)

	second, err := svc.AddComment(ctx, post.ID, "u3", "second")
	require.NoError(t, err)
	require.Len(t, second, 2)
	assert.Equal(t, "first", second[0].Text)
	assert.Equal(t, "second", second[1].Text)
	assert.Equal(t, &models.PublicProfile{ID: "u3"}, second[1].Author)
}

func TestCommentService_AddComment_Errors(t *testing.T) {
	posts, profiles := setupStore(t)
	post := seedPosts(t, posts, 1)[0]
	svc := NewCommentService(posts, profiles, nil)
	ctx := context.Background()

	_, err := svc.AddComment(ctx, post.ID, "", "hello")
	assertCode(t, err, models.CodeUnauthorized)

	_, err = svc.AddComment(ctx, post.ID, "u1", "   ")
	assertCode(t, err, models.CodeValidation)

	_, err = svc.AddComment(ctx, post.ID, "u1", strings.Repeat("x", 10001))
	assertCode(t, err, models.CodeValidation)

	_, err = svc.AddComment(ctx, uuid.New(), "u1", "hello")
	assertCode(t, err, models.CodeNotFound)

	_, err = svc.AddComment(ctx, uuid.New(), "u1", "   ")
	assertCode(t, err, models.CodeNotFound)
}

func TestCommentService_ProjectionFailureIsBestEffort(t *testing.T) {
	t.Parallel()

	repo := noopPostRepo()
	profiles := &profileRepoStub{err: errors.New("profiles offline")}
	svc := NewCommentService(repo, profiles, nil)

	comments, err := svc.AddComment(context.Background(), uuid.New(), "u1", "still saved")
	require.NoError(t, err)
	require.Len(t, comments, 1)
	assert.Nil(t, comments[0].Author)
}

func TestCommentService_ConcurrentAppendsKeepEveryComment(t *testing.T) {
	posts, profiles := setupStore(t)
	post := seedPosts(t, posts, 1)[0]
	svc := NewCommentService(posts, profiles, nil)

	const writers = 8
	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.AddComment(context.Background(), post.ID, "u1", "hi")
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	got, err := posts.GetByID(context.Background(), post.ID)
	require.NoError(t, err)
	assert.Len(t, got.Comments, writers)
}
