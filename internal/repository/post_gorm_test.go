package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"veritas/internal/models"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func setupMockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)

	gormDB, err := gorm.Open(postgres.New(postgres.Config{
		Conn: db,
	}), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)

	return gormDB, mock
}

func setupSQLiteDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(&models.User{}, &models.Post{}, &models.Comment{}, &models.Reaction{}))
	return db
}

func seedPost(t *testing.T, repo PostRepository, author, text string, at time.Time) *models.Post {
	t.Helper()
	p := &models.Post{AuthorID: author, Text: text, CreatedAt: at}
	require.NoError(t, repo.Create(context.Background(), p))
	return p
}

func TestPostRepository_CreateAndGet(t *testing.T) {
	repo := NewPostRepository(setupSQLiteDB(t))
	ctx := context.Background()

	p := &models.Post{AuthorID: "u1", Text: "hello", ImageURL: "https://cdn/x.png"}
	require.NoError(t, repo.Create(ctx, p))
	assert.NotEqual(t, uuid.Nil, p.ID)
	assert.Equal(t, models.LabelUnverified, p.FactCheckLabel)

	got, err := repo.GetByID(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, "hello", got.Text)
	assert.Equal(t, "https://cdn/x.png", got.ImageURL)
	assert.Nil(t, got.FactCheckScore)
	assert.Equal(t, []string{}, got.Upvotes)
	assert.Equal(t, []string{}, got.Flags)
	assert.Equal(t, []models.Comment{}, got.Comments)
}

func TestPostRepository_GetByID_NotFound(t *testing.T) {
	repo := NewPostRepository(setupSQLiteDB(t))

	_, err := repo.GetByID(context.Background(), uuid.New())
	assert.True(t, models.IsCode(err, models.CodeNotFound))
}

func TestPostRepository_ListNewestFirst(t *testing.T) {
	repo := NewPostRepository(setupSQLiteDB(t))
	ctx := context.Background()
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	for i := 0; i < 5; i++ {
		seedPost(t, repo, "u1", fmt.Sprintf("post %d", i), base.Add(time.Duration(i)*time.Minute))
	}

	page, err := repo.List(ctx, 2, 0)
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, "post 4", page[0].Text)
	assert.Equal(t, "post 3", page[1].Text)

	last, err := repo.List(ctx, 2, 4)
	require.NoError(t, err)
	require.Len(t, last, 1)
	assert.Equal(t, "post 0", last[0].Text)

	beyond, err := repo.List(ctx, 2, 10)
	require.NoError(t, err)
	assert.Empty(t, beyond)

	n, err := repo.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(5), n)
}

func TestPostRepository_ToggleReaction(t *testing.T) {
	repo := NewPostRepository(setupSQLiteDB(t))
	ctx := context.Background()
	p := seedPost(t, repo, "author", "claim", time.Now())

	res, err := repo.ToggleReaction(ctx, p.ID, "alice", models.ReactionUpvote)
	require.NoError(t, err)
	assert.Equal(t, ToggleResult{Active: true, Count: 1}, res)

	res, err = repo.ToggleReaction(ctx, p.ID, "bob", models.ReactionUpvote)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Count)

	// flags are independent of upvotes
	res, err = repo.ToggleReaction(ctx, p.ID, "alice", models.ReactionFlag)
	require.NoError(t, err)
	assert.Equal(t, ToggleResult{Active: true, Count: 1}, res)

	res, err = repo.ToggleReaction(ctx, p.ID, "alice", models.ReactionUpvote)
	require.NoError(t, err)
	assert.Equal(t, ToggleResult{Active: false, Count: 1}, res)

	got, err := repo.GetByID(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"bob"}, got.Upvotes)
	assert.Equal(t, []string{"alice"}, got.Flags)
}

func TestPostRepository_ToggleReaction_Errors(t *testing.T) {
	repo := NewPostRepository(setupSQLiteDB(t))
	ctx := context.Background()

	_, err := repo.ToggleReaction(ctx, uuid.New(), "alice", models.ReactionUpvote)
	assert.True(t, models.IsCode(err, models.CodeNotFound))

	p := seedPost(t, repo, "author", "x", time.Now())
	_, err = repo.ToggleReaction(ctx, p.ID, "alice", models.ReactionKind("like"))
	assert.True(t, models.IsCode(err, models.CodeValidation))
}

func TestPostRepository_ToggleReaction_ConcurrentDistinctUsers(t *testing.T) {
	repo := NewPostRepository(setupSQLiteDB(t))
	ctx := context.Background()
	p := seedPost(t, repo, "author", "x", time.Now())

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := repo.ToggleReaction(ctx, p.ID, fmt.Sprintf("user-%d", i), models.ReactionUpvote)
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	got, err := repo.GetByID(ctx, p.ID)
	require.NoError(t, err)
	assert.Len(t, got.Upvotes, 10)
}

func TestPostRepository_AppendComment(t *testing.T) {
	repo := NewPostRepository(setupSQLiteDB(t))
	ctx := context.Background()
	p := seedPost(t, repo, "author", "x", time.Now())

	first := &models.Comment{AuthorID: "alice", Text: "first"}
	comments, err := repo.AppendComment(ctx, p.ID, first)
	require.NoError(t, err)
	require.Len(t, comments, 1)
	assert.NotEqual(t, uuid.Nil, first.ID)

	comments, err = repo.AppendComment(ctx, p.ID, &models.Comment{AuthorID: "bob", Text: "second"})
	require.NoError(t, err)
	require.Len(t, comments, 2)
	assert.Equal(t, "first", comments[0].Text)
	assert.Equal(t, "second", comments[1].Text)

	_, err = repo.AppendComment(ctx, uuid.New(), &models.Comment{AuthorID: "bob", Text: "orphan"})
	assert.True(t, models.IsCode(err, models.CodeNotFound))
}

func TestPostRepository_DeleteCascades(t *testing.T) {
	db := setupSQLiteDB(t)
	repo := NewPostRepository(db)
	ctx := context.Background()
	p := seedPost(t, repo, "author", "x", time.Now())

	_, err := repo.ToggleReaction(ctx, p.ID, "alice", models.ReactionFlag)
	require.NoError(t, err)
	_, err = repo.AppendComment(ctx, p.ID, &models.Comment{AuthorID: "alice", Text: "c"})
	require.NoError(t, err)

	require.NoError(t, repo.Delete(ctx, p.ID))

	var reactions, comments int64
	db.Model(&models.Reaction{}).Where("post_id = ?", p.ID).Count(&reactions)
	db.Model(&models.Comment{}).Where("post_id = ?", p.ID).Count(&comments)
	assert.Zero(t, reactions)
	assert.Zero(t, comments)

	err = repo.Delete(ctx, p.ID)
	assert.True(t, models.IsCode(err, models.CodeNotFound))
}

func TestPostRepository_FactCheck(t *testing.T) {
	repo := NewPostRepository(setupSQLiteDB(t))
	ctx := context.Background()
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	a := seedPost(t, repo, "u", "older claim", base)
	seedPost(t, repo, "u", "", base.Add(time.Minute))
	b := seedPost(t, repo, "u", "newer claim", base.Add(2*time.Minute))

	pending, err := repo.ListUnverified(ctx, 10)
	require.NoError(t, err)
	require.Len(t, pending, 2)
	assert.Equal(t, a.ID, pending[0].ID)
	assert.Equal(t, b.ID, pending[1].ID)

	score := 82
	require.NoError(t, repo.UpdateFactCheck(ctx, a.ID, &score, models.LabelVerified))

	got, err := repo.GetByID(ctx, a.ID)
	require.NoError(t, err)
	require.NotNil(t, got.FactCheckScore)
	assert.Equal(t, 82, *got.FactCheckScore)
	assert.Equal(t, models.LabelVerified, got.FactCheckLabel)

	pending, err = repo.ListUnverified(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, pending, 1)

	err = repo.UpdateFactCheck(ctx, uuid.New(), nil, models.LabelUnverified)
	assert.True(t, models.IsCode(err, models.CodeNotFound))
}

func TestPostRepository_MarkScoreAttempts_RotatesQueue(t *testing.T) {
	repo := NewPostRepository(setupSQLiteDB(t))
	ctx := context.Background()
	base := time.Now().Add(-time.Hour)
	a := seedPost(t, repo, "u", "old claim", base)
	b := seedPost(t, repo, "u", "newer claim", base.Add(time.Minute))

	require.NoError(t, repo.MarkScoreAttempts(ctx, nil))
	require.NoError(t, repo.MarkScoreAttempts(ctx, []uuid.UUID{a.ID}))

	// a single-slot batch must not keep returning the post that was just tried
	pending, err := repo.ListUnverified(ctx, 1)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, b.ID, pending[0].ID)

	require.NoError(t, repo.MarkScoreAttempts(ctx, []uuid.UUID{b.ID}))
	pending, err = repo.ListUnverified(ctx, 2)
	require.NoError(t, err)
	require.Len(t, pending, 2)
	assert.Equal(t, a.ID, pending[0].ID)
	assert.Equal(t, b.ID, pending[1].ID)
}

func TestPostRepository_LongSubjectIDs(t *testing.T) {
	repo := NewPostRepository(setupSQLiteDB(t))
	ctx := context.Background()
	author := "auth0|" + strings.Repeat("a", 120)
	voter := "https://issuer.example/" + strings.Repeat("v", 200)

	p := seedPost(t, repo, author, "claim", time.Now())

	res, err := repo.ToggleReaction(ctx, p.ID, voter, models.ReactionUpvote)
	require.NoError(t, err)
	assert.Equal(t, ToggleResult{Active: true, Count: 1}, res)

	comments, err := repo.AppendComment(ctx, p.ID, &models.Comment{AuthorID: voter, Text: "hi"})
	require.NoError(t, err)
	require.Len(t, comments, 1)
	assert.Equal(t, voter, comments[0].AuthorID)

	got, err := repo.GetByID(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, author, got.AuthorID)
	assert.Equal(t, []string{voter}, got.Upvotes)
}

func TestSubjectColumnsAreUnbounded(t *testing.T) {
	db := setupSQLiteDB(t)
	cases := []struct {
		model any
		field string
	}{
		{&models.User{}, "ID"},
		{&models.Post{}, "AuthorID"},
		{&models.Comment{}, "AuthorID"},
		{&models.Reaction{}, "UserID"},
	}
	for _, tc := range cases {
		stmt := &gorm.Statement{DB: db}
		require.NoError(t, stmt.Parse(tc.model))
		f := stmt.Schema.LookUpField(tc.field)
		require.NotNil(t, f, tc.field)
		assert.Zero(t, f.Size, "%s.%s", stmt.Schema.Name, tc.field)
		assert.Equal(t, "text", string(f.DataType), "%s.%s", stmt.Schema.Name, tc.field)
	}
}

func TestPostRepository_ToggleReaction_PostgresLocksRow(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewPostRepository(db)
	postID := uuid.New()

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT "id" FROM "posts" WHERE id = \$1 LIMIT \$2 FOR UPDATE`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(postID.String()))
	mock.ExpectExec(`DELETE FROM "post_reactions" WHERE post_id = \$1 AND user_id = \$2 AND kind = \$3`).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(`INSERT INTO "post_reactions" .* ON CONFLICT DO NOTHING`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(`SELECT count\(\*\) FROM "post_reactions" WHERE post_id = \$1 AND kind = \$2`).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(3))
	mock.ExpectExec(`UPDATE "posts" SET "updated_at"=\$1 WHERE id = \$2`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	res, err := repo.ToggleReaction(context.Background(), postID, "alice", models.ReactionUpvote)
	require.NoError(t, err)
	assert.Equal(t, ToggleResult{Active: true, Count: 3}, res)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostRepository_StoreFailureIsWrapped(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewPostRepository(db)

	mock.ExpectQuery(`SELECT \* FROM "posts"`).WillReturnError(errors.New("connection reset"))

	_, err := repo.GetByID(context.Background(), uuid.New())
	require.Error(t, err)
	assert.True(t, models.IsCode(err, models.CodeStorage))
	assert.Equal(t, 500, models.StatusFor(err))
}

func TestProfileRepository(t *testing.T) {
	repo := NewProfileRepository(setupSQLiteDB(t))
	ctx := context.Background()

	require.NoError(t, repo.Upsert(ctx, &models.User{ID: "u1", Username: "ana", Avatar: "a.png", Bio: "private-ish"}))
	require.NoError(t, repo.Upsert(ctx, &models.User{ID: "u1", Username: "ana2", Avatar: "b.png"}))
	require.NoError(t, repo.Upsert(ctx, &models.User{ID: "u2", Username: "ben"}))

	profiles, err := repo.GetPublicProfiles(ctx, []string{"u1", "u2", "ghost"})
	require.NoError(t, err)
	assert.Len(t, profiles, 2)
	assert.Equal(t, models.PublicProfile{ID: "u1", Username: "ana2", Avatar: "b.png"}, profiles["u1"])

	empty, err := repo.GetPublicProfiles(ctx, nil)
	require.NoError(t, err)
	assert.Empty(t, empty)
}
