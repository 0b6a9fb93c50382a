package server

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"veritas/internal/bootstrap"
	"veritas/internal/config"
	"veritas/internal/models"
	"veritas/internal/testutil"

	"github.com/alicebob/miniredis/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret-key-12345678901234567890123456789012"

func TestRoutes_RequireBearerToken(t *testing.T) {
	d := newTestDeps()
	d.posts.On("Count", mock.Anything).Return(int64(0), nil)
	app := d.server(nil).NewApp()

	t.Run("Missing Token", func(t *testing.T) {
		resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/api/posts", nil), -1)
		require.NoError(t, err)
		defer func() { _ = resp.Body.Close() }()
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("Forged Token", func(t *testing.T) {
		token, err := testutil.SignToken("some-other-secret-0123456789012345678901", "u1", time.Hour)
		require.NoError(t, err)
		req := httptest.NewRequest(http.MethodGet, "/api/posts", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		resp, err := app.Test(req, -1)
		require.NoError(t, err)
		defer func() { _ = resp.Body.Close() }()
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("Valid Token", func(t *testing.T) {
		token, err := testutil.SignToken(testSecret, "u1", time.Hour)
		require.NoError(t, err)
		req := httptest.NewRequest(http.MethodGet, "/api/posts", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		resp, err := app.Test(req, -1)
		require.NoError(t, err)
		defer func() { _ = resp.Body.Close() }()
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.NotEmpty(t, resp.Header.Get("X-Content-Type-Options"))
		assert.NotEmpty(t, resp.Header.Get(fiber.HeaderXRequestID))
	})
}

func TestRoutes_DeleteUsesTokenSubject(t *testing.T) {
	id := uuid.New()
	d := newTestDeps()
	d.posts.On("GetByID", mock.Anything, id).Return(&models.Post{ID: id, AuthorID: "owner"}, nil)
	d.posts.On("Delete", mock.Anything, id).Return(nil).Once()
	app := d.server(nil).NewApp()

	send := func(sub string) int {
		token, err := testutil.SignToken(testSecret, sub, time.Hour)
		require.NoError(t, err)
		req := httptest.NewRequest(http.MethodDelete, "/api/posts/"+id.String(), nil)
		req.Header.Set("Authorization", "Bearer "+token)
		resp, err := app.Test(req, -1)
		require.NoError(t, err)
		_ = resp.Body.Close()
		return resp.StatusCode
	}

	assert.Equal(t, http.StatusForbidden, send("someone-else"))
	assert.Equal(t, http.StatusOK, send("owner"))
	d.posts.AssertExpectations(t)
}

func TestHealthChecks(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	tests := []struct {
		name           string
		runtime        *bootstrap.Runtime
		expectedStatus int
		expectedState  string
	}{
		{
			name: "Healthy",
			runtime: &bootstrap.Runtime{
				Redis:     rdb,
				StorePing: func(context.Context) error { return nil },
			},
			expectedStatus: http.StatusOK,
			expectedState:  "healthy",
		},
		{
			name:           "Without Redis",
			runtime:        &bootstrap.Runtime{StorePing: func(context.Context) error { return nil }},
			expectedStatus: http.StatusOK,
			expectedState:  "degraded",
		},
		{
			name: "Store Down",
			runtime: &bootstrap.Runtime{
				Redis:     rdb,
				StorePing: func(context.Context) error { return errors.New("connection refused") },
			},
			expectedStatus: http.StatusServiceUnavailable,
			expectedState:  "unhealthy",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app := NewServerWithDeps(&config.Config{JWTSecret: testSecret}, tt.runtime).NewApp()

			resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/health/ready", nil), -1)
			require.NoError(t, err)
			defer func() { _ = resp.Body.Close() }()
			assert.Equal(t, tt.expectedStatus, resp.StatusCode)
			assert.Equal(t, tt.expectedState, decode(t, resp.Body)["status"])

			live, err := app.Test(httptest.NewRequest(http.MethodGet, "/health/live", nil), -1)
			require.NoError(t, err)
			defer func() { _ = live.Body.Close() }()
			assert.Equal(t, http.StatusOK, live.StatusCode)
		})
	}
}

func TestSetupMiddleware_PreflightIncludesCORSHeaders(t *testing.T) {
	srv := &Server{
		config:  &config.Config{AllowedOrigins: "http://localhost:5173"},
		runtime: &bootstrap.Runtime{},
	}

	app := fiber.New()
	srv.SetupMiddleware(app)
	app.Put("/api/posts/:id/upvote", func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusOK)
	})

	req := httptest.NewRequest(http.MethodOptions, "/api/posts/x/upvote", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	req.Header.Set("Access-Control-Request-Method", http.MethodPut)
	req.Header.Set("Access-Control-Request-Headers", "authorization,content-type")
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	assert.Equal(t, fiber.StatusNoContent, resp.StatusCode)
	assert.Equal(t, "http://localhost:5173", resp.Header.Get("Access-Control-Allow-Origin"))
	assert.Contains(t, resp.Header.Get("Access-Control-Allow-Methods"), http.MethodPut)
}

func TestMediaStaticFiles(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "posts", "images"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "posts", "images", "a.png"), []byte("png"), 0o644))

	app := NewServerWithDeps(&config.Config{JWTSecret: testSecret}, &bootstrap.Runtime{MediaDir: dir}).NewApp()

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/media/posts/images/a.png", nil), -1)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestErrorHandler_UnknownRoute(t *testing.T) {
	app := NewServerWithDeps(&config.Config{JWTSecret: testSecret}, &bootstrap.Runtime{}).NewApp()

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/nope", nil), -1)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	body := decode(t, resp.Body)
	assert.Equal(t, false, body["success"])
	assert.True(t, strings.Contains(body["error"].(string), "Cannot GET"))
}
