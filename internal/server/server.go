// Package server contains the HTTP handlers for the post and moderation API.
package server

import (
	"context"
	"fmt"
	"log"
	"time"

	"veritas/internal/bootstrap"
	"veritas/internal/cache"
	"veritas/internal/config"
	"veritas/internal/featureflags"
	"veritas/internal/media"
	"veritas/internal/middleware"
	"veritas/internal/models"
	"veritas/internal/service"
	"veritas/internal/validation"

	"github.com/ansrivas/fiberprometheus/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/helmet"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
)

// bodyLimit admits a request carrying the maximum number of maximum-size
// attachments plus form overhead.
const bodyLimit = int(validation.MaxUploadBytes)*(validation.MaxImages+validation.MaxVideos) + 1<<20

// Server holds all dependencies and provides handlers
type Server struct {
	config            *config.Config
	runtime           *bootstrap.Runtime
	app               *fiber.App
	promMiddleware    *fiberprometheus.FiberPrometheus
	featureFlags      *featureflags.Manager
	postService       *service.PostService
	moderationService *service.ModerationService
	commentService    *service.CommentService
	feedService       *service.FeedService
}

// NewServer creates a new server instance with all dependencies
func NewServer(ctx context.Context, cfg *config.Config) (*Server, error) {
	rt, err := bootstrap.InitRuntime(ctx, cfg, bootstrap.Options{SeedDemo: cfg.SeedDemo})
	if err != nil {
		return nil, fmt.Errorf("runtime initialization failed: %w", err)
	}
	return NewServerWithDeps(cfg, rt), nil
}

// NewServerWithDeps creates a Server using an already-initialized runtime.
// Use this in tests or when a bootstrap layer establishes the stores and
// optionally performs explicit seeding.
func NewServerWithDeps(cfg *config.Config, rt *bootstrap.Runtime) *Server {
	middleware.InitMiddleware(cfg)

	flags := featureflags.NewManager(cfg.FeatureFlags)
	feed := cache.NewFeedCache(rt.Redis, time.Duration(cfg.FeedCacheTTLSeconds)*time.Second)

	var attacher *media.Attacher
	if rt.Uploader != nil {
		attacher = media.NewAttacher(rt.Uploader)
	}

	return &Server{
		config:         cfg,
		runtime:        rt,
		promMiddleware: middleware.InitMetrics("veritas-api"),
		featureFlags:   flags,
		postService: service.NewPostService(service.PostServiceDeps{
			Posts:      rt.Posts,
			Profiles:   rt.Profiles,
			Attacher:   attacher,
			Classifier: rt.Classifier,
			Flags:      flags,
			Feed:       feed,
		}),
		moderationService: service.NewModerationService(rt.Posts, feed),
		commentService:    service.NewCommentService(rt.Posts, rt.Profiles, feed),
		feedService:       service.NewFeedService(rt.Posts, rt.Profiles, flags, feed),
	}
}

// NewApp builds a Fiber app with the server's error handler, middleware and routes.
func (s *Server) NewApp() *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:   "Veritas API",
		BodyLimit: bodyLimit,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			if fe, ok := err.(*fiber.Error); ok {
				return models.RespondWithError(c, fe.Code, fe)
			}
			log.Printf("Error: %v", err)
			return models.RespondWithError(c, fiber.StatusInternalServerError,
				models.NewInternalError(err))
		},
	})
	s.SetupMiddleware(app)
	s.SetupRoutes(app)
	return app
}

// SetupMiddleware configures middleware for the Fiber app
func (s *Server) SetupMiddleware(app *fiber.App) {
	// Panic recovery
	app.Use(recover.New())

	// Request ID for tracing
	app.Use(requestid.New())

	app.Use(middleware.TracingMiddleware())

	// Context Middleware to propagate Request ID and User ID
	app.Use(middleware.ContextMiddleware())

	// Prometheus Metrics
	if s.promMiddleware != nil {
		app.Use(middleware.MetricsMiddleware(s.promMiddleware))
	}

	// Security headers
	app.Use(helmet.New())

	// Structured Logging middleware (after requestid and context middleware)
	app.Use(middleware.StructuredLogger())

	origins := s.config.AllowedOrigins
	if origins == "" {
		origins = "http://localhost:5173,http://localhost:3000,http://127.0.0.1:5173"
	}

	app.Use(cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization",
		AllowMethods:     "GET,POST,PUT,DELETE,OPTIONS",
		AllowCredentials: true,
		MaxAge:           86400, // 24 hours
	}))
}

// SetupRoutes configures all routes for the application
func (s *Server) SetupRoutes(app *fiber.App) {
	// Health checks
	app.Get("/health/live", s.LivenessCheck)
	app.Get("/health/ready", s.ReadinessCheck)

	// Metrics endpoint for Prometheus
	if s.promMiddleware != nil {
		s.promMiddleware.RegisterAt(app, "/metrics")
	}

	if s.runtime.MediaDir != "" {
		app.Static("/media", s.runtime.MediaDir, fiber.Static{MaxAge: 3600})
	}

	api := app.Group("/api")

	posts := api.Group("/posts", middleware.AuthRequired)
	posts.Post("/", s.CreatePost)
	posts.Get("/", s.GetPosts)
	// Define specific /:id/:resource routes BEFORE generic /:id route
	posts.Put("/:id/upvote", s.UpvotePost)
	posts.Put("/:id/flag", s.FlagPost)
	posts.Post("/:id/comment", s.CreateComment)
	posts.Get("/:id", s.GetPost)
	posts.Delete("/:id", s.DeletePost)
}

// LivenessCheck handles liveness checks
func (s *Server) LivenessCheck(c *fiber.Ctx) error {
	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"status": "up",
		"time":   time.Now(),
	})
}

// ReadinessCheck handles readiness checks. The record store is
// required; Redis only backs the feed cache, so its absence is reported but
// does not fail readiness.
func (s *Server) ReadinessCheck(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), 5*time.Second)
	defer cancel()

	storeStatus := "healthy"
	if s.runtime.StorePing == nil {
		storeStatus = "unavailable"
	} else if err := s.runtime.StorePing(ctx); err != nil {
		storeStatus = "unhealthy"
	}

	redisStatus := "healthy"
	if s.runtime.Redis != nil {
		if err := s.runtime.Redis.Ping(ctx).Err(); err != nil {
			redisStatus = "unhealthy"
		}
	} else {
		redisStatus = "unavailable"
	}

	status := fiber.StatusOK
	overallStatus := "healthy"
	switch {
	case storeStatus != "healthy" || redisStatus == "unhealthy":
		status = fiber.StatusServiceUnavailable
		overallStatus = "unhealthy"
	case redisStatus == "unavailable":
		overallStatus = "degraded"
	}

	return c.Status(status).JSON(fiber.Map{
		"status": overallStatus,
		"checks": fiber.Map{
			"store": storeStatus,
			"redis": redisStatus,
		},
		"time": time.Now(),
	})
}

// Start starts the server
func (s *Server) Start() error {
	s.app = s.NewApp()

	log.Printf("Server starting on port %s...", s.config.Port)
	return s.app.Listen(":" + s.config.Port)
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	if s.app != nil {
		if err := s.app.ShutdownWithContext(ctx); err != nil {
			log.Printf("error shutting down HTTP server: %v", err)
		}
	}

	if err := s.runtime.Close(ctx); err != nil {
		log.Printf("error closing runtime: %v", err)
	}

	log.Println("Server shutdown complete")
	return nil
}
