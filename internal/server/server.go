// Package server contains the HTTP handlers for the confessions API.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"confessions/internal/cache"
	"confessions/internal/config"
	"confessions/internal/database"
	"confessions/internal/middleware"
	"confessions/internal/models"
	"confessions/internal/notifications"
	"confessions/internal/repository"
	"confessions/internal/retention"
	"confessions/internal/service"
	"confessions/internal/session"

	"github.com/ansrivas/fiberprometheus/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/helmet"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// Server holds all dependencies and provides handlers
type Server struct {
	config          *config.Config
	db              *gorm.DB
	redis           *redis.Client
	app             *fiber.App
	promMiddleware  *fiberprometheus.FiberPrometheus
	gate            session.Gate
	notifier        *notifications.Notifier
	scheduler       *retention.Scheduler
	reactionService *service.ReactionService
	followService   *service.FollowService
	commentService  *service.CommentService
	postService     *service.PostService
	userService     *service.UserService
}

// NewServer connects to the database and, when configured, Redis, then
// builds the server. A Redis outage at startup is logged and the server runs
// without cache, rate limits and moderation notices.
func NewServer(cfg *config.Config) (*Server, error) {
	db, err := database.Connect(cfg)
	if err != nil {
		return nil, fmt.Errorf("database connection failed: %w", err)
	}

	var redisClient *redis.Client
	if cfg.RedisURL != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		redisClient, err = cache.Connect(ctx, cfg.RedisURL)
		if err != nil {
			middleware.Logger.Warn("redis unavailable, continuing without it", slog.String("error", err.Error()))
			redisClient = nil
		}
	}

	return NewServerWithDeps(cfg, db, redisClient)
}

// NewServerWithDeps creates a Server using already-initialized dependencies.
// redisClient may be nil.
func NewServerWithDeps(cfg *config.Config, db *gorm.DB, redisClient *redis.Client) (*Server, error) {
	middleware.InitMiddleware(cfg)

	users := counterStore[models.User](db, cfg.AtomicCounters)
	posts := counterStore[models.Confession](db, cfg.AtomicCounters)
	comments := counterStore[models.Comment](db, cfg.AtomicCounters)
	reactions := repository.NewStore[models.Reaction](db)
	follows := repository.NewStore[models.Follow](db)

	s := &Server{
		config:         cfg,
		db:             db,
		redis:          redisClient,
		promMiddleware: middleware.InitMetrics("confessions-api"),
		gate:           session.NewTokenGate(users, "/login"),
		notifier:       notifications.NewNotifier(redisClient),
	}

	s.postService = service.NewPostService(s.gate, posts, cache.New(redisClient), s.notifier, cfg.FeedLimit, cfg.FeedCacheTTL())
	s.reactionService = service.NewReactionService(s.gate, reactions, posts, s.postService)
	s.followService = service.NewFollowService(s.gate, follows, users)
	s.commentService = service.NewCommentService(s.gate, comments, posts, s.notifier)
	s.userService = service.NewUserService(s.gate, users, s.postService, s.followService)

	if cfg.RetentionEnabled {
		sweeper := retention.NewSweeper(
			repository.NewPruner[models.Confession](db),
			repository.NewPruner[models.Comment](db),
			repository.NewPruner[models.Reaction](db),
			s.postService,
			time.Duration(cfg.RetentionDays)*24*time.Hour,
		)
		s.scheduler = retention.NewScheduler(sweeper, cfg.RetentionSchedule)
	}

	return s, nil
}

func counterStore[T any](db *gorm.DB, atomic bool) repository.Store[T] {
	if atomic {
		return repository.NewCountingStore[T](db)
	}
	return repository.NewStore[T](db)
}

// SetupMiddleware configures middleware for the Fiber app
func (s *Server) SetupMiddleware(app *fiber.App) {
	app.Use(recover.New())
	app.Use(requestid.New())
	app.Use(middleware.TracingMiddleware())
	app.Use(middleware.ContextMiddleware())

	if s.promMiddleware != nil {
		app.Use(middleware.MetricsMiddleware(s.promMiddleware))
	}

	app.Use(helmet.New())
	app.Use(middleware.StructuredLogger())

	origins := s.config.AllowedOrigins
	if origins == "" {
		origins = "http://localhost:5173,http://localhost:3000"
	}
	app.Use(cors.New(cors.Config{
		AllowOrigins: origins,
		AllowHeaders: "Origin, Content-Type, Accept, Authorization",
		MaxAge:       86400,
	}))
}

// SetupRoutes configures all routes for the application
func (s *Server) SetupRoutes(app *fiber.App) {
	app.Get("/health/live", s.LivenessCheck)
	app.Get("/health/ready", s.ReadinessCheck)

	if s.promMiddleware != nil {
		s.promMiddleware.RegisterAt(app, "/metrics")
	}

	// Identity is optional at the edge; writes are gated by the session gate.
	api := app.Group("/api", middleware.AuthOptional)

	api.Get("/session", s.GetSession)

	users := api.Group("/users")
	users.Put("/me/profile", s.SetupProfile)
	users.Post("/:id/follow", s.FollowUser)
	users.Delete("/:id/follow", s.UnfollowUser)
	users.Get("/:id", s.GetUserProfile)

	confessions := api.Group("/confessions")
	confessions.Get("/", s.GetFeed)
	confessions.Post("/", middleware.RateLimit(
		s.redis, 5, 10*time.Minute, "create_confession"), s.CreateConfession)
	// Define specific /:id/:resource routes BEFORE generic /:id route
	confessions.Post("/:id/reactions", s.React)
	confessions.Get("/:id/reactions/me", s.GetMyReactions)
	confessions.Post("/:id/report", s.ReportConfession)
	confessions.Get("/:id/comments", s.GetComments)
	confessions.Post("/:id/comments", middleware.RateLimit(
		s.redis, 10, time.Minute, "create_comment"), s.CreateComment)
	confessions.Get("/:id", s.GetConfession)

	comments := api.Group("/comments")
	comments.Post("/:id/hug", s.HugComment)
	comments.Post("/:id/report", s.ReportComment)
}

// LivenessCheck handles liveness probe requests
func (s *Server) LivenessCheck(c *fiber.Ctx) error {
	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"status": "up",
		"time":   time.Now(),
	})
}

// ReadinessCheck handles readiness probe requests. Redis is optional, so
// only the database decides readiness.
func (s *Server) ReadinessCheck(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), 5*time.Second)
	defer cancel()

	dbStatus := "healthy"
	sqlDB, err := s.db.DB()
	if err != nil {
		dbStatus = "unhealthy"
	} else if err := sqlDB.PingContext(ctx); err != nil {
		dbStatus = "unhealthy"
	}

	redisStatus := "unavailable"
	if s.redis != nil {
		redisStatus = "healthy"
		if err := s.redis.Ping(ctx).Err(); err != nil {
			redisStatus = "unhealthy"
		}
	}

	status := fiber.StatusOK
	overallStatus := "healthy"
	if dbStatus == "unhealthy" {
		status = fiber.StatusServiceUnavailable
		overallStatus = "unhealthy"
	}

	return c.Status(status).JSON(fiber.Map{
		"status": overallStatus,
		"checks": fiber.Map{
			"database": dbStatus,
			"redis":    redisStatus,
		},
		"time": time.Now(),
	})
}

// App builds the Fiber app with middleware and routes.
func (s *Server) App() *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:      "Campus Confessions API",
		ErrorHandler: errorHandler,
	})
	s.SetupMiddleware(app)
	s.SetupRoutes(app)
	return app
}

func errorHandler(c *fiber.Ctx, err error) error {
	var fe *fiber.Error
	if errors.As(err, &fe) {
		return c.Status(fe.Code).JSON(models.ErrorResponse{Error: fe.Message})
	}
	middleware.Logger.ErrorContext(c.UserContext(), "unhandled error", slog.String("error", err.Error()))
	return respondError(c, err)
}

// Start starts the retention scheduler and then listens. It blocks until
// the listener stops.
func (s *Server) Start() error {
	s.app = s.App()

	if s.scheduler != nil {
		if err := s.scheduler.Start(); err != nil {
			return err
		}
	}

	middleware.Logger.Info("server starting", slog.String("port", s.config.Port))
	return s.app.Listen(":" + s.config.Port)
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	if s.app != nil {
		if err := s.app.ShutdownWithContext(ctx); err != nil {
			middleware.Logger.Error("error shutting down HTTP server", slog.String("error", err.Error()))
		}
	}

	if s.scheduler != nil {
		s.scheduler.Stop(ctx)
	}

	if sqlDB, err := s.db.DB(); err == nil {
		if cerr := sqlDB.Close(); cerr != nil {
			middleware.Logger.Error("error closing sql DB", slog.String("error", cerr.Error()))
		}
	}

	if s.redis != nil {
		if rerr := s.redis.Close(); rerr != nil {
			middleware.Logger.Error("error closing redis", slog.String("error", rerr.Error()))
		}
	}

	middleware.Logger.Info("server shutdown complete")
	return nil
}
